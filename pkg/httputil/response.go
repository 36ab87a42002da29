package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medibook/booking-api/internal/model"
	apperrors "github.com/medibook/booking-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondCreated sends a 201 response
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps domain errors to HTTP statuses and sends the
// error envelope.
func RespondWithError(c *gin.Context, err error) {
	status, code := classify(err)
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: publicMessage(status, err),
		},
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, model.ErrPaymentOrderNotFound):
		return http.StatusNotFound, "payment_order_not_found"
	case errors.Is(err, model.ErrNoSession):
		return http.StatusUnprocessableEntity, "no_session"
	case errors.Is(err, model.ErrSessionCancelled):
		return http.StatusUnprocessableEntity, "session_cancelled"
	case errors.Is(err, model.ErrSessionEnded):
		return http.StatusUnprocessableEntity, "session_ended"
	case errors.Is(err, model.ErrSlotUnavailable):
		return http.StatusConflict, "slot_unavailable"
	case errors.Is(err, model.ErrReservationExpired):
		return http.StatusGone, "reservation_expired"
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, model.ErrRescheduleBlocked):
		return http.StatusUnprocessableEntity, "reschedule_date_blocked"
	case errors.Is(err, model.ErrRescheduleNotEligible):
		return http.StatusUnprocessableEntity, "reschedule_not_eligible"
	case errors.Is(err, model.ErrPaymentOrderFailed):
		return http.StatusBadGateway, "payment_order_failed"
	case errors.Is(err, model.ErrPaymentVerificationFailed):
		return http.StatusBadRequest, "payment_verification_failed"
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode(), "request_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

func publicMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
