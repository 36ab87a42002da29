package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/middleware"
	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/service/reschedule"
	"github.com/medibook/booking-api/pkg/httputil"
)

// BookingService is the saga surface the handler consumes.
type BookingService interface {
	Book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	CreatePaymentOrder(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentOrder, error)
	VerifyPayment(ctx context.Context, appointmentID uuid.UUID, req *model.VerifyPaymentRequest) (*model.Appointment, error)
	AbandonPayment(ctx context.Context, appointmentID uuid.UUID) error
	Cancel(ctx context.Context, appointmentID uuid.UUID, cancelledBy, reason string) error
	Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
}

// RescheduleService moves cancelled appointments to a new date.
type RescheduleService interface {
	Reschedule(ctx context.Context, appointmentID uuid.UUID, newDate time.Time) (*model.Appointment, error)
}

type Handler struct {
	bookings    BookingService
	reschedules RescheduleService
	validate    *validator.Validate
}

func NewHandler(bookings BookingService, reschedules RescheduleService) *Handler {
	return &Handler{
		bookings:    bookings,
		reschedules: reschedules,
		validate:    validator.New(),
	}
}

// CreateAppointment reserves the next token slot and returns the
// payment_pending appointment.
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	appt, err := h.bookings.Book(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondCreated(c, appt)
}

// CreatePaymentOrder opens the payment leg for a reserved appointment.
func (h *Handler) CreatePaymentOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	order, err := h.bookings.CreatePaymentOrder(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondCreated(c, order)
}

// VerifyPayment finalizes the booking after the gateway callback.
func (h *Handler) VerifyPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	var req model.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	appt, err := h.bookings.VerifyPayment(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appt)
}

// AbandonPayment releases the reservation when the patient closes
// checkout without paying.
func (h *Handler) AbandonPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	if err := h.bookings.AbandonPayment(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"released": true})
}

// CancelAppointment releases the token slot. Safe to call repeatedly.
func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	cancelledBy := req.CancelledBy
	if cancelledBy == "" {
		cancelledBy = "patient"
		if role := c.GetString(middleware.ContextRole); role != "" {
			cancelledBy = role
		}
	}

	if err := h.bookings.Cancel(c.Request.Context(), id, cancelledBy, req.Reason); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"cancelled": true})
}

// RescheduleAppointment books a replacement slot for a cancelled
// appointment on a new date.
func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	newDate, err := reschedule.ParseDate(req.AppointmentDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	appt, err := h.reschedules.Reschedule(c.Request.Context(), id, newDate)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondCreated(c, appt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	appt, err := h.bookings.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filters := &model.AppointmentFilters{}

	if id := c.Query("patient_id"); id != "" {
		patientID, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid patient ID"})
			return
		}
		filters.PatientID = patientID
	}

	if id := c.Query("provider_id"); id != "" {
		providerID, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid provider ID"})
			return
		}
		filters.ProviderID = providerID
		// Provider queue views never show in-flight reservations.
		filters.ExcludePending = true
	}

	if status := c.Query("status"); status != "" {
		filters.Status = model.AppointmentStatus(status)
	}

	if date := c.Query("date"); date != "" {
		parsed, err := reschedule.ParseDate(date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid date, expected YYYY-MM-DD"})
			return
		}
		filters.Date = &parsed
	}

	appts, err := h.bookings.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appts)
}
