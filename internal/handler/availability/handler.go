package availability

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/pkg/httputil"
)

// Service is the availability surface the handler consumes.
type Service interface {
	GetAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, mode model.ConsultationMode) (*model.Availability, error)
	Slots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]model.TokenSlot, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type slotsResponse struct {
	Available           bool                     `json:"available"`
	Reason              model.AvailabilityReason `json:"reason"`
	Capacity            int                      `json:"capacity"`
	BookedCount         int                      `json:"booked_count"`
	NextToken           *int                     `json:"next_token,omitempty"`
	SessionStartTime    string                   `json:"session_start_time,omitempty"`
	SessionEndTime      string                   `json:"session_end_time,omitempty"`
	AvgConsultationMins int                      `json:"avg_consultation_mins,omitempty"`
	Slots               []model.TokenSlot        `json:"slots,omitempty"`
}

// GetSlots reports availability and the slot preview for a provider on
// a date. The preview is informational; booking always assigns the next
// token server-side.
func (h *Handler) GetSlots(c *gin.Context) {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid provider ID"})
		return
	}

	dateStr := c.Query("date")
	if dateStr == "" {
		dateStr = time.Now().Format("2006-01-02")
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid date, expected YYYY-MM-DD"})
		return
	}

	mode := model.ConsultationMode(c.DefaultQuery("mode", string(model.ModeInPerson)))
	if mode != model.ModeInPerson && mode != model.ModeCall {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid mode"})
		return
	}

	avail, err := h.service.GetAvailability(c.Request.Context(), providerID, date, mode)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	resp := slotsResponse{
		Available:   avail.Available,
		Reason:      avail.Reason,
		Capacity:    avail.Capacity,
		BookedCount: avail.BookedCount,
		NextToken:   avail.NextToken,
	}
	if s := avail.Session; s != nil {
		resp.SessionStartTime = model.FormatClockMinute(s.StartMinute)
		resp.SessionEndTime = model.FormatClockMinute(s.EndMinute)
		resp.AvgConsultationMins = s.AvgConsultationMins
	}
	if avail.Reason != model.ReasonNoSession {
		slots, err := h.service.Slots(c.Request.Context(), providerID, date)
		if err == nil {
			resp.Slots = slots
		}
	}

	httputil.RespondWithSuccess(c, resp)
}
