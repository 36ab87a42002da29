package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
)

// Service writes lifecycle events to the transactional outbox. The
// outbox processor publishes them to the notification bridge; delivery
// is fire-and-forget and never gates the booking saga.
type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// EmitAppointment builds the standard lifecycle payload for an
// appointment and writes it to the outbox.
func (s *Service) EmitAppointment(ctx context.Context, eventType string, appt *model.Appointment, reason string) error {
	payload := model.AppointmentEvent{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		PatientEmail:  appt.PatientEmail,
		ProviderID:    appt.ProviderID,
		SessionDate:   appt.SessionDate.Format("2006-01-02"),
		TokenNumber:   appt.TokenNumber,
		ScheduledTime: appt.ScheduledTime,
		Status:        string(appt.Status),
		Reason:        reason,
	}
	return s.Emit(ctx, eventType, payload)
}
