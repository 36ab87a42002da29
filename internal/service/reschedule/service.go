package reschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
	"github.com/medibook/booking-api/internal/service/availability"
	"github.com/medibook/booking-api/internal/service/event"
)

// Service moves a cancelled appointment onto a new session date. It is
// the constrained variant of the booking saga: the fee was already
// settled against the original booking, so the new appointment enters
// directly at scheduled after the atomic slot reservation — no payment
// steps, no payment compensation.
type Service struct {
	appointments repository.AppointmentRepository
	sessions     repository.SessionRepository
	availability *availability.Service
	events       *event.Service
	logger       *zerolog.Logger
}

func NewService(
	appointments repository.AppointmentRepository,
	sessions repository.SessionRepository,
	availabilitySvc *availability.Service,
	events *event.Service,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		appointments: appointments,
		sessions:     sessions,
		availability: availabilitySvc,
		events:       events,
		logger:       logger,
	}
}

func (s *Service) Reschedule(ctx context.Context, appointmentID uuid.UUID, newDate time.Time) (*model.Appointment, error) {
	src, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	// Reschedule is only offered after a provider/admin cancellation;
	// swapping an active booking is a different operation entirely.
	if src.Status != model.AppointmentStatusCancelled {
		return nil, model.ErrRescheduleNotEligible
	}

	// The cancelled session's capacity is frozen; letting the patient
	// pick the same calendar date again would re-enter the session that
	// was cancelled out from under them.
	if sameDay(src.SessionDate, newDate) {
		return nil, model.ErrRescheduleBlocked
	}

	session, err := s.sessions.Get(ctx, src.ProviderID, newDate)
	if err != nil {
		return nil, err
	}
	if session.Status == model.SessionStatusCancelled {
		return nil, model.ErrSessionCancelled
	}

	newAppt := &model.Appointment{
		PatientID:       src.PatientID,
		PatientEmail:    src.PatientEmail,
		Mode:            src.Mode,
		Fee:             src.Fee,
		Currency:        src.Currency,
		PaymentStatus:   src.PaymentStatus,
		Status:          model.AppointmentStatusScheduled,
		RescheduledFrom: &src.ID,
	}
	// Same check-and-reserve atomicity as a fresh booking; on
	// ErrSlotUnavailable the source appointment is untouched.
	if err := s.appointments.ReserveNextToken(ctx, session, newAppt); err != nil {
		return nil, err
	}
	s.availability.Refresh(newAppt.ProviderID, newAppt.SessionDate)

	if err := s.events.EmitAppointment(ctx, model.EventAppointmentRescheduled, newAppt, ""); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", newAppt.ID.String()).Msg("failed to emit rescheduled event")
	}

	s.logger.Info().
		Str("from", src.ID.String()).
		Str("to", newAppt.ID.String()).
		Str("date", newDate.Format("2006-01-02")).
		Int("token", newAppt.TokenNumber).
		Msg("appointment rescheduled")
	return newAppt, nil
}

// ParseDate parses the wire-format reschedule date and normalizes it to
// calendar-day granularity.
func ParseDate(value string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid appointment date: %w", err)
	}
	return date, nil
}

// IsBlocked reports whether the given error is the blocked-date case,
// which UIs render as a disabled option rather than a failure.
func IsBlocked(err error) bool {
	return errors.Is(err, model.ErrRescheduleBlocked)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
