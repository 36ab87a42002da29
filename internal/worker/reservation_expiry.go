package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/medibook/booking-api/internal/model"
)

// ReservationExpirer is the slice of the booking service the expiry
// paths need.
type ReservationExpirer interface {
	ExpireReservation(ctx context.Context, appointmentID uuid.UUID) error
}

// HandleReservationExpiry processes delayed expiry tasks. The booking
// service re-checks status and age, so redelivered or early tasks are
// harmless.
func HandleReservationExpiry(bookings ReservationExpirer, logger *zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p ReservationExpiryPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("invalid reservation expiry payload")
			return fmt.Errorf("invalid payload: %w", err)
		}

		if err := bookings.ExpireReservation(ctx, p.AppointmentID); err != nil {
			logger.Error().Err(err).
				Str("appointment_id", p.AppointmentID.String()).
				Msg("failed to expire reservation")
			return err
		}
		return nil
	}
}

// StalePendingLister is the repository slice the sweep scans with.
type StalePendingLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Appointment, error)
}

type SweepConfig struct {
	Interval       time.Duration
	ReservationTTL time.Duration
	BatchSize      int
}

// ReservationSweep is the catch-all behind the delayed expiry tasks:
// it periodically scans for payment_pending appointments older than the
// TTL and expires them. A reservation whose task was lost (enqueue
// failure, queue wipe) still gets released here.
type ReservationSweep struct {
	appointments StalePendingLister
	bookings     ReservationExpirer
	config       SweepConfig
	logger       *zerolog.Logger
}

func NewReservationSweep(
	appointments StalePendingLister,
	bookings ReservationExpirer,
	config SweepConfig,
	logger *zerolog.Logger,
) *ReservationSweep {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.ReservationTTL <= 0 {
		config.ReservationTTL = 15 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &ReservationSweep{
		appointments: appointments,
		bookings:     bookings,
		config:       config,
		logger:       logger,
	}
}

func (s *ReservationSweep) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("starting reservation sweep")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("shutting down reservation sweep")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("reservation sweep failed")
			}
		}
	}
}

// Sweep runs a single pass.
func (s *ReservationSweep) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.config.ReservationTTL)
	stale, err := s.appointments.ListStalePending(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list stale reservations: %w", err)
	}

	for _, appt := range stale {
		if err := s.bookings.ExpireReservation(ctx, appt.ID); err != nil {
			s.logger.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to expire stale reservation")
		}
	}

	if len(stale) > 0 {
		s.logger.Info().Int("count", len(stale)).Msg("swept stale reservations")
	}
	return nil
}
