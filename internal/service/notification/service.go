package notification

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/medibook/booking-api/internal/email"
	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/pkg/messaging"
)

// Service bridges lifecycle events to patient email. It subscribes to
// the broker channels the outbox processor publishes on; delivery here
// is best effort and never feeds back into the booking flow.
type Service struct {
	broker messaging.Broker
	email  email.Service
	logger *zerolog.Logger
}

func NewService(broker messaging.Broker, emailSvc email.Service, logger *zerolog.Logger) *Service {
	return &Service{
		broker: broker,
		email:  emailSvc,
		logger: logger,
	}
}

// Start subscribes to all lifecycle channels and blocks until the
// context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	channels := []string{
		model.EventAppointmentBooked,
		model.EventAppointmentRescheduled,
		model.EventAppointmentCancelled,
	}

	for _, channel := range channels {
		msgs, err := s.broker.Subscribe(ctx, channel)
		if err != nil {
			return err
		}
		go s.consume(ctx, channel, msgs)
	}

	<-ctx.Done()
	return nil
}

func (s *Service) consume(ctx context.Context, channel string, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			if err := s.handle(ctx, channel, raw); err != nil {
				s.logger.Error().Err(err).Str("channel", channel).Msg("failed to handle event")
			}
		}
	}
}

func (s *Service) handle(ctx context.Context, channel string, raw []byte) error {
	var evt model.AppointmentEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return err
	}
	if evt.PatientEmail == "" {
		return nil
	}

	scheduled := evt.ScheduledTime.Format("Mon, 02 Jan 2006 3:04 PM")

	switch channel {
	case model.EventAppointmentBooked:
		return s.email.SendBookingConfirmation(ctx, evt.PatientEmail, evt.TokenNumber, scheduled)
	case model.EventAppointmentRescheduled:
		return s.email.SendRescheduleNotice(ctx, evt.PatientEmail, evt.TokenNumber, scheduled)
	case model.EventAppointmentCancelled:
		return s.email.SendCancellationNotice(ctx, evt.PatientEmail, evt.Reason)
	}
	return nil
}
