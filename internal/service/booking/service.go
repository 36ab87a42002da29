package booking

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
	"github.com/medibook/booking-api/pkg/metrics"
	"github.com/medibook/booking-api/pkg/payment"
)

// TaskEnqueuer schedules the delayed reservation-expiry task for a new
// reservation. Implemented over asynq in internal/worker.
type TaskEnqueuer interface {
	EnqueueReservationExpiry(ctx context.Context, appointmentID uuid.UUID, delay time.Duration) error
}

type Config struct {
	// ReservationTTL bounds how long a payment_pending appointment may
	// hold its token slot before the sweep releases it.
	ReservationTTL  time.Duration
	ConsultationFee int64
	Currency        string
}

// Service drives the booking saga:
//
//	reserve slot -> create payment order -> await gateway -> verify
//
// Every failure branch after the reservation compensates by cancelling
// the appointment, releasing its token slot, before the error is
// returned. Cancellation is idempotent, so racing failure signals
// (gateway error plus client timeout) collapse to one transition.
type Service struct {
	appointments repository.AppointmentRepository
	orders       repository.PaymentOrderRepository
	availability *availability.Service
	gateway      payment.Gateway
	events       *event.Service
	tasks        TaskEnqueuer
	metrics      *metrics.Metrics
	config       Config
	logger       *zerolog.Logger
}

func NewService(
	appointments repository.AppointmentRepository,
	orders repository.PaymentOrderRepository,
	availabilitySvc *availability.Service,
	gateway payment.Gateway,
	events *event.Service,
	tasks TaskEnqueuer,
	m *metrics.Metrics,
	config Config,
	logger *zerolog.Logger,
) *Service {
	if config.ReservationTTL <= 0 {
		config.ReservationTTL = 15 * time.Minute
	}
	return &Service{
		appointments: appointments,
		orders:       orders,
		availability: availabilitySvc,
		gateway:      gateway,
		events:       events,
		tasks:        tasks,
		metrics:      m,
		config:       config,
		logger:       logger,
	}
}

// Book runs saga step 1: validate, then atomically reserve the next
// token as a payment_pending appointment. Nothing is created on
// failure, so no compensation is needed here.
func (s *Service) Book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	date, err := time.Parse("2006-01-02", req.AppointmentDate)
	if err != nil {
		return nil, fmt.Errorf("invalid appointment date: %w", err)
	}
	if req.Fee != s.config.ConsultationFee {
		return nil, fmt.Errorf("fee mismatch: expected %d, got %d", s.config.ConsultationFee, req.Fee)
	}

	// Fresh availability read right before the reserve. The reserve is
	// still the authority; this rejects mode/session-state problems
	// (ended, cancelled, absent) with a precise reason first.
	avail, err := s.availability.GetAvailability(ctx, req.ProviderID, date, req.Mode)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, availabilityErr(avail.Reason)
	}

	appt := &model.Appointment{
		PatientID:     req.PatientID,
		PatientEmail:  req.PatientEmail,
		Mode:          req.Mode,
		Fee:           req.Fee,
		Currency:      s.config.Currency,
		PaymentStatus: model.PaymentStatusPending,
		Status:        model.AppointmentStatusPaymentPending,
	}
	if err := s.appointments.ReserveNextToken(ctx, avail.Session, appt); err != nil {
		return nil, err
	}
	s.availability.Refresh(appt.ProviderID, appt.SessionDate)
	s.metrics.ReservationsTotal.Inc()

	// The delayed expiry task is the safety net for abandoned
	// checkouts. Losing the enqueue is tolerable: the periodic sweep
	// catches stale reservations as well.
	if err := s.tasks.EnqueueReservationExpiry(ctx, appt.ID, s.config.ReservationTTL); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to enqueue reservation expiry")
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("provider_id", appt.ProviderID.String()).
		Int("token", appt.TokenNumber).
		Msg("token reserved")
	return appt, nil
}

// CreatePaymentOrder runs saga step 2. A gateway failure here
// compensates immediately: the reservation cannot outlive a checkout
// that never opened.
func (s *Service) CreatePaymentOrder(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentOrder, error) {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != model.AppointmentStatusPaymentPending {
		return nil, model.ErrInvalidTransition
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, appt.Fee, appt.Currency, appt.ID.String())
	if err != nil {
		s.compensate(ctx, appt, model.CancelReasonOrderFailed)
		return nil, fmt.Errorf("%w: %v", model.ErrPaymentOrderFailed, err)
	}

	order := &model.PaymentOrder{
		AppointmentID:  appt.ID,
		GatewayOrderID: gwOrder.OrderID,
		GatewayKeyID:   gwOrder.KeyID,
		Amount:         gwOrder.Amount,
		Currency:       gwOrder.Currency,
		Status:         model.PaymentOrderStatusCreated,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		s.compensate(ctx, appt, model.CancelReasonOrderFailed)
		return nil, fmt.Errorf("%w: %v", model.ErrPaymentOrderFailed, err)
	}
	return order, nil
}

// VerifyPayment resolves the awaited gateway callback. Success
// finalizes the appointment; any verification failure compensates.
func (s *Service) VerifyPayment(ctx context.Context, appointmentID uuid.UUID, req *model.VerifyPaymentRequest) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if order.GatewayOrderID != req.OrderID {
		s.compensate(ctx, appt, model.CancelReasonVerificationFailed)
		return nil, fmt.Errorf("%w: order mismatch", model.ErrPaymentVerificationFailed)
	}

	if err := s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature); err != nil {
		if updErr := s.orders.UpdateStatus(ctx, order.ID, model.PaymentOrderStatusFailed, &req.PaymentID); updErr != nil {
			s.logger.Error().Err(updErr).Str("order_id", order.ID.String()).Msg("failed to mark order failed")
		}
		s.compensate(ctx, appt, model.CancelReasonVerificationFailed)
		return nil, fmt.Errorf("%w: %v", model.ErrPaymentVerificationFailed, err)
	}

	if err := s.appointments.Confirm(ctx, appt.ID); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			// The snapshot read at the top of the call can be stale by
			// now; re-read before deciding whether the sweep won the race
			// and released the slot while the user sat on checkout.
			current, getErr := s.appointments.Get(ctx, appt.ID)
			if getErr == nil && !current.Active() {
				return nil, model.ErrReservationExpired
			}
		}
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, model.PaymentOrderStatusPaid, &req.PaymentID); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to mark order paid")
	}

	appt, err = s.appointments.Get(ctx, appt.ID)
	if err != nil {
		return nil, err
	}
	s.availability.Refresh(appt.ProviderID, appt.SessionDate)

	if err := s.events.EmitAppointment(ctx, model.EventAppointmentBooked, appt, ""); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to emit booked event")
	}
	s.metrics.PaymentsVerifiedTotal.Inc()

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Int("token", appt.TokenNumber).
		Msg("booking confirmed")
	return appt, nil
}

// AbandonPayment handles the user closing checkout without paying.
// Informational from the user's side, a compensation on ours.
func (s *Service) AbandonPayment(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	s.compensate(ctx, appt, model.CancelReasonPaymentAbandoned)
	return nil
}

// Cancel is the shared exit used by explicit cancellation and every
// compensating branch. Cancelling an already-cancelled appointment is
// a silent no-op so racing failure signals stay safe.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID, cancelledBy, reason string) error {
	transitioned, err := s.appointments.Cancel(ctx, appointmentID, cancelledBy, reason)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return err
	}
	s.availability.Refresh(appt.ProviderID, appt.SessionDate)
	s.metrics.CancellationsTotal.WithLabelValues(reason).Inc()

	if err := s.events.EmitAppointment(ctx, model.EventAppointmentCancelled, appt, reason); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to emit cancelled event")
	}

	s.logger.Info().
		Str("appointment_id", appointmentID.String()).
		Str("reason", reason).
		Msg("appointment cancelled")
	return nil
}

// ExpireReservation cancels a reservation whose payment never resolved
// within the TTL. Called by the delayed expiry task and the periodic
// sweep; both routes converge on the idempotent cancel.
func (s *Service) ExpireReservation(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, model.ErrAppointmentNotFound) {
			return nil
		}
		return err
	}
	if appt.Status != model.AppointmentStatusPaymentPending {
		return nil
	}
	if time.Since(appt.CreatedAt) < s.config.ReservationTTL {
		// Task fired early (clock skew, redelivery); the periodic sweep
		// will revisit.
		return nil
	}

	s.metrics.ReservationsExpiredTotal.Inc()
	return s.Cancel(ctx, appointmentID, "system", model.CancelReasonReservationTimeout)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.appointments.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.appointments.List(ctx, filters)
}

// compensate releases the token slot after a failed saga step. The
// error path must finish compensation before surfacing the failure, so
// problems here are logged, never returned.
func (s *Service) compensate(ctx context.Context, appt *model.Appointment, reason string) {
	s.metrics.CompensationsTotal.WithLabelValues(reason).Inc()
	if err := s.Cancel(ctx, appt.ID, "system", reason); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("reason", reason).
			Msg("compensating cancellation failed")
	}
}

func availabilityErr(reason model.AvailabilityReason) error {
	switch reason {
	case model.ReasonNoSession:
		return model.ErrNoSession
	case model.ReasonSessionCancelled:
		return model.ErrSessionCancelled
	case model.ReasonSessionEnded:
		return model.ErrSessionEnded
	default:
		return model.ErrSlotUnavailable
	}
}
