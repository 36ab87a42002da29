package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
)

const (
	cacheTTL     = 5 * time.Second
	cacheCleanup = time.Minute
)

// Service answers "is this date bookable, and what token would I get".
// It is a read path: results are an optimistic preview and the booking
// saga always re-checks inside its own reservation transaction, so a
// short-lived cache is safe here.
type Service struct {
	sessions     repository.SessionRepository
	appointments repository.AppointmentRepository
	cache        *gocache.Cache
	now          func() time.Time
}

func NewService(sessions repository.SessionRepository, appointments repository.AppointmentRepository) *Service {
	return &Service{
		sessions:     sessions,
		appointments: appointments,
		cache:        gocache.New(cacheTTL, cacheCleanup),
		now:          time.Now,
	}
}

func cacheKey(providerID uuid.UUID, date time.Time, mode model.ConsultationMode) string {
	return fmt.Sprintf("%s|%s|%s", providerID, date.Format("2006-01-02"), mode)
}

// GetAvailability resolves the single reason enum clients consume
// instead of re-deriving "full" vs "cancelled" vs "ended" vs "absent"
// per screen.
func (s *Service) GetAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, mode model.ConsultationMode) (*model.Availability, error) {
	key := cacheKey(providerID, date, mode)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.Availability), nil
	}

	avail, err := s.compute(ctx, providerID, date, mode)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(key, avail)
	return avail, nil
}

// Refresh drops the cached snapshot for a provider/date. Mutating
// flows call this after a reservation or cancellation so the preview
// catches up immediately instead of waiting out the TTL.
func (s *Service) Refresh(providerID uuid.UUID, date time.Time) {
	for _, mode := range []model.ConsultationMode{model.ModeInPerson, model.ModeCall} {
		s.cache.Delete(cacheKey(providerID, date, mode))
	}
}

func (s *Service) compute(ctx context.Context, providerID uuid.UUID, date time.Time, mode model.ConsultationMode) (*model.Availability, error) {
	session, err := s.sessions.Get(ctx, providerID, date)
	if errors.Is(err, model.ErrNoSession) {
		return &model.Availability{Reason: model.ReasonNoSession}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	avail := &model.Availability{
		Reason:         model.ReasonOK,
		Capacity:       session.Capacity(),
		SessionID:      &session.ID,
		SessionVersion: session.Version,
		Session:        session,
	}

	if session.Status == model.SessionStatusCancelled {
		avail.Reason = model.ReasonSessionCancelled
		return avail, nil
	}

	// A zero-capacity window means the session cannot seat a single
	// consultation; callers must see "no session", not "fully booked".
	if avail.Capacity == 0 {
		avail.Reason = model.ReasonNoSession
		return avail, nil
	}

	if session.EndedAt(s.now()) {
		// After-hours call bookings stay open when the provider permits
		// them; walk-ins are done for the day.
		if mode != model.ModeCall || !session.AllowAfterHoursCall {
			avail.Reason = model.ReasonSessionEnded
			return avail, nil
		}
	}

	booked, err := s.appointments.CountActive(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	avail.BookedCount = booked

	if booked >= avail.Capacity {
		avail.Reason = model.ReasonFullyBooked
		return avail, nil
	}

	next := booked + 1
	avail.Available = true
	avail.NextToken = &next
	return avail, nil
}

// Slots returns the derived slot list for a provider/date, with booked
// state folded in. Used by provider-facing schedule views.
func (s *Service) Slots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]model.TokenSlot, error) {
	session, err := s.sessions.Get(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	booked, err := s.appointments.CountActive(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	return ComputeSlots(session, booked), nil
}
