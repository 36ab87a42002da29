package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/booking-api/internal/model"
)

type fakeSessionRepo struct {
	session *model.Session
	err     error
}

func (f *fakeSessionRepo) Get(ctx context.Context, providerID uuid.UUID, date time.Time) (*model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeCountRepo struct {
	count int
	calls int
}

func (f *fakeCountRepo) ReserveNextToken(ctx context.Context, session *model.Session, appt *model.Appointment) error {
	return nil
}
func (f *fakeCountRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return nil, model.ErrAppointmentNotFound
}
func (f *fakeCountRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}
func (f *fakeCountRepo) Confirm(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeCountRepo) Cancel(ctx context.Context, id uuid.UUID, cancelledBy, reason string) (bool, error) {
	return false, nil
}
func (f *fakeCountRepo) CountActive(ctx context.Context, providerID uuid.UUID, date time.Time) (int, error) {
	f.calls++
	return f.count, nil
}
func (f *fakeCountRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Appointment, error) {
	return nil, nil
}

func newTestService(session *model.Session, sessionErr error, booked int) (*Service, *fakeCountRepo) {
	appts := &fakeCountRepo{count: booked}
	svc := NewService(&fakeSessionRepo{session: session, err: sessionErr}, appts)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	}
	return svc, appts
}

func TestGetAvailabilityNoSession(t *testing.T) {
	svc, _ := newTestService(nil, model.ErrNoSession, 0)

	avail, err := svc.GetAvailability(context.Background(), uuid.New(), time.Now(), model.ModeInPerson)
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, model.ReasonNoSession, avail.Reason)
}

func TestGetAvailabilitySessionCancelled(t *testing.T) {
	s := activeSession()
	s.Status = model.SessionStatusCancelled
	svc, _ := newTestService(s, nil, 0)

	avail, err := svc.GetAvailability(context.Background(), uuid.New(), s.Date, model.ModeInPerson)
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, model.ReasonSessionCancelled, avail.Reason)
}

func TestGetAvailabilityZeroCapacityIsNoSession(t *testing.T) {
	s := activeSession()
	s.EndMinute = s.StartMinute + 5
	svc, _ := newTestService(s, nil, 0)

	avail, err := svc.GetAvailability(context.Background(), uuid.New(), s.Date, model.ModeInPerson)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonNoSession, avail.Reason)
}

func TestGetAvailabilitySessionEnded(t *testing.T) {
	s := activeSession()
	svc, _ := newTestService(s, nil, 0)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	}

	avail, err := svc.GetAvailability(context.Background(), uuid.New(), s.Date, model.ModeInPerson)
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, model.ReasonSessionEnded, avail.Reason)
}

func TestGetAvailabilityAfterHoursCallAllowed(t *testing.T) {
	s := activeSession()
	s.AllowAfterHoursCall = true
	svc, _ := newTestService(s, nil, 2)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	}

	inPerson, err := svc.GetAvailability(context.Background(), uuid.New(), s.Date, model.ModeInPerson)
	require.NoError(t, err)
	assert.Equal(t, model.ReasonSessionEnded, inPerson.Reason)

	call, err := svc.GetAvailability(context.Background(), uuid.New(), s.Date, model.ModeCall)
	require.NoError(t, err)
	assert.True(t, call.Available)
	assert.Equal(t, model.ReasonOK, call.Reason)
}

func TestGetAvailabilityFullyBooked(t *testing.T) {
	s := activeSession()
	svc, _ := newTestService(s, nil, 24)

	avail, err := svc.GetAvailability(context.Background(), uuid.New(), s.Date, model.ModeInPerson)
	require.NoError(t, err)
	assert.False(t, avail.Available)
	assert.Equal(t, model.ReasonFullyBooked, avail.Reason)
	assert.Equal(t, 24, avail.BookedCount)
}

func TestGetAvailabilityNextToken(t *testing.T) {
	s := activeSession()
	svc, _ := newTestService(s, nil, 3)

	avail, err := svc.GetAvailability(context.Background(), uuid.New(), s.Date, model.ModeInPerson)
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, model.ReasonOK, avail.Reason)
	require.NotNil(t, avail.NextToken)
	assert.Equal(t, 4, *avail.NextToken)
	assert.Equal(t, 24, avail.Capacity)
}

func TestGetAvailabilityCachesAndRefreshInvalidates(t *testing.T) {
	s := activeSession()
	svc, appts := newTestService(s, nil, 3)
	providerID := uuid.New()

	_, err := svc.GetAvailability(context.Background(), providerID, s.Date, model.ModeInPerson)
	require.NoError(t, err)
	_, err = svc.GetAvailability(context.Background(), providerID, s.Date, model.ModeInPerson)
	require.NoError(t, err)
	assert.Equal(t, 1, appts.calls, "second read should hit the cache")

	svc.Refresh(providerID, s.Date)
	_, err = svc.GetAvailability(context.Background(), providerID, s.Date, model.ModeInPerson)
	require.NoError(t, err)
	assert.Equal(t, 2, appts.calls, "refresh should force a recompute")
}
