package reschedule

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/service/availability"
	"github.com/medibook/booking-api/internal/service/event"
)

type memAppointmentRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Appointment
}

func newMemAppointmentRepo() *memAppointmentRepo {
	return &memAppointmentRepo{byID: make(map[uuid.UUID]*model.Appointment)}
}

func (r *memAppointmentRepo) put(a *model.Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = a
}

func (r *memAppointmentRepo) ReserveNextToken(ctx context.Context, session *model.Session, appt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch session.Status {
	case model.SessionStatusCancelled:
		return model.ErrSessionCancelled
	case model.SessionStatusCompleted:
		return model.ErrSessionEnded
	}

	booked := 0
	for _, a := range r.byID {
		if a.SessionID == session.ID && a.Status != model.AppointmentStatusCancelled {
			booked++
		}
	}
	if booked >= session.Capacity() {
		return model.ErrSlotUnavailable
	}

	appt.ID = uuid.New()
	appt.SessionID = session.ID
	appt.ProviderID = session.ProviderID
	appt.SessionDate = session.Date
	appt.TokenNumber = booked + 1
	appt.ScheduledTime = session.SlotTime(appt.TokenNumber)
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt

	stored := *appt
	r.byID[appt.ID] = &stored
	return nil
}

func (r *memAppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, model.ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *memAppointmentRepo) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}
func (r *memAppointmentRepo) Confirm(ctx context.Context, id uuid.UUID) error { return nil }
func (r *memAppointmentRepo) Cancel(ctx context.Context, id uuid.UUID, cancelledBy, reason string) (bool, error) {
	return false, nil
}
func (r *memAppointmentRepo) CountActive(ctx context.Context, providerID uuid.UUID, date time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.byID {
		if a.ProviderID == providerID && a.SessionDate.Equal(date) && a.Status != model.AppointmentStatusCancelled {
			count++
		}
	}
	return count, nil
}
func (r *memAppointmentRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Appointment, error) {
	return nil, nil
}

type memSessionRepo struct {
	byDate map[string]*model.Session
}

func (r *memSessionRepo) Get(ctx context.Context, providerID uuid.UUID, date time.Time) (*model.Session, error) {
	s, ok := r.byDate[date.Format("2006-01-02")]
	if !ok {
		return nil, model.ErrNoSession
	}
	return s, nil
}

func (r *memSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	for _, s := range r.byDate {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, model.ErrNoSession
}

type memOutboxRepo struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func (r *memOutboxRepo) Create(ctx context.Context, evt *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}
func (r *memOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}
func (r *memOutboxRepo) BeginTx(ctx context.Context) (*sql.Tx, error) { return nil, nil }
func (r *memOutboxRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status string, errorMessage *string, retryAt *time.Time) error {
	return nil
}
func (r *memOutboxRepo) MoveToDeadLetter(ctx context.Context, tx *sql.Tx, evt *model.OutboxEvent) error {
	return nil
}
func (r *memOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newSession(providerID uuid.UUID, date time.Time, status model.SessionStatus) *model.Session {
	return &model.Session{
		ID:                  uuid.New(),
		ProviderID:          providerID,
		Date:                date,
		StartMinute:         540,
		EndMinute:           1020,
		AvgConsultationMins: 20,
		Status:              status,
	}
}

type fixture struct {
	svc      *Service
	appts    *memAppointmentRepo
	sessions *memSessionRepo
	outbox   *memOutboxRepo
	provider uuid.UUID
	oldDate  time.Time
	newDate  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	provider := uuid.New()
	oldDate := time.Now().Add(48 * time.Hour).UTC().Truncate(24 * time.Hour)
	newDate := oldDate.Add(24 * time.Hour)

	sessions := &memSessionRepo{byDate: map[string]*model.Session{
		oldDate.Format("2006-01-02"): newSession(provider, oldDate, model.SessionStatusCancelled),
		newDate.Format("2006-01-02"): newSession(provider, newDate, model.SessionStatusActive),
	}}
	appts := newMemAppointmentRepo()
	outbox := &memOutboxRepo{}
	logger := zerolog.Nop()

	availabilitySvc := availability.NewService(sessions, appts)
	svc := NewService(appts, sessions, availabilitySvc, event.NewService(outbox), &logger)

	return &fixture{
		svc:      svc,
		appts:    appts,
		sessions: sessions,
		outbox:   outbox,
		provider: provider,
		oldDate:  oldDate,
		newDate:  newDate,
	}
}

func (f *fixture) cancelledAppointment() *model.Appointment {
	reason := model.CancelReasonSessionCancelled
	by := "provider"
	a := &model.Appointment{
		ID:            uuid.New(),
		PatientID:     uuid.New(),
		PatientEmail:  "patient@example.com",
		ProviderID:    f.provider,
		SessionDate:   f.oldDate,
		TokenNumber:   3,
		Mode:          model.ModeInPerson,
		Fee:           50000,
		Currency:      "INR",
		PaymentStatus: model.PaymentStatusPaid,
		Status:        model.AppointmentStatusCancelled,
		CancelledBy:   &by,
		CancelReason:  &reason,
	}
	f.appts.put(a)
	return a
}

func TestRescheduleSuccess(t *testing.T) {
	f := newFixture(t)
	src := f.cancelledAppointment()

	got, err := f.svc.Reschedule(context.Background(), src.ID, f.newDate)
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusScheduled, got.Status)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, 1, got.TokenNumber)
	assert.Equal(t, f.newDate, got.SessionDate)
	require.NotNil(t, got.RescheduledFrom)
	assert.Equal(t, src.ID, *got.RescheduledFrom)

	types := make([]string, 0, len(f.outbox.events))
	for _, e := range f.outbox.events {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, model.EventAppointmentRescheduled)
}

func TestRescheduleBlockedOnCancelledSessionDate(t *testing.T) {
	f := newFixture(t)
	src := f.cancelledAppointment()

	_, err := f.svc.Reschedule(context.Background(), src.ID, f.oldDate)
	assert.ErrorIs(t, err, model.ErrRescheduleBlocked)
}

func TestRescheduleRequiresCancelledSource(t *testing.T) {
	f := newFixture(t)
	src := f.cancelledAppointment()
	src.Status = model.AppointmentStatusScheduled
	f.appts.put(src)

	_, err := f.svc.Reschedule(context.Background(), src.ID, f.newDate)
	assert.ErrorIs(t, err, model.ErrRescheduleNotEligible)
}

func TestRescheduleToCancelledTargetSession(t *testing.T) {
	f := newFixture(t)
	src := f.cancelledAppointment()
	f.sessions.byDate[f.newDate.Format("2006-01-02")].Status = model.SessionStatusCancelled

	_, err := f.svc.Reschedule(context.Background(), src.ID, f.newDate)
	assert.ErrorIs(t, err, model.ErrSessionCancelled)
}

func TestRescheduleMissingTargetSession(t *testing.T) {
	f := newFixture(t)
	src := f.cancelledAppointment()

	_, err := f.svc.Reschedule(context.Background(), src.ID, f.newDate.Add(24*time.Hour))
	assert.ErrorIs(t, err, model.ErrNoSession)
}

func TestRescheduleUnknownAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reschedule(context.Background(), uuid.New(), f.newDate)
	assert.ErrorIs(t, err, model.ErrAppointmentNotFound)
}

func TestParseDate(t *testing.T) {
	date, err := ParseDate("2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), date)

	_, err = ParseDate("10-03-2026")
	assert.Error(t, err)
}

func TestIsBlocked(t *testing.T) {
	assert.True(t, IsBlocked(model.ErrRescheduleBlocked))
	assert.False(t, IsBlocked(model.ErrNoSession))
}
