package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/pkg/logger"
	"github.com/medibook/booking-api/pkg/metrics"
)

type fakeBroker struct {
	mu        sync.Mutex
	published map[string]int
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: make(map[string]int)}
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published[channel]++
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBroker) Close() error { return nil }

type statusUpdate struct {
	id      uuid.UUID
	status  string
	retryAt *time.Time
}

type fakeOutboxRepo struct {
	mu         sync.Mutex
	pending    []*model.OutboxEvent
	updates    []statusUpdate
	deadletter []*model.OutboxEvent
	db         *sql.DB
	mock       sqlmock.Sqlmock
}

func newFakeOutboxRepo(t *testing.T) *fakeOutboxRepo {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &fakeOutboxRepo{db: db, mock: mock}
}

func (r *fakeOutboxRepo) Create(ctx context.Context, evt *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, evt)
	return nil
}

func (r *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) BeginTx(ctx context.Context) (*sql.Tx, error) {
	r.mock.ExpectBegin()
	r.mock.ExpectCommit()
	return r.db.Begin()
}

func (r *fakeOutboxRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status string, errorMessage *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, statusUpdate{id: id, status: status, retryAt: retryAt})
	return nil
}

func (r *fakeOutboxRepo) MoveToDeadLetter(ctx context.Context, tx *sql.Tx, evt *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deadletter = append(r.deadletter, evt)
	return nil
}

func (r *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 2, nil
}

func pendingEvent(eventType string, retryCount int) *model.OutboxEvent {
	payload, _ := json.Marshal(map[string]string{"appointment_id": uuid.NewString()})
	return &model.OutboxEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Payload:    payload,
		Status:     string(model.OutboxStatusPending),
		RetryCount: retryCount,
	}
}

func newProcessor(repo *fakeOutboxRepo, broker *fakeBroker) *OutboxProcessor {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
		MaxRetries:    3,
	}, log, metrics.New("outbox_test"))
}

func TestProcessEventsPublishesAndMarksProcessed(t *testing.T) {
	repo := newFakeOutboxRepo(t)
	broker := newFakeBroker()
	repo.pending = []*model.OutboxEvent{
		pendingEvent(model.EventAppointmentBooked, 0),
		pendingEvent(model.EventAppointmentCancelled, 0),
	}

	p := newProcessor(repo, broker)
	require.NoError(t, p.processEvents(context.Background()))

	assert.Equal(t, 1, broker.published[model.EventAppointmentBooked])
	assert.Equal(t, 1, broker.published[model.EventAppointmentCancelled])

	require.Len(t, repo.updates, 2)
	for _, u := range repo.updates {
		assert.Equal(t, string(model.OutboxStatusProcessed), u.status)
	}
	assert.Empty(t, repo.deadletter)
}

func TestProcessEventFailureSchedulesRetry(t *testing.T) {
	repo := newFakeOutboxRepo(t)
	broker := newFakeBroker()
	broker.err = errors.New("broker down")
	evt := pendingEvent(model.EventAppointmentBooked, 0)
	repo.pending = []*model.OutboxEvent{evt}

	p := newProcessor(repo, broker)
	require.NoError(t, p.processEvents(context.Background()))

	require.Len(t, repo.updates, 1)
	assert.Equal(t, string(model.OutboxStatusFailed), repo.updates[0].status)
	require.NotNil(t, repo.updates[0].retryAt)
	assert.True(t, repo.updates[0].retryAt.After(time.Now().Add(-time.Second)))
	assert.Empty(t, repo.deadletter)
}

func TestProcessEventExhaustedRetriesMovesToDeadLetter(t *testing.T) {
	repo := newFakeOutboxRepo(t)
	broker := newFakeBroker()
	broker.err = errors.New("broker down")
	evt := pendingEvent(model.EventAppointmentBooked, 2)
	repo.pending = []*model.OutboxEvent{evt}

	p := newProcessor(repo, broker)
	require.NoError(t, p.processEvents(context.Background()))

	require.Len(t, repo.deadletter, 1)
	assert.Equal(t, evt.ID, repo.deadletter[0].ID)
	assert.Empty(t, repo.updates)
}

func TestCleanup(t *testing.T) {
	repo := newFakeOutboxRepo(t)
	p := newProcessor(repo, newFakeBroker())

	assert.NoError(t, p.Cleanup(context.Background(), 24*time.Hour))
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, time.Second, backoff(0, time.Second))
	assert.Equal(t, 2*time.Second, backoff(1, time.Second))
	assert.Equal(t, 4*time.Second, backoff(2, time.Second))
	assert.Equal(t, 5*time.Minute, backoff(20, time.Second))
}

func TestNewOutboxProcessorRejectsInvalidConfig(t *testing.T) {
	repo := newFakeOutboxRepo(t)
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	assert.Panics(t, func() {
		NewOutboxProcessor(repo, newFakeBroker(), OutboxProcessorConfig{
			PollInterval:  time.Second,
			RetryAttempts: 1,
			RetryDelay:    time.Millisecond,
		}, log, metrics.New("outbox_invalid_test"))
	})
}
