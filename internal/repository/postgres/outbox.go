package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
)

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	event.ID = uuid.New()
	event.Status = string(model.OutboxStatusPending)
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, error_message,
			   retry_count, retry_at, created_at, processed_at, updated_at
		FROM outbox_events
		WHERE status IN ('pending', 'failed')
		AND (retry_at IS NULL OR retry_at <= NOW())
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`
	var events []*model.OutboxEvent
	err := r.db.SelectContext(ctx, &events, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *outboxRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status string, errorMessage *string, retryAt *time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = $1,
			error_message = $2,
			retry_at = $3,
			retry_count = CASE WHEN $1 = 'failed' THEN retry_count + 1 ELSE retry_count END,
			processed_at = CASE WHEN $1 = 'processed' THEN NOW() ELSE processed_at END,
			updated_at = NOW()
		WHERE id = $4
	`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, status, errorMessage, retryAt, id)
	} else {
		_, err = r.db.ExecContext(ctx, query, status, errorMessage, retryAt, id)
	}
	return err
}

// MoveToDeadLetter copies the event into the dead-letter table and
// removes the original so the poller stops picking it up.
func (r *outboxRepository) MoveToDeadLetter(ctx context.Context, tx *sql.Tx, event *model.OutboxEvent) error {
	insertQuery := `
		INSERT INTO outbox_events_deadletter (
			event_id, event_type, payload, error_message,
			retry_count, last_retry_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	deleteQuery := `DELETE FROM outbox_events WHERE id = $1`

	exec := r.db.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}

	if _, err := exec(ctx, insertQuery, event.ID, event.EventType, event.Payload,
		event.ErrorMessage, event.RetryCount, event.RetryAt); err != nil {
		return fmt.Errorf("failed to insert dead-letter event: %w", err)
	}
	if _, err := exec(ctx, deleteQuery, event.ID); err != nil {
		return fmt.Errorf("failed to delete outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}
