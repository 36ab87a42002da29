package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medibook/booking-api/internal/model"
)

const appointmentColumns = `
	id, patient_id, patient_email, provider_id, session_id, session_date,
	token_number, scheduled_time, mode, fee, currency, payment_status,
	status, cancelled_by, cancel_reason, rescheduled_from,
	created_at, updated_at
`

// uniqueViolation is the postgres error code raised when the partial
// unique index on (provider_id, session_date, token_number) rejects a
// concurrent insert.
const uniqueViolation = "23505"

// ReserveNextToken is the single contention-sensitive write of the
// system. The session row lock serializes reservations per session;
// the count-and-insert happens inside that critical section, so two
// racing callers can never be issued the same token. The partial
// unique index backs this up at the constraint level.
func (r *appointmentRepository) ReserveNextToken(ctx context.Context, session *model.Session, appt *model.Appointment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer tx.Rollback()

	var status model.SessionStatus
	err = tx.GetContext(ctx, &status, `SELECT status FROM sessions WHERE id = $1 FOR UPDATE`, session.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNoSession
	}
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	switch status {
	case model.SessionStatusCancelled:
		return model.ErrSessionCancelled
	case model.SessionStatusCompleted:
		return model.ErrSessionEnded
	}

	var booked int
	err = tx.GetContext(ctx, &booked, `
		SELECT COUNT(*) FROM appointments
		WHERE session_id = $1
		AND status <> 'cancelled'
	`, session.ID)
	if err != nil {
		return fmt.Errorf("failed to count active appointments: %w", err)
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments (
			id, patient_id, patient_email, provider_id, session_id,
			session_date, token_number, scheduled_time, mode, fee,
			currency, payment_status, status, rescheduled_from,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		appt.ID,
		appt.PatientID,
		appt.PatientEmail,
		appt.ProviderID,
		appt.SessionID,
		appt.SessionDate,
		appt.TokenNumber,
		appt.ScheduledTime,
		appt.Mode,
		appt.Fee,
		appt.Currency,
		appt.PaymentStatus,
		appt.Status,
		appt.RescheduledFrom,
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return model.ErrSlotUnavailable
		}
		return fmt.Errorf("failed to reserve token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE id = $1
	`
	var appt model.Appointment
	err := r.db.GetContext(ctx, &appt, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appt, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}
	if filters.ProviderID != uuid.Nil {
		query += fmt.Sprintf(" AND provider_id = $%d", argCount)
		args = append(args, filters.ProviderID)
		argCount++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}
	if filters.Date != nil {
		query += fmt.Sprintf(" AND session_date = $%d::date", argCount)
		args = append(args, *filters.Date)
		argCount++
	}
	if filters.ExcludePending {
		query += " AND status <> 'payment_pending'"
	}

	query += " ORDER BY scheduled_time ASC"

	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Confirm(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE appointments
		SET status = 'scheduled', payment_status = 'paid', updated_at = $1
		WHERE id = $2
		AND status = 'payment_pending'
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to confirm appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrInvalidTransition
	}
	return nil
}

// Cancel is idempotent by construction: the guarded UPDATE transitions
// at most once, and a second caller observes zero affected rows.
func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, cancelledBy, reason string) (bool, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled',
			payment_status = CASE WHEN payment_status = 'pending' THEN 'failed' ELSE payment_status END,
			cancelled_by = $1,
			cancel_reason = $2,
			updated_at = $3
		WHERE id = $4
		AND status NOT IN ('cancelled', 'completed')
	`
	result, err := r.db.ExecContext(ctx, query, cancelledBy, reason, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to cancel appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) CountActive(ctx context.Context, providerID uuid.UUID, date time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE provider_id = $1
		AND session_date = $2::date
		AND status <> 'cancelled'
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, providerID, date); err != nil {
		return 0, fmt.Errorf("failed to count active appointments: %w", err)
	}
	return count, nil
}

func (r *appointmentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = 'payment_pending'
		AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending appointments: %w", err)
	}
	return appointments, nil
}
