package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
)

const sessionColumns = `
	id, provider_id, session_date, start_time, end_time,
	avg_consultation_mins, status, allow_after_hours_call, version,
	created_at, updated_at
`

// The schedule feed writes window times as clock strings in whichever
// convention the source system uses ("09:00", "4:30 PM"). Every scan
// normalizes them to minute-of-day integers before the session reaches
// a caller, so slot arithmetic never touches the raw strings.
func (r *sessionRepository) Get(ctx context.Context, providerID uuid.UUID, date time.Time) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE provider_id = $1
		AND session_date = $2::date
	`
	var session model.Session
	err := r.db.GetContext(ctx, &session, query, providerID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if err := session.NormalizeClocks(); err != nil {
		return nil, fmt.Errorf("failed to normalize session window: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1
	`
	var session model.Session
	err := r.db.GetContext(ctx, &session, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if err := session.NormalizeClocks(); err != nil {
		return nil, fmt.Errorf("failed to normalize session window: %w", err)
	}
	return &session, nil
}
