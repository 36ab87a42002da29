package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	// SessionRepository reads clinic session definitions. Sessions are
	// owned by the provider scheduling system; the booking core never
	// writes them.
	SessionRepository interface {
		Get(ctx context.Context, providerID uuid.UUID, date time.Time) (*model.Session, error)
		GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	}

	// AppointmentRepository is the only component allowed to mutate
	// booking counts. ReserveNextToken and Cancel are the two
	// contention-sensitive operations.
	AppointmentRepository interface {
		// ReserveNextToken atomically re-checks capacity and inserts the
		// appointment with the next token number, filling TokenNumber and
		// ScheduledTime. Returns model.ErrSlotUnavailable when the session
		// is full and model.ErrSessionCancelled / model.ErrSessionEnded
		// when its status changed since the availability read.
		ReserveNextToken(ctx context.Context, session *model.Session, appt *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// Confirm moves a payment_pending appointment to scheduled/paid.
		// Returns model.ErrInvalidTransition when the row is no longer
		// payment_pending (e.g. the reservation sweep cancelled it first).
		Confirm(ctx context.Context, id uuid.UUID) error
		// Cancel releases the token slot. It reports whether this call
		// performed the transition: false means the appointment was
		// already cancelled and the call was a no-op.
		Cancel(ctx context.Context, id uuid.UUID, cancelledBy, reason string) (bool, error)
		CountActive(ctx context.Context, providerID uuid.UUID, date time.Time) (int, error)
		// ListStalePending returns payment_pending appointments created
		// before the cutoff, for the reservation sweep.
		ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Appointment, error)
	}

	PaymentOrderRepository interface {
		Create(ctx context.Context, order *model.PaymentOrder) error
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentOrder, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.PaymentOrderStatus, paymentID *string) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		BeginTx(ctx context.Context) (*sql.Tx, error)
		UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status string, errorMessage *string, retryAt *time.Time) error
		MoveToDeadLetter(ctx context.Context, tx *sql.Tx, event *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
