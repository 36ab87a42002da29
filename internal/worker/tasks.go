package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TypeReservationExpire = "reservation:expire"

// ReservationExpiryPayload identifies the reservation a delayed expiry
// task should inspect.
type ReservationExpiryPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

func NewReservationExpiryTask(appointmentID uuid.UUID, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(ReservationExpiryPayload{AppointmentID: appointmentID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeReservationExpire, b)
	opts := []asynq.Option{
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
		asynq.TaskID(fmt.Sprintf("reservation-expire:%s", appointmentID)),
	}
	return task, opts, nil
}

// Enqueuer schedules expiry tasks on the asynq queue. It satisfies the
// booking service's TaskEnqueuer.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueReservationExpiry(ctx context.Context, appointmentID uuid.UUID, delay time.Duration) error {
	task, opts, err := NewReservationExpiryTask(appointmentID, delay)
	if err != nil {
		return fmt.Errorf("failed to build expiry task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue expiry task: %w", err)
	}
	return nil
}
