package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Lifecycle event types published to the notification bridge. These are
// fire-and-forget; saga correctness never depends on their delivery.
const (
	EventAppointmentBooked      = "appointment.booked"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventAppointmentCancelled   = "appointment.cancelled"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// AppointmentEvent is the payload carried by every lifecycle event.
type AppointmentEvent struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	PatientEmail  string     `json:"patient_email,omitempty"`
	ProviderID    uuid.UUID  `json:"provider_id"`
	SessionDate   string     `json:"session_date"`
	TokenNumber   int        `json:"token_number"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	RescheduledTo *uuid.UUID `json:"rescheduled_to,omitempty"`
}
