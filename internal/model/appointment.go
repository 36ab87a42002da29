package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPaymentPending AppointmentStatus = "payment_pending"
	AppointmentStatusScheduled      AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed      AppointmentStatus = "confirmed"
	AppointmentStatusCompleted      AppointmentStatus = "completed"
	AppointmentStatusCancelled      AppointmentStatus = "cancelled"
	AppointmentStatusNoShow         AppointmentStatus = "no_show"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type ConsultationMode string

const (
	ModeInPerson ConsultationMode = "in_person"
	ModeCall     ConsultationMode = "call"
)

// Cancellation reason tags. Every compensating branch of the booking
// saga converges on a cancel carrying one of these.
const (
	CancelReasonOrderFailed        = "payment_order_failed"
	CancelReasonVerificationFailed = "payment_verification_failed"
	CancelReasonPaymentAbandoned   = "payment_abandoned"
	CancelReasonReservationTimeout = "reservation_timeout"
	CancelReasonPatientRequest     = "patient_cancelled"
	CancelReasonProviderRequest    = "provider_cancelled"
	CancelReasonSessionCancelled   = "session_cancelled"
)

// Appointment is the persisted booking record. It occupies exactly one
// token slot of one session while its status is not cancelled; the
// token number survives cancellation for audit.
type Appointment struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	PatientEmail    string            `db:"patient_email" json:"patient_email,omitempty"`
	ProviderID      uuid.UUID         `db:"provider_id" json:"provider_id"`
	SessionID       uuid.UUID         `db:"session_id" json:"session_id"`
	SessionDate     time.Time         `db:"session_date" json:"session_date"`
	TokenNumber     int               `db:"token_number" json:"token_number"`
	ScheduledTime   time.Time         `db:"scheduled_time" json:"scheduled_time"`
	Mode            ConsultationMode  `db:"mode" json:"mode"`
	Fee             int64             `db:"fee" json:"fee"`
	Currency        string            `db:"currency" json:"currency"`
	PaymentStatus   PaymentStatus     `db:"payment_status" json:"payment_status"`
	Status          AppointmentStatus `db:"status" json:"status"`
	CancelledBy     *string           `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	RescheduledFrom *uuid.UUID        `db:"rescheduled_from" json:"rescheduled_from,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// Active reports whether the appointment still holds its token slot.
// Payment-pending rows hold their slot until the saga resolves.
func (a *Appointment) Active() bool {
	return a.Status != AppointmentStatusCancelled
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID        `json:"patient_id" validate:"required"`
	PatientEmail    string           `json:"patient_email" validate:"omitempty,email"`
	ProviderID      uuid.UUID        `json:"provider_id" validate:"required"`
	AppointmentDate string           `json:"appointment_date" validate:"required,datetime=2006-01-02"`
	Mode            ConsultationMode `json:"mode" validate:"required,oneof=in_person call"`
	Fee             int64            `json:"fee" validate:"required,gt=0"`
}

type VerifyPaymentRequest struct {
	OrderID       string `json:"order_id" validate:"required"`
	PaymentID     string `json:"payment_id" validate:"required"`
	Signature     string `json:"signature" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,max=32"`
}

type CancelAppointmentRequest struct {
	Reason      string `json:"reason" validate:"required,max=256"`
	CancelledBy string `json:"cancelled_by" validate:"omitempty,oneof=patient provider admin system"`
}

type RescheduleAppointmentRequest struct {
	AppointmentDate string `json:"appointment_date" validate:"required,datetime=2006-01-02"`
}

type AppointmentFilters struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Status     AppointmentStatus
	Date       *time.Time
	// ExcludePending drops payment_pending rows; provider queue views
	// must not show reservations that are still in flight.
	ExcludePending bool
}
