package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentOrderStatus string

const (
	PaymentOrderStatusCreated PaymentOrderStatus = "created"
	PaymentOrderStatusPaid    PaymentOrderStatus = "paid"
	PaymentOrderStatusFailed  PaymentOrderStatus = "failed"
)

// PaymentOrder is the handle returned by the external gateway for one
// appointment fee. The core never mutates the gateway side after
// creation; only the local status moves.
type PaymentOrder struct {
	ID             uuid.UUID          `db:"id" json:"id"`
	AppointmentID  uuid.UUID          `db:"appointment_id" json:"appointment_id"`
	GatewayOrderID string             `db:"gateway_order_id" json:"gateway_order_id"`
	GatewayKeyID   string             `db:"gateway_key_id" json:"gateway_key_id"`
	PaymentID      *string            `db:"payment_id" json:"payment_id,omitempty"`
	Amount         int64              `db:"amount" json:"amount"`
	Currency       string             `db:"currency" json:"currency"`
	Status         PaymentOrderStatus `db:"status" json:"status"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}
