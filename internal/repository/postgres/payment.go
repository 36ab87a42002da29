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

func (r *paymentOrderRepository) Create(ctx context.Context, order *model.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (
			id, appointment_id, gateway_order_id, gateway_key_id,
			amount, currency, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.AppointmentID,
		order.GatewayOrderID,
		order.GatewayKeyID,
		order.Amount,
		order.Currency,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment order: %w", err)
	}
	return nil
}

func (r *paymentOrderRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.PaymentOrder, error) {
	query := `
		SELECT id, appointment_id, gateway_order_id, gateway_key_id,
			   payment_id, amount, currency, status, created_at, updated_at
		FROM payment_orders
		WHERE appointment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var order model.PaymentOrder
	err := r.db.GetContext(ctx, &order, query, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPaymentOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}
	return &order, nil
}

func (r *paymentOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PaymentOrderStatus, paymentID *string) error {
	query := `
		UPDATE payment_orders
		SET status = $1, payment_id = COALESCE($2, payment_id), updated_at = $3
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query, status, paymentID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment order: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrPaymentOrderNotFound
	}
	return nil
}
