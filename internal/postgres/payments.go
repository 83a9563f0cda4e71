package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

type PaymentRepo struct{ tx pgx.Tx }

const paymentCols = `id, order_id, amount, payment_method, status,
	checkout_session_id, payment_intent_id, checkout_url, created_at, updated_at`

func scanPayment(row pgx.Row) (orders.Payment, error) {
	var p orders.Payment
	var method, status string
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &method, &status,
		&p.CheckoutSessionID, &p.PaymentIntentID, &p.CheckoutURL, &p.CreatedAt, &p.UpdatedAt)
	p.Method = orders.PaymentMethod(method)
	p.Status = orders.PaymentStatus(status)
	return p, mapErr(err)
}

func (r *PaymentRepo) Create(ctx context.Context, p *orders.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.tx.QueryRow(ctx, `
		INSERT INTO payments(id, order_id, amount, payment_method, status,
			checkout_session_id, payment_intent_id, checkout_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.OrderID, p.Amount, string(p.Method), string(p.Status),
		p.CheckoutSessionID, p.PaymentIntentID, p.CheckoutURL).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapErr(err)
}

func (r *PaymentRepo) GetByOrder(ctx context.Context, orderID string) (orders.Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE order_id=$1`, orderID))
}

func (r *PaymentRepo) GetBySession(ctx context.Context, sessionID string) (orders.Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE checkout_session_id=$1`, sessionID))
}

func (r *PaymentRepo) GetByIntent(ctx context.Context, intentID string) (orders.Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `
		SELECT `+paymentCols+` FROM payments WHERE payment_intent_id=$1
		ORDER BY created_at LIMIT 1`, intentID))
}

func (r *PaymentRepo) Update(ctx context.Context, p *orders.Payment) error {
	err := r.tx.QueryRow(ctx, `
		UPDATE payments
		SET amount=$2, payment_method=$3, status=$4, checkout_session_id=$5,
		    payment_intent_id=$6, checkout_url=$7, updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		p.ID, p.Amount, string(p.Method), string(p.Status),
		p.CheckoutSessionID, p.PaymentIntentID, p.CheckoutURL).Scan(&p.UpdatedAt)
	return mapErr(err)
}
