package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tech-e/apiserver/types"
)

// PaymentRepository records payment intents created with the gateway.
type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment types.Payment) (types.Payment, error) {
	payment.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO payments (payment_intent_id, amount, currency, client_secret, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		payment.PaymentIntentID,
		payment.Amount,
		payment.Currency,
		payment.ClientSecret,
		payment.CreatedAt,
	).Scan(&payment.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Payment{}, ErrDuplicateKey
		}
		return types.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	return payment, nil
}

func (r *PaymentRepository) GetByIntentID(ctx context.Context, intentID string) (types.Payment, error) {
	const query = `
		SELECT id, payment_intent_id, amount, currency, client_secret, created_at
		FROM payments
		WHERE payment_intent_id = $1`
	var payment types.Payment
	err := r.db.QueryRowContext(ctx, query, intentID).Scan(
		&payment.ID,
		&payment.PaymentIntentID,
		&payment.Amount,
		&payment.Currency,
		&payment.ClientSecret,
		&payment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Payment{}, ErrNotFound
		}
		return types.Payment{}, fmt.Errorf("select payment: %w", err)
	}
	return payment, nil
}

func (r *PaymentRepository) List(ctx context.Context) ([]types.Payment, error) {
	const query = `
		SELECT id, payment_intent_id, amount, currency, client_secret, created_at
		FROM payments
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]types.Payment, 0)
	for rows.Next() {
		var payment types.Payment
		if err := rows.Scan(
			&payment.ID,
			&payment.PaymentIntentID,
			&payment.Amount,
			&payment.Currency,
			&payment.ClientSecret,
			&payment.CreatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}
