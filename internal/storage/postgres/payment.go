package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/payment"
)

const (
	createPaymentSQL = `INSERT INTO payments (id, gateway_charge_id, user_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	findCustomerSQL = `SELECT user_id, customer_id, one_click FROM payment_customers WHERE user_id = $1`

	saveCustomerSQL = `INSERT INTO payment_customers (user_id, customer_id, one_click) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET customer_id = EXCLUDED.customer_id, one_click = EXCLUDED.one_click`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	q querier
}

// Create records a successful charge and assigns its ID.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	p.ID = uuid.NewString()
	if _, err := r.q.Exec(ctx, createPaymentSQL, p.ID, p.ChargeID, p.UserID, p.Amount, p.CreatedAt); err != nil {
		return fmt.Errorf("creating payment for charge %q: %w", p.ChargeID, err)
	}
	return nil
}

// FindCustomer returns the user's gateway customer or payment.ErrNoCustomer.
func (r *PaymentRepository) FindCustomer(ctx context.Context, userID string) (*payment.Customer, error) {
	var c payment.Customer
	err := r.q.QueryRow(ctx, findCustomerSQL, userID).Scan(&c.UserID, &c.CustomerID, &c.OneClick)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNoCustomer
		}
		return nil, fmt.Errorf("finding customer of %q: %w", userID, err)
	}
	return &c, nil
}

// SaveCustomer inserts or replaces the user's gateway customer.
func (r *PaymentRepository) SaveCustomer(ctx context.Context, c *payment.Customer) error {
	if _, err := r.q.Exec(ctx, saveCustomerSQL, c.UserID, c.CustomerID, c.OneClick); err != nil {
		return fmt.Errorf("saving customer of %q: %w", c.UserID, err)
	}
	return nil
}
