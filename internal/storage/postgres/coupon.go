package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	findCouponByCodeSQL = `SELECT id, code, amount FROM coupons WHERE code = $1`

	upsertCouponSQL = `INSERT INTO coupons (id, code, amount) VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET amount = EXCLUDED.amount
		RETURNING id`

	listCouponCodesSQL = `SELECT code FROM coupons`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	q querier
}

// FindByCode looks a coupon up by exact code. Returns coupon.ErrNotFound
// when no coupon matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := r.q.QueryRow(ctx, findCouponByCodeSQL, code).Scan(&c.ID, &c.Code, &c.Amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Upsert inserts the coupon or updates the amount of an existing code.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	if err := r.q.QueryRow(ctx, upsertCouponSQL, uuid.NewString(), c.Code, c.Amount).Scan(&c.ID); err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Codes streams every stored coupon code to fn.
func (r *CouponRepository) Codes(ctx context.Context, fn func(code string) error) error {
	rows, err := r.q.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}
	var code string
	_, err = pgx.ForEachRow(rows, []any{&code}, func() error {
		return fn(code)
	})
	if err != nil {
		return fmt.Errorf("listing coupon codes: %w", err)
	}
	return nil
}
