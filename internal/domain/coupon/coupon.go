package coupon

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no coupon matches the submitted code.
var ErrNotFound = errors.New("this coupon does not exist")

// MaxCodeLen is the longest accepted coupon code.
const MaxCodeLen = 15

// Coupon is a flat-amount discount looked up by its exact code. Amount is in
// minor currency units.
type Coupon struct {
	ID     string
	Code   string
	Amount int64
}

// Repository provides lookup and mutation of coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Upsert(ctx context.Context, c *Coupon) error
	Codes(ctx context.Context, fn func(code string) error) error
}
