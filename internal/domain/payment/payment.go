// Package payment defines the boundary to the external payment processor and
// the records kept about successful charges.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNoCustomer is returned when a user has no stored gateway customer.
var ErrNoCustomer = errors.New("no payment customer")

// Option is the payment method chosen at checkout.
type Option string

const (
	OptionStripe Option = "S"
	OptionPayPal Option = "P"
)

// ParseOption maps both the short code and the route name to an Option.
func ParseOption(s string) (Option, bool) {
	switch s {
	case "S", "stripe":
		return OptionStripe, true
	case "P", "paypal":
		return OptionPayPal, true
	default:
		return "", false
	}
}

// Route returns the route segment for the payment page of o.
func (o Option) Route() string {
	switch o {
	case OptionStripe:
		return "stripe"
	case OptionPayPal:
		return "paypal"
	default:
		return string(o)
	}
}

// Payment is the immutable record of a successful charge.
type Payment struct {
	ID        string
	ChargeID  string
	UserID    string
	Amount    int64
	CreatedAt time.Time
}

// Customer is the gateway-side handle used to charge stored cards for a user.
type Customer struct {
	UserID     string
	CustomerID string
	OneClick   bool
}

// Card is a stored card as reported by the gateway.
type Card struct {
	ID       string
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

// Charge describes one charge request. Exactly one of Source and Customer
// is set.
type Charge struct {
	Amount      int64
	Currency    string
	Source      string
	Customer    string
	Description string
}

// Gateway is the external payment processor.
type Gateway interface {
	CreateCharge(ctx context.Context, c Charge) (chargeID string, err error)
	CreateCustomer(ctx context.Context, email, source string) (customerID string, err error)
	AddSourceToCustomer(ctx context.Context, customerID, source string) error
	ListCustomerSources(ctx context.Context, customerID string, limit int) ([]Card, error)
}

// Repository persists payments and gateway customers.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	FindCustomer(ctx context.Context, userID string) (*Customer, error)
	SaveCustomer(ctx context.Context, c *Customer) error
}
