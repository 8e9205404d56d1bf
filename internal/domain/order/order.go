package order

import (
	"context"
	"time"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/payment"
)

// Order is the lifecycle aggregate. While Ordered is false it is the user's
// cart; at most one such order exists per user.
type Order struct {
	ID          string
	UserID      string
	RefCode     string
	Lines       []Line
	StartDate   time.Time
	OrderedDate time.Time

	Ordered         bool
	BeingDelivered  bool
	Received        bool
	RefundRequested bool
	RefundGranted   bool

	ShippingAddressID string
	BillingAddressID  string
	PaymentID         string
	Coupon            *coupon.Coupon
}

// Line is one item+quantity entry of a user's cart.
type Line struct {
	ID       string
	UserID   string
	Item     catalog.Item
	Quantity int
	Ordered  bool
}

// TotalPrice is the line price at the regular item price.
func (l Line) TotalPrice() int64 {
	return int64(l.Quantity) * l.Item.Price
}

// FinalPrice is the line price the customer pays.
func (l Line) FinalPrice() int64 {
	return int64(l.Quantity) * l.Item.UnitPrice()
}

// AmountSaved is the difference between the regular and the final price.
func (l Line) AmountSaved() int64 {
	return l.TotalPrice() - l.FinalPrice()
}

// Line returns the attached line for itemID.
func (o *Order) Line(itemID string) (*Line, bool) {
	for i := range o.Lines {
		if o.Lines[i].Item.ID == itemID {
			return &o.Lines[i], true
		}
	}
	return nil, false
}

// Subtotal sums the final price of every line.
func (o *Order) Subtotal() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.FinalPrice()
	}
	return total
}

// Discount is the flat amount of the attached coupon.
func (o *Order) Discount() int64 {
	if o.Coupon == nil {
		return 0
	}
	return o.Coupon.Amount
}

// Total is the subtotal minus the coupon amount, never below zero.
func (o *Order) Total() int64 {
	total := o.Subtotal() - o.Discount()
	if total < 0 {
		return 0
	}
	return total
}

// TotalQuantity sums line quantities, the cart badge count.
func (o *Order) TotalQuantity() int {
	var n int
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// Stage names the lifecycle state derived from the order flags.
type Stage string

const (
	StageCart            Stage = "cart"
	StageAwaitingPayment Stage = "awaiting_payment"
	StagePaid            Stage = "paid"
	StageDelivering      Stage = "delivering"
	StageReceived        Stage = "received"
	StageRefundRequested Stage = "refund_requested"
	StageRefundGranted   Stage = "refund_granted"
)

// Stage derives the current lifecycle stage. A rejected refund reads as the
// fulfillment stage the order had reached.
func (o *Order) Stage() Stage {
	switch {
	case o.RefundGranted:
		return StageRefundGranted
	case o.RefundRequested:
		return StageRefundRequested
	case o.Received:
		return StageReceived
	case o.BeingDelivered:
		return StageDelivering
	case o.Ordered:
		return StagePaid
	case o.ShippingAddressID != "" && o.BillingAddressID != "":
		return StageAwaitingPayment
	default:
		return StageCart
	}
}

// Refund is a customer's refund request against a paid order.
type Refund struct {
	ID       string
	OrderID  string
	Reason   string
	Email    string
	Accepted bool
}

// StatusPatch is a bulk flag update. Nil fields are left unchanged.
type StatusPatch struct {
	BeingDelivered  *bool
	Received        *bool
	RefundRequested *bool
	RefundGranted   *bool
	RefundAccepted  *bool
}

// StatusChange identifies an order updated by a bulk action.
type StatusChange struct {
	OrderID string
	UserID  string
}

// ListFilter selects orders for the back office. Nil flags match any value.
type ListFilter struct {
	UserID          string
	RefCode         string
	Ordered         *bool
	BeingDelivered  *bool
	Received        *bool
	RefundRequested *bool
	RefundGranted   *bool
	Limit           int
}

// Repository persists orders, their lines and refunds.
type Repository interface {
	// FindOpen returns the user's open order or ErrNoActiveOrder.
	FindOpen(ctx context.Context, userID string) (*Order, error)
	// LockOpen is FindOpen holding a row lock until the transaction ends.
	LockOpen(ctx context.Context, userID string) (*Order, error)
	// CreateOpen inserts o unless the user already has an open order, in
	// which case the existing order is returned with created=false.
	CreateOpen(ctx context.Context, o *Order) (existing *Order, created bool, err error)
	// EnsureLine finds or creates the user's unordered line for itemID.
	EnsureLine(ctx context.Context, userID string, item catalog.Item) (*Line, error)
	SetLineQuantity(ctx context.Context, lineID string, quantity int) error
	AttachLine(ctx context.Context, orderID, lineID string) error
	DetachLine(ctx context.Context, orderID, lineID string) error
	MarkLinesOrdered(ctx context.Context, orderID string) error
	// Update persists references, flags and the reference code of o.
	Update(ctx context.Context, o *Order) error
	RefCodeExists(ctx context.Context, code string) (bool, error)
	// FindByRefCode returns the order with the code or ErrOrderNotFound.
	FindByRefCode(ctx context.Context, code string) (*Order, error)
	CreateRefund(ctx context.Context, r *Refund) error
	// ApplyStatus returns the orders that exist among ids and were updated.
	ApplyStatus(ctx context.Context, ids []string, patch StatusPatch) ([]StatusChange, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
}

// Unit groups the repositories available inside one transaction.
type Unit struct {
	Orders    Repository
	Items     catalog.Repository
	Addresses address.Repository
	Coupons   coupon.Repository
	Payments  payment.Repository
}

// Transactor runs fn in a single database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, u Unit) error) error
}
