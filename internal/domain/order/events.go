package order

import (
	"context"
	"time"
)

// Lifecycle event types.
const (
	EventPaid               = "order.paid"
	EventRefundRequested    = "order.refund.requested"
	EventRefundDecided      = "order.refund.decided"
	EventFulfillmentUpdated = "order.fulfillment.updated"
)

// Event records a committed lifecycle transition.
type Event struct {
	Type       string
	OrderID    string
	UserID     string
	RefCode    string
	Amount     int64
	Action     string
	OccurredAt time.Time
}

// Publisher delivers lifecycle events after the transition is committed.
// Delivery failures never undo the transition.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...Event) error { return nil }
