package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// AdminAction is a bulk status transition from the back office.
type AdminAction string

const (
	ActionAcceptRefund       AdminAction = "accept_refund"
	ActionRejectRefund       AdminAction = "reject_refund"
	ActionRevertRefund       AdminAction = "revert_refund"
	ActionMarkBeingDelivered AdminAction = "mark_being_delivered"
	ActionMarkReceived       AdminAction = "mark_received"
)

// ErrUnknownAction is returned for actions outside the known set.
var ErrUnknownAction = errors.New("unknown admin action")

func (a AdminAction) patch() (StatusPatch, string, error) {
	yes, no := true, false
	switch a {
	case ActionAcceptRefund:
		return StatusPatch{RefundRequested: &no, RefundGranted: &yes, RefundAccepted: &yes}, EventRefundDecided, nil
	case ActionRejectRefund:
		return StatusPatch{RefundRequested: &no, RefundGranted: &no, RefundAccepted: &no}, EventRefundDecided, nil
	case ActionRevertRefund:
		return StatusPatch{RefundRequested: &yes, RefundGranted: &no, RefundAccepted: &no}, EventRefundDecided, nil
	case ActionMarkBeingDelivered:
		return StatusPatch{BeingDelivered: &yes}, EventFulfillmentUpdated, nil
	case ActionMarkReceived:
		return StatusPatch{Received: &yes}, EventFulfillmentUpdated, nil
	default:
		return StatusPatch{}, "", errors.Wrapf(ErrUnknownAction, "%q", string(a))
	}
}

// ApplyAdminAction applies the action to every listed order and returns
// the number of orders changed. Unknown ids are skipped.
func (s *Service) ApplyAdminAction(ctx context.Context, action AdminAction, orderIDs []string) (int64, error) {
	patch, eventType, err := action.patch()
	if err != nil {
		return 0, err
	}
	if len(orderIDs) == 0 {
		return 0, nil
	}

	var changed []StatusChange
	err = s.store.InTx(ctx, func(ctx context.Context, u Unit) (err error) {
		changed, err = u.Orders.ApplyStatus(ctx, orderIDs, patch)
		return err
	})
	if err != nil {
		return 0, errors.Wrapf(err, "apply %s", action)
	}

	zctx.From(ctx).Info("Admin action applied",
		zap.String("action", string(action)),
		zap.Int("selected", len(orderIDs)),
		zap.Int("affected", len(changed)),
	)

	if len(changed) > 0 {
		now := s.now()
		events := make([]Event, 0, len(changed))
		for _, c := range changed {
			events = append(events, Event{
				Type:       eventType,
				OrderID:    c.OrderID,
				UserID:     c.UserID,
				Action:     string(action),
				OccurredAt: now,
			})
		}
		s.publish(ctx, events...)
	}
	return int64(len(changed)), nil
}

// ListOrders returns orders matching the back-office filter, newest first.
func (s *Service) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	var orders []Order
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) (err error) {
		orders, err = u.Orders.List(ctx, f)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}
