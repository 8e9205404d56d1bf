package order

import (
	"context"
	"net/mail"
	"strings"

	"github.com/go-faster/errors"
)

// RouteRequestRefund is the refund request form.
const RouteRequestRefund = "request-refund"

// RefundRequest is the submitted refund form.
type RefundRequest struct {
	RefCode string
	Reason  string
	Email   string
}

func (r RefundRequest) validate() error {
	switch {
	case strings.TrimSpace(r.RefCode) == "":
		return &FieldError{Field: "ref_code", Message: "required"}
	case strings.TrimSpace(r.Reason) == "":
		return &FieldError{Field: "message", Message: "required"}
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return &FieldError{Field: "email", Message: "invalid email address"}
	}
	return nil
}

// RequestRefund flags the order with the given reference code for refund
// and records the request. Granting it is an administrative decision.
func (s *Service) RequestRefund(ctx context.Context, req RefundRequest) (*Outcome, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var o *Order
	refund := &Refund{
		Reason: strings.TrimSpace(req.Reason),
		Email:  strings.TrimSpace(req.Email),
	}
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) (err error) {
		o, err = u.Orders.FindByRefCode(ctx, strings.TrimSpace(req.RefCode))
		if err != nil {
			return err
		}
		o.RefundRequested = true
		if err := u.Orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		refund.OrderID = o.ID
		if err := u.Orders.CreateRefund(ctx, refund); err != nil {
			return errors.Wrap(err, "create refund")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{
		Type:       EventRefundRequested,
		OrderID:    o.ID,
		UserID:     o.UserID,
		RefCode:    o.RefCode,
		OccurredAt: s.now(),
	})
	return info("Your request was received.", Redirect{Route: RouteRequestRefund}), nil
}
