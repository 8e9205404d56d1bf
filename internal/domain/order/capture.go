package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/payment"
)

// PaymentRequest is the submitted payment form.
type PaymentRequest struct {
	Option string
	Email  string
	// Token is a single-use card token issued by the gateway's client library.
	Token string
	// SaveCard stores the tokenized card under the user's gateway customer.
	SaveCard bool
	// UseSaved charges the stored customer instead of a fresh token.
	UseSaved bool
}

// Receipt describes a captured payment.
type Receipt struct {
	Order   *Order
	Payment *payment.Payment
}

// PaymentPage is what the payment form is rendered from.
type PaymentPage struct {
	Order  *Order
	Option payment.Option
	Amount int64
	// Cards lists stored cards when one-click payment is enabled.
	Cards []payment.Card
}

func (s *Service) gateway(option string) (payment.Option, payment.Gateway, error) {
	opt, ok := payment.ParseOption(option)
	if !ok {
		return "", nil, ErrInvalidPaymentOption
	}
	gw, ok := s.gateways[opt]
	if !ok {
		return "", nil, ErrPaymentOptionUnavailable
	}
	return opt, gw, nil
}

// PaymentContext loads the amount due and, for one-click customers, their
// stored cards. Listing failures hide the cards and are only logged.
func (s *Service) PaymentContext(ctx context.Context, userID, option string) (*PaymentPage, error) {
	opt, gw, err := s.gateway(option)
	if err != nil {
		return nil, err
	}

	page := &PaymentPage{Option: opt}
	var customer *payment.Customer
	err = s.store.InTx(ctx, func(ctx context.Context, u Unit) error {
		o, err := u.Orders.FindOpen(ctx, userID)
		if err != nil {
			return err
		}
		if o.BillingAddressID == "" {
			return ErrMissingBillingAddress
		}
		page.Order = o
		page.Amount = o.Total()

		customer, err = u.Payments.FindCustomer(ctx, userID)
		if errors.Is(err, payment.ErrNoCustomer) {
			customer = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if customer != nil && customer.OneClick {
		gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
		cards, err := gw.ListCustomerSources(gctx, customer.CustomerID, s.savedCardLimit)
		if err != nil {
			zctx.From(ctx).Warn("List saved cards", zap.String("user_id", userID), zap.Error(err))
		} else {
			page.Cards = cards
		}
	}
	return page, nil
}

// CapturePayment charges the open order's total and, on success, finalizes
// the order in the same transaction: a payment record is stored, every line
// is marked ordered and the order receives its reference code. The open
// order stays locked for the duration of the charge, so concurrent captures
// for one user cannot both charge. A failed charge changes nothing.
func (s *Service) CapturePayment(ctx context.Context, userID string, req PaymentRequest) (_ *Receipt, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.CapturePayment")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	opt, gw, err := s.gateway(req.Option)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.option", string(opt)))

	// Preconditions are checked before a card is registered with the gateway
	// and again under the lock below.
	if _, err := s.payable(ctx, userID); err != nil {
		return nil, err
	}

	charge := payment.Charge{Currency: s.currency, Description: "storefront order"}
	switch {
	case req.UseSaved:
		c, err := s.customer(ctx, userID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, ErrNoSavedCard
		}
		charge.Customer = c.CustomerID
	case req.Token == "":
		return nil, ErrMissingPaymentToken
	case req.SaveCard:
		// Card tokens are single use, so a card to be kept is attached to the
		// customer first and the customer is charged.
		c, err := s.saveCard(ctx, gw, userID, req.Email, req.Token)
		if err != nil {
			var perr *payment.Error
			if errors.As(err, &perr) {
				s.recordFailure(ctx, userID, err)
			}
			return nil, err
		}
		charge.Customer = c.CustomerID
	default:
		charge.Source = req.Token
	}

	receipt := &Receipt{}
	var (
		chargeErr error
		chargeID  string
	)
	err = s.store.InTx(ctx, func(ctx context.Context, u Unit) error {
		o, err := u.Orders.LockOpen(ctx, userID)
		if err != nil {
			return err
		}
		if err := checkPayable(o); err != nil {
			return err
		}
		amount := o.Total()
		charge.Amount = amount

		gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		id, err := gw.CreateCharge(gctx, charge)
		cancel()
		if err != nil {
			chargeErr = classify(err)
			return chargeErr
		}
		chargeID = id

		p := &payment.Payment{
			ChargeID:  chargeID,
			UserID:    userID,
			Amount:    amount,
			CreatedAt: s.now(),
		}
		if err := u.Payments.Create(ctx, p); err != nil {
			return errors.Wrap(err, "create payment")
		}
		if err := u.Orders.MarkLinesOrdered(ctx, o.ID); err != nil {
			return errors.Wrap(err, "mark lines ordered")
		}
		code, err := s.uniqueRefCode(ctx, u.Orders)
		if err != nil {
			return err
		}

		o.Ordered = true
		o.OrderedDate = p.CreatedAt
		o.PaymentID = p.ID
		o.RefCode = code
		for i := range o.Lines {
			o.Lines[i].Ordered = true
		}
		if err := u.Orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		receipt.Order = o
		receipt.Payment = p
		return nil
	})
	if err != nil {
		switch {
		case chargeErr != nil:
			s.recordFailure(ctx, userID, chargeErr)
		case chargeID != "":
			return nil, s.orphanedCharge(ctx, userID, chargeID, charge.Amount, err)
		}
		return nil, err
	}

	s.charges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	zctx.From(ctx).Info("Payment captured",
		zap.String("user_id", userID),
		zap.String("order_id", receipt.Order.ID),
		zap.String("ref_code", receipt.Order.RefCode),
		zap.Int64("amount", receipt.Payment.Amount),
	)
	s.publish(ctx, Event{
		Type:       EventPaid,
		OrderID:    receipt.Order.ID,
		UserID:     userID,
		RefCode:    receipt.Order.RefCode,
		Amount:     receipt.Payment.Amount,
		OccurredAt: receipt.Payment.CreatedAt,
	})
	return receipt, nil
}

// classify wraps errors the gateway adapter left unclassified.
func classify(err error) error {
	var perr *payment.Error
	if errors.As(err, &perr) {
		return err
	}
	return &payment.Error{Kind: payment.KindUnknown, Err: err}
}

func checkPayable(o *Order) error {
	if o.BillingAddressID == "" {
		return ErrMissingBillingAddress
	}
	if len(o.Lines) == 0 {
		return ErrEmptyCart
	}
	return nil
}

func (s *Service) payable(ctx context.Context, userID string) (*Order, error) {
	o, err := s.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(o); err != nil {
		return nil, err
	}
	return o, nil
}

// customer returns the user's stored gateway customer, nil when none.
func (s *Service) customer(ctx context.Context, userID string) (*payment.Customer, error) {
	var c *payment.Customer
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) (err error) {
		c, err = u.Payments.FindCustomer(ctx, userID)
		if errors.Is(err, payment.ErrNoCustomer) {
			c = nil
			return nil
		}
		return err
	})
	return c, err
}

// saveCard attaches the token to the user's gateway customer, creating the
// customer on first use, and enables one-click payment.
func (s *Service) saveCard(ctx context.Context, gw payment.Gateway, userID, email, token string) (*payment.Customer, error) {
	c, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	if c == nil {
		id, err := gw.CreateCustomer(gctx, email, token)
		if err != nil {
			return nil, classify(err)
		}
		c = &payment.Customer{UserID: userID, CustomerID: id}
	} else if err := gw.AddSourceToCustomer(gctx, c.CustomerID, token); err != nil {
		return nil, classify(err)
	}
	c.OneClick = true

	err = s.store.InTx(ctx, func(ctx context.Context, u Unit) error {
		return u.Payments.SaveCustomer(ctx, c)
	})
	if err != nil {
		return nil, errors.Wrap(err, "save customer")
	}
	return c, nil
}

// recordFailure counts a gateway failure and escalates the kinds that need
// an operator.
func (s *Service) recordFailure(ctx context.Context, userID string, err error) {
	kind := payment.KindOf(err)
	s.charges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", kind.String())))

	lg := zctx.From(ctx).With(
		zap.String("user_id", userID),
		zap.Stringer("kind", kind),
		zap.Error(err),
	)
	if kind.Escalate() {
		lg.Error("Payment failed")
		return
	}
	lg.Warn("Payment declined")
}

// orphanedCharge escalates a charge the gateway accepted but the order
// transaction failed to record. The customer was charged for an order that
// is still open, so an operator has to refund or reconcile it.
func (s *Service) orphanedCharge(ctx context.Context, userID, chargeID string, amount int64, err error) error {
	s.charges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "orphaned_charge")))
	zctx.From(ctx).Error("Charge not recorded",
		zap.String("charge_id", chargeID),
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
		zap.Error(err),
	)
	return &payment.Error{
		Kind:     payment.KindUnknown,
		ChargeID: chargeID,
		Err:      errors.Wrapf(err, "record charge %s", chargeID),
	}
}

// publish delivers events within publishTimeout. The transition is already
// committed, so a slow or unavailable broker only costs a warning.
func (s *Service) publish(ctx context.Context, events ...Event) {
	pctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, events...); err != nil {
		zctx.From(ctx).Warn("Publish order events", zap.Int("count", len(events)), zap.Error(err))
	}
}
