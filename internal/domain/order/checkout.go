package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/payment"
)

// AddressInput is one address section of the checkout form.
type AddressInput struct {
	// UseDefault selects the stored default and ignores Fields.
	UseDefault bool
	Fields     address.Fields
	// SetDefault marks a newly entered address as the new default.
	SetDefault bool
}

// CheckoutRequest is the submitted checkout form.
type CheckoutRequest struct {
	Shipping AddressInput
	Billing  AddressInput
	// SameBilling copies the resolved shipping address as billing address.
	SameBilling   bool
	PaymentOption string
}

func (r CheckoutRequest) validate() (payment.Option, error) {
	opt, ok := payment.ParseOption(r.PaymentOption)
	if !ok {
		return "", ErrInvalidPaymentOption
	}
	if !r.Shipping.UseDefault {
		if err := r.Shipping.Fields.Validate(address.Shipping); err != nil {
			return "", err
		}
	}
	if !r.SameBilling && !r.Billing.UseDefault {
		if err := r.Billing.Fields.Validate(address.Billing); err != nil {
			return "", err
		}
	}
	return opt, nil
}

// CheckoutPage is what the checkout form is rendered from.
type CheckoutPage struct {
	Order           *Order
	DefaultShipping *address.Address
	DefaultBilling  *address.Address
}

// CheckoutContext loads the open order and the user's default addresses.
func (s *Service) CheckoutContext(ctx context.Context, userID string) (*CheckoutPage, error) {
	page := &CheckoutPage{}
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) error {
		o, err := u.Orders.FindOpen(ctx, userID)
		if err != nil {
			return err
		}
		page.Order = o
		if page.DefaultShipping, err = findDefault(ctx, u, userID, address.Shipping); err != nil {
			return err
		}
		if page.DefaultBilling, err = findDefault(ctx, u, userID, address.Billing); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func findDefault(ctx context.Context, u Unit, userID string, t address.Type) (*address.Address, error) {
	a, err := u.Addresses.FindDefault(ctx, userID, t)
	if errors.Is(err, address.ErrNoDefault) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find default %s address", t)
	}
	return a, nil
}

// Checkout attaches shipping and billing addresses to the open order and
// sends the customer to the payment page of the chosen option. The open
// order is required first; all form fields are then checked before anything
// is written, so a failure leaves the order and the address book unchanged.
func (s *Service) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout")
	defer span.End()

	var opt payment.Option
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) error {
		o, err := u.Orders.LockOpen(ctx, userID)
		if err != nil {
			return err
		}
		if opt, err = req.validate(); err != nil {
			return err
		}
		span.SetAttributes(attribute.String("payment.option", string(opt)))

		shipping, err := resolveAddress(ctx, u, userID, address.Shipping, req.Shipping)
		if err != nil {
			return err
		}
		var billing *address.Address
		if req.SameBilling {
			clone := shipping.Clone(address.Billing)
			if err := address.Save(ctx, u.Addresses, &clone, false); err != nil {
				return err
			}
			billing = &clone
		} else {
			if billing, err = resolveAddress(ctx, u, userID, address.Billing, req.Billing); err != nil {
				return err
			}
		}

		o.ShippingAddressID = shipping.ID
		o.BillingAddressID = billing.ID
		if err := u.Orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Redirect: Redirect{Route: RoutePayment, Param: opt.Route()}}, nil
}

func resolveAddress(ctx context.Context, u Unit, userID string, t address.Type, in AddressInput) (*address.Address, error) {
	if in.UseDefault {
		a, err := u.Addresses.FindDefault(ctx, userID, t)
		if errors.Is(err, address.ErrNoDefault) {
			return nil, &NoDefaultAddressError{Type: t}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "find default %s address", t)
		}
		return a, nil
	}
	a := &address.Address{
		UserID:    userID,
		Street:    in.Fields.Street,
		Apartment: in.Fields.Apartment,
		City:      in.Fields.City,
		Country:   in.Fields.Country,
		PostCode:  in.Fields.PostCode,
		Type:      t,
	}
	if err := address.Save(ctx, u.Addresses, a, in.SetDefault); err != nil {
		return nil, err
	}
	return a, nil
}

// ApplyCoupon attaches the coupon with the given code to the open order,
// replacing any coupon attached before.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*Outcome, error) {
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) error {
		o, err := u.Orders.LockOpen(ctx, userID)
		if err != nil {
			return err
		}
		c, err := coupon.NewRepoValidator(u.Coupons).Validate(ctx, code)
		if err != nil {
			return err
		}
		o.Coupon = c
		if err := u.Orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Notice:   Notice{Level: LevelSuccess, Message: "Successfully added coupon"},
		Redirect: Redirect{Route: RouteCheckout},
	}, nil
}
