package order

import (
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/payment"
)

// Level is the severity of a notice shown to the customer.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a one-line message for the presentation layer.
type Notice struct {
	Level   Level
	Message string
}

// Named routes the presentation layer redirects to.
const (
	RouteHome         = "home"
	RouteProduct      = "product"
	RouteOrderSummary = "order-summary"
	RouteCheckout     = "checkout"
	RoutePayment      = "payment"
)

// Redirect names the route to show next. Param fills the route's single
// path parameter, if it has one.
type Redirect struct {
	Route string
	Param string
}

// Outcome is what a storefront action tells the customer.
type Outcome struct {
	Notice   Notice
	Redirect Redirect
}

func info(msg string, r Redirect) *Outcome {
	return &Outcome{Notice: Notice{Level: LevelInfo, Message: msg}, Redirect: r}
}

// Explain maps a recoverable failure to the notice and redirect shown to the
// customer. It returns false for errors that are not customer-facing.
func Explain(err error) (*Outcome, bool) {
	warn := func(msg, route string) (*Outcome, bool) {
		return &Outcome{
			Notice:   Notice{Level: LevelWarning, Message: msg},
			Redirect: Redirect{Route: route},
		}, true
	}

	var (
		verr *address.ValidationError
		ferr *FieldError
		nerr *NoDefaultAddressError
		perr *payment.Error
	)
	switch {
	case errors.Is(err, ErrNoActiveOrder):
		return warn("You do not have an active order", RouteHome)
	case errors.Is(err, ErrMissingBillingAddress):
		return warn("You have not added a billing address", RouteCheckout)
	case errors.Is(err, ErrEmptyCart):
		return warn("Your cart is empty", RouteOrderSummary)
	case errors.As(err, &nerr):
		return warn("No default "+nerr.Type.String()+" address available", RouteCheckout)
	case errors.As(err, &verr):
		return warn(capitalize(verr.Error()), RouteCheckout)
	case errors.Is(err, ErrInvalidPaymentOption):
		return warn("Invalid payment option selected", RouteCheckout)
	case errors.Is(err, ErrPaymentOptionUnavailable):
		return warn("This payment option is not available yet", RouteCheckout)
	case errors.Is(err, ErrMissingPaymentToken):
		return warn("Please provide a payment method", RoutePayment)
	case errors.Is(err, ErrNoSavedCard):
		return warn("You do not have a saved card", RoutePayment)
	case errors.Is(err, coupon.ErrNotFound):
		return warn("This coupon does not exist", RouteCheckout)
	case errors.Is(err, ErrOrderNotFound):
		return warn("This order does not exist", RouteHome)
	case errors.As(err, &ferr):
		return warn(capitalize(ferr.Error()), RouteRequestRefund)
	case errors.Is(err, catalog.ErrNotFound):
		return warn("This item does not exist", RouteHome)
	case errors.As(err, &perr):
		level := LevelWarning
		if perr.Kind.Escalate() {
			level = LevelError
		}
		return &Outcome{
			Notice:   Notice{Level: level, Message: payment.UserMessage(perr)},
			Redirect: Redirect{Route: RouteHome},
		}, true
	}
	return nil, false
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
