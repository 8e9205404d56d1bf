package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/address"
)

// Recoverable failures of the order lifecycle.
var (
	ErrNoActiveOrder            = errors.New("you do not have an active order")
	ErrMissingBillingAddress    = errors.New("you have not added a billing address")
	ErrEmptyCart                = errors.New("your cart is empty")
	ErrOrderNotFound            = errors.New("this order does not exist")
	ErrInvalidPaymentOption     = errors.New("invalid payment option selected")
	ErrPaymentOptionUnavailable = errors.New("payment option is not available")
	ErrMissingPaymentToken      = errors.New("no payment method supplied")
	ErrNoSavedCard              = errors.New("no saved card on file")
)

// NoDefaultAddressError is returned when checkout asks for a default address
// the user never marked.
type NoDefaultAddressError struct {
	Type address.Type
}

func (e *NoDefaultAddressError) Error() string {
	return fmt.Sprintf("no default %s address available", e.Type)
}

// Is makes the error match address.ErrNoDefault.
func (e *NoDefaultAddressError) Is(target error) bool {
	return target == address.ErrNoDefault
}

// FieldError reports an invalid field of a customer-submitted form.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}
