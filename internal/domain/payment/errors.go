package payment

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrorKind is the closed set of gateway failure categories.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindCardDeclined
	KindRateLimited
	KindInvalidRequest
	KindAuthenticationFailed
	KindNetwork
	KindGateway
)

func (k ErrorKind) String() string {
	switch k {
	case KindCardDeclined:
		return "card_declined"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidRequest:
		return "invalid_request"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindNetwork:
		return "network_error"
	case KindGateway:
		return "gateway_error"
	default:
		return "unknown"
	}
}

// Escalate reports whether failures of this kind need operator attention.
func (k ErrorKind) Escalate() bool {
	return k == KindAuthenticationFailed || k == KindUnknown
}

// Error is a classified gateway failure. No charge was made unless
// ChargeID is set.
type Error struct {
	Kind ErrorKind
	// Reason is the processor's human-readable explanation, set for declines.
	Reason string
	// ChargeID identifies an accepted charge that could not be recorded.
	ChargeID string
	Err      error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("payment %s: %s", e.Kind, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("payment %s: %v", e.Kind, e.Err)
	}
	return "payment " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a gateway error. Errors that were not
// classified by the adapter are KindUnknown.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

// UserMessage returns the notice shown to the customer for a failure of
// the given kind.
func UserMessage(err error) string {
	var perr *Error
	if !errors.As(err, &perr) {
		perr = &Error{Kind: KindUnknown}
	}
	switch perr.Kind {
	case KindCardDeclined:
		if perr.Reason != "" {
			return perr.Reason
		}
		return "Your card was declined."
	case KindRateLimited:
		return "Rate limit error"
	case KindInvalidRequest:
		return "Invalid parameters"
	case KindAuthenticationFailed:
		return "Not authenticated"
	case KindNetwork:
		return "Network error"
	case KindGateway:
		return "Something went wrong. You were not charged. Please try again."
	case KindUnknown:
		return "A serious error occurred. We have been notified."
	}
	return "A serious error occurred. We have been notified."
}
