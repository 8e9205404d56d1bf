package payment

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"declined with reason", &Error{Kind: KindCardDeclined, Reason: "Your card has insufficient funds."}, "Your card has insufficient funds."},
		{"declined without reason", &Error{Kind: KindCardDeclined}, "Your card was declined."},
		{"rate limited", &Error{Kind: KindRateLimited}, "Rate limit error"},
		{"invalid request", &Error{Kind: KindInvalidRequest}, "Invalid parameters"},
		{"auth", &Error{Kind: KindAuthenticationFailed}, "Not authenticated"},
		{"network", &Error{Kind: KindNetwork}, "Network error"},
		{"gateway", &Error{Kind: KindGateway}, "Something went wrong. You were not charged. Please try again."},
		{"wrapped", errors.Wrap(&Error{Kind: KindRateLimited}, "charge"), "Rate limit error"},
		{"unclassified", errors.New("boom"), "A serious error occurred. We have been notified."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestErrorKind_Escalate(t *testing.T) {
	escalated := map[ErrorKind]bool{
		KindUnknown:              true,
		KindAuthenticationFailed: true,
	}
	for _, k := range []ErrorKind{
		KindUnknown, KindCardDeclined, KindRateLimited, KindInvalidRequest,
		KindAuthenticationFailed, KindNetwork, KindGateway,
	} {
		assert.Equal(t, escalated[k], k.Escalate(), k.String())
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNetwork, KindOf(errors.Wrap(&Error{Kind: KindNetwork}, "x")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestParseOption(t *testing.T) {
	o, ok := ParseOption("stripe")
	assert.True(t, ok)
	assert.Equal(t, OptionStripe, o)

	o, ok = ParseOption("P")
	assert.True(t, ok)
	assert.Equal(t, "paypal", o.Route())

	_, ok = ParseOption("bitcoin")
	assert.False(t, ok)
}
