package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/xenking/storefront/internal/domain/payment"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   payment.ErrorKind
		reason string
	}{
		{"card", &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card has expired.", HTTPStatusCode: 402}, payment.KindCardDeclined, "Your card has expired."},
		{"rate limit", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: 429}, payment.KindRateLimited, ""},
		{"invalid request", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: 400}, payment.KindInvalidRequest, ""},
		{"authentication", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: 401}, payment.KindAuthenticationFailed, ""},
		{"api", &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: 500}, payment.KindGateway, ""},
		{"deadline", errors.Wrap(context.DeadlineExceeded, "post"), payment.KindNetwork, ""},
		{"other", errors.New("boom"), payment.KindUnknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err)

			var perr *payment.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.reason, perr.Reason)
		})
	}
}

func newTestGateway(t *testing.T, h http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New("sk_test_123", Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestGateway_CreateCharge(t *testing.T) {
	var form string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/charges", r.URL.Path)
		form = r.PostForm.Encode()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"ch_123","object":"charge","amount":1100,"currency":"usd"}`)
	})

	id, err := gw.CreateCharge(context.Background(), payment.Charge{
		Amount:   1100,
		Currency: "usd",
		Source:   "tok_visa",
	})
	require.NoError(t, err)
	assert.Equal(t, "ch_123", id)
	assert.Contains(t, form, "amount=1100")
	assert.Contains(t, form, "source=tok_visa")
}

func TestGateway_CreateChargeDeclined(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	})

	_, err := gw.CreateCharge(context.Background(), payment.Charge{Amount: 500, Currency: "usd", Customer: "cus_1"})
	require.Error(t, err)
	assert.Equal(t, payment.KindCardDeclined, payment.KindOf(err))
	assert.Equal(t, "Your card was declined.", payment.UserMessage(err))
}

func TestGateway_CreateChargeWithoutSource(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("gateway must not be called")
	})

	_, err := gw.CreateCharge(context.Background(), payment.Charge{Amount: 500, Currency: "usd"})
	assert.Equal(t, payment.KindInvalidRequest, payment.KindOf(err))
}

func TestGateway_ListCustomerSources(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v1/customers/cus_1/sources"))
		assert.Equal(t, "card", r.URL.Query().Get("object"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","has_more":false,"url":"/v1/customers/cus_1/sources","data":[
			{"id":"card_1","object":"card","brand":"Visa","last4":"4242","exp_month":12,"exp_year":2030},
			{"id":"card_2","object":"card","brand":"MasterCard","last4":"4444","exp_month":1,"exp_year":2031}
		]}`)
	})

	cards, err := gw.ListCustomerSources(context.Background(), "cus_1", 3)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, payment.Card{ID: "card_1", Brand: "Visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030}, cards[0])
}

func TestGateway_AddSourceToCustomer(t *testing.T) {
	var (
		path string
		form string
	)
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		path = r.URL.Path
		form = r.PostForm.Encode()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"card_9","object":"card","brand":"Visa","last4":"4242"}`)
	})

	require.NoError(t, gw.AddSourceToCustomer(context.Background(), "cus_1", "tok_visa"))
	assert.Equal(t, "/v1/customers/cus_1/sources", path)
	assert.Contains(t, form, "source=tok_visa")
}

func TestGateway_AddSourceToCustomerWithoutToken(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("gateway must not be called")
	})

	err := gw.AddSourceToCustomer(context.Background(), "cus_1", "")
	assert.Equal(t, payment.KindInvalidRequest, payment.KindOf(err))
}
