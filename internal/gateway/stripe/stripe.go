// Package stripe adapts the Stripe API to payment.Gateway.
package stripe

import (
	"context"
	"net"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/xenking/storefront/internal/domain/payment"
)

// Options configures the Stripe client.
type Options struct {
	// BaseURL overrides the API endpoint.
	BaseURL string
	// MaxNetworkRetries is passed to the Stripe backend. Zero disables retries.
	MaxNetworkRetries int64
	HTTPClient        *http.Client
}

// Gateway implements payment.Gateway on top of the Stripe API.
type Gateway struct {
	api *client.API
}

var _ payment.Gateway = (*Gateway)(nil)

// New creates a Gateway authenticated with the given secret key.
func New(key string, opts Options) *Gateway {
	cfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(opts.MaxNetworkRetries),
		HTTPClient:        opts.HTTPClient,
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if opts.BaseURL != "" {
		cfg.URL = stripe.String(opts.BaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return &Gateway{api: client.New(key, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})}
}

// CreateCharge charges either a card token or a stored customer.
func (g *Gateway) CreateCharge(ctx context.Context, c payment.Charge) (string, error) {
	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(c.Amount),
		Currency: stripe.String(c.Currency),
	}
	params.Context = ctx
	if c.Description != "" {
		params.Description = stripe.String(c.Description)
	}
	switch {
	case c.Customer != "":
		params.Customer = stripe.String(c.Customer)
	case c.Source != "":
		if err := params.SetSource(c.Source); err != nil {
			return "", &payment.Error{Kind: payment.KindInvalidRequest, Err: err}
		}
	default:
		return "", &payment.Error{Kind: payment.KindInvalidRequest, Err: errors.New("charge without source")}
	}

	ch, err := g.api.Charges.New(params)
	if err != nil {
		return "", classify(err)
	}
	return ch.ID, nil
}

// CreateCustomer creates a customer and attaches the card token to it.
func (g *Gateway) CreateCustomer(ctx context.Context, email, source string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	cus, err := g.api.Customers.New(params)
	if err != nil {
		return "", classify(err)
	}
	if err := g.AddSourceToCustomer(ctx, cus.ID, source); err != nil {
		return "", err
	}
	return cus.ID, nil
}

// AddSourceToCustomer attaches a card token to an existing customer.
func (g *Gateway) AddSourceToCustomer(ctx context.Context, customerID, source string) error {
	if source == "" {
		return &payment.Error{Kind: payment.KindInvalidRequest, Err: errors.New("empty card token")}
	}
	params := &stripe.PaymentSourceParams{
		Customer: stripe.String(customerID),
		Source:   &stripe.PaymentSourceSourceParams{Token: stripe.String(source)},
	}
	params.Context = ctx
	if _, err := g.api.PaymentSources.New(params); err != nil {
		return classify(err)
	}
	return nil
}

// ListCustomerSources returns up to limit cards stored for the customer.
func (g *Gateway) ListCustomerSources(ctx context.Context, customerID string, limit int) ([]payment.Card, error) {
	params := &stripe.PaymentSourceListParams{
		Customer: stripe.String(customerID),
		Object:   stripe.String("card"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	var cards []payment.Card
	it := g.api.PaymentSources.List(params)
	for len(cards) < limit && it.Next() {
		card := it.PaymentSource().Card
		if card == nil {
			continue
		}
		cards = append(cards, payment.Card{
			ID:       card.ID,
			Brand:    string(card.Brand),
			Last4:    card.Last4,
			ExpMonth: int(card.ExpMonth),
			ExpYear:  int(card.ExpYear),
		})
	}
	if err := it.Err(); err != nil {
		return nil, classify(err)
	}
	return cards, nil
}

// classify maps a Stripe client error to a payment.Error.
func classify(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		kind := payment.KindGateway
		switch {
		case serr.HTTPStatusCode == http.StatusTooManyRequests:
			kind = payment.KindRateLimited
		case serr.HTTPStatusCode == http.StatusUnauthorized:
			kind = payment.KindAuthenticationFailed
		case serr.Type == stripe.ErrorTypeCard:
			return &payment.Error{Kind: payment.KindCardDeclined, Reason: serr.Msg, Err: err}
		case serr.Type == stripe.ErrorTypeInvalidRequest:
			kind = payment.KindInvalidRequest
		case serr.Type == stripe.ErrorTypeAPI:
			kind = payment.KindGateway
		}
		return &payment.Error{Kind: kind, Err: err}
	}

	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded) {
		return &payment.Error{Kind: payment.KindNetwork, Err: err}
	}
	return &payment.Error{Kind: payment.KindUnknown, Err: err}
}
