package order

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/payment"
)

// Options configures a Service. Zero values are replaced with defaults.
type Options struct {
	// Currency is the ISO code sent with every charge.
	Currency string
	// GatewayTimeout bounds a single gateway call.
	GatewayTimeout time.Duration
	// SavedCardLimit caps the stored cards listed on the payment page.
	SavedCardLimit int

	Publisher Publisher
	// PublishTimeout bounds event delivery after a committed transition.
	PublishTimeout time.Duration

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider

	// Now and RefCode are overridden in tests.
	Now     func() time.Time
	RefCode func() (string, error)
}

func (o *Options) setDefaults() {
	if o.Currency == "" {
		o.Currency = "usd"
	}
	if o.GatewayTimeout == 0 {
		o.GatewayTimeout = 30 * time.Second
	}
	if o.SavedCardLimit == 0 {
		o.SavedCardLimit = 3
	}
	if o.Publisher == nil {
		o.Publisher = nopPublisher{}
	}
	if o.PublishTimeout == 0 {
		o.PublishTimeout = 2 * time.Second
	}
	if o.MeterProvider == nil {
		o.MeterProvider = noop.NewMeterProvider()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.RefCode == nil {
		o.RefCode = NewRefCode
	}
}

// Service drives the order lifecycle from cart to refund.
type Service struct {
	store    Transactor
	gateways map[payment.Option]payment.Gateway

	currency       string
	gatewayTimeout time.Duration
	savedCardLimit int
	publisher      Publisher
	publishTimeout time.Duration
	now            func() time.Time
	refCode        func() (string, error)

	tracer  trace.Tracer
	charges metric.Int64Counter
}

// NewService creates an order Service. Gateways maps each enabled payment
// option to its processor; options without a gateway are rejected at payment.
func NewService(store Transactor, gateways map[payment.Option]payment.Gateway, opts Options) (*Service, error) {
	opts.setDefaults()

	meter := opts.MeterProvider.Meter("storefront/order")
	charges, err := meter.Int64Counter("storefront.payment.charges",
		metric.WithDescription("Charge attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "charges counter")
	}

	return &Service{
		store:          store,
		gateways:       gateways,
		currency:       opts.Currency,
		gatewayTimeout: opts.GatewayTimeout,
		savedCardLimit: opts.SavedCardLimit,
		publisher:      opts.Publisher,
		publishTimeout: opts.PublishTimeout,
		now:            opts.Now,
		refCode:        opts.RefCode,
		tracer:         opts.TracerProvider.Tracer("storefront/order"),
		charges:        charges,
	}, nil
}

// Summary returns the user's open order with its lines, or ErrNoActiveOrder.
func (s *Service) Summary(ctx context.Context, userID string) (*Order, error) {
	var o *Order
	err := s.store.InTx(ctx, func(ctx context.Context, u Unit) (err error) {
		o, err = u.Orders.FindOpen(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CartQuantity returns the number of units in the user's cart, 0 without one.
func (s *Service) CartQuantity(ctx context.Context, userID string) (int, error) {
	o, err := s.Summary(ctx, userID)
	if errors.Is(err, ErrNoActiveOrder) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return o.TotalQuantity(), nil
}
