package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/gateway/stripe"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/media"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	mediaStore, err := media.NewDir(cfg.Media.Dir)
	if err != nil {
		return errors.Wrap(err, "open media store")
	}

	publisher, closePublisher, err := newPublisher(lg, cfg.Kafka)
	if err != nil {
		return errors.Wrap(err, "create event publisher")
	}
	defer closePublisher()

	gateways := make(map[payment.Option]payment.Gateway)
	if cfg.Stripe.Key != "" {
		gateways[payment.OptionStripe] = stripe.New(cfg.Stripe.Key, stripe.Options{
			BaseURL:           cfg.Stripe.BaseURL,
			MaxNetworkRetries: cfg.Stripe.MaxRetries,
		})
	} else {
		lg.Warn("Stripe key is not set, card payments are disabled")
	}

	orderService, err := order.NewService(store, gateways, order.Options{
		Currency:       cfg.Stripe.Currency,
		GatewayTimeout: cfg.Stripe.Timeout,
		Publisher:      publisher,
		PublishTimeout: cfg.Kafka.PublishTimeout,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	catalogService := catalog.NewService(store.Items(), mediaStore)
	addressBook := address.NewBook(store.Addresses())

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck("postgres", store))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h := handler.New(
		handler.Config{MediaURL: cfg.Media.URL, MaxUploadBytes: cfg.Media.MaxUploadBytes},
		orderService,
		catalogService,
		addressBook,
		mediaStore,
		handler.NewAuthenticator(store.APIKeys(), []byte(cfg.APIKeyPepper)),
	)

	router := chi.NewRouter()
	router.Use(
		httpmiddleware.Instrument("storefront", m.TracerProvider(), m.MeterProvider()),
		httpmiddleware.LogRequests(),
	)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/api", h.Routes())
	router.Handle("/media/*", http.StripPrefix("/media/", h.Media()))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Stripe.Timeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:     cfg.CORS.Origins,
				Headers:     []string{"Content-Type", "Authorization", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				Expose:      []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				Credentials: cfg.CORS.AllowCredentials,
				MaxAge:      86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newPublisher returns the Kafka publisher when brokers are configured and
// a logging publisher otherwise.
func newPublisher(lg *zap.Logger, cfg KafkaConfig) (order.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		lg.Info("No Kafka brokers configured, order events are logged only")
		return events.LogPublisher{}, func() {}, nil
	}
	p, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		WriteTimeout: cfg.PublishTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	lg.Info("Publishing order events", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return p, func() {
		if err := p.Close(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}, nil
}
