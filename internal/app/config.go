package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing" flag:"api-key-pepper"`
	Stripe       StripeConfig
	Kafka        KafkaConfig
	Media        MediaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// StripeConfig configures the card payment gateway.
type StripeConfig struct {
	Key        string        `usage:"Stripe secret key; card payments are disabled when empty"`
	BaseURL    string        `default:"" usage:"Override the Stripe API endpoint" flag:"stripe-base-url"`
	Currency   string        `default:"usd" usage:"ISO currency code of every charge"`
	Timeout    time.Duration `default:"30s" usage:"Timeout of a single gateway call"`
	MaxRetries int64         `default:"0" usage:"Network retries of the Stripe client" flag:"stripe-max-retries"`
}

// KafkaConfig configures lifecycle event delivery.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers; events are only logged when empty"`
	Topic   string   `default:"storefront.orders" usage:"Topic for order lifecycle events"`
	// PublishTimeout bounds event delivery on the request path.
	PublishTimeout time.Duration `default:"2s" usage:"Maximum time spent publishing events per request" flag:"kafka-publish-timeout"`
}

// MediaConfig configures item image storage.
type MediaConfig struct {
	Dir            string `default:"media" usage:"Directory for uploaded item images"`
	URL            string `default:"/media" usage:"URL prefix of item images in API responses"`
	MaxUploadBytes int64  `default:"10485760" usage:"Maximum size of an image upload request" flag:"media-max-upload"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML
// config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case c.APIKeyPepper == "":
		return errors.New("API key pepper is required: set SHOP_API_KEY_PEPPER")
	case c.Stripe.Timeout <= 0:
		return errors.Errorf("stripe timeout must be positive, got %s", c.Stripe.Timeout)
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (DATABASE_URL, PORT, STRIPE_SECRET_KEY) to the SHOP_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Stripe.Key == "" {
		c.Stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
