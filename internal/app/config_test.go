package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Addr:         "0.0.0.0:8080",
		DatabaseURL:  "postgres://localhost/storefront",
		APIKeyPepper: "pepper",
		Stripe:       StripeConfig{Timeout: 30 * time.Second},
		RateLimit:    RateLimitConfig{Max: 100, Window: time.Minute},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no database", func(c *Config) { c.DatabaseURL = "" }, "database URL is required"},
		{"no pepper", func(c *Config) { c.APIKeyPepper = "" }, "API key pepper is required"},
		{"zero timeout", func(c *Config) { c.Stripe.Timeout = 0 }, "stripe timeout must be positive"},
		{"zero rate", func(c *Config) { c.RateLimit.Max = 0 }, "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_platform")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "sk_test_platform", cfg.Stripe.Key)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	cfg = Config{Addr: "127.0.0.1:1234", DatabaseURL: "postgres://explicit/db", Stripe: StripeConfig{Key: "sk_explicit"}}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/db", cfg.DatabaseURL)
	assert.Equal(t, "sk_explicit", cfg.Stripe.Key)
	assert.Equal(t, "127.0.0.1:1234", cfg.Addr)
}
