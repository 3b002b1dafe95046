package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config carries process configuration resolved from the environment.
type Config struct {
	Addr        string
	Environment string
	DatabaseDSN string

	// Token verification secrets. The encryption secret unlocks the
	// 5-segment encrypted credential form, the signing secret the
	// 3-segment signed form. At least one must be configured.
	TokenSigningSecret    string
	TokenEncryptionSecret string

	// Payment provider credentials and webhook signing secret.
	PaymentKeyID         string
	PaymentKeySecret     string
	PaymentWebhookSecret string
	PaymentAPIBaseURL    string
	PaymentAPITimeout    time.Duration

	// Webhook endpoint rate limiting.
	WebhookRateLimit  int
	WebhookRateWindow time.Duration

	TracingEnabled  bool
	TracingEndpoint string
	TracingProtocol string
	SamplingRatio   float64

	SeedDemoUser bool
}

var (
	ErrMissingTokenSecret = errors.New("missing_token_secret")
	ErrMissingDatabaseDSN = errors.New("missing_database_dsn")
)

// Load resolves configuration from the environment. A local .env file is
// honoured when present so development does not require exported variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:                  envOr("PROMPTLENS_ADDR", ":8080"),
		Environment:           envOr("PROMPTLENS_ENV", "development"),
		DatabaseDSN:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TokenSigningSecret:    strings.TrimSpace(os.Getenv("TOKEN_SIGNING_SECRET")),
		TokenEncryptionSecret: strings.TrimSpace(os.Getenv("TOKEN_ENCRYPTION_SECRET")),
		PaymentKeyID:          strings.TrimSpace(os.Getenv("PAYMENT_KEY_ID")),
		PaymentKeySecret:      strings.TrimSpace(os.Getenv("PAYMENT_KEY_SECRET")),
		PaymentWebhookSecret:  strings.TrimSpace(os.Getenv("PAYMENT_WEBHOOK_SECRET")),
		PaymentAPIBaseURL:     envOr("PAYMENT_API_BASE_URL", "https://api.razorpay.com/v1"),
		PaymentAPITimeout:     envDurationOr("PAYMENT_API_TIMEOUT", 5*time.Second),
		WebhookRateLimit:      envIntOr("WEBHOOK_RATE_LIMIT", 60),
		WebhookRateWindow:     envDurationOr("WEBHOOK_RATE_WINDOW", time.Minute),
		TracingEnabled:        envBoolOr("TRACING_ENABLED", false),
		TracingEndpoint:       strings.TrimSpace(os.Getenv("TRACING_ENDPOINT")),
		TracingProtocol:       envOr("TRACING_PROTOCOL", "grpc"),
		SamplingRatio:         envFloatOr("TRACING_SAMPLING_RATIO", 1.0),
		SeedDemoUser:          envBoolOr("SEED_DEMO_USER", false),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would fail on every request. A
// process with no verification secret at all cannot authenticate anyone,
// so it refuses to start instead.
func (c Config) Validate() error {
	if c.TokenSigningSecret == "" && c.TokenEncryptionSecret == "" {
		return ErrMissingTokenSecret
	}
	if c.DatabaseDSN == "" && c.IsProduction() {
		return ErrMissingDatabaseDSN
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envFloatOr(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envBoolOr(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// Module exposes configuration to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
)
