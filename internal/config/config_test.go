package config

import (
	"errors"
	"testing"
	"time"
)

func TestValidateRequiresTokenSecret(t *testing.T) {
	cfg := Config{Environment: "development"}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingTokenSecret) {
		t.Fatalf("expected ErrMissingTokenSecret, got %v", err)
	}
}

func TestValidateAcceptsSingleSecret(t *testing.T) {
	cfg := Config{Environment: "development", TokenSigningSecret: "s3cret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg = Config{Environment: "development", TokenEncryptionSecret: "s3cret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRequiresDSNInProduction(t *testing.T) {
	cfg := Config{Environment: "production", TokenSigningSecret: "s3cret"}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingDatabaseDSN) {
		t.Fatalf("expected ErrMissingDatabaseDSN, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_SIGNING_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PAYMENT_API_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.PaymentAPITimeout != 5*time.Second {
		t.Fatalf("expected default payment timeout, got %v", cfg.PaymentAPITimeout)
	}
	if cfg.WebhookRateLimit != 60 {
		t.Fatalf("expected default webhook rate limit, got %d", cfg.WebhookRateLimit)
	}
}
