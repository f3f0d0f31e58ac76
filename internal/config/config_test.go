package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("REFRESH_SECRET", "test-refresh")
	t.Setenv("APP_ENV", "development")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !cfg.Sandbox {
		t.Fatalf("expected sandbox default in development env")
	}
	if cfg.EntitlementTTL != 8760*time.Hour {
		t.Fatalf("unexpected entitlement ttl: %s", cfg.EntitlementTTL)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address: %s", cfg.Address())
	}
}

func TestLoadStrictRequiresAPIKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("WALLET_SANDBOX", "false")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PLATFORM_API_KEY missing in strict mode")
	}

	t.Setenv("PLATFORM_API_KEY", "key-1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sandbox {
		t.Fatalf("expected strict profile")
	}
}

func TestLoadDurationSeconds(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("IDEMPOTENCY_TTL", "60")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IdempotencyTTL != time.Minute {
		t.Fatalf("unexpected idempotency ttl: %s", cfg.IdempotencyTTL)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("unexpected access ttl: %s", cfg.AccessTokenTTL)
	}
}
