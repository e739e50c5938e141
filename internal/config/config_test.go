//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("should apply defaults to a minimal file", func(t *testing.T) {
		path := writeConfig(t, `
database:
  url: postgres://localhost/giftcards
redis:
  url: redis://localhost:6379
admin:
  jwt_secret: s3cret
`)
		cfg, err := LoadConfig(path, true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.HTTP.Addr != ":8080" || cfg.Log.Level != "info" || cfg.Log.Format != "json" {
			t.Errorf("unexpected defaults: %+v %+v", cfg.HTTP, cfg.Log)
		}
		if cfg.Gateway.BaseURL != "https://api.mercadopago.com" || cfg.Gateway.MaxRetries != 3 {
			t.Errorf("unexpected gateway defaults: %+v", cfg.Gateway)
		}
		if cfg.Scheduler.PendingSweepCron != "@every 5m" || cfg.Scheduler.PendingOlderThan != 10*time.Minute {
			t.Errorf("unexpected scheduler defaults: %+v", cfg.Scheduler)
		}
		if cfg.Redis.TTL != time.Hour {
			t.Errorf("expected default ttl, got %v", cfg.Redis.TTL)
		}
		if !cfg.Runtime.Dev {
			t.Error("dev flag not propagated")
		}
	})

	t.Run("should let the environment override the file", func(t *testing.T) {
		path := writeConfig(t, `
database:
  url: postgres://file/db
redis:
  url: redis://file:6379
admin:
  jwt_secret: from-file
gateway:
  sandbox: false
`)
		t.Setenv("GIFTCARD_DATABASE_URL", "postgres://env/db")
		t.Setenv("GIFTCARD_GATEWAY_SANDBOX", "true")
		t.Setenv("GIFTCARD_HTTP_RATE_LIMIT", "30")

		cfg, err := LoadConfig(path, false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Database.URL != "postgres://env/db" {
			t.Errorf("env did not override database url: %q", cfg.Database.URL)
		}
		if !cfg.Gateway.Sandbox || cfg.HTTP.RateLimit != 30 {
			t.Errorf("env overrides missing: %+v %+v", cfg.Gateway, cfg.HTTP)
		}
		if cfg.Redis.URL != "redis://file:6379" {
			t.Errorf("file value lost: %q", cfg.Redis.URL)
		}
	})

	t.Run("should load from environment alone", func(t *testing.T) {
		t.Setenv("GIFTCARD_DATABASE_URL", "postgres://env/db")
		t.Setenv("GIFTCARD_REDIS_URL", "redis://env:6379")
		t.Setenv("GIFTCARD_ADMIN_JWT_SECRET", "x")
		if _, err := LoadConfig("", false); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("should fail validation", func(t *testing.T) {
		tests := map[string]string{
			"missing database": "redis:\n  url: r\nadmin:\n  jwt_secret: x\n",
			"missing redis":    "database:\n  url: d\nadmin:\n  jwt_secret: x\n",
			"missing secret":   "database:\n  url: d\nredis:\n  url: r\n",
			"bad key length":   "database:\n  url: d\nredis:\n  url: r\nadmin:\n  jwt_secret: x\nsecurity:\n  encryption_key: short\n",
		}
		for name, body := range tests {
			if _, err := LoadConfig(writeConfig(t, body), false); err == nil {
				t.Errorf("%s: expected an error", name)
			}
		}
	})

	t.Run("should fail on a missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), false); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestConfig_SandboxGateway(t *testing.T) {
	tests := []struct {
		name      string
		dev       bool
		token     string
		sandbox   bool
		wantToken string
	}{
		{"dev without token", true, "", true, SandboxAccessToken},
		{"dev with token", true, "APP_USR-1", false, "APP_USR-1"},
		{"prod without token", false, "", false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Runtime: RuntimeConfig{Dev: tc.dev}, Gateway: GatewayConfig{AccessToken: tc.token}}
			if got := cfg.UseSandboxGateway(); got != tc.sandbox {
				t.Errorf("UseSandboxGateway() = %v, want %v", got, tc.sandbox)
			}
			if got := cfg.SettingFallbacks()["gateway_access_token"]; got != tc.wantToken {
				t.Errorf("access token fallback = %q, want %q", got, tc.wantToken)
			}
		})
	}
}
