package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "GIFTCARD_"

// SandboxAccessToken stands in for the gateway token when dev mode runs
// against the in-memory sandbox gateway.
const SandboxAccessToken = "sandbox"

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout" env:"HTTP_HANDLER_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
	// RateLimit is the per-client request budget per RateWindow on the
	// public purchase and redeem endpoints. Zero disables limiting.
	RateLimit  int           `yaml:"rate_limit" env:"HTTP_RATE_LIMIT"`
	RateWindow time.Duration `yaml:"rate_window" env:"HTTP_RATE_WINDOW"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`       // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"`     // json|console
	Sampling bool   `yaml:"sampling" env:"LOG_SAMPLING"` // enable sampling in prod
}

type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"ADMIN_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"ADMIN_TOKEN_TTL"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns" env:"DATABASE_MAX_CONNS"`
	Migrate  bool   `yaml:"migrate" env:"DATABASE_MIGRATE"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL"`
}

// GatewayConfig holds Mercado Pago client settings. AccessToken, WebhookSecret
// and NotificationBaseURL are fallbacks for the settings store.
type GatewayConfig struct {
	BaseURL             string        `yaml:"base_url" env:"GATEWAY_BASE_URL"`
	AccessToken         string        `yaml:"access_token" env:"GATEWAY_ACCESS_TOKEN"`
	WebhookSecret       string        `yaml:"webhook_secret" env:"GATEWAY_WEBHOOK_SECRET"`
	NotificationBaseURL string        `yaml:"notification_base_url" env:"GATEWAY_NOTIFICATION_BASE_URL"`
	Sandbox             bool          `yaml:"sandbox" env:"GATEWAY_SANDBOX"`
	Timeout             time.Duration `yaml:"timeout" env:"GATEWAY_TIMEOUT"`
	MaxRetries          uint          `yaml:"max_retries" env:"GATEWAY_MAX_RETRIES"`
}

type NotifierConfig struct {
	// WebhookURL receives delivery requests as JSON. Empty logs deliveries only.
	WebhookURL string        `yaml:"webhook_url" env:"NOTIFIER_WEBHOOK_URL"`
	Locale     string        `yaml:"locale" env:"NOTIFIER_LOCALE"`
	Timeout    time.Duration `yaml:"timeout" env:"NOTIFIER_TIMEOUT"`
	Workers    int           `yaml:"workers" env:"NOTIFIER_WORKERS"`
}

type SchedulerConfig struct {
	PendingSweepCron string        `yaml:"pending_sweep_cron" env:"SCHEDULER_PENDING_SWEEP_CRON"`
	PendingOlderThan time.Duration `yaml:"pending_older_than" env:"SCHEDULER_PENDING_OLDER_THAN"`
	SweepBatch       int           `yaml:"sweep_batch" env:"SCHEDULER_SWEEP_BATCH"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key" env:"SECURITY_ENCRYPTION_KEY"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (optional when empty), applies
// GIFTCARD_* environment overrides, fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	c.HTTP.ReadTimeout = orDuration(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = orDuration(c.HTTP.WriteTimeout, 30*time.Second)
	c.HTTP.HandlerTimeout = orDuration(c.HTTP.HandlerTimeout, 25*time.Second)
	c.HTTP.ShutdownTimeout = orDuration(c.HTTP.ShutdownTimeout, 15*time.Second)
	c.HTTP.RateWindow = orDuration(c.HTTP.RateWindow, time.Minute)
	if c.HTTP.RateLimit < 0 {
		c.HTTP.RateLimit = 0
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.Admin.TokenTTL = orDuration(c.Admin.TokenTTL, 12*time.Hour)
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Redis.TTL = normalizeTTL(c.Redis.TTL)

	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = "https://api.mercadopago.com"
	}
	c.Gateway.Timeout = orDuration(c.Gateway.Timeout, 15*time.Second)
	if c.Gateway.MaxRetries == 0 {
		c.Gateway.MaxRetries = 3
	}

	if c.Notifier.Locale == "" {
		c.Notifier.Locale = "pt"
	}
	c.Notifier.Timeout = orDuration(c.Notifier.Timeout, 10*time.Second)
	if c.Notifier.Workers <= 0 {
		c.Notifier.Workers = 4
	}

	if c.Scheduler.PendingSweepCron == "" {
		c.Scheduler.PendingSweepCron = "@every 5m"
	}
	c.Scheduler.PendingOlderThan = orDuration(c.Scheduler.PendingOlderThan, 10*time.Minute)
	if c.Scheduler.SweepBatch <= 0 {
		c.Scheduler.SweepBatch = 100
	}
}

// Validate performs the minimal checks needed to start.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required")
	}
	if n := len(c.Security.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes, got %d", n)
	}
	return nil
}

// UseSandboxGateway reports whether payments go to the in-memory sandbox:
// dev mode without a configured access token.
func (c *Config) UseSandboxGateway() bool {
	return c.Runtime.Dev && c.Gateway.AccessToken == ""
}

// SettingFallbacks maps settings-store keys to their configured defaults.
func (c *Config) SettingFallbacks() map[string]string {
	token := c.Gateway.AccessToken
	if c.UseSandboxGateway() {
		token = SandboxAccessToken
	}
	return map[string]string{
		"gateway_access_token":   token,
		"gateway_webhook_secret": c.Gateway.WebhookSecret,
		"notification_base_url":  c.Gateway.NotificationBaseURL,
	}
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
