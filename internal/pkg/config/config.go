package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fleetlog/fleetlog/internal/pkg/env"
)

// Config is built once at process start and handed to every component.
// Business logic never reads the environment directly.
type Config struct {
	AppHost string
	AppPort string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	AdminToken string

	PaymentAPIBaseURL    string
	PaymentSecretKey     string
	PaymentWebhookSecret string

	SendgridAPIKey string
	MailSender     string
	SMTPHost       string
	SMTPPort       string
	SMTPUsername   string
	SMTPPassword   string

	CeilingSingle int64
	CeilingFleet  int64
	WarnFraction  float64

	RateLimitMax    int64
	RateLimitWindow time.Duration

	AuditTTL    time.Duration
	WarnFlagTTL time.Duration
}

const defaultPaymentAPIBaseURL = "https://api.stripe.com/v1"

// Load reads all configuration from the environment.
func Load() *Config {
	return &Config{
		AppHost: env.GetEnv("APP_HOST", "0.0.0.0"),
		AppPort: env.GetEnv("APP_PORT", "4000"),

		RedisAddr:     env.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: env.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       intFromEnv("REDIS_DB", 0),
		KeyPrefix:     env.GetEnv("KEY_PREFIX", "fleetlog"),

		AdminToken: strings.TrimSpace(env.GetEnv("ADMIN_TOKEN", "")),

		PaymentAPIBaseURL:    strings.TrimRight(env.GetEnv("PAYMENT_API_BASE_URL", defaultPaymentAPIBaseURL), "/"),
		PaymentSecretKey:     strings.TrimSpace(env.GetEnv("PAYMENT_SECRET_KEY", "")),
		PaymentWebhookSecret: strings.TrimSpace(env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")),

		SendgridAPIKey: strings.TrimSpace(env.GetEnv("SENDGRID_API_KEY", "")),
		MailSender:     env.GetEnv("MAIL_SENDER", "fleetlog@localhost"),
		SMTPHost:       env.GetEnv("SMTP_HOST", "localhost"),
		SMTPPort:       env.GetEnv("SMTP_PORT", "25"),
		SMTPUsername:   env.GetEnv("SMTP_USERNAME", ""),
		SMTPPassword:   env.GetEnv("SMTP_PASSWORD", ""),

		CeilingSingle: int64FromEnv("FLEETLOG_CEILING_SINGLE", 30),
		CeilingFleet:  int64FromEnv("FLEETLOG_CEILING_FLEET", 300),
		WarnFraction:  0.8,

		RateLimitMax:    int64FromEnv("FLEETLOG_RATE_LIMIT_MAX", 5),
		RateLimitWindow: durationFromEnv("FLEETLOG_RATE_LIMIT_WINDOW", 10*time.Second),

		AuditTTL:    durationFromEnv("FLEETLOG_AUDIT_TTL", 30*24*time.Hour),
		WarnFlagTTL: durationFromEnv("FLEETLOG_WARN_FLAG_TTL", 30*24*time.Hour),
	}
}

// CeilingForTier resolves the log-entry ceiling for a tier.
func (c *Config) CeilingForTier(tier string) int64 {
	if strings.EqualFold(strings.TrimSpace(tier), "fleet") {
		return c.CeilingFleet
	}
	return c.CeilingSingle
}

// ValidateWebhook reports whether the webhook path has the credentials it
// needs. A missing secret is a configuration error, not a client error.
func (c *Config) ValidateWebhook() error {
	if c.PaymentWebhookSecret == "" {
		return errors.New("PAYMENT_WEBHOOK_SECRET is not configured")
	}
	if c.PaymentSecretKey == "" {
		return errors.New("PAYMENT_SECRET_KEY is not configured")
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(env.GetEnv(key, ""))); err == nil {
		return v
	}
	return def
}

func int64FromEnv(key string, def int64) int64 {
	if v, err := strconv.ParseInt(strings.TrimSpace(env.GetEnv(key, "")), 10, 64); err == nil && v > 0 {
		return v
	}
	return def
}

func durationFromEnv(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(strings.TrimSpace(env.GetEnv(key, ""))); err == nil && v > 0 {
		return v
	}
	return def
}
