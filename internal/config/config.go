// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minSecretLen is the shortest JWT_SECRET accepted outside development.
const minSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is a Postgres DSN (postgres://...) or a SQLite path prefixed with sqlite3://.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HMAC key used to sign access and refresh tokens.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim (e.g. "crm-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// Env is the application environment ("development" or "production").
	Env string `mapstructure:"APP_ENV"`
	// CookieSecure overrides the Secure cookie attribute when set to a boolean; empty derives it from Env.
	CookieSecure string `mapstructure:"COOKIE_SECURE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// RedisURL enables the login throttle (e.g. redis://localhost:6379/0). Empty disables it.
	RedisURL string `mapstructure:"REDIS_URL"`
	// LoginMaxAttempts is the number of failed logins allowed per window, per email and per address.
	LoginMaxAttempts int `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	// LoginWindow is the throttle window (e.g. "15m").
	LoginWindow string `mapstructure:"LOGIN_WINDOW"`

	// TrustedProxies is a comma-separated list of CIDRs or addresses whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the connection address is always the client.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. Empty disables auth event publishing.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventsTopic is the Kafka topic for auth events (default crm-auth-events).
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_TOPIC"`

	// Worker-only: Loki URL for the event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTelEndpoint is the OTLP gRPC collector endpoint (host:port). Empty disables OTel export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// SessionSweepInterval is how often expired session records are purged (e.g. "1h").
	SessionSweepInterval string `mapstructure:"SESSION_SWEEP_INTERVAL"`
	// ShutdownTimeout bounds graceful HTTP shutdown (e.g. "15s").
	ShutdownTimeout string `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv values reach Unmarshal.
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "crm-auth")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("COOKIE_SECURE", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_WINDOW", "15m")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_TOPIC", "crm-auth-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "crm-auth-events-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1h")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	switch cfg.Env {
	case "development", "production":
	default:
		return nil, errors.New("config: APP_ENV must be development or production")
	}

	if cfg.JWTSecret != "" && cfg.IsProduction() && len(cfg.JWTSecret) < minSecretLen {
		return nil, errors.New("config: JWT_SECRET must be at least 32 bytes when APP_ENV=production")
	}

	if cfg.CookieSecure != "" {
		if _, err := strconv.ParseBool(cfg.CookieSecure); err != nil {
			return nil, errors.New("config: COOKIE_SECURE must be a boolean")
		}
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.LoginMaxAttempts <= 0 {
		cfg.LoginMaxAttempts = 5
	}

	return &cfg, nil
}

// RequireAuth reports an error when the signing secret is missing. The HTTP server calls it;
// tools such as cmd/migrate do not need a secret.
func (c *Config) RequireAuth() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SecureCookies reports whether auth cookies carry the Secure attribute.
// COOKIE_SECURE wins when set; otherwise cookies are secure everywhere except development.
func (c *Config) SecureCookies() bool {
	if c.CookieSecure != "" {
		b, err := strconv.ParseBool(c.CookieSecure)
		if err == nil {
			return b
		}
	}
	return c.Env != "development"
}

// LoginThrottleWindow parses LoginWindow. Returns 15m if unset or invalid.
func (c *Config) LoginThrottleWindow() time.Duration {
	return parseDuration(c.LoginWindow, 15*time.Minute)
}

// SweepInterval parses SessionSweepInterval. Returns 1h if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.SessionSweepInterval, time.Hour)
}

// ShutdownGrace parses ShutdownTimeout. Returns 15s if unset or invalid.
func (c *Config) ShutdownGrace() time.Duration {
	return parseDuration(c.ShutdownTimeout, 15*time.Second)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// TrustedProxiesList returns the TRUSTED_PROXIES entries.
func (c *Config) TrustedProxiesList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
