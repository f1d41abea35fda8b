// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the order desk bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Bot       BotConfig       `mapstructure:"bot" validate:"required"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Payment   PaymentConfig   `mapstructure:"payment" validate:"required"`
	Admin     AdminConfig     `mapstructure:"admin" validate:"required"`
	Drafts    DraftsConfig    `mapstructure:"drafts"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// BotConfig configures the Telegram connection and the executor group.
type BotConfig struct {
	Token       string        `mapstructure:"token" validate:"required"`
	Mode        string        `mapstructure:"mode"` // polling or webhook
	Timeout     time.Duration `mapstructure:"timeout"`
	GroupChatID int64         `mapstructure:"group_chat_id" validate:"required"`
}

// ServerConfig configures the metrics/health HTTP listener.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode,
	)
}

// RedisConfig configures the Redis connection used for drafts, pending
// actions, idempotency records, and rate limits.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// LoggerConfig configures the slog root logger.
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"` // json or text
	FilePath string `mapstructure:"file_path"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// PaymentConfig holds the card number included in payment instructions.
type PaymentConfig struct {
	CardNumber string `mapstructure:"card_number" validate:"required"`
}

// AdminConfig seeds the authorized set.
type AdminConfig struct {
	BootstrapID int64 `mapstructure:"bootstrap_id" validate:"required"`
}

// DraftsConfig selects the draft store backend.
type DraftsConfig struct {
	Backend string        `mapstructure:"backend"` // redis or postgres
	TTL     time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig configures the per-user inbound limiter.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}
