// Package config provides application configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv      string // Application environment (dev, staging, prod)
	HTTPAddr    string // HTTP server bind address (e.g., ":8080")
	MetricsAddr string // Metrics server bind address

	RedisURL    string // Redis connection URL (the cache the delivery relay populates)
	CachePrefix string // Key prefix shared with the relay (e.g., "flagmirror")

	FlagKey      string // Flag evaluated by the demo endpoints
	FlagFallback string // Value served when real evaluation data is unavailable

	PollInterval     time.Duration // Stream re-evaluation cadence
	WaitInterval     time.Duration // Synchronization wait poll interval
	WaitTimeout      time.Duration // Synchronization wait deadline
	MaxConnTime      time.Duration // Streaming connection lifetime cap
	MonitorTick      time.Duration // Disconnect-check cadence for the raw command relay
	SessionTTL       time.Duration // TTL for session context records in Redis
	EventQueueSize   int           // Buffer size for the outward event queue
	RateLimitPerIP   int           // Rate limit for requests per IP per minute
	LoadTestMaxTotal int           // Upper bound on load-test request counts
	LoadTestMaxBurst int           // Upper bound on load-test concurrency
}

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
// Returns a Config struct with all values populated (either from env or defaults).
//
// Validation:
//
//	This function performs basic configuration loading but does NOT validate
//	configuration constraints. Use Validate() to check them at startup.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = v.ReadInConfig()    // Ignore error - .env is optional
	v.AutomaticEnv()        // Read from environment variables

	setConfigDefaults(v)

	return &Config{
		AppEnv:           v.GetString("APP_ENV"),
		HTTPAddr:         v.GetString("APP_HTTP_ADDR"),
		MetricsAddr:      v.GetString("METRICS_ADDR"),
		RedisURL:         v.GetString("REDIS_URL"),
		CachePrefix:      v.GetString("CACHE_PREFIX"),
		FlagKey:          v.GetString("FLAG_KEY"),
		FlagFallback:     v.GetString("FLAG_FALLBACK"),
		PollInterval:     v.GetDuration("POLL_INTERVAL"),
		WaitInterval:     v.GetDuration("WAIT_INTERVAL"),
		WaitTimeout:      v.GetDuration("WAIT_TIMEOUT"),
		MaxConnTime:      v.GetDuration("MAX_CONN_TIME"),
		MonitorTick:      v.GetDuration("MONITOR_TICK"),
		SessionTTL:       v.GetDuration("SESSION_TTL"),
		EventQueueSize:   v.GetInt("EVENT_QUEUE_SIZE"),
		RateLimitPerIP:   v.GetInt("RATE_LIMIT_PER_IP"),
		LoadTestMaxTotal: v.GetInt("LOADTEST_MAX_REQUESTS"),
		LoadTestMaxBurst: v.GetInt("LOADTEST_MAX_CONCURRENCY"),
	}, nil
}

// setConfigDefaults sets default values for all configuration options.
// These defaults are suitable for local development but should be overridden in production.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("CACHE_PREFIX", "flagmirror")
	v.SetDefault("FLAG_KEY", "user-message")
	v.SetDefault("FLAG_FALLBACK", "Hello from Go!")
	v.SetDefault("POLL_INTERVAL", 5*time.Second)
	v.SetDefault("WAIT_INTERVAL", 100*time.Millisecond)
	v.SetDefault("WAIT_TIMEOUT", 2*time.Second)
	v.SetDefault("MAX_CONN_TIME", 300*time.Second)
	v.SetDefault("MONITOR_TICK", 50*time.Millisecond)
	v.SetDefault("SESSION_TTL", time.Hour)
	v.SetDefault("EVENT_QUEUE_SIZE", 1000)
	v.SetDefault("RATE_LIMIT_PER_IP", 100)
	v.SetDefault("LOADTEST_MAX_REQUESTS", 10000)
	v.SetDefault("LOADTEST_MAX_CONCURRENCY", 100)
}

// ValidationError represents a configuration validation error with details about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks that the configuration is internally consistent.
// It is intended to be called at application startup to fail fast on
// misconfiguration. Returns nil if valid, or a ValidationError describing
// the first failure.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return ValidationError{Field: "APP_HTTP_ADDR", Message: "HTTP server address cannot be empty"}
	}
	if c.MetricsAddr == "" {
		return ValidationError{Field: "METRICS_ADDR", Message: "metrics server address cannot be empty"}
	}
	if c.RedisURL == "" {
		return ValidationError{Field: "REDIS_URL", Message: "Redis URL cannot be empty"}
	}
	if c.CachePrefix == "" {
		return ValidationError{Field: "CACHE_PREFIX", Message: "cache key prefix cannot be empty"}
	}
	if c.FlagKey == "" {
		return ValidationError{Field: "FLAG_KEY", Message: "flag key cannot be empty"}
	}
	if c.WaitInterval <= 0 {
		return ValidationError{Field: "WAIT_INTERVAL", Message: "wait poll interval must be positive"}
	}
	if c.WaitTimeout < c.WaitInterval {
		return ValidationError{
			Field:   "WAIT_TIMEOUT",
			Message: fmt.Sprintf("wait timeout %s must be at least the wait interval %s", c.WaitTimeout, c.WaitInterval),
		}
	}
	if c.PollInterval <= 0 {
		return ValidationError{Field: "POLL_INTERVAL", Message: "poll interval must be positive"}
	}
	if c.MaxConnTime <= c.PollInterval {
		return ValidationError{
			Field:   "MAX_CONN_TIME",
			Message: fmt.Sprintf("max connection time %s must exceed the poll interval %s", c.MaxConnTime, c.PollInterval),
		}
	}
	if c.MonitorTick <= 0 {
		return ValidationError{Field: "MONITOR_TICK", Message: "monitor tick must be positive"}
	}
	if c.EventQueueSize <= 0 {
		return ValidationError{Field: "EVENT_QUEUE_SIZE", Message: "event queue size must be positive"}
	}
	if c.LoadTestMaxTotal <= 0 || c.LoadTestMaxBurst <= 0 {
		return ValidationError{Field: "LOADTEST_MAX_REQUESTS", Message: "load-test limits must be positive"}
	}
	return nil
}
