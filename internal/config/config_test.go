package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	// Clear any environment variables to test defaults
	env := []string{
		"APP_ENV", "APP_HTTP_ADDR", "METRICS_ADDR", "REDIS_URL", "CACHE_PREFIX",
		"FLAG_KEY", "FLAG_FALLBACK", "POLL_INTERVAL", "WAIT_INTERVAL",
		"WAIT_TIMEOUT", "MAX_CONN_TIME", "MONITOR_TICK", "SESSION_TTL",
		"EVENT_QUEUE_SIZE", "RATE_LIMIT_PER_IP", "LOADTEST_MAX_REQUESTS",
		"LOADTEST_MAX_CONCURRENCY",
	}

	for _, key := range env {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("Expected AppEnv='dev', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr=':8080', got '%s'", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("Expected MetricsAddr=':9090', got '%s'", cfg.MetricsAddr)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Expected default Redis URL, got '%s'", cfg.RedisURL)
	}
	if cfg.CachePrefix != "flagmirror" {
		t.Errorf("Expected CachePrefix='flagmirror', got '%s'", cfg.CachePrefix)
	}
	if cfg.FlagKey != "user-message" {
		t.Errorf("Expected FlagKey='user-message', got '%s'", cfg.FlagKey)
	}
	if cfg.FlagFallback != "Hello from Go!" {
		t.Errorf("Expected FlagFallback='Hello from Go!', got '%s'", cfg.FlagFallback)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("Expected PollInterval=5s, got %s", cfg.PollInterval)
	}
	if cfg.WaitInterval != 100*time.Millisecond {
		t.Errorf("Expected WaitInterval=100ms, got %s", cfg.WaitInterval)
	}
	if cfg.WaitTimeout != 2*time.Second {
		t.Errorf("Expected WaitTimeout=2s, got %s", cfg.WaitTimeout)
	}
	if cfg.MaxConnTime != 300*time.Second {
		t.Errorf("Expected MaxConnTime=300s, got %s", cfg.MaxConnTime)
	}
	if cfg.EventQueueSize != 1000 {
		t.Errorf("Expected EventQueueSize=1000, got %d", cfg.EventQueueSize)
	}
	if cfg.RateLimitPerIP != 100 {
		t.Errorf("Expected RateLimitPerIP=100, got %d", cfg.RateLimitPerIP)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_HTTP_ADDR", ":9999")
	t.Setenv("FLAG_KEY", "other-flag")
	t.Setenv("POLL_INTERVAL", "1s")
	t.Setenv("RATE_LIMIT_PER_IP", "200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "test" {
		t.Errorf("Expected AppEnv='test', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTPAddr=':9999', got '%s'", cfg.HTTPAddr)
	}
	if cfg.FlagKey != "other-flag" {
		t.Errorf("Expected FlagKey='other-flag', got '%s'", cfg.FlagKey)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("Expected PollInterval=1s, got %s", cfg.PollInterval)
	}
	if cfg.RateLimitPerIP != 200 {
		t.Errorf("Expected RateLimitPerIP=200, got %d", cfg.RateLimitPerIP)
	}
}

func validConfig() *Config {
	return &Config{
		AppEnv:           "dev",
		HTTPAddr:         ":8080",
		MetricsAddr:      ":9090",
		RedisURL:         "redis://localhost:6379/0",
		CachePrefix:      "flagmirror",
		FlagKey:          "user-message",
		FlagFallback:     "Hello from Go!",
		PollInterval:     5 * time.Second,
		WaitInterval:     100 * time.Millisecond,
		WaitTimeout:      2 * time.Second,
		MaxConnTime:      300 * time.Second,
		MonitorTick:      50 * time.Millisecond,
		SessionTTL:       time.Hour,
		EventQueueSize:   1000,
		RateLimitPerIP:   100,
		LoadTestMaxTotal: 10000,
		LoadTestMaxBurst: 100,
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() failed on valid config: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty http addr", func(c *Config) { c.HTTPAddr = "" }, "APP_HTTP_ADDR"},
		{"empty redis url", func(c *Config) { c.RedisURL = "" }, "REDIS_URL"},
		{"empty prefix", func(c *Config) { c.CachePrefix = "" }, "CACHE_PREFIX"},
		{"empty flag key", func(c *Config) { c.FlagKey = "" }, "FLAG_KEY"},
		{"zero wait interval", func(c *Config) { c.WaitInterval = 0 }, "WAIT_INTERVAL"},
		{"timeout below interval", func(c *Config) { c.WaitTimeout = 50 * time.Millisecond }, "WAIT_TIMEOUT"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "POLL_INTERVAL"},
		{"lifetime below poll", func(c *Config) { c.MaxConnTime = time.Second }, "MAX_CONN_TIME"},
		{"zero monitor tick", func(c *Config) { c.MonitorTick = 0 }, "MONITOR_TICK"},
		{"zero queue size", func(c *Config) { c.EventQueueSize = 0 }, "EVENT_QUEUE_SIZE"},
		{"zero loadtest bounds", func(c *Config) { c.LoadTestMaxTotal = 0 }, "LOADTEST_MAX_REQUESTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should have failed")
			}
			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("Expected ValidationError, got %T", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field '%s', got '%s'", tt.field, verr.Field)
			}
		})
	}
}
