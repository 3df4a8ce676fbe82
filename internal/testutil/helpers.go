// Package testutil provides shared helpers for package tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flagmirror/flagmirror/internal/api"
	"github.com/flagmirror/flagmirror/internal/config"
	"github.com/flagmirror/flagmirror/internal/evaluator"
	"github.com/flagmirror/flagmirror/internal/events"
	"github.com/flagmirror/flagmirror/internal/flagcache"
	"github.com/flagmirror/flagmirror/internal/loadgen"
	"github.com/flagmirror/flagmirror/internal/logging"
	"github.com/flagmirror/flagmirror/internal/session"
	"github.com/flagmirror/flagmirror/internal/stream"
)

// TestConfig returns a config with intervals short enough for tests.
func TestConfig() config.Config {
	return config.Config{
		AppEnv:           "test",
		HTTPAddr:         ":0",
		MetricsAddr:      ":0",
		RedisURL:         "redis://localhost:6379/0",
		CachePrefix:      "flagmirror-test",
		FlagKey:          "user-message",
		FlagFallback:     "Hello from Go!",
		PollInterval:     20 * time.Millisecond,
		WaitInterval:     5 * time.Millisecond,
		WaitTimeout:      30 * time.Millisecond,
		MaxConnTime:      250 * time.Millisecond,
		MonitorTick:      10 * time.Millisecond,
		SessionTTL:       time.Hour,
		EventQueueSize:   64,
		RateLimitPerIP:   1000,
		LoadTestMaxTotal: 1000,
		LoadTestMaxBurst: 50,
	}
}

// NewTestServer creates an API server backed by in-memory stores. The
// returned cache and session store can be manipulated directly to set up
// scenarios.
func NewTestServer(t *testing.T) (*api.Server, *flagcache.MemoryCache, *session.MemoryStore) {
	t.Helper()

	cfg := TestConfig()
	cache := flagcache.NewMemoryCache()
	sessions := session.NewMemoryStore()

	log := logging.Nop()
	eventSvc := events.NewService(events.NewLogSink(log), cfg.EventQueueSize, log)
	t.Cleanup(func() { _ = eventSvc.Close() })

	eval := evaluator.New(cache, eventSvc, log)
	loop := stream.NewLoop(eval, stream.Config{
		FlagKey:      cfg.FlagKey,
		Fallback:     cfg.FlagFallback,
		PollInterval: cfg.PollInterval,
		WaitInterval: cfg.WaitInterval,
		WaitTimeout:  cfg.WaitTimeout,
		MaxConnTime:  cfg.MaxConnTime,
	}, log)

	server := api.NewServer(api.Deps{
		Cfg:       cfg,
		Cache:     cache,
		Sessions:  sessions,
		Evaluator: eval,
		Loop:      loop,
		LoadGen:   loadgen.NewRunner(eval, eventSvc, cfg.FlagKey, cfg.FlagFallback, log),
		Log:       log,
	})
	return server, cache, sessions
}

// SeedFlag writes a minimal on flag serving message as variation 0 to
// every context.
func SeedFlag(t *testing.T, cache *flagcache.MemoryCache, key, message string) {
	t.Helper()
	v := 0
	doc := flagcache.FlagDoc{
		Key:         key,
		On:          true,
		Salt:        "d2a7c9f1e8b34a5f9c1d2e3f4a5b6c7d",
		Variations:  []any{message, "Hello from Go!"},
		Fallthrough: flagcache.VariationOrRollout{Variation: &v},
		Version:     1,
	}
	if err := cache.PutFlag(context.Background(), doc); err != nil {
		t.Fatalf("seed flag: %v", err)
	}
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
