// Package api exposes the HTTP surface of the service: flag evaluation,
// session context management, the SSE stream, the Redis MONITOR relay
// and the load test trigger.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/flagmirror/flagmirror/internal/config"
	"github.com/flagmirror/flagmirror/internal/evaluator"
	"github.com/flagmirror/flagmirror/internal/flagcache"
	"github.com/flagmirror/flagmirror/internal/loadgen"
	"github.com/flagmirror/flagmirror/internal/monitor"
	"github.com/flagmirror/flagmirror/internal/session"
	"github.com/flagmirror/flagmirror/internal/stream"
	"github.com/flagmirror/flagmirror/internal/telemetry"
)

// Deps carries everything the handlers need. Relay may be nil when no
// Redis connection is available; the monitor endpoint then reports 503.
type Deps struct {
	Cfg       config.Config
	Cache     flagcache.Cache
	Sessions  session.Store
	Evaluator *evaluator.Evaluator
	Loop      *stream.Loop
	LoadGen   *loadgen.Runner
	Relay     *monitor.Relay
	Log       zerolog.Logger

	// InitErr, when non-nil, is the startup connectivity failure. The
	// service still serves requests in degraded mode and reports the
	// error on the status endpoint.
	InitErr error
}

type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)
	r.Use(httprate.LimitByIP(s.deps.Cfg.RateLimitPerIP, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/health", s.handleHealth)

	// Streaming endpoints stay outside the timeout group: an SSE
	// connection legitimately outlives any request deadline.
	r.Get("/api/stream", s.handleStream)
	r.Get("/api/sse", s.handleStream)
	r.Get("/api/monitor/stream", s.handleMonitorStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/api/status", s.handleStatus)
		r.Get("/api/flag", s.handleFlag)
		r.Get("/api/flags", s.handleFlags)
		r.Get("/api/context", s.handleGetContext)
		r.Post("/api/context", s.handleSetContext)
		r.Post("/api/loadtest", s.handleLoadTest)
	})

	return r
}
