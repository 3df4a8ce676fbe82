package api

import (
	"encoding/json"
	"net/http"

	"github.com/flagmirror/flagmirror/internal/telemetry"
)

// sseWriter writes server-sent-event frames to an http.ResponseWriter,
// flushing after every frame so updates reach the client immediately.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, f: f}, true
}

func (s *sseWriter) Data(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(payload); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

func (s *sseWriter) Comment(text string) error {
	if _, err := s.w.Write([]byte(": " + text + "\n\n")); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// handleStream handles GET /api/stream (and its /api/sse alias): a
// long-lived SSE connection carrying the flag's value for the caller's
// session context.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sw, ok := newSSEWriter(w)
	if !ok {
		InternalError(w, r, "streaming unsupported")
		return
	}

	sessionKey := s.sessionKey(w, r)
	ectx := s.currentContext(r, sessionKey)

	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	w.WriteHeader(http.StatusOK)
	sw.f.Flush()

	reason := s.deps.Loop.Run(r.Context(), sw, ectx)
	s.deps.Log.Info().
		Str("sessionKey", sessionKey).
		Str("contextKey", ectx.Key).
		Str("closeReason", string(reason)).
		Msg("stream closed")
}

// handleMonitorStream handles GET /api/monitor/stream: raw Redis
// MONITOR output over SSE. Unavailable when the service started without
// a Redis connection.
func (s *Server) handleMonitorStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Relay == nil {
		UnavailableError(w, r, "redis connection unavailable")
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		InternalError(w, r, "streaming unsupported")
		return
	}

	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	w.WriteHeader(http.StatusOK)
	sw.f.Flush()

	if err := s.deps.Relay.Stream(r.Context(), sw); err != nil {
		s.deps.Log.Debug().Err(err).Msg("monitor stream ended")
	}
}
