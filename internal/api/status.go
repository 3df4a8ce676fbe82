package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis"`
}

// Connection states reported by the status endpoint.
const (
	connValid        = "VALID"
	connInitializing = "INITIALIZING"
	connOff          = "OFF"
)

type statusResponse struct {
	Status       string `json:"status"`
	Mode         string `json:"mode"`
	Connection   string `json:"connection"`
	Env          string `json:"env"`
	FlagKey      string `json:"flagKey"`
	Fallback     string `json:"fallback"`
	PollInterval string `json:"pollInterval"`
	Redis        string `json:"redis"`
	InitError    string `json:"initError,omitempty"`
}

func (s *Server) pingCache(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.deps.Cache.Ping(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Redis: "connected"}
	code := http.StatusOK
	if err := s.pingCache(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Redis = "unreachable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:       "ok",
		Mode:         "daemon",
		Connection:   connValid,
		Env:          s.deps.Cfg.AppEnv,
		FlagKey:      s.deps.Cfg.FlagKey,
		Fallback:     s.deps.Cfg.FlagFallback,
		PollInterval: s.deps.Cfg.PollInterval.String(),
		Redis:        "connected",
	}
	if err := s.pingCache(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Connection = connInitializing
		resp.Redis = "unreachable"
	}
	if s.deps.InitErr != nil {
		resp.Status = "degraded"
		resp.Connection = connOff
		resp.InitError = s.deps.InitErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
