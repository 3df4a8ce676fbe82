package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type loadTestRequest struct {
	Requests    int `json:"requests"`
	Concurrency int `json:"concurrency"`
}

// handleLoadTest handles POST /api/loadtest: runs a synthetic
// evaluation burst and reports the aggregate result. Runs are bounded
// so a single request cannot saturate the service.
func (s *Server) handleLoadTest(w http.ResponseWriter, r *http.Request) {
	req := loadTestRequest{Requests: 100, Concurrency: 10}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
			return
		}
	}

	if req.Requests < 1 || req.Requests > s.deps.Cfg.LoadTestMaxTotal {
		ValidationError(w, r, "invalid load test parameters", map[string]string{
			"requests": fmt.Sprintf("must be 1..%d", s.deps.Cfg.LoadTestMaxTotal),
		})
		return
	}
	if req.Concurrency < 1 || req.Concurrency > s.deps.Cfg.LoadTestMaxBurst {
		ValidationError(w, r, "invalid load test parameters", map[string]string{
			"concurrency": fmt.Sprintf("must be 1..%d", s.deps.Cfg.LoadTestMaxBurst),
		})
		return
	}

	summary := s.deps.LoadGen.Run(r.Context(), req.Requests, req.Concurrency)
	writeJSON(w, http.StatusOK, summary)
}
