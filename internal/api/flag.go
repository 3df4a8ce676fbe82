package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/flagmirror/flagmirror/internal/engine"
	"github.com/flagmirror/flagmirror/internal/evalcontext"
)

const maxContextKeyLen = 256

type flagResponse struct {
	FlagKey     string          `json:"flagKey"`
	Value       any             `json:"value"`
	Reason      engine.Reason   `json:"reason"`
	HashInfo    engine.HashInfo `json:"hashInfo"`
	Context     map[string]any  `json:"context"`
	EvaluatedAt string          `json:"evaluatedAt"`
}

// handleFlag handles GET /api/flag: one evaluation of the configured
// flag. The context comes from the session store, unless contextKey,
// email, name or location query parameters supply an ad-hoc one.
func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	sessionKey := s.sessionKey(w, r)

	ectx, ok := s.queryContext(w, r)
	if !ok {
		return
	}
	if ectx == nil {
		stored := s.currentContext(r, sessionKey)
		ectx = &stored
	}

	detail := s.deps.Evaluator.EvaluateDetail(r.Context(), s.deps.Cfg.FlagKey, *ectx, s.deps.Cfg.FlagFallback)

	writeJSON(w, http.StatusOK, flagResponse{
		FlagKey:     s.deps.Cfg.FlagKey,
		Value:       detail.Value,
		Reason:      detail.Reason,
		HashInfo:    s.deps.Evaluator.HashInfo(r.Context(), s.deps.Cfg.FlagKey, *ectx),
		Context:     ectx.AsMap(),
		EvaluatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// queryContext builds an ad-hoc evaluation context from query parameters.
// Returns (nil, true) when no context parameters were supplied, and
// (nil, false) after writing a 400 for an invalid contextKey.
func (s *Server) queryContext(w http.ResponseWriter, r *http.Request) (*evalcontext.Context, bool) {
	q := r.URL.Query()
	bag := evalcontext.AttributeBag{
		Key:      q.Get("contextKey"),
		Email:    q.Get("email"),
		Name:     q.Get("name"),
		Location: q.Get("location"),
	}
	if bag.Key == "" && bag.Email == "" && bag.Name == "" && bag.Location == "" {
		return nil, true
	}

	if bag.Key != "" && (strings.TrimSpace(bag.Key) == "" || len(bag.Key) > maxContextKeyLen) {
		ValidationError(w, r, "invalid context key", map[string]string{
			"contextKey": "must be non-blank and at most 256 characters",
		})
		return nil, false
	}

	ectx := evalcontext.NewBuilder(s.deps.Log).Build(bag, "")
	return &ectx, true
}
