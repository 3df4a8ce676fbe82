package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/flagmirror/flagmirror/internal/session"
)

type contextResponse struct {
	SessionKey string         `json:"sessionKey"`
	Type       string         `json:"type"`
	Context    map[string]any `json:"context"`
	UpdatedAt  string         `json:"updatedAt,omitempty"`
}

type setContextRequest struct {
	Type     string `json:"type"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
}

// handleGetContext handles GET /api/context: the caller's current
// session context, or the default anonymous one when nothing is stored.
func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	sessionKey := s.sessionKey(w, r)
	rec := s.currentRecord(r, sessionKey)
	ectx := s.currentContext(r, sessionKey)

	resp := contextResponse{
		SessionKey: sessionKey,
		Type:       string(rec.Type),
		Context:    ectx.AsMap(),
	}
	if !rec.UpdatedAt.IsZero() {
		resp.UpdatedAt = rec.UpdatedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSetContext handles POST /api/context. Switching type replaces
// the stored record outright; attributes from the previous type are not
// carried over. Custom contexts are keyed by email so the same person
// keeps the same identity across sessions.
func (s *Server) handleSetContext(w http.ResponseWriter, r *http.Request) {
	sessionKey := s.sessionKey(w, r)

	var req setContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}

	var rec session.Record
	switch req.Type {
	case string(session.TypeAnonymous):
		prev, err := s.deps.Sessions.Get(r.Context(), sessionKey)
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			UnavailableError(w, r, "session store unavailable")
			return
		}
		rec = session.NextAnonymous(prev, sessionKey, strings.TrimSpace(req.Location))

	case string(session.TypeCustom):
		email := strings.TrimSpace(req.Email)
		if email == "" {
			ValidationError(w, r, "custom context requires an email", map[string]string{
				"email": "email is required for custom contexts",
			})
			return
		}
		rec = session.NewCustom(sessionKey, email, strings.TrimSpace(req.Name), strings.TrimSpace(req.Location))

	default:
		BadRequestError(w, r, ErrCodeValidation, "type must be \"anonymous\" or \"custom\"")
		return
	}

	if err := s.deps.Sessions.Put(r.Context(), sessionKey, rec); err != nil {
		s.deps.Log.Error().Err(err).Str("sessionKey", sessionKey).Msg("session store write failed")
		UnavailableError(w, r, "session store unavailable")
		return
	}

	ectx := s.currentContext(r, sessionKey)
	writeJSON(w, http.StatusOK, contextResponse{
		SessionKey: sessionKey,
		Type:       string(rec.Type),
		Context:    ectx.AsMap(),
		UpdatedAt:  rec.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
