package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/flagmirror/flagmirror/internal/evalcontext"
	"github.com/flagmirror/flagmirror/internal/session"
)

const (
	sessionCookieName = "flagmirror_session"
	sessionKeyHeader  = "X-Session-Key"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// sessionKey resolves the caller's session key. Explicit query parameter
// or header wins so CLI clients without a cookie jar can pin a session;
// browser callers get a cookie minted on first contact.
func (s *Server) sessionKey(w http.ResponseWriter, r *http.Request) string {
	if key := r.URL.Query().Get("sessionKey"); key != "" {
		return key
	}
	if key := r.Header.Get(sessionKeyHeader); key != "" {
		return key
	}
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}

// currentRecord loads the session's context record. A session with no
// stored record gets an ephemeral anonymous one; it is not persisted
// until the caller explicitly sets a context.
func (s *Server) currentRecord(r *http.Request, sessionKey string) session.Record {
	rec, err := s.deps.Sessions.Get(r.Context(), sessionKey)
	if err == nil {
		return *rec
	}
	if !errors.Is(err, session.ErrNotFound) {
		s.deps.Log.Warn().Err(err).Str("sessionKey", sessionKey).Msg("session store read failed")
	}
	return session.NewAnonymous(sessionKey, "")
}

// currentContext builds the evaluation context for this request's session.
func (s *Server) currentContext(r *http.Request, sessionKey string) evalcontext.Context {
	rec := s.currentRecord(r, sessionKey)
	return evalcontext.NewBuilder(s.deps.Log).Build(rec.ContextData, "")
}
