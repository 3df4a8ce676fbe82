package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/flagmirror/flagmirror/internal/flagcache"
)

type flagsResponse struct {
	Flags       []flagcache.FlagDoc `json:"flags"`
	Count       int                 `json:"count"`
	RetrievedAt string              `json:"retrievedAt"`
}

// handleFlags handles GET /api/flags: a dump of every flag currently in
// the cache, with an ETag so pollers can cheaply detect no-change.
func (s *Server) handleFlags(w http.ResponseWriter, r *http.Request) {
	byKey, err := s.deps.Cache.AllFlags(r.Context())
	if err != nil {
		UnavailableError(w, r, "flag cache unavailable")
		return
	}

	docs := make([]flagcache.FlagDoc, 0, len(byKey))
	for _, doc := range byKey {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })

	resp := flagsResponse{
		Flags: docs,
		Count: len(docs),
	}

	body, err := json.Marshal(resp.Flags)
	if err != nil {
		InternalError(w, r, "failed to encode flags")
		return
	}
	sum := sha256.Sum256(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	resp.RetrievedAt = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, resp)
}
