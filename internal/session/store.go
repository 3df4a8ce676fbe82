// Package session persists per-session evaluation context records in a
// store shared across request-handling instances. Records are overwritten
// wholesale on update; concurrent writers to the same key get last-writer-wins
// semantics, which is acceptable for context metadata.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/flagmirror/flagmirror/internal/evalcontext"
)

// RecordType distinguishes the two kinds of session context records.
type RecordType string

const (
	// TypeAnonymous marks a record with a synthesized, never-reused key.
	TypeAnonymous RecordType = "anonymous"
	// TypeCustom marks a record keyed by the caller-supplied email so that
	// repeated submissions with the same email evaluate as one identity.
	TypeCustom RecordType = "custom"
)

// ErrNotFound is returned by Get when no record exists for a session key.
// Callers fall back to a default anonymous record.
var ErrNotFound = errors.New("session record not found")

// Record is one session's stored context data.
type Record struct {
	SessionKey  string                   `json:"sessionKey"`
	Type        RecordType               `json:"type"`
	ContextData evalcontext.AttributeBag `json:"contextData"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

// Store defines the context store operations. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get retrieves the record for sessionKey, or ErrNotFound.
	Get(ctx context.Context, sessionKey string) (*Record, error)

	// Put stores the record under sessionKey, replacing any prior record.
	Put(ctx context.Context, sessionKey string, rec Record) error

	// Close releases any resources held by the store.
	Close() error
}

// NewAnonymous creates a fresh anonymous record with a newly synthesized
// context key.
func NewAnonymous(sessionKey, location string) Record {
	return Record{
		SessionKey: sessionKey,
		Type:       TypeAnonymous,
		ContextData: evalcontext.AttributeBag{
			Key:       evalcontext.NewAnonymousKey(),
			Location:  location,
			Anonymous: true,
		},
		UpdatedAt: time.Now().UTC(),
	}
}

// NewCustom creates a custom record keyed by email. Email must be non-empty;
// the caller validates that before reaching here.
func NewCustom(sessionKey, email, name, location string) Record {
	return Record{
		SessionKey: sessionKey,
		Type:       TypeCustom,
		ContextData: evalcontext.AttributeBag{
			Key:      email,
			Email:    email,
			Name:     name,
			Location: location,
		},
		UpdatedAt: time.Now().UTC(),
	}
}

// NextAnonymous returns the anonymous record that should replace prev.
// An already-anonymous record keeps its synthesized key; switching from a
// custom record (or having no record) always mints a fresh identity and
// discards all prior attributes.
func NextAnonymous(prev *Record, sessionKey, location string) Record {
	rec := NewAnonymous(sessionKey, location)
	if prev != nil && prev.Type == TypeAnonymous && prev.ContextData.Anonymous &&
		len(prev.ContextData.Key) > len(evalcontext.AnonymousKeyPrefix) &&
		prev.ContextData.Key[:len(evalcontext.AnonymousKeyPrefix)] == evalcontext.AnonymousKeyPrefix {
		rec.ContextData.Key = prev.ContextData.Key
	}
	return rec
}
