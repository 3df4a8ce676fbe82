// Package flagcache reads feature-flag documents from the key-value cache
// an external delivery relay keeps populated. This service only ever reads
// flag data; writes happen out of process (the seed CLI command exists for
// local demos and tests).
package flagcache

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrFlagNotFound is returned when the cache holds no document for a key.
// On a freshly started relay this is the normal eventually-consistent state.
var ErrFlagNotFound = errors.New("flag not found in cache")

// ErrMalformedFlag is returned when a cached document cannot be decoded.
var ErrMalformedFlag = errors.New("malformed flag document")

// Target routes contexts with a matching attribute value straight to a
// variation, bypassing rules and rollout.
type Target struct {
	Attribute string   `json:"attribute,omitempty"` // defaults to "key"
	Values    []string `json:"values"`
	Variation int      `json:"variation"`
}

// Rule matches contexts against a JSON Logic expression.
type Rule struct {
	ID         string          `json:"id,omitempty"`
	Expression json.RawMessage `json:"expression"`
	Variation  int             `json:"variation"`
}

// WeightedVariation is one slice of a percentage rollout. Weights are in
// thousandths of a percent and sum to 100000 across a rollout.
type WeightedVariation struct {
	Variation int `json:"variation"`
	Weight    int `json:"weight"`
}

// VariationOrRollout selects either a fixed variation or a bucketed rollout.
type VariationOrRollout struct {
	Variation *int                `json:"variation,omitempty"`
	Rollout   []WeightedVariation `json:"rollout,omitempty"`
}

// FlagDoc is the cached flag document format shared with the relay.
type FlagDoc struct {
	Key          string             `json:"key"`
	On           bool               `json:"on"`
	Salt         string             `json:"salt"`
	Variations   []any              `json:"variations"`
	Targets      []Target           `json:"targets,omitempty"`
	Rules        []Rule             `json:"rules,omitempty"`
	Fallthrough  VariationOrRollout `json:"fallthrough"`
	OffVariation *int               `json:"offVariation,omitempty"`
	Version      int                `json:"version"`
}

// Cache defines read access to the relay-populated flag store.
// Implementations must be safe for concurrent use.
type Cache interface {
	// GetFlag retrieves one flag document, or ErrFlagNotFound / ErrMalformedFlag.
	GetFlag(ctx context.Context, key string) (*FlagDoc, error)

	// AllFlags retrieves every decodable flag document in the cache.
	AllFlags(ctx context.Context) (map[string]FlagDoc, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error
}
