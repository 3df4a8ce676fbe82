// Package evalcontext builds canonical evaluation contexts from loosely
// typed attribute bags. A Context carries the identity and attributes a
// flag is evaluated against; it is constructed fresh per request and never
// mutated afterwards.
package evalcontext

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// KindUser is the only context kind this service evaluates.
const KindUser = "user"

// AnonymousKeyPrefix marks keys synthesized for anonymous contexts.
const AnonymousKeyPrefix = "go-anon-"

// AttributeBag is the raw, loosely typed attribute set backing a Context.
// Every field is optional; missing fields are simply omitted from the
// built context.
type AttributeBag struct {
	Key       string `json:"key,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Location  string `json:"location,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// Context is the canonical identity+attributes value passed to the
// evaluation engine. Key is never empty.
type Context struct {
	Key        string
	Kind       string
	Name       string
	Anonymous  bool
	Attributes map[string]any
}

// NewAnonymousKey synthesizes a fresh unique key for an anonymous context.
// Keys are never reused.
func NewAnonymousKey() string {
	return AnonymousKeyPrefix + uuid.NewString()
}

// Builder turns attribute bags into contexts. It is stateless apart from
// its logger; Build is a pure transformation.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder returns a Builder that logs field discovery at debug level.
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{log: log}
}

// Build produces a Context from the given bag. The key is derived in
// order of preference: explicit bag key, email, the previously known
// sessionKey, then a freshly synthesized anonymous key. Optional fields
// are copied verbatim when present. Build never fails.
func (b *Builder) Build(bag AttributeBag, knownKey string) Context {
	key := strings.TrimSpace(bag.Key)
	switch {
	case key != "":
	case strings.TrimSpace(bag.Email) != "":
		key = strings.TrimSpace(bag.Email)
	case strings.TrimSpace(knownKey) != "":
		key = strings.TrimSpace(knownKey)
	default:
		key = NewAnonymousKey()
	}

	ctx := Context{
		Key:        key,
		Kind:       KindUser,
		Anonymous:  bag.Anonymous,
		Attributes: make(map[string]any, 3),
	}

	if name := strings.TrimSpace(bag.Name); name != "" {
		ctx.Name = name
	}
	if email := strings.TrimSpace(bag.Email); email != "" {
		ctx.Attributes["email"] = email
	}
	if location := strings.TrimSpace(bag.Location); location != "" {
		ctx.Attributes["location"] = location
	}
	if bag.Anonymous {
		ctx.Attributes["anonymous"] = true
	}

	b.log.Debug().
		Str("key", ctx.Key).
		Bool("has_email", bag.Email != "").
		Bool("has_name", bag.Name != "").
		Bool("has_location", bag.Location != "").
		Bool("anonymous", bag.Anonymous).
		Msg("built evaluation context")

	return ctx
}

// Attr fetches a string attribute, returning "" when absent or non-string.
func (c Context) Attr(name string) string {
	v, ok := c.Attributes[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// AsMap renders the context as a JSON-friendly map, used both for rule
// evaluation data and for echoing the context back in API responses.
func (c Context) AsMap() map[string]any {
	m := make(map[string]any, len(c.Attributes)+4)
	m["key"] = c.Key
	m["kind"] = c.Kind
	if c.Name != "" {
		m["name"] = c.Name
	}
	m["anonymous"] = c.Anonymous
	for k, v := range c.Attributes {
		m[k] = v
	}
	return m
}
