// Package evaluator wraps the evaluation engine behind a facade that
// never fails outward: any cache or engine error resolves to the caller's
// fallback value with the error recorded in the result reason. Each
// evaluation also emits a fire-and-forget usage event.
package evaluator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/flagmirror/flagmirror/internal/engine"
	"github.com/flagmirror/flagmirror/internal/evalcontext"
	"github.com/flagmirror/flagmirror/internal/events"
	"github.com/flagmirror/flagmirror/internal/flagcache"
	"github.com/flagmirror/flagmirror/internal/telemetry"
)

type Evaluator struct {
	cache  flagcache.Cache
	events *events.Service
	log    zerolog.Logger
}

func New(cache flagcache.Cache, ev *events.Service, log zerolog.Logger) *Evaluator {
	return &Evaluator{cache: cache, events: ev, log: log}
}

// EvaluateDetail resolves a flag for the given context and reports how
// the result was reached. Errors never propagate: the fallback value is
// returned with an ERROR reason carrying the error kind.
func (e *Evaluator) EvaluateDetail(ctx context.Context, flagKey string, ectx evalcontext.Context, fallback string) engine.Detail {
	doc, err := e.cache.GetFlag(ctx, flagKey)

	var detail engine.Detail
	switch {
	case errors.Is(err, flagcache.ErrFlagNotFound):
		detail = engine.ErrorDetail(fallback, engine.ErrKindFlagNotFound)
	case errors.Is(err, flagcache.ErrMalformedFlag):
		e.log.Warn().Err(err).Str("flagKey", flagKey).Msg("malformed flag in cache")
		detail = engine.ErrorDetail(fallback, engine.ErrKindMalformedFlag)
	case err != nil:
		e.log.Warn().Err(err).Str("flagKey", flagKey).Msg("flag cache unavailable")
		detail = engine.ErrorDetail(fallback, engine.ErrKindStoreError)
	default:
		detail = engine.Evaluate(doc, ectx)
		if detail.Reason.Kind == engine.ReasonError {
			detail.Value = fallback
		}
	}

	telemetry.Evaluations.WithLabelValues(detail.Reason.Kind).Inc()
	e.track(flagKey, ectx, detail)
	return detail
}

// Evaluate resolves a flag to its string value, falling back on any
// error or non-string variation.
func (e *Evaluator) Evaluate(ctx context.Context, flagKey string, ectx evalcontext.Context, fallback string) string {
	detail := e.EvaluateDetail(ctx, flagKey, ectx, fallback)
	if s, ok := detail.Value.(string); ok {
		return s
	}
	return fallback
}

// HashInfo reports the bucketing hash a rollout would use for this
// context. The flag's stored salt is used when the flag is cached;
// otherwise the flag key doubles as the salt.
func (e *Evaluator) HashInfo(ctx context.Context, flagKey string, ectx evalcontext.Context) engine.HashInfo {
	salt := flagKey
	if doc, err := e.cache.GetFlag(ctx, flagKey); err == nil && doc.Salt != "" {
		salt = doc.Salt
	}
	return engine.ComputeHash(flagKey, ectx.Key, salt)
}

func (e *Evaluator) track(flagKey string, ectx evalcontext.Context, detail engine.Detail) {
	if e.events == nil {
		return
	}
	e.events.Track(events.Event{
		Kind:       events.KindEvaluation,
		FlagKey:    flagKey,
		ContextKey: ectx.Key,
		Value:      detail.Value,
		Reason:     detail.Reason.Kind,
	})
}
