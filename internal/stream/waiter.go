// Package stream implements the server-sent-events side of the service:
// a synchronization waiter that holds a new connection until the flag
// cache has been populated, and a change-detecting poll loop that turns
// periodic evaluations into data frames and heartbeats.
package stream

import (
	"context"
	"time"

	"github.com/flagmirror/flagmirror/internal/engine"
	"github.com/flagmirror/flagmirror/internal/evalcontext"
)

// Evaluator is the slice of the flag evaluator the stream needs.
type Evaluator interface {
	EvaluateDetail(ctx context.Context, flagKey string, ectx evalcontext.Context, fallback string) engine.Detail
}

// WaitForValue polls until the flag evaluates to something other than
// the fallback, or until the timeout elapses. It returns the last
// evaluation either way. A flag whose real value equals the fallback is
// indistinguishable from an unsynchronized cache here, so such flags
// always wait out the full timeout.
func WaitForValue(ctx context.Context, ev Evaluator, flagKey string, ectx evalcontext.Context, fallback string, interval, timeout time.Duration) engine.Detail {
	deadline := time.Now().Add(timeout)

	detail := ev.EvaluateDetail(ctx, flagKey, ectx, fallback)
	for {
		if detail.Reason.Kind != engine.ReasonError {
			if s, ok := detail.Value.(string); ok && s != fallback {
				return detail
			}
		}
		if time.Now().After(deadline) {
			return detail
		}

		select {
		case <-ctx.Done():
			return detail
		case <-time.After(interval):
		}
		detail = ev.EvaluateDetail(ctx, flagKey, ectx, fallback)
	}
}
