// Package loadgen drives synthetic evaluation traffic through the flag
// evaluator to exercise the full cache and event path. Requests run in
// batches no wider than the requested concurrency, and all queued events
// are flushed before the summary is reported so the relay side observes
// every request.
package loadgen

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/flagmirror/flagmirror/internal/engine"
	"github.com/flagmirror/flagmirror/internal/evalcontext"
	"github.com/flagmirror/flagmirror/internal/events"
)

// Evaluator is the slice of the flag evaluator the runner needs.
type Evaluator interface {
	EvaluateDetail(ctx context.Context, flagKey string, ectx evalcontext.Context, fallback string) engine.Detail
}

// Summary reports the outcome of one load run.
type Summary struct {
	Total             int     `json:"totalRequests"`
	Successful        int     `json:"successfulRequests"`
	Failed            int     `json:"failedRequests"`
	Concurrency       int     `json:"concurrency"`
	AvgLatencyMs      float64 `json:"avgLatencyMs"`
	DurationSeconds   float64 `json:"durationSeconds"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
}

type Runner struct {
	ev       Evaluator
	events   *events.Service
	flagKey  string
	fallback string
	log      zerolog.Logger
}

func NewRunner(ev Evaluator, es *events.Service, flagKey, fallback string, log zerolog.Logger) *Runner {
	return &Runner{ev: ev, events: es, flagKey: flagKey, fallback: fallback, log: log}
}

// Run performs total evaluations, at most concurrency at a time, each
// under a distinct synthetic context. Every request is counted exactly
// once as successful or failed.
func (r *Runner) Run(ctx context.Context, total, concurrency int) Summary {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu           sync.Mutex
		successful   int
		failed       int
		totalLatency float64
	)

	start := time.Now()
	batch := 0
	for offset := 0; offset < total; offset += concurrency {
		batch++
		size := concurrency
		if remaining := total - offset; remaining < size {
			size = remaining
		}

		var wg sync.WaitGroup
		for i := 0; i < size; i++ {
			n := offset + i
			wg.Add(1)
			go func(n, batch int) {
				defer wg.Done()

				ectx := syntheticContext(n)
				reqStart := time.Now()
				detail := r.ev.EvaluateDetail(ctx, r.flagKey, ectx, r.fallback)
				latency := float64(time.Since(reqStart).Microseconds()) / 1000.0

				mu.Lock()
				if detail.Reason.Kind == engine.ReasonError {
					failed++
				} else {
					successful++
					totalLatency += latency
				}
				mu.Unlock()

				r.events.Track(events.Event{
					Kind:       events.KindLoadTest,
					FlagKey:    r.flagKey,
					ContextKey: ectx.Key,
					Value:      detail.Value,
					Reason:     detail.Reason.Kind,
					Request:    n + 1,
					Batch:      batch,
					LatencyMs:  latency,
				})
			}(n, batch)
		}
		wg.Wait()
	}

	// Deliver everything before reporting so nothing is lost behind the
	// summary.
	if err := r.events.Flush(ctx); err != nil {
		r.log.Warn().Err(err).Msg("load test event flush interrupted")
	}

	wall := time.Since(start).Seconds()
	summary := Summary{
		Total:           total,
		Successful:      successful,
		Failed:          failed,
		Concurrency:     concurrency,
		DurationSeconds: round2(wall),
	}
	if successful > 0 {
		summary.AvgLatencyMs = round2(totalLatency / float64(successful))
	}
	if wall > 0 {
		summary.RequestsPerSecond = round2(float64(successful) / wall)
	}

	r.log.Info().
		Int("total", total).
		Int("successful", successful).
		Int("failed", failed).
		Int("concurrency", concurrency).
		Float64("rps", summary.RequestsPerSecond).
		Msg("load test finished")
	return summary
}

func syntheticContext(n int) evalcontext.Context {
	email := fmt.Sprintf("load-test-%d@example.com", n)
	return evalcontext.Context{
		Key:  email,
		Kind: evalcontext.KindUser,
		Name: fmt.Sprintf("Load Test %d", n),
		Attributes: map[string]any{
			"email": email,
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
