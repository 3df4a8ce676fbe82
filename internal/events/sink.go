package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// maxStored caps the Redis event list; older events are trimmed away.
const maxStored = 10000

// RedisSink appends events to a capped Redis list so the relay side can
// pick them up. Transient write failures are retried with exponential
// backoff.
type RedisSink struct {
	client *redis.Client
	key    string
}

// NewRedisSink returns a sink writing to <prefix>:events.
func NewRedisSink(client *redis.Client, prefix string) *RedisSink {
	return &RedisSink{
		client: client,
		key:    prefix + ":events",
	}
}

func (s *RedisSink) Write(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		pipe := s.client.TxPipeline()
		pipe.LPush(ctx, s.key, payload)
		pipe.LTrim(ctx, s.key, 0, maxStored-1)
		_, err := pipe.Exec(ctx)
		return struct{}{}, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	if err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}

// LogSink writes events to the log. Used when no Redis connection is
// available, so evaluation keeps working in degraded mode.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Write(_ context.Context, event Event) error {
	s.log.Info().
		Str("kind", event.Kind).
		Str("flagKey", event.FlagKey).
		Str("contextKey", event.ContextKey).
		Interface("value", event.Value).
		Str("reason", event.Reason).
		Msg("event")
	return nil
}
