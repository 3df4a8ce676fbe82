// Package monitor relays the raw Redis MONITOR feed to an SSE client so
// the traffic between the flag relay and the cache can be watched live.
package monitor

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/flagmirror/flagmirror/internal/stream"
)

const heartbeatEvery = 5 * time.Second

// Line is one raw MONITOR entry.
type Line struct {
	Line      string `json:"line"`
	Timestamp string `json:"timestamp"`
}

type Relay struct {
	client *redis.Client
	tick   time.Duration
	log    zerolog.Logger
}

func NewRelay(client *redis.Client, tick time.Duration, log zerolog.Logger) *Relay {
	return &Relay{client: client, tick: tick, log: log}
}

// Stream forwards MONITOR output as data frames until the peer
// disconnects. Idle periods produce heartbeat comments so intermediate
// proxies keep the connection open.
func (r *Relay) Stream(ctx context.Context, w stream.FrameWriter) error {
	lines := make(chan string, 128)
	mon := r.client.Monitor(ctx, lines)
	mon.Start()
	defer mon.Stop()

	r.log.Debug().Msg("monitor relay started")

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	lastWrite := time.Now()
	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("monitor relay closed by peer")
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			frame := Line{
				Line:      line,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}
			if err := w.Data(frame); err != nil {
				return err
			}
			lastWrite = time.Now()

		case <-ticker.C:
			if time.Since(lastWrite) < heartbeatEvery {
				continue
			}
			if err := w.Comment("heartbeat"); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}
