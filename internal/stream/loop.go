package stream

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/flagmirror/flagmirror/internal/engine"
	"github.com/flagmirror/flagmirror/internal/evalcontext"
)

// CloseReason reports why a stream ended.
type CloseReason string

const (
	ClosedByPeer    CloseReason = "CLOSED_BY_PEER"
	ClosedByTimeout CloseReason = "CLOSED_BY_TIMEOUT"
	ClosedByError   CloseReason = "CLOSED_BY_ERROR"
)

// FrameWriter emits server-sent-event frames. Data writes one
// `data: <json>` event, Comment writes a `: <text>` keep-alive line.
type FrameWriter interface {
	Data(v any) error
	Comment(text string) error
}

// Update is the payload of a data frame.
type Update struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ErrorFrame is sent once when a stream cannot start.
type ErrorFrame struct {
	Error string `json:"error"`
}

// Config holds the per-server poll loop settings.
type Config struct {
	FlagKey      string
	Fallback     string
	PollInterval time.Duration
	WaitInterval time.Duration
	WaitTimeout  time.Duration
	MaxConnTime  time.Duration
}

// Loop drives one SSE connection: an initial synchronized evaluation,
// then periodic re-evaluations that become data frames when the value
// changed and heartbeats when it did not.
type Loop struct {
	ev  Evaluator
	cfg Config
	log zerolog.Logger
}

func NewLoop(ev Evaluator, cfg Config, log zerolog.Logger) *Loop {
	return &Loop{ev: ev, cfg: cfg, log: log}
}

// Run streams evaluations of the configured flag for one context until
// the peer disconnects, the lifetime cap elapses, or startup fails.
// Evaluation errors mid-stream are treated as "no change": the client
// keeps its last known value and receives a heartbeat.
func (l *Loop) Run(ctx context.Context, w FrameWriter, ectx evalcontext.Context) CloseReason {
	log := l.log.With().Str("contextKey", ectx.Key).Logger()
	log.Debug().Msg("stream connecting")

	// The waiter below may block for its full timeout on a cold cache;
	// the client gets a placeholder frame first so it sees activity.
	if err := writeUpdate(w, "connecting"); err != nil {
		return ClosedByPeer
	}

	detail := WaitForValue(ctx, l.ev, l.cfg.FlagKey, ectx, l.cfg.Fallback, l.cfg.WaitInterval, l.cfg.WaitTimeout)
	if detail.Reason.Kind == engine.ReasonError && detail.Reason.ErrorKind == engine.ErrKindStoreError {
		// The cache is unreachable; tell the client once and stop. A
		// missing flag is different: the relay simply hasn't written it
		// yet, so we stream the fallback and let polling catch up.
		if err := w.Data(ErrorFrame{Error: "flag store unavailable"}); err != nil {
			return ClosedByPeer
		}
		log.Warn().Msg("stream closed, flag store unavailable")
		return ClosedByError
	}

	last := l.message(detail)
	if err := writeUpdate(w, last); err != nil {
		return ClosedByPeer
	}
	log.Debug().Str("value", last).Msg("stream established")

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()
	lifetime := time.NewTimer(l.cfg.MaxConnTime)
	defer lifetime.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("stream closed by peer")
			return ClosedByPeer

		case <-lifetime.C:
			// Final notice so the client knows to reconnect rather than
			// treat this as a dropped connection. The peer may already be
			// gone, so the write error does not matter.
			_ = writeUpdate(w, "timeout, please reconnect")
			log.Debug().Msg("stream reached lifetime cap")
			return ClosedByTimeout

		case <-ticker.C:
			detail := l.ev.EvaluateDetail(ctx, l.cfg.FlagKey, ectx, l.cfg.Fallback)
			if detail.Reason.Kind == engine.ReasonError {
				if err := w.Comment("heartbeat"); err != nil {
					return ClosedByPeer
				}
				continue
			}

			msg := l.message(detail)
			if msg == last {
				if err := w.Comment("heartbeat"); err != nil {
					return ClosedByPeer
				}
				continue
			}

			last = msg
			if err := writeUpdate(w, msg); err != nil {
				return ClosedByPeer
			}
			log.Debug().Str("value", msg).Msg("stream value changed")
		}
	}
}

func (l *Loop) message(detail engine.Detail) string {
	if s, ok := detail.Value.(string); ok {
		return s
	}
	return l.cfg.Fallback
}

func writeUpdate(w FrameWriter, msg string) error {
	return w.Data(Update{
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
