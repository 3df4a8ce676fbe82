// Package events delivers usage events to an external collector without
// ever blocking the evaluation path. Events are queued on a bounded buffer
// and written by a single background worker; when the buffer is full the
// event is dropped and counted. Flush forces delivery of everything queued
// so far, which the load generator relies on before reporting its summary.
package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/flagmirror/flagmirror/internal/telemetry"
)

// Event kinds.
const (
	KindEvaluation = "evaluation"
	KindLoadTest   = "load-test"
)

// Event is one outward usage record.
type Event struct {
	Kind       string    `json:"kind"`
	FlagKey    string    `json:"flagKey,omitempty"`
	ContextKey string    `json:"contextKey,omitempty"`
	Value      any       `json:"value,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Request    int       `json:"request,omitempty"`
	Batch      int       `json:"batch,omitempty"`
	LatencyMs  float64   `json:"latencyMs,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Sink persists events. Write may be retried by the worker.
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Service provides asynchronous, drop-when-full event delivery.
type Service struct {
	sink    Sink
	log     zerolog.Logger
	queue   chan Event
	flushCh chan chan struct{}
	stopCh  chan struct{}
	done    chan struct{}
	closed  int32 // atomic flag to prevent double-close
}

const writeTimeout = 5 * time.Second

// NewService creates an event service and starts its background worker.
func NewService(sink Sink, queueSize int, log zerolog.Logger) *Service {
	s := &Service{
		sink:    sink,
		log:     log,
		queue:   make(chan Event, queueSize),
		flushCh: make(chan chan struct{}),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.worker()
	return s
}

// Track queues an event for delivery. Non-blocking: when the queue is
// full the event is dropped and the drop counter incremented.
func (s *Service) Track(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	select {
	case s.queue <- event:
	default:
		telemetry.EventsDropped.Inc()
		s.log.Warn().Str("kind", event.Kind).Msg("event queue full, dropping event")
	}
}

// Flush delivers everything queued before it returns. It does not wait
// for events tracked after the call begins.
func (s *Service) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case s.flushCh <- ack:
	case <-s.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close gracefully shuts down the service, draining any queued events.
// Safe to call multiple times.
func (s *Service) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	close(s.stopCh)
	<-s.done
	return nil
}

func (s *Service) worker() {
	defer close(s.done)

	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case ack := <-s.flushCh:
			s.drain()
			close(ack)
		case <-s.stopCh:
			s.drain()
			return
		}
	}
}

func (s *Service) drain() {
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		default:
			return
		}
	}
}

func (s *Service) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := s.sink.Write(ctx, event); err != nil {
		// Delivery failure must never surface to evaluation callers.
		s.log.Warn().Err(err).Str("kind", event.Kind).Msg("failed to deliver event")
	}
}
