package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flagmirror/flagmirror/internal/engine"
	"github.com/flagmirror/flagmirror/internal/evalcontext"
	"github.com/flagmirror/flagmirror/internal/logging"
)

const fallback = "Hello from Go!"

// fakeEvaluator returns a configurable detail and counts calls.
type fakeEvaluator struct {
	mu     sync.Mutex
	detail engine.Detail
	calls  int
}

func valueDetail(v string) engine.Detail {
	return engine.Detail{Value: v, Reason: engine.Reason{Kind: engine.ReasonFallthrough}}
}

func (f *fakeEvaluator) EvaluateDetail(_ context.Context, _ string, _ evalcontext.Context, _ string) engine.Detail {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.detail
}

func (f *fakeEvaluator) set(d engine.Detail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detail = d
}

func (f *fakeEvaluator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// frame is one recorded SSE frame.
type frame struct {
	comment bool
	payload string
}

// recorder collects frames and can simulate a dead peer.
type recorder struct {
	mu     sync.Mutex
	frames []frame
	broken bool
}

func (r *recorder) Data(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken {
		return errors.New("write on closed connection")
	}
	r.frames = append(r.frames, frame{payload: string(payload)})
	return nil
}

func (r *recorder) Comment(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken {
		return errors.New("write on closed connection")
	}
	r.frames = append(r.frames, frame{comment: true, payload: text})
	return nil
}

func (r *recorder) breakPipe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broken = true
}

func (r *recorder) snapshot() []frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]frame, len(r.frames))
	copy(out, r.frames)
	return out
}

func userContext(key string) evalcontext.Context {
	return evalcontext.Context{Key: key, Kind: evalcontext.KindUser, Attributes: map[string]any{}}
}

func fastConfig() Config {
	return Config{
		FlagKey:      "user-message",
		Fallback:     fallback,
		PollInterval: 10 * time.Millisecond,
		WaitInterval: 2 * time.Millisecond,
		WaitTimeout:  20 * time.Millisecond,
		MaxConnTime:  150 * time.Millisecond,
	}
}

func TestWaitForValue_ImmediateWhenSynced(t *testing.T) {
	ev := &fakeEvaluator{detail: valueDetail("Hello from Redis!")}

	start := time.Now()
	detail := WaitForValue(context.Background(), ev, "user-message", userContext("u"), fallback, 2*time.Millisecond, time.Second)
	elapsed := time.Since(start)

	if detail.Value != "Hello from Redis!" {
		t.Errorf("Expected synced value, got %v", detail.Value)
	}
	if ev.callCount() != 1 {
		t.Errorf("Expected a single evaluation, got %d", ev.callCount())
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("Should return without waiting, took %s", elapsed)
	}
}

func TestWaitForValue_TimesOutOnFallback(t *testing.T) {
	ev := &fakeEvaluator{detail: valueDetail(fallback)}

	detail := WaitForValue(context.Background(), ev, "user-message", userContext("u"), fallback, 2*time.Millisecond, 20*time.Millisecond)

	if detail.Value != fallback {
		t.Errorf("Expected fallback after timeout, got %v", detail.Value)
	}
	if ev.callCount() < 2 {
		t.Errorf("Expected repeated polling before timeout, got %d calls", ev.callCount())
	}
}

func TestWaitForValue_PicksUpLateValue(t *testing.T) {
	ev := &fakeEvaluator{detail: engine.ErrorDetail(fallback, engine.ErrKindFlagNotFound)}

	go func() {
		time.Sleep(10 * time.Millisecond)
		ev.set(valueDetail("Hello from Redis!"))
	}()

	detail := WaitForValue(context.Background(), ev, "user-message", userContext("u"), fallback, 2*time.Millisecond, time.Second)
	if detail.Value != "Hello from Redis!" {
		t.Errorf("Expected the late value, got %v", detail.Value)
	}
}

func TestLoop_ConnectingPlaceholderThenValue(t *testing.T) {
	ev := &fakeEvaluator{detail: valueDetail("Hello from Redis!")}
	loop := NewLoop(ev, fastConfig(), logging.Nop())
	rec := &recorder{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	reason := loop.Run(ctx, rec, userContext("u"))
	if reason != ClosedByPeer {
		t.Errorf("Expected CLOSED_BY_PEER, got %s", reason)
	}

	frames := rec.snapshot()
	if len(frames) < 2 {
		t.Fatalf("Expected at least two frames, got %+v", frames)
	}
	if frames[0].comment || frames[1].comment {
		t.Fatal("First two frames must be data frames")
	}

	var first, second Update
	if err := json.Unmarshal([]byte(frames[0].payload), &first); err != nil {
		t.Fatalf("First frame is not a valid update: %v", err)
	}
	if first.Message != "connecting" {
		t.Errorf("Expected 'connecting' placeholder first, got '%s'", first.Message)
	}
	if err := json.Unmarshal([]byte(frames[1].payload), &second); err != nil {
		t.Fatalf("Second frame is not a valid update: %v", err)
	}
	if second.Message != "Hello from Redis!" {
		t.Errorf("Expected message 'Hello from Redis!', got '%s'", second.Message)
	}
}

func TestLoop_UnchangedValueHeartbeats(t *testing.T) {
	ev := &fakeEvaluator{detail: valueDetail("steady")}
	loop := NewLoop(ev, fastConfig(), logging.Nop())
	rec := &recorder{}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Millisecond)
	defer cancel()
	loop.Run(ctx, rec, userContext("u"))

	frames := rec.snapshot()
	dataFrames, heartbeats := 0, 0
	for _, f := range frames {
		if f.comment {
			heartbeats++
		} else {
			dataFrames++
		}
	}
	// The placeholder plus one value frame; the unchanged value never
	// produces another.
	if dataFrames != 2 {
		t.Errorf("Unchanged value must produce exactly two data frames, got %d", dataFrames)
	}
	if heartbeats == 0 {
		t.Error("Expected heartbeat comments between polls")
	}
}

func TestLoop_ChangedValueEmitsFrame(t *testing.T) {
	ev := &fakeEvaluator{detail: valueDetail("before")}
	loop := NewLoop(ev, fastConfig(), logging.Nop())
	rec := &recorder{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		ev.set(valueDetail("after"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	loop.Run(ctx, rec, userContext("u"))

	var messages []string
	for _, f := range rec.snapshot() {
		if f.comment {
			continue
		}
		var update Update
		if err := json.Unmarshal([]byte(f.payload), &update); err != nil {
			t.Fatalf("bad update frame: %v", err)
		}
		messages = append(messages, update.Message)
	}

	if len(messages) != 3 {
		t.Fatalf("Expected exactly three data frames, got %v", messages)
	}
	if messages[0] != "connecting" || messages[1] != "before" || messages[2] != "after" {
		t.Errorf("Expected [connecting before after], got %v", messages)
	}
}

func TestLoop_EvalErrorTreatedAsUnchanged(t *testing.T) {
	ev := &fakeEvaluator{detail: valueDetail("steady")}
	loop := NewLoop(ev, fastConfig(), logging.Nop())
	rec := &recorder{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		ev.set(engine.ErrorDetail(fallback, engine.ErrKindStoreError))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	reason := loop.Run(ctx, rec, userContext("u"))

	if reason != ClosedByPeer {
		t.Errorf("Mid-stream errors must not close the stream, got %s", reason)
	}

	dataFrames := 0
	for _, f := range rec.snapshot() {
		if !f.comment {
			dataFrames++
		}
	}
	// The client keeps its last known value; no fallback frame is sent
	// beyond the placeholder and the initial value.
	if dataFrames != 2 {
		t.Errorf("Expected two data frames despite mid-stream errors, got %d", dataFrames)
	}
}

func TestLoop_StoreErrorOnConnectCloses(t *testing.T) {
	ev := &fakeEvaluator{detail: engine.ErrorDetail(fallback, engine.ErrKindStoreError)}
	loop := NewLoop(ev, fastConfig(), logging.Nop())
	rec := &recorder{}

	reason := loop.Run(context.Background(), rec, userContext("u"))
	if reason != ClosedByError {
		t.Fatalf("Expected CLOSED_BY_ERROR, got %s", reason)
	}

	frames := rec.snapshot()
	if len(frames) != 2 || frames[0].comment || frames[1].comment {
		t.Fatalf("Expected the placeholder and one error data frame, got %+v", frames)
	}
	var ef ErrorFrame
	if err := json.Unmarshal([]byte(frames[1].payload), &ef); err != nil || ef.Error == "" {
		t.Errorf("Expected an error payload, got '%s'", frames[1].payload)
	}
}

func TestLoop_MissingFlagStreamsFallback(t *testing.T) {
	// A flag the relay has not written yet is not fatal; the stream
	// serves the fallback until the cache catches up.
	ev := &fakeEvaluator{detail: engine.ErrorDetail(fallback, engine.ErrKindFlagNotFound)}
	loop := NewLoop(ev, fastConfig(), logging.Nop())
	rec := &recorder{}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	reason := loop.Run(ctx, rec, userContext("u"))

	if reason != ClosedByPeer {
		t.Errorf("Missing flag must not close the stream, got %s", reason)
	}

	frames := rec.snapshot()
	if len(frames) < 2 || frames[1].comment {
		t.Fatalf("Expected a data frame after the placeholder, got %+v", frames)
	}
	var update Update
	if err := json.Unmarshal([]byte(frames[1].payload), &update); err != nil {
		t.Fatalf("bad update frame: %v", err)
	}
	if update.Message != fallback {
		t.Errorf("Expected fallback message, got '%s'", update.Message)
	}
}

func TestLoop_LifetimeCap(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConnTime = 40 * time.Millisecond

	ev := &fakeEvaluator{detail: valueDetail("steady")}
	loop := NewLoop(ev, cfg, logging.Nop())
	rec := &recorder{}

	start := time.Now()
	reason := loop.Run(context.Background(), rec, userContext("u"))
	elapsed := time.Since(start)

	if reason != ClosedByTimeout {
		t.Errorf("Expected CLOSED_BY_TIMEOUT, got %s", reason)
	}
	if elapsed < cfg.MaxConnTime {
		t.Errorf("Closed before the lifetime cap: %s", elapsed)
	}
	if elapsed > cfg.MaxConnTime+time.Second {
		t.Errorf("Lifetime cap overshot: %s", elapsed)
	}

	frames := rec.snapshot()
	if len(frames) == 0 {
		t.Fatal("Expected frames before the cap")
	}
	final := frames[len(frames)-1]
	if final.comment {
		t.Fatal("Final frame must be the timeout notice, got a heartbeat")
	}
	var update Update
	if err := json.Unmarshal([]byte(final.payload), &update); err != nil {
		t.Fatalf("bad final frame: %v", err)
	}
	if update.Message != "timeout, please reconnect" {
		t.Errorf("Expected timeout notice, got '%s'", update.Message)
	}
}

func TestLoop_PeerDisconnectStopsLoop(t *testing.T) {
	ev := &fakeEvaluator{detail: valueDetail("steady")}
	loop := NewLoop(ev, fastConfig(), logging.Nop())
	rec := &recorder{}

	go func() {
		time.Sleep(15 * time.Millisecond)
		rec.breakPipe()
	}()

	done := make(chan CloseReason, 1)
	go func() {
		done <- loop.Run(context.Background(), rec, userContext("u"))
	}()

	select {
	case reason := <-done:
		if reason != ClosedByPeer {
			t.Errorf("Expected CLOSED_BY_PEER after write failure, got %s", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not stop after the peer vanished")
	}
}
