package taskdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, SessionEvent) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, SessionEvent) {
	<-s.gate
}

func TestEventDispatcherDisabled(t *testing.T) {
	if d := newEventDispatcher(EventsConfig{Enabled: false}, &countingSink{}); d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	var d *eventDispatcher
	d.Emit(context.Background(), SessionEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report no drops")
	}
}

func TestEventDispatcherDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 64, DropIfFull: true}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), SessionEvent{Type: EventSessionRefreshed})
	}
	d.Close()

	if got := sink.count.Load(); got != 20 {
		t.Fatalf("expected 20 delivered events, got %d", got)
	}
	d.Emit(context.Background(), SessionEvent{Type: EventLogout})
	if got := sink.count.Load(); got != 20 {
		t.Fatalf("expected no delivery after close, got %d", got)
	}
}

func TestEventDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), SessionEvent{Type: EventSessionRefreshed})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a blocked sink")
	}
	close(sink.gate)
	d.Close()
}

func TestEventDispatcherBlockingHonorsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		d.Emit(ctx, SessionEvent{Type: EventSessionRefreshed})
	}
	if d.Dropped() != 0 {
		t.Fatal("blocking mode must not count drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), SessionEvent{Type: EventSessionEnded, UserID: "u-1", Metadata: map[string]string{"reason": EndRefreshFailed}})
	sink.Emit(context.Background(), SessionEvent{Type: EventLogout, UserID: "u-1", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var ev SessionEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != EventSessionEnded || ev.Metadata["reason"] != EndRefreshFailed {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

type recordingSink struct {
	gate chan struct{}

	mu    sync.Mutex
	types []EventType
}

func (s *recordingSink) Emit(_ context.Context, ev SessionEvent) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, ev.Type)
}

func (s *recordingSink) seen(typ EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.types {
		if t == typ {
			n++
		}
	}
	return n
}

func TestEventDispatcherKeepsSessionEndedWhenFull(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), SessionEvent{Type: EventSessionRefreshed})
	}
	dropped := d.Dropped()
	if dropped == 0 {
		t.Fatal("expected routine events dropped with a blocked sink")
	}

	d.Emit(context.Background(), SessionEvent{Type: EventSessionEnded, UserID: "u-1"})
	d.Emit(context.Background(), SessionEvent{Type: EventLogout, UserID: "u-1"})
	if got := d.Dropped(); got != dropped {
		t.Fatalf("terminal events must not be dropped, drops went %d -> %d", dropped, got)
	}

	close(sink.gate)
	d.Close()

	if sink.seen(EventSessionEnded) != 1 || sink.seen(EventLogout) != 1 {
		t.Fatalf("expected session_ended and logout delivered, got %v", sink.types)
	}
}

func TestEventDispatcherTerminalIgnoresCanceledContext(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		d.Emit(ctx, SessionEvent{Type: EventSessionRefreshed})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Emit(ctx, SessionEvent{Type: EventSessionEnded})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emitting a terminal event blocked on a busy sink")
	}

	close(sink.gate)
	d.Close()
	if sink.seen(EventSessionEnded) != 1 {
		t.Fatalf("expected session_ended delivered, got %v", sink.types)
	}
}
