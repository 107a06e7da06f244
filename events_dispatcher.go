package taskdesk

import (
	"context"
	"sync"
	"sync/atomic"
)

// terminal reports whether an event marks the end of a session. Those events
// are the application's logout signal and are never dropped or blocked on.
func (e SessionEvent) terminal() bool {
	return e.Type == EventSessionEnded || e.Type == EventLogout
}

// eventDispatcher delivers session events to a sink on one goroutine.
//
// Routine events go through a bounded queue; with DropIfFull a full queue
// drops them, otherwise Emit waits for room or for ctx. Terminal events are
// never dropped: they go to an unbounded list that the delivery goroutine
// empties before taking the next routine event.
type eventDispatcher struct {
	sink       EventSink
	dropIfFull bool

	queue   chan SessionEvent
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}

	mu       sync.Mutex
	terminal []SessionEvent
	closed   bool

	dropped   atomic.Uint64
	closeOnce sync.Once
}

func newEventDispatcher(cfg EventsConfig, sink EventSink) *eventDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &eventDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan SessionEvent, max(cfg.BufferSize, 1)),
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *eventDispatcher) loop() {
	defer close(d.stopped)

	for {
		d.flushTerminal()
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.wake:
		case <-d.stop:
			d.flushTerminal()
			for {
				select {
				case ev := <-d.queue:
					d.sink.Emit(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

func (d *eventDispatcher) flushTerminal() {
	d.mu.Lock()
	pending := d.terminal
	d.terminal = nil
	d.mu.Unlock()

	for _, ev := range pending {
		d.sink.Emit(context.Background(), ev)
	}
}

// Emit queues event for delivery. It never blocks on terminal events.
func (d *eventDispatcher) Emit(ctx context.Context, event SessionEvent) {
	if d == nil {
		return
	}

	if event.terminal() {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		d.terminal = append(d.terminal, event)
		d.mu.Unlock()

		select {
		case d.wake <- struct{}{}:
		default:
		}
		return
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events and waits until everything accepted has been
// handed to the sink.
func (d *eventDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.stop)
		<-d.stopped
	})
}

// Dropped returns how many routine events a full queue discarded.
func (d *eventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
