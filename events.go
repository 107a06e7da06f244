package taskdesk

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// EventType names a session lifecycle event.
type EventType string

const (
	EventOTPRequested     EventType = "otp_requested"
	EventOTPResent        EventType = "otp_resent"
	EventSessionStarted   EventType = "session_started"
	EventSessionRestored  EventType = "session_restored"
	EventSessionRefreshed EventType = "session_refreshed"
	EventSessionEnded     EventType = "session_ended"
	EventLogout           EventType = "logout"
)

// SessionEvent is delivered to the configured [EventSink].
type SessionEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Role      string            `json:"role,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type EventSink interface {
	Emit(ctx context.Context, event SessionEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, SessionEvent) {}

type ChannelSink struct {
	events chan SessionEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan SessionEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event SessionEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan SessionEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event SessionEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// SessionEnd describes why the client dropped its session.
type SessionEnd struct {
	Reason string
	UserID string
	At     time.Time
	Err    error
}

const (
	EndRefreshFailed       = "refresh_failed"
	EndRefreshUnauthorized = "refresh_unauthorized"
	EndRetryUnauthorized   = "retry_unauthorized"
)

// SessionEndedFunc is the application-level logout signal. Handlers run
// synchronously, once per ending, on the goroutine that detected it. A
// client that held no credential has no session to end: terminal 401s on
// tokenless requests return ErrSessionExpired without firing the signal.
type SessionEndedFunc func(ctx context.Context, end SessionEnd)
