package grantcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// EventType defines a public type used by grantcore APIs.
type EventType string

const (
	// EventGrantCreated is emitted after a grant is durably created.
	EventGrantCreated EventType = "grant_created"
	// EventGrantResolved is emitted after a grant's terminal write commits.
	EventGrantResolved EventType = "grant_resolved"
)

// Event is the shape delivered to the status/notification sink. Delivery is
// fire-and-forget and never a precondition of grant correctness: if the
// sink is down, the grant is still correctly resolved.
type Event struct {
	Timestamp      time.Time         `json:"timestamp"`
	Type           EventType         `json:"type"`
	Kind           string            `json:"kind"`
	Subject        string            `json:"subject,omitempty"`
	GrantID        string            `json:"grant_id"`
	TerminalStatus string            `json:"terminal_status,omitempty"`
	Detail         string            `json:"detail,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NotifySink receives grant lifecycle events. Implementations bridge to the
// presence/push transport, which is entirely external to this module.
type NotifySink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit describes the emit operation and its observable behavior.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink buffers events on a channel for in-process consumers.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink describes the newchannelsink operation and its observable behavior.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

// Emit describes the emit operation and its observable behavior.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events describes the events operation and its observable behavior.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON line per event to the given writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit describes the emit operation and its observable behavior.
func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
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
