// Package audit records every envelope state transition and every
// authorization denial. The trail is append-only; terminal envelopes are
// retained, so the trail is the system's history of record.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTransition EventType = "TRANSITION"
	EventDenial     EventType = "DENIAL"
	EventWebhook    EventType = "WEBHOOK"
)

// Entry is one structured audit record.
type Entry struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	ActorID    string         `json:"actor_id,omitempty"`
	EnvelopeID string         `json:"envelope_id,omitempty"`
	Action     string         `json:"action"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Logger appends audit entries. Implementations must be safe for concurrent
// use.
type Logger interface {
	Record(ctx context.Context, e Entry) error
}

// writerLogger writes structured JSON lines to a Writer.
type writerLogger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &writerLogger{writer: w}
}

func (l *writerLogger) Record(_ context.Context, e Entry) error {
	fill(&e)
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.writer.Write(append(b, '\n'))
	return err
}

func fill(e *Entry) {
	if e.ID == "" {
		e.ID = "aud_" + uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}
