// Package journal
package journal

import (
	"context"
	"time"
)

// Event represents a journaled event.
type Event struct {
	Time        time.Time
	Type        string // e.g., "order", "signal", "error"
	Description string
	Data        map[string]any
}

// Journaler interface for journaling events.
type Journaler interface {
	LogEvent(ctx context.Context, event Event) error
	GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error)
}

// Noop discards events; used when no database is configured.
type Noop struct{}

func (Noop) LogEvent(context.Context, Event) error { return nil }

func (Noop) GetEvents(context.Context, string, time.Time, time.Time) ([]Event, error) {
	return nil, nil
}
