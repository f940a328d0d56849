package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart       EventType = "start"
	EventExit        EventType = "exit"
	EventStartFailed EventType = "start_failed"
	EventCompleted   EventType = "completed"
	EventGaveUp      EventType = "gave_up"
)

// Record describes the slot an event belongs to.
type Record struct {
	Slot     int      `json:"slot"`
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Args     []string `json:"args,omitempty"`
	PID      int      `json:"pid,omitempty"`
	ExitCode *int     `json:"exit_code,omitempty"`
	Restarts int      `json:"restarts"`
	Error    string   `json:"error,omitempty"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Recorder accepts events without blocking the caller.
type Recorder interface {
	Record(e Event)
}

func exitCodeText(code *int) any {
	if code == nil {
		return nil
	}
	return *code
}

// Columns flattens an event into the column order shared by the SQL sinks:
// occurred_at, event, slot, name, path, pid, exit_code, restarts, error.
func Columns(e Event) []any {
	r := e.Record
	var errText any
	if r.Error != "" {
		errText = r.Error
	}
	return []any{
		e.OccurredAt.UTC(),
		string(e.Type),
		r.Slot,
		r.Name,
		r.Path,
		r.PID,
		exitCodeText(r.ExitCode),
		r.Restarts,
		errText,
	}
}
