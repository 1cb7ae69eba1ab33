package logger

import (
	"context"
	"log/slog"
	"time"
)

// ChangeEvent describes a persistence-layer operation on an entity.
// Emission is observability only: it never blocks or fails the operation
// that produced it.
type ChangeEvent struct {
	Kind      string // entity kind, e.g. "user"
	Operation string // "create", "update", "read", "destroy"
	ID        string
	State     string
	Metadata  map[string]string
}

// EventEmitter publishes change events onto the process log stream.
type EventEmitter struct {
	logger *slog.Logger
}

// NewEventEmitter creates a new event emitter
func NewEventEmitter(logger *slog.Logger) *EventEmitter {
	return &EventEmitter{
		logger: logger,
	}
}

// Emit publishes a change event. Secrets never appear in the payload;
// callers pass identifying fields only.
func (e *EventEmitter) Emit(event ChangeEvent) {
	attrs := []slog.Attr{
		slog.String("event_kind", event.Kind),
		slog.String("operation", event.Operation),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.ID != "" {
		attrs = append(attrs, slog.String("id", event.ID))
	}
	if event.State != "" {
		attrs = append(attrs, slog.String("state", event.State))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	e.logger.LogAttrs(context.Background(), slog.LevelInfo, "change", attrs...)
}
