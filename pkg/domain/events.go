package domain

import "time"

// Generic event kinds synthesized by binding engines. Bindings may
// override these names per configuration (see EventNames).
const (
	// EventAcquired marks a false→true lane transition on a bit-stream
	// binding (an object appeared on its sensor).
	EventAcquired = "acquired"
	// EventReleased marks a true→false lane transition.
	EventReleased = "released"
	// EventValueChanged marks any decoded value change on a textual or
	// command-stream binding.
	EventValueChanged = "value-changed"
)

// Event is an ephemeral domain event synthesized by a binding engine and
// delivered to listeners registered on the target entity. Events are
// dispatched and discarded, never persisted.
type Event struct {
	// ID correlates the event across logs and diagnostics.
	ID string

	// Kind is the event name listeners match on.
	Kind string

	// EntityID is the target entity.
	EntityID string

	// Binding is the ID of the binding that produced the event. Empty
	// for events synthesized outside a binding engine.
	Binding string

	// Value carries the decoded payload for value-changed style events.
	Value string

	Timestamp time.Time
}
