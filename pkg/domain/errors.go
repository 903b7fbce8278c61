package domain

import (
	"errors"
	"fmt"
)

// ErrChannelUnavailable is returned by a driver when its device location
// cannot be reached (missing, permission denied, busy).
var ErrChannelUnavailable = errors.New("channel unavailable")

// ErrChannelClosed is returned by a driver when the channel has been
// closed. A read loop treats it as a clean shutdown signal.
var ErrChannelClosed = errors.New("channel closed")

// ErrChannelWrite is returned by a driver on an I/O failure while
// writing a frame. Callers decide retry policy.
var ErrChannelWrite = errors.New("channel write failed")

// ErrDecode is returned when an inbound frame does not match the
// binding's encoding. The frame is dropped; the read loop continues.
var ErrDecode = errors.New("malformed frame")

// ErrEntityNotFound is returned when an entity ID is not present in the tree.
var ErrEntityNotFound = errors.New("entity not found")

// UnknownBindingError indicates that an entity references a binding
// identifier with no declared configuration.
type UnknownBindingError struct {
	Ref      string
	EntityID string
}

func (e *UnknownBindingError) Error() string {
	return fmt.Sprintf("unknown binding %q referenced by entity %q", e.Ref, e.EntityID)
}

// DuplicateLocationError indicates that two binding configurations claim
// the same device location. One location maps to exactly one live driver,
// so the second declaration is rejected.
type DuplicateLocationError struct {
	Location string
	First    string // binding ID that claimed the location first
	Second   string // binding ID that attempted to claim it again
}

func (e *DuplicateLocationError) Error() string {
	return fmt.Sprintf("device location %q declared by both %q and %q", e.Location, e.First, e.Second)
}

// ListenerError wraps a failure (error or panic) raised by an external
// event listener. It is reported and does not affect other listeners.
type ListenerError struct {
	Event Event
	Err   error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener failed for %s event on entity %q: %v", e.Event.Kind, e.Event.EntityID, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}
