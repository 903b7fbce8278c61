package ports

import "github.com/tetherdev/tether/pkg/domain"

// Listener is an external callback invoked with a matching domain event.
// A listener that panics or returns an error is reported and isolated; it
// never aborts delivery to other listeners.
type Listener func(domain.Event) error

// EventDispatcher delivers synthesized domain events to registered
// listeners. Events targeting the same entity are delivered in the order
// they arrive at the dispatcher; events for different entities carry no
// relative ordering guarantee.
type EventDispatcher interface {
	Dispatch(ev domain.Event)
}
