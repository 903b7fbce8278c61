// Package dispatch delivers synthesized domain events to registered
// listeners with per-entity ordering and failure isolation.
package dispatch

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/ports"
)

// Handle identifies one listener registration.
type Handle string

type listenerKey struct {
	entityID string
	kind     string
}

type registration struct {
	handle Handle
	fn     ports.Listener
}

// Dispatcher implements ports.EventDispatcher.
//
// All delivery happens on a single worker goroutine, so events arriving
// at the dispatcher are delivered in arrival order (first up-queue wins).
// That satisfies the per-entity ordering guarantee; events for different
// entities simply share the same total order.
//
// Listener failures (returned errors and panics) are reported through
// the error hook and the logger; they never abort delivery of subsequent
// listeners or events.
type Dispatcher struct {
	logger  *slog.Logger
	onError func(*domain.ListenerError)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []domain.Event
	idle   bool
	closed bool
	done   chan struct{}

	lmu       sync.RWMutex
	listeners map[listenerKey][]registration
	byHandle  map[Handle]listenerKey
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithErrorHook registers a callback invoked for every listener failure.
func WithErrorHook(fn func(*domain.ListenerError)) Option {
	return func(d *Dispatcher) {
		d.onError = fn
	}
}

// New creates a dispatcher and starts its delivery worker.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		idle:      true,
		done:      make(chan struct{}),
		listeners: make(map[listenerKey][]registration),
		byHandle:  make(map[Handle]listenerKey),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Listen registers a listener for (entity, event-kind). Listeners for
// the same pair are invoked in registration order.
func (d *Dispatcher) Listen(entityID, kind string, fn ports.Listener) Handle {
	h := Handle(uuid.NewString())
	key := listenerKey{entityID: entityID, kind: kind}

	d.lmu.Lock()
	d.listeners[key] = append(d.listeners[key], registration{handle: h, fn: fn})
	d.byHandle[h] = key
	d.lmu.Unlock()
	return h
}

// Unlisten removes a registration. Unknown handles are ignored.
func (d *Dispatcher) Unlisten(h Handle) {
	d.lmu.Lock()
	defer d.lmu.Unlock()

	key, ok := d.byHandle[h]
	if !ok {
		return
	}
	delete(d.byHandle, h)

	regs := d.listeners[key]
	for i, reg := range regs {
		if reg.handle == h {
			d.listeners[key] = append(regs[:i], regs[i+1:]...)
			break
		}
	}
	if len(d.listeners[key]) == 0 {
		delete(d.listeners, key)
	}
}

// Dispatch enqueues an event for delivery. It never blocks on listener
// execution. Dispatching on a closed dispatcher drops the event.
func (d *Dispatcher) Dispatch(ev domain.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("event dropped: dispatcher closed", "kind", ev.Kind, "entity", ev.EntityID)
		return
	}
	d.queue = append(d.queue, ev)
	d.cond.Broadcast()
	d.mu.Unlock()
}

// Flush blocks until every previously dispatched event has been delivered.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for !(len(d.queue) == 0 && d.idle) {
		if d.closed {
			return
		}
		d.cond.Wait()
	}
}

// Close drains the queue, stops the worker, and waits for it to exit.
// Subsequent dispatches are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.idle = true
			d.cond.Broadcast()
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.idle = true
			d.cond.Broadcast()
			d.mu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue = d.queue[1:]
		d.idle = false
		d.mu.Unlock()

		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev domain.Event) {
	key := listenerKey{entityID: ev.EntityID, kind: ev.Kind}

	d.lmu.RLock()
	regs := make([]registration, len(d.listeners[key]))
	copy(regs, d.listeners[key])
	d.lmu.RUnlock()

	for _, reg := range regs {
		if err := d.invoke(reg.fn, ev); err != nil {
			lerr := &domain.ListenerError{Event: ev, Err: err}
			d.logger.Error("listener failed", "kind", ev.Kind, "entity", ev.EntityID, "error", err)
			if d.onError != nil {
				d.onError(lerr)
			}
		}
	}
}

func (d *Dispatcher) invoke(fn ports.Listener, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(ev)
}
