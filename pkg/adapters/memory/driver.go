// Package memory provides an in-process loopback channel driver, used
// for simulation and tests. Inbound frames are injected through the
// driver's Push method (or a Hub); outbound frames are recorded and can
// be inspected.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/ports"
)

// Driver implements ports.ChannelDriver against in-process queues.
// Safe for concurrent use. A closed driver can be reopened, which makes
// it suitable for reconnect-policy tests.
type Driver struct {
	location string

	mu       sync.Mutex
	opened   bool
	closedCh chan struct{}
	inbound  chan domain.Frame
	writes   []domain.Frame

	failOpen   bool
	failWrites bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithBuffer sets the inbound queue capacity (default 16).
func WithBuffer(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.inbound = make(chan domain.Frame, n)
		}
	}
}

// NewDriver creates a loopback driver for the given location.
func NewDriver(location string, opts ...Option) *Driver {
	d := &Driver{
		location: location,
		inbound:  make(chan domain.Frame, 16),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Location returns the endpoint address.
func (d *Driver) Location() string { return d.location }

// Open acquires the loopback endpoint. Reopening a closed driver resets it.
func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failOpen {
		return fmt.Errorf("%w: %s", domain.ErrChannelUnavailable, d.location)
	}
	if d.opened {
		return nil
	}
	d.opened = true
	d.closedCh = make(chan struct{})
	return nil
}

// ReadFrame blocks until a frame is pushed, the driver closes, or ctx is
// canceled.
func (d *Driver) ReadFrame(ctx context.Context) (domain.Frame, error) {
	d.mu.Lock()
	opened := d.opened
	closedCh := d.closedCh
	d.mu.Unlock()

	if !opened {
		return domain.Frame{}, domain.ErrChannelClosed
	}

	select {
	case f := <-d.inbound:
		return f, nil
	case <-closedCh:
		return domain.Frame{}, domain.ErrChannelClosed
	case <-ctx.Done():
		return domain.Frame{}, fmt.Errorf("read canceled: %w", ctx.Err())
	}
}

// WriteFrame records the frame. Serialized by the driver's mutex.
func (d *Driver) WriteFrame(ctx context.Context, f domain.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return domain.ErrChannelClosed
	}
	if d.failWrites {
		return fmt.Errorf("%w: injected failure on %s", domain.ErrChannelWrite, d.location)
	}
	d.writes = append(d.writes, f)
	return nil
}

// Close releases the endpoint and unblocks pending reads. Idempotent.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return nil
	}
	d.opened = false
	close(d.closedCh)
	return nil
}

// Push injects an inbound frame, as if the device had produced it.
func (d *Driver) Push(f domain.Frame) error {
	d.mu.Lock()
	opened := d.opened
	d.mu.Unlock()
	if !opened {
		return domain.ErrChannelClosed
	}
	d.inbound <- f
	return nil
}

// Writes returns a copy of the recorded outbound frames.
func (d *Driver) Writes() []domain.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Frame, len(d.writes))
	copy(out, d.writes)
	return out
}

// Reset clears the recorded writes.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = nil
}

// FailOpen makes subsequent Open calls fail with ErrChannelUnavailable.
func (d *Driver) FailOpen(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOpen = fail
}

// FailWrites makes subsequent writes fail with ErrChannelWrite.
func (d *Driver) FailWrites(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWrites = fail
}

// Hub hands out one shared driver per device location, so a test or a
// simulation can feed frames to the driver a runtime opened by location
// alone.
type Hub struct {
	mu      sync.Mutex
	drivers map[string]*Driver
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{drivers: make(map[string]*Driver)}
}

// Factory returns a ports.DriverFactory backed by this hub.
func (h *Hub) Factory() ports.DriverFactory {
	return func(cfg domain.BindingConfig) (ports.ChannelDriver, error) {
		return h.driver(cfg.Location), nil
	}
}

// Driver returns the driver for a location, if one has been created.
func (h *Hub) Driver(location string) (*Driver, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.drivers[location]
	return d, ok
}

// Feed injects an inbound frame into the driver at the given location.
func (h *Hub) Feed(location string, f domain.Frame) error {
	return h.driver(location).Push(f)
}

func (h *Hub) driver(location string) *Driver {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.drivers[location]
	if !ok {
		d = NewDriver(location)
		h.drivers[location] = d
	}
	return d
}
