package ports

import (
	"context"
	"strings"
	"sync"

	"github.com/tetherdev/tether/pkg/domain"
)

// ChannelDriver is the uniform abstraction over one physical communication
// endpoint. One driver instance exists per declared device location.
//
// Error contract (see pkg/domain):
//   - Open returns domain.ErrChannelUnavailable (wrapped) when the
//     location cannot be reached.
//   - ReadFrame blocks until a frame is available and returns
//     domain.ErrChannelClosed once the driver is closed. Closing the
//     driver is how a pending read is unblocked.
//   - WriteFrame is serialized internally with respect to other writers
//     on the same driver and returns domain.ErrChannelWrite (wrapped) on
//     I/O failure. Callers decide retry policy.
//   - Close is idempotent and releases the endpoint on every exit path.
type ChannelDriver interface {
	Open(ctx context.Context) error
	ReadFrame(ctx context.Context) (domain.Frame, error)
	WriteFrame(ctx context.Context, f domain.Frame) error
	Close() error

	// Location returns the opaque endpoint address this driver serves.
	Location() string
}

// DriverFactory builds a driver for one binding configuration. The
// factory must not touch the endpoint; acquisition happens in Open.
type DriverFactory func(cfg domain.BindingConfig) (ChannelDriver, error)

// DriverRegistry maps device-location schemes to driver factories.
// Safe for concurrent use.
type DriverRegistry struct {
	mu        sync.RWMutex
	factories map[string]DriverFactory
}

// NewDriverRegistry creates an empty driver registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{
		factories: make(map[string]DriverFactory),
	}
}

// Register adds a factory for a location scheme (e.g. "mem", "redis",
// "file"). Registering an existing scheme overwrites it.
func (r *DriverRegistry) Register(scheme string, f DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[scheme] = f
}

// For builds a driver for the configuration's device location. Locations
// without an explicit scheme (plain paths like "/dev/tiles0") resolve to
// the "file" scheme.
func (r *DriverRegistry) For(cfg domain.BindingConfig) (ChannelDriver, error) {
	scheme := LocationScheme(cfg.Location)

	r.mu.RLock()
	f, ok := r.factories[scheme]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.ErrChannelUnavailable
	}
	return f(cfg)
}

// LocationScheme extracts the scheme from a device location. Path-like
// locations without a scheme are treated as "file".
func LocationScheme(location string) string {
	if i := strings.Index(location, "://"); i > 0 {
		return location[:i]
	}
	if i := strings.Index(location, ":"); i > 0 && !strings.HasPrefix(location, "/") {
		return location[:i]
	}
	return "file"
}
