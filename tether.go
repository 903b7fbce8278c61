package tether

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	filedriver "github.com/tetherdev/tether/pkg/adapters/file"
	redisdriver "github.com/tetherdev/tether/pkg/adapters/redis"
	"github.com/tetherdev/tether/pkg/dispatch"
	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/engine"
	"github.com/tetherdev/tether/pkg/observability"
	"github.com/tetherdev/tether/pkg/ports"
	"github.com/tetherdev/tether/pkg/registry"
)

// Runtime is the high-level entry point: it wires the entity tree, the
// binding registry, per-binding engines, and the event dispatcher.
type Runtime struct {
	tree     *domain.Tree
	registry *registry.Registry
	drivers  *ports.DriverRegistry
	logger   *slog.Logger
	metrics  *observability.Metrics

	engineOpts []engine.Option

	mu        sync.Mutex
	engines   map[string]*engine.Engine
	unobserve func()
	started   bool
	runCtx    context.Context

	dispatcher *dispatch.Dispatcher
}

// Option configures the Runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger for the runtime and everything
// it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// WithDriverFactory registers a driver factory for a location scheme,
// overriding the default for that scheme.
func WithDriverFactory(scheme string, f ports.DriverFactory) Option {
	return func(rt *Runtime) {
		rt.drivers.Register(scheme, f)
	}
}

// WithReconnectPolicy enables automatic channel reopening on all engines.
func WithReconnectPolicy(p engine.ReconnectPolicy) Option {
	return func(rt *Runtime) {
		rt.engineOpts = append(rt.engineOpts, engine.WithReconnectPolicy(p))
	}
}

// WithWriteTimeout bounds outbound writes on all engines.
func WithWriteTimeout(d time.Duration) Option {
	return func(rt *Runtime) {
		rt.engineOpts = append(rt.engineOpts, engine.WithWriteTimeout(d))
	}
}

// WithPresenceAttr overrides the attribute toggled by inbound bit-stream
// transitions on all engines.
func WithPresenceAttr(name string) Option {
	return func(rt *Runtime) {
		rt.engineOpts = append(rt.engineOpts, engine.WithPresenceAttr(name))
	}
}

// New creates a runtime over a tree and a registry of declared bindings.
// The "file" and "redis" location schemes are pre-registered; others
// (e.g. "mem" for the loopback hub) are added with WithDriverFactory.
func New(tree *domain.Tree, reg *registry.Registry, opts ...Option) *Runtime {
	rt := &Runtime{
		tree:     tree,
		registry: reg,
		drivers:  ports.NewDriverRegistry(),
		logger:   slog.Default(),
		metrics:  observability.New(),
		engines:  make(map[string]*engine.Engine),
	}
	rt.drivers.Register("file", filedriver.Factory)
	rt.drivers.Register("redis", redisdriver.Factory)

	for _, opt := range opts {
		opt(rt)
	}

	rt.dispatcher = dispatch.New(
		dispatch.WithLogger(rt.logger),
		dispatch.WithErrorHook(rt.metrics.ListenerErrorHook()),
	)
	return rt
}

// Start resolves bindings against the tree, opens channels, and begins
// translating. Per-binding failures (unknown references, unreachable
// devices) are joined into the returned error but never stop the other
// bindings: a non-nil return with a running runtime is normal operation
// with some bindings degraded or skipped.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	if rt.started {
		rt.mu.Unlock()
		return errors.New("runtime already started")
	}
	rt.started = true
	rt.runCtx = ctx
	rt.mu.Unlock()

	err := rt.resolveAndStart(ctx)
	rt.unobserve = rt.tree.Observe(rt.onMutation)
	return err
}

// Resolve re-resolves bindings after dynamic tree edits. Previously
// assigned ordinals are preserved; entities added to the tree are
// appended at the end of their binding's group, and engines for newly
// referenced bindings are started.
func (rt *Runtime) Resolve() error {
	rt.mu.Lock()
	if !rt.started {
		rt.mu.Unlock()
		return errors.New("runtime not started")
	}
	ctx := rt.runCtx
	rt.mu.Unlock()
	return rt.resolveAndStart(ctx)
}

func (rt *Runtime) resolveAndStart(ctx context.Context) error {
	groups, err := rt.registry.Resolve(rt.tree)
	var errs []error
	if err != nil {
		rt.logger.Error("binding resolution reported errors", "err", err)
		errs = append(errs, err)
	}

	for _, g := range groups {
		rt.mu.Lock()
		_, exists := rt.engines[g.Config.ID]
		rt.mu.Unlock()
		if exists {
			continue
		}

		driver, derr := rt.drivers.For(g.Config)
		if derr != nil {
			rt.logger.Error("no driver for binding", "binding", g.Config.ID, "location", g.Config.Location, "err", derr)
			errs = append(errs, fmt.Errorf("binding %q: %w", g.Config.ID, derr))
			continue
		}

		opts := append([]engine.Option{
			engine.WithLogger(rt.logger),
			engine.WithHooks(rt.metrics.EngineHooks()),
		}, rt.engineOpts...)
		eng := engine.New(g, driver, rt.dispatcher, opts...)

		rt.mu.Lock()
		rt.engines[g.Config.ID] = eng
		rt.mu.Unlock()

		if serr := eng.Start(ctx); serr != nil {
			// The engine is Degraded; reconnection (if configured) owns
			// it from here. Other bindings keep starting.
			errs = append(errs, serr)
		} else {
			rt.logger.Info("binding active", "binding", g.Config.ID, "location", g.Config.Location, "ordinals", g.Len())
		}
	}
	return errors.Join(errs...)
}

// Stop tears the runtime down: stops observing the tree, closes every
// engine (unblocking their read loops), and drains the dispatcher.
func (rt *Runtime) Stop() {
	rt.mu.Lock()
	if !rt.started {
		rt.mu.Unlock()
		return
	}
	rt.started = false
	unobserve := rt.unobserve
	rt.unobserve = nil
	engines := make([]*engine.Engine, 0, len(rt.engines))
	for _, e := range rt.engines {
		engines = append(engines, e)
	}
	rt.mu.Unlock()

	if unobserve != nil {
		unobserve()
	}
	for _, e := range engines {
		e.Stop()
	}
	rt.dispatcher.Close()
}

// Listen registers an event listener for (entity, event-kind).
func (rt *Runtime) Listen(entityID, kind string, fn ports.Listener) dispatch.Handle {
	return rt.dispatcher.Listen(entityID, kind, fn)
}

// Unlisten removes a listener registration.
func (rt *Runtime) Unlisten(h dispatch.Handle) {
	rt.dispatcher.Unlisten(h)
}

// Flush blocks until all dispatched events have been delivered.
func (rt *Runtime) Flush() {
	rt.dispatcher.Flush()
}

// Tree returns the entity tree.
func (rt *Runtime) Tree() *domain.Tree {
	return rt.tree
}

// Registry returns the binding registry.
func (rt *Runtime) Registry() *registry.Registry {
	return rt.registry
}

// Metrics returns the runtime's collectors, for the /metrics endpoint.
func (rt *Runtime) Metrics() *observability.Metrics {
	return rt.metrics
}

// Engine returns a binding engine by ID.
func (rt *Runtime) Engine(id string) (*engine.Engine, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	e, ok := rt.engines[id]
	return e, ok
}

// Bindings returns diagnostic snapshots of every engine, in binding
// declaration order.
func (rt *Runtime) Bindings() []engine.Snapshot {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]engine.Snapshot, 0, len(rt.engines))
	for _, cfg := range rt.registry.Configs() {
		if e, ok := rt.engines[cfg.ID]; ok {
			out = append(out, e.Snapshot())
		}
	}
	return out
}

// onMutation fans a tree mutation out to every engine; engines filter by
// group membership and direction.
func (rt *Runtime) onMutation(m domain.Mutation) {
	rt.mu.Lock()
	engines := make([]*engine.Engine, 0, len(rt.engines))
	for _, e := range rt.engines {
		engines = append(engines, e)
	}
	rt.mu.Unlock()

	for _, e := range engines {
		e.ObserveMutation(m)
	}
}
