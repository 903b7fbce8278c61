// Package engine implements the binding engine: the per-binding
// coordinator that translates between one channel driver and the
// entities bound to it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/ports"
	"github.com/tetherdev/tether/pkg/registry"
)

// DefaultWriteTimeout bounds how long an outbound write may stall the
// mutating goroutine before it fails.
const DefaultWriteTimeout = 2 * time.Second

// DefaultPresenceAttr is the attribute toggled on bound entities by
// inbound bit-stream transitions.
const DefaultPresenceAttr = "present"

// Engine pairs one binding configuration with one open channel driver
// and the ordered list of entities bound to it.
//
// Inbound: a dedicated goroutine blocks on ReadFrame, decodes lane
// values per ordinal, performs edge detection against the per-ordinal
// cache, and dispatches synthesized events. Outbound: tree mutation
// notifications are encoded and written synchronously with a bounded
// timeout; writes equal to the cached last-written value are suppressed.
//
// A driver failure moves the engine to Degraded: outbound writes are
// silently dropped and inbound events stop, but the tree and all other
// bindings keep working. One failed device never halts the runtime.
type Engine struct {
	group      *registry.Group
	driver     ports.ChannelDriver
	dispatcher ports.EventDispatcher

	logger       *slog.Logger
	hooks        Hooks
	writeTimeout time.Duration
	reconnect    ReconnectPolicy
	presenceAttr string

	mu           sync.Mutex
	state        State
	closing      bool
	reconnecting bool
	lastIn       map[int]bool   // last observed input lane per ordinal (bit-stream)
	lastVal      map[int]string // last decoded value per ordinal (textual/command)
	seenVal      map[int]bool
	lastOut      map[string]string // last written payload per lane
	loopDone     chan struct{}
	runCtx       context.Context
	cancel       context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks registers observability callbacks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithWriteTimeout bounds outbound writes. Zero keeps the default.
func WithWriteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.writeTimeout = d
		}
	}
}

// WithReconnectPolicy enables automatic reopening of a degraded channel.
func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(e *Engine) {
		e.reconnect = p
	}
}

// WithPresenceAttr overrides the attribute toggled by inbound bit-stream
// transitions.
func WithPresenceAttr(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.presenceAttr = name
		}
	}
}

// New creates an engine for a resolved group. The engine stays
// Unresolved until Start.
func New(group *registry.Group, driver ports.ChannelDriver, dispatcher ports.EventDispatcher, opts ...Option) *Engine {
	e := &Engine{
		group:        group,
		driver:       driver,
		dispatcher:   dispatcher,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		writeTimeout: DefaultWriteTimeout,
		presenceAttr: DefaultPresenceAttr,
		state:        StateUnresolved,
		lastIn:       make(map[int]bool),
		lastVal:      make(map[int]string),
		seenVal:      make(map[int]bool),
		lastOut:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Binding returns the engine's binding ID.
func (e *Engine) Binding() string {
	return e.group.Config.ID
}

// Group returns the resolved ordinal group.
func (e *Engine) Group() *registry.Group {
	return e.group
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start opens the channel and, for inbound bindings, launches the read
// loop. An open failure leaves the engine Degraded (retried by the
// reconnect policy, if enabled) and is returned for logging; the caller
// keeps other bindings running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateUnresolved {
		e.mu.Unlock()
		return fmt.Errorf("binding %q already started", e.Binding())
	}
	e.runCtx, e.cancel = context.WithCancel(context.Background())
	e.transitionLocked(StateOpening)
	e.mu.Unlock()

	if err := e.driver.Open(ctx); err != nil {
		e.degrade(fmt.Errorf("open %s: %w", e.driver.Location(), err))
		return fmt.Errorf("binding %q: %w", e.Binding(), err)
	}

	e.mu.Lock()
	e.transitionLocked(StateActive)
	if e.group.Config.Direction.Inbound() {
		e.loopDone = make(chan struct{})
		go e.readLoop(e.runCtx, e.loopDone)
	}
	e.mu.Unlock()
	return nil
}

// Stop tears the engine down: Closed is terminal. The driver close
// unblocks a pending ReadFrame with ErrChannelClosed, which the read
// loop treats as a clean shutdown signal.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return
	}
	e.closing = true
	e.transitionLocked(StateClosed)
	cancel := e.cancel
	done := e.loopDone
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := e.driver.Close(); err != nil {
		e.logger.Warn("driver close failed", "binding", e.Binding(), "err", err)
	}
	if done != nil {
		<-done
	}
}

// Snapshot is a point-in-time diagnostic view of the engine.
type Snapshot struct {
	Binding   string           `json:"binding"`
	Location  string           `json:"location"`
	Direction domain.Direction `json:"direction"`
	Encoding  domain.Encoding  `json:"encoding"`
	State     State            `json:"state"`
	Ordinals  int              `json:"ordinals"`
}

// Snapshot returns the engine's diagnostic view.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Binding:   e.group.Config.ID,
		Location:  e.group.Config.Location,
		Direction: e.group.Config.Direction,
		Encoding:  e.group.Config.Encoding,
		State:     e.State(),
		Ordinals:  e.group.Len(),
	}
}

// ObserveMutation is the outbound path entry point, invoked
// synchronously from the goroutine performing the tree mutation. It
// encodes the new value for the entity's channel offset and writes it,
// suppressing writes equal to the cached last-written value.
func (e *Engine) ObserveMutation(m domain.Mutation) {
	cfg := e.group.Config
	if !cfg.Direction.Outbound() {
		return
	}
	ordinal, ok := e.group.Ordinal(m.EntityID)
	if !ok {
		return
	}
	frame, payload, ok := encodeMutation(cfg, ordinal, m)
	if !ok {
		return
	}

	key := cacheKey(ordinal, m.Name)

	e.mu.Lock()
	if e.state != StateActive {
		// Degraded engines drop outbound writes; the cache still tracks
		// the desired state so a reconnected channel is not re-sent
		// stale values.
		e.lastOut[key] = payload
		e.mu.Unlock()
		return
	}
	if last, cached := e.lastOut[key]; cached && last == payload {
		e.lastOut[key] = payload
		e.mu.Unlock()
		e.hooks.write(cfg.ID, true)
		return
	}
	e.lastOut[key] = payload
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
	err := e.driver.WriteFrame(ctx, frame)
	cancel()
	if err != nil {
		e.degrade(fmt.Errorf("write %s: %w", frame, err))
		return
	}
	e.hooks.write(cfg.ID, false)
}

func (e *Engine) readLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		frame, err := e.driver.ReadFrame(ctx)
		if err != nil {
			// A malformed payload surfaced by the driver spoils one
			// frame, not the channel.
			if errors.Is(err, domain.ErrDecode) {
				e.logger.Warn("dropping malformed frame", "binding", e.Binding(), "err", err)
				e.hooks.decodeError(e.Binding(), err)
				continue
			}
			e.mu.Lock()
			closing := e.closing
			e.mu.Unlock()
			if closing || ctx.Err() != nil {
				// Teardown closed the driver underneath us.
				return
			}
			e.degrade(fmt.Errorf("read: %w", err))
			return
		}
		e.hooks.frameRead(e.Binding())
		e.handleFrame(frame)
	}
}

func (e *Engine) handleFrame(frame domain.Frame) {
	cfg := e.group.Config
	obs, err := decodeFrame(cfg, frame)
	if err != nil {
		// Malformed frame: drop it, keep reading.
		e.logger.Warn("dropping malformed frame", "binding", cfg.ID, "frame", frame.String(), "err", err)
		e.hooks.decodeError(cfg.ID, err)
		return
	}

	for _, o := range obs {
		entity, bound := e.group.Entity(o.ordinal)
		if !bound {
			continue
		}
		switch cfg.Encoding {
		case domain.EncodingBits:
			e.observeBit(entity, o)
		default:
			e.observeValue(entity, o)
		}
	}
}

// observeBit applies edge detection: only a lane transition produces an
// event. The cache is updated unconditionally.
func (e *Engine) observeBit(entity *domain.Entity, o observation) {
	cfg := e.group.Config

	e.mu.Lock()
	prev := e.lastIn[o.ordinal]
	e.lastIn[o.ordinal] = o.bit
	changed := prev != o.bit
	if changed {
		// Prime the outbound cache so reflecting the reading into the
		// tree does not echo back out on a bidirectional channel.
		payload := "0"
		if o.bit {
			payload = "1"
		}
		e.lastOut[cacheKey(o.ordinal, e.presenceAttr)] = payload
	}
	e.mu.Unlock()

	if !changed {
		return
	}

	kind := cfg.ReleasedKind()
	if o.bit {
		kind = cfg.AcquiredKind()
	}

	// Reflect the physical reading into the tree before listeners run.
	if o.bit {
		entity.SetAttr(e.presenceAttr, "")
	} else {
		entity.RemoveAttr(e.presenceAttr)
	}

	e.emit(domain.Event{
		Kind:      kind,
		EntityID:  entity.ID(),
		Binding:   cfg.ID,
		Timestamp: time.Now(),
	})
}

// observeValue emits a value-changed class event when the decoded value
// for an entity's lane differs from the cached one.
func (e *Engine) observeValue(entity *domain.Entity, o observation) {
	cfg := e.group.Config

	e.mu.Lock()
	prev := e.lastVal[o.ordinal]
	seen := e.seenVal[o.ordinal]
	e.lastVal[o.ordinal] = o.value
	e.seenVal[o.ordinal] = true
	e.mu.Unlock()

	if seen && prev == o.value {
		return
	}

	e.emit(domain.Event{
		Kind:      cfg.ChangedKind(),
		EntityID:  entity.ID(),
		Binding:   cfg.ID,
		Value:     o.value,
		Timestamp: time.Now(),
	})
}

func (e *Engine) emit(ev domain.Event) {
	e.hooks.event(ev.Binding, ev.Kind)
	e.dispatcher.Dispatch(ev)
}

func (e *Engine) degrade(err error) {
	e.mu.Lock()
	if e.state == StateClosed || e.state == StateDegraded {
		e.mu.Unlock()
		return
	}
	e.transitionLocked(StateDegraded)
	spawn := e.reconnect.Enabled() && !e.reconnecting
	if spawn {
		e.reconnecting = true
	}
	ctx := e.runCtx
	e.mu.Unlock()

	e.logger.Error("binding degraded", "binding", e.Binding(), "location", e.driver.Location(), "err", err)
	if spawn {
		go e.reconnectLoop(ctx)
	}
}

// reconnectLoop retries Open with backoff until it succeeds, the
// attempt budget runs out, or the engine closes.
func (e *Engine) reconnectLoop(ctx context.Context) {
	wait := e.reconnect.backoff()
	attempts := 0
	for {
		if err := wait(ctx); err != nil {
			e.clearReconnecting()
			return
		}
		if e.State() != StateDegraded {
			e.clearReconnecting()
			return
		}

		attempts++
		err := e.driver.Open(ctx)
		if err == nil {
			e.mu.Lock()
			if e.state != StateDegraded {
				// Stop (or another transition) won the race while the
				// open was in flight. Closed stays terminal.
				e.reconnecting = false
				e.mu.Unlock()
				if cerr := e.driver.Close(); cerr != nil {
					e.logger.Warn("driver close failed", "binding", e.Binding(), "err", cerr)
				}
				return
			}
			e.reconnecting = false
			e.transitionLocked(StateActive)
			if e.group.Config.Direction.Inbound() {
				e.loopDone = make(chan struct{})
				go e.readLoop(ctx, e.loopDone)
			}
			e.mu.Unlock()
			e.logger.Info("binding reconnected", "binding", e.Binding(), "attempts", attempts)
			return
		}

		e.logger.Warn("reconnect attempt failed", "binding", e.Binding(), "attempt", attempts, "err", err)
		if e.reconnect.MaxAttempts > 0 && attempts >= e.reconnect.MaxAttempts {
			e.logger.Error("reconnect attempts exhausted", "binding", e.Binding(), "attempts", attempts)
			e.clearReconnecting()
			return
		}
	}
}

func (e *Engine) clearReconnecting() {
	e.mu.Lock()
	e.reconnecting = false
	e.mu.Unlock()
}

// transitionLocked records a state change. Caller holds e.mu.
func (e *Engine) transitionLocked(to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	e.hooks.stateChange(e.group.Config.ID, from, to)
}
