package engine

// State is the lifecycle state of a binding engine.
//
// Transitions: Unresolved → Opening → Active → {Degraded, Closed}.
// Degraded → Active is permitted when a reconnect policy reopens the
// channel. Closed is terminal.
type State string

const (
	// StateUnresolved: the engine exists but has not attempted to open
	// its channel.
	StateUnresolved State = "unresolved"
	// StateOpening: the channel is being acquired.
	StateOpening State = "opening"
	// StateActive: the channel is open; frames flow both ways.
	StateActive State = "active"
	// StateDegraded: the channel failed. Outbound writes are silently
	// dropped and inbound events stop; the rest of the runtime keeps
	// working. Bound entities' last-known state stays frozen.
	StateDegraded State = "degraded"
	// StateClosed: explicit teardown. Terminal.
	StateClosed State = "closed"
)

// Hooks are optional observability callbacks invoked by the engine.
// Nil funcs are skipped. Callbacks run on the engine's goroutines and
// must be fast.
type Hooks struct {
	OnStateChange func(binding string, from, to State)
	OnFrameRead   func(binding string)
	OnWrite       func(binding string, suppressed bool)
	OnDecodeError func(binding string, err error)
	OnEvent       func(binding string, kind string)
}

func (h Hooks) stateChange(binding string, from, to State) {
	if h.OnStateChange != nil {
		h.OnStateChange(binding, from, to)
	}
}

func (h Hooks) frameRead(binding string) {
	if h.OnFrameRead != nil {
		h.OnFrameRead(binding)
	}
}

func (h Hooks) write(binding string, suppressed bool) {
	if h.OnWrite != nil {
		h.OnWrite(binding, suppressed)
	}
}

func (h Hooks) decodeError(binding string, err error) {
	if h.OnDecodeError != nil {
		h.OnDecodeError(binding, err)
	}
}

func (h Hooks) event(binding, kind string) {
	if h.OnEvent != nil {
		h.OnEvent(binding, kind)
	}
}
