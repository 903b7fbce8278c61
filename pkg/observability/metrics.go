// Package observability exposes the runtime's prometheus metrics and
// wires them into binding engine hooks.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/engine"
)

// Metrics holds the runtime's collectors, registered on a private
// registry so embedding applications keep their own default registry
// clean.
type Metrics struct {
	registry *prometheus.Registry

	FramesRead       *prometheus.CounterVec
	Writes           *prometheus.CounterVec
	WritesSuppressed *prometheus.CounterVec
	DecodeErrors     *prometheus.CounterVec
	Events           *prometheus.CounterVec
	ListenerErrors   prometheus.Counter
	EngineState      *prometheus.GaugeVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_frames_read_total",
			Help: "Inbound frames read per binding",
		}, []string{"binding"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_frames_written_total",
			Help: "Outbound frames written per binding",
		}, []string{"binding"}),
		WritesSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_writes_suppressed_total",
			Help: "Outbound writes suppressed because the value matched the cache",
		}, []string{"binding"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_decode_errors_total",
			Help: "Malformed inbound frames dropped per binding",
		}, []string{"binding"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tether_events_total",
			Help: "Domain events synthesized per binding and kind",
		}, []string{"binding", "kind"}),
		ListenerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tether_listener_errors_total",
			Help: "Listener invocations that failed or panicked",
		}),
		EngineState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tether_engine_state",
			Help: "Binding engine state (1 for the current state)",
		}, []string{"binding", "state"}),
	}
	m.registry.MustRegister(
		m.FramesRead, m.Writes, m.WritesSuppressed,
		m.DecodeErrors, m.Events, m.ListenerErrors, m.EngineState,
	)
	return m
}

// Registry returns the gatherer for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EngineHooks returns hooks that record engine activity.
func (m *Metrics) EngineHooks() engine.Hooks {
	return engine.Hooks{
		OnStateChange: func(binding string, from, to engine.State) {
			m.EngineState.WithLabelValues(binding, string(from)).Set(0)
			m.EngineState.WithLabelValues(binding, string(to)).Set(1)
		},
		OnFrameRead: func(binding string) {
			m.FramesRead.WithLabelValues(binding).Inc()
		},
		OnWrite: func(binding string, suppressed bool) {
			if suppressed {
				m.WritesSuppressed.WithLabelValues(binding).Inc()
				return
			}
			m.Writes.WithLabelValues(binding).Inc()
		},
		OnDecodeError: func(binding string, err error) {
			m.DecodeErrors.WithLabelValues(binding).Inc()
		},
		OnEvent: func(binding, kind string) {
			m.Events.WithLabelValues(binding, kind).Inc()
		},
	}
}

// ListenerErrorHook returns a dispatch error hook recording failures.
func (m *Metrics) ListenerErrorHook() func(*domain.ListenerError) {
	return func(*domain.ListenerError) {
		m.ListenerErrors.Inc()
	}
}
