// Package http exposes a read-only diagnostics server for a running
// binding runtime: engine states, the entity tree, and prometheus
// metrics.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/engine"
)

// Inspector is the view the server needs onto the runtime core.
type Inspector interface {
	Bindings() []engine.Snapshot
	Tree() *domain.Tree
}

// EntityView is the JSON shape of one entity in the tree dump.
type EntityView struct {
	ID       string            `json:"id"`
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Styles   map[string]string `json:"styles,omitempty"`
	Bindings []string          `json:"bindings,omitempty"`
	Children []EntityView      `json:"children,omitempty"`
}

// NewHandler builds the diagnostics router. The gatherer may be nil to
// disable /metrics.
func NewHandler(ins Inspector, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/bindings", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, ins.Bindings())
	})

	r.Get("/entities", func(w http.ResponseWriter, req *http.Request) {
		tree := ins.Tree()
		root := tree.Root()
		if root == nil {
			writeJSON(w, []EntityView{})
			return
		}
		writeJSON(w, viewOf(root))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func viewOf(e *domain.Entity) EntityView {
	v := EntityView{
		ID:       e.ID(),
		Tag:      e.Tag(),
		Attrs:    e.Attrs(),
		Styles:   e.Styles(),
		Bindings: e.BindingRefs(),
	}
	for _, c := range e.Children() {
		v.Children = append(v.Children, viewOf(c))
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("diagnostics encode failed", "err", err)
	}
}
