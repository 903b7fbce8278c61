// Package runner hosts a Tether runtime as a long-running process:
// it starts the runtime, optionally serves the diagnostics HTTP
// endpoint, and tears everything down on signal or context
// cancellation.
package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tetherdev/tether"
	httpadapter "github.com/tetherdev/tether/pkg/adapters/http"
)

// Runner orchestrates a runtime's process lifecycle.
type Runner struct {
	runtime    *tether.Runtime
	logger     *slog.Logger
	listenAddr string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithListenAddr enables the diagnostics HTTP server on the given
// address (e.g. ":8090"). Empty disables it.
func WithListenAddr(addr string) Option {
	return func(r *Runner) {
		r.listenAddr = addr
	}
}

// New creates a runner for the runtime.
func New(rt *tether.Runtime, opts ...Option) *Runner {
	r := &Runner{
		runtime: rt,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the runtime and blocks until the context is canceled or a
// termination signal arrives. Binding start failures are logged, not
// fatal: the runtime keeps serving its healthy bindings.
func (r *Runner) Run(ctx context.Context) error {
	signals := NewSignalManager(ctx)
	defer signals.Stop()
	runCtx := signals.Context()

	if err := r.runtime.Start(runCtx); err != nil {
		r.logger.Warn("runtime started with degraded bindings", "err", err)
	}
	defer r.runtime.Stop()

	var server *http.Server
	serverErr := make(chan error, 1)
	if r.listenAddr != "" {
		handler := httpadapter.NewHandler(r.runtime, r.runtime.Metrics().Registry())
		server = &http.Server{Addr: r.listenAddr, Handler: handler}
		go func() {
			r.logger.Info("diagnostics listening", "addr", r.listenAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	select {
	case <-runCtx.Done():
	case err := <-serverErr:
		return err
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("diagnostics shutdown failed", "err", err)
		}
	}
	return nil
}
