// Package cli implements the tether command behaviors behind the cobra
// surface in cmd/tether.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetherdev/tether"
	"github.com/tetherdev/tether/internal/logging"
	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/registry"
	"github.com/tetherdev/tether/pkg/runner"
	"github.com/tetherdev/tether/pkg/schema"
)

// RunOptions collects the run command's flags.
type RunOptions struct {
	DocumentPath string
	ListenAddr   string
	Watch        bool
	LogLevel     string
}

// Run loads the document, wires a runtime, and blocks until the process
// is signaled. With Watch enabled, document edits re-resolve bindings
// live.
func Run(ctx context.Context, opts RunOptions) error {
	logger := logging.New(logging.ParseLevel(opts.LogLevel))

	doc, err := schema.Load(opts.DocumentPath)
	if err != nil {
		return err
	}

	reg := registry.New()
	if err := doc.Declare(reg); err != nil {
		// Bad declarations are fatal only to their own binding.
		logger.Error("some binding declarations were rejected", "err", err)
	}

	tree, err := doc.BuildTree()
	if err != nil {
		return fmt.Errorf("build entity tree: %w", err)
	}

	rt := tether.New(tree, reg, tether.WithLogger(logger))

	if opts.Watch {
		stop, werr := WatchDocument(ctx, opts.DocumentPath, logger, func() {
			reload(opts.DocumentPath, rt, logger)
		})
		if werr != nil {
			return fmt.Errorf("watch %s: %w", opts.DocumentPath, werr)
		}
		defer stop()
	}

	host := runner.New(rt,
		runner.WithLogger(logger),
		runner.WithListenAddr(opts.ListenAddr),
	)
	return host.Run(ctx)
}

// reload applies additive document edits: newly declared bindings and
// entities are added and bindings re-resolved. Existing entities keep
// their ordinals; removals are ignored until restart.
func reload(path string, rt *tether.Runtime, logger *slog.Logger) {
	doc, err := schema.Load(path)
	if err != nil {
		logger.Error("reload failed, keeping running state", "err", err)
		return
	}

	for _, cfg := range doc.Bindings {
		if _, known := rt.Registry().Config(cfg.ID); !known {
			if err := rt.Registry().Declare(cfg); err != nil {
				logger.Error("new binding rejected", "binding", cfg.ID, "err", err)
			}
		}
	}

	if doc.Root != nil {
		if err := addMissing(rt, "", *doc.Root); err != nil {
			logger.Error("tree update failed", "err", err)
		}
	}

	if err := rt.Resolve(); err != nil {
		logger.Error("re-resolution reported errors", "err", err)
	} else {
		logger.Info("document reloaded", "entities", rt.Tree().Len())
	}
}

func addMissing(rt *tether.Runtime, parentID string, decl schema.EntityDecl) error {
	tree := rt.Tree()
	if _, exists := tree.Get(decl.ID); !exists {
		var parent *domain.Entity
		if parentID != "" {
			p, ok := tree.Get(parentID)
			if !ok {
				return fmt.Errorf("parent %q vanished during reload", parentID)
			}
			parent = p
		}
		// Builds the whole missing subtree in one go.
		return schema.BuildEntity(tree, parent, decl)
	}
	for _, c := range decl.Children {
		if err := addMissing(rt, decl.ID, c); err != nil {
			return err
		}
	}
	return nil
}
