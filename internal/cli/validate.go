package cli

import (
	"fmt"
	"io"

	"github.com/tetherdev/tether/pkg/registry"
	"github.com/tetherdev/tether/pkg/schema"
)

// Validate loads a document, declares its bindings, and resolves them
// against the declared tree without opening any channels. It prints a
// summary and returns an error when any declaration or reference is
// broken.
func Validate(out io.Writer, path string) error {
	doc, err := schema.Load(path)
	if err != nil {
		return err
	}

	reg := registry.New()
	declErr := doc.Declare(reg)

	tree, err := doc.BuildTree()
	if err != nil {
		return fmt.Errorf("build entity tree: %w", err)
	}

	groups, resolveErr := reg.Resolve(tree)

	fmt.Fprintf(out, "document: %s\n", path)
	fmt.Fprintf(out, "entities: %d\n", tree.Len())
	fmt.Fprintf(out, "bindings: %d declared, %d resolved\n", len(doc.Bindings), len(groups))
	for _, g := range groups {
		fmt.Fprintf(out, "  %-16s %-10s %-8s %s (%d ordinals)\n",
			g.Config.ID, g.Config.Direction, g.Config.Encoding, g.Config.Location, g.Len())
	}

	if declErr != nil {
		fmt.Fprintf(out, "declaration errors:\n  %v\n", declErr)
	}
	if resolveErr != nil {
		fmt.Fprintf(out, "resolution errors:\n  %v\n", resolveErr)
	}
	if declErr != nil || resolveErr != nil {
		return fmt.Errorf("document has errors")
	}
	fmt.Fprintln(out, "ok")
	return nil
}
