package registry_test

import (
	"errors"
	"testing"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/registry"
)

func tilesConfig() domain.BindingConfig {
	return domain.BindingConfig{
		ID:        "tiles",
		Location:  "mem://tiles",
		Direction: domain.DirectionInput,
		Encoding:  domain.EncodingBits,
	}
}

func treeWithTiles(t *testing.T, ids ...string) *domain.Tree {
	t.Helper()
	tree := domain.NewTree()
	root, err := tree.NewEntity("hall", "room", nil)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	for _, id := range ids {
		if _, err := tree.NewEntity(id, "tile", root, domain.WithBindings("tiles")); err != nil {
			t.Fatalf("%s: %v", id, err)
		}
	}
	return tree
}

func TestResolve_OrdinalsFollowDocumentOrder(t *testing.T) {
	reg := registry.New()
	if err := reg.Declare(tilesConfig()); err != nil {
		t.Fatalf("declare: %v", err)
	}

	tree := treeWithTiles(t, "a", "b", "c")
	groups, err := reg.Resolve(tree)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}

	g := groups[0]
	for i, id := range []string{"a", "b", "c"} {
		ord, ok := g.Ordinal(id)
		if !ok || ord != i {
			t.Errorf("entity %q: ordinal %d (ok=%v), want %d", id, ord, ok, i)
		}
	}
}

func TestResolve_OrdinalStabilityAcrossReResolution(t *testing.T) {
	reg := registry.New()
	if err := reg.Declare(tilesConfig()); err != nil {
		t.Fatalf("declare: %v", err)
	}

	tree := treeWithTiles(t, "a", "b", "c")
	if _, err := reg.Resolve(tree); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	// Add d in front of the others in document order: it must still get
	// ordinal 3, never displace a/b/c.
	root := tree.Root()
	if _, err := tree.NewEntity("d", "tile", root, domain.WithBindings("tiles")); err != nil {
		t.Fatalf("d: %v", err)
	}

	groups, err := reg.Resolve(tree)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	g := groups[0]

	want := map[string]int{"a": 0, "b": 1, "c": 2, "d": 3}
	for id, wantOrd := range want {
		ord, ok := g.Ordinal(id)
		if !ok || ord != wantOrd {
			t.Errorf("entity %q: ordinal %d (ok=%v), want %d", id, ord, ok, wantOrd)
		}
	}
}

func TestResolve_RemovedEntityVacatesSlot(t *testing.T) {
	reg := registry.New()
	if err := reg.Declare(tilesConfig()); err != nil {
		t.Fatalf("declare: %v", err)
	}

	tree := treeWithTiles(t, "a", "b", "c")
	if _, err := reg.Resolve(tree); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := tree.Remove("b"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	groups, err := reg.Resolve(tree)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	g := groups[0]

	if _, ok := g.Ordinal("b"); ok {
		t.Error("removed entity should have no ordinal")
	}
	if _, ok := g.Entity(1); ok {
		t.Error("vacated slot should stay empty")
	}
	// Channel offsets of the survivors keep their meaning.
	if ord, _ := g.Ordinal("c"); ord != 2 {
		t.Errorf("entity c moved to ordinal %d, want 2", ord)
	}
}

func TestResolve_UnknownBindingIsIsolated(t *testing.T) {
	reg := registry.New()
	if err := reg.Declare(tilesConfig()); err != nil {
		t.Fatalf("declare: %v", err)
	}

	tree := treeWithTiles(t, "a")
	root := tree.Root()
	if _, err := tree.NewEntity("ghost", "tile", root, domain.WithBindings("nope")); err != nil {
		t.Fatalf("ghost: %v", err)
	}

	groups, err := reg.Resolve(tree)

	var unknown *domain.UnknownBindingError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownBindingError, got %v", err)
	}
	if unknown.Ref != "nope" || unknown.EntityID != "ghost" {
		t.Errorf("error carries %q/%q", unknown.Ref, unknown.EntityID)
	}

	// The healthy binding still resolved.
	if len(groups) != 1 || groups[0].Config.ID != "tiles" {
		t.Fatalf("healthy binding did not resolve: %v", groups)
	}
}

func TestDeclare_DuplicateLocationRejected(t *testing.T) {
	reg := registry.New()
	if err := reg.Declare(tilesConfig()); err != nil {
		t.Fatalf("declare: %v", err)
	}

	clash := tilesConfig()
	clash.ID = "tiles2"
	clash.Direction = domain.DirectionOutput

	err := reg.Declare(clash)
	var dup *domain.DuplicateLocationError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateLocationError, got %v", err)
	}
	if dup.First != "tiles" || dup.Second != "tiles2" {
		t.Errorf("error carries %q/%q", dup.First, dup.Second)
	}
}

func TestDeclare_InvalidConfigRejected(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*domain.BindingConfig)
	}{
		{"no id", func(c *domain.BindingConfig) { c.ID = "" }},
		{"no location", func(c *domain.BindingConfig) { c.Location = "" }},
		{"bad direction", func(c *domain.BindingConfig) { c.Direction = "sideways" }},
		{"bad encoding", func(c *domain.BindingConfig) { c.Encoding = "morse" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tilesConfig()
			tc.mod(&cfg)
			if err := registry.New().Declare(cfg); err == nil {
				t.Error("expected declaration to fail")
			}
		})
	}
}

func TestResolve_UnreferencedBindingGetsNoGroup(t *testing.T) {
	reg := registry.New()
	if err := reg.Declare(tilesConfig()); err != nil {
		t.Fatalf("declare: %v", err)
	}

	tree := domain.NewTree()
	if _, err := tree.NewEntity("hall", "room", nil); err != nil {
		t.Fatalf("root: %v", err)
	}

	groups, err := reg.Resolve(tree)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("got %d groups for an unreferenced binding, want 0", len(groups))
	}
}
