// Package dsl offers a programmatic builder for Tether documents, an
// alternative to the YAML schema for tests and embedded use.
package dsl

import (
	"fmt"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/registry"
)

// Builder accumulates binding declarations and an entity hierarchy.
type Builder struct {
	bindings []domain.BindingConfig
	root     *EntityBuilder
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{}
}

// Binding declares a binding configuration.
func (b *Builder) Binding(cfg domain.BindingConfig) *Builder {
	b.bindings = append(b.bindings, cfg)
	return b
}

// Root creates the root entity. Calling Root twice replaces the tree.
func (b *Builder) Root(id, tag string) *EntityBuilder {
	b.root = &EntityBuilder{id: id, tag: tag, builder: b}
	return b.root
}

// Build constructs the tree and a registry with every binding declared.
func (b *Builder) Build() (*domain.Tree, *registry.Registry, error) {
	reg := registry.New()
	for _, cfg := range b.bindings {
		if err := reg.Declare(cfg); err != nil {
			return nil, nil, fmt.Errorf("declare %q: %w", cfg.ID, err)
		}
	}

	tree := domain.NewTree()
	if b.root != nil {
		if err := b.root.build(tree, nil); err != nil {
			return nil, nil, err
		}
	}
	return tree, reg, nil
}

// EntityBuilder builds one entity and its children.
type EntityBuilder struct {
	id       string
	tag      string
	attrs    [][2]string
	styles   [][2]string
	bindings []string
	children []*EntityBuilder
	parent   *EntityBuilder
	builder  *Builder
}

// Attr sets an initial attribute.
func (eb *EntityBuilder) Attr(name, value string) *EntityBuilder {
	eb.attrs = append(eb.attrs, [2]string{name, value})
	return eb
}

// Style sets an initial style property.
func (eb *EntityBuilder) Style(name, value string) *EntityBuilder {
	eb.styles = append(eb.styles, [2]string{name, value})
	return eb
}

// Bind associates the entity with the named bindings.
func (eb *EntityBuilder) Bind(refs ...string) *EntityBuilder {
	eb.bindings = append(eb.bindings, refs...)
	return eb
}

// Child creates a child entity and descends into it.
func (eb *EntityBuilder) Child(id, tag string) *EntityBuilder {
	c := &EntityBuilder{id: id, tag: tag, parent: eb, builder: eb.builder}
	eb.children = append(eb.children, c)
	return c
}

// Up returns to the parent entity builder.
func (eb *EntityBuilder) Up() *EntityBuilder {
	if eb.parent == nil {
		return eb
	}
	return eb.parent
}

// Done returns the top-level builder.
func (eb *EntityBuilder) Done() *Builder {
	return eb.builder
}

func (eb *EntityBuilder) build(tree *domain.Tree, parent *domain.Entity) error {
	opts := make([]domain.EntityOption, 0, len(eb.attrs)+len(eb.styles)+1)
	if len(eb.bindings) > 0 {
		opts = append(opts, domain.WithBindings(eb.bindings...))
	}
	for _, kv := range eb.attrs {
		opts = append(opts, domain.WithAttr(kv[0], kv[1]))
	}
	for _, kv := range eb.styles {
		opts = append(opts, domain.WithStyle(kv[0], kv[1]))
	}

	e, err := tree.NewEntity(eb.id, eb.tag, parent, opts...)
	if err != nil {
		return err
	}
	for _, c := range eb.children {
		if err := c.build(tree, e); err != nil {
			return err
		}
	}
	return nil
}
