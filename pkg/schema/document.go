// Package schema loads declarative Tether documents: binding
// configurations plus the entity tree, from YAML.
package schema

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/tetherdev/tether/pkg/domain"
	"github.com/tetherdev/tether/pkg/registry"
)

// EntityDecl declares one entity. The Bindings field is a
// whitespace-separated list of binding identifiers.
type EntityDecl struct {
	ID       string            `yaml:"id"`
	Tag      string            `yaml:"tag"`
	Attrs    map[string]string `yaml:"attrs"`
	Styles   map[string]string `yaml:"styles"`
	Bindings string            `yaml:"bindings"`
	Children []EntityDecl      `yaml:"children"`
}

// Document is a parsed Tether declaration.
type Document struct {
	Bindings []domain.BindingConfig
	Root     *EntityDecl
}

// rawDocument keeps binding declarations loosely typed so mapstructure
// can coerce scalar kinds (YAML frontmatter style).
type rawDocument struct {
	Bindings []map[string]any `yaml:"bindings"`
	Root     *EntityDecl      `yaml:"root"`
}

// Parse reads a document from YAML bytes.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	doc := &Document{Root: raw.Root}
	for i, m := range raw.Bindings {
		var cfg domain.BindingConfig
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("binding declaration %d: %w", i, err)
		}
		doc.Bindings = append(doc.Bindings, cfg)
	}
	return doc, nil
}

// Load reads a document from a file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return Parse(data)
}

// Declare registers every binding configuration. Invalid declarations
// are collected and returned joined; they do not prevent the remaining
// bindings from being declared.
func (d *Document) Declare(reg *registry.Registry) error {
	var errs []error
	for _, cfg := range d.Bindings {
		if err := reg.Declare(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildTree constructs the entity tree from the declaration.
func (d *Document) BuildTree() (*domain.Tree, error) {
	tree := domain.NewTree()
	if d.Root == nil {
		return tree, nil
	}
	if err := BuildEntity(tree, nil, *d.Root); err != nil {
		return nil, err
	}
	return tree, nil
}

// BuildEntity constructs one declared entity (and its children) under
// the given parent. Used by BuildTree and by live document reloads that
// append entities to an existing tree.
func BuildEntity(tree *domain.Tree, parent *domain.Entity, decl EntityDecl) error {
	opts := make([]domain.EntityOption, 0, len(decl.Attrs)+len(decl.Styles)+1)
	if refs := strings.Fields(decl.Bindings); len(refs) > 0 {
		opts = append(opts, domain.WithBindings(refs...))
	}
	for k, v := range decl.Attrs {
		opts = append(opts, domain.WithAttr(k, v))
	}
	for k, v := range decl.Styles {
		opts = append(opts, domain.WithStyle(k, v))
	}

	e, err := tree.NewEntity(decl.ID, decl.Tag, parent, opts...)
	if err != nil {
		return err
	}
	for _, c := range decl.Children {
		if err := BuildEntity(tree, e, c); err != nil {
			return err
		}
	}
	return nil
}
