package domain

import (
	"fmt"
	"sync"
)

// MutationOp identifies the kind of entity mutation observed.
type MutationOp string

const (
	MutationAttrSet    MutationOp = "attr-set"
	MutationAttrRemove MutationOp = "attr-remove"
	MutationStyleSet   MutationOp = "style-set"
)

// Mutation describes one attribute or style-property change on an entity.
type Mutation struct {
	EntityID string
	Entity   *Entity
	Op       MutationOp
	Name     string
	Old      string
	HadOld   bool // false when the attribute/property was previously absent
	New      string
}

// MutationObserver receives mutation notifications. Observers are invoked
// synchronously from the mutating goroutine, after the entity's value
// store has been updated and its lock released.
type MutationObserver func(Mutation)

// Tree is the in-memory hierarchical store of entities. Entities are
// created at document construction and destroyed at teardown; the tree
// carries no persisted state.
type Tree struct {
	mu    sync.RWMutex
	root  *Entity
	index map[string]*Entity

	obsMu     sync.RWMutex
	observers map[int]MutationObserver
	nextObs   int
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		index:     make(map[string]*Entity),
		observers: make(map[int]MutationObserver),
	}
}

// NewEntity creates an entity under the given parent. A nil parent makes
// the entity the tree root (allowed once). IDs are unique within a tree.
func (t *Tree) NewEntity(id, tag string, parent *Entity, opts ...EntityOption) (*Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("entity has no id")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.index[id]; exists {
		return nil, fmt.Errorf("duplicate entity id %q", id)
	}
	if parent == nil && t.root != nil {
		return nil, fmt.Errorf("tree already has a root (%q)", t.root.id)
	}
	if parent != nil && parent.tree != t {
		return nil, fmt.Errorf("parent %q belongs to a different tree", parent.id)
	}

	e := &Entity{
		id:     id,
		tag:    tag,
		tree:   t,
		parent: parent,
		attrs:  make(map[string]string),
		styles: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}

	if parent == nil {
		t.root = e
	} else {
		parent.mu.Lock()
		parent.children = append(parent.children, e)
		parent.mu.Unlock()
	}
	t.index[id] = e
	return e, nil
}

// Root returns the tree root, or nil for an empty tree.
func (t *Tree) Root() *Entity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Get looks an entity up by ID.
func (t *Tree) Get(id string) (*Entity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.index[id]
	return e, ok
}

// Len returns the number of entities in the tree.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// Remove detaches the entity and its whole subtree from the tree.
func (t *Tree) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.index[id]
	if !ok {
		return fmt.Errorf("remove %q: %w", id, ErrEntityNotFound)
	}
	if e == t.root {
		t.root = nil
	}
	if p := e.parent; p != nil {
		p.mu.Lock()
		for i, c := range p.children {
			if c == e {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
	}
	t.dropSubtree(e)
	return nil
}

func (t *Tree) dropSubtree(e *Entity) {
	delete(t.index, e.id)
	for _, c := range e.children {
		t.dropSubtree(c)
	}
}

// Walk visits entities depth-first in pre-order (the document order used
// for ordinal assignment). Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(*Entity) bool) {
	root := t.Root()
	if root == nil {
		return
	}
	walk(root, fn)
}

func walk(e *Entity, fn func(*Entity) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.Children() {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// Observe registers a mutation observer and returns its unsubscribe
// function. Observers see attribute-set, attribute-remove, and
// style-property-set operations.
func (t *Tree) Observe(fn MutationObserver) func() {
	t.obsMu.Lock()
	id := t.nextObs
	t.nextObs++
	t.observers[id] = fn
	t.obsMu.Unlock()

	return func() {
		t.obsMu.Lock()
		delete(t.observers, id)
		t.obsMu.Unlock()
	}
}

func (t *Tree) notify(m Mutation) {
	t.obsMu.RLock()
	obs := make([]MutationObserver, 0, len(t.observers))
	for _, fn := range t.observers {
		obs = append(obs, fn)
	}
	t.obsMu.RUnlock()

	for _, fn := range obs {
		fn(m)
	}
}
