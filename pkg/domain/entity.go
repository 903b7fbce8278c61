package domain

import "sync"

// Entity is one node in the physical-world tree: a perceptible object or
// space (a door, a tile, a display, an item). An entity owns its children
// exclusively and carries three independent value spaces: attributes,
// style properties, and binding references.
//
// Attributes follow presence-only boolean semantics: the existence of an
// attribute carries meaning regardless of its textual value. Presence is
// a set-membership flag, never a string comparison against "true".
//
// Attribute and style access is safe for concurrent use. A mutation and a
// concurrent inbound decode of the same entity are mutually exclusive;
// reads proceed concurrently with unrelated entities' mutations.
type Entity struct {
	id   string
	tag  string
	tree *Tree

	mu       sync.RWMutex
	parent   *Entity
	children []*Entity
	attrs    map[string]string
	styles   map[string]string
	bindings []string
}

// EntityOption configures an entity at creation time.
type EntityOption func(*Entity)

// WithBindings associates the entity with the named binding configurations.
func WithBindings(refs ...string) EntityOption {
	return func(e *Entity) {
		e.bindings = append(e.bindings, refs...)
	}
}

// WithAttr sets an initial attribute. Initial values do not notify
// observers; the entity is not yet visible to anyone else.
func WithAttr(name, value string) EntityOption {
	return func(e *Entity) {
		e.attrs[name] = value
	}
}

// WithStyle sets an initial style property.
func WithStyle(name, value string) EntityOption {
	return func(e *Entity) {
		e.styles[name] = value
	}
}

// ID returns the entity's tree-unique identifier.
func (e *Entity) ID() string { return e.id }

// Tag returns the entity's semantic kind (e.g. "item", "tile", "door").
func (e *Entity) Tag() string { return e.tag }

// Parent returns the owning entity, or nil for the root.
func (e *Entity) Parent() *Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.parent
}

// Children returns a copy of the ordered child list.
func (e *Entity) Children() []*Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Entity, len(e.children))
	copy(out, e.children)
	return out
}

// BindingRefs returns the binding identifiers declared on this entity.
func (e *Entity) BindingRefs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.bindings))
	copy(out, e.bindings)
	return out
}

// Attr returns the attribute value and whether the attribute is present.
// An empty string with ok=true is a legal presence-only value.
func (e *Entity) Attr(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.attrs[name]
	return v, ok
}

// HasAttr reports attribute presence (the boolean reading of an attribute).
func (e *Entity) HasAttr(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.attrs[name]
	return ok
}

// SetAttr sets an attribute and notifies tree observers.
func (e *Entity) SetAttr(name, value string) {
	e.mu.Lock()
	old, had := e.attrs[name]
	e.attrs[name] = value
	e.mu.Unlock()

	e.tree.notify(Mutation{
		EntityID: e.id,
		Entity:   e,
		Op:       MutationAttrSet,
		Name:     name,
		Old:      old,
		HadOld:   had,
		New:      value,
	})
}

// RemoveAttr removes an attribute (presence → absence) and notifies
// observers. Removing an absent attribute is a no-op.
func (e *Entity) RemoveAttr(name string) {
	e.mu.Lock()
	old, had := e.attrs[name]
	if !had {
		e.mu.Unlock()
		return
	}
	delete(e.attrs, name)
	e.mu.Unlock()

	e.tree.notify(Mutation{
		EntityID: e.id,
		Entity:   e,
		Op:       MutationAttrRemove,
		Name:     name,
		Old:      old,
		HadOld:   true,
	})
}

// Style returns the style property value and whether it is set.
func (e *Entity) Style(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.styles[name]
	return v, ok
}

// SetStyle sets a style property and notifies tree observers.
func (e *Entity) SetStyle(name, value string) {
	e.mu.Lock()
	old, had := e.styles[name]
	e.styles[name] = value
	e.mu.Unlock()

	e.tree.notify(Mutation{
		EntityID: e.id,
		Entity:   e,
		Op:       MutationStyleSet,
		Name:     name,
		Old:      old,
		HadOld:   had,
		New:      value,
	})
}

// Attrs returns a copy of the attribute map.
func (e *Entity) Attrs() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}
	return out
}

// Styles returns a copy of the style property map.
func (e *Entity) Styles() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.styles))
	for k, v := range e.styles {
		out[k] = v
	}
	return out
}
