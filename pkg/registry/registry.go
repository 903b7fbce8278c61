// Package registry resolves declarative entity-to-binding associations
// into stable ordinal tables.
package registry

import (
	"errors"
	"sync"

	"github.com/tetherdev/tether/pkg/domain"
)

// Group is the resolved set of entities bound to one configuration.
// Ordinal position is the entity's index, assigned in document order
// (depth-first, pre-order) at resolution time. Ordinals are stable for
// the binding's lifetime: re-resolution never reorders existing entries,
// it only appends. An entity removed from the tree leaves its slot
// vacant so that inbound channel offsets keep their meaning.
type Group struct {
	Config domain.BindingConfig

	mu       sync.RWMutex
	entities []*domain.Entity
	ordinals map[string]int
}

// Len returns the size of the ordinal space (including vacant slots).
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities)
}

// Entities returns a copy of the ordinal-ordered entity list. Vacant
// slots are nil.
func (g *Group) Entities() []*domain.Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*domain.Entity, len(g.entities))
	copy(out, g.entities)
	return out
}

// Ordinal returns the entity's position within the group.
func (g *Group) Ordinal(entityID string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i, ok := g.ordinals[entityID]
	return i, ok
}

// Entity returns the entity at the given ordinal, or nil,false when the
// ordinal is out of range or its slot is vacant.
func (g *Group) Entity(ordinal int) (*domain.Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if ordinal < 0 || ordinal >= len(g.entities) || g.entities[ordinal] == nil {
		return nil, false
	}
	return g.entities[ordinal], true
}

func (g *Group) merge(present []*domain.Entity) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]bool, len(present))
	for _, e := range present {
		seen[e.ID()] = true
		if _, ok := g.ordinals[e.ID()]; ok {
			continue
		}
		g.ordinals[e.ID()] = len(g.entities)
		g.entities = append(g.entities, e)
	}

	// Vacate slots of entities no longer in the tree. Their ordinals are
	// never reassigned.
	for id, i := range g.ordinals {
		if !seen[id] {
			g.entities[i] = nil
			delete(g.ordinals, id)
		}
	}
}

// Registry owns the declared binding configurations and their resolved
// groups. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	configs map[string]domain.BindingConfig
	byLoc   map[string]string // location -> binding ID
	groups  map[string]*Group
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		configs: make(map[string]domain.BindingConfig),
		byLoc:   make(map[string]string),
		groups:  make(map[string]*Group),
	}
}

// Declare registers a binding configuration. It fails when the
// configuration is structurally invalid, redeclares an existing ID, or
// claims a device location already owned by another binding (one
// location maps to exactly one live driver).
func (r *Registry) Declare(cfg domain.BindingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[cfg.ID]; exists {
		return errors.New("binding " + cfg.ID + " already declared")
	}
	if first, claimed := r.byLoc[cfg.Location]; claimed {
		return &domain.DuplicateLocationError{
			Location: cfg.Location,
			First:    first,
			Second:   cfg.ID,
		}
	}

	r.configs[cfg.ID] = cfg
	r.byLoc[cfg.Location] = cfg.ID
	r.order = append(r.order, cfg.ID)
	return nil
}

// Config returns a declared configuration by ID.
func (r *Registry) Config(id string) (domain.BindingConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	return cfg, ok
}

// Configs returns all declared configurations in declaration order.
func (r *Registry) Configs() []domain.BindingConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.BindingConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.configs[id])
	}
	return out
}

// Group returns the resolved group for a binding ID, if Resolve has run.
func (r *Registry) Group(id string) (*Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	return g, ok
}

// Resolve scans the tree for entities with binding references, groups
// them by configuration, and assigns ordinals in document order.
//
// Unknown references are collected and returned joined; they do not
// prevent other bindings from resolving. Re-resolution preserves
// previously assigned ordinals for entities still present and appends
// new entities at the end of their group.
func (r *Registry) Resolve(tree *domain.Tree) ([]*Group, error) {
	byBinding := make(map[string][]*domain.Entity)
	var errs []error

	tree.Walk(func(e *domain.Entity) bool {
		for _, ref := range e.BindingRefs() {
			r.mu.RLock()
			_, known := r.configs[ref]
			r.mu.RUnlock()
			if !known {
				errs = append(errs, &domain.UnknownBindingError{Ref: ref, EntityID: e.ID()})
				continue
			}
			byBinding[ref] = append(byBinding[ref], e)
		}
		return true
	})

	r.mu.Lock()
	var out []*Group
	for _, id := range r.order {
		present := byBinding[id]
		g, ok := r.groups[id]
		if !ok {
			if len(present) == 0 {
				// A binding nobody references gets no group and no driver.
				continue
			}
			g = &Group{
				Config:   r.configs[id],
				ordinals: make(map[string]int),
			}
			r.groups[id] = g
		}
		g.merge(present)
		out = append(out, g)
	}
	r.mu.Unlock()

	return out, errors.Join(errs...)
}
