// Package registry maps short event type aliases to event type families.
//
// The active set is the static catalog (loaded from configuration) merged with
// runtime registrations, runtime winning on alias collision. Families named by
// the catalog must also be declared in the binary before their cases can be
// enumerated, since Go cannot load a type by name.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aarondfrancis/eventable/internal/model"
)

var (
	// ErrNotRegistered is returned when an alias or type has no registration.
	ErrNotRegistered = errors.New("registry: not registered")

	// ErrConflict is returned when one type is reachable through two aliases.
	ErrConflict = errors.New("registry: conflicting registration")
)

// Registry is the alias <-> event type table.
type Registry struct {
	mu       sync.RWMutex
	static   map[string]model.TypeID
	runtime  map[string]model.TypeID
	declared map[model.TypeID]model.Type
}

// New creates a registry seeded with a static catalog (alias -> type id).
func New(static map[string]model.TypeID) *Registry {
	r := &Registry{
		runtime:  make(map[string]model.TypeID),
		declared: make(map[model.TypeID]model.Type),
	}
	r.SetStatic(static)
	return r
}

// SetStatic replaces the static catalog.
func (r *Registry) SetStatic(static map[string]model.TypeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static = maps.Clone(static)
	if r.static == nil {
		r.static = make(map[string]model.TypeID)
	}
}

// Declare makes a family's cases known without giving it an alias. Catalog
// entries resolve to declared families.
func (r *Registry) Declare(types ...model.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		r.declared[t.ID] = t
	}
}

// Register upserts alias -> t as a runtime registration. Last write wins.
func (r *Registry) Register(alias string, t model.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtime[alias] = t.ID
	r.declared[t.ID] = t
}

// TryRegister is Register that leaves the registry unchanged when the new
// entry would make a family reachable through two aliases.
func (r *Registry) TryRegister(alias string, t model.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	candidate := r.merged()
	candidate[alias] = t.ID
	if err := validate(candidate); err != nil {
		return err
	}
	r.runtime[alias] = t.ID
	r.declared[t.ID] = t
	return nil
}

// Clear drops runtime registrations. The static catalog and declared
// families are kept.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtime = make(map[string]model.TypeID)
}

// All returns the active alias -> type id mapping.
func (r *Registry) All() map[string]model.TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.merged()
}

func (r *Registry) merged() map[string]model.TypeID {
	out := make(map[string]model.TypeID, len(r.static)+len(r.runtime))
	maps.Copy(out, r.static)
	maps.Copy(out, r.runtime)
	return out
}

// Aliases returns the active aliases in sorted order.
func (r *Registry) Aliases() []string {
	return slices.Sorted(maps.Keys(r.All()))
}

// ResolveAlias returns the alias registered for the family of c.
func (r *Registry) ResolveAlias(c model.Case) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: nil event case", ErrNotRegistered)
	}
	return r.AliasOf(model.TypeIDOf(c))
}

// AliasOf returns the alias registered for id.
func (r *Registry) AliasOf(id model.TypeID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []string
	for alias, candidate := range r.merged() {
		if candidate == id {
			found = append(found, alias)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: event type [%s] has no alias in the event_types catalog", ErrNotRegistered, id)
	case 1:
		return found[0], nil
	default:
		slices.Sort(found)
		return "", fmt.Errorf("%w: event type [%s] is registered under aliases %v", ErrConflict, id, found)
	}
}

// ResolveType returns the type id registered under alias.
func (r *Registry) ResolveType(alias string) (model.TypeID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.runtime[alias]; ok {
		return id, nil
	}
	if id, ok := r.static[alias]; ok {
		return id, nil
	}
	return "", fmt.Errorf("%w: event type alias [%s]", ErrNotRegistered, alias)
}

// Lookup returns the declared family for id.
func (r *Registry) Lookup(id model.TypeID) (model.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.declared[id]
	return t, ok
}

// IsRegistered reports whether the family of c has an alias.
func (r *Registry) IsRegistered(c model.Case) bool {
	if c == nil {
		return false
	}
	id := model.TypeIDOf(c)
	for _, candidate := range r.All() {
		if candidate == id {
			return true
		}
	}
	return false
}

// HasAlias reports whether alias is active.
func (r *Registry) HasAlias(alias string) bool {
	_, err := r.ResolveType(alias)
	return err == nil
}

// Validate checks that no family is reachable through two aliases.
func (r *Registry) Validate() error {
	return validate(r.All())
}

func validate(all map[string]model.TypeID) error {
	seen := make(map[model.TypeID]string)
	var errs []error
	for _, alias := range slices.Sorted(maps.Keys(all)) {
		id := all[alias]
		if prev, ok := seen[id]; ok {
			errs = append(errs, fmt.Errorf("%w: event type [%s] has aliases %q and %q", ErrConflict, id, prev, alias))
			continue
		}
		seen[id] = alias
	}
	return errors.Join(errs...)
}
