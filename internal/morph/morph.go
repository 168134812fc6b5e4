// Package morph resolves owner records to their polymorphic discriminator.
//
// Owners that implement model.KindedOwner name their own kind. Other owners
// are looked up by Go type; unmapped types fall back to their fully-qualified
// type name unless the map is strict.
package morph

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/aarondfrancis/eventable/internal/model"
)

// ErrUnmapped is returned by a strict map for an owner type without a kind.
var ErrUnmapped = errors.New("morph: owner type not mapped")

// Map is an open kind <-> Go type table.
type Map struct {
	mu     sync.RWMutex
	kinds  map[reflect.Type]string
	types  map[string]reflect.Type
	strict bool
}

// New creates an empty, non-strict map.
func New() *Map {
	return &Map{
		kinds: make(map[reflect.Type]string),
		types: make(map[string]reflect.Type),
	}
}

// Strict makes Ref fail for owner types that were never mapped.
func (m *Map) Strict(strict bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strict = strict
}

// Register maps kind to the Go type of sample. Re-registering a kind moves it.
func (m *Map) Register(kind string, sample any) {
	t := indirect(reflect.TypeOf(sample))
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.types[kind]; ok {
		delete(m.kinds, old)
	}
	m.kinds[t] = kind
	m.types[kind] = t
}

// KindOf returns the kind registered for v's Go type.
func (m *Map) KindOf(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	kind, ok := m.kinds[indirect(reflect.TypeOf(v))]
	return kind, ok
}

// TypeFor returns the Go type mapped to kind.
func (m *Map) TypeFor(kind string) (reflect.Type, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[kind]
	return t, ok
}

// Kinds returns the registered kind -> type name pairs.
func (m *Map) Kinds() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.types))
	for kind, t := range m.types {
		out[kind] = typeName(t)
	}
	return out
}

// Ref builds the owner reference for o.
func (m *Map) Ref(o model.Owner) (model.OwnerRef, error) {
	if o == nil {
		return model.OwnerRef{}, fmt.Errorf("morph: nil owner")
	}
	if k, ok := o.(model.KindedOwner); ok {
		return model.OwnerRef{ID: k.EventOwnerID(), Type: k.EventOwnerType()}, nil
	}
	if kind, ok := m.KindOf(o); ok {
		return model.OwnerRef{ID: o.EventOwnerID(), Type: kind}, nil
	}
	t := indirect(reflect.TypeOf(o))
	m.mu.RLock()
	strict := m.strict
	m.mu.RUnlock()
	if strict {
		return model.OwnerRef{}, fmt.Errorf("%w: %s", ErrUnmapped, typeName(t))
	}
	return model.OwnerRef{ID: o.EventOwnerID(), Type: typeName(t)}, nil
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func typeName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
