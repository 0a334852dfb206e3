// Package metamodel describes how Go types map onto persistent managed types.
//
// A Metamodel is built once through a Builder, either from explicit
// declarations, from `persist` struct tags (Builder.Reflect), or from ORM
// schemas through the gpagorm, gpabun and gpamongo packages. Once built it is
// immutable and safe for concurrent use.
package metamodel

import (
	"fmt"
	"reflect"
)

// Metamodel is the registry of managed types keyed by Go type.
type Metamodel struct {
	managed  map[reflect.Type]ManagedType
	entities map[string]EntityType
	basics   map[reflect.Type]*basicType
	ordered  []ManagedType
}

// ManagedType resolves v to its managed type descriptor.
// v may be a value, a pointer, a reflect.Type or a Type descriptor.
func (m *Metamodel) ManagedType(v any) (ManagedType, error) {
	t := typeOf(v)
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnknownType)
	}
	mt, ok := m.managed[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return mt, nil
}

// Entity resolves v to its entity descriptor.
func (m *Metamodel) Entity(v any) (EntityType, error) {
	mt, err := m.ManagedType(v)
	if err != nil {
		return nil, err
	}
	et, ok := mt.(EntityType)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an entity", ErrUnknownType, mt.GoType())
	}
	return et, nil
}

// Embeddable resolves v to its embeddable descriptor.
func (m *Metamodel) Embeddable(v any) (EmbeddableType, error) {
	mt, err := m.ManagedType(v)
	if err != nil {
		return nil, err
	}
	et, ok := mt.(EmbeddableType)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an embeddable", ErrUnknownType, mt.GoType())
	}
	return et, nil
}

// EntityByName resolves an entity by its entity name.
func (m *Metamodel) EntityByName(name string) (EntityType, error) {
	et, ok := m.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: no entity named %q", ErrUnknownType, name)
	}
	return et, nil
}

// ManagedTypes returns all managed types in declaration order.
func (m *Metamodel) ManagedTypes() []ManagedType {
	return append([]ManagedType(nil), m.ordered...)
}

// Entities returns all entity types in declaration order.
func (m *Metamodel) Entities() []EntityType {
	var out []EntityType
	for _, mt := range m.ordered {
		if et, ok := mt.(EntityType); ok {
			out = append(out, et)
		}
	}
	return out
}

// Embeddables returns all embeddable types in declaration order.
func (m *Metamodel) Embeddables() []EmbeddableType {
	var out []EmbeddableType
	for _, mt := range m.ordered {
		if et, ok := mt.(EmbeddableType); ok {
			out = append(out, et)
		}
	}
	return out
}

// Type returns the managed descriptor for t, or a basic descriptor when t is not managed.
func (m *Metamodel) Type(t reflect.Type) Type {
	t = indirect(t)
	if mt, ok := m.managed[t]; ok {
		return mt
	}
	if bt, ok := m.basics[t]; ok {
		return bt
	}
	return &basicType{goType: t}
}

// IsManaged reports whether t is registered as a managed type.
func (m *Metamodel) IsManaged(t reflect.Type) bool {
	_, ok := m.managed[indirect(t)]
	return ok
}

// typeFor is Type with caching; only called while building.
func (m *Metamodel) typeFor(t reflect.Type) Type {
	t = indirect(t)
	if mt, ok := m.managed[t]; ok {
		return mt
	}
	bt, ok := m.basics[t]
	if !ok {
		bt = &basicType{goType: t}
		m.basics[t] = bt
	}
	return bt
}
