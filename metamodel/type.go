package metamodel

import (
	"fmt"
	"reflect"
)

// =====================================
// Type Descriptors
// =====================================

// Type describes a Go type known to the metamodel, managed or basic.
type Type interface {
	PersistenceType() PersistenceType
	GoType() reflect.Type
}

// BasicType describes a value type that is not managed (strings, numbers, times...).
type BasicType interface {
	Type
	basicType()
}

// Bindable is implemented by descriptors a path can be bound to.
type Bindable interface {
	BindableType() BindableType
	BindableGoType() reflect.Type
}

// ManagedType describes an entity, mapped superclass or embeddable.
type ManagedType interface {
	Type

	// Attributes returns inherited attributes first, then declared ones.
	Attributes() []Attribute
	DeclaredAttributes() []Attribute

	// Attribute looks up a declared or inherited attribute by attribute name or Go field name.
	Attribute(name string) (Attribute, error)
	DeclaredAttribute(name string) (Attribute, error)
	SingularAttributes() []SingularAttribute
	PluralAttributes() []PluralAttribute
	SingularAttribute(name string) (SingularAttribute, error)
	PluralAttribute(name string) (PluralAttribute, error)

	// HasAttribute reports whether attr is declared by this type or one of its supertypes.
	HasAttribute(attr Attribute) bool
}

// IdentifiableType is a managed type with identity: an entity or mapped superclass.
type IdentifiableType interface {
	ManagedType
	ID() SingularAttribute
	IDAttributes() []SingularAttribute
	Version() SingularAttribute
	HasSingleIDAttribute() bool
	HasVersionAttribute() bool
	IDType() Type
	Supertype() IdentifiableType
}

// EntityType describes an entity.
type EntityType interface {
	IdentifiableType
	Bindable
	Name() string
}

// MappedSuperclassType describes a mapped superclass.
type MappedSuperclassType interface {
	IdentifiableType
	mappedSuperclass()
}

// EmbeddableType describes an embeddable.
type EmbeddableType interface {
	ManagedType
	embeddable()
}

// =====================================
// Implementations
// =====================================

type basicType struct {
	goType reflect.Type
}

func (t *basicType) PersistenceType() PersistenceType { return PersistenceBasic }
func (t *basicType) GoType() reflect.Type             { return t.goType }
func (t *basicType) basicType()                       {}
func (t *basicType) String() string                   { return t.goType.String() }

type managedType struct {
	self      ManagedType
	kind      PersistenceType
	goType    reflect.Type
	supertype IdentifiableType
	declared  []Attribute
	byName    map[string]Attribute
}

func (t *managedType) PersistenceType() PersistenceType { return t.kind }
func (t *managedType) GoType() reflect.Type             { return t.goType }

func (t *managedType) Attributes() []Attribute {
	var attrs []Attribute
	if t.supertype != nil {
		attrs = append(attrs, t.supertype.Attributes()...)
	}
	return append(attrs, t.declared...)
}

func (t *managedType) DeclaredAttributes() []Attribute {
	return append([]Attribute(nil), t.declared...)
}

func (t *managedType) DeclaredAttribute(name string) (Attribute, error) {
	if attr, ok := t.byName[name]; ok {
		return attr, nil
	}
	return nil, fmt.Errorf("%w: %s has no declared attribute %q", ErrUnknownAttribute, t.goType, name)
}

func (t *managedType) Attribute(name string) (Attribute, error) {
	if attr, ok := t.byName[name]; ok {
		return attr, nil
	}
	if t.supertype != nil {
		if attr, err := t.supertype.Attribute(name); err == nil {
			return attr, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no attribute %q", ErrUnknownAttribute, t.goType, name)
}

func (t *managedType) SingularAttributes() []SingularAttribute {
	var out []SingularAttribute
	for _, attr := range t.Attributes() {
		if s, ok := attr.(SingularAttribute); ok {
			out = append(out, s)
		}
	}
	return out
}

func (t *managedType) PluralAttributes() []PluralAttribute {
	var out []PluralAttribute
	for _, attr := range t.Attributes() {
		if p, ok := attr.(PluralAttribute); ok {
			out = append(out, p)
		}
	}
	return out
}

func (t *managedType) SingularAttribute(name string) (SingularAttribute, error) {
	attr, err := t.Attribute(name)
	if err != nil {
		return nil, err
	}
	s, ok := attr.(SingularAttribute)
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q of %s is not singular", ErrUnknownAttribute, name, t.goType)
	}
	return s, nil
}

func (t *managedType) PluralAttribute(name string) (PluralAttribute, error) {
	attr, err := t.Attribute(name)
	if err != nil {
		return nil, err
	}
	p, ok := attr.(PluralAttribute)
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q of %s is not plural", ErrUnknownAttribute, name, t.goType)
	}
	return p, nil
}

func (t *managedType) HasAttribute(attr Attribute) bool {
	if attr == nil {
		return false
	}
	for _, a := range t.declared {
		if a == attr {
			return true
		}
	}
	if t.supertype != nil {
		return t.supertype.HasAttribute(attr)
	}
	return false
}

func (t *managedType) String() string { return t.goType.String() }

func (t *managedType) declare(attr Attribute) {
	t.declared = append(t.declared, attr)
	t.byName[attr.Name()] = attr
	if field := attr.FieldName(); field != "" && field != attr.Name() {
		if _, taken := t.byName[field]; !taken {
			t.byName[field] = attr
		}
	}
}

type identifiableType struct {
	managedType
	ids     []SingularAttribute
	version SingularAttribute
}

// ID returns the single id attribute, or nil for composite or missing ids.
func (t *identifiableType) ID() SingularAttribute {
	if ids := t.IDAttributes(); len(ids) == 1 {
		return ids[0]
	}
	return nil
}

func (t *identifiableType) IDAttributes() []SingularAttribute {
	if len(t.ids) > 0 {
		return append([]SingularAttribute(nil), t.ids...)
	}
	if t.supertype != nil {
		return t.supertype.IDAttributes()
	}
	return nil
}

func (t *identifiableType) Version() SingularAttribute {
	if t.version != nil {
		return t.version
	}
	if t.supertype != nil {
		return t.supertype.Version()
	}
	return nil
}

func (t *identifiableType) HasSingleIDAttribute() bool { return len(t.IDAttributes()) == 1 }
func (t *identifiableType) HasVersionAttribute() bool  { return t.Version() != nil }

func (t *identifiableType) IDType() Type {
	if id := t.ID(); id != nil {
		return id.Type()
	}
	return nil
}

func (t *identifiableType) Supertype() IdentifiableType { return t.supertype }

type entityType struct {
	identifiableType
	name string
}

func (t *entityType) Name() string                 { return t.name }
func (t *entityType) BindableType() BindableType   { return BindableEntityType }
func (t *entityType) BindableGoType() reflect.Type { return t.goType }

type mappedSuperclassType struct {
	identifiableType
}

func (t *mappedSuperclassType) mappedSuperclass() {}

type embeddableType struct {
	managedType
}

func (t *embeddableType) embeddable() {}

func newEntityType(goType reflect.Type, name string) *entityType {
	t := &entityType{name: name}
	t.kind = PersistenceEntity
	t.goType = goType
	t.byName = make(map[string]Attribute)
	t.self = t
	return t
}

func newMappedSuperclassType(goType reflect.Type) *mappedSuperclassType {
	t := &mappedSuperclassType{}
	t.kind = PersistenceMappedSuperclass
	t.goType = goType
	t.byName = make(map[string]Attribute)
	t.self = t
	return t
}

func newEmbeddableType(goType reflect.Type) *embeddableType {
	t := &embeddableType{}
	t.kind = PersistenceEmbeddable
	t.goType = goType
	t.byName = make(map[string]Attribute)
	t.self = t
	return t
}
