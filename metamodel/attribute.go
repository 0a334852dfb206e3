package metamodel

import (
	"fmt"
	"reflect"
)

// =====================================
// Attribute Descriptors
// =====================================

// Attribute describes one persistent attribute of a managed type.
type Attribute interface {
	Name() string
	PersistentAttributeType() PersistentAttributeType
	DeclaringType() ManagedType

	// GoType is the declared type of the struct field, pointers included.
	GoType() reflect.Type
	FieldName() string
	FieldIndex() []int

	IsAssociation() bool
	IsCollection() bool
}

// SingularAttribute is a single-valued attribute.
type SingularAttribute interface {
	Attribute
	Bindable
	IsID() bool
	IsVersion() bool
	IsOptional() bool
	Type() Type
}

// PluralAttribute is a collection-valued attribute.
type PluralAttribute interface {
	Attribute
	Bindable
	CollectionType() CollectionType
	ElementType() Type
}

// CollectionAttribute is a plural attribute with bag semantics.
type CollectionAttribute interface {
	PluralAttribute
	collectionAttribute()
}

// SetAttribute is a plural attribute with set semantics.
type SetAttribute interface {
	PluralAttribute
	setAttribute()
}

// ListAttribute is an ordered plural attribute.
type ListAttribute interface {
	PluralAttribute
	listAttribute()
}

// MapAttribute is a keyed plural attribute.
type MapAttribute interface {
	PluralAttribute
	KeyGoType() reflect.Type
	KeyType() Type
}

type attribute struct {
	name      string
	field     string
	index     []int
	kind      PersistentAttributeType
	goType    reflect.Type
	declaring ManagedType
}

func (a *attribute) Name() string                                     { return a.name }
func (a *attribute) PersistentAttributeType() PersistentAttributeType { return a.kind }
func (a *attribute) DeclaringType() ManagedType                       { return a.declaring }
func (a *attribute) GoType() reflect.Type                             { return a.goType }
func (a *attribute) FieldName() string                                { return a.field }
func (a *attribute) FieldIndex() []int                                { return append([]int(nil), a.index...) }
func (a *attribute) IsAssociation() bool                              { return a.kind.IsAssociation() }
func (a *attribute) IsCollection() bool                               { return a.kind.IsPlural() }

func (a *attribute) String() string {
	if a.declaring == nil {
		return a.name
	}
	return fmt.Sprintf("%s.%s", a.declaring.GoType().Name(), a.name)
}

type singularAttribute struct {
	attribute
	id       bool
	version  bool
	optional bool
	typ      Type
}

func (a *singularAttribute) IsID() bool                   { return a.id }
func (a *singularAttribute) IsVersion() bool              { return a.version }
func (a *singularAttribute) IsOptional() bool             { return a.optional }
func (a *singularAttribute) Type() Type                   { return a.typ }
func (a *singularAttribute) BindableType() BindableType   { return BindableSingularAttribute }
func (a *singularAttribute) BindableGoType() reflect.Type { return a.typ.GoType() }

type pluralAttribute struct {
	attribute
	collection CollectionType
	element    Type
}

func (a *pluralAttribute) CollectionType() CollectionType { return a.collection }
func (a *pluralAttribute) ElementType() Type              { return a.element }
func (a *pluralAttribute) BindableType() BindableType     { return BindablePluralAttribute }
func (a *pluralAttribute) BindableGoType() reflect.Type   { return a.element.GoType() }

type collectionAttribute struct{ pluralAttribute }

func (a *collectionAttribute) collectionAttribute() {}

type setAttribute struct{ pluralAttribute }

func (a *setAttribute) setAttribute() {}

type listAttribute struct{ pluralAttribute }

func (a *listAttribute) listAttribute() {}

type mapAttribute struct {
	pluralAttribute
	keyGoType reflect.Type
	key       Type
}

func (a *mapAttribute) KeyGoType() reflect.Type { return a.keyGoType }
func (a *mapAttribute) KeyType() Type           { return a.key }

func newPluralAttribute(base attribute, collection CollectionType, element Type, keyGoType reflect.Type, key Type) PluralAttribute {
	p := pluralAttribute{attribute: base, collection: collection, element: element}
	switch collection {
	case CollectionSet:
		return &setAttribute{p}
	case CollectionList:
		return &listAttribute{p}
	case CollectionMap:
		return &mapAttribute{pluralAttribute: p, keyGoType: keyGoType, key: key}
	default:
		return &collectionAttribute{p}
	}
}
