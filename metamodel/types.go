package metamodel

// =====================================
// Classification Enums
// =====================================

// PersistenceType classifies a Type descriptor.
type PersistenceType string

const (
	PersistenceEntity           PersistenceType = "ENTITY"
	PersistenceEmbeddable       PersistenceType = "EMBEDDABLE"
	PersistenceMappedSuperclass PersistenceType = "MAPPED_SUPERCLASS"
	PersistenceBasic            PersistenceType = "BASIC"
)

// IsManaged reports whether the persistence type describes a managed type.
func (p PersistenceType) IsManaged() bool {
	return p == PersistenceEntity || p == PersistenceEmbeddable || p == PersistenceMappedSuperclass
}

// PersistentAttributeType classifies how an attribute is persisted.
type PersistentAttributeType string

const (
	AttributeBasic             PersistentAttributeType = "BASIC"
	AttributeEmbedded          PersistentAttributeType = "EMBEDDED"
	AttributeOneToOne          PersistentAttributeType = "ONE_TO_ONE"
	AttributeManyToOne         PersistentAttributeType = "MANY_TO_ONE"
	AttributeOneToMany         PersistentAttributeType = "ONE_TO_MANY"
	AttributeManyToMany        PersistentAttributeType = "MANY_TO_MANY"
	AttributeElementCollection PersistentAttributeType = "ELEMENT_COLLECTION"
)

// IsAssociation reports whether the attribute type is one of the four association kinds.
func (p PersistentAttributeType) IsAssociation() bool {
	switch p {
	case AttributeOneToOne, AttributeManyToOne, AttributeOneToMany, AttributeManyToMany:
		return true
	}
	return false
}

// IsPlural reports whether attributes of this kind are collection-valued.
func (p PersistentAttributeType) IsPlural() bool {
	return p == AttributeOneToMany || p == AttributeManyToMany || p == AttributeElementCollection
}

// CollectionType is the Go-side collection shape of a plural attribute.
type CollectionType string

const (
	CollectionBag  CollectionType = "COLLECTION"
	CollectionSet  CollectionType = "SET"
	CollectionList CollectionType = "LIST"
	CollectionMap  CollectionType = "MAP"
)

// BindableType classifies a Bindable.
type BindableType string

const (
	BindableSingularAttribute BindableType = "SINGULAR_ATTRIBUTE"
	BindablePluralAttribute   BindableType = "PLURAL_ATTRIBUTE"
	BindableEntityType        BindableType = "ENTITY_TYPE"
)
