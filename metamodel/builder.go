package metamodel

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// =====================================
// Declarations
// =====================================

// Declaration registers one managed Go type with the metamodel.
type Declaration struct {
	// Type is the Go struct type. Pointer types are dereferenced.
	Type reflect.Type
	Kind PersistenceType

	// Name is the entity name. Defaults to the Go type name. Ignored for non-entities.
	Name string

	// Supertype is an entity or mapped superclass this type inherits attributes from.
	Supertype reflect.Type

	Attributes []AttributeDeclaration
}

// AttributeDeclaration declares one attribute of a managed type.
// Name defaults to the lower-camel form of Field, and Field defaults to the
// exported struct field whose name matches Name.
type AttributeDeclaration struct {
	Name       string
	Field      string
	Kind       PersistentAttributeType
	Collection CollectionType
	ID         bool
	Version    bool
	Required   bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger registrations are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Builder collects declarations and builds an immutable Metamodel.
// Errors from Declare and Reflect are collected and returned by Build.
type Builder struct {
	decls  []Declaration
	index  map[reflect.Type]int
	errs   []error
	logger *zap.Logger
}

// NewBuilder creates an empty metamodel builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		index:  make(map[reflect.Type]int),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Declare adds a declaration. Declaring the same Go type twice is an error.
func (b *Builder) Declare(d Declaration) *Builder {
	if d.Type == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: declaration without a type", ErrInvalidDeclaration))
		return b
	}
	d.Type = indirect(d.Type)
	if d.Type.Kind() != reflect.Struct {
		b.errs = append(b.errs, fmt.Errorf("%w: %s is not a struct type", ErrInvalidDeclaration, d.Type))
		return b
	}
	if !d.Kind.IsManaged() {
		b.errs = append(b.errs, fmt.Errorf("%w: %s declared with kind %q", ErrInvalidDeclaration, d.Type, d.Kind))
		return b
	}
	if _, exists := b.index[d.Type]; exists {
		b.errs = append(b.errs, fmt.Errorf("%w: %s declared twice", ErrInvalidDeclaration, d.Type))
		return b
	}
	if d.Supertype != nil {
		d.Supertype = indirect(d.Supertype)
	}
	b.index[d.Type] = len(b.decls)
	b.decls = append(b.decls, d)
	return b
}

// Entity declares v's type as an entity.
func (b *Builder) Entity(v any, attrs ...AttributeDeclaration) *Builder {
	return b.Declare(Declaration{Type: typeOf(v), Kind: PersistenceEntity, Attributes: attrs})
}

// Embeddable declares v's type as an embeddable.
func (b *Builder) Embeddable(v any, attrs ...AttributeDeclaration) *Builder {
	return b.Declare(Declaration{Type: typeOf(v), Kind: PersistenceEmbeddable, Attributes: attrs})
}

// MappedSuperclass declares v's type as a mapped superclass.
func (b *Builder) MappedSuperclass(v any, attrs ...AttributeDeclaration) *Builder {
	return b.Declare(Declaration{Type: typeOf(v), Kind: PersistenceMappedSuperclass, Attributes: attrs})
}

// Declared reports whether v's type has already been declared.
func (b *Builder) Declared(v any) bool {
	t := typeOf(v)
	if t == nil {
		return false
	}
	_, ok := b.index[t]
	return ok
}

// Build resolves all declarations into a Metamodel.
func (b *Builder) Build() (*Metamodel, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	mm := &Metamodel{
		managed:  make(map[reflect.Type]ManagedType, len(b.decls)),
		entities: make(map[string]EntityType),
		basics:   make(map[reflect.Type]*basicType),
	}

	var errs []error
	shells := make([]ManagedType, len(b.decls))
	for i, d := range b.decls {
		var mt ManagedType
		switch d.Kind {
		case PersistenceEntity:
			name := d.Name
			if name == "" {
				name = d.Type.Name()
			}
			if _, taken := mm.entities[name]; taken {
				errs = append(errs, fmt.Errorf("%w: entity name %q used by more than one type", ErrInvalidDeclaration, name))
				continue
			}
			et := newEntityType(d.Type, name)
			mm.entities[name] = et
			mt = et
		case PersistenceMappedSuperclass:
			mt = newMappedSuperclassType(d.Type)
		case PersistenceEmbeddable:
			mt = newEmbeddableType(d.Type)
		}
		shells[i] = mt
		mm.managed[d.Type] = mt
		mm.ordered = append(mm.ordered, mt)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for i, d := range b.decls {
		if err := b.linkSupertype(mm, shells[i], d); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, mt := range shells {
		if err := checkHierarchy(mt); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for i, d := range b.decls {
		for _, ad := range d.Attributes {
			if err := b.declareAttribute(mm, shells[i], ad); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", d.Type, err))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, mt := range shells {
		if err := checkInheritedNames(mt); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, mt := range topological(shells) {
		inferID(mt)
	}

	for _, mt := range mm.ordered {
		b.logger.Debug("registered managed type",
			zap.String("type", mt.GoType().String()),
			zap.String("kind", string(mt.PersistenceType())),
			zap.Int("attributes", len(mt.DeclaredAttributes())),
		)
	}
	return mm, nil
}

func (b *Builder) linkSupertype(mm *Metamodel, mt ManagedType, d Declaration) error {
	if d.Supertype == nil {
		return nil
	}
	it, ok := identifiable(mt)
	if !ok {
		return fmt.Errorf("%w: embeddable %s cannot declare a supertype", ErrInvalidDeclaration, d.Type)
	}
	st, ok := mm.managed[d.Supertype]
	if !ok {
		return fmt.Errorf("%w: supertype %s of %s is not declared", ErrUnknownType, d.Supertype, d.Type)
	}
	sit, ok := st.(IdentifiableType)
	if !ok {
		return fmt.Errorf("%w: supertype %s of %s is not an entity or mapped superclass", ErrInvalidDeclaration, d.Supertype, d.Type)
	}
	it.supertype = sit
	return nil
}

func checkHierarchy(mt ManagedType) error {
	it, ok := mt.(IdentifiableType)
	if !ok {
		return nil
	}
	seen := map[IdentifiableType]bool{it: true}
	for st := it.Supertype(); st != nil; st = st.Supertype() {
		if seen[st] {
			return fmt.Errorf("%w: inheritance cycle through %s", ErrInvalidDeclaration, mt.GoType())
		}
		seen[st] = true
	}
	return nil
}

func (b *Builder) declareAttribute(mm *Metamodel, mt ManagedType, ad AttributeDeclaration) error {
	goType := mt.GoType()
	field, err := resolveField(goType, ad)
	if err != nil {
		return err
	}
	name := ad.Name
	if name == "" {
		name = AttributeName(field.Name)
	}
	base := managedBase(mt)
	if _, dup := base.byName[name]; dup {
		if existing := base.byName[name]; existing.Name() == name {
			return fmt.Errorf("%w: attribute %q declared twice", ErrInvalidDeclaration, name)
		}
	}

	shape := shapeOf(field.Type)
	kind := ad.Kind
	if kind == AttributeBasic && shape.plural {
		shape = fieldShape{target: indirect(field.Type)}
	}

	attr := attribute{
		name:      name,
		field:     field.Name,
		index:     field.Index,
		goType:    field.Type,
		declaring: mt,
	}

	if !shape.plural {
		if ad.Collection != "" {
			return fmt.Errorf("%w: attribute %q is single-valued but declares collection %s", ErrInvalidDeclaration, name, ad.Collection)
		}
		target := mm.typeFor(shape.target)
		if kind == "" {
			kind = inferSingularKind(target)
		}
		if err := checkSingularKind(name, kind, target); err != nil {
			return err
		}
		attr.kind = kind
		sa := &singularAttribute{
			attribute: attr,
			id:        ad.ID,
			version:   ad.Version,
			optional:  !ad.Required && !ad.ID,
			typ:       target,
		}
		base.declare(sa)
		if it, ok := identifiable(mt); ok {
			if ad.ID {
				it.ids = append(it.ids, sa)
			}
			if ad.Version {
				if it.version != nil {
					return fmt.Errorf("%w: more than one version attribute", ErrInvalidDeclaration)
				}
				it.version = sa
			}
		} else if ad.ID || ad.Version {
			return fmt.Errorf("%w: embeddable attribute %q cannot be an id or version", ErrInvalidDeclaration, name)
		}
		return nil
	}

	if ad.ID || ad.Version {
		return fmt.Errorf("%w: collection attribute %q cannot be an id or version", ErrInvalidDeclaration, name)
	}
	collection := shape.collection
	if ad.Collection != "" {
		if err := checkCollection(name, ad.Collection, shape); err != nil {
			return err
		}
		collection = ad.Collection
	}
	element := mm.typeFor(shape.target)
	if kind == "" {
		kind = inferPluralKind(element)
	}
	if err := checkPluralKind(name, kind, element); err != nil {
		return err
	}
	attr.kind = kind
	var key Type
	if shape.key != nil {
		key = mm.typeFor(shape.key)
	}
	base.declare(newPluralAttribute(attr, collection, element, shape.key, key))
	return nil
}

// =====================================
// Resolution Helpers
// =====================================

type fieldShape struct {
	plural     bool
	collection CollectionType
	target     reflect.Type
	key        reflect.Type
}

var byteType = reflect.TypeOf(byte(0))

func shapeOf(t reflect.Type) fieldShape {
	base := indirect(t)
	switch base.Kind() {
	case reflect.Slice, reflect.Array:
		if base.Elem() == byteType {
			return fieldShape{target: base}
		}
		return fieldShape{plural: true, collection: CollectionList, target: indirect(base.Elem())}
	case reflect.Map:
		if v := base.Elem(); v.Kind() == reflect.Struct && v.NumField() == 0 {
			return fieldShape{plural: true, collection: CollectionSet, target: indirect(base.Key())}
		}
		return fieldShape{plural: true, collection: CollectionMap, target: indirect(base.Elem()), key: indirect(base.Key())}
	}
	return fieldShape{target: base}
}

func checkCollection(name string, c CollectionType, shape fieldShape) error {
	switch c {
	case CollectionMap:
		if shape.collection != CollectionMap {
			return fmt.Errorf("%w: attribute %q declared as MAP but is not a map", ErrInvalidDeclaration, name)
		}
	case CollectionBag, CollectionList, CollectionSet:
		if shape.collection == CollectionMap {
			return fmt.Errorf("%w: map attribute %q declared as %s", ErrInvalidDeclaration, name, c)
		}
		if c == CollectionList && shape.collection == CollectionSet {
			return fmt.Errorf("%w: set attribute %q declared as LIST", ErrInvalidDeclaration, name)
		}
	default:
		return fmt.Errorf("%w: attribute %q has unknown collection type %q", ErrInvalidDeclaration, name, c)
	}
	return nil
}

func inferSingularKind(target Type) PersistentAttributeType {
	switch target.PersistenceType() {
	case PersistenceEntity:
		return AttributeManyToOne
	case PersistenceEmbeddable:
		return AttributeEmbedded
	}
	return AttributeBasic
}

func inferPluralKind(element Type) PersistentAttributeType {
	if element.PersistenceType() == PersistenceEntity {
		return AttributeOneToMany
	}
	return AttributeElementCollection
}

func checkSingularKind(name string, kind PersistentAttributeType, target Type) error {
	pt := target.PersistenceType()
	switch kind {
	case AttributeBasic:
		if pt != PersistenceBasic {
			return fmt.Errorf("%w: basic attribute %q targets managed type %s", ErrInvalidDeclaration, name, target.GoType())
		}
	case AttributeEmbedded:
		if pt != PersistenceEmbeddable {
			return fmt.Errorf("%w: embedded attribute %q targets %s which is not an embeddable", ErrInvalidDeclaration, name, target.GoType())
		}
	case AttributeOneToOne, AttributeManyToOne:
		if pt != PersistenceEntity {
			return fmt.Errorf("%w: %s attribute %q targets %s which is not an entity", ErrInvalidDeclaration, kind, name, target.GoType())
		}
	default:
		return fmt.Errorf("%w: single-valued attribute %q declared as %s", ErrInvalidDeclaration, name, kind)
	}
	return nil
}

func checkPluralKind(name string, kind PersistentAttributeType, element Type) error {
	pt := element.PersistenceType()
	switch kind {
	case AttributeOneToMany, AttributeManyToMany:
		if pt != PersistenceEntity {
			return fmt.Errorf("%w: %s attribute %q holds %s which is not an entity", ErrInvalidDeclaration, kind, name, element.GoType())
		}
	case AttributeElementCollection:
		if pt == PersistenceEntity || pt == PersistenceMappedSuperclass {
			return fmt.Errorf("%w: element collection %q holds managed type %s", ErrInvalidDeclaration, name, element.GoType())
		}
	default:
		return fmt.Errorf("%w: collection attribute %q declared as %s", ErrInvalidDeclaration, name, kind)
	}
	return nil
}

func resolveField(t reflect.Type, ad AttributeDeclaration) (reflect.StructField, error) {
	if ad.Field != "" {
		f, ok := t.FieldByName(ad.Field)
		if !ok || !f.IsExported() {
			return reflect.StructField{}, fmt.Errorf("%w: no exported field %q", ErrInvalidDeclaration, ad.Field)
		}
		return f, nil
	}
	if ad.Name == "" {
		return reflect.StructField{}, fmt.Errorf("%w: attribute declaration needs a name or a field", ErrInvalidDeclaration)
	}
	if f, ok := t.FieldByName(ad.Name); ok && f.IsExported() {
		return f, nil
	}
	var match *reflect.StructField
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if AttributeName(f.Name) == ad.Name || strings.EqualFold(f.Name, ad.Name) {
			if match != nil {
				return reflect.StructField{}, fmt.Errorf("%w: attribute %q matches more than one field", ErrInvalidDeclaration, ad.Name)
			}
			field := f
			match = &field
		}
	}
	if match == nil {
		return reflect.StructField{}, fmt.Errorf("%w: no exported field for attribute %q", ErrInvalidDeclaration, ad.Name)
	}
	return *match, nil
}

func checkInheritedNames(mt ManagedType) error {
	it, ok := mt.(IdentifiableType)
	if !ok || it.Supertype() == nil {
		return nil
	}
	for _, attr := range mt.DeclaredAttributes() {
		if inherited, err := it.Supertype().Attribute(attr.Name()); err == nil && inherited.Name() == attr.Name() {
			return fmt.Errorf("%w: %s redeclares inherited attribute %q", ErrInvalidDeclaration, mt.GoType(), attr.Name())
		}
	}
	return nil
}

// topological orders identifiable types so supertypes come before subtypes.
func topological(types []ManagedType) []ManagedType {
	var out []ManagedType
	done := make(map[ManagedType]bool, len(types))
	var visit func(mt ManagedType)
	visit = func(mt ManagedType) {
		if done[mt] {
			return
		}
		done[mt] = true
		if it, ok := mt.(IdentifiableType); ok && it.Supertype() != nil {
			visit(it.Supertype())
		}
		out = append(out, mt)
	}
	for _, mt := range types {
		visit(mt)
	}
	return out
}

// inferID marks a basic attribute named "id" as the identifier of a type that declares none.
func inferID(mt ManagedType) {
	it, ok := identifiable(mt)
	if !ok || len(it.IDAttributes()) > 0 {
		return
	}
	attr, ok := it.byName["id"]
	if !ok {
		return
	}
	sa, ok := attr.(*singularAttribute)
	if !ok || sa.kind != AttributeBasic || sa.declaring != mt {
		return
	}
	sa.id = true
	sa.optional = false
	it.ids = append(it.ids, sa)
}

func identifiable(mt ManagedType) (*identifiableType, bool) {
	switch t := mt.(type) {
	case *entityType:
		return &t.identifiableType, true
	case *mappedSuperclassType:
		return &t.identifiableType, true
	}
	return nil, false
}

func managedBase(mt ManagedType) *managedType {
	switch t := mt.(type) {
	case *entityType:
		return &t.managedType
	case *mappedSuperclassType:
		return &t.managedType
	case *embeddableType:
		return &t.managedType
	}
	panic(fmt.Sprintf("metamodel: unexpected managed type %T", mt))
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func typeOf(v any) reflect.Type {
	switch x := v.(type) {
	case nil:
		return nil
	case reflect.Type:
		return indirect(x)
	case Type:
		return x.GoType()
	}
	return indirect(reflect.TypeOf(v))
}
