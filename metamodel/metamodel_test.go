package metamodel

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Test models
type Auditable struct {
	CreatedAt time.Time
	Version   int64 `persist:"version"`
}

type Address struct {
	Street string
	City   string
	Zip    string
}

type Person struct {
	ID        int64
	Name      string `persist:"required"`
	Email     *string
	Address   Address `persist:"embedded"`
	Tags      []string
	Orders    []*Order
	Manager   *Person
	Nicknames map[string]struct{}
	Phones    map[string]string
	Avatar    []byte
	Secret    string `persist:"-"`
	cache     string
}

type Order struct {
	Auditable `persist:"extends"`
	ID        int64
	Total     float64
	Owner     *Person
	Lines     []OrderLine `persist:"element"`
}

type OrderLine struct {
	Product string
	Qty     int
}

func buildTestModel(t *testing.T, opts ...Option) *Metamodel {
	t.Helper()
	mm, err := NewBuilder(opts...).
		Reflect(Auditable{}, AsMappedSuperclass()).
		Reflect(Address{}, AsEmbeddable()).
		Reflect(OrderLine{}, AsEmbeddable()).
		Reflect(Person{}).
		Reflect(&Order{}, EntityName("PurchaseOrder")).
		Build()
	require.NoError(t, err)
	return mm
}

func TestEntityLookup(t *testing.T) {
	mm := buildTestModel(t)

	for _, v := range []any{Person{}, &Person{}, reflect.TypeOf(Person{}), reflect.TypeOf(&Person{})} {
		et, err := mm.Entity(v)
		require.NoError(t, err)
		assert.Equal(t, "Person", et.Name())
		assert.Equal(t, PersistenceEntity, et.PersistenceType())
		assert.Equal(t, BindableEntityType, et.BindableType())
	}

	order, err := mm.EntityByName("PurchaseOrder")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(Order{}), order.GoType())

	assert.Len(t, mm.Entities(), 2)
	assert.Len(t, mm.Embeddables(), 2)
	assert.Len(t, mm.ManagedTypes(), 5)
}

func TestUnknownType(t *testing.T) {
	mm := buildTestModel(t)

	_, err := mm.Entity(struct{ X int }{})
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = mm.Entity(Address{})
	assert.True(t, errors.Is(err, ErrUnknownType), "embeddable is not an entity")

	emb, err := mm.Embeddable(Address{})
	require.NoError(t, err)
	assert.Equal(t, PersistenceEmbeddable, emb.PersistenceType())

	_, err = mm.EntityByName("Nope")
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = mm.ManagedType(nil)
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestAttributeKinds(t *testing.T) {
	mm := buildTestModel(t)
	person, err := mm.Entity(Person{})
	require.NoError(t, err)

	tests := []struct {
		name string
		kind PersistentAttributeType
	}{
		{"id", AttributeBasic},
		{"name", AttributeBasic},
		{"email", AttributeBasic},
		{"address", AttributeEmbedded},
		{"tags", AttributeElementCollection},
		{"orders", AttributeOneToMany},
		{"manager", AttributeManyToOne},
		{"nicknames", AttributeElementCollection},
		{"phones", AttributeElementCollection},
		{"avatar", AttributeBasic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr, err := person.Attribute(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, attr.PersistentAttributeType())
			assert.Equal(t, person, attr.DeclaringType())
		})
	}

	assert.Len(t, person.Attributes(), len(tests))
	_, err = person.Attribute("secret")
	assert.True(t, errors.Is(err, ErrUnknownAttribute))
	_, err = person.Attribute("cache")
	assert.True(t, errors.Is(err, ErrUnknownAttribute))
}

func TestSingularAttributes(t *testing.T) {
	mm := buildTestModel(t)
	person, err := mm.Entity(Person{})
	require.NoError(t, err)

	id := person.ID()
	require.NotNil(t, id)
	assert.Equal(t, "id", id.Name())
	assert.True(t, id.IsID())
	assert.False(t, id.IsOptional())
	assert.True(t, person.HasSingleIDAttribute())
	assert.Equal(t, reflect.TypeOf(int64(0)), person.IDType().GoType())

	name, err := person.SingularAttribute("name")
	require.NoError(t, err)
	assert.False(t, name.IsOptional())

	email, err := person.SingularAttribute("Email")
	require.NoError(t, err, "lookup by Go field name")
	assert.Equal(t, "email", email.Name())
	assert.True(t, email.IsOptional())
	assert.Equal(t, reflect.TypeOf(""), email.Type().GoType())
	assert.Equal(t, reflect.TypeOf((*string)(nil)), email.GoType())

	manager, err := person.SingularAttribute("manager")
	require.NoError(t, err)
	assert.Equal(t, person, manager.Type())
	assert.True(t, manager.IsAssociation())
	assert.Equal(t, reflect.TypeOf(Person{}), manager.BindableGoType())

	address, err := person.SingularAttribute("address")
	require.NoError(t, err)
	assert.Equal(t, PersistenceEmbeddable, address.Type().PersistenceType())

	_, err = person.SingularAttribute("orders")
	assert.True(t, errors.Is(err, ErrUnknownAttribute))
}

func TestPluralAttributes(t *testing.T) {
	mm := buildTestModel(t)
	person, err := mm.Entity(Person{})
	require.NoError(t, err)

	orders, err := person.PluralAttribute("orders")
	require.NoError(t, err)
	assert.Equal(t, CollectionList, orders.CollectionType())
	assert.Implements(t, (*ListAttribute)(nil), orders)
	assert.Equal(t, PersistenceEntity, orders.ElementType().PersistenceType())
	assert.Equal(t, BindablePluralAttribute, orders.BindableType())
	assert.True(t, orders.IsCollection())

	nicknames, err := person.PluralAttribute("nicknames")
	require.NoError(t, err)
	assert.Implements(t, (*SetAttribute)(nil), nicknames)
	assert.Equal(t, reflect.TypeOf(""), nicknames.ElementType().GoType())

	phones, err := person.PluralAttribute("phones")
	require.NoError(t, err)
	m, ok := phones.(MapAttribute)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(""), m.KeyGoType())
	assert.Equal(t, PersistenceBasic, m.KeyType().PersistenceType())

	_, isList := phones.(ListAttribute)
	assert.False(t, isList)

	assert.Len(t, person.PluralAttributes(), 4)
	assert.Len(t, person.SingularAttributes(), 6)
}

func TestInheritance(t *testing.T) {
	mm := buildTestModel(t)
	order, err := mm.Entity(Order{})
	require.NoError(t, err)

	super := order.Supertype()
	require.NotNil(t, super)
	assert.Equal(t, PersistenceMappedSuperclass, super.PersistenceType())

	var names []string
	for _, attr := range order.Attributes() {
		names = append(names, attr.Name())
	}
	assert.Equal(t, []string{"createdAt", "version", "id", "total", "owner", "lines"}, names)
	assert.Len(t, order.DeclaredAttributes(), 4)

	createdAt, err := order.Attribute("CreatedAt")
	require.NoError(t, err)
	assert.Equal(t, super, createdAt.DeclaringType())
	assert.True(t, order.HasAttribute(createdAt))

	_, err = order.DeclaredAttribute("createdAt")
	assert.True(t, errors.Is(err, ErrUnknownAttribute))

	require.True(t, order.HasVersionAttribute())
	assert.Equal(t, "version", order.Version().Name())
	assert.Equal(t, "id", order.ID().Name())

	person, err := mm.Entity(Person{})
	require.NoError(t, err)
	assert.False(t, person.HasAttribute(createdAt))

	lines, err := order.PluralAttribute("lines")
	require.NoError(t, err)
	assert.Equal(t, AttributeElementCollection, lines.PersistentAttributeType())
	assert.Equal(t, PersistenceEmbeddable, lines.ElementType().PersistenceType())
}

func TestBasicTypeDescriptor(t *testing.T) {
	mm := buildTestModel(t)

	bt := mm.Type(reflect.TypeOf(time.Time{}))
	assert.Equal(t, PersistenceBasic, bt.PersistenceType())
	assert.False(t, mm.IsManaged(reflect.TypeOf(time.Time{})))

	assert.Equal(t, PersistenceEntity, mm.Type(reflect.TypeOf(&Person{})).PersistenceType())
	assert.True(t, mm.IsManaged(reflect.TypeOf(&Person{})))
}

func TestExplicitDeclarations(t *testing.T) {
	type Tag struct {
		Label string
	}
	type Post struct {
		Key   string
		Title string
		Tags  []Tag
	}

	mm, err := NewBuilder().
		Declare(Declaration{Type: reflect.TypeOf(Tag{}), Kind: PersistenceEntity,
			Attributes: []AttributeDeclaration{{Name: "label", ID: true}}}).
		Entity(Post{},
			AttributeDeclaration{Field: "Key", ID: true},
			AttributeDeclaration{Name: "headline", Field: "Title"},
			AttributeDeclaration{Name: "tags", Kind: AttributeManyToMany, Collection: CollectionSet},
		).
		Build()
	require.NoError(t, err)

	post, err := mm.Entity(Post{})
	require.NoError(t, err)
	assert.Equal(t, "key", post.ID().Name())

	headline, err := post.Attribute("headline")
	require.NoError(t, err)
	assert.Equal(t, "Title", headline.FieldName())

	tags, err := post.PluralAttribute("tags")
	require.NoError(t, err)
	assert.Equal(t, AttributeManyToMany, tags.PersistentAttributeType())
	assert.Implements(t, (*SetAttribute)(nil), tags)
}

func TestBuildErrors(t *testing.T) {
	type Plain struct {
		Name string
	}
	type Holder struct {
		ID    int64
		Plain Plain `persist:"embedded"`
	}
	type A struct{ ID int64 }
	type B struct{ ID int64 }

	tests := []struct {
		name  string
		build func() (*Metamodel, error)
	}{
		{"declared twice", func() (*Metamodel, error) {
			return NewBuilder().Entity(Plain{}).Entity(&Plain{}).Build()
		}},
		{"not a struct", func() (*Metamodel, error) {
			return NewBuilder().Entity(42).Build()
		}},
		{"embedded target not embeddable", func() (*Metamodel, error) {
			return NewBuilder().Reflect(Holder{}).Build()
		}},
		{"unknown field", func() (*Metamodel, error) {
			return NewBuilder().Entity(Plain{}, AttributeDeclaration{Name: "missing"}).Build()
		}},
		{"inheritance cycle", func() (*Metamodel, error) {
			return NewBuilder().
				Declare(Declaration{Type: reflect.TypeOf(A{}), Kind: PersistenceEntity, Supertype: reflect.TypeOf(B{})}).
				Declare(Declaration{Type: reflect.TypeOf(B{}), Kind: PersistenceMappedSuperclass, Supertype: reflect.TypeOf(A{})}).
				Build()
		}},
		{"undeclared supertype", func() (*Metamodel, error) {
			return NewBuilder().
				Declare(Declaration{Type: reflect.TypeOf(A{}), Kind: PersistenceEntity, Supertype: reflect.TypeOf(B{})}).
				Build()
		}},
		{"unknown tag option", func() (*Metamodel, error) {
			type Bad struct {
				X int `persist:"sideways"`
			}
			return NewBuilder().Reflect(Bad{}).Build()
		}},
		{"collection on singular", func() (*Metamodel, error) {
			return NewBuilder().Entity(Plain{}, AttributeDeclaration{Name: "name", Collection: CollectionSet}).Build()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mm, err := tt.build()
			assert.Nil(t, mm)
			assert.Error(t, err)
		})
	}
}

func TestBuildLogsRegistrations(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	buildTestModel(t, WithLogger(zap.New(core)))

	entries := logs.FilterMessage("registered managed type").All()
	require.Len(t, entries, 5)
	assert.Equal(t, "ENTITY", entries[3].ContextMap()["kind"])
}

func TestAttributeName(t *testing.T) {
	tests := map[string]string{
		"ID":        "id",
		"Name":      "name",
		"CreatedAt": "createdAt",
		"URLPath":   "urlPath",
		"UserID":    "userID",
		"already":   "already",
	}
	for in, want := range tests {
		assert.Equal(t, want, AttributeName(in), in)
	}
}
