// Package gpagorm seeds a metamodel from GORM model definitions.
//
// Models are parsed with gorm's own schema parser, so `gorm` struct tags,
// naming strategies, embedded structs and relationship guessing behave exactly
// as they do at runtime:
//
//	b := metamodel.NewBuilder()
//	if err := gpagorm.Register(b, &User{}, &Order{}); err != nil {
//		return err
//	}
//	mm, err := b.Build()
package gpagorm

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/lemmego/criteria/metamodel"
	"go.uber.org/zap"
	"gorm.io/gorm/schema"
)

// =====================================
// Seeder
// =====================================

// Seeder declares gorm models on a metamodel builder.
type Seeder struct {
	cache  *sync.Map
	namer  schema.Namer
	logger *zap.Logger
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithNamingStrategy sets the namer used when parsing models.
func WithNamingStrategy(namer schema.Namer) Option {
	return func(s *Seeder) {
		if namer != nil {
			s.namer = namer
		}
	}
}

// WithLogger sets the logger seeded entities are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Seeder) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSeeder creates a seeder with gorm's default naming strategy.
func NewSeeder(opts ...Option) *Seeder {
	s := &Seeder{
		cache:  &sync.Map{},
		namer:  schema.NamingStrategy{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register declares each model as an entity using a fresh Seeder.
func Register(b *metamodel.Builder, models ...any) error {
	return NewSeeder().Register(b, models...)
}

// Register parses each model and declares it, its embedded structs and every
// entity reachable through its relationships. Types already declared on b are
// left untouched.
func (s *Seeder) Register(b *metamodel.Builder, models ...any) error {
	r := &registrar{seeder: s, b: b, seen: make(map[reflect.Type]bool)}
	for _, model := range models {
		sch, err := schema.Parse(model, s.cache, s.namer)
		if err != nil {
			return fmt.Errorf("%w: gorm could not parse %T: %v", metamodel.ErrInvalidDeclaration, model, err)
		}
		if err := r.declare(sch); err != nil {
			return err
		}
	}
	return nil
}

var relationKinds = map[schema.RelationshipType]metamodel.PersistentAttributeType{
	schema.HasOne:    metamodel.AttributeOneToOne,
	schema.BelongsTo: metamodel.AttributeManyToOne,
	schema.HasMany:   metamodel.AttributeOneToMany,
	schema.Many2Many: metamodel.AttributeManyToMany,
}

type registrar struct {
	seeder *Seeder
	b      *metamodel.Builder
	seen   map[reflect.Type]bool
}

func (r *registrar) declare(sch *schema.Schema) error {
	if r.seen[sch.ModelType] || r.b.Declared(sch.ModelType) {
		return nil
	}
	r.seen[sch.ModelType] = true

	attrs, err := r.attributes(sch, sch.ModelType, sch.Fields, 0)
	if err != nil {
		return err
	}
	r.b.Declare(metamodel.Declaration{
		Type:       sch.ModelType,
		Kind:       metamodel.PersistenceEntity,
		Name:       sch.Name,
		Attributes: attrs,
	})
	r.seeder.logger.Debug("seeded gorm entity",
		zap.String("entity", sch.Name),
		zap.String("table", sch.Table),
		zap.Int("attributes", len(attrs)),
	)
	return nil
}

// attributes maps the fields bound at depth into attribute declarations of t.
// Fields bound deeper belong to an embedded struct: anonymous ones are
// flattened into t, named ones become an embeddable.
func (r *registrar) attributes(sch *schema.Schema, t reflect.Type, fields []*schema.Field, depth int) ([]metamodel.AttributeDeclaration, error) {
	type item struct {
		attr  *metamodel.AttributeDeclaration
		group string
	}
	var items []item
	groups := make(map[string][]*schema.Field)

	for _, f := range fields {
		if len(f.BindNames) > depth+1 {
			outer := f.BindNames[depth]
			if _, ok := groups[outer]; !ok {
				items = append(items, item{group: outer})
			}
			groups[outer] = append(groups[outer], f)
			continue
		}
		attr, ok, err := r.attribute(sch, f, depth)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, item{attr: &attr})
		}
	}

	var attrs []metamodel.AttributeDeclaration
	for _, it := range items {
		if it.attr != nil {
			attrs = append(attrs, *it.attr)
			continue
		}
		sf, ok := t.FieldByName(it.group)
		if !ok {
			continue
		}
		inner := sf.Type
		for inner.Kind() == reflect.Pointer {
			inner = inner.Elem()
		}
		nested, err := r.attributes(sch, inner, groups[it.group], depth+1)
		if err != nil {
			return nil, err
		}
		if sf.Anonymous {
			attrs = append(attrs, nested...)
			continue
		}
		if !r.b.Declared(inner) {
			for i := range nested {
				nested[i].ID = false
			}
			r.b.Embeddable(inner, nested...)
		}
		attrs = append(attrs, metamodel.AttributeDeclaration{
			Field: sf.Name,
			Name:  metamodel.AttributeName(sf.Name),
			Kind:  metamodel.AttributeEmbedded,
		})
	}
	return attrs, nil
}

func (r *registrar) attribute(sch *schema.Schema, f *schema.Field, depth int) (metamodel.AttributeDeclaration, bool, error) {
	attr := metamodel.AttributeDeclaration{Field: f.Name, Name: metamodel.AttributeName(f.Name)}
	if _, ignored := f.TagSettings["-"]; ignored {
		return attr, false, nil
	}

	if rel, ok := sch.Relationships.Relations[f.Name]; ok && depth == 0 {
		kind, known := relationKinds[rel.Type]
		if !known {
			return attr, false, fmt.Errorf("%w: %s.%s has unsupported gorm relationship %q",
				metamodel.ErrInvalidDeclaration, sch.Name, f.Name, rel.Type)
		}
		if err := r.declare(rel.FieldSchema); err != nil {
			return attr, false, err
		}
		attr.Kind = kind
		return attr, true, nil
	}

	if f.DBName == "" {
		return attr, false, nil
	}
	attr.Kind = metamodel.AttributeBasic
	attr.ID = f.PrimaryKey
	attr.Required = f.NotNull
	return attr, true, nil
}
