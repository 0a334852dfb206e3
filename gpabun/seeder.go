// Package gpabun seeds a metamodel from bun models.
//
// Tables are resolved through a bun dialect, so `bun` tags (pk, notnull,
// embed:, rel:, m2m:) are interpreted by bun itself. Models referenced
// through m2m relations need their join model passed to Register before the
// models that use it.
package gpabun

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/lemmego/criteria/metamodel"
	"github.com/uptrace/bun/schema"
	"go.uber.org/zap"
)

// =====================================
// Seeder
// =====================================

// Seeder declares bun models on a metamodel builder.
type Seeder struct {
	dialect schema.Dialect
	logger  *zap.Logger
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithLogger sets the logger seeded entities are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Seeder) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSeeder creates a seeder resolving tables through the named dialect.
func NewSeeder(dialect string, opts ...Option) (*Seeder, error) {
	d, err := NewDialect(dialect)
	if err != nil {
		return nil, err
	}
	s := &Seeder{dialect: d, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register declares each model using a fresh Seeder for dialect.
func Register(b *metamodel.Builder, dialect string, models ...any) error {
	s, err := NewSeeder(dialect)
	if err != nil {
		return err
	}
	return s.Register(b, models...)
}

// Register declares each model, its embedded structs and every entity
// reachable through its relations. Types already declared on b are skipped.
func (s *Seeder) Register(b *metamodel.Builder, models ...any) error {
	r := &registrar{seeder: s, b: b, seen: make(map[reflect.Type]bool)}
	for _, model := range models {
		typ := reflect.TypeOf(model)
		for typ != nil && typ.Kind() == reflect.Pointer {
			typ = typ.Elem()
		}
		if typ == nil || typ.Kind() != reflect.Struct {
			return fmt.Errorf("%w: bun model %T is not a struct", metamodel.ErrInvalidDeclaration, model)
		}
		table, err := s.table(typ)
		if err != nil {
			return err
		}
		if err := r.declare(table); err != nil {
			return err
		}
	}
	return nil
}

// table resolves typ through the dialect. bun panics on malformed models.
func (s *Seeder) table(typ reflect.Type) (table *schema.Table, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: bun could not resolve %s: %v", metamodel.ErrInvalidDeclaration, typ, rec)
		}
	}()
	return s.dialect.Tables().Get(typ), nil
}

var relationKinds = map[int]metamodel.PersistentAttributeType{
	schema.HasOneRelation:     metamodel.AttributeOneToOne,
	schema.BelongsToRelation:  metamodel.AttributeManyToOne,
	schema.HasManyRelation:    metamodel.AttributeOneToMany,
	schema.ManyToManyRelation: metamodel.AttributeManyToMany,
}

type registrar struct {
	seeder *Seeder
	b      *metamodel.Builder
	seen   map[reflect.Type]bool
}

type member struct {
	index []int
	attr  *metamodel.AttributeDeclaration
}

func (r *registrar) declare(table *schema.Table) error {
	if r.seen[table.Type] || r.b.Declared(table.Type) {
		return nil
	}
	r.seen[table.Type] = true

	var members []member
	for _, f := range table.Fields {
		members = append(members, member{index: f.Index, attr: &metamodel.AttributeDeclaration{
			Kind:     metamodel.AttributeBasic,
			ID:       f.IsPK,
			Required: f.NotNull,
		}})
	}
	for _, rel := range table.Relations {
		if len(rel.Field.Index) != 1 {
			continue
		}
		kind, ok := relationKinds[rel.Type]
		if !ok {
			return fmt.Errorf("%w: %s.%s has an unsupported bun relation", metamodel.ErrInvalidDeclaration, table.TypeName, rel.Field.GoName)
		}
		if err := r.declare(rel.JoinTable); err != nil {
			return err
		}
		members = append(members, member{index: rel.Field.Index, attr: &metamodel.AttributeDeclaration{Kind: kind}})
	}

	attrs := r.attributes(table.Type, members, 0)
	r.b.Declare(metamodel.Declaration{
		Type:       table.Type,
		Kind:       metamodel.PersistenceEntity,
		Attributes: attrs,
	})
	r.seeder.logger.Debug("seeded bun entity",
		zap.String("model", table.TypeName),
		zap.String("table", table.Name),
		zap.Int("attributes", len(attrs)),
	)
	return nil
}

// attributes names the members at depth after the struct fields of t.
// Deeper members belong to an embedded struct: anonymous ones are flattened
// into t, named (embed:) ones become an embeddable.
func (r *registrar) attributes(t reflect.Type, members []member, depth int) []metamodel.AttributeDeclaration {
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].index[depth] < members[j].index[depth]
	})

	var attrs []metamodel.AttributeDeclaration
	for i := 0; i < len(members); {
		pos := members[i].index[depth]
		sf := t.Field(pos)
		if len(members[i].index) == depth+1 {
			attr := *members[i].attr
			attr.Field = sf.Name
			attr.Name = metamodel.AttributeName(sf.Name)
			attrs = append(attrs, attr)
			i++
			continue
		}

		j := i
		for j < len(members) && members[j].index[depth] == pos && len(members[j].index) > depth+1 {
			j++
		}
		inner := sf.Type
		for inner.Kind() == reflect.Pointer {
			inner = inner.Elem()
		}
		nested := r.attributes(inner, members[i:j], depth+1)
		i = j

		if sf.Anonymous {
			attrs = append(attrs, nested...)
			continue
		}
		if !r.b.Declared(inner) {
			for k := range nested {
				nested[k].ID = false
			}
			r.b.Embeddable(inner, nested...)
		}
		attrs = append(attrs, metamodel.AttributeDeclaration{
			Field: sf.Name,
			Name:  metamodel.AttributeName(sf.Name),
			Kind:  metamodel.AttributeEmbedded,
		})
	}
	return attrs
}
