// Package gpamongo seeds a metamodel from MongoDB document models.
//
// Fields are read with the driver's bson struct tag parser: `_id` becomes the
// id attribute, `inline` anonymous structs are flattened, nested documents
// become embeddables and slices or maps of documents become element
// collections of embeddables. Fields typed as another registered model are
// left to the metamodel, which treats them as references.
package gpamongo

import (
	"fmt"
	"reflect"
	"time"

	"github.com/lemmego/criteria/metamodel"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// IDField is the bson key of a document's primary key.
const IDField = "_id"

// Seeder declares document models on a metamodel builder.
type Seeder struct {
	parser bsoncodec.StructTagParser
	logger *zap.Logger
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithTagParser replaces the default bson tag parser, e.g. with
// bsoncodec.JSONFallbackStructTagParser.
func WithTagParser(parser bsoncodec.StructTagParser) Option {
	return func(s *Seeder) {
		if parser != nil {
			s.parser = parser
		}
	}
}

// WithLogger sets the logger seeded documents are reported to.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Seeder) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSeeder creates a seeder using the driver's default struct tag parser.
func NewSeeder(opts ...Option) *Seeder {
	s := &Seeder{
		parser: bsoncodec.DefaultStructTagParser,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register declares each model using a fresh Seeder.
func Register(b *metamodel.Builder, models ...any) error {
	return NewSeeder().Register(b, models...)
}

// Register declares each model as an entity along with the embeddables its
// nested documents need.
func (s *Seeder) Register(b *metamodel.Builder, models ...any) error {
	r := &registrar{
		seeder:  s,
		b:       b,
		models:  make(map[reflect.Type]bool, len(models)),
		pending: make(map[reflect.Type]bool),
	}
	types := make([]reflect.Type, 0, len(models))
	for _, model := range models {
		t := indirect(reflect.TypeOf(model))
		if t == nil || t.Kind() != reflect.Struct {
			return fmt.Errorf("%w: document model %T is not a struct", metamodel.ErrInvalidDeclaration, model)
		}
		r.models[t] = true
		types = append(types, t)
	}

	for _, t := range types {
		if b.Declared(t) {
			continue
		}
		attrs, err := r.attributes(t, false)
		if err != nil {
			return err
		}
		b.Declare(metamodel.Declaration{Type: t, Kind: metamodel.PersistenceEntity, Attributes: attrs})
		s.logger.Debug("seeded mongo entity",
			zap.String("type", t.String()),
			zap.Int("attributes", len(attrs)),
		)
	}
	return nil
}

type registrar struct {
	seeder  *Seeder
	b       *metamodel.Builder
	models  map[reflect.Type]bool
	pending map[reflect.Type]bool
}

func (r *registrar) attributes(t reflect.Type, embeddable bool) ([]metamodel.AttributeDeclaration, error) {
	var attrs []metamodel.AttributeDeclaration
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tags, err := r.seeder.parser.ParseStructTags(sf)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", metamodel.ErrInvalidDeclaration, t, sf.Name, err)
		}
		if tags.Skip {
			continue
		}

		ft := indirect(sf.Type)
		if tags.Inline {
			switch {
			case ft.Kind() == reflect.Map:
				continue
			case sf.Anonymous && ft.Kind() == reflect.Struct:
				flat, err := r.attributes(ft, embeddable)
				if err != nil {
					return nil, err
				}
				attrs = append(attrs, flat...)
				continue
			}
		}

		attr := metamodel.AttributeDeclaration{Field: sf.Name, Name: metamodel.AttributeName(sf.Name)}
		if tags.Name == IDField && !embeddable {
			attr.Name = "id"
			attr.ID = true
		}

		if doc, plural := documentOf(ft); doc != nil && !r.models[doc] {
			if err := r.embeddable(doc); err != nil {
				return nil, err
			}
			attr.Kind = metamodel.AttributeEmbedded
			if plural {
				attr.Kind = metamodel.AttributeElementCollection
			}
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

func (r *registrar) embeddable(t reflect.Type) error {
	if r.pending[t] || r.b.Declared(t) {
		return nil
	}
	r.pending[t] = true
	attrs, err := r.attributes(t, true)
	if err != nil {
		return err
	}
	r.b.Embeddable(t, attrs...)
	return nil
}

var (
	marshalerType      = reflect.TypeOf((*bson.Marshaler)(nil)).Elem()
	valueMarshalerType = reflect.TypeOf((*bson.ValueMarshaler)(nil)).Elem()

	// struct types the driver encodes as a single bson value
	valueStructs = map[reflect.Type]bool{
		reflect.TypeOf(time.Time{}):               true,
		reflect.TypeOf(primitive.Decimal128{}):    true,
		reflect.TypeOf(primitive.Binary{}):        true,
		reflect.TypeOf(primitive.Timestamp{}):     true,
		reflect.TypeOf(primitive.Regex{}):         true,
		reflect.TypeOf(primitive.DBPointer{}):     true,
		reflect.TypeOf(primitive.CodeWithScope{}): true,
		reflect.TypeOf(primitive.MinKey{}):        true,
		reflect.TypeOf(primitive.MaxKey{}):        true,
		reflect.TypeOf(primitive.Null{}):          true,
		reflect.TypeOf(primitive.Undefined{}):     true,
	}
)

// documentOf returns the struct type t encodes as a nested document, and
// whether t holds many of them.
func documentOf(t reflect.Type) (reflect.Type, bool) {
	switch t.Kind() {
	case reflect.Struct:
		if isDocument(t) {
			return t, false
		}
	case reflect.Slice, reflect.Array, reflect.Map:
		if e := indirect(t.Elem()); isDocument(e) {
			return e, true
		}
	}
	return nil, false
}

func isDocument(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || valueStructs[t] {
		return false
	}
	p := reflect.PointerTo(t)
	return !p.Implements(marshalerType) && !p.Implements(valueMarshalerType)
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
