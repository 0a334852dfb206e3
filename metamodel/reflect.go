package metamodel

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// TagName is the struct tag read by Reflect.
//
//	type Person struct {
//		ID      int64    `persist:"id"`
//		Name    string   `persist:"required"`
//		Address Address  `persist:"embedded"`
//		Orders  []*Order `persist:"onetomany,set"`
//		Cache   string   `persist:"-"`
//	}
const TagName = "persist"

// ReflectOption adjusts the declaration produced by Reflect.
type ReflectOption func(*Declaration)

// AsEmbeddable declares the reflected type as an embeddable.
func AsEmbeddable() ReflectOption {
	return func(d *Declaration) { d.Kind = PersistenceEmbeddable }
}

// AsMappedSuperclass declares the reflected type as a mapped superclass.
func AsMappedSuperclass() ReflectOption {
	return func(d *Declaration) { d.Kind = PersistenceMappedSuperclass }
}

// EntityName overrides the entity name.
func EntityName(name string) ReflectOption {
	return func(d *Declaration) { d.Name = name }
}

// Extends sets the supertype explicitly.
func Extends(v any) ReflectOption {
	return func(d *Declaration) { d.Supertype = typeOf(v) }
}

// Reflect declares v's type from its `persist` struct tags. Entities are the default.
func (b *Builder) Reflect(v any, opts ...ReflectOption) *Builder {
	d, err := Reflect(v, opts...)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	return b.Declare(d)
}

// Reflect derives a Declaration from v's exported fields and `persist` tags.
// Anonymous struct fields are flattened unless tagged `persist:"extends"`, in
// which case the embedded type becomes the supertype.
func Reflect(v any, opts ...ReflectOption) (Declaration, error) {
	t := typeOf(v)
	if t == nil || t.Kind() != reflect.Struct {
		return Declaration{}, fmt.Errorf("%w: cannot reflect %v", ErrInvalidDeclaration, t)
	}
	d := Declaration{Type: t, Kind: PersistenceEntity}

	var excluded [][]int
	for _, f := range reflect.VisibleFields(t) {
		if underAny(f.Index, excluded) {
			continue
		}
		tag, hasTag := f.Tag.Lookup(TagName)
		if f.Anonymous {
			switch {
			case tag == "-":
				excluded = append(excluded, f.Index)
			case hasTag && hasOption(tag, "extends"):
				if d.Supertype != nil {
					return Declaration{}, fmt.Errorf("%w: %s extends more than one type", ErrInvalidDeclaration, t)
				}
				d.Supertype = indirect(f.Type)
				excluded = append(excluded, f.Index)
			}
			continue
		}
		if !f.IsExported() || tag == "-" {
			continue
		}
		ad, err := parseTag(f.Name, tag)
		if err != nil {
			return Declaration{}, fmt.Errorf("%s.%s: %w", t, f.Name, err)
		}
		d.Attributes = append(d.Attributes, ad)
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d, nil
}

func parseTag(field, tag string) (AttributeDeclaration, error) {
	ad := AttributeDeclaration{Field: field, Name: AttributeName(field)}
	if tag == "" {
		return ad, nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, ok := strings.CutPrefix(part, "name="); ok {
			ad.Name = name
			continue
		}
		switch strings.ToLower(part) {
		case "id":
			ad.ID = true
		case "version":
			ad.Version = true
		case "required":
			ad.Required = true
		case "basic":
			ad.Kind = AttributeBasic
		case "embedded":
			ad.Kind = AttributeEmbedded
		case "onetoone":
			ad.Kind = AttributeOneToOne
		case "manytoone":
			ad.Kind = AttributeManyToOne
		case "onetomany":
			ad.Kind = AttributeOneToMany
		case "manytomany":
			ad.Kind = AttributeManyToMany
		case "element":
			ad.Kind = AttributeElementCollection
		case "bag":
			ad.Collection = CollectionBag
		case "set":
			ad.Collection = CollectionSet
		case "list":
			ad.Collection = CollectionList
		case "map":
			ad.Collection = CollectionMap
		default:
			return ad, fmt.Errorf("%w: unknown %s tag option %q", ErrInvalidDeclaration, TagName, part)
		}
	}
	return ad, nil
}

func hasOption(tag, option string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.EqualFold(strings.TrimSpace(part), option) {
			return true
		}
	}
	return false
}

func underAny(index []int, prefixes [][]int) bool {
	for _, p := range prefixes {
		if len(index) > len(p) && equalInts(index[:len(p)], p) {
			return true
		}
	}
	return false
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AttributeName converts a Go field name to its attribute name:
// ID → id, CreatedAt → createdAt, URLPath → urlPath.
func AttributeName(field string) string {
	runes := []rune(field)
	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}
	switch {
	case upper == 0:
		return field
	case upper == 1 || upper == len(runes):
		// whole-word initialism or a single leading capital
	default:
		// keep the capital that starts the next word: URLPath → url + Path
		if unicode.IsLower(runes[upper]) {
			upper--
		}
	}
	for i := 0; i < upper; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
