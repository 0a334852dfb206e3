package criteria

import (
	"reflect"

	"go.uber.org/zap"

	"github.com/lemmego/criteria/metamodel"
)

// =====================================
// Criteria Builder
// =====================================

// Builder is the factory for every criteria node. It holds no query state:
// each call returns a new, independently mutable node.
type Builder struct {
	mm     *metamodel.Metamodel
	config Config
	logger *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithConfig sets the construction policies of the builder.
func WithConfig(cfg Config) BuilderOption {
	return func(cb *Builder) {
		cb.config = cfg
	}
}

// WithBuilderLogger sets the logger flagged constructs are reported to.
func WithBuilderLogger(logger *zap.Logger) BuilderOption {
	return func(cb *Builder) {
		if logger != nil {
			cb.logger = logger
		}
	}
}

// NewBuilder creates a builder whose paths are type-checked against mm.
// Example: cb := criteria.NewBuilder(mm, criteria.WithConfig(cfg))
func NewBuilder(mm *metamodel.Metamodel, opts ...BuilderOption) *Builder {
	cb := &Builder{
		mm:     mm,
		config: DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Metamodel returns the metamodel the builder resolves entities against.
func (cb *Builder) Metamodel() *metamodel.Metamodel { return cb.mm }

// Config returns the builder's construction policies.
func (cb *Builder) Config() Config { return cb.config }

func (cb *Builder) rootScope() *scope {
	return &scope{cb: cb}
}

// =====================================
// Literals and Parameters
// =====================================

// Literal wraps a Go value. A nil value is an error: use NullLiteral.
// Example: cb.Literal("Alice")
func (cb *Builder) Literal(v any) *Literal {
	if isNil(v) {
		l := newNullLiteral(nil)
		l.record(errorf(ErrorTypeInvalidArgument, "literal value must not be nil; use NullLiteral"))
		return l
	}
	return newLiteral(v)
}

// NullLiteral creates a null of the given type. t may be a reflect.Type or
// a sample value.
// Example: cb.NullLiteral("")
func (cb *Builder) NullLiteral(t any) *Literal {
	return newNullLiteral(typeArg(t))
}

// Parameter creates a parameter typed at runtime. Use Param for a
// statically typed one.
// Example: cb.Parameter(reflect.TypeOf(""), "name")
func (cb *Builder) Parameter(t any, name ...string) ParameterExpression {
	p := Param[any](name...)
	p.goType = typeArg(t)
	return p
}

// typeArg accepts a reflect.Type or a sample value and returns the type.
func typeArg(t any) reflect.Type {
	switch v := t.(type) {
	case nil:
		return nil
	case reflect.Type:
		return v
	}
	return reflect.TypeOf(t)
}

// =====================================
// Combinators
// =====================================

// And conjoins restrictions. With no restrictions it returns Conjunction.
// Example: cb.And(cb.Equal(p.Get("name"), "Alice"), cb.Gt(p.Get("age"), 18))
func (cb *Builder) And(restrictions ...Predicate) Predicate {
	return newPredicate(BooleanAnd, nodesOf[Expression](restrictions)...)
}

// Or disjoins restrictions. With no restrictions it returns Disjunction.
func (cb *Builder) Or(restrictions ...Predicate) Predicate {
	return newPredicate(BooleanOr, nodesOf[Expression](restrictions)...)
}

// Conjunction is an empty AND, which always holds.
func (cb *Builder) Conjunction() Predicate { return newPredicate(BooleanAnd) }

// Disjunction is an empty OR, which never holds.
func (cb *Builder) Disjunction() Predicate { return newPredicate(BooleanOr) }

// Not negates a boolean expression. Negating a predicate toggles its
// negation flag on a copy; it never nests.
// Example: cb.Not(cb.Not(p)).IsNegated() == p.IsNegated()
func (cb *Builder) Not(x Expression) Predicate {
	if p, ok := x.(Predicate); ok && !isNil(p) {
		return p.negate()
	}
	return newPredicate(BooleanAnd, x).negate()
}

// =====================================
// Compound Selections
// =====================================

// Tuple groups items into one Tuple per result row.
func (cb *Builder) Tuple(items ...Selection) *CompoundSelection {
	return newCompound(CompoundTuple, tupleType, items)
}

// Array groups items into one []any per result row.
func (cb *Builder) Array(items ...Selection) *CompoundSelection {
	return newCompound(CompoundArray, anySliceType, items)
}

// Construct builds one value per result row from items. target is either
// a constructor function taking one argument per item, returning the value
// and optionally an error, or a struct type (reflect.Type, value or pointer)
// whose exported fields are assigned positionally.
// Example: cb.Construct(NewSummary, p.Get("name"), cb.Count(o))
func (cb *Builder) Construct(target any, items ...Selection) *CompoundSelection {
	t := typeArg(target)
	c := newCompound(CompoundConstruct, nil, items)
	switch {
	case t == nil:
		c.record(errorf(ErrorTypeInvalidArgument, "construct target must not be nil"))
	case t.Kind() == reflect.Func:
		c.ctor = reflect.ValueOf(target)
		c.goType = checkConstructor(&c.node, t, items)
	case deref(t).Kind() == reflect.Struct:
		c.goType = deref(t)
		checkFields(&c.node, c.goType, items)
	default:
		c.record(errorf(ErrorTypeInvalidArgument, "construct target %s is neither a function nor a struct", t))
	}
	return c
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func checkConstructor(n *node, t reflect.Type, items []Selection) reflect.Type {
	if t.IsVariadic() || t.NumIn() != len(items) {
		n.record(errorf(ErrorTypeInvalidArgument, "constructor %s takes %d arguments, got %d items", t, t.NumIn(), len(items)))
	}
	if t.NumOut() == 0 || t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
		n.record(errorf(ErrorTypeInvalidArgument, "constructor %s must return a value and optionally an error", t))
		return nil
	}
	for i := 0; i < t.NumIn() && i < len(items); i++ {
		if !isNil(items[i]) && !assignable(items[i].Type(), t.In(i)) {
			n.record(errorf(ErrorTypeInvalidArgument, "constructor argument %d expects %s, got %s",
				i, t.In(i), typeName(items[i].Type())))
		}
	}
	return t.Out(0)
}

func checkFields(n *node, t reflect.Type, items []Selection) {
	fields := exportedFields(t)
	if len(fields) != len(items) {
		n.record(errorf(ErrorTypeInvalidArgument, "%s has %d exported fields, got %d items", t, len(fields), len(items)))
		return
	}
	for i, f := range fields {
		if !isNil(items[i]) && !assignable(items[i].Type(), f.Type) {
			n.record(errorf(ErrorTypeInvalidArgument, "field %s.%s expects %s, got %s",
				t.Name(), f.Name, f.Type, typeName(items[i].Type())))
		}
	}
}

func exportedFields(t reflect.Type) []reflect.StructField {
	var out []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() {
			out = append(out, f)
		}
	}
	return out
}

// =====================================
// Query Containers
// =====================================

// CreateQuery creates a select query whose rows have type T.
// Example: q := criteria.CreateQuery[Person](cb)
func CreateQuery[T any](cb *Builder) *CriteriaQuery[T] {
	return newCriteriaQuery[T](cb.rootScope())
}

// CreateTupleQuery creates a select query returning Tuple rows.
func (cb *Builder) CreateTupleQuery() *CriteriaQuery[Tuple] {
	return CreateQuery[Tuple](cb)
}

// CreateObjectQuery creates a select query whose row shape follows its selection.
func (cb *Builder) CreateObjectQuery() *CriteriaQuery[any] {
	return CreateQuery[any](cb)
}

// CreateUpdate creates a bulk update of entity T.
// Example: u := criteria.CreateUpdate[Person](cb)
func CreateUpdate[T any](cb *Builder) *CriteriaUpdate[T] {
	return newCriteriaUpdate[T](cb.rootScope())
}

// CreateDelete creates a bulk delete of entity T.
func CreateDelete[T any](cb *Builder) *CriteriaDelete[T] {
	return newCriteriaDelete[T](cb.rootScope())
}

// =====================================
// Downcasting
// =====================================

// Treat narrows p to entity, which must be p's type or one of its subtypes.
// Example: cb.Treat(root, Manager{}).Get("reports")
func (cb *Builder) Treat(p Path, entity any) Path {
	t := &path{parent: p}
	t.init(t, KindTreat, nil)
	if isNil(p) {
		t.broken = true
		t.record(errorf(ErrorTypeInvalidArgument, "treat path must not be nil"))
		return t
	}
	et, err := cb.mm.Entity(entity)
	if err != nil {
		t.broken = true
		t.record(NewErrorWithCause(ErrorTypeUnknownType, "cannot treat path", err))
		return t
	}
	t.goType = et.GoType()
	t.model = et
	t.managed = et
	if source := p.pathBase().managed; source != nil && !isSubtype(et, source) {
		t.record(errorf(ErrorTypeInvalidArgument, "%s is not a subtype of %s", et.GoType(), source.GoType()))
	}
	return t
}

func isSubtype(et metamodel.EntityType, of metamodel.ManagedType) bool {
	for t := metamodel.IdentifiableType(et); t != nil; t = t.Supertype() {
		if metamodel.ManagedType(t) == of || t.GoType() == of.GoType() {
			return true
		}
	}
	return false
}
