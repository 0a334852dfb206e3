package criteria

import (
	"reflect"
)

// =====================================
// Literals and Parameters
// =====================================

// Literal is a constant value embedded in a query.
type Literal struct {
	node
	value any
}

func newLiteral(v any) *Literal {
	l := &Literal{value: v}
	l.init(l, KindLiteral, reflect.TypeOf(v))
	return l
}

func newNullLiteral(t reflect.Type) *Literal {
	l := &Literal{}
	l.init(l, KindLiteral, t)
	return l
}

// Value returns the literal value, nil for a null literal.
func (l *Literal) Value() any { return l.value }

// IsNull reports whether the literal is a typed null.
func (l *Literal) IsNull() bool { return l.value == nil }

func (l *Literal) expression()      {}
func (l *Literal) children() []Node { return nil }

// QueryParameter is a parameter of an executable query.
type QueryParameter interface {
	// Name is empty for positional parameters.
	Name() string

	// Position is the 1-based position of a positional parameter, 0 otherwise.
	Position() int

	// ParameterType fails with an invalid-state error for native query
	// parameters, which carry no static type.
	ParameterType() (reflect.Type, error)
}

// ParameterExpression is a parameter placed in a criteria tree.
type ParameterExpression interface {
	Expression
	QueryParameter
}

// Parameter is a typed query parameter. Parameters are matched by identity:
// two parameters with the same name are still different parameters.
type Parameter[T any] struct {
	node
	name     string
	position int
}

// Param creates a parameter of type T, named when name is given.
func Param[T any](name ...string) *Parameter[T] {
	p := &Parameter[T]{}
	if len(name) > 0 {
		p.name = name[0]
	}
	p.init(p, KindParameter, reflect.TypeFor[T]())
	return p
}

// PositionalParam creates a parameter of type T bound by 1-based position.
func PositionalParam[T any](position int) *Parameter[T] {
	p := Param[T]()
	p.position = position
	if position < 1 {
		p.record(errorf(ErrorTypeInvalidArgument, "parameter position %d must be positive", position))
	}
	return p
}

func (p *Parameter[T]) Name() string  { return p.name }
func (p *Parameter[T]) Position() int { return p.position }

func (p *Parameter[T]) ParameterType() (reflect.Type, error) {
	return p.goType, nil
}

func (p *Parameter[T]) expression()      {}
func (p *Parameter[T]) children() []Node { return nil }

// =====================================
// Operations
// =====================================

// Operation is a function or operator applied to operands: comparisons,
// arithmetic, string and temporal functions, aggregates and casts.
type Operation struct {
	node
	op        Operator
	operands  []Expression
	function  string
	qualifier string
}

func newOperation(goType reflect.Type, op Operator, operands ...Expression) *Operation {
	o := &Operation{op: op, operands: operands}
	o.init(o, KindOperation, goType)
	for _, x := range operands {
		if isNil(x) {
			o.record(errorf(ErrorTypeInvalidArgument, "%s: operand must not be nil", op))
		}
	}
	return o
}

func (o *Operation) Operator() Operator { return o.op }

func (o *Operation) Operands() []Expression {
	return append([]Expression(nil), o.operands...)
}

// FunctionName is the database function called by an OpFunction operation.
func (o *Operation) FunctionName() string { return o.function }

// Qualifier carries the TrimSpec of OpTrim or the TemporalField of OpExtract.
func (o *Operation) Qualifier() string { return o.qualifier }

func (o *Operation) expression()      {}
func (o *Operation) children() []Node { return nodes(o.operands) }

// =====================================
// Compound Selections
// =====================================

// CompoundKind is the shape of a compound selection.
type CompoundKind string

const (
	CompoundTuple     CompoundKind = "TUPLE"
	CompoundArray     CompoundKind = "ARRAY"
	CompoundConstruct CompoundKind = "CONSTRUCT"
)

// CompoundSelection groups several selections into one result item.
type CompoundSelection struct {
	node
	compound CompoundKind
	items    []Selection
	ctor     reflect.Value
}

func newCompound(kind CompoundKind, goType reflect.Type, items []Selection) *CompoundSelection {
	c := &CompoundSelection{compound: kind, items: items}
	c.init(c, KindCompound, goType)

	for i, item := range items {
		if isNil(item) {
			c.record(errorf(ErrorTypeInvalidArgument, "%s item %d is nil", kind, i))
			continue
		}
		if item.IsCompound() {
			inner := item.(*CompoundSelection).compound
			if kind == CompoundConstruct || inner != CompoundConstruct {
				c.record(errorf(ErrorTypeInvalidArgument, "%s item %d cannot be a %s selection", kind, i, inner))
			}
		}
	}
	return c
}

// diagnostics adds duplicate item aliases to the recorded errors. Items may
// be aliased after the compound is built, so they are checked on each call.
func (c *CompoundSelection) diagnostics() *diag {
	var dups []error
	seen := make(map[string]bool)
	for _, item := range c.items {
		if isNil(item) {
			continue
		}
		alias := item.AliasName()
		if alias == "" {
			continue
		}
		if seen[alias] {
			dups = append(dups, errorf(ErrorTypeInvalidArgument, "duplicate alias %q in %s selection", alias, c.compound))
		}
		seen[alias] = true
	}
	if len(dups) == 0 {
		return &c.diag
	}
	return &diag{errs: append(append([]error(nil), c.errs...), dups...), flags: c.flags}
}

// CompoundKind reports whether this is a tuple, array or constructor selection.
func (c *CompoundSelection) CompoundKind() CompoundKind { return c.compound }

func (c *CompoundSelection) IsCompound() bool { return true }

func (c *CompoundSelection) Items() []Selection {
	return append([]Selection(nil), c.items...)
}

func (c *CompoundSelection) children() []Node { return nodes(c.items) }

// =====================================
// Case and Coalesce
// =====================================

// WhenClause is one branch of a case expression.
type WhenClause struct {
	Condition Expression
	Result    Expression
}

// CaseExpression is a searched case: the first when whose condition holds wins.
type CaseExpression struct {
	node
	whens     []WhenClause
	otherwise Expression
}

// When adds a branch. result may be an Expression or a Go value.
func (c *CaseExpression) When(condition Expression, result any) *CaseExpression {
	if isNil(condition) {
		c.record(errorf(ErrorTypeInvalidArgument, "case condition must not be nil"))
		return c
	}
	if !unknown(condition.Type()) && !isBool(condition.Type()) {
		c.record(errorf(ErrorTypeInvalidArgument, "case condition must be boolean, got %s", typeName(condition.Type())))
	}
	c.whens = append(c.whens, WhenClause{Condition: condition, Result: c.result(result)})
	return c
}

// Otherwise sets the result used when no branch matches.
func (c *CaseExpression) Otherwise(result any) *CaseExpression {
	c.otherwise = c.result(result)
	return c
}

func (c *CaseExpression) result(v any) Expression {
	x := resultExpression(&c.node, v)
	if c.goType == nil {
		c.goType = x.Type()
	}
	return x
}

func (c *CaseExpression) WhenClauses() []WhenClause {
	return append([]WhenClause(nil), c.whens...)
}

// OtherwiseResult returns nil when no otherwise branch was given.
func (c *CaseExpression) OtherwiseResult() Expression { return c.otherwise }

func (c *CaseExpression) expression() {}

func (c *CaseExpression) children() []Node {
	var out []Node
	for _, w := range c.whens {
		out = appendNode(out, w.Condition)
		out = appendNode(out, w.Result)
	}
	return appendNode(out, c.otherwise)
}

// SimpleCaseExpression compares one expression against candidate values in order.
type SimpleCaseExpression struct {
	node
	subject   Expression
	whens     []WhenClause
	otherwise Expression
}

// When adds a branch taken when the subject equals value.
func (c *SimpleCaseExpression) When(value any, result any) *SimpleCaseExpression {
	v := operand(&c.node, value)
	if !compatible(c.subject.Type(), v.Type()) {
		c.record(errorf(ErrorTypeInvalidArgument, "case value of type %s cannot be compared with %s",
			typeName(v.Type()), typeName(c.subject.Type())))
	}
	c.whens = append(c.whens, WhenClause{Condition: v, Result: c.result(result)})
	return c
}

// Otherwise sets the result used when no branch matches.
func (c *SimpleCaseExpression) Otherwise(result any) *SimpleCaseExpression {
	c.otherwise = c.result(result)
	return c
}

func (c *SimpleCaseExpression) result(v any) Expression {
	x := resultExpression(&c.node, v)
	if c.goType == nil {
		c.goType = x.Type()
	}
	return x
}

// Subject is the expression compared against each when value.
func (c *SimpleCaseExpression) Subject() Expression { return c.subject }

// WhenClauses returns the branches; each Condition holds the compared value.
func (c *SimpleCaseExpression) WhenClauses() []WhenClause {
	return append([]WhenClause(nil), c.whens...)
}

func (c *SimpleCaseExpression) OtherwiseResult() Expression { return c.otherwise }

func (c *SimpleCaseExpression) expression() {}

func (c *SimpleCaseExpression) children() []Node {
	out := appendNode(nil, c.subject)
	for _, w := range c.whens {
		out = appendNode(out, w.Condition)
		out = appendNode(out, w.Result)
	}
	return appendNode(out, c.otherwise)
}

// CoalesceExpression yields its first non-null argument, left to right.
type CoalesceExpression struct {
	node
	args []Expression
}

// Value appends an argument. v may be an Expression or a Go value.
func (c *CoalesceExpression) Value(v any) *CoalesceExpression {
	x := operand(&c.node, v)
	if c.goType == nil {
		c.goType = x.Type()
	} else if !compatible(c.goType, x.Type()) {
		c.record(errorf(ErrorTypeInvalidArgument, "coalesce argument of type %s does not match %s",
			typeName(x.Type()), typeName(c.goType)))
	}
	c.args = append(c.args, x)
	return c
}

func (c *CoalesceExpression) Expressions() []Expression {
	return append([]Expression(nil), c.args...)
}

func (c *CoalesceExpression) expression()      {}
func (c *CoalesceExpression) children() []Node { return nodes(c.args) }

// =====================================
// Operand Conversion
// =====================================

// operand turns v into an expression: expressions pass through, Go values
// become literals. A nil value records an error on owner and yields an
// untyped null.
func operand(owner *node, v any) Expression {
	if x, ok := v.(Expression); ok && !isNil(x) {
		return x
	}
	if isNil(v) {
		owner.record(errorf(ErrorTypeInvalidArgument, "operand must not be nil; use IsNull or NullLiteral"))
		return newNullLiteral(nil)
	}
	return newLiteral(v)
}

// resultExpression is operand for case results, where nil means a typed null.
func resultExpression(owner *node, v any) Expression {
	if v == nil {
		return newNullLiteral(owner.goType)
	}
	x := operand(owner, v)
	if owner.goType != nil && !compatible(owner.goType, x.Type()) {
		owner.record(errorf(ErrorTypeInvalidArgument, "case result of type %s does not match %s",
			typeName(x.Type()), typeName(owner.goType)))
	}
	return x
}
