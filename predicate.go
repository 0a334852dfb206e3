package criteria

// =====================================
// Predicates
// =====================================

// Predicate is a boolean expression combining child expressions with AND or
// OR. A leaf test is an AND of one *Operation.
type Predicate interface {
	Expression
	Operator() BooleanOperator
	IsNegated() bool

	// Expressions returns the combined children. Nested predicates are
	// returned as they are, never flattened.
	Expressions() []Expression

	negate() Predicate
}

type predicate struct {
	node
	op      BooleanOperator
	negated bool
	exprs   []Expression
}

func newPredicate(op BooleanOperator, exprs ...Expression) *predicate {
	p := &predicate{op: op, exprs: exprs}
	p.init(p, KindPredicate, boolType)
	for i, x := range exprs {
		if isNil(x) {
			p.record(errorf(ErrorTypeInvalidArgument, "%s operand %d must not be nil", op, i))
			continue
		}
		if !unknown(x.Type()) && !isBool(x.Type()) {
			p.record(errorf(ErrorTypeInvalidArgument, "%s operand %d must be boolean, got %s", op, i, typeName(x.Type())))
		}
	}
	return p
}

// leaf wraps one test in a single-element AND predicate.
func leaf(goOp Operator, operands ...Expression) *predicate {
	return newPredicate(BooleanAnd, newOperation(boolType, goOp, operands...))
}

func (p *predicate) Operator() BooleanOperator { return p.op }
func (p *predicate) IsNegated() bool           { return p.negated }

func (p *predicate) Expressions() []Expression {
	return append([]Expression(nil), p.exprs...)
}

// negate returns a copy with the negation flag toggled. The copy shares
// children with p and keeps the errors recorded on p itself.
func (p *predicate) negate() Predicate {
	c := &predicate{op: p.op, negated: !p.negated, exprs: p.exprs}
	c.init(c, KindPredicate, boolType)
	c.errs = append(c.errs, p.errs...)
	return c
}

func (p *predicate) expression()      {}
func (p *predicate) children() []Node { return nodes(p.exprs) }

// operation returns the wrapped test of a leaf predicate, nil otherwise.
func (p *predicate) operation() *Operation {
	if len(p.exprs) != 1 {
		return nil
	}
	o, _ := p.exprs[0].(*Operation)
	return o
}

// =====================================
// In Predicates
// =====================================

// InPredicate tests membership of an expression in a list of values that is
// accumulated with Value.
type InPredicate struct {
	predicate
	test *Operation
}

func newInPredicate(x Expression) *InPredicate {
	p := &InPredicate{}
	p.op = BooleanAnd
	p.init(p, KindIn, boolType)
	if isNil(x) {
		p.record(errorf(ErrorTypeInvalidArgument, "in: tested expression must not be nil"))
		x = newNullLiteral(nil)
	}
	p.test = newOperation(boolType, OpIn, x)
	p.exprs = []Expression{p.test}
	return p
}

// Expression returns the tested expression.
func (p *InPredicate) Expression() Expression { return p.test.operands[0] }

// Values returns the candidate values added so far.
func (p *InPredicate) Values() []Expression {
	return append([]Expression(nil), p.test.operands[1:]...)
}

// Value adds a candidate. v may be a Go value, an Expression or a Subquery.
func (p *InPredicate) Value(v any) *InPredicate {
	x := operand(&p.node, v)
	if !compatible(p.Expression().Type(), x.Type()) {
		p.record(errorf(ErrorTypeInvalidArgument, "in value of type %s cannot be compared with %s",
			typeName(x.Type()), typeName(p.Expression().Type())))
	}
	p.test.operands = append(p.test.operands, x)
	return p
}

// negate copies the candidate list, so values added to p afterwards do
// not leak into the negated copy.
func (p *InPredicate) negate() Predicate {
	c := &InPredicate{test: newOperation(boolType, OpIn, p.test.Operands()...)}
	c.op = p.op
	c.negated = !p.negated
	c.exprs = []Expression{c.test}
	c.init(c, KindIn, boolType)
	c.errs = append(c.errs, p.errs...)
	return c
}
