package criteria

// =====================================
// Ordering
// =====================================

// Order is one item of an ORDER BY list.
type Order interface {
	Node
	Expression() Expression
	Direction() SortDirection
	IsAscending() bool
	NullPrecedence() NullPrecedence

	// Reverse returns a new order with the opposite direction.
	Reverse() Order
}

type order struct {
	diag
	expr  Expression
	dir   SortDirection
	nulls NullPrecedence
}

func newOrder(x Expression, dir SortDirection, nulls []NullPrecedence) *order {
	o := &order{expr: x, dir: dir, nulls: NullsNone}
	if isNil(x) {
		o.record(errorf(ErrorTypeInvalidArgument, "order expression must not be nil"))
	}
	switch len(nulls) {
	case 0:
	case 1:
		switch nulls[0] {
		case NullsNone, NullsFirst, NullsLast:
			o.nulls = nulls[0]
		default:
			o.record(errorf(ErrorTypeInvalidArgument, "unknown null precedence %q", nulls[0]))
		}
	default:
		o.record(errorf(ErrorTypeInvalidArgument, "at most one null precedence may be given"))
	}
	return o
}

// Asc orders by x ascending, optionally placing nulls first or last.
// Example: q.OrderBy(cb.Asc(root.Get("name")), cb.Desc(root.Get("age"), criteria.NullsLast))
func (cb *Builder) Asc(x Expression, nulls ...NullPrecedence) Order {
	return newOrder(x, SortAsc, nulls)
}

// Desc orders by x descending.
func (cb *Builder) Desc(x Expression, nulls ...NullPrecedence) Order {
	return newOrder(x, SortDesc, nulls)
}

func (o *order) Expression() Expression         { return o.expr }
func (o *order) Direction() SortDirection       { return o.dir }
func (o *order) IsAscending() bool              { return o.dir == SortAsc }
func (o *order) NullPrecedence() NullPrecedence { return o.nulls }
func (o *order) Err() error                     { return collectErrors(o) }
func (o *order) String() string                 { return format(o) }
func (o *order) children() []Node               { return appendNode(nil, o.expr) }

func (o *order) Reverse() Order {
	dir := SortDesc
	if o.dir == SortDesc {
		dir = SortAsc
	}
	r := &order{expr: o.expr, dir: dir, nulls: o.nulls}
	r.errs = append(r.errs, o.errs...)
	return r
}
