package criteria

import (
	"reflect"
)

// =====================================
// Container Contracts
// =====================================

// CommonAbstractCriteria is implemented by every query container: select
// queries, subqueries, updates and deletes.
type CommonAbstractCriteria interface {
	Node

	// Restriction is the WHERE predicate, nil when none is set.
	Restriction() Predicate

	// Flags reports every non-portable or ambiguous construct reachable
	// from the container.
	Flags() []Flag

	// Parameters returns the distinct parameters of the container in the
	// order they first appear.
	Parameters() []ParameterExpression

	criteriaScope() *scope
}

// AbstractQuery is the part shared by select queries and subqueries.
type AbstractQuery interface {
	CommonAbstractCriteria
	Roots() []Root

	// Selection is nil until Select or Multiselect is called.
	Selection() Selection
	GroupList() []Expression
	GroupRestriction() Predicate
	IsDistinct() bool
	ResultType() reflect.Type
}

// criteria is the state of every container.
type criteria struct {
	scope       *scope
	restriction Predicate
}

func (c *criteria) Restriction() Predicate { return c.restriction }
func (c *criteria) criteriaScope() *scope  { return c.scope }

// clauses is the state of select queries and subqueries.
type clauses struct {
	criteria
	roots     []Root
	selection Selection
	groups    []Expression
	having    Predicate
	distinct  bool
}

func (c *clauses) Roots() []Root               { return append([]Root(nil), c.roots...) }
func (c *clauses) Selection() Selection        { return c.selection }
func (c *clauses) GroupRestriction() Predicate { return c.having }
func (c *clauses) IsDistinct() bool            { return c.distinct }

func (c *clauses) GroupList() []Expression {
	return append([]Expression(nil), c.groups...)
}

// from adds a root for entity. Failures are recorded on d.
func (c *clauses) from(d *diag, entity any, alias []string) Root {
	r := newRootFor(c.scope, d, entity)
	if r.broken {
		return r
	}
	if len(alias) > 0 {
		r.Alias(alias[0])
	}
	c.roots = append(c.roots, r)
	return r
}

func newRootFor(sc *scope, d *diag, entity any) *root {
	if sc.cb.mm == nil {
		err := errorf(ErrorTypeInvalidState, "cannot create query root without a metamodel")
		d.record(err)
		return newBrokenRoot(sc, err)
	}
	et, err := sc.cb.mm.Entity(entity)
	if err != nil {
		err = NewErrorWithCause(ErrorTypeUnknownType, "cannot create query root", err)
		d.record(err)
		return newBrokenRoot(sc, err)
	}
	return newRoot(sc, et)
}

func (c *clauses) parts() []Node {
	out := nodes(c.roots)
	out = appendNode(out, c.selection)
	out = appendNode(out, c.restriction)
	out = append(out, nodes(c.groups)...)
	return appendNode(out, c.having)
}

// defaultSelection is the selection used when none was set: the single root.
func (c *clauses) defaultSelection() (Selection, error) {
	if c.selection != nil {
		return c.selection, nil
	}
	if len(c.roots) == 1 {
		return c.roots[0], nil
	}
	return nil, errorf(ErrorTypeInvalidState, "query has %d roots and no selection", len(c.roots))
}

// parameters collects the distinct parameters under n in walk order.
func parameters(n Node) []ParameterExpression {
	var out []ParameterExpression
	Walk(n, func(x Node) bool {
		if p, ok := x.(ParameterExpression); ok {
			out = append(out, p)
		}
		return true
	})
	return out
}

// =====================================
// Criteria Query
// =====================================

// CriteriaQuery is a select query whose rows have type T.
// It is not safe for concurrent mutation.
type CriteriaQuery[T any] struct {
	diag
	clauses
	orders     []Order
	resultType reflect.Type
}

func newCriteriaQuery[T any](sc *scope) *CriteriaQuery[T] {
	q := &CriteriaQuery[T]{resultType: reflect.TypeFor[T]()}
	q.scope = sc
	return q
}

// From adds a query root ranging over entity. Each call adds another root.
// Example: p := q.From(Person{}, "p")
func (q *CriteriaQuery[T]) From(entity any, alias ...string) Root {
	return q.from(&q.diag, entity, alias)
}

// Select sets the selection. Its type must be assignable to T.
// Returns the same CriteriaQuery instance for method chaining.
// Example: q.Select(root)
func (q *CriteriaQuery[T]) Select(sel Selection) *CriteriaQuery[T] {
	if isNil(sel) {
		q.record(errorf(ErrorTypeInvalidArgument, "selection must not be nil"))
		return q
	}
	if !selectable(sel, q.resultType) {
		q.record(errorf(ErrorTypeInvalidArgument, "cannot select %s into %s rows", typeName(sel.Type()), q.resultType))
	}
	q.selection = sel
	return q
}

// Multiselect sets the selection from several items, shaped by T:
// Tuple rows wrap the items in a tuple, []any rows in an array, struct rows
// are constructed positionally, any rows hold the bare item when there is
// one and an array otherwise. Other row types take exactly one item.
// With no items the selection is cleared.
// Example: criteria.CreateQuery[Tuple](cb).Multiselect(p.Get("name"), p.Get("age"))
func (q *CriteriaQuery[T]) Multiselect(items ...Selection) *CriteriaQuery[T] {
	rt := q.resultType
	switch {
	case len(items) == 0:
		q.selection = nil
		return q
	case rt == tupleType:
		q.selection = newCompound(CompoundTuple, tupleType, items)
	case rt == anySliceType:
		q.selection = newCompound(CompoundArray, anySliceType, items)
	case rt.Kind() == reflect.Interface:
		if len(items) == 1 {
			return q.Select(items[0])
		}
		q.selection = newCompound(CompoundArray, anySliceType, items)
	case len(items) == 1 && !isNil(items[0]) && assignable(items[0].Type(), rt):
		return q.Select(items[0])
	case deref(rt).Kind() == reflect.Struct:
		c := newCompound(CompoundConstruct, deref(rt), items)
		checkFields(&c.node, deref(rt), items)
		q.selection = c
	default:
		q.record(errorf(ErrorTypeInvalidArgument, "%s rows take exactly one selection item, got %d", rt, len(items)))
	}
	return q
}

func selectable(sel Selection, rt reflect.Type) bool {
	t := sel.Type()
	if unknown(rt) || unknown(t) {
		return true
	}
	if sel.IsCompound() {
		return deref(t) == deref(rt)
	}
	return assignable(t, rt)
}

// Where replaces the restriction. Several predicates are conjoined; none
// clears it.
// Example: q.Where(cb.Equal(root.Get("name"), "Alice"))
func (q *CriteriaQuery[T]) Where(restrictions ...Predicate) *CriteriaQuery[T] {
	q.restriction = conjoin(restrictions)
	return q
}

// GroupBy replaces the grouping expressions; none clears them.
func (q *CriteriaQuery[T]) GroupBy(groups ...Expression) *CriteriaQuery[T] {
	q.groups = append([]Expression(nil), groups...)
	return q
}

// Having replaces the group restriction; none clears it.
func (q *CriteriaQuery[T]) Having(restrictions ...Predicate) *CriteriaQuery[T] {
	q.having = conjoin(restrictions)
	return q
}

// OrderBy replaces the ordering; none clears it.
func (q *CriteriaQuery[T]) OrderBy(orders ...Order) *CriteriaQuery[T] {
	q.orders = append([]Order(nil), orders...)
	return q
}

// Distinct sets whether duplicate rows are removed.
func (q *CriteriaQuery[T]) Distinct(distinct bool) *CriteriaQuery[T] {
	q.distinct = distinct
	return q
}

func (q *CriteriaQuery[T]) OrderList() []Order                { return append([]Order(nil), q.orders...) }
func (q *CriteriaQuery[T]) ResultType() reflect.Type          { return q.resultType }
func (q *CriteriaQuery[T]) Err() error                        { return collectErrors(q) }
func (q *CriteriaQuery[T]) String() string                    { return format(q) }
func (q *CriteriaQuery[T]) Flags() []Flag                     { return collectFlags(q) }
func (q *CriteriaQuery[T]) Parameters() []ParameterExpression { return parameters(q) }

func (q *CriteriaQuery[T]) children() []Node {
	return append(q.parts(), nodes(q.orders)...)
}

// =====================================
// Subqueries
// =====================================

// SubqueryExpression is the untyped view of a Subquery, accepted by
// Exists, All, Some and Any.
type SubqueryExpression interface {
	Expression
	AbstractQuery

	// ContainingQuery is the query the subquery was created from.
	ContainingQuery() CommonAbstractCriteria
	CorrelatedJoins() []Join
}

// Subquery is a nested query yielding values of type U. It is an
// expression of the enclosing query.
type Subquery[U any] struct {
	node
	clauses
	parent          CommonAbstractCriteria
	correlatedJoins []Join
}

// SubqueryOf creates a subquery nested in parent.
// Example: sub := criteria.SubqueryOf[int64](q)
func SubqueryOf[U any](parent CommonAbstractCriteria) *Subquery[U] {
	s := &Subquery[U]{parent: parent}
	s.init(s, KindSubquery, reflect.TypeFor[U]())
	if isNil(parent) {
		s.record(errorf(ErrorTypeInvalidArgument, "subquery parent must not be nil"))
		s.scope = &scope{cb: NewBuilder(nil)}
		return s
	}
	outer := parent.criteriaScope()
	s.scope = &scope{cb: outer.cb, parent: outer}
	return s
}

// From adds a subquery root ranging over entity.
func (s *Subquery[U]) From(entity any, alias ...string) Root {
	return s.from(&s.diag, entity, alias)
}

// Select sets the single selected expression.
func (s *Subquery[U]) Select(x Expression) *Subquery[U] {
	if isNil(x) {
		s.record(errorf(ErrorTypeInvalidArgument, "subquery selection must not be nil"))
		return s
	}
	if !assignable(x.Type(), s.goType) {
		s.record(errorf(ErrorTypeInvalidArgument, "cannot select %s in a subquery of %s", typeName(x.Type()), s.goType))
	}
	s.selection = x
	return s
}

// Where replaces the restriction. Several predicates are conjoined; none
// clears it.
func (s *Subquery[U]) Where(restrictions ...Predicate) *Subquery[U] {
	s.restriction = conjoin(restrictions)
	return s
}

// GroupBy replaces the grouping expressions; none clears them.
func (s *Subquery[U]) GroupBy(groups ...Expression) *Subquery[U] {
	s.groups = append([]Expression(nil), groups...)
	return s
}

// Having replaces the group restriction; none clears it.
func (s *Subquery[U]) Having(restrictions ...Predicate) *Subquery[U] {
	s.having = conjoin(restrictions)
	return s
}

// Distinct sets whether duplicate rows are removed.
func (s *Subquery[U]) Distinct(distinct bool) *Subquery[U] {
	s.distinct = distinct
	return s
}

// Correlate creates a subquery root that stands for r, a root of an
// enclosing query. The result reports r as its CorrelationParent.
// Example: c := sub.Correlate(p); sub.Where(cb.Equal(o.Get("customer"), c))
func (s *Subquery[U]) Correlate(r Root) Root {
	rb, ok := r.(*root)
	if err := s.checkCorrelation(r, ok && !rb.broken); err != nil {
		s.record(err)
		return newBrokenRoot(s.scope, err)
	}
	c := rb.correlate(s.scope)
	s.roots = append(s.roots, c)
	return c
}

// CorrelateJoin creates a subquery join that stands for j, a join of an
// enclosing query.
func (s *Subquery[U]) CorrelateJoin(j Join) Join {
	var jb *join
	if !isNil(j) {
		jb = j.joinBase()
	}
	if err := s.checkCorrelation(j, jb != nil && !jb.broken); err != nil {
		s.record(err)
		inner, out := makeJoin("")
		inner.scope = s.scope
		inner.broken = true
		inner.jt = JoinInner
		inner.record(err)
		return out
	}
	c := jb.correlate(s.scope)
	s.correlatedJoins = append(s.correlatedJoins, c)
	return c
}

func (s *Subquery[U]) checkCorrelation(f From, valid bool) error {
	switch {
	case isNil(f):
		return errorf(ErrorTypeInvalidArgument, "cannot correlate a nil from")
	case !valid:
		return errorf(ErrorTypeInvalidArgument, "cannot correlate an invalid from")
	case f.IsCorrelated():
		return errorf(ErrorTypeInvalidArgument, "cannot correlate %s: it is already correlated", describe(f))
	case !f.fromBase().scope.encloses(s.scope):
		return errorf(ErrorTypeInvalidArgument, "cannot correlate %s: it does not belong to an enclosing query", describe(f))
	}
	return nil
}

func (s *Subquery[U]) CorrelatedJoins() []Join {
	return append([]Join(nil), s.correlatedJoins...)
}

func (s *Subquery[U]) ContainingQuery() CommonAbstractCriteria { return s.parent }
func (s *Subquery[U]) ResultType() reflect.Type                { return s.goType }
func (s *Subquery[U]) Flags() []Flag                           { return collectFlags(s) }
func (s *Subquery[U]) Parameters() []ParameterExpression       { return parameters(s) }
func (s *Subquery[U]) expression()                             {}

func (s *Subquery[U]) children() []Node {
	return append(s.parts(), nodes(s.correlatedJoins)...)
}
