package criteria

import (
	"reflect"
)

// =====================================
// Comparisons
// =====================================

// test builds a leaf predicate over x and the converted args.
func (cb *Builder) test(op Operator, x Expression, args ...any) (*predicate, *Operation) {
	p := leaf(op, x)
	o := p.operation()
	for _, arg := range args {
		o.operands = append(o.operands, operand(&o.node, arg))
	}
	return p, o
}

// requireComparable records an error on o when its operands cannot be compared.
func requireComparable(o *Operation, ordered bool) {
	if len(o.operands) == 0 || isNil(o.operands[0]) {
		return
	}
	first := o.operands[0].Type()
	for _, x := range o.operands[1:] {
		if isNil(x) {
			continue
		}
		if !compatible(first, x.Type()) {
			o.record(errorf(ErrorTypeInvalidArgument, "%s: cannot compare %s with %s",
				o.op, typeName(first), typeName(x.Type())))
		}
	}
	if ordered && !isOrdered(first) {
		o.record(errorf(ErrorTypeInvalidArgument, "%s: %s values are not ordered", o.op, typeName(first)))
	}
}

func isOrdered(t reflect.Type) bool {
	d := deref(t)
	return unknown(t) || isNumeric(d) || isString(d) || d == timeType
}

// Equal tests x = y. y may be an Expression or a Go value.
// Example: cb.Equal(root.Get("name"), "Alice")
func (cb *Builder) Equal(x Expression, y any) Predicate {
	p, o := cb.test(OpEqual, x, y)
	requireComparable(o, false)
	return p
}

// NotEqual tests x <> y.
func (cb *Builder) NotEqual(x Expression, y any) Predicate {
	p, o := cb.test(OpNotEqual, x, y)
	requireComparable(o, false)
	return p
}

// GreaterThan tests x > y on ordered values: numbers, strings and times.
func (cb *Builder) GreaterThan(x Expression, y any) Predicate {
	p, o := cb.test(OpGreaterThan, x, y)
	requireComparable(o, true)
	return p
}

// GreaterThanOrEqualTo tests x >= y.
func (cb *Builder) GreaterThanOrEqualTo(x Expression, y any) Predicate {
	p, o := cb.test(OpGreaterThanOrEqual, x, y)
	requireComparable(o, true)
	return p
}

// LessThan tests x < y.
func (cb *Builder) LessThan(x Expression, y any) Predicate {
	p, o := cb.test(OpLessThan, x, y)
	requireComparable(o, true)
	return p
}

// LessThanOrEqualTo tests x <= y.
func (cb *Builder) LessThanOrEqualTo(x Expression, y any) Predicate {
	p, o := cb.test(OpLessThanOrEqual, x, y)
	requireComparable(o, true)
	return p
}

// Between tests lo <= x <= hi.
// Example: cb.Between(root.Get("age"), 18, 65)
func (cb *Builder) Between(x Expression, lo, hi any) Predicate {
	p, o := cb.test(OpBetween, x, lo, hi)
	requireComparable(o, true)
	return p
}

// Gt tests x > y on numeric values.
func (cb *Builder) Gt(x Expression, y any) Predicate { return cb.numericTest(OpGreaterThan, x, y) }

// Ge tests x >= y on numeric values.
func (cb *Builder) Ge(x Expression, y any) Predicate { return cb.numericTest(OpGreaterThanOrEqual, x, y) }

// Lt tests x < y on numeric values.
func (cb *Builder) Lt(x Expression, y any) Predicate { return cb.numericTest(OpLessThan, x, y) }

// Le tests x <= y on numeric values.
func (cb *Builder) Le(x Expression, y any) Predicate { return cb.numericTest(OpLessThanOrEqual, x, y) }

func (cb *Builder) numericTest(op Operator, x Expression, y any) Predicate {
	p, o := cb.test(op, x, y)
	requireNumeric(o)
	return p
}

// =====================================
// Null and Boolean Tests
// =====================================

// IsNull tests whether x is null.
func (cb *Builder) IsNull(x Expression) Predicate {
	p, _ := cb.test(OpIsNull, x)
	return p
}

// IsNotNull is the negated form of IsNull.
func (cb *Builder) IsNotNull(x Expression) Predicate {
	return cb.IsNull(x).negate()
}

// IsTrue tests whether a boolean expression is true.
func (cb *Builder) IsTrue(x Expression) Predicate {
	p, o := cb.test(OpIsTrue, x)
	requireBoolean(o)
	return p
}

// IsFalse tests whether a boolean expression is false.
func (cb *Builder) IsFalse(x Expression) Predicate {
	p, o := cb.test(OpIsFalse, x)
	requireBoolean(o)
	return p
}

func requireBoolean(o *Operation) {
	x := o.operands[0]
	if !isNil(x) && !unknown(x.Type()) && !isBool(x.Type()) {
		o.record(errorf(ErrorTypeInvalidArgument, "%s: expected a boolean, got %s", o.op, typeName(x.Type())))
	}
}

// =====================================
// Pattern Matching
// =====================================

// Like matches x against an SQL pattern. An optional escape character may
// be given as a rune, a string or an Expression.
// Example: cb.Like(root.Get("name"), "Al%")
func (cb *Builder) Like(x Expression, pattern any, escape ...any) Predicate {
	args := []any{pattern}
	if len(escape) > 0 {
		args = append(args, escapeArg(escape[0]))
	}
	p, o := cb.test(OpLike, x, args...)
	requireStrings(o)
	if len(escape) > 1 {
		o.record(errorf(ErrorTypeInvalidArgument, "LIKE: at most one escape character may be given"))
	}
	return p
}

// NotLike is the negated form of Like.
func (cb *Builder) NotLike(x Expression, pattern any, escape ...any) Predicate {
	return cb.Like(x, pattern, escape...).negate()
}

func escapeArg(v any) any {
	if r, ok := v.(rune); ok {
		return string(r)
	}
	return v
}

func requireStrings(o *Operation) {
	for i, x := range o.operands {
		if !isNil(x) && !unknown(x.Type()) && !isString(x.Type()) {
			o.record(errorf(ErrorTypeInvalidArgument, "%s: operand %d must be a string, got %s", o.op, i, typeName(x.Type())))
		}
	}
}

// =====================================
// In
// =====================================

// In starts a membership test of x. Further candidates are added with
// Value on the returned predicate.
// Example: cb.In(root.Get("status"), "active", "pending").Value("new")
func (cb *Builder) In(x Expression, values ...any) *InPredicate {
	p := newInPredicate(x)
	for _, v := range values {
		p.Value(v)
	}
	return p
}

// NotIn is the negated form of In with the given values.
func (cb *Builder) NotIn(x Expression, values ...any) Predicate {
	return cb.In(x, values...).negate()
}

// =====================================
// Collections
// =====================================

func requireCollection(o *Operation, x Expression) {
	if !isNil(x) && !unknown(x.Type()) && !isCollection(x.Type()) {
		o.record(errorf(ErrorTypeInvalidArgument, "%s: %s is not a collection", o.op, typeName(x.Type())))
	}
}

// IsEmpty tests whether a collection-valued path has no elements.
// Example: cb.IsEmpty(root.Get("orders"))
func (cb *Builder) IsEmpty(collection Expression) Predicate {
	p, o := cb.test(OpIsEmpty, collection)
	requireCollection(o, collection)
	return p
}

// IsNotEmpty is the negated form of IsEmpty.
func (cb *Builder) IsNotEmpty(collection Expression) Predicate {
	return cb.IsEmpty(collection).negate()
}

// IsMember tests whether elem is an element of collection.
func (cb *Builder) IsMember(elem any, collection Expression) Predicate {
	p := leaf(OpMemberOf)
	o := p.operation()
	e := operand(&o.node, elem)
	o.operands = append(o.operands, e, collection)
	if isNil(collection) {
		o.record(errorf(ErrorTypeInvalidArgument, "MEMBER OF: collection must not be nil"))
		return p
	}
	requireCollection(o, collection)
	if t := deref(collection.Type()); isCollection(t) && !compatible(e.Type(), t.Elem()) {
		o.record(errorf(ErrorTypeInvalidArgument, "MEMBER OF: %s cannot be an element of %s", typeName(e.Type()), t))
	}
	return p
}

// IsNotMember is the negated form of IsMember.
func (cb *Builder) IsNotMember(elem any, collection Expression) Predicate {
	return cb.IsMember(elem, collection).negate()
}

// Size returns the number of elements of a collection-valued path.
func (cb *Builder) Size(collection Expression) Expression {
	o := newOperation(intType, OpSize, collection)
	requireCollection(o, collection)
	return o
}

// Keys returns the keys of a map-valued path.
func (cb *Builder) Keys(m Expression) Expression {
	return cb.mapPart(OpKeys, m, func(t reflect.Type) reflect.Type { return reflect.SliceOf(t.Key()) })
}

// Values returns the values of a map-valued path.
func (cb *Builder) Values(m Expression) Expression {
	return cb.mapPart(OpValues, m, func(t reflect.Type) reflect.Type { return reflect.SliceOf(t.Elem()) })
}

func (cb *Builder) mapPart(op Operator, m Expression, part func(reflect.Type) reflect.Type) Expression {
	o := newOperation(nil, op, m)
	if isNil(m) || unknown(m.Type()) {
		return o
	}
	if t := deref(m.Type()); t.Kind() == reflect.Map {
		o.goType = part(t)
	} else {
		o.record(errorf(ErrorTypeInvalidArgument, "%s: %s is not a map", op, typeName(m.Type())))
	}
	return o
}

// =====================================
// Subquery Predicates
// =====================================

// Exists tests whether sub returns at least one row.
// Example: cb.Exists(sub.Where(cb.Equal(o.Get("customer"), root)))
func (cb *Builder) Exists(sub SubqueryExpression) Predicate {
	p, _ := cb.test(OpExists, sub)
	return p
}

// All compares against every row of sub: cb.Gt(x, cb.All(sub)).
func (cb *Builder) All(sub SubqueryExpression) Expression { return quantify(OpAll, sub) }

// Some compares against at least one row of sub.
func (cb *Builder) Some(sub SubqueryExpression) Expression { return quantify(OpSome, sub) }

// Any is a synonym of Some.
func (cb *Builder) Any(sub SubqueryExpression) Expression { return quantify(OpAny, sub) }

func quantify(op Operator, sub SubqueryExpression) Expression {
	if isNil(sub) {
		return newOperation(nil, op, nil)
	}
	return newOperation(sub.Type(), op, sub)
}
