package criteria

import (
	"fmt"
	"reflect"
)

// =====================================
// Tuples
// =====================================

// TupleElement describes one position of a Tuple.
type TupleElement struct {
	Alias     string
	Type      reflect.Type
	Selection Selection
}

// Tuple is one result row of a tuple query. Values are in selection order.
type Tuple struct {
	elements []TupleElement
	values   []any
}

var tupleType = reflect.TypeFor[Tuple]()

// NewTuple creates a tuple with the given elements and values.
func NewTuple(elements []TupleElement, values []any) (Tuple, error) {
	if len(elements) != len(values) {
		return Tuple{}, errorf(ErrorTypeInvalidArgument, "tuple has %d elements but %d values", len(elements), len(values))
	}
	return Tuple{
		elements: append([]TupleElement(nil), elements...),
		values:   append([]any(nil), values...),
	}, nil
}

// Len returns the number of values.
func (t Tuple) Len() int { return len(t.values) }

// Get returns the value at position i. It panics when i is out of range.
// Example: name := row.Get(0).(string)
func (t Tuple) Get(i int) any { return t.values[i] }

// GetAlias returns the value whose selection item was aliased alias.
func (t Tuple) GetAlias(alias string) (any, error) {
	for i, e := range t.elements {
		if e.Alias != "" && e.Alias == alias {
			return t.values[i], nil
		}
	}
	return nil, errorf(ErrorTypeInvalidArgument, "tuple has no element aliased %q", alias)
}

// GetElement returns the value produced by sel, matched by identity.
func (t Tuple) GetElement(sel Selection) (any, error) {
	for i, e := range t.elements {
		if e.Selection != nil && e.Selection == sel {
			return t.values[i], nil
		}
	}
	return nil, errorf(ErrorTypeInvalidArgument, "selection %s is not an element of the tuple", sel)
}

func (t Tuple) Elements() []TupleElement { return append([]TupleElement(nil), t.elements...) }
func (t Tuple) Values() []any            { return append([]any(nil), t.values...) }

func (t Tuple) String() string {
	return fmt.Sprint(t.values)
}

// TupleValue returns the value at position i converted to V.
// Example: age, err := criteria.TupleValue[int](row, 1)
func TupleValue[V any](t Tuple, i int) (V, error) {
	var zero V
	if i < 0 || i >= len(t.values) {
		return zero, errorf(ErrorTypeInvalidArgument, "tuple index %d out of range [0, %d)", i, len(t.values))
	}
	rv, err := coerce(t.values[i], reflect.TypeFor[V]())
	if err != nil {
		return zero, NewErrorWithCause(ErrorTypeInvalidArgument, fmt.Sprintf("tuple element %d", i), err)
	}
	return rv.Interface().(V), nil
}

// MapEntry is the value of a map join entry.
type MapEntry struct {
	Key   any
	Value any
}
