package criteria

import (
	"fmt"
	"reflect"
)

// =====================================
// Result Shaping
// =====================================

// Leaves returns the selections a provider produces one column for, depth
// first. A selection that is not compound is its own single leaf.
func Leaves(sel Selection) []Selection {
	if isNil(sel) {
		return nil
	}
	if !sel.IsCompound() {
		return []Selection{sel}
	}
	var out []Selection
	for _, item := range sel.Items() {
		out = append(out, Leaves(item)...)
	}
	return out
}

// shapeRow builds the value sel produces from one provider row.
func shapeRow(sel Selection, row []any) (any, error) {
	v, rest, err := shape(sel, row)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, errorf(ErrorTypeProvider, "row has %d more columns than the selection", len(rest))
	}
	return v, nil
}

func shape(sel Selection, row []any) (any, []any, error) {
	if !sel.IsCompound() {
		if len(row) == 0 {
			return nil, nil, errorf(ErrorTypeProvider, "row has fewer columns than the selection")
		}
		return row[0], row[1:], nil
	}
	c := sel.(*CompoundSelection)
	values := make([]any, len(c.items))
	for i, item := range c.items {
		v, rest, err := shape(item, row)
		if err != nil {
			return nil, nil, err
		}
		values[i], row = v, rest
	}

	switch c.compound {
	case CompoundTuple:
		elements := make([]TupleElement, len(c.items))
		for i, item := range c.items {
			elements[i] = TupleElement{Alias: item.AliasName(), Type: item.Type(), Selection: item}
		}
		return Tuple{elements: elements, values: values}, row, nil
	case CompoundArray:
		return values, row, nil
	}
	v, err := construct(c, values)
	return v, row, err
}

// construct calls the constructor of c, or assigns the exported fields of
// its struct type in order.
func construct(c *CompoundSelection, values []any) (any, error) {
	if c.ctor.IsValid() {
		t := c.ctor.Type()
		args := make([]reflect.Value, len(values))
		for i, v := range values {
			arg, err := coerce(v, t.In(i))
			if err != nil {
				return nil, NewErrorWithCause(ErrorTypeInvalidArgument, fmt.Sprintf("constructor argument %d", i), err)
			}
			args[i] = arg
		}
		out := c.ctor.Call(args)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, NewErrorWithCause(ErrorTypeInvalidArgument, "constructor failed", out[1].Interface().(error))
		}
		return out[0].Interface(), nil
	}

	rv := reflect.New(c.goType).Elem()
	for i, f := range exportedFields(c.goType) {
		fv, err := coerce(values[i], f.Type)
		if err != nil {
			return nil, NewErrorWithCause(ErrorTypeInvalidArgument, fmt.Sprintf("field %s", f.Name), err)
		}
		rv.FieldByIndex(f.Index).Set(fv)
	}
	return rv.Interface(), nil
}

// convertResult converts a shaped value into a row of type T.
func convertResult[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if r, ok := v.(T); ok {
		return r, nil
	}
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Interface {
		return zero, errorf(ErrorTypeInvalidArgument, "%T does not implement %s", v, t)
	}
	rv, err := coerce(v, t)
	if err != nil {
		return zero, NewErrorWithCause(ErrorTypeInvalidArgument, "cannot convert result", err)
	}
	return rv.Interface().(T), nil
}

// nativeRow is the value of a native query row: the bare value when the row
// has a single column, the whole row otherwise.
func nativeRow(row []any) any {
	if len(row) == 1 {
		return row[0]
	}
	return row
}
