package criteria

import (
	"fmt"
	"reflect"
	"time"
)

var (
	anyType      = reflect.TypeOf((*any)(nil)).Elem()
	boolType     = reflect.TypeOf(false)
	stringType   = reflect.TypeOf("")
	intType      = reflect.TypeOf(0)
	int32Type    = reflect.TypeOf(int32(0))
	int64Type    = reflect.TypeOf(int64(0))
	float32Type  = reflect.TypeOf(float32(0))
	float64Type  = reflect.TypeOf(float64(0))
	timeType     = reflect.TypeOf(time.Time{})
	typeType     = reflect.TypeOf((*reflect.Type)(nil)).Elem()
	anySliceType = reflect.TypeOf([]any(nil))
)

func deref(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func isNumeric(t reflect.Type) bool {
	t = deref(t)
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isFloat(t reflect.Type) bool {
	t = deref(t)
	return t != nil && (t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64)
}

func isString(t reflect.Type) bool {
	t = deref(t)
	return t != nil && t.Kind() == reflect.String
}

func isBool(t reflect.Type) bool {
	t = deref(t)
	return t != nil && t.Kind() == reflect.Bool
}

func isCollection(t reflect.Type) bool {
	t = deref(t)
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return t.Elem().Kind() != reflect.Uint8
	}
	return false
}

// unknown reports whether t carries no static type information,
// e.g. a broken path or an untyped parameter.
func unknown(t reflect.Type) bool {
	return t == nil || t.Kind() == reflect.Interface
}

// compatible reports whether values of a and b may be compared with each other.
func compatible(a, b reflect.Type) bool {
	a, b = deref(a), deref(b)
	switch {
	case unknown(a) || unknown(b):
		return true
	case a == b:
		return true
	case isNumeric(a) && isNumeric(b):
		return true
	case a.Kind() == b.Kind() && (a.Kind() == reflect.String || a.Kind() == reflect.Bool):
		return true
	}
	return false
}

// assignable reports whether a value of type from can be stored where to is expected.
func assignable(from, to reflect.Type) bool {
	if unknown(from) || unknown(to) {
		return true
	}
	if from.AssignableTo(to) || deref(from).AssignableTo(deref(to)) {
		return true
	}
	return compatible(from, to) && deref(from).ConvertibleTo(deref(to))
}

// promote returns the type of an arithmetic result over a and b.
func promote(a, b reflect.Type) reflect.Type {
	a, b = deref(a), deref(b)
	switch {
	case unknown(a):
		return b
	case unknown(b), a == b:
		return a
	case isFloat(a) || isFloat(b):
		return float64Type
	}
	return int64Type
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<unknown>"
	}
	return t.String()
}

// coerce converts v into a value of type t, dereferencing or allocating
// pointers and converting between numeric or string kinds.
func coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case rv.Kind() == reflect.Pointer && rv.Type().Elem().AssignableTo(t):
		if rv.IsNil() {
			return reflect.Zero(t), nil
		}
		return rv.Elem(), nil
	case t.Kind() == reflect.Pointer && rv.Type().AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(rv)
		return p, nil
	case compatible(rv.Type(), t) && rv.Type().ConvertibleTo(t):
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", rv.Type(), t)
}
