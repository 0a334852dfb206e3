package criteria

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// =====================================
// Evaluation
// =====================================

// Evaluator computes expressions over Go values with SQL three-valued
// logic: null is nil, and a comparison involving null is null.
// Subqueries and aggregates cannot be evaluated.
type Evaluator struct {
	// Path resolves a path to its current value.
	Path func(p Path) (any, error)

	// Parameter resolves the value bound to a parameter.
	Parameter func(p QueryParameter) (any, error)

	// Now is the clock of CURRENT_DATE and its relatives. Defaults to time.Now.
	Now func() time.Time
}

// Evaluate returns the value of x. Construction errors recorded in x are
// returned unchanged.
// Example: v, err := (&criteria.Evaluator{}).Evaluate(cb.Add(cb.Literal(1), 2))
func (e *Evaluator) Evaluate(x Expression) (any, error) {
	if isNil(x) {
		return nil, errorf(ErrorTypeInvalidArgument, "cannot evaluate a nil expression")
	}
	if err := x.Err(); err != nil {
		return nil, err
	}
	return e.eval(x)
}

// Test reports whether p holds. A null result does not hold.
func (e *Evaluator) Test(p Predicate) (bool, error) {
	v, err := e.Evaluate(p)
	if err != nil {
		return false, err
	}
	return v == true, nil
}

func (e *Evaluator) eval(x Expression) (any, error) {
	switch n := x.(type) {
	case *Literal:
		return normalize(n.value), nil
	case QueryParameter:
		if e.Parameter == nil {
			return nil, errorf(ErrorTypeUnboundParameter, "parameter %s is not bound", paramLabel(n))
		}
		v, err := e.Parameter(n)
		return normalize(v), err
	case Path:
		if e.Path == nil {
			return nil, errorf(ErrorTypeUnsupported, "cannot evaluate path %s without a path resolver", format(n))
		}
		v, err := e.Path(n)
		return normalize(v), err
	case *InPredicate:
		v, err := e.operation(n.test)
		return negate3(v, n.negated), err
	case Predicate:
		return e.predicate(n)
	case *Operation:
		return e.operation(n)
	case *CaseExpression:
		for _, w := range n.whens {
			c, err := e.eval(w.Condition)
			if err != nil {
				return nil, err
			}
			if c == true {
				return e.eval(w.Result)
			}
		}
		return e.evalOptional(n.otherwise)
	case *SimpleCaseExpression:
		subject, err := e.eval(n.subject)
		if err != nil {
			return nil, err
		}
		for _, w := range n.whens {
			v, err := e.eval(w.Condition)
			if err != nil {
				return nil, err
			}
			if eq, err := equal3(subject, v); err != nil {
				return nil, err
			} else if eq == true {
				return e.eval(w.Result)
			}
		}
		return e.evalOptional(n.otherwise)
	case *CoalesceExpression:
		for _, arg := range n.args {
			v, err := e.eval(arg)
			if err != nil || v != nil {
				return v, err
			}
		}
		return nil, nil
	}
	return nil, errorf(ErrorTypeUnsupported, "cannot evaluate %s", format(x))
}

func (e *Evaluator) evalOptional(x Expression) (any, error) {
	if isNil(x) {
		return nil, nil
	}
	return e.eval(x)
}

// predicate folds the children of p: an empty AND is true, an empty OR false.
func (e *Evaluator) predicate(p Predicate) (any, error) {
	and := p.Operator() == BooleanAnd
	var acc any = and
	for _, x := range p.Expressions() {
		v, err := e.eval(x)
		if err != nil {
			return nil, err
		}
		if v != nil {
			if _, ok := v.(bool); !ok {
				return nil, errorf(ErrorTypeInvalidArgument, "%s operand evaluated to %T, not a boolean", p.Operator(), v)
			}
		}
		if and {
			acc = and3(acc, v)
		} else {
			acc = or3(acc, v)
		}
	}
	return negate3(acc, p.IsNegated()), nil
}

func and3(a, b any) any {
	switch {
	case a == false || b == false:
		return false
	case a == nil || b == nil:
		return nil
	}
	return true
}

func or3(a, b any) any {
	switch {
	case a == true || b == true:
		return true
	case a == nil || b == nil:
		return nil
	}
	return false
}

func negate3(v any, negated bool) any {
	if !negated || v == nil {
		return v
	}
	return v != true
}

// =====================================
// Operations
// =====================================

func (e *Evaluator) operation(o *Operation) (any, error) {
	switch o.op {
	case OpExists, OpAll, OpSome, OpAny:
		return nil, errorf(ErrorTypeUnsupported, "cannot evaluate %s over a subquery", o.op)
	case OpCurrentDate, OpCurrentTime, OpCurrentTimestamp, OpLocalDate, OpLocalTime, OpLocalDateTime:
		return e.temporal(o.op), nil
	}
	if o.op.IsAggregate() || o.op == OpGreatest || o.op == OpLeast {
		return nil, errorf(ErrorTypeUnsupported, "cannot evaluate aggregate %s", o.op)
	}

	args := make([]any, len(o.operands))
	for i, x := range o.operands {
		v, err := e.eval(x)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch o.op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return compare3(o.op, args[0], args[1])
	case OpBetween:
		lo, err := compare3(OpGreaterThanOrEqual, args[0], args[1])
		if err != nil {
			return nil, err
		}
		hi, err := compare3(OpLessThanOrEqual, args[0], args[2])
		return and3(lo, hi), err
	case OpIn:
		return in3(args[0], args[1:])
	case OpIsNull:
		return args[0] == nil, nil
	case OpIsTrue:
		return args[0] == true, nil
	case OpIsFalse:
		return args[0] == false, nil
	case OpLike:
		return like3(args)
	case OpIsEmpty:
		n, err := length(args[0])
		return n == 0, err
	case OpSize:
		n, err := length(args[0])
		return int64(n), err
	case OpMemberOf:
		return member3(args[0], args[1])
	case OpNullif:
		eq, err := equal3(args[0], args[1])
		if eq == true {
			return nil, err
		}
		return args[0], err
	case OpType:
		if args[0] == nil {
			return nil, nil
		}
		return reflect.TypeOf(args[0]), nil
	case OpCast, OpAs:
		return convertTo(args[0], o.goType)
	case OpExtract:
		return extract(TemporalField(o.qualifier), args[0])
	}
	for _, v := range args {
		if v == nil {
			return nil, nil
		}
	}
	if isString(o.goType) || o.op == OpLength || o.op == OpLocate {
		return stringOp(o, args)
	}
	return arithmetic(o, args)
}

func (e *Evaluator) temporal(op Operator) time.Time {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	t := now()
	switch op {
	case OpCurrentTimestamp, OpCurrentDate, OpCurrentTime:
		t = t.UTC()
	default:
		t = t.Local()
	}
	switch op {
	case OpCurrentDate, OpLocalDate:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case OpCurrentTime, OpLocalTime:
		return time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	return t
}

// =====================================
// Comparisons
// =====================================

// normalize dereferences pointers and widens numbers to int64, uint64 or float64.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return rv.Interface()
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case float64:
		return int64(x), x == math.Trunc(x)
	}
	return 0, false
}

// compareValues orders two non-null normalized values.
func compareValues(a, b any) (int, error) {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp(x < y, x > y), nil
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmp(!x && y, x && !y), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return cmp(fa < fb, fa > fb), nil
	}
	return 0, errorf(ErrorTypeInvalidArgument, "cannot order %T and %T", a, b)
}

func cmp(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func equal3(a, b any) (any, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	if c, err := compareValues(a, b); err == nil {
		return c == 0, nil
	}
	return reflect.DeepEqual(a, b), nil
}

func compare3(op Operator, a, b any) (any, error) {
	if op == OpEqual || op == OpNotEqual {
		eq, err := equal3(a, b)
		return negate3(eq, op == OpNotEqual), err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	c, err := compareValues(a, b)
	if err != nil {
		return nil, err
	}
	switch op {
	case OpGreaterThan:
		return c > 0, nil
	case OpGreaterThanOrEqual:
		return c >= 0, nil
	case OpLessThan:
		return c < 0, nil
	}
	return c <= 0, nil
}

func in3(x any, values []any) (any, error) {
	if x == nil {
		return nil, nil
	}
	var result any = false
	for _, v := range values {
		eq, err := equal3(x, v)
		if err != nil {
			return nil, err
		}
		result = or3(result, eq)
	}
	return result, nil
}

func like3(args []any) (any, error) {
	for _, v := range args {
		if v == nil {
			return nil, nil
		}
	}
	s, ok1 := args[0].(string)
	pattern, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return nil, errorf(ErrorTypeInvalidArgument, "LIKE operands must be strings")
	}
	var escape rune
	if len(args) > 2 {
		e, _ := args[2].(string)
		if utf8.RuneCountInString(e) != 1 {
			return nil, errorf(ErrorTypeInvalidArgument, "LIKE escape must be a single character, got %q", e)
		}
		escape, _ = utf8.DecodeRuneInString(e)
	}
	re, err := likePattern(pattern, escape)
	if err != nil {
		return nil, err
	}
	return re.MatchString(s), nil
}

// likePattern translates an SQL LIKE pattern into an anchored regexp.
func likePattern(pattern string, escape rune) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case escape != 0 && r == escape:
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		return nil, errorf(ErrorTypeInvalidArgument, "LIKE pattern %q ends with the escape character", pattern)
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func length(v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return 0, errorf(ErrorTypeInvalidArgument, "%T is not a collection", v)
}

func member3(elem, collection any) (any, error) {
	if collection == nil {
		return false, nil
	}
	if elem == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(collection)
	var items []reflect.Value
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			items = append(items, rv.Index(i))
		}
	case reflect.Map:
		items = rv.MapKeys()
	default:
		return nil, errorf(ErrorTypeInvalidArgument, "%T is not a collection", collection)
	}
	var result any = false
	for _, item := range items {
		eq, err := equal3(elem, normalize(item.Interface()))
		if err != nil {
			return nil, err
		}
		result = or3(result, eq)
	}
	return result, nil
}

// =====================================
// Arithmetic and Strings
// =====================================

func arithmetic(o *Operation, args []any) (any, error) {
	integral := !isFloat(o.goType) && isNumeric(o.goType)
	if integral {
		ints := make([]int64, len(args))
		for i, v := range args {
			n, ok := toInt(v)
			if !ok {
				integral = false
				break
			}
			ints[i] = n
		}
		if integral {
			v, ok, err := intOp(o.op, ints)
			if err != nil {
				return nil, err
			}
			if ok {
				return convertTo(v, o.goType)
			}
		}
	}
	floats := make([]float64, len(args))
	for i, v := range args {
		f, ok := toFloat(v)
		if !ok {
			return nil, errorf(ErrorTypeInvalidArgument, "%s: operand %d is %T, not a number", o.op, i, v)
		}
		floats[i] = f
	}
	v, err := floatOp(o.op, floats)
	if err != nil {
		return nil, err
	}
	return convertTo(v, o.goType)
}

func intOp(op Operator, a []int64) (int64, bool, error) {
	switch op {
	case OpNeg:
		return -a[0], true, nil
	case OpAbs:
		if a[0] < 0 {
			return -a[0], true, nil
		}
		return a[0], true, nil
	case OpAdd:
		return a[0] + a[1], true, nil
	case OpSubtract:
		return a[0] - a[1], true, nil
	case OpMultiply:
		return a[0] * a[1], true, nil
	case OpDivide, OpMod:
		if a[1] == 0 {
			return 0, false, errorf(ErrorTypeInvalidArgument, "%s: division by zero", op)
		}
		if op == OpMod {
			return a[0] % a[1], true, nil
		}
		return a[0] / a[1], true, nil
	case OpSign:
		return int64(cmp(a[0] < 0, a[0] > 0)), true, nil
	case OpCeiling, OpFloor, OpRound:
		return a[0], true, nil
	}
	return 0, false, nil
}

func floatOp(op Operator, a []float64) (float64, error) {
	switch op {
	case OpNeg:
		return -a[0], nil
	case OpAbs:
		return math.Abs(a[0]), nil
	case OpAdd:
		return a[0] + a[1], nil
	case OpSubtract:
		return a[0] - a[1], nil
	case OpMultiply:
		return a[0] * a[1], nil
	case OpDivide:
		if a[1] == 0 {
			return 0, errorf(ErrorTypeInvalidArgument, "%s: division by zero", op)
		}
		return a[0] / a[1], nil
	case OpMod:
		return math.Mod(a[0], a[1]), nil
	case OpSqrt:
		return math.Sqrt(a[0]), nil
	case OpSign:
		return float64(cmp(a[0] < 0, a[0] > 0)), nil
	case OpCeiling:
		return math.Ceil(a[0]), nil
	case OpFloor:
		return math.Floor(a[0]), nil
	case OpExp:
		return math.Exp(a[0]), nil
	case OpLn:
		return math.Log(a[0]), nil
	case OpPower:
		return math.Pow(a[0], a[1]), nil
	case OpRound:
		scale := math.Pow(10, a[1])
		return math.Round(a[0]*scale) / scale, nil
	}
	return 0, errorf(ErrorTypeUnsupported, "cannot evaluate %s", op)
}

func stringOp(o *Operation, args []any) (any, error) {
	str := func(i int) (string, error) {
		s, ok := args[i].(string)
		if !ok {
			return "", errorf(ErrorTypeInvalidArgument, "%s: operand %d is %T, not a string", o.op, i, args[i])
		}
		return s, nil
	}
	num := func(i int) (int, error) {
		n, ok := toInt(args[i])
		if !ok {
			return 0, errorf(ErrorTypeInvalidArgument, "%s: operand %d is %T, not an integer", o.op, i, args[i])
		}
		return int(n), nil
	}

	if o.op == OpConcat {
		var b strings.Builder
		for i := range args {
			s, err := str(i)
			if err != nil {
				return nil, err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	}

	s, err := str(0)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	switch o.op {
	case OpLower:
		return strings.ToLower(s), nil
	case OpUpper:
		return strings.ToUpper(s), nil
	case OpLength:
		return int64(len(runes)), nil
	case OpTrim:
		c, err := str(1)
		if err != nil {
			return nil, err
		}
		switch TrimSpec(o.qualifier) {
		case TrimLeading:
			return strings.TrimLeft(s, c), nil
		case TrimTrailing:
			return strings.TrimRight(s, c), nil
		}
		return strings.Trim(s, c), nil
	case OpSubstring:
		from, err := num(1)
		if err != nil {
			return nil, err
		}
		end := len(runes)
		if len(args) > 2 {
			n, err := num(2)
			if err != nil {
				return nil, err
			}
			end = min(from-1+n, len(runes))
		}
		start := max(from-1, 0)
		if start >= end {
			return "", nil
		}
		return string(runes[start:end]), nil
	case OpLocate:
		pattern, err := str(1)
		if err != nil {
			return nil, err
		}
		start := 0
		if len(args) > 2 {
			from, err := num(2)
			if err != nil {
				return nil, err
			}
			start = max(from-1, 0)
		}
		if start > len(runes) {
			return int64(0), nil
		}
		i := strings.Index(string(runes[start:]), pattern)
		if i < 0 {
			return int64(0), nil
		}
		return int64(start + utf8.RuneCountInString(string(runes[start:])[:i]) + 1), nil
	case OpLeft, OpRight:
		n, err := num(1)
		if err != nil {
			return nil, err
		}
		n = min(max(n, 0), len(runes))
		if o.op == OpLeft {
			return string(runes[:n]), nil
		}
		return string(runes[len(runes)-n:]), nil
	case OpReplace:
		pattern, err := str(1)
		if err != nil {
			return nil, err
		}
		replacement, err := str(2)
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(s, pattern, replacement), nil
	case OpFunction:
		return nil, errorf(ErrorTypeUnsupported, "cannot evaluate database function %q", o.function)
	}
	return nil, errorf(ErrorTypeUnsupported, "cannot evaluate %s", o.op)
}

// convertTo converts a normalized value to t, parsing strings into numbers
// and formatting values as strings when needed.
func convertTo(v any, t reflect.Type) (any, error) {
	if v == nil || unknown(t) {
		return v, nil
	}
	t = deref(t)
	switch {
	case isString(t):
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case isNumeric(t):
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, NewErrorWithCause(ErrorTypeInvalidArgument, fmt.Sprintf("cannot convert %q to %s", s, t), err)
			}
			v = f
		}
		if f, ok := v.(float64); ok && !isFloat(t) {
			v = math.Trunc(f)
		}
	}
	rv, err := coerce(v, t)
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeInvalidArgument, "conversion failed", err)
	}
	return normalize(rv.Interface()), nil
}

func extract(field TemporalField, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.(time.Time)
	if !ok {
		return nil, errorf(ErrorTypeInvalidArgument, "EXTRACT: %T is not a time", v)
	}
	switch field {
	case FieldYear:
		return int64(t.Year()), nil
	case FieldQuarter:
		return int64((int(t.Month())-1)/3 + 1), nil
	case FieldMonth:
		return int64(t.Month()), nil
	case FieldWeek:
		_, week := t.ISOWeek()
		return int64(week), nil
	case FieldDay:
		return int64(t.Day()), nil
	case FieldHour:
		return int64(t.Hour()), nil
	case FieldMinute:
		return int64(t.Minute()), nil
	case FieldSecond:
		return int64(t.Second()), nil
	case FieldDate:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
	case FieldTime:
		return time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()), nil
	}
	return nil, errorf(ErrorTypeInvalidArgument, "EXTRACT: unknown field %q", field)
}
