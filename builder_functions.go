package criteria

import (
	"reflect"
)

// =====================================
// Arithmetic
// =====================================

func requireNumeric(o *Operation) {
	for i, x := range o.operands {
		if !isNil(x) && !unknown(x.Type()) && !isNumeric(x.Type()) {
			o.record(errorf(ErrorTypeInvalidArgument, "%s: operand %d must be numeric, got %s", o.op, i, typeName(x.Type())))
		}
	}
}

// function builds an operation over converted args.
func (cb *Builder) function(goType reflect.Type, op Operator, args ...any) *Operation {
	o := newOperation(goType, op)
	for _, arg := range args {
		o.operands = append(o.operands, operand(&o.node, arg))
	}
	return o
}

// numeric builds an arithmetic operation whose type is resultType applied
// to the operand types.
func (cb *Builder) numeric(op Operator, resultType func(...reflect.Type) reflect.Type, args ...any) Expression {
	o := cb.function(nil, op, args...)
	requireNumeric(o)
	types := make([]reflect.Type, 0, len(o.operands))
	for _, x := range o.operands {
		types = append(types, x.Type())
	}
	o.goType = resultType(types...)
	return o
}

func sameAsFirst(types ...reflect.Type) reflect.Type { return deref(types[0]) }
func promoted(types ...reflect.Type) reflect.Type    { return promote(types[0], types[1]) }
func asFloat64(...reflect.Type) reflect.Type         { return float64Type }
func asInt(...reflect.Type) reflect.Type             { return intType }

// Neg negates a number.
func (cb *Builder) Neg(x Expression) Expression { return cb.numeric(OpNeg, sameAsFirst, x) }

// Abs returns the absolute value of a number.
func (cb *Builder) Abs(x Expression) Expression { return cb.numeric(OpAbs, sameAsFirst, x) }

// Add returns x + y. Either side may be a Go value.
// Example: cb.Add(root.Get("age"), 1)
func (cb *Builder) Add(x, y any) Expression { return cb.numeric(OpAdd, promoted, x, y) }

// Subtract returns x - y.
func (cb *Builder) Subtract(x, y any) Expression { return cb.numeric(OpSubtract, promoted, x, y) }

// Multiply returns x * y.
func (cb *Builder) Multiply(x, y any) Expression { return cb.numeric(OpMultiply, promoted, x, y) }

// Divide returns x / y. Integer operands divide as integers.
func (cb *Builder) Divide(x, y any) Expression { return cb.numeric(OpDivide, promoted, x, y) }

// Mod returns the remainder of integer division.
func (cb *Builder) Mod(x, y any) Expression {
	o := cb.numeric(OpMod, promoted, x, y).(*Operation)
	for i, x := range o.operands {
		if isFloat(x.Type()) {
			o.record(errorf(ErrorTypeInvalidArgument, "MOD: operand %d must be an integer, got %s", i, typeName(x.Type())))
		}
	}
	return o
}

// Sqrt returns the square root of a number as a float64.
func (cb *Builder) Sqrt(x Expression) Expression { return cb.numeric(OpSqrt, asFloat64, x) }

// Sign returns -1, 0 or 1.
func (cb *Builder) Sign(x Expression) Expression { return cb.numeric(OpSign, asInt, x) }

// Ceiling rounds up to the nearest integer value.
func (cb *Builder) Ceiling(x Expression) Expression { return cb.numeric(OpCeiling, sameAsFirst, x) }

// Floor rounds down to the nearest integer value.
func (cb *Builder) Floor(x Expression) Expression { return cb.numeric(OpFloor, sameAsFirst, x) }

// Exp returns e raised to x.
func (cb *Builder) Exp(x Expression) Expression { return cb.numeric(OpExp, asFloat64, x) }

// Ln returns the natural logarithm of x.
func (cb *Builder) Ln(x Expression) Expression { return cb.numeric(OpLn, asFloat64, x) }

// Power returns x raised to y.
func (cb *Builder) Power(x Expression, y any) Expression { return cb.numeric(OpPower, asFloat64, x, y) }

// Round rounds x to n decimal places.
func (cb *Builder) Round(x Expression, n int) Expression {
	return cb.numeric(OpRound, sameAsFirst, x, n)
}

// =====================================
// Conversions
// =====================================

func (cb *Builder) cast(x Expression, to reflect.Type) Expression {
	o := newOperation(to, OpCast, x)
	o.qualifier = to.String()
	if !isNil(x) && !unknown(x.Type()) && !isNumeric(x.Type()) && !isString(x.Type()) {
		o.record(errorf(ErrorTypeInvalidArgument, "CAST: cannot convert %s to %s", typeName(x.Type()), to))
	}
	return o
}

// ToInt64 converts a number or numeric string to int64.
func (cb *Builder) ToInt64(x Expression) Expression { return cb.cast(x, int64Type) }

// ToInt32 converts a number or numeric string to int32.
func (cb *Builder) ToInt32(x Expression) Expression { return cb.cast(x, int32Type) }

// ToFloat64 converts a number or numeric string to float64.
func (cb *Builder) ToFloat64(x Expression) Expression { return cb.cast(x, float64Type) }

// ToFloat32 converts a number or numeric string to float32.
func (cb *Builder) ToFloat32(x Expression) Expression { return cb.cast(x, float32Type) }

// ToString converts a number to its decimal string form.
func (cb *Builder) ToString(x Expression) Expression { return cb.cast(x, stringType) }

// As retypes x without converting it. t may be a reflect.Type or a sample value.
func (cb *Builder) As(x Expression, t any) Expression {
	to := typeArg(t)
	o := newOperation(to, OpAs, x)
	if to == nil {
		o.record(errorf(ErrorTypeInvalidArgument, "AS: target type must not be nil"))
	} else {
		o.qualifier = to.String()
	}
	return o
}

// =====================================
// Aggregates
// =====================================

// Avg returns the mean of a numeric expression as a float64.
func (cb *Builder) Avg(x Expression) Expression { return cb.numeric(OpAvg, asFloat64, x) }

// Sum returns the sum of a numeric expression: float64 for floats, int64 otherwise.
func (cb *Builder) Sum(x Expression) Expression {
	return cb.numeric(OpSum, func(types ...reflect.Type) reflect.Type {
		switch {
		case unknown(types[0]):
			return types[0]
		case isFloat(types[0]):
			return float64Type
		}
		return int64Type
	}, x)
}

// Max returns the greatest value of a numeric expression.
func (cb *Builder) Max(x Expression) Expression { return cb.numeric(OpMax, sameAsFirst, x) }

// Min returns the least value of a numeric expression.
func (cb *Builder) Min(x Expression) Expression { return cb.numeric(OpMin, sameAsFirst, x) }

// Greatest returns the greatest value of any ordered expression.
func (cb *Builder) Greatest(x Expression) Expression { return cb.ordered(OpGreatest, x) }

// Least returns the least value of any ordered expression.
func (cb *Builder) Least(x Expression) Expression { return cb.ordered(OpLeast, x) }

func (cb *Builder) ordered(op Operator, x Expression) Expression {
	o := newOperation(nil, op, x)
	if !isNil(x) {
		o.goType = deref(x.Type())
		if !isOrdered(x.Type()) {
			o.record(errorf(ErrorTypeInvalidArgument, "%s: %s values are not ordered", op, typeName(x.Type())))
		}
	}
	return o
}

// Count counts non-null values of x.
// Example: cb.Count(root)
func (cb *Builder) Count(x Expression) Expression { return newOperation(int64Type, OpCount, x) }

// CountDistinct counts distinct non-null values of x.
func (cb *Builder) CountDistinct(x Expression) Expression {
	return newOperation(int64Type, OpCountDistinct, x)
}

// =====================================
// Strings
// =====================================

func (cb *Builder) text(goType reflect.Type, op Operator, stringArgs int, args ...any) *Operation {
	o := cb.function(goType, op, args...)
	for i, x := range o.operands {
		if i >= stringArgs {
			if !unknown(x.Type()) && !isNumeric(x.Type()) {
				o.record(errorf(ErrorTypeInvalidArgument, "%s: operand %d must be numeric, got %s", op, i, typeName(x.Type())))
			}
			continue
		}
		if !unknown(x.Type()) && !isString(x.Type()) {
			o.record(errorf(ErrorTypeInvalidArgument, "%s: operand %d must be a string, got %s", op, i, typeName(x.Type())))
		}
	}
	return o
}

// Concat joins strings. At least two parts are required.
// Example: cb.Concat(root.Get("first"), " ", root.Get("last"))
func (cb *Builder) Concat(parts ...any) Expression {
	o := cb.text(stringType, OpConcat, len(parts), parts...)
	if len(parts) < 2 {
		o.record(errorf(ErrorTypeInvalidArgument, "CONCAT: at least two parts are required, got %d", len(parts)))
	}
	return o
}

// Substring returns the part of x starting at the 1-based position from,
// optionally limited to length characters.
func (cb *Builder) Substring(x Expression, from any, length ...any) Expression {
	args := append([]any{x, from}, length...)
	o := cb.text(stringType, OpSubstring, 1, args...)
	if len(length) > 1 {
		o.record(errorf(ErrorTypeInvalidArgument, "SUBSTRING: at most one length may be given"))
	}
	return o
}

// Trim removes blanks from x, from both ends unless spec says otherwise.
func (cb *Builder) Trim(x Expression, spec ...TrimSpec) Expression {
	return cb.TrimChars(trimSpecOf(spec), " ", x)
}

// TrimChars removes the character c from x on the sides selected by spec.
// c may be a rune, a one-character string or an Expression.
// Example: cb.TrimChars(criteria.TrimLeading, '0', root.Get("code"))
func (cb *Builder) TrimChars(spec TrimSpec, c any, x Expression) Expression {
	o := cb.text(stringType, OpTrim, 2, x, escapeArg(c))
	o.qualifier = string(spec)
	switch spec {
	case TrimLeading, TrimTrailing, TrimBoth:
	default:
		o.record(errorf(ErrorTypeInvalidArgument, "TRIM: unknown trim spec %q", spec))
	}
	if s, ok := escapeArg(c).(string); ok && len([]rune(s)) != 1 {
		o.record(errorf(ErrorTypeInvalidArgument, "TRIM: trim character must be a single character, got %q", s))
	}
	return o
}

func trimSpecOf(spec []TrimSpec) TrimSpec {
	if len(spec) == 0 {
		return TrimBoth
	}
	return spec[0]
}

// Lower converts x to lower case.
func (cb *Builder) Lower(x Expression) Expression { return cb.text(stringType, OpLower, 1, x) }

// Upper converts x to upper case.
func (cb *Builder) Upper(x Expression) Expression { return cb.text(stringType, OpUpper, 1, x) }

// Length returns the number of characters of x.
func (cb *Builder) Length(x Expression) Expression { return cb.text(intType, OpLength, 1, x) }

// Locate returns the 1-based position of pattern in x, 0 when absent.
// The search starts at the optional 1-based position from.
func (cb *Builder) Locate(x Expression, pattern any, from ...any) Expression {
	args := append([]any{x, pattern}, from...)
	o := cb.text(intType, OpLocate, 2, args...)
	if len(from) > 1 {
		o.record(errorf(ErrorTypeInvalidArgument, "LOCATE: at most one start position may be given"))
	}
	return o
}

// Left returns the first n characters of x.
func (cb *Builder) Left(x Expression, n any) Expression { return cb.text(stringType, OpLeft, 1, x, n) }

// Right returns the last n characters of x.
func (cb *Builder) Right(x Expression, n any) Expression { return cb.text(stringType, OpRight, 1, x, n) }

// Replace replaces every occurrence of pattern in x.
func (cb *Builder) Replace(x Expression, pattern, replacement any) Expression {
	return cb.text(stringType, OpReplace, 3, x, pattern, replacement)
}

// =====================================
// Date and Time
// =====================================

// CurrentDate is the database's current date.
func (cb *Builder) CurrentDate() Expression { return newOperation(timeType, OpCurrentDate) }

// CurrentTime is the database's current time of day.
func (cb *Builder) CurrentTime() Expression { return newOperation(timeType, OpCurrentTime) }

// CurrentTimestamp is the database's current instant.
func (cb *Builder) CurrentTimestamp() Expression { return newOperation(timeType, OpCurrentTimestamp) }

// LocalDate is the current date without zone.
func (cb *Builder) LocalDate() Expression { return newOperation(timeType, OpLocalDate) }

// LocalTime is the current time of day without zone.
func (cb *Builder) LocalTime() Expression { return newOperation(timeType, OpLocalTime) }

// LocalDateTime is the current date and time without zone.
func (cb *Builder) LocalDateTime() Expression { return newOperation(timeType, OpLocalDateTime) }

// Extract returns one field of a date or time. DATE and TIME yield a
// time.Time, the other fields an int.
// Example: cb.Extract(criteria.FieldYear, root.Get("createdAt"))
func (cb *Builder) Extract(field TemporalField, x Expression) Expression {
	goType := intType
	if field == FieldDate || field == FieldTime {
		goType = timeType
	}
	o := newOperation(goType, OpExtract, x)
	o.qualifier = string(field)
	switch field {
	case FieldYear, FieldQuarter, FieldMonth, FieldWeek, FieldDay,
		FieldHour, FieldMinute, FieldSecond, FieldDate, FieldTime:
	default:
		o.record(errorf(ErrorTypeInvalidArgument, "EXTRACT: unknown field %q", field))
	}
	if !isNil(x) && !unknown(x.Type()) && deref(x.Type()) != timeType {
		o.record(errorf(ErrorTypeInvalidArgument, "EXTRACT: %s is not a date or time", typeName(x.Type())))
	}
	return o
}

// =====================================
// Case, Coalesce and Functions
// =====================================

// SelectCase starts a searched case expression.
// Example: cb.SelectCase().When(cb.Gt(age, 17), "adult").Otherwise("minor")
func (cb *Builder) SelectCase() *CaseExpression {
	c := &CaseExpression{}
	c.init(c, KindCase, nil)
	return c
}

// SelectCaseOn starts a simple case expression comparing subject.
func (cb *Builder) SelectCaseOn(subject Expression) *SimpleCaseExpression {
	c := &SimpleCaseExpression{subject: subject}
	c.init(c, KindSimpleCase, nil)
	if isNil(subject) {
		c.record(errorf(ErrorTypeInvalidArgument, "case subject must not be nil"))
		c.subject = newNullLiteral(nil)
	}
	return c
}

// Coalesce starts a coalesce expression over args; more may be added with Value.
// Example: cb.Coalesce(root.Get("nickname"), root.Get("name"))
func (cb *Builder) Coalesce(args ...any) *CoalesceExpression {
	c := &CoalesceExpression{}
	c.init(c, KindCoalesce, nil)
	for _, arg := range args {
		c.Value(arg)
	}
	return c
}

// Nullif returns null when x equals y, x otherwise.
func (cb *Builder) Nullif(x Expression, y any) Expression {
	o := cb.function(nil, OpNullif, x, y)
	if !isNil(x) {
		o.goType = x.Type()
	}
	requireComparable(o, false)
	return o
}

// Function calls a database function by name. t is the result type as a
// reflect.Type or a sample value.
// Example: cb.Function("soundex", "", root.Get("name"))
func (cb *Builder) Function(name string, t any, args ...any) Expression {
	o := cb.function(typeArg(t), OpFunction, args...)
	o.function = name
	if name == "" {
		o.record(errorf(ErrorTypeInvalidArgument, "FUNCTION: name must not be empty"))
	}
	return o
}
