package criteria

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowEvaluator resolves paths by their rendered form.
func rowEvaluator(values map[string]any) *Evaluator {
	return &Evaluator{
		Path: func(p Path) (any, error) {
			return values[p.String()], nil
		},
	}
}

func TestThreeValuedLogic(t *testing.T) {
	cb := testBuilder(t)
	e := &Evaluator{}

	yes := cb.Equal(cb.Literal(1), 1)
	no := cb.Equal(cb.Literal(1), 2)
	unknown := cb.Equal(cb.NullLiteral(0), 1)

	tests := []struct {
		name string
		pred Predicate
		want any
	}{
		{"null comparison", unknown, nil},
		{"not null", cb.Not(unknown), nil},
		{"false and null", cb.And(no, unknown), false},
		{"true and null", cb.And(yes, unknown), nil},
		{"true or null", cb.Or(yes, unknown), true},
		{"false or null", cb.Or(no, unknown), nil},
		{"not equal", cb.NotEqual(cb.Literal("a"), "b"), true},
		{"is null", cb.IsNull(cb.NullLiteral("")), true},
		{"is not null", cb.IsNotNull(cb.Literal("x")), true},
		{"between", cb.Between(cb.Literal(5), 1, 10), true},
		{"between null bound", cb.Between(cb.Literal(5), cb.NullLiteral(0), 3), false},
		{"in", cb.In(cb.Literal("a"), "b", "a"), true},
		{"in with null", cb.In(cb.Literal("c"), "a", cb.NullLiteral("")), nil},
		{"not in", cb.NotIn(cb.Literal("c"), "a", "b"), true},
		{"mixed numbers", cb.Lt(cb.Literal(1), 1.5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	held, err := e.Test(unknown)
	require.NoError(t, err)
	assert.False(t, held, "null does not hold")
}

func TestLikeEvaluation(t *testing.T) {
	cb := testBuilder(t)
	e := &Evaluator{}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"prefix", cb.Like(cb.Literal("Alice"), "A%"), true},
		{"single char", cb.Like(cb.Literal("Alice"), "A_ice"), true},
		{"anchored", cb.Like(cb.Literal("Alice"), "lic"), false},
		{"regexp meta", cb.Like(cb.Literal("a.c"), "a.c"), true},
		{"regexp meta literal", cb.Like(cb.Literal("abc"), "a.c"), false},
		{"escaped percent", cb.Like(cb.Literal("100%"), `100\%`, `\`), true},
		{"escaped percent no match", cb.Like(cb.Literal("1000"), `100\%`, `\`), false},
		{"rune escape", cb.Like(cb.Literal("a_b"), "a!_b", '!'), true},
		{"not like", cb.NotLike(cb.Literal("Bob"), "A%"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Test(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := e.Evaluate(cb.Like(cb.Literal("a"), `a\`, `\`))
	assert.True(t, IsInvalidArgument(err))
	_, err = e.Evaluate(cb.Like(cb.Literal("a"), "a", "ab"))
	assert.True(t, IsInvalidArgument(err))
}

func TestArithmeticEvaluation(t *testing.T) {
	cb := testBuilder(t)
	e := &Evaluator{}

	tests := []struct {
		name string
		expr Expression
		want any
	}{
		{"integer add", cb.Add(cb.Literal(1), 2), int64(3)},
		{"integer divide truncates", cb.Divide(cb.Literal(7), 2), int64(3)},
		{"float divide", cb.Divide(cb.Literal(7.0), 2), 3.5},
		{"mixed multiply", cb.Multiply(cb.Literal(2), 1.5), 3.0},
		{"mod", cb.Mod(cb.Literal(7), 3), int64(1)},
		{"neg", cb.Neg(cb.Literal(4)), int64(-4)},
		{"abs", cb.Abs(cb.Literal(-4)), int64(4)},
		{"sqrt", cb.Sqrt(cb.Literal(16)), 4.0},
		{"power", cb.Power(cb.Literal(2), 10), 1024.0},
		{"round", cb.Round(cb.Literal(2.346), 2), 2.35},
		{"null operand", cb.Add(cb.NullLiteral(0), 1), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr)
			require.NoError(t, err)
			if f, ok := tt.want.(float64); ok {
				assert.InDelta(t, f, got, 1e-9)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := e.Evaluate(cb.Divide(cb.Literal(1), 0))
	assert.True(t, IsInvalidArgument(err), "got %v", err)
	_, err = e.Evaluate(cb.Divide(cb.Literal(1.0), 0))
	assert.True(t, IsInvalidArgument(err), "got %v", err)
}

func TestStringEvaluation(t *testing.T) {
	cb := testBuilder(t)
	e := &Evaluator{}
	name := cb.Literal("Alice")

	tests := []struct {
		name string
		expr Expression
		want any
	}{
		{"concat", cb.Concat(name, " ", "Smith"), "Alice Smith"},
		{"substring", cb.Substring(name, 2, 3), "lic"},
		{"substring to end", cb.Substring(name, 3), "ice"},
		{"lower", cb.Lower(name), "alice"},
		{"upper", cb.Upper(name), "ALICE"},
		{"length", cb.Length(name), int64(5)},
		{"locate", cb.Locate(name, "ic"), int64(3)},
		{"locate missing", cb.Locate(name, "z"), int64(0)},
		{"trim", cb.Trim(cb.Literal("  x  ")), "x"},
		{"trim leading", cb.Trim(cb.Literal("  x  "), TrimLeading), "x  "},
		{"left", cb.Left(name, 2), "Al"},
		{"right", cb.Right(name, 3), "ice"},
		{"replace", cb.Replace(name, "ice", "an"), "Alan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionalEvaluation(t *testing.T) {
	cb := testBuilder(t)
	e := &Evaluator{}

	age := cb.Literal(10)
	searched := cb.SelectCase().
		When(cb.Lt(age, 18), "minor").
		Otherwise("adult")
	v, err := e.Evaluate(searched)
	require.NoError(t, err)
	assert.Equal(t, "minor", v)

	simple := cb.SelectCaseOn(cb.Literal(2)).When(1, "one").When(2, "two")
	v, err = e.Evaluate(simple)
	require.NoError(t, err)
	assert.Equal(t, "two", v)

	unmatched := cb.SelectCaseOn(cb.Literal(3)).When(1, "one")
	v, err = e.Evaluate(unmatched)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = e.Evaluate(cb.Coalesce(cb.NullLiteral(""), "fallback", "later"))
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	v, err = e.Evaluate(cb.Nullif(cb.Literal(3), 3))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = e.Evaluate(cb.Nullif(cb.Literal(3), 4))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestCastEvaluation(t *testing.T) {
	cb := testBuilder(t)
	e := &Evaluator{}

	v, err := e.Evaluate(cb.ToString(cb.Literal(42)))
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	v, err = e.Evaluate(cb.ToInt64(cb.Literal("12")))
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	v, err = e.Evaluate(cb.ToInt64(cb.Literal(9.7)))
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)

	_, err = e.Evaluate(cb.ToInt64(cb.Literal("twelve")))
	assert.True(t, IsInvalidArgument(err))

	assert.True(t, IsInvalidArgument(cb.ToString(cb.Literal(true)).Err()))
}

func TestTemporalEvaluation(t *testing.T) {
	cb := testBuilder(t)
	now := time.Date(2024, time.May, 17, 13, 45, 30, 0, time.UTC)
	e := &Evaluator{Now: func() time.Time { return now }}

	v, err := e.Evaluate(cb.CurrentDate())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.May, 17, 0, 0, 0, 0, time.UTC), v)

	v, err = e.Evaluate(cb.CurrentTimestamp())
	require.NoError(t, err)
	assert.Equal(t, now, v)

	v, err = e.Evaluate(cb.Extract(FieldYear, cb.Literal(now)))
	require.NoError(t, err)
	assert.Equal(t, int64(2024), v)

	v, err = e.Evaluate(cb.Extract(FieldQuarter, cb.Literal(now)))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestPathEvaluation(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})
	alice := people()[0]

	e := rowEvaluator(map[string]any{
		"Person.name":  alice.Name,
		"Person.email": alice.Email,
		"Person.tags":  alice.Tags,
	})

	held, err := e.Test(cb.IsMember("admin", p.Get("tags")))
	require.NoError(t, err)
	assert.True(t, held)

	held, err = e.Test(cb.IsEmpty(p.Get("tags")))
	require.NoError(t, err)
	assert.False(t, held)

	size, err := e.Evaluate(cb.Size(p.Get("tags")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	email, err := e.Evaluate(cb.Coalesce(p.Get("email"), "none"))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	bob := rowEvaluator(map[string]any{"Person.email": (*string)(nil)})
	email, err = bob.Evaluate(cb.Coalesce(p.Get("email"), "none"))
	require.NoError(t, err)
	assert.Equal(t, "none", email)
}

func TestEvaluationErrors(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})
	e := &Evaluator{}

	_, err := e.Evaluate(cb.Equal(p.Get("name"), "Alice"))
	assert.True(t, IsUnsupported(err), "paths need a resolver")

	_, err = e.Evaluate(cb.Equal(cb.Literal("a"), Param[string]("name")))
	assert.True(t, IsUnboundParameter(err))

	_, err = e.Evaluate(cb.Count(p))
	assert.True(t, IsUnsupported(err))

	_, err = e.Evaluate(cb.Function("soundex", "", cb.Literal("x")))
	assert.True(t, IsUnsupported(err))

	_, err = e.Evaluate(cb.Equal(cb.Literal("a"), 1))
	assert.True(t, IsInvalidArgument(err), "construction errors are returned")

	_, err = e.Evaluate(nil)
	assert.True(t, IsInvalidArgument(err))
}
