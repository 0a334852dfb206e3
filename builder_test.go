package criteria

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonByName(t *testing.T) {
	cb := testBuilder(t)

	q := CreateQuery[Person](cb)
	p := q.From(Person{})
	q.Select(p).Where(cb.Equal(p.Get("name"), "Alice"))

	require.NoError(t, q.Err())

	where := q.Restriction()
	require.NotNil(t, where)
	assert.Equal(t, BooleanAnd, where.Operator())
	assert.False(t, where.IsNegated())
	require.Len(t, where.Expressions(), 1)
	eq, ok := where.Expressions()[0].(*Operation)
	require.True(t, ok)
	assert.Equal(t, OpEqual, eq.Operator())
	operands := eq.Operands()
	require.Len(t, operands, 2)
	name, ok := operands[0].(Path)
	require.True(t, ok)
	assert.Equal(t, "name", name.Attribute().Name())
	assert.Same(t, p, name.ParentPath())
	alice, ok := operands[1].(*Literal)
	require.True(t, ok)
	assert.Equal(t, "Alice", alice.Value())

	assert.Equal(t, `(= Person.name "Alice")`, q.Restriction().String())
	assert.Equal(t, `(query (select Person) (from Person) (where (= Person.name "Alice")))`, q.String())
	assert.Equal(t, reflect.TypeFor[Person](), q.ResultType())
	assert.Same(t, p, q.Selection())
	require.Len(t, q.Roots(), 1)
	assert.Same(t, p, q.Roots()[0])
}

func TestLiteralRejectsNil(t *testing.T) {
	cb := testBuilder(t)

	l := cb.Literal(nil)
	assert.True(t, IsInvalidArgument(l.Err()))

	null := cb.NullLiteral("")
	require.NoError(t, null.Err())
	assert.True(t, null.IsNull())
	assert.Equal(t, reflect.TypeFor[string](), null.Type())
}

func TestEmptyJunctions(t *testing.T) {
	cb := testBuilder(t)
	e := &Evaluator{}

	and := cb.And()
	assert.Equal(t, BooleanAnd, and.Operator())
	assert.Empty(t, and.Expressions())
	ok, err := e.Test(and)
	require.NoError(t, err)
	assert.True(t, ok)

	or := cb.Or()
	assert.Equal(t, BooleanOr, or.Operator())
	ok, err = e.Test(or)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, BooleanAnd, cb.Conjunction().Operator())
	assert.Equal(t, BooleanOr, cb.Disjunction().Operator())
}

func TestJunctionIdentity(t *testing.T) {
	cb := testBuilder(t)
	e := &Evaluator{}

	for _, p := range []Predicate{
		cb.Equal(cb.Literal(1), 1),
		cb.Equal(cb.Literal(1), 2),
		cb.Equal(cb.NullLiteral(0), 1),
	} {
		want, err := e.Evaluate(p)
		require.NoError(t, err)

		got, err := e.Evaluate(cb.And(p, cb.Conjunction()))
		require.NoError(t, err)
		assert.Equal(t, want, got, p.String())

		got, err = e.Evaluate(cb.Or(p, cb.Disjunction()))
		require.NoError(t, err)
		assert.Equal(t, want, got, p.String())
	}
}

func TestNotTogglesNegation(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})

	base := cb.Equal(p.Get("name"), "Alice")
	negated := cb.Not(base)
	twice := cb.Not(negated)

	assert.False(t, base.IsNegated())
	assert.True(t, negated.IsNegated())
	assert.False(t, twice.IsNegated())
	assert.NotSame(t, base, negated)
	assert.Equal(t, base.Expressions(), negated.Expressions())
	assert.Equal(t, `(not (= Person.name "Alice"))`, negated.String())
	assert.Equal(t, base.String(), twice.String())
}

func TestNotOfBooleanPath(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})

	n := cb.Not(p.Get("active"))
	require.NoError(t, n.Err())
	assert.True(t, n.IsNegated())
	assert.Len(t, n.Expressions(), 1)
}

func TestAliasFirstWins(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})

	name := p.Get("name")
	name.Alias("n")
	name.Alias("n")
	require.NoError(t, name.Err())
	assert.Equal(t, "n", name.AliasName())

	name.Alias("other")
	assert.Equal(t, "n", name.AliasName())
	assert.True(t, IsInvalidState(name.Err()))

	assert.True(t, IsInvalidArgument(p.Get("age").Alias("").Err()))
}

func TestComparisonTypeChecks(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})

	tests := []struct {
		name  string
		pred  Predicate
		valid bool
	}{
		{"string equals string", cb.Equal(p.Get("name"), "Alice"), true},
		{"int equals int64", cb.Equal(p.Get("age"), int64(3)), true},
		{"string equals int", cb.Equal(p.Get("name"), 3), false},
		{"numeric greater than", cb.Gt(p.Get("age"), 18), true},
		{"numeric test of string", cb.Gt(p.Get("name"), 18), false},
		{"between", cb.Between(p.Get("age"), 18, 65), true},
		{"like", cb.Like(p.Get("name"), "A%"), true},
		{"like on int", cb.Like(p.Get("age"), "1%"), false},
		{"is empty", cb.IsEmpty(p.Get("tags")), true},
		{"is empty of scalar", cb.IsEmpty(p.Get("name")), false},
		{"member of", cb.IsMember("admin", p.Get("tags")), true},
		{"member of wrong element", cb.IsMember(3, p.Get("tags")), false},
		{"nil operand", cb.Equal(p.Get("name"), nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.valid {
				assert.NoError(t, tt.pred.Err())
			} else {
				assert.True(t, IsInvalidArgument(tt.pred.Err()), "got %v", tt.pred.Err())
			}
		})
	}
}

func TestInPredicate(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})

	in := cb.In(p.Get("name"), "Alice", "Bob").Value("Carol")
	require.NoError(t, in.Err())
	assert.Equal(t, `(IN Person.name "Alice" "Bob" "Carol")`, in.String())

	notIn := cb.NotIn(p.Get("name"), "Alice")
	assert.True(t, notIn.IsNegated())
	assert.Equal(t, `(not (IN Person.name "Alice"))`, notIn.String())
}

func TestInPredicateNilExpression(t *testing.T) {
	cb := testBuilder(t)

	in := cb.In(nil, 1, 2)
	assert.True(t, IsInvalidArgument(in.Err()))
	assert.Len(t, in.Values(), 2)
	assert.True(t, IsInvalidArgument(cb.NotIn(nil, "Alice").Err()))
}

func TestNegatedInKeepsItsValues(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})

	in := cb.In(p.Get("age"), 1)
	notIn, ok := cb.Not(in).(*InPredicate)
	require.True(t, ok)
	in.Value(2)

	assert.Len(t, in.Values(), 2)
	assert.Len(t, notIn.Values(), 1)
	assert.Equal(t, `(not (IN Person.age 1))`, notIn.String())
}

func TestJunctionsRecordNilRestrictions(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})
	q.Select(p)
	adult := cb.Ge(p.Get("age"), 18)

	assert.True(t, IsInvalidArgument(cb.And(adult, nil).Err()))
	assert.True(t, IsInvalidArgument(cb.Or(nil, adult).Err()))

	q.Where(adult, nil)
	assert.True(t, IsInvalidArgument(q.Err()))

	q.Where(nil)
	assert.True(t, IsInvalidArgument(q.Err()), "a lone nil restriction is not a clear")

	q.Where()
	assert.NoError(t, q.Err())
	assert.Nil(t, q.Restriction())
}

func TestArithmeticTypes(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})

	sum := cb.Add(p.Get("age"), 1)
	require.NoError(t, sum.Err())
	assert.Equal(t, reflect.TypeFor[int](), sum.Type())

	mixed := cb.Multiply(p.Get("age"), 1.5)
	require.NoError(t, mixed.Err())
	assert.Equal(t, reflect.TypeFor[float64](), mixed.Type())

	assert.Error(t, cb.Add(p.Get("name"), 1).Err())
	assert.Equal(t, reflect.TypeFor[float64](), cb.Sqrt(p.Get("age")).Type())
	assert.Equal(t, reflect.TypeFor[int64](), cb.Count(p).Type())
}

func TestCaseAndCoalesce(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})

	c := cb.SelectCase().
		When(cb.Lt(p.Get("age"), 18), "minor").
		Otherwise("adult")
	require.NoError(t, c.Err())
	assert.Equal(t, reflect.TypeFor[string](), c.Type())
	assert.Equal(t, `(case (when (< Person.age 18) "minor") (else "adult"))`, c.String())

	co := cb.Coalesce(p.Get("email"), "none")
	require.NoError(t, co.Err())
	assert.Equal(t, `(coalesce Person.email "none")`, co.String())
}

func TestCompoundSelections(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Person](cb)
	p := q.From(Person{})

	tuple := cb.Tuple(p.Get("name"), p.Get("age"))
	require.NoError(t, tuple.Err())
	assert.True(t, tuple.IsCompound())
	assert.Len(t, tuple.Items(), 2)

	summary := cb.Construct(PersonSummary{}, p.Get("name"), p.Get("age"))
	require.NoError(t, summary.Err())
	assert.Equal(t, "(construct criteria.PersonSummary Person.name Person.age)", summary.String())

	wrong := cb.Construct(PersonSummary{}, p.Get("age"), p.Get("name"))
	assert.True(t, IsInvalidArgument(wrong.Err()))

	nested := cb.Tuple(tuple)
	assert.Error(t, nested.Err())
}

func TestCompoundAliasesCheckedAfterConstruction(t *testing.T) {
	cb := testBuilder(t)
	q := cb.CreateTupleQuery()
	p := q.From(Person{})

	name, age := p.Get("name"), p.Get("age")
	q.Multiselect(name, age)
	require.NoError(t, q.Err())

	name.Alias("x")
	age.Alias("x")
	assert.True(t, IsInvalidArgument(q.Err()))

	dup := cb.Tuple(p.Get("name").Alias("n"), p.Get("age").Alias("n"))
	assert.True(t, IsInvalidArgument(dup.Err()))
}
