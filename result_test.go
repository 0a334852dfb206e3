package criteria

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaves(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Tuple](cb)
	p := q.From(Person{})

	name, age, city := p.Get("name"), p.Get("age"), p.Get("address").Get("city")
	row := cb.Tuple(name, age, city)
	require.NoError(t, row.Err())

	assert.Equal(t, []Selection{name, age, city}, Leaves(row))
	assert.Equal(t, []Selection{name}, Leaves(name))
	assert.Nil(t, Leaves(nil))
}

func TestShapeRow(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[Tuple](cb)
	p := q.From(Person{})

	name := p.Get("name")
	name.Alias("n")
	sel := cb.Tuple(name, p.Get("age"), p.Get("address").Get("city"))
	require.NoError(t, sel.Err())

	v, err := shapeRow(sel, []any{"Alice", 30, "Paris"})
	require.NoError(t, err)
	row := v.(Tuple)
	require.Equal(t, 3, row.Len())
	n, err := row.GetAlias("n")
	require.NoError(t, err)
	assert.Equal(t, "Alice", n)
	assert.Equal(t, "Paris", row.Get(2))

	v, err = shapeRow(cb.Array(p.Get("name"), p.Get("age")), []any{"Bob", nil})
	require.NoError(t, err)
	assert.Equal(t, []any{"Bob", nil}, v)

	_, err = shapeRow(sel, []any{"Alice", 30, "Paris", "extra"})
	assert.True(t, IsProviderError(err))
	_, err = shapeRow(sel, []any{"Alice", 30})
	assert.True(t, IsProviderError(err))
}

func TestShapeConstructor(t *testing.T) {
	cb := testBuilder(t)
	q := CreateQuery[PersonSummary](cb)
	p := q.From(Person{})

	errMinor := errors.New("minor")
	summary := func(name string, age int) (PersonSummary, error) {
		if age < 18 {
			return PersonSummary{}, errMinor
		}
		return PersonSummary{Name: name, Age: age}, nil
	}
	sel := cb.Construct(summary, p.Get("name"), p.Get("age"))
	require.NoError(t, sel.Err())

	v, err := shapeRow(sel, []any{"Alice", int64(30)})
	require.NoError(t, err)
	assert.Equal(t, PersonSummary{Name: "Alice", Age: 30}, v)

	_, err = shapeRow(sel, []any{"Tim", 12})
	assert.True(t, IsInvalidArgument(err))
	assert.ErrorIs(t, err, errMinor)

	bad := cb.Construct(func(string) PersonSummary { return PersonSummary{} }, p.Get("name"), p.Get("age"))
	assert.True(t, IsInvalidArgument(bad.Err()))
	assert.True(t, IsInvalidArgument(cb.Construct(42, p.Get("name")).Err()))
}

func TestTuple(t *testing.T) {
	elements := []TupleElement{{Alias: "name"}, {}}
	_, err := NewTuple(elements, []any{"Alice"})
	assert.True(t, IsInvalidArgument(err))

	row, err := NewTuple(elements, []any{"Alice", int64(30)})
	require.NoError(t, err)
	assert.Equal(t, "[Alice 30]", row.String())

	v, err := row.GetAlias("name")
	require.NoError(t, err)
	assert.Equal(t, "Alice", v)
	_, err = row.GetAlias("")
	assert.True(t, IsInvalidArgument(err), "unaliased elements are not found by the empty alias")

	age, err := TupleValue[int](row, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, age)
	_, err = TupleValue[int](row, 2)
	assert.True(t, IsInvalidArgument(err))
	_, err = TupleValue[int](row, 0)
	assert.True(t, IsInvalidArgument(err))

	values := row.Values()
	values[0] = "Bob"
	assert.Equal(t, "Alice", row.Get(0), "Values returns a copy")
}
