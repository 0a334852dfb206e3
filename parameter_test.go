package criteria

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"named", "SELECT * FROM person WHERE name = :name", []string{":name"}},
		{"positional", "SELECT * FROM person WHERE age > ?1 AND age < ?2", []string{"?1", "?2"}},
		{"deduplicated", "WHERE a = :x OR b = :x OR c = ?1 OR d = ?1", []string{":x", "?1"}},
		{"quoted ignored", "WHERE note = ':skip' AND name = :name", []string{":name"}},
		{"escaped quote", "WHERE note = 'it'':s :skip' AND id = ?3", []string{"?3"}},
		{"cast ignored", "SELECT a::text FROM t WHERE b = :b", []string{":b"}},
		{"none", "SELECT 1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range nativeParameters(tt.query) {
				got = append(got, paramLabel(p))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNativeParameterHasNoType(t *testing.T) {
	p := nativeParameters("WHERE a = :a")[0]
	_, err := p.ParameterType()
	assert.True(t, IsInvalidState(err))
}

func TestQueryBindings(t *testing.T) {
	unit, _ := memoryUnit(t)
	cb := unit.Builder()

	q := CreateQuery[Person](cb)
	p := q.From(Person{})
	name := Param[string]("name")
	q.Where(cb.Equal(p.Get("name"), name))

	query, err := unit.CreateQuery(q)
	require.NoError(t, err)
	require.Len(t, query.Parameters(), 1)

	found, err := query.Parameter("name")
	require.NoError(t, err)
	assert.Same(t, name, found)
	_, err = query.Parameter("missing")
	assert.True(t, IsInvalidArgument(err))

	assert.False(t, query.IsBound(name))
	_, err = query.ParameterValue(name)
	assert.True(t, IsUnboundParameter(err))
	_, err = query.ResultList(context.Background())
	assert.True(t, IsUnboundParameter(err))

	assert.True(t, IsInvalidArgument(query.Bind(name, 3)), "type mismatch")
	assert.True(t, IsInvalidArgument(query.Bind(Param[string]("name"), "Alice")), "same name, other parameter")

	require.NoError(t, SetParam(query, name, "Bob"))
	require.NoError(t, query.SetParameter("name", "Alice"))
	v, err := query.ParameterValue(name)
	require.NoError(t, err)
	assert.Equal(t, "Alice", v, "last write wins")

	rows, err := query.ResultList(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0].(*Person).Name)
}

func TestBindNull(t *testing.T) {
	unit, _ := memoryUnit(t)
	cb := unit.Builder()

	q := CreateQuery[Person](cb)
	p := q.From(Person{})
	email := Param[string]("email")
	q.Where(cb.Equal(p.Get("email"), email))

	query, err := unit.CreateQuery(q)
	require.NoError(t, err)
	require.NoError(t, query.Bind(email, nil))
	assert.True(t, query.IsBound(email))

	rows, err := query.ResultList(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows, "equality with null never holds")
}

func TestNativeQueryBindings(t *testing.T) {
	unit, _ := memoryUnit(t)

	q, err := unit.CreateNativeQuery("SELECT * FROM person WHERE name = :name AND age > ?1")
	require.NoError(t, err)
	require.Len(t, q.Parameters(), 2)

	require.NoError(t, q.SetParameter("name", "Alice"))
	require.NoError(t, q.SetPositionalParameter(1, 18))
	assert.True(t, IsInvalidArgument(q.SetPositionalParameter(2, 18)))
	assert.Nil(t, q.Criteria())

	_, err = unit.CreateNativeQuery("")
	assert.True(t, IsInvalidArgument(err))
}
