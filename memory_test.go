package criteria

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryInsert(t *testing.T) {
	mem := NewMemoryProvider()

	alice := &Person{Name: "Alice"}
	require.NoError(t, mem.Insert(alice, Person{Name: "Bob"}))

	stored := mem.Entities(Person{})
	require.Len(t, stored, 2)
	assert.Same(t, alice, stored[0], "pointers are stored as is")
	assert.Equal(t, "Bob", stored[1].(*Person).Name)
	assert.Len(t, mem.Entities(&Person{}), 2)
	assert.Empty(t, mem.Entities(PurchaseOrder{}))

	assert.True(t, IsInvalidArgument(mem.Insert(nil)))
	assert.True(t, IsInvalidArgument(mem.Insert((*Person)(nil))))
	assert.True(t, IsInvalidArgument(mem.Insert("Alice")))
}

func TestMemoryUnsupportedShapes(t *testing.T) {
	ctx := context.Background()
	unit, _ := memoryUnit(t)
	cb := unit.Builder()

	run := func(c CommonAbstractCriteria) error {
		q, err := unit.CreateQuery(c)
		require.NoError(t, err)
		_, err = q.ResultList(ctx)
		return err
	}

	joined := CreateQuery[Person](cb)
	joined.From(Person{}).Join("orders")
	assert.True(t, IsUnsupported(run(joined)))

	grouped := CreateQuery[int64](cb)
	p := grouped.From(Person{})
	grouped.Select(cb.Count(p)).GroupBy(p.Get("active"))
	assert.True(t, IsUnsupported(run(grouped)))

	product := CreateQuery[Person](cb)
	first := product.From(Person{})
	product.From(PurchaseOrder{})
	product.Select(first)
	assert.True(t, IsUnsupported(run(product)))

	aggregate := CreateQuery[int64](cb)
	p = aggregate.From(Person{})
	aggregate.Select(cb.Count(p))
	assert.True(t, IsUnsupported(run(aggregate)), "aggregates are not evaluated")
}

func TestMemoryProviderRegistered(t *testing.T) {
	assert.Contains(t, Providers(), "memory")

	p, err := NewProvider("memory", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "memory", p.ProviderInfo().Name)
	assert.True(t, p.ProviderInfo().Supports(FeatureBulkUpdate))
	assert.False(t, p.ProviderInfo().Supports(FeatureNativeQueries))

	_, err = p.Call(context.Background(), &ProcedureCall{Name: "noop"})
	assert.True(t, IsUnsupported(err))
	require.NoError(t, p.Close())

	_, err = NewProvider("missing", DefaultConfig())
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestMemoryUpdatePointerFields(t *testing.T) {
	ctx := context.Background()
	unit, mem := memoryUnit(t)
	cb := unit.Builder()

	u := CreateUpdate[Person](cb)
	p := u.From()
	u.SetPath(p.Get("email"), "bob@example.com").Where(cb.Equal(p.Get("name"), "Bob"))

	query, err := unit.CreateQuery(u)
	require.NoError(t, err)
	n, err := query.ExecuteUpdate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for _, e := range mem.Entities(Person{}) {
		if person := e.(*Person); person.Name == "Bob" {
			require.NotNil(t, person.Email)
			assert.Equal(t, "bob@example.com", *person.Email)
		}
	}

	reset := CreateUpdate[Person](cb)
	reset.From()
	reset.Set("email", nil)
	query, err = unit.CreateQuery(reset)
	require.NoError(t, err)
	_, err = query.ExecuteUpdate(ctx)
	require.NoError(t, err)
	for _, e := range mem.Entities(Person{}) {
		assert.Nil(t, e.(*Person).Email)
	}
}

func TestMemoryColumnsKeepStaticTypes(t *testing.T) {
	ctx := context.Background()
	unit, _ := memoryUnit(t)
	cb := unit.Builder()

	q := CreateQuery[[]any](cb)
	p := q.From(Person{})
	q.Multiselect(p.Get("name"), p.Get("age"), p.Get("email")).OrderBy(cb.Asc(p.Get("name")))
	query, err := NewTypedQuery(unit, q)
	require.NoError(t, err)

	rows, err := query.ResultList(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []any{"Alice", 30, "alice@example.com"}, rows[0])
	assert.IsType(t, int(0), rows[1][1])
	assert.Equal(t, []any{"Bob", 25, nil}, rows[1])
}
