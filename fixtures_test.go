package criteria

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lemmego/criteria/metamodel"
)

// Test models
type Address struct {
	Street string
	City   string
}

type Person struct {
	ID      int64 `persist:"id"`
	Name    string
	Age     int
	Email   *string
	Active  bool
	Address Address `persist:"embedded"`
	Orders  []*PurchaseOrder
	Tags    []string
	Manager *Person
}

type PurchaseOrder struct {
	ID    int64 `persist:"id"`
	Total float64
	Owner *Person
}

type Audited struct {
	Version int64 `persist:"version"`
}

type Invoice struct {
	Audited `persist:"extends"`
	ID      int64 `persist:"id"`
	Amount  float64
}

type PersonSummary struct {
	Name string
	Age  int
}

func testMetamodel(t *testing.T) *metamodel.Metamodel {
	t.Helper()
	mm, err := metamodel.NewBuilder().
		Reflect(Address{}, metamodel.AsEmbeddable()).
		Reflect(Audited{}, metamodel.AsMappedSuperclass()).
		Reflect(Person{}).
		Reflect(PurchaseOrder{}, metamodel.EntityName("Order")).
		Reflect(Invoice{}).
		Build()
	require.NoError(t, err)
	return mm
}

func testBuilder(t *testing.T, opts ...BuilderOption) *Builder {
	t.Helper()
	return NewBuilder(testMetamodel(t), opts...)
}

// observedLogger records warn and higher entries.
func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return zap.New(core), logs
}

func strPtr(s string) *string { return &s }

func people() []*Person {
	return []*Person{
		{ID: 1, Name: "Alice", Age: 30, Email: strPtr("alice@example.com"), Active: true, Address: Address{City: "Paris"}, Tags: []string{"admin"}},
		{ID: 2, Name: "Bob", Age: 25, Active: true, Address: Address{City: "Berlin"}},
		{ID: 3, Name: "Carol", Age: 41, Email: strPtr("carol@example.com"), Address: Address{City: "Paris"}, Tags: []string{"ops", "admin"}},
	}
}

// memoryUnit creates a unit over a memory provider seeded with people.
func memoryUnit(t *testing.T, opts ...UnitOption) (*Unit, *MemoryProvider) {
	t.Helper()
	mem := NewMemoryProvider()
	for _, p := range people() {
		require.NoError(t, mem.Insert(p))
	}
	unit, err := NewUnit(testMetamodel(t), append([]UnitOption{WithProvider(mem)}, opts...)...)
	require.NoError(t, err)
	return unit, mem
}
