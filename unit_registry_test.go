package criteria

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedUnit(t *testing.T, name string, stub *stubProvider) *Unit {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Name = name
	return stubUnit(t, stub, WithUnitConfig(cfg))
}

func TestUnitRegistry_Register(t *testing.T) {
	registry := NewUnitRegistry()

	primary := namedUnit(t, DefaultUnitName, &stubProvider{})
	reporting := namedUnit(t, "reporting", &stubProvider{})

	registry.Register(primary)
	registry.Register(reporting)
	registry.RegisterAs("analytics", reporting)

	assert.Equal(t, []string{"analytics", DefaultUnitName, "reporting"}, registry.Names())

	got, err := registry.Get()
	require.NoError(t, err)
	assert.Same(t, primary, got, "no name means the default unit")

	got, err = registry.Get("analytics")
	require.NoError(t, err)
	assert.Same(t, reporting, got)

	replacement := namedUnit(t, "reporting", &stubProvider{})
	registry.Register(replacement)
	got = registry.MustGet("reporting")
	assert.Same(t, replacement, got)
}

func TestUnitRegistry_Get(t *testing.T) {
	registry := NewUnitRegistry()

	_, err := registry.Get()
	assert.ErrorIs(t, err, ErrUnitNotFound)
	_, err = registry.Get("missing")
	assert.ErrorIs(t, err, ErrUnitNotFound)
	assert.Contains(t, err.Error(), "'missing'")

	assert.Panics(t, func() { registry.MustGet("missing") })
}

func TestUnitRegistry_Remove(t *testing.T) {
	registry := NewUnitRegistry()

	cacheStub, docsStub := &stubProvider{}, &stubProvider{}
	registry.Register(namedUnit(t, "cache", cacheStub))
	registry.Register(namedUnit(t, "docs", docsStub))

	require.NoError(t, registry.Remove("cache"))
	assert.True(t, cacheStub.closed)
	assert.False(t, docsStub.closed)

	_, err := registry.Get("cache")
	assert.ErrorIs(t, err, ErrUnitNotFound)
	assert.ErrorIs(t, registry.Remove("cache"), ErrUnitNotFound)

	docsStub.closeErr = errors.New("already closed")
	err = registry.Remove("docs")
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Equal(t, []string{"docs"}, registry.Names(), "a unit that fails to close stays registered")
}

func TestUnitRegistry_RemoveAll(t *testing.T) {
	registry := NewUnitRegistry()

	stubs := []*stubProvider{{}, {}, {closeErr: errors.New("broken pipe")}}
	for i, stub := range stubs {
		registry.Register(namedUnit(t, fmt.Sprintf("unit-%d", i), stub))
	}

	err := registry.RemoveAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit-2")
	for _, stub := range stubs {
		assert.True(t, stub.closed)
	}
	assert.Empty(t, registry.Names())

	require.NoError(t, registry.RemoveAll())
}

func TestUnitRegistry_Singleton(t *testing.T) {
	assert.Same(t, Units(), Units())

	unit := namedUnit(t, "registry-singleton", &stubProvider{})
	RegisterUnit(unit)
	t.Cleanup(func() { _ = Units().Remove("registry-singleton") })

	got, err := GetUnit("registry-singleton")
	require.NoError(t, err)
	assert.Same(t, unit, got)
	assert.Same(t, unit, MustGetUnit("registry-singleton"))
	assert.Panics(t, func() { MustGetUnit("registry-singleton-missing") })
}

func TestUnitRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewUnitRegistry()
	unit := namedUnit(t, "shared", &stubProvider{})

	done := make(chan bool, 2)

	go func() {
		for i := 0; i < 100; i++ {
			registry.Register(unit)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			_, _ = registry.Get("shared")
			registry.Names()
		}
		done <- true
	}()

	<-done
	<-done

	assert.Same(t, unit, registry.MustGet("shared"))
}
