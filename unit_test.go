package criteria

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnitFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = ""
	cfg.Provider = "memory"

	unit, err := NewUnit(testMetamodel(t), WithUnitConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, DefaultUnitName, unit.Name())
	require.NotNil(t, unit.Provider())
	assert.Equal(t, "memory", unit.Provider().ProviderInfo().Name)
	assert.Same(t, unit.Metamodel(), unit.Builder().Metamodel())
	assert.NotNil(t, unit.Logger())
	require.NoError(t, unit.Close())
}

func TestNewUnitErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NonPortable = "ignore"
	_, err := NewUnit(testMetamodel(t), WithUnitConfig(cfg))
	assert.True(t, IsConfiguration(err))

	cfg = DefaultConfig()
	cfg.Provider = "nosuchprovider"
	_, err = NewUnit(testMetamodel(t), WithUnitConfig(cfg))
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestOpenUnit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: reporting
provider: memory
non_portable: reject
log_level: error
query_timeout: 2s
`), 0o600))

	unit, err := OpenUnit(path, testMetamodel(t))
	require.NoError(t, err)
	assert.Equal(t, "reporting", unit.Name())
	assert.Equal(t, PolicyReject, unit.Config().NonPortable)
	assert.Equal(t, PolicyReject, unit.Builder().Config().NonPortable, "the builder shares the unit config")

	mem := unit.Provider().(*MemoryProvider)
	require.NoError(t, mem.Insert(people()[0]))

	cb := unit.Builder()
	q := CreateQuery[Person](cb)
	q.From(Person{})
	query, err := NewTypedQuery(unit, q)
	require.NoError(t, err)
	rows, err := query.ResultList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, personNames(rows))

	_, err = OpenUnit(filepath.Join(t.TempDir(), "missing.yaml"), testMetamodel(t))
	assert.True(t, IsConfiguration(err))
}

func TestUnitClose(t *testing.T) {
	stub := &stubProvider{closeErr: errors.New("pool drained")}
	unit := stubUnit(t, stub)

	err := unit.Close()
	assert.True(t, IsProviderError(err))
	assert.ErrorIs(t, err, stub.closeErr)
	assert.True(t, stub.closed)

	bare, err := NewUnit(testMetamodel(t))
	require.NoError(t, err)
	assert.Nil(t, bare.Provider())
	assert.NoError(t, bare.Close())
}
