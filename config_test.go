package criteria

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("provider: memory\n"))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Provider = "memory"
	assert.Equal(t, want, cfg)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
name: orders
duplicate_assignments: reject
duplicate_fetches: reject
query_timeout: 5s
log_level: debug
hints:
  fetch_size: 100
options:
  schema: sales
`))
	require.NoError(t, err)
	assert.Equal(t, "orders", cfg.Name)
	assert.Equal(t, PolicyReject, cfg.DuplicateAssignments)
	assert.Equal(t, PolicyReject, cfg.DuplicateFetches)
	assert.Equal(t, PolicyFlag, cfg.NonPortable)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 100, cfg.Hints["fetch_size"])
	assert.Equal(t, "sales", cfg.Options["schema"])
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"assignment policy", func(c *Config) { c.DuplicateAssignments = PolicyAllow }},
		{"fetch policy", func(c *Config) { c.DuplicateFetches = PolicyFlag }},
		{"non portable policy", func(c *Config) { c.NonPortable = PolicyAppend }},
		{"empty policy", func(c *Config) { c.NonPortable = "" }},
		{"negative timeout", func(c *Config) { c.QueryTimeout = -time.Second }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	require.NoError(t, DefaultConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.True(t, IsConfiguration(cfg.Validate()))
		})
	}
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("non_portable: sometimes\n"))
	assert.True(t, IsConfiguration(err))

	_, err = ParseConfig([]byte("name: [unterminated\n"))
	assert.True(t, IsConfiguration(err))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, IsConfiguration(err))
}

func TestConfigLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "debug is below warn")
	assert.True(t, logger.Core().Enabled(1))

	cfg.LogLevel = ""
	_, err = cfg.NewLogger()
	require.NoError(t, err, "an empty level means info")

	cfg.LogLevel = "chatty"
	_, err = cfg.NewLogger()
	assert.True(t, IsConfiguration(err))
}
