package criteria

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// =====================================
// Configuration
// =====================================

// Policy decides what happens to a construct whose translation is
// implementation-defined.
type Policy string

const (
	// PolicyAllow keeps duplicate fetches and flags them.
	PolicyAllow Policy = "allow"
	// PolicyAppend keeps duplicate assignments in order and flags them.
	PolicyAppend Policy = "append"
	// PolicyFlag keeps non-portable constructs and flags them.
	PolicyFlag Policy = "flag"
	// PolicyReject turns the construct into an error.
	PolicyReject Policy = "reject"
)

// Config represents persistence unit configuration
type Config struct {
	// Unit details
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`

	// Construction policies
	DuplicateAssignments Policy `json:"duplicate_assignments" yaml:"duplicate_assignments"`
	DuplicateFetches     Policy `json:"duplicate_fetches" yaml:"duplicate_fetches"`
	NonPortable          Policy `json:"non_portable" yaml:"non_portable"`

	// Execution defaults
	QueryTimeout time.Duration  `json:"query_timeout" yaml:"query_timeout"`
	Hints        map[string]any `json:"hints" yaml:"hints"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Additional provider options
	Options map[string]any `json:"options" yaml:"options"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Name:                 DefaultUnitName,
		DuplicateAssignments: PolicyAppend,
		DuplicateFetches:     PolicyAllow,
		NonPortable:          PolicyFlag,
		LogLevel:             "info",
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, NewErrorWithCause(ErrorTypeConfiguration, "failed to read config "+path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration. Missing fields take their
// DefaultConfig values.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, NewErrorWithCause(ErrorTypeConfiguration, "failed to parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every policy is one its setting accepts.
func (c Config) Validate() error {
	checks := []struct {
		field  string
		value  Policy
		accept []Policy
	}{
		{"duplicate_assignments", c.DuplicateAssignments, []Policy{PolicyAppend, PolicyReject}},
		{"duplicate_fetches", c.DuplicateFetches, []Policy{PolicyAllow, PolicyReject}},
		{"non_portable", c.NonPortable, []Policy{PolicyFlag, PolicyReject}},
	}
	for _, check := range checks {
		if !acceptsPolicy(check.accept, check.value) {
			return NewError(ErrorTypeConfiguration,
				fmt.Sprintf("invalid %s policy %q, expected one of %v", check.field, check.value, check.accept))
		}
	}
	if c.QueryTimeout < 0 {
		return NewError(ErrorTypeConfiguration, "query_timeout must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.levelName()); err != nil {
		return NewErrorWithCause(ErrorTypeConfiguration, "invalid log_level", err)
	}
	return nil
}

func acceptsPolicy(accept []Policy, p Policy) bool {
	for _, a := range accept {
		if a == p {
			return true
		}
	}
	return false
}

func (c Config) levelName() string {
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}

// NewLogger builds a production zap logger at the configured level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.levelName())
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeConfiguration, "invalid log_level", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeConfiguration, "failed to build logger", err)
	}
	return logger.With(zap.String("unit", c.Name)), nil
}
