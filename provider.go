package criteria

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// =====================================
// Provider Interfaces
// =====================================

// Provider executes statements built from criteria trees or native query
// strings. Translating criteria into a database language is the provider's
// concern.
type Provider interface {
	// Rows runs a select statement. Each row holds one value per leaf of
	// the selection, depth first: compound selections are flattened.
	// Example: rows, err := provider.Rows(ctx, stmt)
	Rows(ctx context.Context, stmt *Statement) ([][]any, error)

	// Execute runs a bulk update, bulk delete or native statement and
	// returns the number of affected rows.
	Execute(ctx context.Context, stmt *Statement) (int64, error)

	// Call runs a stored procedure.
	Call(ctx context.Context, call *ProcedureCall) (*ProcedureResult, error)

	// ProviderInfo returns metadata about this provider.
	ProviderInfo() ProviderInfo

	// Close releases the provider's resources.
	Close() error
}

// ProviderInfo contains information about the provider
type ProviderInfo struct {
	Name     string
	Version  string
	Features []Feature
}

// Supports reports whether the provider declared feature.
func (i ProviderInfo) Supports(feature Feature) bool {
	for _, f := range i.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Feature represents an optional provider capability
type Feature string

const (
	FeatureRightJoin        Feature = "right_join"
	FeatureSubqueries       Feature = "subqueries"
	FeatureBulkUpdate       Feature = "bulk_update"
	FeatureNativeQueries    Feature = "native_queries"
	FeatureStoredProcedures Feature = "stored_procedures"
	FeatureLocking          Feature = "locking"
)

// =====================================
// Statements
// =====================================

// Binding is the value bound to one parameter.
type Binding struct {
	Parameter QueryParameter
	Value     any
}

// Statement is everything a provider needs to run one query.
type Statement struct {
	// Criteria is nil for native statements.
	Criteria CommonAbstractCriteria
	Native   string

	// Bindings hold one value per query parameter in declaration order.
	Bindings []Binding

	FirstResult int
	// MaxResults is 0 when the result is not limited.
	MaxResults int
	LockMode   LockModeType
	FlushMode  FlushModeType
	Hints      map[string]any
	Timeout    time.Duration
}

// Value returns the value bound to p, matched by identity.
func (s *Statement) Value(p QueryParameter) (any, bool) {
	for _, b := range s.Bindings {
		if b.Parameter == p {
			return b.Value, true
		}
	}
	return nil, false
}

// ProcedureCall is a stored procedure invocation.
type ProcedureCall struct {
	Name       string
	Parameters []*ProcedureParameter
	Bindings   []Binding
	Hints      map[string]any
	Timeout    time.Duration
}

// ProcedureOutput is one result of a stored procedure: a result set or an
// update count.
type ProcedureOutput struct {
	Rows        [][]any
	UpdateCount int64
	IsResultSet bool
}

// ProcedureResult holds the outputs of a stored procedure call.
type ProcedureResult struct {
	Results []ProcedureOutput

	// Outputs are the values of OUT, INOUT and REF_CURSOR parameters.
	Outputs map[*ProcedureParameter]any
}

// =====================================
// Provider Factories
// =====================================

// ProviderFactory creates a provider from a unit configuration.
type ProviderFactory func(cfg Config) (Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]ProviderFactory)

	ErrProviderNotFound = errors.New("provider not found")
)

// RegisterProvider makes a provider factory available under name.
// Registering the same name twice replaces the earlier factory.
func RegisterProvider(name string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// NewProvider creates a provider with the factory registered under name.
//
// Example:
//
//	provider, err := criteria.NewProvider("memory", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewProvider(name string, cfg Config) (Provider, error) {
	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	p, err := factory(cfg)
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeProvider, fmt.Sprintf("failed to create provider %q", name), err)
	}
	return p, nil
}

// Providers returns the names of the registered provider factories.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// providerError wraps an error returned by a provider. Criteria errors
// pass through; deadline errors become timeouts. Context errors carry a code.
func providerError(op string, err error) error {
	var ce Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		e := NewErrorWithCode(ErrorTypeTimeout, op+" timed out", CodeDeadlineExceeded)
		e.Cause = err
		return e
	case errors.Is(err, context.Canceled):
		e := NewErrorWithCode(ErrorTypeProvider, op+" canceled", CodeCanceled)
		e.Cause = err
		return e
	}
	return NewErrorWithCause(ErrorTypeProvider, op+" failed", err)
}
