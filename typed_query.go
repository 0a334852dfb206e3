package criteria

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// HintQueryTimeout overrides the unit's query timeout for one query. The
// value may be a time.Duration, a duration string such as "5s", or an
// integer number of milliseconds.
const HintQueryTimeout = "criteria.query.timeout"

// =====================================
// Query
// =====================================

// Query is an executable criteria or native query. It holds parameter
// bindings and execution settings; the unit's provider runs it.
// A Query is not safe for concurrent use.
type Query struct {
	bindings
	unit        *Unit
	criteria    CommonAbstractCriteria
	native      string
	firstResult int
	maxResults  int
	lockMode    LockModeType
	flushMode   FlushModeType
	hints       map[string]any
}

func newQuery(u *Unit, c CommonAbstractCriteria, native string, params []QueryParameter) *Query {
	q := &Query{
		bindings:  newBindings(params),
		unit:      u,
		criteria:  c,
		native:    native,
		lockMode:  LockNone,
		flushMode: FlushAuto,
		hints:     make(map[string]any),
	}
	maps.Copy(q.hints, u.config.Hints)
	return q
}

// Criteria returns the criteria the query was created from, nil for native queries.
func (q *Query) Criteria() CommonAbstractCriteria { return q.criteria }

// Native returns the statement of a native query.
func (q *Query) Native() string { return q.native }

func (q *Query) isSelect() bool {
	if q.criteria == nil {
		return false
	}
	_, ok := q.criteria.(queryForm)
	return ok
}

// SetFirstResult sets the position of the first row to return.
func (q *Query) SetFirstResult(n int) error {
	if n < 0 {
		return errorf(ErrorTypeInvalidArgument, "first result %d must not be negative", n)
	}
	q.firstResult = n
	return nil
}

// SetMaxResults limits the number of rows returned. 0 removes the limit.
func (q *Query) SetMaxResults(n int) error {
	if n < 0 {
		return errorf(ErrorTypeInvalidArgument, "max results %d must not be negative", n)
	}
	q.maxResults = n
	return nil
}

func (q *Query) FirstResult() int { return q.firstResult }
func (q *Query) MaxResults() int  { return q.maxResults }

// SetLockMode sets the lock taken on selected rows. Only select criteria
// queries can be locked.
func (q *Query) SetLockMode(mode LockModeType) error {
	if !q.isSelect() {
		return errorf(ErrorTypeInvalidState, "lock mode applies only to select criteria queries")
	}
	switch mode {
	case LockNone, LockRead, LockWrite, LockOptimistic, LockOptimisticForceIncrement,
		LockPessimisticRead, LockPessimisticWrite, LockPessimisticForceIncrement:
		q.lockMode = mode
		return nil
	}
	return errorf(ErrorTypeInvalidArgument, "unknown lock mode %q", mode)
}

// LockMode fails for queries that cannot be locked.
func (q *Query) LockMode() (LockModeType, error) {
	if !q.isSelect() {
		return "", errorf(ErrorTypeInvalidState, "lock mode applies only to select criteria queries")
	}
	return q.lockMode, nil
}

// SetFlushMode sets when pending changes are flushed before the query runs.
func (q *Query) SetFlushMode(mode FlushModeType) error {
	if mode != FlushAuto && mode != FlushCommit {
		return errorf(ErrorTypeInvalidArgument, "unknown flush mode %q", mode)
	}
	q.flushMode = mode
	return nil
}

func (q *Query) FlushMode() FlushModeType { return q.flushMode }

// SetHint sets a provider hint. Unknown hints are passed to the provider.
func (q *Query) SetHint(name string, v any) error {
	if name == "" {
		return errorf(ErrorTypeInvalidArgument, "hint name must not be empty")
	}
	if name == HintQueryTimeout {
		if _, err := timeoutHint(v); err != nil {
			return err
		}
	}
	q.hints[name] = v
	return nil
}

// Hints returns a copy of the hints set on the query.
func (q *Query) Hints() map[string]any { return maps.Clone(q.hints) }

func timeoutHint(v any) (time.Duration, error) {
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case string:
		d, err := time.ParseDuration(x)
		if err != nil {
			return 0, NewErrorWithCause(ErrorTypeInvalidArgument, "invalid "+HintQueryTimeout+" hint", err)
		}
		return d, nil
	case int:
		return time.Duration(x) * time.Millisecond, nil
	case int64:
		return time.Duration(x) * time.Millisecond, nil
	}
	return 0, errorf(ErrorTypeInvalidArgument, "invalid %s hint of type %T", HintQueryTimeout, v)
}

func (q *Query) timeout() time.Duration {
	if v, ok := q.hints[HintQueryTimeout]; ok {
		if d, err := timeoutHint(v); err == nil {
			return d
		}
	}
	return q.unit.config.QueryTimeout
}

// statement assembles what the provider needs. Every parameter must be bound.
func (q *Query) statement() (*Statement, error) {
	values, err := q.list(nil)
	if err != nil {
		return nil, err
	}
	return &Statement{
		Criteria:    q.criteria,
		Native:      q.native,
		Bindings:    values,
		FirstResult: q.firstResult,
		MaxResults:  q.maxResults,
		LockMode:    q.lockMode,
		FlushMode:   q.flushMode,
		Hints:       maps.Clone(q.hints),
		Timeout:     q.timeout(),
	}, nil
}

// prepare checks that the unit's provider can run the query and returns
// the statement with a context bounded by the query timeout.
func (q *Query) prepare(ctx context.Context) (*Statement, context.Context, context.CancelFunc, error) {
	p := q.unit.provider
	if p == nil {
		return nil, nil, nil, errorf(ErrorTypeInvalidState, "unit %q has no provider", q.unit.name)
	}
	info := p.ProviderInfo()
	switch {
	case q.criteria == nil && !info.Supports(FeatureNativeQueries):
		return nil, nil, nil, errorf(ErrorTypeUnsupported, "provider %s does not run native queries", info.Name)
	case q.lockMode != LockNone && !info.Supports(FeatureLocking):
		return nil, nil, nil, errorf(ErrorTypeUnsupported, "provider %s does not support lock mode %s", info.Name, q.lockMode)
	}
	if q.criteria != nil && !info.Supports(FeatureRightJoin) {
		for _, f := range q.criteria.Flags() {
			if f.Kind == FlagNonPortable {
				return nil, nil, nil, errorf(ErrorTypeUnsupported, "provider %s: %s", info.Name, f.Message)
			}
		}
	}

	stmt, err := q.statement()
	if err != nil {
		return nil, nil, nil, err
	}
	cancel := context.CancelFunc(func() {})
	if stmt.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, stmt.Timeout)
	}
	q.unit.logger.Debug("executing query",
		zap.String("provider", info.Name),
		zap.String("query", q.describe()),
		zap.Int("parameters", len(stmt.Bindings)),
		zap.Duration("timeout", stmt.Timeout))
	return stmt, ctx, cancel, nil
}

func (q *Query) describe() string {
	if q.criteria == nil {
		return q.native
	}
	return q.criteria.String()
}

func (q *Query) rows(ctx context.Context) ([][]any, error) {
	if q.criteria != nil && !q.isSelect() {
		return nil, errorf(ErrorTypeInvalidState, "cannot read results of an update or delete query")
	}
	stmt, ctx, cancel, err := q.prepare(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	rows, err := q.unit.provider.Rows(ctx, stmt)
	if err != nil {
		return nil, providerError("query", err)
	}
	return rows, nil
}

// ResultList runs a select query. Criteria rows are shaped by the
// selection; native rows are bare values when they have one column and
// []any otherwise.
func (q *Query) ResultList(ctx context.Context) ([]any, error) {
	rows, err := q.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	if q.criteria == nil {
		for _, row := range rows {
			out = append(out, nativeRow(row))
		}
		return out, nil
	}
	sel, err := selectionOf(q.criteria)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		v, err := shapeRow(sel, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// SingleResult runs a select query that must return exactly one row.
func (q *Query) SingleResult(ctx context.Context) (any, error) {
	results, err := q.ResultList(ctx)
	if err != nil {
		return nil, err
	}
	return single(results)
}

func single[T any](results []T) (T, error) {
	var zero T
	switch len(results) {
	case 0:
		return zero, NewError(ErrorTypeNoResult, "query returned no result")
	case 1:
		return results[0], nil
	}
	return zero, NewError(ErrorTypeNonUniqueResult, "query returned "+strconv.Itoa(len(results))+" results")
}

// ExecuteUpdate runs a bulk update, bulk delete or native statement and
// returns the number of affected rows.
func (q *Query) ExecuteUpdate(ctx context.Context) (int64, error) {
	if q.isSelect() {
		return 0, errorf(ErrorTypeInvalidState, "cannot execute a select query as an update")
	}
	stmt, ctx, cancel, err := q.prepare(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	if q.criteria != nil && !q.unit.provider.ProviderInfo().Supports(FeatureBulkUpdate) {
		return 0, errorf(ErrorTypeUnsupported, "provider does not run bulk updates or deletes")
	}
	n, err := q.unit.provider.Execute(ctx, stmt)
	if err != nil {
		return 0, providerError("update", err)
	}
	return n, nil
}

// selectionOf returns the selection of a select query, defaulting to its
// single root.
func selectionOf(c CommonAbstractCriteria) (Selection, error) {
	if s, ok := c.(interface{ defaultSelection() (Selection, error) }); ok {
		return s.defaultSelection()
	}
	return nil, errorf(ErrorTypeInvalidState, "%T is not a select query", c)
}

// =====================================
// Typed Query
// =====================================

// TypedQuery is a Query whose rows have type T.
type TypedQuery[T any] struct {
	*Query
	query *CriteriaQuery[T]
}

// NewTypedQuery creates an executable query for cq in unit u.
// Example: tq, err := criteria.NewTypedQuery(unit, q)
func NewTypedQuery[T any](u *Unit, cq *CriteriaQuery[T]) (*TypedQuery[T], error) {
	if cq == nil {
		return nil, errorf(ErrorTypeInvalidArgument, "criteria query must not be nil")
	}
	q, err := u.CreateQuery(cq)
	if err != nil {
		return nil, err
	}
	return &TypedQuery[T]{Query: q, query: cq}, nil
}

// CriteriaQuery returns the query the typed query was created from.
func (q *TypedQuery[T]) CriteriaQuery() *CriteriaQuery[T] { return q.query }

// ResultList runs the query and returns its rows.
func (q *TypedQuery[T]) ResultList(ctx context.Context) ([]T, error) {
	results, err := q.Query.ResultList(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(results))
	for i, v := range results {
		r, err := convertResult[T](v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// SingleResult runs the query and returns its only row.
func (q *TypedQuery[T]) SingleResult(ctx context.Context) (T, error) {
	results, err := q.ResultList(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return single(results)
}
