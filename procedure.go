package criteria

import (
	"context"
	"maps"
	"reflect"

	"go.uber.org/zap"
)

// =====================================
// Procedure Parameters
// =====================================

// ProcedureParameter is a registered parameter of a stored procedure call.
type ProcedureParameter struct {
	name     string
	position int
	goType   reflect.Type
	mode     ParameterMode
}

func (p *ProcedureParameter) Name() string        { return p.name }
func (p *ProcedureParameter) Position() int       { return p.position }
func (p *ProcedureParameter) Mode() ParameterMode { return p.mode }

func (p *ProcedureParameter) ParameterType() (reflect.Type, error) {
	return p.goType, nil
}

// =====================================
// Stored Procedure Query
// =====================================

// StoredProcedureQuery calls a stored procedure. Parameters are registered
// before the call; results are read in the order the procedure returned them.
type StoredProcedureQuery struct {
	bindings
	unit    *Unit
	name    string
	hints   map[string]any
	result  *ProcedureResult
	current int
}

func newStoredProcedureQuery(u *Unit, name string) *StoredProcedureQuery {
	q := &StoredProcedureQuery{
		bindings: newBindings(nil),
		unit:     u,
		name:     name,
		hints:    make(map[string]any),
	}
	maps.Copy(q.hints, u.config.Hints)
	return q
}

// ProcedureName returns the name of the called procedure.
func (q *StoredProcedureQuery) ProcedureName() string { return q.name }

// RegisterParameter declares a named parameter. t is a reflect.Type or a
// sample value.
// Example: q.RegisterParameter("count", int64(0), criteria.ModeOut)
func (q *StoredProcedureQuery) RegisterParameter(name string, t any, mode ParameterMode) error {
	if name == "" {
		return errorf(ErrorTypeInvalidArgument, "parameter name must not be empty")
	}
	if _, err := q.Parameter(name); err == nil {
		return errorf(ErrorTypeInvalidArgument, "parameter %q is already registered", name)
	}
	return q.register(&ProcedureParameter{name: name, goType: typeArg(t), mode: mode})
}

// RegisterPositionalParameter declares a parameter at the 1-based position.
func (q *StoredProcedureQuery) RegisterPositionalParameter(position int, t any, mode ParameterMode) error {
	if position < 1 {
		return errorf(ErrorTypeInvalidArgument, "parameter position %d must be positive", position)
	}
	if _, err := q.PositionalParameter(position); err == nil {
		return errorf(ErrorTypeInvalidArgument, "parameter %d is already registered", position)
	}
	return q.register(&ProcedureParameter{position: position, goType: typeArg(t), mode: mode})
}

func (q *StoredProcedureQuery) register(p *ProcedureParameter) error {
	switch p.mode {
	case ModeIn, ModeInOut, ModeOut, ModeRefCursor:
	default:
		return errorf(ErrorTypeInvalidArgument, "unknown parameter mode %q", p.mode)
	}
	if p.goType == nil && p.mode != ModeRefCursor {
		return errorf(ErrorTypeInvalidArgument, "parameter %s needs a type", paramLabel(p))
	}
	if q.result != nil {
		return errorf(ErrorTypeInvalidState, "cannot register parameters after the procedure was executed")
	}
	q.params = append(q.params, p)
	return nil
}

// Bind sets the value of an IN or INOUT parameter.
func (q *StoredProcedureQuery) Bind(p QueryParameter, v any) error {
	if pp, ok := p.(*ProcedureParameter); ok && pp.mode != ModeIn && pp.mode != ModeInOut {
		return errorf(ErrorTypeInvalidArgument, "cannot bind %s parameter %s", pp.mode, paramLabel(pp))
	}
	return q.bindings.Bind(p, v)
}

// SetParameter binds v to the IN or INOUT parameter named name.
func (q *StoredProcedureQuery) SetParameter(name string, v any) error {
	p, err := q.Parameter(name)
	if err != nil {
		return err
	}
	return q.Bind(p, v)
}

// SetPositionalParameter binds v to the IN or INOUT parameter at position.
func (q *StoredProcedureQuery) SetPositionalParameter(position int, v any) error {
	p, err := q.PositionalParameter(position)
	if err != nil {
		return err
	}
	return q.Bind(p, v)
}

func (q *StoredProcedureQuery) SetHint(name string, v any) error {
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

func (q *StoredProcedureQuery) Hints() map[string]any { return maps.Clone(q.hints) }

func isInput(p QueryParameter) bool {
	pp, ok := p.(*ProcedureParameter)
	return ok && (pp.mode == ModeIn || pp.mode == ModeInOut)
}

// Execute calls the procedure. It reports whether the first result is a
// result set.
func (q *StoredProcedureQuery) Execute(ctx context.Context) (bool, error) {
	p := q.unit.provider
	if p == nil {
		return false, errorf(ErrorTypeInvalidState, "unit %q has no provider", q.unit.name)
	}
	info := p.ProviderInfo()
	if !info.Supports(FeatureStoredProcedures) {
		return false, errorf(ErrorTypeUnsupported, "provider %s does not call stored procedures", info.Name)
	}
	values, err := q.list(isInput)
	if err != nil {
		return false, err
	}

	call := &ProcedureCall{
		Name:     q.name,
		Bindings: values,
		Hints:    maps.Clone(q.hints),
		Timeout:  q.unit.config.QueryTimeout,
	}
	for _, param := range q.params {
		call.Parameters = append(call.Parameters, param.(*ProcedureParameter))
	}
	if v, ok := q.hints[HintQueryTimeout]; ok {
		if d, err := timeoutHint(v); err == nil {
			call.Timeout = d
		}
	}
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	q.unit.logger.Debug("calling stored procedure",
		zap.String("provider", info.Name),
		zap.String("procedure", q.name),
		zap.Int("parameters", len(call.Parameters)))
	result, err := p.Call(ctx, call)
	if err != nil {
		return false, providerError("procedure "+q.name, err)
	}
	if result == nil {
		result = &ProcedureResult{}
	}
	q.result, q.current = result, 0
	return q.isResultSet(), nil
}

func (q *StoredProcedureQuery) isResultSet() bool {
	return q.current < len(q.result.Results) && q.result.Results[q.current].IsResultSet
}

// ResultList returns the rows of the current result set, executing the
// procedure first when it has not run yet.
func (q *StoredProcedureQuery) ResultList(ctx context.Context) ([]any, error) {
	if q.result == nil {
		if _, err := q.Execute(ctx); err != nil {
			return nil, err
		}
	}
	if !q.isResultSet() {
		return nil, errorf(ErrorTypeInvalidState, "current result of %s is not a result set", q.name)
	}
	rows := q.result.Results[q.current].Rows
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, nativeRow(row))
	}
	return out, nil
}

// UpdateCount returns the update count of the current result, -1 when it
// is a result set or there are no more results.
func (q *StoredProcedureQuery) UpdateCount() int64 {
	if q.result == nil || q.current >= len(q.result.Results) || q.isResultSet() {
		return -1
	}
	return q.result.Results[q.current].UpdateCount
}

// HasMoreResults advances to the next result and reports whether it is a
// result set.
func (q *StoredProcedureQuery) HasMoreResults() bool {
	if q.result == nil || q.current >= len(q.result.Results) {
		return false
	}
	q.current++
	return q.isResultSet()
}

// OutputParameterValue returns the value of the OUT, INOUT or REF_CURSOR
// parameter named name after execution.
func (q *StoredProcedureQuery) OutputParameterValue(name string) (any, error) {
	p, err := q.Parameter(name)
	if err != nil {
		return nil, err
	}
	return q.output(p.(*ProcedureParameter))
}

// OutputParameterValueAt returns the value of the output parameter at position.
func (q *StoredProcedureQuery) OutputParameterValueAt(position int) (any, error) {
	p, err := q.PositionalParameter(position)
	if err != nil {
		return nil, err
	}
	return q.output(p.(*ProcedureParameter))
}

func (q *StoredProcedureQuery) output(p *ProcedureParameter) (any, error) {
	if !p.mode.IsOutput() {
		return nil, errorf(ErrorTypeInvalidArgument, "parameter %s is not an output parameter", paramLabel(p))
	}
	if q.result == nil {
		return nil, errorf(ErrorTypeInvalidState, "procedure %s has not been executed", q.name)
	}
	return q.result.Outputs[p], nil
}
