package criteria

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// =====================================
// Native Parameters
// =====================================

// NativeParameter is a placeholder of a native query string: :name or ?N.
// It carries no static type.
type NativeParameter struct {
	name     string
	position int
}

func (p *NativeParameter) Name() string  { return p.name }
func (p *NativeParameter) Position() int { return p.position }

func (p *NativeParameter) ParameterType() (reflect.Type, error) {
	return nil, errorf(ErrorTypeInvalidState, "native parameter %s has no static type", paramLabel(p))
}

var (
	quotedRe      = regexp.MustCompile(`'(?:[^']|'')*'`)
	placeholderRe = regexp.MustCompile(`(?:^|[^:\w]):([A-Za-z_]\w*)|\?(\d+)`)
)

// nativeParameters finds the distinct placeholders of query in order of
// first appearance. Placeholders inside quoted strings are ignored.
func nativeParameters(query string) []QueryParameter {
	stripped := quotedRe.ReplaceAllStringFunc(query, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
	var out []QueryParameter
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(stripped, -1) {
		p := &NativeParameter{name: m[1]}
		key := ":" + m[1]
		if m[2] != "" {
			p.position, _ = strconv.Atoi(m[2])
			key = "?" + m[2]
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}

// =====================================
// Bindings
// =====================================

// ParameterBinder binds values to parameters by identity.
type ParameterBinder interface {
	Bind(p QueryParameter, v any) error
}

// SetParam binds v to p with static type checking.
// Example: criteria.SetParam(q, minAge, 18)
func SetParam[T any](q ParameterBinder, p *Parameter[T], v T) error {
	return q.Bind(p, v)
}

// bindings is a last-write-wins map of parameter values shared by queries
// and stored procedure calls.
type bindings struct {
	params []QueryParameter
	values map[QueryParameter]any
}

func newBindings(params []QueryParameter) bindings {
	return bindings{params: params, values: make(map[QueryParameter]any)}
}

// Parameters returns the parameters of the query in order of appearance.
func (b *bindings) Parameters() []QueryParameter {
	return append([]QueryParameter(nil), b.params...)
}

// Parameter returns the parameter named name.
func (b *bindings) Parameter(name string) (QueryParameter, error) {
	for _, p := range b.params {
		if name != "" && p.Name() == name {
			return p, nil
		}
	}
	return nil, errorf(ErrorTypeInvalidArgument, "no parameter named %q", name)
}

// PositionalParameter returns the parameter at the 1-based position.
func (b *bindings) PositionalParameter(position int) (QueryParameter, error) {
	for _, p := range b.params {
		if position > 0 && p.Position() == position {
			return p, nil
		}
	}
	return nil, errorf(ErrorTypeInvalidArgument, "no parameter at position %d", position)
}

func (b *bindings) owns(p QueryParameter) bool {
	for _, q := range b.params {
		if q == p {
			return true
		}
	}
	return false
}

// Bind sets the value of p, replacing any earlier value. nil binds null.
func (b *bindings) Bind(p QueryParameter, v any) error {
	if isNil(p) || !b.owns(p) {
		return errorf(ErrorTypeInvalidArgument, "parameter %s does not belong to this query", labelOf(p))
	}
	if t, err := p.ParameterType(); err == nil && v != nil && !assignable(reflect.TypeOf(v), t) {
		return errorf(ErrorTypeInvalidArgument, "cannot bind %T to parameter %s of type %s", v, labelOf(p), typeName(t))
	}
	b.values[p] = v
	return nil
}

// SetParameter binds v to the parameter named name.
func (b *bindings) SetParameter(name string, v any) error {
	p, err := b.Parameter(name)
	if err != nil {
		return err
	}
	return b.Bind(p, v)
}

// SetPositionalParameter binds v to the parameter at the 1-based position.
func (b *bindings) SetPositionalParameter(position int, v any) error {
	p, err := b.PositionalParameter(position)
	if err != nil {
		return err
	}
	return b.Bind(p, v)
}

// IsBound reports whether a value was bound to p.
func (b *bindings) IsBound(p QueryParameter) bool {
	_, ok := b.values[p]
	return ok
}

// ParameterValue returns the value bound to p.
func (b *bindings) ParameterValue(p QueryParameter) (any, error) {
	if isNil(p) || !b.owns(p) {
		return nil, errorf(ErrorTypeInvalidArgument, "parameter %s does not belong to this query", labelOf(p))
	}
	v, ok := b.values[p]
	if !ok {
		return nil, errorf(ErrorTypeUnboundParameter, "parameter %s is not bound", labelOf(p))
	}
	return v, nil
}

// list returns the bindings in parameter order. Every parameter need
// accepts must be bound; a nil need requires all of them.
func (b *bindings) list(need func(QueryParameter) bool) ([]Binding, error) {
	out := make([]Binding, 0, len(b.params))
	for _, p := range b.params {
		v, ok := b.values[p]
		if !ok {
			if need == nil || need(p) {
				return nil, errorf(ErrorTypeUnboundParameter, "parameter %s is not bound", labelOf(p))
			}
			continue
		}
		out = append(out, Binding{Parameter: p, Value: v})
	}
	return out, nil
}

func labelOf(p QueryParameter) string {
	if isNil(p) {
		return "nil"
	}
	return paramLabel(p)
}
