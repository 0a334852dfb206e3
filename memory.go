package criteria

import (
	"context"
	"reflect"
	"slices"
	"sync"
)

func init() {
	RegisterProvider("memory", func(Config) (Provider, error) {
		return NewMemoryProvider(), nil
	})
}

// =====================================
// Memory Provider
// =====================================

// MemoryProvider keeps entities in process and evaluates criteria over them.
// It runs single-root queries without joins or grouping, bulk updates and
// bulk deletes. Fetches are ignored: every entity is fully loaded.
type MemoryProvider struct {
	mu     sync.RWMutex
	tables map[reflect.Type][]reflect.Value
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{tables: make(map[reflect.Type][]reflect.Value)}
}

// Insert stores entities. Pointers are stored as is, so later changes made
// by bulk updates are visible through them; struct values are copied.
// Example: provider.Insert(&Person{Name: "Alice"}, &Person{Name: "Bob"})
func (m *MemoryProvider) Insert(entities ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entities {
		rv := reflect.ValueOf(e)
		switch {
		case !rv.IsValid():
			return errorf(ErrorTypeInvalidArgument, "cannot insert a nil entity")
		case rv.Kind() == reflect.Pointer && rv.IsNil():
			return errorf(ErrorTypeInvalidArgument, "cannot insert a nil %s", rv.Type())
		case rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct:
		case rv.Kind() == reflect.Struct:
			p := reflect.New(rv.Type())
			p.Elem().Set(rv)
			rv = p
		default:
			return errorf(ErrorTypeInvalidArgument, "cannot insert %T: not a struct", e)
		}
		t := rv.Type().Elem()
		m.tables[t] = append(m.tables[t], rv)
	}
	return nil
}

// Entities returns pointers to the stored entities of the type of sample.
func (m *MemoryProvider) Entities(sample any) []any {
	t := typeArg(sample)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]any, 0, len(m.tables[t]))
	for _, rv := range m.tables[t] {
		out = append(out, rv.Interface())
	}
	return out
}

func (m *MemoryProvider) ProviderInfo() ProviderInfo {
	return ProviderInfo{
		Name:     "memory",
		Version:  "1.0.0",
		Features: []Feature{FeatureBulkUpdate, FeatureLocking},
	}
}

func (m *MemoryProvider) Close() error { return nil }

func (m *MemoryProvider) Call(context.Context, *ProcedureCall) (*ProcedureResult, error) {
	return nil, errorf(ErrorTypeUnsupported, "memory provider has no stored procedures")
}

// Rows runs a select statement.
func (m *MemoryProvider) Rows(ctx context.Context, stmt *Statement) ([][]any, error) {
	q, ok := stmt.Criteria.(queryForm)
	if !ok {
		return nil, errorf(ErrorTypeUnsupported, "memory provider runs only select criteria queries")
	}
	roots := q.Roots()
	switch {
	case len(roots) != 1:
		return nil, errorf(ErrorTypeUnsupported, "memory provider needs exactly one root, got %d", len(roots))
	case len(roots[0].Joins()) > 0:
		return nil, errorf(ErrorTypeUnsupported, "memory provider does not evaluate joins")
	case len(q.GroupList()) > 0 || q.GroupRestriction() != nil:
		return nil, errorf(ErrorTypeUnsupported, "memory provider does not evaluate grouping")
	}
	sel, err := selectionOf(q)
	if err != nil {
		return nil, err
	}
	leaves := Leaves(sel)
	columns := make([]Expression, len(leaves))
	for i, leaf := range leaves {
		x, ok := leaf.(Expression)
		if !ok {
			return nil, errorf(ErrorTypeUnsupported, "memory provider cannot evaluate selection %s", leaf)
		}
		columns[i] = x
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched, err := m.scan(ctx, stmt, roots[0], q.Restriction())
	if err != nil {
		return nil, err
	}
	if err := m.sort(stmt, roots[0], matched, q.OrderList()); err != nil {
		return nil, err
	}

	var rows [][]any
	for _, rv := range matched {
		e := m.evaluator(stmt, roots[0], rv)
		row := make([]any, len(columns))
		for i, x := range columns {
			if x == Expression(roots[0]) {
				row[i] = rv.Interface()
				continue
			}
			if row[i], err = m.column(e, x); err != nil {
				return nil, err
			}
		}
		if q.IsDistinct() && slices.ContainsFunc(rows, func(r []any) bool { return reflect.DeepEqual(r, row) }) {
			continue
		}
		rows = append(rows, row)
	}
	return window(rows, stmt.FirstResult, stmt.MaxResults), nil
}

// column evaluates x and converts the result back to the static type of x,
// undoing the int64 and float64 widening of the evaluator. Nulls stay nil.
func (m *MemoryProvider) column(e *Evaluator, x Expression) (any, error) {
	v, err := e.Evaluate(x)
	if err != nil || v == nil {
		return v, err
	}
	t := deref(x.Type())
	if unknown(t) {
		return v, nil
	}
	cv, err := coerce(v, t)
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeProvider, "memory: column "+x.String(), err)
	}
	return cv.Interface(), nil
}

func window(rows [][]any, first, limit int) [][]any {
	if first >= len(rows) {
		return nil
	}
	rows = rows[first:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// Execute runs a bulk update or bulk delete statement.
func (m *MemoryProvider) Execute(ctx context.Context, stmt *Statement) (int64, error) {
	if stmt.Criteria == nil {
		return 0, errorf(ErrorTypeUnsupported, "memory provider does not run native statements")
	}
	if _, ok := stmt.Criteria.(queryForm); ok {
		return 0, errorf(ErrorTypeInvalidState, "cannot execute a select query as an update")
	}
	c, ok := stmt.Criteria.(rootedForm)
	if !ok || isNil(c.Root()) {
		return 0, errorf(ErrorTypeInvalidState, "statement has no root")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matched, err := m.scan(ctx, stmt, c.Root(), c.Restriction())
	if err != nil {
		return 0, err
	}
	if u, ok := c.(assignmentsForm); ok {
		for _, rv := range matched {
			if err := m.assign(stmt, u.Root(), rv, u.Assignments()); err != nil {
				return 0, err
			}
		}
		return int64(len(matched)), nil
	}

	t := c.Root().EntityType().GoType()
	m.tables[t] = slices.DeleteFunc(m.tables[t], func(rv reflect.Value) bool {
		return slices.ContainsFunc(matched, func(x reflect.Value) bool { return x.Pointer() == rv.Pointer() })
	})
	return int64(len(matched)), nil
}

// assign evaluates every value against the row before any field changes.
func (m *MemoryProvider) assign(stmt *Statement, r Root, rv reflect.Value, assignments []Assignment) error {
	e := m.evaluator(stmt, r, rv)
	values := make([]any, len(assignments))
	for i, a := range assignments {
		v, err := e.Evaluate(a.Value)
		if err != nil {
			return err
		}
		values[i] = v
	}
	for i, a := range assignments {
		field, err := m.field(r, rv, a.Path, true)
		if err != nil {
			return err
		}
		if !field.IsValid() {
			continue
		}
		fv, err := coerce(values[i], field.Type())
		if err != nil {
			return NewErrorWithCause(ErrorTypeInvalidArgument, "cannot assign "+a.Path.String(), err)
		}
		field.Set(fv)
	}
	return nil
}

func (m *MemoryProvider) scan(ctx context.Context, stmt *Statement, r Root, where Predicate) ([]reflect.Value, error) {
	et := r.EntityType()
	if et == nil {
		return nil, errorf(ErrorTypeInvalidState, "root has no entity type")
	}
	var out []reflect.Value
	for _, rv := range m.tables[et.GoType()] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if where != nil {
			ok, err := m.evaluator(stmt, r, rv).Test(where)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, rv)
	}
	return out, nil
}

// sort orders rows in place. Nulls sort first unless the order says otherwise.
func (m *MemoryProvider) sort(stmt *Statement, r Root, rows []reflect.Value, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	keys := make(map[uintptr][]any, len(rows))
	for _, rv := range rows {
		e := m.evaluator(stmt, r, rv)
		key := make([]any, len(orders))
		for i, o := range orders {
			v, err := e.Evaluate(o.Expression())
			if err != nil {
				return err
			}
			key[i] = v
		}
		keys[rv.Pointer()] = key
	}

	var sortErr error
	slices.SortStableFunc(rows, func(a, b reflect.Value) int {
		ka, kb := keys[a.Pointer()], keys[b.Pointer()]
		for i, o := range orders {
			c, err := compareKeys(ka[i], kb[i], o)
			if err != nil && sortErr == nil {
				sortErr = err
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return sortErr
}

func compareKeys(a, b any, o Order) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil || b == nil:
		c := 1
		if a == nil {
			c = -1
		}
		if o.NullPrecedence() == NullsLast {
			c = -c
		}
		return c, nil
	}
	c, err := compareValues(a, b)
	if !o.IsAscending() {
		c = -c
	}
	return c, err
}

func (m *MemoryProvider) evaluator(stmt *Statement, r Root, rv reflect.Value) *Evaluator {
	return &Evaluator{
		Path: func(p Path) (any, error) {
			field, err := m.field(r, rv, p, false)
			if err != nil || !field.IsValid() {
				return nil, err
			}
			if p.ParentPath() == nil {
				return rv.Interface(), nil
			}
			return field.Interface(), nil
		},
		Parameter: func(p QueryParameter) (any, error) {
			v, ok := stmt.Value(p)
			if !ok {
				return nil, errorf(ErrorTypeUnboundParameter, "parameter %s is not bound", paramLabel(p))
			}
			return v, nil
		},
	}
}

// field resolves p against the entity rv. The zero Value means a nil
// pointer was met on the way: the path is null. With alloc set, nil
// pointers on the way are allocated instead.
func (m *MemoryProvider) field(r Root, rv reflect.Value, p Path, alloc bool) (reflect.Value, error) {
	parent := p.ParentPath()
	if parent == nil {
		if Path(r) != p {
			return reflect.Value{}, errorf(ErrorTypeUnsupported, "memory provider cannot resolve %s", p)
		}
		return rv.Elem(), nil
	}
	attr := p.Attribute()
	if attr == nil {
		return reflect.Value{}, errorf(ErrorTypeUnsupported, "memory provider cannot resolve %s", p)
	}
	v, err := m.field(r, rv, parent, alloc)
	if err != nil || !v.IsValid() {
		return v, err
	}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			if !alloc {
				return reflect.Value{}, nil
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, errorf(ErrorTypeUnsupported, "memory provider cannot resolve %s", p)
	}
	if dt := attr.DeclaringType(); dt != nil && dt.GoType() != v.Type() {
		var ok bool
		if v, ok = embedded(v, dt.GoType(), alloc); !ok {
			return reflect.Value{}, nil
		}
	}
	index := attr.FieldIndex()
	if len(index) == 0 {
		return reflect.Value{}, errorf(ErrorTypeUnsupported, "attribute %s has no struct field", attr.Name())
	}
	return v.FieldByIndexErr(index)
}

// embedded finds the struct of type t embedded in v, where inherited
// attributes are declared. It reports false when a nil pointer is met.
func embedded(v reflect.Value, t reflect.Type, alloc bool) (reflect.Value, bool) {
	if v.Type() == t {
		return v, true
	}
	for i := 0; i < v.NumField(); i++ {
		if !v.Type().Field(i).Anonymous {
			continue
		}
		f := v.Field(i)
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				if !alloc || f.Type().Elem() != t || !f.CanSet() {
					continue
				}
				f.Set(reflect.New(t))
			}
			f = f.Elem()
		}
		if f.Kind() != reflect.Struct {
			continue
		}
		if found, ok := embedded(f, t, alloc); ok {
			return found, true
		}
	}
	return reflect.Value{}, false
}
