package criteria

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =====================================
// Debug Rendering
// =====================================

// format renders n as an s-expression. The form is deterministic and meant
// for logs and test failures, not for any database.
func format(n Node) string {
	var b strings.Builder
	write(&b, n)
	return b.String()
}

func write(b *strings.Builder, n Node) {
	switch x := n.(type) {
	case nil:
		b.WriteString("nil")
	case *Literal:
		b.WriteString(formatValue(x.value))
	case QueryParameter:
		b.WriteString(paramLabel(x))
	case From:
		b.WriteString(describe(x))
	case Path:
		writePath(b, x)
	case *InPredicate:
		writeNegated(b, x.negated, func() { writeOperation(b, x.test) })
	case Predicate:
		writePredicate(b, x)
	case *Operation:
		writeOperation(b, x)
	case *CaseExpression:
		b.WriteString("(case")
		writeWhens(b, x.whens, x.otherwise)
	case *SimpleCaseExpression:
		b.WriteString("(case ")
		write(b, x.subject)
		writeWhens(b, x.whens, x.otherwise)
	case *CoalesceExpression:
		writeList(b, "coalesce", nodes(x.args))
	case *CompoundSelection:
		head := strings.ToLower(string(x.compound))
		if x.compound == CompoundConstruct && x.goType != nil {
			head += " " + x.goType.String()
		}
		writeList(b, head, nodes(x.items))
	case *order:
		b.WriteString("(" + strings.ToLower(string(x.dir)) + " ")
		write(b, x.expr)
		if x.nulls != NullsNone {
			b.WriteString(" nulls " + strings.ToLower(string(x.nulls)))
		}
		b.WriteString(")")
	case *fetch:
		writeFetch(b, x)
	case SubqueryExpression:
		b.WriteString("(subquery")
		writeClauses(b, x, nil)
		b.WriteString(")")
	case queryForm:
		b.WriteString("(query")
		writeClauses(b, x, x.OrderList())
		b.WriteString(")")
	case assignmentsForm:
		b.WriteString("(update ")
		writeTarget(b, x.Root())
		for _, a := range x.Assignments() {
			b.WriteString(" (set ")
			writePath(b, a.Path)
			b.WriteString(" ")
			write(b, a.Value)
			b.WriteString(")")
		}
		writeWhere(b, "where", x.Restriction())
		b.WriteString(")")
	case rootedForm:
		b.WriteString("(delete ")
		writeTarget(b, x.Root())
		writeWhere(b, "where", x.Restriction())
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "%T", n)
	}
}

// Container views used by the renderer and by providers.
type (
	queryForm interface {
		AbstractQuery
		OrderList() []Order
	}
	rootedForm interface {
		CommonAbstractCriteria
		Root() Root
	}
	assignmentsForm interface {
		rootedForm
		Assignments() []Assignment
	}
)

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case time.Time:
		return strconv.Quote(x.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return strconv.Quote(x.String())
	}
	return fmt.Sprint(v)
}

func paramLabel(p QueryParameter) string {
	switch {
	case p.Name() != "":
		return ":" + p.Name()
	case p.Position() > 0:
		return "?" + strconv.Itoa(p.Position())
	}
	return "?"
}

// describe labels a from by its alias, or by the navigation that created it.
func describe(f From) string {
	base := f.fromBase()
	switch {
	case base.broken:
		return "<invalid>"
	case base.alias != "":
		return base.alias
	}
	if r, ok := f.(Root); ok {
		return r.EntityType().Name()
	}
	j := f.(Join)
	if jb := j.joinBase(); jb.entity != nil {
		return jb.entity.Name()
	}
	return describe(j.Parent()) + "." + j.Attribute().Name()
}

func writePath(b *strings.Builder, p Path) {
	if isNil(p) {
		b.WriteString("nil")
		return
	}
	if f, ok := p.(From); ok {
		b.WriteString(describe(f))
		return
	}
	base := p.pathBase()
	switch {
	case base.kind == KindTreat:
		b.WriteString("(treat ")
		writePath(b, base.parent)
		b.WriteString(" " + typeName(base.goType) + ")")
	case base.broken || base.attr == nil:
		b.WriteString("<invalid>")
	case base.parent == nil:
		b.WriteString(base.attr.Name())
	default:
		writePath(b, base.parent)
		b.WriteString("." + base.attr.Name())
	}
}

func writeNegated(b *strings.Builder, negated bool, body func()) {
	if negated {
		b.WriteString("(not ")
	}
	body()
	if negated {
		b.WriteString(")")
	}
}

func writePredicate(b *strings.Builder, p Predicate) {
	writeNegated(b, p.IsNegated(), func() {
		exprs := p.Expressions()
		if len(exprs) == 1 && p.Operator() == BooleanAnd {
			if o, ok := exprs[0].(*Operation); ok {
				writeOperation(b, o)
				return
			}
		}
		writeList(b, strings.ToLower(string(p.Operator())), nodes(exprs))
	})
}

func writeOperation(b *strings.Builder, o *Operation) {
	switch {
	case o.op == OpCast || o.op == OpAs:
		b.WriteString("(" + string(o.op) + " ")
		write(b, o.operands[0])
		b.WriteString(" " + o.qualifier + ")")
	case o.op == OpFunction:
		writeList(b, "function "+o.function, nodes(o.operands))
	case o.qualifier != "":
		writeList(b, string(o.op)+" "+o.qualifier, nodes(o.operands))
	default:
		writeList(b, string(o.op), nodes(o.operands))
	}
}

func writeList(b *strings.Builder, head string, items []Node) {
	b.WriteString("(" + head)
	for _, item := range items {
		b.WriteString(" ")
		write(b, item)
	}
	b.WriteString(")")
}

func writeWhens(b *strings.Builder, whens []WhenClause, otherwise Expression) {
	for _, w := range whens {
		b.WriteString(" (when ")
		write(b, w.Condition)
		b.WriteString(" ")
		write(b, w.Result)
		b.WriteString(")")
	}
	if otherwise != nil {
		b.WriteString(" (else ")
		write(b, otherwise)
		b.WriteString(")")
	}
	b.WriteString(")")
}

func writeFetch(b *strings.Builder, f *fetch) {
	name := "<invalid>"
	if f.attr != nil {
		name = f.attr.Name()
	}
	b.WriteString("(fetch " + strings.ToLower(string(f.jt)) + " " + name)
	for _, child := range f.list {
		b.WriteString(" ")
		write(b, child)
	}
	b.WriteString(")")
}

// writeTarget renders a root declaration with its joins and fetches.
func writeTarget(b *strings.Builder, f From) {
	if isNil(f) {
		b.WriteString("nil")
		return
	}
	base := f.fromBase()
	if r, ok := f.(Root); ok && !base.broken {
		b.WriteString(r.EntityType().Name())
		if base.alias != "" {
			b.WriteString(" " + base.alias)
		}
	} else {
		b.WriteString(describe(f))
	}
	writeJoins(b, base)
}

func writeJoins(b *strings.Builder, f *from) {
	for _, j := range f.joins {
		jb := j.joinBase()
		name := "<invalid>"
		switch {
		case jb.entity != nil:
			name = jb.entity.Name()
		case jb.attr != nil:
			name = jb.attr.Name()
		}
		b.WriteString(" (join " + strings.ToLower(string(jb.jt)) + " " + name)
		if jb.alias != "" {
			b.WriteString(" " + jb.alias)
		}
		writeWhere(b, "on", jb.on)
		writeJoins(b, &jb.from)
		b.WriteString(")")
	}
	for _, fetch := range f.list {
		b.WriteString(" ")
		write(b, fetch)
	}
}

func writeWhere(b *strings.Builder, head string, p Predicate) {
	if isNil(p) {
		return
	}
	b.WriteString(" (" + head + " ")
	write(b, p)
	b.WriteString(")")
}

func writeClauses(b *strings.Builder, q AbstractQuery, orders []Order) {
	b.WriteString(" (select ")
	if q.IsDistinct() {
		b.WriteString("distinct ")
	}
	if sel := q.Selection(); sel != nil {
		write(b, sel)
	} else {
		b.WriteString("*")
	}
	b.WriteString(")")

	b.WriteString(" (from")
	for _, r := range q.Roots() {
		b.WriteString(" ")
		if r.IsCorrelated() {
			b.WriteString("(correlate ")
			writeTarget(b, r)
			b.WriteString(")")
			continue
		}
		writeTarget(b, r)
	}
	b.WriteString(")")

	writeWhere(b, "where", q.Restriction())
	if groups := q.GroupList(); len(groups) > 0 {
		b.WriteString(" ")
		writeList(b, "group", nodes(groups))
	}
	writeWhere(b, "having", q.GroupRestriction())
	if len(orders) > 0 {
		b.WriteString(" ")
		writeList(b, "order", nodes(orders))
	}
}
