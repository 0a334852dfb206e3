package criteria

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lemmego/criteria/metamodel"
)

// =====================================
// Scopes
// =====================================

// scope identifies one query or subquery. Froms remember the scope they
// were created in so correlation can check query ancestry.
type scope struct {
	cb     *Builder
	parent *scope
}

// encloses reports whether s is a strict ancestor of inner.
func (s *scope) encloses(inner *scope) bool {
	for p := inner.parent; p != nil; p = p.parent {
		if p == s {
			return true
		}
	}
	return false
}

// raise applies policy to a legal but non-portable or ambiguous construct:
// reject records an error of type errType coded with kind on d, any other
// policy flags d.
func (s *scope) raise(d *diag, kind FlagKind, policy Policy, errType ErrorType, message string) bool {
	if policy == PolicyReject {
		d.record(NewErrorWithCode(errType, message, string(kind)))
		return false
	}
	d.flag(kind, message)
	s.cb.logger.Warn("criteria construct flagged",
		zap.String("kind", string(kind)),
		zap.String("message", message))
	return true
}

// =====================================
// Fetch Parents
// =====================================

// FetchParent is a node fetches can be attached to: a From or a Fetch.
type FetchParent interface {
	Node

	// Fetch adds a fetch join of the named association or element collection.
	// The default join type is INNER.
	Fetch(name string, jt ...JoinType) Fetch
	FetchAttribute(attr metamodel.Attribute, jt ...JoinType) Fetch
	Fetches() []Fetch
}

// Fetch marks an association for eager retrieval. Fetches are not
// expressions and never appear in the projection.
type Fetch interface {
	FetchParent
	Attribute() metamodel.Attribute
	Parent() FetchParent
	JoinType() JoinType
}

// fetches is the fetch set shared by froms and fetches.
type fetches struct {
	scope  *scope
	target metamodel.ManagedType
	list   []Fetch
}

func (f *fetches) Fetches() []Fetch { return append([]Fetch(nil), f.list...) }

func (f *fetches) fetchNamed(d *diag, parent FetchParent, name string, jt []JoinType) Fetch {
	if f.target == nil {
		return f.brokenFetch(d, parent, errorf(ErrorTypeInvalidArgument, "cannot fetch %q from a non-managed type", name))
	}
	attr, err := f.target.Attribute(name)
	if err != nil {
		return f.brokenFetch(d, parent, NewErrorWithCause(ErrorTypeInvalidArgument,
			fmt.Sprintf("cannot resolve fetch attribute %q of %s", name, typeName(f.target.GoType())), err))
	}
	return f.fetch(d, parent, attr, jt)
}

func (f *fetches) fetch(d *diag, parent FetchParent, attr metamodel.Attribute, jt []JoinType) Fetch {
	kind, err := joinTypeOf(jt)
	switch {
	case err != nil:
		return f.brokenFetch(d, parent, err)
	case isNil(attr):
		return f.brokenFetch(d, parent, errorf(ErrorTypeInvalidArgument, "fetch attribute must not be nil"))
	case f.target == nil:
		return f.brokenFetch(d, parent, errorf(ErrorTypeInvalidArgument, "cannot fetch %q from a non-managed type", attr.Name()))
	case !f.target.HasAttribute(attr):
		return f.brokenFetch(d, parent, errorf(ErrorTypeInvalidArgument, "attribute %q is not a member of %s",
			attr.Name(), typeName(f.target.GoType())))
	case !attr.IsAssociation() && attr.PersistentAttributeType() != metamodel.AttributeElementCollection:
		return f.brokenFetch(d, parent, errorf(ErrorTypeInvalidArgument,
			"cannot fetch %q: only associations and element collections can be fetched", attr.Name()))
	}

	out := &fetch{parent: parent, attr: attr, jt: kind}
	out.scope = f.scope
	out.target = targetManagedType(attr)

	cfg := f.scope.cb.config
	if !kind.IsPortable() {
		msg := fmt.Sprintf("%s fetch of %q is not portable", kind, attr.Name())
		if !f.scope.raise(&out.diag, FlagNonPortable, cfg.NonPortable, ErrorTypeUnsupported, msg) {
			d.record(out.errs[0])
			return out
		}
	}
	for _, existing := range f.list {
		if existing.Attribute() == attr {
			msg := fmt.Sprintf("attribute %q is fetched more than once from the same parent", attr.Name())
			if !f.scope.raise(&out.diag, FlagAmbiguous, cfg.DuplicateFetches, ErrorTypeInvalidArgument, msg) {
				d.record(out.errs[len(out.errs)-1])
				return out
			}
			break
		}
	}
	f.list = append(f.list, out)
	return out
}

// brokenFetch records err on the parent and returns a fetch carrying it.
func (f *fetches) brokenFetch(d *diag, parent FetchParent, err error) Fetch {
	d.record(err)
	out := &fetch{parent: parent}
	out.scope = f.scope
	out.record(err)
	return out
}

type fetch struct {
	diag
	fetches
	parent FetchParent
	attr   metamodel.Attribute
	jt     JoinType
}

func (f *fetch) Fetch(name string, jt ...JoinType) Fetch {
	return f.fetchNamed(&f.diag, f, name, jt)
}

func (f *fetch) FetchAttribute(attr metamodel.Attribute, jt ...JoinType) Fetch {
	return f.fetch(&f.diag, f, attr, jt)
}

func (f *fetch) Attribute() metamodel.Attribute { return f.attr }
func (f *fetch) Parent() FetchParent            { return f.parent }
func (f *fetch) JoinType() JoinType             { return f.jt }
func (f *fetch) Err() error                     { return collectErrors(f) }
func (f *fetch) String() string                 { return format(f) }
func (f *fetch) children() []Node               { return nodes(f.list) }

// targetManagedType is the managed type reached by joining attr, nil when
// attr leads to basic values.
func targetManagedType(attr metamodel.Attribute) metamodel.ManagedType {
	switch a := attr.(type) {
	case metamodel.SingularAttribute:
		m, _ := a.Type().(metamodel.ManagedType)
		return m
	case metamodel.PluralAttribute:
		m, _ := a.ElementType().(metamodel.ManagedType)
		return m
	}
	return nil
}

func joinTypeOf(jt []JoinType) (JoinType, error) {
	switch len(jt) {
	case 0:
		return JoinInner, nil
	case 1:
	default:
		return "", errorf(ErrorTypeInvalidArgument, "at most one join type may be given, got %d", len(jt))
	}
	switch jt[0] {
	case JoinInner, JoinLeft, JoinRight:
		return jt[0], nil
	}
	return "", errorf(ErrorTypeInvalidArgument, "unknown join type %q", jt[0])
}

// =====================================
// Froms
// =====================================

// From is a root or join: a path that owns joins and fetches.
type From interface {
	Path
	FetchParent

	// Join adds a join of the named attribute. Every call adds a new join,
	// even for an attribute that is already joined.
	Join(name string, jt ...JoinType) Join
	JoinAttribute(attr metamodel.Attribute, jt ...JoinType) Join
	JoinCollection(name string, jt ...JoinType) CollectionJoin
	JoinSet(name string, jt ...JoinType) SetJoin
	JoinList(name string, jt ...JoinType) ListJoin
	JoinMap(name string, jt ...JoinType) MapJoin

	// JoinEntity joins an unrelated entity. The join condition is given with On.
	JoinEntity(entity any, jt ...JoinType) Join
	Joins() []Join

	IsCorrelated() bool

	// CorrelationParent is the enclosing query's From this one correlates,
	// nil when the From is not correlated.
	CorrelationParent() From

	fromBase() *from
}

type from struct {
	path
	fetches
	joins             []Join
	correlationParent From
}

func (f *from) fromBase() *from         { return f }
func (f *from) Joins() []Join           { return append([]Join(nil), f.joins...) }
func (f *from) IsCorrelated() bool      { return f.correlationParent != nil }
func (f *from) CorrelationParent() From { return f.correlationParent }

func (f *from) children() []Node {
	out := nodes(f.joins)
	return append(out, nodes(f.list)...)
}

func (f *from) Fetch(name string, jt ...JoinType) Fetch {
	return f.fetchNamed(&f.diag, f.self.(From), name, jt)
}

func (f *from) FetchAttribute(attr metamodel.Attribute, jt ...JoinType) Fetch {
	return f.fetch(&f.diag, f.self.(From), attr, jt)
}

func (f *from) Join(name string, jt ...JoinType) Join {
	attr, err := f.resolve(name)
	if err != nil || f.broken {
		return f.brokenJoin("", err)
	}
	return f.JoinAttribute(attr, jt...)
}

func (f *from) JoinAttribute(attr metamodel.Attribute, jt ...JoinType) Join {
	var collection metamodel.CollectionType
	if pa, ok := attr.(metamodel.PluralAttribute); ok {
		collection = pa.CollectionType()
	}
	return f.join(attr, collection, jt)
}

func (f *from) JoinCollection(name string, jt ...JoinType) CollectionJoin {
	return f.joinNamed(name, metamodel.CollectionBag, jt).(CollectionJoin)
}

func (f *from) JoinSet(name string, jt ...JoinType) SetJoin {
	return f.joinNamed(name, metamodel.CollectionSet, jt).(SetJoin)
}

func (f *from) JoinList(name string, jt ...JoinType) ListJoin {
	return f.joinNamed(name, metamodel.CollectionList, jt).(ListJoin)
}

func (f *from) JoinMap(name string, jt ...JoinType) MapJoin {
	return f.joinNamed(name, metamodel.CollectionMap, jt).(MapJoin)
}

func (f *from) joinNamed(name string, collection metamodel.CollectionType, jt []JoinType) Join {
	attr, err := f.resolve(name)
	if err != nil || f.broken {
		return f.brokenJoin(collection, err)
	}
	pa, ok := attr.(metamodel.PluralAttribute)
	if !ok || pa.CollectionType() != collection {
		return f.brokenJoin(collection, errorf(ErrorTypeInvalidArgument,
			"attribute %q is not a %s attribute", name, collection))
	}
	return f.join(attr, collection, jt)
}

func (f *from) resolve(name string) (metamodel.Attribute, error) {
	if f.broken {
		return nil, nil
	}
	if f.managed == nil {
		return nil, errorf(ErrorTypeInvalidArgument, "cannot join %q: %s is not a managed type", name, typeName(f.goType))
	}
	attr, err := f.managed.Attribute(name)
	if err != nil {
		return nil, NewErrorWithCause(ErrorTypeInvalidArgument,
			fmt.Sprintf("cannot resolve join attribute %q of %s", name, typeName(f.managed.GoType())), err)
	}
	return attr, nil
}

func (f *from) join(attr metamodel.Attribute, collection metamodel.CollectionType, jt []JoinType) Join {
	kind, err := joinTypeOf(jt)
	switch {
	case f.broken:
		return f.brokenJoin(collection, nil)
	case err != nil:
		return f.brokenJoin(collection, err)
	case isNil(attr):
		return f.brokenJoin(collection, errorf(ErrorTypeInvalidArgument, "join attribute must not be nil"))
	case f.managed == nil:
		return f.brokenJoin(collection, errorf(ErrorTypeInvalidArgument,
			"cannot join %q: %s is not a managed type", attr.Name(), typeName(f.goType)))
	case !f.managed.HasAttribute(attr):
		return f.brokenJoin(collection, errorf(ErrorTypeInvalidArgument, "attribute %q is not a member of %s",
			attr.Name(), typeName(f.managed.GoType())))
	}

	inner, out := makeJoin(collection)
	inner.scope = f.scope
	inner.parentFrom = f.self.(From)
	inner.parent = inner.parentFrom
	inner.attr = attr
	inner.jt = kind

	switch a := attr.(type) {
	case metamodel.SingularAttribute:
		target, ok := a.Type().(metamodel.ManagedType)
		if !ok {
			return f.brokenJoin(collection, errorf(ErrorTypeInvalidArgument,
				"cannot join %q: %s is not a managed type", attr.Name(), typeName(a.Type().GoType())))
		}
		inner.goType = target.GoType()
		inner.model = a
		inner.managed = target
	case metamodel.PluralAttribute:
		inner.goType = a.ElementType().GoType()
		inner.model = a
		inner.managed, _ = a.ElementType().(metamodel.ManagedType)
	}
	inner.target = inner.managed

	if !f.admit(inner) {
		return out
	}
	f.joins = append(f.joins, out)
	return out
}

// JoinEntity joins an entity that need not be related to this From.
func (f *from) JoinEntity(entity any, jt ...JoinType) Join {
	kind, err := joinTypeOf(jt)
	if err != nil {
		return f.brokenJoin("", err)
	}
	et, err := f.scope.cb.mm.Entity(entity)
	if err != nil {
		return f.brokenJoin("", NewErrorWithCause(ErrorTypeUnknownType, "cannot join entity", err))
	}
	inner, out := makeJoin("")
	inner.scope = f.scope
	inner.parentFrom = f.self.(From)
	inner.parent = inner.parentFrom
	inner.jt = kind
	inner.entity = et
	inner.goType = et.GoType()
	inner.model = et
	inner.managed = et
	inner.target = et
	if !f.admit(inner) {
		return out
	}
	f.joins = append(f.joins, out)
	return out
}

// admit applies the non-portable policy to a new join.
func (f *from) admit(j *join) bool {
	if j.jt.IsPortable() {
		return true
	}
	msg := fmt.Sprintf("%s join of %s is not portable", j.jt, joinLabel(j))
	if !f.scope.raise(&j.diag, FlagNonPortable, f.scope.cb.config.NonPortable, ErrorTypeUnsupported, msg) {
		f.record(j.errs[len(j.errs)-1])
		return false
	}
	return true
}

// brokenJoin records err on f and returns a join of the requested shape
// that carries the same error.
func (f *from) brokenJoin(collection metamodel.CollectionType, err error) Join {
	f.record(err)
	inner, out := makeJoin(collection)
	inner.scope = f.scope
	inner.parentFrom = f.self.(From)
	inner.parent = inner.parentFrom
	inner.broken = true
	inner.jt = JoinInner
	inner.record(err)
	return out
}

func joinLabel(j *join) string {
	if j.attr != nil {
		return quote(j.attr.Name())
	}
	if j.entity != nil {
		return j.entity.Name()
	}
	return "<invalid>"
}
