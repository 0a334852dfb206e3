package criteria

import (
	"reflect"

	"github.com/lemmego/criteria/metamodel"
)

// =====================================
// Joins
// =====================================

// Join is a From reached from a parent From through an attribute or, for
// entity joins, through its ON condition alone.
type Join interface {
	From

	// On replaces the join condition. Several predicates are conjoined and
	// no predicate clears the condition.
	On(restrictions ...Predicate) Join
	OnPredicate() Predicate
	JoinType() JoinType
	Parent() From

	joinBase() *join
}

// PluralJoin is a join of a collection-valued attribute.
type PluralJoin interface {
	Join
	PluralAttribute() metamodel.PluralAttribute
}

// CollectionJoin joins a plural attribute with bag semantics.
type CollectionJoin interface {
	PluralJoin
	collectionJoin()
}

// SetJoin joins a plural attribute with set semantics.
type SetJoin interface {
	PluralJoin
	setJoin()
}

// ListJoin joins an ordered plural attribute.
type ListJoin interface {
	PluralJoin

	// Index is the position of the joined element in the list.
	Index() Expression
}

// MapJoin joins a map-valued attribute. The join itself denotes the map values.
type MapJoin interface {
	PluralJoin
	Key() Path
	Value() Path
	Entry() Expression
}

type join struct {
	from
	parentFrom From
	entity     metamodel.EntityType
	jt         JoinType
	on         Predicate
}

func (j *join) joinBase() *join        { return j }
func (j *join) JoinType() JoinType     { return j.jt }
func (j *join) Parent() From           { return j.parentFrom }
func (j *join) OnPredicate() Predicate { return j.on }

func (j *join) On(restrictions ...Predicate) Join {
	j.on = conjoin(restrictions)
	return j.self.(Join)
}

func (j *join) children() []Node {
	return appendNode(j.from.children(), j.on)
}

func (j *join) PluralAttribute() metamodel.PluralAttribute {
	pa, _ := j.attr.(metamodel.PluralAttribute)
	return pa
}

// conjoin combines restrictions the way Where and On expect them: none
// clears, one is kept as it is, several are ANDed. A nil restriction is
// wrapped so that the AND records it.
func conjoin(restrictions []Predicate) Predicate {
	switch len(restrictions) {
	case 0:
		return nil
	case 1:
		if !isNil(restrictions[0]) {
			return restrictions[0]
		}
	}
	return newPredicate(BooleanAnd, nodesOf[Expression](restrictions)...)
}

// nodesOf converts a slice of one node interface to another. Nil items stay
// nil so the receiving node can record them.
func nodesOf[T any, S ~[]E, E any](items S) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		t, _ := any(item).(T)
		out = append(out, t)
	}
	return out
}

type collectionJoin struct{ join }

func (j *collectionJoin) collectionJoin() {}

type setJoin struct{ join }

func (j *setJoin) setJoin() {}

type listJoin struct{ join }

func (j *listJoin) Index() Expression {
	return newOperation(intType, OpIndex, j)
}

type mapJoin struct{ join }

func (j *mapJoin) Key() Path {
	k := &path{parent: j}
	ma, _ := j.attr.(metamodel.MapAttribute)
	if ma == nil {
		k.init(k, KindPath, nil)
		k.broken = true
		return k
	}
	k.init(k, KindPath, ma.KeyGoType())
	k.managed, _ = ma.KeyType().(metamodel.ManagedType)
	if et, ok := ma.KeyType().(metamodel.EntityType); ok {
		k.model = et
	}
	return k
}

func (j *mapJoin) Value() Path { return j }

func (j *mapJoin) Entry() Expression {
	return newOperation(reflect.TypeFor[MapEntry](), OpEntry, j)
}

// makeJoin allocates the join shape matching collection and returns its
// shared state together with the outermost wrapper.
func makeJoin(collection metamodel.CollectionType) (*join, Join) {
	switch collection {
	case metamodel.CollectionBag:
		w := &collectionJoin{}
		w.init(w, KindJoin, nil)
		return &w.join, w
	case metamodel.CollectionSet:
		w := &setJoin{}
		w.init(w, KindJoin, nil)
		return &w.join, w
	case metamodel.CollectionList:
		w := &listJoin{}
		w.init(w, KindJoin, nil)
		return &w.join, w
	case metamodel.CollectionMap:
		w := &mapJoin{}
		w.init(w, KindJoin, nil)
		return &w.join, w
	}
	j := &join{}
	j.init(j, KindJoin, nil)
	return j, j
}

// correlate copies j into sc. The copy keeps the attribute, join type and
// parent of j but starts with no joins, fetches or ON condition.
func (j *join) correlate(sc *scope) Join {
	inner, out := makeJoin(collectionOf(j.attr))
	inner.scope = sc
	inner.parentFrom = j.parentFrom
	inner.parent = j.parent
	inner.attr = j.attr
	inner.entity = j.entity
	inner.model = j.model
	inner.managed = j.managed
	inner.target = j.managed
	inner.goType = j.goType
	inner.jt = j.jt
	inner.correlationParent = j.self.(Join)
	return out
}

func collectionOf(attr metamodel.Attribute) metamodel.CollectionType {
	if pa, ok := attr.(metamodel.PluralAttribute); ok {
		return pa.CollectionType()
	}
	return ""
}

// =====================================
// Roots
// =====================================

// Root is a query root: an entity ranged over by the FROM clause.
type Root interface {
	From
	EntityType() metamodel.EntityType
}

type root struct {
	from
	entity metamodel.EntityType
}

func newRoot(sc *scope, et metamodel.EntityType) *root {
	r := &root{entity: et}
	r.init(r, KindRoot, et.GoType())
	r.scope = sc
	r.model = et
	r.managed = et
	r.target = et
	return r
}

func newBrokenRoot(sc *scope, err error) *root {
	r := &root{}
	r.init(r, KindRoot, nil)
	r.scope = sc
	r.broken = true
	r.record(err)
	return r
}

func (r *root) EntityType() metamodel.EntityType { return r.entity }

// correlate copies r into sc as a correlated root.
func (r *root) correlate(sc *scope) *root {
	c := newRoot(sc, r.entity)
	c.correlationParent = r
	return c
}
