package criteria

import (
	"fmt"
	"reflect"

	"github.com/lemmego/criteria/metamodel"
)

// =====================================
// Bulk Update
// =====================================

// Assignment is one SET item of a bulk update.
type Assignment struct {
	Path  Path
	Value Expression
}

// CriteriaUpdate is a bulk update of entity T with exactly one root.
type CriteriaUpdate[T any] struct {
	diag
	criteria
	root        Root
	assignments []Assignment
}

func newCriteriaUpdate[T any](sc *scope) *CriteriaUpdate[T] {
	u := &CriteriaUpdate[T]{}
	u.scope = sc
	return u
}

// From creates the root of the update. It may be called once: a second
// call records a multiple-roots error and returns an invalid root.
// Example: p := u.From("p")
func (u *CriteriaUpdate[T]) From(alias ...string) Root {
	r := singleRoot[T](u.scope, &u.diag, u.root, alias)
	if u.root == nil && !r.broken {
		u.root = r
	}
	return r
}

// singleRoot creates the one root an update or delete may have.
func singleRoot[T any](sc *scope, d *diag, existing Root, alias []string) *root {
	if existing != nil {
		err := errorf(ErrorTypeMultipleRoots, "%s already has a root", reflect.TypeFor[T]())
		d.record(err)
		return newBrokenRoot(sc, err)
	}
	r := newRootFor(sc, d, reflect.TypeFor[T]())
	if !r.broken && len(alias) > 0 {
		r.Alias(alias[0])
	}
	return r
}

// Root returns the root created by From, nil before From is called.
func (u *CriteriaUpdate[T]) Root() Root { return u.root }

// Set assigns value to the named attribute of the root. value may be an
// Expression, a Go value, or nil to assign null.
// Example: u.Set("name", "Bob").Set("age", cb.Add(p.Get("age"), 1))
func (u *CriteriaUpdate[T]) Set(name string, value any) *CriteriaUpdate[T] {
	if u.root == nil {
		u.record(errorf(ErrorTypeInvalidState, "cannot set %q before From", name))
		return u
	}
	return u.SetPath(u.root.Get(name), value)
}

// SetAttribute assigns value to attr of the root.
func (u *CriteriaUpdate[T]) SetAttribute(attr metamodel.Attribute, value any) *CriteriaUpdate[T] {
	if u.root == nil {
		u.record(errorf(ErrorTypeInvalidState, "cannot set an attribute before From"))
		return u
	}
	return u.SetPath(u.root.GetAttribute(attr), value)
}

// SetPath assigns value to p, which must be reached from the root. Setting
// the same attribute again appends another assignment; the duplicate is
// flagged ambiguous or rejected depending on the duplicate_assignments policy.
func (u *CriteriaUpdate[T]) SetPath(p Path, value any) *CriteriaUpdate[T] {
	switch {
	case u.root == nil:
		u.record(errorf(ErrorTypeInvalidState, "cannot set a path before From"))
		return u
	case isNil(p):
		u.record(errorf(ErrorTypeInvalidArgument, "update path must not be nil"))
		return u
	case !rootedAt(p, u.root):
		u.record(errorf(ErrorTypeInvalidArgument, "update path %s is not reached from the update root", p))
		return u
	}
	if err := p.Err(); err != nil {
		u.record(err)
		return u
	}
	if p.Attribute() == nil || p.Attribute().IsCollection() {
		u.record(errorf(ErrorTypeInvalidArgument, "update path %s is not a singular attribute", p))
		return u
	}

	var x Expression
	if value == nil {
		x = newNullLiteral(p.Type())
	} else {
		x = operand(p.base(), value)
		if !assignable(x.Type(), p.Type()) {
			u.record(errorf(ErrorTypeInvalidArgument, "cannot assign %s to %s of type %s",
				typeName(x.Type()), p.Attribute().Name(), typeName(p.Type())))
			return u
		}
	}

	for _, a := range u.assignments {
		if a.Path.Attribute() == p.Attribute() && a.Path.ParentPath() == p.ParentPath() {
			msg := fmt.Sprintf("attribute %q is assigned more than once", p.Attribute().Name())
			if !u.scope.raise(&u.diag, FlagAmbiguous, u.scope.cb.config.DuplicateAssignments, ErrorTypeInvalidArgument, msg) {
				return u
			}
			break
		}
	}
	u.assignments = append(u.assignments, Assignment{Path: p, Value: x})
	return u
}

// rootedAt reports whether p is r or is navigated from r.
func rootedAt(p Path, r Root) bool {
	for cur := p; !isNil(cur); cur = cur.ParentPath() {
		if cur == Path(r) {
			return true
		}
	}
	return false
}

// Assignments returns the SET items in the order they were added.
func (u *CriteriaUpdate[T]) Assignments() []Assignment {
	return append([]Assignment(nil), u.assignments...)
}

// Where replaces the restriction. Several predicates are conjoined; none
// clears it.
func (u *CriteriaUpdate[T]) Where(restrictions ...Predicate) *CriteriaUpdate[T] {
	u.restriction = conjoin(restrictions)
	return u
}

func (u *CriteriaUpdate[T]) Err() error                        { return collectErrors(u) }
func (u *CriteriaUpdate[T]) String() string                    { return format(u) }
func (u *CriteriaUpdate[T]) Flags() []Flag                     { return collectFlags(u) }
func (u *CriteriaUpdate[T]) Parameters() []ParameterExpression { return parameters(u) }

func (u *CriteriaUpdate[T]) children() []Node {
	out := appendNode(nil, u.root)
	for _, a := range u.assignments {
		out = appendNode(out, a.Path)
		out = appendNode(out, a.Value)
	}
	return appendNode(out, u.restriction)
}

// =====================================
// Bulk Delete
// =====================================

// CriteriaDelete is a bulk delete of entity T with exactly one root.
type CriteriaDelete[T any] struct {
	diag
	criteria
	root Root
}

func newCriteriaDelete[T any](sc *scope) *CriteriaDelete[T] {
	d := &CriteriaDelete[T]{}
	d.scope = sc
	return d
}

// From creates the root of the delete. It may be called once.
func (d *CriteriaDelete[T]) From(alias ...string) Root {
	r := singleRoot[T](d.scope, &d.diag, d.root, alias)
	if d.root == nil && !r.broken {
		d.root = r
	}
	return r
}

// Root returns the root created by From, nil before From is called.
func (d *CriteriaDelete[T]) Root() Root { return d.root }

// Where replaces the restriction. Several predicates are conjoined; none
// clears it.
func (d *CriteriaDelete[T]) Where(restrictions ...Predicate) *CriteriaDelete[T] {
	d.restriction = conjoin(restrictions)
	return d
}

func (d *CriteriaDelete[T]) Err() error                        { return collectErrors(d) }
func (d *CriteriaDelete[T]) String() string                    { return format(d) }
func (d *CriteriaDelete[T]) Flags() []Flag                     { return collectFlags(d) }
func (d *CriteriaDelete[T]) Parameters() []ParameterExpression { return parameters(d) }

func (d *CriteriaDelete[T]) children() []Node {
	return appendNode(appendNode(nil, d.root), d.restriction)
}
