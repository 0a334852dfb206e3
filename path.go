package criteria

import (
	"github.com/lemmego/criteria/metamodel"
)

// =====================================
// Paths
// =====================================

// Path navigates from a root or join through attributes.
type Path interface {
	Expression

	// Get navigates to the named attribute of a managed type.
	// Plural attributes end navigation: use a join to reach their elements.
	Get(name string) Path
	GetAttribute(attr metamodel.Attribute) Path

	// ParentPath is nil for roots.
	ParentPath() Path

	// Model is the attribute or entity the path is bound to, nil when the
	// path is bound to neither.
	Model() metamodel.Bindable

	// Attribute is nil for roots and entity joins.
	Attribute() metamodel.Attribute

	// TypeExpression yields the runtime entity type of the path.
	TypeExpression() Expression

	pathBase() *path
}

type path struct {
	node
	parent  Path
	attr    metamodel.Attribute
	model   metamodel.Bindable
	managed metamodel.ManagedType
	broken  bool
}

// newAttributePath creates the path reached by navigating attr from parent.
func newAttributePath(parent Path, attr metamodel.Attribute) *path {
	p := &path{parent: parent, attr: attr}
	switch a := attr.(type) {
	case metamodel.SingularAttribute:
		p.init(p, KindPath, a.Type().GoType())
		p.model = a
		p.managed, _ = a.Type().(metamodel.ManagedType)
	case metamodel.PluralAttribute:
		p.init(p, KindPath, a.GoType())
		p.model = a
	default:
		p.init(p, KindPath, attr.GoType())
	}
	return p
}

// newBrokenPath stands in for a navigation that failed. It has no static
// type, so it does not cascade type errors into the expressions using it.
func newBrokenPath(parent Path, err error) *path {
	p := &path{parent: parent, broken: true}
	p.init(p, KindPath, nil)
	p.record(err)
	return p
}

func (p *path) pathBase() *path                { return p }
func (p *path) ParentPath() Path               { return p.parent }
func (p *path) Model() metamodel.Bindable      { return p.model }
func (p *path) Attribute() metamodel.Attribute { return p.attr }
func (p *path) expression()                    {}
func (p *path) children() []Node               { return nil }

func (p *path) Get(name string) Path {
	self := p.self.(Path)
	if p.broken {
		return self
	}
	if p.managed == nil {
		return newBrokenPath(self, p.notNavigable(name))
	}
	attr, err := p.managed.Attribute(name)
	if err != nil {
		return newBrokenPath(self, NewErrorWithCause(ErrorTypeInvalidArgument,
			"cannot resolve attribute "+quote(name)+" of "+typeName(p.managed.GoType()), err))
	}
	return newAttributePath(self, attr)
}

func (p *path) GetAttribute(attr metamodel.Attribute) Path {
	self := p.self.(Path)
	switch {
	case p.broken:
		return self
	case isNil(attr):
		return newBrokenPath(self, errorf(ErrorTypeInvalidArgument, "attribute must not be nil"))
	case p.managed == nil:
		return newBrokenPath(self, p.notNavigable(attr.Name()))
	case !p.managed.HasAttribute(attr):
		return newBrokenPath(self, errorf(ErrorTypeInvalidArgument, "attribute %q is not a member of %s",
			attr.Name(), typeName(p.managed.GoType())))
	}
	return newAttributePath(self, attr)
}

func (p *path) notNavigable(name string) error {
	if _, ok := p.attr.(metamodel.PluralAttribute); ok {
		return errorf(ErrorTypeInvalidArgument, "cannot get %q from plural attribute %q; join it first",
			name, p.attr.Name())
	}
	return errorf(ErrorTypeInvalidArgument, "cannot get %q: %s is not a managed type", name, typeName(p.goType))
}

func (p *path) TypeExpression() Expression {
	return newOperation(typeType, OpType, p.self.(Path))
}

func quote(s string) string { return "\"" + s + "\"" }
