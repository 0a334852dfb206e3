package criteria

import (
	"errors"
	"reflect"
)

// =====================================
// Tree Nodes
// =====================================

// Node is any element of a criteria tree: selections, orders, fetches and the
// query containers themselves.
//
// Criteria trees are not safe for concurrent mutation. Once built they may be
// read from several goroutines.
type Node interface {
	// Err reports every error recorded in the subtree rooted at this node.
	Err() error
	String() string

	diagnostics() *diag
	children() []Node
}

// Selection is an item that can be returned in a query result.
type Selection interface {
	Node
	Kind() NodeKind

	// Type is the Go type of the values this selection produces.
	Type() reflect.Type

	// Alias assigns an alias. The first alias wins: repeating it is a no-op,
	// and a different name records an invalid-state error.
	Alias(name string) Selection
	AliasName() string

	IsCompound() bool

	// Items returns the children of a compound selection, nil otherwise.
	Items() []Selection

	base() *node
}

// Expression is a typed selection usable as an operand.
type Expression interface {
	Selection
	expression()
}

// diag holds the errors and flags recorded on one node.
type diag struct {
	errs  []error
	flags []Flag
}

func (d *diag) diagnostics() *diag { return d }

func (d *diag) record(err error) {
	if err != nil {
		d.errs = append(d.errs, err)
	}
}

func (d *diag) flag(kind FlagKind, message string) {
	d.flags = append(d.flags, Flag{Kind: kind, Message: message})
}

// node is the state shared by every Selection.
type node struct {
	diag
	kind   NodeKind
	goType reflect.Type
	alias  string
	self   Selection
}

func (n *node) init(self Selection, kind NodeKind, goType reflect.Type) {
	n.self = self
	n.kind = kind
	n.goType = goType
}

func (n *node) base() *node        { return n }
func (n *node) Kind() NodeKind     { return n.kind }
func (n *node) Type() reflect.Type { return n.goType }
func (n *node) AliasName() string  { return n.alias }
func (n *node) IsCompound() bool   { return false }
func (n *node) Items() []Selection { return nil }
func (n *node) Err() error         { return collectErrors(n.self) }
func (n *node) String() string     { return format(n.self) }

func (n *node) Alias(name string) Selection {
	switch {
	case name == "":
		n.record(errorf(ErrorTypeInvalidArgument, "alias must not be empty"))
	case n.alias == "":
		n.alias = name
	case n.alias != name:
		n.record(errorf(ErrorTypeInvalidState, "selection already aliased %q, cannot alias %q", n.alias, name))
	}
	return n.self
}

// =====================================
// Traversal
// =====================================

// Walk visits n and its descendants depth-first in evaluation order.
// Children of a node are skipped when fn returns false for it.
// Each node is visited once even when it is shared by several parents.
func Walk(n Node, fn func(Node) bool) {
	walk(n, fn, make(map[Node]bool))
}

func walk(n Node, fn func(Node) bool, seen map[Node]bool) {
	if n == nil || seen[n] {
		return
	}
	seen[n] = true
	if !fn(n) {
		return
	}
	for _, child := range n.children() {
		walk(child, fn, seen)
	}
}

func collectErrors(n Node) error {
	var errs []error
	messages := make(map[string]bool)
	Walk(n, func(x Node) bool {
		for _, err := range x.diagnostics().errs {
			if msg := err.Error(); !messages[msg] {
				messages[msg] = true
				errs = append(errs, err)
			}
		}
		return true
	})
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}

func collectFlags(n Node) []Flag {
	var flags []Flag
	Walk(n, func(x Node) bool {
		flags = append(flags, x.diagnostics().flags...)
		return true
	})
	return flags
}

// nodes converts typed children into a Node slice, dropping nils.
func nodes[S ~[]E, E Node](items S) []Node {
	out := make([]Node, 0, len(items))
	for _, item := range items {
		if Node(item) != nil && !isNil(item) {
			out = append(out, item)
		}
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}

func appendNode(out []Node, n Node) []Node {
	if n == nil || isNil(n) {
		return out
	}
	return append(out, n)
}
