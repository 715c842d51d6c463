// Package condition maps structured search queries to and from a tree of
// property comparisons, and evaluates that tree against folder entries.
package condition

import (
	"fmt"
	"strings"
	"sync"
)

// Combinator joins the children of a group.
type Combinator int

const (
	And Combinator = iota
	Or
	Not // negates the conjunction of its children
)

func (c Combinator) String() string {
	switch c {
	case And:
		return "AND"
	case Or:
		return "OR"
	case Not:
		return "NOT"
	}
	return fmt.Sprintf("Combinator(%d)", int(c))
}

// Operation is a leaf comparison.
type Operation int

const (
	OpEqual Operation = iota
	OpNotEqual
	OpLessThan
	OpGreaterThan
	OpLessThanOrEqual
	OpGreaterThanOrEqual
	OpStartsWith
	OpEndsWith
	OpContains
	OpNotContains
	OpWildcard
)

var opSymbols = [...]string{"=", "!=", "<", ">", "<=", ">=", "^=", "$=", "~", "!~", "*="}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(opSymbols) {
		return fmt.Sprintf("Operation(%d)", int(o))
	}
	return opSymbols[o]
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	return o >= 0 && int(o) < len(opSymbols)
}

// Node is either a leaf comparison or a group of child nodes. A group with no
// children is always true.
type Node struct {
	leaf bool

	// Leaf
	Property string // canonical property name, e.g. System.Size
	Op       Operation
	Value    string

	// Group
	Combinator Combinator
	Children   []*Node

	resolver Resolver
	keyOnce  sync.Once
	key      PropertyKey
}

// Leaf builds a comparison node.
func Leaf(property string, op Operation, value string) *Node {
	return &Node{leaf: true, Property: property, Op: op, Value: value}
}

// Group builds a combinator node.
func Group(c Combinator, children ...*Node) *Node {
	return &Node{Combinator: c, Children: children}
}

// IsLeaf reports whether n is a comparison.
func (n *Node) IsLeaf() bool { return n.leaf }

// SetResolver sets the resolver used by PropertyKey. It has no effect once
// the key has been resolved.
func (n *Node) SetResolver(r Resolver) { n.resolver = r }

// PropertyKey resolves the leaf's canonical name on first use. An unknown
// name yields the zero key; the failure is not reported again.
func (n *Node) PropertyKey() PropertyKey {
	if !n.leaf {
		return PropertyKey{}
	}
	n.keyOnce.Do(func() {
		r := n.resolver
		if r == nil {
			r = System
		}
		if k, err := r.Resolve(n.Property); err == nil {
			n.key = k
		}
	})
	return n.key
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of that node.
func Walk(n *Node, fn func(n *Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		walk(c, depth+1, fn)
	}
}

// Equal reports whether a and b describe the same tree.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.leaf != b.leaf {
		return false
	}
	if a.leaf {
		return a.Property == b.Property && a.Op == b.Op && a.Value == b.Value
	}
	if a.Combinator != b.Combinator || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// String renders the tree for logs and debugging.
func (n *Node) String() string {
	var sb strings.Builder
	n.format(&sb)
	return sb.String()
}

func (n *Node) format(sb *strings.Builder) {
	if n.leaf {
		fmt.Fprintf(sb, "%s %s %q", n.Property, n.Op, n.Value)
		return
	}
	if len(n.Children) == 0 {
		sb.WriteString("TRUE")
		return
	}
	if n.Combinator == Not {
		sb.WriteString("NOT ")
	}
	sb.WriteByte('(')
	sep := " AND "
	if n.Combinator == Or {
		sep = " OR "
	}
	for i, c := range n.Children {
		if i > 0 {
			sb.WriteString(sep)
		}
		c.format(sb)
	}
	sb.WriteByte(')')
}
