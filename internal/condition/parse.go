package condition

import (
	"errors"
	"fmt"
)

// ErrEnumeration is wrapped by Parse when a sub-condition enumerator fails.
var ErrEnumeration = errors.New("sub-condition enumeration failed")

// Parse builds a tree from a native condition. Leaves keep r for lazy key
// resolution; nil means the system resolver.
//
// If a group's enumerator fails, Parse returns the tree built so far, with
// that group holding the children read before the failure, and an error
// wrapping ErrEnumeration.
func Parse(n Native, r Resolver) (*Node, error) {
	if n == nil {
		return nil, errors.New("nil condition")
	}
	switch n.Kind() {
	case NativeLeaf:
		prop, op, value, err := n.Comparison()
		if err != nil {
			return nil, fmt.Errorf("read comparison: %w", err)
		}
		leaf := Leaf(prop, op, value)
		leaf.SetResolver(r)
		return leaf, nil

	case NativeGroup:
		g := Group(n.Combinator())
		enum, err := n.SubConditions()
		if err != nil {
			return g, fmt.Errorf("%w: %v", ErrEnumeration, err)
		}
		for child, err := range Children(enum) {
			if err != nil {
				return g, fmt.Errorf("%w: %v", ErrEnumeration, err)
			}
			c, err := Parse(child, r)
			if c != nil {
				g.Children = append(g.Children, c)
			}
			if err != nil {
				return g, err
			}
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown condition kind %d", n.Kind())
}
