package condition

import (
	"errors"
	"fmt"
)

// Factory creates native conditions.
type Factory interface {
	NewLeaf(property string, op Operation, value string) (Native, error)
	NewGroup(c Combinator, children []Native) (Native, error)
}

// Serialize builds the native form of n bottom-up.
func Serialize(n *Node, f Factory) (Native, error) {
	if n == nil {
		return nil, errors.New("nil node")
	}
	if n.IsLeaf() {
		if !n.Op.Valid() {
			return nil, fmt.Errorf("serialize %s: invalid operation", n.Property)
		}
		return f.NewLeaf(n.Property, n.Op, n.Value)
	}

	children := make([]Native, 0, len(n.Children))
	for _, c := range n.Children {
		nc, err := Serialize(c, f)
		if err != nil {
			return nil, err
		}
		children = append(children, nc)
	}
	return f.NewGroup(n.Combinator, children)
}
