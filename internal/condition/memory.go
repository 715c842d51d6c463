package condition

import "fmt"

// MemoryCondition is an in-memory native condition graph.
type MemoryCondition struct {
	Leaf     bool
	Property string
	Op       Operation
	Value    string

	Comb     Combinator
	Children []*MemoryCondition

	// FailAt makes the sub-condition enumerator fail with Err after
	// yielding FailAt children. Zero Err disables it.
	FailAt int
	Err    error
}

func (m *MemoryCondition) Kind() NativeKind {
	if m.Leaf {
		return NativeLeaf
	}
	return NativeGroup
}

func (m *MemoryCondition) Comparison() (string, Operation, string, error) {
	return m.Property, m.Op, m.Value, nil
}

func (m *MemoryCondition) Combinator() Combinator { return m.Comb }

func (m *MemoryCondition) SubConditions() (Enumerator, error) {
	return &memoryEnumerator{m: m}, nil
}

type memoryEnumerator struct {
	m   *MemoryCondition
	pos int
}

func (e *memoryEnumerator) Next() (Native, Status, error) {
	if e.m.Err != nil && e.pos == e.m.FailAt {
		return nil, StatusDone, e.m.Err
	}
	if e.pos >= len(e.m.Children) {
		return nil, StatusDone, nil
	}
	c := e.m.Children[e.pos]
	e.pos++
	return c, StatusMore, nil
}

// MemoryFactory creates MemoryConditions.
type MemoryFactory struct{}

func (MemoryFactory) NewLeaf(property string, op Operation, value string) (Native, error) {
	return &MemoryCondition{Leaf: true, Property: property, Op: op, Value: value}, nil
}

func (MemoryFactory) NewGroup(c Combinator, children []Native) (Native, error) {
	g := &MemoryCondition{Comb: c}
	for _, n := range children {
		mc, ok := n.(*MemoryCondition)
		if !ok {
			return nil, fmt.Errorf("memory group: foreign child %T", n)
		}
		g.Children = append(g.Children, mc)
	}
	return g, nil
}
