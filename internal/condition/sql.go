package condition

import (
	"fmt"
	"strings"
)

// sqlColumns maps property fields to search index columns.
var sqlColumns = map[string]string{
	"name":       "name",
	"filename":   "name",
	"size":       "size",
	"modified":   "modified",
	"type":       "type",
	"attributes": "attributes",
}

var sqlOps = map[Operation]string{
	OpEqual:              "=",
	OpNotEqual:           "<>",
	OpLessThan:           "<",
	OpGreaterThan:        ">",
	OpLessThanOrEqual:    "<=",
	OpGreaterThanOrEqual: ">=",
}

// ToSQL renders n as a WHERE clause over the search index table. Placeholders
// are numbered from firstArg; the returned args fill them in order.
func ToSQL(n *Node, firstArg int) (string, []any, error) {
	b := &sqlBuilder{next: firstArg}
	clause, err := b.node(n)
	if err != nil {
		return "", nil, err
	}
	return clause, b.args, nil
}

type sqlBuilder struct {
	args []any
	next int
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	s := fmt.Sprintf("$%d", b.next)
	b.next++
	return s
}

func (b *sqlBuilder) node(n *Node) (string, error) {
	if n == nil {
		return "TRUE", nil
	}
	if n.IsLeaf() {
		return b.leaf(n)
	}
	if len(n.Children) == 0 {
		return "TRUE", nil
	}

	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		s, err := b.node(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	switch n.Combinator {
	case Or:
		return "(" + strings.Join(parts, " OR ") + ")", nil
	case Not:
		return "NOT (" + strings.Join(parts, " AND ") + ")", nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (b *sqlBuilder) leaf(n *Node) (string, error) {
	p, ok := lookupKey(n.PropertyKey())
	if !ok {
		return "FALSE", nil
	}
	v, err := parseValue(p, n.Op, n.Value)
	if err != nil {
		return "", err
	}
	col := sqlColumns[p.field]

	if op, ok := sqlOps[n.Op]; ok {
		if p.kind == kindString {
			return fmt.Sprintf("lower(%s) %s %s", col, op, b.arg(v)), nil
		}
		return fmt.Sprintf("%s %s %s", col, op, b.arg(v)), nil
	}

	s := v.(string)
	switch n.Op {
	case OpStartsWith:
		return fmt.Sprintf("%s ILIKE %s", col, b.arg(likeEscaper.Replace(s)+"%")), nil
	case OpEndsWith:
		return fmt.Sprintf("%s ILIKE %s", col, b.arg("%"+likeEscaper.Replace(s))), nil
	case OpContains:
		return fmt.Sprintf("%s ILIKE %s", col, b.arg("%"+likeEscaper.Replace(s)+"%")), nil
	case OpNotContains:
		return fmt.Sprintf("%s NOT ILIKE %s", col, b.arg("%"+likeEscaper.Replace(s)+"%")), nil
	case OpWildcard:
		return fmt.Sprintf("%s ILIKE %s", col, b.arg(likePattern(s))), nil
	}
	return "", fmt.Errorf("%s %s: %w", p.canonical, n.Op, ErrUnsupported)
}
