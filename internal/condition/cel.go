package condition

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/models"
)

var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
	)
})

// Program is a compiled condition.
type Program struct {
	prg  cel.Program
	expr string
}

// Compile translates n to a CEL expression over the entry's properties and
// compiles it. Empty groups match everything; leaves whose property cannot
// be resolved match nothing.
func Compile(n *Node) (*Program, error) {
	expr, err := CELExpr(n)
	if err != nil {
		return nil, err
	}
	env, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	return &Program{prg: prg, expr: expr}, nil
}

// Expr returns the CEL source of the program.
func (p *Program) Expr() string { return p.expr }

// Match evaluates the program against e.
func (p *Program) Match(e *models.Entry) (bool, error) {
	vars := e.Properties()
	for k, v := range vars {
		if s, ok := v.(string); ok {
			vars[k] = strings.ToLower(s)
		}
	}
	out, _, err := p.prg.Eval(map[string]any{"item": vars})
	if err != nil {
		return false, err
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL result is not boolean: %T", out.Value())
	}
	return result, nil
}

// Filter adapts the program to a store filter. Evaluation errors exclude
// the entry.
func (p *Program) Filter() func(*models.Entry) bool {
	log := logging.Named("condition")
	return func(e *models.Entry) bool {
		ok, err := p.Match(e)
		if err != nil {
			log.Debug("condition evaluation failed", zap.String("id", string(e.ID)), zap.Error(err))
			return false
		}
		return ok
	}
}

// CELExpr renders n as a CEL boolean expression.
func CELExpr(n *Node) (string, error) {
	if n == nil {
		return "true", nil
	}
	if n.IsLeaf() {
		return celLeaf(n)
	}
	if len(n.Children) == 0 {
		return "true", nil
	}

	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		s, err := CELExpr(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	switch n.Combinator {
	case Or:
		return "(" + strings.Join(parts, " || ") + ")", nil
	case Not:
		return "!(" + strings.Join(parts, " && ") + ")", nil
	}
	return "(" + strings.Join(parts, " && ") + ")", nil
}

func celLeaf(n *Node) (string, error) {
	p, ok := lookupKey(n.PropertyKey())
	if !ok {
		return "false", nil
	}
	v, err := parseValue(p, n.Op, n.Value)
	if err != nil {
		return "", err
	}

	field := "item." + p.field
	var lit string
	switch v := v.(type) {
	case int64:
		lit = strconv.FormatInt(v, 10)
	case time.Time:
		lit = fmt.Sprintf("timestamp(%s)", strconv.Quote(v.UTC().Format(time.RFC3339Nano)))
	case string:
		lit = strconv.Quote(v)
	}

	switch n.Op {
	case OpEqual:
		return field + " == " + lit, nil
	case OpNotEqual:
		return field + " != " + lit, nil
	case OpLessThan:
		return field + " < " + lit, nil
	case OpGreaterThan:
		return field + " > " + lit, nil
	case OpLessThanOrEqual:
		return field + " <= " + lit, nil
	case OpGreaterThanOrEqual:
		return field + " >= " + lit, nil
	case OpStartsWith:
		return field + ".startsWith(" + lit + ")", nil
	case OpEndsWith:
		return field + ".endsWith(" + lit + ")", nil
	case OpContains:
		return field + ".contains(" + lit + ")", nil
	case OpNotContains:
		return "!" + field + ".contains(" + lit + ")", nil
	case OpWildcard:
		return field + ".matches(" + strconv.Quote(globPattern(v.(string))) + ")", nil
	}
	return "", fmt.Errorf("%s %s: %w", p.canonical, n.Op, ErrUnsupported)
}
