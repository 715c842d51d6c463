package condition

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrSyntax is wrapped by ParseExpr errors.
var ErrSyntax = errors.New("syntax error")

// ParseExpr parses the compact query syntax used on the command line.
//
// Terms separated by spaces are joined with AND, terms separated by | with
// OR (binding tighter than AND), a leading - negates a term, and
// parentheses group. A term is either a bare word, matched against the
// name, or property followed by an operator and a value:
//
//	name:report.pdf    equal (or wildcard when the value contains * or ?)
//	name:~draft        contains      name:!~draft  does not contain
//	name:^IMG          starts with   name:$.jpg    ends with
//	size>1MB  size<=4096  modified>=2024-01-01  type!=tmp
//
// Values may be double-quoted to include spaces.
func ParseExpr(s string) (*Node, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks}
	n, err := p.and()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, p.toks[p.pos].text)
	}
	return unwrap(n), nil
}

// unwrap replaces a single-child AND group by its child.
func unwrap(n *Node) *Node {
	if !n.IsLeaf() && n.Combinator == And && len(n.Children) == 1 {
		return n.Children[0]
	}
	return n
}

type token struct {
	text   string
	quoted int // byte offset in text where quoted content starts, or -1
	punct  bool
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
			continue
		case c == '(' || c == ')' || c == '|':
			toks = append(toks, token{text: string(c), quoted: -1, punct: true})
			i++
			continue
		}

		var sb strings.Builder
		tok := token{quoted: -1}
		for i < len(s) {
			c := s[i]
			if c == '"' {
				end := strings.IndexByte(s[i+1:], '"')
				if end < 0 {
					return nil, fmt.Errorf("%w: unterminated quote", ErrSyntax)
				}
				if tok.quoted < 0 {
					tok.quoted = sb.Len()
				}
				sb.WriteString(s[i+1 : i+1+end])
				i += end + 2
				continue
			}
			if unicode.IsSpace(rune(c)) || c == '(' || c == ')' || c == '|' {
				break
			}
			sb.WriteByte(c)
			i++
		}
		tok.text = sb.String()
		toks = append(toks, tok)
	}
	return toks, nil
}

type exprParser struct {
	toks []token
	pos  int
}

func (p *exprParser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *exprParser) and() (*Node, error) {
	g := Group(And)
	for {
		t, ok := p.peek()
		if !ok || (t.punct && t.text == ")") {
			break
		}
		n, err := p.or()
		if err != nil {
			return nil, err
		}
		g.Children = append(g.Children, n)
	}
	return g, nil
}

func (p *exprParser) or() (*Node, error) {
	first, err := p.term()
	if err != nil {
		return nil, err
	}
	g := Group(Or, first)
	for {
		t, ok := p.peek()
		if !ok || !t.punct || t.text != "|" {
			break
		}
		p.pos++
		n, err := p.term()
		if err != nil {
			return nil, err
		}
		g.Children = append(g.Children, n)
	}
	if len(g.Children) == 1 {
		return first, nil
	}
	return g, nil
}

func (p *exprParser) term() (*Node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("%w: unexpected end of query", ErrSyntax)
	}
	p.pos++

	if t.punct {
		if t.text != "(" {
			return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, t.text)
		}
		n, err := p.and()
		if err != nil {
			return nil, err
		}
		if c, ok := p.peek(); !ok || c.text != ")" {
			return nil, fmt.Errorf("%w: missing )", ErrSyntax)
		}
		p.pos++
		return unwrap(n), nil
	}

	if strings.HasPrefix(t.text, "-") && len(t.text) > 1 && t.quoted != 0 {
		t.text = t.text[1:]
		if t.quoted > 0 {
			t.quoted--
		}
		n, err := comparison(t)
		if err != nil {
			return nil, err
		}
		return Group(Not, n), nil
	}
	return comparison(t)
}

// Operators recognised after the property name, longest first.
var exprOps = []struct {
	text string
	op   Operation
}{
	{":!~", OpNotContains},
	{":~", OpContains},
	{":^", OpStartsWith},
	{":$", OpEndsWith},
	{">=", OpGreaterThanOrEqual},
	{"<=", OpLessThanOrEqual},
	{"!=", OpNotEqual},
	{":", OpEqual},
	{">", OpGreaterThan},
	{"<", OpLessThan},
	{"=", OpEqual},
}

func comparison(t token) (*Node, error) {
	search := t.text
	if t.quoted >= 0 {
		search = t.text[:t.quoted]
	}
	at := strings.IndexAny(search, ":<>=!")
	if at <= 0 {
		return Leaf("System.ItemNameDisplay", wordOp(t.text, OpContains), t.text), nil
	}

	name, rest := t.text[:at], t.text[at:]
	prop, ok := CanonicalName(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown property %q", ErrSyntax, name)
	}
	for _, o := range exprOps {
		if strings.HasPrefix(rest, o.text) {
			value := rest[len(o.text):]
			op := o.op
			if op == OpEqual {
				op = wordOp(value, OpEqual)
			}
			return Leaf(prop, op, value), nil
		}
	}
	return nil, fmt.Errorf("%w: bad operator in %q", ErrSyntax, t.text)
}

func wordOp(value string, def Operation) Operation {
	if strings.ContainsAny(value, "*?") {
		return OpWildcard
	}
	return def
}
