// Package formula implements the small expression language behind monitor
// formulas: arithmetic over literal numbers and ${monitor:id} / ${webhook:id}
// references, plus the abs, max, and min functions.
package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNoValue signals that a referenced monitor or webhook has no known value
// yet. Evaluation stops, but callers treat this as "no value", not a failure.
var ErrNoValue = errors.New("referenced value not available")

// RefKind distinguishes the two reference namespaces.
type RefKind string

const (
	RefMonitor RefKind = "monitor"
	RefWebhook RefKind = "webhook"
)

// Ref is a single ${monitor:id} or ${webhook:id} reference.
type Ref struct {
	Kind RefKind
	ID   string
}

func (r Ref) String() string { return fmt.Sprintf("${%s:%s}", r.Kind, r.ID) }

// Resolver maps references to their last-known numeric values. The second
// return is false when no value is known.
type Resolver interface {
	Resolve(ref Ref) (float64, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ref Ref) (float64, bool)

func (f ResolverFunc) Resolve(ref Ref) (float64, bool) { return f(ref) }

// Expr is a parsed formula ready for evaluation.
type Expr struct {
	root node
	refs []Ref
}

// Parse validates and compiles a formula string.
func Parse(input string) (*Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, errors.New("empty formula")
	}
	p := &parser{input: input}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}

	e := &Expr{root: root}
	collectRefs(root, &e.refs)
	return e, nil
}

// Eval computes the formula against the resolver. An unresolved reference
// returns an error wrapping ErrNoValue.
func (e *Expr) Eval(r Resolver) (float64, error) {
	return e.root.eval(r)
}

// Refs returns every reference in the formula, in source order.
func (e *Expr) Refs() []Ref {
	return e.refs
}

// MonitorRefs returns the ids of referenced monitors.
func (e *Expr) MonitorRefs() []string {
	var ids []string
	for _, ref := range e.refs {
		if ref.Kind == RefMonitor {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}

// ── AST ────────────────────────────────────────────────────────────────

type node interface {
	eval(r Resolver) (float64, error)
}

type literal float64

func (l literal) eval(Resolver) (float64, error) { return float64(l), nil }

type refNode struct{ ref Ref }

func (n refNode) eval(r Resolver) (float64, error) {
	v, ok := r.Resolve(n.ref)
	if !ok {
		return 0, fmt.Errorf("%s: %w", n.ref, ErrNoValue)
	}
	return v, nil
}

type binary struct {
	op          byte
	left, right node
}

func (n binary) eval(r Resolver) (float64, error) {
	l, err := n.left.eval(r)
	if err != nil {
		return 0, err
	}
	rv, err := n.right.eval(r)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + rv, nil
	case '-':
		return l - rv, nil
	case '*':
		return l * rv, nil
	case '/':
		if rv == 0 {
			return 0, errors.New("division by zero")
		}
		return l / rv, nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

type negate struct{ inner node }

func (n negate) eval(r Resolver) (float64, error) {
	v, err := n.inner.eval(r)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

type call struct {
	fn   string
	args []node
}

func (n call) eval(r Resolver) (float64, error) {
	vals := make([]float64, len(n.args))
	for i, arg := range n.args {
		v, err := arg.eval(r)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	switch n.fn {
	case "abs":
		return math.Abs(vals[0]), nil
	case "max":
		out := vals[0]
		for _, v := range vals[1:] {
			out = math.Max(out, v)
		}
		return out, nil
	case "min":
		out := vals[0]
		for _, v := range vals[1:] {
			out = math.Min(out, v)
		}
		return out, nil
	}
	return 0, fmt.Errorf("unknown function %q", n.fn)
}

func collectRefs(n node, out *[]Ref) {
	switch v := n.(type) {
	case refNode:
		*out = append(*out, v.ref)
	case binary:
		collectRefs(v.left, out)
		collectRefs(v.right, out)
	case negate:
		collectRefs(v.inner, out)
	case call:
		for _, arg := range v.args {
			collectRefs(arg, out)
		}
	}
}

// ── Parser ─────────────────────────────────────────────────────────────
//
// expr   := term (('+'|'-') term)*
// term   := factor (('*'|'/') factor)*
// factor := number | ref | '-' factor | '(' expr ')' | func '(' expr (',' expr)* ')'

type parser struct {
	input string
	pos   int
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
}

func (p *parser) parseFactor() (node, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, errors.New("unexpected end of formula")
	}

	switch c := p.input[p.pos]; {
	case c == '-':
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return negate{inner: inner}, nil

	case c == '(':
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return inner, nil

	case c == '$':
		return p.parseRef()

	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()

	case isAlpha(c):
		return p.parseCall()
	}

	return nil, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
}

func (p *parser) parseNumber() (node, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return literal(v), nil
}

// parseRef consumes ${monitor:id} or ${webhook:id}.
func (p *parser) parseRef() (node, error) {
	start := p.pos
	if !strings.HasPrefix(p.input[p.pos:], "${") {
		return nil, fmt.Errorf("malformed reference at position %d", start)
	}
	end := strings.IndexByte(p.input[p.pos:], '}')
	if end < 0 {
		return nil, fmt.Errorf("unterminated reference at position %d", start)
	}
	body := p.input[p.pos+2 : p.pos+end]
	p.pos += end + 1

	kind, id, ok := strings.Cut(body, ":")
	if !ok || id == "" {
		return nil, fmt.Errorf("malformed reference %q", "${"+body+"}")
	}
	switch RefKind(kind) {
	case RefMonitor, RefWebhook:
	default:
		return nil, fmt.Errorf("unknown reference type %q", kind)
	}
	return refNode{ref: Ref{Kind: RefKind(kind), ID: id}}, nil
}

func (p *parser) parseCall() (node, error) {
	start := p.pos
	for p.pos < len(p.input) && isAlpha(p.input[p.pos]) {
		p.pos++
	}
	fn := p.input[start:p.pos]
	switch fn {
	case "abs", "max", "min":
	default:
		return nil, fmt.Errorf("unknown function %q", fn)
	}

	if err := p.expect('('); err != nil {
		return nil, err
	}
	var args []node
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}

	if fn == "abs" && len(args) != 1 {
		return nil, fmt.Errorf("abs takes exactly one argument, got %d", len(args))
	}
	return call{fn: fn, args: args}, nil
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return fmt.Errorf("expected %q at position %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
