// Package expression compiles boolean expressions over pointcut names and
// evaluates them against caller-supplied bindings.
//
// Grammar, lowest precedence first:
//
//	or   := and ( "||" and )*
//	and  := not ( "&&" not )*
//	not  := "!" not | atom
//	atom := IDENT | "(" or ")"
//
// The words AND, OR and NOT (any case) are accepted for the symbolic operators.
package expression

import (
	"fmt"
	"strings"
)

// Binder resolves a pointcut name to its match result for one evaluation. A
// Binder must return an error, never false, for names it cannot resolve.
type Binder func(name string) (bool, error)

// MapBinder binds names from a fixed assignment.
func MapBinder(values map[string]bool) Binder {
	return func(name string) (bool, error) {
		v, ok := values[name]
		if !ok {
			return false, &UndefinedReferenceError{Name: name}
		}
		return v, nil
	}
}

type node interface {
	eval(values map[string]bool) bool
	String() string
}

type (
	identNode struct{ name string }
	notNode   struct{ child node }
	andNode   struct{ left, right node }
	orNode    struct{ left, right node }
)

func (n *identNode) eval(values map[string]bool) bool { return values[n.name] }
func (n *notNode) eval(values map[string]bool) bool   { return !n.child.eval(values) }

func (n *andNode) eval(values map[string]bool) bool {
	return n.left.eval(values) && n.right.eval(values)
}

func (n *orNode) eval(values map[string]bool) bool {
	return n.left.eval(values) || n.right.eval(values)
}

func (n *identNode) String() string { return n.name }
func (n *notNode) String() string   { return "!" + n.child.String() }
func (n *andNode) String() string   { return "(" + n.left.String() + " && " + n.right.String() + ")" }
func (n *orNode) String() string    { return "(" + n.left.String() + " || " + n.right.String() + ")" }

// Expression is a compiled boolean expression. It is immutable and safe for
// concurrent evaluation; results are never cached.
type Expression struct {
	source string
	root   node
	names  []string
}

// Parse compiles text into an Expression.
func Parse(text string) (*Expression, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SyntaxError{Expression: text, Reason: "empty expression"}
	}
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{text: text, tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type != TokenEOF {
		return nil, p.errorf(t, "unexpected %s, expected end of expression", t.Type)
	}
	return &Expression{source: strings.TrimSpace(text), root: root, names: p.names}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(text string) *Expression {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expression) Source() string { return e.source }

// String returns the fully parenthesized canonical form.
func (e *Expression) String() string { return e.root.String() }

// Names returns the distinct pointcut names referenced, in order of first use.
func (e *Expression) Names() []string {
	names := make([]string, len(e.names))
	copy(names, e.names)
	return names
}

// References reports whether the expression references name.
func (e *Expression) References(name string) bool {
	for _, n := range e.names {
		if n == name {
			return true
		}
	}
	return false
}

// Evaluate binds every referenced name once, in order of first use, then
// evaluates the tree with short-circuit semantics. A name b cannot resolve
// fails the evaluation whatever the other operands are.
func (e *Expression) Evaluate(b Binder) (bool, error) {
	values := make(map[string]bool, len(e.names))
	for _, name := range e.names {
		v, err := b(name)
		if err != nil {
			return false, fmt.Errorf("evaluate %q: %w", e.source, err)
		}
		values[name] = v
	}
	return e.root.eval(values), nil
}

// EvaluateRule combines a member expression with an optional control-flow
// expression. The control-flow expression is evaluated only when the member
// expression is false.
func EvaluateRule(member, cflow *Expression, b Binder) (bool, error) {
	if member == nil {
		return false, fmt.Errorf("rule without member expression")
	}
	ok, err := member.Evaluate(b)
	if err != nil {
		return false, err
	}
	if ok || cflow == nil {
		return ok, nil
	}
	return cflow.Evaluate(b)
}

type parser struct {
	text   string
	tokens []Token
	pos    int
	names  []string
	seen   map[string]struct{}
}

func (p *parser) peek() Token { return p.tokens[p.pos] }

func (p *parser) next() Token {
	t := p.tokens[p.pos]
	if t.Type != TokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t Token, format string, args ...any) error {
	return &SyntaxError{Expression: p.text, Position: t.Position, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == TokenAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.peek().Type == TokenNot {
		p.next()
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{child: child}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (node, error) {
	t := p.next()
	switch t.Type {
	case TokenIdent:
		if p.seen == nil {
			p.seen = map[string]struct{}{}
		}
		if _, ok := p.seen[t.Value]; !ok {
			p.seen[t.Value] = struct{}{}
			p.names = append(p.names, t.Value)
		}
		return &identNode{name: t.Value}, nil
	case TokenLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.Type != TokenRParen {
			return nil, p.errorf(closing, "missing ')'")
		}
		return inner, nil
	case TokenEOF:
		return nil, p.errorf(t, "unexpected end of expression")
	default:
		return nil, p.errorf(t, "unexpected %s", t.Type)
	}
}
