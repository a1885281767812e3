package expr

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MaxLength caps the source length of an expression.
	MaxLength = 1024
	// MaxDepth caps operator and parenthesis nesting.
	MaxDepth = 64

	// Variable is the single free variable an expression may reference.
	Variable = "x"
)

var (
	ErrEmpty          = errors.New("expression cannot be empty")
	ErrDivisionByZero = errors.New("division by zero")
)

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

type node interface {
	eval(x float64) (float64, error)
}

type numberNode float64

func (n numberNode) eval(float64) (float64, error) { return float64(n), nil }

type varNode struct{}

func (varNode) eval(x float64) (float64, error) { return x, nil }

type negNode struct{ operand node }

func (n negNode) eval(x float64) (float64, error) {
	v, err := n.operand.eval(x)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

type binaryNode struct {
	op          byte
	left, right node
}

func (n binaryNode) eval(x float64) (float64, error) {
	l, err := n.left.eval(x)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(x)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	case '^':
		return math.Pow(l, r), nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

type callNode struct {
	name string
	fn   function
	args []node
}

func (n callNode) eval(x float64) (float64, error) {
	vals := make([]float64, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(x)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	v, err := n.fn.call(vals)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", n.name, err)
	}
	return v, nil
}

// parser is a recursive-descent parser for:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = ("+" | "-") unary | power
//	power  = primary [ "^" unary ]
//	primary = number | ident | ident "(" [ expr { "," expr } ] ")" | "(" expr ")"
type parser struct {
	toks  []token
	pos   int
	depth int
	usesX bool
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return fmt.Errorf("expression nesting exceeds %d levels", MaxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseExpr() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.text[0], left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.text[0], left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.text == "-" {
			return negNode{operand: operand}, nil
		}
		return operand, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokOp || t.text != "^" {
		return base, nil
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.next()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return binaryNode{op: '^', left: base, right: exp}, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberNode(t.num), nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("expected \")\" but found %s", closing.describe())
		}
		return inner, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		if t.text == Variable {
			p.usesX = true
			return varNode{}, nil
		}
		if v, ok := constants[t.text]; ok {
			return numberNode(v), nil
		}
		if _, ok := functions[t.text]; ok {
			return nil, fmt.Errorf("function %s must be called with parentheses", t.text)
		}
		return nil, fmt.Errorf("unknown symbol %q (only %s is allowed)", t.text, Variable)
	default:
		return nil, fmt.Errorf("unexpected %s", t.describe())
	}
}

func (p *parser) parseCall(name token) (node, error) {
	fn, ok := functions[name.text]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name.text)
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.next() // "("

	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if closing := p.next(); closing.kind != tokRParen {
		return nil, fmt.Errorf("expected \")\" after arguments to %s but found %s", name.text, closing.describe())
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, fmt.Errorf("%s: %s", name.text, fn.arity())
	}
	return callNode{name: name.text, fn: fn, args: args}, nil
}

// Program is a compiled expression ready for repeated evaluation.
type Program struct {
	source string
	root   node
	usesX  bool
}

// Compile parses src without evaluating it.
func Compile(src string) (*Program, error) {
	if len(src) > MaxLength {
		return nil, fmt.Errorf("expression longer than %d characters", MaxLength)
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	if len(toks) == 1 {
		return nil, ErrEmpty
	}
	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s", t.describe())
	}
	return &Program{source: src, root: root, usesX: p.usesX}, nil
}

// Source returns the expression text the program was compiled from.
func (p *Program) Source() string { return p.source }

// UsesVariable reports whether the expression references x.
func (p *Program) UsesVariable() bool { return p.usesX }

// Eval evaluates the program with x bound to the given value.
func (p *Program) Eval(x float64) (float64, error) {
	return p.root.eval(x)
}
