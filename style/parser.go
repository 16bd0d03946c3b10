// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package style

import (
	"fmt"
	"strings"
	"time"

	"github.com/gogpu/geoviz/expr"
	"github.com/gogpu/geoviz/schema"
)

// Parse parses a style sheet: one "channel: expression" declaration
// per line, validated against the dataset schema. Channels may appear
// at most once; the expression's type must match the channel.
func Parse(src string, s schema.Schema) (map[Channel]expr.Node, error) {
	toks, err := newLexer(src).scan()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, schema: s}
	return p.sheet()
}

// ParseExpr parses a single style expression against the schema.
func ParseExpr(src string, s schema.Schema) (expr.Node, error) {
	toks, err := newLexer(src).scan()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, schema: s}
	p.skipNewlines()
	n, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if !p.atEnd() {
		return nil, p.errAt(p.peek(), "unexpected %q after expression", p.peek().Lexeme)
	}
	return n, nil
}

type parser struct {
	toks   []Token
	i      int
	schema schema.Schema
}

func (p *parser) atEnd() bool { return p.peek().Type == EOF }

func (p *parser) peek() Token {
	if p.i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i]
}

func (p *parser) prev() Token { return p.toks[p.i-1] }

func (p *parser) match(tt ...TokenType) bool {
	for _, t := range tt {
		if p.peek().Type == t {
			p.i++
			return true
		}
	}
	return false
}

func (p *parser) need(t TokenType, msg string) (Token, error) {
	if p.match(t) {
		return p.prev(), nil
	}
	return Token{}, p.errAt(p.peek(), "%s", msg)
}

func (p *parser) errAt(tok Token, format string, args ...any) error {
	return &ParseError{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) wrapAt(tok Token, msg string, err error) error {
	return &ParseError{Line: tok.Line, Col: tok.Col, Msg: msg, Err: err}
}

func (p *parser) skipNewlines() {
	for p.match(NEWLINE) {
	}
}

// sheet parses newline-separated channel declarations.
func (p *parser) sheet() (map[Channel]expr.Node, error) {
	decls := make(map[Channel]expr.Node)
	for {
		p.skipNewlines()
		if p.atEnd() {
			return decls, nil
		}
		key, err := p.need(IDENT, "expected a channel name")
		if err != nil {
			return nil, err
		}
		ch, ok := ChannelByName(key.Lexeme)
		if !ok {
			return nil, p.errAt(key, "unknown channel %q", key.Lexeme)
		}
		if _, dup := decls[ch]; dup {
			return nil, p.errAt(key, "duplicate channel %q", key.Lexeme)
		}
		if _, err := p.need(COLON, "expected ':' after channel name"); err != nil {
			return nil, err
		}
		root, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		if root.Type() != ch.ValueType() {
			return nil, p.errAt(key, "%s wants a %s expression, got %s",
				ch, ch.ValueType(), root.Type())
		}
		decls[ch] = root
		if !p.match(NEWLINE) && !p.atEnd() {
			return nil, p.errAt(p.peek(), "expected end of line after %s declaration", ch)
		}
	}
}

// lbp returns the left binding power of an infix operator.
func lbp(t TokenType) (int, bool) {
	switch t {
	case CARET:
		return 80, true
	case STAR, SLASH, PERCENT:
		return 70, true
	case PLUS, MINUS:
		return 60, true
	}
	return 0, false
}

func isRightAssoc(t TokenType) bool { return t == CARET }

// negBP is the binding power of prefix minus: tighter than addition,
// looser than exponentiation so -x^2 reads -(x^2).
const negBP = 70

func (p *parser) expression(minBP int) (expr.Node, error) {
	left, err := p.prefixExpr()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		bp, ok := lbp(op.Type)
		if !ok || bp < minBP {
			return left, nil
		}
		p.i++
		nextMin := bp + 1
		if isRightAssoc(op.Type) {
			nextMin = bp
		}
		right, err := p.expression(nextMin)
		if err != nil {
			return nil, err
		}
		left, err = p.foldBinary(op, left, right)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) foldBinary(op Token, a, b expr.Node) (expr.Node, error) {
	var n expr.Node
	var err error
	switch op.Type {
	case PLUS:
		n, err = expr.Add(a, b)
	case MINUS:
		n, err = expr.Sub(a, b)
	case STAR:
		n, err = expr.Mul(a, b)
	case SLASH:
		n, err = expr.Div(a, b)
	case PERCENT:
		n, err = expr.Mod(a, b)
	case CARET:
		n, err = expr.Pow(a, b)
	}
	if err != nil {
		return nil, p.wrapAt(op, "invalid operands for "+op.Lexeme, err)
	}
	return n, nil
}

func (p *parser) prefixExpr() (expr.Node, error) {
	tok := p.peek()
	switch tok.Type {
	case NUMBER:
		p.i++
		return expr.Const(tok.Num), nil

	case MINUS:
		p.i++
		operand, err := p.expression(negBP)
		if err != nil {
			return nil, err
		}
		n, err := expr.Neg(operand)
		if err != nil {
			return nil, p.wrapAt(tok, "invalid operand for -", err)
		}
		return n, nil

	case PROPERTY:
		p.i++
		n, err := expr.Prop(tok.Lexeme, p.schema)
		if err != nil {
			return nil, p.wrapAt(tok, "bad property reference", err)
		}
		return n, nil

	case HEXCOLOR:
		p.i++
		c, err := expr.Hex(tok.Lexeme)
		if err != nil {
			return nil, p.wrapAt(tok, "bad hex color", err)
		}
		return expr.ConstColor(c), nil

	case LPAREN:
		p.i++
		n, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(RPAREN, "expected ')'"); err != nil {
			return nil, err
		}
		return n, nil

	case IDENT:
		p.i++
		if p.peek().Type == LPAREN {
			p.i++
			return p.call(tok)
		}
		if c, ok := expr.NamedColor(tok.Lexeme); ok {
			return expr.ConstColor(c), nil
		}
		if _, ok := expr.LookupPalette(tok.Lexeme); ok {
			return nil, p.errAt(tok, "palette %q is only valid as a ramp argument", tok.Lexeme)
		}
		return nil, p.errAt(tok, "unknown name %q", tok.Lexeme)
	}
	return nil, p.errAt(tok, "unexpected %q", tok.Lexeme)
}

// call parses and folds a function call. The '(' is already consumed.
// Function names are matched case-insensitively.
func (p *parser) call(name Token) (expr.Node, error) {
	fn := strings.ToLower(name.Lexeme)
	if fn == "ramp" {
		return p.rampCall(name)
	}

	args, err := p.arguments()
	if err != nil {
		return nil, err
	}

	want, known := builtinArity[fn]
	if !known {
		return nil, p.errAt(name, "unknown function %q", name.Lexeme)
	}
	if !want.accepts(len(args)) {
		return nil, p.errAt(name, "%s takes %s, got %d", name.Lexeme, want, len(args))
	}

	n, err := p.foldCall(fn, args)
	if err != nil {
		return nil, p.wrapAt(name, "in "+name.Lexeme+"()", err)
	}
	return n, nil
}

func (p *parser) arguments() ([]expr.Node, error) {
	var args []expr.Node
	if p.match(RPAREN) {
		return args, nil
	}
	for {
		n, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
		if p.match(COMMA) {
			continue
		}
		if _, err := p.need(RPAREN, "expected ')' after arguments"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

// rampCall parses ramp(input, palette) or ramp(input, color, color...).
func (p *parser) rampCall(name Token) (expr.Node, error) {
	input, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(COMMA, "ramp needs a palette or color list"); err != nil {
		return nil, err
	}

	// A bare identifier naming a palette selects the palette form.
	if tok := p.peek(); tok.Type == IDENT {
		if pal, ok := expr.LookupPalette(tok.Lexeme); ok {
			p.i++
			if _, err := p.need(RPAREN, "expected ')' after palette"); err != nil {
				return nil, err
			}
			n, err := expr.Ramp(input, pal)
			if err != nil {
				return nil, p.wrapAt(name, "in ramp()", err)
			}
			return n, nil
		}
	}

	// Otherwise the remaining arguments are constant colors.
	args, err := p.arguments()
	if err != nil {
		return nil, err
	}
	stops := make([]expr.Color, len(args))
	for i, a := range args {
		c, ok := expr.ConstColorValue(a)
		if !ok {
			return nil, p.errAt(name, "ramp stop %d is not a constant color", i+1)
		}
		stops[i] = c
	}
	n, err := expr.RampColors(input, stops...)
	if err != nil {
		return nil, p.wrapAt(name, "in ramp()", err)
	}
	return n, nil
}

// arity is an accepted argument-count set.
type arity struct {
	n   int
	alt int // second accepted count, -1 when none
}

func (a arity) accepts(n int) bool { return n == a.n || n == a.alt }

func (a arity) String() string {
	if a.alt >= 0 {
		return fmt.Sprintf("%d or %d arguments", a.n, a.alt)
	}
	if a.n == 1 {
		return "1 argument"
	}
	return fmt.Sprintf("%d arguments", a.n)
}

func exactly(n int) arity { return arity{n: n, alt: -1} }

// builtinArity is the closed set of style functions. Ramp is handled
// separately because its palette argument is not an expression.
var builtinArity = map[string]arity{
	"rgba":       exactly(4),
	"hsv":        exactly(3),
	"cielab":     exactly(3),
	"xyz":        exactly(3),
	"blend":      exactly(3),
	"animate":    exactly(1),
	"near":       exactly(4),
	"top":        exactly(2),
	"setopacity": exactly(2),
	"now":        exactly(0),
	"zoom":       exactly(0),
	"linear":     {n: 1, alt: 3},
	"cubic":      {n: 1, alt: 3},
	"log":        exactly(1),
	"sqrt":       exactly(1),
	"sin":        exactly(1),
	"cos":        exactly(1),
	"tan":        exactly(1),
	"sign":       exactly(1),
	"abs":        exactly(1),
	"min":        exactly(2),
	"max":        exactly(2),
	"pow":        exactly(2),
}

func (p *parser) foldCall(fn string, args []expr.Node) (expr.Node, error) {
	switch fn {
	case "rgba":
		return expr.RGBA(args[0], args[1], args[2], args[3])
	case "hsv":
		return expr.HSV(args[0], args[1], args[2])
	case "cielab":
		return expr.CIELab(args[0], args[1], args[2])
	case "xyz":
		return expr.XYZ(args[0], args[1], args[2])
	case "blend":
		return expr.Blend(args[0], args[1], args[2])
	case "animate":
		secs, ok := expr.ConstValue(args[0])
		if !ok {
			return nil, &expr.TypeError{Op: "animate", Detail: "duration must be a number literal"}
		}
		return expr.Animate(time.Duration(secs * float64(time.Second))), nil
	case "near":
		return expr.Near(args[0], args[1], args[2], args[3])
	case "top":
		return expr.Top(args[0], args[1])
	case "setopacity":
		return expr.SetOpacity(args[0], args[1])
	case "now":
		return expr.Now(), nil
	case "zoom":
		return expr.Zoom(), nil
	case "linear":
		if len(args) == 1 {
			return expr.Linear(args[0], nil, nil)
		}
		return expr.Linear(args[0], args[1], args[2])
	case "cubic":
		if len(args) == 1 {
			return expr.Cubic(args[0], nil, nil)
		}
		return expr.Cubic(args[0], args[1], args[2])
	case "log":
		return expr.Log(args[0])
	case "sqrt":
		return expr.Sqrt(args[0])
	case "sin":
		return expr.Sin(args[0])
	case "cos":
		return expr.Cos(args[0])
	case "tan":
		return expr.Tan(args[0])
	case "sign":
		return expr.Sign(args[0])
	case "abs":
		return expr.Abs(args[0])
	case "min":
		return expr.Min(args[0], args[1])
	case "max":
		return expr.Max(args[0], args[1])
	case "pow":
		return expr.Pow(args[0], args[1])
	default:
		return nil, &expr.TypeError{Op: fn, Detail: "unknown function"}
	}
}
