// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import "math"

// binOp enumerates the binary float operations. The set is closed;
// construction-time checks dispatch over it.
type binOp uint8

const (
	opAdd binOp = iota
	opSub
	opMul
	opDiv
	opMod
	opPow
	opMin
	opMax
)

var binOpNames = [...]string{"add", "sub", "mul", "div", "mod", "pow", "min", "max"}

type binaryNode struct {
	base
	op   binOp
	a, b Node
}

func newBinary(op binOp, a, b Node) (Node, error) {
	name := binOpNames[op]
	if err := needFloat(name, a, b); err != nil {
		return nil, err
	}
	n := &binaryNode{op: op, a: a, b: b}
	adopt(n, a, b)
	return n, nil
}

// Add returns a + b. Both operands must be float-valued.
func Add(a, b Node) (Node, error) { return newBinary(opAdd, a, b) }

// Sub returns a - b.
func Sub(a, b Node) (Node, error) { return newBinary(opSub, a, b) }

// Mul returns a * b.
func Mul(a, b Node) (Node, error) { return newBinary(opMul, a, b) }

// Div returns a / b.
func Div(a, b Node) (Node, error) { return newBinary(opDiv, a, b) }

// Mod returns the truncated remainder of a / b.
func Mod(a, b Node) (Node, error) { return newBinary(opMod, a, b) }

// Pow returns a raised to b.
func Pow(a, b Node) (Node, error) { return newBinary(opPow, a, b) }

// Min returns the smaller of a and b.
func Min(a, b Node) (Node, error) { return newBinary(opMin, a, b) }

// Max returns the larger of a and b.
func Max(a, b Node) (Node, error) { return newBinary(opMax, a, b) }

func (n *binaryNode) Type() Type { return TypeFloat }

func (n *binaryNode) EmitSource(ctx *EmitContext) string {
	a := n.a.EmitSource(ctx)
	b := n.b.EmitSource(ctx)
	switch n.op {
	case opAdd:
		return "(" + a + " + " + b + ")"
	case opSub:
		return "(" + a + " - " + b + ")"
	case opMul:
		return "(" + a + " * " + b + ")"
	case opDiv:
		return "(" + a + " / " + b + ")"
	case opMod:
		return "(" + a + " - " + b + " * floor(" + a + " / " + b + "))"
	case opPow:
		return "pow(" + a + ", " + b + ")"
	case opMin:
		return "min(" + a + ", " + b + ")"
	default:
		return "max(" + a + ", " + b + ")"
	}
}

func (n *binaryNode) AfterLink(p Program) {
	n.a.AfterLink(p)
	n.b.AfterLink(p)
}

func (n *binaryNode) BeforeDraw(fs *FrameState, u UniformStore) {
	n.a.BeforeDraw(fs, u)
	n.b.BeforeDraw(fs, u)
}

func (n *binaryNode) IsAnimated() bool {
	return n.a.IsAnimated() || n.b.IsAnimated()
}

func (n *binaryNode) Eval(env *EvalEnv) Value {
	a := n.a.Eval(env).Float
	b := n.b.Eval(env).Float
	switch n.op {
	case opAdd:
		return FloatVal(a + b)
	case opSub:
		return FloatVal(a - b)
	case opMul:
		return FloatVal(a * b)
	case opDiv:
		return FloatVal(a / b)
	case opMod:
		return FloatVal(a - b*math.Floor(a/b))
	case opPow:
		return FloatVal(math.Pow(a, b))
	case opMin:
		return FloatVal(math.Min(a, b))
	default:
		return FloatVal(math.Max(a, b))
	}
}

func (n *binaryNode) Children() []Node { return []Node{n.a, n.b} }

func (n *binaryNode) ReplaceChild(old, new Node) bool {
	return replaceIn([]*Node{&n.a, &n.b}, n, old, new)
}

// unOp enumerates the unary float operations.
type unOp uint8

const (
	opNeg unOp = iota
	opLog
	opSqrt
	opSin
	opCos
	opTan
	opSign
	opAbs
)

var unOpNames = [...]string{"neg", "log", "sqrt", "sin", "cos", "tan", "sign", "abs"}

type unaryNode struct {
	base
	op unOp
	a  Node
}

func newUnary(op unOp, a Node) (Node, error) {
	if err := needFloat(unOpNames[op], a); err != nil {
		return nil, err
	}
	n := &unaryNode{op: op, a: a}
	adopt(n, a)
	return n, nil
}

// Neg returns the negation of a.
func Neg(a Node) (Node, error) { return newUnary(opNeg, a) }

// Log returns the natural logarithm of a.
func Log(a Node) (Node, error) { return newUnary(opLog, a) }

// Sqrt returns the square root of a.
func Sqrt(a Node) (Node, error) { return newUnary(opSqrt, a) }

// Sin returns the sine of a (radians).
func Sin(a Node) (Node, error) { return newUnary(opSin, a) }

// Cos returns the cosine of a (radians).
func Cos(a Node) (Node, error) { return newUnary(opCos, a) }

// Tan returns the tangent of a (radians).
func Tan(a Node) (Node, error) { return newUnary(opTan, a) }

// Sign returns -1, 0 or 1 according to the sign of a.
func Sign(a Node) (Node, error) { return newUnary(opSign, a) }

// Abs returns the absolute value of a.
func Abs(a Node) (Node, error) { return newUnary(opAbs, a) }

func (n *unaryNode) Type() Type { return TypeFloat }

func (n *unaryNode) EmitSource(ctx *EmitContext) string {
	a := n.a.EmitSource(ctx)
	if n.op == opNeg {
		return "(-" + a + ")"
	}
	return unOpNames[n.op] + "(" + a + ")"
}

func (n *unaryNode) AfterLink(p Program) { n.a.AfterLink(p) }

func (n *unaryNode) BeforeDraw(fs *FrameState, u UniformStore) {
	n.a.BeforeDraw(fs, u)
}

func (n *unaryNode) IsAnimated() bool { return n.a.IsAnimated() }

func (n *unaryNode) Eval(env *EvalEnv) Value {
	a := n.a.Eval(env).Float
	switch n.op {
	case opNeg:
		return FloatVal(-a)
	case opLog:
		return FloatVal(math.Log(a))
	case opSqrt:
		return FloatVal(math.Sqrt(a))
	case opSin:
		return FloatVal(math.Sin(a))
	case opCos:
		return FloatVal(math.Cos(a))
	case opTan:
		return FloatVal(math.Tan(a))
	case opSign:
		switch {
		case a > 0:
			return FloatVal(1)
		case a < 0:
			return FloatVal(-1)
		default:
			return FloatVal(0)
		}
	default:
		return FloatVal(math.Abs(a))
	}
}

func (n *unaryNode) Children() []Node { return []Node{n.a} }

func (n *unaryNode) ReplaceChild(old, new Node) bool {
	return replaceIn([]*Node{&n.a}, n, old, new)
}

// needFloat checks that every operand is a non-nil float expression.
func needFloat(op string, nodes ...Node) error {
	for i, n := range nodes {
		if n == nil {
			return typeErrorf(op, "missing argument %d", i+1)
		}
		if n.Type() != TypeFloat {
			return typeErrorf(op, "argument %d is %s, want float", i+1, n.Type())
		}
	}
	return nil
}

// needColor checks that every operand is a non-nil color expression.
func needColor(op string, nodes ...Node) error {
	for i, n := range nodes {
		if n == nil {
			return typeErrorf(op, "missing argument %d", i+1)
		}
		if n.Type() != TypeColor {
			return typeErrorf(op, "argument %d is %s, want color", i+1, n.Type())
		}
	}
	return nil
}
