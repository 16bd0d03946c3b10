// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import "fmt"

// constNode is a literal float. Numeric literals in style source are
// implicitly promoted to this node wherever an expression is expected.
type constNode struct {
	base
	v float64
}

// Const returns a constant float node.
func Const(v float64) Node { return &constNode{v: v} }

// ConstValue reports the literal value of a constant float node. Used
// by callers that require a compile-time constant argument.
func ConstValue(n Node) (float64, bool) {
	c, ok := n.(*constNode)
	if !ok {
		return 0, false
	}
	return c.v, true
}

func (n *constNode) Type() Type                           { return TypeFloat }
func (n *constNode) EmitSource(ctx *EmitContext) string   { return wgslFloat(n.v) }
func (n *constNode) AfterLink(p Program)                  {}
func (n *constNode) BeforeDraw(*FrameState, UniformStore) {}
func (n *constNode) IsAnimated() bool                     { return false }
func (n *constNode) Eval(*EvalEnv) Value                  { return FloatVal(n.v) }
func (n *constNode) Children() []Node                     { return nil }
func (n *constNode) ReplaceChild(old, new Node) bool      { return false }

// colorConstNode is a literal color (hex or named in style source).
type colorConstNode struct {
	base
	c Color
}

// ConstColor returns a constant color node.
func ConstColor(c Color) Node { return &colorConstNode{c: c} }

// ConstColorValue reports the value of a constant color node.
func ConstColorValue(n Node) (Color, bool) {
	c, ok := n.(*colorConstNode)
	if !ok {
		return Color{}, false
	}
	return c.c, true
}

func (n *colorConstNode) Type() Type { return TypeColor }

func (n *colorConstNode) EmitSource(ctx *EmitContext) string {
	return fmt.Sprintf("vec4<f32>(%s, %s, %s, %s)",
		wgslFloat(n.c.R), wgslFloat(n.c.G), wgslFloat(n.c.B), wgslFloat(n.c.A))
}

func (n *colorConstNode) AfterLink(p Program)                  {}
func (n *colorConstNode) BeforeDraw(*FrameState, UniformStore) {}
func (n *colorConstNode) IsAnimated() bool                     { return false }
func (n *colorConstNode) Eval(*EvalEnv) Value                  { return ColorVal(n.c) }
func (n *colorConstNode) Children() []Node                     { return nil }
func (n *colorConstNode) ReplaceChild(old, new Node) bool      { return false }
