// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package expr implements the typed expression graphs behind the
// styling language.
//
// A graph is a tree of Nodes, each float- or color-valued, built by
// the style parser or directly through the constructor functions. Every
// node implements the same four-operation contract: EmitSource turns
// the node into shading-language fragments, AfterLink resolves the
// uniform handles of the linked program, BeforeDraw uploads per-frame
// values, and IsAnimated reports whether the node can change between
// frames. Nodes additionally evaluate on the CPU through Eval, which
// backs feature inspection and keeps tests off the GPU.
//
// All validation happens at construction time: a constructor either
// returns a fully typed node or a *TypeError, never a partial node.
package expr

import "fmt"

// Type is the value type of an expression node.
type Type uint8

const (
	// TypeFloat is a scalar-valued expression.
	TypeFloat Type = iota

	// TypeColor is an RGBA-valued expression.
	TypeColor
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeColor:
		return "color"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Value is the result of evaluating a node for one feature.
type Value struct {
	Type  Type
	Float float64
	Color Color
}

// FloatVal wraps a scalar into a Value.
func FloatVal(v float64) Value { return Value{Type: TypeFloat, Float: v} }

// ColorVal wraps a color into a Value.
func ColorVal(c Color) Value { return Value{Type: TypeColor, Color: c} }

// Feature exposes one feature's property values to Eval. Categorical
// properties report their category id.
type Feature interface {
	Property(name string) (float64, bool)
}

// EvalEnv carries the evaluation context for Eval: the feature under
// inspection plus the frame clock and camera zoom.
type EvalEnv struct {
	Feature Feature
	Now     float64
	Zoom    float64
}

// FrameState carries the per-frame values BeforeDraw uploads.
type FrameState struct {
	// Now is the frame timestamp in seconds since renderer start.
	Now float64

	// Zoom is the camera zoom level.
	Zoom float64
}

// Program is the linked shading program seen by AfterLink. Uniform
// offsets are byte offsets into the program's uniform block, resolved
// by name after linking.
type Program interface {
	UniformOffset(name string) (int, bool)
}

// UniformStore receives per-frame uniform writes from BeforeDraw.
// Offsets are the byte offsets resolved during AfterLink.
type UniformStore interface {
	SetVec4(offset int, v [4]float32)
}

// TypeError is the construction-time validation error: wrong arity,
// mismatched types, unknown property or palette. It is always returned
// synchronously by the offending constructor.
type TypeError struct {
	Op     string
	Detail string
}

func (e *TypeError) Error() string {
	return "geoviz: " + e.Op + ": " + e.Detail
}

func typeErrorf(op, format string, args ...any) *TypeError {
	return &TypeError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Node is one expression-graph node. The set of implementations is
// closed: all nodes live in this package and are created through the
// exported constructors.
type Node interface {
	// Type is the node's value type, fixed at construction.
	Type() Type

	// EmitSource appends this node's preface fragments to ctx and
	// returns the inline expression string. Children emit first.
	// Allocation failures (property slot budget) are recorded on ctx.
	EmitSource(ctx *EmitContext) string

	// AfterLink resolves the node's uniform offsets from the linked
	// program, recursing into children.
	AfterLink(p Program)

	// BeforeDraw uploads the node's current uniform values for this
	// frame, recursing into children.
	BeforeDraw(fs *FrameState, u UniformStore)

	// IsAnimated reports whether evaluation may differ between frames.
	IsAnimated() bool

	// Eval evaluates the node for one feature on the CPU.
	Eval(env *EvalEnv) Value

	// Children returns the node's fixed child list.
	Children() []Node

	// ReplaceChild swaps old for new in place, preserving all other
	// children. Returns false if old is not a direct child.
	ReplaceChild(old, new Node) bool

	// Parent returns the adopting parent, or nil for a root.
	Parent() Node

	setParent(p Node)
	notifier() func()
	setNotifier(fn func())
}

// base carries the parent back-reference and the style notification
// hook shared by all node kinds. The parent pointer is non-owning and
// is only used to locate the replacement site during live edits.
type base struct {
	parent Node
	notify func()
}

func (b *base) Parent() Node          { return b.parent }
func (b *base) setParent(p Node)      { b.parent = p }
func (b *base) notifier() func()      { return b.notify }
func (b *base) setNotifier(fn func()) { b.notify = fn }

// adopt wires n as the parent of each child.
func adopt(n Node, children ...Node) {
	for _, c := range children {
		if c != nil {
			c.setParent(n)
		}
	}
}

// SetNotify installs the change-notification hook on a graph root.
// The hook fires when a live edit (BlendTo) rewires part of the graph,
// telling the owning style to recompile exactly that channel.
func SetNotify(root Node, fn func()) {
	root.setNotifier(fn)
}

// notifyRoot walks the parent chain from n and fires the first
// notifier found. Interior nodes normally carry none, so this reaches
// the root's hook.
func notifyRoot(n Node) {
	for p := n; p != nil; p = p.Parent() {
		if fn := p.notifier(); fn != nil {
			fn()
			return
		}
	}
}

// Walk visits n and all descendants in depth-first order.
func Walk(n Node, visit func(Node)) {
	visit(n)
	for _, c := range n.Children() {
		if c != nil {
			Walk(c, visit)
		}
	}
}

// replaceIn swaps old for new inside a fixed child slice.
func replaceIn(children []*Node, parent Node, old, new Node) bool {
	for _, slot := range children {
		if *slot == old {
			*slot = new
			new.setParent(parent)
			old.setParent(nil)
			return true
		}
	}
	return false
}
