// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import (
	"fmt"
	"time"
)

// animateNode is a terminal monotonic ramp: mix rises from 0 to 1
// over the configured duration, starting at the first drawn frame.
type animateNode struct {
	base
	duration float64 // seconds
	started  bool
	start    float64
	mix      float64
	uref     UniformRef
	uoff     int
}

// Animate returns a float node ramping 0 to 1 over d, starting when
// the owning style first draws. A non-positive duration completes on
// the first frame.
func Animate(d time.Duration) Node {
	return &animateNode{duration: d.Seconds(), uoff: -1}
}

func (n *animateNode) Type() Type { return TypeFloat }

func (n *animateNode) EmitSource(ctx *EmitContext) string {
	n.uref = ctx.Uniform()
	n.uoff = -1
	return "uni." + n.uref.Name + ".x"
}

func (n *animateNode) AfterLink(p Program) {
	if off, ok := p.UniformOffset(n.uref.Name); ok {
		n.uoff = off
	}
}

func (n *animateNode) BeforeDraw(fs *FrameState, u UniformStore) {
	if !n.started {
		n.started = true
		n.start = fs.Now
	}
	n.mix = n.mixAt(fs.Now)
	if n.uoff >= 0 {
		u.SetVec4(n.uoff, [4]float32{float32(n.mix), 0, 0, 0})
	}
}

func (n *animateNode) mixAt(now float64) float64 {
	if n.duration <= 0 {
		return 1
	}
	return clamp01((now - n.start) / n.duration)
}

// IsAnimated stays true until the ramp is exhausted (mix == 1).
func (n *animateNode) IsAnimated() bool {
	return !n.started || n.mix < 1
}

// Mix returns the ramp value uploaded by the last BeforeDraw.
func (n *animateNode) Mix() float64 { return n.mix }

// Exhausted reports whether the ramp has run to completion.
func (n *animateNode) Exhausted() bool { return n.started && n.mix >= 1 }

func (n *animateNode) Eval(env *EvalEnv) Value {
	if !n.started {
		return FloatVal(0)
	}
	return FloatVal(n.mixAt(env.Now))
}

func (n *animateNode) Children() []Node                { return nil }
func (n *animateNode) ReplaceChild(old, new Node) bool { return false }

// blendNode cross-fades two equally typed expressions by a float mix.
// When the mix source is an Animate that has run to completion, the
// blend collapses to its target at the end-of-frame Collapse step.
type blendNode struct {
	base
	a, b Node
	mix  Node
	anim *animateNode // non-nil when mix is animate-driven
}

// Blend returns mix(a, b, m) with m clamped to [0, 1]. Both sides
// must have the same value type; m must be float-valued.
func Blend(a, b, m Node) (Node, error) {
	if a == nil || b == nil || m == nil {
		return nil, typeErrorf("blend", "missing argument")
	}
	if a.Type() != b.Type() {
		return nil, typeErrorf("blend", "mismatched operand types %s and %s", a.Type(), b.Type())
	}
	if m.Type() != TypeFloat {
		return nil, typeErrorf("blend", "mix must be float, got %s", m.Type())
	}
	n := &blendNode{a: a, b: b, mix: m}
	if am, ok := m.(*animateNode); ok {
		n.anim = am
	}
	adopt(n, a, b, m)
	return n, nil
}

func (n *blendNode) Type() Type { return n.a.Type() }

func (n *blendNode) EmitSource(ctx *EmitContext) string {
	a := n.a.EmitSource(ctx)
	b := n.b.EmitSource(ctx)
	m := n.mix.EmitSource(ctx)
	return fmt.Sprintf("mix(%s, %s, clamp(%s, 0.0, 1.0))", a, b, m)
}

func (n *blendNode) AfterLink(p Program) {
	n.a.AfterLink(p)
	n.b.AfterLink(p)
	n.mix.AfterLink(p)
}

func (n *blendNode) BeforeDraw(fs *FrameState, u UniformStore) {
	n.a.BeforeDraw(fs, u)
	n.b.BeforeDraw(fs, u)
	n.mix.BeforeDraw(fs, u)
}

func (n *blendNode) IsAnimated() bool {
	return n.a.IsAnimated() || n.b.IsAnimated() || n.mix.IsAnimated()
}

func (n *blendNode) Eval(env *EvalEnv) Value {
	t := clamp01(n.mix.Eval(env).Float)
	if n.Type() == TypeColor {
		return ColorVal(n.a.Eval(env).Color.Lerp(n.b.Eval(env).Color, t))
	}
	a := n.a.Eval(env).Float
	b := n.b.Eval(env).Float
	return FloatVal(a + (b-a)*t)
}

func (n *blendNode) Children() []Node { return []Node{n.a, n.b, n.mix} }

func (n *blendNode) ReplaceChild(old, new Node) bool {
	return replaceIn([]*Node{&n.a, &n.b, &n.mix}, n, old, new)
}

// collapsed returns the replacement node once the transition is done.
func (n *blendNode) collapsed() (Node, bool) {
	if n.anim != nil && n.anim.Exhausted() {
		return n.b, true
	}
	return nil, false
}

// Easing selects the transition curve used by BlendTo.
type Easing uint8

const (
	// EaseLinear interpolates the mix linearly over the duration.
	EaseLinear Easing = iota

	// EaseCubic applies a smoothstep curve to the mix.
	EaseCubic
)

// BlendTo replaces old with a Blend(old, target, Animate(d)) in old's
// parent, cross-fading to target over d. The owning style's
// notification hook fires so exactly the affected channel recompiles.
//
// When old is a graph root (no parent), the caller owns the swap: the
// returned blend node is the channel's new root and no notification
// fires.
func BlendTo(old, target Node, d time.Duration, ease Easing) (Node, error) {
	if old == nil || target == nil {
		return nil, typeErrorf("blendTo", "missing argument")
	}
	if old.Type() != target.Type() {
		return nil, typeErrorf("blendTo", "mismatched types %s and %s", old.Type(), target.Type())
	}

	parent := old.Parent()

	anim := Animate(d).(*animateNode)
	var mix Node = anim
	if ease == EaseCubic {
		var err error
		mix, err = Cubic(mix, Const(0), Const(1))
		if err != nil {
			return nil, err
		}
	}
	bn := &blendNode{a: old, b: target, mix: mix, anim: anim}
	adopt(bn, old, target, mix)

	if parent != nil {
		// ReplaceChild clears old's parent; re-adopt it under the
		// blend so the transition tree stays intact.
		if !parent.ReplaceChild(old, bn) {
			return nil, typeErrorf("blendTo", "node is not a child of its parent")
		}
		old.setParent(bn)
		notifyRoot(parent)
	} else {
		bn.setNotifier(old.notifier())
		old.setNotifier(nil)
	}
	return bn, nil
}

// Collapse rewrites exhausted blends bottom-up: any Blend whose
// Animate mix has completed is replaced by its target. Returns the
// (possibly new) root and whether anything changed. The renderer runs
// this as the last step of each frame, never concurrently with a
// compile.
func Collapse(root Node) (Node, bool) {
	changed := collapseChildren(root)
	if bn, ok := root.(*blendNode); ok {
		if target, done := bn.collapsed(); done {
			target.setParent(nil)
			target.setNotifier(root.notifier())
			return target, true
		}
	}
	return root, changed
}

func collapseChildren(n Node) bool {
	changed := false
	for _, c := range n.Children() {
		if c == nil {
			continue
		}
		if collapseChildren(c) {
			changed = true
		}
		if bn, ok := c.(*blendNode); ok {
			if target, done := bn.collapsed(); done {
				if n.ReplaceChild(bn, target) {
					changed = true
				}
			}
		}
	}
	return changed
}

// nowNode uploads the frame timestamp each frame.
type nowNode struct {
	base
	uref UniformRef
	uoff int
}

// Now returns the frame clock in seconds, re-evaluated every frame.
func Now() Node { return &nowNode{uoff: -1} }

func (n *nowNode) Type() Type { return TypeFloat }

func (n *nowNode) EmitSource(ctx *EmitContext) string {
	n.uref = ctx.Uniform()
	n.uoff = -1
	return "uni." + n.uref.Name + ".x"
}

func (n *nowNode) AfterLink(p Program) {
	if off, ok := p.UniformOffset(n.uref.Name); ok {
		n.uoff = off
	}
}

func (n *nowNode) BeforeDraw(fs *FrameState, u UniformStore) {
	if n.uoff >= 0 {
		u.SetVec4(n.uoff, [4]float32{float32(fs.Now), 0, 0, 0})
	}
}

func (n *nowNode) IsAnimated() bool { return true }

func (n *nowNode) Eval(env *EvalEnv) Value { return FloatVal(env.Now) }

func (n *nowNode) Children() []Node { return nil }

func (n *nowNode) ReplaceChild(old, new Node) bool { return false }

// zoomNode uploads the camera zoom each frame.
type zoomNode struct {
	base
	uref UniformRef
	uoff int
}

// Zoom returns the camera zoom level. Zoom changes schedule redraws
// through the camera, so the node itself is not animated.
func Zoom() Node { return &zoomNode{uoff: -1} }

func (n *zoomNode) Type() Type { return TypeFloat }

func (n *zoomNode) EmitSource(ctx *EmitContext) string {
	n.uref = ctx.Uniform()
	n.uoff = -1
	return "uni." + n.uref.Name + ".x"
}

func (n *zoomNode) AfterLink(p Program) {
	if off, ok := p.UniformOffset(n.uref.Name); ok {
		n.uoff = off
	}
}

func (n *zoomNode) BeforeDraw(fs *FrameState, u UniformStore) {
	if n.uoff >= 0 {
		u.SetVec4(n.uoff, [4]float32{float32(fs.Zoom), 0, 0, 0})
	}
}

func (n *zoomNode) IsAnimated() bool { return false }

func (n *zoomNode) Eval(env *EvalEnv) Value { return FloatVal(env.Zoom) }

func (n *zoomNode) Children() []Node { return nil }

func (n *zoomNode) ReplaceChild(old, new Node) bool { return false }

// interpKind selects the interpolator curve.
type interpKind uint8

const (
	interpLinear interpKind = iota
	interpCubic
)

// interpNode normalizes a float input into [0, 1] between lo and hi.
type interpNode struct {
	base
	kind          interpKind
	input, lo, hi Node
}

// Linear normalizes input into [0, 1] between lo and hi, clamped.
// With nil bounds the range is inferred from the input's dataset
// range (numeric property references).
func Linear(input, lo, hi Node) (Node, error) {
	return newInterp(interpLinear, "linear", input, lo, hi)
}

// Cubic is Linear with a smoothstep curve applied.
func Cubic(input, lo, hi Node) (Node, error) {
	return newInterp(interpCubic, "cubic", input, lo, hi)
}

func newInterp(kind interpKind, name string, input, lo, hi Node) (Node, error) {
	if err := needFloat(name, input); err != nil {
		return nil, err
	}
	if lo == nil || hi == nil {
		nr, ok := input.(numericRange)
		if !ok {
			return nil, typeErrorf(name, "cannot infer range; specify lo and hi")
		}
		min, max, ok := nr.propertyRange()
		if !ok {
			return nil, typeErrorf(name, "cannot infer range; specify lo and hi")
		}
		lo, hi = Const(min), Const(max)
	}
	if err := needFloat(name, lo, hi); err != nil {
		return nil, err
	}
	n := &interpNode{kind: kind, input: input, lo: lo, hi: hi}
	adopt(n, input, lo, hi)
	return n, nil
}

func (n *interpNode) Type() Type { return TypeFloat }

func (n *interpNode) EmitSource(ctx *EmitContext) string {
	x := n.input.EmitSource(ctx)
	lo := n.lo.EmitSource(ctx)
	hi := n.hi.EmitSource(ctx)
	if n.kind == interpCubic {
		return fmt.Sprintf("smoothstep(%s, %s, %s)", lo, hi, x)
	}
	return fmt.Sprintf("clamp((%s - %s) / (%s - %s), 0.0, 1.0)", x, lo, hi, lo)
}

func (n *interpNode) AfterLink(p Program) {
	n.input.AfterLink(p)
	n.lo.AfterLink(p)
	n.hi.AfterLink(p)
}

func (n *interpNode) BeforeDraw(fs *FrameState, u UniformStore) {
	n.input.BeforeDraw(fs, u)
	n.lo.BeforeDraw(fs, u)
	n.hi.BeforeDraw(fs, u)
}

func (n *interpNode) IsAnimated() bool {
	return n.input.IsAnimated() || n.lo.IsAnimated() || n.hi.IsAnimated()
}

func (n *interpNode) Eval(env *EvalEnv) Value {
	x := n.input.Eval(env).Float
	lo := n.lo.Eval(env).Float
	hi := n.hi.Eval(env).Float
	t := clamp01((x - lo) / (hi - lo))
	if n.kind == interpCubic {
		t = t * t * (3 - 2*t)
	}
	return FloatVal(t)
}

func (n *interpNode) Children() []Node { return []Node{n.input, n.lo, n.hi} }

func (n *interpNode) ReplaceChild(old, new Node) bool {
	return replaceIn([]*Node{&n.input, &n.lo, &n.hi}, n, old, new)
}
