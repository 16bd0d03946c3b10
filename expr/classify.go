// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import "fmt"

// topNode keeps the most frequent category ids and folds the rest
// into an others bucket. Ids are assigned by descending frequency, so
// keeping the top n is a clamp at id n.
type topNode struct {
	base
	input   Node
	buckets int
	total   int
}

// Top keeps the buckets most frequent categories of a categorical
// input; all remaining categories share one trailing bucket.
func Top(input Node, buckets Node) (Node, error) {
	if err := needFloat("top", input); err != nil {
		return nil, err
	}
	cat, ok := input.(categorized)
	if !ok || cat.categoryCount() == 0 {
		return nil, typeErrorf("top", "input must be a categorical property")
	}
	c, ok := buckets.(*constNode)
	if !ok {
		return nil, typeErrorf("top", "bucket count must be a constant number")
	}
	nb := int(c.v)
	if float64(nb) != c.v || nb < 1 {
		return nil, typeErrorf("top", "bucket count must be a positive integer, got %v", c.v)
	}
	n := &topNode{input: input, buckets: nb, total: cat.categoryCount()}
	adopt(n, input)
	return n, nil
}

func (n *topNode) Type() Type { return TypeFloat }

// categoryCount reports the folded cardinality: the kept buckets plus
// the others bucket, unless the input was already small enough.
func (n *topNode) categoryCount() int {
	if n.total <= n.buckets {
		return n.total
	}
	return n.buckets + 1
}

func (n *topNode) EmitSource(ctx *EmitContext) string {
	x := n.input.EmitSource(ctx)
	if n.total <= n.buckets {
		return x
	}
	return fmt.Sprintf("min(%s, %s)", x, wgslFloat(float64(n.buckets)))
}

func (n *topNode) AfterLink(p Program) { n.input.AfterLink(p) }

func (n *topNode) BeforeDraw(fs *FrameState, u UniformStore) {
	n.input.BeforeDraw(fs, u)
}

func (n *topNode) IsAnimated() bool { return n.input.IsAnimated() }

func (n *topNode) Eval(env *EvalEnv) Value {
	id := n.input.Eval(env).Float
	if n.total > n.buckets && id > float64(n.buckets) {
		id = float64(n.buckets)
	}
	return FloatVal(id)
}

func (n *topNode) Children() []Node { return []Node{n.input} }

func (n *topNode) ReplaceChild(old, new Node) bool {
	return replaceIn([]*Node{&n.input}, n, old, new)
}

// nearNode is a proximity kernel: 1 within threshold of center,
// fading linearly to 0 over falloff.
type nearNode struct {
	base
	input, center, threshold, falloff Node
}

// Near returns 1 while input is within threshold of center, fading to
// 0 over the falloff distance beyond it.
func Near(input, center, threshold, falloff Node) (Node, error) {
	if err := needFloat("near", input, center, threshold, falloff); err != nil {
		return nil, err
	}
	n := &nearNode{input: input, center: center, threshold: threshold, falloff: falloff}
	adopt(n, input, center, threshold, falloff)
	return n, nil
}

func (n *nearNode) Type() Type { return TypeFloat }

// near_at guards against a zero falloff: the kernel degenerates to a
// hard step instead of dividing by zero at the threshold edge.
const wgslNearAt = `fn near_at(x: f32, c: f32, t: f32, f: f32) -> f32 {
    let d = abs(x - c) - t;
    if (f == 0.0) {
        return step(d, 0.0);
    }
    return clamp(1.0 - d / f, 0.0, 1.0);
}
`

func (n *nearNode) EmitSource(ctx *EmitContext) string {
	ctx.Include("near_at", wgslNearAt)
	x := n.input.EmitSource(ctx)
	c := n.center.EmitSource(ctx)
	t := n.threshold.EmitSource(ctx)
	f := n.falloff.EmitSource(ctx)
	return fmt.Sprintf("near_at(%s, %s, %s, %s)", x, c, t, f)
}

func (n *nearNode) AfterLink(p Program) {
	n.input.AfterLink(p)
	n.center.AfterLink(p)
	n.threshold.AfterLink(p)
	n.falloff.AfterLink(p)
}

func (n *nearNode) BeforeDraw(fs *FrameState, u UniformStore) {
	n.input.BeforeDraw(fs, u)
	n.center.BeforeDraw(fs, u)
	n.threshold.BeforeDraw(fs, u)
	n.falloff.BeforeDraw(fs, u)
}

func (n *nearNode) IsAnimated() bool {
	return n.input.IsAnimated() || n.center.IsAnimated() ||
		n.threshold.IsAnimated() || n.falloff.IsAnimated()
}

func (n *nearNode) Eval(env *EvalEnv) Value {
	x := n.input.Eval(env).Float
	c := n.center.Eval(env).Float
	t := n.threshold.Eval(env).Float
	f := n.falloff.Eval(env).Float
	d := x - c
	if d < 0 {
		d = -d
	}
	if f == 0 {
		if d <= t {
			return FloatVal(1)
		}
		return FloatVal(0)
	}
	return FloatVal(clamp01(1 - (d-t)/f))
}

func (n *nearNode) Children() []Node {
	return []Node{n.input, n.center, n.threshold, n.falloff}
}

func (n *nearNode) ReplaceChild(old, new Node) bool {
	return replaceIn([]*Node{&n.input, &n.center, &n.threshold, &n.falloff}, n, old, new)
}
