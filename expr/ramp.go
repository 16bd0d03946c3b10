// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import "fmt"

// rampNode maps a normalized float input onto a baked color gradient.
//
// The stops are baked into RampSamples evenly spaced samples at
// construction time. Categorical inputs map their id to t = id/(N-1)
// so the first and last categories land exactly on the first and last
// stops; everything in between interpolates linearly over the sample
// index, the same as numeric inputs.
type rampNode struct {
	base
	input       Node
	stops       []Color
	samples     []Color
	cardinality int
	rampBase    int
}

// Ramp maps input onto a named palette. Categorical inputs pick the
// palette variant matching their cardinality; numeric property
// references are normalized by their dataset range first.
func Ramp(input Node, p *Palette) (Node, error) {
	if p == nil {
		return nil, typeErrorf("ramp", "missing palette")
	}
	return newRamp(input, func(n int) []Color { return p.colors(n) })
}

// RampColors maps input onto an explicit color list.
func RampColors(input Node, stops ...Color) (Node, error) {
	if len(stops) == 0 {
		return nil, typeErrorf("ramp", "empty color list")
	}
	return newRamp(input, func(int) []Color { return stops })
}

func newRamp(input Node, pick func(n int) []Color) (Node, error) {
	if err := needFloat("ramp", input); err != nil {
		return nil, err
	}

	cardinality := 0
	if cat, ok := input.(categorized); ok {
		cardinality = cat.categoryCount()
	}
	if cardinality == 0 {
		// Raw numeric properties normalize by their dataset range.
		if nr, ok := input.(numericRange); ok {
			if _, _, ok := nr.propertyRange(); ok {
				wrapped, err := Linear(input, nil, nil)
				if err != nil {
					return nil, err
				}
				input = wrapped
			}
		}
	}

	stops := pick(cardinality)
	if len(stops) == 0 {
		return nil, typeErrorf("ramp", "palette has no colors for cardinality %d", cardinality)
	}

	n := &rampNode{
		input:       input,
		stops:       stops,
		samples:     bakeRamp(stops),
		cardinality: cardinality,
	}
	adopt(n, input)
	return n, nil
}

// bakeRamp expands the stop list into RampSamples evenly interpolated
// samples. Sample 0 is exactly the first stop, the last sample exactly
// the last stop.
func bakeRamp(stops []Color) []Color {
	samples := make([]Color, RampSamples)
	if len(stops) == 1 {
		for i := range samples {
			samples[i] = stops[0]
		}
		return samples
	}
	for i := range samples {
		pos := float64(i) / float64(RampSamples-1) * float64(len(stops)-1)
		j := int(pos)
		if j >= len(stops)-1 {
			samples[i] = stops[len(stops)-1]
			continue
		}
		samples[i] = stops[j].Lerp(stops[j+1], pos-float64(j))
	}
	return samples
}

const wgslRampAt = `fn ramp_at(base: u32, t: f32) -> vec4<f32> {
    let x = clamp(t, 0.0, 1.0) * 255.0;
    let i = u32(floor(x));
    let j = min(i + 1u, 255u);
    return mix(ramp_data[base + i], ramp_data[base + j], x - floor(x));
}
`

func (n *rampNode) Type() Type { return TypeColor }

func (n *rampNode) EmitSource(ctx *EmitContext) string {
	ctx.Include("ramp_at", wgslRampAt)
	n.rampBase = ctx.AddRamp(n.samples)
	x := n.input.EmitSource(ctx)
	t := x
	switch {
	case n.cardinality == 1:
		t = "0.0"
	case n.cardinality > 1:
		t = fmt.Sprintf("((%s) / %s)", x, wgslFloat(float64(n.cardinality-1)))
	}
	return fmt.Sprintf("ramp_at(%du, %s)", n.rampBase, t)
}

func (n *rampNode) AfterLink(p Program) { n.input.AfterLink(p) }

func (n *rampNode) BeforeDraw(fs *FrameState, u UniformStore) {
	n.input.BeforeDraw(fs, u)
}

func (n *rampNode) IsAnimated() bool { return n.input.IsAnimated() }

func (n *rampNode) Eval(env *EvalEnv) Value {
	t := n.input.Eval(env).Float
	if n.cardinality == 1 {
		t = 0
	} else if n.cardinality > 1 {
		t = t / float64(n.cardinality-1)
	}
	return ColorVal(n.sampleAt(t))
}

// sampleAt mirrors the shading-side ramp_at helper.
func (n *rampNode) sampleAt(t float64) Color {
	x := clamp01(t) * float64(RampSamples-1)
	i := int(x)
	j := i + 1
	if j > RampSamples-1 {
		j = RampSamples - 1
	}
	return n.samples[i].Lerp(n.samples[j], x-float64(i))
}

func (n *rampNode) Children() []Node { return []Node{n.input} }

func (n *rampNode) ReplaceChild(old, new Node) bool {
	return replaceIn([]*Node{&n.input}, n, old, new)
}
