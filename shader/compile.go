// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/geoviz/expr"
	"github.com/gogpu/geoviz/internal/gpu"
)

// Compiled is one linked styling program plus the resources it owns:
// the uniform staging block and the baked ramp buffer. It implements
// expr.Program for AfterLink and expr.UniformStore for BeforeDraw.
//
// Uniform block layout: meta at byte 0 (meta.x is the feature count),
// then one vec4 per allocated uniform at 16*(index+1). A program may
// serve several dataframes in one frame, so the uniform buffer itself
// is per dispatch: the renderer creates one from UniformBytes, which
// stamps the dataframe's feature count over the shared staging block.
type Compiled struct {
	label   string
	kind    ChannelKind
	prog    gpu.Program
	rampBuf gpu.Buffer
	staging []byte
	offsets map[string]int
	props   []string
	layout  []gpu.BindingType
}

// Compile generates, validates and links the styling program for one
// channel. The expression's root type must match the channel kind.
// Property-slot overflow surfaces as the validation error recorded
// during emission; WGSL rejection surfaces as a *CompileError.
func Compile(dev gpu.Device, label string, root expr.Node, kind ChannelKind) (*Compiled, error) {
	if root == nil {
		return nil, fmt.Errorf("shader: compile %s: nil expression", label)
	}
	want := expr.TypeFloat
	if kind == KindColor {
		want = expr.TypeColor
	}
	if root.Type() != want {
		return nil, fmt.Errorf("shader: compile %s: expression is %s-valued, channel wants %s",
			label, root.Type(), want)
	}

	ctx := expr.NewEmitContext()
	inline := root.EmitSource(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	props := ctx.PropertyOrder()
	rampData := ctx.RampData()
	source := styleSource(kind, ctx, inline)

	spirv, err := compileSPIRV(source)
	if err != nil {
		return nil, &CompileError{Label: label, Source: source, Err: err}
	}

	layout := make([]gpu.BindingType, 0, len(props)+3)
	layout = append(layout, gpu.BindUniform)
	for range props {
		layout = append(layout, gpu.BindStorage)
	}
	if len(rampData) > 0 {
		layout = append(layout, gpu.BindStorage)
	}
	layout = append(layout, gpu.BindStorageRW)

	prog, err := dev.CreateProgram(label, spirv, layout)
	if err != nil {
		return nil, err
	}

	uniforms := ctx.UniformNames()
	c := &Compiled{
		label:   label,
		kind:    kind,
		prog:    prog,
		staging: make([]byte, 16*(1+len(uniforms))),
		offsets: make(map[string]int, len(uniforms)),
		props:   props,
		layout:  layout,
	}
	for i, name := range uniforms {
		c.offsets[name] = 16 * (i + 1)
	}

	if len(rampData) > 0 {
		c.rampBuf, err = dev.CreateBuffer(label+"_ramps", uint64(len(rampData)*4), gpu.UsageStorage)
		if err != nil {
			prog.Destroy()
			return nil, err
		}
		dev.WriteBuffer(c.rampBuf, 0, packFloats(rampData))
	}

	root.AfterLink(c)
	return c, nil
}

// styleSource assembles the full WGSL program: generated declarations
// and shared helpers become the preface, the expression fragment the
// inline slot.
func styleSource(kind ChannelKind, ctx *expr.EmitContext, inline string) string {
	var b strings.Builder
	b.WriteString("struct Uniforms {\n")
	b.WriteString("    meta: vec4<f32>,\n")
	for _, name := range ctx.UniformNames() {
		fmt.Fprintf(&b, "    %s: vec4<f32>,\n", name)
	}
	b.WriteString("}\n\n")
	b.WriteString("@group(0) @binding(0) var<uniform> uni: Uniforms;\n")

	binding := 1
	for i := range ctx.PropertyOrder() {
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read> property%d: array<f32>;\n",
			binding, i)
		binding++
	}
	if len(ctx.RampData()) > 0 {
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read> ramp_data: array<vec4<f32>>;\n",
			binding)
		binding++
	}
	outType := "f32"
	tmpl := floatTemplate
	if kind == KindColor {
		outType = "vec4<f32>"
		tmpl = colorTemplate
	}
	fmt.Fprintf(&b, "@group(0) @binding(%d) var<storage, read_write> out_data: array<%s>;\n",
		binding, outType)

	if p := ctx.Preface(); p != "" {
		b.WriteString("\n")
		b.WriteString(p)
	}

	return strings.NewReplacer(
		"$PREFACE", b.String(),
		"$INLINE", inline,
	).Replace(tmpl)
}

// Label returns the program label.
func (c *Compiled) Label() string { return c.label }

// Kind returns the channel kind the program was compiled for.
func (c *Compiled) Kind() ChannelKind { return c.kind }

// Properties returns the property names in binding order. The caller
// supplies one column buffer per name, in this order, to PassBuffers.
func (c *Compiled) Properties() []string { return c.props }

// UniformOffset resolves a uniform member to its byte offset in the
// uniform block.
func (c *Compiled) UniformOffset(name string) (int, bool) {
	off, ok := c.offsets[name]
	return off, ok
}

// SetVec4 writes one vec4 into the staging block. Offsets come from
// UniformOffset during AfterLink.
func (c *Compiled) SetVec4(offset int, v [4]float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(c.staging[offset+i*4:], math.Float32bits(f))
	}
}

// UniformBytes returns the uniform block contents for one dispatch:
// the staging block as written by BeforeDraw, with meta.x stamped to
// the dispatch's feature count. Threads past the count exit before
// touching the output buffer.
func (c *Compiled) UniformBytes(featureCount int) []byte {
	out := make([]byte, len(c.staging))
	copy(out, c.staging)
	binary.LittleEndian.PutUint32(out, math.Float32bits(float32(featureCount)))
	return out
}

// UniformSize is the byte size of the program's uniform block.
func (c *Compiled) UniformSize() uint64 { return uint64(len(c.staging)) }

// PassBuffers assembles the binding list for one dispatch: the
// per-dispatch uniform buffer, property columns in Properties() order,
// ramp data when present, and the output buffer last.
func (c *Compiled) PassBuffers(uni gpu.Buffer, props []gpu.Buffer, out gpu.Buffer) ([]gpu.Buffer, error) {
	if len(props) != len(c.props) {
		return nil, fmt.Errorf("shader: %s wants %d property buffers, got %d",
			c.label, len(c.props), len(props))
	}
	bufs := make([]gpu.Buffer, 0, len(c.layout))
	bufs = append(bufs, uni)
	bufs = append(bufs, props...)
	if c.rampBuf != nil {
		bufs = append(bufs, c.rampBuf)
	}
	bufs = append(bufs, out)
	return bufs, nil
}

// Program returns the linked device program.
func (c *Compiled) Program() gpu.Program { return c.prog }

// Destroy releases the program and its ramp buffer.
func (c *Compiled) Destroy() {
	if c.rampBuf != nil {
		c.rampBuf.Destroy()
		c.rampBuf = nil
	}
	if c.prog != nil {
		c.prog.Destroy()
		c.prog = nil
	}
}
