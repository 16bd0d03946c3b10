// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/geoviz/expr"
	"github.com/gogpu/geoviz/internal/gpu"
	"github.com/gogpu/geoviz/schema"
)

// skipNagaLimitation skips the test when the WGSL-to-SPIR-V port
// rejects a construct it does not implement yet.
func skipNagaLimitation(t *testing.T, err error) {
	t.Helper()
	var ce *CompileError
	if !errors.As(err, &ce) {
		return
	}
	msg := ce.Err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("naga limitation: %v", ce.Err)
	}
}

func testSchema() schema.Schema {
	return schema.Schema{
		"temp": schema.Number(0, 30),
		"kind": schema.Category("a", "b", "c"),
	}
}

func TestStyleSourceLayout(t *testing.T) {
	s := testSchema()
	prop, err := expr.Prop("temp", s)
	if err != nil {
		t.Fatalf("prop: %v", err)
	}
	lin, err := expr.Linear(prop, expr.Const(0), expr.Const(30))
	if err != nil {
		t.Fatalf("linear: %v", err)
	}
	pal, ok := expr.LookupPalette("prism")
	if !ok {
		t.Fatal("prism palette missing")
	}
	root, err := expr.Ramp(lin, pal)
	if err != nil {
		t.Fatalf("ramp: %v", err)
	}

	ctx := expr.NewEmitContext()
	inline := root.EmitSource(ctx)
	if err := ctx.Err(); err != nil {
		t.Fatalf("emit: %v", err)
	}
	src := styleSource(KindColor, ctx, inline)

	for _, want := range []string{
		"struct Uniforms {",
		"    meta: vec4<f32>,",
		"@group(0) @binding(0) var<uniform> uni: Uniforms;",
		"@group(0) @binding(1) var<storage, read> property0: array<f32>;",
		"@group(0) @binding(2) var<storage, read> ramp_data: array<vec4<f32>>;",
		"@group(0) @binding(3) var<storage, read_write> out_data: array<vec4<f32>>;",
		"fn ramp_at(",
		"@compute @workgroup_size(64)",
		"if (f32(fid) >= uni.meta.x) {",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated source missing %q\n%s", want, src)
		}
	}
	if strings.Contains(src, "$PREFACE") || strings.Contains(src, "$INLINE") {
		t.Errorf("unsubstituted template markers\n%s", src)
	}
}

func TestStyleSourceUniformMembers(t *testing.T) {
	s := testSchema()
	prop, err := expr.Prop("temp", s)
	if err != nil {
		t.Fatalf("prop: %v", err)
	}
	root, err := expr.Mul(prop, expr.Animate(2*time.Second))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}

	ctx := expr.NewEmitContext()
	inline := root.EmitSource(ctx)
	if err := ctx.Err(); err != nil {
		t.Fatalf("emit: %v", err)
	}
	src := styleSource(KindFloat, ctx, inline)

	if !strings.Contains(src, "    u0: vec4<f32>,") {
		t.Errorf("uniform member u0 not declared\n%s", src)
	}
	if !strings.Contains(src, "uni.u0.x") {
		t.Errorf("inline does not reference uni.u0.x\n%s", src)
	}
	if !strings.Contains(src, "var<storage, read_write> out_data: array<f32>;") {
		t.Errorf("float output buffer not declared\n%s", src)
	}
}

func TestCompileConstantColor(t *testing.T) {
	dev := gpu.NewFakeDevice()
	defer dev.Close()

	c, err := Compile(dev, "color", expr.ConstColor(expr.RGB(1, 0, 0)), KindColor)
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("compile: %v", err)
	}

	if got := dev.LivePrograms.Load(); got != 1 {
		t.Errorf("live programs = %d, want 1", got)
	}
	if got := dev.LiveBuffers.Load(); got != 0 {
		t.Errorf("live buffers = %d, want 0 (no ramps)", got)
	}
	if len(c.Properties()) != 0 {
		t.Errorf("properties = %v, want none", c.Properties())
	}
	if c.UniformSize() != 16 {
		t.Errorf("uniform size = %d, want 16 (meta only)", c.UniformSize())
	}

	uni, err := dev.CreateBuffer("uni", c.UniformSize(), gpu.UsageUniform)
	if err != nil {
		t.Fatalf("uniform buffer: %v", err)
	}
	defer uni.Destroy()
	out, err := dev.CreateBuffer("out", 16, gpu.UsageStorageRW)
	if err != nil {
		t.Fatalf("out buffer: %v", err)
	}
	defer out.Destroy()
	bufs, err := c.PassBuffers(uni, nil, out)
	if err != nil {
		t.Fatalf("pass buffers: %v", err)
	}
	if len(bufs) != 2 {
		t.Errorf("pass buffers = %d, want 2", len(bufs))
	}

	c.Destroy()
	if got := dev.LivePrograms.Load(); got != 0 {
		t.Errorf("live programs after destroy = %d, want 0", got)
	}
}

func TestCompileRampProgram(t *testing.T) {
	dev := gpu.NewFakeDevice()
	defer dev.Close()

	s := testSchema()
	prop, err := expr.Prop("kind", s)
	if err != nil {
		t.Fatalf("prop: %v", err)
	}
	pal, ok := expr.LookupPalette("prism")
	if !ok {
		t.Fatal("prism palette missing")
	}
	root, err := expr.Ramp(prop, pal)
	if err != nil {
		t.Fatalf("ramp: %v", err)
	}

	c, err := Compile(dev, "color", root, KindColor)
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("compile: %v", err)
	}
	defer c.Destroy()

	if got := c.Properties(); len(got) != 1 || got[0] != "kind" {
		t.Errorf("properties = %v, want [kind]", got)
	}
	if c.rampBuf == nil {
		t.Fatal("ramp buffer not allocated")
	}
	fb := c.rampBuf.(*gpu.FakeBuffer)
	if len(fb.Data) != expr.RampSamples*16 {
		t.Errorf("ramp buffer = %d bytes, want %d", len(fb.Data), expr.RampSamples*16)
	}
	var nonzero bool
	for _, b := range fb.Data {
		if b != 0 {
			nonzero = true
			break
		}
	}
	if !nonzero {
		t.Error("ramp data never uploaded")
	}

	uni, err := dev.CreateBuffer("uni", c.UniformSize(), gpu.UsageUniform)
	if err != nil {
		t.Fatalf("uniform buffer: %v", err)
	}
	defer uni.Destroy()
	col, err := dev.CreateBuffer("kind_col", 4, gpu.UsageStorage)
	if err != nil {
		t.Fatalf("column buffer: %v", err)
	}
	defer col.Destroy()
	out, err := dev.CreateBuffer("out", 16, gpu.UsageStorageRW)
	if err != nil {
		t.Fatalf("out buffer: %v", err)
	}
	defer out.Destroy()

	bufs, err := c.PassBuffers(uni, []gpu.Buffer{col}, out)
	if err != nil {
		t.Fatalf("pass buffers: %v", err)
	}
	if len(bufs) != 4 {
		t.Fatalf("pass buffers = %d, want 4", len(bufs))
	}
	if bufs[0] != uni || bufs[1] != col || bufs[3] != out {
		t.Error("pass buffer order is uniforms, columns, ramps, output")
	}

	if _, err := c.PassBuffers(uni, nil, out); err == nil {
		t.Error("missing column buffer not rejected")
	}
}

func TestCompileAnimatedUniform(t *testing.T) {
	dev := gpu.NewFakeDevice()
	defer dev.Close()

	s := testSchema()
	prop, err := expr.Prop("temp", s)
	if err != nil {
		t.Fatalf("prop: %v", err)
	}
	root, err := expr.Mul(prop, expr.Animate(2*time.Second))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}

	c, err := Compile(dev, "width", root, KindFloat)
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("compile: %v", err)
	}
	defer c.Destroy()

	off, ok := c.UniformOffset("u0")
	if !ok || off != 16 {
		t.Fatalf("u0 offset = %d, %v, want 16, true", off, ok)
	}

	root.BeforeDraw(&expr.FrameState{Now: 10}, c)
	root.BeforeDraw(&expr.FrameState{Now: 11}, c)
	got := math.Float32frombits(binary.LittleEndian.Uint32(c.staging[16:]))
	if got != 0.5 {
		t.Errorf("animate mix after 1s of 2s = %v, want 0.5", got)
	}

	ub := c.UniformBytes(42)
	if got := math.Float32frombits(binary.LittleEndian.Uint32(ub[0:])); got != 42 {
		t.Errorf("meta.x = %v, want 42", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(ub[16:])); got != 0.5 {
		t.Errorf("uniform bytes u0.x = %v, want 0.5", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(c.staging[0:])); got != 0 {
		t.Errorf("staging meta.x = %v, want 0 (stamping must not mutate staging)", got)
	}
}

func TestCompileRejectsKindMismatch(t *testing.T) {
	dev := gpu.NewFakeDevice()
	defer dev.Close()

	if _, err := Compile(dev, "width", expr.ConstColor(expr.RGB(0, 0, 0)), KindFloat); err == nil {
		t.Error("color expression accepted for float channel")
	}
	if _, err := Compile(dev, "color", expr.Const(1), KindColor); err == nil {
		t.Error("float expression accepted for color channel")
	}
	if _, err := Compile(dev, "color", nil, KindColor); err == nil {
		t.Error("nil expression accepted")
	}
}

func TestCompilePropertyBudget(t *testing.T) {
	dev := gpu.NewFakeDevice()
	defer dev.Close()

	s := schema.Schema{}
	names := []string{"p0", "p1", "p2", "p3", "p4"}
	for _, n := range names {
		s[n] = schema.Number(0, 1)
	}
	root, err := expr.Prop(names[0], s)
	if err != nil {
		t.Fatalf("prop: %v", err)
	}
	for _, n := range names[1:] {
		p, err := expr.Prop(n, s)
		if err != nil {
			t.Fatalf("prop: %v", err)
		}
		root, err = expr.Add(root, p)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	_, err = Compile(dev, "width", root, KindFloat)
	if err == nil {
		t.Fatal("five-property expression accepted")
	}
	if !strings.Contains(err.Error(), "more than 4") {
		t.Errorf("error = %v, want slot budget message", err)
	}
	if got := dev.LivePrograms.Load(); got != 0 {
		t.Errorf("live programs = %d, want 0 after rejection", got)
	}
}

func TestCompileProgramFailureReleasesResources(t *testing.T) {
	dev := gpu.NewFakeDevice()
	dev.FailPrograms = true
	defer dev.Close()

	_, err := Compile(dev, "color", expr.ConstColor(expr.RGB(1, 1, 1)), KindColor)
	if err == nil {
		t.Fatal("program failure not propagated")
	}
	skipNagaLimitation(t, err)
	if got := dev.LiveBuffers.Load(); got != 0 {
		t.Errorf("live buffers = %d, want 0 after failed compile", got)
	}
}

func TestCompileErrorCarriesSource(t *testing.T) {
	base := errors.New("syntax error")
	var err error = &CompileError{Label: "color", Source: "fn main", Err: base}
	if !strings.Contains(err.Error(), "color") {
		t.Errorf("error = %v, want label", err)
	}
	if !errors.Is(err, base) {
		t.Error("CompileError does not unwrap")
	}
}

func TestPassGroups(t *testing.T) {
	cases := []struct {
		n    int
		want uint32
	}{
		{1, 1},
		{64, 1},
		{65, 2},
		{1000, 16},
	}
	for _, tc := range cases {
		if got := PassGroups(tc.n); got[0] != tc.want || got[1] != 1 || got[2] != 1 {
			t.Errorf("PassGroups(%d) = %v, want [%d 1 1]", tc.n, got, tc.want)
		}
	}
}
