// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geoviz

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/geoviz/expr"
	"github.com/gogpu/geoviz/internal/gpu"
	"github.com/gogpu/geoviz/schema"
	"github.com/gogpu/geoviz/shader"
	"github.com/gogpu/geoviz/style"
)

// skipNagaLimitation skips tests hitting a WGSL construct the
// SPIR-V port does not implement yet.
func skipNagaLimitation(t *testing.T, err error) {
	t.Helper()
	var ce *shader.CompileError
	if !errors.As(err, &ce) {
		return
	}
	msg := ce.Err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
		t.Skipf("naga limitation: %v", ce.Err)
	}
}

func testRenderer(t *testing.T) (*Renderer, *gpu.FakeDevice) {
	t.Helper()
	dev := gpu.NewFakeDevice()
	r, err := newRenderer(dev, RendererConfig{Width: 16, Height: 16})
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("newRenderer: %v", err)
	}
	t.Cleanup(r.Close)
	return r, dev
}

func testSchema() schema.Schema {
	return schema.Schema{"speed": schema.Number(0, 120)}
}

// testPoints builds a two-feature point dataframe with a constant
// style attached.
func testPoints(t *testing.T) *Dataframe {
	t.Helper()
	s := testSchema()
	df, err := NewPoints(
		[]float32{-0.5, 0, 0.5, 0},
		map[string][]float32{"speed": {30, 90}},
		s,
	)
	if err != nil {
		t.Fatalf("NewPoints: %v", err)
	}
	st, err := style.FromSource("width: 3\ncolor: rgba(0.8, 0, 0, 1)", s)
	if err != nil {
		t.Fatalf("FromSource: %v", err)
	}
	if err := df.SetStyle(st); err != nil {
		t.Fatalf("SetStyle: %v", err)
	}
	return df
}

func TestNewRendererDefaults(t *testing.T) {
	dev := gpu.NewFakeDevice()
	r, err := newRenderer(dev, RendererConfig{})
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("newRenderer: %v", err)
	}
	defer r.Close()

	if r.cfg.Width != 512 || r.cfg.Height != 512 {
		t.Errorf("default size = %dx%d, want 512x512", r.cfg.Width, r.cfg.Height)
	}
	if !r.NeedsFrame() {
		t.Error("fresh renderer should want an initial frame")
	}
	if img := r.Image(); img.Bounds().Dx() != 512 {
		t.Errorf("image width = %d, want 512", img.Bounds().Dx())
	}
}

func TestNewRendererRejectsBadConfig(t *testing.T) {
	if _, err := newRenderer(gpu.NewFakeDevice(), RendererConfig{Width: -1}); err == nil {
		t.Fatal("negative width should fail construction")
	}
}

func TestNewRendererFailsFast(t *testing.T) {
	dev := gpu.NewFakeDevice()
	dev.FailPrograms = true
	if _, err := newRenderer(dev, RendererConfig{Width: 16, Height: 16}); err == nil {
		t.Fatal("program link failure should abort construction")
	}
	if n := dev.LiveBuffers.Load(); n != 0 {
		t.Errorf("failed construction leaked %d buffers", n)
	}
}

func TestFrameDrawsStyledDataframe(t *testing.T) {
	r, dev := testRenderer(t)
	df := testPoints(t)
	r.AddDataframe(df)

	if err := r.Frame(); err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("Frame: %v", err)
	}

	if got := dev.Submits.Load(); got != 1 {
		t.Fatalf("Submits = %d, want 1", got)
	}
	// 4 style passes plus one composite pass per feature.
	if got := dev.Passes.Load(); got != 6 {
		t.Errorf("Passes = %d, want 6", got)
	}
	if r.NeedsFrame() {
		t.Error("constant style should not re-arm")
	}
	if got := r.Stats().FramesDrawn; got != 1 {
		t.Errorf("FramesDrawn = %d, want 1", got)
	}
}

func TestFrameSkipsUnstyledDataframe(t *testing.T) {
	r, dev := testRenderer(t)
	df, err := NewPoints([]float32{0, 0}, nil, nil)
	if err != nil {
		t.Fatalf("NewPoints: %v", err)
	}
	r.AddDataframe(df)

	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got := dev.Passes.Load(); got != 0 {
		t.Errorf("Passes = %d, want 0 for unstyled dataframe", got)
	}
	if got := r.Stats().LiveDataframes; got != 1 {
		t.Errorf("LiveDataframes = %d, want 1", got)
	}
}

func TestOverBudgetStyleRejected(t *testing.T) {
	// Five property references overflow the per-program slot budget;
	// the style is rejected at the edit, never reaching a frame.
	s := schema.Schema{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		s[name] = schema.Number(0, 1)
	}
	if _, err := style.FromSource("width: $a + $b + $c + $d + $e", s); err == nil {
		t.Fatal("five-property style should be rejected")
	}
}

func TestFrameDegradesFailingDataframe(t *testing.T) {
	r, dev := testRenderer(t)
	good := testPoints(t)
	r.AddDataframe(good)
	if err := r.Frame(); err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("Frame: %v", err)
	}

	// bad's first compile fails; good's cached programs keep drawing.
	dev.FailPrograms = true
	bad := testPoints(t)
	r.AddDataframe(bad)
	if err := r.Frame(); err != nil {
		t.Fatalf("Frame with degraded dataframe: %v", err)
	}

	if _, ok := r.degraded[bad]; !ok {
		t.Error("bad dataframe should be degraded")
	}
	if _, ok := r.degraded[good]; ok {
		t.Error("good dataframe should still draw")
	}
	if err := r.Frame(); err != nil {
		t.Fatalf("second Frame: %v", err)
	}
}

func TestDegradedDataframeRecoversAfterStyleEdit(t *testing.T) {
	r, dev := testRenderer(t)
	df := testPoints(t)
	r.AddDataframe(df)

	dev.FailPrograms = true
	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if _, ok := r.degraded[df]; !ok {
		t.Fatal("dataframe should be degraded after failed compile")
	}

	// Editing the style earns the dataframe another attempt.
	dev.FailPrograms = false
	if err := df.Style().SetSource(style.Width, "5", testSchema()); err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	if err := r.Frame(); err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("Frame after edit: %v", err)
	}
	if _, ok := r.degraded[df]; ok {
		t.Error("dataframe should draw again after the style was fixed")
	}
	if got := dev.Passes.Load(); got == 0 {
		t.Error("recovered dataframe recorded no passes")
	}
}

func TestRemoveReleasesStylePrograms(t *testing.T) {
	r, dev := testRenderer(t)
	base := dev.LivePrograms.Load() // geometry programs

	df := testPoints(t)
	r.AddDataframe(df)
	if err := r.Frame(); err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("Frame: %v", err)
	}
	if got := dev.LivePrograms.Load(); got != base+int64(style.NumChannels) {
		t.Fatalf("LivePrograms = %d, want %d after compile", got, base+int64(style.NumChannels))
	}

	r.RemoveDataframe(df)
	if got := dev.LivePrograms.Load(); got != base {
		t.Errorf("LivePrograms = %d, want %d after last user released the style", got, base)
	}
	df.Free()
}

func TestRemoveHappensBeforeFree(t *testing.T) {
	r, dev := testRenderer(t)
	df := testPoints(t)
	r.AddDataframe(df)
	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	r.RemoveDataframe(df)
	df.Free()
	if !df.Released() {
		t.Fatal("Free should release")
	}

	before := dev.Passes.Load()
	if err := r.Frame(); err != nil {
		t.Fatalf("Frame after removal: %v", err)
	}
	if got := dev.Passes.Load(); got != before {
		t.Errorf("removed dataframe still drew %d passes", got-before)
	}
}

func TestFreeIsIdempotent(t *testing.T) {
	r, _ := testRenderer(t)
	df := testPoints(t)
	r.AddDataframe(df)
	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	r.RemoveDataframe(df)
	df.Free()
	df.Free()
	if !df.Released() {
		t.Error("dataframe should stay released")
	}
}

func TestCloseFreesEverything(t *testing.T) {
	dev := gpu.NewFakeDevice()
	r, err := newRenderer(dev, RendererConfig{Width: 16, Height: 16})
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("newRenderer: %v", err)
	}
	df := testPoints(t)
	r.AddDataframe(df)
	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	r.Close()
	r.Close()

	if !df.Released() {
		t.Error("Close should free live dataframes")
	}
	if !dev.Closed() {
		t.Error("Close should close the device")
	}
	if n := dev.LiveBuffers.Load(); n != 0 {
		t.Errorf("%d buffers leaked after Close", n)
	}
	if n := dev.LivePrograms.Load(); n != 0 {
		t.Errorf("%d programs leaked after Close", n)
	}
}

func TestRedrawCoalescing(t *testing.T) {
	r, _ := testRenderer(t)
	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if r.NeedsFrame() {
		t.Fatal("idle renderer should not want a frame")
	}

	var fired atomic.Int32
	r.OnInvalidate(func() { fired.Add(1) })

	r.SetZoom(2)
	r.SetCenter(0.25, -0.25)
	r.SetZoom(3)

	if !r.NeedsFrame() {
		t.Fatal("mutations should mark a frame pending")
	}
	if got := fired.Load(); got != 1 {
		t.Errorf("invalidate fired %d times, want 1 (coalesced)", got)
	}

	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if r.NeedsFrame() {
		t.Error("frame should clear the pending flag")
	}
	if z := r.Zoom(); z != 3 {
		t.Errorf("Zoom = %v, want 3", z)
	}
}

func TestAnimatedStyleRearms(t *testing.T) {
	r, _ := testRenderer(t)
	df := testPoints(t)
	r.AddDataframe(df)
	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	st := df.Style()
	if err := st.BlendToSource(style.Width, "8", testSchema(), 10*time.Millisecond); err != nil {
		t.Fatalf("BlendToSource: %v", err)
	}
	if !r.NeedsFrame() {
		t.Fatal("style edit should request a frame")
	}

	if err := r.Frame(); err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("Frame: %v", err)
	}
	if !r.NeedsFrame() {
		t.Fatal("running transition should re-arm the pipeline")
	}

	// Drain the transition; the blend collapses once the ramp is
	// exhausted and the pipeline goes idle.
	deadline := time.Now().Add(2 * time.Second)
	for r.NeedsFrame() {
		if time.Now().After(deadline) {
			t.Fatal("transition never settled")
		}
		if err := r.Frame(); err != nil {
			t.Fatalf("Frame: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	env := &expr.EvalEnv{}
	if got := st.Root(style.Width).Eval(env).Float; got != 8 {
		t.Errorf("width after transition = %v, want 8", got)
	}
	if st.IsAnimated() {
		t.Error("settled style should not be animated")
	}
}

func TestImageClearColor(t *testing.T) {
	dev := gpu.NewFakeDevice()
	r, err := newRenderer(dev, RendererConfig{
		Width: 4, Height: 4,
		ClearColor: expr.Color{R: 1, G: 0, B: 0, A: 1},
	})
	if err != nil {
		skipNagaLimitation(t, err)
		t.Fatalf("newRenderer: %v", err)
	}
	defer r.Close()

	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	img := r.Image()
	px := img.RGBAAt(2, 2)
	if px.R != 255 || px.G != 0 || px.B != 0 || px.A != 255 {
		t.Errorf("clear pixel = %v, want opaque red", px)
	}
}

func TestAddDuringFrameDefers(t *testing.T) {
	r, dev := testRenderer(t)
	extra := testPoints(t)

	// Adding from a submit callback models a fetch future completing
	// mid-frame: the dataframe must not join the in-flight draw.
	dev.OnSubmit = func(_ string, _ []gpu.Pass) error {
		r.AddDataframe(extra)
		return nil
	}
	if err := r.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	dev.OnSubmit = nil

	if !r.NeedsFrame() {
		t.Fatal("mid-frame add should request another frame")
	}
	before := dev.Passes.Load()
	if before != 0 {
		t.Fatalf("deferred dataframe drew %d passes early", before)
	}
	if err := r.Frame(); err != nil {
		t.Fatalf("second Frame: %v", err)
	}
	if got := dev.Passes.Load(); got != 6 {
		t.Errorf("Passes = %d, want 6 after deferred add lands", got)
	}
}
