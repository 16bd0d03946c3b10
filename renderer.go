// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geoviz

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/geoviz/expr"
	"github.com/gogpu/geoviz/internal/gpu"
	"github.com/gogpu/geoviz/shader"
	"github.com/gogpu/geoviz/style"
)

// DeviceHandle provides GPU device access from the host application.
//
// A host that owns a gogpu context implements DeviceHandle (it is an
// alias for gpucontext.DeviceProvider) and passes it to NewRenderer,
// so geoviz shares the host's device instead of creating one. A nil
// handle makes the renderer open its own device.
type DeviceHandle = gpucontext.DeviceProvider

// RendererConfig configures a renderer. The zero value selects a
// 512x512 transparent target.
type RendererConfig struct {
	// Width and Height size the output target in pixels. Zero means
	// 512.
	Width, Height int

	// ClearColor fills the target at the start of each frame. The
	// zero value is fully transparent.
	ClearColor expr.Color
}

// withDefaults fills in zero fields and validates the rest.
func (c RendererConfig) withDefaults() (RendererConfig, error) {
	if c.Width == 0 {
		c.Width = 512
	}
	if c.Height == 0 {
		c.Height = 512
	}
	if c.Width < 0 || c.Height < 0 {
		return c, fmt.Errorf("geoviz: renderer: invalid target size %dx%d", c.Width, c.Height)
	}
	return c, nil
}

// channelProgs caches the four compiled styling programs of one
// style. A dirty channel recompiles at the next frame start; on
// compile failure the previous program keeps drawing.
type channelProgs struct {
	progs [style.NumChannels]*shader.Compiled
	dirty [style.NumChannels]bool
}

func (cp *channelProgs) destroy() {
	for i, p := range cp.progs {
		if p != nil {
			p.Destroy()
			cp.progs[i] = nil
		}
	}
}

// Stats is a point-in-time snapshot of renderer activity.
type Stats struct {
	FramesDrawn    int64
	LiveDataframes int
	LastFrame      time.Duration
}

// Renderer owns the live dataframes, the camera and the two-pass
// frame pipeline. All drawing happens inside Frame, which the host
// calls on its frame tick whenever NeedsFrame reports true.
//
// Mutators (AddDataframe, SetCenter, SetZoom, style edits) are safe
// to call from any goroutine, including fetch-completion callbacks:
// they record the change without touching the device and request a
// redraw; the next Frame observes them. RemoveDataframe and Close
// instead wait for an in-flight frame, so a caller freeing a
// dataframe afterward can never race a draw.
type Renderer struct {
	dev gpu.Device
	cfg RendererConfig

	pointProg *shader.GeomProgram
	lineProg  *shader.GeomProgram

	pixelBuf gpu.Buffer
	readBuf  gpu.Buffer
	clear    []byte

	// mu is the frame lock: held for the whole of Frame, Close and
	// RemoveDataframe. Everything below it is frame-owned.
	mu         sync.Mutex
	dataframes []*Dataframe
	// degraded maps a failed dataframe to the style it failed with;
	// editing or swapping that style earns a retry.
	degraded map[*Dataframe]*style.Style
	styles   map[*style.Style]*channelProgs
	pixels   []byte
	frames   int64
	lastSpan time.Duration
	closed   bool

	// intake guards the cross-goroutine mutation inbox. It is only
	// ever held briefly and never while the device is in use.
	intake           sync.Mutex
	added            []*Dataframe
	edited           map[*style.Style][]style.Channel
	centerX, centerY float64
	zoom             float64

	pending frameFlag
	start   time.Time
}

// NewRenderer opens the device and builds the frame pipeline. A nil
// handle opens an owned device; a handle that exposes HAL handles
// shares the host's. Missing device, failed geometry-program link or
// failed target allocation all fail here, never later: a returned
// Renderer is fully drawable.
func NewRenderer(handle DeviceHandle, cfg RendererConfig) (*Renderer, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	var provider any
	if handle != nil {
		provider = handle
	}
	dev, err := gpu.Open(provider)
	if err != nil {
		return nil, err
	}
	r, err := newRenderer(dev, cfg)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return r, nil
}

// newRenderer builds a renderer over an already open device. Tests
// inject the fake device here.
func newRenderer(dev gpu.Device, cfg RendererConfig) (*Renderer, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		dev:      dev,
		cfg:      cfg,
		degraded: make(map[*Dataframe]*style.Style),
		styles:   make(map[*style.Style]*channelProgs),
		edited:   make(map[*style.Style][]style.Channel),
		start:    time.Now(),
	}

	fail := func(err error) (*Renderer, error) {
		r.destroyPipeline()
		return nil, err
	}

	if r.pointProg, err = shader.CompileGeometry(dev, shader.GeomPoints); err != nil {
		return fail(err)
	}
	if r.lineProg, err = shader.CompileGeometry(dev, shader.GeomLines); err != nil {
		return fail(err)
	}

	size := uint64(cfg.Width) * uint64(cfg.Height) * 4 //nolint:gosec // sizes validated non-negative
	if r.pixelBuf, err = dev.CreateBuffer("target_pixels", size, gpu.UsageStorageRW); err != nil {
		return fail(err)
	}
	if r.readBuf, err = dev.CreateBuffer("target_readback", size, gpu.UsageReadback); err != nil {
		return fail(err)
	}
	r.pixels = make([]byte, size)
	r.clear = clearPattern(cfg.ClearColor, cfg.Width*cfg.Height)
	copy(r.pixels, r.clear)

	Logger().Info("renderer ready",
		"adapter", dev.Name(), "width", cfg.Width, "height", cfg.Height)
	r.pending.set()
	return r, nil
}

// clearPattern packs the clear color (premultiplied) into a full
// target's worth of pixel words.
func clearPattern(c expr.Color, pixels int) []byte {
	px := gpu.PackPixels([]uint8{
		channelByte(c.R * c.A), channelByte(c.G * c.A), channelByte(c.B * c.A), channelByte(c.A),
	}, 1)
	out := make([]byte, pixels*4)
	for i := 0; i < len(out); i += 4 {
		copy(out[i:], px)
	}
	return out
}

func channelByte(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
}

// AddDataframe registers a dataframe for drawing. The GPU upload is
// deferred to the start of the next frame, so the call is safe from a
// fetch-completion callback even while a frame is in flight. The
// dataframe draws once it has a style attached.
func (r *Renderer) AddDataframe(df *Dataframe) {
	if df == nil || df.Released() {
		return
	}
	r.intake.Lock()
	r.added = append(r.added, df)
	r.intake.Unlock()
	Logger().Debug("dataframe added", "features", df.Count(), "geom", df.Geom().String())
	r.requestFrame()
}

// RemoveDataframe deregisters a dataframe, waiting out an in-flight
// frame. On return no future frame touches the dataframe, so the
// caller may free it: removal happens before the GPU free.
func (r *Renderer) RemoveDataframe(df *Dataframe) {
	r.mu.Lock()
	r.dataframes = removeDF(r.dataframes, df)
	delete(r.degraded, df)

	r.intake.Lock()
	r.added = removeDF(r.added, df)
	r.intake.Unlock()

	r.pruneStyles()
	r.mu.Unlock()
	r.requestFrame()
}

func removeDF(list []*Dataframe, df *Dataframe) []*Dataframe {
	for i, d := range list {
		if d == df {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// SetCenter moves the camera in world coordinates.
func (r *Renderer) SetCenter(x, y float64) {
	r.intake.Lock()
	r.centerX, r.centerY = x, y
	r.intake.Unlock()
	r.requestFrame()
}

// Center returns the camera center.
func (r *Renderer) Center() (x, y float64) {
	r.intake.Lock()
	defer r.intake.Unlock()
	return r.centerX, r.centerY
}

// SetZoom sets the camera zoom level. Zoom 0 shows the whole world
// square; each whole level doubles the magnification.
func (r *Renderer) SetZoom(z float64) {
	r.intake.Lock()
	r.zoom = z
	r.intake.Unlock()
	r.requestFrame()
}

// Zoom returns the camera zoom level.
func (r *Renderer) Zoom() float64 {
	r.intake.Lock()
	defer r.intake.Unlock()
	return r.zoom
}

// Stats returns a snapshot of renderer activity.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	s := Stats{
		FramesDrawn:    r.frames,
		LiveDataframes: len(r.dataframes),
		LastFrame:      r.lastSpan,
	}
	r.mu.Unlock()
	r.intake.Lock()
	s.LiveDataframes += len(r.added)
	r.intake.Unlock()
	return s
}

// Image returns the target as drawn by the last frame.
func (r *Renderer) Image() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, r.cfg.Width, r.cfg.Height))
	gpu.UnpackPixels(r.pixels, img.Pix, r.cfg.Width*r.cfg.Height)
	return img
}

// Close tears the renderer down: every live dataframe is freed, all
// programs and targets released, then the device closed. Idempotent.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true

	r.intake.Lock()
	dfs := append(r.dataframes, r.added...)
	r.added = nil
	r.intake.Unlock()
	r.dataframes = nil

	for _, df := range dfs {
		df.Free()
	}
	r.destroyPipeline()
	r.dev.Close()
	Logger().Info("renderer closed")
}

func (r *Renderer) destroyPipeline() {
	for _, cp := range r.styles {
		cp.destroy()
	}
	r.styles = map[*style.Style]*channelProgs{}
	if r.pointProg != nil {
		r.pointProg.Destroy()
		r.pointProg = nil
	}
	if r.lineProg != nil {
		r.lineProg.Destroy()
		r.lineProg = nil
	}
	if r.pixelBuf != nil {
		r.pixelBuf.Destroy()
		r.pixelBuf = nil
	}
	if r.readBuf != nil {
		r.readBuf.Destroy()
		r.readBuf = nil
	}
}

// Frame runs one complete draw: absorb deferred mutations, recompile
// dirty styles, evaluate every styled channel per feature (pass 1),
// composite the geometry (pass 2), read the target back, then fold
// finished style transitions and re-arm if anything still animates.
//
// Frame holds the frame lock for both passes, so a frame, once
// started, completes before any removal or teardown is observed.
func (r *Renderer) Frame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.pending.clear()

	camX, camY, camZoom := r.absorbIntake()
	live := r.drawList()
	fs := &expr.FrameState{
		Now:  time.Since(r.start).Seconds(),
		Zoom: camZoom,
	}

	began := time.Now()
	err := r.draw(live, fs, camX, camY, camZoom)
	r.frames++
	r.lastSpan = time.Since(began)

	if r.collapseStyles(live) {
		r.requestFrame()
	}
	r.pruneStyles()
	return err
}

// absorbIntake drains the mutation inbox at the start of a frame:
// deferred dataframe additions join the live list, queued style edits
// mark their channels dirty, and the camera is snapshotted.
func (r *Renderer) absorbIntake() (camX, camY, camZoom float64) {
	r.intake.Lock()
	added := r.added
	r.added = nil
	edited := r.edited
	r.edited = make(map[*style.Style][]style.Channel)
	camX, camY, camZoom = r.centerX, r.centerY, r.zoom
	r.intake.Unlock()

	for _, df := range added {
		if df.Released() {
			continue
		}
		r.dataframes = append(r.dataframes, df)
	}
	for st, channels := range edited {
		// An edit earns a degraded dataframe a fresh attempt: the
		// failure may have been the style's.
		for df, was := range r.degraded {
			if was == st {
				delete(r.degraded, df)
			}
		}
		cp, ok := r.styles[st]
		if !ok {
			continue
		}
		for _, c := range channels {
			cp.dirty[c] = true
		}
	}
	return camX, camY, camZoom
}

// drawList filters the live list down to drawable dataframes: not
// released, styled and with resources in place. An upload failure
// degrades the dataframe to not-drawn instead of failing the frame;
// a degraded dataframe is retried once its style is swapped or
// edited.
func (r *Renderer) drawList() []*Dataframe {
	live := make([]*Dataframe, 0, len(r.dataframes))
	for _, df := range r.dataframes {
		if df.Released() || df.Style() == nil {
			continue
		}
		if was, ok := r.degraded[df]; ok {
			if was == df.Style() {
				continue
			}
			delete(r.degraded, df)
		}
		if err := df.ensureResources(r.dev, fmt.Sprintf("df%p", df)); err != nil {
			Logger().Warn("dataframe degraded", "error", err)
			r.degraded[df] = df.Style()
			continue
		}
		live = append(live, df)
	}
	return live
}

// draw runs both passes in one submit.
func (r *Renderer) draw(live []*Dataframe, fs *expr.FrameState, camX, camY, camZoom float64) error {
	var passes []gpu.Pass
	var transient []gpu.Buffer
	defer func() {
		for _, b := range transient {
			b.Destroy()
		}
	}()

	drawn := live[:0]
	for _, df := range live {
		dfPasses, bufs, err := r.stylePasses(df, fs)
		transient = append(transient, bufs...)
		if err != nil {
			Logger().Warn("dataframe degraded", "error", err)
			r.degraded[df] = df.Style()
			continue
		}
		passes = append(passes, dfPasses...)
		drawn = append(drawn, df)
	}

	r.dev.WriteBuffer(r.pixelBuf, 0, r.clear)

	for _, df := range drawn {
		dfPasses, bufs, err := r.geometryPasses(df, camX, camY, camZoom)
		transient = append(transient, bufs...)
		if err != nil {
			Logger().Warn("dataframe degraded", "error", err)
			continue
		}
		passes = append(passes, dfPasses...)
	}

	size := r.pixelBuf.Size()
	copies := []gpu.Copy{{Src: r.pixelBuf, Dst: r.readBuf, Size: size}}
	if err := r.dev.Submit("frame", passes, copies); err != nil {
		return fmt.Errorf("geoviz: frame submit: %w", err)
	}
	if err := r.dev.ReadBuffer(r.readBuf, 0, r.pixels); err != nil {
		return fmt.Errorf("geoviz: frame readback: %w", err)
	}
	Logger().Debug("frame drawn", "dataframes", len(drawn), "passes", len(passes))
	return nil
}

// stylePasses builds the pass-1 dispatches evaluating all four
// channels of one dataframe. Returned buffers are transient uniform
// blocks the caller destroys after the submit.
func (r *Renderer) stylePasses(df *Dataframe, fs *expr.FrameState) ([]gpu.Pass, []gpu.Buffer, error) {
	st := df.Style()
	cp, err := r.programsFor(st)
	if err != nil {
		return nil, nil, err
	}

	var passes []gpu.Pass
	var transient []gpu.Buffer
	for c := style.Channel(0); c < style.NumChannels; c++ {
		prog := cp.progs[c]
		st.Root(c).BeforeDraw(fs, prog)

		uni, err := r.dev.CreateBuffer("uni_"+c.String(), prog.UniformSize(), gpu.UsageUniform)
		if err != nil {
			return nil, transient, err
		}
		transient = append(transient, uni)
		r.dev.WriteBuffer(uni, 0, prog.UniformBytes(df.Count()))

		props := make([]gpu.Buffer, 0, len(prog.Properties()))
		for _, name := range prog.Properties() {
			col, ok := df.res.columns[name]
			if !ok {
				return nil, transient, fmt.Errorf("geoviz: dataframe has no column %q", name)
			}
			props = append(props, col)
		}
		bufs, err := prog.PassBuffers(uni, props, df.res.outputs[c])
		if err != nil {
			return nil, transient, err
		}
		passes = append(passes, gpu.Pass{
			Label:   "style_" + c.String(),
			Program: prog.Program(),
			Buffers: bufs,
			Groups:  shader.PassGroups(df.Count()),
		})
	}
	return passes, transient, nil
}

// geometryPasses builds the pass-2 dispatches compositing one
// dataframe into the target, one dispatch per draw unit (feature for
// points, segment for lines).
func (r *Renderer) geometryPasses(df *Dataframe, camX, camY, camZoom float64) ([]gpu.Pass, []gpu.Buffer, error) {
	cx, cy, scale := df.Placement()
	zs := math.Pow(2, camZoom)
	view := [4]float32{
		float32(scale * zs),
		float32(scale * zs),
		float32((cx - camX) * zs),
		float32((cy - camY) * zs),
	}

	units := df.Count()
	prog := r.pointProg
	bind := []gpu.Buffer{
		nil, // per-unit uniform, filled below
		df.res.geom,
		df.res.outputs[style.Color],
		df.res.outputs[style.Width],
		df.res.outputs[style.StrokeColor],
		df.res.outputs[style.StrokeWidth],
		r.pixelBuf,
	}
	if df.Geom() == Lines {
		units = df.segCount
		prog = r.lineProg
		bind = []gpu.Buffer{
			nil,
			df.res.geom,
			df.res.outputs[style.Color],
			df.res.outputs[style.Width],
			r.pixelBuf,
		}
	}

	var passes []gpu.Pass
	var transient []gpu.Buffer
	for unit := 0; unit < units; unit++ {
		params := shader.PackDrawParams(view,
			uint32(r.cfg.Width), uint32(r.cfg.Height), uint32(unit)) //nolint:gosec // sizes validated
		uni, err := r.dev.CreateBuffer("draw_params", uint64(len(params)), gpu.UsageUniform)
		if err != nil {
			return nil, transient, err
		}
		transient = append(transient, uni)
		r.dev.WriteBuffer(uni, 0, params)

		bufs := make([]gpu.Buffer, len(bind))
		copy(bufs, bind)
		bufs[0] = uni
		passes = append(passes, gpu.Pass{
			Label:   "draw_" + df.Geom().String(),
			Program: prog.Program(),
			Buffers: bufs,
			Groups:  shader.PixelGroups(r.cfg.Width, r.cfg.Height),
		})
	}
	return passes, transient, nil
}

// programsFor returns the compiled channel programs for a style,
// compiling missing or dirty channels. The style's change hook is
// installed on first sight so live edits mark exactly the affected
// channel. Compile failure keeps the previous program drawing; a
// channel with no program at all fails, degrading the dataframe.
func (r *Renderer) programsFor(st *style.Style) (*channelProgs, error) {
	cp, ok := r.styles[st]
	if !ok {
		cp = &channelProgs{}
		for c := range cp.dirty {
			cp.dirty[c] = true
		}
		r.styles[st] = cp
		st.OnChange(func(c style.Channel) {
			r.intake.Lock()
			r.edited[st] = append(r.edited[st], c)
			r.intake.Unlock()
			r.requestFrame()
		})
	}

	for c := style.Channel(0); c < style.NumChannels; c++ {
		if cp.progs[c] != nil && !cp.dirty[c] {
			continue
		}
		compiled, err := shader.Compile(r.dev, c.String(), st.Root(c), channelKind(c))
		if err != nil {
			if cp.progs[c] != nil {
				// Previous program keeps drawing.
				Logger().Warn("style edit rejected", "channel", c.String(), "error", err)
				cp.dirty[c] = false
				continue
			}
			return nil, err
		}
		if cp.progs[c] != nil {
			cp.progs[c].Destroy()
		}
		cp.progs[c] = compiled
		cp.dirty[c] = false
		Logger().Debug("program linked", "channel", c.String())
	}
	return cp, nil
}

// collapseStyles folds finished transitions as the last step of the
// frame and marks the rewritten channels for recompilation. It
// reports whether another frame is needed: a style still animating,
// or a collapse whose flat program has yet to link.
func (r *Renderer) collapseStyles(live []*Dataframe) bool {
	rearm := false
	seen := make(map[*style.Style]bool, len(live))
	for _, df := range live {
		st := df.Style()
		if st == nil || seen[st] {
			continue
		}
		seen[st] = true
		for _, c := range st.Collapse() {
			rearm = true
			if cp, ok := r.styles[st]; ok {
				cp.dirty[c] = true
			}
		}
		if st.IsAnimated() {
			rearm = true
		}
	}
	return rearm
}

// pruneStyles destroys the compiled programs of styles no registered
// dataframe is attached to anymore. Caller holds the frame lock.
func (r *Renderer) pruneStyles() {
	if len(r.styles) == 0 {
		return
	}
	attached := make(map[*style.Style]bool, len(r.dataframes))
	for _, df := range r.dataframes {
		attached[df.Style()] = true
	}
	r.intake.Lock()
	for _, df := range r.added {
		attached[df.Style()] = true
	}
	r.intake.Unlock()

	for st, cp := range r.styles {
		if attached[st] {
			continue
		}
		st.OnChange(nil)
		cp.destroy()
		delete(r.styles, st)
		Logger().Debug("style programs released")
	}
}
