// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/geoviz/internal/gpu"
)

// Geometry selects one of the fixed compositing programs.
type Geometry uint8

const (
	// GeomPoints composites anti-aliased discs with fill and stroke.
	GeomPoints Geometry = iota

	// GeomLines composites anti-aliased line segments. Lines take the
	// color and width channels only.
	GeomLines
)

// String returns the geometry name.
func (g Geometry) String() string {
	if g == GeomLines {
		return "lines"
	}
	return "points"
}

// PixelWorkgroup is the tile edge of the compositing dispatch grid.
const PixelWorkgroup = 8

// PixelGroups returns the dispatch grid covering a w by h target.
func PixelGroups(w, h int) [3]uint32 {
	return [3]uint32{
		uint32((w + PixelWorkgroup - 1) / PixelWorkgroup), //nolint:gosec // target sizes fit uint32
		uint32((h + PixelWorkgroup - 1) / PixelWorkgroup), //nolint:gosec
		1,
	}
}

// geomHelpers are the pixel helpers shared by both compositing
// programs. The pixel buffer holds premultiplied RGBA packed one u32
// per pixel, r in the low byte, matching image.RGBA row order.
const geomHelpers = `
fn load_pixel(idx: u32) -> vec4<f32> {
    let p = pixels[idx];
    let r = f32(p & 0xffu) / 255.0;
    let g = f32((p >> 8u) & 0xffu) / 255.0;
    let b = f32((p >> 16u) & 0xffu) / 255.0;
    let a = f32((p >> 24u) & 0xffu) / 255.0;
    return vec4<f32>(r, g, b, a);
}

fn store_pixel(idx: u32, c: vec4<f32>) {
    let r = u32(clamp(c.x, 0.0, 1.0) * 255.0 + 0.5);
    let g = u32(clamp(c.y, 0.0, 1.0) * 255.0 + 0.5);
    let b = u32(clamp(c.z, 0.0, 1.0) * 255.0 + 0.5);
    let a = u32(clamp(c.w, 0.0, 1.0) * 255.0 + 0.5);
    pixels[idx] = r | (g << 8u) | (b << 16u) | (a << 24u);
}

fn over(c: vec4<f32>, cov: f32, dst: vec4<f32>) -> vec4<f32> {
    let a = c.w * cov;
    let src = vec4<f32>(c.x * a, c.y * a, c.z * a, a);
    return src + dst * (1.0 - a);
}
`

// pointDecls and pointMain form the point program. One pass draws one
// feature: params.target.z carries the feature index, view maps
// dataframe space to clip space, and each thread covers one pixel.
const pointDecls = `struct DrawParams {
    view: vec4<f32>,
    target: vec4<f32>,
}

@group(0) @binding(0) var<uniform> params: DrawParams;
@group(0) @binding(1) var<storage, read> positions: array<f32>;
@group(0) @binding(2) var<storage, read> fill_colors: array<vec4<f32>>;
@group(0) @binding(3) var<storage, read> widths: array<f32>;
@group(0) @binding(4) var<storage, read> stroke_colors: array<vec4<f32>>;
@group(0) @binding(5) var<storage, read> stroke_widths: array<f32>;
@group(0) @binding(6) var<storage, read_write> pixels: array<u32>;
`

const pointMain = `
@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let w = u32(params.target.x);
    let h = u32(params.target.y);
    if (gid.x >= w || gid.y >= h) {
        return;
    }
    let fid = u32(params.target.z);
    let ndc_x = positions[fid * 2u] * params.view.x + params.view.z;
    let ndc_y = positions[fid * 2u + 1u] * params.view.y + params.view.w;
    let cx = (ndc_x + 1.0) * 0.5 * params.target.x;
    let cy = (1.0 - ndc_y) * 0.5 * params.target.y;
    let px = f32(gid.x) + 0.5;
    let py = f32(gid.y) + 0.5;
    let dx = px - cx;
    let dy = py - cy;
    let d = sqrt(dx * dx + dy * dy);
    let radius = widths[fid] * 0.5;
    let stroke = stroke_widths[fid];
    if (d > radius + stroke * 0.5 + 1.0) {
        return;
    }
    let idx = gid.y * w + gid.x;
    var dst = load_pixel(idx);
    let fill_cov = clamp(radius - d + 0.5, 0.0, 1.0);
    if (fill_cov > 0.0) {
        dst = over(fill_colors[fid], fill_cov, dst);
    }
    if (stroke > 0.0) {
        let ring = abs(d - radius);
        let stroke_cov = clamp(stroke * 0.5 - ring + 0.5, 0.0, 1.0);
        if (stroke_cov > 0.0) {
            dst = over(stroke_colors[fid], stroke_cov, dst);
        }
    }
    store_pixel(idx, dst);
}
`

// lineDecls and lineMain form the line program. One pass draws one
// segment: params.target.z is the segment index and the segment
// carries the index of the feature styling it.
const lineDecls = `struct DrawParams {
    view: vec4<f32>,
    target: vec4<f32>,
}

struct Segment {
    ax: f32,
    ay: f32,
    bx: f32,
    by: f32,
    fid: u32,
    pad0: u32,
    pad1: u32,
    pad2: u32,
}

@group(0) @binding(0) var<uniform> params: DrawParams;
@group(0) @binding(1) var<storage, read> segments: array<Segment>;
@group(0) @binding(2) var<storage, read> line_colors: array<vec4<f32>>;
@group(0) @binding(3) var<storage, read> line_widths: array<f32>;
@group(0) @binding(4) var<storage, read_write> pixels: array<u32>;
`

const lineMain = `
@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let w = u32(params.target.x);
    let h = u32(params.target.y);
    if (gid.x >= w || gid.y >= h) {
        return;
    }
    let seg = segments[u32(params.target.z)];
    let fid = seg.fid;
    let ax = ((seg.ax * params.view.x + params.view.z) + 1.0) * 0.5 * params.target.x;
    let ay = (1.0 - (seg.ay * params.view.y + params.view.w)) * 0.5 * params.target.y;
    let bx = ((seg.bx * params.view.x + params.view.z) + 1.0) * 0.5 * params.target.x;
    let by = (1.0 - (seg.by * params.view.y + params.view.w)) * 0.5 * params.target.y;
    let px = f32(gid.x) + 0.5;
    let py = f32(gid.y) + 0.5;
    let dx = bx - ax;
    let dy = by - ay;
    let len2 = max(dx * dx + dy * dy, 0.00001);
    let t = clamp(((px - ax) * dx + (py - ay) * dy) / len2, 0.0, 1.0);
    let qx = ax + dx * t - px;
    let qy = ay + dy * t - py;
    let d = sqrt(qx * qx + qy * qy);
    let half_width = line_widths[fid] * 0.5;
    let cov = clamp(half_width - d + 0.5, 0.0, 1.0);
    if (cov <= 0.0) {
        return;
    }
    let idx = gid.y * w + gid.x;
    store_pixel(idx, over(line_colors[fid], cov, load_pixel(idx)));
}
`

var (
	pointWGSL = pointDecls + geomHelpers + pointMain
	lineWGSL  = lineDecls + geomHelpers + lineMain
)

// GeomProgram is one linked compositing program. Unlike styling
// programs it owns no buffers; the renderer supplies per-frame
// bindings in the Layout order.
type GeomProgram struct {
	geom   Geometry
	prog   gpu.Program
	layout []gpu.BindingType
}

// CompileGeometry validates and links the compositing program for one
// geometry kind.
func CompileGeometry(dev gpu.Device, geom Geometry) (*GeomProgram, error) {
	var source, label string
	var layout []gpu.BindingType
	switch geom {
	case GeomPoints:
		source, label = pointWGSL, "draw_points"
		layout = []gpu.BindingType{
			gpu.BindUniform,
			gpu.BindStorage, gpu.BindStorage, gpu.BindStorage, gpu.BindStorage, gpu.BindStorage,
			gpu.BindStorageRW,
		}
	case GeomLines:
		source, label = lineWGSL, "draw_lines"
		layout = []gpu.BindingType{
			gpu.BindUniform,
			gpu.BindStorage, gpu.BindStorage, gpu.BindStorage,
			gpu.BindStorageRW,
		}
	default:
		return nil, fmt.Errorf("shader: unknown geometry %d", geom)
	}

	spirv, err := compileSPIRV(source)
	if err != nil {
		return nil, &CompileError{Label: label, Source: source, Err: err}
	}
	prog, err := dev.CreateProgram(label, spirv, layout)
	if err != nil {
		return nil, err
	}
	return &GeomProgram{geom: geom, prog: prog, layout: layout}, nil
}

// Geom returns the geometry kind.
func (g *GeomProgram) Geom() Geometry { return g.geom }

// Program returns the linked device program.
func (g *GeomProgram) Program() gpu.Program { return g.prog }

// Layout returns the binding layout the renderer must satisfy.
func (g *GeomProgram) Layout() []gpu.BindingType { return g.layout }

// Destroy releases the program.
func (g *GeomProgram) Destroy() {
	if g.prog != nil {
		g.prog.Destroy()
		g.prog = nil
	}
}

// Segment is one line segment in dataframe-local coordinates together
// with the feature that styles it.
type Segment struct {
	Ax, Ay  float32
	Bx, By  float32
	Feature uint32
}

// PackSegments serializes segments into the 32-byte stride the line
// program reads.
func PackSegments(segs []Segment) []byte {
	out := make([]byte, len(segs)*32)
	for i, s := range segs {
		base := i * 32
		binary.LittleEndian.PutUint32(out[base:], math.Float32bits(s.Ax))
		binary.LittleEndian.PutUint32(out[base+4:], math.Float32bits(s.Ay))
		binary.LittleEndian.PutUint32(out[base+8:], math.Float32bits(s.Bx))
		binary.LittleEndian.PutUint32(out[base+12:], math.Float32bits(s.By))
		binary.LittleEndian.PutUint32(out[base+16:], s.Feature)
	}
	return out
}

// PackFloats serializes float32 values little-endian for buffer
// upload. Positions pack as x,y pairs, property columns one value per
// feature.
func PackFloats(vals []float32) []byte { return packFloats(vals) }

// PackDrawParams serializes the compositing uniform block: the view
// transform (scale x, scale y, offset x, offset y) and the target
// metadata (width, height, draw unit index).
func PackDrawParams(view [4]float32, width, height, unit uint32) []byte {
	out := make([]byte, 32)
	for i, f := range view {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(out[16:], math.Float32bits(float32(width)))
	binary.LittleEndian.PutUint32(out[20:], math.Float32bits(float32(height)))
	binary.LittleEndian.PutUint32(out[24:], math.Float32bits(float32(unit)))
	return out
}
