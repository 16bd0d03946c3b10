// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package geoviz renders large point and line datasets on a tiled map
// by compiling a small declarative styling language into GPU compute
// programs.
//
// # Overview
//
// A dataset is split into tile-sized Dataframes holding geometry and
// typed property columns. A Style declares four channels (color,
// width, strokeColor, strokeWidth) as expressions over those
// properties; each channel compiles to one shading program that
// evaluates the expression once per feature on the GPU. Every frame
// runs two passes: pass 1 evaluates the styles into per-feature value
// buffers, pass 2 composites the geometry using them. Styles can be
// edited and cross-faded live without re-uploading feature data.
//
// # Quick Start
//
//	s := schema.Schema{"speed": schema.Number(0, 120)}
//	st, err := style.FromSource("color: ramp(linear($speed, 0, 120), sunset)\nwidth: 4", s)
//
//	r, err := geoviz.NewRenderer(nil, geoviz.RendererConfig{Width: 512, Height: 512})
//	df, err := geoviz.NewPoints(positions, props, s)
//	df.SetStyle(st)
//	r.AddDataframe(df)
//
//	for r.NeedsFrame() {
//	    r.Frame()
//	}
//	img := r.Image()
//
// # Architecture
//
// The packages mirror the pipeline stages:
//   - schema: property types (numeric ranges, category id tables)
//   - expr: typed expression graphs with CPU evaluation
//   - style: the styling language parser and the four-channel Style
//   - shader: WGSL generation and program linking
//   - tile: tile keys, placement math, provider and LRU cache
//   - internal/gpu: the compute device (wgpu/hal backend plus a fake)
//
// # Coordinate System
//
// The world is the normalized [-1,1] square of the web-mercator tile
// pyramid. A Dataframe carries a placement (center, scale) mapping its
// local [-1,1] coordinates into the world; the camera (center, zoom)
// maps world to clip space at draw time.
package geoviz
