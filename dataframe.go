// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package geoviz

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/geoviz/expr"
	"github.com/gogpu/geoviz/internal/gpu"
	"github.com/gogpu/geoviz/schema"
	"github.com/gogpu/geoviz/shader"
	"github.com/gogpu/geoviz/style"
)

// Geometry selects how a dataframe's features draw.
type Geometry = shader.Geometry

const (
	// Points draws one disc per feature.
	Points = shader.GeomPoints

	// Lines draws one polyline per feature. Lines style through the
	// color and width channels; stroke channels are ignored.
	Lines = shader.GeomLines
)

// Dataframe is one tile's worth of features: geometry, property
// columns and the GPU buffers derived from them. Geometry and columns
// are immutable after creation; the attached style is replaceable.
//
// Local coordinates are normalized to [-1,1]. The placement (center,
// scale) set by SetPlacement maps them into the world square, tile
// placements come from the tile package.
//
// GPU buffers are created lazily on the first frame that draws the
// dataframe and released exactly once by Free.
type Dataframe struct {
	geom     Geometry
	count    int
	segCount int

	positions []float32
	segments  []shader.Segment
	columns   map[string][]float32
	schema    schema.Schema

	centerX, centerY float64
	scale            float64

	style *style.Style

	res      *dfResources
	released atomic.Bool
}

// dfResources are the device buffers backing one dataframe: geometry,
// one column buffer per property, and the four channel outputs.
type dfResources struct {
	geom    gpu.Buffer
	columns map[string]gpu.Buffer
	outputs [style.NumChannels]gpu.Buffer
}

// NewPoints builds a point dataframe. positions holds x,y pairs in
// local [-1,1] coordinates; every column must hold one value per
// feature and every schema property must have a column.
func NewPoints(positions []float32, columns map[string][]float32, s schema.Schema) (*Dataframe, error) {
	if len(positions)%2 != 0 {
		return nil, fmt.Errorf("geoviz: dataframe: positions length %d is odd", len(positions))
	}
	df := &Dataframe{
		geom:      Points,
		count:     len(positions) / 2,
		positions: positions,
		columns:   columns,
		schema:    s,
		scale:     1,
	}
	if err := df.checkColumns(); err != nil {
		return nil, err
	}
	return df, nil
}

// NewLines builds a line dataframe. Each element of lines is one
// polyline of x,y pairs in local [-1,1] coordinates; the polyline is
// one feature. Columns are per feature, as for NewPoints.
func NewLines(lines [][]float32, columns map[string][]float32, s schema.Schema) (*Dataframe, error) {
	df := &Dataframe{
		geom:    Lines,
		count:   len(lines),
		columns: columns,
		schema:  s,
		scale:   1,
	}
	for i, line := range lines {
		if len(line)%2 != 0 {
			return nil, fmt.Errorf("geoviz: dataframe: line %d length %d is odd", i, len(line))
		}
		if len(line) < 4 {
			return nil, fmt.Errorf("geoviz: dataframe: line %d has %d points, want at least 2", i, len(line)/2)
		}
		for p := 0; p+3 < len(line); p += 2 {
			df.segments = append(df.segments, shader.Segment{
				Ax: line[p], Ay: line[p+1],
				Bx: line[p+2], By: line[p+3],
				Feature: uint32(i), //nolint:gosec // feature counts fit uint32
			})
		}
	}
	df.segCount = len(df.segments)
	if err := df.checkColumns(); err != nil {
		return nil, err
	}
	return df, nil
}

func (df *Dataframe) checkColumns() error {
	for name, col := range df.columns {
		if len(col) != df.count {
			return fmt.Errorf("geoviz: dataframe: column %q has %d values, want %d",
				name, len(col), df.count)
		}
	}
	for name := range df.schema {
		if _, ok := df.columns[name]; !ok {
			return fmt.Errorf("geoviz: dataframe: schema property %q has no column", name)
		}
	}
	return nil
}

// Count returns the feature count.
func (df *Dataframe) Count() int { return df.count }

// Geom returns the geometry kind.
func (df *Dataframe) Geom() Geometry { return df.geom }

// Schema returns the dataframe's property schema.
func (df *Dataframe) Schema() schema.Schema { return df.schema }

// SetPlacement positions the dataframe's local [-1,1] square in the
// world: world = local*scale + center.
func (df *Dataframe) SetPlacement(centerX, centerY, scale float64) {
	df.centerX, df.centerY, df.scale = centerX, centerY, scale
}

// Placement returns the current placement.
func (df *Dataframe) Placement() (centerX, centerY, scale float64) {
	return df.centerX, df.centerY, df.scale
}

// SetStyle attaches a style. The style's schema must match the
// dataframe's; a nil style detaches, leaving the dataframe undrawn.
func (df *Dataframe) SetStyle(st *style.Style) error {
	if st != nil {
		if err := schema.Match(df.schema, st.Schema()); err != nil {
			return err
		}
	}
	df.style = st
	return nil
}

// Style returns the attached style, or nil.
func (df *Dataframe) Style() *style.Style { return df.style }

// Released reports whether Free has run.
func (df *Dataframe) Released() bool { return df.released.Load() }

// Free releases the dataframe's GPU buffers. Safe to call more than
// once; only the first call releases anything. The caller must remove
// the dataframe from its renderer first.
func (df *Dataframe) Free() {
	if df.released.Swap(true) {
		return
	}
	df.freeResources()
}

func (df *Dataframe) freeResources() {
	res := df.res
	if res == nil {
		return
	}
	df.res = nil
	if res.geom != nil {
		res.geom.Destroy()
	}
	for _, b := range res.columns {
		b.Destroy()
	}
	for _, b := range res.outputs {
		if b != nil {
			b.Destroy()
		}
	}
}

// ensureResources uploads geometry and columns and sizes the channel
// output buffers, once. On failure everything created so far is
// released and the dataframe stays resource-free for a later retry.
func (df *Dataframe) ensureResources(dev gpu.Device, label string) error {
	if df.res != nil {
		return nil
	}
	res := &dfResources{columns: make(map[string]gpu.Buffer, len(df.columns))}
	fail := func(err error) error {
		df.res = res
		df.freeResources()
		return err
	}

	var geomData []byte
	if df.geom == Lines {
		geomData = shader.PackSegments(df.segments)
	} else {
		geomData = shader.PackFloats(df.positions)
	}
	buf, err := dev.CreateBuffer(label+"_geom", uint64(len(geomData)), gpu.UsageStorage)
	if err != nil {
		return fail(err)
	}
	res.geom = buf
	dev.WriteBuffer(buf, 0, geomData)

	for name, col := range df.columns {
		buf, err := dev.CreateBuffer(label+"_"+name, uint64(len(col)*4), gpu.UsageStorage)
		if err != nil {
			return fail(err)
		}
		res.columns[name] = buf
		dev.WriteBuffer(buf, 0, shader.PackFloats(col))
	}

	for c := style.Channel(0); c < style.NumChannels; c++ {
		size := channelKind(c).ValueSize() * uint64(df.count)
		if size == 0 {
			size = channelKind(c).ValueSize()
		}
		buf, err := dev.CreateBuffer(label+"_"+c.String(), size, gpu.UsageStorageRW)
		if err != nil {
			return fail(err)
		}
		res.outputs[c] = buf
	}

	df.res = res
	return nil
}

// channelKind maps a style channel to its shader output kind.
func channelKind(c style.Channel) shader.ChannelKind {
	if c.ValueType() == expr.TypeColor {
		return shader.KindColor
	}
	return shader.KindFloat
}
