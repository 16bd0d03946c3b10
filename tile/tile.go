// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package tile handles the tiled organization of a dataset: tile
// keys, the placement mapping a tile into the world square, the
// fetch/decode provider and the LRU cache cooperating with the
// renderer over dataframe lifetimes.
//
// The world is the normalized [-1,1] square of the web-mercator
// pyramid: zoom 0 is one tile covering the square, each level
// quarters it.
package tile

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Key identifies one tile of the pyramid.
type Key = maptile.Tile

// MaxZoom bounds the pyramid depth.
const MaxZoom = 20

// At returns the key of the tile containing a lon/lat point at zoom z.
func At(lon, lat float64, z int) Key {
	return maptile.At(orb.Point{lon, lat}, maptile.Zoom(clampZoom(z))) //nolint:gosec // clamped
}

// Placement returns the affine placement of a tile in the world
// square: world = local*scale + center for local coordinates in
// [-1,1].
func Placement(k Key) (centerX, centerY, scale float64) {
	n := math.Exp2(float64(k.Z))
	scale = 1 / n
	centerX = (float64(k.X)+0.5)/n*2 - 1
	centerY = 1 - (float64(k.Y)+0.5)/n*2
	return centerX, centerY, scale
}

// Cover returns the tiles visible from a camera at (centerX, centerY)
// world coordinates and the given zoom: the tiles of level
// round(zoom) intersecting the [-1,1] clip window. Keys come back in
// row-major order.
func Cover(centerX, centerY, zoom float64) []Key {
	z := clampZoom(int(math.Round(zoom)))
	n := int(1) << z

	// The clip window spans 2/2^zoom world units around the camera.
	half := math.Exp2(-zoom)
	x0, x1 := worldToCol(centerX-half, n), worldToCol(centerX+half, n)
	y0, y1 := worldToRow(centerY+half, n), worldToRow(centerY-half, n)

	keys := make([]Key, 0, (x1-x0+1)*(y1-y0+1))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			keys = append(keys, maptile.New(uint32(x), uint32(y), maptile.Zoom(z))) //nolint:gosec // clamped to grid
		}
	}
	return keys
}

// worldToCol maps world x to a clamped tile column at an n-wide level.
func worldToCol(wx float64, n int) int {
	return clampIndex(int(math.Floor((wx+1)/2*float64(n))), n)
}

// worldToRow maps world y to a clamped tile row. Rows grow downward.
func worldToRow(wy float64, n int) int {
	return clampIndex(int(math.Floor((1-wy)/2*float64(n))), n)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func clampZoom(z int) int {
	if z < 0 {
		return 0
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
