// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package tile

import (
	"math"
	"testing"

	"github.com/paulmach/orb/maptile"
)

func TestPlacement(t *testing.T) {
	tests := []struct {
		name          string
		key           Key
		cx, cy, scale float64
	}{
		{"root", maptile.New(0, 0, 0), 0, 0, 1},
		{"topLeftQuad", maptile.New(0, 0, 1), -0.5, 0.5, 0.5},
		{"topRightQuad", maptile.New(1, 0, 1), 0.5, 0.5, 0.5},
		{"bottomRightQuad", maptile.New(1, 1, 1), 0.5, -0.5, 0.5},
		{"z2Interior", maptile.New(2, 1, 2), 0.25, 0.25, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cx, cy, scale := Placement(tt.key)
			if cx != tt.cx || cy != tt.cy || scale != tt.scale {
				t.Errorf("Placement(%v) = (%v, %v, %v), want (%v, %v, %v)",
					tt.key, cx, cy, scale, tt.cx, tt.cy, tt.scale)
			}
		})
	}
}

func TestPlacementNeighborOffset(t *testing.T) {
	ax, ay, scale := Placement(maptile.New(0, 0, 1))
	bx, by, _ := Placement(maptile.New(1, 0, 1))
	if dx, dy := bx-ax, by-ay; dx != 2*scale || dy != 0 {
		t.Errorf("neighbor offset = (%v, %v), want (%v, 0)", dx, dy, 2*scale)
	}
}

func TestCoverWholeWorld(t *testing.T) {
	keys := Cover(0, 0, 0)
	if len(keys) != 1 || keys[0] != maptile.New(0, 0, 0) {
		t.Fatalf("Cover at zoom 0 = %v, want the root tile", keys)
	}
}

func TestCoverZoomOne(t *testing.T) {
	keys := Cover(0, 0, 1)
	if len(keys) != 4 {
		t.Fatalf("Cover(0,0,1) returned %d tiles, want 4", len(keys))
	}
	want := []Key{
		maptile.New(0, 0, 1), maptile.New(1, 0, 1),
		maptile.New(0, 1, 1), maptile.New(1, 1, 1),
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("keys[%d] = %v, want %v", i, keys[i], k)
		}
	}
}

func TestCoverOffCenter(t *testing.T) {
	// Camera inside the top-left quadrant sees only that tile and its
	// immediate neighbors at zoom 2.
	keys := Cover(-0.5, 0.5, 2)
	for _, k := range keys {
		if k.Z != 2 {
			t.Fatalf("Cover returned key at zoom %d, want 2", k.Z)
		}
		cx, cy, scale := Placement(k)
		if math.Abs(cx+0.5) > 0.25+2*scale || math.Abs(cy-0.5) > 0.25+2*scale {
			t.Errorf("tile %v too far from camera", k)
		}
	}
}

func TestCoverClampsAtEdges(t *testing.T) {
	keys := Cover(-1, 1, 3)
	n := uint32(1) << 3
	for _, k := range keys {
		if k.X >= n || k.Y >= n {
			t.Errorf("tile %v outside the %dx%d grid", k, n, n)
		}
	}
	if len(keys) == 0 {
		t.Fatal("corner camera should still see tiles")
	}
}

func TestCoverClampsZoom(t *testing.T) {
	if keys := Cover(0, 0, -4); len(keys) != 1 {
		t.Errorf("negative zoom should clamp to the root tile, got %d keys", len(keys))
	}
	for _, k := range Cover(0, 0, MaxZoom+5) {
		if int(k.Z) != MaxZoom {
			t.Errorf("zoom should clamp to %d, got %d", MaxZoom, k.Z)
		}
	}
}
