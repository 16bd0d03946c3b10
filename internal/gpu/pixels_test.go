// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"bytes"
	"testing"
)

func TestPackPixelsLayout(t *testing.T) {
	// One pixel r=0x11 g=0x22 b=0x33 a=0x44 packs to the little-endian
	// u32 r|g<<8|b<<16|a<<24, which lays out as the same byte order.
	packed := PackPixels([]uint8{0x11, 0x22, 0x33, 0x44}, 1)
	want := []byte{0x11, 0x22, 0x33, 0x44}
	if !bytes.Equal(packed, want) {
		t.Errorf("PackPixels = %x, want %x", packed, want)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := []uint8{
		0, 0, 0, 0,
		255, 128, 64, 32,
		1, 2, 3, 4,
		0xff, 0xff, 0xff, 0xff,
	}
	packed := PackPixels(src, 4)
	dst := make([]uint8, len(src))
	UnpackPixels(packed, dst, 4)
	if !bytes.Equal(src, dst) {
		t.Errorf("round trip = %x, want %x", dst, src)
	}
}
