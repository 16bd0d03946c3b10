// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader turns expression graphs into linked compute programs.
//
// Styling programs are generated from two WGSL templates, one per
// channel kind: a float template whose output buffer is array<f32> and
// a color template writing array<vec4<f32>>. The expression graph
// emits an inline fragment plus preface declarations (uniform block,
// property buffers, ramp data, shared helpers), both substituted into
// the template before naga validates the source and the device links
// it. One thread evaluates one feature.
//
// The fixed geometry programs for the compositing pass (point discs,
// line segments) also live here; they are not style-generated but
// follow the same WGSL conventions and binding discipline.
package shader

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/naga"
)

// ChannelKind selects the styling template for a channel.
type ChannelKind uint8

const (
	// KindFloat programs write one f32 per feature.
	KindFloat ChannelKind = iota

	// KindColor programs write one vec4<f32> per feature.
	KindColor
)

// String returns the kind name.
func (k ChannelKind) String() string {
	if k == KindColor {
		return "color"
	}
	return "float"
}

// ValueSize returns the per-feature byte size of the kind's output
// buffer: one f32 or one vec4<f32>.
func (k ChannelKind) ValueSize() uint64 {
	if k == KindColor {
		return 16
	}
	return 4
}

// WorkgroupSize is the thread count per workgroup of the styling
// templates.
const WorkgroupSize = 64

// PassGroups returns the dispatch grid evaluating n features.
func PassGroups(n int) [3]uint32 {
	return [3]uint32{uint32((n + WorkgroupSize - 1) / WorkgroupSize), 1, 1} //nolint:gosec // feature counts fit uint32
}

// CompileError is a WGSL validation failure. It carries the full
// generated source so the offending expression can be diagnosed.
type CompileError struct {
	Label  string
	Source string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader: compile %s: %v", e.Label, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// floatTemplate and colorTemplate share the same skeleton: the
// preface carries all declarations, the inline expression is the
// channel value for feature fid. uni.meta.x holds the feature count.
const floatTemplate = `$PREFACE

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let fid = gid.x;
    if (f32(fid) >= uni.meta.x) {
        return;
    }
    out_data[fid] = $INLINE;
}
`

const colorTemplate = `$PREFACE

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let fid = gid.x;
    if (f32(fid) >= uni.meta.x) {
        return;
    }
    out_data[fid] = $INLINE;
}
`

// compileSPIRV compiles WGSL to SPIR-V words via naga.
// SPIR-V is little-endian 32-bit words.
func compileSPIRV(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// packFloats serializes float32 values little-endian for buffer upload.
func packFloats(vals []float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
