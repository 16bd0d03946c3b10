// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package expr

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxPropertySlots is the per-program budget of property buffer
	// bindings (property0..property3).
	MaxPropertySlots = 4

	// RampSamples is the number of baked samples per ramp.
	RampSamples = 256
)

// UniformRef identifies one allocated uniform: a vec4 member named
// u<Index> in the program's uniform block.
type UniformRef struct {
	Name  string
	Index int
}

// EmitContext owns the allocator state for one compile call: the
// uniform-id counter, the property-to-slot table and the baked ramp
// data, plus the deduplicated preface fragments. A fresh context is
// created per compile, so no allocation state outlives the call.
//
// Inline fragments may reference fid, the feature index in scope at
// the template's insertion point.
type EmitContext struct {
	uniformNames []string
	propNames    []string
	propSlots    map[string]int
	rampData     []float32
	prefaces     []string
	guards       map[string]struct{}
	err          error
}

// NewEmitContext returns an empty context for one compile call.
func NewEmitContext() *EmitContext {
	return &EmitContext{
		propSlots: make(map[string]int),
		guards:    make(map[string]struct{}),
	}
}

// Uniform allocates the next uniform slot.
func (c *EmitContext) Uniform() UniformRef {
	idx := len(c.uniformNames)
	name := "u" + strconv.Itoa(idx)
	c.uniformNames = append(c.uniformNames, name)
	return UniformRef{Name: name, Index: idx}
}

// PropertySlot returns the buffer slot for a property, allocating one
// in first-seen order. Exceeding MaxPropertySlots records an error on
// the context and returns slot 0; the compiler rejects the program.
func (c *EmitContext) PropertySlot(name string) int {
	if slot, ok := c.propSlots[name]; ok {
		return slot
	}
	slot := len(c.propNames)
	if slot >= MaxPropertySlots {
		c.fail(fmt.Errorf("geoviz: expression references more than %d properties (adding %q)",
			MaxPropertySlots, name))
		return 0
	}
	c.propNames = append(c.propNames, name)
	c.propSlots[name] = slot
	return slot
}

// AddRamp appends one baked ramp and returns its base sample index.
func (c *EmitContext) AddRamp(samples []Color) int {
	base := len(c.rampData) / 4
	for _, s := range samples {
		c.rampData = append(c.rampData,
			float32(s.R), float32(s.G), float32(s.B), float32(s.A))
	}
	return base
}

// Include appends a preface fragment once per guard name. Shared
// helper functions (color conversion, ramp sampling) use this so they
// appear a single time however many nodes need them.
func (c *EmitContext) Include(guard, src string) {
	if _, ok := c.guards[guard]; ok {
		return
	}
	c.guards[guard] = struct{}{}
	c.prefaces = append(c.prefaces, src)
}

// fail records the first emit error.
func (c *EmitContext) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Err returns the first error recorded during emission, if any.
func (c *EmitContext) Err() error { return c.err }

// Preface returns the concatenated preface fragments.
func (c *EmitContext) Preface() string { return strings.Join(c.prefaces, "\n") }

// UniformNames returns the allocated uniform member names in order.
func (c *EmitContext) UniformNames() []string { return c.uniformNames }

// PropertyOrder returns the referenced property names in slot order.
func (c *EmitContext) PropertyOrder() []string { return c.propNames }

// RampData returns the flattened RGBA ramp samples, RampSamples
// entries per allocated ramp.
func (c *EmitContext) RampData() []float32 { return c.rampData }

// wgslFloat formats a float literal so it parses as f32 source.
func wgslFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
