// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"sync/atomic"
)

// FakeDevice implements Device in memory for tests. Buffer contents
// are plain byte slices, so writes, copies and readbacks round-trip
// without a GPU. Submits validate bindings against the program layout
// exactly like the hal backend, then invoke the optional OnSubmit
// hook, which tests use to emulate shader effects by writing into the
// read-write buffers of a pass.
type FakeDevice struct {
	// Live resource counts and call counters.
	LivePrograms atomic.Int64
	LiveBuffers  atomic.Int64
	Submits      atomic.Int64
	Passes       atomic.Int64
	Writes       atomic.Int64

	// Failure injection.
	FailPrograms bool
	FailBuffers  bool
	FailSubmits  bool

	// OnSubmit runs inside Submit after validation, before copies.
	OnSubmit func(label string, passes []Pass) error

	closed atomic.Bool
}

// NewFakeDevice returns an empty fake device.
func NewFakeDevice() *FakeDevice { return &FakeDevice{} }

// FakeBuffer is the Buffer produced by FakeDevice.
type FakeBuffer struct {
	Label string
	Data  []byte
	Usage BufferUsage

	dev      *FakeDevice
	released atomic.Bool
}

func (b *FakeBuffer) Size() uint64 { return uint64(len(b.Data)) }

func (b *FakeBuffer) Destroy() {
	if b.released.Swap(true) {
		return
	}
	b.dev.LiveBuffers.Add(-1)
}

// Released reports whether Destroy has run.
func (b *FakeBuffer) Released() bool { return b.released.Load() }

// FakeProgram is the Program produced by FakeDevice.
type FakeProgram struct {
	Label  string
	Layout []BindingType

	dev      *FakeDevice
	released atomic.Bool
}

func (p *FakeProgram) Destroy() {
	if p.released.Swap(true) {
		return
	}
	p.dev.LivePrograms.Add(-1)
}

// Released reports whether Destroy has run.
func (p *FakeProgram) Released() bool { return p.released.Load() }

func (d *FakeDevice) Name() string { return "fake" }

func (d *FakeDevice) CreateProgram(label string, spirv []uint32, layout []BindingType) (Program, error) {
	if d.closed.Load() {
		return nil, ErrDeviceClosed
	}
	if d.FailPrograms {
		return nil, fmt.Errorf("gpu: create compute pipeline %s: injected failure", label)
	}
	if len(spirv) == 0 {
		return nil, fmt.Errorf("gpu: create shader module %s: empty SPIR-V", label)
	}
	d.LivePrograms.Add(1)
	return &FakeProgram{Label: label, Layout: layout, dev: d}, nil
}

func (d *FakeDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if d.closed.Load() {
		return nil, ErrDeviceClosed
	}
	if d.FailBuffers {
		return nil, fmt.Errorf("gpu: create buffer %s (%d bytes): injected failure", label, size)
	}
	d.LiveBuffers.Add(1)
	return &FakeBuffer{Label: label, Data: make([]byte, size), Usage: usage, dev: d}, nil
}

func (d *FakeDevice) WriteBuffer(b Buffer, offset uint64, data []byte) {
	if d.closed.Load() {
		return
	}
	d.Writes.Add(1)
	fb := b.(*FakeBuffer)
	copy(fb.Data[offset:], data)
}

func (d *FakeDevice) ReadBuffer(b Buffer, offset uint64, into []byte) error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}
	fb := b.(*FakeBuffer)
	copy(into, fb.Data[offset:])
	return nil
}

func (d *FakeDevice) Submit(label string, passes []Pass, copies []Copy) error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}
	if d.FailSubmits {
		return fmt.Errorf("gpu: submit %s: injected failure", label)
	}
	for _, p := range passes {
		prog, ok := p.Program.(*FakeProgram)
		if !ok || prog.released.Load() {
			return fmt.Errorf("gpu: pass %s has no live program", p.Label)
		}
		if len(p.Buffers) != len(prog.Layout) {
			return fmt.Errorf("gpu: pass %s binds %d buffers, program wants %d",
				p.Label, len(p.Buffers), len(prog.Layout))
		}
	}
	d.Submits.Add(1)
	d.Passes.Add(int64(len(passes)))
	if d.OnSubmit != nil {
		if err := d.OnSubmit(label, passes); err != nil {
			return err
		}
	}
	for _, c := range copies {
		src := c.Src.(*FakeBuffer)
		dst := c.Dst.(*FakeBuffer)
		copy(dst.Data, src.Data[:c.Size])
	}
	return nil
}

func (d *FakeDevice) Close() { d.closed.Swap(true) }

// Closed reports whether Close has run.
func (d *FakeDevice) Closed() bool { return d.closed.Load() }
