// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu is the narrow compute surface the renderer draws
// through: buffers, linked programs, and batched compute submits.
//
// The real backend sits on wgpu/hal and either opens its own Vulkan
// device or adopts a shared one from the host (gpucontext.HalProvider).
// FakeDevice provides the same surface in memory for tests.
//
// Device methods are not safe for concurrent use; the renderer
// serializes frames and resource uploads on its own mutex.
package gpu

import "errors"

var (
	// ErrNoDevice is returned when no usable compute adapter exists.
	ErrNoDevice = errors.New("gpu: no compute device available")

	// ErrDeviceClosed is returned by operations after Close.
	ErrDeviceClosed = errors.New("gpu: device closed")
)

// BindingType describes one entry of a program's binding layout, in
// binding-index order.
type BindingType uint8

const (
	// BindUniform is a uniform buffer binding.
	BindUniform BindingType = iota

	// BindStorage is a read-only storage buffer binding.
	BindStorage

	// BindStorageRW is a read-write storage buffer binding.
	BindStorageRW
)

// BufferUsage selects the usage flags a buffer is created with.
type BufferUsage uint8

const (
	// UsageUniform is a host-writable uniform buffer.
	UsageUniform BufferUsage = iota

	// UsageStorage is a host-writable read-only storage buffer.
	UsageStorage

	// UsageStorageRW is a shader-writable storage buffer that can be
	// copied out for readback.
	UsageStorageRW

	// UsageReadback is a map-read staging buffer, the copy destination
	// for results read back to the host.
	UsageReadback
)

// Buffer is one GPU buffer allocation. Destroy is idempotent.
type Buffer interface {
	Size() uint64
	Destroy()
}

// Program is one linked compute program with a fixed binding layout.
// Destroy is idempotent.
type Program interface {
	Destroy()
}

// Pass is one compute dispatch: a program, its buffers in binding
// order, and the workgroup grid.
type Pass struct {
	Label   string
	Program Program

	// Buffers[i] binds at binding i and must match the program's
	// layout entry i.
	Buffers []Buffer

	Groups [3]uint32
}

// Copy is a full-buffer copy encoded after the passes of a submit,
// typically storage to staging for readback.
type Copy struct {
	Src, Dst Buffer
	Size     uint64
}

// Device is a compute device. CreateProgram takes SPIR-V already
// validated by the shader compiler. Submit encodes all passes and
// copies into one command buffer, submits once and blocks until the
// fence signals, so results are readable immediately after.
type Device interface {
	// Name reports the adapter name for logging.
	Name() string

	CreateProgram(label string, spirv []uint32, layout []BindingType) (Program, error)
	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)

	WriteBuffer(b Buffer, offset uint64, data []byte)
	ReadBuffer(b Buffer, offset uint64, into []byte) error

	Submit(label string, passes []Pass, copies []Copy) error

	// Close releases the device. Owned devices are destroyed; shared
	// ones are only detached. Idempotent.
	Close()
}
