// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// fenceTimeout bounds how long Submit waits for the GPU.
const fenceTimeout = 5 * time.Second

// Open returns a Device backed by wgpu/hal. A non-nil provider that
// exposes HAL handles (HalDevice/HalQueue, the gpucontext.HalProvider
// shape) supplies a shared device that is never destroyed on Close.
// With a nil provider, Open creates its own Vulkan instance and picks
// the first discrete or integrated adapter.
func Open(provider any) (Device, error) {
	if provider != nil {
		return openShared(provider)
	}
	return openOwned()
}

type halDevice struct {
	instance hal.Instance // nil when the device is shared
	device   hal.Device
	queue    hal.Queue
	name     string
	external bool
	closed   atomic.Bool
}

func openShared(provider any) (Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL handles: %w", ErrNoDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device: %w", ErrNoDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue: %w", ErrNoDevice)
	}
	slogger().Info("using shared compute device")
	return &halDevice{device: device, queue: queue, name: "shared", external: true}, nil
}

func openOwned() (Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not available: %w", ErrNoDevice)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no adapters found: %w", ErrNoDevice)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}
	slogger().Info("compute device ready", "adapter", selected.Info.Name)
	return &halDevice{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
	}, nil
}

func (d *halDevice) Name() string { return d.name }

func (d *halDevice) Close() {
	if d.closed.Swap(true) {
		return
	}
	if d.external {
		// Shared resources belong to the host, only detach.
		d.device = nil
		d.queue = nil
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
}

type halProgram struct {
	dev        *halDevice
	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
	layout     []BindingType
	released   atomic.Bool
}

func (d *halDevice) CreateProgram(label string, spirv []uint32, layout []BindingType) (Program, error) {
	if d.closed.Load() {
		return nil, ErrDeviceClosed
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create shader module %s: %w", label, err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, len(layout))
	for i, bt := range layout {
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i), //nolint:gosec // binding count is tiny
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: bufferBindingType(bt)},
		}
	}
	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_bind_layout", Entries: entries,
	})
	if err != nil {
		d.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("gpu: create bind group layout %s: %w", label, err)
	}

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: label + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		d.device.DestroyBindGroupLayout(bindLayout)
		d.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("gpu: create pipeline layout %s: %w", label, err)
	}

	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: label + "_pipeline", Layout: pipeLayout,
		Compute: hal.ComputeState{Module: module, EntryPoint: "main"},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(pipeLayout)
		d.device.DestroyBindGroupLayout(bindLayout)
		d.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("gpu: create compute pipeline %s: %w", label, err)
	}

	slogger().Debug("program linked", "label", label, "bindings", len(layout))
	return &halProgram{
		dev:        d,
		module:     module,
		bindLayout: bindLayout,
		pipeLayout: pipeLayout,
		pipeline:   pipeline,
		layout:     layout,
	}, nil
}

func (p *halProgram) Destroy() {
	if p.released.Swap(true) {
		return
	}
	d := p.dev
	if d.closed.Load() || d.device == nil {
		return
	}
	if p.pipeline != nil {
		d.device.DestroyComputePipeline(p.pipeline)
	}
	if p.pipeLayout != nil {
		d.device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		d.device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.module != nil {
		d.device.DestroyShaderModule(p.module)
	}
}

func bufferBindingType(bt BindingType) gputypes.BufferBindingType {
	switch bt {
	case BindUniform:
		return gputypes.BufferBindingTypeUniform
	case BindStorage:
		return gputypes.BufferBindingTypeReadOnlyStorage
	default:
		return gputypes.BufferBindingTypeStorage
	}
}

type halBuffer struct {
	dev      *halDevice
	buf      hal.Buffer
	size     uint64
	released atomic.Bool
}

func (d *halDevice) CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error) {
	if d.closed.Load() {
		return nil, ErrDeviceClosed
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label, Size: size, Usage: bufferUsageFlags(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer %s (%d bytes): %w", label, size, err)
	}
	return &halBuffer{dev: d, buf: buf, size: size}, nil
}

func (b *halBuffer) Size() uint64 { return b.size }

func (b *halBuffer) Destroy() {
	if b.released.Swap(true) {
		return
	}
	d := b.dev
	if d.closed.Load() || d.device == nil {
		return
	}
	d.device.DestroyBuffer(b.buf)
}

func bufferUsageFlags(u BufferUsage) gputypes.BufferUsage {
	switch u {
	case UsageUniform:
		return gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	case UsageStorage:
		return gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	case UsageStorageRW:
		return gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	default:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	}
}

func (d *halDevice) WriteBuffer(b Buffer, offset uint64, data []byte) {
	if d.closed.Load() {
		return
	}
	d.queue.WriteBuffer(b.(*halBuffer).buf, offset, data)
}

func (d *halDevice) ReadBuffer(b Buffer, offset uint64, into []byte) error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}
	if err := d.queue.ReadBuffer(b.(*halBuffer).buf, offset, into); err != nil {
		return fmt.Errorf("gpu: readback: %w", err)
	}
	return nil
}

// Submit encodes one compute pass per Pass entry plus the trailing
// copies in a single command buffer, submits once, and waits on the
// fence. Implicit storage barriers between passes keep compositing
// order; each pass carries its own bind group, created here and
// destroyed after the wait.
func (d *halDevice) Submit(label string, passes []Pass, copies []Copy) error {
	if d.closed.Load() {
		return ErrDeviceClosed
	}
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("gpu: begin encoding: %w", err)
	}

	bindGroups := make([]hal.BindGroup, 0, len(passes))
	defer func() {
		for _, bg := range bindGroups {
			d.device.DestroyBindGroup(bg)
		}
	}()

	for _, p := range passes {
		prog, ok := p.Program.(*halProgram)
		if !ok || prog.released.Load() {
			return fmt.Errorf("gpu: pass %s has no live program", p.Label)
		}
		bg, err := d.createBindGroup(prog, p)
		if err != nil {
			return err
		}
		bindGroups = append(bindGroups, bg)

		computePass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: p.Label})
		computePass.SetPipeline(prog.pipeline)
		computePass.SetBindGroup(0, bg, nil)
		computePass.Dispatch(p.Groups[0], p.Groups[1], p.Groups[2])
		computePass.End()
	}

	for _, c := range copies {
		encoder.CopyBufferToBuffer(c.Src.(*halBuffer).buf, c.Dst.(*halBuffer).buf, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: c.Size},
		})
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)
	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit %s: %w", label, err)
	}
	fenceOK, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("gpu: wait for fence %s: ok=%v err=%w", label, fenceOK, err)
	}
	return nil
}

func (d *halDevice) createBindGroup(prog *halProgram, p Pass) (hal.BindGroup, error) {
	if len(p.Buffers) != len(prog.layout) {
		return nil, fmt.Errorf("gpu: pass %s binds %d buffers, program wants %d",
			p.Label, len(p.Buffers), len(prog.layout))
	}
	entries := make([]gputypes.BindGroupEntry, len(p.Buffers))
	for i, b := range p.Buffers {
		hb := b.(*halBuffer)
		entries[i] = gputypes.BindGroupEntry{
			Binding:  uint32(i), //nolint:gosec // binding count is tiny
			Resource: gputypes.BufferBinding{Buffer: hb.buf.NativeHandle(), Offset: 0, Size: hb.size},
		}
	}
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: p.Label, Layout: prog.bindLayout, Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create bind group %s: %w", p.Label, err)
	}
	return bg, nil
}
