package headless

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// Options configures a headless Device.
type Options struct {
	// ManualCompletion keeps submitted fences pending until Complete,
	// CompleteOldest or CompleteAll is called. Otherwise Submit signals the
	// fence right away.
	ManualCompletion bool
}

// Device is a gpu.Device that executes nothing. It records every command
// and tracks fences so the frame pacing of the callers can be observed.
type Device struct {
	opts     Options
	recorder *Recorder

	mu          sync.Mutex
	pending     []*Fence
	nextAddress uint64
	submits     int
	failSubmit  bool
	live        int
	destroyed   bool
}

func NewDevice(opts Options) *Device {
	return &Device{
		opts:        opts,
		recorder:    newRecorder(),
		nextAddress: 0x1000,
	}
}

func (d *Device) Recorder() *Recorder {
	return d.recorder
}

func (d *Device) NewBuffer(name string, size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer %s has zero size: %w", name, core.ErrInvalidData)
	}
	d.mu.Lock()
	address := d.nextAddress
	// keep addresses 256 aligned like a real allocator
	d.nextAddress += (size + 255) &^ 255
	d.mu.Unlock()

	return &Buffer{
		tracked: d.track(),
		id:      gpu.NewID(),
		name:    name,
		usage:   usage,
		address: address,
		data:    make([]byte, size),
	}, nil
}

func (d *Device) NewImage(name string, format gpu.ImageFormat, usage gpu.ImageUsage, extent gpu.Extent2D) (gpu.Image, error) {
	if format == gpu.ImageFormatDefault {
		format = gpu.ImageFormatB8g8r8a8Unorm
	}
	img := newImage(name, format, usage, extent)
	img.tracked = d.track()
	return img, nil
}

func (d *Device) NewSampler(mag, min gpu.SamplerFilter) (gpu.Sampler, error) {
	return &Sampler{tracked: d.track(), id: gpu.NewID(), mag: mag, min: min}, nil
}

func (d *Device) NewCommandList(name string) (gpu.CommandList, error) {
	return &CommandList{name: name, recorder: d.recorder}, nil
}

func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	f := newFence(signaled)
	f.tracked = d.track()
	return f, nil
}

func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	return &Semaphore{tracked: d.track(), id: gpu.NewID()}, nil
}

func (d *Device) NewPipeline(desc *gpu.PipelineDesc) (gpu.Pipeline, error) {
	if desc.Type == gpu.PipelineGraphics && desc.VertexShader == "" {
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, core.ErrInvalidPipeline)
	}
	if desc.Type == gpu.PipelineCompute && desc.ComputeShader == "" {
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, core.ErrInvalidPipeline)
	}
	p, err := newPipeline(desc)
	if err != nil {
		return nil, err
	}
	p.tracked = d.track()
	return p, nil
}

func (d *Device) track() *tracked {
	d.mu.Lock()
	d.live++
	d.mu.Unlock()
	return &tracked{release: func() {
		d.mu.Lock()
		d.live--
		d.mu.Unlock()
	}}
}

// Live is the number of buffers, images, samplers, fences, semaphores and
// pipelines created and not destroyed yet.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// FailNextSubmit makes the next Submit fail without queueing anything.
func (d *Device) FailNextSubmit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failSubmit = true
}

func (d *Device) Submit(cmd gpu.CommandList, wait, signal gpu.Semaphore, fence gpu.Fence) error {
	list, ok := cmd.(*CommandList)
	if !ok {
		return fmt.Errorf("foreign command list %s: %w", cmd.Name(), core.ErrInvalidData)
	}
	if list.state != CommandListStateRecordingEnded {
		return fmt.Errorf("command list %s submitted in state %d: %w", list.name, list.state, core.ErrInvalidData)
	}

	d.mu.Lock()
	fail := d.failSubmit
	d.failSubmit = false
	if !fail {
		d.submits++
	}
	d.mu.Unlock()
	if fail {
		return fmt.Errorf("submit of %s: %w", list.name, core.ErrInvalidData)
	}
	list.state = CommandListStateSubmitted
	d.recorder.record(Command{Op: OpSubmit, List: list.name})

	if fence == nil {
		return nil
	}
	f, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("foreign fence: %w", core.ErrInvalidData)
	}
	if f.Signaled() {
		d.recorder.violation("submit of %s with a signaled fence", list.name)
	}
	if !d.opts.ManualCompletion {
		f.signal()
		return nil
	}
	d.mu.Lock()
	d.pending = append(d.pending, f)
	d.mu.Unlock()
	return nil
}

func (d *Device) RunImmediate(fn func(cmd gpu.CommandList)) error {
	cmd := &CommandList{name: "immediate", recorder: d.recorder}
	if err := cmd.Begin(); err != nil {
		return err
	}
	fn(cmd)
	if err := cmd.End(); err != nil {
		return err
	}
	fence := newFence(false)
	cmd.state = CommandListStateSubmitted
	d.recorder.record(Command{Op: OpSubmit, List: cmd.name})
	fence.signal()
	return fence.Wait(context.Background())
}

// Complete signals f if it is pending.
func (d *Device) Complete(f gpu.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.pending {
		if p.ID() == f.ID() {
			p.signal()
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return
		}
	}
}

// CompleteOldest signals the first pending submission. It returns false if
// nothing is pending.
func (d *Device) CompleteOldest() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return false
	}
	d.pending[0].signal()
	d.pending = d.pending[1:]
	return true
}

func (d *Device) CompleteAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pending {
		p.signal()
	}
	d.pending = nil
}

// Pending is the number of submissions not completed yet.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Device) Submits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits
}

func (d *Device) WaitIdle() error {
	d.CompleteAll()
	return nil
}

func (d *Device) Destroy() {
	d.CompleteAll()
	d.mu.Lock()
	d.destroyed = true
	d.mu.Unlock()
}
