package gpu

import "context"

// Device creates GPU objects and submits recorded work.
type Device interface {
	NewBuffer(name string, size uint64, usage BufferUsage) (Buffer, error)
	NewImage(name string, format ImageFormat, usage ImageUsage, extent Extent2D) (Image, error)
	NewSampler(mag, min SamplerFilter) (Sampler, error)
	NewCommandList(name string) (CommandList, error)
	NewFence(signaled bool) (Fence, error)
	NewSemaphore() (Semaphore, error)
	NewPipeline(desc *PipelineDesc) (Pipeline, error)

	// Submit queues cmd. The GPU waits on wait before executing, signals
	// signal and fence when done.
	Submit(cmd CommandList, wait, signal Semaphore, fence Fence) error
	// RunImmediate records fn into a one shot command list, submits it and
	// blocks until the GPU is done.
	RunImmediate(fn func(cmd CommandList)) error
	WaitIdle() error
	Destroy()
}

// Display is the presentable surface.
type Display interface {
	Extent() Extent2D
	Format() ImageFormat
	// Acquire returns core.ErrOutdated when the surface must be resized.
	Acquire(wait Semaphore) error
	// RenderTarget is the image acquired last.
	RenderTarget() Image
	// Present returns core.ErrOutdated when the surface must be resized.
	Present(signal Semaphore) error
	Resize(extent Extent2D) error
	Destroy()
}

type Buffer interface {
	ID() ID
	Name() string
	Size() uint64
	Usage() BufferUsage
	Write(data []byte, offset uint64) error
	Read() ([]byte, error)
	// Address is the device address used for vertex pulling.
	Address() uint64
	Destroy()
}

type Image interface {
	ID() ID
	Name() string
	Extent() Extent2D
	Format() ImageFormat
	Usage() ImageUsage
	// Layout is the layout recorded by the last transition.
	Layout() ImageLayout
	SetLayout(layout ImageLayout)
	// Invalidate forgets the content, the next transition starts from undefined.
	Invalidate()
	Destroy()
}

type Sampler interface {
	ID() ID
	Destroy()
}

type Semaphore interface {
	ID() ID
	Destroy()
}

type Fence interface {
	ID() ID
	// Wait blocks until the fence is signaled or ctx is done.
	Wait(ctx context.Context) error
	Reset() error
	Signaled() bool
	Destroy()
}
