package resources

import (
	"sync"

	"github.com/spaghettifunk/framegraph/engine/containers"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

const bufferPoolInitialSize = 16

// BufferPool recycles GPU buffers by usage. Buffers handed out by Get must be
// returned with Put once the GPU is done with them.
type BufferPool struct {
	device gpu.Device

	mu      sync.Mutex
	free    map[gpu.BufferUsage]*containers.RingQueue[gpu.Buffer]
	created int
}

func NewBufferPool(device gpu.Device) *BufferPool {
	return &BufferPool{
		device: device,
		free:   map[gpu.BufferUsage]*containers.RingQueue[gpu.Buffer]{},
	}
}

// Get returns a free buffer of at least size bytes, creating one if none fits.
// New buffers are rounded up to 256 bytes to improve reuse.
func (p *BufferPool) Get(name string, usage gpu.BufferUsage, size uint64) (gpu.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if queue, ok := p.free[usage]; ok {
		for i, n := 0, queue.Len(); i < n; i++ {
			buf, err := queue.Dequeue()
			if err != nil {
				break
			}
			if buf.Size() >= size {
				return buf, nil
			}
			_ = queue.Enqueue(buf)
		}
	}

	buf, err := p.device.NewBuffer(name, metadata.GetAligned(size, 256), usage)
	if err != nil {
		return nil, err
	}
	p.created++
	core.LogDebug("buffer pool created %s buffer %s of %d bytes", usage, name, buf.Size())
	return buf, nil
}

func (p *BufferPool) Put(buf gpu.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	queue, ok := p.free[buf.Usage()]
	if !ok {
		queue = containers.NewRingQueue[gpu.Buffer](bufferPoolInitialSize)
		p.free[buf.Usage()] = queue
	}
	if queue.IsFull() {
		queue.Grow()
	}
	_ = queue.Enqueue(buf)
}

// Free is the number of buffers of usage waiting for reuse.
func (p *BufferPool) Free(usage gpu.BufferUsage) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if queue, ok := p.free[usage]; ok {
		return queue.Len()
	}
	return 0
}

// Created is the number of buffers allocated from the device so far.
func (p *BufferPool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

func (p *BufferPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, queue := range p.free {
		for !queue.IsEmpty() {
			buf, _ := queue.Dequeue()
			buf.Destroy()
		}
	}
	p.free = map[gpu.BufferUsage]*containers.RingQueue[gpu.Buffer]{}
}
