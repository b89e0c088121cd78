package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// tracked counts an object as live on its device until the first Destroy.
// Objects created outside of a device embed a nil tracked.
type tracked struct {
	once    sync.Once
	release func()
}

func (t *tracked) Destroy() {
	if t == nil {
		return
	}
	t.once.Do(t.release)
}

type Buffer struct {
	*tracked
	id      gpu.ID
	name    string
	usage   gpu.BufferUsage
	address uint64

	mu   sync.Mutex
	data []byte
}

func (b *Buffer) ID() gpu.ID             { return b.id }
func (b *Buffer) Name() string           { return b.name }
func (b *Buffer) Size() uint64           { return uint64(len(b.data)) }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }
func (b *Buffer) Address() uint64        { return b.address }

func (b *Buffer) Write(data []byte, offset uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %s of %d bytes: %w",
			len(data), offset, b.name, len(b.data), core.ErrInvalidData)
	}
	copy(b.data[offset:], data)
	return nil
}

func (b *Buffer) Read() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

type Image struct {
	*tracked
	id     gpu.ID
	name   string
	format gpu.ImageFormat
	usage  gpu.ImageUsage
	extent gpu.Extent2D

	mu     sync.Mutex
	layout gpu.ImageLayout
	pixels []byte
}

func newImage(name string, format gpu.ImageFormat, usage gpu.ImageUsage, extent gpu.Extent2D) *Image {
	return &Image{
		id:     gpu.NewID(),
		name:   name,
		format: format,
		usage:  usage,
		extent: extent,
		pixels: make([]byte, uint64(extent.Width)*uint64(extent.Height)*format.PixelSize()),
	}
}

func (i *Image) ID() gpu.ID              { return i.id }
func (i *Image) Name() string            { return i.name }
func (i *Image) Extent() gpu.Extent2D    { return i.extent }
func (i *Image) Format() gpu.ImageFormat { return i.format }
func (i *Image) Usage() gpu.ImageUsage   { return i.usage }

func (i *Image) Layout() gpu.ImageLayout {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.layout
}

func (i *Image) SetLayout(layout gpu.ImageLayout) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.layout = layout
}

func (i *Image) Invalidate() {
	i.SetLayout(gpu.ImageLayoutUndefined)
}

// Pixels returns a copy of the image content.
func (i *Image) Pixels() []byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]byte, len(i.pixels))
	copy(out, i.pixels)
	return out
}

// Fill sets every byte of the image, used to fake rendered content.
func (i *Image) Fill(pixel []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for p := 0; p+len(pixel) <= len(i.pixels); p += len(pixel) {
		copy(i.pixels[p:], pixel)
	}
}

type Sampler struct {
	*tracked
	id       gpu.ID
	mag, min gpu.SamplerFilter
}

func (s *Sampler) ID() gpu.ID { return s.id }

type Semaphore struct {
	*tracked
	id gpu.ID
}

func (s *Semaphore) ID() gpu.ID { return s.id }
