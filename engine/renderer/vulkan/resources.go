package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// Buffer lives in host visible, coherent memory that stays mapped for its
// whole life, so Write and Read never need a command list.
type Buffer struct {
	id     gpu.ID
	name   string
	usage  gpu.BufferUsage
	device *Device

	handle vk.Buffer
	memory vk.DeviceMemory

	mu     sync.Mutex
	mapped []byte
}

func bufferUsageFlags(usage gpu.BufferUsage) vk.BufferUsageFlags {
	flags := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit)
	switch usage {
	case gpu.BufferUsageVertex:
		flags |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageStorageBufferBit)
	case gpu.BufferUsageIndex:
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	case gpu.BufferUsageUniform:
		flags |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	case gpu.BufferUsageStorage:
		flags |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	return flags
}

func (d *Device) NewBuffer(name string, size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer %s has zero size: %w", name, core.ErrInvalidData)
	}
	b := &Buffer{id: gpu.NewID(), name: name, usage: usage, device: d}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if err := check(vk.CreateBuffer(d.logical, &createInfo, nil, &b.handle), "vkCreateBuffer "+name); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.logical, b.handle, &reqs)
	reqs.Deref()
	memory, err := d.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		b.Destroy()
		return nil, fmt.Errorf("buffer %s: %w", name, err)
	}
	b.memory = memory
	if err := check(vk.BindBufferMemory(d.logical, b.handle, b.memory, 0), "vkBindBufferMemory"); err != nil {
		b.Destroy()
		return nil, err
	}

	var data unsafe.Pointer
	if err := check(vk.MapMemory(d.logical, b.memory, 0, vk.DeviceSize(size), 0, &data), "vkMapMemory"); err != nil {
		b.Destroy()
		return nil, err
	}
	b.mapped = unsafe.Slice((*byte)(data), size)
	return b, nil
}

func (b *Buffer) ID() gpu.ID             { return b.id }
func (b *Buffer) Name() string           { return b.name }
func (b *Buffer) Size() uint64           { return uint64(len(b.mapped)) }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

// Address is always 0: buffers are created without device address support
// and shaders read vertices through bound storage buffers.
func (b *Buffer) Address() uint64 { return 0 }

func (b *Buffer) Write(data []byte, offset uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if offset+uint64(len(data)) > uint64(len(b.mapped)) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %s of %d bytes: %w",
			len(data), offset, b.name, len(b.mapped), core.ErrInvalidData)
	}
	copy(b.mapped[offset:], data)
	return nil
}

func (b *Buffer) Read() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.mapped))
	copy(out, b.mapped)
	return out, nil
}

func (b *Buffer) Destroy() {
	d := b.device
	if b.mapped != nil {
		vk.UnmapMemory(d.logical, b.memory)
		b.mapped = nil
	}
	if b.handle != nil {
		vk.DestroyBuffer(d.logical, b.handle, nil)
		b.handle = nil
	}
	if b.memory != nil {
		vk.FreeMemory(d.logical, b.memory, nil)
		b.memory = nil
	}
}

// Image owns its memory and view, except swapchain images whose handle
// belongs to the swapchain.
type Image struct {
	id     gpu.ID
	name   string
	format gpu.ImageFormat
	usage  gpu.ImageUsage
	extent gpu.Extent2D
	device *Device

	handle vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
	owned  bool

	mu     sync.Mutex
	layout gpu.ImageLayout
}

func imageUsageFlags(usage gpu.ImageUsage) vk.ImageUsageFlags {
	flags := vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit)
	switch usage {
	case gpu.ImageUsageColor:
		flags |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageStorageBit | vk.ImageUsageSampledBit)
	case gpu.ImageUsageDepth:
		flags |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit)
	case gpu.ImageUsageTexture, gpu.ImageUsageFile:
		flags |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	case gpu.ImageUsageSwapchain:
		flags |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	return flags
}

func (d *Device) NewImage(name string, format gpu.ImageFormat, usage gpu.ImageUsage, extent gpu.Extent2D) (gpu.Image, error) {
	if extent.IsZero() {
		return nil, fmt.Errorf("image %s has extent %s: %w", name, extent, core.ErrInvalidData)
	}
	if format == gpu.ImageFormatDefault {
		format = gpu.ImageFormatB8g8r8a8Unorm
	}
	img := &Image{
		id:     gpu.NewID(),
		name:   name,
		format: format,
		usage:  usage,
		extent: extent,
		device: d,
		owned:  true,
	}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    toFormat(format),
		Extent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := check(vk.CreateImage(d.logical, &createInfo, nil, &img.handle), "vkCreateImage "+name); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.logical, img.handle, &reqs)
	reqs.Deref()
	memory, err := d.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		return nil, fmt.Errorf("image %s: %w", name, err)
	}
	img.memory = memory
	if err := check(vk.BindImageMemory(d.logical, img.handle, img.memory, 0), "vkBindImageMemory"); err != nil {
		img.Destroy()
		return nil, err
	}
	if err := img.createView(toFormat(format)); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// wrapSwapchainImage adopts an image owned by the swapchain.
func (d *Device) wrapSwapchainImage(handle vk.Image, format vk.Format, extent gpu.Extent2D) (*Image, error) {
	img := &Image{
		id:     gpu.NewID(),
		name:   "swapchain",
		format: fromFormat(format),
		usage:  gpu.ImageUsageSwapchain,
		extent: extent,
		device: d,
		handle: handle,
	}
	if err := img.createView(format); err != nil {
		return nil, err
	}
	return img, nil
}

func (i *Image) createView(format vk.Format) error {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    i.handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectOf(i.format),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	return check(vk.CreateImageView(i.device.logical, &viewInfo, nil, &i.view), "vkCreateImageView "+i.name)
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

func (i *Image) Destroy() {
	d := i.device
	d.framebuffers.forget(i.id)
	if i.view != nil {
		vk.DestroyImageView(d.logical, i.view, nil)
		i.view = nil
	}
	if !i.owned {
		return
	}
	if i.handle != nil {
		vk.DestroyImage(d.logical, i.handle, nil)
		i.handle = nil
	}
	if i.memory != nil {
		vk.FreeMemory(d.logical, i.memory, nil)
		i.memory = nil
	}
}

type Sampler struct {
	id     gpu.ID
	device *Device
	handle vk.Sampler
}

func (d *Device) NewSampler(mag, min gpu.SamplerFilter) (gpu.Sampler, error) {
	createInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               toFilter(mag),
		MinFilter:               toFilter(min),
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           16,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareOp:               vk.CompareOpAlways,
	}
	s := &Sampler{id: gpu.NewID(), device: d}
	if err := check(vk.CreateSampler(d.logical, &createInfo, nil, &s.handle), "vkCreateSampler"); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sampler) ID() gpu.ID { return s.id }

func (s *Sampler) Destroy() {
	if s.handle != nil {
		vk.DestroySampler(s.device.logical, s.handle, nil)
		s.handle = nil
	}
}
