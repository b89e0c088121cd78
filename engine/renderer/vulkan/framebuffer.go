package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type framebufferKey struct {
	pass  renderPassKey
	color gpu.ID
	depth gpu.ID
}

type framebufferCache struct {
	device *Device

	mu           sync.Mutex
	framebuffers map[framebufferKey]vk.Framebuffer
}

func newFramebufferCache(d *Device) *framebufferCache {
	return &framebufferCache{device: d, framebuffers: map[framebufferKey]vk.Framebuffer{}}
}

// get returns the framebuffer of rp over color and depth, either may be nil.
// The framebuffer covers the smallest of the two images.
func (c *framebufferCache) get(key renderPassKey, rp vk.RenderPass, color, depth *Image) (vk.Framebuffer, gpu.Extent2D, error) {
	fk := framebufferKey{pass: key}
	views := []vk.ImageView{}
	var extent gpu.Extent2D
	if color != nil {
		fk.color = color.id
		views = append(views, color.view)
		extent = color.extent
	}
	if depth != nil {
		fk.depth = depth.id
		views = append(views, depth.view)
		if extent.IsZero() {
			extent = depth.extent
		} else {
			extent = extent.Min(depth.extent)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if fb, ok := c.framebuffers[fk]; ok {
		return fb, extent, nil
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := check(vk.CreateFramebuffer(c.device.logical, &framebufferCreateInfo, nil, &fb), "vkCreateFramebuffer"); err != nil {
		return nil, extent, err
	}
	c.framebuffers[fk] = fb
	return fb, extent, nil
}

// forget destroys the framebuffers using the image id.
func (c *framebufferCache) forget(id gpu.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, fb := range c.framebuffers {
		if key.color == id || key.depth == id {
			vk.DestroyFramebuffer(c.device.logical, fb, nil)
			delete(c.framebuffers, key)
		}
	}
}

func (c *framebufferCache) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, fb := range c.framebuffers {
		vk.DestroyFramebuffer(c.device.logical, fb, nil)
		delete(c.framebuffers, key)
	}
}
