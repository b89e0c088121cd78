package vulkan

import (
	"fmt"
	"math"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type swapchainSupport struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func querySwapchainSupport(device vk.PhysicalDevice, surface vk.Surface) (swapchainSupport, error) {
	var support swapchainSupport
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &support.Capabilities), "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return support, err
	}
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return support, err
	}
	if formatCount > 0 {
		support.Formats = make([]vk.SurfaceFormat, formatCount)
		if err := check(vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, support.Formats), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
			return support, err
		}
		for i := range support.Formats {
			support.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return support, err
	}
	if modeCount > 0 {
		support.PresentModes = make([]vk.PresentMode, modeCount)
		if err := check(vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, support.PresentModes), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
			return support, err
		}
	}
	return support, nil
}

// Display presents to the window surface of its device.
type Display struct {
	device *Device

	mu      sync.Mutex
	handle  vk.Swapchain
	format  vk.SurfaceFormat
	extent  gpu.Extent2D
	images  []*Image
	current uint32
}

// NewDisplay creates the swapchain. extent is used when the surface leaves
// the choice to the application.
func NewDisplay(device *Device, extent gpu.Extent2D) (*Display, error) {
	d := &Display{device: device}
	if err := d.create(extent); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Display) create(extent gpu.Extent2D) error {
	dev := d.device
	support, err := querySwapchainSupport(dev.physical, dev.surface)
	if err != nil {
		return err
	}
	if len(support.Formats) == 0 {
		return fmt.Errorf("surface reports no formats: %w", core.ErrInvalidData)
	}
	dev.support = support

	d.format = support.Formats[0]
	for _, format := range support.Formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			d.format = format
			break
		}
	}

	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	caps := support.Capabilities
	swapchainExtent := vk.Extent2D{Width: extent.Width, Height: extent.Height}
	if caps.CurrentExtent.Width != math.MaxUint32 {
		swapchainExtent = caps.CurrentExtent
	}
	swapchainExtent.Width = clamp(swapchainExtent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	swapchainExtent.Height = clamp(swapchainExtent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	if swapchainExtent.Width == 0 || swapchainExtent.Height == 0 {
		return fmt.Errorf("surface extent %dx%d: %w", swapchainExtent.Width, swapchainExtent.Height, core.ErrOutdated)
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          dev.surface,
		MinImageCount:    imageCount,
		ImageFormat:      d.format.Format,
		ImageColorSpace:  d.format.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		// the frame is blitted into the swapchain image
		ImageUsage:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: vk.CompositeAlphaOpaqueBit,
		PresentMode:    presentMode,
		Clipped:        vk.True,
	}
	if dev.graphicsIndex != dev.presentIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{dev.graphicsIndex, dev.presentIndex}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if err := check(vk.CreateSwapchain(dev.logical, &swapchainCreateInfo, nil, &handle), "vkCreateSwapchainKHR"); err != nil {
		return err
	}
	d.handle = handle
	d.extent = gpu.NewExtent2D(swapchainExtent.Width, swapchainExtent.Height)

	var count uint32
	if err := check(vk.GetSwapchainImages(dev.logical, d.handle, &count, nil), "vkGetSwapchainImagesKHR"); err != nil {
		return err
	}
	handles := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(dev.logical, d.handle, &count, handles), "vkGetSwapchainImagesKHR"); err != nil {
		return err
	}
	d.images = make([]*Image, 0, count)
	for _, h := range handles {
		img, err := dev.wrapSwapchainImage(h, d.format.Format, d.extent)
		if err != nil {
			return err
		}
		d.images = append(d.images, img)
	}
	d.current = 0
	core.LogInfo("Swapchain created with %d images of %s", count, d.extent)
	return nil
}

func (d *Display) destroy() {
	for _, img := range d.images {
		img.Destroy()
	}
	d.images = nil
	if d.handle != nil {
		vk.DestroySwapchain(d.device.logical, d.handle, nil)
		d.handle = nil
	}
}

func (d *Display) Extent() gpu.Extent2D {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extent
}

func (d *Display) Format() gpu.ImageFormat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fromFormat(d.format.Format)
}

func (d *Display) Acquire(wait gpu.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	semaphore := vk.NullSemaphore
	if s, ok := wait.(*Semaphore); ok && s != nil {
		semaphore = s.handle
	}
	var index uint32
	result := vk.AcquireNextImage(d.device.logical, d.handle, acquireTimeout, semaphore, vk.NullFence, &index)
	if result == vk.Timeout || result == vk.NotReady {
		return fmt.Errorf("swapchain image not available: %w", core.ErrOutdated)
	}
	if err := check(result, "vkAcquireNextImageKHR"); err != nil {
		return err
	}
	d.current = index
	// the previous content is never read
	d.images[index].Invalidate()
	return nil
}

func (d *Display) RenderTarget() gpu.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.images) == 0 {
		return nil
	}
	return d.images[d.current]
}

func (d *Display) Present(signal gpu.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{d.handle},
		PImageIndices:  []uint32{d.current},
	}
	if s, ok := signal.(*Semaphore); ok && s != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{s.handle}
	}
	var result vk.Result
	d.device.locks.SafeCall(SubmitManagement, func() error {
		result = vk.QueuePresent(d.device.presentQueue, &presentInfo)
		return nil
	})
	if result == vk.Suboptimal {
		return fmt.Errorf("present: %w", core.ErrOutdated)
	}
	return check(result, "vkQueuePresentKHR")
}

// Resize recreates the swapchain. The window framebuffer size wins over
// extent when the platform reports one.
func (d *Display) Resize(extent gpu.Extent2D) error {
	if w, h := d.device.window.FramebufferSize(); w > 0 && h > 0 {
		extent = gpu.NewExtent2D(w, h)
	}
	if extent.IsZero() {
		return fmt.Errorf("resize to %s: %w", extent, core.ErrInvalidData)
	}
	if err := d.device.WaitIdle(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy()
	return d.create(extent)
}

func (d *Display) Destroy() {
	d.device.WaitIdle()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroy()
}
