package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
)

// Window is the surface provider of the platform layer.
type Window interface {
	RequiredExtensions() []string
	// CreateSurface returns the VkSurfaceKHR handle for instance.
	CreateSurface(instance interface{}) (uintptr, error)
	FramebufferSize() (width, height uint32)
}

type Options struct {
	AppName string
	// ShaderDir is prepended to the shader file names of pipeline
	// descriptions.
	ShaderDir string
	// Validation enables the Khronos validation layer and routes its
	// reports to the engine logger.
	Validation bool
}

// Device is a gpu.Device backed by a Vulkan logical device. All work goes
// to a single graphics queue.
type Device struct {
	opts   Options
	window Window
	locks  *LockPool

	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	surface       vk.Surface

	physical   vk.PhysicalDevice
	properties vk.PhysicalDeviceProperties
	memory     vk.PhysicalDeviceMemoryProperties
	support    swapchainSupport

	logical       vk.Device
	graphicsIndex uint32
	presentIndex  uint32
	graphicsQueue vk.Queue
	presentQueue  vk.Queue
	commandPool   vk.CommandPool

	renderPasses *renderPassCache
	framebuffers *framebufferCache
}

func (d *Device) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return 0, fmt.Errorf("no memory type for filter %#x and flags %#x", typeFilter, uint32(propertyFlags))
}

func (d *Device) allocate(reqs vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	index, err := d.findMemoryIndex(reqs.MemoryTypeBits, flags)
	if err != nil {
		return nil, err
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.logical, &info, nil, &memory), "vkAllocateMemory"); err != nil {
		return nil, err
	}
	return memory, nil
}
