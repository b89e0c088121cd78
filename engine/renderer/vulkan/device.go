package vulkan

import (
	"context"
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type physicalDeviceRequirements struct {
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

// NewDevice creates the instance, the window surface and a logical device
// with one graphics queue able to present to it.
func NewDevice(window Window, opts Options) (*Device, error) {
	if opts.AppName == "" {
		opts.AppName = engineName
	}
	d := &Device{
		opts:   opts,
		window: window,
		locks:  NewLockPool(),
	}
	d.renderPasses = newRenderPassCache(d)
	d.framebuffers = newFramebufferCache(d)

	if err := d.createInstance(); err != nil {
		d.destroyInstance()
		return nil, err
	}

	surface, err := window.CreateSurface(d.instance)
	if err != nil {
		d.destroyInstance()
		return nil, fmt.Errorf("vulkan surface creation failed: %w", err)
	}
	d.surface = vk.SurfaceFromPointer(surface)

	if err := d.selectPhysicalDevice(); err != nil {
		d.destroyInstance()
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		d.destroyInstance()
		return nil, err
	}
	core.LogInfo("Vulkan device created on %s", cString(d.properties.DeviceName[:]))
	return d, nil
}

func (d *Device) selectPhysicalDevice() error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, devices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	requirements := physicalDeviceRequirements{
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		SamplerAnisotropy:    true,
		DiscreteGPU:          runtime.GOOS != "darwin",
	}

	// A discrete GPU is preferred, any device meeting the rest will do.
	for _, discrete := range []bool{requirements.DiscreteGPU, false} {
		requirements.DiscreteGPU = discrete
		for _, device := range devices {
			if d.meetsRequirements(device, &requirements) {
				d.physical = device
				vk.GetPhysicalDeviceMemoryProperties(device, &d.memory)
				d.memory.Deref()
				logDevice(&d.properties, &d.memory)
				return nil
			}
		}
	}
	return fmt.Errorf("no physical devices were found which meet the requirements")
}

func (d *Device) meetsRequirements(device vk.PhysicalDevice, requirements *physicalDeviceRequirements) bool {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &properties)
	properties.Deref()
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device, &features)
	features.Deref()

	name := cString(properties.DeviceName[:])
	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogDebug("%s is not a discrete GPU, skipping", name)
		return false
	}
	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogDebug("%s does not support samplerAnisotropy, skipping", name)
		return false
	}

	graphics, present, ok := findQueueFamilies(device, d.surface)
	if !ok {
		core.LogDebug("%s has no graphics and present queues, skipping", name)
		return false
	}

	for _, ext := range requirements.DeviceExtensionNames {
		if !deviceExtensionAvailable(device, ext) {
			core.LogDebug("required extension not found: '%s', skipping %s", ext, name)
			return false
		}
	}

	support, err := querySwapchainSupport(device, d.surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogDebug("required swapchain support not present, skipping %s", name)
		return false
	}

	d.properties = properties
	d.support = support
	d.graphicsIndex = graphics
	d.presentIndex = present
	return true
}

// findQueueFamilies prefers a graphics family that can also present.
func findQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) (graphics, present uint32, ok bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	graphicsFound, presentFound := false, false
	for i := range families {
		families[i].Deref()
		index := uint32(i)

		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(device, index, surface, &supportsPresent)
		isGraphics := vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0

		if isGraphics && supportsPresent == vk.True {
			return index, index, true
		}
		if isGraphics && !graphicsFound {
			graphics, graphicsFound = index, true
		}
		if supportsPresent == vk.True && !presentFound {
			present, presentFound = index, true
		}
	}
	return graphics, present, graphicsFound && presentFound
}

func deviceExtensionAvailable(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(device, "", &count, nil) != vk.Success {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(device, "", &count, available) != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func logDevice(properties *vk.PhysicalDeviceProperties, memory *vk.PhysicalDeviceMemoryProperties) {
	core.LogInfo("Selected device: '%s'.", cString(properties.DeviceName[:]))
	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version.Major(vk.Version(properties.DriverVersion)),
		vk.Version.Minor(vk.Version(properties.DriverVersion)),
		vk.Version.Patch(vk.Version(properties.DriverVersion)),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version.Major(vk.Version(properties.ApiVersion)),
		vk.Version.Minor(vk.Version(properties.ApiVersion)),
		vk.Version.Patch(vk.Version(properties.ApiVersion)),
	)
	for j := 0; j < int(memory.MemoryHeapCount); j++ {
		memory.MemoryHeaps[j].Deref()
		sizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", sizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", sizeGib)
		}
	}
}

func (d *Device) createLogicalDevice() error {
	indices := []uint32{d.graphicsIndex}
	if d.presentIndex != d.graphicsIndex {
		indices = append(indices, d.presentIndex)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
		FillModeNonSolid:  vk.True,
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if deviceExtensionAvailable(d.physical, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if err := check(vk.CreateDevice(d.physical, &deviceCreateInfo, nil, &d.logical), "vkCreateDevice"); err != nil {
		return err
	}

	var graphics, present vk.Queue
	vk.GetDeviceQueue(d.logical, d.graphicsIndex, 0, &graphics)
	vk.GetDeviceQueue(d.logical, d.presentIndex, 0, &present)
	d.graphicsQueue, d.presentQueue = graphics, present

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.graphicsIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	return check(vk.CreateCommandPool(d.logical, &poolCreateInfo, nil, &d.commandPool), "vkCreateCommandPool")
}

func (d *Device) Submit(cmd gpu.CommandList, wait, signal gpu.Semaphore, fence gpu.Fence) error {
	list, ok := cmd.(*CommandList)
	if !ok {
		return fmt.Errorf("foreign command list %s: %w", cmd.Name(), core.ErrInvalidData)
	}
	if list.state != commandListRecordingEnded {
		return fmt.Errorf("command list %s submitted in state %d: %w", list.name, list.state, core.ErrInvalidData)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{list.handle},
	}
	if s, ok := wait.(*Semaphore); ok && s != nil {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{s.handle}
		// the present blit writes the swapchain image with a transfer
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageTransferBit),
		}
	}
	if s, ok := signal.(*Semaphore); ok && s != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{s.handle}
	}
	var handle vk.Fence
	var f *Fence
	if fence != nil {
		if f, ok = fence.(*Fence); !ok {
			return fmt.Errorf("foreign fence: %w", core.ErrInvalidData)
		}
		handle = f.handle
	}

	err := d.locks.SafeCall(SubmitManagement, func() error {
		return check(vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, handle), "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	list.state = commandListSubmitted
	return nil
}

func (d *Device) RunImmediate(fn func(cmd gpu.CommandList)) error {
	cmd, err := d.newCommandList("immediate")
	if err != nil {
		return err
	}
	defer cmd.free()

	fence, err := d.newFence(false)
	if err != nil {
		return err
	}
	defer fence.Destroy()

	if err := cmd.beginWith(vk.CommandBufferUsageOneTimeSubmitBit); err != nil {
		return err
	}
	fn(cmd)
	if err := cmd.End(); err != nil {
		return err
	}
	if err := d.Submit(cmd, nil, nil, fence); err != nil {
		return err
	}
	return fence.Wait(context.Background())
}

func (d *Device) WaitIdle() error {
	return check(vk.DeviceWaitIdle(d.logical), "vkDeviceWaitIdle")
}

func (d *Device) Destroy() {
	if d.logical != nil {
		vk.DeviceWaitIdle(d.logical)
		d.framebuffers.destroy()
		d.renderPasses.destroy()

		core.LogDebug("Destroying command pools...")
		vk.DestroyCommandPool(d.logical, d.commandPool, nil)

		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(d.logical, nil)
		d.logical = nil
	}
	d.graphicsQueue, d.presentQueue = nil, nil
	d.physical = nil
	d.destroyInstance()
}
