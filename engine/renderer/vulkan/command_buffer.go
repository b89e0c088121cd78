package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type commandListState int

const (
	commandListReady commandListState = iota
	commandListRecording
	commandListInRendering
	commandListRecordingEnded
	commandListSubmitted
	commandListNotAllocated
)

type CommandList struct {
	name   string
	device *Device
	handle vk.CommandBuffer
	state  commandListState
	labels int

	// render pass of the open rendering scope
	current  renderPassKey
	rp       vk.RenderPass
	pipeline *Pipeline
	bound    vk.Pipeline
}

func (d *Device) NewCommandList(name string) (gpu.CommandList, error) {
	return d.newCommandList(name)
}

func (d *Device) newCommandList(name string) (*CommandList, error) {
	c := &CommandList{name: name, device: d, state: commandListNotAllocated}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, 1)
	err := d.locks.SafeCall(ResourceManagement, func() error {
		return check(vk.AllocateCommandBuffers(d.logical, &allocateInfo, handles), "vkAllocateCommandBuffers "+name)
	})
	if err != nil {
		return nil, err
	}
	c.handle = handles[0]
	c.state = commandListReady
	return c, nil
}

func (c *CommandList) free() {
	d := c.device
	d.locks.SafeCall(ResourceManagement, func() error {
		vk.FreeCommandBuffers(d.logical, d.commandPool, 1, []vk.CommandBuffer{c.handle})
		return nil
	})
	c.handle = nil
	c.state = commandListNotAllocated
}

func (c *CommandList) Name() string { return c.name }

func (c *CommandList) Begin() error {
	return c.beginWith(0)
}

func (c *CommandList) beginWith(flags vk.CommandBufferUsageFlagBits) error {
	if c.state != commandListReady {
		return fmt.Errorf("command list %s cannot begin in state %d: %w", c.name, c.state, core.ErrInvalidData)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(flags),
	}
	if err := check(vk.BeginCommandBuffer(c.handle, &beginInfo), "vkBeginCommandBuffer "+c.name); err != nil {
		return err
	}
	c.state = commandListRecording
	return nil
}

func (c *CommandList) End() error {
	if c.state != commandListRecording {
		return fmt.Errorf("command list %s cannot end in state %d: %w", c.name, c.state, core.ErrInvalidData)
	}
	if c.labels != 0 {
		core.LogWarn("command list %s ended with %d open labels", c.name, c.labels)
	}
	if err := check(vk.EndCommandBuffer(c.handle), "vkEndCommandBuffer "+c.name); err != nil {
		return err
	}
	c.state = commandListRecordingEnded
	return nil
}

func (c *CommandList) Reset() error {
	if err := check(vk.ResetCommandBuffer(c.handle, 0), "vkResetCommandBuffer "+c.name); err != nil {
		return err
	}
	c.state = commandListReady
	c.labels = 0
	c.pipeline, c.bound, c.rp = nil, nil, nil
	return nil
}

// Labels are tracked for balance only, debug utils are not loaded.
func (c *CommandList) BeginLabel(label string) { c.labels++ }

func (c *CommandList) EndLabel() {
	if c.labels == 0 {
		core.LogWarn("command list %s closed a label that was never opened", c.name)
		return
	}
	c.labels--
}

func (c *CommandList) recording() bool {
	if c.state != commandListRecording && c.state != commandListInRendering {
		core.LogWarn("command list %s records in state %d", c.name, c.state)
		return false
	}
	return true
}

func (c *CommandList) TransitionImageLayout(img gpu.Image, layout gpu.ImageLayout) {
	i, ok := img.(*Image)
	if !ok || !c.recording() {
		return
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit | vk.AccessMemoryReadBit),
		OldLayout:           toLayout(i.Layout()),
		NewLayout:           toLayout(layout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               i.handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectOf(i.format),
			BaseMipLevel:   0,
			LevelCount:     vk.RemainingMipLevels,
			BaseArrayLayer: 0,
			LayerCount:     vk.RemainingArrayLayers,
		},
	}
	barrier.Deref()
	stages := vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	vk.CmdPipelineBarrier(c.handle, stages, stages, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	i.SetLayout(layout)
}

func (c *CommandList) BeginRendering(info gpu.RenderingInfo) {
	if c.state != commandListRecording {
		core.LogWarn("command list %s begins rendering in state %d", c.name, c.state)
		return
	}
	color, _ := info.Color.(*Image)
	depth, _ := info.Depth.(*Image)
	key := renderPassKey{
		color:      vk.FormatUndefined,
		depth:      vk.FormatUndefined,
		clearColor: info.ClearColor,
		clearDepth: info.ClearDepth,
	}
	var clears []vk.ClearValue
	if color != nil {
		key.color = toFormat(color.format)
		var clear vk.ClearValue
		clear.SetColor([]float32{info.ColorValue.R, info.ColorValue.G, info.ColorValue.B, info.ColorValue.A})
		clears = append(clears, clear)
	}
	if depth != nil {
		key.depth = toFormat(depth.format)
		var clear vk.ClearValue
		clear.SetDepthStencil(info.DepthValue, 0)
		clears = append(clears, clear)
	}

	rp, err := c.device.renderPasses.get(key)
	if err != nil {
		core.LogError("command list %s: %s", c.name, err)
		return
	}
	fb, extent, err := c.device.framebuffers.get(key, rp, color, depth)
	if err != nil {
		core.LogError("command list %s: %s", c.name, err)
		return
	}
	if !info.Extent.IsZero() {
		extent = extent.Min(info.Extent)
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}
	vk.CmdBeginRenderPass(c.handle, &beginInfo, vk.SubpassContentsInline)
	c.current, c.rp = key, rp
	c.bound = nil
	c.state = commandListInRendering
}

func (c *CommandList) EndRendering() {
	if c.state != commandListInRendering {
		core.LogWarn("command list %s ends rendering without a rendering scope", c.name)
		return
	}
	vk.CmdEndRenderPass(c.handle)
	c.rp = nil
	c.state = commandListRecording
}

func (c *CommandList) SetViewport(extent gpu.Extent2D) {
	if !c.recording() {
		return
	}
	// flipped so that +y points up in clip space
	viewport := vk.Viewport{
		X:        0,
		Y:        float32(extent.Height),
		Width:    float32(extent.Width),
		Height:   -float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{scissor})
}

func (c *CommandList) BindPipeline(p gpu.Pipeline) {
	pipeline, ok := p.(*Pipeline)
	if !ok || !c.recording() {
		return
	}
	c.pipeline = pipeline
	c.bound = nil
	if pipeline.desc.Type == gpu.PipelineGraphics && c.state != commandListInRendering {
		core.LogWarn("command list %s binds graphics pipeline %s outside of a rendering scope", c.name, pipeline.Name())
		return
	}
	handle, err := pipeline.handle(c.current, c.rp)
	if err != nil {
		core.LogError("command list %s: %s", c.name, err)
		return
	}
	vk.CmdBindPipeline(c.handle, pipeline.bindPoint(), handle)
	c.bound = handle
}

func (c *CommandList) matches(p gpu.Pipeline) (*Pipeline, bool) {
	pipeline, ok := p.(*Pipeline)
	if !ok || c.pipeline == nil || c.pipeline.id != pipeline.id {
		core.LogWarn("command list %s binds resources for %s which is not the bound pipeline", c.name, p.Name())
		return nil, false
	}
	return pipeline, true
}

func (c *CommandList) bindSet(p *Pipeline, bg *BindingGroup) {
	vk.CmdBindDescriptorSets(c.handle, p.bindPoint(), p.layout, bg.kind.Set(), 1, []vk.DescriptorSet{bg.set}, 0, nil)
}

func (c *CommandList) BindResource(bg gpu.BindingGroup, p gpu.Pipeline) {
	pipeline, ok := c.matches(p)
	if !ok || !c.recording() {
		return
	}
	group, ok := bg.(*BindingGroup)
	if !ok {
		return
	}
	c.bindSet(pipeline, group)
}

func (c *CommandList) BindResourceBuffer(buf gpu.Buffer, kind gpu.BindingGroupType, p gpu.Pipeline) {
	pipeline, ok := c.matches(p)
	if !ok || !c.recording() {
		return
	}
	group, err := pipeline.bufferGroup(buf, kind)
	if err != nil {
		core.LogError("command list %s: %s", c.name, err)
		return
	}
	c.bindSet(pipeline, group)
}

func (c *CommandList) PushConstants(p gpu.Pipeline, data []byte) {
	pipeline, ok := c.matches(p)
	if !ok || !c.recording() || len(data) == 0 {
		return
	}
	size := uint32(len(data))
	if size > pipeline.desc.PushConstantSize {
		core.LogWarn("push constants of %d bytes exceed the %d declared by %s", size, pipeline.desc.PushConstantSize, pipeline.Name())
		size = pipeline.desc.PushConstantSize
	}
	if size == 0 {
		return
	}
	vk.CmdPushConstants(c.handle, pipeline.layout, pipeline.pushStages(), 0, size, unsafe.Pointer(&data[0]))
}

func (c *CommandList) BindIndexBuffer(buf gpu.Buffer, offset uint64) {
	b, ok := buf.(*Buffer)
	if !ok || !c.recording() {
		return
	}
	vk.CmdBindIndexBuffer(c.handle, b.handle, vk.DeviceSize(offset*4), vk.IndexTypeUint32)
}

func (c *CommandList) BindVertexBuffer(buf gpu.Buffer, offset uint64) {
	b, ok := buf.(*Buffer)
	if !ok || !c.recording() {
		return
	}
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{b.handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (c *CommandList) DrawIndexed(indices, instances uint32) {
	if c.state != commandListInRendering {
		core.LogWarn("command list %s draws outside of a rendering scope", c.name)
		return
	}
	// a pipeline that failed to build skips its draws
	if c.bound == nil {
		return
	}
	vk.CmdDrawIndexed(c.handle, indices, instances, 0, 0, 0)
}

func (c *CommandList) Dispatch(x, y, z uint32) {
	if c.pipeline == nil || c.pipeline.desc.Type != gpu.PipelineCompute || c.bound == nil {
		core.LogWarn("command list %s dispatches without a compute pipeline", c.name)
		return
	}
	vk.CmdDispatch(c.handle, x, y, z)
}

func (c *CommandList) CopyBuffer(src, dst gpu.Buffer, size, offset uint64) {
	s, ok1 := src.(*Buffer)
	d, ok2 := dst.(*Buffer)
	if !ok1 || !ok2 || !c.recording() {
		return
	}
	region := vk.BufferCopy{
		SrcOffset: vk.DeviceSize(offset),
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(c.handle, s.handle, d.handle, 1, []vk.BufferCopy{region})
}

func colorLayers(i *Image) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask:     aspectOf(i.format),
		MipLevel:       0,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func (c *CommandList) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, extent gpu.Extent2D) {
	s, ok1 := src.(*Buffer)
	d, ok2 := dst.(*Image)
	if !ok1 || !ok2 || !c.recording() {
		return
	}
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource:  colorLayers(d),
		ImageExtent:       vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(c.handle, s.handle, d.handle, toLayout(d.Layout()), 1, []vk.BufferImageCopy{region})
}

// CopyImageToImage blits, so the extents and formats may differ.
func (c *CommandList) CopyImageToImage(src gpu.Image, srcExtent gpu.Extent2D, dst gpu.Image, dstExtent gpu.Extent2D) {
	s, ok1 := src.(*Image)
	d, ok2 := dst.(*Image)
	if !ok1 || !ok2 || !c.recording() {
		return
	}
	blit := vk.ImageBlit{
		SrcSubresource: colorLayers(s),
		SrcOffsets: [2]vk.Offset3D{
			{X: 0, Y: 0, Z: 0},
			{X: int32(srcExtent.Width), Y: int32(srcExtent.Height), Z: 1},
		},
		DstSubresource: colorLayers(d),
		DstOffsets: [2]vk.Offset3D{
			{X: 0, Y: 0, Z: 0},
			{X: int32(dstExtent.Width), Y: int32(dstExtent.Height), Z: 1},
		},
	}
	vk.CmdBlitImage(c.handle, s.handle, toLayout(s.Layout()), d.handle, toLayout(d.Layout()), 1, []vk.ImageBlit{blit}, vk.FilterLinear)
}

func (c *CommandList) CopyImageToBuffer(src gpu.Image, dst gpu.Buffer) {
	s, ok1 := src.(*Image)
	d, ok2 := dst.(*Buffer)
	if !ok1 || !ok2 || !c.recording() {
		return
	}
	region := vk.BufferImageCopy{
		ImageSubresource: colorLayers(s),
		ImageExtent:      vk.Extent3D{Width: s.extent.Width, Height: s.extent.Height, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(c.handle, s.handle, toLayout(s.Layout()), d.handle, 1, []vk.BufferImageCopy{region})
}
