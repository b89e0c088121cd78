package gpu

// RenderingInfo opens a rendering scope on a color and an optional depth image.
type RenderingInfo struct {
	Color      Image
	Depth      Image
	Extent     Extent2D
	ClearColor bool
	ClearDepth bool
	// ColorValue and DepthValue are used when the matching clear flag is set.
	ColorValue Color
	DepthValue float32
}

type CommandList interface {
	Name() string
	Begin() error
	End() error
	Reset() error

	BeginLabel(label string)
	EndLabel()

	TransitionImageLayout(img Image, layout ImageLayout)
	BeginRendering(info RenderingInfo)
	EndRendering()
	SetViewport(extent Extent2D)

	BindPipeline(p Pipeline)
	BindResource(bg BindingGroup, p Pipeline)
	BindResourceBuffer(buf Buffer, kind BindingGroupType, p Pipeline)
	PushConstants(p Pipeline, data []byte)
	// BindVertexBuffer binds buf at binding 0, offset counts bytes.
	BindVertexBuffer(buf Buffer, offset uint64)
	// BindIndexBuffer binds 32 bit indices, offset counts indices, not bytes.
	BindIndexBuffer(buf Buffer, offset uint64)
	DrawIndexed(indices, instances uint32)
	Dispatch(x, y, z uint32)

	// CopyBuffer copies size bytes of src starting at offset to the start of dst.
	CopyBuffer(src, dst Buffer, size, offset uint64)
	CopyBufferToImage(src Buffer, dst Image, extent Extent2D)
	CopyImageToImage(src Image, srcExtent Extent2D, dst Image, dstExtent Extent2D)
	CopyImageToBuffer(src Image, dst Buffer)
}
