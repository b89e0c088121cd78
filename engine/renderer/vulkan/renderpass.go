package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
)

// renderPassKey describes the attachments of one BeginRendering scope.
// FormatUndefined means the attachment is absent.
type renderPassKey struct {
	color      vk.Format
	depth      vk.Format
	clearColor bool
	clearDepth bool
}

// renderPassCache emulates dynamic rendering: every attachment combination
// used by a pass gets one single subpass render pass, created on first use.
type renderPassCache struct {
	device *Device
	passes map[renderPassKey]vk.RenderPass
}

func newRenderPassCache(d *Device) *renderPassCache {
	return &renderPassCache{device: d, passes: map[renderPassKey]vk.RenderPass{}}
}

func loadOp(clear bool) vk.AttachmentLoadOp {
	if clear {
		return vk.AttachmentLoadOpClear
	}
	return vk.AttachmentLoadOpLoad
}

func (c *renderPassCache) get(key renderPassKey) (vk.RenderPass, error) {
	var out vk.RenderPass
	err := c.device.locks.SafeCall(RenderpassManagement, func() error {
		if rp, ok := c.passes[key]; ok {
			out = rp
			return nil
		}
		rp, err := c.create(key)
		if err != nil {
			return err
		}
		c.passes[key] = rp
		out = rp
		return nil
	})
	return out, err
}

func (c *renderPassCache) create(key renderPassKey) (vk.RenderPass, error) {
	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}
	attachments := []vk.AttachmentDescription{}

	// attachments arrive in the layout the graph transitioned them to and
	// stay there
	if key.color != vk.FormatUndefined {
		colorAttachment := vk.AttachmentDescription{
			Format:         key.color,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp(key.clearColor),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		}
		colorAttachment.Deref()
		subpass.ColorAttachmentCount = 1
		subpass.PColorAttachments = []vk.AttachmentReference{{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}}
		attachments = append(attachments, colorAttachment)
	}

	if key.depth != vk.FormatUndefined {
		depthAttachment := vk.AttachmentDescription{
			Format:         key.depth,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp(key.clearDepth),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		depthAttachment.Deref()
		depthAttachmentReference := vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		depthAttachmentReference.Deref()
		subpass.PDepthStencilAttachment = &depthAttachmentReference
		attachments = append(attachments, depthAttachment)
	}
	subpass.Deref()

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageLateFragmentTestsBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}
	dependency.Deref()

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	renderpassCreateInfo.Deref()

	var rp vk.RenderPass
	if err := check(vk.CreateRenderPass(c.device.logical, &renderpassCreateInfo, nil, &rp), "vkCreateRenderPass"); err != nil {
		return nil, err
	}
	core.LogDebug("render pass created for color %d, depth %d", key.color, key.depth)
	return rp, nil
}

func (c *renderPassCache) destroy() {
	for key, rp := range c.passes {
		vk.DestroyRenderPass(c.device.logical, rp, nil)
		delete(c.passes, key)
	}
}
