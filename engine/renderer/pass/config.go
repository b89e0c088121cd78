package pass

import (
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

const (
	DrawImage   = "draw"
	DepthImage  = "depth"
	SelectImage = "select"
)

// Config describes a material pass. Pipeline is the fixed pipeline, nil
// lets every object bring the pipeline of its material.
type Config struct {
	Name              string
	Type              PassType
	Attachments       []Attachment
	Pipeline          *gpu.PipelineDesc
	ObjectLayout      *uniform.ObjectDataLayout
	SceneLayout       *uniform.SceneDataLayout
	RenderOpaque      bool
	RenderTransparent bool
}

// DefaultConfig returns the attachments, layouts and fixed pipeline a pass
// of type t uses when nothing overrides them.
func DefaultConfig(name string, t PassType) Config {
	cfg := Config{
		Name:              name,
		Type:              t,
		ObjectLayout:      uniform.DefaultObjectDataLayout(),
		RenderOpaque:      true,
		RenderTransparent: true,
	}
	viewProj := uniform.NewSceneDataLayout(uniform.SceneCameraViewProj)

	switch t {
	case PassTypeForward:
		cfg.Attachments = []Attachment{
			NewAttachment(DrawImage, AttachmentColor, AccessReadWrite),
			NewAttachment(DepthImage, AttachmentDepth, AccessReadWrite),
		}
		cfg.SceneLayout = uniform.NewSceneDataLayout(
			uniform.SceneCameraPosition,
			uniform.SceneCameraViewProj,
			uniform.SceneLightDirection,
			uniform.SceneLightColor,
			uniform.SceneLightAmbientColor,
		)
	case PassTypeDepth:
		cfg.Attachments = []Attachment{
			NewAttachment(DepthImage, AttachmentDepth, AccessReadWrite).WithClear(true),
		}
		cfg.SceneLayout = viewProj
		cfg.ObjectLayout = uniform.NewObjectDataLayout(uniform.ObjectWorldMatrix, uniform.ObjectVertexBufferAddress)
		cfg.RenderTransparent = false
		cfg.Pipeline = gpu.NewGraphicsPipelineDesc(name).
			WithShaders("depth.vert.spv", "").
			WithVertexAttributes(gpu.VertexPosition).
			WithBindingGroup(gpu.BindingGroupSceneData, gpu.ShaderStageVertex, gpu.BindingUniformBuffer).
			WithDepth(true, true)
	case PassTypeWire, PassTypeBounds:
		cfg.Attachments = []Attachment{
			NewAttachment(DrawImage, AttachmentColor, AccessReadWrite),
			NewAttachment(DepthImage, AttachmentDepth, AccessReadOnly).WithLayout(gpu.ImageLayoutDepth),
		}
		cfg.SceneLayout = viewProj
		cfg.ObjectLayout = uniform.NewObjectDataLayout(uniform.ObjectWorldMatrix, uniform.ObjectVertexBufferAddress)
		cfg.Pipeline = gpu.NewGraphicsPipelineDesc(name).
			WithShaders("wire.vert.spv", "wire.frag.spv").
			WithVertexAttributes(gpu.VertexPosition).
			WithBindingGroup(gpu.BindingGroupSceneData, gpu.ShaderStageVertex, gpu.BindingUniformBuffer).
			WithRasterizer(gpu.CullModeNone, gpu.PolygonModeLine).
			WithDepth(true, false)
	case PassTypeSelect:
		cfg.Attachments = []Attachment{
			NewAttachment(SelectImage, AttachmentColor, AccessReadWrite).WithClear(true),
			NewAttachment(DepthImage, AttachmentDepth, AccessReadOnly).WithLayout(gpu.ImageLayoutDepth),
		}
		cfg.SceneLayout = viewProj
		cfg.ObjectLayout = uniform.NewObjectDataLayout(uniform.ObjectWorldMatrix, uniform.ObjectVertexBufferAddress)
		cfg.Pipeline = gpu.NewGraphicsPipelineDesc(name).
			WithShaders("select.vert.spv", "select.frag.spv").
			WithVertexAttributes(gpu.VertexPosition).
			WithBindingGroup(gpu.BindingGroupSceneData, gpu.ShaderStageVertex, gpu.BindingUniformBuffer).
			WithDepth(true, false)
	case PassTypeUI:
		cfg.Attachments = []Attachment{
			NewAttachment(DrawImage, AttachmentColor, AccessReadWrite),
		}
		cfg.SceneLayout = uniform.NewSceneDataLayout(uniform.SceneCameraViewPort)
		cfg.ObjectLayout = uniform.NewObjectDataLayout(uniform.ObjectWorldMatrix, uniform.ObjectVertexBufferAddress)
	}
	return cfg
}
