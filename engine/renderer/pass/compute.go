package pass

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

const computeGroupSize = 16

// DefaultComputePipeline fills the draw image with the background gradient.
func DefaultComputePipeline(name string) *gpu.PipelineDesc {
	return gpu.NewComputePipelineDesc(name).
		WithComputeShader("sky.comp.spv").
		WithBindingGroup(gpu.BindingGroupComputeData, gpu.ShaderStageCompute, gpu.BindingStorageImage)
}

type ComputePass struct {
	id       metadata.PassID
	name     string
	pipeline gpu.Pipeline
	// one binding group per frame slot
	groups []gpu.BindingGroup
}

// NewComputePass allocates one ComputeData binding group per frame in
// flight. It panics when the pipeline pool cannot hold them.
func NewComputePass(device gpu.Device, framesInFlight int, name string, desc *gpu.PipelineDesc) (*ComputePass, error) {
	if desc == nil {
		desc = DefaultComputePipeline(name)
	}
	pipeline, err := device.NewPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline of pass %s: %w", name, err)
	}

	groups := make([]gpu.BindingGroup, 0, framesInFlight)
	for i := 0; i < framesInFlight; i++ {
		bg, err := pipeline.CreateBindingGroup(gpu.BindingGroupComputeData)
		if err != nil {
			pipeline.Destroy()
			panic(fmt.Errorf("pass %s needs %d compute binding groups: %w", name, framesInFlight, err))
		}
		groups = append(groups, bg)
	}

	return &ComputePass{
		id:       metadata.NewPassID(),
		name:     name,
		pipeline: pipeline,
		groups:   groups,
	}, nil
}

func (p *ComputePass) ID() metadata.PassID {
	return p.id
}

func (p *ComputePass) Name() string {
	return p.name
}

func (p *ComputePass) Type() PassType {
	return PassTypeCompute
}

func (p *ComputePass) Attachments() []string {
	return []string{DrawImage}
}

func (p *ComputePass) ColorAttachment() (string, bool) {
	return DrawImage, true
}

func (p *ComputePass) DepthAttachment() (string, bool) {
	return "", false
}

func (p *ComputePass) VertexAttributes() gpu.VertexAttribute {
	return 0
}

func (p *ComputePass) Pipeline() gpu.Pipeline {
	return p.pipeline
}

func (p *ComputePass) ObjectDataLayout() *uniform.ObjectDataLayout {
	return nil
}

func (p *ComputePass) SceneDataLayout() *uniform.SceneDataLayout {
	return nil
}

func (p *ComputePass) SceneData(scene uniform.SceneData) []byte {
	return nil
}

func (p *ComputePass) Render(ctx *RenderContext) error {
	if len(p.groups) == 0 {
		return fmt.Errorf("compute pass %s has no binding group: %w", p.name, core.ErrPoolExhausted)
	}
	cmd := ctx.Cmd
	draw := ctx.Resources.Image(DrawImage)
	group := p.groups[ctx.FrameID%len(p.groups)]

	cmd.BeginLabel("Compute " + p.name)
	defer cmd.EndLabel()

	group.Update().BindStorageImage(draw, gpu.ImageLayoutGeneral).End()
	cmd.TransitionImageLayout(draw, gpu.ImageLayoutGeneral)

	cmd.BindPipeline(p.pipeline)
	ctx.Stats.AddBind(p.id, metadata.BindPipeline)
	cmd.BindResource(group, p.pipeline)
	ctx.Stats.AddBind(p.id, metadata.BindResource)

	cmd.Dispatch(ctx.DrawExtent.Width/computeGroupSize+1, ctx.DrawExtent.Height/computeGroupSize+1, 1)
	return nil
}

func (p *ComputePass) Destroy() {
	p.pipeline.Destroy()
}
