package pass

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/job"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

// MaterialPass draws the render objects of its id into its color and depth
// attachments. Depth, forward, wire, bounds, ui and select passes are all
// material passes with different defaults.
type MaterialPass struct {
	id          metadata.PassID
	name        string
	passType    PassType
	attachments []Attachment
	pipeline    gpu.Pipeline
	job         *job.RenderJob
}

func NewMaterialPass(device gpu.Device, framesInFlight int, cfg Config) (*MaterialPass, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("material pass without a name: %w", core.ErrInvalidData)
	}
	p := &MaterialPass{
		id:          metadata.NewPassID(),
		name:        cfg.Name,
		passType:    cfg.Type,
		attachments: cfg.Attachments,
	}

	if cfg.Pipeline != nil {
		desc := *cfg.Pipeline
		if desc.Name == "" {
			desc.Name = cfg.Name
		}
		if desc.PushConstantSize == 0 && cfg.ObjectLayout != nil {
			desc.PushConstantSize = uint32(cfg.ObjectLayout.Uniform().Size())
		}
		pipeline, err := device.NewPipeline(&desc)
		if err != nil {
			return nil, fmt.Errorf("failed to create pipeline of pass %s: %w", cfg.Name, err)
		}
		p.pipeline = pipeline
	}

	j, err := job.New(device, p.id, cfg.Name, cfg.ObjectLayout, cfg.SceneLayout, framesInFlight)
	if err != nil {
		if p.pipeline != nil {
			p.pipeline.Destroy()
		}
		return nil, err
	}
	j.SetFixedPipeline(p.pipeline)
	j.SetRenderOpaque(cfg.RenderOpaque)
	j.SetRenderTransparent(cfg.RenderTransparent)
	p.job = j

	return p, nil
}

func (p *MaterialPass) ID() metadata.PassID {
	return p.id
}

func (p *MaterialPass) Name() string {
	return p.name
}

func (p *MaterialPass) Type() PassType {
	return p.passType
}

func (p *MaterialPass) Attachments() []string {
	names := make([]string, 0, len(p.attachments))
	for _, a := range p.attachments {
		names = append(names, a.Name)
	}
	return names
}

func (p *MaterialPass) attachment(kind AttachmentKind) (Attachment, bool) {
	for _, a := range p.attachments {
		if a.Kind == kind {
			return a, true
		}
	}
	return Attachment{}, false
}

func (p *MaterialPass) ColorAttachment() (string, bool) {
	a, ok := p.attachment(AttachmentColor)
	return a.Name, ok
}

func (p *MaterialPass) DepthAttachment() (string, bool) {
	a, ok := p.attachment(AttachmentDepth)
	return a.Name, ok
}

func (p *MaterialPass) VertexAttributes() gpu.VertexAttribute {
	if p.pipeline == nil {
		return 0
	}
	return p.pipeline.VertexAttributes()
}

func (p *MaterialPass) Pipeline() gpu.Pipeline {
	return p.pipeline
}

func (p *MaterialPass) ObjectDataLayout() *uniform.ObjectDataLayout {
	return p.job.ObjectLayout()
}

func (p *MaterialPass) SceneDataLayout() *uniform.SceneDataLayout {
	return p.job.SceneLayout()
}

func (p *MaterialPass) SceneData(scene uniform.SceneData) []byte {
	layout := p.job.SceneLayout()
	if layout == nil || layout.Uniform().Size() == 0 {
		return nil
	}
	return layout.Data(scene)
}

func (p *MaterialPass) Render(ctx *RenderContext) error {
	cmd := ctx.Cmd
	info := gpu.RenderingInfo{
		Extent:     ctx.DrawExtent,
		DepthValue: 1.0,
	}
	for _, a := range p.attachments {
		img := a.transition(ctx.Resources, cmd)
		switch a.Kind {
		case AttachmentColor:
			if info.Color == nil {
				info.Color = img
				info.ClearColor = a.Clear
			}
		case AttachmentDepth:
			if info.Depth == nil {
				info.Depth = img
				info.ClearDepth = a.Clear
			}
		}
	}

	cmd.BeginLabel("Draw " + p.name)
	defer cmd.EndLabel()

	cmd.BeginRendering(info)
	defer cmd.EndRendering()
	cmd.SetViewport(ctx.DrawExtent)

	if err := p.job.UpdateUniform(ctx.FrameID, ctx.SceneData); err != nil {
		return fmt.Errorf("failed to update scene data of %s: %w", p.name, err)
	}
	if err := p.job.DrawList(cmd, ctx.FrameID, ctx.Objects, ctx.Stats); err != nil {
		// objects in error were skipped, the rest of the frame goes on
		core.LogDebug("pass %s skipped objects: %s", p.name, err)
	}
	return nil
}

func (p *MaterialPass) Destroy() {
	p.job.Destroy()
	if p.pipeline != nil {
		p.pipeline.Destroy()
	}
}
