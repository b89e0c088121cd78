package pass

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

// PresentPass blits the draw image into the acquired render target.
type PresentPass struct {
	id   metadata.PassID
	name string
}

func NewPresentPass(name string) *PresentPass {
	return &PresentPass{id: metadata.NewPassID(), name: name}
}

func (p *PresentPass) ID() metadata.PassID                         { return p.id }
func (p *PresentPass) Name() string                                { return p.name }
func (p *PresentPass) Type() PassType                              { return PassTypePresent }
func (p *PresentPass) Attachments() []string                       { return []string{DrawImage} }
func (p *PresentPass) ColorAttachment() (string, bool)             { return DrawImage, true }
func (p *PresentPass) DepthAttachment() (string, bool)             { return "", false }
func (p *PresentPass) VertexAttributes() gpu.VertexAttribute       { return 0 }
func (p *PresentPass) Pipeline() gpu.Pipeline                      { return nil }
func (p *PresentPass) ObjectDataLayout() *uniform.ObjectDataLayout { return nil }
func (p *PresentPass) SceneDataLayout() *uniform.SceneDataLayout   { return nil }
func (p *PresentPass) SceneData(scene uniform.SceneData) []byte    { return nil }
func (p *PresentPass) Destroy()                                    {}

func (p *PresentPass) Render(ctx *RenderContext) error {
	if ctx.Target == nil {
		return fmt.Errorf("present pass %s has no render target: %w", p.name, core.ErrInvalidData)
	}
	cmd := ctx.Cmd
	draw := ctx.Resources.Image(DrawImage)

	cmd.BeginLabel("Present " + p.name)
	defer cmd.EndLabel()

	cmd.TransitionImageLayout(draw, gpu.ImageLayoutTransferSrc)
	cmd.TransitionImageLayout(ctx.Target, gpu.ImageLayoutTransferDst)
	cmd.CopyImageToImage(draw, ctx.DrawExtent, ctx.Target, ctx.Target.Extent())
	return nil
}
