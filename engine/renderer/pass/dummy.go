package pass

import (
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

// DummyPass records nothing. It keeps an empty graph valid.
type DummyPass struct {
	id          metadata.PassID
	name        string
	attachments []string
	renders     int
}

func NewDummyPass(name string, attachments ...string) *DummyPass {
	return &DummyPass{id: metadata.NewPassID(), name: name, attachments: attachments}
}

func (p *DummyPass) ID() metadata.PassID                         { return p.id }
func (p *DummyPass) Name() string                                { return p.name }
func (p *DummyPass) Type() PassType                              { return PassTypeDummy }
func (p *DummyPass) Attachments() []string                       { return p.attachments }
func (p *DummyPass) ColorAttachment() (string, bool)             { return "", false }
func (p *DummyPass) DepthAttachment() (string, bool)             { return "", false }
func (p *DummyPass) VertexAttributes() gpu.VertexAttribute       { return 0 }
func (p *DummyPass) Pipeline() gpu.Pipeline                      { return nil }
func (p *DummyPass) ObjectDataLayout() *uniform.ObjectDataLayout { return nil }
func (p *DummyPass) SceneDataLayout() *uniform.SceneDataLayout   { return nil }
func (p *DummyPass) SceneData(scene uniform.SceneData) []byte    { return nil }
func (p *DummyPass) Destroy()                                    {}

func (p *DummyPass) Render(ctx *RenderContext) error {
	p.renders++
	return nil
}

// Renders counts the calls to Render.
func (p *DummyPass) Renders() int {
	return p.renders
}
