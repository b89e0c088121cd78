package pass

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

type PassType int

const (
	PassTypeCompute PassType = iota
	PassTypeDepth
	PassTypeForward
	PassTypeWire
	PassTypeBounds
	PassTypeUI
	PassTypeSelect
	PassTypePresent
	PassTypeDummy
)

var passTypeNames = map[PassType]string{
	PassTypeCompute: "compute",
	PassTypeDepth:   "depth",
	PassTypeForward: "forward",
	PassTypeWire:    "wire",
	PassTypeBounds:  "bounds",
	PassTypeUI:      "ui",
	PassTypeSelect:  "select",
	PassTypePresent: "present",
	PassTypeDummy:   "dummy",
}

func (t PassType) String() string {
	if s, ok := passTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

func ParsePassType(s string) (PassType, error) {
	for k, v := range passTypeNames {
		if v == s {
			return k, nil
		}
	}
	return PassTypeDummy, fmt.Errorf("unknown pass type %q: %w", s, core.ErrInvalidData)
}

// ResourceManager hands out the named images of the frame graph. Passes
// never own them, they only transition them.
type ResourceManager interface {
	Image(name string) gpu.Image
	Has(name string) bool
	// ImageRead transitions the image for sampling and returns it.
	ImageRead(name string, cmd gpu.CommandList) gpu.Image
	// ImageWrite transitions the image for rendering according to its usage.
	ImageWrite(name string, cmd gpu.CommandList) gpu.Image
}

// RenderContext carries everything a pass needs to record one frame.
type RenderContext struct {
	// FrameID is the frame slot, FrameNumber the monotonic frame counter.
	FrameID     int
	FrameNumber uint64
	Cmd         gpu.CommandList
	Resources   ResourceManager
	// Target is the acquired presentable image.
	Target     gpu.Image
	Objects    []metadata.RenderObject
	SceneData  []byte
	DrawExtent gpu.Extent2D
	Stats      *metadata.RenderStats
}

type RenderPass interface {
	ID() metadata.PassID
	Name() string
	Type() PassType
	// Attachments lists the image names the pass reads or writes.
	Attachments() []string
	ColorAttachment() (string, bool)
	DepthAttachment() (string, bool)
	VertexAttributes() gpu.VertexAttribute
	// Pipeline is the fixed pipeline of the pass, nil when objects bring
	// their own.
	Pipeline() gpu.Pipeline
	ObjectDataLayout() *uniform.ObjectDataLayout
	SceneDataLayout() *uniform.SceneDataLayout
	// SceneData encodes scene with the pass layout, nil without one.
	SceneData(scene uniform.SceneData) []byte
	Render(ctx *RenderContext) error
	Destroy()
}
