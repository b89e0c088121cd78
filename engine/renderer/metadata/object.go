package metadata

import (
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// MaterialBinding is the material side of a draw: the instance it comes from
// and the texture binding group allocated for it.
type MaterialBinding struct {
	InstanceID MaterialInstanceID
	Group      gpu.BindingGroup
}

// RenderObject is one draw prepared for a pass. It is built by the batch and
// never modified while the frame is recorded.
type RenderObject struct {
	Model     ModelID
	Pass      PassID
	Transform math.Transform

	// Pipeline comes from the material, nil for passes with a fixed pipeline.
	Pipeline gpu.Pipeline
	Material *MaterialBinding

	VertexBuffer   gpu.Buffer
	VerticesOffset uint64
	IndexBuffer    gpu.Buffer
	IndicesOffset  uint64
	IndicesLen     uint32

	Transparent bool
}

// MaterialInstance returns the material instance id and whether the object
// has one.
func (o *RenderObject) MaterialInstance() (MaterialInstanceID, bool) {
	if o.Material == nil {
		return MaterialInstanceID{}, false
	}
	return o.Material.InstanceID, true
}
