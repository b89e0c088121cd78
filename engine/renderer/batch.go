package renderer

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/pass"
	"github.com/spaghettifunk/framegraph/engine/renderer/resources"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

// RenderBatch collects the objects and scene uniforms of one frame.
type RenderBatch struct {
	objects   []metadata.RenderObject
	sceneData map[metadata.PassID][]byte
	stats     *metadata.RenderStats
	meshes    *resources.MeshResourceManager
}

func NewRenderBatch(meshes *resources.MeshResourceManager) *RenderBatch {
	return &RenderBatch{
		sceneData: map[metadata.PassID][]byte{},
		stats:     metadata.NewRenderStats(),
		meshes:    meshes,
	}
}

// Reset starts a new frame. Transient meshes older than the frames in flight
// are released.
func (b *RenderBatch) Reset() {
	b.objects = b.objects[:0]
	clear(b.sceneData)
	b.stats.Reset()
	b.meshes.NewFrame()
}

// AddModel queues one draw per mesh of model in p. Upload errors are logged
// and returned, the rest of the batch is not affected.
func (b *RenderBatch) AddModel(model *resources.Model, transform math.Transform, p pass.RenderPass, lifetime metadata.Lifetime) error {
	meshes, err := b.meshes.AddObject(model, p, lifetime)
	if err != nil {
		err = fmt.Errorf("model %s in pass %s: %w", model.Name, p.Name(), err)
		core.LogWarn("skipping object: %s", err)
		return err
	}
	b.addMeshes(meshes, transform, p)
	return nil
}

// AddBounds queues the wireframe box of box, in the space of transform.
func (b *RenderBatch) AddBounds(box math.BoundingBox, transform math.Transform, p pass.RenderPass) error {
	meshes, err := b.meshes.AddBoundingBox(box, p)
	if err != nil {
		err = fmt.Errorf("bounds in pass %s: %w", p.Name(), err)
		core.LogWarn("skipping object: %s", err)
		return err
	}
	b.addMeshes(meshes, transform, p)
	return nil
}

func (b *RenderBatch) addMeshes(meshes []*resources.GPUMesh, transform math.Transform, p pass.RenderPass) {
	for i, mesh := range meshes {
		obj := metadata.RenderObject{
			Model:          mesh.Model.ID,
			Pass:           p.ID(),
			Transform:      transform,
			VertexBuffer:   mesh.VertexBuffer,
			VerticesOffset: mesh.VerticesOffset,
			IndexBuffer:    mesh.IndexBuffer,
			IndicesOffset:  mesh.IndicesOffset,
			IndicesLen:     mesh.IndicesLen,
		}
		if mat := mesh.Material; mat != nil {
			obj.Pipeline = mat.Pipeline
			obj.Material = mat.Binding
			obj.Transparent = mat.Transparent
		}
		b.objects = append(b.objects, obj)

		// the model geometry is counted with its first mesh only
		if i == 0 {
			vertices, indices, textures := mesh.Model.Counts()
			b.stats.AddObject(&obj, vertices, indices, textures)
		} else {
			b.stats.AddObject(&obj, 0, 0, 0)
		}
	}
}

// AddSceneData encodes scene for p. Passes without a scene layout are
// skipped.
func (b *RenderBatch) AddSceneData(scene uniform.SceneData, p pass.RenderPass) {
	if data := p.SceneData(scene); data != nil {
		b.sceneData[p.ID()] = data
	}
}

// AddExtentData fills the viewport uniform of screen space passes.
func (b *RenderBatch) AddExtentData(extent gpu.Extent2D, p pass.RenderPass) {
	b.AddSceneData(uniform.SceneData{Extent: extent}, p)
}

// Finish orders the objects so consecutive draws share as much state as
// possible: by pass, opaque before transparent, then pipeline, material and
// model. Equal objects keep their submission order.
func (b *RenderBatch) Finish() {
	slices.SortStableFunc(b.objects, func(x, y metadata.RenderObject) int {
		if c := x.Pass.Compare(y.Pass); c != 0 {
			return c
		}
		if x.Transparent != y.Transparent {
			if x.Transparent {
				return 1
			}
			return -1
		}
		if c := comparePipelines(x.Pipeline, y.Pipeline); c != 0 {
			return c
		}
		if c := compareMaterials(&x, &y); c != 0 {
			return c
		}
		return x.Model.Compare(y.Model)
	})
}

func comparePipelines(x, y gpu.Pipeline) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return -1
	case y == nil:
		return 1
	}
	return x.ID().Compare(y.ID())
}

func compareMaterials(x, y *metadata.RenderObject) int {
	xm, xok := x.MaterialInstance()
	ym, yok := y.MaterialInstance()
	switch {
	case !xok && !yok:
		return 0
	case !xok:
		return -1
	case !yok:
		return 1
	}
	return xm.Compare(ym)
}

func (b *RenderBatch) Objects() []metadata.RenderObject {
	return b.objects
}

// SceneData returns the uniform bytes queued for a pass, nil if none.
func (b *RenderBatch) SceneData(id metadata.PassID) []byte {
	return b.sceneData[id]
}

func (b *RenderBatch) Stats() *metadata.RenderStats {
	return b.stats
}
