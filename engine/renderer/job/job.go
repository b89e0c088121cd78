package job

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

// renderState tracks what is bound on the command list during one DrawList.
type renderState struct {
	pipeline       gpu.ID
	hasPipeline    bool
	indexBuffer    gpu.ID
	indicesOffset  uint64
	hasIndex       bool
	vertexBuffer   gpu.ID
	verticesOffset uint64
	hasVertex      bool
	material       metadata.MaterialInstanceID
	hasMaterial    bool
	sceneBound     bool
	objectData     []byte
}

// RenderJob records the draws of one pass, binding only what changes
// between consecutive objects.
type RenderJob struct {
	passID metadata.PassID
	name   string

	fixedPipeline     gpu.Pipeline
	objectLayout      *uniform.ObjectDataLayout
	sceneLayout       *uniform.SceneDataLayout
	sceneBuffers      []gpu.Buffer
	renderOpaque      bool
	renderTransparent bool
}

// New creates a job with one scene uniform buffer per frame in flight.
// sceneLayout may be nil for passes without scene data.
func New(device gpu.Device, passID metadata.PassID, name string, objectLayout *uniform.ObjectDataLayout, sceneLayout *uniform.SceneDataLayout, framesInFlight int) (*RenderJob, error) {
	j := &RenderJob{
		passID:            passID,
		name:              name,
		objectLayout:      objectLayout,
		sceneLayout:       sceneLayout,
		renderOpaque:      true,
		renderTransparent: true,
	}
	if sceneLayout != nil && sceneLayout.Uniform().Size() > 0 {
		for i := 0; i < framesInFlight; i++ {
			buf, err := device.NewBuffer(fmt.Sprintf("%s scene data %d", name, i), sceneLayout.Uniform().Size(), gpu.BufferUsageUniform)
			if err != nil {
				j.Destroy()
				return nil, err
			}
			j.sceneBuffers = append(j.sceneBuffers, buf)
		}
	}
	return j, nil
}

func (j *RenderJob) SetFixedPipeline(p gpu.Pipeline) {
	j.fixedPipeline = p
}

func (j *RenderJob) FixedPipeline() gpu.Pipeline {
	return j.fixedPipeline
}

func (j *RenderJob) SetRenderOpaque(v bool) {
	j.renderOpaque = v
}

func (j *RenderJob) SetRenderTransparent(v bool) {
	j.renderTransparent = v
}

// ShouldRender filters the objects of other passes and the transparency
// classes this job does not draw.
func (j *RenderJob) ShouldRender(obj *metadata.RenderObject) bool {
	if obj.Pass != j.passID {
		return false
	}
	if obj.Transparent {
		return j.renderTransparent
	}
	return j.renderOpaque
}

// UpdateUniform writes the scene data of the frame slot.
func (j *RenderJob) UpdateUniform(frameID int, data []byte) error {
	if len(j.sceneBuffers) == 0 || len(data) == 0 {
		return nil
	}
	return j.sceneBuffers[frameID%len(j.sceneBuffers)].Write(data, 0)
}

func (j *RenderJob) pipeline(obj *metadata.RenderObject) (gpu.Pipeline, error) {
	if j.fixedPipeline != nil {
		return j.fixedPipeline, nil
	}
	if obj.Pipeline != nil {
		return obj.Pipeline, nil
	}
	return nil, fmt.Errorf("%s: model %s: %w", j.name, obj.Model, core.ErrInvalidPipeline)
}

// DrawList records the draws of the objects belonging to this pass. An
// object that cannot be drawn is skipped and reported in the returned error,
// the others are still drawn.
func (j *RenderJob) DrawList(cmd gpu.CommandList, frameID int, objects []metadata.RenderObject, stats *metadata.RenderStats) error {
	state := renderState{}
	var errs []error

	for i := range objects {
		obj := &objects[i]
		if !j.ShouldRender(obj) {
			continue
		}

		pipeline, err := j.pipeline(obj)
		if err != nil {
			core.LogWarn("skip object: %s", err)
			errs = append(errs, err)
			continue
		}

		if !state.hasPipeline || state.pipeline != pipeline.ID() {
			cmd.BindPipeline(pipeline)
			stats.AddBind(j.passID, metadata.BindPipeline)
			state.pipeline = pipeline.ID()
			state.hasPipeline = true
		}

		if !state.sceneBound && len(j.sceneBuffers) > 0 {
			cmd.BindResourceBuffer(j.sceneBuffers[frameID%len(j.sceneBuffers)], gpu.BindingGroupSceneData, pipeline)
			stats.AddBind(j.passID, metadata.BindResource)
			state.sceneBound = true
		}

		if j.fixedPipeline == nil {
			if id, ok := obj.MaterialInstance(); ok && (!state.hasMaterial || state.material != id) {
				if obj.Material.Group != nil {
					cmd.BindResource(obj.Material.Group, pipeline)
					stats.AddBind(j.passID, metadata.BindResource)
				}
				state.material = id
				state.hasMaterial = true
			}
		}

		if j.objectLayout != nil {
			j.objectLayout.CopyData(obj.Transform, obj.VertexBuffer, obj.VerticesOffset, &state.objectData)
			cmd.PushConstants(pipeline, state.objectData)
		}

		if obj.IndexBuffer == nil || obj.VertexBuffer == nil {
			err := fmt.Errorf("%s: model %s has no geometry buffers: %w", j.name, obj.Model, core.ErrInvalidData)
			core.LogWarn("skip object: %s", err)
			errs = append(errs, err)
			continue
		}
		if !state.hasVertex || state.vertexBuffer != obj.VertexBuffer.ID() || state.verticesOffset != obj.VerticesOffset {
			cmd.BindVertexBuffer(obj.VertexBuffer, obj.VerticesOffset)
			stats.AddBind(j.passID, metadata.BindVertex)
			state.vertexBuffer = obj.VertexBuffer.ID()
			state.verticesOffset = obj.VerticesOffset
			state.hasVertex = true
		}
		if !state.hasIndex || state.indexBuffer != obj.IndexBuffer.ID() || state.indicesOffset != obj.IndicesOffset {
			cmd.BindIndexBuffer(obj.IndexBuffer, obj.IndicesOffset)
			stats.AddBind(j.passID, metadata.BindIndex)
			state.indexBuffer = obj.IndexBuffer.ID()
			state.indicesOffset = obj.IndicesOffset
			state.hasIndex = true
		}

		cmd.DrawIndexed(obj.IndicesLen, 1)
		stats.AddDraw(j.passID)
	}

	return errors.Join(errs...)
}

func (j *RenderJob) PassID() metadata.PassID {
	return j.passID
}

func (j *RenderJob) ObjectLayout() *uniform.ObjectDataLayout {
	return j.objectLayout
}

func (j *RenderJob) SceneLayout() *uniform.SceneDataLayout {
	return j.sceneLayout
}

func (j *RenderJob) Destroy() {
	for _, buf := range j.sceneBuffers {
		buf.Destroy()
	}
	j.sceneBuffers = nil
}
