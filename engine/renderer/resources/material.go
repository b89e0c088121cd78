package resources

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// GPUMaterial is a material instance ready to be bound.
type GPUMaterial struct {
	Instance *MaterialInstance
	Pipeline gpu.Pipeline
	// Binding is nil when the instance has no textures.
	Binding     *metadata.MaterialBinding
	Transparent bool
}

// MaterialInstanceLoader allocates one texture binding group per material
// instance and keeps it for the lifetime of the loader.
type MaterialInstanceLoader struct {
	textures *TextureManager
	bindings map[metadata.MaterialInstanceID]*metadata.MaterialBinding
}

func NewMaterialInstanceLoader(textures *TextureManager) *MaterialInstanceLoader {
	return &MaterialInstanceLoader{
		textures: textures,
		bindings: map[metadata.MaterialInstanceID]*metadata.MaterialBinding{},
	}
}

// Load returns the GPU side of instance. A nil instance gives a nil material.
func (l *MaterialInstanceLoader) Load(instance *MaterialInstance) (*GPUMaterial, error) {
	if instance == nil {
		return nil, nil
	}
	if instance.Material == nil {
		return nil, fmt.Errorf("material instance %s has no material: %w", instance.ID, core.ErrInvalidPipeline)
	}
	binding, err := l.binding(instance)
	if err != nil {
		return nil, err
	}
	return &GPUMaterial{
		Instance:    instance,
		Pipeline:    instance.Material.Pipeline,
		Binding:     binding,
		Transparent: instance.Material.Blending,
	}, nil
}

func (l *MaterialInstanceLoader) binding(instance *MaterialInstance) (*metadata.MaterialBinding, error) {
	if b, ok := l.bindings[instance.ID]; ok {
		return b, nil
	}
	if len(instance.Textures) == 0 {
		return nil, nil
	}
	pipeline := instance.Material.Pipeline
	if pipeline == nil {
		return nil, fmt.Errorf("material %s: %w", instance.Material.Name, core.ErrInvalidPipeline)
	}

	core.LogDebug("create material binding for pipeline %s", pipeline.Name())
	group, err := pipeline.CreateBindingGroup(gpu.BindingGroupMaterialTextures)
	if err != nil {
		return nil, err
	}
	updater := group.Update()
	for _, tex := range instance.Textures {
		gt, err := l.textures.Load(tex)
		if err != nil {
			return nil, err
		}
		updater = updater.BindSampledImage(gt.Image, gpu.ImageLayoutShader).BindSampler(gt.Sampler)
	}
	updater.End()

	b := &metadata.MaterialBinding{InstanceID: instance.ID, Group: group}
	l.bindings[instance.ID] = b
	return b, nil
}

func (l *MaterialInstanceLoader) Len() int {
	return len(l.bindings)
}
