package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// BindingGroup is a descriptor set allocated from its pipeline's pool.
type BindingGroup struct {
	id     gpu.ID
	kind   gpu.BindingGroupType
	layout gpu.BindingGroupLayout
	device *Device
	set    vk.DescriptorSet
}

// allocateGroup must run under the DescriptorManagement lock.
func (p *Pipeline) allocateGroup(layout gpu.BindingGroupLayout) (*BindingGroup, error) {
	pool, ok := p.descPools[layout.Kind]
	if !ok {
		return nil, core.ErrInvalidData
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{p.setLayouts[layout.Kind.Set()]},
	}
	allocInfo.Deref()
	sets := make([]vk.DescriptorSet, 1)
	if err := check(vk.AllocateDescriptorSets(p.device.logical, &allocInfo, &sets[0]), "vkAllocateDescriptorSets"); err != nil {
		return nil, err
	}
	return &BindingGroup{
		id:     gpu.NewID(),
		kind:   layout.Kind,
		layout: layout,
		device: p.device,
		set:    sets[0],
	}, nil
}

func (g *BindingGroup) ID() gpu.ID                 { return g.id }
func (g *BindingGroup) Kind() gpu.BindingGroupType { return g.kind }

func (g *BindingGroup) Update() gpu.BindingGroupUpdater {
	return &bindingGroupUpdater{group: g}
}

// bindingGroupUpdater keeps the info slices alive until End writes them.
type bindingGroupUpdater struct {
	group  *BindingGroup
	writes []vk.WriteDescriptorSet
}

func (u *bindingGroupUpdater) next(kind gpu.BindingType) (vk.WriteDescriptorSet, bool) {
	binding := len(u.writes)
	if binding >= len(u.group.layout.Bindings) {
		core.LogWarn("%s binding group declares %d bindings, binding %d ignored", u.group.kind, len(u.group.layout.Bindings), binding)
		return vk.WriteDescriptorSet{}, false
	}
	if declared := u.group.layout.Bindings[binding]; declared != kind {
		core.LogWarn("%s binding %d declared as %d, got %d", u.group.kind, binding, declared, kind)
	}
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          u.group.set,
		DstBinding:      uint32(binding),
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  toDescriptorType(u.group.layout.Bindings[binding]),
	}, true
}

func (u *bindingGroupUpdater) BindBuffer(buf gpu.Buffer) gpu.BindingGroupUpdater {
	kind := gpu.BindingStorageBuffer
	if buf.Usage() == gpu.BufferUsageUniform {
		kind = gpu.BindingUniformBuffer
	}
	write, ok := u.next(kind)
	if !ok {
		return u
	}
	b, _ := buf.(*Buffer)
	if b == nil {
		core.LogWarn("buffer %s was not created by this device", buf.Name())
		return u
	}
	info := vk.DescriptorBufferInfo{
		Buffer: b.handle,
		Offset: 0,
		Range:  vk.DeviceSize(b.Size()),
	}
	info.Deref()
	write.PBufferInfo = []vk.DescriptorBufferInfo{info}
	write.Deref()
	u.writes = append(u.writes, write)
	return u
}

func (u *bindingGroupUpdater) bindImage(img gpu.Image, layout gpu.ImageLayout, kind gpu.BindingType) gpu.BindingGroupUpdater {
	write, ok := u.next(kind)
	if !ok {
		return u
	}
	i, _ := img.(*Image)
	if i == nil {
		core.LogWarn("image %s was not created by this device", img.Name())
		return u
	}
	info := vk.DescriptorImageInfo{
		ImageView:   i.view,
		ImageLayout: toLayout(layout),
	}
	info.Deref()
	write.PImageInfo = []vk.DescriptorImageInfo{info}
	write.Deref()
	u.writes = append(u.writes, write)
	return u
}

func (u *bindingGroupUpdater) BindSampledImage(img gpu.Image, layout gpu.ImageLayout) gpu.BindingGroupUpdater {
	return u.bindImage(img, layout, gpu.BindingSampledImage)
}

func (u *bindingGroupUpdater) BindStorageImage(img gpu.Image, layout gpu.ImageLayout) gpu.BindingGroupUpdater {
	return u.bindImage(img, layout, gpu.BindingStorageImage)
}

func (u *bindingGroupUpdater) BindSampler(s gpu.Sampler) gpu.BindingGroupUpdater {
	write, ok := u.next(gpu.BindingSampler)
	if !ok {
		return u
	}
	sampler, _ := s.(*Sampler)
	if sampler == nil {
		core.LogWarn("sampler was not created by this device")
		return u
	}
	info := vk.DescriptorImageInfo{Sampler: sampler.handle}
	info.Deref()
	write.PImageInfo = []vk.DescriptorImageInfo{info}
	write.Deref()
	u.writes = append(u.writes, write)
	return u
}

func (u *bindingGroupUpdater) End() {
	if len(u.writes) == 0 {
		return
	}
	vk.UpdateDescriptorSets(u.group.device.logical, uint32(len(u.writes)), u.writes, 0, nil)
	u.writes = nil
}
