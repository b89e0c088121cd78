package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// Pipeline holds the layout shared by every variant. Graphics pipelines are
// built per render pass on first bind, since the attachments of a pass are
// only known once it begins rendering.
type Pipeline struct {
	id     gpu.ID
	desc   gpu.PipelineDesc
	device *Device

	layout     vk.PipelineLayout
	setLayouts [bindingGroupSets]vk.DescriptorSetLayout
	descPools  map[gpu.BindingGroupType]vk.DescriptorPool
	pools      gpu.BindingGroupPools
	stages     []*shaderStage

	mu       sync.Mutex
	compute  vk.Pipeline
	variants map[renderPassKey]vk.Pipeline
	// descriptor sets bound by BindResourceBuffer, per kind and buffer
	bufferGroups map[gpu.BindingGroupType]map[gpu.ID]*BindingGroup
}

func (d *Device) NewPipeline(desc *gpu.PipelineDesc) (gpu.Pipeline, error) {
	if desc.Type == gpu.PipelineGraphics && desc.VertexShader == "" {
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, core.ErrInvalidPipeline)
	}
	if desc.Type == gpu.PipelineCompute && desc.ComputeShader == "" {
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, core.ErrInvalidPipeline)
	}
	p := &Pipeline{
		id:           gpu.NewID(),
		desc:         *desc,
		device:       d,
		descPools:    map[gpu.BindingGroupType]vk.DescriptorPool{},
		variants:     map[renderPassKey]vk.Pipeline{},
		bufferGroups: map[gpu.BindingGroupType]map[gpu.ID]*BindingGroup{},
	}
	if err := p.init(); err != nil {
		p.Destroy()
		return nil, fmt.Errorf("pipeline %s: %w", desc.Name, err)
	}
	core.LogDebug("%s pipeline %s created", desc.Type, desc.Name)
	return p, nil
}

func (p *Pipeline) init() error {
	d := p.device
	if err := p.createSetLayouts(); err != nil {
		return err
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: bindingGroupSets,
		PSetLayouts:    p.setLayouts[:],
	}
	if p.desc.PushConstantSize > 0 {
		pushRange := vk.PushConstantRange{
			StageFlags: p.pushStages(),
			Offset:     0,
			Size:       p.desc.PushConstantSize,
		}
		pushRange.Deref()
		layoutInfo.PushConstantRangeCount = 1
		layoutInfo.PPushConstantRanges = []vk.PushConstantRange{pushRange}
	}
	layoutInfo.Deref()
	if err := check(vk.CreatePipelineLayout(d.logical, &layoutInfo, nil, &p.layout), "vkCreatePipelineLayout"); err != nil {
		return err
	}

	pools, err := gpu.NewBindingGroupPools(&p.desc, func(layout gpu.BindingGroupLayout) gpu.BindingGroupFactory {
		return func() (gpu.BindingGroup, error) {
			return p.allocateGroup(layout)
		}
	})
	if err != nil {
		return err
	}
	p.pools = pools

	if p.desc.Type == gpu.PipelineCompute {
		return p.createCompute()
	}
	vertex, err := d.newShaderStage(p.desc.VertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return err
	}
	p.stages = append(p.stages, vertex)
	if p.desc.FragmentShader != "" {
		fragment, err := d.newShaderStage(p.desc.FragmentShader, vk.ShaderStageFragmentBit)
		if err != nil {
			return err
		}
		p.stages = append(p.stages, fragment)
	}
	return nil
}

func (p *Pipeline) pushStages() vk.ShaderStageFlags {
	if p.desc.Type == gpu.PipelineCompute {
		return vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	}
	return vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
}

// createSetLayouts fills every set slot, slots the pipeline does not declare
// get an empty layout.
func (p *Pipeline) createSetLayouts() error {
	d := p.device
	for set := uint32(0); set < bindingGroupSets; set++ {
		var bindings []vk.DescriptorSetLayoutBinding
		for _, layout := range p.desc.BindingGroups {
			if layout.Kind.Set() != set {
				continue
			}
			if len(layout.Bindings) > maxBindingsPerGroup {
				return fmt.Errorf("%s declares %d bindings, at most %d: %w", layout.Kind, len(layout.Bindings), maxBindingsPerGroup, core.ErrInvalidData)
			}
			for i, b := range layout.Bindings {
				binding := vk.DescriptorSetLayoutBinding{
					Binding:         uint32(i),
					DescriptorType:  toDescriptorType(b),
					DescriptorCount: 1,
					StageFlags:      toStageFlags(layout.Stage),
				}
				binding.Deref()
				bindings = append(bindings, binding)
			}
			if err := p.createDescriptorPool(layout); err != nil {
				return err
			}
		}
		info := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}
		info.Deref()
		if err := check(vk.CreateDescriptorSetLayout(d.logical, &info, nil, &p.setLayouts[set]), "vkCreateDescriptorSetLayout"); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) createDescriptorPool(layout gpu.BindingGroupLayout) error {
	capacity := p.desc.MaxBindingGroups
	if capacity <= 0 {
		capacity = gpu.DefaultMaxBindingGroups
	}
	maxSets := uint32(capacity + bufferGroupsPerKind)

	counts := map[vk.DescriptorType]uint32{}
	for _, b := range layout.Bindings {
		counts[toDescriptorType(b)] += maxSets
	}
	sizes := make([]vk.DescriptorPoolSize, 0, len(counts))
	for t, n := range counts {
		size := vk.DescriptorPoolSize{Type: t, DescriptorCount: n}
		size.Deref()
		sizes = append(sizes, size)
	}

	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	info.Deref()
	var pool vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(p.device.logical, &info, nil, &pool), "vkCreateDescriptorPool"); err != nil {
		return err
	}
	p.descPools[layout.Kind] = pool
	return nil
}

func (p *Pipeline) createCompute() error {
	d := p.device
	stage, err := d.newShaderStage(p.desc.ComputeShader, vk.ShaderStageComputeBit)
	if err != nil {
		return err
	}
	p.stages = append(p.stages, stage)

	info := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stage.info,
		Layout: p.layout,
	}
	info.Deref()
	pipelines := make([]vk.Pipeline, 1)
	if err := check(vk.CreateComputePipelines(d.logical, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines), "vkCreateComputePipelines"); err != nil {
		return err
	}
	p.compute = pipelines[0]
	return nil
}

// handle returns the pipeline to bind inside the render pass of key.
func (p *Pipeline) handle(key renderPassKey, rp vk.RenderPass) (vk.Pipeline, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.desc.Type == gpu.PipelineCompute {
		return p.compute, nil
	}
	if h, ok := p.variants[key]; ok {
		return h, nil
	}
	h, err := p.createGraphics(key, rp)
	if err != nil {
		return nil, err
	}
	p.variants[key] = h
	return h, nil
}

func (p *Pipeline) createGraphics(key renderPassKey, rp vk.RenderPass) (vk.Pipeline, error) {
	// Viewport and scissor are dynamic, only their counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	viewportState.Deref()

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	if p.desc.PolygonMode == gpu.PolygonModeLine {
		rasterizerCreateInfo.PolygonMode = vk.PolygonModeLine
	}
	switch p.desc.CullMode {
	case gpu.CullModeNone:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeNone)
	case gpu.CullModeFront:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)
	default:
		rasterizerCreateInfo.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}
	rasterizerCreateInfo.Deref()

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	multisamplingCreateInfo.Deref()

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
	}
	if key.depth != vk.FormatUndefined {
		if p.desc.DepthTest {
			depthStencil.DepthTestEnable = vk.True
			depthStencil.DepthCompareOp = vk.CompareOpLessOrEqual
		}
		if p.desc.DepthWrite {
			depthStencil.DepthWriteEnable = vk.True
		}
	}
	depthStencil.Deref()

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if p.desc.Blending {
		colorBlendAttachmentState.BlendEnable = vk.True
		colorBlendAttachmentState.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		colorBlendAttachmentState.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		colorBlendAttachmentState.ColorBlendOp = vk.BlendOpAdd
		colorBlendAttachmentState.SrcAlphaBlendFactor = vk.BlendFactorOne
		colorBlendAttachmentState.DstAlphaBlendFactor = vk.BlendFactorZero
		colorBlendAttachmentState.AlphaBlendOp = vk.BlendOpAdd
	}
	colorBlendAttachmentState.Deref()

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:         vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable: vk.False,
		LogicOp:       vk.LogicOpCopy,
	}
	if key.color != vk.FormatUndefined {
		colorBlendStateCreateInfo.AttachmentCount = 1
		colorBlendStateCreateInfo.PAttachments = []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState}
	}
	colorBlendStateCreateInfo.Deref()

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}
	dynamicStateCreateInfo.Deref()

	binding, attributes := vertexInput(p.desc.VertexAttributes)
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{binding},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	vertexInputInfo.Deref()

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	inputAssembly.Deref()

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(p.stages))
	for _, s := range p.stages {
		stages = append(stages, s.info)
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              p.layout,
		RenderPass:          rp,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
	pipelineCreateInfo.Deref()

	pipelines := make([]vk.Pipeline, 1)
	result := vk.CreateGraphicsPipelines(p.device.logical, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, nil, pipelines)
	if err := check(result, "vkCreateGraphicsPipelines "+p.desc.Name); err != nil {
		return nil, err
	}
	core.LogDebug("pipeline %s built for color %d, depth %d", p.desc.Name, key.color, key.depth)
	return pipelines[0], nil
}

func (p *Pipeline) ID() gpu.ID                            { return p.id }
func (p *Pipeline) Name() string                          { return p.desc.Name }
func (p *Pipeline) Type() gpu.PipelineType                { return p.desc.Type }
func (p *Pipeline) VertexAttributes() gpu.VertexAttribute { return p.desc.VertexAttributes }

func (p *Pipeline) bindPoint() vk.PipelineBindPoint {
	if p.desc.Type == gpu.PipelineCompute {
		return vk.PipelineBindPointCompute
	}
	return vk.PipelineBindPointGraphics
}

func (p *Pipeline) CreateBindingGroup(kind gpu.BindingGroupType) (gpu.BindingGroup, error) {
	var bg gpu.BindingGroup
	err := p.device.locks.SafeCall(DescriptorManagement, func() error {
		var err error
		bg, err = p.pools.Allocate(kind)
		return err
	})
	return bg, err
}

func (p *Pipeline) ResetBindingGroups(kind gpu.BindingGroupType) {
	p.device.locks.SafeCall(DescriptorManagement, func() error {
		p.pools.Reset(kind)
		return nil
	})
}

// bufferGroup returns the set of kind holding buf alone, written once.
func (p *Pipeline) bufferGroup(buf gpu.Buffer, kind gpu.BindingGroupType) (*BindingGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	groups, ok := p.bufferGroups[kind]
	if !ok {
		groups = map[gpu.ID]*BindingGroup{}
		p.bufferGroups[kind] = groups
	}
	if bg, ok := groups[buf.ID()]; ok {
		return bg, nil
	}
	layout, ok := p.desc.Layout(kind)
	if !ok {
		return nil, fmt.Errorf("pipeline %s has no %s binding group: %w", p.desc.Name, kind, core.ErrInvalidData)
	}
	if len(groups) >= bufferGroupsPerKind {
		return nil, fmt.Errorf("pipeline %s bound %d %s buffers: %w", p.desc.Name, len(groups), kind, core.ErrPoolExhausted)
	}
	var bg *BindingGroup
	err := p.device.locks.SafeCall(DescriptorManagement, func() error {
		var err error
		bg, err = p.allocateGroup(layout)
		return err
	})
	if err != nil {
		return nil, err
	}
	bg.Update().BindBuffer(buf).End()
	groups[buf.ID()] = bg
	return bg, nil
}

func (p *Pipeline) Destroy() {
	d := p.device
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, h := range p.variants {
		vk.DestroyPipeline(d.logical, h, nil)
		delete(p.variants, key)
	}
	if p.compute != nil {
		vk.DestroyPipeline(d.logical, p.compute, nil)
		p.compute = nil
	}
	for _, s := range p.stages {
		s.destroy(d)
	}
	p.stages = nil
	// destroying a pool frees its sets
	for kind, pool := range p.descPools {
		vk.DestroyDescriptorPool(d.logical, pool, nil)
		delete(p.descPools, kind)
	}
	for i, l := range p.setLayouts {
		if l != nil {
			vk.DestroyDescriptorSetLayout(d.logical, l, nil)
			p.setLayouts[i] = nil
		}
	}
	if p.layout != nil {
		vk.DestroyPipelineLayout(d.logical, p.layout, nil)
		p.layout = nil
	}
}

// vertexInput describes the padded interleaved layout the mesh manager
// uploads. Locations follow the packing order of the attributes.
func vertexInput(attrs gpu.VertexAttribute) (vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	if attrs == 0 {
		attrs = gpu.VertexPosition
	}
	stride, offsets := attrs.PaddedLayout()
	binding := vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(stride),
		InputRate: vk.VertexInputRateVertex,
	}
	flags := attrs.Flags()
	attributes := make([]vk.VertexInputAttributeDescription, 0, len(flags))
	for i, f := range flags {
		format := vk.FormatR32g32b32Sfloat
		switch f.Size() {
		case 8:
			format = vk.FormatR32g32Sfloat
		case 16:
			format = vk.FormatR32g32b32a32Sfloat
		}
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  0,
			Format:   format,
			Offset:   uint32(offsets[i]),
		})
	}
	return binding, attributes
}
