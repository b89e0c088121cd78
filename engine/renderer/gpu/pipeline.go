package gpu

// BindingGroupLayout declares the bindings of one binding group kind.
type BindingGroupLayout struct {
	Kind     BindingGroupType
	Stage    ShaderStage
	Bindings []BindingType
}

type PipelineDesc struct {
	Name string
	Type PipelineType

	VertexShader   string
	FragmentShader string
	ComputeShader  string

	VertexAttributes VertexAttribute
	BindingGroups    []BindingGroupLayout
	PushConstantSize uint32

	CullMode    CullMode
	PolygonMode PolygonMode
	DepthTest   bool
	DepthWrite  bool
	Blending    bool

	ColorFormat ImageFormat
	DepthFormat ImageFormat

	// MaxBindingGroups is the capacity of each binding group pool.
	MaxBindingGroups int
}

const DefaultMaxBindingGroups = 64

func NewGraphicsPipelineDesc(name string) *PipelineDesc {
	return &PipelineDesc{
		Name:             name,
		Type:             PipelineGraphics,
		ColorFormat:      ImageFormatR16g16b16a16Sfloat,
		DepthFormat:      ImageFormatD32Sfloat,
		MaxBindingGroups: DefaultMaxBindingGroups,
	}
}

func NewComputePipelineDesc(name string) *PipelineDesc {
	return &PipelineDesc{
		Name:             name,
		Type:             PipelineCompute,
		MaxBindingGroups: DefaultMaxBindingGroups,
	}
}

func (d *PipelineDesc) WithShaders(vertex, fragment string) *PipelineDesc {
	d.VertexShader = vertex
	d.FragmentShader = fragment
	return d
}

func (d *PipelineDesc) WithComputeShader(compute string) *PipelineDesc {
	d.ComputeShader = compute
	return d
}

func (d *PipelineDesc) WithVertexAttributes(attr VertexAttribute) *PipelineDesc {
	d.VertexAttributes = attr
	return d
}

func (d *PipelineDesc) WithBindingGroup(kind BindingGroupType, stage ShaderStage, bindings ...BindingType) *PipelineDesc {
	d.BindingGroups = append(d.BindingGroups, BindingGroupLayout{
		Kind:     kind,
		Stage:    stage,
		Bindings: bindings,
	})
	return d
}

func (d *PipelineDesc) WithPushConstants(size uint32) *PipelineDesc {
	d.PushConstantSize = size
	return d
}

func (d *PipelineDesc) WithRasterizer(cull CullMode, polygon PolygonMode) *PipelineDesc {
	d.CullMode = cull
	d.PolygonMode = polygon
	return d
}

func (d *PipelineDesc) WithDepth(test, write bool) *PipelineDesc {
	d.DepthTest = test
	d.DepthWrite = write
	return d
}

func (d *PipelineDesc) WithBlending(enabled bool) *PipelineDesc {
	d.Blending = enabled
	return d
}

func (d *PipelineDesc) WithMaxBindingGroups(n int) *PipelineDesc {
	d.MaxBindingGroups = n
	return d
}

// Layout returns the declared layout for kind.
func (d *PipelineDesc) Layout(kind BindingGroupType) (BindingGroupLayout, bool) {
	for _, l := range d.BindingGroups {
		if l.Kind == kind {
			return l, true
		}
	}
	return BindingGroupLayout{}, false
}

type Pipeline interface {
	ID() ID
	Name() string
	Type() PipelineType
	VertexAttributes() VertexAttribute
	// CreateBindingGroup allocates from the pool of the given kind.
	CreateBindingGroup(kind BindingGroupType) (BindingGroup, error)
	// ResetBindingGroups makes every group of that kind allocatable again.
	ResetBindingGroups(kind BindingGroupType)
	Destroy()
}

type BindingGroup interface {
	ID() ID
	Kind() BindingGroupType
	Update() BindingGroupUpdater
}

// BindingGroupUpdater accumulates bindings in declaration order and writes
// them on End.
type BindingGroupUpdater interface {
	BindBuffer(buf Buffer) BindingGroupUpdater
	BindSampledImage(img Image, layout ImageLayout) BindingGroupUpdater
	BindStorageImage(img Image, layout ImageLayout) BindingGroupUpdater
	BindSampler(s Sampler) BindingGroupUpdater
	End()
}
