package headless

import (
	"sync"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type Pipeline struct {
	*tracked
	id    gpu.ID
	desc  *gpu.PipelineDesc
	pools gpu.BindingGroupPools
}

func newPipeline(desc *gpu.PipelineDesc) (*Pipeline, error) {
	p := &Pipeline{id: gpu.NewID(), desc: desc}
	pools, err := gpu.NewBindingGroupPools(desc, func(layout gpu.BindingGroupLayout) gpu.BindingGroupFactory {
		return func() (gpu.BindingGroup, error) {
			return &BindingGroup{id: gpu.NewID(), kind: layout.Kind, layout: layout}, nil
		}
	})
	if err != nil {
		return nil, err
	}
	p.pools = pools
	return p, nil
}

func (p *Pipeline) ID() gpu.ID                            { return p.id }
func (p *Pipeline) Name() string                          { return p.desc.Name }
func (p *Pipeline) Type() gpu.PipelineType                { return p.desc.Type }
func (p *Pipeline) VertexAttributes() gpu.VertexAttribute { return p.desc.VertexAttributes }
func (p *Pipeline) Desc() *gpu.PipelineDesc               { return p.desc }

func (p *Pipeline) CreateBindingGroup(kind gpu.BindingGroupType) (gpu.BindingGroup, error) {
	return p.pools.Allocate(kind)
}

func (p *Pipeline) ResetBindingGroups(kind gpu.BindingGroupType) {
	p.pools.Reset(kind)
}

// Allocated reports how many groups of kind are in use.
func (p *Pipeline) Allocated(kind gpu.BindingGroupType) int {
	if pool, ok := p.pools[kind]; ok {
		return pool.Allocated()
	}
	return 0
}

// BindingGroup keeps the ids of the resources written by its last update.
type BindingGroup struct {
	id     gpu.ID
	kind   gpu.BindingGroupType
	layout gpu.BindingGroupLayout

	mu    sync.Mutex
	bound []gpu.ID
}

func (b *BindingGroup) ID() gpu.ID                 { return b.id }
func (b *BindingGroup) Kind() gpu.BindingGroupType { return b.kind }

func (b *BindingGroup) Update() gpu.BindingGroupUpdater {
	return &bindingGroupUpdater{group: b}
}

func (b *BindingGroup) Bound() []gpu.ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]gpu.ID, len(b.bound))
	copy(out, b.bound)
	return out
}

type bindingGroupUpdater struct {
	group *BindingGroup
	ids   []gpu.ID
}

func (u *bindingGroupUpdater) BindBuffer(buf gpu.Buffer) gpu.BindingGroupUpdater {
	u.ids = append(u.ids, buf.ID())
	return u
}

func (u *bindingGroupUpdater) BindSampledImage(img gpu.Image, _ gpu.ImageLayout) gpu.BindingGroupUpdater {
	u.ids = append(u.ids, img.ID())
	return u
}

func (u *bindingGroupUpdater) BindStorageImage(img gpu.Image, _ gpu.ImageLayout) gpu.BindingGroupUpdater {
	u.ids = append(u.ids, img.ID())
	return u
}

func (u *bindingGroupUpdater) BindSampler(s gpu.Sampler) gpu.BindingGroupUpdater {
	u.ids = append(u.ids, s.ID())
	return u
}

func (u *bindingGroupUpdater) End() {
	u.group.mu.Lock()
	defer u.group.mu.Unlock()
	u.group.bound = u.ids
}
