package gpu

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
)

// BindingGroupFactory creates one backend binding group.
type BindingGroupFactory func() (BindingGroup, error)

// BindingGroupPool hands out pre-allocated binding groups of one kind for
// one pipeline.
type BindingGroupPool struct {
	kind   BindingGroupType
	groups []BindingGroup
	next   int
}

func NewBindingGroupPool(kind BindingGroupType, capacity int, factory BindingGroupFactory) (*BindingGroupPool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("pool %s needs a positive capacity, got %d: %w", kind, capacity, core.ErrPoolExhausted)
	}
	pool := &BindingGroupPool{
		kind:   kind,
		groups: make([]BindingGroup, 0, capacity),
	}
	for i := 0; i < capacity; i++ {
		bg, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to allocate %s binding group %d: %w", kind, i, err)
		}
		pool.groups = append(pool.groups, bg)
	}
	return pool, nil
}

// Allocate returns the next free group. The pool never grows.
func (p *BindingGroupPool) Allocate() (BindingGroup, error) {
	if p.next >= len(p.groups) {
		return nil, fmt.Errorf("%s pool of %d: %w", p.kind, len(p.groups), core.ErrPoolExhausted)
	}
	bg := p.groups[p.next]
	p.next++
	return bg, nil
}

// Reset invalidates every allocation. The handles are kept for reuse.
func (p *BindingGroupPool) Reset() {
	p.next = 0
}

func (p *BindingGroupPool) Kind() BindingGroupType {
	return p.kind
}

func (p *BindingGroupPool) Capacity() int {
	return len(p.groups)
}

func (p *BindingGroupPool) Allocated() int {
	return p.next
}

// BindingGroupPools keeps one pool per kind declared by a pipeline.
type BindingGroupPools map[BindingGroupType]*BindingGroupPool

// NewBindingGroupPools builds a pool for every layout of desc. The factory
// receives the layout of the group to create.
func NewBindingGroupPools(desc *PipelineDesc, factory func(layout BindingGroupLayout) BindingGroupFactory) (BindingGroupPools, error) {
	capacity := desc.MaxBindingGroups
	if capacity == 0 {
		capacity = DefaultMaxBindingGroups
	}
	pools := BindingGroupPools{}
	for _, layout := range desc.BindingGroups {
		pool, err := NewBindingGroupPool(layout.Kind, capacity, factory(layout))
		if err != nil {
			return nil, err
		}
		pools[layout.Kind] = pool
	}
	return pools, nil
}

func (p BindingGroupPools) Allocate(kind BindingGroupType) (BindingGroup, error) {
	pool, ok := p[kind]
	if !ok {
		return nil, fmt.Errorf("pipeline has no %s binding group: %w", kind, core.ErrInvalidData)
	}
	return pool.Allocate()
}

func (p BindingGroupPools) Reset(kind BindingGroupType) {
	if pool, ok := p[kind]; ok {
		pool.Reset()
	}
}
