package vulkan

import "sync"

type LockGroup string

const (
	SubmitManagement     LockGroup = "submit_management"
	RenderpassManagement LockGroup = "renderpass_management"
	DescriptorManagement LockGroup = "descriptor_management"
	ResourceManagement   LockGroup = "resource_management"
)

// LockPool serialises the calls Vulkan requires to be externally
// synchronised: queue submission, descriptor pool use and the render pass
// caches.
type LockPool struct {
	mu    sync.Mutex
	locks map[LockGroup]*sync.Mutex
}

func NewLockPool() *LockPool {
	return &LockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

func (lp *LockPool) lock(group LockGroup) *sync.Mutex {
	lp.mu.Lock()
	l, ok := lp.locks[group]
	if !ok {
		l = &sync.Mutex{}
		lp.locks[group] = l
	}
	lp.mu.Unlock()

	l.Lock()
	return l
}

func (lp *LockPool) SafeCall(group LockGroup, fn func() error) error {
	l := lp.lock(group)
	defer l.Unlock()
	return fn()
}
