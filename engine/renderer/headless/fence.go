package headless

import (
	"context"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// Fence is signaled by the device when the submission it guards completes.
// Wait blocks on a channel, so a pending fence really stalls the caller.
type Fence struct {
	*tracked
	id gpu.ID

	mu       sync.Mutex
	signaled bool
	done     chan struct{}
}

func newFence(signaled bool) *Fence {
	f := &Fence{id: gpu.NewID(), done: make(chan struct{})}
	if signaled {
		f.signaled = true
		close(f.done)
	}
	return f
}

func (f *Fence) ID() gpu.ID { return f.id }

func (f *Fence) Wait(ctx context.Context) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
	return nil
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *Fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		f.signaled = true
		close(f.done)
	}
}
