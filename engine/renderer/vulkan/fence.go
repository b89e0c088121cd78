package vulkan

import (
	"context"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

type Fence struct {
	id     gpu.ID
	device *Device
	handle vk.Fence
}

func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	return d.newFence(signaled)
}

func (d *Device) newFence(signaled bool) (*Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if err := check(vk.CreateFence(d.logical, &fenceCreateInfo, nil, &handle), "vkCreateFence"); err != nil {
		return nil, err
	}
	return &Fence{id: gpu.NewID(), device: d, handle: handle}, nil
}

func (f *Fence) ID() gpu.ID { return f.id }

// Wait polls in short slices so a cancelled context is noticed while the
// GPU is still busy.
func (f *Fence) Wait(ctx context.Context) error {
	for {
		result := vk.WaitForFences(f.device.logical, 1, []vk.Fence{f.handle}, vk.True, uint64(fenceWaitSlice))
		switch result {
		case vk.Success:
			return nil
		case vk.Timeout:
		case vk.ErrorDeviceLost:
			return fmt.Errorf("fence wait: %w", core.ErrDeviceLost)
		default:
			return check(result, "vkWaitForFences")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (f *Fence) Reset() error {
	return check(vk.ResetFences(f.device.logical, 1, []vk.Fence{f.handle}), "vkResetFences")
}

func (f *Fence) Signaled() bool {
	return vk.GetFenceStatus(f.device.logical, f.handle) == vk.Success
}

func (f *Fence) Destroy() {
	if f.handle != nil {
		vk.DestroyFence(f.device.logical, f.handle, nil)
		f.handle = nil
	}
}

type Semaphore struct {
	id     gpu.ID
	device *Device
	handle vk.Semaphore
}

func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if err := check(vk.CreateSemaphore(d.logical, &semaphoreCreateInfo, nil, &handle), "vkCreateSemaphore"); err != nil {
		return nil, err
	}
	return &Semaphore{id: gpu.NewID(), device: d, handle: handle}, nil
}

func (s *Semaphore) ID() gpu.ID { return s.id }

func (s *Semaphore) Destroy() {
	if s.handle != vk.NullSemaphore {
		vk.DestroySemaphore(s.device.logical, s.handle, nil)
		s.handle = vk.NullSemaphore
	}
}
