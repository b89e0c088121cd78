package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// Display is an offscreen surface with a single swapchain image.
type Display struct {
	mu          sync.Mutex
	extent      gpu.Extent2D
	target      *Image
	presented   int
	failAcquire bool
	failPresent bool
	recorder    *Recorder
}

func NewDisplay(device *Device, extent gpu.Extent2D) *Display {
	d := &Display{recorder: device.recorder}
	d.resize(extent)
	return d
}

func (d *Display) resize(extent gpu.Extent2D) {
	d.extent = extent
	d.target = newImage("swapchain", gpu.ImageFormatB8g8r8a8Unorm, gpu.ImageUsageSwapchain, extent)
}

func (d *Display) Extent() gpu.Extent2D {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extent
}

func (d *Display) Format() gpu.ImageFormat {
	return gpu.ImageFormatB8g8r8a8Unorm
}

func (d *Display) Acquire(wait gpu.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAcquire {
		d.failAcquire = false
		return fmt.Errorf("acquire: %w", core.ErrOutdated)
	}
	d.target.Invalidate()
	return nil
}

func (d *Display) RenderTarget() gpu.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

func (d *Display) Present(signal gpu.Semaphore) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recorder.record(Command{Op: OpPresent, Target: d.target.name, TargetID: d.target.id})
	if d.target.Layout() != gpu.ImageLayoutPresent {
		d.recorder.violation("present of %s in layout %s", d.target.name, d.target.Layout())
	}
	if d.failPresent {
		d.failPresent = false
		return fmt.Errorf("present: %w", core.ErrOutdated)
	}
	d.presented++
	return nil
}

func (d *Display) Resize(extent gpu.Extent2D) error {
	if extent.IsZero() {
		return fmt.Errorf("resize to %s: %w", extent, core.ErrInvalidData)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resize(extent)
	return nil
}

// FailNextAcquire makes the next Acquire report an outdated surface.
func (d *Display) FailNextAcquire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAcquire = true
}

func (d *Display) FailNextPresent() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failPresent = true
}

// Presented is the number of successful presents.
func (d *Display) Presented() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presented
}

// Target returns the swapchain image with access to its pixels.
func (d *Display) Target() *Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

func (d *Display) Destroy() {}
