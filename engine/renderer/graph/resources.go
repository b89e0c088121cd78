package graph

import (
	"fmt"
	"sort"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// GraphResourceManager owns the named images shared by the passes of a
// graph.
type GraphResourceManager struct {
	device gpu.Device
	images map[string]gpu.Image
}

func NewGraphResourceManager(device gpu.Device) *GraphResourceManager {
	return &GraphResourceManager{
		device: device,
		images: map[string]gpu.Image{},
	}
}

// RegisterImage creates the image name. Registering a name twice keeps the
// first image.
func (r *GraphResourceManager) RegisterImage(name string, format gpu.ImageFormat, usage gpu.ImageUsage, extent gpu.Extent2D) error {
	if _, ok := r.images[name]; ok {
		core.LogDebug("image %s already registered", name)
		return nil
	}
	img, err := r.device.NewImage(name, format, usage, extent)
	if err != nil {
		return fmt.Errorf("failed to create image %s: %w", name, err)
	}
	r.images[name] = img
	return nil
}

// Image panics when name was never registered.
func (r *GraphResourceManager) Image(name string) gpu.Image {
	img, ok := r.images[name]
	if !ok {
		panic(fmt.Errorf("image %q: %w", name, core.ErrAttachmentNotRegistered))
	}
	return img
}

func (r *GraphResourceManager) Has(name string) bool {
	_, ok := r.images[name]
	return ok
}

func (r *GraphResourceManager) ImageRead(name string, cmd gpu.CommandList) gpu.Image {
	img := r.Image(name)
	cmd.TransitionImageLayout(img, gpu.ImageLayoutShader)
	return img
}

func (r *GraphResourceManager) ImageWrite(name string, cmd gpu.CommandList) gpu.Image {
	img := r.Image(name)
	if img.Usage() == gpu.ImageUsageDepth {
		cmd.TransitionImageLayout(img, gpu.ImageLayoutDepth)
	} else {
		cmd.TransitionImageLayout(img, gpu.ImageLayoutColor)
	}
	return img
}

// Invalidate resets the tracked layout of every image to undefined.
func (r *GraphResourceManager) Invalidate() {
	for _, img := range r.images {
		img.Invalidate()
	}
}

func (r *GraphResourceManager) Names() []string {
	names := make([]string, 0, len(r.images))
	for name := range r.images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *GraphResourceManager) Destroy() {
	for name, img := range r.images {
		img.Destroy()
		delete(r.images, name)
	}
}
