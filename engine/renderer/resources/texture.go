package resources

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/systems"
)

// GPUTexture is a texture uploaded to the device, ready to be sampled.
type GPUTexture struct {
	Texture *Texture
	Image   gpu.Image
	Sampler gpu.Sampler
}

// ToRGBA converts any image to 8 bit RGBA with its origin at 0,0.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

type TextureManager struct {
	device  gpu.Device
	buffers *BufferPool
	jobs    *systems.JobSystem

	mu       sync.Mutex
	textures map[gpu.ID]*GPUTexture
}

// NewTextureManager creates the manager. jobs may be nil, Preload then
// converts the textures on the calling goroutine.
func NewTextureManager(device gpu.Device, buffers *BufferPool, jobs *systems.JobSystem) *TextureManager {
	return &TextureManager{
		device:   device,
		buffers:  buffers,
		jobs:     jobs,
		textures: map[gpu.ID]*GPUTexture{},
	}
}

// Load returns the GPU copy of tex, uploading it on first use.
func (tm *TextureManager) Load(tex *Texture) (*GPUTexture, error) {
	if gt, ok := tm.cached(tex); ok {
		return gt, nil
	}
	if tex.Image == nil {
		return nil, fmt.Errorf("texture %s has no image: %w", tex.Name, core.ErrInvalidData)
	}
	return tm.upload(tex, ToRGBA(tex.Image))
}

func (tm *TextureManager) cached(tex *Texture) (*GPUTexture, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	gt, ok := tm.textures[tex.ID]
	return gt, ok
}

func (tm *TextureManager) upload(tex *Texture, rgba *image.RGBA) (*GPUTexture, error) {
	extent := gpu.NewExtent2D(uint32(rgba.Rect.Dx()), uint32(rgba.Rect.Dy()))
	if extent.IsZero() {
		return nil, fmt.Errorf("texture %s is empty: %w", tex.Name, core.ErrInvalidData)
	}

	staging, err := tm.buffers.Get("texture staging", gpu.BufferUsageStaging, uint64(len(rgba.Pix)))
	if err != nil {
		return nil, err
	}
	defer tm.buffers.Put(staging)
	if err := staging.Write(rgba.Pix, 0); err != nil {
		return nil, err
	}

	img, err := tm.device.NewImage(tex.Name, tex.Format, gpu.ImageUsageTexture, extent)
	if err != nil {
		return nil, err
	}
	sampler, err := tm.device.NewSampler(tex.Filter, tex.Filter)
	if err != nil {
		img.Destroy()
		return nil, err
	}

	err = tm.device.RunImmediate(func(cmd gpu.CommandList) {
		cmd.TransitionImageLayout(img, gpu.ImageLayoutTransferDst)
		cmd.CopyBufferToImage(staging, img, extent)
		cmd.TransitionImageLayout(img, gpu.ImageLayoutShader)
	})
	if err != nil {
		sampler.Destroy()
		img.Destroy()
		return nil, err
	}

	gt := &GPUTexture{Texture: tex, Image: img, Sampler: sampler}
	tm.mu.Lock()
	tm.textures[tex.ID] = gt
	tm.mu.Unlock()
	core.LogDebug("uploaded texture %s (%s)", tex.Name, extent)
	return gt, nil
}

// Preload converts the textures in the job system and uploads them in
// order. progress, if set, is called after each upload.
func (tm *TextureManager) Preload(textures []*Texture, progress func(done, total int)) error {
	pending := make([]*Texture, 0, len(textures))
	for _, tex := range textures {
		if _, ok := tm.cached(tex); !ok && tex.Image != nil {
			pending = append(pending, tex)
		}
	}

	converted := make([]*image.RGBA, len(pending))
	if tm.jobs == nil {
		for i, tex := range pending {
			converted[i] = ToRGBA(tex.Image)
		}
	} else {
		var wg sync.WaitGroup
		wg.Add(len(pending))
		for i, tex := range pending {
			i, tex := i, tex
			tm.jobs.Submit(systems.JobTask{
				Name: "convert " + tex.Name,
				Run: func() error {
					converted[i] = ToRGBA(tex.Image)
					return nil
				},
				OnCompletionCallback: wg.Done,
			})
		}
		wg.Wait()
	}

	for i, tex := range pending {
		if _, err := tm.upload(tex, converted[i]); err != nil {
			return fmt.Errorf("failed to preload texture %s: %w", tex.Name, err)
		}
		if progress != nil {
			progress(i+1, len(pending))
		}
	}
	return nil
}

func (tm *TextureManager) Len() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return len(tm.textures)
}

func (tm *TextureManager) Destroy() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for id, gt := range tm.textures {
		gt.Sampler.Destroy()
		gt.Image.Destroy()
		delete(tm.textures, id)
	}
}
