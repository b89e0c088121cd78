package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/pass"
)

const (
	MinRenderScaling = 0.1
	MaxRenderScaling = 1.0
)

// attachmentExtent is the minimum size of the graph images, so a window
// resize below it does not recreate them.
var attachmentExtent = gpu.NewExtent2D(1920, 1080)

type GraphContext struct {
	Device         gpu.Device
	Display        gpu.Display
	FramesInFlight int
	RenderScaling  float32
}

// FrameData holds the per slot objects of a frame in flight.
type FrameData struct {
	ID     int
	Number uint64
	Cmd    gpu.CommandList
	// Fence is signaled when the GPU is done with the last submission of the
	// slot.
	Fence              gpu.Fence
	SwapchainSemaphore gpu.Semaphore
	RenderSemaphore    gpu.Semaphore
}

func newFrameData(device gpu.Device, id int) (*FrameData, error) {
	cmd, err := device.NewCommandList(fmt.Sprintf("frame %d", id))
	if err != nil {
		return nil, err
	}
	fence, err := device.NewFence(true)
	if err != nil {
		return nil, err
	}
	swapchain, err := device.NewSemaphore()
	if err != nil {
		fence.Destroy()
		return nil, err
	}
	render, err := device.NewSemaphore()
	if err != nil {
		fence.Destroy()
		swapchain.Destroy()
		return nil, err
	}
	return &FrameData{
		ID:                 id,
		Cmd:                cmd,
		Fence:              fence,
		SwapchainSemaphore: swapchain,
		RenderSemaphore:    render,
	}, nil
}

func (f *FrameData) destroy() {
	f.Fence.Destroy()
	f.SwapchainSemaphore.Destroy()
	f.RenderSemaphore.Destroy()
}

// FrameGraph schedules the passes of a frame and owns the images they
// share.
type FrameGraph struct {
	device  gpu.Device
	display gpu.Display

	frameNumber   uint64
	drawExtent    gpu.Extent2D
	renderScaling float32

	passes    []pass.RenderPass
	resources *GraphResourceManager
	frames    []*FrameData
}

// New creates an empty graph with its frame slots.
func New(ctx GraphContext) (*FrameGraph, error) {
	if ctx.FramesInFlight < 1 {
		ctx.FramesInFlight = 2
	}
	if ctx.RenderScaling == 0 {
		ctx.RenderScaling = MaxRenderScaling
	}
	g := &FrameGraph{
		device:        ctx.Device,
		display:       ctx.Display,
		renderScaling: math.Clamp(ctx.RenderScaling, MinRenderScaling, MaxRenderScaling),
		resources:     NewGraphResourceManager(ctx.Device),
	}
	for i := 0; i < ctx.FramesInFlight; i++ {
		frame, err := newFrameData(ctx.Device, i)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("failed to create frame %d: %w", i, err)
		}
		g.frames = append(g.frames, frame)
	}
	return g, nil
}

func (g *FrameGraph) registerTargets(color, depth bool) error {
	extent := g.display.Extent().Max(attachmentExtent)
	if color {
		if err := g.resources.RegisterImage(pass.DrawImage, gpu.ImageFormatR16g16b16a16Sfloat, gpu.ImageUsageColor, extent); err != nil {
			return err
		}
	}
	if depth {
		if err := g.resources.RegisterImage(pass.DepthImage, gpu.ImageFormatD32Sfloat, gpu.ImageUsageDepth, extent); err != nil {
			return err
		}
	}
	return nil
}

// NewDefault builds the background compute pass, the passes scheduled by
// graph name in cfg and the present pass.
func NewDefault(ctx GraphContext, cfg *GraphConfig, name string) (*FrameGraph, error) {
	g, err := New(ctx)
	if err != nil {
		return nil, err
	}
	built := false
	defer g.closeUnless(&built)

	if err := g.registerTargets(true, true); err != nil {
		return nil, err
	}
	if err := cfg.RegisterAttachments(g.resources, g.display.Extent().Max(attachmentExtent)); err != nil {
		return nil, err
	}
	schedule, err := cfg.Schedule(name)
	if err != nil {
		return nil, err
	}

	compute, err := pass.NewComputePass(ctx.Device, len(g.frames), "compute", nil)
	if err != nil {
		return nil, err
	}
	g.AddPass(compute)

	for _, entry := range schedule {
		p, err := BuildPass(g.context(), cfg, entry.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to build pass %s: %w", entry.Name, err)
		}
		g.AddPass(p)
	}

	g.AddPass(pass.NewPresentPass("present"))
	core.LogInfo("frame graph %s: %d passes", name, len(g.passes))
	built = true
	return g, nil
}

// NewHeadless renders depth and forward into the draw image without a
// present pass.
func NewHeadless(ctx GraphContext) (*FrameGraph, error) {
	g, err := New(ctx)
	if err != nil {
		return nil, err
	}
	built := false
	defer g.closeUnless(&built)

	if err := g.registerTargets(true, true); err != nil {
		return nil, err
	}
	compute, err := pass.NewComputePass(ctx.Device, len(g.frames), "compute", nil)
	if err != nil {
		return nil, err
	}
	g.AddPass(compute)
	for _, t := range []pass.PassType{pass.PassTypeDepth, pass.PassTypeForward} {
		p, err := pass.NewMaterialPass(ctx.Device, len(g.frames), pass.DefaultConfig(t.String(), t))
		if err != nil {
			return nil, err
		}
		g.AddPass(p)
	}
	built = true
	return g, nil
}

// NewUI draws the ui pass over the draw image and presents it.
func NewUI(ctx GraphContext) (*FrameGraph, error) {
	g, err := New(ctx)
	if err != nil {
		return nil, err
	}
	built := false
	defer g.closeUnless(&built)

	if err := g.registerTargets(true, false); err != nil {
		return nil, err
	}
	ui, err := pass.NewMaterialPass(ctx.Device, len(g.frames), pass.DefaultConfig("ui", pass.PassTypeUI))
	if err != nil {
		return nil, err
	}
	g.AddPass(ui)
	g.AddPass(pass.NewPresentPass("present"))
	built = true
	return g, nil
}

// closeUnless releases a graph whose construction failed or panicked.
func (g *FrameGraph) closeUnless(built *bool) {
	if *built {
		return
	}
	if err := g.Close(); err != nil {
		core.LogWarn("failed to release a partially built graph: %s", err)
	}
}

func (g *FrameGraph) context() GraphContext {
	return GraphContext{
		Device:         g.device,
		Display:        g.display,
		FramesInFlight: len(g.frames),
		RenderScaling:  g.renderScaling,
	}
}

// AddPass appends p to the schedule, the graph owns it from then on. It
// panics when p uses an attachment that is not registered, p is destroyed
// first.
func (g *FrameGraph) AddPass(p pass.RenderPass) {
	for _, name := range p.Attachments() {
		if !g.resources.Has(name) {
			p.Destroy()
			panic(fmt.Errorf("pass %s uses %q: %w", p.Name(), name, core.ErrAttachmentNotRegistered))
		}
	}
	g.passes = append(g.passes, p)
}

// Resources exposes the image table, for registering images before
// AddPass.
func (g *FrameGraph) Resources() *GraphResourceManager {
	return g.resources
}

func (g *FrameGraph) CurrentFrame() *FrameData {
	return g.frames[g.frameNumber%uint64(len(g.frames))]
}

// Begin waits for the GPU to release the current slot, acquires the next
// presentable image and opens the command list. It returns
// core.ErrOutdated when the surface must be resized, the slot is left
// untouched in that case.
func (g *FrameGraph) Begin(ctx context.Context) error {
	frame := g.CurrentFrame()
	if err := frame.Fence.Wait(ctx); err != nil {
		return fmt.Errorf("failed to wait frame %d: %w", frame.ID, err)
	}

	g.drawExtent = g.display.Extent()
	if g.resources.Has(pass.DrawImage) {
		g.drawExtent = g.resources.Image(pass.DrawImage).Extent().Min(g.drawExtent)
	}
	g.drawExtent = g.drawExtent.Scale(g.renderScaling)

	if err := g.display.Acquire(frame.SwapchainSemaphore); err != nil {
		if errors.Is(err, core.ErrOutdated) {
			return err
		}
		return fmt.Errorf("failed to acquire the render target: %w", err)
	}
	if err := frame.Fence.Reset(); err != nil {
		return fmt.Errorf("failed to reset frame %d: %w", frame.ID, err)
	}
	frame.Number = g.frameNumber

	g.resources.Invalidate()

	if err := frame.Cmd.Reset(); err != nil {
		return g.abandon(frame, err)
	}
	if err := frame.Cmd.Begin(); err != nil {
		return g.abandon(frame, err)
	}
	frame.Cmd.BeginLabel(fmt.Sprintf("Frame %d", g.frameNumber))
	return nil
}

// Render records every pass in order. sceneData returns the scene uniform
// bytes of a pass, it may be nil.
func (g *FrameGraph) Render(objects []metadata.RenderObject, sceneData func(metadata.PassID) []byte, stats *metadata.RenderStats) error {
	frame := g.CurrentFrame()
	ctx := &pass.RenderContext{
		FrameID:     frame.ID,
		FrameNumber: g.frameNumber,
		Cmd:         frame.Cmd,
		Resources:   g.resources,
		Target:      g.display.RenderTarget(),
		Objects:     objects,
		DrawExtent:  g.drawExtent,
		Stats:       stats,
	}
	for _, p := range g.passes {
		ctx.SceneData = nil
		if sceneData != nil {
			ctx.SceneData = sceneData(p.ID())
		}
		if err := p.Render(ctx); err != nil {
			return fmt.Errorf("pass %s: %w", p.Name(), err)
		}
	}
	return nil
}

// End submits the frame and presents it. The frame counter advances even
// when presenting fails, so a slot is always waited before reuse.
func (g *FrameGraph) End() error {
	frame := g.CurrentFrame()
	defer func() { g.frameNumber++ }()

	cmd := frame.Cmd
	cmd.TransitionImageLayout(g.display.RenderTarget(), gpu.ImageLayoutPresent)
	cmd.EndLabel()
	if err := cmd.End(); err != nil {
		return g.abandon(frame, fmt.Errorf("failed to end frame %d: %w", frame.Number, err))
	}
	if err := g.device.Submit(cmd, frame.SwapchainSemaphore, frame.RenderSemaphore, frame.Fence); err != nil {
		return g.abandon(frame, fmt.Errorf("failed to submit frame %d: %w", frame.Number, err))
	}
	if err := g.display.Present(frame.RenderSemaphore); err != nil {
		if errors.Is(err, core.ErrOutdated) {
			return err
		}
		return fmt.Errorf("failed to present frame %d: %w", frame.Number, err)
	}
	return nil
}

// abandon restores a slot whose fence was reset but will never be
// submitted: the fence is recreated signaled, so the next Begin on the slot
// does not wait forever, and the swapchain semaphore signaled by the acquire
// is replaced. It returns cause.
func (g *FrameGraph) abandon(frame *FrameData, cause error) error {
	fence, err := g.device.NewFence(true)
	if err != nil {
		return errors.Join(cause, fmt.Errorf("failed to restore frame %d: %w", frame.ID, err))
	}
	semaphore, err := g.device.NewSemaphore()
	if err != nil {
		fence.Destroy()
		return errors.Join(cause, fmt.Errorf("failed to restore frame %d: %w", frame.ID, err))
	}
	frame.Fence.Destroy()
	frame.SwapchainSemaphore.Destroy()
	frame.Fence = fence
	frame.SwapchainSemaphore = semaphore
	core.LogWarn("frame %d abandoned: %s", frame.ID, cause)
	return cause
}

// Resize waits for the GPU and recreates the presentable surface. A zero
// extent keeps the current size.
func (g *FrameGraph) Resize(extent gpu.Extent2D) error {
	if err := g.device.WaitIdle(); err != nil {
		return err
	}
	if extent.IsZero() {
		extent = g.display.Extent()
	}
	if err := g.display.Resize(extent); err != nil {
		return fmt.Errorf("failed to resize to %s: %w", extent, err)
	}
	core.LogDebug("frame graph resized to %s", extent)
	return nil
}

func (g *FrameGraph) SetRenderScaling(f float32) {
	g.renderScaling = math.Clamp(f, MinRenderScaling, MaxRenderScaling)
}

func (g *FrameGraph) RenderScaling() float32 {
	return g.renderScaling
}

// DrawExtent is the extent computed by the last Begin.
func (g *FrameGraph) DrawExtent() gpu.Extent2D {
	return g.drawExtent
}

func (g *FrameGraph) FrameNumber() uint64 {
	return g.frameNumber
}

func (g *FrameGraph) Passes() []pass.RenderPass {
	return g.passes
}

func (g *FrameGraph) PassByID(id metadata.PassID) (pass.RenderPass, error) {
	for _, p := range g.passes {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("pass %s: %w", id, core.ErrPassNotFound)
}

// PassByType returns the first pass of type t.
func (g *FrameGraph) PassByType(t pass.PassType) (pass.RenderPass, error) {
	for _, p := range g.passes {
		if p.Type() == t {
			return p, nil
		}
	}
	return nil, fmt.Errorf("pass of type %s: %w", t, core.ErrPassNotFound)
}

func (g *FrameGraph) PassByName(name string) (pass.RenderPass, error) {
	for _, p := range g.passes {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("pass %q: %w", name, core.ErrPassNotFound)
}

// GetImageData reads back the image name converted to format. The draw
// image is read at the last draw extent.
func (g *FrameGraph) GetImageData(ctx context.Context, name string, format gpu.ImageFormat) ([]byte, gpu.Extent2D, error) {
	if !g.resources.Has(name) {
		return nil, gpu.Extent2D{}, fmt.Errorf("image %q: %w", name, core.ErrAttachmentNotRegistered)
	}
	for _, frame := range g.frames {
		if err := frame.Fence.Wait(ctx); err != nil {
			return nil, gpu.Extent2D{}, err
		}
	}

	src := g.resources.Image(name)
	extent := src.Extent()
	if name == pass.DrawImage && !g.drawExtent.IsZero() {
		extent = g.drawExtent
	}

	tmp, err := g.device.NewImage(name+" readback", format, gpu.ImageUsageFile, extent)
	if err != nil {
		return nil, extent, err
	}
	defer tmp.Destroy()
	buf, err := g.device.NewBuffer(name+" readback", uint64(extent.Width)*uint64(extent.Height)*format.PixelSize(), gpu.BufferUsageStaging)
	if err != nil {
		return nil, extent, err
	}
	defer buf.Destroy()

	err = g.device.RunImmediate(func(cmd gpu.CommandList) {
		cmd.TransitionImageLayout(src, gpu.ImageLayoutTransferSrc)
		cmd.TransitionImageLayout(tmp, gpu.ImageLayoutTransferDst)
		cmd.CopyImageToImage(src, extent, tmp, extent)
		cmd.TransitionImageLayout(tmp, gpu.ImageLayoutTransferSrc)
		cmd.CopyImageToBuffer(tmp, buf)
	})
	if err != nil {
		return nil, extent, fmt.Errorf("failed to read back %s: %w", name, err)
	}
	data, err := buf.Read()
	return data, extent, err
}

// Close waits for the GPU and releases the graph.
func (g *FrameGraph) Close() error {
	err := g.device.WaitIdle()
	for _, p := range g.passes {
		p.Destroy()
	}
	g.passes = nil
	for _, frame := range g.frames {
		frame.destroy()
	}
	g.resources.Destroy()
	return err
}
