package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/framegraph/engine/assets"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/pass"
	"github.com/spaghettifunk/framegraph/engine/renderer/resources"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
	"github.com/spaghettifunk/framegraph/engine/systems"
)

type Options struct {
	Device         gpu.Device
	Display        gpu.Display
	FramesInFlight int
	RenderScaling  float32

	// Graph is the pass description, nil renders the built in headless
	// graph.
	Graph     *graph.GraphConfig
	GraphName string

	// Jobs converts textures during Preload, may be nil.
	Jobs *systems.JobSystem
}

// Renderer drives the frame graph: it owns the GPU caches, the batch of
// the current frame and recovers from outdated surfaces.
type Renderer struct {
	device  gpu.Device
	display gpu.Display
	opts    Options

	graph    *graph.FrameGraph
	buffers  *resources.BufferPool
	textures *resources.TextureManager
	meshes   *resources.MeshResourceManager
	batch    *RenderBatch

	mu         sync.Mutex
	reloadPath string
	resizeTo   gpu.Extent2D
}

func New(opts Options) (*Renderer, error) {
	if opts.FramesInFlight < 1 {
		opts.FramesInFlight = 2
	}
	if opts.GraphName == "" {
		opts.GraphName = "default"
	}
	g, err := buildGraph(opts, opts.Graph)
	if err != nil {
		return nil, err
	}

	buffers := resources.NewBufferPool(opts.Device)
	textures := resources.NewTextureManager(opts.Device, buffers, opts.Jobs)
	meshes := resources.NewMeshResourceManager(opts.Device, opts.FramesInFlight, buffers, textures)

	r := &Renderer{
		device:   opts.Device,
		display:  opts.Display,
		opts:     opts,
		graph:    g,
		buffers:  buffers,
		textures: textures,
		meshes:   meshes,
		batch:    NewRenderBatch(meshes),
	}
	core.EventRegister(core.EVENT_CODE_RESIZED, r, r.onResized)
	core.LogInfo("renderer created, %d frames in flight, %d passes", opts.FramesInFlight, len(g.Passes()))
	return r, nil
}

func buildGraph(opts Options, cfg *graph.GraphConfig) (*graph.FrameGraph, error) {
	ctx := graph.GraphContext{
		Device:         opts.Device,
		Display:        opts.Display,
		FramesInFlight: opts.FramesInFlight,
		RenderScaling:  opts.RenderScaling,
	}
	if cfg == nil {
		return graph.NewHeadless(ctx)
	}
	return graph.NewDefault(ctx, cfg, opts.GraphName)
}

func (r *Renderer) Graph() *graph.FrameGraph {
	return r.graph
}

func (r *Renderer) Batch() *RenderBatch {
	return r.batch
}

func (r *Renderer) Stats() *metadata.RenderStats {
	return r.batch.Stats()
}

func (r *Renderer) Textures() *resources.TextureManager {
	return r.textures
}

// Update applies a pending reload or resize, then fills the batch of the
// next frame. draw adds the objects, the scene uniforms of every pass are
// added afterwards.
func (r *Renderer) Update(scene uniform.SceneData, draw func(batch *RenderBatch)) {
	// a reload changes the pass ids the batch is built against
	r.applyPending(true)

	start := time.Now()
	r.batch.Reset()
	if draw != nil {
		draw(r.batch)
	}
	for _, p := range r.graph.Passes() {
		if p.Type() == pass.PassTypeUI {
			r.batch.AddExtentData(r.display.Extent(), p)
			continue
		}
		r.batch.AddSceneData(scene, p)
	}
	r.batch.Finish()
	r.batch.Stats().UpdateTime = time.Since(start)
}

// Render records and submits the batch. An outdated surface is resized and
// the frame dropped without error.
func (r *Renderer) Render(ctx context.Context) error {
	r.applyPending(false)

	start := time.Now()
	if err := r.graph.Begin(ctx); err != nil {
		if errors.Is(err, core.ErrOutdated) {
			core.LogDebug("surface outdated on acquire, resizing")
			return r.graph.Resize(gpu.Extent2D{})
		}
		return err
	}

	// End runs even when recording fails, it signals the fence Begin reset.
	renderErr := r.graph.Render(r.batch.Objects(), r.batch.SceneData, r.batch.Stats())
	endErr := r.graph.End()

	elapsed := time.Since(start)
	r.batch.Stats().CPUDrawTime = elapsed
	core.MetricsRecordDraw(elapsed)

	if renderErr != nil {
		return renderErr
	}
	if errors.Is(endErr, core.ErrOutdated) {
		core.LogDebug("surface outdated on present, resizing")
		return r.graph.Resize(gpu.Extent2D{})
	}
	return endErr
}

// Resize is applied before the next frame.
func (r *Renderer) Resize(width, height uint32) {
	r.mu.Lock()
	r.resizeTo = gpu.NewExtent2D(width, height)
	r.mu.Unlock()
}

func (r *Renderer) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	r.Resize(data.Data.U32[0], data.Data.U32[1])
	return false
}

// WatchGraph rebuilds the graph whenever the file at path changes.
func (r *Renderer) WatchGraph(am *assets.AssetManager, path string) error {
	path = filepath.Clean(path)
	am.OnChange(assets.AssetTypeGraph, func(changed string) {
		if changed != path {
			return
		}
		r.mu.Lock()
		r.reloadPath = changed
		r.mu.Unlock()
	})
	return am.Watch(path)
}

// applyPending resizes the graph when asked to. A queued reload is only
// taken when withReload is set, since it invalidates the current batch.
func (r *Renderer) applyPending(withReload bool) {
	r.mu.Lock()
	reload, resize := "", r.resizeTo
	if withReload {
		reload, r.reloadPath = r.reloadPath, ""
	}
	r.resizeTo = gpu.Extent2D{}
	r.mu.Unlock()

	if !resize.IsZero() && resize != r.display.Extent() {
		if err := r.graph.Resize(resize); err != nil {
			core.LogError("failed to resize: %s", err)
		}
	}
	if reload != "" {
		if err := r.ReloadGraph(reload); err != nil {
			core.LogError("graph reload failed, keeping the current graph: %s", err)
		}
	}
}

// ReloadGraph replaces the graph with the one described by the file at
// path. The current graph is kept when the new one cannot be built.
func (r *Renderer) ReloadGraph(path string) error {
	cfg, err := graph.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := r.device.WaitIdle(); err != nil {
		return err
	}
	g, err := r.buildSafe(cfg)
	if err != nil {
		return err
	}
	old := r.graph
	r.graph = g
	r.opts.Graph = cfg
	oldPasses := old.Passes()
	if err := old.Close(); err != nil {
		core.LogWarn("failed to close the previous graph: %s", err)
	}
	evicted := 0
	for _, p := range oldPasses {
		evicted += r.meshes.EvictPass(p.ID())
	}
	core.LogDebug("evicted %d cached meshes of the previous graph", evicted)

	var ec core.EventContext
	ec.Data.C[0] = path
	ec.Data.C[1] = r.opts.GraphName
	core.EventFire(core.EVENT_CODE_GRAPH_RELOADED, r, ec)
	core.LogInfo("graph %s reloaded from %s", r.opts.GraphName, path)
	return nil
}

// buildSafe turns the construction panics of an edited file into errors.
// The graph constructors release what they built before the panic leaves
// them.
func (r *Renderer) buildSafe(cfg *graph.GraphConfig) (g *graph.FrameGraph, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", rec)
		}
	}()
	return buildGraph(r.opts, cfg)
}

// Preload uploads the textures and meshes of models for every pass that
// draws objects. progress, if set, is called after each step.
func (r *Renderer) Preload(models []*resources.Model, progress func(done, total int)) error {
	var textures []*resources.Texture
	seen := map[gpu.ID]bool{}
	for _, m := range models {
		for _, mat := range m.Materials {
			for _, tex := range mat.Textures {
				if !seen[tex.ID] {
					seen[tex.ID] = true
					textures = append(textures, tex)
				}
			}
		}
	}
	total := len(textures) + len(models)
	report := func(done int) {
		if progress != nil {
			progress(done, total)
		}
	}

	if err := r.textures.Preload(textures, func(done, _ int) { report(done) }); err != nil {
		return err
	}
	for i, m := range models {
		for _, p := range r.graph.Passes() {
			if p.ObjectDataLayout() == nil {
				continue
			}
			if _, err := r.meshes.AddObject(m, p, metadata.LifetimeCached); err != nil {
				return fmt.Errorf("failed to preload model %s: %w", m.Name, err)
			}
		}
		report(len(textures) + i + 1)
	}
	return nil
}

// Capture writes the draw image of the last frame to a BMP file.
func (r *Renderer) Capture(ctx context.Context, path string) error {
	data, extent, err := r.graph.GetImageData(ctx, pass.DrawImage, gpu.ImageFormatR8g8b8a8Unorm)
	if err != nil {
		return err
	}
	img := &image.RGBA{
		Pix:    data,
		Stride: int(extent.Width) * 4,
		Rect:   image.Rect(0, 0, int(extent.Width), int(extent.Height)),
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := bmp.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	core.LogInfo("captured %s to %s", extent, path)
	return nil
}

// Close waits for the GPU and releases everything the renderer created.
func (r *Renderer) Close() error {
	core.EventUnregister(core.EVENT_CODE_RESIZED, r, r.onResized)
	err := r.graph.Close()
	r.meshes.Destroy()
	r.textures.Destroy()
	r.buffers.Destroy()
	return err
}
