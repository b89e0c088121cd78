package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/framegraph/engine/assets"
	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/platform"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/resources"
	"github.com/spaghettifunk/framegraph/engine/renderer/vulkan"
	"github.com/spaghettifunk/framegraph/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

var stageNames = map[Stage]string{
	EngineStageUninitialized: "uninitialized",
	EngineStageInitializing:  "initializing",
	EngineStageInitialized:   "initialized",
	EngineStageRunning:       "running",
	EngineStageShuttingDown:  "shutting down",
}

func (s Stage) String() string {
	return stageNames[s]
}

type Engine struct {
	currentStage Stage
	game         Game
	cfg          *config.EngineConfig
	opts         Options

	platform     *platform.Platform
	device       gpu.Device
	display      gpu.Display
	renderer     *renderer.Renderer
	assetManager *assets.AssetManager
	jobs         *systems.JobSystem

	clock       *core.Clock
	isRunning   atomic.Bool
	isSuspended atomic.Bool
	width       uint32
	height      uint32
	frames      uint64
}

func New(game Game, cfg *config.EngineConfig, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		game:         game,
		cfg:          cfg,
		opts:         opts,
		clock:        core.NewClock(),
		width:        cfg.App.Width,
		height:       cfg.App.Height,
	}, nil
}

func (e *Engine) Stage() Stage                 { return e.currentStage }
func (e *Engine) Renderer() *renderer.Renderer { return e.renderer }
func (e *Engine) Device() gpu.Device           { return e.device }
func (e *Engine) Config() *config.EngineConfig { return e.cfg }
func (e *Engine) Assets() *assets.AssetManager { return e.assetManager }
func (e *Engine) Jobs() *systems.JobSystem     { return e.jobs }
func (e *Engine) Frames() uint64               { return e.frames }

func (e *Engine) FramebufferSize() (uint32, uint32) { return e.width, e.height }

// Preload uploads models ahead of the first frame, reporting to the
// progress callback of the options.
func (e *Engine) Preload(models []*resources.Model) error {
	return e.renderer.Preload(models, e.opts.Progress)
}

func (e *Engine) Initialize(ctx context.Context) error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine cannot initialize while %s", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	core.InitializeLogger(e.cfg.Log.Level, os.Stderr)
	core.EventInitialize()
	if err := core.MetricsInitialize(); err != nil {
		return err
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)

	jobs, err := systems.NewJobSystem(runtime.NumCPU(), 64)
	if err != nil {
		return err
	}
	e.jobs = jobs

	am, err := assets.NewAssetManager()
	if err != nil {
		return err
	}
	e.assetManager = am

	if err := e.createDevice(); err != nil {
		return err
	}

	graphCfg, err := e.loadGraph()
	if err != nil {
		return err
	}
	r, err := renderer.New(renderer.Options{
		Device:         e.device,
		Display:        e.display,
		FramesInFlight: e.cfg.Render.FramesInFlight,
		RenderScaling:  e.cfg.Render.RenderScaling,
		Graph:          graphCfg,
		GraphName:      e.cfg.Render.GraphName,
		Jobs:           e.jobs,
	})
	if err != nil {
		return err
	}
	e.renderer = r

	if e.cfg.Assets.Watch && graphCfg != nil {
		if err := r.WatchGraph(am, e.cfg.Render.Graph); err != nil {
			core.LogWarn("unable to watch %s: %s", e.cfg.Render.Graph, err)
		}
	}

	if err := e.game.Initialize(e); err != nil {
		return err
	}
	e.game.OnResize(e.width, e.height)

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized with the %s backend", e.cfg.Render.Backend)
	return nil
}

func (e *Engine) createDevice() error {
	extent := gpu.NewExtent2D(e.width, e.height)
	if e.cfg.Render.Backend == config.BackendHeadless {
		device := headless.NewDevice(headless.Options{})
		e.device = device
		e.display = headless.NewDisplay(device, extent)
		return nil
	}

	e.platform = platform.New()
	if err := e.platform.Startup(e.cfg.App.Name, e.opts.StartPosX, e.opts.StartPosY, e.width, e.height); err != nil {
		return err
	}
	device, err := vulkan.NewDevice(e.platform, vulkan.Options{
		AppName:    e.cfg.App.Name,
		ShaderDir:  e.cfg.Assets.ShaderDir,
		Validation: e.cfg.Render.Validation,
	})
	if err != nil {
		return err
	}
	e.device = device
	if w, h := e.platform.FramebufferSize(); w > 0 && h > 0 {
		extent = gpu.NewExtent2D(w, h)
	}
	display, err := vulkan.NewDisplay(device, extent)
	if err != nil {
		return err
	}
	e.display = display
	return nil
}

// loadGraph returns nil when no graph file is configured, the renderer then
// builds its fixed headless graph.
func (e *Engine) loadGraph() (*graph.GraphConfig, error) {
	path := e.cfg.Render.Graph
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if e.cfg.Render.Backend == config.BackendHeadless {
			core.LogWarn("graph %s not found, using the built in headless graph", path)
			return nil, nil
		}
		return nil, fmt.Errorf("graph config: %w", err)
	}
	asset, err := e.assetManager.Load(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	cfg, ok := asset.(*graph.GraphConfig)
	if !ok {
		return nil, fmt.Errorf("%s is not a graph description: %w", path, core.ErrInvalidData)
	}
	return cfg, nil
}

// Run loops until ctx is done, a quit event fires or the frame limit is
// reached.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run while %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	lastTime := e.clock.Elapsed()

	for e.isRunning.Load() {
		select {
		case <-ctx.Done():
			e.isRunning.Store(false)
			continue
		default:
		}

		if e.platform != nil && !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}
		if e.isSuspended.Load() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - lastTime
		frameStart := time.Now()

		if err := e.game.Update(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			return err
		}

		var renderErr error
		e.renderer.Update(e.game.Scene(), func(batch *renderer.RenderBatch) {
			renderErr = e.game.Render(batch)
		})
		if renderErr != nil {
			core.LogError("game render failed, shutting down: %s", renderErr)
			return renderErr
		}
		if err := e.renderer.Render(ctx); err != nil {
			core.LogError("frame %d failed: %s", e.frames, err)
			return err
		}

		core.MetricsUpdate(time.Since(frameStart))
		e.frames++
		lastTime = currentTime

		if e.frames%600 == 0 {
			fps, ms := core.MetricsFrame()
			core.LogDebug("%.0f fps, %.2f ms per frame, %.2f ms recording", fps, ms, core.MetricsDrawTime())
		}
		if e.opts.MaxFrames > 0 && e.frames >= e.opts.MaxFrames {
			e.isRunning.Store(false)
		}
	}

	if e.opts.Capture != "" {
		if err := e.renderer.Capture(context.WithoutCancel(ctx), e.opts.Capture); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown releases everything Initialize created, in reverse order.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if err := e.game.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if e.renderer != nil {
		if err := e.renderer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.display != nil {
		e.display.Destroy()
	}
	if e.device != nil {
		e.device.Destroy()
	}
	if e.jobs != nil {
		e.jobs.Shutdown()
	}
	if e.assetManager != nil {
		if err := e.assetManager.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	core.EventUnregister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventUnregister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventUnregister(core.EVENT_CODE_RESIZED, e, e.onResized)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %v", errs)
	}
	core.LogInfo("engine shut down after %d frames", e.frames)
	return nil
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	core.LogDebug("key %d pressed", data.Data.U16[0])
	return false
}

// onResized never consumes the event, the renderer listens to it too.
func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended.Store(true)
		return false
	}
	if e.isSuspended.Load() {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended.Store(false)
	}
	e.game.OnResize(width, height)
	return false
}
