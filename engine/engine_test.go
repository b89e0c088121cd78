package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

type fakeGame struct {
	initialized bool
	updates     int
	renders     int
	resizes     int
	shutdown    bool
	// quitAt fires a quit event from Update once updates reaches it.
	quitAt int
	failAt int
}

func (g *fakeGame) Initialize(e *Engine) error {
	g.initialized = true
	return nil
}

func (g *fakeGame) Update(delta time.Duration) error {
	g.updates++
	if g.failAt > 0 && g.updates == g.failAt {
		return errors.New("update failed")
	}
	if g.quitAt > 0 && g.updates == g.quitAt {
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, g, core.EventContext{})
	}
	return nil
}

func (g *fakeGame) Scene() uniform.SceneData { return uniform.SceneData{} }

func (g *fakeGame) Render(batch *renderer.RenderBatch) error {
	g.renders++
	return nil
}

func (g *fakeGame) OnResize(width, height uint32) { g.resizes++ }

func (g *fakeGame) Shutdown() error {
	g.shutdown = true
	return nil
}

func headlessConfig() *config.EngineConfig {
	cfg := config.Default()
	cfg.Render.Backend = config.BackendHeadless
	cfg.Render.Graph = ""
	cfg.Log.Level = "error"
	return cfg
}

func startEngine(t *testing.T, game Game, opts Options) *Engine {
	t.Helper()
	e, err := New(game, headlessConfig(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e
}

func TestEngineRunsFrameLimit(t *testing.T) {
	game := &fakeGame{}
	e := startEngine(t, game, Options{MaxFrames: 5})
	if e.Stage() != EngineStageInitialized {
		t.Fatalf("stage = %s, want initialized", e.Stage())
	}
	if !game.initialized || game.resizes != 1 {
		t.Errorf("game initialized=%v resizes=%d", game.initialized, game.resizes)
	}

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e.Frames() != 5 {
		t.Errorf("frames = %d, want 5", e.Frames())
	}
	if game.updates != 5 || game.renders != 5 {
		t.Errorf("updates=%d renders=%d, want 5", game.updates, game.renders)
	}
	if got := e.Renderer().Graph().FrameNumber(); got != 5 {
		t.Errorf("graph frame number = %d, want 5", got)
	}

	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !game.shutdown {
		t.Error("game was not shut down")
	}
	if e.Stage() != EngineStageShuttingDown {
		t.Errorf("stage = %s after shutdown", e.Stage())
	}
}

func TestEngineStopsOnQuitEvent(t *testing.T) {
	game := &fakeGame{quitAt: 3}
	e := startEngine(t, game, Options{MaxFrames: 100})
	defer e.Shutdown()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e.Frames() != 3 {
		t.Errorf("frames = %d, want 3", e.Frames())
	}
}

func TestEngineStopsOnCancel(t *testing.T) {
	game := &fakeGame{}
	e := startEngine(t, game, Options{})
	defer e.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e.Frames() != 0 {
		t.Errorf("frames = %d, want 0", e.Frames())
	}
}

func TestEngineUpdateErrorStopsLoop(t *testing.T) {
	game := &fakeGame{failAt: 2}
	e := startEngine(t, game, Options{MaxFrames: 10})
	defer e.Shutdown()

	if err := e.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded after a failing update")
	}
	if e.Frames() != 1 {
		t.Errorf("frames = %d, want 1", e.Frames())
	}
}

func TestEngineSuspendsWhenMinimized(t *testing.T) {
	game := &fakeGame{}
	e := startEngine(t, game, Options{MaxFrames: 1})
	defer e.Shutdown()

	var ec core.EventContext
	core.EventFire(core.EVENT_CODE_RESIZED, e, ec)
	if !e.isSuspended.Load() {
		t.Fatal("engine not suspended on a zero size")
	}
	w, h := e.FramebufferSize()
	if w != 0 || h != 0 {
		t.Errorf("framebuffer = %dx%d, want 0x0", w, h)
	}

	ec.Data.U32[0], ec.Data.U32[1] = 640, 480
	core.EventFire(core.EVENT_CODE_RESIZED, e, ec)
	if e.isSuspended.Load() {
		t.Error("engine still suspended after restore")
	}
	if game.resizes != 2 {
		t.Errorf("game resizes = %d, want 2", game.resizes)
	}

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := e.Renderer().Graph().DrawExtent(); got.Width != 640 || got.Height != 480 {
		t.Errorf("draw extent = %s, want 640x480", got)
	}
}

func TestEngineCapturesLastFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.bmp")
	e := startEngine(t, &fakeGame{}, Options{MaxFrames: 2, Capture: path})
	defer e.Shutdown()

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("capture not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("capture is empty")
	}
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	cfg := headlessConfig()
	cfg.Render.FramesInFlight = 0
	if _, err := New(&fakeGame{}, cfg, Options{}); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("New err = %v, want ErrInvalidData", err)
	}
}

func TestEngineRunRequiresInitialize(t *testing.T) {
	e, err := New(&fakeGame{}, headlessConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Run(context.Background()); err == nil {
		t.Error("Run succeeded before Initialize")
	}
}
