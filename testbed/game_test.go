package testbed

import (
	"context"
	"testing"

	"github.com/spaghettifunk/framegraph/engine"
	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/core"
)

func runHeadless(t *testing.T, game *TestGame, frames uint64) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Render.Backend = config.BackendHeadless
	cfg.Render.Graph = ""
	cfg.Log.Level = "error"

	var progress []int
	e, err := engine.New(game, cfg, engine.Options{
		MaxFrames: frames,
		Progress:  func(done, total int) { progress = append(progress, done) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Shutdown() })
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// one texture and three cubes
	if len(progress) != 4 || progress[3] != 4 {
		t.Errorf("preload progress = %v, want 4 steps", progress)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return e
}

func TestTestGameRendersCubes(t *testing.T) {
	game := NewTestGame()
	game.MaterialPath = "missing.amt"
	e := runHeadless(t, game, 3)

	if len(game.models) != cubeCount {
		t.Fatalf("models = %d, want %d", len(game.models), cubeCount)
	}
	if e.Frames() != 3 {
		t.Errorf("frames = %d, want 3", e.Frames())
	}
	if draws := e.Renderer().Stats().Draws; draws == 0 {
		t.Error("no draw recorded for the cubes")
	}
}

func TestTestGameKeys(t *testing.T) {
	game := NewTestGame()
	game.MaterialPath = "missing.amt"
	runHeadless(t, game, 1)

	var ec core.EventContext
	ec.Data.U16[0] = keyB
	if !core.EventFire(core.EVENT_CODE_KEY_PRESSED, t, ec) {
		t.Fatal("bounds key not handled")
	}
	if !game.showBounds {
		t.Error("bounds not toggled on")
	}

	ec.Data.U16[0] = 'Q'
	if core.EventFire(core.EVENT_CODE_KEY_PRESSED, t, ec) {
		t.Error("unbound key reported as handled")
	}
}

func TestTestGameShutdownBeforeInitialize(t *testing.T) {
	if err := NewTestGame().Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
