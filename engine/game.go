package engine

import (
	"time"

	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

// Game is implemented by applications driven by the engine loop.
type Game interface {
	// Initialize runs once the renderer exists, models are usually
	// created and preloaded here.
	Initialize(e *Engine) error
	Update(delta time.Duration) error
	// Scene is the camera and light of the frame being built.
	Scene() uniform.SceneData
	// Render adds the objects of the frame to batch.
	Render(batch *renderer.RenderBatch) error
	OnResize(width, height uint32)
	Shutdown() error
}
