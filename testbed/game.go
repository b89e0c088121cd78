package testbed

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"github.com/spaghettifunk/framegraph/engine"
	"github.com/spaghettifunk/framegraph/engine/assets/loaders"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/components"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/pass"
	"github.com/spaghettifunk/framegraph/engine/renderer/resources"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

// GLFW key codes of the keys the testbed reacts to.
const (
	keyB     = 66
	keyRight = 262
	keyLeft  = 263
)

const (
	DefaultMaterial = "assets/materials/cube.amt"
	cubeCount       = 3
)

// TestGame spins three nested cubes under a directional light.
type TestGame struct {
	MaterialPath string

	camera          *components.Camera
	cameraTransform math.Transform
	light           *components.Light
	lightTransform  math.Transform

	engine     *engine.Engine
	pipeline   gpu.Pipeline
	models     []*resources.Model
	transforms []math.Transform
	showBounds bool
}

func NewTestGame() *TestGame {
	return &TestGame{
		MaterialPath:    DefaultMaterial,
		camera:          components.NewPerspectiveCamera(16.0/9.0, math.DegToRad(60), 0.1, 1000, math.DegToRad(-90), 0),
		cameraTransform: math.TransformFromPosition(math.NewVec3(0, 2, 12)),
		light:           components.NewLight(math.NewVec4(1, 0.95, 0.9, 1)),
		lightTransform:  math.TransformFromPosition(math.NewVec3(1, 2, 1)),
	}
}

// material reads the .amt description when present, the defaults
// otherwise.
func (g *TestGame) material(e *engine.Engine) *loaders.MaterialConfig {
	cfg := &loaders.MaterialConfig{Name: "cube", Pipeline: "mesh", DiffuseColour: math.NewVec4(1, 1, 1, 1)}
	if _, err := os.Stat(g.MaterialPath); err != nil {
		return cfg
	}
	asset, err := e.Assets().Load(g.MaterialPath)
	if err != nil {
		core.LogWarn("unable to load %s: %s", g.MaterialPath, err)
		return cfg
	}
	if loaded, ok := asset.(*loaders.MaterialConfig); ok {
		return loaded
	}
	return cfg
}

func checkerboard(size, cell int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.RGBA{R: 40, G: 40, B: 48, A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.RGBA{R: 220, G: 220, B: 210, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")
	g.engine = e
	matCfg := g.material(e)

	desc := gpu.NewGraphicsPipelineDesc(matCfg.Name).
		WithShaders(matCfg.Pipeline+".vert.spv", matCfg.Pipeline+".frag.spv").
		WithVertexAttributes(gpu.VertexPosition|gpu.VertexNormal|gpu.VertexTexture|gpu.VertexColor).
		WithBindingGroup(gpu.BindingGroupSceneData, gpu.ShaderStageVertex|gpu.ShaderStageFragment, gpu.BindingUniformBuffer).
		WithBindingGroup(gpu.BindingGroupMaterialTextures, gpu.ShaderStageFragment, gpu.BindingSampledImage, gpu.BindingSampler).
		WithPushConstants(uint32(uniform.DefaultObjectDataLayout().Uniform().Size())).
		WithDepth(true, true).
		WithBlending(matCfg.Blending)
	pipeline, err := e.Device().NewPipeline(desc)
	if err != nil {
		return fmt.Errorf("material %s: %w", matCfg.Name, err)
	}
	g.pipeline = pipeline

	material := resources.NewMaterial(matCfg.Name, pipeline, matCfg.Blending)
	texture := resources.NewTexture("checker", checkerboard(256, 32), gpu.SamplerFilterLinear)
	instance := material.Instantiate(texture)

	scales := []float32{2, 1, 0.5}
	offsets := []float32{0, 3, 1.5}
	for i := 0; i < cubeCount; i++ {
		name := fmt.Sprintf("test_cube_%d", i+1)
		g.models = append(g.models, resources.NewModel(name).AddMesh(resources.NewCubeMesh(name, matCfg.DiffuseColour), instance))
		t := math.TransformFromPosition(math.NewVec3(offsets[i], 0, 0)).Scaled(math.NewVec3(scales[i], scales[i], scales[i]))
		g.transforms = append(g.transforms, t)
	}

	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, g, g.onKey)
	return e.Preload(g.models)
}

func (g *TestGame) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch data.Data.U16[0] {
	case keyB:
		g.showBounds = !g.showBounds
		core.LogInfo("bounds %v", g.showBounds)
		return true
	case keyLeft:
		g.camera.YawBy(0.05)
		return true
	case keyRight:
		g.camera.YawBy(-0.05)
		return true
	}
	return false
}

func (g *TestGame) Update(delta time.Duration) error {
	rotation := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), float32(0.5*delta.Seconds()), false)
	// each cube spins around its parent
	for i := range g.transforms {
		g.transforms[i] = g.transforms[i].Rotate(rotation)
	}
	return nil
}

func (g *TestGame) Scene() uniform.SceneData {
	return uniform.SceneData{
		Camera:          g.camera,
		CameraTransform: g.cameraTransform,
		Light:           g.light,
		LightTransform:  g.lightTransform,
	}
}

func (g *TestGame) world(i int) math.Transform {
	t := g.transforms[i]
	for parent := i - 1; parent >= 0; parent-- {
		t.Translation = t.Translation.Add(g.transforms[parent].Translation)
	}
	return t
}

func (g *TestGame) Render(batch *renderer.RenderBatch) error {
	for _, p := range g.engine.Renderer().Graph().Passes() {
		switch p.Type() {
		case pass.PassTypeDepth, pass.PassTypeForward, pass.PassTypeWire, pass.PassTypeSelect:
			for i, m := range g.models {
				if err := batch.AddModel(m, g.world(i), p, metadata.LifetimeCached); err != nil {
					core.LogWarn("%s not drawn in %s: %s", m.Name, p.Name(), err)
				}
			}
		case pass.PassTypeBounds:
			if !g.showBounds {
				continue
			}
			for i, m := range g.models {
				if err := batch.AddBounds(m.Bounds(), g.world(i), p); err != nil {
					core.LogWarn("bounds of %s not drawn: %s", m.Name, err)
				}
			}
		}
	}
	return nil
}

func (g *TestGame) OnResize(width, height uint32) {
	g.camera.Resize(width, height)
}

func (g *TestGame) Shutdown() error {
	core.EventUnregister(core.EVENT_CODE_KEY_PRESSED, g, g.onKey)
	if g.pipeline != nil {
		g.pipeline.Destroy()
		g.pipeline = nil
	}
	return nil
}
