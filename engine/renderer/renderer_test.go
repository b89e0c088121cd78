package renderer

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/components"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/pass"
	"github.com/spaghettifunk/framegraph/engine/renderer/resources"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

type testRenderer struct {
	*Renderer
	device  *headless.Device
	display *headless.Display
}

func newTestRenderer(t *testing.T) *testRenderer {
	t.Helper()
	device := headless.NewDevice(headless.Options{})
	display := headless.NewDisplay(device, gpu.NewExtent2D(320, 240))
	r, err := New(Options{Device: device, Display: display, FramesInFlight: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return &testRenderer{Renderer: r, device: device, display: display}
}

func (r *testRenderer) pass(t *testing.T, pt pass.PassType) pass.RenderPass {
	t.Helper()
	p, err := r.Graph().PassByType(pt)
	if err != nil {
		t.Fatalf("PassByType(%s): %v", pt, err)
	}
	return p
}

func (r *testRenderer) material(t *testing.T, name string, blending bool) *resources.Material {
	t.Helper()
	desc := gpu.NewGraphicsPipelineDesc(name).
		WithShaders(name+".vert.spv", name+".frag.spv").
		WithBindingGroup(gpu.BindingGroupMaterialTextures, gpu.ShaderStageFragment, gpu.BindingSampledImage, gpu.BindingSampler)
	p, err := r.device.NewPipeline(desc)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return resources.NewMaterial(name, p, blending)
}

func cube(name string, mat *resources.Material) *resources.Model {
	return resources.NewModel(name).AddMesh(resources.NewCubeMesh(name, math.NewVec4(1, 1, 1, 1)), mat.Instantiate())
}

func testScene() uniform.SceneData {
	return uniform.SceneData{
		Camera:          components.NewPerspectiveCamera(4.0/3.0, 60, 0.1, 100, -90, 0),
		CameraTransform: math.TransformFromPosition(math.NewVec3(0, 0, 5)),
		Light:           components.NewLight(math.NewVec4(1, 1, 1, 1)),
		LightTransform:  math.TransformFromPosition(math.NewVec3(1, 1, 1)),
	}
}

func TestBatchFinishGroupsState(t *testing.T) {
	r := newTestRenderer(t)
	forward := r.pass(t, pass.PassTypeForward)
	a := r.material(t, "a", false)
	b := r.material(t, "b", false)
	glass := r.material(t, "glass", true)

	models := []*resources.Model{cube("b1", b), cube("a1", a), cube("glass", glass), cube("a2", a), cube("b2", b)}
	r.Update(testScene(), func(batch *RenderBatch) {
		for _, m := range models {
			if err := batch.AddModel(m, math.TransformIdentity(), forward, metadata.LifetimeCached); err != nil {
				t.Fatalf("AddModel: %v", err)
			}
		}
	})

	objects := r.Batch().Objects()
	if len(objects) != len(models) {
		t.Fatalf("expected %d objects, got %d", len(models), len(objects))
	}
	if !objects[len(objects)-1].Transparent {
		t.Errorf("transparent objects must be drawn last")
	}
	switches := 0
	for i := 1; i < len(objects); i++ {
		if objects[i].Pipeline.ID() != objects[i-1].Pipeline.ID() {
			switches++
		}
	}
	if switches != 2 {
		t.Errorf("expected 2 pipeline switches after sorting, got %d", switches)
	}
	if r.Batch().SceneData(forward.ID()) == nil {
		t.Errorf("forward scene data missing")
	}
}

func TestBatchKeepsSubmissionOrderOfEqualObjects(t *testing.T) {
	r := newTestRenderer(t)
	forward := r.pass(t, pass.PassTypeForward)
	model := cube("cube", r.material(t, "a", false))

	r.Update(testScene(), func(batch *RenderBatch) {
		for i := 0; i < 3; i++ {
			batch.AddModel(model, math.TransformFromPosition(math.NewVec3(float32(i), 0, 0)), forward, metadata.LifetimeCached)
		}
	})
	for i, obj := range r.Batch().Objects() {
		if obj.Transform.Translation.X != float32(i) {
			t.Errorf("object %d moved to position %d", int(obj.Transform.Translation.X), i)
		}
	}
	stats := r.Stats().Pass(forward.ID())
	if stats.Instances != 3 || stats.Models != 1 {
		t.Errorf("stats = %+v, want 3 instances of 1 model", stats)
	}
}

func TestRendererFrame(t *testing.T) {
	r := newTestRenderer(t)
	forward := r.pass(t, pass.PassTypeForward)
	mat := r.material(t, "mesh", false)
	models := []*resources.Model{cube("a", mat), cube("b", mat)}

	for frame := 0; frame < 3; frame++ {
		r.Update(testScene(), func(batch *RenderBatch) {
			for _, m := range models {
				batch.AddModel(m, math.TransformIdentity(), forward, metadata.LifetimeTransient)
			}
		})
		if err := r.Render(context.Background()); err != nil {
			t.Fatalf("Render frame %d: %v", frame, err)
		}
		if got := r.Stats().Pass(forward.ID()).Draws; got != 2 {
			t.Errorf("frame %d: forward drew %d objects, want 2", frame, got)
		}
	}
	if r.Graph().FrameNumber() != 3 {
		t.Errorf("frame number = %d, want 3", r.Graph().FrameNumber())
	}
	if r.display.Presented() != 3 {
		t.Errorf("presented %d frames, want 3", r.display.Presented())
	}
	if v := r.device.Recorder().Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestRendererRecoversFromOutdated(t *testing.T) {
	r := newTestRenderer(t)
	r.Update(testScene(), nil)

	r.display.FailNextAcquire()
	if err := r.Render(context.Background()); err != nil {
		t.Fatalf("outdated acquire must not fail the frame: %v", err)
	}
	if r.Graph().FrameNumber() != 0 {
		t.Errorf("a dropped frame must not advance the counter")
	}

	r.display.FailNextPresent()
	if err := r.Render(context.Background()); err != nil {
		t.Fatalf("outdated present must not fail the frame: %v", err)
	}
	if err := r.Render(context.Background()); err != nil {
		t.Fatalf("Render after resize: %v", err)
	}
	if r.Graph().FrameNumber() != 2 {
		t.Errorf("frame number = %d, want 2", r.Graph().FrameNumber())
	}
}

func TestRendererResizeEvent(t *testing.T) {
	core.EventInitialize()
	r := newTestRenderer(t)
	r.Update(testScene(), nil)

	var ec core.EventContext
	ec.Data.U32[0], ec.Data.U32[1] = 640, 480
	core.EventFire(core.EVENT_CODE_RESIZED, nil, ec)

	if err := r.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := r.display.Extent(); got != gpu.NewExtent2D(640, 480) {
		t.Errorf("display extent = %s, want 640x480", got)
	}
	if got := r.Graph().DrawExtent(); got != gpu.NewExtent2D(640, 480) {
		t.Errorf("draw extent = %s, want 640x480", got)
	}
}

const reloadGraph = `
[graphs]
default = ["forward"]

[passes.forward]
tag = "forward"
`

func TestRendererReloadGraph(t *testing.T) {
	core.EventInitialize()
	r := newTestRenderer(t)

	path := filepath.Join(t.TempDir(), "graph.toml")
	if err := os.WriteFile(path, []byte(reloadGraph), 0o644); err != nil {
		t.Fatal(err)
	}

	var reloaded string
	listener := new(int)
	onReload := func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		reloaded = data.Data.C[0]
		return false
	}
	core.EventRegister(core.EVENT_CODE_GRAPH_RELOADED, listener, onReload)
	defer core.EventUnregister(core.EVENT_CODE_GRAPH_RELOADED, listener, onReload)

	if err := r.ReloadGraph(path); err != nil {
		t.Fatalf("ReloadGraph: %v", err)
	}
	if reloaded != path {
		t.Errorf("reload event carried %q, want %q", reloaded, path)
	}
	if _, err := r.Graph().PassByType(pass.PassTypePresent); err != nil {
		t.Errorf("reloaded graph has no present pass: %v", err)
	}
	if _, err := r.Graph().PassByType(pass.PassTypeDepth); err == nil {
		t.Errorf("reloaded graph must only schedule forward")
	}

	// a broken file keeps the current graph
	current := r.Graph()
	os.WriteFile(path, []byte("[passes.forward]\ntag = \"raytrace\"\n[graphs]\ndefault = [\"forward\"]\n"), 0o644)
	if err := r.ReloadGraph(path); err == nil {
		t.Errorf("expected an error for an unknown tag")
	}
	if r.Graph() != current {
		t.Errorf("a failed reload replaced the graph")
	}
	r.Update(testScene(), nil)
	if err := r.Render(context.Background()); err != nil {
		t.Fatalf("Render after reload: %v", err)
	}
}

func TestRendererQueuedReloadDrawsAndEvicts(t *testing.T) {
	core.EventInitialize()
	r := newTestRenderer(t)
	mat := r.material(t, "mesh", false)
	model := cube("a", mat)

	draw := func(batch *RenderBatch) {
		p, err := r.Graph().PassByType(pass.PassTypeForward)
		if err != nil {
			t.Fatalf("PassByType: %v", err)
		}
		if err := batch.AddModel(model, math.TransformIdentity(), p, metadata.LifetimeCached); err != nil {
			t.Fatalf("AddModel: %v", err)
		}
	}
	r.Update(testScene(), draw)
	if err := r.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	oldForward := r.pass(t, pass.PassTypeForward).ID()
	if !r.meshes.Contains(model.ID, oldForward) {
		t.Fatal("model not cached for the first graph")
	}

	path := filepath.Join(t.TempDir(), "graph.toml")
	if err := os.WriteFile(path, []byte(reloadGraph), 0o644); err != nil {
		t.Fatal(err)
	}
	r.mu.Lock()
	r.reloadPath = path
	r.mu.Unlock()

	// the reload is taken by Update, so the batch targets the new passes
	r.Update(testScene(), draw)
	if err := r.Render(context.Background()); err != nil {
		t.Fatalf("Render after reload: %v", err)
	}
	newForward := r.pass(t, pass.PassTypeForward).ID()
	if newForward == oldForward {
		t.Fatal("graph was not reloaded")
	}
	if got := r.Stats().Pass(newForward).Draws; got != 1 {
		t.Errorf("first frame after reload drew %d objects, want 1", got)
	}
	if r.meshes.Contains(model.ID, oldForward) {
		t.Error("meshes of the previous graph are still cached")
	}
	if !r.meshes.Contains(model.ID, newForward) {
		t.Error("model not cached for the reloaded graph")
	}
}

func TestRendererCapture(t *testing.T) {
	r := newTestRenderer(t)
	r.Update(testScene(), nil)
	if err := r.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	path := filepath.Join(t.TempDir(), "frame.bmp")
	if err := r.Capture(context.Background(), path); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := bmp.Decode(file)
	if err != nil {
		t.Fatalf("bmp.Decode: %v", err)
	}
	if got := img.Bounds(); got != image.Rect(0, 0, 320, 240) {
		t.Errorf("captured %v, want 320x240", got)
	}
}

func TestRendererPreload(t *testing.T) {
	r := newTestRenderer(t)
	tex := resources.NewTexture("checker", image.NewRGBA(image.Rect(0, 0, 4, 4)), gpu.SamplerFilterNearest)
	mat := r.material(t, "textured", false)
	models := []*resources.Model{
		resources.NewModel("a").AddMesh(resources.NewCubeMesh("a", math.NewVec4(1, 0, 0, 1)), mat.Instantiate(tex)),
		resources.NewModel("b").AddMesh(resources.NewCubeMesh("b", math.NewVec4(0, 1, 0, 1)), mat.Instantiate(tex)),
	}

	var last, total int
	err := r.Preload(models, func(done, n int) {
		last, total = done, n
	})
	if err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if total != 3 || last != 3 {
		t.Errorf("progress ended at %d/%d, want 3/3", last, total)
	}
	if r.Textures().Len() != 1 {
		t.Errorf("expected the shared texture to be uploaded once, got %d", r.Textures().Len())
	}
	forward := r.pass(t, pass.PassTypeForward)
	for _, m := range models {
		if !r.meshes.Contains(m.ID, forward.ID()) {
			t.Errorf("model %s not cached for forward", m.Name)
		}
	}
}
