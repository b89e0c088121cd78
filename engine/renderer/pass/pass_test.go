package pass

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/components"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

type testResources struct {
	images map[string]gpu.Image
}

func newTestResources(t *testing.T, device gpu.Device, extent gpu.Extent2D) *testResources {
	t.Helper()
	r := &testResources{images: map[string]gpu.Image{}}
	for _, img := range []struct {
		name   string
		format gpu.ImageFormat
		usage  gpu.ImageUsage
	}{
		{DrawImage, gpu.ImageFormatR16g16b16a16Sfloat, gpu.ImageUsageColor},
		{DepthImage, gpu.ImageFormatD32Sfloat, gpu.ImageUsageDepth},
		{SelectImage, gpu.ImageFormatR8g8b8a8Unorm, gpu.ImageUsageColor},
	} {
		i, err := device.NewImage(img.name, img.format, img.usage, extent)
		if err != nil {
			t.Fatalf("NewImage %s: %v", img.name, err)
		}
		r.images[img.name] = i
	}
	return r
}

func (r *testResources) Image(name string) gpu.Image { return r.images[name] }

func (r *testResources) Has(name string) bool {
	_, ok := r.images[name]
	return ok
}

func (r *testResources) ImageRead(name string, cmd gpu.CommandList) gpu.Image {
	img := r.images[name]
	cmd.TransitionImageLayout(img, gpu.ImageLayoutShader)
	return img
}

func (r *testResources) ImageWrite(name string, cmd gpu.CommandList) gpu.Image {
	img := r.images[name]
	if img.Usage() == gpu.ImageUsageDepth {
		cmd.TransitionImageLayout(img, gpu.ImageLayoutDepth)
	} else {
		cmd.TransitionImageLayout(img, gpu.ImageLayoutColor)
	}
	return img
}

type fixture struct {
	device    *headless.Device
	cmd       gpu.CommandList
	resources *testResources
	extent    gpu.Extent2D
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	device := headless.NewDevice(headless.Options{})
	cmd, _ := device.NewCommandList("frame")
	if err := cmd.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	extent := gpu.NewExtent2D(800, 600)
	return &fixture{device: device, cmd: cmd, resources: newTestResources(t, device, extent), extent: extent}
}

func (f *fixture) context(objects []metadata.RenderObject, scene []byte) *RenderContext {
	return &RenderContext{
		Cmd:        f.cmd,
		Resources:  f.resources,
		Objects:    objects,
		SceneData:  scene,
		DrawExtent: f.extent,
		Stats:      metadata.NewRenderStats(),
	}
}

func (f *fixture) object(t *testing.T, pass metadata.PassID, p gpu.Pipeline) metadata.RenderObject {
	t.Helper()
	index, _ := f.device.NewBuffer("index", 144, gpu.BufferUsageIndex)
	vertex, _ := f.device.NewBuffer("vertex", 24*64, gpu.BufferUsageVertex)
	return metadata.RenderObject{
		Model:        metadata.NewModelID(),
		Pass:         pass,
		Transform:    math.TransformIdentity(),
		Pipeline:     p,
		VertexBuffer: vertex,
		IndexBuffer:  index,
		IndicesLen:   36,
	}
}

func TestParsePassType(t *testing.T) {
	for pt, name := range passTypeNames {
		got, err := ParsePassType(name)
		if err != nil || got != pt {
			t.Errorf("ParsePassType(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParsePassType("raytrace"); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

func TestForwardPassRecordsInOrder(t *testing.T) {
	f := newFixture(t)
	p, err := NewMaterialPass(f.device, 2, DefaultConfig("forward", PassTypeForward))
	if err != nil {
		t.Fatalf("NewMaterialPass: %v", err)
	}
	if p.Pipeline() != nil {
		t.Errorf("forward pass must not have a fixed pipeline")
	}
	pipeline, _ := f.device.NewPipeline(gpu.NewGraphicsPipelineDesc("mesh").WithShaders("mesh.vert.spv", "mesh.frag.spv"))

	camera := components.NewPerspectiveCamera(4.0/3.0, 60, 0.1, 100, -90, 0)
	scene := p.SceneData(uniform.SceneData{Camera: camera, CameraTransform: math.TransformIdentity()})
	if uint64(len(scene)) != p.SceneDataLayout().Uniform().Size() {
		t.Fatalf("scene data of %d bytes, layout is %d", len(scene), p.SceneDataLayout().Uniform().Size())
	}

	objects := []metadata.RenderObject{f.object(t, p.ID(), pipeline), f.object(t, p.ID(), pipeline)}
	if err := p.Render(f.context(objects, scene)); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var ops []headless.Op
	for _, c := range f.device.Recorder().Commands() {
		ops = append(ops, c.Op)
	}
	want := []headless.Op{
		headless.OpBegin,
		headless.OpTransition, headless.OpTransition,
		headless.OpBeginLabel, headless.OpBeginRendering, headless.OpSetViewport,
		headless.OpBindPipeline, headless.OpBindResourceBuffer,
		headless.OpPushConstants, headless.OpBindVertexBuffer, headless.OpBindIndexBuffer, headless.OpDrawIndexed,
		headless.OpPushConstants, headless.OpBindVertexBuffer, headless.OpBindIndexBuffer, headless.OpDrawIndexed,
		headless.OpEndRendering, headless.OpEndLabel,
	}
	if len(ops) != len(want) {
		t.Fatalf("recorded %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("command %d is %s, want %s", i, ops[i], want[i])
		}
	}
	if v := f.device.Recorder().Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestDepthPassHasFixedPipeline(t *testing.T) {
	f := newFixture(t)
	p, err := NewMaterialPass(f.device, 2, DefaultConfig("depth", PassTypeDepth))
	if err != nil {
		t.Fatalf("NewMaterialPass: %v", err)
	}
	if p.Pipeline() == nil {
		t.Fatalf("depth pass needs a fixed pipeline")
	}
	if p.VertexAttributes() != gpu.VertexPosition {
		t.Errorf("depth pass consumes %s", p.VertexAttributes())
	}
	if _, ok := p.ColorAttachment(); ok {
		t.Errorf("depth pass must not have a color attachment")
	}
	if name, ok := p.DepthAttachment(); !ok || name != DepthImage {
		t.Errorf("depth attachment = %q, %v", name, ok)
	}

	// objects without a pipeline are drawn with the fixed one
	objects := []metadata.RenderObject{f.object(t, p.ID(), nil)}
	transparent := f.object(t, p.ID(), nil)
	transparent.Transparent = true
	objects = append(objects, transparent)

	ctx := f.context(objects, nil)
	if err := p.Render(ctx); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := f.device.Recorder().Count(headless.OpDrawIndexed); got != 1 {
		t.Errorf("expected the transparent object to be skipped, got %d draws", got)
	}
	begin := f.device.Recorder().Filter(headless.OpBeginRendering)
	if len(begin) != 1 || begin[0].Values[3] != 1 {
		t.Errorf("depth must be cleared: %v", begin)
	}
}

func TestMaterialPassContainsObjectErrors(t *testing.T) {
	f := newFixture(t)
	p, err := NewMaterialPass(f.device, 2, DefaultConfig("forward", PassTypeForward))
	if err != nil {
		t.Fatalf("NewMaterialPass: %v", err)
	}
	pipeline, _ := f.device.NewPipeline(gpu.NewGraphicsPipelineDesc("mesh").WithShaders("mesh.vert.spv", "mesh.frag.spv"))
	objects := []metadata.RenderObject{
		f.object(t, p.ID(), nil),
		f.object(t, p.ID(), pipeline),
	}
	if err := p.Render(f.context(objects, nil)); err != nil {
		t.Fatalf("an object error must not fail the pass: %v", err)
	}
	if got := f.device.Recorder().Count(headless.OpDrawIndexed); got != 1 {
		t.Errorf("expected 1 draw, got %d", got)
	}
}

func TestComputePassDispatch(t *testing.T) {
	f := newFixture(t)
	p, err := NewComputePass(f.device, 2, "background", nil)
	if err != nil {
		t.Fatalf("NewComputePass: %v", err)
	}
	ctx := f.context(nil, nil)
	ctx.FrameID = 1
	if err := p.Render(ctx); err != nil {
		t.Fatalf("Render: %v", err)
	}
	dispatch := f.device.Recorder().Filter(headless.OpDispatch)
	if len(dispatch) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(dispatch))
	}
	if dispatch[0].Values[0] != 800/16+1 || dispatch[0].Values[1] != 600/16+1 || dispatch[0].Values[2] != 1 {
		t.Errorf("unexpected group counts %v", dispatch[0].Values)
	}
	if l := f.resources.Image(DrawImage).Layout(); l != gpu.ImageLayoutGeneral {
		t.Errorf("draw image left in %s", l)
	}
	bg := p.groups[1].(*headless.BindingGroup)
	bound := bg.Bound()
	if len(bound) != 1 || bound[0] != f.resources.Image(DrawImage).ID() {
		t.Errorf("slot group bound to %v", bound)
	}
	if v := f.device.Recorder().Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestComputePassPanicsOnSmallPool(t *testing.T) {
	f := newFixture(t)
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, core.ErrPoolExhausted) {
			t.Errorf("expected a panic wrapping ErrPoolExhausted, got %v", r)
		}
	}()
	NewComputePass(f.device, 3, "background", DefaultComputePipeline("background").WithMaxBindingGroups(2))
}

func TestPresentPassCopiesDraw(t *testing.T) {
	f := newFixture(t)
	display := headless.NewDisplay(f.device, gpu.NewExtent2D(1024, 768))
	if err := display.Acquire(nil); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ctx := f.context(nil, nil)
	if err := NewPresentPass("present").Render(ctx); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData without a target, got %v", err)
	}

	ctx.Target = display.RenderTarget()
	if err := NewPresentPass("present").Render(ctx); err != nil {
		t.Fatalf("Render: %v", err)
	}
	copies := f.device.Recorder().Filter(headless.OpCopyImageToImage)
	if len(copies) != 1 {
		t.Fatalf("expected one copy, got %d", len(copies))
	}
	want := []uint64{800, 600, 1024, 768}
	for i, v := range want {
		if copies[0].Values[i] != v {
			t.Errorf("copy extents %v, want %v", copies[0].Values, want)
			break
		}
	}
	if v := f.device.Recorder().Violations(); len(v) != 0 {
		t.Errorf("unexpected violations: %v", v)
	}
}

func TestDummyPass(t *testing.T) {
	p := NewDummyPass("dummy", DrawImage)
	if err := p.Render(&RenderContext{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if p.Renders() != 1 || p.Type() != PassTypeDummy || len(p.Attachments()) != 1 {
		t.Errorf("unexpected dummy pass state")
	}
}
