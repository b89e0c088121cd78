package job

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/uniform"
)

type fixture struct {
	device *headless.Device
	cmd    gpu.CommandList
	job    *RenderJob
	pass   metadata.PassID
	index  gpu.Buffer
	vertex gpu.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	device := headless.NewDevice(headless.Options{})
	pass := metadata.NewPassID()
	sceneLayout := uniform.NewSceneDataLayout(uniform.SceneCameraViewProj)
	job, err := New(device, pass, "forward", uniform.DefaultObjectDataLayout(), sceneLayout, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cmd, _ := device.NewCommandList("test")
	if err := cmd.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	index, _ := device.NewBuffer("index", 1024, gpu.BufferUsageIndex)
	vertex, _ := device.NewBuffer("vertex", 1024, gpu.BufferUsageVertex)
	return &fixture{device: device, cmd: cmd, job: job, pass: pass, index: index, vertex: vertex}
}

func (f *fixture) pipeline(t *testing.T, name string) gpu.Pipeline {
	t.Helper()
	p, err := f.device.NewPipeline(gpu.NewGraphicsPipelineDesc(name).WithShaders("a.vert", "a.frag"))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func (f *fixture) object(p gpu.Pipeline) metadata.RenderObject {
	return metadata.RenderObject{
		Model:        metadata.NewModelID(),
		Pass:         f.pass,
		Transform:    math.TransformIdentity(),
		Pipeline:     p,
		VertexBuffer: f.vertex,
		IndexBuffer:  f.index,
		IndicesLen:   36,
	}
}

func (f *fixture) draw(t *testing.T, objects []metadata.RenderObject) (*metadata.RenderStats, error) {
	t.Helper()
	img, _ := f.device.NewImage("draw", gpu.ImageFormatR16g16b16a16Sfloat, gpu.ImageUsageColor, gpu.NewExtent2D(8, 8))
	f.cmd.TransitionImageLayout(img, gpu.ImageLayoutColor)
	f.cmd.BeginRendering(gpu.RenderingInfo{Color: img, Extent: img.Extent()})
	stats := metadata.NewRenderStats()
	err := f.job.DrawList(f.cmd, 0, objects, stats)
	f.cmd.EndRendering()
	return stats, err
}

func TestSharedStateIsBoundOnce(t *testing.T) {
	for _, k := range []int{1, 2, 10} {
		f := newFixture(t)
		p := f.pipeline(t, "forward")
		objects := make([]metadata.RenderObject, k)
		for i := range objects {
			objects[i] = f.object(p)
		}
		stats, err := f.draw(t, objects)
		if err != nil {
			t.Fatalf("DrawList: %v", err)
		}
		rec := f.device.Recorder()
		if rec.Count(headless.OpBindPipeline) != 1 || rec.Count(headless.OpBindIndexBuffer) != 1 || rec.Count(headless.OpBindVertexBuffer) != 1 {
			t.Errorf("k=%d: %d pipeline binds, %d index binds, %d vertex binds", k,
				rec.Count(headless.OpBindPipeline), rec.Count(headless.OpBindIndexBuffer), rec.Count(headless.OpBindVertexBuffer))
		}
		if rec.Count(headless.OpDrawIndexed) != k || stats.Draws != uint32(k) {
			t.Errorf("k=%d: %d draws recorded, %d counted", k, rec.Count(headless.OpDrawIndexed), stats.Draws)
		}
		if rec.Count(headless.OpBindResourceBuffer) != 1 {
			t.Errorf("k=%d: scene data bound %d times", k, rec.Count(headless.OpBindResourceBuffer))
		}
		if rec.Count(headless.OpPushConstants) != k {
			t.Errorf("k=%d: %d object data writes", k, rec.Count(headless.OpPushConstants))
		}
		if v := rec.Violations(); len(v) != 0 {
			t.Errorf("violations: %v", v)
		}
	}
}

func TestIndexOffsetChangeRebinds(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, "forward")
	a, b := f.object(p), f.object(p)
	b.IndicesOffset = 36
	if _, err := f.draw(t, []metadata.RenderObject{a, b, b}); err != nil {
		t.Fatalf("DrawList: %v", err)
	}
	if got := f.device.Recorder().Count(headless.OpBindIndexBuffer); got != 2 {
		t.Errorf("expected 2 index binds, got %d", got)
	}
}

// zeroAddress hides the device address of a buffer, as backends without
// buffer device addresses report it.
type zeroAddress struct {
	gpu.Buffer
}

func (zeroAddress) Address() uint64 { return 0 }

func TestVertexBuffersAreBound(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, "forward")
	other, _ := f.device.NewBuffer("other vertex", 1024, gpu.BufferUsageVertex)

	a, b := f.object(p), f.object(p)
	a.VertexBuffer = zeroAddress{f.vertex}
	b.VertexBuffer = zeroAddress{other}
	c := b
	c.VerticesOffset = 256
	stats, err := f.draw(t, []metadata.RenderObject{a, b, b, c})
	if err != nil {
		t.Fatalf("DrawList: %v", err)
	}

	binds := f.device.Recorder().Filter(headless.OpBindVertexBuffer)
	if len(binds) != 3 || stats.VertexBinds != 3 {
		t.Fatalf("expected 3 vertex binds, got %d recorded and %d counted", len(binds), stats.VertexBinds)
	}
	want := []struct {
		id     gpu.ID
		offset uint64
	}{{f.vertex.ID(), 0}, {other.ID(), 0}, {other.ID(), 256}}
	for i, w := range want {
		if binds[i].TargetID != w.id || binds[i].Values[0] != w.offset {
			t.Errorf("bind %d is %s at %d, want offset %d", i, binds[i].Target, binds[i].Values[0], w.offset)
		}
	}
}

func TestMissingVertexBufferIsSkipped(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, "forward")
	broken := f.object(p)
	broken.VertexBuffer = nil
	stats, err := f.draw(t, []metadata.RenderObject{broken, f.object(p)})
	if !errors.Is(err, core.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
	if stats.Draws != 1 {
		t.Errorf("expected 1 draw, got %d", stats.Draws)
	}
}

func TestMissingPipelineIsSkipped(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, "forward")
	objects := []metadata.RenderObject{f.object(p), f.object(nil), f.object(p)}
	stats, err := f.draw(t, objects)
	if !errors.Is(err, core.ErrInvalidPipeline) {
		t.Fatalf("expected ErrInvalidPipeline, got %v", err)
	}
	if stats.Draws != 2 {
		t.Errorf("expected the other objects to be drawn, got %d draws", stats.Draws)
	}
}

func TestShouldRender(t *testing.T) {
	f := newFixture(t)
	opaque := f.object(nil)
	transparent := f.object(nil)
	transparent.Transparent = true
	other := f.object(nil)
	other.Pass = metadata.NewPassID()

	cases := []struct {
		opaque, transparent bool
		obj                 metadata.RenderObject
		want                bool
	}{
		{true, true, opaque, true},
		{true, true, transparent, true},
		{true, false, transparent, false},
		{false, true, opaque, false},
		{false, true, transparent, true},
		{true, true, other, false},
	}
	for i, c := range cases {
		f.job.SetRenderOpaque(c.opaque)
		f.job.SetRenderTransparent(c.transparent)
		if got := f.job.ShouldRender(&c.obj); got != c.want {
			t.Errorf("case %d: got %v, want %v", i, got, c.want)
		}
	}
}

func TestMaterialBindsFollowInstance(t *testing.T) {
	f := newFixture(t)
	desc := gpu.NewGraphicsPipelineDesc("textured").
		WithShaders("a.vert", "a.frag").
		WithBindingGroup(gpu.BindingGroupMaterialTextures, gpu.ShaderStageFragment, gpu.BindingSampledImage)
	p, err := f.device.NewPipeline(desc)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	group, _ := p.CreateBindingGroup(gpu.BindingGroupMaterialTextures)
	material := &metadata.MaterialBinding{InstanceID: metadata.NewMaterialInstanceID(), Group: group}

	objects := []metadata.RenderObject{f.object(p), f.object(p), f.object(p)}
	for i := range objects {
		objects[i].Material = material
	}
	if _, err := f.draw(t, objects); err != nil {
		t.Fatalf("DrawList: %v", err)
	}
	if got := f.device.Recorder().Count(headless.OpBindResource); got != 1 {
		t.Errorf("expected one material bind, got %d", got)
	}

	f.device.Recorder().Clear()
	f.job.SetFixedPipeline(p)
	if _, err := f.draw(t, objects); err != nil {
		t.Fatalf("DrawList: %v", err)
	}
	if got := f.device.Recorder().Count(headless.OpBindResource); got != 0 {
		t.Errorf("fixed pipeline should not bind materials, got %d", got)
	}
}

func TestUpdateUniformWritesSlot(t *testing.T) {
	f := newFixture(t)
	data := make([]byte, 64)
	data[0] = 42
	if err := f.job.UpdateUniform(1, data); err != nil {
		t.Fatalf("UpdateUniform: %v", err)
	}
	got, _ := f.job.sceneBuffers[1].Read()
	if got[0] != 42 {
		t.Error("slot 1 not written")
	}
	if other, _ := f.job.sceneBuffers[0].Read(); other[0] != 0 {
		t.Error("slot 0 should be untouched")
	}
}
