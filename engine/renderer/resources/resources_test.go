package resources

import (
	"image"
	"image/color"
	"testing"

	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/systems"
)

type testPass struct {
	id    metadata.PassID
	attrs gpu.VertexAttribute
}

func (p testPass) ID() metadata.PassID                   { return p.id }
func (p testPass) VertexAttributes() gpu.VertexAttribute { return p.attrs }

func newTestManager(t *testing.T, framesInFlight int) (*MeshResourceManager, *headless.Device) {
	t.Helper()
	device := headless.NewDevice(headless.Options{})
	buffers := NewBufferPool(device)
	textures := NewTextureManager(device, buffers, nil)
	return NewMeshResourceManager(device, framesInFlight, buffers, textures), device
}

func TestVertexStride(t *testing.T) {
	cases := []struct {
		flags   gpu.VertexAttribute
		padding bool
		stride  uint64
	}{
		{gpu.VertexPosition, false, 12},
		{gpu.VertexPosition, true, 16},
		{gpu.VertexPosition | gpu.VertexTexture, true, 32},
		{gpu.VertexTexture | gpu.VertexNormalTexture, true, 16},
		{gpu.VertexPosition | gpu.VertexColor | gpu.VertexNormal, false, 40},
	}
	for _, c := range cases {
		if got := VertexStride(c.flags, c.padding); got != c.stride {
			t.Errorf("stride(%s, %v) = %d, want %d", c.flags, c.padding, got, c.stride)
		}
		packed := AppendVertex(nil, VertexData{}, c.flags, c.padding)
		if uint64(len(packed)) != c.stride {
			t.Errorf("packed %s into %d bytes, want %d", c.flags, len(packed), c.stride)
		}
	}
}

func TestBufferPoolReuse(t *testing.T) {
	device := headless.NewDevice(headless.Options{})
	pool := NewBufferPool(device)

	a, err := pool.Get("a", gpu.BufferUsageVertex, 100)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Size() != 256 {
		t.Errorf("expected size rounded to 256, got %d", a.Size())
	}
	pool.Put(a)
	if pool.Free(gpu.BufferUsageVertex) != 1 {
		t.Fatalf("buffer not returned")
	}

	if b, _ := pool.Get("b", gpu.BufferUsageVertex, 200); b.ID() != a.ID() {
		t.Error("expected the free buffer to be reused")
	}
	pool.Put(a)
	if c, _ := pool.Get("c", gpu.BufferUsageVertex, 1000); c.ID() == a.ID() {
		t.Error("a too small buffer must not be reused")
	}
	if d, _ := pool.Get("d", gpu.BufferUsageIndex, 10); d.ID() == a.ID() {
		t.Error("buffers are not shared across usages")
	}
	if pool.Created() != 3 {
		t.Errorf("expected 3 allocations, got %d", pool.Created())
	}
}

func TestCachedMeshIsUploadedOnce(t *testing.T) {
	m, device := newTestManager(t, 2)
	model := NewModel("cube").AddMesh(NewCubeMesh("cube", math.NewVec4(1, 0, 0, 1)), nil)
	pass := testPass{id: metadata.NewPassID(), attrs: gpu.VertexPosition | gpu.VertexColor}

	first, err := m.AddObject(model, pass, metadata.LifetimeCached)
	if err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	second, _ := m.AddObject(model, pass, metadata.LifetimeCached)
	if len(first) != 1 || first[0] != second[0] {
		t.Fatal("cached mesh should be returned on the second call")
	}
	if got := device.Recorder().Count(headless.OpCopyBuffer); got != 2 {
		t.Errorf("expected one vertex and one index copy, got %d", got)
	}
	if first[0].IndicesLen != 36 {
		t.Errorf("indices len %d", first[0].IndicesLen)
	}

	vertices, _ := first[0].VertexBuffer.Read()
	stride := VertexStride(pass.attrs, true)
	if uint64(len(vertices)) < 24*stride {
		t.Errorf("vertex buffer holds %d bytes, want %d", len(vertices), 24*stride)
	}
}

func TestTransientMeshExpires(t *testing.T) {
	const framesInFlight = 2
	m, _ := newTestManager(t, framesInFlight)
	model := NewModel("cube").AddMesh(NewCubeMesh("cube", math.NewVec4(1, 1, 1, 1)), nil)
	pass := testPass{id: metadata.NewPassID(), attrs: gpu.VertexPosition}

	if _, err := m.AddObject(model, pass, metadata.LifetimeTransient); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	for frame := 1; frame <= framesInFlight; frame++ {
		m.NewFrame()
		if !m.Contains(model.ID, pass.id) {
			t.Fatalf("transient mesh released too early at frame %d", frame)
		}
	}
	m.NewFrame()
	m.NewFrame()
	if m.Contains(model.ID, pass.id) {
		t.Fatal("transient mesh still present after the frames in flight")
	}
	if m.buffers.Free(gpu.BufferUsageVertex) != 1 || m.buffers.Free(gpu.BufferUsageIndex) != 1 {
		t.Error("transient buffers were not returned to the pool")
	}
}

func TestEvictPass(t *testing.T) {
	m, _ := newTestManager(t, 2)
	model := NewModel("cube").AddMesh(NewCubeMesh("cube", math.NewVec4(1, 1, 1, 1)), nil)
	depth := testPass{id: metadata.NewPassID(), attrs: gpu.VertexPosition}
	forward := testPass{id: metadata.NewPassID(), attrs: gpu.VertexPosition | gpu.VertexNormal}

	for _, p := range []testPass{depth, forward} {
		if _, err := m.AddObject(model, p, metadata.LifetimeCached); err != nil {
			t.Fatalf("AddObject: %v", err)
		}
	}
	if got := m.EvictPass(depth.id); got != 1 {
		t.Errorf("evicted %d models, want 1", got)
	}
	if m.Contains(model.ID, depth.id) {
		t.Error("depth meshes still cached after eviction")
	}
	if !m.Contains(model.ID, forward.id) {
		t.Error("eviction of depth dropped the forward meshes")
	}
	if got := m.EvictPass(depth.id); got != 0 {
		t.Errorf("second eviction removed %d models", got)
	}
}

func TestBoundingBoxIsTransient(t *testing.T) {
	m, _ := newTestManager(t, 1)
	pass := testPass{id: metadata.NewPassID(), attrs: gpu.VertexPosition}
	meshes, err := m.AddBoundingBox(math.NewBoundingBox(math.NewVec3(-1, -1, -1), math.NewVec3(1, 1, 1)), pass)
	if err != nil {
		t.Fatalf("AddBoundingBox: %v", err)
	}
	if len(meshes) != 1 || meshes[0].IndicesLen != 36 {
		t.Fatalf("unexpected box meshes %+v", meshes)
	}
	id := meshes[0].Model.ID
	m.NewFrame()
	m.NewFrame()
	if m.Contains(id, pass.id) {
		t.Error("box should expire")
	}
}

func TestMaterialBindingIsCached(t *testing.T) {
	m, device := newTestManager(t, 2)
	pipeline, err := device.NewPipeline(gpu.NewGraphicsPipelineDesc("forward").
		WithShaders("mesh.vert", "mesh.frag").
		WithVertexAttributes(gpu.VertexPosition|gpu.VertexTexture).
		WithBindingGroup(gpu.BindingGroupMaterialTextures, gpu.ShaderStageFragment, gpu.BindingSampledImage, gpu.BindingSampler))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	material := NewMaterial("textured", pipeline, false)
	instance := material.Instantiate(NewTexture("checker", img, gpu.SamplerFilterNearest))
	plain := material.Instantiate()

	model := NewModel("two").
		AddMesh(NewCubeMesh("a", math.NewVec4(1, 1, 1, 1)), instance).
		AddMesh(NewCubeMesh("b", math.NewVec4(1, 1, 1, 1)), instance).
		AddMesh(NewCubeMesh("c", math.NewVec4(1, 1, 1, 1)), plain)
	meshes, err := m.AddObject(model, testPass{id: metadata.NewPassID()}, metadata.LifetimeCached)
	if err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	if meshes[0].Material.Binding == nil || meshes[0].Material.Binding != meshes[1].Material.Binding {
		t.Error("meshes sharing an instance should share its binding")
	}
	if meshes[2].Material.Binding != nil {
		t.Error("an instance without textures has no binding")
	}
	if meshes[1].VerticesOffset != 24*VertexStride(gpu.VertexPosition|gpu.VertexTexture, true) {
		t.Errorf("second mesh vertices offset %d", meshes[1].VerticesOffset)
	}
	if got := pipeline.(*headless.Pipeline).Allocated(gpu.BindingGroupMaterialTextures); got != 1 {
		t.Errorf("expected one binding group, got %d", got)
	}
	if m.Textures().Len() != 1 {
		t.Errorf("expected one texture uploaded, got %d", m.Textures().Len())
	}
}

func TestToRGBA(t *testing.T) {
	src := image.NewGray(image.Rect(2, 2, 4, 4))
	src.SetGray(2, 2, color.Gray{Y: 200})
	rgba := ToRGBA(src)
	if rgba.Rect.Min != (image.Point{}) || rgba.Rect.Dx() != 2 {
		t.Fatalf("unexpected bounds %v", rgba.Rect)
	}
	if c := rgba.RGBAAt(0, 0); c.R != 200 || c.A != 255 {
		t.Errorf("pixel %+v", c)
	}
}

func TestPreloadWithJobs(t *testing.T) {
	device := headless.NewDevice(headless.Options{})
	jobs, err := systems.NewJobSystem(4, 8)
	if err != nil {
		t.Fatalf("NewJobSystem: %v", err)
	}
	defer jobs.Shutdown()

	tm := NewTextureManager(device, NewBufferPool(device), jobs)
	textures := make([]*Texture, 10)
	for i := range textures {
		textures[i] = NewTexture("t", image.NewGray(image.Rect(0, 0, 8, 8)), gpu.SamplerFilterLinear)
	}

	calls := 0
	if err := tm.Preload(textures, func(done, total int) {
		calls++
		if total != 10 || done != calls {
			t.Errorf("progress %d/%d at call %d", done, total, calls)
		}
	}); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if tm.Len() != 10 || calls != 10 {
		t.Errorf("uploaded %d textures with %d progress calls", tm.Len(), calls)
	}
	for _, tex := range textures {
		gt, _ := tm.Load(tex)
		if gt.Image.Layout() != gpu.ImageLayoutShader {
			t.Errorf("texture left in layout %s", gt.Image.Layout())
		}
	}
}

func TestTextMeshLayout(t *testing.T) {
	font := &Font{
		LineHeight:  16,
		AtlasWidth:  64,
		AtlasHeight: 64,
		Glyphs: map[rune]Glyph{
			'A': {Codepoint: 'A', X: 0, Y: 0, Width: 8, Height: 10, YOffset: 3, XAdvance: 9},
			'B': {Codepoint: 'B', X: 8, Y: 0, Width: 8, Height: 10, YOffset: 3, XAdvance: 9},
			' ': {Codepoint: ' ', XAdvance: 4},
		},
		Kernings: map[KerningPair]int{{First: 'A', Second: 'B'}: -1},
	}

	mesh := NewTextMesh("label", font, "AB ?\nA", math.NewVec4(1, 1, 1, 1))
	// the space has no quad and '?' has no glyph
	if len(mesh.Vertices) != 12 || len(mesh.Indices) != 18 {
		t.Fatalf("expected 3 quads, got %d vertices and %d indices", len(mesh.Vertices), len(mesh.Indices))
	}
	if got := mesh.Vertices[4].Position.X; got != 8 {
		t.Errorf("kerned B starts at %f, want 8", got)
	}
	if got := mesh.Vertices[5].Texture.X; got != 0.25 {
		t.Errorf("B right u = %f, want 0.25", got)
	}
	if got := mesh.Vertices[8].Position; got.X != 0 || got.Y != 19 {
		t.Errorf("second line starts at %v", got)
	}
	if got := mesh.Indices[6]; got != 4 {
		t.Errorf("second quad indices start at %d", got)
	}
}
