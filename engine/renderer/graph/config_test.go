package graph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/pass"
)

const tomlGraph = `
[graphs]
default = ["depth", "forward", "wire"]
picking = ["depth", "select"]

[attachments.select]
usage = "color"
format = "r8g8b8a8_unorm"

[passes.depth]
tag = "depth"

[passes.forward]
kind = "material"
tag = "forward"
render_transparent = false
object_layout = ["world_matrix", "normal_matrix", "vertex_buffer_address"]
scene_layout = ["camera_position", "camera_view_proj", "light_direction", "light_color", "light_ambient_color"]

[[passes.forward.attachments]]
name = "draw"
kind = "color"
access = "read_write"

[[passes.forward.attachments]]
name = "depth"
kind = "depth"
access = "read_only"
layout = "depth"

[passes.wire]
tag = "wire"
pipeline = "wire_thick"

[passes.select]
tag = "select"

[pipelines.wire_thick]
kind = "graphics"
vertex_shader = "wire.vert.spv"
fragment_shader = "wire.frag.spv"
vertex_attributes = ["position", "color"]
cull_mode = "none"
polygon_mode = "line"
depth_test = true
`

const yamlGraph = `
graphs:
  default: [forward, ui]
passes:
  forward:
    kind: material
    tag: forward
  ui:
    kind: material
    tag: ui
    render_opaque: false
    attachments:
      - name: draw
        kind: color
`

func headlessContext() GraphContext {
	device := headless.NewDevice(headless.Options{})
	return GraphContext{
		Device:         device,
		Display:        headless.NewDisplay(device, gpu.NewExtent2D(800, 600)),
		FramesInFlight: 2,
	}
}

func TestParseTOML(t *testing.T) {
	cfg, err := ParseConfig([]byte(tomlGraph), FormatTOML)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	schedule, err := cfg.Schedule("default")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	want := []string{"depth", "forward", "wire"}
	if len(schedule) != len(want) {
		t.Fatalf("expected %d passes, got %d", len(want), len(schedule))
	}
	for i, entry := range schedule {
		if entry.Name != want[i] {
			t.Errorf("pass %d is %s, want %s", i, entry.Name, want[i])
		}
	}
	forward := cfg.Passes["forward"]
	if forward.RenderTransparent == nil || *forward.RenderTransparent {
		t.Errorf("render_transparent not decoded: %v", forward.RenderTransparent)
	}
	if forward.RenderOpaque != nil {
		t.Errorf("render_opaque must stay unset")
	}
	if len(forward.Attachments) != 2 || forward.Attachments[1].Layout != "depth" {
		t.Errorf("unexpected attachments %+v", forward.Attachments)
	}

	if _, err := cfg.Schedule("deferred"); !errors.Is(err, core.ErrGraphNotFound) {
		t.Errorf("expected ErrGraphNotFound, got %v", err)
	}
}

func TestParseYAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(yamlGraph), FormatYAML)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	ui := cfg.Passes["ui"]
	if ui.Tag != "ui" || ui.RenderOpaque == nil || *ui.RenderOpaque {
		t.Errorf("unexpected ui pass %+v", ui)
	}
	if _, err := ParseConfig([]byte("graphs: {default: [a]}\nshaders: []\n"), FormatYAML); err == nil {
		t.Errorf("unknown yaml fields must be rejected")
	}
	if _, err := ParseConfig([]byte(yamlGraph), "json"); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for an unknown format, got %v", err)
	}
}

func TestLoadConfigByExtension(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"graph.toml": tomlGraph,
		"graph.yml":  yamlGraph,
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig(%s): %v", name, err)
		}
		if _, err := cfg.Schedule("default"); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestBuildPass(t *testing.T) {
	cfg, err := ParseConfig([]byte(tomlGraph), FormatTOML)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	ctx := headlessContext()

	wire, err := BuildPass(ctx, cfg, "wire")
	if err != nil {
		t.Fatalf("BuildPass wire: %v", err)
	}
	if wire.Type() != pass.PassTypeWire || wire.Pipeline() == nil {
		t.Fatalf("wire pass must have a fixed pipeline")
	}
	if wire.Pipeline().Name() != "wire_thick" {
		t.Errorf("pipeline %s, want wire_thick", wire.Pipeline().Name())
	}
	if wire.VertexAttributes() != gpu.VertexPosition|gpu.VertexColor {
		t.Errorf("vertex attributes %s", wire.VertexAttributes())
	}

	forward, err := BuildPass(ctx, cfg, "forward")
	if err != nil {
		t.Fatalf("BuildPass forward: %v", err)
	}
	if forward.ObjectDataLayout().Uniform().Size() != 128 {
		t.Errorf("object layout of %d bytes", forward.ObjectDataLayout().Uniform().Size())
	}

	expectPanic(t, core.ErrPassNotFound, func() {
		BuildPass(ctx, cfg, "bloom")
	})

	cfg.Passes["broken"] = PassConfig{Tag: "raytrace"}
	if _, err := BuildPass(ctx, cfg, "broken"); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for an unknown tag, got %v", err)
	}
	cfg.Passes["broken"] = PassConfig{Tag: "wire", Pipeline: "missing"}
	if _, err := BuildPass(ctx, cfg, "broken"); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for an unknown pipeline, got %v", err)
	}
}

func TestNewDefaultFromConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(tomlGraph), FormatTOML)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	g, err := NewDefault(headlessContext(), cfg, "default")
	if err != nil {
		t.Fatalf("NewDefault: %v", err)
	}
	defer g.Close()

	var names []string
	for _, p := range g.Passes() {
		names = append(names, p.Name())
	}
	want := []string{"compute", "depth", "forward", "wire", "present"}
	if len(names) != len(want) {
		t.Fatalf("passes %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("pass %d is %s, want %s", i, names[i], want[i])
		}
	}
	if !g.Resources().Has(pass.SelectImage) {
		t.Errorf("attachments section must be registered")
	}
	if got := g.Resources().Image(pass.DrawImage).Extent(); got != gpu.NewExtent2D(1920, 1080) {
		t.Errorf("draw image of %s", got)
	}

	if _, err := NewDefault(headlessContext(), cfg, "deferred"); !errors.Is(err, core.ErrGraphNotFound) {
		t.Errorf("expected ErrGraphNotFound, got %v", err)
	}
}

func TestFailedBuildReleasesEverything(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unknown tag", `
[graphs]
default = ["depth", "bogus"]
[passes.depth]
tag = "depth"
[passes.bogus]
tag = "raytrace"
`},
		{"unregistered attachment", `
[graphs]
default = ["depth", "forward"]
[passes.depth]
tag = "depth"
[passes.forward]
tag = "forward"
[[passes.forward.attachments]]
name = "gbuffer"
kind = "color"
`},
		{"missing pass", `
[graphs]
default = ["depth", "forward"]
[passes.depth]
tag = "depth"
`},
	}
	for _, c := range cases {
		cfg, err := ParseConfig([]byte(c.src), FormatTOML)
		if err != nil {
			t.Fatalf("%s: ParseConfig: %v", c.name, err)
		}
		ctx := headlessContext()
		device := ctx.Device.(*headless.Device)
		func() {
			defer func() { recover() }()
			if g, err := NewDefault(ctx, cfg, "default"); err == nil {
				g.Close()
				t.Errorf("%s: NewDefault succeeded", c.name)
			}
		}()
		if live := device.Live(); live != 0 {
			t.Errorf("%s: %d GPU objects left after the failed build", c.name, live)
		}
	}

	// a successful build releases the same objects on Close
	ctx := headlessContext()
	device := ctx.Device.(*headless.Device)
	g, err := NewHeadless(ctx)
	if err != nil {
		t.Fatalf("NewHeadless: %v", err)
	}
	if device.Live() == 0 {
		t.Fatal("no GPU object tracked for the headless graph")
	}
	g.Close()
	if live := device.Live(); live != 0 {
		t.Errorf("%d GPU objects left after Close", live)
	}
}

func TestShippedGraphs(t *testing.T) {
	for _, file := range []string{"graph.toml", "graph.yaml"} {
		cfg, err := LoadConfig(filepath.Join("..", "..", "..", "assets", file))
		if err != nil {
			t.Fatalf("LoadConfig(%s): %v", file, err)
		}
		for name := range cfg.Graphs {
			ctx := headlessContext()
			g, err := NewDefault(ctx, cfg, name)
			if err != nil {
				t.Errorf("%s: graph %s: %v", file, name, err)
				continue
			}
			// compute and present wrap the scheduled passes
			if want := len(cfg.Graphs[name]) + 2; len(g.Passes()) != want {
				t.Errorf("%s: graph %s has %d passes, want %d", file, name, len(g.Passes()), want)
			}
			checkDepthClearedFirst(t, file+" "+name, g, ctx.Device.(*headless.Device))
			g.Close()
		}
	}
}

// checkDepthClearedFirst renders one frame of g and expects the first pass
// using the depth image to clear it, since its content does not survive
// between frames.
func checkDepthClearedFirst(t *testing.T, label string, g *FrameGraph, device *headless.Device) {
	t.Helper()
	if err := g.Begin(context.Background()); err != nil {
		t.Fatalf("%s: Begin: %v", label, err)
	}
	if err := g.Render(nil, nil, metadata.NewRenderStats()); err != nil {
		t.Fatalf("%s: Render: %v", label, err)
	}
	if err := g.End(); err != nil {
		t.Fatalf("%s: End: %v", label, err)
	}
	for _, c := range device.Recorder().Filter(headless.OpBeginRendering) {
		if c.Values[4] == 0 {
			continue
		}
		if c.Values[3] == 0 {
			t.Errorf("%s: depth is read by %s before any pass clears it", label, c.Target)
		}
		return
	}
}
