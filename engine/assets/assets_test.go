package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
)

func TestDetermineAssetType(t *testing.T) {
	cases := map[string]AssetType{
		"assets/graph.toml":          AssetTypeGraph,
		"assets/graph.YAML":          AssetTypeGraph,
		"graph.yml":                  AssetTypeGraph,
		"shaders/mesh.vert.spv":      AssetTypeShader,
		"textures/cobblestone.png":   AssetTypeTexture,
		"textures/cobblestone.jpeg":  AssetTypeTexture,
		"textures/sky.bmp":           AssetTypeTexture,
		"materials/crate.amt":        AssetTypeMaterial,
		"fonts/Ubuntu Mono 21px.fnt": AssetTypeFont,
		"README.md":                  AssetTypeNone,
		"noext":                      AssetTypeNone,
	}
	for path, want := range cases {
		if got := determineAssetType(path); got != want {
			t.Errorf("determineAssetType(%q) = %s, want %s", path, got, want)
		}
	}
}

const testGraph = `
[graphs]
default = ["forward"]

[passes.forward]
tag = "forward"
`

func TestLoadGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.toml")
	if err := os.WriteFile(path, []byte(testGraph), 0o644); err != nil {
		t.Fatal(err)
	}

	am, err := NewAssetManager()
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	defer am.Close()

	data, err := am.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, ok := data.(*graph.GraphConfig)
	if !ok {
		t.Fatalf("expected a graph config, got %T", data)
	}
	if _, err := cfg.Schedule("default"); err != nil {
		t.Errorf("Schedule: %v", err)
	}
	info, ok := am.Asset(path)
	if !ok || info.Type != AssetTypeGraph || info.LastLoaded.IsZero() {
		t.Errorf("asset not indexed after load: %+v", info)
	}

	if _, err := am.Load(filepath.Join(dir, "notes.txt")); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for an unknown type, got %v", err)
	}
}

func TestWatchDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.toml")
	if err := os.WriteFile(path, []byte(testGraph), 0o644); err != nil {
		t.Fatal(err)
	}

	am, err := NewAssetManager()
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	defer am.Close()
	am.SetDebounce(50 * time.Millisecond)

	var calls atomic.Int32
	changed := make(chan string, 8)
	am.OnChange(AssetTypeGraph, func(p string) {
		calls.Add(1)
		changed <- p
	})
	am.OnChange(AssetTypeShader, func(string) {
		t.Errorf("shader listener called for a graph file")
	})
	if err := am.Initialize(dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, ok := am.Asset(path); !ok {
		t.Fatalf("existing file not indexed")
	}

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(testGraph), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case p := <-changed:
		if p != filepath.Clean(path) {
			t.Errorf("callback for %q, want %q", p, path)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no change reported")
	}
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected the writes to be merged into one callback, got %d", n)
	}
}

func TestWatchNewFile(t *testing.T) {
	dir := t.TempDir()
	am, err := NewAssetManager()
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	defer am.Close()
	am.SetDebounce(10 * time.Millisecond)

	changed := make(chan string, 8)
	am.OnChange(AssetTypeMaterial, func(p string) { changed <- p })
	if err := am.Watch(dir); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	path := filepath.Join(dir, "crate.amt")
	if err := os.WriteFile(path, []byte("name = crate\npipeline = mesh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatalf("created material not reported")
	}
	if info, ok := am.Asset(path); !ok || info.Type != AssetTypeMaterial {
		t.Errorf("created file not indexed: %+v", info)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	am, err := NewAssetManager()
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	if err := am.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := am.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := am.Watch(t.TempDir()); err == nil {
		t.Errorf("Watch after Close must fail")
	}
}
