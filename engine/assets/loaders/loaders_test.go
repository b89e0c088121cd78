package loaders

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

func spirv(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

func TestLoadShader(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name  string
		data  []byte
		valid bool
	}{
		{"valid.spv", spirv(spirvMagic, 0x00010000, 0, 1, 0), true},
		{"empty.spv", nil, false},
		{"odd.spv", append(spirv(spirvMagic), 0x01), false},
		{"magic.spv", spirv(0xdeadbeef, 0), false},
	}
	for _, c := range cases {
		path := filepath.Join(dir, c.name)
		if err := os.WriteFile(path, c.data, 0o644); err != nil {
			t.Fatal(err)
		}
		code, err := LoadShader(path)
		if c.valid {
			if err != nil {
				t.Errorf("%s: %v", c.name, err)
			} else if len(code) != len(c.data)/4 || code[0] != spirvMagic {
				t.Errorf("%s: decoded %d words starting with %#x", c.name, len(code), code[0])
			}
			continue
		}
		if !errors.Is(err, core.ErrInvalidData) {
			t.Errorf("%s: expected ErrInvalidData, got %v", c.name, err)
		}
	}
}

func TestLoadTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})

	path := filepath.Join(t.TempDir(), "checker.png")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(file, img); err != nil {
		t.Fatal(err)
	}
	file.Close()

	tex, err := LoadTexture(path, gpu.SamplerFilterNearest)
	if err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	if tex.Name != "checker" {
		t.Errorf("texture name = %q, want checker", tex.Name)
	}
	if tex.Image.Bounds().Dx() != 3 || tex.Image.Bounds().Dy() != 2 {
		t.Errorf("decoded %v", tex.Image.Bounds())
	}
	if r, _, _, _ := tex.Image.At(1, 1).RGBA(); r != 0xffff {
		t.Errorf("pixel (1, 1) lost its colour")
	}
	if tex.Filter != gpu.SamplerFilterNearest {
		t.Errorf("filter = %d", tex.Filter)
	}

	broken := filepath.Join(t.TempDir(), "broken.png")
	os.WriteFile(broken, []byte("not a png"), 0o644)
	if _, err := LoadTexture(broken, gpu.SamplerFilterLinear); err == nil {
		t.Errorf("expected a decode error")
	}
}

func TestParseMaterial(t *testing.T) {
	cfg, err := ParseMaterial(strings.NewReader(`
# crate
name = crate
pipeline = mesh
diffuse_colour = 0.5 1 1 1
diffuse_map_name = crate_diffuse
blending = true
shininess = 32
`))
	if err != nil {
		t.Fatalf("ParseMaterial: %v", err)
	}
	if cfg.Name != "crate" || cfg.Pipeline != "mesh" || cfg.DiffuseMap != "crate_diffuse" || !cfg.Blending {
		t.Errorf("unexpected material %+v", cfg)
	}
	if cfg.DiffuseColour != math.NewVec4(0.5, 1, 1, 1) {
		t.Errorf("diffuse colour = %v", cfg.DiffuseColour)
	}

	for _, bad := range []string{
		"pipeline = mesh",
		"name = crate",
		"name = crate\npipeline = mesh\ndiffuse_colour = 1 1 1",
		"name = crate\npipeline = mesh\ndiffuse_colour = 2 1 1 1",
		"name = crate\npipeline = mesh\nblending = maybe",
	} {
		if _, err := ParseMaterial(strings.NewReader(bad)); !errors.Is(err, core.ErrInvalidData) {
			t.Errorf("%q: expected ErrInvalidData, got %v", bad, err)
		}
	}
}
