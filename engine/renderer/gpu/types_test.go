package gpu

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/framegraph/engine/core"
)

func TestExtentScale(t *testing.T) {
	e := NewExtent2D(1920, 1080)
	if got := e.Scale(0.5); got != NewExtent2D(960, 540) {
		t.Errorf("Scale(0.5) = %s", got)
	}
	if got := e.Min(NewExtent2D(800, 1200)); got != NewExtent2D(800, 1080) {
		t.Errorf("Min = %s", got)
	}
	if got := e.Max(NewExtent2D(800, 1200)); got != NewExtent2D(1920, 1200) {
		t.Errorf("Max = %s", got)
	}
}

func TestParseEnums(t *testing.T) {
	f, err := ParseImageFormat("R16G16B16A16_SFLOAT")
	if err != nil || f != ImageFormatR16g16b16a16Sfloat {
		t.Errorf("ParseImageFormat = %v, %v", f, err)
	}
	l, err := ParseImageLayout("transfer_src")
	if err != nil || l != ImageLayoutTransferSrc {
		t.Errorf("ParseImageLayout = %v, %v", l, err)
	}
	if _, err := ParseImageUsage("hologram"); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
	attrs, err := ParseVertexAttributes([]string{"position", "normal", "texture"})
	if err != nil {
		t.Fatalf("ParseVertexAttributes: %v", err)
	}
	if attrs != VertexPosition|VertexNormal|VertexTexture {
		t.Errorf("unexpected attributes %s", attrs)
	}
	if _, err := ParseVertexAttributes([]string{""}); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for an empty attribute, got %v", err)
	}
}

func TestPaddedLayout(t *testing.T) {
	cases := []struct {
		attrs   VertexAttribute
		stride  uint64
		offsets []uint64
	}{
		{VertexPosition, 16, []uint64{0}},
		{VertexPosition | VertexColor | VertexTexture | VertexNormal, 64, []uint64{0, 16, 32, 48}},
		{VertexTexture | VertexNormalTexture, 16, []uint64{0, 8}},
	}
	for _, c := range cases {
		stride, offsets := c.attrs.PaddedLayout()
		if stride != c.stride {
			t.Errorf("%s: stride = %d, want %d", c.attrs, stride, c.stride)
		}
		if len(offsets) != len(c.offsets) {
			t.Fatalf("%s: offsets = %v, want %v", c.attrs, offsets, c.offsets)
		}
		for i := range offsets {
			if offsets[i] != c.offsets[i] {
				t.Errorf("%s: offsets = %v, want %v", c.attrs, offsets, c.offsets)
				break
			}
		}
	}
}
