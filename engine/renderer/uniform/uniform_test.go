package uniform

import (
	"bytes"
	"encoding/binary"
	"errors"
	gomath "math"
	"testing"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/components"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

func TestLayoutSize(t *testing.T) {
	cases := []struct {
		name  string
		props []UniformProp
		size  uint64
		align uint64
	}{
		{"object data", []UniformProp{PropMat4F, PropMat3F, PropU64}, 128, 16},
		{"scalars", []UniformProp{PropF32, PropU32, PropBool}, 12, 4},
		{"vec2 pads scalar", []UniformProp{PropF32, PropVec2F}, 16, 8},
		{"vec3 pads", []UniformProp{PropVec3F, PropVec3F}, 32, 16},
		{"empty", nil, 0, 0},
	}
	for _, c := range cases {
		b := NewUniformLayoutBuilder()
		for i, p := range c.props {
			b.Prop(string(rune('a'+i)), p)
		}
		l := b.Build()
		if l.Size() != c.size || l.Alignment() != c.align {
			t.Errorf("%s: size %d align %d, want %d %d", c.name, l.Size(), l.Alignment(), c.size, c.align)
		}
		if got := uint64(len(l.Data(zeroValues(c.props)))); got != c.size {
			t.Errorf("%s: encoded %d bytes, want %d", c.name, got, c.size)
		}
	}
}

func zeroValues(props []UniformProp) []UniformPropData {
	values := make([]UniformPropData, len(props))
	for i, p := range props {
		values[i] = UniformPropData{kind: p}
	}
	return values
}

func TestDataIsDeterministicAndOrdered(t *testing.T) {
	ab := NewUniformLayoutBuilder().Prop("a", PropF32).Prop("b", PropU32).Build()
	ba := NewUniformLayoutBuilder().Prop("b", PropU32).Prop("a", PropF32).Build()

	first := ab.Data([]UniformPropData{F32Data(1.5), U32Data(7)})
	second := ab.Data([]UniformPropData{F32Data(1.5), U32Data(7)})
	if !bytes.Equal(first, second) {
		t.Fatal("same values encoded differently")
	}
	swapped := ba.Data([]UniformPropData{U32Data(7), F32Data(1.5)})
	if bytes.Equal(first, swapped) {
		t.Fatal("reordering fields should change the bytes")
	}
	if gomath.Float32frombits(binary.LittleEndian.Uint32(first[0:4])) != 1.5 {
		t.Errorf("f32 not little endian: %v", first[0:4])
	}
	if binary.LittleEndian.Uint32(first[4:8]) != 7 {
		t.Errorf("u32 not little endian: %v", first[4:8])
	}
}

func TestCopyDataReusesBuffer(t *testing.T) {
	l := NewUniformLayoutBuilder().Prop("v", PropVec4F).Build()
	out := make([]byte, 0, 64)
	l.CopyData([]UniformPropData{Vec4FData(math.NewVec4(1, 2, 3, 4))}, &out)
	first := &out[0]
	l.CopyData([]UniformPropData{Vec4FData(math.NewVec4(5, 6, 7, 8))}, &out)
	if &out[0] != first || len(out) != 16 {
		t.Errorf("buffer was reallocated or has wrong length %d", len(out))
	}
}

func TestDataPanicsOnMismatch(t *testing.T) {
	l := NewUniformLayoutBuilder().Prop("m", PropMat4F).Build()
	cases := map[string][]UniformPropData{
		"count": {Mat4FData(math.NewMat4Identity()), F32Data(1)},
		"kind":  {F32Data(1)},
	}
	for name, values := range cases {
		func() {
			defer func() {
				r := recover()
				err, ok := r.(error)
				if !ok || !errors.Is(err, core.ErrInvalidData) {
					t.Errorf("%s: expected ErrInvalidData panic, got %v", name, r)
				}
			}()
			l.Data(values)
		}()
	}
}

func TestMat3IsPaddedPerColumn(t *testing.T) {
	l := NewUniformLayoutBuilder().Prop("n", PropMat3F).Build()
	m := math.Mat3{Data: [9]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}}
	data := l.Data([]UniformPropData{Mat3FData(m)})
	want := []float32{1, 2, 3, 0, 4, 5, 6, 0, 7, 8, 9, 0}
	for i, w := range want {
		if got := gomath.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])); got != w {
			t.Fatalf("float %d = %f, want %f", i, got, w)
		}
	}
}

type addressed struct {
	gpu.Buffer
	address uint64
}

func (a addressed) Address() uint64 { return a.address }

func TestObjectDataLayout(t *testing.T) {
	l := DefaultObjectDataLayout()
	if l.Uniform().Size() != 128 {
		t.Fatalf("object data size %d", l.Uniform().Size())
	}
	var out []byte
	transform := math.TransformFromPosition(math.NewVec3(1, 2, 3))
	l.CopyData(transform, addressed{address: 0x1000}, 64, &out)

	if got := gomath.Float32frombits(binary.LittleEndian.Uint32(out[12*4:])); got != 1 {
		t.Errorf("translation x = %f", got)
	}
	if got := binary.LittleEndian.Uint64(out[112:]); got != 0x1040 {
		t.Errorf("vertex address %#x, want 0x1040", got)
	}
}

func TestObjectCopyDataDoesNotAllocate(t *testing.T) {
	l := DefaultObjectDataLayout()
	var vertex gpu.Buffer = addressed{address: 0x2000}
	transform := math.TransformFromPosition(math.NewVec3(1, 2, 3))
	out := make([]byte, 0, l.Uniform().Size())
	l.CopyData(transform, vertex, 0, &out)

	allocs := testing.AllocsPerRun(100, func() {
		l.CopyData(transform, vertex, 128, &out)
	})
	if allocs != 0 {
		t.Errorf("CopyData allocated %.1f times per draw", allocs)
	}
	if got := binary.LittleEndian.Uint64(out[112:]); got != 0x2080 {
		t.Errorf("vertex address %#x, want 0x2080", got)
	}
}

func TestSceneDataLayout(t *testing.T) {
	l := NewSceneDataLayout(SceneCameraViewPort, SceneLightDirection, SceneLightAmbientColor)
	scene := SceneData{
		Camera:         components.NewPerspectiveCamera(1, 1, 0.1, 10, 0, 0),
		Light:          components.NewLight(math.NewVec4(1, 1, 1, 1)),
		LightTransform: math.TransformFromPosition(math.NewVec3(0, 10, 0)),
		Extent:         gpu.NewExtent2D(800, 600),
	}
	data := l.Data(scene)
	if uint64(len(data)) != l.Uniform().Size() || len(data) != 48 {
		t.Fatalf("scene data is %d bytes", len(data))
	}
	if w := gomath.Float32frombits(binary.LittleEndian.Uint32(data[0:])); w != 800 {
		t.Errorf("viewport width %f", w)
	}
	if y := gomath.Float32frombits(binary.LittleEndian.Uint32(data[20:])); y != 1 {
		t.Errorf("light direction should be normalized, y = %f", y)
	}
}

func TestParseProps(t *testing.T) {
	if p, err := ParseObjectDataProp("normal_matrix"); err != nil || p != ObjectNormalMatrix {
		t.Errorf("got %v %v", p, err)
	}
	if _, err := ParseSceneDataProp("sky"); !errors.Is(err, core.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}
