package uniform

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/framegraph/engine/math"
)

// UniformProp is the type of one field of a uniform block.
type UniformProp int

const (
	PropBool UniformProp = iota
	PropF32
	PropU32
	PropU64
	PropVec2F
	PropVec3F
	PropVec4F
	PropMat3F
	PropMat4F
)

var propNames = [...]string{"bool", "f32", "u32", "u64", "vec2f", "vec3f", "vec4f", "mat3f", "mat4f"}

func (p UniformProp) String() string {
	if int(p) < len(propNames) {
		return propNames[p]
	}
	return "unknown"
}

// Size is the number of bytes written for the field. Mat3 columns are
// padded to vec4.
func (p UniformProp) Size() uint64 {
	switch p {
	case PropBool, PropF32, PropU32:
		return 4
	case PropU64, PropVec2F:
		return 8
	case PropVec3F:
		return 12
	case PropVec4F:
		return 16
	case PropMat3F:
		return 48
	case PropMat4F:
		return 64
	}
	return 0
}

func (p UniformProp) Alignment() uint64 {
	switch p {
	case PropBool, PropF32, PropU32:
		return 4
	case PropVec2F:
		return 8
	}
	return 16
}

// UniformPropData is a value for one field.
type UniformPropData struct {
	kind   UniformProp
	floats [16]float32
	bits   uint64
}

func (d UniformPropData) Kind() UniformProp {
	return d.kind
}

func BoolData(v bool) UniformPropData {
	d := UniformPropData{kind: PropBool}
	if v {
		d.bits = 1
	}
	return d
}

func F32Data(v float32) UniformPropData {
	d := UniformPropData{kind: PropF32}
	d.floats[0] = v
	return d
}

func U32Data(v uint32) UniformPropData {
	return UniformPropData{kind: PropU32, bits: uint64(v)}
}

func U64Data(v uint64) UniformPropData {
	return UniformPropData{kind: PropU64, bits: v}
}

func Vec2FData(v math.Vec2) UniformPropData {
	d := UniformPropData{kind: PropVec2F}
	d.floats[0], d.floats[1] = v.X, v.Y
	return d
}

func Vec3FData(v math.Vec3) UniformPropData {
	d := UniformPropData{kind: PropVec3F}
	d.floats[0], d.floats[1], d.floats[2] = v.X, v.Y, v.Z
	return d
}

func Vec4FData(v math.Vec4) UniformPropData {
	d := UniformPropData{kind: PropVec4F}
	d.floats[0], d.floats[1], d.floats[2], d.floats[3] = v.X, v.Y, v.Z, v.W
	return d
}

func Mat3FData(m math.Mat3) UniformPropData {
	d := UniformPropData{kind: PropMat3F}
	for col := 0; col < 3; col++ {
		copy(d.floats[col*4:col*4+3], m.Data[col*3:col*3+3])
	}
	return d
}

func Mat4FData(m math.Mat4) UniformPropData {
	d := UniformPropData{kind: PropMat4F}
	copy(d.floats[:], m.Data[:])
	return d
}

// appendTo writes the little endian representation of the value.
func (d UniformPropData) appendTo(out []byte) []byte {
	switch d.kind {
	case PropBool, PropU32:
		return binary.LittleEndian.AppendUint32(out, uint32(d.bits))
	case PropU64:
		return binary.LittleEndian.AppendUint64(out, d.bits)
	}
	n := d.kind.Size() / 4
	for i := uint64(0); i < n; i++ {
		out = binary.LittleEndian.AppendUint32(out, gomath.Float32bits(d.floats[i]))
	}
	return out
}
