package resources

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// VertexData holds every attribute a vertex may carry. Only the attributes
// requested by a pass are packed.
type VertexData struct {
	Position      math.Vec3
	Color         math.Vec4
	Texture       math.Vec2
	Normal        math.Vec3
	NormalTexture math.Vec2
	Tangent       math.Vec3
	Bitangent     math.Vec3
}

// VertexAlignment is the largest alignment of the attributes in flags.
func VertexAlignment(flags gpu.VertexAttribute) uint64 {
	var align uint64
	for _, f := range flags.Flags() {
		align = max(align, f.Alignment())
	}
	return align
}

// VertexStride is the packed size of one vertex. With padding every
// attribute takes a full alignment slot, as required by storage buffers.
func VertexStride(flags gpu.VertexAttribute, padding bool) uint64 {
	var stride uint64
	align := VertexAlignment(flags)
	for _, f := range flags.Flags() {
		if padding {
			stride += align
		} else {
			stride += f.Size()
		}
	}
	return stride
}

// AppendVertex packs v into out.
func AppendVertex(out []byte, v VertexData, flags gpu.VertexAttribute, padding bool) []byte {
	align := VertexAlignment(flags)
	for _, f := range flags.Flags() {
		switch f {
		case gpu.VertexPosition:
			out = appendFloats(out, v.Position.X, v.Position.Y, v.Position.Z)
		case gpu.VertexColor:
			out = appendFloats(out, v.Color.X, v.Color.Y, v.Color.Z, v.Color.W)
		case gpu.VertexTexture:
			out = appendFloats(out, v.Texture.X, v.Texture.Y)
		case gpu.VertexNormal:
			out = appendFloats(out, v.Normal.X, v.Normal.Y, v.Normal.Z)
		case gpu.VertexNormalTexture:
			out = appendFloats(out, v.NormalTexture.X, v.NormalTexture.Y)
		case gpu.VertexTangent:
			out = appendFloats(out, v.Tangent.X, v.Tangent.Y, v.Tangent.Z)
		case gpu.VertexBitangent:
			out = appendFloats(out, v.Bitangent.X, v.Bitangent.Y, v.Bitangent.Z)
		}
		if padding {
			for i := f.Size(); i < align; i++ {
				out = append(out, 0)
			}
		}
	}
	return out
}

// PackVertices packs every vertex of the slice.
func PackVertices(vertices []VertexData, flags gpu.VertexAttribute, padding bool) []byte {
	out := make([]byte, 0, uint64(len(vertices))*VertexStride(flags, padding))
	for _, v := range vertices {
		out = AppendVertex(out, v, flags, padding)
	}
	return out
}

func PackIndices(indices []uint32) []byte {
	out := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		out = binary.LittleEndian.AppendUint32(out, i)
	}
	return out
}

func appendFloats(out []byte, values ...float32) []byte {
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, gomath.Float32bits(v))
	}
	return out
}
