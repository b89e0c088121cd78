package uniform

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
)

// ObjectDataProp is a per draw value pushed with the object data.
type ObjectDataProp int

const (
	ObjectWorldMatrix ObjectDataProp = iota
	ObjectNormalMatrix
	ObjectVertexBufferAddress
)

var objectPropNames = map[ObjectDataProp]string{
	ObjectWorldMatrix:         "world_matrix",
	ObjectNormalMatrix:        "normal_matrix",
	ObjectVertexBufferAddress: "vertex_buffer_address",
}

func (p ObjectDataProp) String() string {
	return objectPropNames[p]
}

func ParseObjectDataProp(s string) (ObjectDataProp, error) {
	for p, name := range objectPropNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown object data %q: %w", s, core.ErrInvalidData)
}

// ObjectDataLayout encodes the per draw data of a pass. CopyData reuses a
// scratch slice, so a layout must not be shared by concurrent recorders.
type ObjectDataLayout struct {
	props   []ObjectDataProp
	uniform *UniformLayout
	values  []UniformPropData
}

func NewObjectDataLayout(props ...ObjectDataProp) *ObjectDataLayout {
	b := NewUniformLayoutBuilder()
	for _, p := range props {
		switch p {
		case ObjectWorldMatrix:
			b.Prop("world_matrix", PropMat4F)
		case ObjectNormalMatrix:
			b.Prop("normal_matrix", PropMat3F)
		case ObjectVertexBufferAddress:
			b.Prop("buffer_reference", PropU64)
		}
	}
	return &ObjectDataLayout{props: props, uniform: b.Build(), values: make([]UniformPropData, 0, len(props))}
}

// DefaultObjectDataLayout is what the material passes push for every draw.
func DefaultObjectDataLayout() *ObjectDataLayout {
	return NewObjectDataLayout(ObjectWorldMatrix, ObjectNormalMatrix, ObjectVertexBufferAddress)
}

func (l *ObjectDataLayout) Uniform() *UniformLayout {
	return l.uniform
}

func (l *ObjectDataLayout) Props() []ObjectDataProp {
	return l.props
}

// CopyData encodes the object data of one draw into out.
func (l *ObjectDataLayout) CopyData(transform math.Transform, vertexBuffer gpu.Buffer, verticesOffset uint64, out *[]byte) {
	values := l.values[:0]
	for _, p := range l.props {
		switch p {
		case ObjectWorldMatrix:
			values = append(values, Mat4FData(transform.Matrix()))
		case ObjectNormalMatrix:
			values = append(values, Mat3FData(transform.Rotation.ToMat3()))
		case ObjectVertexBufferAddress:
			var address uint64
			if vertexBuffer != nil {
				address = vertexBuffer.Address()
			}
			values = append(values, U64Data(address+verticesOffset))
		}
	}
	l.values = values
	l.uniform.CopyData(values, out)
}
