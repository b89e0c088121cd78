package gpu

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/core"
)

// VertexAttribute is a set of per vertex inputs a pipeline consumes.
type VertexAttribute uint32

const (
	VertexPosition VertexAttribute = 1 << iota
	VertexColor
	VertexTexture
	VertexNormal
	VertexNormalTexture
	VertexTangent
	VertexBitangent
)

var vertexAttributeNames = []struct {
	flag VertexAttribute
	name string
}{
	{VertexPosition, "position"},
	{VertexColor, "color"},
	{VertexTexture, "texture"},
	{VertexNormal, "normal"},
	{VertexNormalTexture, "normal_texture"},
	{VertexTangent, "tangent"},
	{VertexBitangent, "bitangent"},
}

func (a VertexAttribute) Contains(flag VertexAttribute) bool {
	return a&flag == flag
}

// Size of one attribute flag, 0 for unknown or combined flags.
func (a VertexAttribute) Size() uint64 {
	switch a {
	case VertexPosition, VertexNormal, VertexTangent, VertexBitangent:
		return 12
	case VertexColor:
		return 16
	case VertexTexture, VertexNormalTexture:
		return 8
	}
	return 0
}

// Alignment of one attribute flag in a storage buffer.
func (a VertexAttribute) Alignment() uint64 {
	switch a {
	case VertexPosition, VertexNormal, VertexTangent, VertexBitangent, VertexColor:
		return 16
	case VertexTexture, VertexNormalTexture:
		return 8
	}
	return 0
}

// Flags lists the single flags contained in a, in packing order.
func (a VertexAttribute) Flags() []VertexAttribute {
	out := make([]VertexAttribute, 0, len(vertexAttributeNames))
	for _, n := range vertexAttributeNames {
		if a.Contains(n.flag) {
			out = append(out, n.flag)
		}
	}
	return out
}

// PaddedLayout gives the offset of each single flag of a, in packing order,
// when every attribute takes a full alignment slot, and the resulting stride.
func (a VertexAttribute) PaddedLayout() (stride uint64, offsets []uint64) {
	var align uint64
	flags := a.Flags()
	for _, f := range flags {
		align = max(align, f.Alignment())
	}
	offsets = make([]uint64, len(flags))
	for i := range flags {
		offsets[i] = stride
		stride += align
	}
	return stride, offsets
}

func (a VertexAttribute) String() string {
	names := []string{}
	for _, n := range vertexAttributeNames {
		if a.Contains(n.flag) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

func ParseVertexAttributes(names []string) (VertexAttribute, error) {
	var out VertexAttribute
	for _, s := range names {
		found := false
		for _, n := range vertexAttributeNames {
			if n.name == strings.ToLower(s) {
				out |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown vertex attribute %q: %w", s, core.ErrInvalidData)
		}
	}
	return out, nil
}
