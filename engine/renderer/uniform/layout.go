package uniform

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type field struct {
	name string
	kind UniformProp
}

// UniformLayout describes a uniform block. Every field is padded to the
// largest alignment of the block. A layout never changes once built.
type UniformLayout struct {
	fields    []field
	alignment uint64
	size      uint64
}

type UniformLayoutBuilder struct {
	fields []field
}

func NewUniformLayoutBuilder() *UniformLayoutBuilder {
	return &UniformLayoutBuilder{}
}

func (b *UniformLayoutBuilder) Prop(name string, kind UniformProp) *UniformLayoutBuilder {
	b.fields = append(b.fields, field{name: name, kind: kind})
	return b
}

func (b *UniformLayoutBuilder) Build() *UniformLayout {
	l := &UniformLayout{fields: make([]field, len(b.fields))}
	copy(l.fields, b.fields)
	for _, f := range l.fields {
		l.alignment = max(l.alignment, f.kind.Alignment())
	}
	for _, f := range l.fields {
		l.size += f.kind.Size() + metadata.GetPadding(f.kind.Size(), l.alignment)
	}
	return l
}

func (l *UniformLayout) Size() uint64 {
	return l.size
}

func (l *UniformLayout) Alignment() uint64 {
	return l.alignment
}

func (l *UniformLayout) Len() int {
	return len(l.fields)
}

// Names returns the field names in declaration order.
func (l *UniformLayout) Names() []string {
	names := make([]string, len(l.fields))
	for i, f := range l.fields {
		names[i] = f.name
	}
	return names
}

// Data encodes values in declaration order.
func (l *UniformLayout) Data(values []UniformPropData) []byte {
	out := make([]byte, 0, l.size)
	l.CopyData(values, &out)
	return out
}

// CopyData encodes values into out, reusing its storage. It panics when the
// values do not match the layout.
func (l *UniformLayout) CopyData(values []UniformPropData, out *[]byte) {
	if len(values) != len(l.fields) {
		panic(fmt.Errorf("uniform layout has %d fields, got %d values: %w", len(l.fields), len(values), core.ErrInvalidData))
	}
	buf := (*out)[:0]
	for i, v := range values {
		f := l.fields[i]
		if v.kind != f.kind {
			panic(fmt.Errorf("uniform field %s is %s, got %s: %w", f.name, f.kind, v.kind, core.ErrInvalidData))
		}
		buf = v.appendTo(buf)
		for pad := metadata.GetPadding(f.kind.Size(), l.alignment); pad > 0; pad-- {
			buf = append(buf, 0)
		}
	}
	*out = buf
}
