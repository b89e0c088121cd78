package resources

import (
	"github.com/spaghettifunk/framegraph/engine/math"
)

type Glyph struct {
	Codepoint rune
	X, Y      int
	Width     int
	Height    int
	XOffset   int
	YOffset   int
	XAdvance  int
	Page      int
}

type KerningPair struct {
	First, Second rune
}

// Font is a bitmap font, every glyph is a rectangle of one atlas page.
type Font struct {
	Face        string
	Size        int
	LineHeight  int
	Baseline    int
	AtlasWidth  int
	AtlasHeight int
	Glyphs      map[rune]Glyph
	Kernings    map[KerningPair]int
	Pages       map[int]*Texture
}

func (f *Font) kerning(prev, r rune) int {
	if f.Kernings == nil {
		return 0
	}
	return f.Kernings[KerningPair{First: prev, Second: r}]
}

// NewTextMesh lays out text on one line per '\n', in pixels with the
// origin at the top left corner. Runes without a glyph are skipped.
func NewTextMesh(name string, font *Font, text string, color math.Vec4) *Mesh {
	mesh := &Mesh{Name: name}
	if font == nil || font.AtlasWidth == 0 || font.AtlasHeight == 0 {
		return mesh
	}
	aw, ah := float32(font.AtlasWidth), float32(font.AtlasHeight)

	x, y := 0, 0
	var prev rune
	for _, r := range text {
		if r == '\n' {
			x = 0
			y += font.LineHeight
			prev = 0
			continue
		}
		g, ok := font.Glyphs[r]
		if !ok {
			continue
		}
		x += font.kerning(prev, r)
		prev = r

		if g.Width > 0 && g.Height > 0 {
			x0 := float32(x + g.XOffset)
			y0 := float32(y + g.YOffset)
			x1 := x0 + float32(g.Width)
			y1 := y0 + float32(g.Height)
			u0, v0 := float32(g.X)/aw, float32(g.Y)/ah
			u1, v1 := float32(g.X+g.Width)/aw, float32(g.Y+g.Height)/ah

			base := uint32(len(mesh.Vertices))
			mesh.Vertices = append(mesh.Vertices,
				VertexData{Position: math.NewVec3(x0, y0, 0), Color: color, Texture: math.NewVec2(u0, v0)},
				VertexData{Position: math.NewVec3(x1, y0, 0), Color: color, Texture: math.NewVec2(u1, v0)},
				VertexData{Position: math.NewVec3(x1, y1, 0), Color: color, Texture: math.NewVec2(u1, v1)},
				VertexData{Position: math.NewVec3(x0, y1, 0), Color: color, Texture: math.NewVec2(u0, v1)},
			)
			mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
		}
		x += g.XAdvance
	}
	return mesh
}
