package loaders

import (
	"fmt"
	"path/filepath"

	"github.com/fzipp/bmfont"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/resources"
)

type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) Load(path string) (interface{}, error) {
	return LoadBitmapFont(path)
}

// LoadBitmapFont reads an AngelCode .fnt file and the atlas pages next to
// it.
func LoadBitmapFont(path string) (*resources.Font, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load font %s: %w", path, err)
	}
	desc := font.Descriptor

	out := &resources.Font{
		Face:        desc.Info.Face,
		Size:        int(desc.Info.Size),
		LineHeight:  int(desc.Common.LineHeight),
		Baseline:    int(desc.Common.Base),
		AtlasWidth:  int(desc.Common.ScaleW),
		AtlasHeight: int(desc.Common.ScaleH),
		Glyphs:      make(map[rune]resources.Glyph, len(desc.Chars)),
		Kernings:    make(map[resources.KerningPair]int, len(desc.Kerning)),
		Pages:       make(map[int]*resources.Texture, len(desc.Pages)),
	}

	for _, g := range desc.Chars {
		out.Glyphs[rune(g.ID)] = resources.Glyph{
			Codepoint: rune(g.ID),
			X:         int(g.X),
			Y:         int(g.Y),
			Width:     int(g.Width),
			Height:    int(g.Height),
			XOffset:   int(g.XOffset),
			YOffset:   int(g.YOffset),
			XAdvance:  int(g.XAdvance),
			Page:      int(g.Page),
		}
	}
	for pair, k := range desc.Kerning {
		out.Kernings[resources.KerningPair{First: rune(pair.First), Second: rune(pair.Second)}] = int(k.Amount)
	}

	dir := filepath.Dir(path)
	for _, p := range desc.Pages {
		tex, err := LoadTexture(filepath.Join(dir, p.File), gpu.SamplerFilterNearest)
		if err != nil {
			return nil, fmt.Errorf("font %s page %d: %w", path, p.ID, err)
		}
		tex.Format = gpu.ImageFormatR8g8b8a8Unorm
		out.Pages[int(p.ID)] = tex
	}
	return out, nil
}
