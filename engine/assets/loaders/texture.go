package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/resources"
	_ "golang.org/x/image/bmp"
)

type TextureLoader struct {
	Filter gpu.SamplerFilter
}

func (tl *TextureLoader) Load(path string) (interface{}, error) {
	return LoadTexture(path, tl.Filter)
}

// LoadTexture decodes a png, jpeg or bmp file. The texture is named after
// the file without extension.
func LoadTexture(path string, filter gpu.SamplerFilter) (*resources.Texture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return resources.NewTexture(name, img, filter), nil
}
