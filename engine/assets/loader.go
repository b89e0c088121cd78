package assets

import (
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/framegraph/engine/assets/loaders"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
)

type AssetType int

const (
	AssetTypeNone AssetType = iota
	AssetTypeGraph
	AssetTypeShader
	AssetTypeTexture
	AssetTypeMaterial
	AssetTypeFont
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeGraph:
		return "graph"
	case AssetTypeShader:
		return "shader"
	case AssetTypeTexture:
		return "texture"
	case AssetTypeMaterial:
		return "material"
	case AssetTypeFont:
		return "font"
	}
	return "none"
}

// Loader decodes one asset file.
type Loader interface {
	Load(path string) (interface{}, error)
}

type graphLoader struct{}

func (graphLoader) Load(path string) (interface{}, error) {
	return graph.LoadConfig(path)
}

func (am *AssetManager) registerDefaultLoaders() {
	am.registerLoader(AssetTypeGraph, graphLoader{})
	am.registerLoader(AssetTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(AssetTypeTexture, &loaders.TextureLoader{})
	am.registerLoader(AssetTypeMaterial, &loaders.MaterialLoader{})
	am.registerLoader(AssetTypeFont, &loaders.BitmapFontLoader{})
}

func determineAssetType(path string) AssetType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".yaml", ".yml":
		return AssetTypeGraph
	case ".spv":
		return AssetTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp":
		return AssetTypeTexture
	case ".amt":
		return AssetTypeMaterial
	case ".fnt":
		return AssetTypeFont
	default:
		return AssetTypeNone
	}
}
