package resources

import (
	"image"

	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type Mesh struct {
	Name     string
	Vertices []VertexData
	Indices  []uint32
}

// MeshMaterial pairs a mesh with the index of its material in the model.
type MeshMaterial struct {
	Mesh          *Mesh
	MaterialIndex int
}

type Model struct {
	ID        metadata.ModelID
	Name      string
	Meshes    []MeshMaterial
	Materials []*MaterialInstance
}

func NewModel(name string) *Model {
	return &Model{ID: metadata.NewModelID(), Name: name}
}

// AddMesh appends a mesh drawn with material, which may be nil.
func (m *Model) AddMesh(mesh *Mesh, material *MaterialInstance) *Model {
	index := -1
	if material != nil {
		index = len(m.Materials)
		for i, mat := range m.Materials {
			if mat == material {
				index = i
				break
			}
		}
		if index == len(m.Materials) {
			m.Materials = append(m.Materials, material)
		}
	}
	m.Meshes = append(m.Meshes, MeshMaterial{Mesh: mesh, MaterialIndex: index})
	return m
}

func (m *Model) Material(mesh MeshMaterial) *MaterialInstance {
	if mesh.MaterialIndex < 0 || mesh.MaterialIndex >= len(m.Materials) {
		return nil
	}
	return m.Materials[mesh.MaterialIndex]
}

// Counts returns the vertex, index and texture totals used by the stats.
func (m *Model) Counts() (vertices, indices, textures uint32) {
	for _, mm := range m.Meshes {
		vertices += uint32(len(mm.Mesh.Vertices))
		indices += uint32(len(mm.Mesh.Indices))
	}
	for _, mat := range m.Materials {
		textures += uint32(len(mat.Textures))
	}
	return
}

// Bounds is the box enclosing every vertex of the model.
func (m *Model) Bounds() math.BoundingBox {
	var box math.BoundingBox
	first := true
	for _, mm := range m.Meshes {
		for _, v := range mm.Mesh.Vertices {
			if first {
				box = math.NewBoundingBox(v.Position, v.Position)
				first = false
				continue
			}
			box = box.Extend(v.Position)
		}
	}
	return box
}

// Material is a pipeline shared by many instances.
type Material struct {
	Name     string
	Pipeline gpu.Pipeline
	Blending bool
}

func NewMaterial(name string, pipeline gpu.Pipeline, blending bool) *Material {
	return &Material{Name: name, Pipeline: pipeline, Blending: blending}
}

type MaterialInstance struct {
	ID       metadata.MaterialInstanceID
	Material *Material
	Textures []*Texture
}

func (m *Material) Instantiate(textures ...*Texture) *MaterialInstance {
	return &MaterialInstance{
		ID:       metadata.NewMaterialInstanceID(),
		Material: m,
		Textures: textures,
	}
}

type Texture struct {
	ID     gpu.ID
	Name   string
	Image  image.Image
	Filter gpu.SamplerFilter
	// Format of the uploaded image, srgb for colour maps.
	Format gpu.ImageFormat
}

func NewTexture(name string, img image.Image, filter gpu.SamplerFilter) *Texture {
	return &Texture{
		ID:     gpu.NewID(),
		Name:   name,
		Image:  img,
		Filter: filter,
		Format: gpu.ImageFormatR8g8b8a8Srgb,
	}
}
