package resources

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/math"
	"github.com/spaghettifunk/framegraph/engine/renderer/gpu"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// StagingBufferSize is the minimum size of the upload staging buffer.
const StagingBufferSize = 1 << 20

// MeshPass is what the mesh manager needs to know about a pass.
type MeshPass interface {
	ID() metadata.PassID
	// VertexAttributes is 0 when the pass draws with the material pipelines.
	VertexAttributes() gpu.VertexAttribute
}

// GPUMesh is one sub mesh of a model uploaded for a pass.
type GPUMesh struct {
	Model          *Model
	Material       *GPUMaterial
	VertexBuffer   gpu.Buffer
	IndexBuffer    gpu.Buffer
	VerticesOffset uint64
	IndicesOffset  uint64
	IndicesLen     uint32
}

// MeshResourceManager uploads model geometry per pass. Cached meshes live as
// long as the manager, transient ones are released once no frame in flight
// can reference them.
type MeshResourceManager struct {
	device         gpu.Device
	framesInFlight int

	meshes    map[metadata.MeshKey][]*GPUMesh
	transient []map[metadata.MeshKey][]*GPUMesh
	frame     uint64

	buffers   *BufferPool
	textures  *TextureManager
	materials *MaterialInstanceLoader
}

func NewMeshResourceManager(device gpu.Device, framesInFlight int, buffers *BufferPool, textures *TextureManager) *MeshResourceManager {
	transient := make([]map[metadata.MeshKey][]*GPUMesh, framesInFlight+1)
	for i := range transient {
		transient[i] = map[metadata.MeshKey][]*GPUMesh{}
	}
	return &MeshResourceManager{
		device:         device,
		framesInFlight: framesInFlight,
		meshes:         map[metadata.MeshKey][]*GPUMesh{},
		transient:      transient,
		buffers:        buffers,
		textures:       textures,
		materials:      NewMaterialInstanceLoader(textures),
	}
}

func (m *MeshResourceManager) slot() int {
	return int(m.frame % uint64(len(m.transient)))
}

// NewFrame moves to the next transient slot and releases what it held. The
// slot was last filled framesInFlight+1 frames ago, so its GPU work is done.
func (m *MeshResourceManager) NewFrame() {
	core.LogDebug("meshes: %d, transient: %d, bindings: %d", len(m.meshes), len(m.transient[m.slot()]), m.materials.Len())
	m.frame++
	slot := m.transient[m.slot()]
	for key, meshes := range slot {
		released := map[gpu.ID]bool{}
		for _, mesh := range meshes {
			for _, buf := range []gpu.Buffer{mesh.VertexBuffer, mesh.IndexBuffer} {
				if !released[buf.ID()] {
					released[buf.ID()] = true
					m.buffers.Put(buf)
				}
			}
		}
		delete(slot, key)
	}
}

// AddObject returns the GPU meshes of model for pass, uploading them when
// needed.
func (m *MeshResourceManager) AddObject(model *Model, pass MeshPass, lifetime metadata.Lifetime) ([]*GPUMesh, error) {
	key := metadata.MeshKey{Model: model.ID, Pass: pass.ID()}

	cache := m.meshes
	if lifetime == metadata.LifetimeTransient {
		cache = m.transient[m.slot()]
	}
	if meshes, ok := cache[key]; ok {
		return meshes, nil
	}

	meshes, err := m.load(model, pass, lifetime)
	if err != nil {
		return nil, err
	}
	cache[key] = meshes
	return meshes, nil
}

// AddBoundingBox uploads a transient box mesh for the bounds pass.
func (m *MeshResourceManager) AddBoundingBox(box math.BoundingBox, pass MeshPass) ([]*GPUMesh, error) {
	model := NewModel("bounds").AddMesh(NewBoxMesh(box), nil)
	return m.AddObject(model, pass, metadata.LifetimeTransient)
}

// Contains reports whether meshes of model are held for pass, cached or not.
func (m *MeshResourceManager) Contains(model metadata.ModelID, pass metadata.PassID) bool {
	key := metadata.MeshKey{Model: model, Pass: pass}
	if _, ok := m.meshes[key]; ok {
		return true
	}
	for _, slot := range m.transient {
		if _, ok := slot[key]; ok {
			return true
		}
	}
	return false
}

type meshRange struct {
	material       *MaterialInstance
	verticesOffset uint64
	indicesOffset  uint64
	indicesLen     uint32
}

func (m *MeshResourceManager) load(model *Model, pass MeshPass, lifetime metadata.Lifetime) ([]*GPUMesh, error) {
	if len(model.Meshes) == 0 {
		return nil, nil
	}

	var vertices []byte
	var indices []uint32
	ranges := make([]meshRange, 0, len(model.Meshes))

	for _, mm := range model.Meshes {
		material := model.Material(mm)
		flags := pass.VertexAttributes()
		if flags == 0 && material != nil && material.Material.Pipeline != nil {
			flags = material.Material.Pipeline.VertexAttributes()
		}
		if flags == 0 {
			flags = gpu.VertexPosition
		}

		r := meshRange{
			material:       material,
			verticesOffset: uint64(len(vertices)),
			indicesOffset:  uint64(len(indices)),
			indicesLen:     uint32(len(mm.Mesh.Indices)),
		}
		for _, v := range mm.Mesh.Vertices {
			vertices = AppendVertex(vertices, v, flags, true)
		}
		indices = append(indices, mm.Mesh.Indices...)
		ranges = append(ranges, r)
	}

	vertexBuffer, indexBuffer, err := m.upload(model.Name, vertices, PackIndices(indices), lifetime)
	if err != nil {
		return nil, err
	}

	out := make([]*GPUMesh, 0, len(ranges))
	var errs []error
	for _, r := range ranges {
		material, err := m.materials.Load(r.material)
		if err != nil {
			// the mesh is still drawn, without its textures
			errs = append(errs, fmt.Errorf("model %s: %w", model.Name, err))
			material = nil
		}
		out = append(out, &GPUMesh{
			Model:          model,
			Material:       material,
			VertexBuffer:   vertexBuffer,
			IndexBuffer:    indexBuffer,
			VerticesOffset: r.verticesOffset,
			IndicesOffset:  r.indicesOffset,
			IndicesLen:     r.indicesLen,
		})
	}
	if len(errs) > 0 {
		core.LogWarn("failed to load materials: %s", errors.Join(errs...))
	}
	return out, nil
}

// upload copies vertices and indices through a single staging buffer.
func (m *MeshResourceManager) upload(name string, vertices, indices []byte, lifetime metadata.Lifetime) (gpu.Buffer, gpu.Buffer, error) {
	staging, err := m.buffers.Get("staging", gpu.BufferUsageStaging, max(uint64(len(vertices)+len(indices)), StagingBufferSize))
	if err != nil {
		return nil, nil, err
	}
	defer m.buffers.Put(staging)

	vertexBuffer, err := m.buffer(name+" vertex", gpu.BufferUsageVertex, uint64(len(vertices)), lifetime)
	if err != nil {
		return nil, nil, err
	}
	indexBuffer, err := m.buffer(name+" index", gpu.BufferUsageIndex, uint64(len(indices)), lifetime)
	if err != nil {
		return nil, nil, err
	}

	if err := staging.Write(vertices, 0); err != nil {
		return nil, nil, err
	}
	if err := staging.Write(indices, uint64(len(vertices))); err != nil {
		return nil, nil, err
	}

	err = m.device.RunImmediate(func(cmd gpu.CommandList) {
		cmd.CopyBuffer(staging, vertexBuffer, uint64(len(vertices)), 0)
		cmd.CopyBuffer(staging, indexBuffer, uint64(len(indices)), uint64(len(vertices)))
	})
	if err != nil {
		return nil, nil, err
	}
	return vertexBuffer, indexBuffer, nil
}

// buffer takes transient buffers from the pool so NewFrame can recycle them.
func (m *MeshResourceManager) buffer(name string, usage gpu.BufferUsage, size uint64, lifetime metadata.Lifetime) (gpu.Buffer, error) {
	size = max(size, 4)
	if lifetime == metadata.LifetimeTransient {
		return m.buffers.Get(name, usage, size)
	}
	return m.device.NewBuffer(name, size, usage)
}

// EvictPass releases the cached meshes uploaded for pass and returns how
// many models were evicted. The device must be idle.
func (m *MeshResourceManager) EvictPass(pass metadata.PassID) int {
	evicted := 0
	for key, meshes := range m.meshes {
		if key.Pass != pass {
			continue
		}
		if len(meshes) > 0 {
			meshes[0].VertexBuffer.Destroy()
			meshes[0].IndexBuffer.Destroy()
		}
		delete(m.meshes, key)
		evicted++
	}
	return evicted
}

func (m *MeshResourceManager) Textures() *TextureManager {
	return m.textures
}

// Destroy releases every cached buffer. The device must be idle.
func (m *MeshResourceManager) Destroy() {
	for key, meshes := range m.meshes {
		if len(meshes) > 0 {
			meshes[0].VertexBuffer.Destroy()
			meshes[0].IndexBuffer.Destroy()
		}
		delete(m.meshes, key)
	}
	for range m.transient {
		m.NewFrame()
	}
}
