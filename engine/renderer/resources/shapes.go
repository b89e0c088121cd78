package resources

import (
	"github.com/spaghettifunk/framegraph/engine/math"
)

var cubeFaces = []struct {
	normal math.Vec3
	u, v   math.Vec3
}{
	{math.NewVec3(0, 0, 1), math.NewVec3(1, 0, 0), math.NewVec3(0, 1, 0)},
	{math.NewVec3(0, 0, -1), math.NewVec3(-1, 0, 0), math.NewVec3(0, 1, 0)},
	{math.NewVec3(1, 0, 0), math.NewVec3(0, 0, -1), math.NewVec3(0, 1, 0)},
	{math.NewVec3(-1, 0, 0), math.NewVec3(0, 0, 1), math.NewVec3(0, 1, 0)},
	{math.NewVec3(0, 1, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 0, -1)},
	{math.NewVec3(0, -1, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 0, 1)},
}

// NewCubeMesh builds a unit cube centred on the origin with 24 vertices.
func NewCubeMesh(name string, color math.Vec4) *Mesh {
	mesh := &Mesh{Name: name}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, face := range cubeFaces {
		base := uint32(len(mesh.Vertices))
		for _, c := range corners {
			pos := face.normal.Add(face.u.MulScalar(c[0])).Add(face.v.MulScalar(c[1])).MulScalar(0.5)
			mesh.Vertices = append(mesh.Vertices, VertexData{
				Position: pos,
				Color:    color,
				Texture:  math.NewVec2((c[0]+1)/2, (1-c[1])/2),
				Normal:   face.normal,
				Tangent:  face.u,
			})
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}

// boxTriangles indexes the corners of math.BoundingBox.Corners, two
// triangles per face.
var boxTriangles = [36]int{
	0, 1, 2, 0, 2, 3,
	4, 6, 5, 4, 7, 6,
	0, 4, 5, 0, 5, 1,
	1, 5, 6, 1, 6, 2,
	2, 6, 7, 2, 7, 3,
	3, 7, 4, 3, 4, 0,
}

// NewBoxMesh builds the 36 vertex, non indexed box drawn by the bounds pass.
func NewBoxMesh(box math.BoundingBox) *Mesh {
	corners := box.Corners()
	mesh := &Mesh{Name: "bounds", Vertices: make([]VertexData, 0, 36), Indices: make([]uint32, 0, 36)}
	for i, c := range boxTriangles {
		mesh.Vertices = append(mesh.Vertices, VertexData{Position: corners[c], Color: math.NewVec4(1, 1, 1, 1)})
		mesh.Indices = append(mesh.Indices, uint32(i))
	}
	return mesh
}
