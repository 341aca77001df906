package core

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type MeshId string
type MaterialId string

func NewMeshId() MeshId         { return MeshId(uuid.NewString()) }
func NewMaterialId() MaterialId { return MaterialId(uuid.NewString()) }

// Vertex matches the WGSL vertex input of the instanced mesh shader.
type Vertex struct {
	Pos    [3]float32
	Normal [3]float32
}

type SubMesh struct {
	Indices []uint32
}

// Mesh is shared vertex data split into index ranges, one per material slot.
type Mesh struct {
	ID        MeshId
	Name      string
	Vertices  []Vertex
	SubMeshes []SubMesh
}

func (m *Mesh) SubMeshCount() int {
	if m == nil {
		return 0
	}
	return len(m.SubMeshes)
}

type Material struct {
	ID    MaterialId
	Name  string
	Color [4]float32
}

func NewMaterial(name string, color [4]float32) *Material {
	return &Material{ID: NewMaterialId(), Name: name, Color: color}
}

type ShadowCastingMode int

const (
	ShadowsOff ShadowCastingMode = iota
	ShadowsOn
	ShadowsTwoSided
	ShadowsOnly
)

// NewCubeMesh builds a unit cube centred on the origin. With splitFaces the
// +Y/-Y faces go to a second submesh.
func NewCubeMesh(name string, splitFaces bool) *Mesh {
	faces := []struct {
		normal mgl32.Vec3
		u, v   mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}

	mesh := &Mesh{ID: NewMeshId(), Name: name}
	sides := SubMesh{}
	caps := SubMesh{}

	for i, f := range faces {
		base := uint32(len(mesh.Vertices))
		center := f.normal.Mul(0.5)
		for _, c := range [4][2]float32{{-0.5, -0.5}, {0.5, -0.5}, {0.5, 0.5}, {-0.5, 0.5}} {
			p := center.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1]))
			mesh.Vertices = append(mesh.Vertices, Vertex{
				Pos:    [3]float32{p[0], p[1], p[2]},
				Normal: [3]float32{f.normal[0], f.normal[1], f.normal[2]},
			})
		}
		quad := []uint32{base, base + 1, base + 2, base, base + 2, base + 3}
		if splitFaces && i >= 4 {
			caps.Indices = append(caps.Indices, quad...)
		} else {
			sides.Indices = append(sides.Indices, quad...)
		}
	}

	mesh.SubMeshes = append(mesh.SubMeshes, sides)
	if splitFaces {
		mesh.SubMeshes = append(mesh.SubMeshes, caps)
	}
	return mesh
}
