package core

import (
	"image"

	"render-demo/math"
)

// Color is linear RGBA.
type Color struct {
	R, G, B, A float32
}

func (c Color) Vec3() math.Vec3 { return math.NewVec3(c.R, c.G, c.B) }
func (c Color) Vec4() math.Vec4 { return math.NewVec4(c.R, c.G, c.B, c.A) }

// Vertex is the interleaved layout every mesh uploads: position, normal
// and texture coordinate, eight floats in all.
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	UV       math.Vec2
}

// VertexFloats is the number of float32 values in one Vertex.
const VertexFloats = 8

// AppendFloats appends v in attribute order.
func (v Vertex) AppendFloats(dst []float32) []float32 {
	return append(dst,
		v.Position.X, v.Position.Y, v.Position.Z,
		v.Normal.X, v.Normal.Y, v.Normal.Z,
		v.UV.X, v.UV.Y,
	)
}

// MeshData is geometry ready for upload. Material names an entry of the
// owning ModelData, or is empty.
type MeshData struct {
	Vertices []Vertex
	Indices  []uint32
	Material string
}

// MaterialData is a material before its images become textures.
type MaterialData struct {
	Name      string
	Diffuse   image.Image
	Specular  image.Image
	Shininess float32
}

// ModelData is a decoded model file: meshes plus the materials they use.
type ModelData struct {
	Name      string
	Meshes    []MeshData
	Materials map[string]MaterialData
}

// Transform places an object in the world. Rotation is Euler angles in
// radians, applied Z, X, then Y.
type Transform struct {
	Position math.Vec3
	Rotation math.Vec3
	Scale    math.Vec3
}

func NewTransform() Transform {
	return Transform{
		Position: math.Vec3Zero,
		Rotation: math.Vec3Zero,
		Scale:    math.Vec3One,
	}
}

func (t Transform) GetMatrix() math.Mat4 {
	return math.Mat4TRS(t.Position, t.Rotation, t.Scale)
}
