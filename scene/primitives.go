package scene

import (
	"github.com/chewxy/math32"

	"render-demo/core"
	"render-demo/math"
)

// Geometry produces mesh data on the CPU.
type Geometry interface {
	MeshData() core.MeshData
}

// Cube is the unit cube scaled to Width along X, Height along Y and
// Length along Z. Every face has its own four corners so normals stay flat.
type Cube struct {
	Length, Width, Height float32
}

// unit cube, one row per vertex: position, texcoord. Faces are back,
// front, left, right, bottom, top.
var cubeFaces = [6]struct {
	normal math.Vec3
	verts  [6][5]float32
}{
	{math.Vec3Back, [6][5]float32{
		{-.5, -.5, -.5, 0, 0}, {.5, .5, -.5, 1, 1}, {.5, -.5, -.5, 1, 0},
		{.5, .5, -.5, 1, 1}, {-.5, -.5, -.5, 0, 0}, {-.5, .5, -.5, 0, 1},
	}},
	{math.Vec3Front, [6][5]float32{
		{-.5, -.5, .5, 0, 0}, {.5, -.5, .5, 1, 0}, {.5, .5, .5, 1, 1},
		{.5, .5, .5, 1, 1}, {-.5, .5, .5, 0, 1}, {-.5, -.5, .5, 0, 0},
	}},
	{math.Vec3Left, [6][5]float32{
		{-.5, .5, .5, 1, 0}, {-.5, .5, -.5, 1, 1}, {-.5, -.5, -.5, 0, 1},
		{-.5, -.5, -.5, 0, 1}, {-.5, -.5, .5, 0, 0}, {-.5, .5, .5, 1, 0},
	}},
	{math.Vec3Right, [6][5]float32{
		{.5, .5, .5, 1, 0}, {.5, -.5, -.5, 0, 1}, {.5, .5, -.5, 1, 1},
		{.5, -.5, -.5, 0, 1}, {.5, .5, .5, 1, 0}, {.5, -.5, .5, 0, 0},
	}},
	{math.Vec3Down, [6][5]float32{
		{-.5, -.5, -.5, 0, 1}, {.5, -.5, -.5, 1, 1}, {.5, -.5, .5, 1, 0},
		{.5, -.5, .5, 1, 0}, {-.5, -.5, .5, 0, 0}, {-.5, -.5, -.5, 0, 1},
	}},
	{math.Vec3Up, [6][5]float32{
		{-.5, .5, -.5, 0, 1}, {.5, .5, .5, 1, 0}, {.5, .5, -.5, 1, 1},
		{.5, .5, .5, 1, 0}, {-.5, .5, -.5, 0, 1}, {-.5, .5, .5, 0, 0},
	}},
}

func (c Cube) MeshData() core.MeshData {
	size := math.NewVec3(c.Width, c.Height, c.Length)
	data := core.MeshData{
		Vertices: make([]core.Vertex, 0, 36),
		Indices:  make([]uint32, 0, 36),
	}
	for _, face := range cubeFaces {
		for _, v := range face.verts {
			data.Indices = append(data.Indices, uint32(len(data.Vertices)))
			data.Vertices = append(data.Vertices, core.Vertex{
				Position: math.NewVec3(v[0], v[1], v[2]).MulVec(size),
				Normal:   face.normal,
				UV:       math.NewVec2(v[3], v[4]),
			})
		}
	}
	return data
}

// UnitCube is the 1x1x1 cube.
func UnitCube() Cube { return Cube{Length: 1, Width: 1, Height: 1} }

// Plane lies in XZ with Length along X and Width along Z. Both windings
// are emitted so it is visible from either side with culling on.
type Plane struct {
	Length, Width float32
	Normal        math.Vec3
}

func (p Plane) MeshData() core.MeshData {
	data := core.MeshData{Vertices: make([]core.Vertex, 0, 4)}
	for _, i := range [2]float32{-1, 1} {
		for _, j := range [2]float32{-1, 1} {
			data.Vertices = append(data.Vertices, core.Vertex{
				Position: math.NewVec3(p.Length*i/2, 0, p.Width*j/2),
				Normal:   p.Normal,
				UV:       math.NewVec2(i/2+.5, j/2+.5),
			})
		}
	}
	data.Indices = []uint32{0, 1, 2, 1, 3, 2, 0, 2, 1, 1, 2, 3}
	return data
}

// Sphere is a UV sphere.
type Sphere struct {
	Radius   float32
	Segments int
	Rings    int
}

func (s Sphere) MeshData() core.MeshData {
	segments, rings := max(s.Segments, 3), max(s.Rings, 2)
	var data core.MeshData

	for ring := 0; ring <= rings; ring++ {
		phi := float32(ring) * math32.Pi / float32(rings)
		sinPhi, cosPhi := math32.Sincos(phi)

		for seg := 0; seg <= segments; seg++ {
			theta := float32(seg) * 2 * math32.Pi / float32(segments)
			sinTheta, cosTheta := math32.Sincos(theta)

			normal := math.NewVec3(sinPhi*cosTheta, cosPhi, sinPhi*sinTheta)
			data.Vertices = append(data.Vertices, core.Vertex{
				Position: normal.Mul(s.Radius),
				Normal:   normal,
				UV:       math.NewVec2(float32(seg)/float32(segments), float32(ring)/float32(rings)),
			})
		}
	}

	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)
			data.Indices = append(data.Indices,
				current, current+1, next,
				current+1, next+1, next,
			)
		}
	}
	return data
}

// Torus lies in XZ around the Y axis.
type Torus struct {
	MajorRadius, MinorRadius     float32
	MajorSegments, MinorSegments int
}

func (t Torus) MeshData() core.MeshData {
	major, minor := max(t.MajorSegments, 3), max(t.MinorSegments, 3)
	var data core.MeshData

	for i := 0; i <= major; i++ {
		sinTheta, cosTheta := math32.Sincos(float32(i) * 2 * math32.Pi / float32(major))
		for j := 0; j <= minor; j++ {
			sinPhi, cosPhi := math32.Sincos(float32(j) * 2 * math32.Pi / float32(minor))
			ring := t.MajorRadius + t.MinorRadius*cosPhi
			data.Vertices = append(data.Vertices, core.Vertex{
				Position: math.NewVec3(ring*cosTheta, t.MinorRadius*sinPhi, ring*sinTheta),
				Normal:   math.NewVec3(cosPhi*cosTheta, sinPhi, cosPhi*sinTheta).Normalize(),
				UV:       math.NewVec2(float32(i)/float32(major), float32(j)/float32(minor)),
			})
		}
	}

	for i := 0; i < major; i++ {
		for j := 0; j < minor; j++ {
			current := uint32(i*(minor+1) + j)
			next := uint32((i+1)*(minor+1) + j)
			data.Indices = append(data.Indices,
				current, current+1, next,
				current+1, next+1, next,
			)
		}
	}
	return data
}

// skyboxPositions is the 36-vertex unit cube drawn around the camera, as
// bare positions.
func skyboxPositions() []float32 {
	out := make([]float32, 0, 36*3)
	for _, face := range cubeFaces {
		for _, v := range face.verts {
			out = append(out, 2*v[0], 2*v[1], 2*v[2])
		}
	}
	return out
}
