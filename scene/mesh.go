package scene

import (
	"encoding/binary"
	stdmath "math"

	"render-demo/core"
	"render-demo/internal/opengl"
	"render-demo/shader"
)

// attribute sizes in floats: position, normal, texcoord
var vertexAttribs = [...]int32{3, 3, 2}

const vertexStride = core.VertexFloats * 4

type meshBuffers struct {
	vao, vbo, ebo uint32
	refs          int
}

// Mesh is an uploaded vertex/index buffer pair with an optional material.
type Mesh struct {
	Material *Material

	dev      opengl.Device
	buf      *meshBuffers
	count    int32
	box      AABB
	released bool
}

// NewMesh uploads vertices and indices once.
func NewMesh(dev opengl.Device, vertices []core.Vertex, indices []uint32, material *Material) (*Mesh, error) {
	vao := dev.CreateVertexArray()
	if err := opengl.CheckAlloc(vao, "vertex array"); err != nil {
		return nil, err
	}
	dev.BindVertexArray(vao)

	ebo := dev.CreateBuffer()
	vbo := dev.CreateBuffer()
	if ebo == 0 || vbo == 0 {
		dev.BindVertexArray(0)
		dev.DeleteVertexArray(vao)
		return nil, opengl.CheckAlloc(0, "mesh buffer")
	}

	dev.BindBuffer(opengl.ElementArrayBuffer, ebo)
	dev.BufferData(opengl.ElementArrayBuffer, 4*len(indices), uint32Bytes(indices), opengl.StaticDraw)

	floats := make([]float32, 0, len(vertices)*core.VertexFloats)
	for _, v := range vertices {
		floats = v.AppendFloats(floats)
	}
	dev.BindBuffer(opengl.ArrayBuffer, vbo)
	dev.BufferData(opengl.ArrayBuffer, 4*len(floats), float32Bytes(floats), opengl.StaticDraw)

	offset := 0
	for i, size := range vertexAttribs {
		dev.EnableVertexAttribArray(uint32(i))
		dev.VertexAttribPointer(uint32(i), size, vertexStride, offset)
		offset += int(size) * 4
	}
	dev.BindVertexArray(0)

	return &Mesh{
		Material: material,
		dev:      dev,
		buf:      &meshBuffers{vao: vao, vbo: vbo, ebo: ebo, refs: 1},
		count:    int32(len(indices)),
		box:      BoundingBox(vertices),
	}, nil
}

// NewMeshFromData uploads generated or decoded geometry.
func NewMeshFromData(dev opengl.Device, data core.MeshData, material *Material) (*Mesh, error) {
	return NewMesh(dev, data.Vertices, data.Indices, material)
}

// Bounds is the local-space bounding box.
func (m *Mesh) Bounds() AABB { return m.box }

func (m *Mesh) IndexCount() int32 { return m.count }

// Draw binds the material under "material", issues the draw, then frees
// the texture units for the next mesh.
func (m *Mesh) Draw(b *shader.ActiveBinding) {
	if m.Material != nil {
		b.BindUniform("material", m.Material)
	}
	m.dev.BindVertexArray(m.buf.vao)
	m.dev.DrawElements(opengl.Triangles, m.count)
	m.dev.BindVertexArray(0)
	b.ResetTextures()
}

// Clone shares the GPU buffers and material textures.
func (m *Mesh) Clone() *Mesh {
	m.buf.refs++
	c := &Mesh{dev: m.dev, buf: m.buf, count: m.count, box: m.box}
	if m.Material != nil {
		c.Material = m.Material.Clone()
	}
	return c
}

// Release drops this owner's hold on the buffers and material.
func (m *Mesh) Release() {
	if m.released {
		return
	}
	m.released = true
	if m.Material != nil {
		m.Material.Release()
	}
	m.buf.refs--
	if m.buf.refs > 0 {
		return
	}
	m.dev.DeleteVertexArray(m.buf.vao)
	m.dev.DeleteBuffer(m.buf.vbo)
	m.dev.DeleteBuffer(m.buf.ebo)
}

func float32Bytes(fs []float32) []byte {
	out := make([]byte, 0, 4*len(fs))
	for _, f := range fs {
		out = binary.LittleEndian.AppendUint32(out, stdmath.Float32bits(f))
	}
	return out
}

func uint32Bytes(us []uint32) []byte {
	out := make([]byte, 0, 4*len(us))
	for _, u := range us {
		out = binary.LittleEndian.AppendUint32(out, u)
	}
	return out
}
