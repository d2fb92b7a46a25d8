package scene

import (
	"fmt"

	"render-demo/core"
	"render-demo/internal/opengl"
	"render-demo/shader"
	"render-demo/textures"
)

// Model is a set of meshes loaded from one file.
type Model struct {
	Name   string
	Meshes []*Mesh
}

// NewModel uploads every mesh of data. Material images become textures
// through tb; a texture shared by several meshes is uploaded once.
func NewModel(dev opengl.Device, tb *textures.Builder, data core.ModelData) (*Model, error) {
	materials := make(map[string]*Material, len(data.Materials))
	release := func() {
		for _, m := range materials {
			m.Release()
		}
	}

	m := &Model{Name: data.Name}
	for i, md := range data.Meshes {
		var mat *Material
		if md.Material != "" {
			if _, ok := materials[md.Material]; !ok {
				built, err := buildMaterial(tb, data.Materials[md.Material])
				if err != nil {
					m.Release()
					release()
					return nil, fmt.Errorf("model %s: material %s: %w", data.Name, md.Material, err)
				}
				built.Name = md.Material
				materials[md.Material] = built
			}
			mat = materials[md.Material].Clone()
		}
		mesh, err := NewMeshFromData(dev, md, mat)
		if err != nil {
			if mat != nil {
				mat.Release()
			}
			m.Release()
			release()
			return nil, fmt.Errorf("model %s: mesh %d: %w", data.Name, i, err)
		}
		m.Meshes = append(m.Meshes, mesh)
	}
	release()
	return m, nil
}

func buildMaterial(tb *textures.Builder, md core.MaterialData) (*Material, error) {
	mat := &Material{Name: md.Name, Shininess: md.Shininess}
	var err error
	if md.Diffuse != nil {
		if mat.Diffuse, err = tb.Build(md.Diffuse); err != nil {
			return nil, err
		}
	}
	if md.Specular != nil {
		if mat.Specular, err = tb.Build(md.Specular); err != nil {
			mat.Release()
			return nil, err
		}
	}
	return mat, nil
}

func (m *Model) Draw(b *shader.ActiveBinding) {
	for _, mesh := range m.Meshes {
		mesh.Draw(b)
	}
}

// Bounds is the union of the mesh boxes.
func (m *Model) Bounds() AABB {
	var box AABB
	for i, mesh := range m.Meshes {
		if i == 0 {
			box = mesh.Bounds()
			continue
		}
		box = box.Union(mesh.Bounds())
	}
	return box
}

func (m *Model) Clone() *Model {
	c := &Model{Name: m.Name, Meshes: make([]*Mesh, len(m.Meshes))}
	for i, mesh := range m.Meshes {
		c.Meshes[i] = mesh.Clone()
	}
	return c
}

func (m *Model) Release() {
	for _, mesh := range m.Meshes {
		mesh.Release()
	}
}
