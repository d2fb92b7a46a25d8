package scene

import (
	"render-demo/internal/opengl"
	"render-demo/shader"
	"render-demo/textures"
)

// Material is a set of texture slots plus a specular exponent. Either
// slot may be nil; an empty slot still takes a texture unit, with no
// texture bound to it.
type Material struct {
	Name      string
	Diffuse   *textures.Texture
	Specular  *textures.Texture
	Shininess float32
}

func (m *Material) Uniform() shader.UniformValue {
	return shader.Struct(
		shader.Named("diffuse", slot(m.Diffuse)),
		shader.Named("specular", slot(m.Specular)),
		shader.Named("shininess", shader.Float(m.Shininess)),
	)
}

// noTexture unbinds whatever the previous draw left on a unit.
type noTexture struct{}

func (noTexture) Target() opengl.Enum { return opengl.Texture2D }
func (noTexture) Handle() uint32      { return 0 }

func slot(t *textures.Texture) shader.UniformValue {
	if t == nil {
		return shader.Texture(noTexture{})
	}
	return t.Uniform()
}

// Clone shares the GPU textures with m.
func (m *Material) Clone() *Material {
	c := *m
	if m.Diffuse != nil {
		c.Diffuse = m.Diffuse.Clone()
	}
	if m.Specular != nil {
		c.Specular = m.Specular.Clone()
	}
	return &c
}

func (m *Material) Release() {
	m.Diffuse.Release()
	m.Specular.Release()
}
