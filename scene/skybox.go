package scene

import (
	"render-demo/internal/opengl"
	"render-demo/math"
	"render-demo/shader"
	"render-demo/textures"
)

// Skybox is a cube map drawn behind everything.
type Skybox struct {
	dev     opengl.Device
	cubemap *textures.Texture
	vao     uint32
	vbo     uint32
}

// NewSkybox takes ownership of cubemap.
func NewSkybox(dev opengl.Device, cubemap *textures.Texture) (*Skybox, error) {
	vao := dev.CreateVertexArray()
	if err := opengl.CheckAlloc(vao, "skybox vertex array"); err != nil {
		return nil, err
	}
	vbo := dev.CreateBuffer()
	if err := opengl.CheckAlloc(vbo, "skybox buffer"); err != nil {
		dev.DeleteVertexArray(vao)
		return nil, err
	}
	positions := skyboxPositions()
	dev.BindVertexArray(vao)
	dev.BindBuffer(opengl.ArrayBuffer, vbo)
	dev.BufferData(opengl.ArrayBuffer, 4*len(positions), float32Bytes(positions), opengl.StaticDraw)
	dev.EnableVertexAttribArray(0)
	dev.VertexAttribPointer(0, 3, 12, 0)
	dev.BindVertexArray(0)
	return &Skybox{dev: dev, cubemap: cubemap, vao: vao, vbo: vbo}, nil
}

// Draw renders through b, whose program already has the camera block
// bound. Depth func LEQUAL with depth writes off keeps the box at the far
// plane behind every drawn fragment. State is restored after.
func (s *Skybox) Draw(b *shader.ActiveBinding, view math.Mat4) {
	s.dev.DepthFunc(opengl.Lequal)
	s.dev.DepthMask(false)
	s.dev.Disable(opengl.CullFace)

	b.Bind("view_rotation", shader.Mat4(view.WithoutTranslation()))
	b.BindUniform("skybox", s.cubemap)
	s.dev.BindVertexArray(s.vao)
	s.dev.DrawArrays(opengl.Triangles, 0, 36)
	s.dev.BindVertexArray(0)
	b.ResetTextures()

	s.dev.Enable(opengl.CullFace)
	s.dev.DepthMask(true)
	s.dev.DepthFunc(opengl.Less)
}

func (s *Skybox) Release() {
	s.cubemap.Release()
	s.dev.DeleteVertexArray(s.vao)
	s.dev.DeleteBuffer(s.vbo)
}
