package scene

import (
	"fmt"

	"render-demo/internal/opengl"
	"render-demo/math"
	"render-demo/shader"
	"render-demo/textures"
)

// Effect selects the post-processing kernel in the screen shader.
type Effect int32

const (
	EffectNone Effect = iota
	EffectInversion
	EffectGrayscale
	EffectSharpen
	EffectBlur
	EffectEdgeDetection
)

var effectNames = [...]string{"none", "inversion", "grayscale", "sharpen", "blur", "edge detection"}

func (e Effect) String() string {
	if e < 0 || int(e) >= len(effectNames) {
		return fmt.Sprintf("Effect(%d)", int32(e))
	}
	return effectNames[e]
}

// Next cycles to the following effect.
func (e Effect) Next() Effect { return (e + 1) % Effect(len(effectNames)) }

func (e Effect) Uniform() shader.UniformValue { return shader.Int(int32(e)) }

// FramebufferError reports an incomplete framebuffer.
type FramebufferError struct {
	Status opengl.Enum
}

func (e *FramebufferError) Error() string {
	return fmt.Sprintf("framebuffer incomplete: status %#x", uint32(e.Status))
}

// ScreenCapture renders the frame into an offscreen color texture, then
// draws that texture to the default framebuffer through the screen
// program.
type ScreenCapture struct {
	dev     opengl.Device
	program *shader.Program
	fbo     uint32
	rbo     uint32
	color   *textures.Texture
	quad    *Mesh
}

// NewScreenCapture allocates a width×height framebuffer with an RGB color
// texture and a combined depth/stencil renderbuffer.
func NewScreenCapture(dev opengl.Device, program *shader.Program, width, height int) (*ScreenCapture, error) {
	c := &ScreenCapture{dev: dev, program: program}
	if err := c.allocate(width, height); err != nil {
		return nil, err
	}
	quad, err := NewMeshFromData(dev, Plane{Length: 2, Width: 2, Normal: math.Vec3Zero}.MeshData(), nil)
	if err != nil {
		c.free()
		return nil, fmt.Errorf("screen quad: %w", err)
	}
	c.quad = quad
	return c, nil
}

func (c *ScreenCapture) allocate(width, height int) error {
	c.fbo = c.dev.CreateFramebuffer()
	if err := opengl.CheckAlloc(c.fbo, "framebuffer"); err != nil {
		return err
	}
	c.dev.BindFramebuffer(c.fbo)
	defer c.dev.BindFramebuffer(0)

	var err error
	c.color, err = textures.NewBuilder(c.dev,
		textures.WithFormat(opengl.RGB),
		textures.WithFilter(opengl.Linear, opengl.Linear),
		textures.WithWrap(opengl.ClampToEdge),
	).RenderTexture(width, height)
	if err != nil {
		c.free()
		return fmt.Errorf("render texture: %w", err)
	}
	c.dev.FramebufferTexture2D(opengl.ColorAttachment0, opengl.Texture2D, c.color.Handle())

	c.rbo = c.dev.CreateRenderbuffer()
	if err := opengl.CheckAlloc(c.rbo, "renderbuffer"); err != nil {
		c.free()
		return err
	}
	c.dev.RenderbufferStorage(c.rbo, opengl.Depth24Stencil8, int32(width), int32(height))
	c.dev.FramebufferRenderbuffer(opengl.DepthStencilAttachment, c.rbo)

	if status := c.dev.CheckFramebufferStatus(); status != opengl.FramebufferComplete {
		c.free()
		return &FramebufferError{Status: status}
	}
	return nil
}

func (c *ScreenCapture) free() {
	if c.color != nil {
		c.color.Release()
		c.color = nil
	}
	if c.rbo != 0 {
		c.dev.DeleteRenderbuffer(c.rbo)
		c.rbo = 0
	}
	if c.fbo != 0 {
		c.dev.DeleteFramebuffer(c.fbo)
		c.fbo = 0
	}
}

// Resize replaces the attachments with width×height ones.
func (c *ScreenCapture) Resize(width, height int) error {
	c.free()
	return c.allocate(width, height)
}

// SetProgram swaps the screen program, for shader reloads.
func (c *ScreenCapture) SetProgram(p *shader.Program) { c.program = p }

// Record sends subsequent draws into the offscreen framebuffer.
func (c *ScreenCapture) Record() {
	c.dev.BindFramebuffer(c.fbo)
}

// Replay draws the captured frame to the screen with effect applied.
func (c *ScreenCapture) Replay(effect Effect) {
	c.dev.BindFramebuffer(0)
	c.dev.ClearColor(1, 1, 1, 1)
	c.dev.Clear(opengl.ColorBufferBit)

	b := c.program.Activate()
	c.dev.Disable(opengl.DepthTest)
	b.BindUniform("screenTexture", c.color)
	b.BindUniform("effect", effect)
	c.quad.Draw(b)
	c.dev.Enable(opengl.DepthTest)
}

func (c *ScreenCapture) Release() {
	c.free()
	if c.quad != nil {
		c.quad.Release()
	}
}
