// Package opengl defines the GPU call surface the renderer is written against.
//
// Everything above this package talks to a Device, never to the driver
// bindings directly. The native implementation lives in opengl/native; tests
// use the recording fake in opengl/opengltest.
package opengl

import (
	"errors"
	"fmt"
)

// Enum mirrors a GLenum. Values are the ones from the GL 4.1 core headers.
type Enum uint32

const (
	VertexShader   Enum = 0x8B31
	FragmentShader Enum = 0x8B30

	ArrayBuffer        Enum = 0x8892
	ElementArrayBuffer Enum = 0x8893
	UniformBuffer      Enum = 0x8A11
	StaticDraw         Enum = 0x88E4
	DynamicDraw        Enum = 0x88E8

	Texture0                Enum = 0x84C0
	Texture2D               Enum = 0x0DE1
	TextureCubeMap          Enum = 0x8513
	TextureCubeMapPositiveX Enum = 0x8515

	TextureMagFilter   Enum = 0x2800
	TextureMinFilter   Enum = 0x2801
	TextureWrapS       Enum = 0x2802
	TextureWrapT       Enum = 0x2803
	TextureWrapR       Enum = 0x8072
	Nearest            Enum = 0x2600
	Linear             Enum = 0x2601
	LinearMipmapLinear Enum = 0x2703
	Repeat             Enum = 0x2901
	ClampToEdge        Enum = 0x812F
	UnpackAlignment    Enum = 0x0CF5

	Red  Enum = 0x1903
	RGB  Enum = 0x1907
	RGBA Enum = 0x1908

	Framebuffer            Enum = 0x8D40
	Renderbuffer           Enum = 0x8D41
	ColorAttachment0       Enum = 0x8CE0
	DepthStencilAttachment Enum = 0x821A
	Depth24Stencil8        Enum = 0x88F0
	FramebufferComplete    Enum = 0x8CD5

	DepthTest   Enum = 0x0B71
	StencilTest Enum = 0x0B90
	Blend       Enum = 0x0BE2
	CullFace    Enum = 0x0B44

	Never    Enum = 0x0200
	Less     Enum = 0x0201
	Equal    Enum = 0x0202
	Lequal   Enum = 0x0203
	Greater  Enum = 0x0204
	Notequal Enum = 0x0205
	Gequal   Enum = 0x0206
	Always   Enum = 0x0207

	Keep    Enum = 0x1E00
	Replace Enum = 0x1E01

	SrcAlpha         Enum = 0x0302
	OneMinusSrcAlpha Enum = 0x0303

	DepthBufferBit   Enum = 0x0100
	StencilBufferBit Enum = 0x0400
	ColorBufferBit   Enum = 0x4000

	Triangles     Enum = 0x0004
	TriangleStrip Enum = 0x0005
)

// InvalidIndex is returned by GetUniformBlockIndex for unknown blocks.
const InvalidIndex uint32 = 0xFFFFFFFF

// ErrAlloc reports that the driver refused to create an object.
var ErrAlloc = errors.New("gpu allocation failed")

// CheckAlloc turns a zero object name into an ErrAlloc.
func CheckAlloc(name uint32, what string) error {
	if name == 0 {
		return fmt.Errorf("create %s: %w", what, ErrAlloc)
	}
	return nil
}

// Device is the subset of GL the renderer uses. Object names are plain
// uint32 handles; zero means "none" for bind calls and failure for creates.
// A uniform location of -1 is accepted by every Uniform* call and ignored.
type Device interface {
	// Programs
	CreateShader(stage Enum) uint32
	CompileShader(shader uint32, source string) (log string, ok bool)
	DeleteShader(shader uint32)
	CreateProgram() uint32
	LinkProgram(program uint32, shaders ...uint32) (log string, ok bool)
	DeleteProgram(program uint32)
	UseProgram(program uint32)

	// Uniforms
	GetUniformLocation(program uint32, name string) int32
	GetUniformBlockIndex(program uint32, name string) uint32
	UniformBlockBinding(program, index, binding uint32)
	Uniform1i(location int32, v int32)
	Uniform1ui(location int32, v uint32)
	Uniform1f(location int32, v float32)
	Uniform2f(location int32, x, y float32)
	Uniform3f(location int32, x, y, z float32)
	Uniform4f(location int32, x, y, z, w float32)
	UniformMatrix3fv(location int32, m [9]float32)
	UniformMatrix4fv(location int32, m [16]float32)

	// Buffers
	CreateBuffer() uint32
	BindBuffer(target Enum, buffer uint32)
	BufferData(target Enum, size int, data []byte, usage Enum)
	BufferSubData(target Enum, offset int, data []byte)
	GetBufferSubData(target Enum, offset int, dst []byte)
	BindBufferBase(target Enum, index, buffer uint32)
	DeleteBuffer(buffer uint32)

	// Vertex arrays
	CreateVertexArray() uint32
	BindVertexArray(vao uint32)
	EnableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size, stride int32, offset int)
	VertexAttribDivisor(index, divisor uint32)
	DeleteVertexArray(vao uint32)

	// Textures
	CreateTexture() uint32
	ActiveTexture(unit Enum)
	BindTexture(target Enum, texture uint32)
	TexParameteri(target, pname Enum, param int32)
	PixelStorei(pname Enum, param int32)
	TexImage2D(target, internalFormat Enum, width, height int32, format Enum, pixels []byte)
	TexSubImage2D(target Enum, x, y, width, height int32, format Enum, pixels []byte)
	GenerateMipmap(target Enum)
	DeleteTexture(texture uint32)

	// Framebuffers
	CreateFramebuffer() uint32
	BindFramebuffer(framebuffer uint32)
	FramebufferTexture2D(attachment, textarget Enum, texture uint32)
	CreateRenderbuffer() uint32
	RenderbufferStorage(renderbuffer uint32, format Enum, width, height int32)
	FramebufferRenderbuffer(attachment Enum, renderbuffer uint32)
	CheckFramebufferStatus() Enum
	DeleteFramebuffer(framebuffer uint32)
	DeleteRenderbuffer(renderbuffer uint32)

	// Fixed-function state
	Enable(capability Enum)
	Disable(capability Enum)
	DepthFunc(fn Enum)
	DepthMask(write bool)
	StencilFunc(fn Enum, ref int32, mask uint32)
	StencilOp(sfail, dpfail, dppass Enum)
	StencilMask(mask uint32)
	BlendFunc(src, dst Enum)
	ClearColor(r, g, b, a float32)
	Clear(mask Enum)
	Viewport(x, y, width, height int32)

	// Draws
	DrawElements(mode Enum, count int32)
	DrawArrays(mode Enum, first, count int32)
	DrawArraysInstanced(mode Enum, first, count, instances int32)
}
