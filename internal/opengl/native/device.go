// Package native implements opengl.Device on top of go-gl's 4.1 core
// bindings. All calls must come from the goroutine that owns the context.
package native

import (
	"fmt"
	"log/slog"
	"strings"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-demo/internal/opengl"
)

// Device forwards every call to the current GL context.
type Device struct {
	Version  string
	Renderer string
}

var _ opengl.Device = (*Device)(nil)

// New loads the GL function pointers. The window's context must already be
// current on the calling thread.
func New(log *slog.Logger) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	d := &Device{
		Version:  gl.GoStr(gl.GetString(gl.VERSION)),
		Renderer: gl.GoStr(gl.GetString(gl.RENDERER)),
	}
	log.Info("opengl ready", "version", d.Version, "renderer", d.Renderer)
	return d, nil
}

func ptr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func cstr(s string) *uint8 {
	return gl.Str(s + "\x00")
}

// ── Programs ─────────────────────────────────────────────────────────────────

func (d *Device) CreateShader(stage opengl.Enum) uint32 {
	return gl.CreateShader(uint32(stage))
}

func (d *Device) CompileShader(shader uint32, source string) (string, bool) {
	csrc, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		return strings.TrimRight(log, "\x00"), false
	}
	return "", true
}

func (d *Device) DeleteShader(shader uint32) { gl.DeleteShader(shader) }

func (d *Device) CreateProgram() uint32 { return gl.CreateProgram() }

func (d *Device) LinkProgram(program uint32, shaders ...uint32) (string, bool) {
	for _, s := range shaders {
		gl.AttachShader(program, s)
	}
	gl.LinkProgram(program)
	for _, s := range shaders {
		gl.DetachShader(program, s)
	}

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(program, logLen, nil, gl.Str(log))
		return strings.TrimRight(log, "\x00"), false
	}
	return "", true
}

func (d *Device) DeleteProgram(program uint32) { gl.DeleteProgram(program) }
func (d *Device) UseProgram(program uint32)    { gl.UseProgram(program) }

// ── Uniforms ─────────────────────────────────────────────────────────────────

func (d *Device) GetUniformLocation(program uint32, name string) int32 {
	return gl.GetUniformLocation(program, cstr(name))
}

func (d *Device) GetUniformBlockIndex(program uint32, name string) uint32 {
	return gl.GetUniformBlockIndex(program, cstr(name))
}

func (d *Device) UniformBlockBinding(program, index, binding uint32) {
	gl.UniformBlockBinding(program, index, binding)
}

func (d *Device) Uniform1i(loc int32, v int32)            { gl.Uniform1i(loc, v) }
func (d *Device) Uniform1ui(loc int32, v uint32)          { gl.Uniform1ui(loc, v) }
func (d *Device) Uniform1f(loc int32, v float32)          { gl.Uniform1f(loc, v) }
func (d *Device) Uniform2f(loc int32, x, y float32)       { gl.Uniform2f(loc, x, y) }
func (d *Device) Uniform3f(loc int32, x, y, z float32)    { gl.Uniform3f(loc, x, y, z) }
func (d *Device) Uniform4f(loc int32, x, y, z, w float32) { gl.Uniform4f(loc, x, y, z, w) }

func (d *Device) UniformMatrix3fv(loc int32, m [9]float32) {
	gl.UniformMatrix3fv(loc, 1, false, &m[0])
}

func (d *Device) UniformMatrix4fv(loc int32, m [16]float32) {
	gl.UniformMatrix4fv(loc, 1, false, &m[0])
}

// ── Buffers ──────────────────────────────────────────────────────────────────

func (d *Device) CreateBuffer() uint32 {
	var b uint32
	gl.GenBuffers(1, &b)
	return b
}

func (d *Device) BindBuffer(target opengl.Enum, buffer uint32) {
	gl.BindBuffer(uint32(target), buffer)
}

func (d *Device) BufferData(target opengl.Enum, size int, data []byte, usage opengl.Enum) {
	gl.BufferData(uint32(target), size, ptr(data), uint32(usage))
}

func (d *Device) BufferSubData(target opengl.Enum, offset int, data []byte) {
	gl.BufferSubData(uint32(target), offset, len(data), ptr(data))
}

func (d *Device) GetBufferSubData(target opengl.Enum, offset int, dst []byte) {
	gl.GetBufferSubData(uint32(target), offset, len(dst), ptr(dst))
}

func (d *Device) BindBufferBase(target opengl.Enum, index, buffer uint32) {
	gl.BindBufferBase(uint32(target), index, buffer)
}

func (d *Device) DeleteBuffer(buffer uint32) { gl.DeleteBuffers(1, &buffer) }

// ── Vertex arrays ────────────────────────────────────────────────────────────

func (d *Device) CreateVertexArray() uint32 {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	return vao
}

func (d *Device) BindVertexArray(vao uint32)           { gl.BindVertexArray(vao) }
func (d *Device) EnableVertexAttribArray(index uint32) { gl.EnableVertexAttribArray(index) }

func (d *Device) VertexAttribPointer(index uint32, size, stride int32, offset int) {
	gl.VertexAttribPointer(index, size, gl.FLOAT, false, stride, gl.PtrOffset(offset))
}

func (d *Device) VertexAttribDivisor(index, divisor uint32) { gl.VertexAttribDivisor(index, divisor) }
func (d *Device) DeleteVertexArray(vao uint32)              { gl.DeleteVertexArrays(1, &vao) }

// ── Textures ─────────────────────────────────────────────────────────────────

func (d *Device) CreateTexture() uint32 {
	var t uint32
	gl.GenTextures(1, &t)
	return t
}

func (d *Device) ActiveTexture(unit opengl.Enum) { gl.ActiveTexture(uint32(unit)) }

func (d *Device) BindTexture(target opengl.Enum, texture uint32) {
	gl.BindTexture(uint32(target), texture)
}

func (d *Device) TexParameteri(target, pname opengl.Enum, param int32) {
	gl.TexParameteri(uint32(target), uint32(pname), param)
}

func (d *Device) PixelStorei(pname opengl.Enum, param int32) {
	gl.PixelStorei(uint32(pname), param)
}

func (d *Device) TexImage2D(target, internalFormat opengl.Enum, width, height int32, format opengl.Enum, pixels []byte) {
	gl.TexImage2D(uint32(target), 0, int32(internalFormat), width, height, 0,
		uint32(format), gl.UNSIGNED_BYTE, ptr(pixels))
}

func (d *Device) TexSubImage2D(target opengl.Enum, x, y, width, height int32, format opengl.Enum, pixels []byte) {
	gl.TexSubImage2D(uint32(target), 0, x, y, width, height, uint32(format), gl.UNSIGNED_BYTE, ptr(pixels))
}

func (d *Device) GenerateMipmap(target opengl.Enum) { gl.GenerateMipmap(uint32(target)) }
func (d *Device) DeleteTexture(texture uint32)      { gl.DeleteTextures(1, &texture) }

// ── Framebuffers ─────────────────────────────────────────────────────────────

func (d *Device) CreateFramebuffer() uint32 {
	var fb uint32
	gl.GenFramebuffers(1, &fb)
	return fb
}

func (d *Device) BindFramebuffer(framebuffer uint32) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, framebuffer)
}

func (d *Device) FramebufferTexture2D(attachment, textarget opengl.Enum, texture uint32) {
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, uint32(attachment), uint32(textarget), texture, 0)
}

func (d *Device) CreateRenderbuffer() uint32 {
	var rb uint32
	gl.GenRenderbuffers(1, &rb)
	return rb
}

func (d *Device) RenderbufferStorage(renderbuffer uint32, format opengl.Enum, width, height int32) {
	gl.BindRenderbuffer(gl.RENDERBUFFER, renderbuffer)
	gl.RenderbufferStorage(gl.RENDERBUFFER, uint32(format), width, height)
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
}

func (d *Device) FramebufferRenderbuffer(attachment opengl.Enum, renderbuffer uint32) {
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, uint32(attachment), gl.RENDERBUFFER, renderbuffer)
}

func (d *Device) CheckFramebufferStatus() opengl.Enum {
	return opengl.Enum(gl.CheckFramebufferStatus(gl.FRAMEBUFFER))
}

func (d *Device) DeleteFramebuffer(fb uint32)  { gl.DeleteFramebuffers(1, &fb) }
func (d *Device) DeleteRenderbuffer(rb uint32) { gl.DeleteRenderbuffers(1, &rb) }

// ── State ────────────────────────────────────────────────────────────────────

func (d *Device) Enable(c opengl.Enum)     { gl.Enable(uint32(c)) }
func (d *Device) Disable(c opengl.Enum)    { gl.Disable(uint32(c)) }
func (d *Device) DepthFunc(fn opengl.Enum) { gl.DepthFunc(uint32(fn)) }
func (d *Device) DepthMask(write bool)     { gl.DepthMask(write) }

func (d *Device) StencilFunc(fn opengl.Enum, ref int32, mask uint32) {
	gl.StencilFunc(uint32(fn), ref, mask)
}

func (d *Device) StencilOp(sfail, dpfail, dppass opengl.Enum) {
	gl.StencilOp(uint32(sfail), uint32(dpfail), uint32(dppass))
}

func (d *Device) StencilMask(mask uint32)        { gl.StencilMask(mask) }
func (d *Device) BlendFunc(src, dst opengl.Enum) { gl.BlendFunc(uint32(src), uint32(dst)) }
func (d *Device) ClearColor(r, g, b, a float32)  { gl.ClearColor(r, g, b, a) }
func (d *Device) Clear(mask opengl.Enum)         { gl.Clear(uint32(mask)) }
func (d *Device) Viewport(x, y, w, h int32)      { gl.Viewport(x, y, w, h) }

// ── Draws ────────────────────────────────────────────────────────────────────

func (d *Device) DrawElements(mode opengl.Enum, count int32) {
	gl.DrawElements(uint32(mode), count, gl.UNSIGNED_INT, gl.PtrOffset(0))
}

func (d *Device) DrawArrays(mode opengl.Enum, first, count int32) {
	gl.DrawArrays(uint32(mode), first, count)
}

func (d *Device) DrawArraysInstanced(mode opengl.Enum, first, count, instances int32) {
	gl.DrawArraysInstanced(uint32(mode), first, count, instances)
}
