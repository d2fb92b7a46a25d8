// Package opengltest provides a recording opengl.Device for tests that run
// without a GL context.
package opengltest

import (
	"fmt"
	"strings"

	"render-demo/internal/opengl"
)

// UniformWrite is one Uniform* call that hit a resolved location.
type UniformWrite struct {
	Program uint32
	Name    string
	Value   any
}

// Draw is one draw call plus the state it ran under.
type Draw struct {
	Mode        opengl.Enum
	Count       int32
	Instances   int32
	Program     uint32
	VAO         uint32
	Framebuffer uint32
	State       State
	Textures    map[uint32]uint32 // unit index -> texture
}

// State is the fixed-function state the fake tracks.
type State struct {
	Enabled      map[opengl.Enum]bool
	DepthFunc    opengl.Enum
	DepthMask    bool
	StencilFunc  opengl.Enum
	StencilRef   int32
	StencilMask  uint32
	StencilWrite uint32
	StencilOp    [3]opengl.Enum
	BlendSrc     opengl.Enum
	BlendDst     opengl.Enum
}

func (s State) clone() State {
	c := s
	c.Enabled = make(map[opengl.Enum]bool, len(s.Enabled))
	for k, v := range s.Enabled {
		c.Enabled[k] = v
	}
	return c
}

// Texture is the fake's record of a texture object.
type Texture struct {
	Target    opengl.Enum
	Width     int32
	Height    int32
	Format    opengl.Enum
	Internal  opengl.Enum
	Params    map[opengl.Enum]int32
	Faces     map[opengl.Enum][]byte
	Mipmapped bool
	SubImages int
}

// Device records calls and keeps just enough state to answer queries.
type Device struct {
	// Missing names resolve to -1 (uniforms) or InvalidIndex (blocks).
	Missing map[string]bool
	// CompileFailure makes any source containing it fail to compile.
	CompileFailure string
	// LinkFailure makes every link fail.
	LinkFailure bool
	// FailAlloc makes every Create* return 0.
	FailAlloc bool
	// Status is returned by CheckFramebufferStatus.
	Status opengl.Enum
	// Alignment is the last UNPACK_ALIGNMENT set.
	Alignment int32

	Calls    []string
	Writes   []UniformWrite
	Draws    []Draw
	Sources  map[uint32]string
	Textures map[uint32]*Texture
	Buffers  map[uint32][]byte
	Deleted  map[string][]uint32

	BlockBindings map[uint32]map[uint32]uint32   // program -> block index -> binding
	BufferBases   map[uint32]uint32              // binding -> buffer
	Attribs       map[uint32]map[uint32][3]int32 // vao -> index -> {size, stride, offset}
	Divisors      map[uint32]map[uint32]uint32

	next        uint32
	program     uint32
	vao         uint32
	framebuffer uint32
	unit        uint32
	bound       map[opengl.Enum]uint32
	units       map[uint32]map[opengl.Enum]uint32
	locations   map[uint32]map[string]int32
	names       map[uint32]map[int32]string
	blocks      map[uint32]map[string]uint32
	linked      map[uint32]bool
	state       State
}

var _ opengl.Device = (*Device)(nil)

// New returns a fake with GL's default state.
func New() *Device {
	return &Device{
		Missing:       map[string]bool{},
		Status:        opengl.FramebufferComplete,
		Sources:       map[uint32]string{},
		Textures:      map[uint32]*Texture{},
		Buffers:       map[uint32][]byte{},
		Deleted:       map[string][]uint32{},
		BlockBindings: map[uint32]map[uint32]uint32{},
		BufferBases:   map[uint32]uint32{},
		Attribs:       map[uint32]map[uint32][3]int32{},
		Divisors:      map[uint32]map[uint32]uint32{},
		bound:         map[opengl.Enum]uint32{},
		units:         map[uint32]map[opengl.Enum]uint32{},
		locations:     map[uint32]map[string]int32{},
		names:         map[uint32]map[int32]string{},
		blocks:        map[uint32]map[string]uint32{},
		linked:        map[uint32]bool{},
		state: State{
			Enabled:      map[opengl.Enum]bool{},
			DepthFunc:    opengl.Less,
			DepthMask:    true,
			StencilFunc:  opengl.Always,
			StencilMask:  0xFF,
			StencilWrite: 0xFF,
			StencilOp:    [3]opengl.Enum{opengl.Keep, opengl.Keep, opengl.Keep},
		},
	}
}

func (d *Device) record(format string, args ...any) {
	d.Calls = append(d.Calls, fmt.Sprintf(format, args...))
}

func (d *Device) alloc() uint32 {
	if d.FailAlloc {
		return 0
	}
	d.next++
	return d.next
}

// State returns a snapshot of the current fixed-function state.
func (d *Device) State() State { return d.state.clone() }

// Program returns the program made current by the last UseProgram.
func (d *Device) Program() uint32 { return d.program }

// Framebuffer returns the bound framebuffer.
func (d *Device) Framebuffer() uint32 { return d.framebuffer }

// WritesTo returns every recorded value written to name, in order.
func (d *Device) WritesTo(name string) []any {
	var out []any
	for _, w := range d.Writes {
		if w.Name == name {
			out = append(out, w.Value)
		}
	}
	return out
}

// WriteNames returns the uniform names written, in order.
func (d *Device) WriteNames() []string {
	out := make([]string, 0, len(d.Writes))
	for _, w := range d.Writes {
		out = append(out, w.Name)
	}
	return out
}

// CallsWithPrefix filters the call log.
func (d *Device) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range d.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Reset drops recorded calls, writes and draws but keeps objects.
func (d *Device) Reset() {
	d.Calls = nil
	d.Writes = nil
	d.Draws = nil
}

// ── Programs ─────────────────────────────────────────────────────────────────

func (d *Device) CreateShader(stage opengl.Enum) uint32 {
	s := d.alloc()
	d.record("CreateShader(%#x) = %d", uint32(stage), s)
	return s
}

func (d *Device) CompileShader(shader uint32, source string) (string, bool) {
	d.record("CompileShader(%d)", shader)
	d.Sources[shader] = source
	if d.CompileFailure != "" && strings.Contains(source, d.CompileFailure) {
		return fmt.Sprintf("0:1(1): error: %s", d.CompileFailure), false
	}
	return "", true
}

func (d *Device) DeleteShader(shader uint32) {
	d.record("DeleteShader(%d)", shader)
	d.Deleted["shader"] = append(d.Deleted["shader"], shader)
}

func (d *Device) CreateProgram() uint32 {
	p := d.alloc()
	d.record("CreateProgram() = %d", p)
	return p
}

func (d *Device) LinkProgram(program uint32, shaders ...uint32) (string, bool) {
	d.record("LinkProgram(%d, %v)", program, shaders)
	if d.LinkFailure {
		return "error: linking failed", false
	}
	d.linked[program] = true
	return "", true
}

func (d *Device) DeleteProgram(program uint32) {
	d.record("DeleteProgram(%d)", program)
	d.Deleted["program"] = append(d.Deleted["program"], program)
}

func (d *Device) UseProgram(program uint32) {
	d.record("UseProgram(%d)", program)
	d.program = program
}

// ── Uniforms ─────────────────────────────────────────────────────────────────

func (d *Device) GetUniformLocation(program uint32, name string) int32 {
	if d.Missing[name] {
		return -1
	}
	locs := d.locations[program]
	if locs == nil {
		locs = map[string]int32{}
		d.locations[program] = locs
		d.names[program] = map[int32]string{}
	}
	loc, ok := locs[name]
	if !ok {
		loc = int32(len(locs))
		locs[name] = loc
		d.names[program][loc] = name
	}
	return loc
}

func (d *Device) GetUniformBlockIndex(program uint32, name string) uint32 {
	if d.Missing[name] {
		return opengl.InvalidIndex
	}
	idx := d.blocks[program]
	if idx == nil {
		idx = map[string]uint32{}
		d.blocks[program] = idx
	}
	i, ok := idx[name]
	if !ok {
		i = uint32(len(idx))
		idx[name] = i
	}
	return i
}

func (d *Device) UniformBlockBinding(program, index, binding uint32) {
	d.record("UniformBlockBinding(%d, %d, %d)", program, index, binding)
	m := d.BlockBindings[program]
	if m == nil {
		m = map[uint32]uint32{}
		d.BlockBindings[program] = m
	}
	m[index] = binding
}

func (d *Device) write(loc int32, v any) {
	if loc < 0 {
		return
	}
	name := d.names[d.program][loc]
	d.Writes = append(d.Writes, UniformWrite{Program: d.program, Name: name, Value: v})
}

func (d *Device) Uniform1i(loc int32, v int32)              { d.write(loc, v) }
func (d *Device) Uniform1ui(loc int32, v uint32)            { d.write(loc, v) }
func (d *Device) Uniform1f(loc int32, v float32)            { d.write(loc, v) }
func (d *Device) Uniform2f(loc int32, x, y float32)         { d.write(loc, [2]float32{x, y}) }
func (d *Device) Uniform3f(loc int32, x, y, z float32)      { d.write(loc, [3]float32{x, y, z}) }
func (d *Device) Uniform4f(loc int32, x, y, z, w float32)   { d.write(loc, [4]float32{x, y, z, w}) }
func (d *Device) UniformMatrix3fv(loc int32, m [9]float32)  { d.write(loc, m) }
func (d *Device) UniformMatrix4fv(loc int32, m [16]float32) { d.write(loc, m) }

// ── Buffers ──────────────────────────────────────────────────────────────────

func (d *Device) CreateBuffer() uint32 {
	b := d.alloc()
	d.record("CreateBuffer() = %d", b)
	return b
}

func (d *Device) BindBuffer(target opengl.Enum, buffer uint32) {
	d.bound[target] = buffer
}

func (d *Device) BufferData(target opengl.Enum, size int, data []byte, usage opengl.Enum) {
	buf := make([]byte, size)
	copy(buf, data)
	d.Buffers[d.bound[target]] = buf
	d.record("BufferData(%#x, %d)", uint32(target), size)
}

func (d *Device) BufferSubData(target opengl.Enum, offset int, data []byte) {
	buf := d.Buffers[d.bound[target]]
	if offset+len(data) > len(buf) {
		panic(fmt.Sprintf("opengltest: BufferSubData overflows buffer %d (%d+%d > %d)",
			d.bound[target], offset, len(data), len(buf)))
	}
	copy(buf[offset:], data)
	d.record("BufferSubData(%#x, %d, %d)", uint32(target), offset, len(data))
}

func (d *Device) GetBufferSubData(target opengl.Enum, offset int, dst []byte) {
	copy(dst, d.Buffers[d.bound[target]][offset:])
}

func (d *Device) BindBufferBase(target opengl.Enum, index, buffer uint32) {
	d.record("BindBufferBase(%#x, %d, %d)", uint32(target), index, buffer)
	d.BufferBases[index] = buffer
	d.bound[target] = buffer
}

func (d *Device) DeleteBuffer(buffer uint32) {
	d.Deleted["buffer"] = append(d.Deleted["buffer"], buffer)
	delete(d.Buffers, buffer)
}

// ── Vertex arrays ────────────────────────────────────────────────────────────

func (d *Device) CreateVertexArray() uint32 {
	v := d.alloc()
	d.record("CreateVertexArray() = %d", v)
	return v
}

func (d *Device) BindVertexArray(vao uint32) { d.vao = vao }

func (d *Device) EnableVertexAttribArray(index uint32) {}

func (d *Device) VertexAttribPointer(index uint32, size, stride int32, offset int) {
	m := d.Attribs[d.vao]
	if m == nil {
		m = map[uint32][3]int32{}
		d.Attribs[d.vao] = m
	}
	m[index] = [3]int32{size, stride, int32(offset)}
}

func (d *Device) VertexAttribDivisor(index, divisor uint32) {
	m := d.Divisors[d.vao]
	if m == nil {
		m = map[uint32]uint32{}
		d.Divisors[d.vao] = m
	}
	m[index] = divisor
}

func (d *Device) DeleteVertexArray(vao uint32) {
	d.Deleted["vao"] = append(d.Deleted["vao"], vao)
}

// ── Textures ─────────────────────────────────────────────────────────────────

func (d *Device) CreateTexture() uint32 {
	t := d.alloc()
	if t != 0 {
		d.Textures[t] = &Texture{Params: map[opengl.Enum]int32{}, Faces: map[opengl.Enum][]byte{}}
	}
	d.record("CreateTexture() = %d", t)
	return t
}

func (d *Device) ActiveTexture(unit opengl.Enum) {
	d.record("ActiveTexture(%d)", uint32(unit-opengl.Texture0))
	d.unit = uint32(unit - opengl.Texture0)
}

func (d *Device) BindTexture(target opengl.Enum, texture uint32) {
	d.record("BindTexture(%#x, %d)", uint32(target), texture)
	u := d.units[d.unit]
	if u == nil {
		u = map[opengl.Enum]uint32{}
		d.units[d.unit] = u
	}
	u[target] = texture
	if t := d.Textures[texture]; t != nil {
		t.Target = target
	}
}

func (d *Device) boundTexture(target opengl.Enum) *Texture {
	if target >= opengl.TextureCubeMapPositiveX && target < opengl.TextureCubeMapPositiveX+6 {
		target = opengl.TextureCubeMap
	}
	return d.Textures[d.units[d.unit][target]]
}

func (d *Device) TexParameteri(target, pname opengl.Enum, param int32) {
	if t := d.boundTexture(target); t != nil {
		t.Params[pname] = param
	}
}

func (d *Device) PixelStorei(pname opengl.Enum, param int32) {
	d.record("PixelStorei(%#x, %d)", uint32(pname), param)
	if pname == opengl.UnpackAlignment {
		d.Alignment = param
	}
}

func (d *Device) TexImage2D(target, internalFormat opengl.Enum, width, height int32, format opengl.Enum, pixels []byte) {
	d.record("TexImage2D(%#x, %dx%d)", uint32(target), width, height)
	t := d.boundTexture(target)
	if t == nil {
		return
	}
	t.Width, t.Height, t.Format, t.Internal = width, height, format, internalFormat
	var data []byte
	if pixels != nil {
		data = append([]byte(nil), pixels...)
	}
	t.Faces[target] = data
}

func (d *Device) TexSubImage2D(target opengl.Enum, x, y, width, height int32, format opengl.Enum, pixels []byte) {
	d.record("TexSubImage2D(%d, %d, %d, %d)", x, y, width, height)
	if t := d.boundTexture(target); t != nil {
		t.SubImages++
	}
}

func (d *Device) GenerateMipmap(target opengl.Enum) {
	d.record("GenerateMipmap(%#x)", uint32(target))
	if t := d.boundTexture(target); t != nil {
		t.Mipmapped = true
	}
}

func (d *Device) DeleteTexture(texture uint32) {
	d.record("DeleteTexture(%d)", texture)
	d.Deleted["texture"] = append(d.Deleted["texture"], texture)
}

// ── Framebuffers ─────────────────────────────────────────────────────────────

func (d *Device) CreateFramebuffer() uint32 {
	f := d.alloc()
	d.record("CreateFramebuffer() = %d", f)
	return f
}

func (d *Device) BindFramebuffer(framebuffer uint32) {
	d.record("BindFramebuffer(%d)", framebuffer)
	d.framebuffer = framebuffer
}

func (d *Device) FramebufferTexture2D(attachment, textarget opengl.Enum, texture uint32) {
	d.record("FramebufferTexture2D(%#x, %d)", uint32(attachment), texture)
}

func (d *Device) CreateRenderbuffer() uint32 {
	r := d.alloc()
	d.record("CreateRenderbuffer() = %d", r)
	return r
}

func (d *Device) RenderbufferStorage(renderbuffer uint32, format opengl.Enum, width, height int32) {
	d.record("RenderbufferStorage(%d, %#x, %dx%d)", renderbuffer, uint32(format), width, height)
}

func (d *Device) FramebufferRenderbuffer(attachment opengl.Enum, renderbuffer uint32) {
	d.record("FramebufferRenderbuffer(%#x, %d)", uint32(attachment), renderbuffer)
}

func (d *Device) CheckFramebufferStatus() opengl.Enum { return d.Status }

func (d *Device) DeleteFramebuffer(fb uint32) {
	d.Deleted["framebuffer"] = append(d.Deleted["framebuffer"], fb)
}

func (d *Device) DeleteRenderbuffer(rb uint32) {
	d.Deleted["renderbuffer"] = append(d.Deleted["renderbuffer"], rb)
}

// ── State ────────────────────────────────────────────────────────────────────

func (d *Device) Enable(c opengl.Enum) {
	d.record("Enable(%#x)", uint32(c))
	d.state.Enabled[c] = true
}

func (d *Device) Disable(c opengl.Enum) {
	d.record("Disable(%#x)", uint32(c))
	d.state.Enabled[c] = false
}

func (d *Device) DepthFunc(fn opengl.Enum) {
	d.record("DepthFunc(%#x)", uint32(fn))
	d.state.DepthFunc = fn
}

func (d *Device) DepthMask(write bool) {
	d.record("DepthMask(%v)", write)
	d.state.DepthMask = write
}

func (d *Device) StencilFunc(fn opengl.Enum, ref int32, mask uint32) {
	d.record("StencilFunc(%#x, %d, %#x)", uint32(fn), ref, mask)
	d.state.StencilFunc, d.state.StencilRef, d.state.StencilMask = fn, ref, mask
}

func (d *Device) StencilOp(sfail, dpfail, dppass opengl.Enum) {
	d.record("StencilOp(%#x, %#x, %#x)", uint32(sfail), uint32(dpfail), uint32(dppass))
	d.state.StencilOp = [3]opengl.Enum{sfail, dpfail, dppass}
}

func (d *Device) StencilMask(mask uint32) {
	d.record("StencilMask(%#x)", mask)
	d.state.StencilWrite = mask
}

func (d *Device) BlendFunc(src, dst opengl.Enum) {
	d.state.BlendSrc, d.state.BlendDst = src, dst
}

func (d *Device) ClearColor(r, g, b, a float32) {}

func (d *Device) Clear(mask opengl.Enum) {
	d.record("Clear(%#x)", uint32(mask))
}

func (d *Device) Viewport(x, y, w, h int32) {
	d.record("Viewport(%d, %d, %d, %d)", x, y, w, h)
}

// ── Draws ────────────────────────────────────────────────────────────────────

func (d *Device) draw(mode opengl.Enum, count, instances int32) {
	textures := map[uint32]uint32{}
	for unit, targets := range d.units {
		for _, tex := range targets {
			if tex != 0 {
				textures[unit] = tex
			}
		}
	}
	d.Draws = append(d.Draws, Draw{
		Mode:        mode,
		Count:       count,
		Instances:   instances,
		Program:     d.program,
		VAO:         d.vao,
		Framebuffer: d.framebuffer,
		State:       d.state.clone(),
		Textures:    textures,
	})
}

func (d *Device) DrawElements(mode opengl.Enum, count int32) {
	d.record("DrawElements(%#x, %d)", uint32(mode), count)
	d.draw(mode, count, 1)
}

func (d *Device) DrawArrays(mode opengl.Enum, first, count int32) {
	d.record("DrawArrays(%#x, %d, %d)", uint32(mode), first, count)
	d.draw(mode, count, 1)
}

func (d *Device) DrawArraysInstanced(mode opengl.Enum, first, count, instances int32) {
	d.record("DrawArraysInstanced(%#x, %d, %d, %d)", uint32(mode), first, count, instances)
	d.draw(mode, count, instances)
}
