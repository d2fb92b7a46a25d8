package text

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	stdmath "math"

	"render-demo/internal/opengl"
	"render-demo/math"
	"render-demo/shader"
	"render-demo/textures"
)

const textVertexStride = TextVertexFloats * 4

// Renderer draws the shaper's quads as instanced triangle strips, one
// instance per glyph.
type Renderer struct {
	// Sections are queued again on every Draw.
	Sections []Section

	dev     opengl.Device
	program *shader.Program
	shaper  *Shaper
	atlas   *textures.Texture
	vao     uint32
	vbo     uint32
	count   int32
	log     *slog.Logger
}

// NewRenderer allocates the atlas texture and the instance buffer.
func NewRenderer(dev opengl.Device, program *shader.Program, shaper *Shaper) (*Renderer, error) {
	w, h := shaper.AtlasSize()
	atlas, err := textures.NewBuilder(dev,
		textures.WithFormat(opengl.Red),
		textures.WithWrap(opengl.ClampToEdge),
		textures.WithFilter(opengl.Linear, opengl.Linear),
		textures.WithAlignment(1),
	).Empty(w, h)
	if err != nil {
		return nil, fmt.Errorf("glyph atlas: %w", err)
	}

	vao := dev.CreateVertexArray()
	vbo := dev.CreateBuffer()
	if vao == 0 || vbo == 0 {
		atlas.Release()
		return nil, opengl.CheckAlloc(0, "text instance buffer")
	}
	dev.BindVertexArray(vao)
	dev.BindBuffer(opengl.ArrayBuffer, vbo)
	offset := 0
	for i, size := range TextVertexLayout {
		dev.EnableVertexAttribArray(uint32(i))
		dev.VertexAttribPointer(uint32(i), size, textVertexStride, offset)
		dev.VertexAttribDivisor(uint32(i), 1)
		offset += int(size) * 4
	}
	dev.BindVertexArray(0)

	return &Renderer{
		dev:     dev,
		program: program,
		shaper:  shaper,
		atlas:   atlas,
		vao:     vao,
		vbo:     vbo,
		log:     slog.Default(),
	}, nil
}

// SetProgram swaps the text program, for shader reloads.
func (r *Renderer) SetProgram(p *shader.Program) { r.program = p }

func (r *Renderer) Shaper() *Shaper { return r.shaper }

// Draw lays out Sections and draws them over whatever is on screen.
// width and height are the framebuffer size in pixels.
func (r *Renderer) Draw(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.shaper.Queue(r.Sections...)
	act, err := r.shaper.Process()
	if err != nil {
		r.log.Warn("text layout failed", "err", err)
		return
	}
	if redraw, ok := act.(Redraw); ok {
		r.apply(redraw)
	}
	if r.count == 0 {
		return
	}

	r.dev.Disable(opengl.DepthTest)
	r.dev.Enable(opengl.Blend)
	r.dev.BlendFunc(opengl.SrcAlpha, opengl.OneMinusSrcAlpha)

	b := r.program.Activate()
	b.BindUniform("font_tex", r.atlas)
	b.Bind("model", shader.Mat3(ScreenToNDC(width, height)))
	r.dev.BindVertexArray(r.vao)
	r.dev.DrawArraysInstanced(opengl.TriangleStrip, 0, 4, r.count)
	r.dev.BindVertexArray(0)

	r.dev.Disable(opengl.Blend)
	r.dev.Enable(opengl.DepthTest)
}

func (r *Renderer) apply(redraw Redraw) {
	if len(redraw.Patches) > 0 {
		r.dev.PixelStorei(opengl.UnpackAlignment, 1)
		for _, p := range redraw.Patches {
			if err := r.atlas.SubImage(p.Rect.Min.X, p.Rect.Min.Y, p.Rect.Dx(), p.Rect.Dy(), p.Pixels); err != nil {
				r.log.Warn("glyph patch dropped", "err", err)
			}
		}
		r.dev.PixelStorei(opengl.UnpackAlignment, 4)
	}

	floats := make([]float32, 0, len(redraw.Quads)*TextVertexFloats)
	for _, q := range redraw.Quads {
		floats = q.AppendFloats(floats)
	}
	data := make([]byte, 0, 4*len(floats))
	for _, f := range floats {
		data = binary.LittleEndian.AppendUint32(data, stdmath.Float32bits(f))
	}
	r.dev.BindBuffer(opengl.ArrayBuffer, r.vbo)
	r.dev.BufferData(opengl.ArrayBuffer, len(data), data, opengl.DynamicDraw)
	r.dev.BindBuffer(opengl.ArrayBuffer, 0)
	r.count = int32(len(redraw.Quads))
}

// ScreenToNDC maps pixel coordinates with the origin at the bottom-left
// to normalised device coordinates.
func ScreenToNDC(width, height int) math.Mat3 {
	return math.Mat3{
		{2 / float32(width), 0, 0},
		{0, 2 / float32(height), 0},
		{-1, -1, 1},
	}
}

func (r *Renderer) Release() {
	r.atlas.Release()
	r.dev.DeleteVertexArray(r.vao)
	r.dev.DeleteBuffer(r.vbo)
}
