// Package text lays out strings into instanced glyph quads over a glyph
// atlas that grows a patch at a time.
package text

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"render-demo/math"
)

// DefaultFont is the name the built-in Go Regular face is registered under.
const DefaultFont = "goregular"

// ErrAtlasFull is returned when a new glyph does not fit in the atlas.
var ErrAtlasFull = errors.New("glyph atlas full")

// ErrUnknownFont is returned when a section names a font that was never
// added.
var ErrUnknownFont = errors.New("unknown font")

// Section is one run of text. Position is the pen start of the first
// baseline in pixels from the bottom-left corner of the screen.
type Section struct {
	Text     string
	Font     string
	Size     float32
	Color    math.Vec4
	Position math.Vec2
	Z        float32
}

// TextVertex is one glyph instance. Coordinates are pixels with y up;
// texture coordinates are normalised atlas positions.
type TextVertex struct {
	LeftTop        math.Vec2
	RightBottom    math.Vec2
	TexLeftTop     math.Vec2
	TexRightBottom math.Vec2
	Z              float32
	Color          math.Vec4
}

// Attribute sizes of TextVertex in floats, in field order.
var TextVertexLayout = [...]int32{2, 2, 2, 2, 1, 4}

// TextVertexFloats is the number of float32 values in one TextVertex.
const TextVertexFloats = 13

func (v TextVertex) AppendFloats(dst []float32) []float32 {
	return append(dst,
		v.LeftTop.X, v.LeftTop.Y,
		v.RightBottom.X, v.RightBottom.Y,
		v.TexLeftTop.X, v.TexLeftTop.Y,
		v.TexRightBottom.X, v.TexRightBottom.Y,
		v.Z,
		v.Color.X, v.Color.Y, v.Color.Z, v.Color.W,
	)
}

// Patch is a newly rasterised atlas region, one byte of coverage per
// pixel, rows top to bottom.
type Patch struct {
	Rect   image.Rectangle
	Pixels []byte
}

// Action is the result of Process: either Unchanged or a Redraw.
type Action interface {
	action()
}

// Unchanged means the previous quads and atlas are still valid.
type Unchanged struct{}

// Redraw carries the full quad list and the atlas regions to update
// before drawing it.
type Redraw struct {
	Quads   []TextVertex
	Patches []Patch
}

func (Unchanged) action() {}
func (Redraw) action()    {}

type faceKey struct {
	font string
	size float32
}

type glyphKey struct {
	face faceKey
	r    rune
}

type glyph struct {
	// atlas rectangle, empty for blank glyphs such as space
	atlas image.Rectangle
	// bounds relative to the pen on the baseline, y down
	bounds image.Rectangle
}

// Shaper turns queued sections into glyph quads and keeps a shelf-packed
// coverage atlas. It is used from the render goroutine only.
type Shaper struct {
	width, height int

	fonts  map[string]*opentype.Font
	faces  map[faceKey]font.Face
	glyphs map[glyphKey]glyph

	// shelf packer state
	penX, shelfY, shelfH int
	// glyphs cached by the Process in flight
	added []glyphKey

	queued []Section
	last   []Section
}

// NewShaper returns a shaper with a width×height atlas and the default
// font registered.
func NewShaper(width, height int) *Shaper {
	s := &Shaper{
		width:  width,
		height: height,
		fonts:  map[string]*opentype.Font{},
		faces:  map[faceKey]font.Face{},
		glyphs: map[glyphKey]glyph{},
	}
	if err := s.AddFont(DefaultFont, goregular.TTF); err != nil {
		panic(fmt.Sprintf("text: embedded font: %v", err))
	}
	return s
}

// AtlasSize is the atlas texture size the shaper packs into.
func (s *Shaper) AtlasSize() (int, int) { return s.width, s.height }

// AddFont parses TrueType or OpenType data and registers it under name.
func (s *Shaper) AddFont(name string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("font %s: %w", name, err)
	}
	s.fonts[name] = f
	return nil
}

// LoadFont reads a font file and registers it under its file stem.
func (s *Shaper) LoadFont(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return name, s.AddFont(name, data)
}

func (s *Shaper) HasFont(name string) bool {
	_, ok := s.fonts[name]
	return ok
}

// Queue adds sections to the next Process.
func (s *Shaper) Queue(sections ...Section) {
	s.queued = append(s.queued, sections...)
}

// Process lays out everything queued since the last call. It returns
// Unchanged when the queue matches the previous one. On error the glyph
// cache and the packer are left as they were before the call, so the
// patches of a failed Redraw are produced again later.
func (s *Shaper) Process() (Action, error) {
	queued := s.queued
	s.queued = nil
	if s.last != nil && slices.Equal(queued, s.last) {
		return Unchanged{}, nil
	}

	penX, shelfY, shelfH := s.penX, s.shelfY, s.shelfH
	s.added = s.added[:0]
	var redraw Redraw
	for _, sec := range queued {
		if err := s.layout(sec, &redraw); err != nil {
			for _, k := range s.added {
				delete(s.glyphs, k)
			}
			s.penX, s.shelfY, s.shelfH = penX, shelfY, shelfH
			return nil, err
		}
	}
	s.last = queued
	if s.last == nil {
		s.last = []Section{}
	}
	return redraw, nil
}

func (s *Shaper) face(key faceKey) (font.Face, error) {
	if f, ok := s.faces[key]; ok {
		return f, nil
	}
	f, ok := s.fonts[key.font]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFont, key.font)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(key.size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("face %s %g: %w", key.font, key.size, err)
	}
	s.faces[key] = face
	return face, nil
}

func (s *Shaper) layout(sec Section, out *Redraw) error {
	if sec.Font == "" {
		sec.Font = DefaultFont
	}
	key := faceKey{font: sec.Font, size: sec.Size}
	face, err := s.face(key)
	if err != nil {
		return err
	}
	lineHeight := float32(face.Metrics().Height.Ceil())

	penX, baseY := sec.Position.X, sec.Position.Y
	prev := rune(-1)
	for _, r := range sec.Text {
		if r == '\n' {
			penX, baseY = sec.Position.X, baseY-lineHeight
			prev = -1
			continue
		}
		if prev >= 0 {
			penX += fix(face.Kern(prev, r))
		}
		prev = r

		g, err := s.glyph(face, glyphKey{face: key, r: r}, out)
		if err != nil {
			return err
		}
		adv, _ := face.GlyphAdvance(r)
		if !g.atlas.Empty() {
			out.Quads = append(out.Quads, s.quad(g, penX, baseY, sec))
		}
		penX += fix(adv)
	}
	return nil
}

func (s *Shaper) quad(g glyph, penX, baseY float32, sec Section) TextVertex {
	w, h := float32(s.width), float32(s.height)
	return TextVertex{
		LeftTop:        math.NewVec2(penX+float32(g.bounds.Min.X), baseY-float32(g.bounds.Min.Y)),
		RightBottom:    math.NewVec2(penX+float32(g.bounds.Max.X), baseY-float32(g.bounds.Max.Y)),
		TexLeftTop:     math.NewVec2(float32(g.atlas.Min.X)/w, float32(g.atlas.Min.Y)/h),
		TexRightBottom: math.NewVec2(float32(g.atlas.Max.X)/w, float32(g.atlas.Max.Y)/h),
		Z:              sec.Z,
		Color:          sec.Color,
	}
}

// glyph returns the cached glyph for key, rasterising it into a new patch
// on first use.
func (s *Shaper) glyph(face font.Face, key glyphKey, out *Redraw) (glyph, error) {
	if g, ok := s.glyphs[key]; ok {
		return g, nil
	}
	dr, mask, maskp, _, ok := face.Glyph(fixed.Point26_6{}, key.r)
	if !ok || dr.Empty() {
		g := glyph{bounds: dr}
		s.cache(key, g)
		return g, nil
	}

	at, err := s.pack(dr.Dx(), dr.Dy())
	if err != nil {
		return glyph{}, fmt.Errorf("rune %q at %gpx: %w", key.r, key.face.size, err)
	}
	cov := image.NewAlpha(image.Rect(0, 0, dr.Dx(), dr.Dy()))
	draw.Draw(cov, cov.Bounds(), mask, maskp, draw.Src)
	out.Patches = append(out.Patches, Patch{Rect: at, Pixels: cov.Pix})

	g := glyph{atlas: at, bounds: dr}
	s.cache(key, g)
	return g, nil
}

func (s *Shaper) cache(key glyphKey, g glyph) {
	s.glyphs[key] = g
	s.added = append(s.added, key)
}

// pack reserves a w×h rectangle with a one pixel gutter on the current
// shelf, opening a new shelf when the row is full.
func (s *Shaper) pack(w, h int) (image.Rectangle, error) {
	const gutter = 1
	if s.penX+w > s.width {
		s.shelfY += s.shelfH + gutter
		s.penX, s.shelfH = 0, 0
	}
	if w > s.width || s.shelfY+h > s.height {
		return image.Rectangle{}, ErrAtlasFull
	}
	r := image.Rect(s.penX, s.shelfY, s.penX+w, s.shelfY+h)
	s.penX += w + gutter
	s.shelfH = max(s.shelfH, h)
	return r, nil
}

func fix(v fixed.Int26_6) float32 { return float32(v) / 64 }
