package textures

import (
	"fmt"

	"render-demo/internal/opengl"
	"render-demo/shader"
)

// shared is the GPU object behind every clone of a Texture. It lives on
// the render goroutine, so the count is not synchronised.
type shared struct {
	dev    opengl.Device
	id     uint32
	target opengl.Enum
	format opengl.Enum
	width  int
	height int
	refs   int
}

// Texture is one owner's reference to a GPU texture. The GPU object is
// deleted when the last owner releases it.
type Texture struct {
	s        *shared
	released bool
}

func newTexture(dev opengl.Device, id uint32, target, format opengl.Enum, w, h int) *Texture {
	return &Texture{s: &shared{dev: dev, id: id, target: target, format: format, width: w, height: h, refs: 1}}
}

func (t *Texture) Handle() uint32      { return t.s.id }
func (t *Texture) Target() opengl.Enum { return t.s.target }
func (t *Texture) Width() int          { return t.s.width }
func (t *Texture) Height() int         { return t.s.height }

func (t *Texture) Uniform() shader.UniformValue { return shader.Texture(t) }

// Clone adds an owner.
func (t *Texture) Clone() *Texture {
	t.s.refs++
	return &Texture{s: t.s}
}

// Release drops this owner. Releasing twice is a no-op.
func (t *Texture) Release() {
	if t == nil || t.released {
		return
	}
	t.released = true
	t.s.refs--
	if t.s.refs == 0 {
		t.s.dev.DeleteTexture(t.s.id)
		t.s.id = 0
	}
}

// SubImage replaces a rectangle of level 0 in place.
func (t *Texture) SubImage(x, y, w, h int, pixels []byte) error {
	if x < 0 || y < 0 || x+w > t.s.width || y+h > t.s.height {
		return fmt.Errorf("sub-image %dx%d at (%d,%d) outside %dx%d texture", w, h, x, y, t.s.width, t.s.height)
	}
	dev := t.s.dev
	dev.BindTexture(t.s.target, t.s.id)
	dev.TexSubImage2D(t.s.target, int32(x), int32(y), int32(w), int32(h), t.s.format, pixels)
	dev.BindTexture(t.s.target, 0)
	return nil
}
