package shader

import (
	"encoding/binary"
	stdmath "math"

	"render-demo/math"
)

// Std140 is a host type with a fixed std140 byte image.
type Std140 interface {
	Std140Size() int
	AppendStd140(dst []byte) []byte
}

// Std140Writer appends values with std140 base alignment. Offsets are
// relative to the length of dst when the writer was created.
type Std140Writer struct {
	buf   []byte
	start int
}

func NewStd140Writer(dst []byte) *Std140Writer { return &Std140Writer{buf: dst, start: len(dst)} }

func (w *Std140Writer) Bytes() []byte { return w.buf }

// Pad aligns the next write to a multiple of n bytes.
func (w *Std140Writer) Pad(n int) *Std140Writer {
	for (len(w.buf)-w.start)%n != 0 {
		w.buf = append(w.buf, 0)
	}
	return w
}

func (w *Std140Writer) f32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, stdmath.Float32bits(v))
}

func (w *Std140Writer) Float(v float32) *Std140Writer {
	w.Pad(4).f32(v)
	return w
}

func (w *Std140Writer) Int(v int32) *Std140Writer {
	w.Pad(4)
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
	return w
}

// Vec3 occupies 12 bytes at a 16 byte boundary; a following scalar may
// use the remaining 4.
func (w *Std140Writer) Vec3(v math.Vec3) *Std140Writer {
	w.Pad(16)
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
	return w
}

func (w *Std140Writer) Vec4(v math.Vec4) *Std140Writer {
	w.Pad(16)
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
	w.f32(v.W)
	return w
}

// Mat4 is four vec4 columns.
func (w *Std140Writer) Mat4(m math.Mat4) *Std140Writer {
	w.Pad(16)
	for _, f := range m.Flat() {
		w.f32(f)
	}
	return w
}
