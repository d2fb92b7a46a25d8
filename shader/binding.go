package shader

import (
	"fmt"

	"render-demo/internal/opengl"
)

// ActiveBinding is the write handle for a program that is currently in
// use. It owns the texture-unit counter for that use; slots are never
// shared between bindings.
type ActiveBinding struct {
	program *Program
	slot    uint32
}

func (b *ActiveBinding) Program() *Program { return b.program }

// NewTextureSlot hands out the next texture unit.
func (b *ActiveBinding) NewTextureSlot() uint32 {
	s := b.slot
	b.slot++
	return s
}

// ResetTextures makes every unit available again. Callers do this after
// a draw so the next object starts from unit zero.
func (b *ActiveBinding) ResetTextures() { b.slot = 0 }

// BindUniform binds a host value under name.
func (b *ActiveBinding) BindUniform(name string, u Uniform) {
	b.Bind(name, u.Uniform())
}

// Bind writes v under name. Names the program does not use are skipped.
func (b *ActiveBinding) Bind(name string, v UniformValue) {
	dev := b.program.dev
	switch v.Kind {
	case KindStruct:
		for _, m := range v.fields {
			b.Bind(name+"."+m.Name, m.Value)
		}
		return
	case KindArray:
		n := min(len(v.items), ArrayCapacity)
		for i, it := range v.items[:n] {
			b.Bind(fmt.Sprintf("%s[%d]", name, i), it)
		}
		dev.Uniform1i(b.program.Location(LenName(name)), int32(n))
		return
	case KindBlock:
		if idx := b.program.BlockIndex(name); idx != opengl.InvalidIndex {
			dev.UniformBlockBinding(b.program.handle, idx, v.block.Binding())
		}
		return
	}

	loc := b.program.Location(name)
	switch v.Kind {
	case KindInt:
		dev.Uniform1i(loc, v.i)
	case KindUint:
		dev.Uniform1ui(loc, v.u)
	case KindFloat:
		dev.Uniform1f(loc, v.f[0])
	case KindVec2:
		dev.Uniform2f(loc, v.f[0], v.f[1])
	case KindVec3:
		dev.Uniform3f(loc, v.f[0], v.f[1], v.f[2])
	case KindVec4:
		dev.Uniform4f(loc, v.f[0], v.f[1], v.f[2], v.f[3])
	case KindMat3:
		var m [9]float32
		copy(m[:], v.f[:9])
		dev.UniformMatrix3fv(loc, m)
	case KindMat4:
		dev.UniformMatrix4fv(loc, v.f)
	case KindTexture:
		slot := b.NewTextureSlot()
		dev.Uniform1i(loc, int32(slot))
		dev.ActiveTexture(opengl.Texture0 + opengl.Enum(slot))
		dev.BindTexture(v.sampler.Target(), v.sampler.Handle())
	default:
		panic(fmt.Sprintf("shader: bind %q: unknown value kind %s", name, v.Kind))
	}
}
