package shader

import (
	"fmt"

	"render-demo/internal/opengl"
	"render-demo/math"
)

// Kind tags the variant held by a UniformValue.
type Kind uint8

const (
	KindInt Kind = iota
	KindUint
	KindFloat
	KindVec2
	KindVec3
	KindVec4
	KindMat3
	KindMat4
	KindTexture
	KindStruct
	KindArray
	KindBlock
)

var kindNames = [...]string{
	KindInt:     "int",
	KindUint:    "uint",
	KindFloat:   "float",
	KindVec2:    "vec2",
	KindVec3:    "vec3",
	KindVec4:    "vec4",
	KindMat3:    "mat3",
	KindMat4:    "mat4",
	KindTexture: "texture",
	KindStruct:  "struct",
	KindArray:   "array",
	KindBlock:   "block",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Sampler is a texture object that can occupy a texture unit.
type Sampler interface {
	Target() opengl.Enum
	Handle() uint32
}

// BlockBuffer is a uniform buffer attached to a binding index.
type BlockBuffer interface {
	Binding() uint32
}

// Member is one named field of a struct value.
type Member struct {
	Name  string
	Value UniformValue
}

// UniformValue is anything that can be bound under a uniform name.
type UniformValue struct {
	Kind Kind

	i       int32
	u       uint32
	f       [16]float32
	sampler Sampler
	block   BlockBuffer
	fields  []Member
	items   []UniformValue
}

// Uniform is implemented by host types with a shader-side counterpart.
type Uniform interface {
	Uniform() UniformValue
}

func Int(v int32) UniformValue     { return UniformValue{Kind: KindInt, i: v} }
func Uint(v uint32) UniformValue   { return UniformValue{Kind: KindUint, u: v} }
func Float(v float32) UniformValue { return UniformValue{Kind: KindFloat, f: [16]float32{v}} }

func Vec2(v math.Vec2) UniformValue {
	return UniformValue{Kind: KindVec2, f: [16]float32{v.X, v.Y}}
}

func Vec3(v math.Vec3) UniformValue {
	return UniformValue{Kind: KindVec3, f: [16]float32{v.X, v.Y, v.Z}}
}

func Vec4(v math.Vec4) UniformValue {
	return UniformValue{Kind: KindVec4, f: [16]float32{v.X, v.Y, v.Z, v.W}}
}

func Mat3(m math.Mat3) UniformValue {
	var u UniformValue
	u.Kind = KindMat3
	flat := m.Flat()
	copy(u.f[:], flat[:])
	return u
}

func Mat4(m math.Mat4) UniformValue {
	return UniformValue{Kind: KindMat4, f: m.Flat()}
}

// Texture binds s to the next free unit of the active binding.
func Texture(s Sampler) UniformValue {
	return UniformValue{Kind: KindTexture, sampler: s}
}

// Block attaches the named uniform block to b's binding index.
func Block(b BlockBuffer) UniformValue {
	return UniformValue{Kind: KindBlock, block: b}
}

func Named(name string, v UniformValue) Member { return Member{Name: name, Value: v} }

// Struct binds each member as name.member, in order.
func Struct(fields ...Member) UniformValue {
	return UniformValue{Kind: KindStruct, fields: fields}
}

// Array binds up to ArrayCapacity items as name[i] plus name_len.
func Array(items ...UniformValue) UniformValue {
	return UniformValue{Kind: KindArray, items: items}
}

// ArrayOf converts a slice of host values into an Array.
func ArrayOf[T Uniform](items []T) UniformValue {
	vs := make([]UniformValue, len(items))
	for i, it := range items {
		vs[i] = it.Uniform()
	}
	return Array(vs...)
}

// Len is the element count of an array value, zero otherwise.
func (v UniformValue) Len() int { return len(v.items) }

// Members returns the fields of a struct value.
func (v UniformValue) Members() []Member { return v.fields }
