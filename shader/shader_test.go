package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	stdmath "math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-demo/internal/opengl"
	"render-demo/internal/opengl/opengltest"
	"render-demo/math"
)

type fakeTexture struct {
	target opengl.Enum
	handle uint32
}

func (t fakeTexture) Target() opengl.Enum { return t.target }
func (t fakeTexture) Handle() uint32      { return t.handle }

type light struct {
	dir   math.Vec3
	color math.Vec3
}

func (l light) Uniform() UniformValue {
	return Struct(Named("direction", Vec3(l.dir)), Named("color", Vec3(l.color)))
}

func newProgram(t *testing.T, dev *opengltest.Device) *Program {
	t.Helper()
	p, err := NewProgram(dev, HeaderCore+"\n", Source{Name: "test", Vertex: "void main(){}", Fragment: "void main(){}"})
	require.NoError(t, err)
	return p
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestTypeDefGLSL(t *testing.T) {
	r := NewRegistry().MustRegister(
		TypeDef{Name: "Light", Fields: []Field{
			{Name: "direction", Kind: Vec3Field},
			{Name: "color", Kind: Vec3Field},
		}},
		TypeDef{Name: "Rig", Fields: []Field{
			{Name: "key", Kind: StructField, Type: "Light"},
			{Name: "fills", Kind: ArrayField, Type: "Light"},
			{Name: "albedo", Kind: Sampler2DField},
		}},
	)

	rig, ok := r.Lookup("Rig")
	require.True(t, ok)
	assert.Equal(t, "struct Rig {\n  Light key;\n  Light fills[4];\n  int fills_len;\n  sampler2D albedo;\n};", rig.GLSL())

	pre := r.Preamble(HeaderCore)
	assert.True(t, strings.HasPrefix(pre, HeaderCore+"\nstruct Light {"))
	assert.Less(t, strings.Index(pre, "struct Light"), strings.Index(pre, "struct Rig"))
}

func TestBlockGLSL(t *testing.T) {
	def := TypeDef{Name: "CameraBlock", Block: true, Fields: []Field{
		{Name: "view_pos", Kind: Vec3Field},
		{Name: "view", Kind: Mat4Field},
	}}
	assert.Equal(t, "layout(std140) uniform CameraBlock {\n  vec3 view_pos;\n  mat4 view;\n};", def.GLSL())
}

func TestRegisterRejects(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TypeDef{Name: "A", Fields: []Field{{Name: "x", Kind: FloatField}}}))

	err := r.Register(TypeDef{Name: "A", Fields: []Field{{Name: "x", Kind: FloatField}}})
	assert.ErrorIs(t, err, ErrDuplicateType)

	err = r.Register(TypeDef{Name: "B", Fields: []Field{{Name: "y", Kind: StructField, Type: "Missing"}}})
	assert.ErrorIs(t, err, ErrUnknownType)

	err = r.Register(TypeDef{Name: "C", Block: true, Fields: []Field{{Name: "t", Kind: Sampler2DField}}})
	assert.Error(t, err)

	assert.Error(t, r.Register(TypeDef{Name: "D"}))
	assert.ErrorIs(t, r.ArrayDecl("Nope", "things"), ErrUnknownType)
}

func TestPreambleCachedUntilRegister(t *testing.T) {
	r := NewRegistry().MustRegister(TypeDef{Name: "A", Fields: []Field{{Name: "x", Kind: FloatField}}})
	first := r.Preamble(HeaderES)
	assert.Equal(t, first, r.Preamble(HeaderES))

	require.NoError(t, r.ArrayDecl("A", "items"))
	second := r.Preamble(HeaderES)
	assert.Contains(t, second, "uniform A items[4];\nuniform int items_len;")
	assert.True(t, strings.HasPrefix(second, "#version 300 es\nprecision highp float;\n"))
}

func TestMatches(t *testing.T) {
	def := TypeDef{Name: "Light", Fields: []Field{{Name: "direction", Kind: Vec3Field}, {Name: "color", Kind: Vec3Field}}}
	assert.NoError(t, def.Matches(light{}.Uniform()))
	assert.Error(t, def.Matches(Struct(Named("color", Float(1)), Named("direction", Float(1)))))
	assert.Error(t, def.Matches(Float(1)))
}

// ── Program ──────────────────────────────────────────────────────────────────

func TestNewProgramPrependsPreamble(t *testing.T) {
	dev := opengltest.New()
	p := newProgram(t, dev)
	assert.Equal(t, "test", p.Name)
	for _, src := range dev.Sources {
		assert.True(t, strings.HasPrefix(src, "#version 330 core\n"))
	}
	// both stages released after link
	assert.Len(t, dev.Deleted["shader"], 2)
}

func TestCompileError(t *testing.T) {
	dev := opengltest.New()
	dev.CompileFailure = "broken"
	_, err := NewProgram(dev, "", Source{Name: "bad", Vertex: "void main(){}", Fragment: "broken"})

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "fragment", ce.Stage)
	assert.Contains(t, ce.Log, "broken")
	assert.Len(t, dev.Deleted["shader"], 2)
}

func TestLinkError(t *testing.T) {
	dev := opengltest.New()
	dev.LinkFailure = true
	_, err := NewProgram(dev, "", Source{Name: "bad"})

	var le *LinkError
	require.True(t, errors.As(err, &le))
	assert.NotEmpty(t, le.Log)
	assert.Len(t, dev.Deleted["shader"], 2)
	assert.Len(t, dev.Deleted["program"], 1)
}

func TestAllocFailure(t *testing.T) {
	dev := opengltest.New()
	dev.FailAlloc = true
	_, err := Compile(dev, opengl.VertexShader, "")
	assert.ErrorIs(t, err, opengl.ErrAlloc)
}

func TestLocationCachedIncludingMisses(t *testing.T) {
	dev := opengltest.New()
	dev.Missing["gone"] = true
	p := newProgram(t, dev)

	assert.Equal(t, int32(-1), p.Location("gone"))
	dev.Missing["gone"] = false
	assert.Equal(t, int32(-1), p.Location("gone"), "miss is remembered")
	assert.Equal(t, p.Location("here"), p.Location("here"))
}

// ── Binding ──────────────────────────────────────────────────────────────────

func TestBindScalarsAndMatrices(t *testing.T) {
	dev := opengltest.New()
	b := newProgram(t, dev).Activate()

	b.Bind("i", Int(-3))
	b.Bind("u", Uint(7))
	b.Bind("f", Float(0.5))
	b.Bind("v2", Vec2(math.NewVec2(1, 2)))
	b.Bind("v3", Vec3(math.NewVec3(1, 2, 3)))
	b.Bind("v4", Vec4(math.NewVec4(1, 2, 3, 4)))
	m := math.Mat4Translation(math.NewVec3(4, 5, 6))
	b.Bind("m4", Mat4(m))
	b.Bind("m3", Mat3(m.Mat3()))

	assert.Equal(t, []any{int32(-3)}, dev.WritesTo("i"))
	assert.Equal(t, []any{uint32(7)}, dev.WritesTo("u"))
	assert.Equal(t, []any{float32(0.5)}, dev.WritesTo("f"))
	assert.Equal(t, []any{[2]float32{1, 2}}, dev.WritesTo("v2"))
	assert.Equal(t, []any{[3]float32{1, 2, 3}}, dev.WritesTo("v3"))
	assert.Equal(t, []any{[4]float32{1, 2, 3, 4}}, dev.WritesTo("v4"))
	assert.Equal(t, []any{m.Flat()}, dev.WritesTo("m4"))
	assert.Equal(t, []any{m.Mat3().Flat()}, dev.WritesTo("m3"))
}

func TestBindStructInFieldOrder(t *testing.T) {
	dev := opengltest.New()
	b := newProgram(t, dev).Activate()

	b.BindUniform("sun", light{dir: math.Vec3Down, color: math.Vec3One})
	assert.Equal(t, []string{"sun.direction", "sun.color"}, dev.WriteNames())
}

func TestBindArrayWritesLength(t *testing.T) {
	dev := opengltest.New()
	b := newProgram(t, dev).Activate()

	b.Bind("lights", ArrayOf([]light{{}, {}}))
	assert.Equal(t, []string{
		"lights[0].direction", "lights[0].color",
		"lights[1].direction", "lights[1].color",
		"lights_len",
	}, dev.WriteNames())
	assert.Equal(t, []any{int32(2)}, dev.WritesTo("lights_len"))
}

func TestBindArrayTruncatesAtCapacity(t *testing.T) {
	dev := opengltest.New()
	b := newProgram(t, dev).Activate()

	items := make([]UniformValue, ArrayCapacity+2)
	for i := range items {
		items[i] = Float(float32(i))
	}
	b.Bind("xs", Array(items...))

	assert.Equal(t, []any{int32(ArrayCapacity)}, dev.WritesTo("xs_len"))
	assert.Empty(t, dev.WritesTo("xs[4]"))
	assert.Len(t, dev.Writes, ArrayCapacity+1)
}

func TestBindEmptyArray(t *testing.T) {
	dev := opengltest.New()
	b := newProgram(t, dev).Activate()
	b.Bind("xs", Array())
	assert.Equal(t, []any{int32(0)}, dev.WritesTo("xs_len"))
}

func TestTextureSlotsPerBinding(t *testing.T) {
	dev := opengltest.New()
	p := newProgram(t, dev)
	b := p.Activate()

	b.Bind("a", Texture(fakeTexture{opengl.Texture2D, 11}))
	b.Bind("b", Texture(fakeTexture{opengl.TextureCubeMap, 12}))
	assert.Equal(t, []any{int32(0)}, dev.WritesTo("a"))
	assert.Equal(t, []any{int32(1)}, dev.WritesTo("b"))
	assert.Equal(t, []string{"ActiveTexture(0)", "ActiveTexture(1)"}, dev.CallsWithPrefix("ActiveTexture"))
	assert.Contains(t, dev.Calls, "BindTexture(0x8513, 12)")

	// a fresh activation starts from unit zero
	other := p.Activate()
	assert.Equal(t, uint32(0), other.NewTextureSlot())
	assert.Equal(t, uint32(2), b.NewTextureSlot())

	b.ResetTextures()
	assert.Equal(t, uint32(0), b.NewTextureSlot())
}

func TestMissingUniformIsNoop(t *testing.T) {
	dev := opengltest.New()
	dev.Missing["ghost"] = true
	dev.Missing["GhostBlock"] = true
	b := newProgram(t, dev).Activate()

	b.Bind("ghost", Vec3(math.Vec3One))
	b.Bind("GhostBlock", Block(staticBlock(3)))
	assert.Empty(t, dev.Writes)
	assert.Empty(t, dev.CallsWithPrefix("UniformBlockBinding"))
}

type staticBlock uint32

func (s staticBlock) Binding() uint32 { return uint32(s) }

// ── Uniform blocks ───────────────────────────────────────────────────────────

type pair struct {
	pos   math.Vec3
	scale float32
	xform math.Mat4
}

func (pair) Std140Size() int { return 80 }

func (p pair) AppendStd140(dst []byte) []byte {
	return NewStd140Writer(dst).Vec3(p.pos).Float(p.scale).Mat4(p.xform).Bytes()
}

type shortPair struct{}

func (shortPair) Std140Size() int                { return 16 }
func (shortPair) AppendStd140(dst []byte) []byte { return append(dst, 1, 2, 3) }

func TestStd140Layout(t *testing.T) {
	data := pair{pos: math.NewVec3(1, 2, 3), scale: 9, xform: math.Mat4Translation(math.NewVec3(7, 8, 0))}.AppendStd140(nil)
	require.Len(t, data, 80)

	f := func(off int) float32 { return stdmath.Float32frombits(binary.LittleEndian.Uint32(data[off:])) }
	assert.Equal(t, float32(3), f(8))
	assert.Equal(t, float32(9), f(12), "scalar packs after vec3")
	assert.Equal(t, float32(1), f(16))
	assert.Equal(t, float32(7), f(16+48), "translation in the fourth column")
}

func TestStd140AlignsFromAppendStart(t *testing.T) {
	v := pair{pos: math.NewVec3(1, 2, 3), scale: 9}
	prefix := []byte{0xAA, 0xBB, 0xCC}
	data := v.AppendStd140(prefix)
	require.Len(t, data, 3+80)
	assert.Equal(t, prefix, data[:3])
	assert.Equal(t, v.AppendStd140(nil), data[3:])
}

func TestUniformBlockUploadAndBind(t *testing.T) {
	dev := opengltest.New()
	var bindings Bindings
	block, err := NewUniformBlock[pair](dev, bindings.Next())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), block.Binding())
	assert.Contains(t, dev.Calls, "BindBufferBase(0x8a11, 0, 1)")

	block.Upload(pair{scale: 2})
	buf := block.ReadBack()
	require.Len(t, buf, 80)
	assert.Equal(t, dev.Buffers[dev.BufferBases[0]], buf)
	assert.Equal(t, float32(2), stdmath.Float32frombits(binary.LittleEndian.Uint32(buf[12:])))

	p := newProgram(t, dev)
	b := p.Activate()
	b.BindUniform("Pair", block)
	assert.Equal(t, []string{fmt.Sprintf("UniformBlockBinding(%d, 0, 0)", p.Handle())}, dev.CallsWithPrefix("UniformBlockBinding"))

	block.Delete()
	block.Delete()
	assert.Len(t, dev.Deleted["buffer"], 1)
}

func TestUniformBlockSizeMismatchPanics(t *testing.T) {
	dev := opengltest.New()
	block, err := NewUniformBlock[shortPair](dev, 1)
	require.NoError(t, err)
	assert.Panics(t, func() { block.Upload(shortPair{}) })
}

func TestBindingsUnique(t *testing.T) {
	var b Bindings
	first, second := b.Next(), b.Next()
	assert.NotEqual(t, first, second)
	b.Release(first)
	assert.Equal(t, first, b.Next())
	assert.Equal(t, uint32(2), b.Next())
}

func TestBindingsReleaseTwice(t *testing.T) {
	var b Bindings
	first := b.Next()
	b.Release(first)
	b.Release(first)
	b.Release(7)
	assert.Equal(t, first, b.Next())
	assert.Equal(t, uint32(1), b.Next(), "a double release hands the index out once")
}
