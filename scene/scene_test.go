package scene

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-demo/core"
	"render-demo/internal/opengl"
	"render-demo/internal/opengl/opengltest"
	"render-demo/math"
	"render-demo/shader"
	"render-demo/textures"
)

type stubInput struct {
	keys   map[core.Key]bool
	dx, dy float32
}

func (in *stubInput) Pressed(k core.Key) bool { return in.keys[k] }

func (in *stubInput) Sample() (float32, float32) {
	dx, dy := in.dx, in.dy
	in.dx, in.dy = 0, 0
	return dx, dy
}

func testSources() Sources {
	src := func(name string) shader.Source {
		return shader.Source{Name: name, Vertex: "void main(){} // " + name, Fragment: "void main(){}"}
	}
	return Sources{
		Lighting: src("lighting"),
		Outline:  src("outline"),
		Skybox:   src("skybox"),
		Screen:   src("screen"),
	}
}

func newTestScene(t *testing.T, dev *opengltest.Device, postProcess bool) *Scene {
	t.Helper()
	cam := NewCamera(math.NewVec3(0, 0, 3), math.Vec3Zero, 4.0/3)
	s, err := New(dev, Options{
		Header:      shader.HeaderCore,
		Sources:     testSources(),
		Width:       640,
		Height:      480,
		Camera:      cam,
		PostProcess: postProcess,
	})
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func cubeEntity(t *testing.T, dev opengl.Device, at math.Vec3) *Entity {
	t.Helper()
	mesh, err := NewMeshFromData(dev, UnitCube().MeshData(), nil)
	require.NoError(t, err)
	return &Entity{Transform: math.Mat4Translation(at), Drawable: mesh}
}

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, c)
	return img
}

// ── Geometry ─────────────────────────────────────────────────────────────────

func TestCubeMeshData(t *testing.T) {
	data := Cube{Length: 3, Width: 1, Height: 2}.MeshData()
	require.Len(t, data.Vertices, 36)
	require.Len(t, data.Indices, 36)
	for i, idx := range data.Indices {
		assert.Equal(t, uint32(i), idx)
	}

	// first vertex of the back face, scaled by (width, height, length)
	assert.Equal(t, math.NewVec3(-0.5, -1, -1.5), data.Vertices[0].Position)
	assert.Equal(t, math.Vec3Back, data.Vertices[0].Normal)
	assert.Equal(t, math.Vec3Up, data.Vertices[35].Normal)
}

func TestPlaneMeshData(t *testing.T) {
	data := Plane{Length: 2, Width: 4, Normal: math.Vec3Up}.MeshData()
	require.Len(t, data.Vertices, 4)
	assert.Len(t, data.Indices, 12, "both windings")

	assert.Equal(t, math.NewVec3(-1, 0, -2), data.Vertices[0].Position)
	assert.Equal(t, math.NewVec2(0, 0), data.Vertices[0].UV)
	assert.Equal(t, math.NewVec3(1, 0, 2), data.Vertices[3].Position)
	assert.Equal(t, math.NewVec2(1, 1), data.Vertices[3].UV)
}

func TestSphereIndicesInRange(t *testing.T) {
	data := Sphere{Radius: 2, Segments: 8, Rings: 4}.MeshData()
	assert.Len(t, data.Vertices, 9*5)
	assert.Len(t, data.Indices, 8*4*6)
	for _, idx := range data.Indices {
		assert.Less(t, idx, uint32(len(data.Vertices)))
	}
	assert.InDelta(t, 2, data.Vertices[0].Position.Length(), 1e-5)
}

// ── Mesh ─────────────────────────────────────────────────────────────────────

func TestMeshUpload(t *testing.T) {
	dev := opengltest.New()
	data := UnitCube().MeshData()
	mesh, err := NewMeshFromData(dev, data, nil)
	require.NoError(t, err)

	require.Len(t, dev.Attribs, 1)
	for _, attribs := range dev.Attribs {
		assert.Equal(t, map[uint32][3]int32{
			0: {3, 32, 0},
			1: {3, 32, 12},
			2: {2, 32, 24},
		}, attribs)
	}
	sizes := map[int]bool{}
	for _, buf := range dev.Buffers {
		sizes[len(buf)] = true
	}
	assert.True(t, sizes[36*4], "index buffer")
	assert.True(t, sizes[36*32], "vertex buffer")
	assert.Equal(t, int32(36), mesh.IndexCount())
	assert.Equal(t, math.Vec3Zero, mesh.Bounds().Center())
}

func TestMeshCloneSharesBuffers(t *testing.T) {
	dev := opengltest.New()
	mesh, err := NewMeshFromData(dev, UnitCube().MeshData(), nil)
	require.NoError(t, err)

	c := mesh.Clone()
	mesh.Release()
	assert.Empty(t, dev.Deleted["vao"])
	c.Release()
	c.Release()
	assert.Len(t, dev.Deleted["vao"], 1)
	assert.Len(t, dev.Deleted["buffer"], 2)
}

func TestMeshDrawResetsTextureSlots(t *testing.T) {
	dev := opengltest.New()
	p, err := shader.NewProgram(dev, shader.HeaderCore+"\n", testSources().Lighting)
	require.NoError(t, err)

	tb := textures.NewBuilder(dev)
	newMaterial := func() *Material {
		diffuse, err := tb.Build(solid(color.White))
		require.NoError(t, err)
		specular, err := tb.Build(solid(color.Black))
		require.NoError(t, err)
		return &Material{Diffuse: diffuse, Specular: specular, Shininess: 32}
	}

	a, err := NewMeshFromData(dev, UnitCube().MeshData(), newMaterial())
	require.NoError(t, err)
	b, err := NewMeshFromData(dev, UnitCube().MeshData(), newMaterial())
	require.NoError(t, err)

	binding := p.Activate()
	a.Draw(binding)
	b.Draw(binding)

	assert.Equal(t, []any{int32(0), int32(0)}, dev.WritesTo("material.diffuse"))
	assert.Equal(t, []any{int32(1), int32(1)}, dev.WritesTo("material.specular"))
	assert.Equal(t, []any{float32(32), float32(32)}, dev.WritesTo("material.shininess"))
	require.Len(t, dev.Draws, 2)
	assert.Equal(t, b.Material.Diffuse.Handle(), dev.Draws[1].Textures[0])
	assert.Equal(t, b.Material.Specular.Handle(), dev.Draws[1].Textures[1])
}

func TestMeshWithoutSpecularClearsUnit(t *testing.T) {
	dev := opengltest.New()
	p, err := shader.NewProgram(dev, shader.HeaderCore+"\n", testSources().Lighting)
	require.NoError(t, err)

	tb := textures.NewBuilder(dev)
	build := func(c color.Color) *textures.Texture {
		tex, err := tb.Build(solid(c))
		require.NoError(t, err)
		return tex
	}
	a, err := NewMeshFromData(dev, UnitCube().MeshData(),
		&Material{Diffuse: build(color.White), Specular: build(color.Black), Shininess: 32})
	require.NoError(t, err)
	b, err := NewMeshFromData(dev, UnitCube().MeshData(),
		&Material{Diffuse: build(color.White), Shininess: 8})
	require.NoError(t, err)

	binding := p.Activate()
	a.Draw(binding)
	b.Draw(binding)

	assert.Equal(t, []any{int32(1), int32(1)}, dev.WritesTo("material.specular"))
	require.Len(t, dev.Draws, 2)
	assert.Equal(t, map[uint32]uint32{0: b.Material.Diffuse.Handle()}, dev.Draws[1].Textures,
		"unit 1 no longer holds the first mesh's specular map")
	def, ok := NewRegistry().Lookup("Material")
	require.True(t, ok)
	assert.NoError(t, def.Matches(b.Material.Uniform()))
}

func TestModelSharesMaterialTextures(t *testing.T) {
	dev := opengltest.New()
	data := core.ModelData{
		Name: "crate",
		Meshes: []core.MeshData{
			{Vertices: UnitCube().MeshData().Vertices, Indices: UnitCube().MeshData().Indices, Material: "wood"},
			{Vertices: UnitCube().MeshData().Vertices, Indices: UnitCube().MeshData().Indices, Material: "wood"},
			{Vertices: UnitCube().MeshData().Vertices, Indices: UnitCube().MeshData().Indices},
		},
		Materials: map[string]core.MaterialData{
			"wood": {Name: "wood", Diffuse: solid(color.White), Shininess: 8},
		},
	}
	m, err := NewModel(dev, textures.NewBuilder(dev, textures.WithFlip(false)), data)
	require.NoError(t, err)
	require.Len(t, m.Meshes, 3)

	assert.Len(t, dev.Textures, 1, "one upload for the shared material")
	assert.Equal(t, m.Meshes[0].Material.Diffuse.Handle(), m.Meshes[1].Material.Diffuse.Handle())
	assert.Nil(t, m.Meshes[2].Material)

	m.Release()
	assert.Len(t, dev.Deleted["texture"], 1)
}

// ── Camera ───────────────────────────────────────────────────────────────────

func TestCameraLooksAtTarget(t *testing.T) {
	cam := NewCamera(math.NewVec3(0, 0, 3), math.Vec3Zero, 1)
	assert.True(t, cam.Front().ApproxEqual(math.NewVec3(0, 0, -1), 1e-5), "front %v", cam.Front())
	assert.True(t, cam.Right().ApproxEqual(math.Vec3Right, 1e-5), "right %v", cam.Right())
	assert.Equal(t, cam.Front().Cross(cam.Up).Normalize(), cam.Right())
}

func TestCameraPitchClamp(t *testing.T) {
	cam := NewCamera(math.Vec3Zero, math.NewVec3(1, 0, 0), 1)
	cam.Update(0, &stubInput{dy: -10000})
	assert.Equal(t, float32(89), cam.Pitch)
	cam.Update(0, &stubInput{dy: 10000})
	assert.Equal(t, float32(-89), cam.Pitch)
}

func TestCameraMoves(t *testing.T) {
	cam := NewCamera(math.Vec3Zero, math.NewVec3(1, 0, 0), 1)
	cam.Update(2, &stubInput{keys: map[core.Key]bool{core.KeyW: true}})
	assert.True(t, cam.Position.ApproxEqual(math.NewVec3(5, 0, 0), 1e-4), "position %v", cam.Position)

	cam.Update(1, &stubInput{keys: map[core.Key]bool{core.KeySpace: true}})
	assert.InDelta(t, 2.5, cam.Position.Y, 1e-5)
}

func TestCameraSetAspect(t *testing.T) {
	cam := NewCamera(math.NewVec3(0, 0, 3), math.Vec3Zero, 1)
	before := cam.GetProjectionMatrix()
	cam.SetAspect(2)
	assert.NotEqual(t, before, cam.GetProjectionMatrix())
	cam.SetAspect(0)
	assert.Equal(t, float32(2), cam.Aspect(), "zero aspect is ignored")
}

// ── Types ────────────────────────────────────────────────────────────────────

func TestRegistryMatchesHostValues(t *testing.T) {
	r := NewRegistry()
	for name, v := range map[string]shader.UniformValue{
		"DirLight":   DirLight{}.Uniform(),
		"PointLight": PointLight{}.Uniform(),
		"SpotLight":  SpotLight{}.Uniform(),
		"Camera":     NewCamera(math.Vec3Zero, math.Vec3Front, 1).Uniform(),
		"Material":   (&Material{}).Uniform(),
	} {
		def, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.NoError(t, def.Matches(v), name)
	}

	pre := r.Preamble(shader.HeaderCore)
	assert.Contains(t, pre, "uniform PointLight point_lights[4];\nuniform int point_lights_len;")
	assert.Contains(t, pre, "layout(std140) uniform CameraBlock {")
}

func TestCameraBlockLayout(t *testing.T) {
	b := CameraBlock{ViewPos: math.NewVec3(1, 2, 3), View: math.Mat4Identity(), Projection: math.Mat4Identity()}
	out := b.AppendStd140(nil)
	assert.Len(t, out, b.Std140Size())
}

func TestSpotLightCutOffs(t *testing.T) {
	l := NewSpotLight(math.Vec3Zero, math.Vec3Front, 0, 90, math.Vec3One, math.Vec3One)
	assert.InDelta(t, 1, l.InnerCutOff, 1e-6)
	assert.InDelta(t, 0, l.OuterCutOff, 1e-6)
	assert.Equal(t, Range50, l.Attenuation)
}

// ── Scene passes ─────────────────────────────────────────────────────────────

func TestSortBackToFront(t *testing.T) {
	at := func(z float32) *Entity { return &Entity{Transform: math.Mat4Translation(math.NewVec3(0, 0, z))} }
	near, mid, far := at(1), at(3), at(5)
	tie := at(-3)
	entities := []*Entity{near, mid, far, tie}

	SortBackToFront(entities, math.Vec3Zero)

	assert.Equal(t, []*Entity{far, mid, tie, near}, entities, "equal distances keep input order")
}

func TestCameraBlockBoundOncePerPass(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, false)
	for i := range 3 {
		s.Add(cubeEntity(t, dev, math.NewVec3(float32(i), 0, 0)))
	}
	dev.Reset()

	s.Draw(FrameState{})

	assert.Len(t, dev.Draws, 3)
	assert.Len(t, dev.CallsWithPrefix("UniformBlockBinding("), 1)
	assert.Len(t, dev.WritesTo("model"), 3)
}

func TestLightArraysBound(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, false)
	require.NoError(t, s.AddPointLight(PointLight{Position: math.NewVec3(1, 2, 3), Attenuation: Range50}))
	require.NoError(t, s.AddPointLight(PointLight{Attenuation: Range50}))
	s.Add(cubeEntity(t, dev, math.Vec3Zero))

	s.Draw(FrameState{})

	assert.Equal(t, []any{int32(2)}, dev.WritesTo("point_lights_len"))
	assert.Equal(t, []any{int32(0)}, dev.WritesTo("dir_lights_len"))
	assert.Equal(t, []any{[3]float32{1, 2, 3}}, dev.WritesTo("point_lights[0].position"))
	assert.Equal(t, []any{float32(0.032)}, dev.WritesTo("point_lights[1].quadratic"))
}

func TestLightCap(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, false)
	for range shader.ArrayCapacity {
		require.NoError(t, s.AddDirLight(DirLight{}))
	}
	assert.ErrorIs(t, s.AddDirLight(DirLight{}), ErrTooManyLights)
	dirs, _, _ := s.Lights()
	assert.Len(t, dirs, shader.ArrayCapacity)
}

func TestOutlinePass(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, false)
	plain := cubeEntity(t, dev, math.NewVec3(-2, 0, 0))
	outlined := cubeEntity(t, dev, math.NewVec3(2, 0, 0))
	outlined.Outlined = true
	s.Add(plain, outlined)
	dev.Reset()

	s.Draw(FrameState{})

	require.Len(t, dev.Draws, 3)
	assert.Equal(t, uint32(0), dev.Draws[0].State.StencilWrite, "plain entities leave the stencil alone")

	write := dev.Draws[1].State
	assert.Equal(t, opengl.Always, write.StencilFunc)
	assert.Equal(t, int32(1), write.StencilRef)
	assert.Equal(t, uint32(0xFF), write.StencilWrite)
	assert.Equal(t, [3]opengl.Enum{opengl.Keep, opengl.Keep, opengl.Replace}, write.StencilOp)

	outline := dev.Draws[2]
	assert.Equal(t, s.progs.outline.Handle(), outline.Program)
	assert.Equal(t, opengl.Notequal, outline.State.StencilFunc)
	assert.Equal(t, uint32(0), outline.State.StencilWrite)
	assert.False(t, outline.State.Enabled[opengl.DepthTest])

	models := dev.WritesTo("model")
	scaled := math.Mat4Scale(math.NewVec3(1.05, 1.05, 1.05)).Mul(outlined.Transform)
	assert.Equal(t, scaled.Flat(), models[len(models)-1])

	after := dev.State()
	assert.Equal(t, uint32(0xFF), after.StencilWrite)
	assert.Equal(t, opengl.Always, after.StencilFunc)
	assert.Equal(t, int32(0), after.StencilRef)
	assert.True(t, after.Enabled[opengl.DepthTest])
}

func TestTransparentPass(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, false)
	near := cubeEntity(t, dev, math.NewVec3(0, 0, 1))
	far := cubeEntity(t, dev, math.NewVec3(0, 0, -5))
	opaque := cubeEntity(t, dev, math.NewVec3(0, 0, -9))
	near.Transparent, far.Transparent = true, true
	s.Add(near, far, opaque)
	dev.Reset()

	s.Draw(FrameState{})

	require.Len(t, dev.Draws, 3)
	assert.False(t, dev.Draws[0].State.Enabled[opengl.Blend], "opaque first, no blending")
	for _, d := range dev.Draws[1:] {
		assert.True(t, d.State.Enabled[opengl.Blend])
		assert.False(t, d.State.Enabled[opengl.CullFace])
		assert.Equal(t, opengl.SrcAlpha, d.State.BlendSrc)
		assert.Equal(t, opengl.OneMinusSrcAlpha, d.State.BlendDst)
	}
	assert.Equal(t, []any{
		opaque.Transform.Flat(),
		far.Transform.Flat(),
		near.Transform.Flat(),
	}, dev.WritesTo("model"))

	after := dev.State()
	assert.False(t, after.Enabled[opengl.Blend])
	assert.True(t, after.Enabled[opengl.CullFace])
}

func TestSkyboxPass(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, false)
	var faces [6]image.Image
	for i := range faces {
		faces[i] = solid(color.White)
	}
	cubemap, err := textures.NewBuilder(dev, textures.WithTarget(opengl.TextureCubeMap)).BuildCubemap(faces)
	require.NoError(t, err)
	s.Skybox, err = NewSkybox(dev, cubemap)
	require.NoError(t, err)
	dev.Reset()

	cam := NewCamera(math.NewVec3(4, 5, 6), math.Vec3Zero, 1)
	s.Draw(FrameState{Camera: cam})

	require.Len(t, dev.Draws, 1)
	d := dev.Draws[0]
	assert.Equal(t, s.progs.skybox.Handle(), d.Program)
	assert.Equal(t, int32(36), d.Count)
	assert.Equal(t, opengl.Lequal, d.State.DepthFunc)
	assert.False(t, d.State.DepthMask)
	assert.False(t, d.State.Enabled[opengl.CullFace])
	assert.Equal(t, cubemap.Handle(), d.Textures[0])

	rot := dev.WritesTo("view_rotation")
	require.Len(t, rot, 1)
	flat := rot[0].([16]float32)
	assert.Equal(t, [3]float32{0, 0, 0}, [3]float32{flat[12], flat[13], flat[14]}, "no translation")

	after := dev.State()
	assert.Equal(t, opengl.Less, after.DepthFunc)
	assert.True(t, after.DepthMask)
	assert.True(t, after.Enabled[opengl.CullFace])
}

func TestPostProcessReplay(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, true)
	s.Add(cubeEntity(t, dev, math.Vec3Zero))
	dev.Reset()

	s.Draw(FrameState{Effect: EffectGrayscale})

	require.Len(t, dev.Draws, 2)
	assert.NotZero(t, dev.Draws[0].Framebuffer, "scene goes to the capture")
	screen := dev.Draws[1]
	assert.Zero(t, screen.Framebuffer)
	assert.Equal(t, s.progs.screen.Handle(), screen.Program)
	assert.False(t, screen.State.Enabled[opengl.DepthTest])
	assert.Equal(t, []any{int32(EffectGrayscale)}, dev.WritesTo("effect"))
	assert.Equal(t, []any{int32(0)}, dev.WritesTo("screenTexture"))
	assert.True(t, dev.State().Enabled[opengl.DepthTest])
}

func TestScreenCaptureIncomplete(t *testing.T) {
	dev := opengltest.New()
	dev.Status = 0x8CDD
	p, err := shader.NewProgram(dev, shader.HeaderCore+"\n", testSources().Screen)
	require.NoError(t, err)

	_, err = NewScreenCapture(dev, p, 64, 64)
	var fbErr *FramebufferError
	require.True(t, errors.As(err, &fbErr))
	assert.Equal(t, opengl.Enum(0x8CDD), fbErr.Status)
	assert.Len(t, dev.Deleted["framebuffer"], 1)
	assert.Len(t, dev.Deleted["renderbuffer"], 1)
	assert.Len(t, dev.Deleted["texture"], 1)
}

func TestEffectCycle(t *testing.T) {
	assert.Equal(t, EffectInversion, EffectNone.Next())
	assert.Equal(t, EffectNone, EffectEdgeDetection.Next())
	assert.Equal(t, "grayscale", EffectGrayscale.String())
}

func TestReloadKeepsProgramsOnFailure(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, true)
	old := s.progs

	dev.CompileFailure = "BROKEN"
	src := testSources()
	src.Outline.Fragment = "BROKEN"
	err := s.ReloadPrograms(src)
	var compileErr *shader.CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, old, s.progs)
	assert.NotContains(t, dev.Deleted["program"], old.lighting.Handle())

	dev.CompileFailure = ""
	require.NoError(t, s.ReloadPrograms(testSources()))
	assert.NotEqual(t, old.lighting.Handle(), s.progs.lighting.Handle())
	for _, h := range []uint32{old.lighting.Handle(), old.outline.Handle(), old.skybox.Handle(), old.screen.Handle()} {
		assert.Contains(t, dev.Deleted["program"], h)
	}
	assert.Same(t, s.progs.screen, s.capture.program)
}

func TestUpdateRunsHooksAndFlashlight(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, false)
	e := cubeEntity(t, dev, math.Vec3Zero)
	e.Animate = func(elapsed float32) math.Mat4 {
		return math.Mat4Translation(math.NewVec3(elapsed, 0, 0))
	}
	s.Add(e)
	flash := NewSpotLight(math.Vec3Zero, math.Vec3Front, 12.5, 15, math.Vec3One, math.Vec3One)
	require.NoError(t, s.AddFlashlight(flash))

	cam := NewCamera(math.NewVec3(1, 1, 1), math.NewVec3(1, 1, 0), 1)
	s.Update(2, cam)

	assert.Equal(t, math.NewVec3(2, 0, 0), e.Transform.Translation())
	_, _, spots := s.Lights()
	assert.Equal(t, cam.Position, spots[0].Position)
	assert.Equal(t, cam.Front(), spots[0].Direction)

	s.SetFlashlight(false)
	assert.Equal(t, math.Vec3Zero, spots[0].Diffuse)
	s.SetFlashlight(true)
	assert.Equal(t, math.Vec3One, spots[0].Diffuse)
}

func TestResize(t *testing.T) {
	dev := opengltest.New()
	s := newTestScene(t, dev, true)
	dev.Reset()

	require.NoError(t, s.Resize(800, 400))
	assert.Contains(t, dev.Calls, "Viewport(0, 0, 800, 400)")
	assert.Equal(t, float32(2), s.camera.Aspect())
	assert.Len(t, dev.Deleted["framebuffer"], 1)
	storage := dev.CallsWithPrefix("RenderbufferStorage(")
	require.Len(t, storage, 1)
	assert.True(t, strings.HasSuffix(storage[0], "800x400)"), storage[0])

	require.NoError(t, s.Resize(0, 0))
	w, h := s.Size()
	assert.Equal(t, []int{800, 400}, []int{w, h})
}
