package io

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-demo/math"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// memFiles resolves names from in-memory maps.
func memFiles(raw map[string]string, images map[string]image.Image) Files {
	f := Files{Dir: "mem", Raw: map[string][]byte{}, Images: images}
	for k, v := range raw {
		f.Raw[k] = []byte(v)
	}
	return f
}

func TestReadManifest(t *testing.T) {
	names, err := ReadManifest(strings.NewReader("# model\n\nbox.obj\n  box.mtl  \ntex/wood.png\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"box.obj", "box.mtl", "tex/wood.png"}, names)

	for _, bad := range []string{"", "# only comments\n\n", "../secret\n", "/etc/passwd\n", "a/../../b\n"} {
		_, err := ReadManifest(strings.NewReader(bad))
		assert.ErrorIs(t, err, ErrManifest, "%q", bad)
	}
}

const quadOBJ = `# two quads sharing an edge
mtllib box.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl wood
f 1/1/1 2/2/1 3/3/1 4/4/1
g second
f -4/-4/-1 -2/-2/-1 -1/-1/-1
`

const boxMTL = `newmtl wood
Ns 32
map_Kd wood.png
map_Ks wood.png
newmtl bare
Ns 8
`

func TestParseOBJ(t *testing.T) {
	wood := image.NewGray(image.Rect(0, 0, 1, 1))
	res := memFiles(map[string]string{"box.mtl": boxMTL}, map[string]image.Image{"wood.png": wood})

	data, err := ParseOBJ(strings.NewReader(quadOBJ), "box", res)
	require.NoError(t, err)
	assert.Equal(t, "box", data.Name)
	require.Len(t, data.Meshes, 2)

	quad := data.Meshes[0]
	assert.Equal(t, "wood", quad.Material)
	assert.Len(t, quad.Vertices, 4, "each v/vt/vn triplet stored once")
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, quad.Indices, "fan triangulation")
	assert.Equal(t, math.NewVec3(0, 0, 1), quad.Vertices[0].Normal)
	assert.Equal(t, math.NewVec2(1, 1), quad.Vertices[2].UV)

	tri := data.Meshes[1]
	assert.Equal(t, "wood", tri.Material, "groups inherit the current material")
	require.Len(t, tri.Vertices, 3)
	assert.Equal(t, math.NewVec3(0, 0, 0), tri.Vertices[0].Position, "-4 is the first of four")
	assert.Equal(t, math.NewVec3(0, 1, 0), tri.Vertices[2].Position)

	require.Contains(t, data.Materials, "wood")
	m := data.Materials["wood"]
	assert.Equal(t, float32(32), m.Shininess)
	assert.Same(t, wood, m.Diffuse.(*image.Gray))
	assert.NotNil(t, m.Specular)
	assert.Nil(t, data.Materials["bare"].Diffuse)
}

func TestParseOBJRelativeIndicesAfterNewVertices(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n" +
		"v 5 5 5\nv 6 5 5\nv 5 6 5\nf -3 -2 -1\nf 1 2 3\n"
	data, err := ParseOBJ(strings.NewReader(src), "rel", memFiles(nil, nil))
	require.NoError(t, err)
	require.Len(t, data.Meshes, 1)

	mesh := data.Meshes[0]
	require.Len(t, mesh.Vertices, 6)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 0, 1, 2}, mesh.Indices, "absolute and relative forms share vertices")
	assert.Equal(t, math.NewVec3(5, 5, 5), mesh.Vertices[mesh.Indices[3]].Position)
}

func TestParseOBJErrors(t *testing.T) {
	res := memFiles(nil, nil)
	cases := map[string]string{
		"index out of range": "v 0 0 0\nf 1 2 3\n",
		"no faces":           "v 0 0 0\n",
		"bad number":         "v 0 x 0\n",
		"missing library":    "mtllib gone.mtl\n",
		"undefined material": "v 0 0 0\nv 1 0 0\nv 0 1 0\nusemtl nope\nf 1 2 3\n",
	}
	for name, src := range cases {
		_, err := ParseOBJ(strings.NewReader(src), "x", res)
		assert.Error(t, err, name)
	}
}

func TestParseMTLMissingTexture(t *testing.T) {
	_, err := ParseMTL(strings.NewReader("newmtl m\nmap_Kd gone.png\n"), memFiles(nil, map[string]image.Image{}))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadModelOBJ(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "box")
	writeFiles(t, dir, map[string]string{
		ManifestName: "box.obj\nbox.mtl\n# texture\nwood.png\n",
		"box.obj":    quadOBJ,
		"box.mtl":    boxMTL,
		"wood.png":   string(pngBytes(t)),
	})

	files, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, files.Raw, 3)
	require.Contains(t, files.Images, "wood.png")
	assert.Equal(t, 2, files.Images["wood.png"].Bounds().Dx())

	data, err := LoadModel(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "box", data.Name)
	assert.Len(t, data.Meshes, 2)
	assert.NotNil(t, data.Materials["wood"].Diffuse)
}

func TestLoadDirFailsWhole(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		ManifestName: "a.obj\nbroken.png\n",
		"a.obj":      "v 0 0 0\n",
		"broken.png": "not a png",
	})
	files, err := LoadDir(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.png")
	assert.Nil(t, files.Raw, "no partial result")

	writeFiles(t, dir, map[string]string{ManifestName: "a.obj\nmissing.mtl\n"})
	_, err = LoadDir(context.Background(), dir)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = LoadDir(context.Background(), filepath.Join(dir, "nowhere"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadModelWithoutModelFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crate")
	writeFiles(t, dir, map[string]string{ManifestName: "other.obj\n", "other.obj": quadOBJ})
	_, err := LoadModel(context.Background(), dir)
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestDecodeGLTF(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {0, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	doc.Materials = []*gltf.Material{{Name: "paint", PBRMetallicRoughness: &gltf.PBRMetallicRoughness{}}}
	doc.Meshes = []*gltf.Mesh{{
		Name: "tri",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]int{gltf.POSITION: pos, gltf.TEXCOORD_0: uv},
			Indices:    gltf.Index(idx),
			Material:   gltf.Index(0),
		}},
	}}

	data, err := DecodeGLTF(doc, memFiles(nil, nil))
	require.NoError(t, err)
	require.Len(t, data.Meshes, 1)
	mesh := data.Meshes[0]
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Indices)
	require.Len(t, mesh.Vertices, 3)
	assert.Equal(t, math.NewVec3(1, 0, 0), mesh.Vertices[1].Position)
	assert.Equal(t, math.Vec3Up, mesh.Vertices[1].Normal, "missing normals default to up")
	assert.Equal(t, math.NewVec2(0, 1), mesh.Vertices[2].UV)
	assert.Equal(t, "paint", mesh.Material)

	m := data.Materials["paint"]
	assert.Equal(t, float32(1), m.Shininess, "default roughness 1 is the dullest")
	require.NotNil(t, m.Diffuse)
	r, g, b, a := m.Diffuse.At(0, 0).RGBA()
	assert.Equal(t, [4]uint32{0xffff, 0xffff, 0xffff, 0xffff}, [4]uint32{r, g, b, a})
	require.NotNil(t, m.Specular)
}

func TestDecodeGLTFRejectsLines(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}})
	doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{
		Mode:       gltf.PrimitiveLines,
		Attributes: map[string]int{gltf.POSITION: pos},
	}}}}
	_, err := DecodeGLTF(doc, memFiles(nil, nil))
	assert.Error(t, err)
}

const sceneYAML = `
camera:
  position: [0, 1, 4]
  target: [0, 0, 0]
lights:
  directional:
    - direction: [1, -1, 0]
      ambient: [0.2, 0.2, 0.2]
      diffuse: [0.5, 0.5, 0.5]
      specular: [1, 1, 1]
  flashlight:
    inner: 12.5
    outer: 15
    diffuse: [1, 1, 1]
    specular: [1, 1, 1]
skybox: [right.jpg, left.jpg, top.jpg, bottom.jpg, front.jpg, back.jpg]
fonts: [fonts/mono.ttf]
labels:
  - text: hello
    size: 24
    color: [1, 1, 1, 1]
    position: [10, 10]
entities:
  - name: floor
    shape: plane
    size: [10, 10, 0]
    position: [0, -0.5, 0]
    material: {diffuse: metal.png, shininess: 16}
  - name: cube
    shape: cube
    position: [2, 0, 0]
    rotation: [0, 90, 0]
    scale: [2, 2, 2]
    outlined: true
    spin: 45
  - name: backpack
    shape: model
    model: models/backpack
`

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"scene.yaml": sceneYAML})
	l, err := LoadLayout(filepath.Join(dir, "scene.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Vec3{0, 1, 4}, l.Camera.Position)
	require.Len(t, l.Lights.Directional, 1)
	require.NotNil(t, l.Lights.Flashlight)
	assert.Equal(t, float32(15), l.Lights.Flashlight.Outer)
	assert.Equal(t, filepath.Join(dir, "right.jpg"), l.Skybox[0])
	assert.Equal(t, filepath.Join(dir, "fonts/mono.ttf"), l.Fonts[0])

	require.Len(t, l.Entities, 3)
	floor, cube, pack := l.Entities[0], l.Entities[1], l.Entities[2]
	assert.Equal(t, ShapePlane, floor.Shape)
	assert.Equal(t, filepath.Join(dir, "metal.png"), floor.Material.Diffuse)
	assert.Empty(t, floor.Material.Specular)
	assert.Equal(t, math.Mat4Translation(math.NewVec3(0, -0.5, 0)), floor.Transform())

	assert.True(t, cube.Outlined)
	assert.Equal(t, float32(45), cube.Spin)
	assert.Equal(t, math.NewVec3(2, 0, 0), cube.Transform().Translation())
	assert.Equal(t, ShapeModel, pack.Shape)
	assert.Equal(t, filepath.Join(dir, "models/backpack"), pack.Model)
}

func TestDecodeLayoutErrors(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "camera: {position: [0, 0, 0], zoom: 2}\n",
		"unknown shape":  "entities: [{shape: cone}]\n",
		"skybox faces":   "skybox: [a.jpg, b.jpg]\n",
		"model no dir":   "entities: [{shape: model}]\n",
		"dir on cube":    "entities: [{shape: cube, model: x}]\n",
		"label size":     "labels: [{text: hi}]\n",
		"model material": "entities: [{shape: model, model: m, material: {shininess: 2}}]\n",
	}
	for name, src := range cases {
		_, err := DecodeLayout([]byte(src))
		assert.Error(t, err, name)
	}
	_, err := DecodeLayout([]byte("skybox: [a]\n"))
	assert.ErrorIs(t, err, ErrLayout)
}

func TestReadShaders(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"flat.vert": "void main(){}", "flat.frag": "void main(){}"})
	src, err := ReadShaders(dir, "flat")
	require.NoError(t, err)
	assert.Equal(t, "flat", src["flat"].Name)
	assert.Equal(t, "void main(){}", src["flat"].Fragment)

	writeFiles(t, dir, map[string]string{"flat.frag": "  \n"})
	_, err = ReadShaders(dir, "flat")
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestShaderWatcher(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"flat.vert": "v1", "flat.frag": "f1"})
	sw, err := NewShaderWatcher(dir, []string{"flat"}, nil)
	require.NoError(t, err)
	sw.Debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	writeFiles(t, dir, map[string]string{"notes.txt": "ignored", "flat.frag": "f2"})
	select {
	case src := <-sw.Changes():
		assert.Equal(t, "f2", src["flat"].Fragment)
		assert.Equal(t, "v1", src["flat"].Vertex)
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
