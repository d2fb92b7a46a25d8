package textures

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"render-demo/internal/opengl"
	"render-demo/internal/opengl/opengltest"
)

// twoRows is 1×2: red on top, blue below.
func twoRows() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(0, 1, color.RGBA{0, 0, 255, 255})
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestBuilderDefaults(t *testing.T) {
	dev := opengltest.New()
	tex, err := NewBuilder(dev).Build(twoRows())
	require.NoError(t, err)

	rec := dev.Textures[tex.Handle()]
	assert.Equal(t, int32(opengl.Repeat), rec.Params[opengl.TextureWrapS])
	assert.Equal(t, int32(opengl.Repeat), rec.Params[opengl.TextureWrapT])
	assert.Equal(t, int32(opengl.LinearMipmapLinear), rec.Params[opengl.TextureMinFilter])
	assert.Equal(t, int32(opengl.Linear), rec.Params[opengl.TextureMagFilter])
	assert.Equal(t, opengl.RGBA, rec.Format)
	assert.Equal(t, int32(4), dev.Alignment)
	assert.True(t, rec.Mipmapped)

	// flipped: the bottom row comes first
	assert.Equal(t, []byte{0, 0, 255, 255, 255, 0, 0, 255}, rec.Faces[opengl.Texture2D])
}

func TestBuilderOptions(t *testing.T) {
	dev := opengltest.New()
	b := NewBuilder(dev,
		WithFlip(false),
		WithFormat(opengl.RGB),
		WithWrap(opengl.ClampToEdge),
		WithFilter(opengl.Nearest, opengl.Nearest),
		WithAlignment(1),
	)
	tex, err := b.Build(twoRows())
	require.NoError(t, err)

	rec := dev.Textures[tex.Handle()]
	assert.Equal(t, []byte{255, 0, 0, 0, 0, 255}, rec.Faces[opengl.Texture2D])
	assert.Equal(t, int32(opengl.ClampToEdge), rec.Params[opengl.TextureWrapR])
	assert.Equal(t, int32(opengl.Nearest), rec.Params[opengl.TextureMinFilter])
	assert.Equal(t, int32(1), dev.Alignment)
}

func TestBuildCubemap(t *testing.T) {
	dev := opengltest.New()
	var faces [6]image.Image
	for i := range faces {
		faces[i] = image.NewRGBA(image.Rect(0, 0, 2, 2))
	}
	tex, err := NewBuilder(dev).BuildCubemap(faces)
	require.NoError(t, err)

	assert.Equal(t, opengl.TextureCubeMap, tex.Target())
	rec := dev.Textures[tex.Handle()]
	assert.Len(t, rec.Faces, 6)
	for i := 0; i < 6; i++ {
		assert.Contains(t, rec.Faces, opengl.TextureCubeMapPositiveX+opengl.Enum(i))
	}
	assert.False(t, rec.Mipmapped)
	assert.Equal(t, int32(opengl.ClampToEdge), rec.Params[opengl.TextureWrapR])
	assert.Equal(t, int32(opengl.Linear), rec.Params[opengl.TextureMinFilter])

	faces[3] = image.NewRGBA(image.Rect(0, 0, 4, 4))
	_, err = NewBuilder(dev).BuildCubemap(faces)
	assert.Error(t, err)
}

func TestRenderTexture(t *testing.T) {
	dev := opengltest.New()
	tex, err := NewBuilder(dev).RenderTexture(64, 32)
	require.NoError(t, err)

	rec := dev.Textures[tex.Handle()]
	assert.Nil(t, rec.Faces[opengl.Texture2D])
	assert.Equal(t, int32(64), rec.Width)
	assert.False(t, rec.Mipmapped)
	assert.Equal(t, int32(opengl.Linear), rec.Params[opengl.TextureMinFilter])
}

func TestAllocFailure(t *testing.T) {
	dev := opengltest.New()
	dev.FailAlloc = true
	_, err := NewBuilder(dev).Build(twoRows())
	assert.ErrorIs(t, err, opengl.ErrAlloc)
}

func TestCloneRelease(t *testing.T) {
	dev := opengltest.New()
	tex, err := NewBuilder(dev).Build(twoRows())
	require.NoError(t, err)
	id := tex.Handle()

	other := tex.Clone()
	tex.Release()
	tex.Release()
	assert.Empty(t, dev.Deleted["texture"], "a clone still holds the texture")

	other.Release()
	assert.Equal(t, []uint32{id}, dev.Deleted["texture"])
	other.Release()
	assert.Len(t, dev.Deleted["texture"], 1)
}

func TestSubImage(t *testing.T) {
	dev := opengltest.New()
	tex, err := NewBuilder(dev, WithFormat(opengl.Red)).Empty(8, 8)
	require.NoError(t, err)

	require.NoError(t, tex.SubImage(2, 2, 4, 4, make([]byte, 16)))
	assert.Equal(t, 1, dev.Textures[tex.Handle()].SubImages)
	assert.Error(t, tex.SubImage(6, 6, 4, 4, make([]byte, 16)))
}

func TestDecodeSniffsAndHonorsHint(t *testing.T) {
	data := encodePNG(t, twoRows())

	img, format, err := Decode(data, Auto)
	require.NoError(t, err)
	assert.Equal(t, PNG, format)
	assert.Equal(t, 2, img.Bounds().Dy())

	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, twoRows()))
	_, format, err = Decode(bmpBuf.Bytes(), Auto)
	require.NoError(t, err)
	assert.Equal(t, BMP, format)

	// the hint is trusted even when the bytes disagree
	_, _, err = Decode(data, JPEG)
	assert.Error(t, err)

	_, _, err = Decode([]byte("plain text"), Auto)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, _, err = Decode(data, Format("exr"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, JPEG, FormatOf("a/b/Diffuse.JPEG"))
	assert.Equal(t, WebP, FormatOf("x.webp"))
	assert.Equal(t, Auto, FormatOf("model.obj"))
	assert.False(t, IsImage("x.tga"))
}

func TestLoadCubemap(t *testing.T) {
	dir := t.TempDir()
	var paths [6]string
	for i := range paths {
		paths[i] = filepath.Join(dir, string(rune('a'+i))+".png")
		require.NoError(t, os.WriteFile(paths[i], encodePNG(t, twoRows()), 0o644))
	}

	dev := opengltest.New()
	tex, err := NewBuilder(dev).LoadCubemap(context.Background(), paths, Auto)
	require.NoError(t, err)
	assert.Equal(t, 1, tex.Width())

	paths[4] = filepath.Join(dir, "missing.png")
	_, err = NewBuilder(dev).LoadCubemap(context.Background(), paths, Auto)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
