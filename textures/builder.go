// Package textures builds GPU textures from decoded images.
package textures

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"

	"golang.org/x/sync/errgroup"

	"render-demo/internal/opengl"
)

// Builder carries upload options. The zero value is not usable; start
// from NewBuilder.
type Builder struct {
	dev       opengl.Device
	target    opengl.Enum
	format    opengl.Enum
	params    map[opengl.Enum]int32
	alignment int32
	flip      bool
}

// Option adjusts a Builder.
type Option func(*Builder)

func WithFormat(f opengl.Enum) Option { return func(b *Builder) { b.format = f } }

func WithParameter(pname opengl.Enum, v int32) Option {
	return func(b *Builder) { b.params[pname] = v }
}

// WithWrap sets every wrap axis.
func WithWrap(mode opengl.Enum) Option {
	return func(b *Builder) {
		for _, p := range []opengl.Enum{opengl.TextureWrapS, opengl.TextureWrapT, opengl.TextureWrapR} {
			b.params[p] = int32(mode)
		}
	}
}

func WithFilter(minify, magnify opengl.Enum) Option {
	return func(b *Builder) {
		b.params[opengl.TextureMinFilter] = int32(minify)
		b.params[opengl.TextureMagFilter] = int32(magnify)
	}
}

func WithAlignment(n int32) Option { return func(b *Builder) { b.alignment = n } }

// WithFlip controls whether rows are reversed so the first image row
// lands at t=1.
func WithFlip(flip bool) Option { return func(b *Builder) { b.flip = flip } }

// WithTarget selects Texture2D or TextureCubeMap. Cube maps default to
// clamped, linear sampling.
func WithTarget(target opengl.Enum) Option {
	return func(b *Builder) {
		b.target = target
		if target == opengl.TextureCubeMap {
			WithWrap(opengl.ClampToEdge)(b)
			WithFilter(opengl.Linear, opengl.Linear)(b)
		}
	}
}

func NewBuilder(dev opengl.Device, opts ...Option) *Builder {
	b := &Builder{
		dev:       dev,
		target:    opengl.Texture2D,
		format:    opengl.RGBA,
		alignment: 4,
		flip:      true,
		params: map[opengl.Enum]int32{
			opengl.TextureWrapS:     int32(opengl.Repeat),
			opengl.TextureWrapT:     int32(opengl.Repeat),
			opengl.TextureWrapR:     int32(opengl.Repeat),
			opengl.TextureMinFilter: int32(opengl.LinearMipmapLinear),
			opengl.TextureMagFilter: int32(opengl.Linear),
		},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// With returns a copy of b with more options applied.
func (b *Builder) With(opts ...Option) *Builder {
	c := *b
	c.params = make(map[opengl.Enum]int32, len(b.params))
	for k, v := range b.params {
		c.params[k] = v
	}
	for _, o := range opts {
		o(&c)
	}
	return &c
}

// create allocates the texture object and applies parameters.
func (b *Builder) create() (uint32, error) {
	id := b.dev.CreateTexture()
	if err := opengl.CheckAlloc(id, "texture"); err != nil {
		return 0, err
	}
	b.dev.BindTexture(b.target, id)
	for _, p := range []opengl.Enum{
		opengl.TextureWrapS, opengl.TextureWrapT, opengl.TextureWrapR,
		opengl.TextureMinFilter, opengl.TextureMagFilter,
	} {
		b.dev.TexParameteri(b.target, p, b.params[p])
	}
	b.dev.PixelStorei(opengl.UnpackAlignment, b.alignment)
	return id, nil
}

// Build uploads img as a 2D texture with a full mip chain.
func (b *Builder) Build(img image.Image) (*Texture, error) {
	if b.target != opengl.Texture2D {
		return nil, fmt.Errorf("build: builder targets %#x, want a 2D texture", uint32(b.target))
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	pixels := Pixels(img, b.format, b.flip)

	id, err := b.create()
	if err != nil {
		return nil, err
	}
	b.dev.TexImage2D(opengl.Texture2D, b.format, int32(w), int32(h), b.format, pixels)
	b.dev.GenerateMipmap(opengl.Texture2D)
	b.dev.BindTexture(opengl.Texture2D, 0)
	return newTexture(b.dev, id, opengl.Texture2D, b.format, w, h), nil
}

// BuildCubemap uploads six faces in +X, -X, +Y, -Y, +Z, -Z order.
func (b *Builder) BuildCubemap(faces [6]image.Image) (*Texture, error) {
	cb := b
	if b.target != opengl.TextureCubeMap {
		cb = b.With(WithTarget(opengl.TextureCubeMap))
	}
	size := faces[0].Bounds().Size()
	for i, f := range faces {
		if f.Bounds().Size() != size {
			return nil, fmt.Errorf("cubemap face %d is %v, face 0 is %v", i, f.Bounds().Size(), size)
		}
	}

	id, err := cb.create()
	if err != nil {
		return nil, err
	}
	for i, f := range faces {
		cb.dev.TexImage2D(opengl.TextureCubeMapPositiveX+opengl.Enum(i), cb.format,
			int32(size.X), int32(size.Y), cb.format, Pixels(f, cb.format, cb.flip))
	}
	cb.dev.BindTexture(opengl.TextureCubeMap, 0)
	return newTexture(cb.dev, id, opengl.TextureCubeMap, cb.format, size.X, size.Y), nil
}

// RenderTexture allocates w×h storage with no initial pixels and no mip
// chain, for use as a framebuffer attachment.
func (b *Builder) RenderTexture(w, h int) (*Texture, error) {
	if b.params[opengl.TextureMinFilter] == int32(opengl.LinearMipmapLinear) {
		b = b.With(WithFilter(opengl.Linear, opengl.Enum(b.params[opengl.TextureMagFilter])))
	}
	id, err := b.create()
	if err != nil {
		return nil, err
	}
	b.dev.TexImage2D(opengl.Texture2D, b.format, int32(w), int32(h), b.format, nil)
	b.dev.BindTexture(opengl.Texture2D, 0)
	return newTexture(b.dev, id, opengl.Texture2D, b.format, w, h), nil
}

// Empty allocates a zero-filled w×h texture that is filled later with
// SubImage.
func (b *Builder) Empty(w, h int) (*Texture, error) {
	id, err := b.create()
	if err != nil {
		return nil, err
	}
	b.dev.TexImage2D(opengl.Texture2D, b.format, int32(w), int32(h), b.format,
		make([]byte, w*h*channels(b.format)))
	b.dev.BindTexture(opengl.Texture2D, 0)
	return newTexture(b.dev, id, opengl.Texture2D, b.format, w, h), nil
}

// Load reads and decodes path, then uploads it on the calling goroutine.
func (b *Builder) Load(ctx context.Context, path string, hint Format) (*Texture, error) {
	img, err := ReadImage(ctx, path, hint)
	if err != nil {
		return nil, err
	}
	return b.Build(img)
}

// LoadCubemap decodes the six faces concurrently, then uploads them.
func (b *Builder) LoadCubemap(ctx context.Context, paths [6]string, hint Format) (*Texture, error) {
	faces, err := ReadFaces(ctx, paths, hint)
	if err != nil {
		return nil, err
	}
	return b.BuildCubemap(faces)
}

// ReadImage reads and decodes one file. No GPU calls are made, so it is
// safe off the render goroutine.
func ReadImage(ctx context.Context, path string, hint Format) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read texture %q: %w", path, err)
	}
	img, _, err := Decode(data, hint)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", path, err)
	}
	return img, nil
}

// ReadFaces decodes six cube faces concurrently. The first failure
// cancels the rest.
func ReadFaces(ctx context.Context, paths [6]string, hint Format) ([6]image.Image, error) {
	var faces [6]image.Image
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			img, err := ReadImage(ctx, p, hint)
			if err != nil {
				return err
			}
			faces[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [6]image.Image{}, err
	}
	return faces, nil
}

func channels(format opengl.Enum) int {
	switch format {
	case opengl.Red:
		return 1
	case opengl.RGB:
		return 3
	}
	return 4
}

// Pixels converts img to tightly packed bytes in format, optionally
// flipping rows.
func Pixels(img image.Image, format opengl.Enum, flip bool) []byte {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*bounds.Dx() || bounds.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	w, h := bounds.Dx(), bounds.Dy()
	n := channels(format)
	out := make([]byte, 0, w*h*n)
	for y := 0; y < h; y++ {
		row := y
		if flip {
			row = h - 1 - y
		}
		src := rgba.Pix[row*rgba.Stride : row*rgba.Stride+4*w]
		if n == 4 {
			out = append(out, src...)
			continue
		}
		for x := 0; x < w; x++ {
			out = append(out, src[4*x:4*x+n]...)
		}
	}
	return out
}
