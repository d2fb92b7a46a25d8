package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"render-demo/core"
	"render-demo/internal/opengl"
	assetio "render-demo/io"
	"render-demo/math"
	"render-demo/scene"
	"render-demo/text"
	"render-demo/textures"
)

// assets is everything the layout refers to, read and decoded off the
// render goroutine. Nothing here touches GL.
type assets struct {
	models map[string]core.ModelData
	images map[string]image.Image
	skybox *[6]image.Image
	fonts  map[string][]byte
}

// loadAssets reads every file the layout names concurrently. The first
// failure cancels the rest and nothing is returned.
func loadAssets(ctx context.Context, layout assetio.Layout) (*assets, error) {
	a := &assets{
		models: map[string]core.ModelData{},
		images: map[string]image.Image{},
		fonts:  map[string][]byte{},
	}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	queued := map[string]bool{}
	readImage := func(path string) {
		if path == "" || queued[path] {
			return
		}
		queued[path] = true
		g.Go(func() error {
			img, err := textures.ReadImage(ctx, path, textures.FormatOf(path))
			if err != nil {
				return err
			}
			mu.Lock()
			a.images[path] = img
			mu.Unlock()
			return nil
		})
	}

	for _, e := range layout.Entities {
		if e.Material != nil {
			readImage(e.Material.Diffuse)
			readImage(e.Material.Specular)
		}
		if e.Shape != assetio.ShapeModel || queued[e.Model] {
			continue
		}
		queued[e.Model] = true
		g.Go(func() error {
			md, err := assetio.LoadModel(ctx, e.Model)
			if err != nil {
				return err
			}
			mu.Lock()
			a.models[e.Model] = md
			mu.Unlock()
			return nil
		})
	}
	if len(layout.Skybox) == 6 {
		g.Go(func() error {
			faces, err := textures.ReadFaces(ctx, [6]string(layout.Skybox), textures.Auto)
			if err != nil {
				return fmt.Errorf("skybox: %w", err)
			}
			a.skybox = &faces
			return nil
		})
	}
	for _, path := range layout.Fonts {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			mu.Lock()
			a.fonts[path] = data
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return a, nil
}

// uploader turns decoded assets into GPU resources on the render
// goroutine. Textures and models are uploaded once and cloned per use.
type uploader struct {
	dev    opengl.Device
	tb     *textures.Builder
	assets *assets

	textures map[string]*textures.Texture
	models   map[string]*scene.Model
}

func newUploader(dev opengl.Device, a *assets) *uploader {
	return &uploader{
		dev:      dev,
		tb:       textures.NewBuilder(dev),
		assets:   a,
		textures: map[string]*textures.Texture{},
		models:   map[string]*scene.Model{},
	}
}

// release drops the uploader's own references; entities keep theirs.
func (u *uploader) release() {
	for _, t := range u.textures {
		t.Release()
	}
	for _, m := range u.models {
		m.Release()
	}
}

func (u *uploader) texture(path string) (*textures.Texture, error) {
	if path == "" {
		return nil, nil
	}
	if t, ok := u.textures[path]; ok {
		return t.Clone(), nil
	}
	t, err := u.tb.Build(u.assets.images[path])
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", path, err)
	}
	u.textures[path] = t
	return t.Clone(), nil
}

func (u *uploader) material(ml *assetio.MaterialLayout) (*scene.Material, error) {
	if ml == nil {
		return nil, nil
	}
	mat := &scene.Material{Name: stem(ml.Diffuse), Shininess: ml.Shininess}
	var err error
	if mat.Diffuse, err = u.texture(ml.Diffuse); err != nil {
		return nil, err
	}
	if mat.Specular, err = u.texture(ml.Specular); err != nil {
		mat.Release()
		return nil, err
	}
	return mat, nil
}

func (u *uploader) model(dir string) (*scene.Model, error) {
	if m, ok := u.models[dir]; ok {
		return m.Clone(), nil
	}
	// Model textures keep their file orientation.
	m, err := scene.NewModel(u.dev, u.tb.With(textures.WithFlip(false)), u.assets.models[dir])
	if err != nil {
		return nil, err
	}
	u.models[dir] = m
	return m.Clone(), nil
}

func geometry(e assetio.EntityLayout) scene.Geometry {
	dim := func(i int) float32 {
		if e.Size[i] > 0 {
			return e.Size[i]
		}
		return 1
	}
	radius := e.Radius
	if radius <= 0 {
		radius = 0.5
	}
	switch e.Shape {
	case assetio.ShapePlane:
		return scene.Plane{Length: dim(0), Width: dim(1), Normal: math.Vec3Up}
	case assetio.ShapeSphere:
		return scene.Sphere{Radius: radius, Segments: 32, Rings: 16}
	case assetio.ShapeTorus:
		return scene.Torus{MajorRadius: radius, MinorRadius: radius / 4, MajorSegments: 32, MinorSegments: 16}
	}
	return scene.Cube{Length: dim(0), Width: dim(1), Height: dim(2)}
}

func (u *uploader) entity(e assetio.EntityLayout) (*scene.Entity, error) {
	ent := &scene.Entity{
		Name:        e.Name,
		Transform:   e.Transform(),
		Outlined:    e.Outlined,
		Transparent: e.Transparent,
	}
	if e.Spin != 0 {
		base, spin := ent.Transform, e.Spin
		ent.Animate = func(elapsed float32) math.Mat4 {
			return math.Mat4RotationY(math.Radians(spin * elapsed)).Mul(base)
		}
	}

	if e.Shape == assetio.ShapeModel {
		m, err := u.model(e.Model)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", e.Name, err)
		}
		ent.Drawable = m
		return ent, nil
	}

	mat, err := u.material(e.Material)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", e.Name, err)
	}
	mesh, err := scene.NewMeshFromData(u.dev, geometry(e).MeshData(), mat)
	if err != nil {
		if mat != nil {
			mat.Release()
		}
		return nil, fmt.Errorf("entity %s: %w", e.Name, err)
	}
	ent.Drawable = mesh
	return ent, nil
}

// populate adds the layout's entities, lights and skybox to sc.
func populate(dev opengl.Device, sc *scene.Scene, cam *scene.Camera, layout assetio.Layout, a *assets) error {
	u := newUploader(dev, a)
	defer u.release()

	for _, e := range layout.Entities {
		ent, err := u.entity(e)
		if err != nil {
			return err
		}
		sc.Add(ent)
	}

	lights := layout.Lights
	for _, l := range lights.Directional {
		if err := sc.AddDirLight(scene.DirLight{
			Direction: l.Direction.Vec3(),
			Ambient:   l.Ambient.Vec3(),
			Diffuse:   l.Diffuse.Vec3(),
			Specular:  l.Specular.Vec3(),
		}); err != nil {
			return err
		}
	}
	for _, l := range lights.Point {
		if err := sc.AddPointLight(scene.PointLight{
			Position:    l.Position.Vec3(),
			Ambient:     l.Ambient.Vec3(),
			Diffuse:     l.Diffuse.Vec3(),
			Specular:    l.Specular.Vec3(),
			Attenuation: scene.Range50,
		}); err != nil {
			return err
		}
	}
	for _, l := range lights.Spot {
		if err := sc.AddSpotLight(scene.NewSpotLight(l.Position.Vec3(), l.Direction.Vec3(),
			l.Inner, l.Outer, l.Diffuse.Vec3(), l.Specular.Vec3())); err != nil {
			return err
		}
	}
	if f := lights.Flashlight; f != nil {
		if err := sc.AddFlashlight(scene.NewSpotLight(cam.Position, cam.Front(),
			f.Inner, f.Outer, f.Diffuse.Vec3(), f.Specular.Vec3())); err != nil {
			return err
		}
	}

	if a.skybox != nil {
		cubemap, err := textures.NewBuilder(dev,
			textures.WithTarget(opengl.TextureCubeMap),
			textures.WithFlip(false),
		).BuildCubemap(*a.skybox)
		if err != nil {
			return fmt.Errorf("skybox: %w", err)
		}
		if sc.Skybox, err = scene.NewSkybox(dev, cubemap); err != nil {
			return fmt.Errorf("skybox: %w", err)
		}
	}
	return nil
}

// registerFonts adds each loaded font under its file stem.
func registerFonts(shaper *text.Shaper, a *assets) error {
	for path, data := range a.fonts {
		if err := shaper.AddFont(stem(path), data); err != nil {
			return err
		}
	}
	return nil
}

func labels(layout assetio.Layout) []text.Section {
	out := make([]text.Section, 0, len(layout.Labels))
	for _, l := range layout.Labels {
		out = append(out, text.Section{
			Text:     l.Text,
			Font:     l.Font,
			Size:     l.Size,
			Color:    l.Color.Vec4(),
			Position: math.NewVec2(l.Position[0], l.Position[1]),
		})
	}
	return out
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
