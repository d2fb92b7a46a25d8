package io

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	stdio "io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/qmuntal/gltf"
	"golang.org/x/sync/errgroup"

	"render-demo/core"
	"render-demo/textures"
)

// ErrNoModel is returned when a directory has no <dirname>.obj, .gltf or
// .glb file.
var ErrNoModel = errors.New("no model file")

// Files is the content of a model directory keyed by manifest name.
// Image files are decoded while loading and also kept in Images.
type Files struct {
	Dir    string
	Raw    map[string][]byte
	Images map[string]image.Image
}

// Open returns a reader over a loaded file.
func (f Files) Open(name string) (stdio.Reader, error) {
	data, ok := f.Raw[filepath.ToSlash(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Join(f.Dir, name), fs.ErrNotExist)
	}
	return bytes.NewReader(data), nil
}

// Image returns a decoded image by manifest name.
func (f Files) Image(name string) (image.Image, error) {
	img, ok := f.Images[filepath.ToSlash(name)]
	if !ok {
		return nil, fmt.Errorf("image %s: %w", filepath.Join(f.Dir, name), fs.ErrNotExist)
	}
	return img, nil
}

// LoadDir reads the manifest of dir and every file it lists. Reads and
// image decodes run concurrently; the first failure cancels the rest and
// nothing is returned.
func LoadDir(ctx context.Context, dir string) (Files, error) {
	mf, err := os.Open(filepath.Join(dir, ManifestName))
	if err != nil {
		return Files{}, fmt.Errorf("model %s: %w", dir, err)
	}
	names, err := ReadManifest(mf)
	mf.Close()
	if err != nil {
		return Files{}, fmt.Errorf("%s: %w", filepath.Join(dir, ManifestName), err)
	}

	files := Files{
		Dir:    dir,
		Raw:    make(map[string][]byte, len(names)),
		Images: map[string]image.Image{},
	}
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, filepath.FromSlash(name))
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var img image.Image
			if textures.IsImage(name) {
				if img, _, err = textures.Decode(data, textures.FormatOf(name)); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			mu.Lock()
			defer mu.Unlock()
			files.Raw[name] = data
			if img != nil {
				files.Images[name] = img
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Files{}, err
	}
	return files, nil
}

// LoadModel loads dir and decodes the model file named after it.
func LoadModel(ctx context.Context, dir string) (core.ModelData, error) {
	files, err := LoadDir(ctx, dir)
	if err != nil {
		return core.ModelData{}, err
	}
	name := filepath.Base(filepath.Clean(dir))
	for _, ext := range []string{".obj", ".gltf", ".glb"} {
		file := name + ext
		if _, ok := files.Raw[file]; !ok {
			continue
		}
		if ext == ".obj" {
			r, _ := files.Open(file)
			return ParseOBJ(r, name, files)
		}
		doc, err := gltf.Open(filepath.Join(dir, file))
		if err != nil {
			return core.ModelData{}, fmt.Errorf("gltf %s: %w", file, err)
		}
		data, err := DecodeGLTF(doc, files)
		if err != nil {
			return core.ModelData{}, fmt.Errorf("gltf %s: %w", file, err)
		}
		data.Name = name
		return data, nil
	}
	return core.ModelData{}, fmt.Errorf("%w in %s (want %s.obj, .gltf or .glb)", ErrNoModel, dir, name)
}
