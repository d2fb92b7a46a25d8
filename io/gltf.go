package io

import (
	"fmt"
	"image"
	"image/color"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"render-demo/core"
	"render-demo/math"
	"render-demo/textures"
)

// DecodeGLTF flattens every triangle primitive of doc into a mesh. Node
// transforms are not applied; models are expected in their rest pose.
// Base-colour textures come from buffer views, data URIs or files that
// res already decoded. Metallic-roughness is approximated to Phong.
func DecodeGLTF(doc *gltf.Document, res Resolver) (core.ModelData, error) {
	data := core.ModelData{Materials: map[string]core.MaterialData{}}

	images := make([]image.Image, len(doc.Images))
	for i, img := range doc.Images {
		decoded, err := gltfImage(doc, img, res)
		if err != nil {
			return core.ModelData{}, fmt.Errorf("image %d: %w", i, err)
		}
		images[i] = decoded
	}

	matNames := make([]string, len(doc.Materials))
	for i, gm := range doc.Materials {
		md := core.MaterialData{Name: gm.Name, Shininess: 32}
		if md.Name == "" {
			md.Name = fmt.Sprintf("material%d", i)
		}
		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			f := pbr.BaseColorFactorOrDefault()
			md.Diffuse = solid(float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3]))
			if pbr.BaseColorTexture != nil {
				idx := pbr.BaseColorTexture.Index
				if idx < len(doc.Textures) && doc.Textures[idx].Source != nil {
					md.Diffuse = images[*doc.Textures[idx].Source]
				}
			}
			roughness := float32(pbr.RoughnessFactorOrDefault())
			metallic := float32(pbr.MetallicFactorOrDefault())
			md.Shininess = (1-roughness)*(1-roughness)*128 + 1
			s := metallic * 0.7
			md.Specular = solid(s, s, s, 1)
		}
		matNames[i] = md.Name
		data.Materials[md.Name] = md
	}

	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			mesh, err := gltfPrimitive(doc, prim)
			if err != nil {
				return core.ModelData{}, fmt.Errorf("mesh %d primitive %d: %w", mi, pi, err)
			}
			if prim.Material != nil && *prim.Material < len(matNames) {
				mesh.Material = matNames[*prim.Material]
			}
			data.Meshes = append(data.Meshes, mesh)
		}
	}
	if len(data.Meshes) == 0 {
		return core.ModelData{}, fmt.Errorf("no meshes")
	}
	return data, nil
}

func gltfImage(doc *gltf.Document, img *gltf.Image, res Resolver) (image.Image, error) {
	var raw []byte
	var err error
	switch {
	case img.BufferView != nil:
		raw, err = modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
	case img.IsEmbeddedResource():
		raw, err = img.MarshalData()
	case img.URI != "":
		return res.Image(img.URI)
	default:
		return nil, fmt.Errorf("no image source")
	}
	if err != nil {
		return nil, err
	}
	decoded, _, err := textures.Decode(raw, textures.Auto)
	return decoded, err
}

func gltfPrimitive(doc *gltf.Document, prim *gltf.Primitive) (core.MeshData, error) {
	if prim.Mode != gltf.PrimitiveTriangles {
		return core.MeshData{}, fmt.Errorf("primitive mode %d is not triangles", prim.Mode)
	}
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return core.MeshData{}, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return core.MeshData{}, fmt.Errorf("positions: %w", err)
	}
	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return core.MeshData{}, fmt.Errorf("normals: %w", err)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return core.MeshData{}, fmt.Errorf("texcoords: %w", err)
		}
	}

	mesh := core.MeshData{Vertices: make([]core.Vertex, len(positions))}
	for i, p := range positions {
		v := core.Vertex{Position: math.NewVec3(p[0], p[1], p[2]), Normal: math.Vec3Up}
		if i < len(normals) {
			v.Normal = math.NewVec3(normals[i][0], normals[i][1], normals[i][2])
		}
		if i < len(uvs) {
			v.UV = math.NewVec2(uvs[i][0], uvs[i][1])
		}
		mesh.Vertices[i] = v
	}

	if prim.Indices != nil {
		if mesh.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return core.MeshData{}, fmt.Errorf("indices: %w", err)
		}
	} else {
		mesh.Indices = make([]uint32, len(positions))
		for i := range mesh.Indices {
			mesh.Indices[i] = uint32(i)
		}
	}
	return mesh, nil
}

// solid is a 1x1 image of one colour, for factors without a texture.
func solid(r, g, b, a float32) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	to8 := func(f float32) uint8 { return uint8(math.Clamp(f, 0, 1)*255 + 0.5) }
	img.SetNRGBA(0, 0, color.NRGBA{R: to8(r), G: to8(g), B: to8(b), A: to8(a)})
	return img
}
