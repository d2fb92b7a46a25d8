package io

import (
	"bufio"
	"fmt"
	"image"
	stdio "io"
	"strconv"
	"strings"

	"render-demo/core"
	"render-demo/math"
)

// Resolver finds the files an OBJ or MTL file refers to. Files implements
// it over a loaded model directory.
type Resolver interface {
	Open(name string) (stdio.Reader, error)
	Image(name string) (image.Image, error)
}

// ParseOBJ reads a Wavefront OBJ file. Each "o", "g" or "usemtl" starts a
// new mesh; v/vt/vn triplets are shared within a mesh and faces are
// fan-triangulated. Material libraries are resolved through res.
func ParseOBJ(r stdio.Reader, name string, res Resolver) (core.ModelData, error) {
	data := core.ModelData{Name: name, Materials: map[string]core.MaterialData{}}

	var (
		positions []math.Vec3
		normals   []math.Vec3
		uvs       []math.Vec2
		cur       core.MeshData
		seen      = map[vertexKey]uint32{}
	)
	flush := func() {
		if len(cur.Indices) > 0 {
			data.Meshes = append(data.Meshes, cur)
		}
		cur = core.MeshData{Material: cur.Material}
		seen = map[vertexKey]uint32{}
	}

	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
			continue
		}
		switch parts[0] {
		case "v", "vn":
			v, err := parseVec3(parts[1:])
			if err != nil {
				return core.ModelData{}, fmt.Errorf("%s:%d: %w", name, line, err)
			}
			if parts[0] == "v" {
				positions = append(positions, v)
			} else {
				normals = append(normals, v)
			}
		case "vt":
			f, err := parseFloats(parts[1:], 2)
			if err != nil {
				return core.ModelData{}, fmt.Errorf("%s:%d: %w", name, line, err)
			}
			uvs = append(uvs, math.NewVec2(f[0], f[1]))
		case "f":
			if len(parts) < 4 {
				return core.ModelData{}, fmt.Errorf("%s:%d: face needs three vertices", name, line)
			}
			face := make([]uint32, 0, len(parts)-1)
			for _, spec := range parts[1:] {
				key, err := resolveVertex(spec, len(positions), len(uvs), len(normals))
				if err != nil {
					return core.ModelData{}, fmt.Errorf("%s:%d: %w", name, line, err)
				}
				if idx, ok := seen[key]; ok {
					face = append(face, idx)
					continue
				}
				idx := uint32(len(cur.Vertices))
				cur.Vertices = append(cur.Vertices, key.vertex(positions, uvs, normals))
				seen[key] = idx
				face = append(face, idx)
			}
			for i := 2; i < len(face); i++ {
				cur.Indices = append(cur.Indices, face[0], face[i-1], face[i])
			}
		case "o", "g":
			flush()
		case "usemtl":
			flush()
			if len(parts) > 1 {
				cur.Material = parts[1]
			}
		case "mtllib":
			for _, lib := range parts[1:] {
				mr, err := res.Open(lib)
				if err != nil {
					return core.ModelData{}, err
				}
				mats, err := ParseMTL(mr, res)
				if err != nil {
					return core.ModelData{}, fmt.Errorf("%s: %w", lib, err)
				}
				for k, m := range mats {
					data.Materials[k] = m
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return core.ModelData{}, err
	}
	flush()

	if len(data.Meshes) == 0 {
		return core.ModelData{}, fmt.Errorf("%s: no faces", name)
	}
	for _, m := range data.Meshes {
		if _, ok := data.Materials[m.Material]; m.Material != "" && !ok {
			return core.ModelData{}, fmt.Errorf("%s: material %q not defined", name, m.Material)
		}
	}
	return data, nil
}

// ParseMTL reads newmtl, Ns, map_Kd and map_Ks statements. Texture maps
// must name images that res already decoded.
func ParseMTL(r stdio.Reader, res Resolver) (map[string]core.MaterialData, error) {
	out := map[string]core.MaterialData{}
	var cur *core.MaterialData
	commit := func() {
		if cur != nil {
			out[cur.Name] = *cur
		}
	}

	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		parts := strings.Fields(sc.Text())
		if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
			continue
		}
		if parts[0] == "newmtl" {
			if len(parts) < 2 {
				return nil, fmt.Errorf("line %d: newmtl without a name", line)
			}
			commit()
			cur = &core.MaterialData{Name: parts[1]}
			continue
		}
		if cur == nil {
			continue
		}
		switch parts[0] {
		case "Ns":
			f, err := parseFloats(parts[1:], 1)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			cur.Shininess = f[0]
		case "map_Kd", "map_Ks":
			if len(parts) < 2 {
				return nil, fmt.Errorf("line %d: %s without a file", line, parts[0])
			}
			// Options such as -bm come first; the file name is last.
			img, err := res.Image(parts[len(parts)-1])
			if err != nil {
				return nil, fmt.Errorf("material %s: %w", cur.Name, err)
			}
			if parts[0] == "map_Kd" {
				cur.Diffuse = img
			} else {
				cur.Specular = img
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	commit()
	return out, nil
}

// faceVertex resolves "v", "v/vt", "v//vn" or "v/vt/vn". Negative indices
// count back from the latest element.
// vertexKey is a face corner with every index made absolute and zero
// based; -1 marks an absent texcoord or normal.
type vertexKey struct {
	pos, uv, normal int
}

func resolveVertex(spec string, positions, uvs, normals int) (vertexKey, error) {
	k := vertexKey{uv: -1, normal: -1}
	parts := strings.Split(spec, "/")

	var err error
	if k.pos, err = objIndex(parts[0], positions); err != nil {
		return k, fmt.Errorf("vertex %q: %w", spec, err)
	}
	if len(parts) > 1 && parts[1] != "" {
		if k.uv, err = objIndex(parts[1], uvs); err != nil {
			return k, fmt.Errorf("texcoord %q: %w", spec, err)
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if k.normal, err = objIndex(parts[2], normals); err != nil {
			return k, fmt.Errorf("normal %q: %w", spec, err)
		}
	}
	return k, nil
}

func (k vertexKey) vertex(positions []math.Vec3, uvs []math.Vec2, normals []math.Vec3) core.Vertex {
	v := core.Vertex{Position: positions[k.pos]}
	if k.uv >= 0 {
		v.UV = uvs[k.uv]
	}
	if k.normal >= 0 {
		v.Normal = normals[k.normal]
	}
	return v
}

func objIndex(s string, n int) (int, error) {
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if idx < 0 {
		idx += n + 1
	}
	if idx < 1 || idx > n {
		return 0, fmt.Errorf("index %s out of range 1..%d", s, n)
	}
	return idx - 1, nil
}

func parseFloats(fields []string, n int) ([]float32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i := range out {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

func parseVec3(fields []string) (math.Vec3, error) {
	f, err := parseFloats(fields, 3)
	if err != nil {
		return math.Vec3{}, err
	}
	return math.NewVec3(f[0], f[1], f[2]), nil
}
