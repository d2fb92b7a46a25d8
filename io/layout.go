package io

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"render-demo/core"
	"render-demo/math"
)

// ErrLayout is returned for a scene layout that decodes but makes no
// sense.
var ErrLayout = errors.New("invalid layout")

// Vec3 is a YAML [x, y, z] sequence.
type Vec3 [3]float32

func (v Vec3) Vec3() math.Vec3 { return math.NewVec3(v[0], v[1], v[2]) }

// Vec4 is a YAML [r, g, b, a] sequence.
type Vec4 [4]float32

func (v Vec4) Vec4() math.Vec4 { return math.NewVec4(v[0], v[1], v[2], v[3]) }

// Shape selects the geometry of an entity.
type Shape int

const (
	ShapeCube Shape = iota
	ShapePlane
	ShapeSphere
	ShapeTorus
	ShapeModel
)

var shapeNames = [...]string{"cube", "plane", "sphere", "torus", "model"}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapeNames[s]
}

func (s Shape) MarshalYAML() (any, error) { return s.String(), nil }

func (s *Shape) UnmarshalYAML(n *yaml.Node) error {
	var name string
	if err := n.Decode(&name); err != nil {
		return err
	}
	for i, sn := range shapeNames {
		if sn == name {
			*s = Shape(i)
			return nil
		}
	}
	return fmt.Errorf("line %d: unknown shape %q", n.Line, name)
}

// Layout is the scene description read from scene.yaml.
type Layout struct {
	Camera   CameraLayout   `yaml:"camera"`
	Lights   LightsLayout   `yaml:"lights"`
	Skybox   []string       `yaml:"skybox"`
	Fonts    []string       `yaml:"fonts"`
	Labels   []LabelLayout  `yaml:"labels"`
	Entities []EntityLayout `yaml:"entities"`
}

type CameraLayout struct {
	Position Vec3 `yaml:"position"`
	Target   Vec3 `yaml:"target"`
}

type LightsLayout struct {
	Directional []DirLightLayout   `yaml:"directional"`
	Point       []PointLightLayout `yaml:"point"`
	Spot        []SpotLightLayout  `yaml:"spot"`
	// Flashlight follows the camera when set. Position and direction are
	// ignored.
	Flashlight *SpotLightLayout `yaml:"flashlight"`
}

type DirLightLayout struct {
	Direction Vec3 `yaml:"direction"`
	Ambient   Vec3 `yaml:"ambient"`
	Diffuse   Vec3 `yaml:"diffuse"`
	Specular  Vec3 `yaml:"specular"`
}

type PointLightLayout struct {
	Position Vec3 `yaml:"position"`
	Ambient  Vec3 `yaml:"ambient"`
	Diffuse  Vec3 `yaml:"diffuse"`
	Specular Vec3 `yaml:"specular"`
}

// SpotLightLayout angles are in degrees.
type SpotLightLayout struct {
	Position  Vec3    `yaml:"position"`
	Direction Vec3    `yaml:"direction"`
	Inner     float32 `yaml:"inner"`
	Outer     float32 `yaml:"outer"`
	Diffuse   Vec3    `yaml:"diffuse"`
	Specular  Vec3    `yaml:"specular"`
}

type MaterialLayout struct {
	Diffuse   string  `yaml:"diffuse"`
	Specular  string  `yaml:"specular"`
	Shininess float32 `yaml:"shininess"`
}

// EntityLayout places one drawable. Size is length, width and height for
// cubes and planes; Radius applies to spheres and tori. Rotation is Euler
// degrees; Spin turns the entity about Y in degrees per second.
type EntityLayout struct {
	Name        string          `yaml:"name"`
	Shape       Shape           `yaml:"shape"`
	Model       string          `yaml:"model"`
	Size        Vec3            `yaml:"size"`
	Radius      float32         `yaml:"radius"`
	Material    *MaterialLayout `yaml:"material"`
	Position    Vec3            `yaml:"position"`
	Rotation    Vec3            `yaml:"rotation"`
	Scale       *Vec3           `yaml:"scale"`
	Outlined    bool            `yaml:"outlined"`
	Transparent bool            `yaml:"transparent"`
	Spin        float32         `yaml:"spin"`
}

// Transform composes scale, rotation and translation for the row-vector
// convention.
func (e EntityLayout) Transform() math.Mat4 {
	t := core.NewTransform()
	t.Position = e.Position.Vec3()
	t.Rotation = math.NewVec3(math.Radians(e.Rotation[0]), math.Radians(e.Rotation[1]), math.Radians(e.Rotation[2]))
	if e.Scale != nil {
		t.Scale = e.Scale.Vec3()
	}
	return t.GetMatrix()
}

type LabelLayout struct {
	Text     string     `yaml:"text"`
	Font     string     `yaml:"font"`
	Size     float32    `yaml:"size"`
	Color    Vec4       `yaml:"color"`
	Position [2]float32 `yaml:"position"`
}

// LoadLayout decodes the layout at path. Unknown keys are errors, and
// every file path in it is made relative to the layout's directory.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	l, err := DecodeLayout(data)
	if err != nil {
		return Layout{}, fmt.Errorf("layout %s: %w", path, err)
	}
	l.resolve(filepath.Dir(path))
	return l, nil
}

// DecodeLayout decodes and validates layout YAML without touching paths.
func DecodeLayout(data []byte) (Layout, error) {
	var l Layout
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil {
		return Layout{}, err
	}
	return l, l.Validate()
}

func (l Layout) Validate() error {
	if n := len(l.Skybox); n != 0 && n != 6 {
		return fmt.Errorf("%w: skybox needs 6 faces, got %d", ErrLayout, n)
	}
	for i, e := range l.Entities {
		switch {
		case e.Shape == ShapeModel && e.Model == "":
			return fmt.Errorf("%w: entity %d (%s): model shape without a model directory", ErrLayout, i, e.Name)
		case e.Shape != ShapeModel && e.Model != "":
			return fmt.Errorf("%w: entity %d (%s): model set on a %s", ErrLayout, i, e.Name, e.Shape)
		case e.Shape == ShapeModel && e.Material != nil:
			return fmt.Errorf("%w: entity %d (%s): models carry their own materials", ErrLayout, i, e.Name)
		}
	}
	for i, lbl := range l.Labels {
		if lbl.Size <= 0 {
			return fmt.Errorf("%w: label %d: size %g", ErrLayout, i, lbl.Size)
		}
	}
	return nil
}

func (l *Layout) resolve(base string) {
	join := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	for i := range l.Skybox {
		join(&l.Skybox[i])
	}
	for i := range l.Fonts {
		join(&l.Fonts[i])
	}
	for i := range l.Entities {
		e := &l.Entities[i]
		join(&e.Model)
		if e.Material != nil {
			join(&e.Material.Diffuse)
			join(&e.Material.Specular)
		}
	}
}
