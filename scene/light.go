package scene

import (
	"render-demo/math"
	"render-demo/shader"
)

type DirLight struct {
	Direction math.Vec3
	Ambient   math.Vec3
	Diffuse   math.Vec3
	Specular  math.Vec3
}

func (l DirLight) Uniform() shader.UniformValue {
	return shader.Struct(
		shader.Named("direction", shader.Vec3(l.Direction)),
		shader.Named("ambient", shader.Vec3(l.Ambient)),
		shader.Named("diffuse", shader.Vec3(l.Diffuse)),
		shader.Named("specular", shader.Vec3(l.Specular)),
	)
}

// Attenuation is the constant, linear and quadratic falloff terms.
type Attenuation struct {
	Constant  float32
	Linear    float32
	Quadratic float32
}

// Range50 covers roughly fifty units.
var Range50 = Attenuation{Constant: 1, Linear: 0.09, Quadratic: 0.032}

type PointLight struct {
	Position math.Vec3
	Ambient  math.Vec3
	Diffuse  math.Vec3
	Specular math.Vec3
	Attenuation
}

func (l PointLight) Uniform() shader.UniformValue {
	return shader.Struct(
		shader.Named("position", shader.Vec3(l.Position)),
		shader.Named("ambient", shader.Vec3(l.Ambient)),
		shader.Named("diffuse", shader.Vec3(l.Diffuse)),
		shader.Named("specular", shader.Vec3(l.Specular)),
		shader.Named("constant", shader.Float(l.Constant)),
		shader.Named("linear", shader.Float(l.Linear)),
		shader.Named("quadratic", shader.Float(l.Quadratic)),
	)
}

// SpotLight cut-offs are stored as cosines, which is what the fragment
// shader compares against.
type SpotLight struct {
	Position    math.Vec3
	Direction   math.Vec3
	InnerCutOff float32
	OuterCutOff float32
	Diffuse     math.Vec3
	Specular    math.Vec3
	Attenuation
}

// NewSpotLight builds a spot light from cone angles in degrees.
func NewSpotLight(position, direction math.Vec3, inner, outer float32, diffuse, specular math.Vec3) SpotLight {
	return SpotLight{
		Position:    position,
		Direction:   direction,
		InnerCutOff: cosDeg(inner),
		OuterCutOff: cosDeg(outer),
		Diffuse:     diffuse,
		Specular:    specular,
		Attenuation: Range50,
	}
}

func (l SpotLight) Uniform() shader.UniformValue {
	return shader.Struct(
		shader.Named("position", shader.Vec3(l.Position)),
		shader.Named("direction", shader.Vec3(l.Direction)),
		shader.Named("inner_cut_off", shader.Float(l.InnerCutOff)),
		shader.Named("outer_cut_off", shader.Float(l.OuterCutOff)),
		shader.Named("diffuse", shader.Vec3(l.Diffuse)),
		shader.Named("specular", shader.Vec3(l.Specular)),
		shader.Named("constant", shader.Float(l.Constant)),
		shader.Named("linear", shader.Float(l.Linear)),
		shader.Named("quadratic", shader.Float(l.Quadratic)),
	)
}
