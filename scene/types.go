package scene

import (
	"render-demo/math"
	"render-demo/shader"
)

// CameraBlock is the per-frame camera data shared by every program
// through one uniform buffer.
type CameraBlock struct {
	ViewPos    math.Vec3
	View       math.Mat4
	Projection math.Mat4
}

func (CameraBlock) Std140Size() int { return 144 }

func (c CameraBlock) AppendStd140(dst []byte) []byte {
	return shader.NewStd140Writer(dst).Vec3(c.ViewPos).Mat4(c.View).Mat4(c.Projection).Bytes()
}

// Names the shaders use for the light collections.
const (
	DirLightsUniform   = "dir_lights"
	PointLightsUniform = "point_lights"
	SpotLightsUniform  = "spot_lights"
)

var (
	dirLightType = shader.TypeDef{Name: "DirLight", Fields: []shader.Field{
		{Name: "direction", Kind: shader.Vec3Field},
		{Name: "ambient", Kind: shader.Vec3Field},
		{Name: "diffuse", Kind: shader.Vec3Field},
		{Name: "specular", Kind: shader.Vec3Field},
	}}
	pointLightType = shader.TypeDef{Name: "PointLight", Fields: []shader.Field{
		{Name: "position", Kind: shader.Vec3Field},
		{Name: "ambient", Kind: shader.Vec3Field},
		{Name: "diffuse", Kind: shader.Vec3Field},
		{Name: "specular", Kind: shader.Vec3Field},
		{Name: "constant", Kind: shader.FloatField},
		{Name: "linear", Kind: shader.FloatField},
		{Name: "quadratic", Kind: shader.FloatField},
	}}
	spotLightType = shader.TypeDef{Name: "SpotLight", Fields: []shader.Field{
		{Name: "position", Kind: shader.Vec3Field},
		{Name: "direction", Kind: shader.Vec3Field},
		{Name: "inner_cut_off", Kind: shader.FloatField},
		{Name: "outer_cut_off", Kind: shader.FloatField},
		{Name: "diffuse", Kind: shader.Vec3Field},
		{Name: "specular", Kind: shader.Vec3Field},
		{Name: "constant", Kind: shader.FloatField},
		{Name: "linear", Kind: shader.FloatField},
		{Name: "quadratic", Kind: shader.FloatField},
	}}
	materialType = shader.TypeDef{Name: "Material", Fields: []shader.Field{
		{Name: "diffuse", Kind: shader.Sampler2DField},
		{Name: "specular", Kind: shader.Sampler2DField},
		{Name: "shininess", Kind: shader.FloatField},
	}}
	cameraType = shader.TypeDef{Name: "Camera", Fields: []shader.Field{
		{Name: "view_pos", Kind: shader.Vec3Field},
		{Name: "view", Kind: shader.Mat4Field},
		{Name: "projection", Kind: shader.Mat4Field},
	}}
	cameraBlockType = shader.TypeDef{Name: "CameraBlock", Block: true, Fields: []shader.Field{
		{Name: "view_pos", Kind: shader.Vec3Field},
		{Name: "view", Kind: shader.Mat4Field},
		{Name: "projection", Kind: shader.Mat4Field},
	}}
)

// NewRegistry returns the table of every type the scene shaders use,
// plus the three light collections.
func NewRegistry() *shader.Registry {
	r := shader.NewRegistry().MustRegister(
		dirLightType, pointLightType, spotLightType,
		materialType, cameraType, cameraBlockType,
	)
	for _, decl := range []struct{ elem, name string }{
		{"DirLight", DirLightsUniform},
		{"PointLight", PointLightsUniform},
		{"SpotLight", SpotLightsUniform},
	} {
		if err := r.ArrayDecl(decl.elem, decl.name); err != nil {
			panic(err)
		}
	}
	return r
}
