package scene

import (
	"github.com/chewxy/math32"

	"render-demo/core"
	"render-demo/math"
	"render-demo/shader"
)

// Input is what the camera reads each frame.
type Input interface {
	Pressed(core.Key) bool
	Sample() (dx, dy float32)
}

// Camera is a free-flying perspective camera. Yaw and pitch are degrees.
type Camera struct {
	Position    math.Vec3
	Up          math.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
	FOV         float32
	Near        float32
	Far         float32

	aspect     float32
	projection math.Mat4
}

// NewCamera places a camera at pos looking at target.
func NewCamera(pos, target math.Vec3, aspect float32) *Camera {
	dir := target.Sub(pos).Normalize()
	c := &Camera{
		Position:    pos,
		Up:          math.Vec3Up,
		Yaw:         math.Degrees(math32.Atan2(dir.Z, dir.X)),
		Pitch:       math.Degrees(math32.Asin(math.Clamp(dir.Y, -1, 1))),
		Speed:       2.5,
		Sensitivity: 0.25,
		FOV:         45,
		Near:        0.1,
		Far:         100,
	}
	c.SetAspect(aspect)
	return c
}

// ApplyConfig copies the tunables from cfg, keeping defaults for zeros.
func (c *Camera) ApplyConfig(cfg core.CameraConfig) {
	if cfg.Speed > 0 {
		c.Speed = cfg.Speed
	}
	if cfg.Sensitivity > 0 {
		c.Sensitivity = cfg.Sensitivity
	}
	if cfg.FOV > 0 {
		c.FOV = cfg.FOV
		c.SetAspect(c.aspect)
	}
}

func (c *Camera) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.aspect = aspect
	c.projection = math.Mat4Perspective(math.Radians(c.FOV), aspect, c.Near, c.Far)
}

func (c *Camera) Aspect() float32 { return c.aspect }

func (c *Camera) Front() math.Vec3 {
	yaw, pitch := math.Radians(c.Yaw), math.Radians(c.Pitch)
	return math.NewVec3(
		math32.Cos(yaw)*math32.Cos(pitch),
		math32.Sin(pitch),
		math32.Sin(yaw)*math32.Cos(pitch),
	)
}

func (c *Camera) Right() math.Vec3 {
	return c.Front().Cross(c.Up).Normalize()
}

func (c *Camera) GetViewMatrix() math.Mat4 {
	return math.Mat4LookAt(c.Position, c.Position.Add(c.Front()), c.Up)
}

func (c *Camera) GetProjectionMatrix() math.Mat4 { return c.projection }

// Update turns the camera by the sampled mouse motion and moves it with
// WASD, Space and LeftShift.
func (c *Camera) Update(dt float32, in Input) {
	dx, dy := in.Sample()
	c.Yaw += dx * c.Sensitivity
	c.Pitch = math.Clamp(c.Pitch-dy*c.Sensitivity, -89, 89)

	step := c.Speed * dt
	move := func(k core.Key, dir math.Vec3) {
		if in.Pressed(k) {
			c.Position = c.Position.Add(dir.Mul(step))
		}
	}
	front, right := c.Front(), c.Right()
	move(core.KeyW, front)
	move(core.KeyS, front.Negate())
	move(core.KeyA, right.Negate())
	move(core.KeyD, right)
	move(core.KeySpace, c.Up)
	move(core.KeyLeftShift, c.Up.Negate())
}

// Block is the camera's image in the shared uniform buffer.
func (c *Camera) Block() CameraBlock {
	return CameraBlock{ViewPos: c.Position, View: c.GetViewMatrix(), Projection: c.projection}
}

// Uniform binds the camera as loose camera.* uniforms for programs that
// do not use the block.
func (c *Camera) Uniform() shader.UniformValue {
	return shader.Struct(
		shader.Named("view_pos", shader.Vec3(c.Position)),
		shader.Named("view", shader.Mat4(c.GetViewMatrix())),
		shader.Named("projection", shader.Mat4(c.projection)),
	)
}

func cosDeg(deg float32) float32 { return math32.Cos(math.Radians(deg)) }
