// Package scene owns everything drawn in a frame: camera, lights,
// entities, skybox and the post-process capture, and runs the passes in
// order.
package scene

import (
	"errors"
	"fmt"
	"log/slog"

	"render-demo/internal/opengl"
	"render-demo/math"
	"render-demo/shader"
)

// ErrTooManyLights is returned when a light collection is already at
// shader.ArrayCapacity.
var ErrTooManyLights = errors.New("too many lights")

// CameraBlockName is the uniform block every scene program shares.
const CameraBlockName = "CameraBlock"

// Sources are the GLSL bodies of the scene programs, without preamble.
type Sources struct {
	Lighting shader.Source
	Outline  shader.Source
	Skybox   shader.Source
	Screen   shader.Source
}

// Overlay is drawn last, straight to the screen.
type Overlay interface {
	Draw(width, height int)
}

type Options struct {
	// Header is the #version line prepended to the type preamble.
	Header  string
	Sources Sources
	Width   int
	Height  int
	Camera  *Camera
	// PostProcess routes the frame through a ScreenCapture.
	PostProcess  bool
	OutlineScale float32
	OutlineColor math.Vec3
	ClearColor   [4]float32
	Logger       *slog.Logger
}

// FrameState is what a single Draw needs besides the scene itself.
type FrameState struct {
	Camera *Camera
	Effect Effect
}

type programs struct {
	lighting, outline, skybox, screen *shader.Program
}

func (p programs) each(fn func(*shader.Program)) {
	for _, prog := range []*shader.Program{p.lighting, p.outline, p.skybox, p.screen} {
		if prog != nil {
			fn(prog)
		}
	}
}

type Scene struct {
	Entities []*Entity
	Skybox   *Skybox
	Overlays []Overlay

	OutlineScale float32
	OutlineColor math.Vec3
	ClearColor   [4]float32

	dev      opengl.Device
	log      *slog.Logger
	registry *shader.Registry
	header   string
	progs    programs

	camera      *Camera
	bindings    shader.Bindings
	cameraBlock *shader.UniformBlock[CameraBlock]
	capture     *ScreenCapture

	dirLights   []DirLight
	pointLights []PointLight
	spotLights  []SpotLight
	flashlight  int
	// diffuse and specular restored when the flashlight is switched on
	flashlightColor [2]math.Vec3

	width, height int
}

// New compiles the scene programs and allocates the shared camera block
// and, if requested, the screen capture.
func New(dev opengl.Device, opts Options) (*Scene, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OutlineScale == 0 {
		opts.OutlineScale = 1.05
	}
	s := &Scene{
		OutlineScale: opts.OutlineScale,
		OutlineColor: opts.OutlineColor,
		ClearColor:   opts.ClearColor,
		dev:          dev,
		log:          opts.Logger,
		registry:     NewRegistry(),
		header:       opts.Header,
		camera:       opts.Camera,
		flashlight:   -1,
		width:        opts.Width,
		height:       opts.Height,
	}

	progs, err := s.compile(opts.Sources)
	if err != nil {
		return nil, err
	}
	s.progs = progs

	s.cameraBlock, err = shader.NewUniformBlock[CameraBlock](dev, s.bindings.Next())
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("camera block: %w", err)
	}

	if opts.PostProcess {
		s.capture, err = NewScreenCapture(dev, s.progs.screen, opts.Width, opts.Height)
		if err != nil {
			s.Release()
			return nil, fmt.Errorf("screen capture: %w", err)
		}
	}

	s.init()
	s.log.Info("scene ready", "width", opts.Width, "height", opts.Height, "post_process", opts.PostProcess)
	return s, nil
}

func (s *Scene) compile(src Sources) (programs, error) {
	preamble := s.registry.Preamble(s.header)
	var p programs
	for _, c := range []struct {
		dst **shader.Program
		src shader.Source
	}{
		{&p.lighting, src.Lighting},
		{&p.outline, src.Outline},
		{&p.skybox, src.Skybox},
		{&p.screen, src.Screen},
	} {
		prog, err := shader.NewProgram(s.dev, preamble, c.src)
		if err != nil {
			p.each((*shader.Program).Delete)
			return programs{}, err
		}
		*c.dst = prog
	}
	return p, nil
}

func (s *Scene) init() {
	s.dev.Enable(opengl.DepthTest)
	s.dev.DepthFunc(opengl.Less)
	s.dev.Enable(opengl.StencilTest)
	s.dev.StencilOp(opengl.Keep, opengl.Keep, opengl.Replace)
	s.dev.Enable(opengl.CullFace)
	s.dev.Viewport(0, 0, int32(s.width), int32(s.height))
}

// Add appends entities in draw order.
func (s *Scene) Add(entities ...*Entity) { s.Entities = append(s.Entities, entities...) }

func (s *Scene) AddDirLight(l DirLight) error {
	if len(s.dirLights) >= shader.ArrayCapacity {
		return fmt.Errorf("directional light %d: %w", len(s.dirLights)+1, ErrTooManyLights)
	}
	s.dirLights = append(s.dirLights, l)
	return nil
}

func (s *Scene) AddPointLight(l PointLight) error {
	if len(s.pointLights) >= shader.ArrayCapacity {
		return fmt.Errorf("point light %d: %w", len(s.pointLights)+1, ErrTooManyLights)
	}
	s.pointLights = append(s.pointLights, l)
	return nil
}

func (s *Scene) AddSpotLight(l SpotLight) error {
	if len(s.spotLights) >= shader.ArrayCapacity {
		return fmt.Errorf("spot light %d: %w", len(s.spotLights)+1, ErrTooManyLights)
	}
	s.spotLights = append(s.spotLights, l)
	return nil
}

// AddFlashlight adds a spot light that Update keeps at the camera,
// pointing where it looks.
func (s *Scene) AddFlashlight(l SpotLight) error {
	if err := s.AddSpotLight(l); err != nil {
		return err
	}
	s.flashlight = len(s.spotLights) - 1
	s.flashlightColor = [2]math.Vec3{l.Diffuse, l.Specular}
	return nil
}

// SetFlashlight switches the flashlight on or off by swapping its colors
// with zero.
func (s *Scene) SetFlashlight(on bool) {
	if s.flashlight < 0 {
		return
	}
	l := &s.spotLights[s.flashlight]
	if on {
		l.Diffuse, l.Specular = s.flashlightColor[0], s.flashlightColor[1]
	} else {
		l.Diffuse, l.Specular = math.Vec3Zero, math.Vec3Zero
	}
}

func (s *Scene) Lights() ([]DirLight, []PointLight, []SpotLight) {
	return s.dirLights, s.pointLights, s.spotLights
}

// Update runs animation hooks and moves the flashlight.
func (s *Scene) Update(elapsed float32, camera *Camera) {
	for _, e := range s.Entities {
		if e.Animate != nil {
			e.Transform = e.Animate(elapsed)
		}
	}
	if s.flashlight >= 0 && camera != nil {
		s.spotLights[s.flashlight].Position = camera.Position
		s.spotLights[s.flashlight].Direction = camera.Front()
	}
}

// Draw renders one frame.
func (s *Scene) Draw(frame FrameState) {
	cam := frame.Camera
	if cam == nil {
		cam = s.camera
	}
	s.cameraBlock.Upload(cam.Block())

	if s.capture != nil {
		s.capture.Record()
	}
	s.dev.ClearColor(s.ClearColor[0], s.ClearColor[1], s.ClearColor[2], s.ClearColor[3])
	s.dev.StencilMask(0xFF)
	s.dev.Clear(opengl.ColorBufferBit | opengl.DepthBufferBit | opengl.StencilBufferBit)

	s.drawOpaque()
	s.drawOutlines()
	s.drawTransparent(cam.Position)
	if s.Skybox != nil {
		b := s.activate(s.progs.skybox)
		s.Skybox.Draw(b, cam.GetViewMatrix())
	}

	if s.capture != nil {
		s.capture.Replay(frame.Effect)
	}
	for _, o := range s.Overlays {
		o.Draw(s.width, s.height)
	}
}

// activate makes p current and associates the camera block with it.
func (s *Scene) activate(p *shader.Program) *shader.ActiveBinding {
	b := p.Activate()
	b.BindUniform(CameraBlockName, s.cameraBlock)
	return b
}

func (s *Scene) activateLighting() *shader.ActiveBinding {
	b := s.activate(s.progs.lighting)
	b.Bind(DirLightsUniform, shader.ArrayOf(s.dirLights))
	b.Bind(PointLightsUniform, shader.ArrayOf(s.pointLights))
	b.Bind(SpotLightsUniform, shader.ArrayOf(s.spotLights))
	return b
}

func (s *Scene) drawOpaque() {
	b := s.activateLighting()
	for _, e := range s.Entities {
		if e.Transparent {
			continue
		}
		if e.Outlined {
			s.dev.StencilFunc(opengl.Always, 1, 0xFF)
			s.dev.StencilOp(opengl.Keep, opengl.Keep, opengl.Replace)
			s.dev.StencilMask(0xFF)
		} else {
			s.dev.StencilMask(0x00)
		}
		b.Bind("model", shader.Mat4(e.Transform))
		e.Drawable.Draw(b)
	}
	s.dev.StencilMask(0xFF)
}

// drawOutlines draws a scaled single-colour copy of each outlined opaque
// entity wherever its stencil bit is not set.
func (s *Scene) drawOutlines() {
	var outlined []*Entity
	for _, e := range s.Entities {
		if e.Outlined && !e.Transparent {
			outlined = append(outlined, e)
		}
	}
	if len(outlined) == 0 {
		return
	}

	b := s.activate(s.progs.outline)
	b.Bind("outline_color", shader.Vec3(s.OutlineColor))
	s.dev.StencilFunc(opengl.Notequal, 1, 0xFF)
	s.dev.StencilMask(0x00)
	s.dev.Disable(opengl.DepthTest)

	scale := math.Mat4Scale(math.NewVec3(s.OutlineScale, s.OutlineScale, s.OutlineScale))
	for _, e := range outlined {
		b.Bind("model", shader.Mat4(scale.Mul(e.Transform)))
		e.Drawable.Draw(b)
	}

	s.dev.StencilMask(0xFF)
	s.dev.StencilFunc(opengl.Always, 0, 0xFF)
	s.dev.Enable(opengl.DepthTest)
}

func (s *Scene) drawTransparent(eye math.Vec3) {
	var sorted []*Entity
	for _, e := range s.Entities {
		if e.Transparent {
			sorted = append(sorted, e)
		}
	}
	if len(sorted) == 0 {
		return
	}
	SortBackToFront(sorted, eye)

	s.dev.Enable(opengl.Blend)
	s.dev.BlendFunc(opengl.SrcAlpha, opengl.OneMinusSrcAlpha)
	s.dev.Disable(opengl.CullFace)
	s.dev.StencilMask(0x00)

	b := s.activateLighting()
	for _, e := range sorted {
		b.Bind("model", shader.Mat4(e.Transform))
		e.Drawable.Draw(b)
	}

	s.dev.StencilMask(0xFF)
	s.dev.Enable(opengl.CullFace)
	s.dev.Disable(opengl.Blend)
}

// Resize follows a framebuffer size change. Zero sizes are ignored.
func (s *Scene) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	s.width, s.height = width, height
	s.dev.Viewport(0, 0, int32(width), int32(height))
	if s.camera != nil {
		s.camera.SetAspect(float32(width) / float32(height))
	}
	if s.capture != nil {
		if err := s.capture.Resize(width, height); err != nil {
			return fmt.Errorf("resize screen capture: %w", err)
		}
	}
	return nil
}

func (s *Scene) Size() (int, int) { return s.width, s.height }

// ReloadPrograms recompiles every program from src. On failure the
// current programs stay in use.
func (s *Scene) ReloadPrograms(src Sources) error {
	next, err := s.compile(src)
	if err != nil {
		s.log.Warn("shader reload failed, keeping previous programs", "err", err)
		return err
	}
	s.progs.each((*shader.Program).Delete)
	s.progs = next
	if s.capture != nil {
		s.capture.SetProgram(next.screen)
	}
	s.log.Info("shaders reloaded")
	return nil
}

// Release frees every GPU object the scene owns, including entity
// drawables that can be released.
func (s *Scene) Release() {
	for _, e := range s.Entities {
		if r, ok := e.Drawable.(interface{ Release() }); ok {
			r.Release()
		}
	}
	s.Entities = nil
	for _, o := range s.Overlays {
		if r, ok := o.(interface{ Release() }); ok {
			r.Release()
		}
	}
	s.Overlays = nil
	if s.Skybox != nil {
		s.Skybox.Release()
		s.Skybox = nil
	}
	if s.capture != nil {
		s.capture.Release()
		s.capture = nil
	}
	if s.cameraBlock != nil {
		s.bindings.Release(s.cameraBlock.Binding())
		s.cameraBlock.Delete()
		s.cameraBlock = nil
	}
	s.progs.each((*shader.Program).Delete)
	s.progs = programs{}
}
