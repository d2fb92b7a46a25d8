// Package shader compiles GLSL programs and binds host values to their
// uniforms. Struct and block declarations come from a Registry so the
// host and shader layouts are generated from one table.
package shader

import (
	"fmt"
	"log/slog"

	"render-demo/internal/opengl"
)

// Platform headers placed ahead of the type declarations.
const (
	HeaderCore = "#version 330 core"
	HeaderES   = "#version 300 es\nprecision highp float;"
)

// Header picks the version line for a profile name from the config.
func Header(profile string) string {
	if profile == "es" {
		return HeaderES
	}
	return HeaderCore
}

// CompileError carries the driver log of a stage that failed to compile.
type CompileError struct {
	Stage string
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s shader: %s", e.Stage, e.Log)
}

// LinkError carries the driver log of a failed link.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string { return "link program: " + e.Log }

func stageName(kind opengl.Enum) string {
	switch kind {
	case opengl.VertexShader:
		return "vertex"
	case opengl.FragmentShader:
		return "fragment"
	}
	return fmt.Sprintf("stage(%#x)", uint32(kind))
}

// Stage is a compiled shader object waiting to be linked.
type Stage struct {
	dev    opengl.Device
	handle uint32
	kind   opengl.Enum
}

// Compile builds one stage from source.
func Compile(dev opengl.Device, kind opengl.Enum, source string) (Stage, error) {
	h := dev.CreateShader(kind)
	if err := opengl.CheckAlloc(h, stageName(kind)+" shader"); err != nil {
		return Stage{}, err
	}
	if log, ok := dev.CompileShader(h, source); !ok {
		dev.DeleteShader(h)
		return Stage{}, &CompileError{Stage: stageName(kind), Log: log}
	}
	return Stage{dev: dev, handle: h, kind: kind}, nil
}

func (s Stage) release() {
	if s.handle != 0 {
		s.dev.DeleteShader(s.handle)
	}
}

// Program is a linked shader program.
type Program struct {
	Name string

	dev       opengl.Device
	handle    uint32
	locations map[string]int32
	blocks    map[string]uint32
}

// Link joins stages into a program. The stages are released whether or
// not the link succeeds.
func Link(dev opengl.Device, stages ...Stage) (*Program, error) {
	handles := make([]uint32, len(stages))
	for i, s := range stages {
		handles[i] = s.handle
	}
	defer func() {
		for _, s := range stages {
			s.release()
		}
	}()

	h := dev.CreateProgram()
	if err := opengl.CheckAlloc(h, "program"); err != nil {
		return nil, err
	}
	if log, ok := dev.LinkProgram(h, handles...); !ok {
		dev.DeleteProgram(h)
		return nil, &LinkError{Log: log}
	}
	return &Program{
		dev:       dev,
		handle:    h,
		locations: map[string]int32{},
		blocks:    map[string]uint32{},
	}, nil
}

// Source is the text of a vertex/fragment pair.
type Source struct {
	Name     string
	Vertex   string
	Fragment string
}

// NewProgram prepends preamble to both stages, compiles and links them.
func NewProgram(dev opengl.Device, preamble string, src Source) (*Program, error) {
	vs, err := Compile(dev, opengl.VertexShader, preamble+src.Vertex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name, err)
	}
	fs, err := Compile(dev, opengl.FragmentShader, preamble+src.Fragment)
	if err != nil {
		vs.release()
		return nil, fmt.Errorf("%s: %w", src.Name, err)
	}
	p, err := Link(dev, vs, fs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name, err)
	}
	p.Name = src.Name
	slog.Debug("program linked", "name", src.Name, "handle", p.handle)
	return p, nil
}

func (p *Program) Handle() uint32 { return p.handle }

// Location resolves a uniform name once; misses are cached as -1.
func (p *Program) Location(name string) int32 {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc := p.dev.GetUniformLocation(p.handle, name)
	p.locations[name] = loc
	return loc
}

// BlockIndex resolves a uniform block name once.
func (p *Program) BlockIndex(name string) uint32 {
	if idx, ok := p.blocks[name]; ok {
		return idx
	}
	idx := p.dev.GetUniformBlockIndex(p.handle, name)
	p.blocks[name] = idx
	return idx
}

// Activate makes p current and returns a binder with no texture units
// in use.
func (p *Program) Activate() *ActiveBinding {
	p.dev.UseProgram(p.handle)
	return &ActiveBinding{program: p}
}

func (p *Program) Delete() {
	if p.handle == 0 {
		return
	}
	p.dev.DeleteProgram(p.handle)
	p.handle = 0
}
