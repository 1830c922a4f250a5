// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package soft implements a headless gfx.Context. Shader stages are WGSL
// modules validated and translated to SPIR-V by naga, draws clear the
// bound framebuffer. It is used for tests, tooling and headless runs.
package soft

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/devblok/doodle/gfx"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
)

// Errors reported by Context operations.
var (
	ErrContextLost = errors.New("soft: context lost")
	ErrNoProgram   = errors.New("soft: no program in use")
	ErrBadBuffer   = errors.New("soft: unknown or non-vertex buffer")
)

// ColorUniform is the uniform that, when set to an mgl32.Vec4,
// overrides the clear colour of a draw.
const ColorUniform = "u_color"

// Framebuffer receives the output of draws.
type Framebuffer interface {
	Fill(color.Color)
}

var entryPoints = map[gfx.Stage]string{
	gfx.VertexStage:   "@vertex",
	gfx.FragmentStage: "@fragment",
	gfx.ComputeStage:  "@compute",
}

type stage struct {
	kind   gfx.Stage
	source string
	words  []uint32
	ok     bool
	log    string
}

type program struct {
	stages []gfx.ShaderHandle
	linked bool
	log    string
}

// Configuration configures a software context.
type Configuration struct {
	// MemoryBudget limits buffer memory in bytes, 0 is unlimited.
	MemoryBudget uint
	// Clear is the colour draws fill the framebuffer with.
	Clear color.RGBA
	// OnRelease, if not nil, is called once by the first Release.
	OnRelease func(*Context)
}

// NewContext creates a context drawing into fb. fb may be nil.
func NewContext(fb Framebuffer, cfg Configuration) *Context {
	return &Context{
		fb:        fb,
		clear:     cfg.Clear,
		onRelease: cfg.OnRelease,
		allocator: NewMemoryAllocator(cfg.MemoryBudget),
		stages:    make(map[gfx.ShaderHandle]*stage),
		programs:  make(map[gfx.ProgramHandle]*program),
		buffers:   make(map[gfx.BufferHandle]*Buffer),
		uniforms:  make(map[string]interface{}),
	}
}

// Context is a software GPU context. It is not safe for concurrent use.
type Context struct {
	fb        Framebuffer
	clear     color.RGBA
	onRelease func(*Context)
	allocator *MemoryAllocator

	next     uint32
	stages   map[gfx.ShaderHandle]*stage
	programs map[gfx.ProgramHandle]*program
	buffers  map[gfx.BufferHandle]*Buffer
	uniforms map[string]interface{}
	current  gfx.ProgramHandle

	width, height int
	frames        int
	lost          bool
	released      bool
}

func (c *Context) id() uint32 {
	c.next++
	return c.next
}

// CreateShaderStage implements interface
func (c *Context) CreateShaderStage(kind gfx.Stage) (gfx.ShaderHandle, error) {
	if c.lost {
		return 0, ErrContextLost
	}
	if _, ok := entryPoints[kind]; !ok {
		return 0, fmt.Errorf("soft: unsupported stage %d", kind)
	}
	h := gfx.ShaderHandle(c.id())
	c.stages[h] = &stage{kind: kind}
	return h, nil
}

// SetSource implements interface
func (c *Context) SetSource(h gfx.ShaderHandle, source string) {
	if s, ok := c.stages[h]; ok {
		s.source = source
	}
}

// Compile implements interface
func (c *Context) Compile(h gfx.ShaderHandle) {
	s, ok := c.stages[h]
	if !ok {
		return
	}
	s.ok, s.words = false, nil

	spirv, err := naga.Compile(s.source)
	if err != nil {
		s.log = err.Error()
		return
	}
	if entry := entryPoints[s.kind]; !strings.Contains(s.source, entry) {
		s.log = fmt.Sprintf("no %s entry point in %s stage", entry, s.kind)
		return
	}

	s.words = make([]uint32, len(spirv)/4)
	for i := range s.words {
		s.words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	s.ok, s.log = true, ""
}

// CompileStatus implements interface
func (c *Context) CompileStatus(h gfx.ShaderHandle) bool {
	s, ok := c.stages[h]
	return ok && s.ok
}

// DiagnosticLog implements interface
func (c *Context) DiagnosticLog(h gfx.ShaderHandle) string {
	if s, ok := c.stages[h]; ok {
		return s.log
	}
	return ""
}

// DeleteShaderStage implements interface
func (c *Context) DeleteShaderStage(h gfx.ShaderHandle) {
	delete(c.stages, h)
}

// SPIRV returns the translated words of a compiled stage.
func (c *Context) SPIRV(h gfx.ShaderHandle) []uint32 {
	if s, ok := c.stages[h]; ok {
		return s.words
	}
	return nil
}

// CreateProgram implements interface
func (c *Context) CreateProgram() (gfx.ProgramHandle, error) {
	if c.lost {
		return 0, ErrContextLost
	}
	h := gfx.ProgramHandle(c.id())
	c.programs[h] = &program{}
	return h, nil
}

// AttachShader implements interface
func (c *Context) AttachShader(p gfx.ProgramHandle, s gfx.ShaderHandle) {
	if prog, ok := c.programs[p]; ok {
		prog.stages = append(prog.stages, s)
	}
}

// LinkProgram implements interface
func (c *Context) LinkProgram(p gfx.ProgramHandle) {
	prog, ok := c.programs[p]
	if !ok {
		return
	}
	prog.linked, prog.log = false, ""

	kinds := make(map[gfx.Stage]int)
	for _, h := range prog.stages {
		s, ok := c.stages[h]
		if !ok {
			prog.log = fmt.Sprintf("stage %d is not a shader object", h)
			return
		}
		if !s.ok {
			prog.log = fmt.Sprintf("%s stage is not compiled", s.kind)
			return
		}
		kinds[s.kind]++
	}

	switch {
	case kinds[gfx.ComputeStage] == 1 && len(prog.stages) == 1:
	case kinds[gfx.VertexStage] == 1 && kinds[gfx.FragmentStage] == 1 && len(prog.stages) == 2:
	default:
		prog.log = "program needs exactly one vertex and one fragment stage, or one compute stage"
		return
	}
	prog.linked = true
}

// LinkStatus implements interface
func (c *Context) LinkStatus(p gfx.ProgramHandle) bool {
	prog, ok := c.programs[p]
	return ok && prog.linked
}

// ProgramLog implements interface
func (c *Context) ProgramLog(p gfx.ProgramHandle) string {
	if prog, ok := c.programs[p]; ok {
		return prog.log
	}
	return ""
}

// DeleteProgram implements interface
func (c *Context) DeleteProgram(p gfx.ProgramHandle) {
	if c.current == p {
		c.current = 0
	}
	delete(c.programs, p)
}

// UseProgram implements interface
func (c *Context) UseProgram(p gfx.ProgramHandle) {
	if prog, ok := c.programs[p]; ok && prog.linked {
		c.current = p
	}
}

// CreateBuffer implements interface
func (c *Context) CreateBuffer(usage gputypes.BufferUsage, data []float32) (gfx.BufferHandle, error) {
	if c.lost {
		return 0, ErrContextLost
	}
	mem, err := c.allocator.Malloc(data)
	if err != nil {
		return 0, fmt.Errorf("CreateBuffer(): %w", err)
	}
	h := gfx.BufferHandle(c.id())
	c.buffers[h] = &Buffer{usage: usage, memory: mem}
	return h, nil
}

// DeleteBuffer implements interface
func (c *Context) DeleteBuffer(h gfx.BufferHandle) {
	if b, ok := c.buffers[h]; ok {
		c.allocator.Free(b.memory)
		delete(c.buffers, h)
	}
}

// SetUniform implements interface
func (c *Context) SetUniform(name string, value interface{}) {
	c.uniforms[name] = value
}

// Viewport implements interface
func (c *Context) Viewport(width, height int) {
	c.width, c.height = width, height
}

// Draw implements interface
func (c *Context) Draw(vertices gfx.BufferHandle, count int) error {
	if c.lost {
		return ErrContextLost
	}
	if c.current == 0 {
		return ErrNoProgram
	}
	b, ok := c.buffers[vertices]
	if !ok || b.usage&gputypes.BufferUsageVertex == 0 {
		return ErrBadBuffer
	}
	if uint(count)*2*4 > b.memory.len {
		return fmt.Errorf("Draw(): %d vertices exceed buffer of %d bytes", count, b.memory.len)
	}

	if c.fb != nil {
		fill := c.clear
		if v, ok := c.uniforms[ColorUniform].(mgl32.Vec4); ok {
			fill = color.RGBA{
				R: channel(v[0]),
				G: channel(v[1]),
				B: channel(v[2]),
				A: channel(v[3]),
			}
		}
		c.fb.Fill(fill)
	}
	c.frames++
	return nil
}

func channel(f float32) uint8 {
	return uint8(mgl32.Clamp(f, 0, 1)*255 + 0.5)
}

// Frames returns the number of successful draws.
func (c *Context) Frames() int {
	return c.frames
}

// Lose marks the context as lost, as a driver reset would.
func (c *Context) Lose() {
	c.lost = true
}

// Lost implements interface
func (c *Context) Lost() bool {
	return c.lost
}

// Live returns the number of stages, programs and buffers still allocated.
func (c *Context) Live() int {
	return len(c.stages) + len(c.programs) + len(c.buffers)
}

// Released reports whether Release has been called.
func (c *Context) Released() bool {
	return c.released
}

// Release implements interface. Calls after the first do nothing.
func (c *Context) Release() {
	if c.released {
		return
	}
	c.released = true
	c.stages = make(map[gfx.ShaderHandle]*stage)
	c.programs = make(map[gfx.ProgramHandle]*program)
	for h := range c.buffers {
		c.DeleteBuffer(h)
	}
	c.current = 0
	c.lost = true

	if c.onRelease != nil {
		c.onRelease(c)
	}
}
