// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package surface implements a single GPU rendering surface: one context
// bound to one drawing target, one compiled program and the buffers
// needed to draw a full-screen quad with it.
package surface

import (
	"fmt"
	"time"

	"github.com/devblok/doodle/gfx"
	"github.com/devblok/doodle/gfx/shader"
	"github.com/devblok/doodle/model"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	log "github.com/sirupsen/logrus"
)

// MaxDimension is the largest width or height a surface accepts,
// the common GL_MAX_TEXTURE_SIZE of desktop drivers.
const MaxDimension = 8192

// Dimensions is a size in pixels.
type Dimensions struct {
	Width  int
	Height int
}

func (d Dimensions) valid() bool {
	return validDimension(d.Width) && validDimension(d.Height)
}

func validDimension(px int) bool {
	return px > 0 && px <= MaxDimension
}

// Source is the shader source of a surface. An empty Vertex selects
// the built-in full-screen quad stage.
type Source struct {
	Vertex   string
	Fragment string
}

// Surface owns a GPU context and everything allocated on it.
// It is driven from a single goroutine and is not safe for concurrent use.
type Surface struct {
	target   gfx.Target
	ctx      gfx.Context
	program  gfx.ProgramHandle
	quad     gfx.BufferHandle
	vertices int
	bindings map[string]Binding
	dims     Dimensions

	start, last time.Time
	frame       int32
	unusable    bool
}

// New acquires a context from target, builds the program and allocates
// the quad buffer. On error nothing acquired is left behind.
func New(target gfx.Target, src Source, bindings []Binding, dims Dimensions) (*Surface, error) {
	if !dims.valid() {
		return nil, &Error{Op: "create", Err: ErrDimensions}
	}

	bound := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		if builtin(b.Name()) {
			return nil, &Error{Op: "bindings", Err: fmt.Errorf("uniform %q is built in", b.Name())}
		}
		bound[b.Name()] = b
	}

	vertex := src.Vertex
	if vertex == "" {
		v, err := shader.DefaultVertex()
		if err != nil {
			return nil, &Error{Op: "create", Err: err}
		}
		vertex = v
	}

	ctx, err := target.Context()
	if err != nil {
		return nil, &Error{Op: "context", Err: err}
	}

	program, err := shader.Build(ctx, vertex, src.Fragment)
	if err != nil {
		ctx.Release()
		return nil, &Error{Op: "compile", Err: err}
	}

	data := model.QuadVertices()
	quad, err := ctx.CreateBuffer(gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst, data)
	if err != nil {
		ctx.DeleteProgram(program)
		ctx.Release()
		return nil, &Error{Op: "buffer", Err: err}
	}

	s := &Surface{
		target:   target,
		ctx:      ctx,
		program:  program,
		quad:     quad,
		vertices: len(data) / 2,
		bindings: bound,
		dims:     dims,
	}
	s.apply()

	log.WithFields(log.Fields{
		"width":    dims.Width,
		"height":   dims.Height,
		"bindings": len(bound),
	}).Debug("surface created")
	return s, nil
}

func (s *Surface) apply() {
	s.target.Resize(s.dims.Width, s.dims.Height)
	s.ctx.Viewport(s.dims.Width, s.dims.Height)
}

// Draw renders one frame with the current uniform values. A failed frame
// leaves the surface unusable, later calls return ErrUnusable.
func (s *Surface) Draw() error {
	if s.ctx == nil {
		return ErrDisposed
	}
	if s.unusable {
		return ErrUnusable
	}
	if s.ctx.Lost() {
		s.unusable = true
		return &DrawError{Err: ErrLost}
	}

	now := time.Now()
	if s.start.IsZero() {
		s.start, s.last = now, now
	}

	frame := model.Frame{
		Time:       float32(now.Sub(s.start).Seconds()),
		Delta:      float32(now.Sub(s.last).Seconds()),
		Index:      s.frame,
		Resolution: glm.Vec2{float32(s.dims.Width), float32(s.dims.Height)},
		Date:       model.Date(now),
	}

	s.ctx.UseProgram(s.program)
	for name, value := range frame.Uniforms() {
		s.ctx.SetUniform(name, value)
	}
	for name, b := range s.bindings {
		s.ctx.SetUniform(name, b.Value(frame))
	}

	if err := s.ctx.Draw(s.quad, s.vertices); err != nil {
		s.unusable = true
		return &DrawError{Err: err}
	}

	s.last = now
	s.frame++
	return nil
}

// Resize changes the viewport and backing store without rebuilding the
// program. A non-positive value, or one above MaxDimension, keeps the
// last valid one for that axis.
func (s *Surface) Resize(width, height int) error {
	if s.ctx == nil {
		return ErrDisposed
	}
	if !validDimension(width) {
		width = s.dims.Width
	}
	if !validDimension(height) {
		height = s.dims.Height
	}
	if width == s.dims.Width && height == s.dims.Height {
		return nil
	}
	s.dims = Dimensions{Width: width, Height: height}
	s.apply()
	return nil
}

// Dimensions returns the current size.
func (s *Surface) Dimensions() Dimensions {
	return s.dims
}

// Frames returns the number of frames drawn.
func (s *Surface) Frames() int {
	return int(s.frame)
}

// Disposed reports whether Dispose has been called.
func (s *Surface) Disposed() bool {
	return s.ctx == nil
}

// Dispose releases the buffer, the program and the context.
// Calling it more than once is a no-op.
func (s *Surface) Dispose() {
	ctx := s.ctx
	if ctx == nil {
		return
	}
	s.ctx = nil
	s.target = nil

	ctx.DeleteBuffer(s.quad)
	ctx.DeleteProgram(s.program)
	ctx.Release()
	s.quad, s.program = 0, 0

	log.WithField("frames", s.frame).Debug("surface disposed")
}
