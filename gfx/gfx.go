// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the GPU capabilities that rendering backends must implement.
package gfx

import (
	"github.com/gogpu/gputypes"
)

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// Stage identifies a programmable pipeline stage.
type Stage int

// Pipeline stages a shader can be compiled for.
const (
	VertexStage Stage = iota
	FragmentStage
	ComputeStage
)

func (s Stage) String() string {
	switch s {
	case VertexStage:
		return "vertex"
	case FragmentStage:
		return "fragment"
	case ComputeStage:
		return "compute"
	}
	return "unknown"
}

// Handles name objects that live inside a Context. Zero is never a valid handle.
type (
	ShaderHandle  uint32
	ProgramHandle uint32
	BufferHandle  uint32
)

// ShaderContext is the minimal capability set needed to compile
// a single shader stage.
type ShaderContext interface {

	// CreateShaderStage allocates a new, empty shader stage object.
	CreateShaderStage(Stage) (ShaderHandle, error)

	// SetSource replaces the source text of the stage.
	SetSource(ShaderHandle, string)

	// Compile compiles the current source of the stage.
	Compile(ShaderHandle)

	// CompileStatus reports whether the last compilation succeeded.
	CompileStatus(ShaderHandle) bool

	// DiagnosticLog returns the driver log of the last compilation.
	DiagnosticLog(ShaderHandle) string

	// DeleteShaderStage frees the stage object.
	DeleteShaderStage(ShaderHandle)
}

// Context is a GPU context bound to exactly one drawing target.
// A Context is not safe for concurrent use.
type Context interface {
	ShaderContext
	Releasable

	CreateProgram() (ProgramHandle, error)
	AttachShader(ProgramHandle, ShaderHandle)
	LinkProgram(ProgramHandle)
	LinkStatus(ProgramHandle) bool
	ProgramLog(ProgramHandle) string
	DeleteProgram(ProgramHandle)
	UseProgram(ProgramHandle)

	// CreateBuffer allocates a buffer initialised with data.
	CreateBuffer(usage gputypes.BufferUsage, data []float32) (BufferHandle, error)
	DeleteBuffer(BufferHandle)

	// SetUniform assigns a value to a named uniform of the program in use.
	// Values are float32, int32 or mgl32 vector and matrix types.
	SetUniform(name string, value interface{})

	// Viewport sets the drawable area in pixels.
	Viewport(width, height int)

	// Draw issues a draw call for count vertices from the bound vertex buffer.
	Draw(vertices BufferHandle, count int) error

	// Lost reports whether the context can no longer be used.
	Lost() bool
}

// Target is a drawing target that a Context can be bound to.
type Target interface {

	// Context acquires a GPU context bound to the target.
	// The caller owns the context and must Release it.
	Context() (Context, error)

	// Resize changes the size of the backing store in pixels.
	Resize(width, height int)
}
