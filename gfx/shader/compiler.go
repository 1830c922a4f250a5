// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package shader compiles shader source into stage objects and links
// them into programs, reporting driver diagnostics as typed errors.
package shader

import (
	"errors"
	"fmt"

	"github.com/devblok/doodle/gfx"
	log "github.com/sirupsen/logrus"
)

// ErrEmptySource is returned when there is no source text to compile.
var ErrEmptySource = errors.New("shader: empty source")

// CompileError carries the driver diagnostic of a rejected stage.
type CompileError struct {
	Stage gfx.Stage
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader compilation error (%s): %s", e.Stage, e.Log)
}

// LinkError carries the driver diagnostic of a program that failed to link.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "shader link error: " + e.Log
}

// Compile creates a stage object on ctx and compiles source into it.
// On failure the stage object is deleted before returning a *CompileError
// holding the verbatim driver log. The caller owns the returned stage
// and must delete it once it has been linked.
func Compile(ctx gfx.ShaderContext, stage gfx.Stage, source string) (gfx.ShaderHandle, error) {
	if source == "" {
		return 0, ErrEmptySource
	}

	handle, err := ctx.CreateShaderStage(stage)
	if err != nil {
		return 0, fmt.Errorf("CreateShaderStage(%s): %w", stage, err)
	}

	ctx.SetSource(handle, source)
	ctx.Compile(handle)

	if !ctx.CompileStatus(handle) {
		info := ctx.DiagnosticLog(handle)
		ctx.DeleteShaderStage(handle)
		log.WithField("stage", stage).Debug("shader stage rejected by driver")
		return 0, &CompileError{Stage: stage, Log: info}
	}

	return handle, nil
}

// Link links the compiled stages into a program. The stages are deleted
// whether linking succeeds or not, a failed program is deleted too.
func Link(ctx gfx.Context, stages ...gfx.ShaderHandle) (gfx.ProgramHandle, error) {
	defer func() {
		for _, s := range stages {
			ctx.DeleteShaderStage(s)
		}
	}()

	program, err := ctx.CreateProgram()
	if err != nil {
		return 0, fmt.Errorf("CreateProgram(): %w", err)
	}

	for _, s := range stages {
		ctx.AttachShader(program, s)
	}
	ctx.LinkProgram(program)

	if !ctx.LinkStatus(program) {
		info := ctx.ProgramLog(program)
		ctx.DeleteProgram(program)
		return 0, &LinkError{Log: info}
	}
	return program, nil
}

// Build compiles the vertex and fragment sources and links them.
// Nothing is left allocated on ctx when an error is returned.
func Build(ctx gfx.Context, vertex, fragment string) (gfx.ProgramHandle, error) {
	vs, err := Compile(ctx, gfx.VertexStage, vertex)
	if err != nil {
		return 0, err
	}

	fs, err := Compile(ctx, gfx.FragmentStage, fragment)
	if err != nil {
		ctx.DeleteShaderStage(vs)
		return 0, err
	}

	return Link(ctx, vs, fs)
}
