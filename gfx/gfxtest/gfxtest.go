// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfxtest provides a counting in-memory gfx.Context for tests.
package gfxtest

import (
	"errors"
	"sync"

	"github.com/devblok/doodle/gfx"
	"github.com/gogpu/gputypes"
)

// ErrContextLost is returned by Draw after Lose was called.
var ErrContextLost = errors.New("gfxtest: context lost")

// Counts tallies object allocations and releases.
type Counts struct {
	StagesCreated, StagesDeleted     int
	ProgramsCreated, ProgramsDeleted int
	BuffersCreated, BuffersDeleted   int
	Draws                            int
	Releases                         int
}

// Context records every call made against it. Compile fails for any stage
// listed in Reject, linking fails when LinkLog is not empty.
type Context struct {
	// Reject maps a stage to the diagnostic returned when compiling it.
	Reject map[gfx.Stage]string
	// LinkLog, when set, makes every link fail with this log.
	LinkLog string
	// BufferErr, when set, is returned by CreateBuffer.
	BufferErr error

	mutex    sync.Mutex
	counts   Counts
	next     uint32
	stages   map[gfx.ShaderHandle]gfx.Stage
	status   map[gfx.ShaderHandle]bool
	programs map[gfx.ProgramHandle]bool
	buffers  map[gfx.BufferHandle]gputypes.BufferUsage
	uniforms map[string]interface{}
	width    int
	height   int
	lost     bool
}

// NewContext creates an empty recording context.
func NewContext() *Context {
	return &Context{
		Reject:   make(map[gfx.Stage]string),
		stages:   make(map[gfx.ShaderHandle]gfx.Stage),
		status:   make(map[gfx.ShaderHandle]bool),
		programs: make(map[gfx.ProgramHandle]bool),
		buffers:  make(map[gfx.BufferHandle]gputypes.BufferUsage),
		uniforms: make(map[string]interface{}),
	}
}

func (c *Context) id() uint32 {
	c.next++
	return c.next
}

// CreateShaderStage implements interface
func (c *Context) CreateShaderStage(stage gfx.Stage) (gfx.ShaderHandle, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	h := gfx.ShaderHandle(c.id())
	c.stages[h] = stage
	c.counts.StagesCreated++
	return h, nil
}

// SetSource implements interface
func (c *Context) SetSource(gfx.ShaderHandle, string) {}

// Compile implements interface
func (c *Context) Compile(h gfx.ShaderHandle) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, rejected := c.Reject[c.stages[h]]
	c.status[h] = !rejected
}

// CompileStatus implements interface
func (c *Context) CompileStatus(h gfx.ShaderHandle) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.status[h]
}

// DiagnosticLog implements interface
func (c *Context) DiagnosticLog(h gfx.ShaderHandle) string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.Reject[c.stages[h]]
}

// DeleteShaderStage implements interface
func (c *Context) DeleteShaderStage(h gfx.ShaderHandle) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.stages[h]; ok {
		delete(c.stages, h)
		delete(c.status, h)
		c.counts.StagesDeleted++
	}
}

// CreateProgram implements interface
func (c *Context) CreateProgram() (gfx.ProgramHandle, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	h := gfx.ProgramHandle(c.id())
	c.programs[h] = false
	c.counts.ProgramsCreated++
	return h, nil
}

// AttachShader implements interface
func (c *Context) AttachShader(gfx.ProgramHandle, gfx.ShaderHandle) {}

// LinkProgram implements interface
func (c *Context) LinkProgram(h gfx.ProgramHandle) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.programs[h] = c.LinkLog == ""
}

// LinkStatus implements interface
func (c *Context) LinkStatus(h gfx.ProgramHandle) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.programs[h]
}

// ProgramLog implements interface
func (c *Context) ProgramLog(gfx.ProgramHandle) string {
	return c.LinkLog
}

// DeleteProgram implements interface
func (c *Context) DeleteProgram(h gfx.ProgramHandle) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.programs[h]; ok {
		delete(c.programs, h)
		c.counts.ProgramsDeleted++
	}
}

// UseProgram implements interface
func (c *Context) UseProgram(gfx.ProgramHandle) {}

// CreateBuffer implements interface
func (c *Context) CreateBuffer(usage gputypes.BufferUsage, _ []float32) (gfx.BufferHandle, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.BufferErr != nil {
		return 0, c.BufferErr
	}
	h := gfx.BufferHandle(c.id())
	c.buffers[h] = usage
	c.counts.BuffersCreated++
	return h, nil
}

// DeleteBuffer implements interface
func (c *Context) DeleteBuffer(h gfx.BufferHandle) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.buffers[h]; ok {
		delete(c.buffers, h)
		c.counts.BuffersDeleted++
	}
}

// SetUniform implements interface
func (c *Context) SetUniform(name string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.uniforms[name] = value
}

// Uniform returns the last value assigned to name.
func (c *Context) Uniform(name string) (interface{}, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	v, ok := c.uniforms[name]
	return v, ok
}

// Viewport implements interface
func (c *Context) Viewport(width, height int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.width, c.height = width, height
}

// ViewportSize returns the last viewport set.
func (c *Context) ViewportSize() (int, int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.width, c.height
}

// Draw implements interface
func (c *Context) Draw(gfx.BufferHandle, int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.lost {
		return ErrContextLost
	}
	c.counts.Draws++
	return nil
}

// Lose simulates a lost context.
func (c *Context) Lose() {
	c.mutex.Lock()
	c.lost = true
	c.mutex.Unlock()
}

// Lost implements interface
func (c *Context) Lost() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lost
}

// Release implements interface
func (c *Context) Release() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.counts.Releases++
}

// Counts returns a snapshot of the allocation counters.
func (c *Context) Counts() Counts {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.counts
}

// Live reports the number of stages, programs and buffers not yet deleted.
func (c *Context) Live() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.stages) + len(c.programs) + len(c.buffers)
}

// Target is a drawing target handing out recording contexts.
type Target struct {
	// Err, when set, is returned by Context.
	Err error

	mutex    sync.Mutex
	contexts []*Context
	prepare  func(*Context)
	width    int
	height   int
}

// NewTarget creates a target. prepare, if not nil, is applied to every
// context before it is handed out.
func NewTarget(prepare func(*Context)) *Target {
	return &Target{prepare: prepare}
}

// Context implements interface
func (t *Target) Context() (gfx.Context, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.Err != nil {
		return nil, t.Err
	}
	c := NewContext()
	if t.prepare != nil {
		t.prepare(c)
	}
	t.contexts = append(t.contexts, c)
	return c, nil
}

// Resize implements interface
func (t *Target) Resize(width, height int) {
	t.mutex.Lock()
	t.width, t.height = width, height
	t.mutex.Unlock()
}

// Size returns the last backing store size.
func (t *Target) Size() (int, int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.width, t.height
}

// Contexts returns every context handed out so far.
func (t *Target) Contexts() []*Context {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]*Context(nil), t.contexts...)
}
