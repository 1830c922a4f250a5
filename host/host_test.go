// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package host_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devblok/doodle/core"
	"github.com/devblok/doodle/core/renderer"
	"github.com/devblok/doodle/gfx"
	"github.com/devblok/doodle/gfx/gfxtest"
	"github.com/devblok/doodle/gfx/shader"
	"github.com/devblok/doodle/host"
	"github.com/devblok/doodle/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passThrough = `@fragment
fn main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(uv, 0.0, 1.0);
}`

// queue is an executor and scheduler run by hand, so tests control
// when initialization and its completion happen.
type queue struct {
	tasks []func()
}

func (q *queue) Submit(fn func()) { q.tasks = append(q.tasks, fn) }
func (q *queue) Post(fn func())   { q.tasks = append(q.tasks, fn) }

func (q *queue) step() {
	fn := q.tasks[0]
	q.tasks = q.tasks[1:]
	fn()
}

func (q *queue) run() {
	for len(q.tasks) > 0 {
		q.step()
	}
}

type events struct {
	got []host.Event
}

func (e *events) Dispatch(ev host.Event) {
	e.got = append(e.got, ev)
}

func (e *events) count(kind string) int {
	var n int
	for _, ev := range e.got {
		if ev.Type == kind {
			n++
		}
	}
	return n
}

type presentation struct {
	dims map[string]int
}

func (p *presentation) SetDimension(name string, px int) {
	p.dims[name] = px
}

type fixture struct {
	renderer     *renderer.Renderer
	target       *gfxtest.Target
	events       *events
	presentation *presentation
	host         *host.Host
}

func newFixture(exec core.Executor, sched core.Scheduler, prepare func(*gfxtest.Context)) *fixture {
	f := &fixture{
		renderer:     renderer.New(renderer.Configuration{}),
		target:       gfxtest.NewTarget(prepare),
		events:       &events{},
		presentation: &presentation{dims: make(map[string]int)},
	}
	f.host = host.New(host.Config{
		Name:      "test",
		Registry:  f.renderer,
		Executor:  exec,
		Scheduler: sched,
		Content: func() (surface.Source, []surface.Binding, error) {
			return surface.Source{Fragment: passThrough}, nil, nil
		},
		Listener:     f.events,
		Presentation: f.presentation,
	})
	return f
}

func (f *fixture) factory() (gfx.Target, error) {
	return f.target, nil
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host.SetWidth("400")
	f.host.SetHeight("300")

	f.host.OnAttach(f.factory)

	require.Equal(t, host.Ready, f.host.State())
	require.Len(t, f.events.got, 1)
	assert.Equal(t, host.SuccessEvent, f.events.got[0].Type)
	assert.True(t, f.events.got[0].Bubbles)
	assert.True(t, f.events.got[0].Composed)

	s := f.host.Surface()
	require.NotNil(t, s)
	assert.Equal(t, 1, f.renderer.Len())
	assert.True(t, f.renderer.Contains(s))
	assert.Equal(t, surface.Dimensions{Width: 400, Height: 300}, s.Dimensions())

	f.renderer.Tick()
	assert.Equal(t, 1, s.Frames())

	f.host.OnDetach()
	assert.Equal(t, host.Disposed, f.host.State())
	assert.Equal(t, 0, f.renderer.Len())
	assert.True(t, s.Disposed())
	assert.Nil(t, f.host.Surface())
	assert.Equal(t, 0, f.target.Contexts()[0].Live())
}

func TestDefaultDimensions(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host.OnAttach(f.factory)
	require.Equal(t, host.Ready, f.host.State())
	assert.Equal(t, surface.Dimensions{Width: 250, Height: 250}, f.host.Surface().Dimensions())
}

func TestCompileFailure(t *testing.T) {
	const diagnostic = "error: expected ';', found '}'"
	f := newFixture(core.Immediate, core.Immediate, func(c *gfxtest.Context) {
		c.Reject[gfx.FragmentStage] = diagnostic
	})

	f.host.OnAttach(f.factory)

	assert.Equal(t, host.Failed, f.host.State())
	assert.Equal(t, 0, f.renderer.Len())
	require.Len(t, f.events.got, 1)

	ev := f.events.got[0]
	assert.Equal(t, host.ErrorEvent, ev.Type)
	assert.Contains(t, ev.Message, diagnostic)

	var compileErr *shader.CompileError
	require.True(t, errors.As(ev.Cause, &compileErr))
	assert.Equal(t, diagnostic, compileErr.Log)

	assert.Equal(t, 0, f.target.Contexts()[0].Live())
}

func TestTargetFailure(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.target.Err = errors.New("canvas gone")

	f.host.OnAttach(f.factory)
	assert.Equal(t, host.Failed, f.host.State())
	assert.Equal(t, 1, f.events.count(host.ErrorEvent))
}

func TestContentFailure(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host = host.New(host.Config{
		Registry:  f.renderer,
		Executor:  core.Immediate,
		Scheduler: core.Immediate,
		Content: func() (surface.Source, []surface.Binding, error) {
			return surface.Source{}, nil, errors.New("bad uniform declaration")
		},
		Listener: f.events,
	})

	f.host.OnAttach(f.factory)
	assert.Equal(t, host.Failed, f.host.State())
	require.Len(t, f.events.got, 1)
	assert.Equal(t, "bad uniform declaration", f.events.got[0].Message)
	assert.Empty(t, f.target.Contexts())
}

func TestAttachIsAsynchronous(t *testing.T) {
	q := &queue{}
	f := newFixture(q, q, nil)

	f.host.OnAttach(f.factory)
	assert.Equal(t, host.Initializing, f.host.State())
	assert.Empty(t, f.target.Contexts(), "attach must not build synchronously")

	q.run()
	assert.Equal(t, host.Ready, f.host.State())
	assert.Equal(t, 1, f.renderer.Len())
}

func TestDetachBeforeBuild(t *testing.T) {
	q := &queue{}
	f := newFixture(q, q, nil)

	f.host.OnAttach(f.factory)
	f.host.OnDetach()
	q.run()

	assert.Equal(t, host.Disposed, f.host.State())
	assert.Equal(t, 0, f.renderer.Len())
	assert.Empty(t, f.events.got)
	for _, c := range f.target.Contexts() {
		assert.Equal(t, 0, c.Live())
		assert.Equal(t, 1, c.Counts().Releases)
	}
}

func TestDetachBeforeCompletion(t *testing.T) {
	q := &queue{}
	f := newFixture(q, q, nil)

	f.host.OnAttach(f.factory)
	q.step() // build, completion is now posted
	require.Len(t, f.target.Contexts(), 1)

	f.host.OnDetach()
	q.run()

	assert.Equal(t, host.Disposed, f.host.State())
	assert.Equal(t, 0, f.renderer.Len())
	assert.Empty(t, f.events.got)
	ctx := f.target.Contexts()[0]
	assert.Equal(t, 0, ctx.Live())
	assert.Equal(t, 1, ctx.Counts().Releases)
}

func TestAttachDetachCycles(t *testing.T) {
	r := renderer.New(renderer.Configuration{})
	target := gfxtest.NewTarget(nil)
	for i := 0; i < 5; i++ {
		h := host.New(host.Config{
			Registry:  r,
			Executor:  core.Immediate,
			Scheduler: core.Immediate,
			Content: func() (surface.Source, []surface.Binding, error) {
				return surface.Source{Fragment: passThrough}, nil, nil
			},
		})
		h.OnAttach(func() (gfx.Target, error) { return target, nil })
		assert.Equal(t, host.Ready, h.State())

		h.OnDetach()
		assert.Equal(t, 0, r.Len())
	}
	for _, c := range target.Contexts() {
		assert.Equal(t, 0, c.Live())
	}
}

func TestAttachTwice(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host.OnAttach(f.factory)
	f.host.OnAttach(f.factory)

	assert.Equal(t, 1, f.renderer.Len())
	assert.Len(t, f.target.Contexts(), 1)
}

func TestUpdate(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host.OnAttach(f.factory)
	first := f.host.Surface()

	f.host.OnUpdateRequested()

	assert.Equal(t, host.Ready, f.host.State())
	second := f.host.Surface()
	assert.NotSame(t, first, second)
	assert.True(t, first.Disposed())
	assert.Equal(t, 1, f.renderer.Len())
	assert.True(t, f.renderer.Contains(second))
	assert.Equal(t, 2, f.events.count(host.SuccessEvent))
}

func TestUpdateWhileInitializing(t *testing.T) {
	q := &queue{}
	f := newFixture(q, q, nil)

	f.host.OnAttach(f.factory)
	f.host.OnUpdateRequested()
	q.run()

	assert.Equal(t, host.Ready, f.host.State())
	assert.Equal(t, 1, f.renderer.Len())
	assert.Equal(t, 1, f.events.count(host.SuccessEvent))

	contexts := f.target.Contexts()
	require.Len(t, contexts, 2)
	assert.Equal(t, 0, contexts[0].Live(), "stale surface must be disposed")
}

func TestUpdateAfterFailure(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.target.Err = errors.New("canvas gone")
	f.host.OnAttach(f.factory)
	require.Equal(t, host.Failed, f.host.State())

	f.target.Err = nil
	f.host.OnUpdateRequested()
	assert.Equal(t, host.Ready, f.host.State())
	assert.Equal(t, 1, f.renderer.Len())
}

func TestUpdateBeforeAttach(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host.OnUpdateRequested()

	assert.Equal(t, host.Failed, f.host.State())
	require.Len(t, f.events.got, 1)
	assert.True(t, errors.Is(f.events.got[0].Cause, host.ErrNotAttached))
}

func TestUpdateWithConfiguredFactory(t *testing.T) {
	r := renderer.New(renderer.Configuration{})
	target := gfxtest.NewTarget(nil)
	h := host.New(host.Config{
		Registry:  r,
		Executor:  core.Immediate,
		Scheduler: core.Immediate,
		Factory:   func() (gfx.Target, error) { return target, nil },
		Content: func() (surface.Source, []surface.Binding, error) {
			return surface.Source{Fragment: passThrough}, nil, nil
		},
	})

	h.OnUpdateRequested()
	assert.Equal(t, host.Ready, h.State())
	assert.Equal(t, 1, r.Len())

	h.OnDetach()
	assert.Equal(t, 0, r.Len())
}

func TestAttachWithoutFactory(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host.OnAttach(nil)

	assert.Equal(t, host.Failed, f.host.State())
	require.Len(t, f.events.got, 1)
	assert.True(t, errors.Is(f.events.got[0].Cause, host.ErrNotAttached))
}

func TestDisposedIsTerminal(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host.OnAttach(f.factory)
	f.host.OnDetach()

	f.host.OnAttach(f.factory)
	f.host.OnUpdateRequested()
	f.host.OnDetach()

	assert.Equal(t, host.Disposed, f.host.State())
	assert.Equal(t, 0, f.renderer.Len())
	assert.Len(t, f.target.Contexts(), 1)
}

func TestResizeWithoutRebuild(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host.SetWidth("400")
	f.host.SetHeight("300")
	f.host.OnAttach(f.factory)
	s := f.host.Surface()

	f.host.SetWidth("640")
	assert.Equal(t, surface.Dimensions{Width: 640, Height: 300}, s.Dimensions())
	assert.Equal(t, 640, f.presentation.dims[host.WidthAttribute])

	f.host.OnAttributeChange(host.HeightAttribute, "abc")
	assert.Equal(t, surface.Dimensions{Width: 640, Height: 300}, s.Dimensions())
	assert.Equal(t, host.FallbackDimension, f.presentation.dims[host.HeightAttribute])

	assert.Same(t, s, f.host.Surface())
	assert.Equal(t, 1, f.target.Contexts()[0].Counts().ProgramsCreated)
	assert.Equal(t, 1, f.events.count(host.SuccessEvent))
}

func TestResizeWhileInitializing(t *testing.T) {
	q := &queue{}
	f := newFixture(q, q, nil)
	f.host.SetWidth("400")
	f.host.SetHeight("300")

	f.host.OnAttach(f.factory)
	f.host.SetWidth("500")
	q.run()

	assert.Equal(t, surface.Dimensions{Width: 500, Height: 300}, f.host.Surface().Dimensions())
}

func TestAttributeCoercion(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)

	_, ok := f.host.Height()
	assert.False(t, ok, "unset height must have no value")

	f.host.SetWidth("120")
	f.host.SetWidth("abc")
	w, ok := f.host.Width()
	assert.True(t, ok)
	assert.Equal(t, 120, w)

	f.host.SetWidth("400px")
	raw, _ := f.host.Attribute(host.WidthAttribute)
	assert.Equal(t, "400", raw)

	f.host.SetHeight("300px")
	raw, _ = f.host.Attribute(host.HeightAttribute)
	assert.Equal(t, "300px", raw)
	h, ok := f.host.Height()
	assert.True(t, ok)
	assert.Equal(t, 300, h)

	f.host.OnAttributeChange(host.WidthAttribute, "NaN")
	_, ok = f.host.Width()
	assert.False(t, ok)
	assert.Equal(t, 250, f.presentation.dims[host.WidthAttribute])
}

func TestDrawFailureReported(t *testing.T) {
	f := newFixture(core.Immediate, core.Immediate, nil)
	f.host.OnAttach(f.factory)

	f.target.Contexts()[0].Lose()
	f.renderer.Tick()
	f.renderer.Tick()

	assert.Equal(t, 1, f.events.count(host.ErrorEvent))
	assert.Equal(t, host.Ready, f.host.State())

	var drawErr *surface.DrawError
	assert.True(t, errors.As(f.events.got[1].Cause, &drawErr))
}

type rejecting struct{}

func (rejecting) Add(d renderer.Drawable, _ renderer.ErrorFunc) error {
	return &renderer.RegistrationError{Drawable: d, Reason: "test"}
}

func (rejecting) Remove(renderer.Drawable) {}

func TestRegistrationFailure(t *testing.T) {
	ev := &events{}
	target := gfxtest.NewTarget(nil)
	h := host.New(host.Config{
		Registry:  rejecting{},
		Executor:  core.Immediate,
		Scheduler: core.Immediate,
		Content: func() (surface.Source, []surface.Binding, error) {
			return surface.Source{Fragment: passThrough}, nil, nil
		},
		Listener: ev,
	})

	h.OnAttach(func() (gfx.Target, error) { return target, nil })

	assert.Equal(t, host.Failed, h.State())
	require.Len(t, ev.got, 1)
	var regErr *renderer.RegistrationError
	assert.True(t, errors.As(ev.got[0].Cause, &regErr))
	assert.Equal(t, 0, target.Contexts()[0].Live())
}

func TestDetachedDuringTickNotReported(t *testing.T) {
	second := newFixture(core.Immediate, core.Immediate, nil)

	firstTarget := gfxtest.NewTarget(nil)
	first := host.New(host.Config{
		Registry:  second.renderer,
		Executor:  core.Immediate,
		Scheduler: core.Immediate,
		Content: func() (surface.Source, []surface.Binding, error) {
			return surface.Source{Fragment: passThrough}, nil, nil
		},
		Listener: host.ListenerFunc(func(e host.Event) {
			if e.Type == host.ErrorEvent {
				second.host.OnDetach()
			}
		}),
	})

	first.OnAttach(func() (gfx.Target, error) { return firstTarget, nil })
	second.host.OnAttach(second.factory)
	require.Equal(t, 2, second.renderer.Len())

	firstTarget.Contexts()[0].Lose()
	second.renderer.Tick()

	assert.Equal(t, host.Disposed, second.host.State())
	assert.Equal(t, 0, second.events.count(host.ErrorEvent))
	assert.Equal(t, 1, second.renderer.Len())
}

type counter struct {
	success, failure int64
}

func (c *counter) Dispatch(e host.Event) {
	if e.Type == host.SuccessEvent {
		atomic.AddInt64(&c.success, 1)
	} else {
		atomic.AddInt64(&c.failure, 1)
	}
}

func TestRenderLoop(t *testing.T) {
	const hosts = 10

	r := renderer.New(renderer.Configuration{TaskQueueSize: 2 * hosts})
	pool := core.NewPool(4)
	events := &counter{}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, ticker.C) }()

	targets := make([]*gfxtest.Target, hosts)
	all := make([]*host.Host, hosts)
	for i := range all {
		target := gfxtest.NewTarget(nil)
		targets[i] = target
		all[i] = host.New(host.Config{
			Name:      fmt.Sprintf("host-%d", i),
			Registry:  r,
			Executor:  pool,
			Scheduler: r,
			Content: func() (surface.Source, []surface.Binding, error) {
				return surface.Source{Fragment: passThrough}, nil, nil
			},
			Listener: events,
		})
	}

	r.Post(func() {
		for i, h := range all {
			target := targets[i]
			h.OnAttach(func() (gfx.Target, error) { return target, nil })
		}
	})

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&events.success) == hosts
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, hosts, r.Len())

	frames := r.Frames()
	require.Eventually(t, func() bool {
		return r.Frames() > frames+2
	}, 5*time.Second, time.Millisecond)

	r.Post(func() {
		for _, h := range all {
			h.OnDetach()
		}
	})
	require.Eventually(t, func() bool {
		return r.Len() == 0
	}, 5*time.Second, time.Millisecond)

	cancel()
	assert.Equal(t, context.Canceled, <-done)
	pool.Close()

	assert.Equal(t, int64(0), atomic.LoadInt64(&events.failure))
	for _, h := range all {
		assert.Equal(t, host.Disposed, h.State())
	}
	for _, target := range targets {
		for _, c := range target.Contexts() {
			assert.Equal(t, 0, c.Live())
			assert.Equal(t, 1, c.Counts().Releases)
		}
	}
}
