// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package host implements the lifecycle of one surface on behalf of one
// attachment point in a host document. A Host turns attach, detach,
// attribute and update notifications into surface creation, registration,
// resizing and disposal, and reports the outcome as success or error events.
//
// Notifications and posted completions must be delivered on the render
// loop goroutine, the one that also ticks the registry.
package host

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/devblok/doodle/core"
	"github.com/devblok/doodle/core/renderer"
	"github.com/devblok/doodle/gfx"
	"github.com/devblok/doodle/surface"
	log "github.com/sirupsen/logrus"
)

// ErrNotAttached is reported when a host is asked to initialize without a
// drawing target factory.
var ErrNotAttached = errors.New("host: not attached")

// ErrNoContent is reported when the host has no content to build a surface from.
var ErrNoContent = errors.New("host: no shader content")

// State is the lifecycle state of a Host.
type State int

// Host states.
const (
	Idle State = iota
	Initializing
	Ready
	Failed
	Disposed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Disposed:
		return "disposed"
	}
	return "unknown"
}

// TargetFactory produces the drawing target for a new surface.
type TargetFactory func() (gfx.Target, error)

// Content returns the shader source and uniform bindings the host declares.
type Content func() (surface.Source, []surface.Binding, error)

// Registry is the part of the renderer a host needs.
type Registry interface {
	Add(renderer.Drawable, renderer.ErrorFunc) error
	Remove(renderer.Drawable)
}

// Presentation applies declared dimensions to whatever visual container
// holds the drawing target.
type Presentation interface {
	SetDimension(name string, px int)
}

// Config wires a Host to its collaborators. Registry, Executor, Scheduler
// and Content are required. Factory, when set, lets an update request
// initialize a host that has not been attached yet.
type Config struct {
	Name         string
	Factory      TargetFactory
	Registry     Registry
	Executor     core.Executor
	Scheduler    core.Scheduler
	Content      Content
	Listener     Listener
	Presentation Presentation
	Defaults     core.SurfaceConfiguration
}

// New creates an idle host.
func New(cfg Config) *Host {
	if cfg.Defaults.DefaultWidth <= 0 {
		cfg.Defaults.DefaultWidth = FallbackDimension
	}
	if cfg.Defaults.DefaultHeight <= 0 {
		cfg.Defaults.DefaultHeight = FallbackDimension
	}
	if cfg.Defaults.MaxDimension <= 0 || cfg.Defaults.MaxDimension > surface.MaxDimension {
		cfg.Defaults.MaxDimension = surface.MaxDimension
	}
	return &Host{
		cfg:     cfg,
		logger:  log.WithField("host", cfg.Name),
		factory: cfg.Factory,
	}
}

// Host owns at most one surface. Only the host changes its own state,
// completions of asynchronous initialization check it before registering.
type Host struct {
	cfg    Config
	logger *log.Entry

	mutex      sync.Mutex
	state      State
	generation uint64
	factory    TargetFactory
	surface    *surface.Surface
	attrs      Attributes
}

// State returns the current lifecycle state.
func (h *Host) State() State {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.state
}

// Surface returns the live surface, nil unless the host is Ready.
func (h *Host) Surface() *surface.Surface {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.surface
}

// OnAttach starts initialization with targets from factory, or from the
// configured Factory when factory is nil. It only has an effect on an idle host.
func (h *Host) OnAttach(factory TargetFactory) {
	h.mutex.Lock()
	if h.state != Idle {
		state := h.state
		h.mutex.Unlock()
		h.logger.WithField("state", state).Warn("attach ignored")
		return
	}
	if factory != nil {
		h.factory = factory
	}
	if h.factory == nil {
		h.state = Failed
		h.generation++
		h.mutex.Unlock()
		h.fail(ErrNotAttached, initMessage)
		return
	}
	start := h.begin(initMessage)
	h.mutex.Unlock()

	start()
}

// OnDetach deregisters and disposes the surface. The host is unusable afterwards.
// An initialization still in flight disposes its result when it completes.
func (h *Host) OnDetach() {
	h.mutex.Lock()
	if h.state == Disposed {
		h.mutex.Unlock()
		return
	}
	h.state = Disposed
	h.factory = nil
	s := h.surface
	h.surface = nil
	h.mutex.Unlock()

	h.teardown(s)
	h.logger.Debug("detached")
}

// OnUpdateRequested tears the current surface down and builds a new one.
func (h *Host) OnUpdateRequested() {
	h.mutex.Lock()
	if h.state == Disposed {
		h.mutex.Unlock()
		return
	}
	s := h.surface
	h.surface = nil

	if h.factory == nil {
		h.state = Failed
		h.generation++
		h.mutex.Unlock()

		h.teardown(s)
		h.fail(ErrNotAttached, updateMessage)
		return
	}
	start := h.begin(updateMessage)
	h.mutex.Unlock()

	h.teardown(s)
	start()
}

// OnAttributeChange records a new attribute value. Width and height are
// applied to the presentation and, once ready, to the surface directly.
func (h *Host) OnAttributeChange(name, value string) {
	h.mutex.Lock()
	h.attrs.Set(name, value)
	if name != WidthAttribute && name != HeightAttribute {
		h.mutex.Unlock()
		return
	}

	px, ok := h.attrs.Int(name)
	if !ok {
		px = FallbackDimension
	}
	width, height := h.bounded()
	var s *surface.Surface
	if h.state == Ready {
		s = h.surface
	}
	h.mutex.Unlock()

	if h.cfg.Presentation != nil {
		h.cfg.Presentation.SetDimension(name, px)
	}
	if s != nil {
		if err := s.Resize(width, height); err != nil {
			h.logger.WithError(err).Debug("resize skipped")
		}
	}
}

// Attribute returns the raw value of an attribute.
func (h *Host) Attribute(name string) (string, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.attrs.Get(name)
}

// Width returns the declared width, false when unset or not an integer.
func (h *Host) Width() (int, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.attrs.Width()
}

// Height returns the declared height, false when unset or not an integer.
func (h *Host) Height() (int, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.attrs.Height()
}

// SetWidth stores the integer value of w. Non-integer input is ignored.
func (h *Host) SetWidth(w string) {
	width, ok := ParseInt(w)
	if !ok {
		return
	}
	h.OnAttributeChange(WidthAttribute, strconv.Itoa(width))
}

// SetHeight stores hgt verbatim if it parses as an integer.
// Non-integer input is ignored.
func (h *Host) SetHeight(hgt string) {
	if _, ok := ParseInt(hgt); !ok {
		return
	}
	h.OnAttributeChange(HeightAttribute, hgt)
}

// begin moves to Initializing and returns the function submitting the
// build. It must be called with the mutex held and the returned function
// without it.
func (h *Host) begin(message string) func() {
	h.state = Initializing
	h.generation++
	generation := h.generation
	factory := h.factory
	dims := h.declared()

	h.logger.WithField("generation", generation).Debug("initializing")
	return func() {
		h.cfg.Executor.Submit(func() {
			s, err := h.build(factory, dims)
			h.cfg.Scheduler.Post(func() {
				h.complete(generation, s, err, message)
			})
		})
	}
}

func (h *Host) declared() surface.Dimensions {
	dims := surface.Dimensions{
		Width:  h.cfg.Defaults.DefaultWidth,
		Height: h.cfg.Defaults.DefaultHeight,
	}
	width, height := h.bounded()
	if width > 0 {
		dims.Width = width
	}
	if height > 0 {
		dims.Height = height
	}
	return dims
}

// bounded returns the declared dimensions, 0 for an axis that is not
// declared or exceeds the configured maximum. Must be called with the mutex held.
func (h *Host) bounded() (int, int) {
	limit := func(px int, ok bool) int {
		if !ok || px <= 0 || px > h.cfg.Defaults.MaxDimension {
			return 0
		}
		return px
	}
	return limit(h.attrs.Width()), limit(h.attrs.Height())
}

func (h *Host) build(factory TargetFactory, dims surface.Dimensions) (*surface.Surface, error) {
	if h.cfg.Content == nil {
		return nil, ErrNoContent
	}
	src, bindings, err := h.cfg.Content()
	if err != nil {
		return nil, err
	}

	target, err := factory()
	if err != nil {
		return nil, fmt.Errorf("drawing target: %w", err)
	}
	return surface.New(target, src, bindings, dims)
}

func (h *Host) complete(generation uint64, s *surface.Surface, err error, message string) {
	h.mutex.Lock()
	if h.state == Disposed || generation != h.generation {
		h.mutex.Unlock()
		if s != nil {
			s.Dispose()
		}
		h.logger.WithField("generation", generation).Debug("stale initialization discarded")
		return
	}

	if err == nil {
		if err = h.cfg.Registry.Add(s, h.reportDraw); err != nil {
			s.Dispose()
		}
	}
	if err != nil {
		h.state = Failed
		h.mutex.Unlock()
		h.fail(err, message)
		return
	}

	h.surface = s
	h.state = Ready
	width, height := h.bounded()
	h.mutex.Unlock()

	// attributes may have changed while initializing
	if err := s.Resize(width, height); err != nil {
		h.logger.WithError(err).Debug("resize skipped")
	}

	h.logger.WithField("dimensions", s.Dimensions()).Info("surface ready")
	h.emit(successEvent())
}

func (h *Host) teardown(s *surface.Surface) {
	if s == nil {
		return
	}
	h.cfg.Registry.Remove(s)
	s.Dispose()
}

// reportDraw receives draw failures from the registry. A tick may still
// draw a surface torn down earlier in the same tick, that is not reported.
func (h *Host) reportDraw(err error) {
	if errors.Is(err, surface.ErrUnusable) || errors.Is(err, surface.ErrDisposed) {
		return
	}
	if h.State() == Disposed {
		return
	}
	h.fail(err, drawMessage)
}

func (h *Host) fail(err error, message string) {
	h.logger.WithError(err).Error(message)
	h.emit(errorEvent(err, message))
}

func (h *Host) emit(e Event) {
	if h.cfg.Listener != nil {
		h.cfg.Listener.Dispatch(e)
	}
}
