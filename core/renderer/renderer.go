// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package renderer drives every live surface from a single render loop.
package renderer

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Drawable is anything the renderer can draw once per frame.
type Drawable interface {
	Draw() error
}

// ErrorFunc receives the draw failures of one drawable.
type ErrorFunc func(error)

// RegistrationError reports a lifecycle bug: a drawable added twice,
// or added after it was disposed.
type RegistrationError struct {
	Drawable Drawable
	Reason   string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("renderer: cannot register %p: %s", e.Drawable, e.Reason)
}

type disposable interface {
	Disposed() bool
}

type entry struct {
	drawable Drawable
	onError  ErrorFunc
}

// New creates a renderer with no drawables.
func New(cfg Configuration) *Renderer {
	size := cfg.TaskQueueSize
	if size <= 0 {
		size = 64
	}
	return &Renderer{
		tasks: make(chan func(), size),
	}
}

// Renderer holds the live drawables in registration order. It holds no
// GPU resources. Add, Remove and Tick are expected to run on the loop
// goroutine, Post is how other goroutines reach it.
type Renderer struct {
	mutex   sync.Mutex
	entries []entry
	frames  int64

	tasks chan func()
}

// Add registers d. onError, if not nil, receives d's draw failures.
func (r *Renderer) Add(d Drawable, onError ErrorFunc) error {
	if dd, ok := d.(disposable); ok && dd.Disposed() {
		err := &RegistrationError{Drawable: d, Reason: "drawable is disposed"}
		log.Error(err)
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.indexOf(d) >= 0 {
		err := &RegistrationError{Drawable: d, Reason: "already registered"}
		log.Error(err)
		return err
	}
	r.entries = append(r.entries, entry{drawable: d, onError: onError})
	log.WithField("live", len(r.entries)).Debug("drawable registered")
	return nil
}

// Remove deregisters d. Removing an absent drawable does nothing.
func (r *Renderer) Remove(d Drawable) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	idx := r.indexOf(d)
	if idx < 0 {
		return
	}
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	log.WithField("live", len(r.entries)).Debug("drawable removed")
}

func (r *Renderer) indexOf(d Drawable) int {
	for idx, e := range r.entries {
		if e.drawable == d {
			return idx
		}
	}
	return -1
}

// Contains reports whether d is registered.
func (r *Renderer) Contains(d Drawable) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.indexOf(d) >= 0
}

// Len returns the number of registered drawables.
func (r *Renderer) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.entries)
}

// Frames returns the number of ticks run so far.
func (r *Renderer) Frames() int64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.frames
}

// Tick draws every registered drawable once, in registration order.
// A failing drawable is reported to its ErrorFunc and does not stop
// the others from being drawn.
func (r *Renderer) Tick() {
	r.mutex.Lock()
	entries := append([]entry(nil), r.entries...)
	r.frames++
	r.mutex.Unlock()

	for _, e := range entries {
		if err := r.draw(e.drawable); err != nil {
			if e.onError != nil {
				e.onError(err)
			} else {
				log.WithError(err).Warn("draw failed")
			}
		}
	}
}

func (r *Renderer) draw(d Drawable) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("renderer: draw panicked: %v", p)
		}
	}()
	return d.Draw()
}

// Post schedules fn to run on the loop goroutine before the next tick.
func (r *Renderer) Post(fn func()) {
	r.tasks <- fn
}

// Drain runs every task posted so far.
func (r *Renderer) Drain() {
	for {
		select {
		case fn := <-r.tasks:
			fn()
		default:
			return
		}
	}
}

// Run is the render loop: posted tasks run as they arrive and a tick
// happens on every value from ticks. It returns when ctx is done.
func (r *Renderer) Run(ctx context.Context, ticks <-chan time.Time) error {
	log.Info("render loop started")
	defer log.Info("render loop exited")

	for {
		select {
		case <-ctx.Done():
			r.Drain()
			return ctx.Err()
		case fn := <-r.tasks:
			fn()
		case <-ticks:
			r.Drain()
			r.Tick()
		}
	}
}
