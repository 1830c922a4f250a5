// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device provides drawing targets backed by host memory.
package device

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sync"

	"github.com/devblok/doodle/gfx"
	"github.com/devblok/doodle/gfx/soft"
	"github.com/devblok/doodle/host"
	"github.com/devblok/doodle/surface"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

// ErrDestroyed is returned when a context is requested from a destroyed canvas.
var ErrDestroyed = errors.New("device: canvas destroyed")

// Info describes a canvas and what has been drawn to it.
type Info struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	DisplayWidth  int    `json:"displayWidth"`
	DisplayHeight int    `json:"displayHeight"`
	Contexts      int    `json:"contexts"` // not yet released
	Destroyed     bool   `json:"destroyed"`
}

// Configuration describes a Canvas.
type Configuration struct {
	ID     int
	Name   string
	Width  int
	Height int
	// MaxDimension caps the backing store size, 0 means surface.MaxDimension.
	MaxDimension int
	// MemoryBudget limits the buffer memory of every context, 0 is unlimited.
	MemoryBudget uint
	Clear        color.RGBA
}

// NewCanvas creates a canvas of the configured size, cleared to cfg.Clear.
func NewCanvas(cfg Configuration) *Canvas {
	if cfg.MaxDimension <= 0 || cfg.MaxDimension > surface.MaxDimension {
		cfg.MaxDimension = surface.MaxDimension
	}
	if cfg.Width <= 0 || cfg.Width > cfg.MaxDimension {
		cfg.Width = host.FallbackDimension
	}
	if cfg.Height <= 0 || cfg.Height > cfg.MaxDimension {
		cfg.Height = host.FallbackDimension
	}
	c := &Canvas{
		cfg:           cfg,
		img:           image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
		displayWidth:  cfg.Width,
		displayHeight: cfg.Height,
	}
	c.Fill(cfg.Clear)
	return c
}

// Canvas is an image in memory that software contexts draw into.
// It implements gfx.Target, soft.Framebuffer and host.Presentation.
// Contexts belong to the surfaces that requested them, the canvas only
// tracks those not yet released.
type Canvas struct {
	cfg Configuration

	mutex         sync.Mutex
	img           *image.RGBA
	contexts      []*soft.Context
	displayWidth  int
	displayHeight int
	destroyed     bool
}

// Context implements interface
func (c *Canvas) Context() (gfx.Context, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.destroyed {
		return nil, ErrDestroyed
	}
	ctx := soft.NewContext(c, soft.Configuration{
		MemoryBudget: c.cfg.MemoryBudget,
		Clear:        c.cfg.Clear,
		OnRelease:    c.forget,
	})
	c.contexts = append(c.contexts, ctx)
	return ctx, nil
}

// forget drops a released context, its owner is done with it.
func (c *Canvas) forget(ctx *soft.Context) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for idx, v := range c.contexts {
		if v == ctx {
			c.contexts = append(c.contexts[:idx], c.contexts[idx+1:]...)
			return
		}
	}
}

// Resize implements interface. The current picture is scaled to the new size.
// Sizes outside 1..MaxDimension are refused.
func (c *Canvas) Resize(width, height int) {
	if width <= 0 || height <= 0 || width > c.cfg.MaxDimension || height > c.cfg.MaxDimension {
		log.WithFields(log.Fields{
			"canvas": c.cfg.Name,
			"width":  width,
			"height": height,
		}).Warn("canvas resize refused")
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	old := c.img
	if old.Bounds().Dx() == width && old.Bounds().Dy() == height {
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(c.img, c.img.Bounds(), old, old.Bounds(), draw.Src, nil)

	log.WithFields(log.Fields{
		"canvas": c.cfg.Name,
		"width":  width,
		"height": height,
	}).Debug("canvas resized")
}

// Fill implements soft.Framebuffer
func (c *Canvas) Fill(col color.Color) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	draw.Draw(c.img, c.img.Bounds(), &image.Uniform{C: col}, image.Point{}, draw.Src)
}

// SetDimension implements host.Presentation. It records the size the
// canvas is displayed at, which may differ from its backing store.
func (c *Canvas) SetDimension(name string, px int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch name {
	case host.WidthAttribute:
		c.displayWidth = px
	case host.HeightAttribute:
		c.displayHeight = px
	}
}

// Image returns a copy of the current picture.
func (c *Canvas) Image() *image.RGBA {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	img := image.NewRGBA(c.img.Bounds())
	copy(img.Pix, c.img.Pix)
	return img
}

// Snapshot encodes the current picture as PNG.
func (c *Canvas) Snapshot(w io.Writer) error {
	return png.Encode(w, c.Image())
}

// SaveSnapshot writes the current picture to a PNG file.
func (c *Canvas) SaveSnapshot(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Snapshot(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Info describes the canvas.
func (c *Canvas) Info() Info {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return Info{
		ID:            c.cfg.ID,
		Name:          c.cfg.Name,
		Width:         c.img.Bounds().Dx(),
		Height:        c.img.Bounds().Dy(),
		DisplayWidth:  c.displayWidth,
		DisplayHeight: c.displayHeight,
		Contexts:      len(c.contexts),
		Destroyed:     c.destroyed,
	}
}

// Destroy releases every context still live. Later requests for a context fail.
// Must be called from the goroutine that draws.
func (c *Canvas) Destroy() {
	c.mutex.Lock()
	contexts := c.contexts
	c.contexts = nil
	c.destroyed = true
	c.mutex.Unlock()

	for _, ctx := range contexts {
		ctx.Release()
	}
}
