// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/devblok/doodle/core"
	"github.com/devblok/doodle/core/renderer"
	"github.com/devblok/doodle/device"
	"github.com/devblok/doodle/gfx"
	"github.com/devblok/doodle/gfx/shader"
	"github.com/devblok/doodle/gfx/soft"
	"github.com/devblok/doodle/host"
	"github.com/devblok/doodle/model"
	"github.com/devblok/doodle/surface"
	"github.com/devblok/doodle/utility/kar"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
	"golang.org/x/sync/errgroup"
)

var (
	envFile    = flag.String("env", ".env", "Environment file to load, if present")
	shaderDir  = flag.String("dir", "./shaders", "Directory to load shaders from")
	bundleFile = flag.String("bundle", "", "kar bundle to load shaders from instead of -dir")
	shaderName = flag.String("shader", "", "Name of the shader to run, empty runs the built-in one")
	hostCount  = flag.Int("hosts", 1, "Number of surfaces to run side by side")
	width      = flag.String("width", "", "Width attribute of every host")
	height     = flag.String("height", "", "Height attribute of every host")
	duration   = flag.Duration("duration", 5*time.Second, "How long to run, 0 runs until interrupted")
	snapshot   = flag.String("snapshot", "", "Directory to write a PNG of every canvas to on exit")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envFile); err == nil {
		envy.Reload()
	}
	cfg, err := core.ConfigurationFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	if err := core.ConfigureLogging(cfg.Logging); err != nil {
		log.Fatal(err)
	}

	content, closeContent, err := newContent()
	if err != nil {
		log.Fatal(err)
	}
	defer closeContent()

	// completions of every host must fit, or workers block once the loop exits
	if cfg.Renderer.TaskQueueSize < 2*(*hostCount) {
		cfg.Renderer.TaskQueueSize = 2 * (*hostCount)
	}
	r := renderer.New(cfg.Renderer)
	pool := core.NewPool(cfg.Workers)

	canvases := make([]*device.Canvas, *hostCount)
	hosts := make([]*host.Host, *hostCount)
	for i := range hosts {
		canvas := device.NewCanvas(device.Configuration{
			ID:           i,
			Name:         fmt.Sprintf("canvas-%d", i),
			Width:        cfg.Surface.DefaultWidth,
			Height:       cfg.Surface.DefaultHeight,
			MaxDimension: cfg.Surface.MaxDimension,
			Clear:        color.RGBA{A: 255},
		})
		h := host.New(host.Config{
			Name:         fmt.Sprintf("host-%d", i),
			Registry:     r,
			Executor:     pool,
			Scheduler:    r,
			Content:      content,
			Listener:     listener(i),
			Presentation: canvas,
			Defaults:     cfg.Surface,
		})
		if *width != "" {
			h.SetWidth(*width)
		}
		if *height != "" {
			h.SetHeight(*height)
		}
		h.OnAttach(func() (gfx.Target, error) { return canvas, nil })
		canvases[i], hosts[i] = canvas, h
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	t := core.NewTime(cfg.Time)
	defer t.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(gctx, t.FpsTicker().C)
	})
	g.Go(func() error {
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)
		defer signal.Stop(reload)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-reload:
				log.Info("reloading shaders")
				r.Post(func() {
					for _, h := range hosts {
						h.OnUpdateRequested()
					}
				})
			}
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		log.Error(err)
	}

	// the loop has exited, this goroutine drives the hosts from here on
	if *snapshot != "" {
		saveSnapshots(canvases)
	}
	for _, h := range hosts {
		h.OnDetach()
	}
	pool.Close()
	r.Drain()
	for _, c := range canvases {
		log.WithField("info", fmt.Sprintf("%+v", c.Info())).Debug("canvas")
		c.Destroy()
	}
	log.WithField("frames", r.Frames()).Info("exited")
}

// newContent returns the shader content every host builds from. Sources
// are read anew on every build so a reload picks up edits.
func newContent() (host.Content, func(), error) {
	bindings := []surface.Binding{
		surface.Func(soft.ColorUniform, func(f model.Frame) interface{} {
			return pulse(f.Time)
		}),
	}

	if *shaderName == "" {
		return func() (surface.Source, []surface.Binding, error) {
			fragment, err := shader.DefaultFragment()
			if err != nil {
				return surface.Source{}, nil, err
			}
			return surface.Source{Fragment: fragment}, bindings, nil
		}, func() {}, nil
	}

	if *bundleFile == "" {
		return func() (surface.Source, []surface.Binding, error) {
			src, err := core.DirectorySource(*shaderDir, *shaderName)
			return src, bindings, err
		}, func() {}, nil
	}

	r, err := mmap.Open(*bundleFile)
	if err != nil {
		return nil, nil, err
	}
	ar, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	log.WithFields(log.Fields{
		"bundle": *bundleFile,
		"files":  len(ar.Names()),
	}).Info("bundle opened")
	return func() (surface.Source, []surface.Binding, error) {
		src, err := core.BundleSource(ar, *shaderName)
		return src, bindings, err
	}, func() { r.Close() }, nil
}

func pulse(seconds float32) mgl32.Vec4 {
	v := float32(0.5 + 0.5*math.Sin(float64(seconds)))
	return mgl32.Vec4{v, 0.2, 1 - v, 1}
}

func listener(i int) host.Listener {
	entry := log.WithField("host", i)
	return host.ListenerFunc(func(e host.Event) {
		if e.Type == host.ErrorEvent {
			entry.WithError(e.Cause).Warn(e.Message)
			return
		}
		entry.Info(e.Type)
	})
}

func saveSnapshots(canvases []*device.Canvas) {
	if err := os.MkdirAll(*snapshot, 0755); err != nil {
		log.Error(err)
		return
	}
	for _, c := range canvases {
		path := filepath.Join(*snapshot, c.Info().Name+".png")
		if err := c.SaveSnapshot(path); err != nil {
			log.WithError(err).Error("snapshot failed")
			continue
		}
		log.WithField("path", path).Info("snapshot saved")
	}
}
