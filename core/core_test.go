// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/devblok/doodle/core"
	"github.com/devblok/doodle/surface"
	"github.com/gobuffalo/envy"
)

func TestConfigurationFromEnv(t *testing.T) {
	envy.Temp(func() {
		envy.Set(core.EnvFramesPerSecond, "30")
		envy.Set(core.EnvLogJSON, "true")

		cfg, err := core.ConfigurationFromEnv()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Time.FramesPerSecond != 30 {
			t.Fatalf("incorrect fps: %d", cfg.Time.FramesPerSecond)
		}
		if !cfg.Logging.JSON {
			t.Fatal("json logging not enabled")
		}
		if cfg.Surface.DefaultWidth != 250 {
			t.Fatalf("incorrect default width: %d", cfg.Surface.DefaultWidth)
		}
	})
}

func TestConfigurationFromEnvInvalid(t *testing.T) {
	envy.Temp(func() {
		envy.Set(core.EnvWorkers, "many")
		if _, err := core.ConfigurationFromEnv(); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestConfigurationMaxDimension(t *testing.T) {
	if max := core.DefaultConfiguration().Surface.MaxDimension; max != surface.MaxDimension {
		t.Fatalf("incorrect default max dimension: %d", max)
	}

	envy.Temp(func() {
		envy.Set(core.EnvMaxDimension, "1024")
		cfg, err := core.ConfigurationFromEnv()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Surface.MaxDimension != 1024 {
			t.Fatalf("incorrect max dimension: %d", cfg.Surface.MaxDimension)
		}
	})

	envy.Temp(func() {
		envy.Set(core.EnvMaxDimension, strconv.Itoa(surface.MaxDimension+1))
		if _, err := core.ConfigurationFromEnv(); err == nil {
			t.Fatal("expected an error for a limit above the surface limit")
		}
	})

	envy.Temp(func() {
		envy.Set(core.EnvMaxDimension, "100")
		if _, err := core.ConfigurationFromEnv(); err == nil {
			t.Fatal("expected an error for defaults above the limit")
		}
	})
}

func TestConfigureLogging(t *testing.T) {
	if err := core.ConfigureLogging(core.LoggingConfiguration{Level: "debug"}); err != nil {
		t.Fatal(err)
	}
	if err := core.ConfigureLogging(core.LoggingConfiguration{Level: "loud"}); err == nil {
		t.Fatal("expected an error for unknown level")
	}
	core.ConfigureLogging(core.DefaultConfiguration().Logging)
}

func TestPool(t *testing.T) {
	pool := core.NewPool(2)
	var count int64
	for i := 0; i < 10; i++ {
		pool.Submit(func() { atomic.AddInt64(&count, 1) })
	}
	pool.Wait()
	if atomic.LoadInt64(&count) != 10 {
		t.Fatalf("incorrect number of tasks run: %d", count)
	}
	pool.Close()
}

func TestTime(t *testing.T) {
	tm := core.NewTime(core.TimeConfiguration{FramesPerSecond: 50})
	defer tm.Stop()
	if tm.Interval().Milliseconds() != 20 {
		t.Fatalf("incorrect interval: %s", tm.Interval())
	}
	<-tm.FpsTicker().C
}
