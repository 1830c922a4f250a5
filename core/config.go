// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strconv"

	"github.com/devblok/doodle/core/renderer"
	"github.com/devblok/doodle/surface"
	"github.com/gobuffalo/envy"
	log "github.com/sirupsen/logrus"
)

// Environment variables read by ConfigurationFromEnv.
const (
	EnvFramesPerSecond = "DOODLE_FPS"
	EnvWidth           = "DOODLE_WIDTH"
	EnvHeight          = "DOODLE_HEIGHT"
	EnvMaxDimension    = "DOODLE_MAX_DIMENSION"
	EnvWorkers         = "DOODLE_WORKERS"
	EnvLogLevel        = "DOODLE_LOG_LEVEL"
	EnvLogJSON         = "DOODLE_LOG_JSON"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer renderer.Configuration
	Surface  SurfaceConfiguration
	Logging  LoggingConfiguration

	// Workers limits how many surfaces initialise at once.
	Workers int
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int
}

// SurfaceConfiguration holds surface defaults
type SurfaceConfiguration struct {
	// DefaultWidth and DefaultHeight are used when no valid
	// dimension has been declared.
	DefaultWidth  int
	DefaultHeight int

	// MaxDimension caps declared widths and heights. Larger values
	// are treated as not declared. At most surface.MaxDimension.
	MaxDimension int
}

// LoggingConfiguration is used to configure logrus
type LoggingConfiguration struct {
	Level string
	JSON  bool
}

// DefaultConfiguration returns the configuration used when nothing is set.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
		},
		Renderer: renderer.Configuration{
			TaskQueueSize: 64,
		},
		Surface: SurfaceConfiguration{
			DefaultWidth:  250,
			DefaultHeight: 250,
			MaxDimension:  surface.MaxDimension,
		},
		Logging: LoggingConfiguration{
			Level: "info",
		},
		Workers: 4,
	}
}

// ConfigurationFromEnv overlays the environment on the defaults.
// envy loads a .env file from the working directory if present.
func ConfigurationFromEnv() (Configuration, error) {
	cfg := DefaultConfiguration()

	ints := []struct {
		key string
		dst *int
	}{
		{EnvFramesPerSecond, &cfg.Time.FramesPerSecond},
		{EnvWidth, &cfg.Surface.DefaultWidth},
		{EnvHeight, &cfg.Surface.DefaultHeight},
		{EnvMaxDimension, &cfg.Surface.MaxDimension},
		{EnvWorkers, &cfg.Workers},
	}
	for _, v := range ints {
		raw := envy.Get(v.key, "")
		if raw == "" {
			continue
		}
		num, err := strconv.Atoi(raw)
		if err != nil || num < 0 {
			return cfg, fmt.Errorf("%s: not a non-negative integer: %q", v.key, raw)
		}
		*v.dst = num
	}

	if cfg.Surface.MaxDimension == 0 {
		cfg.Surface.MaxDimension = surface.MaxDimension
	}
	if cfg.Surface.MaxDimension > surface.MaxDimension {
		return cfg, fmt.Errorf("%s: at most %d", EnvMaxDimension, surface.MaxDimension)
	}
	if cfg.Surface.DefaultWidth > cfg.Surface.MaxDimension || cfg.Surface.DefaultHeight > cfg.Surface.MaxDimension {
		return cfg, fmt.Errorf("default dimensions exceed %d", cfg.Surface.MaxDimension)
	}

	cfg.Logging.Level = envy.Get(EnvLogLevel, cfg.Logging.Level)
	if raw := envy.Get(EnvLogJSON, ""); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, fmt.Errorf("%s: %s", EnvLogJSON, err)
		}
		cfg.Logging.JSON = b
	}
	return cfg, nil
}

// ConfigureLogging applies cfg to the standard logrus logger.
func ConfigureLogging(cfg LoggingConfiguration) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
