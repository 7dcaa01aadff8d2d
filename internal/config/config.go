// Package config loads the tracker configuration.
//
// Values are resolved in order, later sources winning:
//  1. built-in defaults (Default)
//  2. a JSON file whose "opticalflow" object mirrors OpticalFlow
//  3. environment variables, optionally seeded from a .env file
//
// The result is validated before it is returned.
package config

import (
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// maxFileSize bounds the size of a configuration file.
const maxFileSize = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the root configuration.
type Config struct {
	OpticalFlow OpticalFlow `json:"opticalflow"`
	Log         Log         `json:"log"`
}

// OpticalFlow holds the motion detection thresholds. It is immutable for the
// lifetime of a tracker.
//
// Working-resolution coordinates (XMinMin, XMaxMax) index columns of the
// ResizeWidth x ResizeHeight image used for motion estimation.
type OpticalFlow struct {
	// VerticalMotionThreshold is the minimum |dy| in working pixels for a
	// pixel to count as moving.
	VerticalMotionThreshold float64 `json:"vertical_motion_threshold" validate:"gte=0"`

	// GlowingPixels is the luminance at or above which a pixel is treated as
	// washed out. 256 disables the glow mask.
	GlowingPixels int `json:"glowing_pixels" validate:"gte=0,lte=256"`

	ResizeWidth  int `json:"resize_width" validate:"gt=0"`
	ResizeHeight int `json:"resize_height" validate:"gt=0"`

	// XMinMin and XMaxMax bound the searched column range [XMinMin, XMaxMax).
	XMinMin int `json:"x_min_min" validate:"gte=0"`
	XMaxMax int `json:"x_max_max" validate:"gtfield=XMinMin,ltefield=ResizeWidth"`

	MinActiveColumns int `json:"min_active_columns" validate:"gte=1"`
	MinActiveRows    int `json:"min_active_rows" validate:"gte=1"`

	// StripPadding is trimmed from both sides of the detected column span.
	StripPadding int `json:"strip_padding" validate:"gte=0"`

	// ScaleToNative scales detected bounds from working to native resolution
	// as soon as they are computed, so both the applied and the stored bounds
	// are native coordinates. When false, working coordinates are used as
	// native ones, which requires the working resolution to share the native
	// coordinate space.
	ScaleToNative bool `json:"scale_to_native"`
}

// Log configures the process logger.
type Log struct {
	Level string `json:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	File  string `json:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OpticalFlow: OpticalFlow{
			VerticalMotionThreshold: 1.0,
			GlowingPixels:           240,
			ResizeWidth:             640,
			ResizeHeight:            480,
			XMinMin:                 0,
			XMaxMax:                 640,
			MinActiveColumns:        20,
			MinActiveRows:           20,
			StripPadding:            5,
		},
		Log: Log{Level: "info"},
	}
}

// Load resolves the configuration from defaults, the JSON file at path and
// the environment.
//
// An empty path skips the file. A .env file in the working directory is
// loaded into the environment if present; variables already set take
// precedence over it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile overlays the JSON file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) readFile(path string) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return errors.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return errors.Wrap(err, "failed to stat config file")
	}
	if info.Size() > maxFileSize {
		return errors.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := json.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "failed to parse config JSON")
	}
	return nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}
