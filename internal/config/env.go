package config

import (
	"strconv"

	"github.com/pkg/errors"
)

// Environment variable names. Optical flow keys mirror the JSON keys under
// the "opticalflow" namespace.
const (
	EnvVerticalMotionThreshold = "OPTICALFLOW_VERTICAL_MOTION_THRESHOLD"
	EnvGlowingPixels           = "OPTICALFLOW_GLOWING_PIXELS"
	EnvResizeWidth             = "OPTICALFLOW_RESIZE_WIDTH"
	EnvResizeHeight            = "OPTICALFLOW_RESIZE_HEIGHT"
	EnvXMinMin                 = "OPTICALFLOW_X_MIN_MIN"
	EnvXMaxMax                 = "OPTICALFLOW_X_MAX_MAX"
	EnvMinActiveColumns        = "OPTICALFLOW_MIN_ACTIVE_COLUMNS"
	EnvMinActiveRows           = "OPTICALFLOW_MIN_ACTIVE_ROWS"
	EnvStripPadding            = "OPTICALFLOW_STRIP_PADDING"
	EnvScaleToNative           = "OPTICALFLOW_SCALE_TO_NATIVE"
	EnvLogLevel                = "RODCROP_LOG_LEVEL"
	EnvLogFile                 = "RODCROP_LOG_FILE"
)

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields of c with the environment variables that are set.
func (c *Config) applyEnv(lookup lookupFunc) error {
	of := &c.OpticalFlow

	ints := []struct {
		key string
		dst *int
	}{
		{EnvGlowingPixels, &of.GlowingPixels},
		{EnvResizeWidth, &of.ResizeWidth},
		{EnvResizeHeight, &of.ResizeHeight},
		{EnvXMinMin, &of.XMinMin},
		{EnvXMaxMax, &of.XMaxMax},
		{EnvMinActiveColumns, &of.MinActiveColumns},
		{EnvMinActiveRows, &of.MinActiveRows},
		{EnvStripPadding, &of.StripPadding},
	}
	for _, e := range ints {
		v, ok := lookup(e.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", e.key)
		}
		*e.dst = n
	}

	if v, ok := lookup(EnvVerticalMotionThreshold); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvVerticalMotionThreshold)
		}
		of.VerticalMotionThreshold = f
	}
	if v, ok := lookup(EnvScaleToNative); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvScaleToNative)
		}
		of.ScaleToNative = b
	}

	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.Log.File = v
	}
	return nil
}
