package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFile(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{
		"opticalflow": {
			"vertical_motion_threshold": 2.5,
			"resize_width": 320,
			"resize_height": 240,
			"x_min_min": 40,
			"x_max_max": 280,
			"scale_to_native": true
		},
		"log": {"level": "debug"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	of := cfg.OpticalFlow
	assert.Equal(t, 2.5, of.VerticalMotionThreshold)
	assert.Equal(t, 320, of.ResizeWidth)
	assert.Equal(t, 240, of.ResizeHeight)
	assert.Equal(t, 40, of.XMinMin)
	assert.Equal(t, 280, of.XMaxMax)
	assert.True(t, of.ScaleToNative)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Omitted keys keep their defaults
	def := Default().OpticalFlow
	assert.Equal(t, def.GlowingPixels, of.GlowingPixels)
	assert.Equal(t, def.MinActiveColumns, of.MinActiveColumns)
	assert.Equal(t, def.MinActiveRows, of.MinActiveRows)
	assert.Equal(t, def.StripPadding, of.StripPadding)
}

func TestLoad_FileErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "wrong extension",
			path:    func(t *testing.T) string { return writeConfig(t, "cfg.yaml", "{}") },
			wantErr: ".json extension",
		},
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") },
			wantErr: "failed to stat",
		},
		{
			name:    "malformed json",
			path:    func(t *testing.T) string { return writeConfig(t, "cfg.json", "{not json") },
			wantErr: "failed to parse",
		},
		{
			name: "too large",
			path: func(t *testing.T) string {
				return writeConfig(t, "cfg.json", `{"log":{"file":"`+strings.Repeat("a", maxFileSize)+`"}}`)
			},
			wantErr: "too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OpticalFlow)
	}{
		{"negative threshold", func(o *OpticalFlow) { o.VerticalMotionThreshold = -1 }},
		{"glow above 256", func(o *OpticalFlow) { o.GlowingPixels = 300 }},
		{"zero width", func(o *OpticalFlow) { o.ResizeWidth = 0 }},
		{"zero height", func(o *OpticalFlow) { o.ResizeHeight = 0 }},
		{"negative x_min_min", func(o *OpticalFlow) { o.XMinMin = -1 }},
		{"x_max_max beyond width", func(o *OpticalFlow) { o.XMaxMax = o.ResizeWidth + 1 }},
		{"x_max_max not above x_min_min", func(o *OpticalFlow) { o.XMinMin = 100; o.XMaxMax = 100 }},
		{"zero min columns", func(o *OpticalFlow) { o.MinActiveColumns = 0 }},
		{"zero min rows", func(o *OpticalFlow) { o.MinActiveRows = 0 }},
		{"negative padding", func(o *OpticalFlow) { o.StripPadding = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg.OpticalFlow)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg.Log.Level = ""
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvVerticalMotionThreshold: "0.75",
		EnvGlowingPixels:           "256",
		EnvMinActiveColumns:        "12",
		EnvStripPadding:            "0",
		EnvScaleToNative:           "true",
		EnvLogLevel:                "warn",
		EnvLogFile:                 "/tmp/rodcrop.log",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))

	assert.Equal(t, 0.75, cfg.OpticalFlow.VerticalMotionThreshold)
	assert.Equal(t, 256, cfg.OpticalFlow.GlowingPixels)
	assert.Equal(t, 12, cfg.OpticalFlow.MinActiveColumns)
	assert.Equal(t, 0, cfg.OpticalFlow.StripPadding)
	assert.True(t, cfg.OpticalFlow.ScaleToNative)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/rodcrop.log", cfg.Log.File)
	assert.Equal(t, Default().OpticalFlow.ResizeWidth, cfg.OpticalFlow.ResizeWidth)
}

func TestApplyEnv_Invalid(t *testing.T) {
	for _, key := range []string{EnvResizeWidth, EnvVerticalMotionThreshold, EnvScaleToNative} {
		t.Run(key, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				if k == key {
					return "not-a-number", true
				}
				return "", false
			}
			err := Default().applyEnv(lookup)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{"opticalflow": {"min_active_rows": 9}}`)
	t.Setenv(EnvMinActiveRows, "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.OpticalFlow.MinActiveRows)
}

func TestLoad_InvalidAfterEnv(t *testing.T) {
	t.Setenv(EnvXMaxMax, "10000")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
