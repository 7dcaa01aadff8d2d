package motion

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/rodcrop/internal/config"
	"github.com/ironsheep/rodcrop/internal/logging"
	"github.com/ironsheep/rodcrop/internal/opticalflow"
)

// rodFrame draws a textured vertical bar on a dark background. The bar spans
// columns [30, 66) and 40 rows starting at top.
func rodFrame(top float64) *image.RGBA {
	const width, height = 96, 72
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := 30.0
			fy := float64(y) - top
			if x >= 30 && x < 66 && fy >= 0 && fy < 40 {
				v = 128 + 50*math.Sin(float64(x)/4) + 50*math.Sin(fy/5)
			}
			g := uint8(math.Round(v))
			img.Set(x, y, color.RGBA{g, g, g, 255})
		}
	}
	return img
}

func flowConfig() config.OpticalFlow {
	return config.OpticalFlow{
		VerticalMotionThreshold: 0.3,
		GlowingPixels:           240,
		ResizeWidth:             96,
		ResizeHeight:            72,
		XMinMin:                 0,
		XMaxMax:                 96,
		MinActiveColumns:        5,
		MinActiveRows:           5,
		StripPadding:            2,
	}
}

func newFlowTracker(t *testing.T, cfg config.OpticalFlow) *Tracker {
	t.Helper()
	est, err := opticalflow.NewFarneback(opticalflow.DefaultParams())
	require.NoError(t, err)
	tr, err := NewTracker(cfg, WithEstimator(est), WithLogger(logging.Discard()))
	require.NoError(t, err)
	return tr
}

func TestTracker_StillFramesWithFarneback(t *testing.T) {
	cfg := flowConfig()
	cfg.VerticalMotionThreshold = 0
	tr := newFlowTracker(t, cfg)
	frame := rodFrame(16)

	tr.Track(frame)
	res := tr.Track(rodFrame(16))

	require.NoError(t, res.Err)
	assert.False(t, res.Detected)
}

func TestTracker_MovingRodWithFarneback(t *testing.T) {
	if testing.Short() {
		t.Skip("dense flow on full frames")
	}
	tr := newFlowTracker(t, flowConfig())

	tr.Track(rodFrame(16))
	res := tr.Track(rodFrame(17))
	require.NoError(t, res.Err)
	assert.True(t, res.Detected)
	assert.True(t, res.Confirmed)
	assert.False(t, res.Cropped)

	res = tr.Track(rodFrame(18))
	require.NoError(t, res.Err)
	require.True(t, res.Cropped)

	// The crop covers the bar center and stays narrower than the frame.
	b := res.Bounds
	assert.Less(t, b.XMin, 48)
	assert.Greater(t, b.XMax, 48)
	assert.Less(t, b.YMin, 37)
	assert.Greater(t, b.YMax, 37)
	assert.GreaterOrEqual(t, b.XMin, 15)
	assert.LessOrEqual(t, b.XMax, 81)
	assert.Equal(t, image.Pt(b.XMax-b.XMin, b.YMax-b.YMin), res.Frame.Bounds().Size())
}

// glowStripeFrame draws a full-height stripe over columns [30, 66) whose
// brightness varies along y between 241 and 255, shifted down by dy.
func glowStripeFrame(dy float64) *image.RGBA {
	const width, height = 96, 72
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := 30.0
			if x >= 30 && x < 66 {
				v = 248 + 7*math.Sin((float64(y)-dy)/5)
			}
			g := uint8(math.Round(v))
			img.Set(x, y, color.RGBA{g, g, g, 255})
		}
	}
	return img
}

func TestTracker_GlowingRegionIgnored(t *testing.T) {
	if testing.Short() {
		t.Skip("dense flow on full frames")
	}

	tests := []struct {
		name     string
		glow     int
		detected bool
	}{
		{"masked", 240, false},
		{"mask disabled", 256, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := flowConfig()
			cfg.GlowingPixels = tt.glow
			tr := newFlowTracker(t, cfg)

			tr.Track(glowStripeFrame(0))
			res := tr.Track(glowStripeFrame(1))

			require.NoError(t, res.Err)
			assert.Equal(t, tt.detected, res.Detected)
		})
	}
}
