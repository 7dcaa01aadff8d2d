package main

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/rodcrop/internal/config"
	"github.com/ironsheep/rodcrop/internal/imaging"
	"github.com/ironsheep/rodcrop/internal/logging"
	"github.com/ironsheep/rodcrop/internal/motion"
	"github.com/ironsheep/rodcrop/internal/opticalflow"
)

func TestParseFlags(t *testing.T) {
	var errOut bytes.Buffer
	opts, err := parseFlags([]string{"-in", "frames", "-out", "crops", "-annotate", "-box-color", "#00ff00"}, &errOut)
	require.NoError(t, err)

	assert.Equal(t, "frames", opts.inDir)
	assert.Equal(t, "crops", opts.outDir)
	assert.True(t, opts.annotate)
	r, g, b, _ := opts.boxColor.RGBA()
	assert.Equal(t, [3]uint32{0, 0xffff, 0}, [3]uint32{r, g, b})
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing in", []string{"-out", "crops"}},
		{"missing out", []string{"-in", "frames"}},
		{"bad color", []string{"-in", "a", "-out", "b", "-box-color", "green"}},
		{"extra args", []string{"-in", "a", "-out", "b", "extra"}},
		{"unknown flag", []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errOut bytes.Buffer
			_, err := parseFlags(tt.args, &errOut)
			assert.Error(t, err)
		})
	}
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "frame_0001.png"), outputPath("out", filepath.Join("in", "frame_0001.jpg")))
	assert.Equal(t, filepath.Join("out", "a.b.png"), outputPath("out", "a.b.tiff"))
}

func writeFrames(t *testing.T, dir string, n, width, height int) {
	t.Helper()
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = 90, 90, 90, 255
		}
		img.Set(0, 0, color.RGBA{255, 0, 0, 255})
		name := filepath.Join(dir, "frame_"+string(rune('a'+i))+".png")
		require.NoError(t, imaging.SaveFrame(img, name))
	}
}

func TestRun(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "crops")
	writeFrames(t, in, 3, 80, 60)

	cfg := config.Default()
	cfg.OpticalFlow.ResizeWidth = 80
	cfg.OpticalFlow.ResizeHeight = 60
	cfg.OpticalFlow.XMaxMax = 80
	opts := &options{inDir: in, outDir: out}

	sum, err := run(cfg, opts, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, summary{Frames: 3}, sum)
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	src, err := imaging.OpenFrameDir(out)
	require.NoError(t, err)
	_, frame, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(80, 60), frame.Bounds().Size())
}

func TestRun_MissingInput(t *testing.T) {
	opts := &options{inDir: filepath.Join(t.TempDir(), "missing"), outDir: t.TempDir()}
	_, err := run(config.Default(), opts, logging.Discard())
	assert.Error(t, err)
}

// fixedFlow returns the same field for every frame pair.
type fixedFlow struct {
	field *opticalflow.Field
}

func (f fixedFlow) Estimate(prev, next *image.Gray) (*opticalflow.Field, error) {
	return f.field, nil
}

// blockFlow moves the pixels of r by dy on an 80x60 working grid.
func blockFlow(r image.Rectangle, dy float32) *opticalflow.Field {
	f := opticalflow.NewField(80, 60)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			f.Set(x, y, 0, dy)
		}
	}
	return f
}

// singleRowFlow makes columns 10..49 active while only row 30 passes the row
// threshold, so the confirmed bounds have YMin == YMax.
func singleRowFlow() *opticalflow.Field {
	f := opticalflow.NewField(80, 60)
	for x := 10; x < 50; x++ {
		f.Set(x, 30, 0, 3)
		for j := 0; j < 7; j++ {
			f.Set(x, (x-10+8*j)%60, 0, 3)
		}
	}
	return f
}

func TestRun_EmptyCropWritesFullFrame(t *testing.T) {
	tests := []struct {
		name          string
		field         *opticalflow.Field
		width, height int
		minRows       int
	}{
		{"single active row", singleRowFlow(), 80, 60, 1},
		{"bounds outside small native frame", blockFlow(image.Rect(40, 30, 70, 50), 3), 20, 15, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := t.TempDir()
			out := filepath.Join(t.TempDir(), "crops")
			writeFrames(t, in, 3, tt.width, tt.height)

			cfg := config.Default()
			cfg.OpticalFlow.ResizeWidth = 80
			cfg.OpticalFlow.ResizeHeight = 60
			cfg.OpticalFlow.XMaxMax = 80
			cfg.OpticalFlow.MinActiveColumns = 5
			cfg.OpticalFlow.MinActiveRows = tt.minRows
			cfg.OpticalFlow.StripPadding = 0

			sum, err := run(cfg, &options{inDir: in, outDir: out}, logging.Discard(),
				motion.WithEstimator(fixedFlow{field: tt.field}))
			require.NoError(t, err)

			assert.Equal(t, summary{Frames: 3, Detected: 2, EmptyCrops: 1}, sum)

			src, err := imaging.OpenFrameDir(out)
			require.NoError(t, err)
			require.Equal(t, 3, src.Len())
			for i := 0; i < src.Len(); i++ {
				_, frame, err := src.Next()
				require.NoError(t, err)
				assert.Equal(t, image.Pt(tt.width, tt.height), frame.Bounds().Size())
			}
		})
	}
}
