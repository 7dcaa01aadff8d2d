package opticalflow

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// Estimator computes a dense displacement field between two grayscale
// images of equal size.
type Estimator interface {
	Estimate(prev, next *image.Gray) (*Field, error)
}

// Field is a dense 2-D displacement field stored row-major.
type Field struct {
	Width  int
	Height int
	DX     []float32
	DY     []float32
}

// NewField allocates a zero field of the given size.
func NewField(width, height int) *Field {
	return &Field{
		Width:  width,
		Height: height,
		DX:     make([]float32, width*height),
		DY:     make([]float32, width*height),
	}
}

// At returns the displacement stored for pixel (x, y).
func (f *Field) At(x, y int) (dx, dy float32) {
	i := y*f.Width + x
	return f.DX[i], f.DY[i]
}

// Set stores the displacement for pixel (x, y).
func (f *Field) Set(x, y int, dx, dy float32) {
	i := y*f.Width + x
	f.DX[i] = dx
	f.DY[i] = dy
}

// VerticalMask marks every pixel whose vertical displacement magnitude
// exceeds threshold. The result is row-major with the field's dimensions.
func (f *Field) VerticalMask(threshold float64) []bool {
	mask := make([]bool, len(f.DY))
	for i, dy := range f.DY {
		mask[i] = math.Abs(float64(dy)) > threshold
	}
	return mask
}

// resize returns a bilinearly resampled copy of the field with every vector
// multiplied by gain.
func (f *Field) resize(width, height int, gain float32) *Field {
	out := NewField(width, height)
	sx := float64(f.Width) / float64(width)
	sy := float64(f.Height) / float64(height)
	for y := 0; y < height; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0 := int(math.Floor(fy))
		wy := float32(fy - float64(y0))
		y1 := clampInt(y0+1, 0, f.Height-1)
		y0 = clampInt(y0, 0, f.Height-1)
		for x := 0; x < width; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0 := int(math.Floor(fx))
			wx := float32(fx - float64(x0))
			x1 := clampInt(x0+1, 0, f.Width-1)
			x0 = clampInt(x0, 0, f.Width-1)

			i00, i01 := y0*f.Width+x0, y0*f.Width+x1
			i10, i11 := y1*f.Width+x0, y1*f.Width+x1
			a00 := (1 - wx) * (1 - wy)
			a01 := wx * (1 - wy)
			a10 := (1 - wx) * wy
			a11 := wx * wy

			j := y*width + x
			out.DX[j] = gain * (a00*f.DX[i00] + a01*f.DX[i01] + a10*f.DX[i10] + a11*f.DX[i11])
			out.DY[j] = gain * (a00*f.DY[i00] + a01*f.DY[i01] + a10*f.DY[i10] + a11*f.DY[i11])
		}
	}
	return out
}

// checkPair validates that both images are usable and share dimensions.
func checkPair(prev, next *image.Gray) error {
	if prev == nil || next == nil {
		return errors.New("optical flow input image is nil")
	}
	pb, nb := prev.Bounds(), next.Bounds()
	if pb.Empty() || nb.Empty() {
		return errors.New("optical flow input image is empty")
	}
	if pb.Dx() != nb.Dx() || pb.Dy() != nb.Dy() {
		return errors.Errorf("optical flow input sizes differ: %dx%d vs %dx%d",
			pb.Dx(), pb.Dy(), nb.Dx(), nb.Dy())
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
