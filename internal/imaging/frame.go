package imaging

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Resize scales img to exactly width x height using a linear filter.
//
// Returns an error if the target size is not positive or the source is empty.
func Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid resize target %dx%d", width, height)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("cannot resize an empty image")
	}
	return imaging.Resize(img, width, height, imaging.Linear), nil
}

// Luminance converts img to a single-channel grayscale image.
//
// The conversion uses ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B),
// rounded to the nearest 8-bit value. The result always has its origin at
// (0,0).
func Luminance(img image.Image) *image.Gray {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := gray.Pix[y*gray.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return out
}

// Clone returns a deep copy of img.
//
// The tracker keeps the previous frame across calls; cloning guarantees the
// caller may reuse its buffer for the next frame.
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}
