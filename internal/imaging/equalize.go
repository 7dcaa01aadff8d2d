package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/histogram"
	"github.com/pkg/errors"
)

// Equalize performs global histogram equalization of a grayscale image.
//
// The lookup table follows the usual 8-bit definition:
//   - the lowest occupied intensity maps to 0
//   - every higher intensity v maps to round(255 * (cdf(v) - h(min)) / (N - h(min)))
//
// where h is the histogram, cdf its cumulative sum and N the pixel count.
// An image with a single intensity is returned unchanged. The input is not
// modified.
func Equalize(src *image.Gray) *image.Gray {
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	total := b.Dx() * b.Dy()
	if total == 0 {
		return out
	}

	hist := histogram.NewRGBAHistogram(src).R
	lo := 0
	for lo < len(hist.Bins) && hist.Bins[lo] == 0 {
		lo++
	}

	var lut [256]uint8
	if hist.Bins[lo] == total {
		lut[lo] = uint8(lo)
	} else {
		cdf := hist.Cumulative().Bins
		scale := 255.0 / float64(total-hist.Bins[lo])
		for v := lo + 1; v < len(lut); v++ {
			lut[v] = uint8(math.Min(255, math.Round(float64(cdf[v]-cdf[lo])*scale)))
		}
	}

	for y := 0; y < b.Dy(); y++ {
		s := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		d := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			d[x] = lut[s[x]]
		}
	}
	return out
}

// GlowMask marks pixels that are at or above threshold in both images.
//
// Such pixels are washed out in both frames and would otherwise register as
// spurious motion. A threshold above 255 yields an all-false mask.
func GlowMask(a, b *image.Gray, threshold int) ([]bool, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return nil, errors.Errorf("glow mask inputs differ in size: %dx%d vs %dx%d",
			ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}

	w, h := ab.Dx(), ab.Dy()
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		pa := a.Pix[a.PixOffset(ab.Min.X, ab.Min.Y+y):]
		pb := b.Pix[b.PixOffset(bb.Min.X, bb.Min.Y+y):]
		for x := 0; x < w; x++ {
			mask[y*w+x] = int(pa[x]) >= threshold && int(pb[x]) >= threshold
		}
	}
	return mask, nil
}

// ApplyMask zeroes every pixel of img whose mask entry is set, in place.
func ApplyMask(img *image.Gray, mask []bool) error {
	b := img.Bounds()
	w := b.Dx()
	if len(mask) != w*b.Dy() {
		return errors.Errorf("mask has %d entries, image has %d pixels", len(mask), w*b.Dy())
	}
	for i, m := range mask {
		if m {
			img.Pix[img.PixOffset(b.Min.X+i%w, b.Min.Y+i/w)] = 0
		}
	}
	return nil
}
