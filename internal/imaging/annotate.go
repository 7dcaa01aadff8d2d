package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// DrawBounds returns a copy of img with the outline of rect drawn in c.
//
// rect is relative to the image origin and is clipped to the image. The
// outline is drawn inside rect, thickness pixels wide; a thickness below 1 is
// treated as 1. The input image is not modified.
func DrawBounds(img image.Image, rect image.Rectangle, c color.Color, thickness int) *image.NRGBA {
	out := imaging.Clone(img)
	r := rect.Intersect(out.Bounds())
	if r.Empty() {
		return out
	}
	if thickness < 1 {
		thickness = 1
	}

	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			edge := x-r.Min.X < thickness || r.Max.X-1-x < thickness ||
				y-r.Min.Y < thickness || r.Max.Y-1-y < thickness
			if edge {
				out.SetNRGBA(x, y, nc)
			}
		}
	}
	return out
}
