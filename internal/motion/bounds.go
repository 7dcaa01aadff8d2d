package motion

import (
	"image"
	"math"
)

// Bounds is a crop rectangle given as half-open row and column ranges
// [YMin, YMax) x [XMin, XMax).
type Bounds struct {
	YMin int
	YMax int
	XMin int
	XMax int
}

// Rect converts b to an image.Rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Empty reports whether b covers no pixels.
func (b Bounds) Empty() bool {
	return b.YMax <= b.YMin || b.XMax <= b.XMin
}

// Scale multiplies horizontal coordinates by sx and vertical ones by sy.
// Minimums are floored and maximums ceiled so the scaled region covers the
// original one.
func (b Bounds) Scale(sx, sy float64) Bounds {
	return Bounds{
		YMin: int(math.Floor(float64(b.YMin) * sy)),
		YMax: int(math.Ceil(float64(b.YMax) * sy)),
		XMin: int(math.Floor(float64(b.XMin) * sx)),
		XMax: int(math.Ceil(float64(b.XMax) * sx)),
	}
}
