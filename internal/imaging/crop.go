package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// CropRect extracts a rectangular region from an image.
//
// Parameters:
//   - img: Source image. It is not modified.
//   - rect: Region to extract, relative to the image origin, so (0,0) is
//     always the top-left pixel regardless of img.Bounds().Min.
//
// Returns:
//   - *image.NRGBA: A copy of the region with its origin at (0,0). The region
//     is clipped to the image; a region entirely outside yields an empty
//     image rather than an error.
//
// An empty result cannot be encoded by SaveFrame. Check Bounds().Empty()
// before writing it.
func CropRect(img image.Image, rect image.Rectangle) *image.NRGBA {
	return imaging.Crop(img, rect.Add(img.Bounds().Min))
}
