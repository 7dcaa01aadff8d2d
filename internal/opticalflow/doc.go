// Package opticalflow estimates dense per-pixel motion between two grayscale
// frames.
//
// The estimator follows Gunnar Farneback's polynomial expansion method: each
// neighborhood of both images is approximated by a quadratic polynomial, and
// the displacement that best maps one polynomial onto the other is solved
// for locally, refined over a coarse-to-fine image pyramid.
//
// # Backends
//
// Two implementations satisfy the Estimator interface:
//   - Farneback: pure Go, always available. Pyramid smoothing uses bild,
//     resampling uses disintegration/imaging, and the Gaussian moment matrix
//     is inverted with gonum.
//   - GoCV: wraps OpenCV's calcOpticalFlowFarneback through gocv. Only
//     compiled with the "gocv" build tag, since it requires the native
//     OpenCV libraries.
//
// New returns the backend selected at build time.
//
// # Coordinate System
//
// A Field stores one (dx, dy) pair per pixel of the first image. A positive
// dy means content moved downward between the first and the second image.
package opticalflow
