package opticalflow

import "github.com/pkg/errors"

// Fixed Farneback parameters used for rod tracking. They are not exposed
// through configuration; change them here.
const (
	// PyramidScale is the image scale between consecutive pyramid levels.
	// Level k is smoothed with sigma = (1/PyramidScale^k - 1) / 2 before it
	// is resampled. The base level gets the 3-tap binomial kernel.
	PyramidScale = 0.3

	// PyramidLevels is the number of levels above the base image.
	PyramidLevels = 5

	// WindowSize is the side of the averaging window used when solving for
	// displacement.
	WindowSize = 21

	// Iterations is the number of refinement passes per pyramid level.
	Iterations = 3

	// PolyN is the neighborhood size used for polynomial expansion.
	PolyN = 7

	// PolySigma is the Gaussian sigma weighting the polynomial neighborhood.
	PolySigma = 1.5
)

// minPyramidSide stops pyramid construction once a level would be smaller.
const minPyramidSide = 32

// Params groups the Farneback algorithm parameters.
type Params struct {
	PyramidScale float64
	Levels       int
	WindowSize   int
	Iterations   int
	PolyN        int
	PolySigma    float64
}

// DefaultParams returns the fixed parameter set declared by the package
// constants.
func DefaultParams() Params {
	return Params{
		PyramidScale: PyramidScale,
		Levels:       PyramidLevels,
		WindowSize:   WindowSize,
		Iterations:   Iterations,
		PolyN:        PolyN,
		PolySigma:    PolySigma,
	}
}

// Validate reports whether the parameters describe a runnable estimator.
func (p Params) Validate() error {
	switch {
	case p.PyramidScale <= 0 || p.PyramidScale >= 1:
		return errors.Errorf("pyramid scale must be in (0, 1), got %g", p.PyramidScale)
	case p.Levels < 0:
		return errors.Errorf("pyramid levels must be >= 0, got %d", p.Levels)
	case p.WindowSize < 1:
		return errors.Errorf("window size must be >= 1, got %d", p.WindowSize)
	case p.Iterations < 1:
		return errors.Errorf("iterations must be >= 1, got %d", p.Iterations)
	case p.PolyN < 1:
		return errors.Errorf("polynomial neighborhood must be >= 1, got %d", p.PolyN)
	case p.PolySigma <= 0:
		return errors.Errorf("polynomial sigma must be > 0, got %g", p.PolySigma)
	}
	return nil
}
