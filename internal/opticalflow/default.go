//go:build !gocv

package opticalflow

// New returns the default estimator configured with DefaultParams.
//
// Without the "gocv" build tag this is the pure Go Farneback estimator.
func New() (Estimator, error) {
	return NewFarneback(DefaultParams())
}

// Backend names the estimator implementation compiled into the binary.
const Backend = "farneback (pure go)"
