//go:build gocv

package opticalflow

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Backend names the estimator implementation compiled into the binary.
const Backend = "farneback (opencv)"

// New returns the default estimator configured with DefaultParams.
//
// Built with the "gocv" build tag, this delegates to OpenCV.
func New() (Estimator, error) {
	return NewGoCV(DefaultParams())
}

// GoCV estimates optical flow with OpenCV's calcOpticalFlowFarneback.
type GoCV struct {
	params Params
}

// NewGoCV returns an OpenCV-backed estimator.
func NewGoCV(p Params) (*GoCV, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &GoCV{params: p}, nil
}

// Estimate computes the displacement field that maps prev onto next.
func (e *GoCV) Estimate(prev, next *image.Gray) (*Field, error) {
	if err := checkPair(prev, next); err != nil {
		return nil, err
	}

	a, err := grayToMat(prev)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	b, err := grayToMat(next)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	flow := gocv.NewMat()
	defer flow.Close()

	p := e.params
	gocv.CalcOpticalFlowFarneback(a, b, &flow,
		p.PyramidScale, p.Levels, p.WindowSize, p.Iterations, p.PolyN, p.PolySigma, 0)
	if flow.Empty() {
		return nil, errors.New("opencv returned an empty flow field")
	}

	out := NewField(flow.Cols(), flow.Rows())
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			v := flow.GetVecfAt(y, x)
			out.Set(x, y, v[0], v[1])
		}
	}
	return out, nil
}

// grayToMat copies a gray image into a tightly packed CV_8U matrix.
func grayToMat(g *image.Gray) (gocv.Mat, error) {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	buf := make([]byte, w*h)
	for y := 0; y < h; y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		copy(buf[y*w:(y+1)*w], g.Pix[off:off+w])
	}
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, buf)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "convert gray image to opencv matrix")
	}
	return m, nil
}
