package opticalflow

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Farneback is a pure Go dense optical flow estimator.
//
// It is safe to call Estimate concurrently on the same value: all working
// buffers are allocated per call.
type Farneback struct {
	params Params
	kernel *polyKernel
}

// NewFarneback prepares an estimator for the given parameters.
//
// Parameters:
//   - p: Algorithm parameters, usually DefaultParams().
//
// Returns:
//   - *Farneback: Estimator holding the precomputed polynomial expansion
//     kernels. It keeps no per-call state.
//   - error: Non-nil if p fails Validate or the polynomial moment matrix is
//     singular.
func NewFarneback(p Params) (*Farneback, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	k, err := newPolyKernel(p.PolyN, p.PolySigma)
	if err != nil {
		return nil, err
	}
	return &Farneback{params: p, kernel: k}, nil
}

// Estimate computes the displacement field that maps prev onto next.
func (f *Farneback) Estimate(prev, next *image.Gray) (*Field, error) {
	if err := checkPair(prev, next); err != nil {
		return nil, err
	}
	width, height := prev.Bounds().Dx(), prev.Bounds().Dy()
	p := f.params

	levels := 0
	for scale := p.PyramidScale; levels < p.Levels; levels++ {
		if float64(width)*scale < minPyramidSide || float64(height)*scale < minPyramidSide {
			break
		}
		scale *= p.PyramidScale
	}

	var flow *Field
	for k := levels; k >= 0; k-- {
		scale := math.Pow(p.PyramidScale, float64(k))
		sigma := (1/scale - 1) * 0.5
		lw := int(math.Round(float64(width) * scale))
		lh := int(math.Round(float64(height) * scale))
		if lw < 1 || lh < 1 {
			return nil, errors.Errorf("pyramid level %d collapsed to %dx%d", k, lw, lh)
		}

		if flow == nil {
			flow = NewField(lw, lh)
		} else {
			flow = flow.resize(lw, lh, float32(1/p.PyramidScale))
		}

		r0 := f.kernel.expand(levelImage(prev, sigma, lw, lh), lw, lh)
		r1 := f.kernel.expand(levelImage(next, sigma, lw, lh), lw, lh)

		m := updateMatrices(r0, r1, flow)
		for i := 0; i < p.Iterations; i++ {
			solveFlow(m, flow, p.WindowSize)
			if i < p.Iterations-1 {
				m = updateMatrices(r0, r1, flow)
			}
		}
	}
	return flow, nil
}

// levelImage smooths src and resamples it to a pyramid level.
//
// The separable kernel is the one OpenCV uses for the same level, see
// levelKernel. Each pass rounds to 8 bits and replicates edge pixels.
func levelImage(src *image.Gray, sigma float64, width, height int) []float32 {
	k := levelKernel(sigma)
	opts := &convolution.Options{Bias: 0.5, KeepAlpha: true}
	smoothed := convolution.Convolve(src, k, opts)
	smoothed = convolution.Convolve(smoothed, k.Transposed(), opts)
	resized := imaging.Resize(smoothed, width, height, imaging.Linear)

	out := make([]float32, width*height)
	for y := 0; y < height; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < width; x++ {
			out[y*width+x] = float32(row[x*4])
		}
	}
	return out
}

// levelKernel returns the horizontal smoothing kernel for a pyramid level
// with the given sigma. Its size is round(5*sigma) forced odd and at least
// 3; a non-positive sigma selects the binomial [1 2 1]/4.
func levelKernel(sigma float64) *convolution.Kernel {
	size := max(int(math.Round(sigma*5))|1, 3)
	k := convolution.NewKernel(size, 1)
	if sigma <= 0 {
		copy(k.Matrix, []float64{0.25, 0.5, 0.25})
		return k
	}

	var sum float64
	c := size / 2
	for i := range k.Matrix {
		x := float64(i - c)
		k.Matrix[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += k.Matrix[i]
	}
	for i := range k.Matrix {
		k.Matrix[i] /= sum
	}
	return k
}

// polyKernel holds the separable Gaussian filters and the entries of the
// inverse moment matrix needed for polynomial expansion.
type polyKernel struct {
	n                      int
	g, xg, xxg             []float64
	ig11, ig03, ig33, ig55 float64
}

func newPolyKernel(n int, sigma float64) (*polyKernel, error) {
	k := &polyKernel{
		n:   n,
		g:   make([]float64, 2*n+1),
		xg:  make([]float64, 2*n+1),
		xxg: make([]float64, 2*n+1),
	}
	var sum float64
	for x := -n; x <= n; x++ {
		k.g[x+n] = math.Exp(-float64(x*x) / (2 * sigma * sigma))
		sum += k.g[x+n]
	}
	for x := -n; x <= n; x++ {
		fx := float64(x)
		k.g[x+n] /= sum
		k.xg[x+n] = fx * k.g[x+n]
		k.xxg[x+n] = fx * fx * k.g[x+n]
	}

	// Moment matrix of the basis {1, x, y, x^2, y^2, xy} under the Gaussian
	// weight. Only the entries that survive symmetry are non-zero.
	g := mat.NewDense(6, 6, nil)
	for y := -n; y <= n; y++ {
		for x := -n; x <= n; x++ {
			w := k.g[y+n] * k.g[x+n]
			fx, fy := float64(x), float64(y)
			g.Set(0, 0, g.At(0, 0)+w)
			g.Set(1, 1, g.At(1, 1)+w*fx*fx)
			g.Set(3, 3, g.At(3, 3)+w*fx*fx*fx*fx)
			g.Set(5, 5, g.At(5, 5)+w*fx*fx*fy*fy)
		}
	}
	g11 := g.At(1, 1)
	g.Set(2, 2, g11)
	g.Set(0, 3, g11)
	g.Set(0, 4, g11)
	g.Set(3, 0, g11)
	g.Set(4, 0, g11)
	g.Set(4, 4, g.At(3, 3))
	g.Set(3, 4, g.At(5, 5))
	g.Set(4, 3, g.At(5, 5))

	var inv mat.Dense
	if err := inv.Inverse(g); err != nil {
		return nil, errors.Wrap(err, "invert polynomial moment matrix")
	}
	k.ig11 = inv.At(1, 1)
	k.ig03 = inv.At(0, 3)
	k.ig33 = inv.At(3, 3)
	k.ig55 = inv.At(5, 5)
	return k, nil
}

// expand computes the quadratic polynomial coefficients of every pixel.
//
// The output holds five coefficients per pixel in the order
// (y, x, y^2, x^2, xy); the constant term is not needed.
func (k *polyKernel) expand(src []float32, width, height int) []float32 {
	n := k.n
	dst := make([]float32, width*height*5)

	parallel.Line(height, func(start, end int) {
		row0 := make([]float64, width)
		row1 := make([]float64, width)
		row2 := make([]float64, width)
		for y := start; y < end; y++ {
			// vertical pass
			s := src[y*width : (y+1)*width]
			for x := 0; x < width; x++ {
				row0[x] = float64(s[x]) * k.g[n]
				row1[x] = 0
				row2[x] = 0
			}
			for i := 1; i <= n; i++ {
				up := src[clampInt(y-i, 0, height-1)*width:]
				down := src[clampInt(y+i, 0, height-1)*width:]
				g0, g1, g2 := k.g[n+i], k.xg[n+i], k.xxg[n+i]
				for x := 0; x < width; x++ {
					p := float64(up[x]) + float64(down[x])
					row0[x] += g0 * p
					row1[x] += g1 * (float64(down[x]) - float64(up[x]))
					row2[x] += g2 * p
				}
			}

			// horizontal pass
			d := dst[y*width*5:]
			for x := 0; x < width; x++ {
				g0 := k.g[n]
				b1 := row0[x] * g0
				b3 := row1[x] * g0
				b5 := row2[x] * g0
				var b2, b4, b6 float64
				for i := 1; i <= n; i++ {
					l := clampInt(x-i, 0, width-1)
					r := clampInt(x+i, 0, width-1)
					gi := k.g[n+i]
					tg := row0[r] + row0[l]
					b1 += tg * gi
					b4 += tg * k.xxg[n+i]
					b2 += (row0[r] - row0[l]) * k.xg[n+i]
					b3 += (row1[r] + row1[l]) * gi
					b6 += (row1[r] - row1[l]) * k.xg[n+i]
					b5 += (row2[r] + row2[l]) * gi
				}
				d[x*5] = float32(b3 * k.ig11)
				d[x*5+1] = float32(b2 * k.ig11)
				d[x*5+2] = float32(b1*k.ig03 + b5*k.ig33)
				d[x*5+3] = float32(b1*k.ig03 + b4*k.ig33)
				d[x*5+4] = float32(b6 * k.ig55)
			}
		}
	})
	return dst
}

// borderWeights attenuate the equations of pixels near the image edge, where
// the polynomial expansion sees replicated data.
var borderWeights = [...]float32{0.14, 0.14, 0.4472, 0.8943, 0.8943}

// updateMatrices builds, for every pixel, the normal equations
// (A^T A, A^T b) relating the two expansions under the current flow.
// Five values per pixel: g11, g12, g22, h1, h2 with index 1 = y, 2 = x.
func updateMatrices(r0, r1 []float32, flow *Field) []float32 {
	width, height := flow.Width, flow.Height
	m := make([]float32, width*height*5)
	border := len(borderWeights)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				dx, dy := flow.DX[i], flow.DY[i]
				fx := float32(x) + dx
				fy := float32(y) + dy

				p0 := r0[i*5:]
				var r2, r3, r4, r5, r6 float32
				if fx >= 0 && fx <= float32(width-1) && fy >= 0 && fy <= float32(height-1) {
					x1 := int(fx)
					y1 := int(fy)
					fx -= float32(x1)
					fy -= float32(y1)
					x2 := min(x1+1, width-1)
					y2 := min(y1+1, height-1)

					a00 := (1 - fx) * (1 - fy)
					a01 := fx * (1 - fy)
					a10 := (1 - fx) * fy
					a11 := fx * fy
					q00 := r1[(y1*width+x1)*5:]
					q01 := r1[(y1*width+x2)*5:]
					q10 := r1[(y2*width+x1)*5:]
					q11 := r1[(y2*width+x2)*5:]
					bilerp := func(c int) float32 {
						return a00*q00[c] + a01*q01[c] + a10*q10[c] + a11*q11[c]
					}
					r2 = bilerp(0)
					r3 = bilerp(1)
					r4 = (p0[2] + bilerp(2)) * 0.5
					r5 = (p0[3] + bilerp(3)) * 0.5
					r6 = (p0[4] + bilerp(4)) * 0.25
				} else {
					// warped outside the image: no information from the second expansion
					r4 = p0[2]
					r5 = p0[3]
					r6 = p0[4] * 0.5
				}
				r2 = (p0[0] - r2) * 0.5
				r3 = (p0[1] - r3) * 0.5

				r2 += r4*dy + r6*dx
				r3 += r6*dy + r5*dx

				if x < border || x >= width-border || y < border || y >= height-border {
					scale := float32(1)
					if x < border {
						scale *= borderWeights[x]
					}
					if x >= width-border {
						scale *= borderWeights[width-x-1]
					}
					if y < border {
						scale *= borderWeights[y]
					}
					if y >= height-border {
						scale *= borderWeights[height-y-1]
					}
					r2 *= scale
					r3 *= scale
					r4 *= scale
					r5 *= scale
					r6 *= scale
				}

				o := m[i*5:]
				o[0] = r4*r4 + r6*r6
				o[1] = (r4 + r5) * r6
				o[2] = r5*r5 + r6*r6
				o[3] = r4*r2 + r6*r3
				o[4] = r6*r2 + r5*r3
			}
		}
	})
	return m
}

// solveFlow box-filters the normal equations over a window and solves the
// resulting 2x2 system per pixel, writing the displacement into flow.
func solveFlow(m []float32, flow *Field, window int) {
	width, height := flow.Width, flow.Height
	blurred := boxFilter5(m, width, height, window/2)
	scale := 1 / float64(window*window)

	for i := 0; i < width*height; i++ {
		b := blurred[i*5:]
		g11 := b[0] * scale
		g12 := b[1] * scale
		g22 := b[2] * scale
		h1 := b[3] * scale
		h2 := b[4] * scale

		idet := 1 / (g11*g22 - g12*g12 + 1e-3)
		flow.DX[i] = float32((g11*h2 - g12*h1) * idet)
		flow.DY[i] = float32((g22*h1 - g12*h2) * idet)
	}
}

// boxFilter5 sums a five-channel image over a (2r+1)x(2r+1) window with
// replicated borders. Sums are not normalized.
func boxFilter5(src []float32, width, height, r int) []float64 {
	const ch = 5
	vert := make([]float64, width*height*ch)

	parallel.Line(width, func(start, end int) {
		for x := start; x < end; x++ {
			for c := 0; c < ch; c++ {
				var sum float64
				for dy := -r; dy <= r; dy++ {
					sum += float64(src[(clampInt(dy, 0, height-1)*width+x)*ch+c])
				}
				for y := 0; y < height; y++ {
					vert[(y*width+x)*ch+c] = sum
					add := clampInt(y+r+1, 0, height-1)
					sub := clampInt(y-r, 0, height-1)
					sum += float64(src[(add*width+x)*ch+c]) - float64(src[(sub*width+x)*ch+c])
				}
			}
		}
	})

	out := make([]float64, width*height*ch)
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			row := vert[y*width*ch:]
			for c := 0; c < ch; c++ {
				var sum float64
				for dx := -r; dx <= r; dx++ {
					sum += row[clampInt(dx, 0, width-1)*ch+c]
				}
				for x := 0; x < width; x++ {
					out[(y*width+x)*ch+c] = sum
					add := clampInt(x+r+1, 0, width-1)
					sub := clampInt(x-r, 0, width-1)
					sum += row[add*ch+c] - row[sub*ch+c]
				}
			}
		}
	})
	return out
}
