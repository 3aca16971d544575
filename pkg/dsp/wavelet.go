package dsp

import (
	"math"
	"sync"
)

// db8 holds the Daubechies-8 reconstruction lowpass (scaling) filter.
// Σh = √2 and Σh² = 1.
var db8 = [16]float64{
	0.05441584224308161,
	0.3128715909144659,
	0.6756307362980128,
	0.5853546836548691,
	-0.015829105256023893,
	-0.2840155429624281,
	0.00047248457399797254,
	0.128747426620186,
	-0.01736930100202211,
	-0.04408825393106472,
	0.013981027917015516,
	0.008746094047015655,
	-0.00487035299301066,
	-0.0003917403729959771,
	0.0006754494059985568,
	-0.00011747678400228192,
}

// cascadeLevel is the number of refinement steps used to sample the mother
// wavelet, giving a grid spacing of 2⁻¹⁰.
const cascadeLevel = 10

// Daubechies8 returns copies of the db8 scaling (lowpass) and wavelet
// (highpass) reconstruction filters. The highpass is the quadrature mirror
// g[k] = (-1)ᵏ h[N-1-k].
func Daubechies8() (h, g []float64) {
	n := len(db8)
	h = make([]float64, n)
	g = make([]float64, n)
	for k := range n {
		h[k] = db8[k]
		g[k] = db8[n-1-k]
		if k%2 == 1 {
			g[k] = -g[k]
		}
	}
	return h, g
}

// Cascade samples the mother wavelet of the filter pair (h, g) on the grid
// x[n] = n/2ʲ with j = level, using the cascade algorithm: one
// upsample-and-filter step with g followed by level-1 steps with h.
func Cascade(h, g []float64, level int) (x, psi []float64) {
	if level < 1 || len(h) == 0 || len(g) == 0 {
		return nil, nil
	}
	seq := []float64{1}
	for step := range level {
		up := make([]float64, 2*len(seq)-1)
		for i, v := range seq {
			up[2*i] = v
		}
		f := h
		if step == 0 {
			f = g
		}
		seq = Convolve(up, f)
	}

	p := math.Exp2(float64(level))
	norm := math.Sqrt(p)
	x = make([]float64, len(seq))
	psi = make([]float64, len(seq))
	for n, v := range seq {
		x[n] = float64(n) / p
		psi[n] = norm * v
	}
	return x, psi
}

// CWT evaluates a continuous wavelet transform with the db8 wavelet. The
// mother wavelet is integrated once; each scale resamples the integral,
// convolves it with the signal and differentiates, which keeps the
// transform consistent for scales narrower than the sampling grid.
type CWT struct {
	intPsi []float64
	span   float64 // x[last] - x[0]
	step   float64
}

var (
	db8CWT     *CWT
	db8CWTOnce sync.Once
)

// NewCWT returns the shared db8 transform. The integrated wavelet is built
// on first use and read-only afterwards.
func NewCWT() *CWT {
	db8CWTOnce.Do(func() {
		h, g := Daubechies8()
		x, psi := Cascade(h, g, cascadeLevel)
		step := x[1] - x[0]
		intPsi := make([]float64, len(psi))
		var acc float64
		for i, v := range psi {
			acc += v
			intPsi[i] = acc * step
		}
		db8CWT = &CWT{intPsi: intPsi, span: x[len(x)-1] - x[0], step: step}
	})
	return db8CWT
}

// Scale returns the wavelet coefficients of x at scale a (in samples).
// The result has len(x) entries; nil for empty x or a <= 0.
func (c *CWT) Scale(x []float64, a float64) []float64 {
	if len(x) == 0 || a <= 0 {
		return nil
	}
	count := int(math.Floor(a*c.span)) + 1
	kernel := make([]float64, 0, count)
	for k := range count {
		j := int(float64(k) / (a * c.step))
		if j >= len(c.intPsi) {
			break
		}
		kernel = append(kernel, c.intPsi[j])
	}
	reverse(kernel)

	conv := Convolve(x, kernel)
	if len(conv) < 2 {
		return make([]float64, len(x))
	}
	k := -math.Sqrt(a)
	coef := make([]float64, len(conv)-1)
	for i := range coef {
		coef[i] = k * (conv[i+1] - conv[i])
	}

	d := float64(len(coef)-len(x)) / 2
	if d > 0 {
		lo := int(math.Floor(d))
		hi := len(coef) - int(math.Ceil(d))
		coef = coef[lo:hi]
	}
	if len(coef) < len(x) {
		// Kernel shorter than two taps; pad to the signal length.
		out := make([]float64, len(x))
		copy(out, coef)
		coef = out
	}
	return coef
}
