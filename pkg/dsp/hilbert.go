package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analytic returns the analytic signal of x: the real part is x and the
// imaginary part its Hilbert transform. Negative frequencies are zeroed and
// positive ones doubled in the DFT domain.
func Analytic(x []float64) []complex128 {
	n := len(x)
	if n == 0 {
		return nil
	}
	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}
	fft := fourier.NewCmplxFFT(n)
	coeffs := fft.Coefficients(nil, seq)

	half := (n + 1) / 2
	for k := 1; k < half; k++ {
		coeffs[k] *= 2
	}
	start := half
	if n%2 == 0 {
		start = n/2 + 1
	}
	for k := start; k < n; k++ {
		coeffs[k] = 0
	}

	out := fft.Sequence(nil, coeffs)
	inv := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= inv
	}
	return out
}

// Envelope returns |Analytic(x)|.
func Envelope(x []float64) []float64 {
	a := Analytic(x)
	env := make([]float64, len(a))
	for i, c := range a {
		env[i] = cmplx.Abs(c)
	}
	return env
}
