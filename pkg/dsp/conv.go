package dsp

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// directConvMax bounds len(a)·len(b) for the direct convolution path.
const directConvMax = 1 << 16

// Convolve returns the full linear convolution of a and b, of length
// len(a)+len(b)-1. Long inputs are convolved through the FFT.
func Convolve(a, b []float64) []float64 {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	if len(a)*len(b) <= directConvMax {
		return convolveDirect(a, b)
	}
	return convolveFFT(a, b)
}

func convolveDirect(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

func convolveFFT(a, b []float64) []float64 {
	m := len(a) + len(b) - 1
	n := 1
	for n < m {
		n <<= 1
	}
	pa := make([]float64, n)
	pb := make([]float64, n)
	copy(pa, a)
	copy(pb, b)

	fft := fourier.NewFFT(n)
	ca := fft.Coefficients(nil, pa)
	cb := fft.Coefficients(nil, pb)
	for k := range ca {
		ca[k] *= cb[k]
	}
	seq := fft.Sequence(nil, ca)

	out := make([]float64, m)
	inv := 1 / float64(n)
	for i := range out {
		out[i] = seq[i] * inv
	}
	return out
}
