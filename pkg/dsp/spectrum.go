package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum is a one-sided amplitude spectrum.
type Spectrum struct {
	Freqs []float64 // Hz, Freqs[0] == 0
	Amps  []float64 // 2|X[k]|/n, DC and Nyquist not doubled
}

// AmplitudeSpectrum returns the one-sided amplitude spectrum of x sampled
// at fs Hz. Fewer than two samples or a non-positive fs return an empty
// Spectrum.
func AmplitudeSpectrum(x []float64, fs float64) Spectrum {
	n := len(x)
	if n < 2 || fs <= 0 {
		return Spectrum{}
	}
	coeffs := fourier.NewFFT(n).Coefficients(nil, x)

	s := Spectrum{
		Freqs: make([]float64, len(coeffs)),
		Amps:  make([]float64, len(coeffs)),
	}
	df := fs / float64(n)
	for k, c := range coeffs {
		s.Freqs[k] = float64(k) * df
		a := cmplx.Abs(c) / float64(n)
		if k != 0 && !(n%2 == 0 && k == n/2) {
			a *= 2
		}
		s.Amps[k] = a
	}
	return s
}

// Band returns the indices k with lo <= Freqs[k] <= hi.
func (s Spectrum) Band(lo, hi float64) []int {
	var idx []int
	for k, f := range s.Freqs {
		if f >= lo && f <= hi {
			idx = append(idx, k)
		}
	}
	return idx
}

// MaxIn returns the largest amplitude over the given indices and whether
// any index was supplied.
func (s Spectrum) MaxIn(idx []int) (float64, bool) {
	if len(idx) == 0 {
		return 0, false
	}
	m := s.Amps[idx[0]]
	for _, k := range idx[1:] {
		if s.Amps[k] > m {
			m = s.Amps[k]
		}
	}
	return m, true
}
