package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// Section is one second-order IIR stage in transposed direct form II:
//
//	H(z) = (B[0] + B[1]z⁻¹ + B[2]z⁻²) / (1 + A[1]z⁻¹ + A[2]z⁻²)
//
// A[0] is always 1.
type Section struct {
	B [3]float64
	A [3]float64
}

// ErrSignalTooShort is returned by FiltFilt when the input is not longer
// than the padding the zero-phase filter needs.
var ErrSignalTooShort = errors.New("dsp: signal too short for zero-phase filter")

// ButterBandpass designs an order-N digital Butterworth bandpass filter
// (N second-order sections, 2N poles). low and high are band edges
// normalised to the Nyquist frequency, 0 < low < high < 1.
//
// The design follows the classic route: analog lowpass prototype, lowpass
// to bandpass transform around the prewarped edges, bilinear transform.
// The overall gain is normalised to unity at the band centre and carried by
// the first section.
func ButterBandpass(order int, low, high float64) ([]Section, error) {
	if order < 1 {
		return nil, fmt.Errorf("dsp: butterworth order %d < 1", order)
	}
	if !(low > 0 && low < high && high < 1) {
		return nil, fmt.Errorf("dsp: invalid band [%g, %g]", low, high)
	}

	// Bilinear transform with fs = 2 (normalised), so 2·fs = 4.
	const k2fs = 4.0
	w1 := k2fs * math.Tan(math.Pi*low/2)
	w2 := k2fs * math.Tan(math.Pi*high/2)
	bw := w2 - w1
	w0 := math.Sqrt(w1 * w2)

	// Each prototype pole in the upper half plane yields two bandpass poles;
	// together with its mirror they form two conjugate pairs. Keeping only
	// poles with positive imaginary part gives one representative per pair.
	var poles []complex128
	for m := -order + 1; m < order; m += 2 {
		p := -cmplx.Exp(complex(0, math.Pi*float64(m)/float64(2*order)))
		pl := p * complex(bw/2, 0)
		r := cmplx.Sqrt(pl*pl - complex(w0*w0, 0))
		for _, pb := range []complex128{pl + r, pl - r} {
			pz := (complex(k2fs, 0) + pb) / (complex(k2fs, 0) - pb)
			if imag(pz) > 0 {
				poles = append(poles, pz)
			}
		}
	}
	if len(poles) != order {
		return nil, fmt.Errorf("dsp: butterworth design produced %d pole pairs, want %d", len(poles), order)
	}

	sos := make([]Section, order)
	for i, p := range poles {
		sos[i] = Section{
			B: [3]float64{1, 0, -1}, // zeros at z = +1 and z = -1
			A: [3]float64{1, -2 * real(p), real(p)*real(p) + imag(p)*imag(p)},
		}
	}

	wc := 2 * math.Atan(w0/k2fs)
	g := cmplx.Abs(Response(sos, wc))
	if g == 0 || !Finite(g) {
		return nil, fmt.Errorf("dsp: degenerate butterworth gain %g", g)
	}
	for j := range sos[0].B {
		sos[0].B[j] /= g
	}
	return sos, nil
}

// Response evaluates the cascade's frequency response at w rad/sample.
func Response(sos []Section, w float64) complex128 {
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	h := complex(1, 0)
	for _, s := range sos {
		num := complex(s.B[0], 0) + complex(s.B[1], 0)*z1 + complex(s.B[2], 0)*z2
		den := complex(s.A[0], 0) + complex(s.A[1], 0)*z1 + complex(s.A[2], 0)*z2
		h *= num / den
	}
	return h
}

// PadLen is the odd-extension length FiltFilt uses for sos.
func PadLen(sos []Section) int {
	var bz, az int
	for _, s := range sos {
		if s.B[2] == 0 {
			bz++
		}
		if s.A[2] == 0 {
			az++
		}
	}
	return 3 * (2*len(sos) + 1 - min(bz, az))
}

// SteadyState returns per-section initial states for a unit step input, so
// that filtering a constant signal starts without a transient. Scale each
// state by the first input value before use.
func SteadyState(sos []Section) [][2]float64 {
	zi := make([][2]float64, len(sos))
	scale := 1.0
	for i, s := range sos {
		sumA := s.A[0] + s.A[1] + s.A[2]
		var dc float64
		if sumA != 0 {
			dc = (s.B[0] + s.B[1] + s.B[2]) / sumA
		}
		zi[i] = [2]float64{
			scale * (dc - s.B[0]),
			scale * (s.B[2] - s.A[2]*dc),
		}
		scale *= dc
	}
	return zi
}

// Filter runs x through the cascade once, starting from the per-section
// states zi (nil means zero state). x is not modified.
func Filter(sos []Section, x []float64, zi [][2]float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)
	for i, s := range sos {
		var z1, z2 float64
		if zi != nil {
			z1, z2 = zi[i][0], zi[i][1]
		}
		for n, v := range y {
			out := s.B[0]*v + z1
			z1 = s.B[1]*v - s.A[1]*out + z2
			z2 = s.B[2]*v - s.A[2]*out
			y[n] = out
		}
	}
	return y
}

// FiltFilt applies sos forward and backward for zero phase distortion. The
// signal is padded at both ends by odd extension and the filter starts from
// steady-state conditions scaled to the first sample of each pass.
// ErrSignalTooShort is returned when len(x) <= PadLen(sos).
func FiltFilt(sos []Section, x []float64) ([]float64, error) {
	pad := PadLen(sos)
	n := len(x)
	if n <= pad {
		return nil, fmt.Errorf("%w: %d samples, need more than %d", ErrSignalTooShort, n, pad)
	}

	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	zi := SteadyState(sos)
	y := Filter(sos, ext, scaled(zi, ext[0]))
	reverse(y)
	y = Filter(sos, y, scaled(zi, y[0]))
	reverse(y)
	return y[pad : pad+n], nil
}

func scaled(zi [][2]float64, k float64) [][2]float64 {
	out := make([][2]float64, len(zi))
	for i, z := range zi {
		out[i] = [2]float64{z[0] * k, z[1] * k}
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
