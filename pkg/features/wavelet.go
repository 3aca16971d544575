package features

import (
	"context"
	"math/cmplx"

	"github.com/guidesense/guidesense/pkg/dsp"
	"github.com/guidesense/guidesense/pkg/types"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// STFT and CWT parameters.
const (
	stftFrame   = 256
	cwtMaxScale = 63
)

// AnalyzeWavelet computes time-frequency peakiness indices of x.
//
// The STFT uses frames of 256 samples (or the whole signal when shorter)
// with 50% overlap, once with a rectangular and once with a Hann window.
// For every non-DC bin, NP4 = T·Σ|S|⁴ / (Σ|S|²)² over the T frames; the
// index is the mean over bins.
//
// The CWT uses the Daubechies-8 wavelet at scales 1..63; per scale
// NP4 = N·Σc⁴ / (Σc²)², averaged over scales. ctx is checked before every
// scale and cancellation returns the zero bundle marked degraded.
func AnalyzeWavelet(ctx context.Context, x []float64) types.WaveletFeatures {
	var f types.WaveletFeatures
	if len(x) < 2 {
		f.Degrade("wavelet: fewer than two samples")
		return f
	}

	flat, okFlat := stftNP4(x, window.Rectangular)
	hann, okHann := stftNP4(x, window.Hann)
	if !okFlat || !okHann {
		f.Degrade("stft: no non-DC energy")
	}

	cwt, err := cwtNP4(ctx, x)
	if err != nil {
		var out types.WaveletFeatures
		out.Degrade("cwt: " + err.Error())
		return out
	}

	f.STFTFlatNP4, f.STFTHannNP4, f.CWTNP4 = flat, hann, cwt
	sanitize(&f.Outcome, "wavelet features", &f.STFTFlatNP4, &f.STFTHannNP4, &f.CWTNP4)
	return f
}

// stftNP4 returns the mean per-bin NP4 of the windowed STFT of x and false
// when no bin carried energy.
func stftNP4(x []float64, win func(int) []float64) (float64, bool) {
	size := min(stftFrame, len(x))
	hop := max(size/2, 1)
	w := win(size)

	bins := size/2 + 1
	s2 := make([]float64, bins)
	s4 := make([]float64, bins)
	frames := 0
	frame := make([]float64, size)
	for start := 0; start+size <= len(x); start += hop {
		for i := range frame {
			frame[i] = x[start+i] * w[i]
		}
		spec := fft.FFTReal(frame)
		for k := 1; k < bins; k++ {
			m := cmplx.Abs(spec[k])
			m2 := m * m
			s2[k] += m2
			s4[k] += m2 * m2
		}
		frames++
	}

	var sum float64
	var used int
	for k := 1; k < bins; k++ {
		if s2[k] == 0 {
			continue
		}
		sum += float64(frames) * s4[k] / (s2[k] * s2[k])
		used++
	}
	if used == 0 {
		return 0, false
	}
	return sum / float64(used), true
}

// cwtNP4 returns the scale-averaged NP4 of the db8 CWT of x.
func cwtNP4(ctx context.Context, x []float64) (float64, error) {
	tr := dsp.NewCWT()
	n := float64(len(x))
	var sum float64
	var used int
	for a := 1; a <= cwtMaxScale; a++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		coef := tr.Scale(x, float64(a))
		var s2, s4 float64
		for _, c := range coef {
			c2 := c * c
			s2 += c2
			s4 += c2 * c2
		}
		if s2 == 0 {
			continue
		}
		sum += n * s4 / (s2 * s2)
		used++
	}
	if used == 0 {
		return 0, errZeroVariance
	}
	return sum / float64(used), nil
}
