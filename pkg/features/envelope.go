package features

import (
	"fmt"

	"github.com/guidesense/guidesense/pkg/dsp"
	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
)

// Envelope analysis parameters.
const (
	envelopeFilterOrder = 4
	envelopeHarmonics   = 4

	bandClampLow  = 0.01
	bandClampHigh = 0.99
	fallbackLow   = 0.1
	fallbackHigh  = 0.9
)

// AnalyzeEnvelope demodulates x around the structural resonance band of the
// guide series and looks for the first four BPF harmonics in the envelope
// spectrum.
//
// The band edges are normalised to Nyquist, clamped into [0.01, 0.99] and
// replaced by (0.1, 0.9) when the clamped band is empty. A detection is
// recorded for every harmonic whose ±5% window contains at least one
// spectrum bin; its SNR is the window peak over the spectrum median.
//
// Any failure returns band (0, 0) with no detections and a degraded note.
func AnalyzeEnvelope(x []float64, fs float64, series string, freqs types.FrequencySet) types.EnvelopeFeatures {
	low, high := guide.ResonanceBand(series)
	f := types.EnvelopeFeatures{Detections: []types.EnvelopeDetection{}}

	if fs <= 0 {
		return failedEnvelope(fmt.Errorf("invalid sampling rate %g", fs))
	}
	nyq := fs / 2
	lo := clamp(low/nyq, bandClampLow, bandClampHigh)
	hi := clamp(high/nyq, bandClampLow, bandClampHigh)
	if lo >= hi {
		lo, hi = fallbackLow, fallbackHigh
	}

	sos, err := dsp.ButterBandpass(envelopeFilterOrder, lo, hi)
	if err != nil {
		return failedEnvelope(err)
	}
	filtered, err := dsp.FiltFilt(sos, x)
	if err != nil {
		return failedEnvelope(err)
	}

	env := dsp.Envelope(filtered)
	m := dsp.Mean(env)
	for i := range env {
		env[i] -= m
	}
	if !dsp.AllFinite(env) {
		return failedEnvelope(fmt.Errorf("non-finite envelope"))
	}
	spec := dsp.AmplitudeSpectrum(env, fs)
	if len(spec.Amps) == 0 {
		return failedEnvelope(fmt.Errorf("empty envelope spectrum"))
	}
	noise := dsp.Median(spec.Amps)

	for n := 1; n <= envelopeHarmonics; n++ {
		target := float64(n) * freqs.BPF
		if !(target > 0) || !dsp.Finite(target) {
			continue
		}
		idx := spec.Band(target*(1-bpfTolerance), target*(1+bpfTolerance))
		peak, ok := spec.MaxIn(idx)
		if !ok {
			continue
		}
		var snr float64
		if noise > 0 {
			snr = peak / noise
		}
		f.Detections = append(f.Detections, types.EnvelopeDetection{
			Order:     n,
			Frequency: target,
			Amplitude: peak,
			SNR:       snr,
		})
	}

	f.ResonanceBand = [2]float64{low, high}
	f.DefectDetected = len(f.Detections) > 0
	return f
}

func failedEnvelope(err error) types.EnvelopeFeatures {
	f := types.EnvelopeFeatures{Detections: []types.EnvelopeDetection{}}
	f.Degrade("envelope: " + err.Error())
	return f
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
