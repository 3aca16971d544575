package features

import (
	"github.com/guidesense/guidesense/pkg/dsp"
	"github.com/guidesense/guidesense/pkg/types"
)

// Fixed analysis bands in Hz.
const (
	fm0BandHigh = 1000.0

	motorGearLow  = 200.0
	motorGearHigh = 2000.0

	beltLow  = 5.0
	beltHigh = 100.0
)

// degenerateEnergy is the relative energy below which a quantity is treated
// as rounding noise.
const degenerateEnergy = 1e-20

// bpfTolerance is the half-width of the BPF search window as a fraction of
// the target frequency.
const bpfTolerance = 0.05

// ExtractSpectrum computes spectral indices of x sampled at fs Hz.
//
//	FM0             peak-to-peak(x) / Σ amplitude over (0, 1000] Hz
//	MotorGearEnergy share of non-DC energy in [200, 2000] Hz
//	BeltEnergy      share of non-DC energy in [5, 100] Hz
//
// When freqs.BPF > 0 the amplitude spectrum is searched within ±5% of the
// BPF; BPFDetected reports whether any bin fell in the window.
func ExtractSpectrum(x []float64, fs float64, freqs types.FrequencySet) types.FrequencyFeatures {
	var f types.FrequencyFeatures
	s := dsp.AmplitudeSpectrum(x, fs)
	if len(s.Amps) == 0 {
		f.Degrade("spectrum unavailable: fewer than two samples")
		return f
	}

	var lowSum, total, motor, belt float64
	for k := 1; k < len(s.Amps); k++ {
		fr, a := s.Freqs[k], s.Amps[k]
		e := a * a
		total += e
		if fr <= fm0BandHigh {
			lowSum += a
		}
		if fr >= motorGearLow && fr <= motorGearHigh {
			motor += e
		}
		if fr >= beltLow && fr <= beltHigh {
			belt += e
		}
	}

	dc := s.Amps[0] * s.Amps[0]
	if total <= degenerateEnergy*(total+dc) {
		f.Degrade("spectrum degenerate: no non-DC energy")
		return f
	}
	f.MotorGearEnergy = motor / total
	f.BeltEnergy = belt / total
	if lowSum > 0 {
		f.FM0 = dsp.PeakToPeak(x) / lowSum
	} else {
		f.Degrade("fm0 undefined: no amplitude below 1000 Hz")
	}

	if freqs.BPF > 0 {
		idx := s.Band(freqs.BPF*(1-bpfTolerance), freqs.BPF*(1+bpfTolerance))
		if amp, ok := s.MaxIn(idx); ok {
			f.BPFDetected = true
			f.BPFAmplitude = amp
		}
	}

	sanitize(&f.Outcome, "frequency features", &f.FM0, &f.MotorGearEnergy, &f.BeltEnergy, &f.BPFAmplitude)
	return f
}
