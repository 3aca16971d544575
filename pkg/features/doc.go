// Package features implements the five feature-extraction stages of the
// diagnosis pipeline. Each stage is a pure function of the immutable input
// signal and returns one typed bundle from pkg/types.
//
// Stages never fail. A degenerate computation (zero variance, a signal too
// short to filter, a cancelled context) yields the zero-filled bundle with
// Outcome.Degraded set and a note naming the cause. Non-finite results are
// coerced to 0 under the same rule. Validation of the input as a whole
// (empty signal, bad sampling rate) belongs to pkg/diagnosis.
//
//	time.go      peak, mean, RMS, kurtosis, crest factor
//	spectrum.go  FM0, band energy fractions, BPF peak search
//	envelope.go  resonance-band demodulation and BPF harmonic detection
//	hos.go       NA4, FM4, M6A, M8A
//	wavelet.go   STFT and CWT peakiness (NP4)
package features
