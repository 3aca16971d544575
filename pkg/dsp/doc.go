// Package dsp holds the numerical kernels behind the feature extractors.
//
// spectrum.go wraps gonum's real FFT into a one-sided amplitude spectrum
// with its frequency axis.
//
// butter.go designs Butterworth bandpass filters as cascaded second-order
// sections and applies them forward-backward (zero phase) with odd-extension
// padding and steady-state initial conditions.
//
// hilbert.go computes the analytic signal through gonum's complex FFT.
//
// poly.go removes a least-squares polynomial trend using gonum/mat.
//
// wavelet.go builds the Daubechies-8 wavelet by the cascade algorithm and
// evaluates a continuous wavelet transform over integer scales.
//
// stats.go has the moment helpers shared by the extractors.
//
// Every function here is pure: inputs are never modified and results are
// freshly allocated. Callers decide what a degenerate result means.
package dsp
