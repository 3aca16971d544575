package dsp

import (
	"errors"
	"math"
	"math/cmplx"
	"runtime"
	"testing"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func sine(n int, fs, freq, amp float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return x
}

// --- spectrum ---

func TestAmplitudeSpectrum_SinePeak(t *testing.T) {
	s := AmplitudeSpectrum(sine(1000, 1000, 50, 2), 1000)
	if len(s.Freqs) != 501 {
		t.Fatalf("len = %d, want 501", len(s.Freqs))
	}
	if s.Freqs[50] != 50 {
		t.Errorf("Freqs[50] = %v, want 50", s.Freqs[50])
	}
	if !almostEqual(s.Amps[50], 2, 1e-9) {
		t.Errorf("amplitude at 50 Hz = %v, want 2", s.Amps[50])
	}
	if s.Amps[10] > 1e-9 {
		t.Errorf("leakage at 10 Hz = %v", s.Amps[10])
	}
}

func TestAmplitudeSpectrum_ScalingIndependentOfLength(t *testing.T) {
	for _, n := range []int{1000, 4000} {
		s := AmplitudeSpectrum(sine(n, 1000, 50, 2), 1000)
		k := 50 * n / 1000
		if !almostEqual(s.Amps[k], 2, 1e-9) {
			t.Errorf("n=%d: amplitude at 50 Hz = %v, want 2", n, s.Amps[k])
		}
	}

	// The Nyquist bin of an even-length capture is not doubled.
	x := make([]float64, 64)
	for i := range x {
		x[i] = 1 - 2*float64(i%2)
	}
	s := AmplitudeSpectrum(x, 64)
	if last := s.Amps[len(s.Amps)-1]; !almostEqual(last, 1, 1e-9) {
		t.Errorf("nyquist amplitude = %v, want 1", last)
	}
}

func TestAmplitudeSpectrum_Degenerate(t *testing.T) {
	if s := AmplitudeSpectrum([]float64{1}, 100); len(s.Amps) != 0 {
		t.Errorf("single sample gave %d bins", len(s.Amps))
	}
	if s := AmplitudeSpectrum([]float64{1, 2, 3}, 0); len(s.Amps) != 0 {
		t.Errorf("fs=0 gave %d bins", len(s.Amps))
	}
}

func TestSpectrum_BandAndMax(t *testing.T) {
	s := Spectrum{Freqs: []float64{0, 10, 20, 30}, Amps: []float64{5, 1, 3, 2}}
	idx := s.Band(10, 25)
	if len(idx) != 2 || idx[0] != 1 || idx[1] != 2 {
		t.Fatalf("Band = %v", idx)
	}
	if m, ok := s.MaxIn(idx); !ok || m != 3 {
		t.Errorf("MaxIn = %v, %v", m, ok)
	}
	if _, ok := s.MaxIn(nil); ok {
		t.Error("MaxIn(nil) should report false")
	}
}

// --- stats ---

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float64
		want float64
	}{
		{nil, 0},
		{[]float64{3}, 3},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
	}
	for _, tc := range tests {
		if got := Median(tc.in); got != tc.want {
			t.Errorf("Median(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	x := []float64{3, 1, 2}
	Median(x)
	if x[0] != 3 {
		t.Error("Median modified its input")
	}
}

func TestMomentsAndRMS(t *testing.T) {
	x := []float64{1, -1, 1, -1}
	if got := RMS(x); got != 1 {
		t.Errorf("RMS = %v, want 1", got)
	}
	if got := CentralMoment(x, 2); !almostEqual(got, 1, 1e-12) {
		t.Errorf("m2 = %v, want 1", got)
	}
	s2, s4, _, _ := PowerSums(x)
	if s2 != 4 || s4 != 4 {
		t.Errorf("PowerSums = %v, %v, want 4, 4", s2, s4)
	}
	if PeakToPeak(x) != 2 {
		t.Errorf("PeakToPeak = %v, want 2", PeakToPeak(x))
	}
}

func TestAllFinite(t *testing.T) {
	if !AllFinite([]float64{1, 2}) {
		t.Error("finite slice reported non-finite")
	}
	if AllFinite([]float64{1, math.NaN()}) || AllFinite([]float64{math.Inf(-1)}) {
		t.Error("non-finite slice reported finite")
	}
}

// --- butterworth ---

func TestButterBandpass_Response(t *testing.T) {
	sos, err := ButterBandpass(4, 0.2, 0.5)
	if err != nil {
		t.Fatalf("ButterBandpass: %v", err)
	}
	if len(sos) != 4 {
		t.Fatalf("sections = %d, want 4", len(sos))
	}
	for i, s := range sos {
		if s.A[0] != 1 {
			t.Errorf("section %d: A[0] = %v", i, s.A[0])
		}
		if s.A[2] >= 1 || s.A[2] <= 0 {
			t.Errorf("section %d: pole radius² = %v, want in (0,1)", i, s.A[2])
		}
	}

	// Unity at the geometric centre of the prewarped band.
	w1 := 4 * math.Tan(math.Pi*0.2/2)
	w2 := 4 * math.Tan(math.Pi*0.5/2)
	wc := 2 * math.Atan(math.Sqrt(w1*w2)/4)
	if g := cmplx.Abs(Response(sos, wc)); !almostEqual(g, 1, 1e-9) {
		t.Errorf("|H(centre)| = %v, want 1", g)
	}
	// -3 dB at both band edges.
	for _, edge := range []float64{0.2, 0.5} {
		g := cmplx.Abs(Response(sos, math.Pi*edge))
		if !almostEqual(g, 1/math.Sqrt2, 1e-6) {
			t.Errorf("|H(%v)| = %v, want 1/√2", edge, g)
		}
	}
	for _, w := range []float64{0, math.Pi} {
		if g := cmplx.Abs(Response(sos, w)); g > 1e-9 {
			t.Errorf("|H(%v)| = %v, want 0", w, g)
		}
	}
}

func TestButterBandpass_InvalidBand(t *testing.T) {
	tests := []struct{ low, high float64 }{
		{0, 0.5}, {0.5, 0.5}, {0.6, 0.5}, {0.2, 1}, {-0.1, 0.3},
	}
	for _, tc := range tests {
		if _, err := ButterBandpass(4, tc.low, tc.high); err == nil {
			t.Errorf("[%v, %v]: expected error", tc.low, tc.high)
		}
	}
	if _, err := ButterBandpass(0, 0.1, 0.2); err == nil {
		t.Error("order 0: expected error")
	}
}

func TestPadLen(t *testing.T) {
	sos, _ := ButterBandpass(4, 0.1, 0.3)
	if got := PadLen(sos); got != 27 {
		t.Errorf("PadLen = %d, want 27", got)
	}
}

func TestFiltFilt_TooShort(t *testing.T) {
	sos, _ := ButterBandpass(4, 0.1, 0.3)
	_, err := FiltFilt(sos, make([]float64, 27))
	if !errors.Is(err, ErrSignalTooShort) {
		t.Errorf("err = %v, want ErrSignalTooShort", err)
	}
	if _, err := FiltFilt(sos, make([]float64, 28)); err != nil {
		t.Errorf("28 samples: %v", err)
	}
}

func TestFiltFilt_PassesBandRejectsOutside(t *testing.T) {
	const fs = 10000.0
	sos, err := ButterBandpass(4, 2000/(fs/2), 3000/(fs/2))
	if err != nil {
		t.Fatal(err)
	}
	n := 4000
	inBand := sine(n, fs, 2450, 1)
	outBand := sine(n, fs, 100, 1)

	yIn, err := FiltFilt(sos, inBand)
	if err != nil {
		t.Fatal(err)
	}
	yOut, err := FiltFilt(sos, outBand)
	if err != nil {
		t.Fatal(err)
	}
	mid := yIn[n/4 : 3*n/4]
	if r := RMS(mid); !almostEqual(r, 1/math.Sqrt2, 0.02) {
		t.Errorf("in-band RMS = %v, want ≈0.707", r)
	}
	// Zero phase: the passband tone comes out aligned with the input.
	for i := n / 4; i < 3*n/4; i += 97 {
		if !almostEqual(yIn[i], inBand[i], 0.05) {
			t.Fatalf("sample %d: %v vs %v (phase shift?)", i, yIn[i], inBand[i])
		}
	}
	if r := RMS(yOut[n/4 : 3*n/4]); r > 1e-3 {
		t.Errorf("out-of-band RMS = %v, want ≈0", r)
	}
}

func TestFiltFilt_DoesNotModifyInput(t *testing.T) {
	sos, _ := ButterBandpass(2, 0.1, 0.4)
	x := sine(200, 100, 10, 1)
	orig := append([]float64(nil), x...)
	if _, err := FiltFilt(sos, x); err != nil {
		t.Fatal(err)
	}
	for i := range x {
		if x[i] != orig[i] {
			t.Fatal("input modified")
		}
	}
}

// --- hilbert ---

func TestEnvelope_ConstantAmplitudeTone(t *testing.T) {
	for _, n := range []int{512, 511} {
		x := make([]float64, n)
		for i := range x {
			// Integer number of cycles for the even length; the odd length
			// is checked away from the edges.
			x[i] = 3 * math.Cos(2*math.Pi*16*float64(i)/512)
		}
		env := Envelope(x)
		if len(env) != n {
			t.Fatalf("n=%d: len = %d", n, len(env))
		}
		for i := n / 4; i < 3*n/4; i++ {
			if !almostEqual(env[i], 3, 0.1) {
				t.Fatalf("n=%d: env[%d] = %v, want ≈3", n, i, env[i])
			}
		}
	}
}

func TestAnalytic_RealPartIsInput(t *testing.T) {
	x := []float64{1, 5, -2, 0.5, 3, -4, 2}
	a := Analytic(x)
	for i := range x {
		if !almostEqual(real(a[i]), x[i], 1e-9) {
			t.Errorf("real(a[%d]) = %v, want %v", i, real(a[i]), x[i])
		}
	}
	if Analytic(nil) != nil {
		t.Error("Analytic(nil) should be nil")
	}
}

// --- polyfit ---

func TestDetrend_RemovesQuadratic(t *testing.T) {
	y := make([]float64, 100)
	for i := range y {
		ti := float64(i)
		y[i] = 2 + 0.5*ti - 0.01*ti*ti
	}
	r, err := Detrend(y, 2)
	if err != nil {
		t.Fatalf("Detrend: %v", err)
	}
	for i, v := range r {
		if math.Abs(v) > 1e-8 {
			t.Fatalf("residual[%d] = %v", i, v)
		}
	}
}

func TestPolyFit_RecoversCoefficients(t *testing.T) {
	x := make([]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		x[i] = 10 + 0.5*float64(i)
		y[i] = -3 + 1.5*x[i] + 0.25*x[i]*x[i]
	}
	c, err := PolyFit(x, y, 2)
	if err != nil {
		t.Fatalf("PolyFit: %v", err)
	}
	want := []float64{-3, 1.5, 0.25}
	for j := range want {
		if !almostEqual(c[j], want[j], 1e-6) {
			t.Errorf("c[%d] = %v, want %v", j, c[j], want[j])
		}
	}
}

func TestDetrend_LongCaptureMemoryBounded(t *testing.T) {
	const n = 1 << 16
	y := sine(n, 25600, 157, 1)
	for i := range y {
		ti := float64(i) / n
		y[i] += 4 + 3*ti - 2*ti*ti
	}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	r, err := Detrend(y, 2)
	runtime.ReadMemStats(&after)
	if err != nil {
		t.Fatalf("Detrend: %v", err)
	}

	// Two n-length slices plus a few small matrices.
	if alloc := after.TotalAlloc - before.TotalAlloc; alloc > 8<<20 {
		t.Errorf("Detrend allocated %d bytes for %d samples", alloc, n)
	}
	if m := Mean(r); math.Abs(m) > 1e-3 {
		t.Errorf("residual mean = %v, want ~0", m)
	}
}

func TestPolyFit_Errors(t *testing.T) {
	if _, err := PolyFit([]float64{0, 1}, []float64{1, 2}, 2); err == nil {
		t.Error("too few points: expected error")
	}
	if _, err := PolyFit([]float64{0}, []float64{1, 2}, 0); err == nil {
		t.Error("length mismatch: expected error")
	}
}

// --- convolution ---

func TestConvolve_DirectMatchesFFT(t *testing.T) {
	a := sine(300, 100, 7, 1)
	b := sine(250, 100, 3, 2)
	d := convolveDirect(a, b)
	f := convolveFFT(a, b)
	if len(d) != len(f) || len(d) != 549 {
		t.Fatalf("lengths %d, %d", len(d), len(f))
	}
	for i := range d {
		if !almostEqual(d[i], f[i], 1e-9) {
			t.Fatalf("index %d: direct %v, fft %v", i, d[i], f[i])
		}
	}
}

// --- wavelet ---

func TestDaubechies8_FilterIdentities(t *testing.T) {
	h, g := Daubechies8()
	var sh, sh2, sg float64
	for k := range h {
		sh += h[k]
		sh2 += h[k] * h[k]
		sg += g[k]
	}
	if !almostEqual(sh, math.Sqrt2, 1e-9) {
		t.Errorf("Σh = %v, want √2", sh)
	}
	if !almostEqual(sh2, 1, 1e-9) {
		t.Errorf("Σh² = %v, want 1", sh2)
	}
	if !almostEqual(sg, 0, 1e-9) {
		t.Errorf("Σg = %v, want 0", sg)
	}
}

func TestCascade_WaveletShape(t *testing.T) {
	h, g := Daubechies8()
	x, psi := Cascade(h, g, 8)
	if len(x) != len(psi) || len(x) != 255*15+1 {
		t.Fatalf("len = %d, want %d", len(x), 255*15+1)
	}
	step := x[1] - x[0]
	var mean, energy float64
	for _, v := range psi {
		mean += v * step
		energy += v * v * step
	}
	if !almostEqual(mean, 0, 1e-3) {
		t.Errorf("∫ψ = %v, want 0", mean)
	}
	if !almostEqual(energy, 1, 0.02) {
		t.Errorf("∫ψ² = %v, want 1", energy)
	}
}

func TestCWT_Scale(t *testing.T) {
	c := NewCWT()
	x := sine(512, 512, 20, 1)
	for _, a := range []float64{1, 5, 63} {
		coef := c.Scale(x, a)
		if len(coef) != len(x) {
			t.Errorf("scale %v: len = %d, want %d", a, len(coef), len(x))
		}
		if !AllFinite(coef) {
			t.Errorf("scale %v: non-finite coefficient", a)
		}
	}
	zero := c.Scale(make([]float64, 64), 3)
	for i, v := range zero {
		if v != 0 {
			t.Fatalf("zero signal: coef[%d] = %v", i, v)
		}
	}
	if c.Scale(nil, 2) != nil || c.Scale(x, 0) != nil {
		t.Error("degenerate input should return nil")
	}
}

func TestCWT_ImpulseRespondsLocally(t *testing.T) {
	x := make([]float64, 400)
	x[200] = 1
	coef := NewCWT().Scale(x, 4)
	var peakIdx int
	for i, v := range coef {
		if math.Abs(v) > math.Abs(coef[peakIdx]) {
			peakIdx = i
		}
	}
	if peakIdx < 150 || peakIdx > 250 {
		t.Errorf("impulse response peaks at %d, want near 200", peakIdx)
	}
}
