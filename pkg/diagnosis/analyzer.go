package diagnosis

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guidesense/guidesense/pkg/features"
	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
)

// Analyzer runs the diagnosis pipeline. It holds no per-analysis state and
// is safe for concurrent use.
type Analyzer struct {
	now   func() time.Time
	newID func() string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the report timestamp source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithIDs overrides the report ID generator. Used in tests.
func WithIDs(newID func() string) Option {
	return func(a *Analyzer) { a.newID = newID }
}

// New returns an Analyzer stamping reports with the UTC wall clock and a
// random UUID.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Validate checks the sample for the conditions that make every stage
// meaningless. The returned error is an *InputError.
func Validate(s types.Sample) error {
	if len(s.Samples) == 0 {
		return &InputError{Field: "samples", Err: ErrEmptySignal}
	}
	if s.SamplingRate <= 0 {
		return &InputError{Field: "sampling_rate", Err: ErrInvalidSamplingRate}
	}
	if s.Velocity < 0 || math.IsNaN(s.Velocity) || math.IsInf(s.Velocity, 0) {
		return &InputError{Field: "velocity", Err: ErrInvalidVelocity}
	}
	for _, v := range s.Samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InputError{Field: "samples", Err: ErrNonFiniteSample}
		}
	}
	return nil
}

// Analyze produces a complete report for s. Only an invalid sample returns
// an error. Cancelling ctx stops the wavelet stage early; the report is
// still returned with that stage marked degraded.
func (a *Analyzer) Analyze(ctx context.Context, s types.Sample) (*types.DiagnosisReport, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}

	series := strings.TrimSpace(s.Guide.Series)
	class := strings.ToUpper(strings.TrimSpace(s.Guide.Preload))
	if class == "" {
		class = guide.DefaultPreloadClass
	}
	geom, _ := guide.Resolve(series)
	freqs := guide.Frequencies(geom, s.Velocity)
	fs := float64(s.SamplingRate)
	x := s.Samples

	var (
		wg       sync.WaitGroup
		timeF    types.TimeFeatures
		specF    types.FrequencyFeatures
		envF     types.EnvelopeFeatures
		hosF     types.HigherOrderFeatures
		waveletF types.WaveletFeatures
	)
	run := func(stage func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stage()
		}()
	}
	run(func() { timeF = features.ExtractTime(x) })
	run(func() { specF = features.ExtractSpectrum(x, fs, freqs) })
	run(func() { envF = features.AnalyzeEnvelope(x, fs, series, freqs) })
	run(func() { hosF = features.ExtractHigherOrder(x) })
	run(func() { waveletF = features.AnalyzeWavelet(ctx, x) })
	wg.Wait()

	preload := guide.AssessPreload(timeF.RMS, timeF.Kurtosis, class)
	v := Fuse(Input{
		Time:        timeF,
		Preload:     preload,
		Envelope:    envF,
		HigherOrder: hosF,
		Wavelet:     waveletF,
	})

	return &types.DiagnosisReport{
		ID:                  a.newID(),
		GuideSpecID:         s.Guide.SpecID,
		Series:              series,
		Preload:             class,
		Timestamp:           a.now(),
		Velocity:            s.Velocity,
		SamplingRate:        s.SamplingRate,
		SampleCount:         len(x),
		Geometry:            geom,
		Frequencies:         freqs,
		TimeFeatures:        timeF,
		PreloadStatus:       preload,
		FrequencyFeatures:   specF,
		EnvelopeFeatures:    envF,
		HigherOrderFeatures: hosF,
		WaveletFeatures:     waveletF,
		HealthScore:         v.HealthScore,
		Severity:            v.Severity,
		Findings:            v.Findings,
		Recommendations:     v.Recommendations,
	}, nil
}
