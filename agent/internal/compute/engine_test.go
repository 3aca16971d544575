package compute

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/guidesense/guidesense/agent/internal/capture"
	"github.com/guidesense/guidesense/pkg/diagnosis"
	"github.com/guidesense/guidesense/pkg/types"
)

func newTestEngine(historySize int, timeout time.Duration) *Engine {
	a := diagnosis.New(
		diagnosis.WithClock(func() time.Time { return baseTime }),
		diagnosis.WithIDs(func() string { return "report-1" }),
	)
	return NewEngine(a, historySize, timeout)
}

// noiseCapture returns a capture of Gaussian noise plus a 120 Hz tone.
func noiseCapture(id string, seed uint64) *capture.Capture {
	r := rand.New(rand.NewPCG(seed, 7))
	x := make([]float64, 2048)
	for i := range x {
		x[i] = r.NormFloat64() + 0.5*math.Sin(2*math.Pi*120*float64(i)/25600)
	}
	return &capture.Capture{
		SourceID:   id,
		CapturedAt: baseTime,
		Sample: types.Sample{
			Samples:      x,
			SamplingRate: 25600,
			Velocity:     0.5,
			Guide:        types.GuideIdentity{SpecID: 1, Series: "HRC25", Preload: "V1"},
		},
	}
}

func TestEngine_FirstCapture(t *testing.T) {
	e := newTestEngine(10, 0)
	report, err := e.Process(context.Background(), noiseCapture("axis-x", 1), hour(0))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if report.Source != "axis-x" {
		t.Errorf("Source = %q, want axis-x", report.Source)
	}
	if report.ID != "report-1" {
		t.Errorf("ID = %q, want report-1", report.ID)
	}
	o := report.Outlook
	if o == nil {
		t.Fatal("Outlook is nil")
	}
	if o.Points != 1 || o.Trend != types.TrendUnknown {
		t.Errorf("Outlook = %+v, want 1 point and unknown trend", *o)
	}
	if o.MeanScore != report.HealthScore {
		t.Errorf("MeanScore = %v, want %v", o.MeanScore, report.HealthScore)
	}
	if o.UptimePct != 100 {
		t.Errorf("UptimePct = %v, want 100", o.UptimePct)
	}
}

func TestEngine_CaptureFailure_LowersUptime(t *testing.T) {
	e := newTestEngine(10, 0)

	bad := &capture.Capture{SourceID: "gw", Err: errors.New("http get: connection refused")}
	if _, err := e.Process(context.Background(), bad, hour(0)); err == nil {
		t.Fatal("expected error for failed capture")
	}

	report, err := e.Process(context.Background(), noiseCapture("gw", 2), hour(1))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !almostEqual(report.Outlook.UptimePct, 50, 1e-9) {
		t.Errorf("UptimePct = %v, want 50", report.Outlook.UptimePct)
	}
}

func TestEngine_InvalidSample(t *testing.T) {
	e := newTestEngine(10, 0)
	c := noiseCapture("axis-x", 3)
	c.Sample.Samples = nil

	_, err := e.Process(context.Background(), c, hour(0))
	if !errors.Is(err, diagnosis.ErrEmptySignal) {
		t.Fatalf("error = %v, want ErrEmptySignal", err)
	}
	if h := e.History("axis-x"); len(h) != 0 {
		t.Errorf("rejected sample must not enter history, got %d points", len(h))
	}
}

func TestEngine_HistoryBounded(t *testing.T) {
	e := newTestEngine(3, 0)
	for i := range 5 {
		if _, err := e.Process(context.Background(), noiseCapture("axis-x", uint64(i)), hour(float64(i))); err != nil {
			t.Fatalf("Process(%d) error = %v", i, err)
		}
	}
	h := e.History("axis-x")
	if len(h) != 3 {
		t.Fatalf("history len = %d, want 3", len(h))
	}
	for i, want := range []time.Time{hour(2), hour(3), hour(4)} {
		if !h[i].Time.Equal(want) {
			t.Errorf("history[%d].Time = %v, want %v", i, h[i].Time, want)
		}
	}
}

func TestEngine_SourcesIndependent(t *testing.T) {
	e := newTestEngine(10, 0)
	for i := range 3 {
		if _, err := e.Process(context.Background(), noiseCapture("a", uint64(i)), hour(float64(i))); err != nil {
			t.Fatal(err)
		}
	}
	report, err := e.Process(context.Background(), noiseCapture("b", 9), hour(3))
	if err != nil {
		t.Fatal(err)
	}
	if report.Outlook.Points != 1 {
		t.Errorf("source b points = %d, want 1", report.Outlook.Points)
	}

	e.Forget(map[string]bool{"b": true})
	if e.History("a") != nil {
		t.Error("Forget should drop source a")
	}
	if len(e.History("b")) != 1 {
		t.Error("Forget should keep source b")
	}
}

func TestEngine_TimeoutDegradesWavelet(t *testing.T) {
	e := newTestEngine(10, time.Nanosecond)
	report, err := e.Process(context.Background(), noiseCapture("axis-x", 4), hour(0))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !report.WaveletFeatures.Degraded {
		t.Error("expected wavelet stage degraded after deadline")
	}
	if report.HealthScore < 0 || report.HealthScore > 100 {
		t.Errorf("HealthScore = %v out of range", report.HealthScore)
	}
}

func TestEngine_ConcurrentSameSource(t *testing.T) {
	e := newTestEngine(100, 0)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.Process(context.Background(), noiseCapture("axis-x", uint64(i)), hour(float64(7-i))); err != nil {
				t.Errorf("Process(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	h := e.History("axis-x")
	if len(h) != 8 {
		t.Fatalf("history len = %d, want 8", len(h))
	}
	for i := 1; i < len(h); i++ {
		if h[i].Time.Before(h[i-1].Time) {
			t.Fatalf("history not chronological at %d: %v before %v", i, h[i].Time, h[i-1].Time)
		}
	}
}

func TestSourceState_AddOutOfOrder(t *testing.T) {
	var st sourceState
	for _, h := range []float64{2, 0, 3, 1} {
		st.add(Point{Time: hour(h)}, 3)
	}
	want := []time.Time{hour(1), hour(2), hour(3)}
	for i := range want {
		if !st.history[i].Time.Equal(want[i]) {
			t.Errorf("history[%d] = %v, want %v", i, st.history[i].Time, want[i])
		}
	}
}

func TestSourceState_UptimeWindow(t *testing.T) {
	var st sourceState
	for range uptimeWindow {
		st.recordCapture(false)
	}
	for range uptimeWindow / 2 {
		st.recordCapture(true)
	}
	if got := st.uptimePct(); !almostEqual(got, 50, 1e-9) {
		t.Errorf("uptimePct = %v, want 50", got)
	}
}
