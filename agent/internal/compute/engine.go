package compute

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/guidesense/guidesense/agent/internal/capture"
	"github.com/guidesense/guidesense/pkg/diagnosis"
	"github.com/guidesense/guidesense/pkg/guide"
	"github.com/guidesense/guidesense/pkg/types"
)

// uptimeWindow is the number of recent capture outcomes tracked for uptime %.
const uptimeWindow = 20

// Engine analyses captures and maintains per-source history across them.
//
// All exported methods are safe for concurrent use. Analyses of different
// captures run in parallel; only the history update is serialised.
type Engine struct {
	analyzer    *diagnosis.Analyzer
	historySize int
	timeout     time.Duration

	mu     sync.Mutex
	states map[string]*sourceState
}

// NewEngine returns a ready-to-use Engine. historySize bounds the points kept
// per source; timeout bounds each analysis (zero means no limit).
func NewEngine(a *diagnosis.Analyzer, historySize int, timeout time.Duration) *Engine {
	if historySize <= 0 {
		historySize = 1
	}
	return &Engine{
		analyzer:    a,
		historySize: historySize,
		timeout:     timeout,
		states:      make(map[string]*sourceState),
	}
}

// Process analyses one capture and returns the report with Source and
// Outlook filled in.
//
// now is passed explicitly so callers (and tests) control the clock without
// sleeping. Use time.Now() in production.
//
// A capture that failed acquisition, or whose sample is rejected by the
// analyzer, counts against the source's uptime and returns an error.
func (e *Engine) Process(ctx context.Context, c *capture.Capture, now time.Time) (*types.DiagnosisReport, error) {
	if c.Err != nil {
		e.recordFailure(c.SourceID)
		return nil, fmt.Errorf("compute: capture %q: %w", c.SourceID, c.Err)
	}

	if _, ok := guide.Resolve(c.Sample.Guide.Series); !ok {
		slog.Debug("compute: unknown guide series, using default geometry",
			"source", c.SourceID, "series", c.Sample.Guide.Series)
	}

	actx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	report, err := e.analyzer.Analyze(actx, c.Sample)
	if err != nil {
		e.recordFailure(c.SourceID)
		return nil, fmt.Errorf("compute: analyze %q: %w", c.SourceID, err)
	}
	if report.WaveletFeatures.Degraded && actx.Err() != nil {
		slog.Warn("compute: analysis deadline hit, wavelet stage degraded",
			"source", c.SourceID, "timeout", e.timeout)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(c.SourceID)
	st.recordCapture(true)
	st.add(Point{Time: now, Score: report.HealthScore, Kurtosis: report.TimeFeatures.Kurtosis}, e.historySize)

	outlook := Outlook(st.history, st.uptimePct())
	report.Source = c.SourceID
	report.Outlook = &outlook
	return report, nil
}

// History returns a copy of the points held for a source, oldest first.
func (e *Engine) History(sourceID string) []Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[sourceID]
	if !ok {
		return nil
	}
	return append([]Point(nil), st.history...)
}

// Forget drops the state of sources not present in keep. The agent calls it
// after a config reload removes sources.
func (e *Engine) Forget(keep map[string]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.states {
		if !keep[id] {
			delete(e.states, id)
		}
	}
}

func (e *Engine) recordFailure(sourceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stateFor(sourceID).recordCapture(false)
}

// sourceState holds per-source history and capture outcomes.
type sourceState struct {
	history  []Point // chronological, newest last
	outcomes []bool  // circular buffer of capture outcomes, newest last
}

func (e *Engine) stateFor(id string) *sourceState {
	if st, ok := e.states[id]; ok {
		return st
	}
	st := &sourceState{}
	e.states[id] = st
	return st
}

// add inserts p in time order. Workers may finish out of order, so the
// newest point is not always last on arrival.
func (st *sourceState) add(p Point, limit int) {
	i := sort.Search(len(st.history), func(i int) bool { return st.history[i].Time.After(p.Time) })
	st.history = append(st.history, Point{})
	copy(st.history[i+1:], st.history[i:])
	st.history[i] = p
	if over := len(st.history) - limit; over > 0 {
		st.history = append(st.history[:0], st.history[over:]...)
	}
}

func (st *sourceState) recordCapture(success bool) {
	if len(st.outcomes) >= uptimeWindow {
		st.outcomes = st.outcomes[1:]
	}
	st.outcomes = append(st.outcomes, success)
}

func (st *sourceState) uptimePct() float64 {
	if len(st.outcomes) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, s := range st.outcomes {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.outcomes)) * 100
}
