package compute

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/guidesense/guidesense/pkg/rul"
	"github.com/guidesense/guidesense/pkg/types"
)

// Trend classification.
const (
	// minTrendPoints is the number of analyses needed before a slope is
	// reported.
	minTrendPoints = 3

	// TrendThreshold is the score change per hour separating a stable
	// trend from an improving or worsening one.
	TrendThreshold = 0.5
)

// Point is one past analysis of a source.
type Point struct {
	Time     time.Time
	Score    float64
	Kurtosis float64
}

// Outlook derives the rolling view of a source from its chronologically
// ordered history. It is a pure function; the Engine owns the history.
//
// The slope is an ordinary least-squares fit of health score against hours
// since the first point. Fewer than three points, or points that all share
// one timestamp, give TrendUnknown. The RUL estimate is rul.Baseline over
// the kurtosis history.
func Outlook(history []Point, uptimePct float64) types.Outlook {
	o := types.Outlook{
		Points:    len(history),
		Trend:     types.TrendUnknown,
		UptimePct: uptimePct,
	}

	kurt := make([]float64, len(history))
	scores := make([]float64, len(history))
	hours := make([]float64, len(history))
	for i, p := range history {
		kurt[i] = p.Kurtosis
		scores[i] = p.Score
		hours[i] = p.Time.Sub(history[0].Time).Hours()
	}

	est := rul.Baseline(kurt)
	o.RULMinutes = est.PredictedMinutes
	o.RULConfidence = est.Confidence

	if len(history) == 0 {
		return o
	}
	o.MeanScore = stat.Mean(scores, nil)

	if len(history) < minTrendPoints || hours[len(hours)-1] <= 0 {
		return o
	}
	_, slope := stat.LinearRegression(hours, scores, nil, false)
	o.ScoreSlopePerHour = slope
	switch {
	case slope > TrendThreshold:
		o.Trend = types.TrendImproving
	case slope < -TrendThreshold:
		o.Trend = types.TrendWorsening
	default:
		o.Trend = types.TrendStable
	}
	return o
}
