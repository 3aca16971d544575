// Package rul provides the deterministic remaining-useful-life baseline and
// the asymmetric PHM 2012 scoring function used to judge predictions.
package rul

import (
	"math"
	"strings"
)

// ModelBaseline names the kurtosis-threshold model.
const ModelBaseline = "baseline"

// Baseline thresholds and predictions in minutes.
const (
	kurtosisCritical = 10.0
	kurtosisElevated = 5.0

	minutesCritical = 500.0
	minutesElevated = 2000.0
	minutesNormal   = 5000.0

	baselineConfidence = 0.7

	// DefaultKurtosis is assumed when no history is available.
	DefaultKurtosis = 3.0
)

// Estimate is one RUL prediction.
type Estimate struct {
	PredictedMinutes float64 `json:"predicted_rul_min"`
	Model            string  `json:"model_type"`
	Confidence       float64 `json:"confidence"`
	LatestKurtosis   float64 `json:"latest_kurtosis"`
	DataPoints       int     `json:"data_points"`
}

// Baseline predicts RUL from the most recent value of a chronologically
// ordered kurtosis history:
//
//	kurtosis > 10  →  500 min
//	kurtosis > 5   → 2000 min
//	otherwise      → 5000 min
//
// An empty history is treated as kurtosis 3.
func Baseline(history []float64) Estimate {
	k := DefaultKurtosis
	if n := len(history); n > 0 {
		k = history[n-1]
	}
	e := Estimate{
		Model:          ModelBaseline,
		Confidence:     baselineConfidence,
		LatestKurtosis: k,
		DataPoints:     len(history),
	}
	switch {
	case k > kurtosisCritical:
		e.PredictedMinutes = minutesCritical
	case k > kurtosisElevated:
		e.PredictedMinutes = minutesElevated
	default:
		e.PredictedMinutes = minutesNormal
	}
	return e
}

// Score returns the PHM 2012 penalty for one prediction. Overestimates are
// penalised harder than underestimates of the same size:
//
//	err = predicted - actual
//	err < 0  → exp(-err/13) - 1
//	err ≥ 0  → exp(err/10) - 1
//
// The result is capped at math.MaxFloat64 so it stays JSON-encodable.
func Score(predicted, actual float64) float64 {
	e := predicted - actual
	var s float64
	if e < 0 {
		s = math.Exp(-e/13) - 1
	} else {
		s = math.Exp(e/10) - 1
	}
	if math.IsInf(s, 1) || math.IsNaN(s) {
		return math.MaxFloat64
	}
	return s
}

// trainingRUL holds the published actual RUL in minutes of the PHM 2012
// training bearings.
var trainingRUL = map[string]float64{
	"BEARING1_1": 28020,
	"BEARING1_2": 8700,
	"BEARING2_1": 9100,
	"BEARING2_2": 7960,
	"BEARING3_1": 5730,
	"BEARING3_2": 16430,
}

// ActualRUL returns the known RUL of a PHM 2012 training bearing, e.g.
// "Bearing1_1".
func ActualRUL(bearing string) (float64, bool) {
	v, ok := trainingRUL[strings.ToUpper(strings.TrimSpace(bearing))]
	return v, ok
}
