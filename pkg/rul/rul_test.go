package rul

import (
	"math"
	"testing"
)

func TestBaseline(t *testing.T) {
	tests := []struct {
		name    string
		history []float64
		want    float64
		latest  float64
	}{
		{"empty history", nil, 5000, 3},
		{"normal", []float64{3.1, 2.9}, 5000, 2.9},
		{"exactly 5", []float64{5}, 5000, 5},
		{"elevated", []float64{3, 6.5}, 2000, 6.5},
		{"exactly 10", []float64{10}, 2000, 10},
		{"critical", []float64{3, 4, 12}, 500, 12},
		{"only latest counts", []float64{15, 2}, 5000, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := Baseline(tc.history)
			if e.PredictedMinutes != tc.want {
				t.Errorf("PredictedMinutes = %v, want %v", e.PredictedMinutes, tc.want)
			}
			if e.LatestKurtosis != tc.latest {
				t.Errorf("LatestKurtosis = %v, want %v", e.LatestKurtosis, tc.latest)
			}
			if e.Confidence != 0.7 || e.Model != ModelBaseline {
				t.Errorf("Confidence/Model = %v/%s", e.Confidence, e.Model)
			}
			if e.DataPoints != len(tc.history) {
				t.Errorf("DataPoints = %d, want %d", e.DataPoints, len(tc.history))
			}
		})
	}
}

func TestScore(t *testing.T) {
	if got := Score(100, 100); got != 0 {
		t.Errorf("exact prediction = %v, want 0", got)
	}
	if got, want := Score(87, 100), math.Exp(1)-1; math.Abs(got-want) > 1e-12 {
		t.Errorf("underestimate by 13 = %v, want e-1", got)
	}
	if got, want := Score(110, 100), math.Exp(1)-1; math.Abs(got-want) > 1e-12 {
		t.Errorf("overestimate by 10 = %v, want e-1", got)
	}
	if Score(90, 100) >= Score(110, 100) {
		t.Error("equal-size errors should score differently by direction")
	}
	if got := Score(50000, 0); got != math.MaxFloat64 {
		t.Errorf("overflow = %v, want MaxFloat64", got)
	}
}

func TestActualRUL(t *testing.T) {
	if v, ok := ActualRUL("Bearing1_1"); !ok || v != 28020 {
		t.Errorf("Bearing1_1 = %v, %v", v, ok)
	}
	if _, ok := ActualRUL("Bearing9_9"); ok {
		t.Error("unknown bearing should miss")
	}
}
