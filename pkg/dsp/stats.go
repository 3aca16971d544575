package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean of x, 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// CentralMoment returns the k-th population central moment of x.
func CentralMoment(x []float64, k float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Moment(k, x, nil)
}

// PowerSums returns Σd², Σd⁴, Σd⁶ and Σd⁸ of the deviations d = x - mean(x).
func PowerSums(x []float64) (s2, s4, s6, s8 float64) {
	m := Mean(x)
	for _, v := range x {
		d := v - m
		d2 := d * d
		s2 += d2
		s4 += d2 * d2
		s6 += d2 * d2 * d2
		s8 += d2 * d2 * d2 * d2
	}
	return s2, s4, s6, s8
}

// RMS returns the root mean square of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// Median returns the median of x, averaging the two middle values for even
// lengths. x is not modified.
func Median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	s := make([]float64, n)
	copy(s, x)
	sort.Float64s(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AllFinite reports whether every element of x is finite.
func AllFinite(x []float64) bool {
	for _, v := range x {
		if !Finite(v) {
			return false
		}
	}
	return true
}

// PeakToPeak returns max(x) - min(x).
func PeakToPeak(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return floats.Max(x) - floats.Min(x)
}
