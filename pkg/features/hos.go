package features

import (
	"github.com/guidesense/guidesense/pkg/dsp"
	"github.com/guidesense/guidesense/pkg/types"
	"gonum.org/v1/gonum/floats"
)

// NA4 parameters: the residual is taken against a degree-2 trend and split
// into at most na4Records consecutive records.
const (
	na4TrendDegree = 2
	na4Records     = 10
)

// ExtractHigherOrder computes the normalised moment indices of x:
//
//	FM4 = N·Σd⁴ / (Σd²)²
//	M6A = N²·Σd⁶ / (Σd²)³
//	M8A = N³·Σd⁸ / (Σd²)⁴
//
// with d the mean-removed signal. NA4 is the fourth moment of the last
// detrended record normalised by the squared mean variance of all records,
// which approaches 3 for Gaussian noise.
func ExtractHigherOrder(x []float64) types.HigherOrderFeatures {
	var f types.HigherOrderFeatures
	n := float64(len(x))
	s2, s4, s6, s8 := dsp.PowerSums(x)
	if len(x) == 0 || s2 == 0 || floats.Max(x) == floats.Min(x) {
		f.Degrade("higher-order statistics undefined: zero variance")
		return f
	}

	f.FM4 = n * s4 / (s2 * s2)
	f.M6A = n * n * s6 / (s2 * s2 * s2)
	f.M8A = n * n * n * s8 / (s2 * s2 * s2 * s2)

	na4, err := NA4(x)
	if err != nil {
		f.Degrade("na4: " + err.Error())
	} else {
		f.NA4 = na4
	}

	sanitize(&f.Outcome, "higher-order statistics", &f.NA4, &f.FM4, &f.M6A, &f.M8A)
	return f
}

// NA4 removes a degree-2 least-squares trend from x, splits the residual
// into up to ten consecutive records and returns
//
//	m4(last record) / (mean record variance)²
//
// where m4 is the fourth central moment.
// Records hold at least two samples; the remainder joins the last record.
func NA4(x []float64) (float64, error) {
	r, err := dsp.Detrend(x, na4TrendDegree)
	if err != nil {
		return 0, err
	}

	count := min(na4Records, len(r)/2)
	if count < 1 {
		return 0, errTooFewSamples
	}
	size := len(r) / count

	var varSum float64
	var last []float64
	for j := range count {
		rec := r[j*size : (j+1)*size]
		if j == count-1 {
			rec = r[j*size:]
		}
		varSum += dsp.CentralMoment(rec, 2)
		last = rec
	}
	meanVar := varSum / float64(count)
	if meanVar <= degenerateEnergy*dsp.CentralMoment(x, 2) {
		return 0, errZeroVariance
	}
	return dsp.CentralMoment(last, 4) / (meanVar * meanVar), nil
}
