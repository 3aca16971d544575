package features

import (
	"math"

	"github.com/guidesense/guidesense/pkg/dsp"
	"github.com/guidesense/guidesense/pkg/types"
	"gonum.org/v1/gonum/floats"
)

// NoteZeroVariance is attached when kurtosis is undefined because every
// sample has the same value. The reported kurtosis is 0.
const NoteZeroVariance = "kurtosis undefined: zero variance"

// ExtractTime computes whole-window time-domain statistics of x. Kurtosis is
// the non-excess standardised fourth moment m4/m2².
func ExtractTime(x []float64) types.TimeFeatures {
	var f types.TimeFeatures
	if len(x) == 0 {
		f.Degrade("empty signal")
		return f
	}

	f.Peak = math.Max(math.Abs(floats.Max(x)), math.Abs(floats.Min(x)))
	f.Avg = dsp.Mean(x)
	f.RMS = dsp.RMS(x)
	if f.RMS > 0 {
		f.CrestFactor = f.Peak / f.RMS
	}

	m2 := dsp.CentralMoment(x, 2)
	if floats.Max(x) == floats.Min(x) || m2 == 0 {
		f.Degrade(NoteZeroVariance)
	} else {
		f.Kurtosis = dsp.CentralMoment(x, 4) / (m2 * m2)
	}

	sanitize(&f.Outcome, "time features", &f.Peak, &f.Avg, &f.RMS, &f.Kurtosis, &f.CrestFactor)
	return f
}

// sanitize zeroes every non-finite value and records one note for the stage
// when any was found.
func sanitize(o *types.Outcome, stage string, vals ...*float64) {
	bad := false
	for _, v := range vals {
		if !dsp.Finite(*v) {
			*v = 0
			bad = true
		}
	}
	if bad {
		o.Degrade(stage + ": non-finite result coerced to 0")
	}
}
