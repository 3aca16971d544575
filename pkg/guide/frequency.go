package guide

import (
	"math"

	"github.com/guidesense/guidesense/pkg/types"
)

// Frequencies derives the theoretical fault frequencies for a guide moving
// at velocity m/s.
//
//	ball_spacing = L / n            (mm → m)
//	BPF  = v / ball_spacing
//	BSF  = v / (π · D)              (mm → m)
//	Cage = v / L                    (mm → m)
//
// Each division yields 0 when its denominator is not positive. Negative or
// non-finite velocities are treated as 0.
func Frequencies(geom types.Geometry, velocity float64) types.FrequencySet {
	if velocity < 0 || !finite(velocity) {
		velocity = 0
	}

	var spacing float64
	if geom.BallCount > 0 {
		spacing = geom.RacewayLengthMM / float64(geom.BallCount) / 1000
	}
	bpf := safeDiv(velocity, spacing)
	bsf := safeDiv(velocity, math.Pi*geom.BallDiameterMM/1000)
	cage := safeDiv(velocity, geom.RacewayLengthMM/1000)

	return types.FrequencySet{
		BPF:      bpf,
		BSF:      bsf,
		CageFreq: cage,
		BPF2x:    2 * bpf,
		BPF3x:    3 * bpf,
	}
}

// Harmonic is one order of the ball pass frequency.
type Harmonic struct {
	Order     int     `json:"order"`
	Frequency float64 `json:"frequency"`
}

// Harmonics returns the first k orders of the BPF in set.
func Harmonics(set types.FrequencySet, k int) []Harmonic {
	if k <= 0 {
		return nil
	}
	out := make([]Harmonic, k)
	for i := range out {
		out[i] = Harmonic{Order: i + 1, Frequency: float64(i+1) * set.BPF}
	}
	return out
}

// safeDiv returns num/den, or 0 when den is not positive or the quotient is
// not a finite non-negative number.
func safeDiv(num, den float64) float64 {
	if den <= 0 || !finite(den) {
		return 0
	}
	q := num / den
	if !finite(q) || q < 0 {
		return 0
	}
	return q
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
