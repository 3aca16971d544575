package guide

import (
	"strconv"
	"strings"
)

// defaultNominalSize is assumed when the series code carries no digits.
const defaultNominalSize = 25

// ResonanceBand returns the heuristic structural resonance band in Hz used
// for envelope demodulation. Miniature rails ("MR" in the code) ring
// highest; larger rails ring lower. This is a best-effort mapping, not a
// physical model.
func ResonanceBand(series string) (low, high float64) {
	code := strings.ToUpper(series)
	size := NominalSize(code)
	switch {
	case strings.Contains(code, "MR"):
		return 8000, 15000
	case size <= 25:
		return 4000, 10000
	case size <= 45:
		return 2000, 8000
	default:
		return 1000, 6000
	}
}

// NominalSize concatenates every digit of series into an integer, e.g.
// "HRC25" → 25. Codes without digits return 25.
func NominalSize(series string) int {
	var digits strings.Builder
	for _, r := range series {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return defaultNominalSize
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		// Overflow on absurdly long digit runs; treat as a large rail.
		return int(^uint(0) >> 1)
	}
	return n
}
