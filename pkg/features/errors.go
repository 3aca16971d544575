package features

import "errors"

var (
	errTooFewSamples = errors.New("too few samples")
	errZeroVariance  = errors.New("zero variance")
)
