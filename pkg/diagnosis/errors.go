package diagnosis

import (
	"errors"
	"fmt"
)

// Fatal input errors. Analyze wraps them in *InputError; match with
// errors.Is.
var (
	ErrEmptySignal         = errors.New("empty signal")
	ErrInvalidSamplingRate = errors.New("sampling rate must be positive")
	ErrInvalidVelocity     = errors.New("velocity must be finite and non-negative")
	ErrNonFiniteSample     = errors.New("signal contains NaN or infinite samples")
)

// InputError reports a sample that cannot be analysed at all.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("diagnosis: invalid %s: %v", e.Field, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }
