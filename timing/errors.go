package timing

import "errors"

var (
	// ErrZeroIncrement is returned when a time base is created with a zero
	// half-period increment.
	ErrZeroIncrement = errors.New("timing: increment must be positive")

	// ErrZeroFrequency is returned when a zero clock frequency is used.
	ErrZeroFrequency = errors.New("timing: frequency must be positive")
)
