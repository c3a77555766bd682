package stimulus

import "errors"

var (
	// ErrTimeoutExceeded is returned in strict mode when a wait stage reaches
	// the time ceiling before its condition holds.
	ErrTimeoutExceeded = errors.New("stimulus: timeout exceeded")

	// ErrInvalidDistance is returned when the echo distance is negative.
	ErrInvalidDistance = errors.New("stimulus: invalid echo distance")
)
