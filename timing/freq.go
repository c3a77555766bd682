package timing

import (
	"fmt"
	"math"
)

// FreqInHz defines the frequency of a clock in Hz.
type FreqInHz float64

// Defines the unit of frequency.
const (
	Hz  FreqInHz = 1
	KHz FreqInHz = 1e3
	MHz FreqInHz = 1e6
	GHz FreqInHz = 1e9
)

// DefaultClock is the frequency of the clock that drives the model.
const DefaultClock = 12 * MHz

// PeriodNs returns the length of one full clock period in nanoseconds.
func (f FreqInHz) PeriodNs() float64 {
	if f <= 0 {
		panic(ErrZeroFrequency)
	}

	return 1e9 / float64(f)
}

// HalfPeriodNs returns the length of one clock phase in nanoseconds.
func (f FreqInHz) HalfPeriodNs() float64 {
	return f.PeriodNs() / 2
}

// Increment returns the integer half-period that the time base must use for
// this frequency. Correction is applied by the time base on every third half
// period, so the nominal increment is the half period rounded up.
func (f FreqInHz) Increment() (VTimeInNs, error) {
	if f <= 0 {
		return 0, ErrZeroFrequency
	}

	half := f.HalfPeriodNs()
	if half < 1 {
		return 0, fmt.Errorf(
			"timing: half period %.4g ns is shorter than the time unit", half)
	}

	return VTimeInNs(math.Ceil(half)), nil
}
