package timing

import (
	"github.com/sarchlab/stimulus/hooking"
)

// VTimeInNs defines the simulated time in the unit of nanoseconds. Fractional
// nanoseconds are not representable.
type VTimeInNs uint64

// DefaultIncrement is the nominal half period of the default 12 MHz clock,
// rounded up. The time base brings the average down to 41.667 ns.
const DefaultIncrement VTimeInNs = 42

// correctionCycle is the number of half periods after which one nanosecond
// is taken back.
const correctionCycle = 3

// HookPosTimeAdvanced is triggered after every BumpTime. The hook item is the
// new time as a VTimeInNs.
var HookPosTimeAdvanced = &hooking.HookPos{Name: "TimeAdvanced"}

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInNs
}

// A TimeBase owns the simulated time. Time only moves forward through
// BumpTime, one half period at a time.
type TimeBase struct {
	*hooking.HookableBase

	now        VTimeInNs
	increment  VTimeInNs
	correction int
}

// NewTimeBase creates a time base that starts at time 0.
func NewTimeBase(increment VTimeInNs) (*TimeBase, error) {
	if increment == 0 {
		return nil, ErrZeroIncrement
	}

	return &TimeBase{
		HookableBase: hooking.NewHookableBase(),
		increment:    increment,
	}, nil
}

// Now returns the current simulated time.
func (b *TimeBase) Now() VTimeInNs {
	return b.now
}

// Increment returns the nominal half-period increment.
func (b *TimeBase) Increment() VTimeInNs {
	return b.increment
}

// BumpTime advances the time by one half period. Every third call takes back
// one nanosecond, so that three half periods last 3*increment-1.
func (b *TimeBase) BumpTime() {
	b.now += b.increment

	b.correction++
	if b.correction == correctionCycle {
		b.now--
		b.correction = 0
	}

	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosTimeAdvanced,
		Item:   b.now,
	})
}
