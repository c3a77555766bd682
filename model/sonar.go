package model

import (
	"math"

	"github.com/sarchlab/stimulus/timing"
)

// SonarController is a cycle-level model of a sonar range finder front end.
// On rising clock edges it raises the trigger pin for a fixed window, then
// measures the width of the echo pulse and converts it to a distance.
type SonarController struct {
	*PinSet

	triggerAt    uint64
	triggerWidth uint64
	periodNs     float64

	cycle      uint64
	lastClock  uint64
	lastEcho   uint64
	echoCycles uint64
	echoes     int
}

// SonarBuilder can build sonar controllers.
type SonarBuilder struct {
	triggerDelay uint64
	triggerWidth uint64
	periodNs     float64
}

// MakeSonarBuilder creates a builder with a 10 us trigger delay, a 500 ns
// trigger pulse and the default clock.
func MakeSonarBuilder() SonarBuilder {
	return SonarBuilder{
		triggerDelay: 120,
		triggerWidth: 6,
		periodNs:     timing.DefaultClock.PeriodNs(),
	}
}

// WithTriggerDelay sets the number of rising edges before the trigger pin
// goes high.
func (b SonarBuilder) WithTriggerDelay(cycles uint64) SonarBuilder {
	b.triggerDelay = cycles
	return b
}

// WithTriggerWidth sets the number of cycles the trigger pin stays high.
func (b SonarBuilder) WithTriggerWidth(cycles uint64) SonarBuilder {
	b.triggerWidth = cycles
	return b
}

// WithClockPeriod sets the clock period used to turn echo cycles into a
// distance.
func (b SonarBuilder) WithClockPeriod(periodNs float64) SonarBuilder {
	b.periodNs = periodNs
	return b
}

// Build creates the sonar controller.
func (b SonarBuilder) Build() *SonarController {
	if b.periodNs <= 0 {
		panic("clock period must be positive")
	}

	pins := NewPinSet().
		Declare(PinClock, 1, Input).
		Declare(PinSonarEcho, 1, Input).
		Declare(PinRX, 1, Input).
		Declare(PinButton, 1, Input).
		Declare(PinSonarTrigger, 1, Output).
		Declare(PinDistance, 16, Output).
		Declare(PinDistanceValid, 1, Output)

	return &SonarController{
		PinSet:       pins,
		triggerAt:    b.triggerDelay + 1,
		triggerWidth: b.triggerWidth,
		periodNs:     b.periodNs,
	}
}

// Evaluate updates the outputs. Only rising clock edges change state.
func (c *SonarController) Evaluate() {
	clock := c.Get(PinClock)
	rising := clock == High && c.lastClock == Low
	c.lastClock = clock

	if !rising {
		return
	}

	c.cycle++
	c.updateTrigger()
	c.updateEcho()
}

func (c *SonarController) updateTrigger() {
	active := c.cycle >= c.triggerAt &&
		c.cycle < c.triggerAt+c.triggerWidth

	if active {
		c.Set(PinSonarTrigger, High)
		return
	}

	c.Set(PinSonarTrigger, Low)
}

func (c *SonarController) updateEcho() {
	echo := c.Get(PinSonarEcho)

	switch {
	case echo == High && c.lastEcho == Low:
		c.echoCycles = 1
		c.Set(PinDistanceValid, Low)
	case echo == High:
		c.echoCycles++
	case echo == Low && c.lastEcho == High:
		c.echoes++
		c.Set(PinDistance, c.distanceOf(c.echoCycles))
		c.Set(PinDistanceValid, High)
	}

	c.lastEcho = echo
}

func (c *SonarController) distanceOf(cycles uint64) uint64 {
	flight := float64(cycles) * c.periodNs
	return uint64(math.Round(flight / (2 * FlightTimePerUnitNs)))
}

// Cycles returns the number of rising edges seen.
func (c *SonarController) Cycles() uint64 {
	return c.cycle
}

// EchoCycles returns the width of the last echo pulse, in cycles.
func (c *SonarController) EchoCycles() uint64 {
	return c.echoCycles
}

// Echoes returns the number of complete echo pulses measured.
func (c *SonarController) Echoes() int {
	return c.echoes
}

var _ Model = (*SonarController)(nil)
