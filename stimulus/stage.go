package stimulus

import (
	"fmt"
	"math"

	"github.com/sarchlab/stimulus/model"
)

// NominalPeriodNs is the full clock period used to turn durations into
// clock periods.
const NominalPeriodNs = 83.3333

// Fixed protocol delays, in clock periods.
const (
	// TriggerSetupPeriods is the margin between seeing the trigger and
	// looking for its release.
	TriggerSetupPeriods = 5

	// TurnaroundPeriods is the delay between the trigger release and the
	// echo (about 5 us).
	TurnaroundPeriods = 60
)

// PropagationDelayNs is the time left for downstream logic to settle after
// the echo.
const PropagationDelayNs = 2_000_000

// StageKind tells how the sequencer runs a stage.
type StageKind int

// Stage kinds.
const (
	// StageWait ticks one period at a time until a condition holds or the
	// ceiling is reached.
	StageWait StageKind = iota

	// StageConfirm reports whether a condition holds, without ticking.
	StageConfirm

	// StageDelay ticks a fixed number of periods.
	StageDelay

	// StageDrive sets a pin, without ticking.
	StageDrive
)

func (k StageKind) String() string {
	switch k {
	case StageWait:
		return "wait"
	case StageConfirm:
		return "confirm"
	case StageDelay:
		return "delay"
	case StageDrive:
		return "drive"
	default:
		return fmt.Sprintf("StageKind(%d)", int(k))
	}
}

// A Condition is a predicate over the pins of a model.
type Condition func(m model.Model) bool

// PinIs returns a condition that holds when the pin has the given value.
func PinIs(name string, value uint64) Condition {
	return func(m model.Model) bool {
		return m.Get(name) == value
	}
}

// Stage describes one step of a stimulus sequence.
type Stage struct {
	Name string
	Kind StageKind

	// Periods is the number of clock periods of a delay stage.
	Periods int

	// Until is the condition of wait and confirm stages.
	Until Condition

	// Pin and Level are the effect of a drive stage.
	Pin   string
	Level uint64

	// Message is logged when the stage runs. Confirm stages only log it if
	// the condition holds.
	Message string
}

// PulsePeriods converts a duration to the nearest number of clock periods.
func PulsePeriods(durationNs, periodNs float64) int {
	return int(math.Round(durationNs / periodNs))
}

// EchoPulsePeriods returns the width of the echo pulse for a distance, in
// nominal clock periods. The pulse covers the round trip.
func EchoPulsePeriods(distance int) int {
	return echoPulsePeriods(distance, NominalPeriodNs)
}

func echoPulsePeriods(distance int, periodNs float64) int {
	return PulsePeriods(
		float64(distance)*2*model.FlightTimePerUnitNs, periodNs)
}

// PropagationPeriods returns the length of the propagation delay, in nominal
// clock periods.
func PropagationPeriods() int {
	return PulsePeriods(PropagationDelayNs, NominalPeriodNs)
}

// ProtocolStages returns the stages of one sonar exchange.
func ProtocolStages(distance int, periodNs float64) []Stage {
	triggerActive := PinIs(model.PinSonarTrigger, model.High)
	triggerReleased := PinIs(model.PinSonarTrigger, model.Low)

	return []Stage{
		{
			Name:  "WaitTrigger",
			Kind:  StageWait,
			Until: triggerActive,
		},
		{
			Name:    "ConfirmTrigger",
			Kind:    StageConfirm,
			Until:   triggerActive,
			Message: "Saw sonar trigger",
		},
		{
			Name:    "TriggerSetup",
			Kind:    StageDelay,
			Periods: TriggerSetupPeriods,
		},
		{
			Name:  "WaitTriggerRelease",
			Kind:  StageWait,
			Until: triggerReleased,
		},
		{
			Name:    "ConfirmRelease",
			Kind:    StageConfirm,
			Until:   triggerReleased,
			Message: "Saw sonar trigger go away",
		},
		{
			Name:    "Turnaround",
			Kind:    StageDelay,
			Periods: TurnaroundPeriods,
		},
		{
			Name:    "AssertEcho",
			Kind:    StageDrive,
			Pin:     model.PinSonarEcho,
			Level:   model.High,
			Message: "Sending echo pulse active",
		},
		{
			Name:    "WaitEchoDuration",
			Kind:    StageDelay,
			Periods: echoPulsePeriods(distance, periodNs),
		},
		{
			Name:    "DeassertEcho",
			Kind:    StageDrive,
			Pin:     model.PinSonarEcho,
			Level:   model.Low,
			Message: "Deactivating echo",
		},
		{
			Name:    "PropagationDelay",
			Kind:    StageDelay,
			Periods: PulsePeriods(PropagationDelayNs, periodNs),
			Message: "Propagation wait",
		},
	}
}

// plannedPeriods sums the periods of the delay stages.
func plannedPeriods(stages []Stage) uint64 {
	var total uint64
	for _, s := range stages {
		if s.Kind == StageDelay && s.Periods > 0 {
			total += uint64(s.Periods)
		}
	}

	return total
}
