// Package model defines the boundary between the stimulus driver and the
// hardware model under simulation.
//
// A model exposes named pins and an Evaluate method. The driver writes input
// pins, calls Evaluate, and reads output pins. Pin storage belongs to the
// model; the driver never keeps copies of pin values across evaluations.
package model

// Names of the pins used by the sonar protocol.
const (
	PinClock         = "clock"
	PinSonarEcho     = "sonarecho"
	PinSonarTrigger  = "sonartrigger"
	PinRX            = "RX"
	PinButton        = "button"
	PinDistance      = "distance"
	PinDistanceValid = "distance_valid"
)

// Logic levels of single-bit pins.
const (
	Low  uint64 = 0
	High uint64 = 1
)

// FlightTimePerUnitNs is the one-way flight time of a sonar pulse per
// distance unit (58.772 us per cm).
const FlightTimePerUnitNs = 58.772 * 1000

// Direction tells whether the driver or the model writes a pin.
type Direction int

// Pin directions, seen from the model.
const (
	Input Direction = iota
	Output
)

// PinInfo describes one pin of a model.
type PinInfo struct {
	Name      string
	Width     int
	Direction Direction
}

// A Model is an evaluable hardware model with named pins.
type Model interface {
	// Get returns the current value of a pin.
	Get(name string) uint64

	// Set drives an input pin. The new value is only seen by the model logic
	// at the next Evaluate.
	Set(name string, value uint64)

	// Evaluate updates all outputs and internal state from the current
	// inputs. Calling it again with unchanged inputs must not change the
	// observed outputs.
	Evaluate()

	// Pins lists all the pins of the model in a stable order.
	Pins() []PinInfo
}
