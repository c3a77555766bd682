// Package driver drives the clock of a model and records a waveform sample
// at every clock phase.
package driver

import (
	"fmt"

	"github.com/sarchlab/stimulus/model"
	"github.com/sarchlab/stimulus/timing"
	"github.com/sarchlab/stimulus/waveform"
)

// A Ticker can run full clock periods.
type Ticker interface {
	timing.TimeTeller

	// Tick runs count full clock periods.
	Tick(count int) error
}

// PinValue is the value to apply to a pin.
type PinValue struct {
	Name  string
	Value uint64
}

// Driver owns the clock pin of a model. One tick is one full clock period,
// made of a rising phase and a falling phase. Each phase records a sample,
// advances the time base, drives the clock and evaluates the model.
type Driver struct {
	model    model.Model
	recorder waveform.Recorder
	timeBase *timing.TimeBase

	ticksRun uint64
}

// New creates a driver.
func New(
	m model.Model,
	recorder waveform.Recorder,
	timeBase *timing.TimeBase,
) *Driver {
	return &Driver{
		model:    m,
		recorder: recorder,
		timeBase: timeBase,
	}
}

// Now returns the current simulated time.
func (d *Driver) Now() timing.VTimeInNs {
	return d.timeBase.Now()
}

// TicksRun returns the number of full periods executed so far.
func (d *Driver) TicksRun() uint64 {
	return d.ticksRun
}

// Tick runs count full clock periods. A count that is not positive does
// nothing. Tick does not look at any time ceiling.
func (d *Driver) Tick(count int) error {
	for ; count > 0; count-- {
		err := d.phase(model.High)
		if err != nil {
			return err
		}

		err = d.phase(model.Low)
		if err != nil {
			return err
		}

		d.ticksRun++
	}

	return nil
}

func (d *Driver) phase(clock uint64) error {
	err := d.Capture()
	if err != nil {
		return err
	}

	d.timeBase.BumpTime()
	d.model.Set(model.PinClock, clock)
	d.model.Evaluate()

	return nil
}

// Settle applies the initial pin values with the clock low, records the
// starting state and runs the low half of the first clock period.
func (d *Driver) Settle(initial ...PinValue) error {
	d.model.Set(model.PinClock, model.Low)
	for _, p := range initial {
		d.model.Set(p.Name, p.Value)
	}

	d.model.Evaluate()

	err := d.Capture()
	if err != nil {
		return err
	}

	d.timeBase.BumpTime()
	d.model.Set(model.PinClock, model.Low)
	d.model.Evaluate()

	return nil
}

// Capture records and flushes one sample at the current time.
func (d *Driver) Capture() error {
	now := d.timeBase.Now()

	err := d.recorder.RecordSample(now)
	if err != nil {
		return fmt.Errorf("driver: record sample at %d ns: %w", now, err)
	}

	err = d.recorder.Flush()
	if err != nil {
		return fmt.Errorf("driver: flush at %d ns: %w", now, err)
	}

	return nil
}

var _ Ticker = (*Driver)(nil)
