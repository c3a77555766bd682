// Package simulation wires a model, a time base, a driver, waveform recorders
// and a stimulus session into one runnable simulation.
package simulation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sarchlab/stimulus/driver"
	"github.com/sarchlab/stimulus/model"
	"github.com/sarchlab/stimulus/monitoring"
	"github.com/sarchlab/stimulus/stimulus"
	"github.com/sarchlab/stimulus/timing"
	"github.com/sarchlab/stimulus/waveform"
)

// InitialPins are applied before the first sample of a run. Pins that the
// model does not have are skipped.
var InitialPins = []driver.PinValue{
	{Name: model.PinSonarEcho, Value: model.Low},
	{Name: model.PinRX, Value: model.High},
	{Name: model.PinButton, Value: model.High},
}

// A Simulation runs the stimulus protocol against a model.
type Simulation struct {
	id     string
	logger *zap.Logger

	model       model.Model
	timeBase    *timing.TimeBase
	driver      *driver.Driver
	session     *stimulus.Session
	checkpoints *timing.CheckpointReporter

	recorders []waveform.Recorder
	outputs   []string

	monitor  *monitoring.Monitor
	progress *monitoring.ProgressBar

	cleanupTicks int
	terminated   bool
}

// Result summarizes a run.
type Result struct {
	EchoDistance int
	SimTime      timing.VTimeInNs
	WallTime     time.Duration
	Ticks        uint64
	Checkpoints  int
	Reports      []stimulus.StageReport
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Model returns the driven model.
func (s *Simulation) Model() model.Model {
	return s.model
}

// TimeBase returns the time base.
func (s *Simulation) TimeBase() *timing.TimeBase {
	return s.timeBase
}

// Driver returns the clock driver.
func (s *Simulation) Driver() *driver.Driver {
	return s.driver
}

// Session returns the stimulus session.
func (s *Simulation) Session() *stimulus.Session {
	return s.session
}

// Monitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Outputs returns the files the waveform is recorded into.
func (s *Simulation) Outputs() []string {
	return s.outputs
}

// Run settles the model, runs one sonar exchange with the given echo
// distance, lets the model run for the cleanup periods and captures the final
// state.
func (s *Simulation) Run(echoDistance int) (Result, error) {
	start := time.Now()
	result := Result{EchoDistance: echoDistance}

	err := s.driver.Settle(s.initialPins()...)
	if err != nil {
		return result, err
	}

	err = s.session.StartStim(echoDistance)
	result.Reports = s.session.Reports()

	if err != nil {
		return result, err
	}

	s.logger.Info("Stimulus finished",
		zap.Uint64("time_ns", uint64(s.timeBase.Now())))

	err = s.driver.Tick(s.cleanupTicks)
	if err != nil {
		return result, err
	}

	err = s.driver.Capture()
	if err != nil {
		return result, err
	}

	result.SimTime = s.timeBase.Now()
	result.WallTime = time.Since(start)
	result.Ticks = s.driver.TicksRun()
	result.Checkpoints = s.checkpoints.Count()

	if s.progress != nil {
		s.progress.SetFinished(uint64(result.SimTime))
	}

	s.logger.Info("Simulation done",
		zap.Uint64("time_ns", uint64(result.SimTime)),
		zap.Duration("wall_time", result.WallTime),
		zap.Uint64("ticks", result.Ticks))

	return result, nil
}

func (s *Simulation) initialPins() []driver.PinValue {
	declared := make(map[string]bool)
	for _, p := range s.model.Pins() {
		declared[p.Name] = true
	}

	var pins []driver.PinValue
	for _, p := range InitialPins {
		if declared[p.Name] {
			pins = append(pins, p)
		}
	}

	return pins
}

// Terminate closes the waveform recorders and stops the monitor. Calling it
// twice is a no-op.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}

	s.terminated = true

	err := s.closeRecorders()

	if s.monitor != nil {
		s.monitor.CompleteProgressBar(s.progress)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err = errors.Join(err, s.monitor.Shutdown(ctx))
	}

	return err
}

func (s *Simulation) closeRecorders() error {
	var errs []error
	for _, r := range s.recorders {
		errs = append(errs, r.Close())
	}

	return errors.Join(errs...)
}
