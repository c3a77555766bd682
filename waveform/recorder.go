// Package waveform records the pin states of a model over simulated time.
package waveform

import (
	"errors"

	"github.com/sarchlab/stimulus/model"
	"github.com/sarchlab/stimulus/timing"
)

var (
	// ErrRecorderClosed is returned when a closed recorder is used.
	ErrRecorderClosed = errors.New("waveform: recorder closed")

	// ErrTimeOrder is returned when a sample is older than the previous one.
	ErrTimeOrder = errors.New("waveform: sample time goes backwards")
)

// A Recorder appends samples of all the pins of a model.
//
// Samples must be recorded in non-decreasing time order. Recording twice at
// the same time is allowed so that a final state can be captured at the end
// of a session.
type Recorder interface {
	// RecordSample appends the state of all pins at the given time.
	RecordSample(t timing.VTimeInNs) error

	// Flush makes all appended samples durable.
	Flush() error

	// Close flushes and finalizes the recording.
	Close() error
}

type change struct {
	index int
	value uint64
}

// sampler tracks the last recorded value of every pin so that recorders can
// store changes only.
type sampler struct {
	model  model.Model
	pins   []model.PinInfo
	last   []uint64
	primed bool
}

func newSampler(m model.Model) *sampler {
	pins := m.Pins()

	return &sampler{
		model: m,
		pins:  pins,
		last:  make([]uint64, len(pins)),
	}
}

// sample returns every pin on the first call and the changed pins after.
func (s *sampler) sample() []change {
	var changes []change

	for i, p := range s.pins {
		v := s.model.Get(p.Name)
		if s.primed && v == s.last[i] {
			continue
		}

		s.last[i] = v
		changes = append(changes, change{index: i, value: v})
	}

	s.primed = true

	return changes
}

// timeGuard enforces the ordering rule shared by all recorders.
type timeGuard struct {
	last      timing.VTimeInNs
	hasSample bool
	closed    bool
}

func (g *timeGuard) admit(t timing.VTimeInNs) (first bool, err error) {
	if g.closed {
		return false, ErrRecorderClosed
	}

	if g.hasSample && t < g.last {
		return false, ErrTimeOrder
	}

	first = !g.hasSample
	g.hasSample = true
	g.last = t

	return first, nil
}

type multiRecorder struct {
	recorders []Recorder
}

// Multi creates a recorder that forwards every call to all the given
// recorders.
func Multi(recorders ...Recorder) Recorder {
	return &multiRecorder{recorders: recorders}
}

func (m *multiRecorder) RecordSample(t timing.VTimeInNs) error {
	var errs []error
	for _, r := range m.recorders {
		errs = append(errs, r.RecordSample(t))
	}

	return errors.Join(errs...)
}

func (m *multiRecorder) Flush() error {
	var errs []error
	for _, r := range m.recorders {
		errs = append(errs, r.Flush())
	}

	return errors.Join(errs...)
}

func (m *multiRecorder) Close() error {
	var errs []error
	for _, r := range m.recorders {
		errs = append(errs, r.Close())
	}

	return errors.Join(errs...)
}
