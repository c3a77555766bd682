// Package stimulus sequences the stimulus applied to a model. A sequence is
// a list of stages that wait on output pins, drive input pins and let clock
// periods pass.
package stimulus

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/stimulus/driver"
	"github.com/sarchlab/stimulus/hooking"
	"github.com/sarchlab/stimulus/model"
	"github.com/sarchlab/stimulus/timing"
)

// Hook positions of a session. The hook item is a StageReport.
var (
	HookPosStageStart = &hooking.HookPos{Name: "StageStart"}
	HookPosStageEnd   = &hooking.HookPos{Name: "StageEnd"}
)

// StageReport tells what happened in one stage.
type StageReport struct {
	Stage   string
	Kind    StageKind
	Start   timing.VTimeInNs
	End     timing.VTimeInNs
	Periods int

	// Met is false when a wait stage stopped at the ceiling, or when a
	// confirm stage did not observe its condition.
	Met bool
}

// A Session runs stimulus sequences against one model. It must be used from a
// single goroutine.
type Session struct {
	*hooking.HookableBase

	model   model.Model
	ticker  driver.Ticker
	maxTime timing.VTimeInNs

	periodNs float64
	strict   bool
	logger   *zap.Logger

	echoDistance   int
	remainingTicks uint64
	reports        []StageReport
}

// NewSession creates a session. Wait stages give up when the time reaches
// maxTime.
func NewSession(
	m model.Model,
	ticker driver.Ticker,
	maxTime timing.VTimeInNs,
) *Session {
	return &Session{
		HookableBase: hooking.NewHookableBase(),
		model:        m,
		ticker:       ticker,
		maxTime:      maxTime,
		periodNs:     NominalPeriodNs,
		logger:       zap.NewNop(),
	}
}

// WithStrict makes wait stages fail with ErrTimeoutExceeded when they reach
// the ceiling. By default the sequence continues as if the condition held.
func (s *Session) WithStrict() *Session {
	s.strict = true
	return s
}

// WithLogger sets the logger.
func (s *Session) WithLogger(logger *zap.Logger) *Session {
	s.logger = logger
	return s
}

// WithClockPeriod sets the clock period used to turn durations into periods.
func (s *Session) WithClockPeriod(periodNs float64) *Session {
	if periodNs <= 0 {
		panic("clock period must be positive")
	}

	s.periodNs = periodNs

	return s
}

// MaxTime returns the time ceiling.
func (s *Session) MaxTime() timing.VTimeInNs {
	return s.maxTime
}

// EchoDistance returns the distance of the last exchange.
func (s *Session) EchoDistance() int {
	return s.echoDistance
}

// Finished tells if no ticks remain to be run.
func (s *Session) Finished() bool {
	return s.remainingTicks == 0
}

// Reports returns the reports of the stages run by the last sequence.
func (s *Session) Reports() []StageReport {
	reports := make([]StageReport, len(s.reports))
	copy(reports, s.reports)

	return reports
}

// StartStim runs one sonar exchange with the given echo distance. The reports
// of the previous exchange are dropped, even when the distance is rejected.
func (s *Session) StartStim(echoDistance int) error {
	s.reports = s.reports[:0]

	if echoDistance < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDistance, echoDistance)
	}

	s.echoDistance = echoDistance
	s.logger.Info("Stimulus cycle started",
		zap.Int("echo_distance", echoDistance))

	return s.Run(ProtocolStages(echoDistance, s.periodNs))
}

// Run interprets a sequence of stages. It stops at the first error.
func (s *Session) Run(stages []Stage) error {
	s.reports = s.reports[:0]
	s.remainingTicks = plannedPeriods(stages)

	for _, stage := range stages {
		err := s.runStage(stage)
		if err != nil {
			return err
		}
	}

	s.remainingTicks = 0

	return nil
}

func (s *Session) runStage(stage Stage) error {
	report := StageReport{
		Stage: stage.Name,
		Kind:  stage.Kind,
		Start: s.ticker.Now(),
		Met:   true,
	}

	s.invokeStageHook(HookPosStageStart, report)

	var err error

	switch stage.Kind {
	case StageWait:
		err = s.runWait(stage, &report)
	case StageConfirm:
		s.runConfirm(stage, &report)
	case StageDelay:
		err = s.runDelay(stage, &report)
	case StageDrive:
		s.runDrive(stage)
	default:
		err = fmt.Errorf("stimulus: stage %s has unknown kind %s",
			stage.Name, stage.Kind)
	}

	report.End = s.ticker.Now()
	s.reports = append(s.reports, report)
	s.invokeStageHook(HookPosStageEnd, report)

	return err
}

func (s *Session) runWait(stage Stage, report *StageReport) error {
	met, periods, err := WaitUntil(s.ticker, func() bool {
		return stage.Until(s.model)
	}, s.maxTime)

	report.Met = met
	report.Periods = periods

	if err != nil || met {
		return err
	}

	s.logger.Debug("Wait reached the time ceiling",
		zap.String("stage", stage.Name),
		zap.Uint64("time_ns", uint64(s.ticker.Now())))

	if s.strict {
		return fmt.Errorf("%w: stage %s at %d ns",
			ErrTimeoutExceeded, stage.Name, s.ticker.Now())
	}

	return nil
}

func (s *Session) runConfirm(stage Stage, report *StageReport) {
	report.Met = stage.Until(s.model)
	if !report.Met {
		return
	}

	s.logger.Info(stage.Message,
		zap.String("stage", stage.Name),
		zap.Uint64("time_ns", uint64(s.ticker.Now())))
}

func (s *Session) runDelay(stage Stage, report *StageReport) error {
	if stage.Message != "" {
		s.logger.Info(stage.Message,
			zap.String("stage", stage.Name),
			zap.Int("periods", stage.Periods))
	}

	err := s.ticker.Tick(stage.Periods)
	if err != nil {
		return err
	}

	if stage.Periods > 0 {
		report.Periods = stage.Periods
		s.remainingTicks -= uint64(stage.Periods)
	}

	return nil
}

func (s *Session) runDrive(stage Stage) {
	if stage.Message != "" {
		s.logger.Info(stage.Message,
			zap.String("stage", stage.Name),
			zap.String("pin", stage.Pin),
			zap.Uint64("level", stage.Level))
	}

	s.model.Set(stage.Pin, stage.Level)
}

func (s *Session) invokeStageHook(pos *hooking.HookPos, report StageReport) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   report,
	})
}

// WaitUntil ticks one period at a time while cond does not hold and the time
// is below ceiling. It returns whether cond held when it stopped and the
// number of periods ticked.
func WaitUntil(
	ticker driver.Ticker,
	cond func() bool,
	ceiling timing.VTimeInNs,
) (met bool, periods int, err error) {
	for !cond() && ticker.Now() < ceiling {
		err = ticker.Tick(1)
		if err != nil {
			return false, periods, err
		}

		periods++
	}

	return cond(), periods, nil
}
