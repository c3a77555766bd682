package timing

import (
	"go.uber.org/zap"

	"github.com/sarchlab/stimulus/hooking"
)

// DefaultCheckpointInterval is the simulated time between two progress
// reports.
const DefaultCheckpointInterval VTimeInNs = 10_000_000

// A ProgressUpdater receives the simulated time reached at each checkpoint.
type ProgressUpdater interface {
	SetFinished(amount uint64)
}

// CheckpointReporter is a hook that periodically reports the simulated time.
// It is purely observational.
type CheckpointReporter struct {
	next     VTimeInNs
	interval VTimeInNs
	logger   *zap.Logger
	progress ProgressUpdater
	count    int
}

// NewCheckpointReporter creates a reporter whose first checkpoint is one
// interval after time 0. A zero interval falls back to the default.
func NewCheckpointReporter(
	interval VTimeInNs,
	logger *zap.Logger,
) *CheckpointReporter {
	if interval == 0 {
		interval = DefaultCheckpointInterval
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &CheckpointReporter{
		next:     interval,
		interval: interval,
		logger:   logger,
	}
}

// WithProgress forwards each checkpoint to a progress tracker.
func (r *CheckpointReporter) WithProgress(
	p ProgressUpdater,
) *CheckpointReporter {
	r.progress = p
	return r
}

// Next returns the time that has to be exceeded for the next report.
func (r *CheckpointReporter) Next() VTimeInNs {
	return r.next
}

// Count returns the number of checkpoints reported so far.
func (r *CheckpointReporter) Count() int {
	return r.count
}

// Func reports a checkpoint when the time advanced past the next checkpoint.
func (r *CheckpointReporter) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosTimeAdvanced {
		return
	}

	now, ok := ctx.Item.(VTimeInNs)
	if !ok || now <= r.next {
		return
	}

	r.logger.Info("Simulation checkpoint",
		zap.Uint64("time_ns", uint64(now)))

	r.next += r.interval
	r.count++

	if r.progress != nil {
		r.progress.SetFinished(uint64(now))
	}
}
