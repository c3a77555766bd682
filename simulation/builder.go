package simulation

import (
	"fmt"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/sarchlab/stimulus/config"
	"github.com/sarchlab/stimulus/driver"
	"github.com/sarchlab/stimulus/model"
	"github.com/sarchlab/stimulus/monitoring"
	"github.com/sarchlab/stimulus/stimulus"
	"github.com/sarchlab/stimulus/timing"
	"github.com/sarchlab/stimulus/waveform"
)

// Builder can be used to build a simulation.
type Builder struct {
	maxTime            timing.VTimeInNs
	checkpointInterval timing.VTimeInNs
	clock              timing.FreqInHz
	increment          timing.VTimeInNs
	strict             bool
	cleanupTicks       int

	model  model.Model
	logger *zap.Logger

	vcdPath    string
	sqliteOn   bool
	sqlitePath string

	monitorOn   bool
	monitorPort int
	openBrowser bool
}

// MakeBuilder creates a new builder with the settings of the reference run
// and no waveform output.
func MakeBuilder() Builder {
	cfg := config.Default()

	return Builder{
		maxTime:            cfg.MaxTime,
		checkpointInterval: cfg.CheckpointInterval,
		clock:              cfg.Clock,
		increment:          cfg.Increment,
		cleanupTicks:       cfg.CleanupTicks,
	}
}

// MakeBuilderFromConfig creates a builder that follows a configuration.
func MakeBuilderFromConfig(cfg config.Config) Builder {
	b := Builder{
		maxTime:            cfg.MaxTime,
		checkpointInterval: cfg.CheckpointInterval,
		clock:              cfg.Clock,
		increment:          cfg.Increment,
		strict:             cfg.Strict,
		cleanupTicks:       cfg.CleanupTicks,
		monitorOn:          cfg.MonitorOn,
		monitorPort:        cfg.MonitorPort,
		openBrowser:        cfg.OpenBrowser,
	}

	if cfg.WritesVCD() {
		b.vcdPath = cfg.WaveformPath
	}

	if cfg.WritesSQLite() {
		b.sqliteOn = true
		b.sqlitePath = cfg.SQLitePath
	}

	return b
}

// WithModel sets the model to drive. The default is a sonar controller.
func (b Builder) WithModel(m model.Model) Builder {
	b.model = m
	return b
}

// WithLogger sets the logger shared by all the parts of the simulation.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// WithMaxTime sets the time ceiling of wait stages.
func (b Builder) WithMaxTime(t timing.VTimeInNs) Builder {
	b.maxTime = t
	return b
}

// WithCheckpointInterval sets the simulated time between two progress
// reports.
func (b Builder) WithCheckpointInterval(t timing.VTimeInNs) Builder {
	b.checkpointInterval = t
	return b
}

// WithClock sets the frequency of the model clock.
func (b Builder) WithClock(f timing.FreqInHz) Builder {
	b.clock = f
	return b
}

// WithIncrement sets the half-period increment of the time base. Zero, the
// default, derives it from the clock.
func (b Builder) WithIncrement(t timing.VTimeInNs) Builder {
	b.increment = t
	return b
}

// WithStrict makes wait stages fail at the time ceiling.
func (b Builder) WithStrict() Builder {
	b.strict = true
	return b
}

// WithCleanupTicks sets the number of periods run after the stimulus.
func (b Builder) WithCleanupTicks(n int) Builder {
	b.cleanupTicks = n
	return b
}

// WithVCD records a VCD file at path.
func (b Builder) WithVCD(path string) Builder {
	b.vcdPath = path
	return b
}

// WithSQLite records a SQLite database at path. An empty path gets a
// generated name.
func (b Builder) WithSQLite(path string) Builder {
	b.sqliteOn = true
	b.sqlitePath = path

	return b
}

// WithMonitor starts the monitoring server on the given port. Port 0 picks a
// free port.
func (b Builder) WithMonitor(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

// WithBrowser opens the monitoring page once the server is up.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.maxTime == 0 {
		panic("max time must be positive")
	}

	if b.cleanupTicks < 0 {
		panic("cleanup ticks cannot be negative")
	}

	if !b.monitorOn && (b.monitorPort != 0 || b.openBrowser) {
		panic("monitor options cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation. Errors come from an invalid clock, opening
// the waveform outputs or starting the monitor.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	increment := b.increment
	if increment == 0 {
		var err error

		increment, err = b.clock.Increment()
		if err != nil {
			return nil, err
		}
	}

	s := &Simulation{
		id:           xid.New().String(),
		model:        b.model,
		logger:       b.logger,
		cleanupTicks: b.cleanupTicks,
	}

	if s.model == nil {
		s.model = model.MakeSonarBuilder().
			WithClockPeriod(b.clock.PeriodNs()).
			Build()
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	tb, err := timing.NewTimeBase(increment)
	if err != nil {
		return nil, err
	}
	s.timeBase = tb

	err = b.buildRecorders(s)
	if err != nil {
		_ = s.closeRecorders()
		return nil, err
	}

	s.driver = driver.New(s.model, waveform.Multi(s.recorders...), tb)

	s.session = stimulus.NewSession(s.model, s.driver, b.maxTime).
		WithLogger(s.logger)
	if b.strict {
		s.session.WithStrict()
	}

	// The nominal period of the default clock stays in charge of the pulse
	// arithmetic.
	if b.clock != timing.DefaultClock {
		s.session.WithClockPeriod(b.clock.PeriodNs())
	}

	s.checkpoints = timing.NewCheckpointReporter(
		b.checkpointInterval, s.logger)
	tb.AcceptHook(s.checkpoints)

	if b.monitorOn {
		err = b.buildMonitor(s)
		if err != nil {
			_ = s.closeRecorders()
			return nil, err
		}
	}

	return s, nil
}

func (b Builder) buildRecorders(s *Simulation) error {
	if b.vcdPath != "" {
		vcd, err := waveform.CreateVCDFile(b.vcdPath, s.model)
		if err != nil {
			return err
		}

		s.recorders = append(s.recorders, vcd)
		s.outputs = append(s.outputs, b.vcdPath)
	}

	if b.sqliteOn {
		path := b.sqlitePath
		if path == "" {
			path = "stimsim_" + s.id
		}

		db, err := waveform.NewSQLiteRecorder(path, s.model)
		if err != nil {
			return fmt.Errorf("simulation: open waveform database: %w", err)
		}

		s.recorders = append(s.recorders, db)
		s.outputs = append(s.outputs, db.Filename())
	}

	return nil
}

func (b Builder) buildMonitor(s *Simulation) error {
	s.monitor = monitoring.NewMonitor().
		WithLogger(s.logger).
		WithPortNumber(b.monitorPort)
	s.monitor.RegisterTimeBase(s.timeBase)
	s.monitor.RegisterSession(s.session)

	s.progress = s.monitor.CreateProgressBar("Simulated time", uint64(b.maxTime))
	s.checkpoints.WithProgress(s.progress)

	url, err := s.monitor.StartServer()
	if err != nil {
		return err
	}

	if b.openBrowser {
		s.monitor.OpenInBrowser(url)
	}

	return nil
}
