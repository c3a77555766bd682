// Package config holds the settings of a simulation run. Values come from, in
// increasing priority, the defaults, a .env file, STIMSIM_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/sarchlab/stimulus/timing"
)

// ErrConfig is wrapped by every configuration error.
var ErrConfig = errors.New("config: invalid configuration")

// EnvPrefix prefixes the names of the environment variables read by Load.
const EnvPrefix = "STIMSIM_"

// foreignVars are STIMSIM_* variables read by other packages. Apply skips
// them.
var foreignVars = map[string]bool{
	"STIMSIM_MONITOR_DEV": true,
}

// Waveform formats.
const (
	FormatVCD    = "vcd"
	FormatSQLite = "sqlite"
	FormatBoth   = "both"
	FormatNone   = "none"
)

// Config is the configuration of one run.
type Config struct {
	MaxTime            timing.VTimeInNs
	CheckpointInterval timing.VTimeInNs
	EchoDistance       int
	Strict             bool

	// Clock is the frequency of the model clock. Increment is the half-period
	// time step; zero derives it from Clock.
	Clock     timing.FreqInHz
	Increment timing.VTimeInNs

	// Format selects the waveform recorders. WaveformPath is the VCD file and
	// SQLitePath the database file; an empty SQLitePath gets a generated name.
	Format       string
	WaveformPath string
	SQLitePath   string

	MonitorOn   bool
	MonitorPort int
	OpenBrowser bool

	CleanupTicks int
}

// Default returns the configuration of the reference run.
func Default() Config {
	return Config{
		MaxTime:            200_000_000,
		CheckpointInterval: timing.DefaultCheckpointInterval,
		Clock:              timing.DefaultClock,
		EchoDistance:       24,
		Format:             FormatVCD,
		WaveformPath:       "waveform.vcd",
		CleanupTicks:       5,
	}
}

// Load reads the defaults, then envFile, then the environment. A missing
// envFile is not an error. Environment variables win over the file. The
// result is not validated.
func Load(envFile string) (Config, error) {
	cfg := Default()

	vars := make(map[string]string)

	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: read %s: %v", ErrConfig, envFile, err)
		}

		for k, v := range fileVars {
			vars[k] = v
		}
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			vars[k] = v
		}
	}

	err := cfg.Apply(vars)

	return cfg, err
}

type setter func(c *Config, value string) error

var setters = map[string]setter{
	"MAX_TIME": func(c *Config, v string) error {
		return parseTime(v, &c.MaxTime)
	},
	"CHECKPOINT_INTERVAL": func(c *Config, v string) error {
		return parseTime(v, &c.CheckpointInterval)
	},
	"CLOCK_HZ": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, "_", ""), 64)
		c.Clock = timing.FreqInHz(f)

		return err
	},
	"INCREMENT": func(c *Config, v string) error {
		return parseTime(v, &c.Increment)
	},
	"ECHO_DISTANCE": func(c *Config, v string) error {
		return parseInt(v, &c.EchoDistance)
	},
	"STRICT": func(c *Config, v string) error {
		return parseBool(v, &c.Strict)
	},
	"FORMAT": func(c *Config, v string) error {
		c.Format = strings.ToLower(v)
		return nil
	},
	"WAVEFORM": func(c *Config, v string) error {
		c.WaveformPath = v
		return nil
	},
	"SQLITE": func(c *Config, v string) error {
		c.SQLitePath = v
		return nil
	},
	"MONITOR": func(c *Config, v string) error {
		return parseBool(v, &c.MonitorOn)
	},
	"MONITOR_PORT": func(c *Config, v string) error {
		return parseInt(v, &c.MonitorPort)
	},
	"OPEN_BROWSER": func(c *Config, v string) error {
		return parseBool(v, &c.OpenBrowser)
	},
	"CLEANUP_TICKS": func(c *Config, v string) error {
		return parseInt(v, &c.CleanupTicks)
	},
}

// Apply sets the fields named by STIMSIM_* keys. Keys without the prefix and
// variables owned by other packages are ignored, unknown STIMSIM_* keys are
// errors.
func (c *Config) Apply(vars map[string]string) error {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var err error

	for _, k := range keys {
		name, ok := strings.CutPrefix(k, EnvPrefix)
		if !ok || foreignVars[k] {
			continue
		}

		set, known := setters[name]
		if !known {
			err = multierr.Append(err,
				fmt.Errorf("%w: unknown variable %s", ErrConfig, k))
			continue
		}

		if serr := set(c, vars[k]); serr != nil {
			err = multierr.Append(err,
				fmt.Errorf("%w: %s=%q: %v", ErrConfig, k, vars[k], serr))
		}
	}

	return err
}

// Validate checks the values and reports every problem found.
func (c Config) Validate() error {
	var err error

	fail := func(format string, args ...any) {
		err = multierr.Append(err,
			fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...))
	}

	if c.MaxTime == 0 {
		fail("max time must be positive")
	}

	if c.Clock <= 0 {
		fail("clock frequency must be positive")
	} else if _, ierr := c.TimeIncrement(); ierr != nil {
		fail("%v", ierr)
	}

	if c.EchoDistance < 0 {
		fail("echo distance %d is negative", c.EchoDistance)
	}

	if c.CleanupTicks < 0 {
		fail("cleanup ticks %d is negative", c.CleanupTicks)
	}

	switch c.Format {
	case FormatVCD, FormatBoth:
		if c.WaveformPath == "" {
			fail("format %s needs a waveform path", c.Format)
		}
	case FormatSQLite, FormatNone:
	default:
		fail("unknown waveform format %q", c.Format)
	}

	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		fail("monitor port %d out of range", c.MonitorPort)
	}

	if c.OpenBrowser && !c.MonitorOn {
		fail("open browser requires the monitor")
	}

	return err
}

// TimeIncrement returns the half-period time step, derived from the clock
// when Increment is zero.
func (c Config) TimeIncrement() (timing.VTimeInNs, error) {
	if c.Increment != 0 {
		return c.Increment, nil
	}

	return c.Clock.Increment()
}

// WritesVCD tells if a VCD file is recorded.
func (c Config) WritesVCD() bool {
	return c.Format == FormatVCD || c.Format == FormatBoth
}

// WritesSQLite tells if a SQLite database is recorded.
func (c Config) WritesSQLite() bool {
	return c.Format == FormatSQLite || c.Format == FormatBoth
}

func parseTime(v string, dst *timing.VTimeInNs) error {
	n, err := strconv.ParseUint(strings.ReplaceAll(v, "_", ""), 10, 64)
	if err != nil {
		return err
	}

	*dst = timing.VTimeInNs(n)

	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	*dst = n

	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*dst = b

	return nil
}
