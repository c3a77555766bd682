// Package cmd provides the command-line interface of stimsim.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/sarchlab/stimulus/config"
	"github.com/sarchlab/stimulus/simulation"
)

var (
	envFile string
	verbose bool
	flagCfg = config.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stimsim",
	Short: "stimsim drives a sonar exchange against a simulated controller.",
	Long: `stimsim drives a sonar exchange against a simulated controller. ` +
		`It waits for the trigger pulse, answers with an echo pulse whose width ` +
		`encodes the distance and records every clock phase into a VCD file ` +
		`and/or a SQLite database. Settings come from the defaults, a .env ` +
		`file, STIMSIM_* environment variables and flags, in that order.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()

	f.StringVar(&envFile, "env-file", ".env",
		"File with STIMSIM_* settings. A missing file is ignored.")
	f.BoolVarP(&verbose, "verbose", "v", false,
		"Log with the development logger, including debug messages.")

	f.Uint64Var((*uint64)(&flagCfg.MaxTime), "max-time",
		uint64(flagCfg.MaxTime), "Time ceiling of wait stages, in ns.")
	f.Uint64Var((*uint64)(&flagCfg.CheckpointInterval), "checkpoint-interval",
		uint64(flagCfg.CheckpointInterval),
		"Simulated time between progress reports, in ns.")
	f.Float64Var((*float64)(&flagCfg.Clock), "clock-hz",
		float64(flagCfg.Clock), "Frequency of the model clock, in Hz.")
	f.Uint64Var((*uint64)(&flagCfg.Increment), "increment",
		uint64(flagCfg.Increment),
		"Half-period time increment, in ns. 0 derives it from the clock.")
	f.IntVar(&flagCfg.EchoDistance, "distance", flagCfg.EchoDistance,
		"Distance encoded in the echo pulse.")
	f.BoolVar(&flagCfg.Strict, "strict", flagCfg.Strict,
		"Fail when a wait stage reaches the time ceiling.")
	f.StringVar(&flagCfg.Format, "format", flagCfg.Format,
		"Waveform format: vcd, sqlite, both or none.")
	f.StringVar(&flagCfg.WaveformPath, "waveform", flagCfg.WaveformPath,
		"Path of the VCD file.")
	f.StringVar(&flagCfg.SQLitePath, "sqlite", flagCfg.SQLitePath,
		"Path of the SQLite database. Empty generates a name.")
	f.BoolVar(&flagCfg.MonitorOn, "monitor", flagCfg.MonitorOn,
		"Serve the progress of the run over HTTP.")
	f.IntVar(&flagCfg.MonitorPort, "monitor-port", flagCfg.MonitorPort,
		"Port of the monitoring server. 0 picks a free port.")
	f.BoolVar(&flagCfg.OpenBrowser, "open-browser", flagCfg.OpenBrowser,
		"Open the monitoring page in a browser.")
	f.IntVar(&flagCfg.CleanupTicks, "cleanup-ticks", flagCfg.CleanupTicks,
		"Clock periods run after the stimulus.")
}

// flagFields copies the value of a flag from the flag targets.
var flagFields = map[string]func(dst *config.Config){
	"max-time":            func(c *config.Config) { c.MaxTime = flagCfg.MaxTime },
	"checkpoint-interval": func(c *config.Config) { c.CheckpointInterval = flagCfg.CheckpointInterval },
	"clock-hz":            func(c *config.Config) { c.Clock = flagCfg.Clock },
	"increment":           func(c *config.Config) { c.Increment = flagCfg.Increment },
	"distance":            func(c *config.Config) { c.EchoDistance = flagCfg.EchoDistance },
	"strict":              func(c *config.Config) { c.Strict = flagCfg.Strict },
	"format":              func(c *config.Config) { c.Format = flagCfg.Format },
	"waveform":            func(c *config.Config) { c.WaveformPath = flagCfg.WaveformPath },
	"sqlite":              func(c *config.Config) { c.SQLitePath = flagCfg.SQLitePath },
	"monitor":             func(c *config.Config) { c.MonitorOn = flagCfg.MonitorOn },
	"monitor-port":        func(c *config.Config) { c.MonitorPort = flagCfg.MonitorPort },
	"open-browser":        func(c *config.Config) { c.OpenBrowser = flagCfg.OpenBrowser },
	"cleanup-ticks":       func(c *config.Config) { c.CleanupTicks = flagCfg.CleanupTicks },
}

// loadConfig layers the changed flags over the file and the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return cfg, err
	}

	for name, copyFlag := range flagFields {
		if cmd.Flags().Changed(name) {
			copyFlag(&cfg)
		}
	}

	return cfg, cfg.Validate()
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sim, err := simulation.MakeBuilderFromConfig(cfg).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}

	result, err := sim.Run(cfg.EchoDistance)
	if terr := sim.Terminate(); err == nil {
		err = terr
	}

	if err != nil {
		return err
	}

	printSummary(cmd, sim, result)

	return nil
}

func printSummary(
	cmd *cobra.Command,
	sim *simulation.Simulation,
	result simulation.Result,
) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Echo distance: %d\n", result.EchoDistance)
	fmt.Fprintf(out, "Simulated time: %d ns (%.3f ms)\n",
		result.SimTime, float64(result.SimTime)/1e6)
	fmt.Fprintf(out, "Clock periods: %d\n", result.Ticks)
	fmt.Fprintf(out, "Wall time: %s\n", result.WallTime)

	for _, r := range result.Reports {
		met := ""
		if !r.Met {
			met = " (ceiling reached)"
		}

		fmt.Fprintf(out, "  %-20s %12d -> %12d ns%s\n",
			r.Stage, r.Start, r.End, met)
	}

	for _, o := range sim.Outputs() {
		fmt.Fprintf(out, "Waveform written to %s\n", o)
	}
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Registered exit handlers run before the process exits.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
