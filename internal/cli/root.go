// Package cli implements the pageprobe command line.
package cli

import (
	"fmt"
	"log/slog"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"github.com/networkteam/pageprobe"
	"github.com/networkteam/pageprobe/collector"
	"github.com/networkteam/pageprobe/driver"
	"github.com/networkteam/pageprobe/internal/config"
)

// RootOptions holds global flags and the state shared by all commands.
type RootOptions struct {
	Verbose    bool
	ConfigFile string

	// Launcher overrides the configured driver (for testing).
	Launcher driver.Launcher

	// Set up before a command runs.
	Config *config.Config
	Logger *slog.Logger
	Probe  *pageprobe.Instance
}

// NewRootCommand creates the root command for the pageprobe CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the CLI with the process arguments and returns the exit code.
func Execute() int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	err := cmd.Execute()
	opts.Close()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return GetExitCode(err)
}

// Close releases the pageprobe instance of the last command.
func (o *RootOptions) Close() {
	if o.Probe != nil {
		o.Probe.Close()
		o.Probe = nil
	}
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pageprobe",
		Short: "pageprobe - browser verification scenarios",
		Long: `Run scripted browser scenarios against a locally served game page.

Each scenario launches its own headless browser, performs its steps in order
with bounded waits, prints what it observes and writes screenshots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default pageprobe.yaml if present)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewFixtureCommand(opts))
	cmd.AddCommand(NewInstallCommand(opts))

	return cmd
}

// setup loads the config and builds the logger. Logs go to stderr and into
// the run they belong to.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	o.Close()

	cfg, err := config.Load(o.ConfigFile, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	o.Config = cfg

	o.Probe = pageprobe.NewWithOptions(pageprobe.Options{
		LogCapacity:        cfg.Dashboard.Capacity * 10,
		ConsoleCapacity:    cfg.Dashboard.Capacity * 10,
		HTTPClientCapacity: cfg.Dashboard.Capacity,
	})

	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slogmulti.Fanout(
		o.Probe.CollectSlogLogs(collector.CollectSlogLogsOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}),
	))
	if cfg.File != "" {
		o.Logger.Debug("Loaded config", "file", cfg.File)
	}
	return nil
}

// addRunnerFlags registers the flags that override runner settings of the config.
func addRunnerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("base-url", "http://localhost:8000", "base URL relative scenario URLs resolve against")
	flags.String("driver", config.DriverPlaywright, fmt.Sprintf("browser driver (%s|%s)", config.DriverPlaywright, config.DriverChromedp))
	flags.Bool("headless", true, "run the browser headless")
	flags.String("chrome-url", "", "remote debugging URL of a running Chrome (chromedp only)")
	flags.String("artifacts-dir", "verification", "directory screenshots are written to")
	flags.String("golden-dir", "testdata/golden", "directory of golden text files")
	flags.Duration("timeout", 5*time.Second, "default bound of each step")
	flags.Duration("wait-for-target", 0, "wait up to this long for the target to become reachable")
	flags.String("hook-namespace", "", "global object test hooks are called on (default __testHooks)")
}
