package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/networkteam/pageprobe/runner"
	"github.com/networkteam/pageprobe/scenario"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	JSON          bool
	UpdateGoldens bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario|file|dir]...",
		Short: "Run scenarios",
		Long: `Run builtin scenarios, scenario files or directories of scenario files.

Without arguments all builtin scenarios are run. Scenarios run one after
another, a failing scenario does not stop the others.

Example:
  pageprobe run api-modal inventory-verified
  pageprobe run --base-url http://localhost:3000 ./scenarios
  pageprobe run --json --wait-for-target 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	addRunnerFlags(cmd)
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "write the report as JSON")
	cmd.Flags().BoolVar(&opts.UpdateGoldens, "update-goldens", false, "write golden files instead of comparing them")

	return cmd
}

func runScenarios(opts *RunOptions, refs []string, cmd *cobra.Command) error {
	scenarios, err := loadScenarios(refs)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading scenarios", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Keep stdout parseable when reporting JSON
	prints := cmd.OutOrStdout()
	if opts.JSON {
		prints = cmd.ErrOrStderr()
	}
	runnerOpts := opts.runnerOptions(prints)
	runnerOpts.UpdateGoldens = opts.UpdateGoldens

	results, runErr := opts.Probe.RunSuite(ctx, scenarios, runnerOpts)

	if err := writeReport(cmd.OutOrStdout(), results, opts.JSON); err != nil {
		return WrapExitError(ExitCommandError, "writing report", err)
	}

	if errors.Is(runErr, context.Canceled) {
		return WrapExitError(ExitFailure, "interrupted", runErr)
	}
	failed := lo.CountBy(results, func(r *runner.Result) bool { return r.Failed() })
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", failed, len(scenarios)))
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "run failed", runErr)
	}
	return nil
}

// loadScenarios resolves references to scenarios, all builtins if refs is empty.
func loadScenarios(refs []string) ([]*scenario.Scenario, error) {
	if len(refs) == 0 {
		return scenario.Builtins()
	}

	var scenarios []*scenario.Scenario
	for _, ref := range refs {
		loaded, err := scenario.Load(ref)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, loaded...)
	}
	if dups := lo.FindDuplicatesBy(scenarios, func(sc *scenario.Scenario) string { return sc.Name }); len(dups) > 0 {
		return nil, fmt.Errorf("duplicate scenario name %q", dups[0].Name)
	}
	return scenarios, nil
}

func writeReport(w io.Writer, results []*runner.Result, asJSON bool) error {
	if asJSON {
		return runner.WriteJSON(w, results)
	}
	return runner.WriteText(w, results)
}

// commandContext returns the command's context, e.g. set by tests.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
