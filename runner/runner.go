// Package runner executes scenarios against a browser page.
//
// Every run launches its own browser, opens one page, navigates to the
// target and executes the steps strictly in order. Each DOM dependent step
// is bounded by its timeout. The browser is closed when the run ends,
// whether it passed or not.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/uuid"

	"github.com/networkteam/pageprobe/collector"
	"github.com/networkteam/pageprobe/driver"
	"github.com/networkteam/pageprobe/scenario"
)

// Options configures a Runner.
type Options struct {
	// Launcher starts the browser for each run. Required.
	Launcher driver.Launcher
	// Launch is passed to Launcher.
	Launch driver.LaunchOptions
	// Driver names the driver in results.
	Driver string

	// BaseURL resolves relative scenario URLs.
	BaseURL string
	// FileRoot resolves relative file: targets. Empty means the working directory.
	FileRoot string

	// ArtifactsDir receives screenshots. It is created on demand.
	ArtifactsDir string
	// GoldenDir holds golden files of assert_text steps.
	GoldenDir string
	// UpdateGoldens writes golden files instead of comparing them.
	UpdateGoldens bool

	// DefaultTimeout applies to scenarios without their own timeout.
	// Zero means scenario.DefaultTimeout.
	DefaultTimeout time.Duration
	// HookNamespace applies to scenarios without their own namespace.
	HookNamespace string
	// WaitForTarget polls the target until it is reachable before launching
	// the browser. Zero disables the check.
	WaitForTarget time.Duration

	// Stdout receives diagnostic prints, one line each.
	Stdout io.Writer
	Logger *slog.Logger

	// Events groups each run as a top-level event. Optional.
	Events *collector.EventAggregator
	// Console collects console messages of the page. Optional.
	Console *collector.ConsoleCollector
	// HTTPClient records requests of the target check. Optional.
	HTTPClient *collector.HTTPClientCollector
}

// DefaultOptions returns options for a local development server.
func DefaultOptions() Options {
	return Options{
		Launch: driver.LaunchOptions{
			Headless: true,
		},
		BaseURL:      "http://localhost:8000",
		ArtifactsDir: "verification",
		GoldenDir:    "testdata/golden",
		Stdout:       os.Stdout,
	}
}

// Runner runs scenarios. Runs do not share state, but a Runner does not
// serialize them; callers must not run scenarios in parallel on one Runner.
type Runner struct {
	opts Options
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{opts: opts}
}

// Run executes a scenario. The result is returned for every run that got
// past target resolution. The error is the aborting failure, a *StepError
// for failed steps.
func (r *Runner) Run(ctx context.Context, sc *scenario.Scenario) (*Result, error) {
	if r.opts.Launcher == nil {
		return nil, fmt.Errorf("runner: no launcher configured")
	}

	target, err := scenario.ResolveTarget(r.opts.BaseURL, r.opts.FileRoot, sc.URL)
	if err != nil {
		return nil, fmt.Errorf("resolving target of %s: %w", sc.Name, err)
	}

	if r.opts.Events != nil {
		ctx = r.opts.Events.StartEvent(ctx)
	}
	id, ok := collector.EventIDFromContext(ctx)
	if !ok {
		id = uuid.Must(uuid.NewV7())
	}

	result := newResult(id, sc, target)
	result.Driver = r.opts.Driver

	x := &execution{
		runner: r,
		sc:     sc,
		result: result,
		target: target,
		logger: r.opts.Logger.With("scenario", sc.Name, "run", id),
	}

	err = x.run(ctx)
	if err != nil {
		result.fail(err)
	}
	result.End = time.Now()

	if result.Failed() {
		x.logger.ErrorContext(ctx, "Scenario failed", "error", err, "duration", result.Duration())
	} else {
		x.logger.InfoContext(ctx, "Scenario finished", "status", result.Status, "duration", result.Duration())
	}

	if r.opts.Events != nil {
		r.opts.Events.EndEvent(ctx, result)
	}

	return result, err
}

