package runner

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/networkteam/pageprobe/collector"
	"github.com/networkteam/pageprobe/driver"
	"github.com/networkteam/pageprobe/scenario"
)

const debugScreenshotTimeout = 5 * time.Second

// execution is the state of a single run.
type execution struct {
	runner *Runner
	sc     *scenario.Scenario
	result *Result
	target string
	logger *slog.Logger
	page   driver.Page
}

func (x *execution) run(ctx context.Context) error {
	opts := x.runner.opts

	if opts.WaitForTarget > 0 {
		if err := x.runner.checkTarget(ctx, x.target, x.logger); err != nil {
			return newStepError(0, "wait for "+x.target, err)
		}
	}

	launch := opts.Launch
	if launch.Logger == nil {
		launch.Logger = x.logger
	}
	browser, err := opts.Launcher(ctx, launch)
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			x.logger.WarnContext(ctx, "Closing browser failed", "error", err)
		}
	}()

	var pageOpts driver.PageOptions
	if vp := x.sc.Viewport; vp != nil {
		pageOpts.Width, pageOpts.Height = vp.Width, vp.Height
	}
	page, err := browser.NewPage(ctx, pageOpts)
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	x.page = page
	page.OnConsole(func(msg driver.ConsoleMessage) {
		x.console(ctx, msg)
	})

	if err := x.setup(ctx); err != nil {
		if path := x.debugScreenshot(ctx, 0); path != "" {
			x.result.Artifacts = append(x.result.Artifacts, path)
		}
		return err
	}

	for i, step := range x.sc.Steps {
		if err := x.runStep(ctx, i+1, step); err != nil {
			for j := i + 1; j < len(x.sc.Steps); j++ {
				x.result.addStep(StepResult{Index: j + 1, Step: x.sc.Steps[j], Status: StatusSkipped})
			}
			return err
		}
	}
	return nil
}

// setup navigates to the target and seeds localStorage.
func (x *execution) setup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, x.sc.EffectiveTimeout(x.runner.opts.DefaultTimeout))
	defer cancel()

	x.logger.DebugContext(ctx, "Navigating to target", "target", x.target)
	if err := x.page.Goto(ctx, x.target); err != nil {
		return newStepError(0, "navigate "+x.target, err)
	}

	if len(x.sc.InitStorage) == 0 {
		return nil
	}
	entries := make([][2]string, 0, len(x.sc.InitStorage))
	for _, key := range slices.Sorted(maps.Keys(x.sc.InitStorage)) {
		entries = append(entries, [2]string{key, x.sc.InitStorage[key]})
	}
	if _, err := x.page.Evaluate(ctx, storageScript(entries)); err != nil {
		return newStepError(0, "seed storage", err)
	}
	if err := x.page.Reload(ctx); err != nil {
		return newStepError(0, "seed storage", fmt.Errorf("%w: reload: %w", ErrNavigation, err))
	}
	return nil
}

func (x *execution) runStep(ctx context.Context, index int, step scenario.Step) error {
	events := x.runner.opts.Events
	stepCtx := ctx
	if events != nil {
		stepCtx = events.StartEvent(ctx)
	}

	sr := &StepResult{
		Index:  index,
		Step:   step,
		Status: StatusPassed,
		Start:  time.Now(),
	}
	logger := x.logger.With("step", index, "action", step.Action)
	logger.DebugContext(stepCtx, "Running step", "label", step.Label())

	err := x.execute(stepCtx, index, step, sr)
	sr.Duration = time.Since(sr.Start)
	if err == nil && step.Print != "" && !readsValue(step.Action) {
		x.print(sr, step.Print)
	}

	var abort error
	if err != nil {
		stepErr := newStepError(index, step.Label(), err)
		sr.Err = stepErr
		// Cancellation of the run always aborts
		if step.Policy() == scenario.OnErrorWarn && ctx.Err() == nil {
			sr.Status = StatusWarned
			msg := stepErr.Error()
			if step.Message != "" {
				msg = step.Message
			}
			x.print(sr, "warning: "+msg)
			logger.WarnContext(stepCtx, "Step failed, continuing", "error", err)
		} else {
			sr.Status = StatusFailed
			logger.ErrorContext(stepCtx, "Step failed", "error", err)
			sr.Artifact = x.debugScreenshot(ctx, index)
			abort = stepErr
		}
	}

	x.result.addStep(*sr)
	if events != nil {
		events.EndEvent(stepCtx, sr)
	}
	return abort
}

func (x *execution) console(ctx context.Context, msg driver.ConsoleMessage) {
	x.logger.DebugContext(ctx, "Console message", "type", msg.Type, "text", msg.Text)
	if c := x.runner.opts.Console; c != nil {
		c.Collect(ctx, collector.ConsoleEntry{Type: msg.Type, Text: msg.Text})
	}
}

// debugScreenshot captures the page after an aborting failure. It returns
// the artifact path or "" if the capture failed.
func (x *execution) debugScreenshot(ctx context.Context, index int) string {
	if x.page == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), debugScreenshotTimeout)
	defer cancel()

	data, err := x.page.Screenshot(ctx, true)
	if err != nil {
		x.logger.WarnContext(ctx, "Capturing debug screenshot failed", "error", err)
		return ""
	}
	path, err := x.runner.writeArtifact(debugArtifactName(x.sc.Name, index), data)
	if err != nil {
		x.logger.WarnContext(ctx, "Writing debug screenshot failed", "error", err)
		return ""
	}
	x.logger.InfoContext(ctx, "Debug screenshot saved", "path", path)
	return path
}

func (x *execution) print(sr *StepResult, line string) {
	fmt.Fprintln(x.runner.opts.Stdout, line)
	sr.Output = append(sr.Output, line)
}
