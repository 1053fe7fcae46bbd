package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/networkteam/pageprobe/driver"
	"github.com/networkteam/pageprobe/scenario"
)

// textPollInterval is the tick of text queries and text assertions.
const textPollInterval = 100 * time.Millisecond

// readsValue reports whether print labels the value a step reads. Other
// steps print it as is once they succeeded.
func readsValue(a scenario.Action) bool {
	switch a {
	case scenario.ActionText, scenario.ActionEvaluate, scenario.ActionHook,
		scenario.ActionMeasure, scenario.ActionAssertText:
		return true
	}
	return false
}

func (x *execution) execute(ctx context.Context, index int, step scenario.Step, sr *StepResult) error {
	// Sleeps are fixed delays and only end early on cancellation
	if step.Action == scenario.ActionSleep {
		return sleep(ctx, step.Duration)
	}

	ctx, cancel := context.WithTimeout(ctx, step.EffectiveTimeout(x.sc, x.runner.opts.DefaultTimeout))
	defer cancel()

	page := x.page
	switch step.Action {
	case scenario.ActionNavigate:
		target := x.target
		if step.URL != "" {
			var err error
			target, err = scenario.ResolveTarget(x.runner.opts.BaseURL, x.runner.opts.FileRoot, step.URL)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrNavigation, err)
			}
		}
		return page.Goto(ctx, target)

	case scenario.ActionReload:
		if err := page.Reload(ctx); err != nil {
			return fmt.Errorf("%w: reload: %w", ErrNavigation, err)
		}
		return nil

	case scenario.ActionViewport:
		return page.SetViewport(ctx, step.Width, step.Height)

	case scenario.ActionStorage:
		_, err := page.Evaluate(ctx, storageScript([][2]string{{step.Key, step.Value}}))
		return err

	case scenario.ActionFill:
		selector, err := x.locate(ctx, index, step, driver.StateVisible)
		if err != nil {
			return err
		}
		return page.Fill(ctx, selector, step.Value)

	case scenario.ActionClick:
		selector, err := x.locate(ctx, index, step, driver.StateVisible)
		if err != nil {
			return err
		}
		return page.Click(ctx, selector)

	case scenario.ActionWait:
		state := step.EffectiveState()
		if step.Text == "" && step.HasText == "" {
			return page.WaitFor(ctx, step.Selector, state)
		}
		return x.awaitText(ctx, query(step), state, "")

	case scenario.ActionEvaluate:
		v, err := page.Evaluate(ctx, step.Script)
		if err != nil {
			return err
		}
		x.printValue(sr, step.Print, v)
		return nil

	case scenario.ActionHook:
		script, err := hookScript(x.sc.EffectiveHookNamespace(x.runner.opts.HookNamespace), step.Hook, step.Args)
		if err != nil {
			return err
		}
		v, err := page.Evaluate(ctx, script)
		if err != nil {
			return err
		}
		x.printValue(sr, step.Print, v)
		return nil

	case scenario.ActionText:
		selector, err := x.locate(ctx, index, step, driver.StateAttached)
		if err != nil {
			return err
		}
		text, err := page.InnerText(ctx, selector)
		if err != nil {
			return err
		}
		x.print(sr, labelled(step.Print, text))
		return nil

	case scenario.ActionMeasure:
		selector, err := x.locate(ctx, index, step, driver.StateVisible)
		if err != nil {
			return err
		}
		box, err := page.BoundingBox(ctx, selector)
		if err != nil {
			return err
		}
		label := step.Print
		if label == "" {
			label = step.Selector
		}
		x.print(sr, fmt.Sprintf("%s height: %s", label, formatValue(box.Height)))
		x.print(sr, fmt.Sprintf("%s width: %s", label, formatValue(box.Width)))
		return nil

	case scenario.ActionScreenshot:
		data, err := page.Screenshot(ctx, step.FullPage)
		if err != nil {
			return err
		}
		path, err := x.runner.writeArtifact(step.Path, data)
		if err != nil {
			return err
		}
		sr.Artifact = path
		x.logger.InfoContext(ctx, "Screenshot saved", "path", path)
		return nil

	case scenario.ActionAssert:
		v, err := page.Evaluate(ctx, step.Script)
		if err != nil {
			return err
		}
		if !truthy(v) {
			msg := step.Message
			if msg == "" {
				msg = fmt.Sprintf("%s evaluated to %s", abbreviate(step.Script), formatValue(v))
			}
			return fmt.Errorf("%w: %s", ErrAssertion, msg)
		}
		return nil

	case scenario.ActionAssertText:
		return x.assertText(ctx, index, step, sr)

	case scenario.ActionAssertValue:
		selector, err := x.locate(ctx, index, step, driver.StateAttached)
		if err != nil {
			return err
		}
		value, err := page.InputValue(ctx, selector)
		if err != nil {
			return err
		}
		if step.Equals != nil && value != *step.Equals {
			return assertionError(step, fmt.Sprintf("value of %s is %q, want %q", step.Selector, value, *step.Equals))
		}
		return nil
	}

	return fmt.Errorf("unknown action %q", step.Action)
}

// assertText polls the text of the element until it satisfies the step or
// the deadline passes. Golden comparisons read the text once.
func (x *execution) assertText(ctx context.Context, index int, step scenario.Step, sr *StepResult) error {
	selector, err := x.locate(ctx, index, step, driver.StateAttached)
	if err != nil {
		return err
	}

	if step.Golden != "" {
		text, err := x.page.InnerText(ctx, selector)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if step.Print != "" {
			x.print(sr, labelled(step.Print, text))
		}
		if err := x.runner.compareGolden(step.Golden, text); err != nil {
			if step.Message != "" {
				return fmt.Errorf("%s: %w", step.Message, err)
			}
			return err
		}
		return nil
	}

	ticker := time.NewTicker(textPollInterval)
	defer ticker.Stop()
	var text string
	for {
		t, err := x.page.InnerText(ctx, selector)
		if err != nil {
			if ctx.Err() != nil && text != "" {
				return textMismatch(step, text)
			}
			return err
		}
		text = strings.TrimSpace(t)
		if textMatches(step, text) {
			if step.Print != "" {
				x.print(sr, labelled(step.Print, text))
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return textMismatch(step, text)
		case <-ticker.C:
		}
	}
}

func textMismatch(step scenario.Step, text string) error {
	if step.Equals != nil {
		return assertionError(step, fmt.Sprintf("text of %s is %q, want %q", step.Selector, text, *step.Equals))
	}
	return assertionError(step, fmt.Sprintf("text of %s is %q, want it to contain %q", step.Selector, text, step.Contains))
}

func textMatches(step scenario.Step, text string) bool {
	if step.Equals != nil && text != *step.Equals {
		return false
	}
	return strings.Contains(text, step.Contains)
}

func assertionError(step scenario.Step, detail string) error {
	if step.Message != "" {
		return fmt.Errorf("%w: %s (%s)", ErrAssertion, step.Message, detail)
	}
	return fmt.Errorf("%w: %s", ErrAssertion, detail)
}

// locate returns a selector for the element of a step. Text queries are
// resolved by polling until the element reaches state, then the element is
// tagged and addressed by the tag.
func (x *execution) locate(ctx context.Context, index int, step scenario.Step, state driver.WaitState) (string, error) {
	if step.Text == "" && step.HasText == "" {
		return step.Selector, nil
	}
	tag := fmt.Sprintf("step-%d", index)
	if err := x.awaitText(ctx, query(step), state, tag); err != nil {
		return "", err
	}
	return driver.TargetSelector(tag), nil
}

func query(step scenario.Step) driver.TextQuery {
	if step.Selector == "" {
		return driver.TextQuery{Text: step.Text}
	}
	hasText := step.HasText
	if hasText == "" {
		hasText = step.Text
	}
	return driver.TextQuery{Selector: step.Selector, HasText: hasText}
}

// awaitText polls a text query until it holds or ctx is done. Script errors
// while polling are retried, e.g. while the page is navigating.
func (x *execution) awaitText(ctx context.Context, q driver.TextQuery, state driver.WaitState, tag string) error {
	ticker := time.NewTicker(textPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := x.matchText(ctx, q, state, tag)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			err := fmt.Errorf("waiting for %s to be %s: %w", describeQuery(q), state, driver.ContextError(ctx))
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		case <-ticker.C:
		}
	}
}

func (x *execution) matchText(ctx context.Context, q driver.TextQuery, state driver.WaitState, tag string) (bool, error) {
	if m, ok := x.page.(driver.TextMatcher); ok {
		return m.MatchText(ctx, q, state, tag)
	}
	v, err := x.page.Evaluate(ctx, textQueryScript(q, state, tag))
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func describeQuery(q driver.TextQuery) string {
	if q.Selector != "" {
		return fmt.Sprintf("%s:has-text(%q)", q.Selector, q.HasText)
	}
	return fmt.Sprintf("text=%q", q.Text)
}

func (x *execution) printValue(sr *StepResult, label string, v any) {
	if label == "" {
		return
	}
	if v == nil {
		x.print(sr, label)
		return
	}
	x.print(sr, labelled(label, formatValue(v)))
}

func labelled(label, value string) string {
	if label == "" {
		return value
	}
	return label + " " + value
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func abbreviate(script string) string {
	runes := []rune(strings.Join(strings.Fields(script), " "))
	if len(runes) > 60 {
		return string(runes[:57]) + "..."
	}
	return string(runes)
}
