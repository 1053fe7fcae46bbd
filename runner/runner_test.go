package runner_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/pageprobe/driver"
	"github.com/networkteam/pageprobe/driver/drivertest"
	"github.com/networkteam/pageprobe/runner"
	"github.com/networkteam/pageprobe/scenario"
)

type fixture struct {
	runner   *runner.Runner
	launcher *drivertest.Launcher
	page     *drivertest.Page
	stdout   *bytes.Buffer
	opts     runner.Options
}

func newFixture(t *testing.T, page *drivertest.Page, modify ...func(*runner.Options)) *fixture {
	t.Helper()

	launcher := drivertest.NewLauncher(page)
	stdout := new(bytes.Buffer)
	opts := runner.DefaultOptions()
	opts.Launcher = launcher.Launch
	opts.Driver = "fake"
	opts.BaseURL = "http://game.test"
	opts.ArtifactsDir = t.TempDir()
	opts.GoldenDir = t.TempDir()
	opts.Stdout = stdout
	for _, m := range modify {
		m(&opts)
	}

	return &fixture{
		runner:   runner.New(opts),
		launcher: launcher,
		page:     page,
		stdout:   stdout,
		opts:     opts,
	}
}

func probe(steps ...scenario.Step) *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "probe",
		Description: "Test probe",
		URL:         "index.html",
		Steps:       steps,
	}
}

func setupPage() *drivertest.Page {
	page := drivertest.NewPage(
		&drivertest.Element{Selector: "#layer-setup", Visible: true},
		&drivertest.Element{Selector: "#api-key-input", Visible: true},
		&drivertest.Element{Selector: "#btn-start-game", Visible: true, Text: "Start"},
		&drivertest.Element{Selector: "#book", Rect: driver.Rect{Width: 1280, Height: 602.5}},
	)
	page.Update("#btn-start-game", func(el *drivertest.Element) {
		el.OnClick = func(p *drivertest.Page) {
			time.AfterFunc(50*time.Millisecond, func() {
				p.Update("#layer-setup", func(el *drivertest.Element) { el.Visible = false })
				p.Update("#book", func(el *drivertest.Element) { el.Visible = true })
			})
		}
	})
	return page
}

func strPtr(s string) *string {
	return &s
}

func TestRun_StartGameHidesSetup(t *testing.T) {
	t.Parallel()

	f := newFixture(t, setupPage())
	sc := probe(
		scenario.Step{Action: scenario.ActionWait, Selector: "#layer-setup", State: scenario.StateVisible},
		scenario.Step{Action: scenario.ActionFill, Selector: "#api-key-input", Value: "FAKE_KEY_FOR_TESTING"},
		scenario.Step{Action: scenario.ActionClick, Selector: "#btn-start-game"},
		scenario.Step{Action: scenario.ActionWait, Selector: "#layer-setup", State: scenario.StateHidden, Timeout: 5 * time.Second},
	)

	result, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	assert.Equal(t, runner.StatusPassed, result.Status)
	assert.Equal(t, "http://game.test/index.html", result.Target)
	assert.Equal(t, []string{"http://game.test/index.html"}, f.page.URLs)
	assert.Equal(t, []string{"#btn-start-game"}, f.page.Clicks)
	assert.Len(t, result.Steps, 4)
	assert.False(t, result.ID.IsNil())

	launches := f.launcher.Launches()
	require.Len(t, launches, 1)
	assert.True(t, launches[0].IsClosed(), "browser must be closed after the run")
}

func TestRun_WaitForMissingSelectorTimesOut(t *testing.T) {
	t.Parallel()

	f := newFixture(t, drivertest.NewPage())
	sc := probe(
		scenario.Step{Action: scenario.ActionWait, Selector: "#missing", Timeout: 200 * time.Millisecond},
		scenario.Step{Action: scenario.ActionScreenshot, Path: "never.png"},
	)

	start := time.Now()
	result, err := f.runner.Run(t.Context(), sc)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 2*time.Second)
	assert.ErrorIs(t, err, runner.ErrTimeout)

	var stepErr *runner.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, runner.KindTimeout, stepErr.Kind)
	assert.Equal(t, 1, stepErr.Step)

	assert.Equal(t, runner.StatusFailed, result.Status)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, runner.StatusFailed, result.Steps[0].Status)
	assert.Equal(t, runner.StatusSkipped, result.Steps[1].Status)

	debugPath := filepath.Join(f.opts.ArtifactsDir, "debug-probe-1.png")
	assert.FileExists(t, debugPath)
	assert.Equal(t, debugPath, result.Steps[0].Artifact)
	assert.NoFileExists(t, filepath.Join(f.opts.ArtifactsDir, "never.png"))

	assert.True(t, f.launcher.Launches()[0].IsClosed(), "browser must be closed after a failure")
}

func TestRun_ScreenshotIsWrittenAndOverwritten(t *testing.T) {
	t.Parallel()

	f := newFixture(t, drivertest.NewPage())
	sc := probe(scenario.Step{Action: scenario.ActionScreenshot, Path: "shots/final.png", FullPage: true})

	path := filepath.Join(f.opts.ArtifactsDir, "shots", "final.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	result, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, drivertest.PNG(), data)
	assert.Equal(t, []string{path}, result.Artifacts)
}

func TestRun_FillReadsBackExactValue(t *testing.T) {
	t.Parallel()

	f := newFixture(t, setupPage())
	sc := probe(
		scenario.Step{Action: scenario.ActionFill, Selector: "#api-key-input", Value: "FAKE_KEY_FOR_TESTING"},
		scenario.Step{Action: scenario.ActionAssertValue, Selector: "#api-key-input", Equals: strPtr("FAKE_KEY_FOR_TESTING")},
	)

	_, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	el, ok := f.page.Get("#api-key-input")
	require.True(t, ok)
	assert.Equal(t, "FAKE_KEY_FOR_TESTING", el.Value)
}

func TestRun_AssertValueMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, setupPage())
	sc := probe(
		scenario.Step{Action: scenario.ActionFill, Selector: "#api-key-input", Value: "typo"},
		scenario.Step{Action: scenario.ActionAssertValue, Selector: "#api-key-input", Equals: strPtr("FAKE_KEY_FOR_TESTING")},
	)

	_, err := f.runner.Run(t.Context(), sc)
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrAssertion)
	assert.Contains(t, err.Error(), `value of #api-key-input is "typo", want "FAKE_KEY_FOR_TESTING"`)
}

func TestRun_WarnPolicyContinues(t *testing.T) {
	t.Parallel()

	f := newFixture(t, drivertest.NewPage())
	sc := probe(
		scenario.Step{Action: scenario.ActionClick, Selector: "#btn-inventory", Timeout: 100 * time.Millisecond, OnError: scenario.OnErrorWarn, Message: "not found"},
		scenario.Step{Action: scenario.ActionScreenshot, Path: "inventory.png"},
	)

	result, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	assert.Equal(t, runner.StatusWarned, result.Status)
	assert.Equal(t, runner.StatusWarned, result.Steps[0].Status)
	assert.ErrorIs(t, result.Steps[0].Err, runner.ErrTimeout)
	assert.Equal(t, "warning: not found\n", f.stdout.String())
	assert.FileExists(t, filepath.Join(f.opts.ArtifactsDir, "inventory.png"))
}

func TestRun_PrintsTextAndMeasurements(t *testing.T) {
	t.Parallel()

	page := setupPage()
	page.Add(&drivertest.Element{Selector: "#story-log", Visible: true, Text: "The mist rises."})
	page.Update("#book", func(el *drivertest.Element) { el.Visible = true })

	f := newFixture(t, page)
	sc := probe(
		scenario.Step{Action: scenario.ActionText, Selector: "#story-log", Print: "Logs found:"},
		scenario.Step{Action: scenario.ActionMeasure, Selector: "#book", Print: "Book"},
		scenario.Step{Action: scenario.ActionSleep, Duration: time.Millisecond, Print: "Waiting..."},
	)

	result, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	expected := []string{
		"Logs found: The mist rises.",
		"Book height: 602.5",
		"Book width: 1280",
		"Waiting...",
	}
	assert.Equal(t, expected, result.Output())
	assert.Equal(t, strings.Join(expected, "\n")+"\n", f.stdout.String())
}

func TestRun_HookCallsNamespacedFunction(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage()
	var script string
	page.EvaluateFunc = func(s string) (any, error) {
		script = s
		return nil, nil
	}

	f := newFixture(t, page)
	sc := probe(scenario.Step{Action: scenario.ActionHook, Hook: "triggerInstinct", Args: []any{"BLOOD_LUST", "Theon"}, Print: "Triggering instinct"})

	_, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	assert.Contains(t, script, `window["__testHooks"]`)
	assert.Contains(t, script, `ns["triggerInstinct"](...["BLOOD_LUST","Theon"])`)
	assert.Equal(t, "Triggering instinct\n", f.stdout.String())
}

func TestRun_HookNamespaceOverride(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage()
	page.EvaluateFunc = func(s string) (any, error) {
		return 3.0, nil
	}

	f := newFixture(t, page, func(o *runner.Options) { o.HookNamespace = "qa" })
	sc := probe(scenario.Step{Action: scenario.ActionHook, Hook: "count", Print: "Count:"})

	result, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	assert.Contains(t, page.Scripts[0], `window["qa"]`)
	assert.Equal(t, []string{"Count: 3"}, result.Output())
}

func TestRun_ClickByText(t *testing.T) {
	t.Parallel()

	var sent bool
	page := drivertest.NewPage(
		&drivertest.Element{Selector: "button", Visible: true, Text: "CANCEL"},
		&drivertest.Element{Selector: "button", Visible: true, Text: "SEND", OnClick: func(*drivertest.Page) { sent = true }},
		&drivertest.Element{Selector: "div", Visible: true, Text: "Tend to Chris"},
	)

	f := newFixture(t, page)
	sc := probe(
		scenario.Step{Action: scenario.ActionClick, Selector: "button", HasText: "SEND"},
		scenario.Step{Action: scenario.ActionClick, Text: "Tend to Chris"},
	)

	_, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	assert.True(t, sent)
	assert.Equal(t, []string{
		driver.TargetSelector("step-1"),
		driver.TargetSelector("step-2"),
	}, f.page.Clicks)
}

func TestRun_WaitForTextToDisappear(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage(&drivertest.Element{Selector: "#status", Visible: true, Text: "Loading"})
	time.AfterFunc(50*time.Millisecond, func() { page.Remove("#status") })

	f := newFixture(t, page)
	sc := probe(scenario.Step{Action: scenario.ActionWait, Text: "Loading", State: scenario.StateDetached, Timeout: 2 * time.Second})

	_, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)
}

func TestRun_AssertTextPollsUntilMatch(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage(&drivertest.Element{Selector: ".chat-msg.ai", Visible: true, Text: "..."})
	time.AfterFunc(150*time.Millisecond, func() {
		page.Update(".chat-msg.ai", func(el *drivertest.Element) { el.Text = " 알겠습니다, 명심하겠습니다. " })
	})

	f := newFixture(t, page)
	sc := probe(scenario.Step{Action: scenario.ActionAssertText, Selector: ".chat-msg.ai", Contains: "명심하겠습니다", Timeout: 2 * time.Second})

	_, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)
}

func TestRun_AssertTextMismatch(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage(&drivertest.Element{Selector: "#chat-mode-title", Visible: true, Text: "CHAT"})

	f := newFixture(t, page)
	sc := probe(scenario.Step{Action: scenario.ActionAssertText, Selector: "#chat-mode-title", Equals: strPtr("🔥 CAMPFIRE TALK"), Timeout: 150 * time.Millisecond})

	_, err := f.runner.Run(t.Context(), sc)
	require.Error(t, err)

	var stepErr *runner.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, runner.KindAssertion, stepErr.Kind)
	assert.Contains(t, err.Error(), `text of #chat-mode-title is "CHAT", want "🔥 CAMPFIRE TALK"`)
}

func TestRun_AssertTextGolden(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage(&drivertest.Element{Selector: "#story-log", Visible: true, Text: "line one\nline two"})
	sc := probe(scenario.Step{Action: scenario.ActionAssertText, Selector: "#story-log", Golden: "story.txt"})

	goldenDir := t.TempDir()
	update := newFixture(t, page, func(o *runner.Options) {
		o.GoldenDir = goldenDir
		o.UpdateGoldens = true
	})
	_, err := update.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(goldenDir, "story.txt"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data))

	page.Update("#story-log", func(el *drivertest.Element) { el.Text = "line one\nline 2" })
	compare := newFixture(t, page, func(o *runner.Options) { o.GoldenDir = goldenDir })
	_, err = compare.runner.Run(t.Context(), sc)
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrAssertion)
	assert.Contains(t, err.Error(), "-line two")
	assert.Contains(t, err.Error(), "+line 2")
}

func TestRun_AssertScript(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage()
	page.EvaluateFunc = func(s string) (any, error) {
		return strings.Contains(s, "< 800"), nil
	}

	f := newFixture(t, page)
	sc := probe(
		scenario.Step{Action: scenario.ActionAssert, Script: "book.height < 800"},
		scenario.Step{Action: scenario.ActionAssert, Script: "log.height > book.height", Message: "Log height should be less than book height"},
	)

	_, err := f.runner.Run(t.Context(), sc)
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrAssertion)
	assert.Equal(t, "step 2 (assert): assertion failed: Log height should be less than book height", err.Error())
}

func TestRun_ScriptErrorIsScriptKind(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage()
	page.EvaluateFunc = func(string) (any, error) {
		return nil, errors.New("ReferenceError: app is not defined")
	}

	f := newFixture(t, page)
	_, err := f.runner.Run(t.Context(), probe(scenario.Step{Action: scenario.ActionEvaluate, Script: "app.setupCombat()"}))

	var stepErr *runner.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, runner.KindScript, stepErr.Kind)
}

func TestRun_InitStorageSeedsAndReloads(t *testing.T) {
	t.Parallel()

	f := newFixture(t, drivertest.NewPage())
	sc := probe(scenario.Step{Action: scenario.ActionStorage, Key: "mode", Value: "rest"})
	sc.InitStorage = map[string]string{"google_api_key": "DUMMY_KEY", "a": "1"}

	_, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	require.Len(t, f.page.Scripts, 2)
	assert.Contains(t, f.page.Scripts[0], `setItem("a", "1");`+"\n"+`  window.localStorage.setItem("google_api_key", "DUMMY_KEY")`)
	assert.Contains(t, f.page.Scripts[1], `setItem("mode", "rest")`)
	assert.Equal(t, 1, f.page.Reloads)
}

func TestRun_NavigationFailure(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage()
	page.GotoFunc = func(string) error { return errors.New("net::ERR_CONNECTION_REFUSED") }

	f := newFixture(t, page)
	result, err := f.runner.Run(t.Context(), probe(scenario.Step{Action: scenario.ActionReload}))
	require.Error(t, err)

	assert.ErrorIs(t, err, runner.ErrNavigation)
	var stepErr *runner.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 0, stepErr.Step)
	assert.Equal(t, runner.KindNavigation, stepErr.Kind)
	assert.Equal(t, runner.StatusFailed, result.Status)
	assert.Empty(t, result.Steps)
	assert.Equal(t, []string{filepath.Join(f.opts.ArtifactsDir, "debug-probe-0.png")}, result.Artifacts)
}

func TestRun_FileTarget(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	f := newFixture(t, drivertest.NewPage(), func(o *runner.Options) { o.FileRoot = root })
	sc := probe(scenario.Step{Action: scenario.ActionReload})
	sc.URL = "file:verification/index_test.html"

	result, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)
	assert.True(t, scenario.IsFileTarget(result.Target))
	assert.True(t, strings.HasSuffix(result.Target, "/verification/index_test.html"))
}

func TestRun_ViewportAppliedToPage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, drivertest.NewPage())
	sc := probe(scenario.Step{Action: scenario.ActionViewport, Width: 390, Height: 844})
	sc.Viewport = &scenario.Viewport{Width: 1280, Height: 720}

	_, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)

	b := f.launcher.Launches()[0]
	assert.Equal(t, []driver.PageOptions{{Width: 1280, Height: 720}}, b.PageOpts)
	assert.Equal(t, [2]int{390, 844}, f.page.Viewport)
}

func TestRun_SleepHonoursCancellation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, drivertest.NewPage())
	sc := probe(scenario.Step{Action: scenario.ActionSleep, Duration: time.Minute, OnError: scenario.OnErrorWarn})

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := f.runner.Run(ctx, sc)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, runner.StatusFailed, result.Status, "cancellation aborts even with the warn policy")
}

func TestRun_LaunchFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, drivertest.NewPage())
	f.launcher.Err = drivertest.ErrBoom

	result, err := f.runner.Run(t.Context(), probe(scenario.Step{Action: scenario.ActionReload}))
	require.Error(t, err)
	assert.ErrorIs(t, err, drivertest.ErrBoom)
	assert.Equal(t, runner.StatusFailed, result.Status)
}

func TestRun_TextQueryByScript(t *testing.T) {
	t.Parallel()

	var (
		scripts []string
		calls   int
	)
	page := drivertest.NewPage()
	page.EvaluateFunc = func(script string) (any, error) {
		scripts = append(scripts, script)
		calls++
		return calls >= 3, nil
	}

	f := newFixture(t, page)
	f.launcher.NewBrowser = func() *drivertest.Browser {
		return &drivertest.Browser{Page: page, ScriptTextQueries: true}
	}

	sc := probe(scenario.Step{Action: scenario.ActionWait, Text: "Key accepted", Timeout: 2 * time.Second})

	result, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusPassed, result.Status)

	require.Len(t, scripts, 3)
	assert.Contains(t, scripts[0], `"text":"Key accepted"`)
	assert.Contains(t, scripts[0], `"visible"`)
	assert.Contains(t, scripts[0], "toLowerCase()")
}

func TestRun_TextQueryReportsLastScriptError(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage()
	page.EvaluateFunc = func(string) (any, error) {
		return nil, errors.New("ReferenceError: app is not defined")
	}

	f := newFixture(t, page)
	f.launcher.NewBrowser = func() *drivertest.Browser {
		return &drivertest.Browser{Page: page, ScriptTextQueries: true}
	}

	sc := probe(scenario.Step{Action: scenario.ActionWait, Text: "Key accepted", Timeout: 200 * time.Millisecond})

	_, err := f.runner.Run(t.Context(), sc)
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrTimeout)
	assert.Contains(t, err.Error(), "last error: ReferenceError: app is not defined")
}

func TestRun_TextMatchIgnoresCaseAndSpacing(t *testing.T) {
	t.Parallel()

	page := drivertest.NewPage(&drivertest.Element{Selector: ".banner", Visible: true, Text: "INSTINCT\n  AWAKENED: Theon"})

	f := newFixture(t, page)
	sc := probe(scenario.Step{Action: scenario.ActionWait, Text: "instinct awakened", Timeout: time.Second})

	_, err := f.runner.Run(t.Context(), sc)
	require.NoError(t, err)
}

func TestRun_DefaultTimeoutOption(t *testing.T) {
	t.Parallel()

	f := newFixture(t, drivertest.NewPage(), func(o *runner.Options) {
		o.DefaultTimeout = 100 * time.Millisecond
	})

	start := time.Now()
	_, err := f.runner.Run(t.Context(), probe(scenario.Step{Action: scenario.ActionWait, Selector: "#missing"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}
