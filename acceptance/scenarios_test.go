//go:build acceptance

package acceptance

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/pageprobe/driver"
	"github.com/networkteam/pageprobe/driver/cdpdriver"
	"github.com/networkteam/pageprobe/driver/pwdriver"
	"github.com/networkteam/pageprobe/runner"
	"github.com/networkteam/pageprobe/scenario"
)

func mustParse(t *testing.T, yaml string) *scenario.Scenario {
	t.Helper()
	sc, err := scenario.Parse([]byte(yaml), "inline")
	require.NoError(t, err)
	return sc
}

func TestBuiltins_RunAgainstFixture(t *testing.T) {
	app := NewTestApp(t, pwdriver.Launch, "playwright")
	defer app.Close()

	scenarios, err := scenario.Builtins()
	require.NoError(t, err)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			var out bytes.Buffer
			result, err := app.Run(t, sc, &out)
			require.NoError(t, err, "output:\n%s", out.String())
			assert.NotEqual(t, runner.StatusFailed, result.Status)
			for _, artifact := range result.Artifacts {
				assert.FileExists(t, artifact)
			}
		})
	}
}

func TestStartGame_HidesSetupLayer(t *testing.T) {
	app := NewTestApp(t, pwdriver.Launch, "playwright")
	defer app.Close()

	sc := mustParse(t, `
name: start-game
url: index.html
steps:
  - action: wait
    selector: "#layer-setup"
  - action: fill
    selector: "#api-key-input"
    value: FAKE_KEY_FOR_TESTING
  - action: click
    selector: "#btn-start-game"
  - action: wait
    selector: "#layer-setup"
    state: hidden
    timeout: 5s
`)

	result, err := app.Run(t, sc, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, runner.StatusPassed, result.Status)
	assert.Equal(t, app.AppURL+"/index.html", result.Target)
}

func TestMissingSelector_FailsWithDebugScreenshot(t *testing.T) {
	app := NewTestApp(t, pwdriver.Launch, "playwright")
	defer app.Close()

	sc := mustParse(t, `
name: missing
url: index.html
steps:
  - action: wait
    selector: "#does-not-exist"
    timeout: 500ms
  - action: screenshot
    path: never.png
`)

	result, err := app.Run(t, sc, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrTimeout)
	assert.Equal(t, runner.StatusFailed, result.Status)
	assert.Equal(t, runner.StatusSkipped, result.Steps[1].Status)
	assert.FileExists(t, filepath.Join(app.ArtifactsDir, "debug-missing-1.png"))
	assert.NoFileExists(t, filepath.Join(app.ArtifactsDir, "never.png"))
}

func TestFill_ReadsBackExactValue(t *testing.T) {
	app := NewTestApp(t, pwdriver.Launch, "playwright")
	defer app.Close()

	sc := mustParse(t, `
name: fill
url: index.html
steps:
  - action: fill
    selector: "#api-key-input"
    value: DUMMY_API_KEY_12345
  - action: assert_value
    selector: "#api-key-input"
    equals: DUMMY_API_KEY_12345
`)

	result, err := app.Run(t, sc, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, runner.StatusPassed, result.Status)
}

// scriptTextLauncher launches Chromium through Playwright but hides the
// page's TextMatcher, so text queries run through the in-page script.
func scriptTextLauncher(ctx context.Context, opts driver.LaunchOptions) (driver.Browser, error) {
	b, err := pwdriver.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	return scriptTextBrowser{b}, nil
}

type scriptTextBrowser struct {
	driver.Browser
}

func (b scriptTextBrowser) NewPage(ctx context.Context, opts driver.PageOptions) (driver.Page, error) {
	page, err := b.Browser.NewPage(ctx, opts)
	if err != nil {
		return nil, err
	}
	return struct{ driver.Page }{page}, nil
}

func TestTextQueries(t *testing.T) {
	sc := mustParse(t, `
name: text-queries
url: index.html
steps:
  - action: fill
    selector: "#api-key-input"
    value: TEST_KEY
  - action: click
    selector: button
    has_text: begin
  - action: wait
    text: key ACCEPTED
  - action: wait
    selector: "#layer-setup"
    state: hidden
  - action: wait
    text: this text is nowhere
    state: detached
  - action: click
    text: inventory
  - action: wait
    selector: "#modal-content"
`)

	for name, launcher := range map[string]driver.Launcher{
		"locator": pwdriver.Launch,
		"script":  scriptTextLauncher,
	} {
		t.Run(name, func(t *testing.T) {
			app := NewTestApp(t, launcher, "playwright")
			defer app.Close()

			result, err := app.Run(t, sc, &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, runner.StatusPassed, result.Status)
		})
	}
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return os.Getenv("PAGEPROBE_CHROME_URL") != ""
}

func TestChromedp_RunsFileTarget(t *testing.T) {
	if !chromeAvailable() {
		t.Skip("no Chrome binary found")
	}

	launcher := driver.Launcher(cdpdriver.Launch)
	app := NewTestApp(t, launcher, "chromedp")
	defer app.Close()

	sc, err := scenario.Builtin("game-screen")
	require.NoError(t, err)

	opts := app.RunnerOptions(&bytes.Buffer{})
	opts.Launch.RemoteURL = os.Getenv("PAGEPROBE_CHROME_URL")

	result, err := app.Probe.Run(t.Context(), sc, opts)
	require.NoError(t, err)
	assert.NotEqual(t, runner.StatusFailed, result.Status)
	assert.FileExists(t, filepath.Join(app.ArtifactsDir, "game_screen.png"))
}
