//go:build acceptance

package acceptance

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/networkteam/pageprobe"
	"github.com/networkteam/pageprobe/collector"
	"github.com/networkteam/pageprobe/dashboard"
	"github.com/networkteam/pageprobe/driver"
	"github.com/networkteam/pageprobe/fixture"
	"github.com/networkteam/pageprobe/runner"
	"github.com/networkteam/pageprobe/scenario"
)

// TestApp serves the fixture game and the pageprobe dashboard from one server.
type TestApp struct {
	Server       *httptest.Server
	AppURL       string
	DashboardURL string
	// FileRoot holds the fixture files for file: targets.
	FileRoot     string
	ArtifactsDir string
	Probe        *pageprobe.Instance
	Logger       *slog.Logger

	launcher   driver.Launcher
	driverName string
}

// NewTestApp creates a test application whose runs use the given driver.
func NewTestApp(t *testing.T, launcher driver.Launcher, driverName string) *TestApp {
	t.Helper()

	probe := pageprobe.NewWithOptions(pageprobe.Options{
		LogCapacity:        100,
		ConsoleCapacity:    100,
		HTTPClientCapacity: 100,
	})

	logger := slog.New(probe.CollectSlogLogs(collector.CollectSlogLogsOptions{
		Level: slog.LevelDebug,
	}))

	fileRoot := t.TempDir()
	require.NoError(t, fixture.Dir(fileRoot))

	app := &TestApp{
		FileRoot:     fileRoot,
		ArtifactsDir: t.TempDir(),
		Probe:        probe,
		Logger:       logger,
		launcher:     launcher,
		driverName:   driverName,
	}

	trigger := func(ctx context.Context, name string) error {
		sc, err := scenario.Builtin(name)
		if err != nil {
			return err
		}
		_, err = probe.Run(ctx, sc, app.RunnerOptions(io.Discard))
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", fixture.Handler())
	mux.Handle("/_pageprobe/", http.StripPrefix("/_pageprobe", probe.DashboardHandler("/_pageprobe",
		dashboard.WithTrigger(trigger, scenario.List()),
		dashboard.WithLogger(logger),
	)))

	app.Server = httptest.NewServer(mux)
	app.AppURL = app.Server.URL
	app.DashboardURL = app.Server.URL + "/_pageprobe/"

	return app
}

// RunnerOptions returns options running against the fixture with the app's driver.
func (ta *TestApp) RunnerOptions(stdout io.Writer) runner.Options {
	opts := runner.DefaultOptions()
	opts.Launcher = ta.launcher
	opts.Driver = ta.driverName
	opts.Launch.Headless = headless()
	opts.Launch.Logger = ta.Logger
	opts.BaseURL = ta.AppURL
	opts.FileRoot = ta.FileRoot
	opts.ArtifactsDir = ta.ArtifactsDir
	opts.Stdout = stdout
	opts.Logger = ta.Logger
	return opts
}

// Run runs a scenario against the fixture.
func (ta *TestApp) Run(t *testing.T, sc *scenario.Scenario, stdout io.Writer) (*runner.Result, error) {
	t.Helper()
	return ta.Probe.Run(t.Context(), sc, ta.RunnerOptions(stdout))
}

// Close shuts down the test application and releases resources.
func (ta *TestApp) Close() {
	ta.Probe.Close()
	ta.Server.Close()
}
