package runner_test

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/pageprobe/runner"
	"github.com/networkteam/pageprobe/scenario"
)

func reportResults() []*runner.Result {
	start := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	warnErr := &runner.StepError{
		Kind:  runner.KindTimeout,
		Step:  2,
		Label: `click button:has-text("SEND")`,
		Err:   fmt.Errorf("%w", runner.ErrTimeout),
	}
	failErr := &runner.StepError{
		Kind:  runner.KindAssertion,
		Step:  1,
		Label: "assert_text #modal-content h3",
		Err:   fmt.Errorf("%w: %s", runner.ErrAssertion, `text of #modal-content h3 is "Inventory", want "API Key"`),
	}

	return []*runner.Result{
		{
			ID:        uuid.Must(uuid.FromString("01927c4e-0000-7000-8000-000000000001")),
			Scenario:  "narrative-flow",
			Source:    "builtin:narrative-flow",
			Target:    "http://localhost:8000/index.html",
			Driver:    "playwright",
			Status:    runner.StatusPassed,
			Artifacts: []string{"verification/verification_flow.png"},
			Start:     start,
			End:       start.Add(3200 * time.Millisecond),
			Steps: []runner.StepResult{
				{
					Index:    1,
					Step:     scenario.Step{Action: scenario.ActionText, Selector: "#story-log", Print: "Logs found:"},
					Status:   runner.StatusPassed,
					Duration: 12 * time.Millisecond,
					Output:   []string{"Logs found: Welcome"},
				},
				{
					Index:    2,
					Step:     scenario.Step{Action: scenario.ActionScreenshot, Path: "verification_flow.png"},
					Status:   runner.StatusPassed,
					Duration: 150 * time.Millisecond,
					Artifact: "verification/verification_flow.png",
				},
			},
		},
		{
			ID:       uuid.Must(uuid.FromString("01927c4e-0000-7000-8000-000000000002")),
			Scenario: "chat-overlay",
			Source:   "builtin:chat-overlay",
			Target:   "http://localhost:8000/",
			Driver:   "playwright",
			Status:   runner.StatusWarned,
			Start:    start,
			End:      start.Add(2100 * time.Millisecond),
			Steps: []runner.StepResult{
				{
					Index:    1,
					Step:     scenario.Step{Action: scenario.ActionHook, Name: "open rest chat", Hook: "openChat"},
					Status:   runner.StatusPassed,
					Duration: 30 * time.Millisecond,
					Output:   []string{"Opening Chat..."},
				},
				{
					Index:    2,
					Step:     scenario.Step{Action: scenario.ActionClick, Selector: "button", HasText: "SEND"},
					Status:   runner.StatusWarned,
					Duration: 5 * time.Second,
					Output:   []string{"warning: " + warnErr.Error()},
					Err:      warnErr,
				},
			},
		},
		{
			ID:        uuid.Must(uuid.FromString("01927c4e-0000-7000-8000-000000000003")),
			Scenario:  "api-modal",
			Source:    "builtin:api-modal",
			Target:    "http://localhost:8000/index.html",
			Driver:    "playwright",
			Status:    runner.StatusFailed,
			Err:       failErr,
			Artifacts: []string{"verification/debug-api-modal-1.png"},
			Start:     start,
			End:       start.Add(5004 * time.Millisecond),
			Steps: []runner.StepResult{
				{
					Index:    1,
					Step:     scenario.Step{Action: scenario.ActionAssertText, Selector: "#modal-content h3", Contains: "API Key"},
					Status:   runner.StatusFailed,
					Duration: 5 * time.Second,
					Err:      failErr,
					Artifact: "verification/debug-api-modal-1.png",
				},
				{
					Index:  2,
					Step:   scenario.Step{Action: scenario.ActionScreenshot, Path: "modal.png"},
					Status: runner.StatusSkipped,
				},
			},
		},
	}
}

func TestWriteText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, runner.WriteText(&buf, reportResults()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report_text", buf.Bytes())
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, runner.WriteJSON(&buf, reportResults()))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report_json", buf.Bytes())
}

func TestWriteText_SingleScenario(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, runner.WriteText(&buf, reportResults()[:1]))
	require.Equal(t, "✓ narrative-flow (3.2s)\n\n1 scenario: 1 passed, 0 warned, 0 failed\n", buf.String())
}
