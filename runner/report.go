package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
)

// WriteText writes a human readable summary of results.
func WriteText(w io.Writer, results []*Result) error {
	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "%s %s (%s)\n", statusSymbol(r.Status), r.Scenario, r.Duration().Round(time.Millisecond))
		for _, s := range r.Steps {
			if s.Err == nil {
				continue
			}
			prefix := "error"
			if s.Status == StatusWarned {
				prefix = "warning"
			}
			for i, line := range strings.Split(s.Err.Error(), "\n") {
				if i == 0 {
					fmt.Fprintf(&sb, "    %s: %s\n", prefix, line)
				} else if line != "" {
					fmt.Fprintf(&sb, "      %s\n", line)
				}
			}
		}
		if r.Err != nil && !lo.ContainsBy(r.Steps, func(s StepResult) bool { return s.Status == StatusFailed }) {
			fmt.Fprintf(&sb, "    error: %s\n", r.Err)
		}
		for _, path := range r.Artifacts {
			if isDebugArtifact(path) {
				fmt.Fprintf(&sb, "    debug screenshot: %s\n", path)
			}
		}
	}

	c := countStatuses(results)
	fmt.Fprintf(&sb, "\n%d %s: %d passed, %d warned, %d failed\n",
		len(results), plural(len(results), "scenario", "scenarios"), c.Passed, c.Warned, c.Failed)

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteJSON writes a machine readable summary of results.
func WriteJSON(w io.Writer, results []*Result) error {
	report := jsonReport{
		Totals:    countStatuses(results),
		Scenarios: lo.Map(results, func(r *Result, _ int) jsonScenario { return toJSONScenario(r) }),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

type jsonReport struct {
	Totals    totals         `json:"totals"`
	Scenarios []jsonScenario `json:"scenarios"`
}

type totals struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

type jsonScenario struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Source     string     `json:"source,omitempty"`
	Target     string     `json:"target"`
	Driver     string     `json:"driver,omitempty"`
	Status     Status     `json:"status"`
	DurationMS int64      `json:"durationMs"`
	Error      string     `json:"error,omitempty"`
	Artifacts  []string   `json:"artifacts"`
	Steps      []jsonStep `json:"steps"`
}

type jsonStep struct {
	Index      int      `json:"index"`
	Action     string   `json:"action"`
	Label      string   `json:"label"`
	Status     Status   `json:"status"`
	DurationMS int64    `json:"durationMs"`
	Output     []string `json:"output,omitempty"`
	Error      string   `json:"error,omitempty"`
	Kind       Kind     `json:"kind,omitempty"`
	Artifact   string   `json:"artifact,omitempty"`
}

func toJSONScenario(r *Result) jsonScenario {
	s := jsonScenario{
		ID:         r.ID.String(),
		Name:       r.Scenario,
		Source:     r.Source,
		Target:     r.Target,
		Driver:     r.Driver,
		Status:     r.Status,
		DurationMS: r.Duration().Milliseconds(),
		Artifacts:  lo.Ternary(r.Artifacts == nil, []string{}, r.Artifacts),
		Steps: lo.Map(r.Steps, func(s StepResult, _ int) jsonStep {
			js := jsonStep{
				Index:      s.Index,
				Action:     string(s.Step.Action),
				Label:      s.Step.Label(),
				Status:     s.Status,
				DurationMS: s.Duration.Milliseconds(),
				Output:     s.Output,
				Artifact:   s.Artifact,
			}
			if s.Err != nil {
				js.Error = s.Err.Error()
				js.Kind = classify(s.Err)
			}
			return js
		}),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}

func countStatuses(results []*Result) totals {
	counts := lo.CountValuesBy(results, func(r *Result) Status { return r.Status })
	return totals{
		Passed: counts[StatusPassed],
		Warned: counts[StatusWarned],
		Failed: counts[StatusFailed],
	}
}

func statusSymbol(s Status) string {
	switch s {
	case StatusPassed:
		return "✓"
	case StatusWarned:
		return "!"
	default:
		return "✗"
	}
}

func isDebugArtifact(path string) bool {
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	return strings.HasPrefix(base, "debug-")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
