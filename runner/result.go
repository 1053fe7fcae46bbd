package runner

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/samber/lo"

	"github.com/networkteam/pageprobe/scenario"
)

// Status is the outcome of a run or step.
type Status string

const (
	StatusPassed Status = "passed"
	// StatusWarned means a step failed under the warn policy and the run continued.
	StatusWarned Status = "warned"
	StatusFailed Status = "failed"
	// StatusSkipped marks steps after an aborting failure.
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one scenario run.
type Result struct {
	ID          uuid.UUID
	Scenario    string
	Description string
	Source      string
	Target      string
	Driver      string

	Status Status
	Steps  []StepResult
	// Artifacts lists every file written, in order.
	Artifacts []string
	// Err is the aborting failure, nil unless Status is StatusFailed.
	Err error

	Start time.Time
	End   time.Time
}

// StepResult is the outcome of one step.
type StepResult struct {
	// Index is 1-based.
	Index  int
	Step   scenario.Step
	Status Status
	Start  time.Time
	// Duration is the time the step took.
	Duration time.Duration
	// Output holds the lines printed by the step.
	Output []string
	// Err is set for failed and warned steps.
	Err error
	// Artifact is the screenshot written by the step, if any.
	Artifact string
}

func (r *Result) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Failed reports whether the run aborted.
func (r *Result) Failed() bool {
	return r.Status == StatusFailed
}

// Step returns the result of the step with the given 1-based index.
func (r *Result) Step(index int) (StepResult, bool) {
	return lo.Find(r.Steps, func(s StepResult) bool { return s.Index == index })
}

// Output returns all printed lines of the run.
func (r *Result) Output() []string {
	return lo.FlatMap(r.Steps, func(s StepResult, _ int) []string { return s.Output })
}

// Size approximates the memory held by the result.
func (r *Result) Size() uint64 {
	size := uint64(200 + len(r.Scenario) + len(r.Description) + len(r.Target))
	for _, s := range r.Steps {
		size += s.Size()
	}
	return size
}

func newResult(id uuid.UUID, sc *scenario.Scenario, target string) *Result {
	return &Result{
		ID:          id,
		Scenario:    sc.Name,
		Description: sc.Description,
		Source:      sc.Source,
		Target:      target,
		Status:      StatusPassed,
		Start:       time.Now(),
	}
}

func (r *Result) addStep(s StepResult) {
	r.Steps = append(r.Steps, s)
	if s.Artifact != "" {
		r.Artifacts = append(r.Artifacts, s.Artifact)
	}
	switch s.Status {
	case StatusFailed:
		r.Status = StatusFailed
	case StatusWarned:
		if r.Status == StatusPassed {
			r.Status = StatusWarned
		}
	}
}

func (r *Result) fail(err error) {
	r.Status = StatusFailed
	r.Err = err
}

func (s *StepResult) Size() uint64 {
	size := uint64(120 + len(s.Step.Script) + len(s.Artifact))
	for _, line := range s.Output {
		size += uint64(len(line))
	}
	return size
}
