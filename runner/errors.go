package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/networkteam/pageprobe/driver"
)

var (
	// ErrNavigation marks failures to load a target.
	ErrNavigation = driver.ErrNavigation
	// ErrTimeout marks bounded waits that exceeded their deadline.
	ErrTimeout = driver.ErrTimeout
	// ErrAssertion marks assert steps whose condition did not hold.
	ErrAssertion = errors.New("assertion failed")
)

// Kind classifies a step failure.
type Kind string

const (
	KindNavigation Kind = "navigation"
	KindTimeout    Kind = "timeout"
	KindAssertion  Kind = "assertion"
	// KindScript covers everything else, e.g. exceptions thrown by page scripts.
	KindScript Kind = "script"
)

// StepError is the failure of a single step. Step is 1-based, 0 is the
// setup of the run (launch, seeding and the initial navigation).
type StepError struct {
	Kind  Kind
	Step  int
	Label string
	Err   error
}

func (e *StepError) Error() string {
	if e.Step == 0 {
		return fmt.Sprintf("setup (%s): %v", e.Label, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Label, e.Err)
}

// Unwrap exposes the sentinel of the kind next to the cause.
func (e *StepError) Unwrap() []error {
	switch e.Kind {
	case KindNavigation:
		return []error{ErrNavigation, e.Err}
	case KindTimeout:
		return []error{ErrTimeout, e.Err}
	case KindAssertion:
		return []error{ErrAssertion, e.Err}
	default:
		return []error{e.Err}
	}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrAssertion):
		return KindAssertion
	case errors.Is(err, ErrNavigation):
		return KindNavigation
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindScript
	}
}

func newStepError(step int, label string, err error) *StepError {
	return &StepError{
		Kind:  classify(err),
		Step:  step,
		Label: label,
		Err:   err,
	}
}
