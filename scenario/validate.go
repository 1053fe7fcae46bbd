package scenario

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"slices"
)

var hookNamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Validate checks required fields and per-action constraints.
// All problems are reported at once.
func Validate(sc *Scenario) error {
	var errs []error

	if sc.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if sc.Description == "" {
		errs = append(errs, errors.New("description is required"))
	}
	if len(sc.Steps) == 0 {
		errs = append(errs, errors.New("steps list is required and must be non-empty"))
	}
	if sc.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if sc.Viewport != nil && (sc.Viewport.Width <= 0 || sc.Viewport.Height <= 0) {
		errs = append(errs, errors.New("viewport width and height must be positive"))
	}
	if sc.HookNamespace != "" && !hookNamePattern.MatchString(sc.HookNamespace) {
		errs = append(errs, fmt.Errorf("hook_namespace %q is not a valid identifier", sc.HookNamespace))
	}
	if sc.URL != "" {
		if _, err := url.Parse(sc.URL); err != nil {
			errs = append(errs, fmt.Errorf("url: %w", err))
		}
	}

	for i, step := range sc.Steps {
		if err := validateStep(step); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, step.Label(), err))
		}
	}

	return errors.Join(errs...)
}

func validateStep(s Step) error {
	var errs []error
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch s.Action {
	case ActionNavigate, ActionReload:
	case ActionViewport:
		require(s.Width > 0 && s.Height > 0, "width and height must be positive")
	case ActionStorage:
		require(s.Key != "", "key is required")
	case ActionFill:
		require(s.Selector != "", "selector is required")
	case ActionClick:
		require(s.Selector != "" || s.Text != "", "selector or text is required")
	case ActionWait:
		require(s.Selector != "" || s.Text != "", "selector or text is required")
		require(s.State == "" || slices.Contains([]WaitState{StateVisible, StateHidden, StateAttached, StateDetached}, s.State),
			fmt.Sprintf("unknown state %q", s.State))
	case ActionEvaluate, ActionAssert:
		require(s.Script != "", "script is required")
	case ActionHook:
		require(hookNamePattern.MatchString(s.Hook), "hook must be a valid identifier")
	case ActionSleep:
		require(s.Duration > 0, "duration must be positive")
	case ActionText, ActionMeasure, ActionAssertValue:
		require(s.Selector != "", "selector is required")
		if s.Action == ActionAssertValue {
			require(s.Equals != nil, "equals is required")
		}
	case ActionAssertText:
		require(s.Selector != "", "selector is required")
		require(s.Equals != nil || s.Contains != "" || s.Golden != "", "one of equals, contains or golden is required")
	case ActionScreenshot:
		require(s.Path != "", "path is required")
		require(!filepath.IsAbs(s.Path), "path must be relative to the artifacts directory")
		require(filepath.IsLocal(filepath.FromSlash(s.Path)), "path must not leave the artifacts directory")
	case "":
		require(false, "action is required")
	default:
		require(false, fmt.Sprintf("unknown action %q", s.Action))
	}

	if s.HasText != "" && s.Selector == "" {
		errs = append(errs, errors.New("has_text requires a selector"))
	}
	if s.Selector != "" && s.Text != "" {
		errs = append(errs, errors.New("selector and text are mutually exclusive"))
	}
	if s.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if s.OnError != "" && s.OnError != OnErrorFail && s.OnError != OnErrorWarn {
		errs = append(errs, fmt.Errorf("on_error must be %q or %q", OnErrorFail, OnErrorWarn))
	}
	if s.Golden != "" && !filepath.IsLocal(filepath.FromSlash(s.Golden)) {
		errs = append(errs, errors.New("golden must be a relative path inside the golden directory"))
	}

	return errors.Join(errs...)
}
