// Package scenario defines browser verification scenarios and loads them from YAML.
package scenario

import (
	"fmt"
	"time"

	"github.com/networkteam/pageprobe/driver"
)

// DefaultTimeout bounds every DOM-dependent step unless a scenario or step overrides it.
const DefaultTimeout = 5 * time.Second

// DefaultHookNamespace is the global object test hooks are looked up on.
const DefaultHookNamespace = "__testHooks"

// Scenario is an ordered list of steps run against one page of a target.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what the scenario verifies.
	Description string `yaml:"description"`

	// URL of the target. It may be relative to the base URL, an absolute
	// http(s) URL or a file: path. Empty means the base URL itself.
	URL string `yaml:"url,omitempty"`

	// Viewport is applied before the first navigation.
	Viewport *Viewport `yaml:"viewport,omitempty"`

	// Timeout is the default bound for each step.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// HookNamespace overrides DefaultHookNamespace for hook steps.
	HookNamespace string `yaml:"hook_namespace,omitempty"`

	// InitStorage seeds localStorage. The page is loaded, the entries are set
	// and the page is reloaded before the first step.
	InitStorage map[string]string `yaml:"init_storage,omitempty"`

	Steps []Step `yaml:"steps"`

	// Source is the file the scenario was loaded from, or "builtin:<name>".
	Source string `yaml:"-"`
}

// Viewport is a browser viewport size in CSS pixels.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Action is the kind of a step.
type Action string

const (
	ActionNavigate    Action = "navigate"
	ActionReload      Action = "reload"
	ActionViewport    Action = "viewport"
	ActionStorage     Action = "storage"
	ActionFill        Action = "fill"
	ActionClick       Action = "click"
	ActionWait        Action = "wait"
	ActionEvaluate    Action = "evaluate"
	ActionHook        Action = "hook"
	ActionSleep       Action = "sleep"
	ActionText        Action = "text"
	ActionMeasure     Action = "measure"
	ActionScreenshot  Action = "screenshot"
	ActionAssert      Action = "assert"
	ActionAssertText  Action = "assert_text"
	ActionAssertValue Action = "assert_value"
)

// Actions lists all known actions in documentation order.
var Actions = []Action{
	ActionNavigate, ActionReload, ActionViewport, ActionStorage,
	ActionFill, ActionClick, ActionWait, ActionEvaluate, ActionHook,
	ActionSleep, ActionText, ActionMeasure, ActionScreenshot,
	ActionAssert, ActionAssertText, ActionAssertValue,
}

// WaitState is the element state a wait step waits for.
type WaitState = driver.WaitState

const (
	StateVisible  = driver.StateVisible
	StateHidden   = driver.StateHidden
	StateAttached = driver.StateAttached
	StateDetached = driver.StateDetached
)

// ErrorPolicy decides what happens when a step fails.
type ErrorPolicy string

const (
	// OnErrorFail aborts the run (default).
	OnErrorFail ErrorPolicy = "fail"
	// OnErrorWarn prints a warning and continues with the next step.
	OnErrorWarn ErrorPolicy = "warn"
)

// Step is a single interaction. Which fields apply depends on Action.
type Step struct {
	Action Action `yaml:"action"`

	// Name is an optional label used in reports and artifact names.
	Name string `yaml:"name,omitempty"`

	Selector string `yaml:"selector,omitempty"`
	// Text addresses the smallest visible element whose text contains it.
	Text string `yaml:"text,omitempty"`
	// HasText narrows Selector to elements containing the text.
	HasText string `yaml:"has_text,omitempty"`

	Value string    `yaml:"value,omitempty"`
	State WaitState `yaml:"state,omitempty"`

	Script string `yaml:"script,omitempty"`
	Hook   string `yaml:"hook,omitempty"`
	Args   []any  `yaml:"args,omitempty"`

	Path     string `yaml:"path,omitempty"`
	FullPage bool   `yaml:"full_page,omitempty"`

	Duration time.Duration `yaml:"duration,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`

	OnError ErrorPolicy `yaml:"on_error,omitempty"`

	Equals   *string `yaml:"equals,omitempty"`
	Contains string  `yaml:"contains,omitempty"`
	Golden   string  `yaml:"golden,omitempty"`

	// Print is written to stdout when the step succeeds. Steps that read a
	// value (text, evaluate, hook, measure, assert_text) use it as a label.
	Print string `yaml:"print,omitempty"`

	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`

	URL string `yaml:"url,omitempty"`
	Key string `yaml:"key,omitempty"`

	// Message replaces the failure text of assert steps and warn policies.
	Message string `yaml:"message,omitempty"`
}

// Label returns a short human readable description of the step.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	switch {
	case s.Selector != "" && s.HasText != "":
		return fmt.Sprintf("%s %s:has-text(%q)", s.Action, s.Selector, s.HasText)
	case s.Selector != "":
		return fmt.Sprintf("%s %s", s.Action, s.Selector)
	case s.Text != "":
		return fmt.Sprintf("%s text=%s", s.Action, s.Text)
	case s.Hook != "":
		return fmt.Sprintf("%s %s", s.Action, s.Hook)
	case s.Path != "":
		return fmt.Sprintf("%s %s", s.Action, s.Path)
	case s.Key != "":
		return fmt.Sprintf("%s %s", s.Action, s.Key)
	case s.Duration > 0:
		return fmt.Sprintf("%s %s", s.Action, s.Duration)
	default:
		return string(s.Action)
	}
}

// EffectiveState returns the state a wait step waits for.
func (s Step) EffectiveState() WaitState {
	if s.State == "" {
		return StateVisible
	}
	return s.State
}

// Policy returns the effective error policy.
func (s Step) Policy() ErrorPolicy {
	if s.OnError == "" {
		return OnErrorFail
	}
	return s.OnError
}

// EffectiveTimeout returns the step timeout, falling back to the scenario
// timeout and then to fallback. A zero fallback means DefaultTimeout.
func (s Step) EffectiveTimeout(sc *Scenario, fallback time.Duration) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return sc.EffectiveTimeout(fallback)
}

// EffectiveTimeout returns the scenario timeout, falling back to fallback.
// A zero fallback means DefaultTimeout.
func (sc *Scenario) EffectiveTimeout(fallback time.Duration) time.Duration {
	if sc.Timeout > 0 {
		return sc.Timeout
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTimeout
}

// EffectiveHookNamespace returns the hook namespace, falling back to
// fallback. An empty fallback means DefaultHookNamespace.
func (sc *Scenario) EffectiveHookNamespace(fallback string) string {
	if sc.HookNamespace != "" {
		return sc.HookNamespace
	}
	if fallback != "" {
		return fallback
	}
	return DefaultHookNamespace
}
