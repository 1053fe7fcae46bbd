// Package driver abstracts the browser automation library behind a small
// page interface, so scenarios run unchanged on playwright or chromedp.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrTimeout is returned when a bounded wait exceeds its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrNavigation is returned when a page cannot be loaded.
	ErrNavigation = errors.New("navigation failed")
	// ErrNotFound is returned when an element query matches nothing.
	ErrNotFound = errors.New("element not found")
)

// WaitState is the element state WaitFor waits for.
type WaitState string

const (
	StateVisible  WaitState = "visible"
	StateHidden   WaitState = "hidden"
	StateAttached WaitState = "attached"
	StateDetached WaitState = "detached"
)

// Rect is an element bounding box in CSS pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// ConsoleMessage is a console call or an uncaught exception of a page.
type ConsoleMessage struct {
	// Type is the console method (log, warning, error, ...) or "exception".
	Type string
	Text string
}

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	Headless bool
	// RemoteURL connects to a running browser instead of starting one (chromedp only).
	RemoteURL string
	Logger    *slog.Logger
}

// PageOptions configures a new page.
type PageOptions struct {
	// Viewport is applied when both values are positive.
	Width, Height int
}

// Launcher starts a browser. Every run launches its own browser.
type Launcher func(ctx context.Context, opts LaunchOptions) (Browser, error)

// Browser is a running browser instance.
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	// Close terminates the browser and all of its pages.
	Close() error
}

// Page is one browser tab. All blocking calls honour the deadline of ctx.
type Page interface {
	Goto(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	SetViewport(ctx context.Context, width, height int) error

	// Fill replaces the value of an input element.
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// WaitFor blocks until the first element matching selector reaches state.
	WaitFor(ctx context.Context, selector string, state WaitState) error

	// Evaluate runs a script in the page and returns its JSON compatible result.
	// Promises are awaited.
	Evaluate(ctx context.Context, script string) (any, error)

	InnerText(ctx context.Context, selector string) (string, error)
	InputValue(ctx context.Context, selector string) (string, error)
	BoundingBox(ctx context.Context, selector string) (Rect, error)

	// Screenshot returns PNG bytes of the viewport or the full page.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)

	// OnConsole registers a handler for console messages and exceptions.
	OnConsole(handler func(ConsoleMessage))

	Close() error
}

// TimeoutFrom returns the time left until the deadline of ctx, or fallback if there is none.
func TimeoutFrom(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		return time.Millisecond
	}
	return remaining
}

// ContextError maps a done context to ErrTimeout when its deadline passed.
func ContextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}
