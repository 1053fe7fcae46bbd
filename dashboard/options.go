package dashboard

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultStorageCapacity is the number of runs kept per viewer.
	DefaultStorageCapacity uint64 = 100
	// DefaultSessionIdleTimeout is how long a viewer's runs are kept without activity.
	DefaultSessionIdleTimeout = 5 * time.Minute
)

// TriggerFunc starts a run of the named scenario. ctx carries the suite ID of
// the viewer and is not canceled when the request ends.
type TriggerFunc func(ctx context.Context, scenario string) error

// handlerOptions holds configuration for a dashboard Handler.
// This is unexported; use HandlerOption functions to configure.
type handlerOptions struct {
	// PathPrefix is where the handler is mounted (e.g. "/_pageprobe").
	PathPrefix string
	// TruncateAfter limits the number of runs shown in the run list.
	TruncateAfter uint64
	// StorageCapacity is the number of runs per viewer storage.
	StorageCapacity uint64
	// SessionIdleTimeout is how long to wait after SSE disconnect before cleanup.
	SessionIdleTimeout time.Duration
	// MaxSessions is the maximum number of concurrent sessions (0 = unlimited).
	MaxSessions int

	// Trigger and Scenarios enable starting runs from the dashboard.
	Trigger   TriggerFunc
	Scenarios []string

	Logger *slog.Logger
}

// HandlerOption configures a dashboard Handler.
type HandlerOption func(*handlerOptions)

// WithPathPrefix sets the path prefix where the handler is mounted.
// For example, "/_pageprobe" if mounted at that path.
// This is used for generating correct URLs in the dashboard.
func WithPathPrefix(prefix string) HandlerOption {
	return func(o *handlerOptions) {
		o.PathPrefix = prefix
	}
}

// WithStorageCapacity sets the number of runs per viewer storage.
// Default is DefaultStorageCapacity.
func WithStorageCapacity(capacity uint64) HandlerOption {
	return func(o *handlerOptions) {
		o.StorageCapacity = capacity
	}
}

// WithSessionIdleTimeout sets how long to wait after SSE disconnect before cleanup.
// Default is DefaultSessionIdleTimeout.
func WithSessionIdleTimeout(timeout time.Duration) HandlerOption {
	return func(o *handlerOptions) {
		o.SessionIdleTimeout = timeout
	}
}

// WithTruncateAfter limits the number of runs shown in the run list.
// Default uses StorageCapacity if not specified.
func WithTruncateAfter(limit uint64) HandlerOption {
	return func(o *handlerOptions) {
		o.TruncateAfter = limit
	}
}

// WithMaxSessions sets the maximum number of concurrent sessions.
// Default is 0 (unlimited).
func WithMaxSessions(limit int) HandlerOption {
	return func(o *handlerOptions) {
		o.MaxSessions = limit
	}
}

// WithTrigger allows viewers to start runs of the given scenarios.
func WithTrigger(trigger TriggerFunc, scenarios []string) HandlerOption {
	return func(o *handlerOptions) {
		o.Trigger = trigger
		o.Scenarios = scenarios
	}
}

// WithLogger sets the logger for session and trigger messages.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(o *handlerOptions) {
		o.Logger = logger
	}
}
