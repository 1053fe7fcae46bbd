// Package pageprobe runs browser verification scenarios against a locally
// served game page and keeps the results for inspection in a dashboard.
package pageprobe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gofrs/uuid"

	"github.com/networkteam/pageprobe/collector"
	"github.com/networkteam/pageprobe/dashboard"
	"github.com/networkteam/pageprobe/runner"
	"github.com/networkteam/pageprobe/scenario"
)

type Instance struct {
	logCollector        *collector.LogCollector
	consoleCollector    *collector.ConsoleCollector
	httpClientCollector *collector.HTTPClientCollector
	eventAggregator     *collector.EventAggregator

	// runMu serializes runs, scenarios never run in parallel in-process.
	runMu sync.Mutex

	dashboardHandler *dashboard.Handler
}

func (i *Instance) Close() {
	i.logCollector.Close()
	if i.dashboardHandler != nil {
		i.dashboardHandler.Close()
	}
	i.eventAggregator.Close()
}

// Capacities used for zero values in Options.
const (
	DefaultLogCapacity        = 1000
	DefaultConsoleCapacity    = 1000
	DefaultHTTPClientCapacity = 100
)

type Options struct {
	// LogCapacity is the maximum number of log records to keep.
	// Default: DefaultLogCapacity
	LogCapacity uint64
	// LogOptions are the options for the log collector.
	// Default: nil, will use collector.DefaultLogOptions()
	LogOptions *collector.LogOptions

	// ConsoleCapacity is the maximum number of page console entries to keep.
	// Default: DefaultConsoleCapacity
	ConsoleCapacity uint64

	// HTTPClientCapacity is the maximum number of target check requests to keep.
	// Default: DefaultHTTPClientCapacity
	HTTPClientCapacity uint64
}

// New creates a new pageprobe instance with default options.
func New() *Instance {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a new pageprobe instance with the specified options.
// Zero capacities fall back to their defaults.
//
// Runs are only kept by storages registered with the aggregator, e.g. by a
// dashboard viewer. Runs nobody watches are reported and dropped.
func NewWithOptions(options Options) *Instance {
	if options.LogCapacity == 0 {
		options.LogCapacity = DefaultLogCapacity
	}
	if options.ConsoleCapacity == 0 {
		options.ConsoleCapacity = DefaultConsoleCapacity
	}
	if options.HTTPClientCapacity == 0 {
		options.HTTPClientCapacity = DefaultHTTPClientCapacity
	}

	eventAggregator := collector.NewEventAggregator()

	logOptions := collector.DefaultLogOptions()
	if options.LogOptions != nil {
		logOptions = *options.LogOptions
	}
	logOptions.EventAggregator = eventAggregator

	return &Instance{
		logCollector:     collector.NewLogCollectorWithOptions(options.LogCapacity, logOptions),
		consoleCollector: collector.NewConsoleCollector(options.ConsoleCapacity, eventAggregator),
		httpClientCollector: collector.NewHTTPClientCollectorWithOptions(options.HTTPClientCapacity, collector.HTTPClientOptions{
			EventAggregator: eventAggregator,
		}),
		eventAggregator: eventAggregator,
	}
}

// Run executes one scenario. Runs are serialized: a call blocks while
// another run of the instance is in progress.
func (i *Instance) Run(ctx context.Context, sc *scenario.Scenario, opts runner.Options) (*runner.Result, error) {
	i.runMu.Lock()
	defer i.runMu.Unlock()

	return runner.New(i.collectRuns(opts)).Run(ctx, sc)
}

// RunSuite executes scenarios one after another as one suite. A failing
// scenario does not stop the suite, a canceled ctx does.
// The returned error joins the errors of all failed runs.
func (i *Instance) RunSuite(ctx context.Context, scenarios []*scenario.Scenario, opts runner.Options) ([]*runner.Result, error) {
	ctx = collector.WithSuiteIDs(ctx, uuid.Must(uuid.NewV7()))

	var (
		results []*runner.Result
		errs    []error
	)
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := i.Run(ctx, sc, opts)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("scenario %s: %w", sc.Name, err))
		}
	}

	return results, errors.Join(errs...)
}

func (i *Instance) collectRuns(opts runner.Options) runner.Options {
	opts.Events = i.eventAggregator
	opts.Console = i.consoleCollector
	opts.HTTPClient = i.httpClientCollector
	return opts
}

// CollectSlogLogs returns a slog.Handler that collects logs into pageprobe.
// Records logged during a run are attached to the run.
//
// You can use this handler with slog.New(slogmulti.Fanout(...)) to collect logs in addition to another slog handler.
func (i *Instance) CollectSlogLogs(options collector.CollectSlogLogsOptions) slog.Handler {
	return collector.NewSlogLogCollectorHandler(i.logCollector, options)
}

// ConsoleTail returns the most recent n console entries of all runs.
func (i *Instance) ConsoleTail(n int) []collector.ConsoleEntry {
	return i.consoleCollector.Tail(n)
}

// DashboardHandler returns the dashboard mounted at pathPrefix.
func (i *Instance) DashboardHandler(pathPrefix string, options ...dashboard.HandlerOption) http.Handler {
	handler := dashboard.NewHandler(
		i.eventAggregator,
		append([]dashboard.HandlerOption{dashboard.WithPathPrefix(pathPrefix)}, options...)...,
	)
	i.dashboardHandler = handler
	return handler
}
