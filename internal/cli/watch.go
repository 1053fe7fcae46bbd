package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <file|dir>",
		Short: "Re-run scenarios when their files change",
		Long: `Run a scenario file or a directory of scenario files, then run them again
whenever a file changes. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	addRunnerFlags(cmd)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 300*time.Millisecond, "wait for further changes before running")

	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	info, err := os.Stat(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "watching", err)
	}
	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "creating watcher", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return WrapExitError(ExitCommandError, "watching", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	runnerOpts := opts.runnerOptions(out)

	runOnce := func() {
		scenarios, err := loadScenarios([]string{path})
		if err != nil {
			opts.Logger.Error("Loading scenarios failed", "path", path, "error", err)
			return
		}
		results, err := opts.Probe.RunSuite(ctx, scenarios, runnerOpts)
		if err != nil {
			opts.Logger.Debug("Run finished with errors", "error", err)
		}
		if err := writeReport(out, results, false); err != nil {
			opts.Logger.Error("Writing report failed", "error", err)
		}
		fmt.Fprintf(out, "Watching %s for changes...\n", path)
	}

	runOnce()

	var (
		debounce *time.Timer
		pending  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantChange(event, path, info.IsDir()) {
				continue
			}
			opts.Logger.Debug("Scenario file changed", "file", event.Name, "op", event.Op.String())
			if debounce == nil {
				debounce = time.NewTimer(opts.Debounce)
			} else {
				debounce.Reset(opts.Debounce)
			}
			pending = debounce.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("Watcher error", "error", err)
		case <-pending:
			pending = nil
			runOnce()
		}
	}
}

func relevantChange(event fsnotify.Event, path string, isDir bool) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	if isDir {
		ext := strings.ToLower(filepath.Ext(event.Name))
		return ext == ".yaml" || ext == ".yml"
	}
	return filepath.Clean(event.Name) == filepath.Clean(path)
}
