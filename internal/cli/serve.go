package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/networkteam/pageprobe/dashboard"
	"github.com/networkteam/pageprobe/fixture"
	"github.com/networkteam/pageprobe/scenario"
)

// DashboardPath is where the serve command mounts the dashboard.
const DashboardPath = "/_pageprobe"

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Fixture bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run dashboard",
		Long: `Serve the dashboard listing runs with their steps, console output and
screenshots. Builtin scenarios can be started from the dashboard.

With --fixture the stub game page is served at / and relative scenario URLs
resolve against this server unless --base-url is given.

Example:
  pageprobe serve --addr :8090
  pageprobe serve --fixture --addr localhost:8000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	addRunnerFlags(cmd)
	cmd.Flags().String("addr", ":8090", "listen address")
	cmd.Flags().Uint64("capacity", 100, "number of runs kept per dashboard viewer")
	cmd.Flags().BoolVar(&opts.Fixture, "fixture", false, "serve the stub game page at /")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config

	listener, err := net.Listen("tcp", cfg.Dashboard.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "listening", err)
	}
	baseURL := "http://" + hostAddr(listener.Addr())
	if opts.Fixture && !cmd.Flags().Changed("base-url") {
		cfg.BaseURL = baseURL
	}

	runnerOpts := opts.runnerOptions(io.Discard)
	trigger := func(ctx context.Context, name string) error {
		sc, err := scenario.Builtin(name)
		if err != nil {
			return err
		}
		result, err := opts.Probe.Run(ctx, sc, runnerOpts)
		if result != nil {
			opts.Logger.InfoContext(ctx, "Finished triggered run", "scenario", name, "status", result.Status, "duration", result.Duration())
		}
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(DashboardPath+"/", http.StripPrefix(DashboardPath, opts.Probe.DashboardHandler(DashboardPath,
		dashboard.WithStorageCapacity(cfg.Dashboard.Capacity),
		dashboard.WithTrigger(trigger, scenario.List()),
		dashboard.WithLogger(opts.Logger),
	)))
	if opts.Fixture {
		mux.Handle("/", fixture.Handler())
	} else {
		mux.Handle("/{$}", http.RedirectHandler(DashboardPath+"/", http.StatusTemporaryRedirect))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Dashboard on %s%s/\n", baseURL, DashboardPath)
	if opts.Fixture {
		fmt.Fprintf(cmd.OutOrStdout(), "Fixture on %s/\n", baseURL)
	}

	return serveUntilDone(cmd, opts.RootOptions, listener, mux)
}

// serveUntilDone serves until the command context is canceled or the
// process is interrupted, then shuts down gracefully.
func serveUntilDone(cmd *cobra.Command, opts *RootOptions, listener net.Listener, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Streaming dashboard requests end with ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "serving", err)
		}
		return nil
	case <-ctx.Done():
	}

	opts.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitCommandError, "shutting down", err)
	}
	return nil
}

// hostAddr replaces an unspecified listen host with localhost.
func hostAddr(addr net.Addr) string {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok || !tcpAddr.IP.IsUnspecified() {
		return addr.String()
	}
	return net.JoinHostPort("localhost", fmt.Sprint(tcpAddr.Port))
}
