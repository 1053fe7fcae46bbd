package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	slogmulti "github.com/samber/slog-multi"

	"github.com/networkteam/pageprobe"
	"github.com/networkteam/pageprobe/collector"
	"github.com/networkteam/pageprobe/dashboard"
	"github.com/networkteam/pageprobe/driver/pwdriver"
	"github.com/networkteam/pageprobe/fixture"
	"github.com/networkteam/pageprobe/runner"
	"github.com/networkteam/pageprobe/scenario"
)

const addr = "localhost:1095"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 1. Set up slog with pageprobe collecting debug logs

	probe := pageprobe.New()
	defer probe.Close()

	logger := slog.New(
		slogmulti.Fanout(
			probe.CollectSlogLogs(collector.CollectSlogLogsOptions{
				Level: slog.LevelDebug,
			}),
			// Log info to stderr
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		),
	)
	slog.SetDefault(logger)

	// 2. Runner options pointing at the game served below

	opts := runner.DefaultOptions()
	opts.Launcher = pwdriver.Launch
	opts.Driver = "playwright"
	opts.Launch.Headless = true
	opts.Launch.Logger = logger
	opts.BaseURL = "http://" + addr
	opts.ArtifactsDir = "artifacts"
	opts.WaitForTarget = 10 * time.Second
	opts.Stdout = io.Discard
	opts.Logger = logger

	trigger := func(ctx context.Context, name string) error {
		sc, err := scenario.Builtin(name)
		if err != nil {
			return err
		}
		_, err = probe.Run(ctx, sc, opts)
		return err
	}

	// 3. Serve the fixture game and mount the dashboard

	mux := http.NewServeMux()
	mux.Handle("/", fixture.Handler())
	mux.Handle("/_pageprobe/", http.StripPrefix("/_pageprobe", probe.DashboardHandler("/_pageprobe",
		dashboard.WithTrigger(trigger, scenario.List()),
		dashboard.WithLogger(logger),
	)))

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	// 4. Probe the inventory every minute

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			if err := trigger(ctx, "inventory-verified"); err != nil {
				logger.Warn("Inventory probe failed", slog.String("err", err.Error()))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	logger.Info("Starting server", slog.String("dashboard", "http://"+addr+"/_pageprobe/"))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to start server", slog.Group("error", slog.String("message", err.Error())))
		os.Exit(1)
	}
}
