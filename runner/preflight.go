package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/networkteam/pageprobe/scenario"
)

// checkTarget waits until the target is reachable, for at most WaitForTarget.
// HTTP targets are polled with exponential backoff, file targets must exist.
func (r *Runner) checkTarget(ctx context.Context, target string, logger *slog.Logger) error {
	if scenario.IsFileTarget(target) {
		path, err := scenario.FilePath(target)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNavigation, err)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %w", ErrNavigation, err)
		}
		return nil
	}

	var transport http.RoundTripper = http.DefaultTransport
	if r.opts.HTTPClient != nil {
		transport = r.opts.HTTPClient.Transport(transport)
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   5 * time.Second,
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
		backoff.WithMaxElapsedTime(r.opts.WaitForTarget),
	)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.DebugContext(ctx, "Target not reachable yet", "target", target, "error", err, "retryIn", next)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("%w: %s not reachable within %s: %w", ErrNavigation, target, r.opts.WaitForTarget, err)
	}
	return nil
}
