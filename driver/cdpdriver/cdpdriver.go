// Package cdpdriver implements driver.Browser with chromedp over the Chrome DevTools Protocol.
package cdpdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/networkteam/pageprobe/driver"
)

const pollInterval = 100 * time.Millisecond

// AllocatorOptions returns the exec allocator options used for local Chrome.
func AllocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
}

// Launch starts a local Chrome, or connects to opts.RemoteURL. It implements driver.Launcher.
func Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Browser, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// The browser lives until Close, independent of the launch context
	parent := context.WithoutCancel(ctx)

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, AllocatorOptions(opts.Headless)...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "driver", "chromedp")
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "driver", "chromedp")
		}),
	)

	if err := start(ctx, browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	logger.Debug("Launched browser", "driver", "chromedp", "remote", opts.RemoteURL != "", "headless", opts.Headless)

	return &Browser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}, nil
}

var _ driver.Launcher = Launch

// Browser is a Chrome instance controlled over CDP.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewPage opens a new tab.
func (b *Browser) NewPage(ctx context.Context, opts driver.PageOptions) (driver.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)

	var actions []chromedp.Action
	if opts.Width > 0 && opts.Height > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)))
	}
	if err := start(ctx, tabCtx, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("opening tab: %w", err)
	}

	return &Page{ctx: tabCtx, cancel: tabCancel}, nil
}

// Close shuts the browser down gracefully and releases the allocator.
func (b *Browser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Page is a single Chrome tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// start performs the first Run on a chromedp context, which allocates the
// browser or tab. It must use the chromedp context itself since the
// allocation is bound to the context of the first Run.
func start(ctx context.Context, target context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(target, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return driver.ContextError(ctx)
	}
}

// runBounded runs actions on target (a chromedp context) but stops when ctx is done.
func runBounded(ctx context.Context, target context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(target)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return driver.ContextError(ctx)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(driver.ErrTimeout, err)
	}
	return err
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	return runBounded(ctx, p.ctx, actions...)
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %w", driver.ErrNavigation, url, err)
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	if err := p.run(ctx, chromedp.Reload()); err != nil {
		return fmt.Errorf("%w: reload: %w", driver.ErrNavigation, err)
	}
	return nil
}

func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	return p.run(ctx, chromedp.EmulateViewport(int64(width), int64(height)))
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
		chromedp.Evaluate(dispatchInputScript(selector), nil),
	)
}

func (p *Page) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// WaitFor polls the element state in the page, matching Playwright's notion of visibility.
func (p *Page) WaitFor(ctx context.Context, selector string, state driver.WaitState) error {
	var ok bool
	return p.run(ctx, chromedp.Poll(stateScript(selector, state), &ok, chromedp.WithPollingInterval(pollInterval)))
}

func (p *Page) Evaluate(ctx context.Context, script string) (any, error) {
	var remote *runtime.RemoteObject
	err := p.run(ctx, chromedp.Evaluate(script, &remote, func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
		return params.WithAwaitPromise(true).WithReturnByValue(true)
	}))
	if err != nil {
		return nil, err
	}
	if remote == nil || remote.Type == runtime.TypeUndefined || len(remote.Value) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal([]byte(remote.Value), &v); err != nil {
		return nil, fmt.Errorf("decoding evaluation result: %w", err)
	}
	return v, nil
}

func (p *Page) InnerText(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery))
	return text, err
}

func (p *Page) InputValue(ctx context.Context, selector string) (string, error) {
	var value string
	err := p.run(ctx, chromedp.Value(selector, &value, chromedp.ByQuery))
	return value, err
}

func (p *Page) BoundingBox(ctx context.Context, selector string) (driver.Rect, error) {
	var rect driver.Rect
	err := p.run(ctx,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Evaluate(boundingBoxScript(selector), &rect),
	)
	return rect, err
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// Quality 100 keeps PNG encoding
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *Page) OnConsole(handler func(driver.ConsoleMessage)) {
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			handler(driver.ConsoleMessage{Type: string(ev.Type), Text: consoleText(ev.Args)})
		case *runtime.EventExceptionThrown:
			handler(driver.ConsoleMessage{Type: "exception", Text: ev.ExceptionDetails.Error()})
		}
	})
}

func (p *Page) Close() error {
	p.cancel()
	return nil
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg.Value) > 0 {
			var v any
			if err := json.Unmarshal([]byte(arg.Value), &v); err == nil {
				parts = append(parts, fmt.Sprint(v))
				continue
			}
		}
		parts = append(parts, arg.Description)
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

const isVisibleJS = `(el) => {
	if (!el) return false;
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden') return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

func stateScript(selector string, state driver.WaitState) string {
	query := fmt.Sprintf("document.querySelector(%s)", quote(selector))
	switch state {
	case driver.StateAttached:
		return query + " !== null"
	case driver.StateDetached:
		return query + " === null"
	case driver.StateHidden:
		return fmt.Sprintf("!(%s)(%s)", isVisibleJS, query)
	default:
		return fmt.Sprintf("(%s)(%s)", isVisibleJS, query)
	}
}

func dispatchInputScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
})()`, quote(selector))
}

func boundingBoxScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const r = document.querySelector(%s).getBoundingClientRect();
	return { X: r.x, Y: r.y, Width: r.width, Height: r.height };
})()`, quote(selector))
}

var (
	_ driver.Browser = (*Browser)(nil)
	_ driver.Page    = (*Page)(nil)
)
