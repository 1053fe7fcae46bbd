// Package pwdriver implements driver.Browser on top of playwright-go.
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/networkteam/pageprobe/driver"
)

const fallbackTimeout = 30 * time.Second

// Install downloads the Playwright driver and Chromium.
func Install() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

// Launch starts Playwright and a Chromium instance. It implements driver.Launcher.
func Launch(ctx context.Context, opts driver.LaunchOptions) (driver.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	logger.Debug("Launched browser", "driver", "playwright", "version", browser.Version(), "headless", opts.Headless)

	return &Browser{pw: pw, browser: browser, logger: logger}, nil
}

var _ driver.Launcher = Launch

// Browser is a Chromium instance controlled by Playwright.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	logger  *slog.Logger
}

func (b *Browser) NewPage(ctx context.Context, opts driver.PageOptions) (driver.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pageOpts playwright.BrowserNewPageOptions
	if opts.Width > 0 && opts.Height > 0 {
		pageOpts.Viewport = &playwright.Size{Width: opts.Width, Height: opts.Height}
	}

	page, err := b.browser.NewPage(pageOpts)
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}

	return &Page{page: page}, nil
}

// Close closes the browser and stops the Playwright driver process.
func (b *Browser) Close() error {
	return errors.Join(b.browser.Close(), b.pw.Stop())
}

// Page wraps a playwright.Page. Locators resolve to the first match so
// selectors matching several elements behave like querySelector.
type Page struct {
	page playwright.Page
}

// timeout converts the deadline of ctx into Playwright's millisecond timeout option.
func timeout(ctx context.Context) *float64 {
	return playwright.Float(float64(driver.TimeoutFrom(ctx, fallbackTimeout).Milliseconds()))
}

func (p *Page) locator(selector string) playwright.Locator {
	return p.page.Locator(selector).First()
}

func (p *Page) Goto(ctx context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeout(ctx),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", driver.ErrNavigation, url, mapError(err))
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	_, err := p.page.Reload(playwright.PageReloadOptions{
		Timeout:   timeout(ctx),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("%w: reload: %w", driver.ErrNavigation, mapError(err))
	}
	return nil
}

func (p *Page) SetViewport(ctx context.Context, width, height int) error {
	return mapError(p.page.SetViewportSize(width, height))
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	return mapError(p.locator(selector).Fill(value, playwright.LocatorFillOptions{
		Timeout: timeout(ctx),
	}))
}

func (p *Page) Click(ctx context.Context, selector string) error {
	return mapError(p.locator(selector).Click(playwright.LocatorClickOptions{
		Timeout: timeout(ctx),
	}))
}

func (p *Page) WaitFor(ctx context.Context, selector string, state driver.WaitState) error {
	var s *playwright.WaitForSelectorState
	switch state {
	case driver.StateHidden:
		s = playwright.WaitForSelectorStateHidden
	case driver.StateAttached:
		s = playwright.WaitForSelectorStateAttached
	case driver.StateDetached:
		s = playwright.WaitForSelectorStateDetached
	default:
		s = playwright.WaitForSelectorStateVisible
	}

	return mapError(p.locator(selector).WaitFor(playwright.LocatorWaitForOptions{
		State:   s,
		Timeout: timeout(ctx),
	}))
}

// MatchText implements driver.TextMatcher with Playwright's text engines.
// A selector query is narrowed with HasText, a plain text query uses GetByText.
func (p *Page) MatchText(ctx context.Context, q driver.TextQuery, state driver.WaitState, tag string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, driver.ContextError(ctx)
	}

	candidates := textLocator(p.page, q)
	count, err := candidates.Count()
	if err != nil {
		return false, mapError(err)
	}

	needsVisible := state == driver.StateVisible || state == driver.StateHidden
	var match playwright.Locator
	for i := 0; i < count; i++ {
		el := candidates.Nth(i)
		if needsVisible {
			visible, err := el.IsVisible()
			if err != nil {
				return false, mapError(err)
			}
			if !visible {
				continue
			}
		}
		match = el
		break
	}

	if tag != "" {
		if err := p.tag(ctx, match, tag); err != nil {
			return false, err
		}
	}

	switch state {
	case driver.StateHidden, driver.StateDetached:
		return match == nil, nil
	default:
		return match != nil, nil
	}
}

func textLocator(page playwright.Page, q driver.TextQuery) playwright.Locator {
	if q.Selector != "" {
		return page.Locator(q.Selector, playwright.PageLocatorOptions{
			HasText: q.HasText,
		})
	}
	return page.GetByText(q.Text)
}

// tag moves driver.TargetAttribute with value tag to match. A nil match only clears it.
func (p *Page) tag(ctx context.Context, match playwright.Locator, tag string) error {
	_, err := p.page.Evaluate(`([attr, tag]) => {
  document.querySelectorAll("[" + attr + "=" + JSON.stringify(tag) + "]").forEach((el) => el.removeAttribute(attr));
}`, []string{driver.TargetAttribute, tag})
	if err != nil {
		return mapError(err)
	}
	if match == nil {
		return nil
	}
	_, err = match.Evaluate(`(el, [attr, tag]) => el.setAttribute(attr, tag)`, []string{driver.TargetAttribute, tag}, playwright.LocatorEvaluateOptions{
		Timeout: timeout(ctx),
	})
	return mapError(err)
}

func (p *Page) Evaluate(ctx context.Context, script string) (any, error) {
	type result struct {
		value any
		err   error
	}
	// Page.Evaluate has no timeout option, so the call is raced against ctx
	done := make(chan result, 1)
	go func() {
		v, err := p.page.Evaluate(script)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, mapError(r.err)
		}
		return r.value, nil
	case <-ctx.Done():
		return nil, driver.ContextError(ctx)
	}
}

func (p *Page) InnerText(ctx context.Context, selector string) (string, error) {
	text, err := p.locator(selector).InnerText(playwright.LocatorInnerTextOptions{
		Timeout: timeout(ctx),
	})
	return text, mapError(err)
}

func (p *Page) InputValue(ctx context.Context, selector string) (string, error) {
	value, err := p.locator(selector).InputValue(playwright.LocatorInputValueOptions{
		Timeout: timeout(ctx),
	})
	return value, mapError(err)
}

func (p *Page) BoundingBox(ctx context.Context, selector string) (driver.Rect, error) {
	box, err := p.locator(selector).BoundingBox(playwright.LocatorBoundingBoxOptions{
		Timeout: timeout(ctx),
	})
	if err != nil {
		return driver.Rect{}, mapError(err)
	}
	if box == nil {
		return driver.Rect{}, fmt.Errorf("%w: %s is not rendered", driver.ErrNotFound, selector)
	}
	return driver.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Timeout:  timeout(ctx),
	})
	return data, mapError(err)
}

func (p *Page) OnConsole(handler func(driver.ConsoleMessage)) {
	p.page.OnConsole(func(msg playwright.ConsoleMessage) {
		handler(driver.ConsoleMessage{Type: msg.Type(), Text: msg.Text()})
	})
	p.page.OnPageError(func(err error) {
		handler(driver.ConsoleMessage{Type: "exception", Text: err.Error()})
	})
}

func (p *Page) Close() error {
	return p.page.Close()
}

// mapError marks Playwright timeouts with driver.ErrTimeout.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) || strings.Contains(err.Error(), "Timeout") {
		return errors.Join(driver.ErrTimeout, err)
	}
	return err
}

var (
	_ driver.Browser     = (*Browser)(nil)
	_ driver.Page        = (*Page)(nil)
	_ driver.TextMatcher = (*Page)(nil)
)
