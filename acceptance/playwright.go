//go:build acceptance

package acceptance

import (
	"os"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
)

// PlaywrightFixture manages a Playwright browser used to look at the dashboard.
// Scenario runs launch their own browsers through the driver.
type PlaywrightFixture struct {
	PW      *playwright.Playwright
	Browser playwright.Browser
}

// headless reports whether browsers run headless. Set HEADLESS=false to watch them.
func headless() bool {
	return os.Getenv("HEADLESS") != "false"
}

// NewPlaywrightFixture creates a new Playwright fixture with a Chromium browser.
func NewPlaywrightFixture(t *testing.T) *PlaywrightFixture {
	t.Helper()

	pw, err := playwright.Run()
	require.NoError(t, err, "failed to start playwright")

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless()),
	})
	require.NoError(t, err, "failed to launch browser")

	return &PlaywrightFixture{PW: pw, Browser: browser}
}

// NewContext creates a new browser context with isolated cookies, so every
// context is a separate dashboard viewer.
func (pf *PlaywrightFixture) NewContext(t *testing.T) playwright.BrowserContext {
	t.Helper()
	ctx, err := pf.Browser.NewContext()
	require.NoError(t, err, "failed to create browser context")
	return ctx
}

// Close releases all Playwright resources.
func (pf *PlaywrightFixture) Close() {
	pf.Browser.Close()
	pf.PW.Stop()
}
