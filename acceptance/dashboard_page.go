//go:build acceptance

package acceptance

import (
	"fmt"
	"strings"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
)

// DashboardPage provides helper methods for interacting with the pageprobe dashboard.
// It implements the Page Object pattern for cleaner test code.
type DashboardPage struct {
	Page         playwright.Page
	DashboardURL string
	t            *testing.T
}

// NewDashboardPage opens the dashboard and waits until the live run feed is connected.
func NewDashboardPage(t *testing.T, ctx playwright.BrowserContext, dashboardURL string) *DashboardPage {
	t.Helper()

	page, err := ctx.NewPage()
	require.NoError(t, err)

	dp := &DashboardPage{
		Page:         page,
		DashboardURL: dashboardURL,
		t:            t,
	}
	dp.Open()
	return dp
}

// Open navigates to the dashboard root.
func (dp *DashboardPage) Open() {
	dp.t.Helper()

	_, err := dp.Page.Goto(dp.DashboardURL)
	require.NoError(dp.t, err)

	err = dp.Page.Locator("#run-list").WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(5000),
	})
	require.NoError(dp.t, err, "run list not rendered")
}

// Trigger clicks the trigger button of the named scenario.
func (dp *DashboardPage) Trigger(name string) {
	dp.t.Helper()

	err := dp.Page.Locator(fmt.Sprintf("form button:has-text('▶ %s')", name)).Click()
	require.NoError(dp.t, err, "failed to click trigger of %s", name)

	err = dp.Page.WaitForURL(dp.DashboardURL, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(5000),
	})
	require.NoError(dp.t, err, "trigger did not redirect to dashboard")
}

// RunItems returns a locator for all runs in the list.
func (dp *DashboardPage) RunItems() playwright.Locator {
	return dp.Page.Locator("#run-list > li[id^='run-']")
}

// WaitForRunCount waits until the run list shows at least n runs.
// The list is updated live, a reload is only done as fallback.
func (dp *DashboardPage) WaitForRunCount(n int, timeoutMs float64) {
	dp.t.Helper()

	err := dp.RunItems().Nth(n - 1).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(timeoutMs),
	})
	if err != nil {
		dp.Open()
		err = dp.RunItems().Nth(n - 1).WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(5000),
		})
	}
	require.NoError(dp.t, err, "expected at least %d runs", n)
}

// RunCount returns the number of runs currently listed.
func (dp *DashboardPage) RunCount() int {
	dp.t.Helper()
	count, err := dp.RunItems().Count()
	require.NoError(dp.t, err)
	return count
}

// OpenFirstRun opens the most recent run and returns the run detail locator.
func (dp *DashboardPage) OpenFirstRun() playwright.Locator {
	dp.t.Helper()

	err := dp.RunItems().First().Locator("a").Click()
	require.NoError(dp.t, err, "failed to open run")

	detail := dp.Page.Locator("#run-detail article")
	err = detail.WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(5000),
	})
	require.NoError(dp.t, err, "run detail not shown")
	return detail
}

// SwitchMode clicks the capture mode toggle and waits for the new label.
func (dp *DashboardPage) SwitchMode() {
	dp.t.Helper()

	next := "Show all runs"
	if dp.ModeLabel() == next {
		next = "Show my runs only"
	}

	err := dp.modeToggle().Click()
	require.NoError(dp.t, err, "failed to click capture mode toggle")

	err = dp.Page.Locator(fmt.Sprintf("form button:has-text('%s')", next)).WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(5000),
	})
	require.NoError(dp.t, err, "capture mode did not change")
}

// ModeLabel returns the label of the capture mode toggle.
func (dp *DashboardPage) ModeLabel() string {
	dp.t.Helper()
	text, err := dp.modeToggle().TextContent()
	require.NoError(dp.t, err)
	return strings.TrimSpace(text)
}

func (dp *DashboardPage) modeToggle() playwright.Locator {
	return dp.Page.Locator("form button:has-text('Show'):has-text('runs')")
}
