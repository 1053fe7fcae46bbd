//go:build acceptance

package acceptance

import (
	"testing"

	"github.com/playwright-community/playwright-go"

	"github.com/networkteam/pageprobe/driver/pwdriver"
)

// TestFixtures bundles all commonly needed test fixtures.
type TestFixtures struct {
	App       *TestApp
	PW        *PlaywrightFixture
	Ctx       playwright.BrowserContext
	Dashboard *DashboardPage
}

// WithTestFixtures creates all fixtures, registers cleanup with t.Cleanup(), and calls the test function.
// Runs use the Playwright driver.
func WithTestFixtures(t *testing.T, fn func(t *testing.T, f *TestFixtures)) {
	t.Helper()

	app := NewTestApp(t, pwdriver.Launch, "playwright")
	t.Cleanup(func() { app.Close() })

	pw := NewPlaywrightFixture(t)
	t.Cleanup(func() { pw.Close() })

	ctx := pw.NewContext(t)
	t.Cleanup(func() { ctx.Close() })

	dashboard := NewDashboardPage(t, ctx, app.DashboardURL)

	fn(t, &TestFixtures{
		App:       app,
		PW:        pw,
		Ctx:       ctx,
		Dashboard: dashboard,
	})
}
