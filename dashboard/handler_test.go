package dashboard_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/pageprobe/collector"
	"github.com/networkteam/pageprobe/dashboard"
	"github.com/networkteam/pageprobe/runner"
	"github.com/networkteam/pageprobe/scenario"
)

type viewer struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func (v *viewer) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	v.t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range v.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	v.handler.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		v.cookies = cookies
	}
	return rec
}

func publishRun(aggregator *collector.EventAggregator, ctx context.Context, result *runner.Result) uuid.UUID {
	runCtx := aggregator.StartEvent(ctx)
	id, _ := collector.EventIDFromContext(runCtx)
	result.ID = id
	aggregator.EndEvent(runCtx, result)
	return id
}

func sampleResult(artifact string) *runner.Result {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &runner.Result{
		Scenario: "inventory-verified",
		Target:   "http://localhost:8000/verification/index_test.html",
		Driver:   "playwright",
		Status:   runner.StatusPassed,
		Steps: []runner.StepResult{
			{
				Index:  1,
				Step:   scenario.Step{Action: scenario.ActionEvaluate, Script: "window.app.openInventory()"},
				Status: runner.StatusPassed,
				Output: []string{"opened"},
			},
			{
				Index:    2,
				Step:     scenario.Step{Action: scenario.ActionScreenshot, Path: "inventory.png"},
				Status:   runner.StatusPassed,
				Artifact: artifact,
			},
		},
		Artifacts: []string{artifact},
		Start:     start,
		End:       start.Add(1500 * time.Millisecond),
	}
}

func TestHandler_RunListAndDetails(t *testing.T) {
	t.Parallel()

	aggregator := collector.NewEventAggregator()
	handler := dashboard.NewHandler(aggregator, dashboard.WithPathPrefix("/_pageprobe"))
	t.Cleanup(handler.Close)

	v := &viewer{t: t, handler: http.StripPrefix("/_pageprobe", handler)}

	rec := v.do(http.MethodGet, "/_pageprobe/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No runs yet.")
	require.NotEmpty(t, v.cookies, "viewer cookie should be set")
	assert.Equal(t, "/_pageprobe", v.cookies[0].Path)

	runID := publishRun(aggregator, context.Background(), sampleResult(""))

	rec = v.do(http.MethodGet, "/_pageprobe/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "inventory-verified")
	assert.Contains(t, body, "/_pageprobe/?id="+runID.String())

	rec = v.do(http.MethodGet, "/_pageprobe/?id="+runID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "opened")

	rec = v.do(http.MethodGet, "/_pageprobe/run/"+runID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inventory.png")

	rec = v.do(http.MethodGet, "/_pageprobe/run/"+uuid.Must(uuid.NewV4()).String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = v.do(http.MethodGet, "/_pageprobe/run/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ViewersAreSeparated(t *testing.T) {
	t.Parallel()

	aggregator := collector.NewEventAggregator()
	handler := dashboard.NewHandler(aggregator)
	t.Cleanup(handler.Close)

	first := &viewer{t: t, handler: handler}
	first.do(http.MethodGet, "/", nil)

	runID := publishRun(aggregator, context.Background(), sampleResult(""))

	// A viewer connecting later does not see earlier runs
	second := &viewer{t: t, handler: handler}
	rec := second.do(http.MethodGet, "/run/"+runID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = first.do(http.MethodGet, "/run/"+runID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_Artifact(t *testing.T) {
	t.Parallel()

	artifact := filepath.Join(t.TempDir(), "inventory.png")
	require.NoError(t, os.WriteFile(artifact, []byte("\x89PNG fake"), 0o644))

	aggregator := collector.NewEventAggregator()
	handler := dashboard.NewHandler(aggregator)
	t.Cleanup(handler.Close)

	v := &viewer{t: t, handler: handler}
	v.do(http.MethodGet, "/", nil)
	runID := publishRun(aggregator, context.Background(), sampleResult(artifact))

	rec := v.do(http.MethodGet, "/artifact/"+runID.String()+"/2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG fake", rec.Body.String())

	rec = v.do(http.MethodGet, "/artifact/"+runID.String()+"/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = v.do(http.MethodGet, "/artifact/"+runID.String()+"/x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Trigger(t *testing.T) {
	t.Parallel()

	aggregator := collector.NewEventAggregator()

	var (
		mu        sync.Mutex
		triggered []string
		suiteIDs  []uuid.UUID
	)
	done := make(chan struct{}, 1)
	trigger := func(ctx context.Context, name string) error {
		mu.Lock()
		triggered = append(triggered, name)
		suiteIDs, _ = collector.SuiteIDsFromContext(ctx)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}

	handler := dashboard.NewHandler(aggregator,
		dashboard.WithPathPrefix("/pp"),
		dashboard.WithTrigger(trigger, []string{"ui-smoke", "api-modal"}),
	)
	t.Cleanup(handler.Close)

	v := &viewer{t: t, handler: http.StripPrefix("/pp", handler)}

	rec := v.do(http.MethodGet, "/pp/", nil)
	assert.Contains(t, rec.Body.String(), "/pp/trigger/ui-smoke")

	rec = v.do(http.MethodPost, "/pp/trigger/ui-smoke", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/pp/", rec.Header().Get("Location"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("trigger was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ui-smoke"}, triggered)
	require.Len(t, suiteIDs, 1)
	assert.Equal(t, v.cookies[0].Value, suiteIDs[0].String(), "runs should be tagged with the viewer ID")

	rec = v.do(http.MethodPost, "/pp/trigger/unknown", url.Values{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_TriggerDisabled(t *testing.T) {
	t.Parallel()

	handler := dashboard.NewHandler(collector.NewEventAggregator())
	t.Cleanup(handler.Close)

	v := &viewer{t: t, handler: handler}
	rec := v.do(http.MethodPost, "/trigger/ui-smoke", url.Values{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_CaptureMode(t *testing.T) {
	t.Parallel()

	aggregator := collector.NewEventAggregator()
	handler := dashboard.NewHandler(aggregator)
	t.Cleanup(handler.Close)

	v := &viewer{t: t, handler: handler}
	v.do(http.MethodGet, "/", nil)

	rec := v.do(http.MethodPost, "/capture-mode", url.Values{"mode": {"suite"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	otherRun := publishRun(aggregator, context.Background(), sampleResult(""))
	viewerID := uuid.FromStringOrNil(v.cookies[0].Value)
	ownRun := publishRun(aggregator, collector.WithSuiteIDs(context.Background(), viewerID), sampleResult(""))

	assert.Equal(t, http.StatusNotFound, v.do(http.MethodGet, "/run/"+otherRun.String(), nil).Code)
	assert.Equal(t, http.StatusOK, v.do(http.MethodGet, "/run/"+ownRun.String(), nil).Code)

	rec = v.do(http.MethodPost, "/capture-mode", url.Values{"mode": {"everything"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_MaxSessions(t *testing.T) {
	t.Parallel()

	handler := dashboard.NewHandler(collector.NewEventAggregator(), dashboard.WithMaxSessions(1))
	t.Cleanup(handler.Close)

	first := &viewer{t: t, handler: handler}
	assert.Equal(t, http.StatusOK, first.do(http.MethodGet, "/", nil).Code)

	second := &viewer{t: t, handler: handler}
	assert.Equal(t, http.StatusServiceUnavailable, second.do(http.MethodGet, "/", nil).Code)
}

func TestHandler_EventsSSE(t *testing.T) {
	t.Parallel()

	aggregator := collector.NewEventAggregator()
	handler := dashboard.NewHandler(aggregator)
	t.Cleanup(handler.Close)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events-sse", nil)
	require.NoError(t, err)
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	// Subscribed once the keepalive is sent
	require.Equal(t, "event: keepalive\n", line)

	received := make(chan string, 1)
	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: <li") {
				received <- line
				return
			}
		}
	}()

	publishRun(aggregator, context.Background(), sampleResult(""))

	select {
	case data := <-received:
		assert.Contains(t, data, "inventory-verified")
	case <-time.After(2 * time.Second):
		t.Fatal("no new-run event received")
	}
}
