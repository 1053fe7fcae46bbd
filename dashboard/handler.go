package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/gofrs/uuid"

	"github.com/networkteam/pageprobe/collector"
	"github.com/networkteam/pageprobe/dashboard/views"
	"github.com/networkteam/pageprobe/runner"
)

const viewerCookieName = "pageprobe_viewer"

// Handler serves the run dashboard. Every viewer gets its own run storage,
// identified by a cookie.
type Handler struct {
	sessions *SessionManager
	opts     handlerOptions
	logger   *slog.Logger

	mux http.Handler
}

func NewHandler(events *collector.EventAggregator, options ...HandlerOption) *Handler {
	var opts handlerOptions
	for _, option := range options {
		option(&opts)
	}
	if opts.StorageCapacity == 0 {
		opts.StorageCapacity = DefaultStorageCapacity
	}
	if opts.TruncateAfter == 0 {
		opts.TruncateAfter = opts.StorageCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	handler := &Handler{
		sessions: NewSessionManager(SessionManagerOptions{
			EventAggregator: events,
			StorageCapacity: opts.StorageCapacity,
			IdleTimeout:     opts.SessionIdleTimeout,
			MaxSessions:     opts.MaxSessions,
			Logger:          logger,
		}),
		opts:   opts,
		logger: logger,

		mux: setHandlerOptions(opts, mux),
	}

	mux.HandleFunc("GET /{$}", handler.root)
	mux.HandleFunc("GET /run/{runId}", handler.getRunDetails)
	mux.HandleFunc("GET /artifact/{runId}/{step}", handler.getArtifact)
	mux.HandleFunc("GET /events-sse", handler.getEventsSSE)
	mux.HandleFunc("POST /trigger/{scenario}", handler.postTrigger)
	mux.HandleFunc("POST /capture-mode", handler.postCaptureMode)

	return handler
}

func setHandlerOptions(options handlerOptions, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = views.WithHandlerOptions(ctx, views.HandlerOptions{
			PathPrefix: options.PathPrefix,
		})
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Close removes all viewer storages.
func (h *Handler) Close() {
	h.sessions.Close()
}

// viewer returns the viewer ID from the cookie, assigning a new one if
// needed, and the viewer's storage.
func (h *Handler) viewer(w http.ResponseWriter, r *http.Request) (uuid.UUID, *collector.RunStorage, bool) {
	var viewerID uuid.UUID
	if cookie, err := r.Cookie(viewerCookieName); err == nil {
		viewerID, _ = uuid.FromString(cookie.Value)
	}
	if viewerID.IsNil() {
		viewerID = uuid.Must(uuid.NewV4())
		http.SetCookie(w, &http.Cookie{
			Name:     viewerCookieName,
			Value:    viewerID.String(),
			Path:     h.cookiePath(),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	storage, _, err := h.sessions.GetOrCreate(viewerID, collector.CaptureModeGlobal)
	if errors.Is(err, ErrTooManySessions) {
		http.Error(w, "Too many dashboard sessions", http.StatusServiceUnavailable)
		return viewerID, nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return viewerID, nil, false
	}
	return viewerID, storage, true
}

func (h *Handler) cookiePath() string {
	if h.opts.PathPrefix == "" {
		return "/"
	}
	return h.opts.PathPrefix
}

func (h *Handler) url(path string) string {
	return h.opts.PathPrefix + path
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	_, storage, ok := h.viewer(w, r)
	if !ok {
		return
	}

	var selected *collector.Event
	if idStr := r.URL.Query().Get("id"); idStr != "" {
		runID, err := uuid.FromString(idStr)
		if err != nil {
			http.Error(w, "Invalid run id", http.StatusBadRequest)
			return
		}
		event, exists := storage.GetEvent(runID)
		if !exists {
			http.Redirect(w, r, h.url("/"), http.StatusTemporaryRedirect)
			return
		}
		selected = event
	}

	templ.Handler(views.Dashboard(views.DashboardProps{
		Runs:          h.loadRecentRuns(storage),
		Selected:      selected,
		TruncateAfter: h.opts.TruncateAfter,
		Scenarios:     h.triggerableScenarios(),
		CaptureMode:   storage.CaptureMode(),
	})).ServeHTTP(w, r)
}

func (h *Handler) getRunDetails(w http.ResponseWriter, r *http.Request) {
	_, storage, ok := h.viewer(w, r)
	if !ok {
		return
	}
	event, ok := h.lookupRun(w, r, storage)
	if !ok {
		return
	}

	templ.Handler(views.RunDetail(event)).ServeHTTP(w, r)
}

func (h *Handler) getArtifact(w http.ResponseWriter, r *http.Request) {
	_, storage, ok := h.viewer(w, r)
	if !ok {
		return
	}
	event, ok := h.lookupRun(w, r, storage)
	if !ok {
		return
	}

	index, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		http.Error(w, "Invalid step", http.StatusBadRequest)
		return
	}
	step, exists := event.Data.(*runner.Result).Step(index)
	if !exists || step.Artifact == "" {
		http.Error(w, "Artifact not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, step.Artifact)
}

func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request, storage *collector.RunStorage) (*collector.Event, bool) {
	runID, err := uuid.FromString(r.PathValue("runId"))
	if err != nil {
		http.Error(w, "Invalid run id", http.StatusBadRequest)
		return nil, false
	}
	event, exists := storage.GetEvent(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if _, isRun := event.Data.(*runner.Result); !isRun {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	return event, true
}

// getEventsSSE streams finished runs of the viewer's storage
func (h *Handler) getEventsSSE(w http.ResponseWriter, r *http.Request) {
	viewerID, storage, ok := h.viewer(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // For NGINX proxy

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// The idle timeout starts when the viewer disconnects
	defer h.sessions.UpdateActivity(viewerID)

	eventCh := storage.Subscribe(ctx)

	fmt.Fprintf(w, "event: keepalive\ndata: connected\n\n")
	flusher.Flush()

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if _, isRun := event.Data.(*runner.Result); !isRun {
				continue
			}
			h.sessions.UpdateActivity(viewerID)

			buf.Reset()
			if err := views.RunListItem(event, false).Render(ctx, &buf); err != nil {
				h.logger.Warn("Rendering run list item failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: new-run\ndata: %s\n\n", strings.ReplaceAll(buf.String(), "\n", " "))
			flusher.Flush()
		}
	}
}

func (h *Handler) postTrigger(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("scenario")
	if h.opts.Trigger == nil || !slices.Contains(h.opts.Scenarios, name) {
		http.Error(w, "Unknown scenario", http.StatusNotFound)
		return
	}
	viewerID, _, ok := h.viewer(w, r)
	if !ok {
		return
	}

	ctx := collector.WithSuiteIDs(context.WithoutCancel(r.Context()), viewerID)
	go func() {
		if err := h.opts.Trigger(ctx, name); err != nil {
			h.logger.WarnContext(ctx, "Triggered run failed", "scenario", name, "error", err)
		}
	}()

	http.Redirect(w, r, h.url("/"), http.StatusSeeOther)
}

func (h *Handler) postCaptureMode(w http.ResponseWriter, r *http.Request) {
	_, storage, ok := h.viewer(w, r)
	if !ok {
		return
	}

	switch r.FormValue("mode") {
	case collector.CaptureModeSuite.String():
		storage.SetCaptureMode(collector.CaptureModeSuite)
	case collector.CaptureModeGlobal.String():
		storage.SetCaptureMode(collector.CaptureModeGlobal)
	default:
		http.Error(w, "Invalid capture mode", http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, h.url("/"), http.StatusSeeOther)
}

func (h *Handler) loadRecentRuns(storage *collector.RunStorage) []*collector.Event {
	events := storage.GetEvents(h.opts.TruncateAfter)
	slices.Reverse(events)
	return slices.DeleteFunc(events, func(e *collector.Event) bool {
		_, isRun := e.Data.(*runner.Result)
		return !isRun
	})
}

func (h *Handler) triggerableScenarios() []string {
	if h.opts.Trigger == nil {
		return nil
	}
	return h.opts.Scenarios
}
