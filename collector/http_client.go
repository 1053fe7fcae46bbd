package collector

import (
	"net/http"
	"time"

	"github.com/gofrs/uuid"
)

// HTTPClientCollector records outgoing HTTP requests, e.g. target reachability checks.
// Bodies are not captured.
type HTTPClientCollector struct {
	buffer          *RingBuffer[HTTPRequest]
	eventAggregator *EventAggregator
}

// HTTPClientOptions configures the HTTP client collector
type HTTPClientOptions struct {
	// EventAggregator is optional. Requests made with a run context become children of the run event.
	EventAggregator *EventAggregator
}

// NewHTTPClientCollector creates a new collector for outgoing HTTP requests
func NewHTTPClientCollector(capacity uint64) *HTTPClientCollector {
	return NewHTTPClientCollectorWithOptions(capacity, HTTPClientOptions{})
}

func NewHTTPClientCollectorWithOptions(capacity uint64, options HTTPClientOptions) *HTTPClientCollector {
	return &HTTPClientCollector{
		buffer:          NewRingBuffer[HTTPRequest](capacity),
		eventAggregator: options.EventAggregator,
	}
}

// Transport returns an http.RoundTripper that records each round trip
func (c *HTTPClientCollector) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	return &httpClientTransport{
		next:      next,
		collector: c,
	}
}

// GetRequests returns the most recent n HTTP requests
func (c *HTTPClientCollector) GetRequests(n uint64) []HTTPRequest {
	return c.buffer.GetRecords(n)
}

// HTTPRequest is a recorded request/response pair
type HTTPRequest struct {
	ID           uuid.UUID
	Method       string
	URL          string
	RequestTime  time.Time
	ResponseTime time.Time
	StatusCode   int
	Error        error
}

// Duration returns the duration of the request
func (r HTTPRequest) Duration() time.Duration {
	return r.ResponseTime.Sub(r.RequestTime)
}

func (r HTTPRequest) Size() uint64 {
	return uint64(len(r.Method)+len(r.URL)) + 64
}

type httpClientTransport struct {
	next      http.RoundTripper
	collector *HTTPClientCollector
}

func (t *httpClientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	httpReq := HTTPRequest{
		ID:          uuid.Must(uuid.NewV7()),
		Method:      req.Method,
		URL:         req.URL.String(),
		RequestTime: time.Now(),
	}

	resp, err := t.next.RoundTrip(req)

	httpReq.ResponseTime = time.Now()
	if resp != nil {
		httpReq.StatusCode = resp.StatusCode
	}
	httpReq.Error = err

	t.collector.buffer.Add(httpReq)
	if t.collector.eventAggregator != nil && InEvent(req.Context()) {
		t.collector.eventAggregator.CollectEvent(req.Context(), httpReq)
	}

	return resp, err
}
