package collector

import (
	"context"
	"time"
)

// ConsoleEntry is a message the page under test wrote to its console,
// or an uncaught exception.
type ConsoleEntry struct {
	Type string
	Text string
	Time time.Time
}

// IsError reports whether the entry was logged as an error or thrown.
func (e ConsoleEntry) IsError() bool {
	return e.Type == "error" || e.Type == "exception"
}

func (e ConsoleEntry) Size() uint64 {
	return uint64(len(e.Type) + len(e.Text) + 24)
}

// ConsoleCollector keeps the most recent console entries across runs.
type ConsoleCollector struct {
	buffer          *RingBuffer[ConsoleEntry]
	eventAggregator *EventAggregator
}

// NewConsoleCollector creates a collector for console entries. The aggregator is optional.
func NewConsoleCollector(capacity uint64, aggregator *EventAggregator) *ConsoleCollector {
	return &ConsoleCollector{
		buffer:          NewRingBuffer[ConsoleEntry](capacity),
		eventAggregator: aggregator,
	}
}

// Collect records the entry and attaches it to the open event of ctx.
func (c *ConsoleCollector) Collect(ctx context.Context, entry ConsoleEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	c.buffer.Add(entry)
	if c.eventAggregator != nil && InEvent(ctx) {
		c.eventAggregator.CollectEvent(ctx, entry)
	}
}

func (c *ConsoleCollector) Tail(n int) []ConsoleEntry {
	return c.buffer.GetRecords(uint64(n))
}
