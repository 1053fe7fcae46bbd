package collector

import (
	"context"
	"slices"
	"sync"

	"github.com/gofrs/uuid"
)

// EventStorage is the interface for event storage backends.
// Storages decide which events to capture and keep their own buffer.
type EventStorage interface {
	ID() uuid.UUID

	// ShouldCapture returns true if this storage wants events for the given context
	ShouldCapture(ctx context.Context) bool

	Add(event *Event)

	GetEvent(id uuid.UUID) (*Event, bool)

	// GetEvents returns the most recent n events, oldest first
	GetEvents(limit uint64) []*Event

	Capacity() uint64

	// Subscribe returns a channel that receives notifications of new events
	Subscribe(ctx context.Context) <-chan *Event

	Clear()

	Close()
}

// CaptureMode defines how a RunStorage decides which runs to capture
type CaptureMode int

const (
	// CaptureModeSuite captures only runs tagged with the storage's suite ID
	CaptureModeSuite CaptureMode = iota
	// CaptureModeGlobal captures all runs
	CaptureModeGlobal
)

// String returns the mode name used in the dashboard and config.
func (m CaptureMode) String() string {
	switch m {
	case CaptureModeSuite:
		return "suite"
	case CaptureModeGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// RunStorage implements EventStorage on a LookupRingBuffer with a configurable capture mode.
type RunStorage struct {
	id      uuid.UUID
	suiteID uuid.UUID

	mu          sync.RWMutex
	captureMode CaptureMode

	buffer   *LookupRingBuffer[*Event, uuid.UUID]
	notifier *Notifier[*Event]
}

// NewRunStorage creates a new RunStorage for the given suite ID.
func NewRunStorage(suiteID uuid.UUID, capacity uint64, mode CaptureMode) *RunStorage {
	return &RunStorage{
		id:          uuid.Must(uuid.NewV7()),
		suiteID:     suiteID,
		captureMode: mode,
		buffer:      NewLookupRingBuffer[*Event, uuid.UUID](capacity),
		notifier:    NewNotifier[*Event](),
	}
}

func (s *RunStorage) ID() uuid.UUID {
	return s.id
}

// SuiteID returns the suite ID this storage belongs to
func (s *RunStorage) SuiteID() uuid.UUID {
	return s.suiteID
}

func (s *RunStorage) CaptureMode() CaptureMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.captureMode
}

func (s *RunStorage) SetCaptureMode(mode CaptureMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureMode = mode
}

func (s *RunStorage) ShouldCapture(ctx context.Context) bool {
	switch s.CaptureMode() {
	case CaptureModeGlobal:
		return true
	case CaptureModeSuite:
		suiteIDs, ok := SuiteIDsFromContext(ctx)
		if !ok {
			return false
		}
		return slices.Contains(suiteIDs, s.suiteID)
	default:
		return false
	}
}

// Add adds an event to the storage and notifies subscribers
func (s *RunStorage) Add(event *Event) {
	s.buffer.Add(event)
	s.notifier.Notify(event)
}

func (s *RunStorage) GetEvent(id uuid.UUID) (*Event, bool) {
	return s.buffer.Lookup(id)
}

func (s *RunStorage) GetEvents(limit uint64) []*Event {
	return s.buffer.GetRecords(limit)
}

func (s *RunStorage) Capacity() uint64 {
	return s.buffer.Capacity()
}

func (s *RunStorage) Subscribe(ctx context.Context) <-chan *Event {
	return s.notifier.Subscribe(ctx)
}

func (s *RunStorage) Clear() {
	s.buffer.Clear()
}

func (s *RunStorage) Close() {
	s.notifier.Close()
}

var _ EventStorage = (*RunStorage)(nil)
