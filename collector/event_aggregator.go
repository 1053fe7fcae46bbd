package collector

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

// EventAggregator groups events of a run and dispatches finished top-level
// events to registered storages. It does not store events itself.
type EventAggregator struct {
	storages   map[uuid.UUID]EventStorage
	openGroups map[uuid.UUID]*Event

	mu sync.RWMutex
}

// NewEventAggregator creates a new EventAggregator.
func NewEventAggregator() *EventAggregator {
	return &EventAggregator{
		storages:   make(map[uuid.UUID]EventStorage),
		openGroups: make(map[uuid.UUID]*Event),
	}
}

// RegisterStorage registers a storage with the aggregator.
func (a *EventAggregator) RegisterStorage(storage EventStorage) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.storages[storage.ID()] = storage
}

// UnregisterStorage removes a storage from the aggregator.
func (a *EventAggregator) UnregisterStorage(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.storages, id)
}

// GetStorage returns a storage by ID, or nil if not found.
func (a *EventAggregator) GetStorage(id uuid.UUID) EventStorage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.storages[id]
}

// ShouldCapture returns true if any registered storage wants events for the given context.
func (a *EventAggregator) ShouldCapture(ctx context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, storage := range a.storages {
		if storage.ShouldCapture(ctx) {
			return true
		}
	}
	return false
}

// StartEvent opens a new event and returns a context carrying its ID.
// Events collected with the returned context become its children.
// Call EndEvent with the returned context to finish it.
func (a *EventAggregator) StartEvent(ctx context.Context) context.Context {
	eventID := uuid.Must(uuid.NewV7())

	a.mu.Lock()
	defer a.mu.Unlock()

	evt := &Event{
		ID:    eventID,
		Start: time.Now(),
	}

	if outerGroupID, ok := groupIDFromContext(ctx); ok {
		evt.GroupID = &outerGroupID
	}

	a.openGroups[eventID] = evt

	return withGroupID(ctx, eventID)
}

// EndEvent finishes an event started with StartEvent. Top-level events are
// dispatched to matching storages, nested events are linked to their parent.
func (a *EventAggregator) EndEvent(ctx context.Context, data any) {
	groupID, ok := groupIDFromContext(ctx)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	evt := a.openGroups[groupID]
	if evt == nil {
		return
	}

	evt.Data = data
	evt.End = time.Now()
	evt.Size = evt.calculateSize()

	if evt.GroupID != nil {
		if parentEvt := a.openGroups[*evt.GroupID]; parentEvt != nil {
			parentEvt.Children = append(parentEvt.Children, evt)
		}
	}

	delete(a.openGroups, groupID)

	if evt.GroupID == nil {
		a.dispatchToStorages(ctx, evt)
	}
}

// CollectEvent creates and immediately completes an event.
func (a *EventAggregator) CollectEvent(ctx context.Context, data any) {
	now := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	evt := &Event{
		ID:    uuid.Must(uuid.NewV7()),
		Data:  data,
		Start: now,
		End:   now,
	}
	evt.Size = evt.calculateSize()

	if outerGroupID, ok := groupIDFromContext(ctx); ok {
		evt.GroupID = &outerGroupID
		if parentEvt := a.openGroups[outerGroupID]; parentEvt != nil {
			parentEvt.Children = append(parentEvt.Children, evt)
		}
	}

	if evt.GroupID == nil {
		a.dispatchToStorages(ctx, evt)
	}
}

// Must be called with lock held.
func (a *EventAggregator) dispatchToStorages(ctx context.Context, evt *Event) {
	for _, storage := range a.storages {
		if storage.ShouldCapture(ctx) {
			storage.Add(evt)
		}
	}
}

// Close closes all storages and drops open events.
func (a *EventAggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, storage := range a.storages {
		storage.Close()
	}
	a.storages = make(map[uuid.UUID]EventStorage)
	a.openGroups = make(map[uuid.UUID]*Event)
}

// Stats holds aggregated statistics across all storages
type Stats struct {
	TotalMemory  uint64
	EventCount   int
	StorageCount int
}

// CalculateStats computes stats across all storages, de-duplicating events by ID.
func (a *EventAggregator) CalculateStats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	var totalMemory uint64

	for _, storage := range a.storages {
		for _, event := range storage.GetEvents(storage.Capacity()) {
			if _, exists := seen[event.ID]; exists {
				continue
			}
			seen[event.ID] = struct{}{}
			for _, e := range event.Visit() {
				totalMemory += e.Size
			}
		}
	}

	return Stats{
		TotalMemory:  totalMemory,
		EventCount:   len(seen),
		StorageCount: len(a.storages),
	}
}
