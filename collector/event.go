package collector

import (
	"iter"
	"time"

	"github.com/gofrs/uuid"
)

// Sizer is implemented by event data types to report their memory size
type Sizer interface {
	Size() uint64
}

// Event is a collected unit of work. A scenario run is a top-level event,
// its steps, console lines, log records and HTTP calls are children.
type Event struct {
	ID uuid.UUID

	GroupID *uuid.UUID

	Data any

	Start time.Time
	End   time.Time

	Children []*Event

	// Size is the calculated memory size of this event (excluding children)
	Size uint64
}

// Identity returns the event ID for lookup in a LookupRingBuffer.
func (e *Event) Identity() uuid.UUID {
	return e.ID
}

// Duration of the event.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

func (e *Event) calculateSize() uint64 {
	const baseEventSize = 100 // UUID, pointers, time.Time fields, slice header
	size := uint64(baseEventSize)
	if sizer, ok := e.Data.(Sizer); ok {
		size += sizer.Size()
	}
	return size
}

// Visit iterates the event and all its descendants depth first.
func (e *Event) Visit() iter.Seq2[uuid.UUID, *Event] {
	return func(yield func(uuid.UUID, *Event) bool) {
		e.visitInternal(yield)
	}
}

func (e *Event) visitInternal(yield func(uuid.UUID, *Event) bool) bool {
	if !yield(e.ID, e) {
		return false
	}
	for _, child := range e.Children {
		if !child.visitInternal(yield) {
			return false
		}
	}
	return true
}

// ChildrenOf returns the data of all direct children that have type T.
func ChildrenOf[T any](e *Event) []T {
	var result []T
	for _, child := range e.Children {
		if data, ok := child.Data.(T); ok {
			result = append(result, data)
		}
	}
	return result
}
