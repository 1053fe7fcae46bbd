package collector

import "sync"

// Identifiable is implemented by records stored in a LookupRingBuffer.
type Identifiable[T comparable] interface {
	Identity() T
}

// LookupRingBuffer is a thread-safe ring buffer that also indexes its records by identity.
// Records that fall out of the buffer are removed from the index.
type LookupRingBuffer[T Identifiable[S], S comparable] struct {
	buffer     []T
	lookup     map[S]*T
	size       uint64
	capacity   uint64
	writeIndex uint64
	mu         sync.RWMutex
}

// NewLookupRingBuffer creates a new ring buffer with the given capacity
func NewLookupRingBuffer[T Identifiable[S], S comparable](capacity uint64) *LookupRingBuffer[T, S] {
	if capacity == 0 {
		panic("capacity must be greater than 0")
	}

	return &LookupRingBuffer[T, S]{
		buffer:   make([]T, capacity),
		lookup:   make(map[S]*T, capacity),
		capacity: capacity,
	}
}

// Add adds an entry to the buffer
func (rb *LookupRingBuffer[T, S]) Add(record T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	index := rb.writeIndex % rb.capacity
	lostRecord := rb.buffer[index]

	rb.buffer[index] = record
	rb.writeIndex++

	if rb.size < rb.capacity {
		rb.size++
	} else {
		delete(rb.lookup, lostRecord.Identity())
	}

	rb.lookup[record.Identity()] = &rb.buffer[index]
}

// GetRecords returns the most recent n records, oldest first.
func (rb *LookupRingBuffer[T, S]) GetRecords(n uint64) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	count := min(n, rb.size)
	if count == 0 {
		return []T{}
	}

	result := make([]T, count)
	startIdx := rb.writeIndex - count
	for i := uint64(0); i < count; i++ {
		result[i] = rb.buffer[(startIdx+i)%rb.capacity]
	}

	return result
}

// Lookup returns the record with the given identity if it is still buffered.
func (rb *LookupRingBuffer[T, S]) Lookup(identity S) (T, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	record, found := rb.lookup[identity]
	if found {
		return *record, true
	}

	var empty T
	return empty, false
}

// Clear drops all records and the index.
func (rb *LookupRingBuffer[T, S]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := range rb.buffer {
		rb.buffer[i] = zero
	}
	rb.lookup = make(map[S]*T, rb.capacity)
	rb.size = 0
	rb.writeIndex = 0
}

// Size returns the current number of records in the buffer
func (rb *LookupRingBuffer[T, S]) Size() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// Capacity returns the maximum capacity of the buffer
func (rb *LookupRingBuffer[T, S]) Capacity() uint64 {
	return rb.capacity
}
