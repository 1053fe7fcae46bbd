package collector_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/pageprobe/collector"
)

type testRecord struct {
	ID   string
	Data string
}

func (r *testRecord) Identity() string {
	return r.ID
}

func TestLookupRingBuffer_Basic(t *testing.T) {
	rb := collector.NewLookupRingBuffer[*testRecord, string](3)

	assert.Equal(t, uint64(0), rb.Size())
	assert.Equal(t, uint64(3), rb.Capacity())

	rec1 := &testRecord{ID: "1", Data: "data1"}
	rb.Add(rec1)

	found, exists := rb.Lookup("1")
	require.True(t, exists)
	assert.Same(t, rec1, found)

	_, exists = rb.Lookup("missing")
	assert.False(t, exists)
}

func TestLookupRingBuffer_OverwriteRemovesFromLookup(t *testing.T) {
	rb := collector.NewLookupRingBuffer[*testRecord, string](3)

	for i := 1; i <= 4; i++ {
		rb.Add(&testRecord{ID: fmt.Sprintf("%d", i)})
	}

	_, exists := rb.Lookup("1")
	assert.False(t, exists, "evicted record must not be found")

	for _, id := range []string{"2", "3", "4"} {
		_, exists := rb.Lookup(id)
		assert.True(t, exists, "record %s should be found", id)
	}

	records := rb.GetRecords(3)
	require.Len(t, records, 3)
	assert.Equal(t, "2", records[0].ID)
	assert.Equal(t, "4", records[2].ID)
}

func TestLookupRingBuffer_Clear(t *testing.T) {
	rb := collector.NewLookupRingBuffer[*testRecord, string](3)
	rb.Add(&testRecord{ID: "1"})
	rb.Add(&testRecord{ID: "2"})

	rb.Clear()

	assert.Equal(t, uint64(0), rb.Size())
	assert.Empty(t, rb.GetRecords(3))
	_, exists := rb.Lookup("1")
	assert.False(t, exists)

	rb.Add(&testRecord{ID: "3"})
	found, exists := rb.Lookup("3")
	require.True(t, exists)
	assert.Equal(t, "3", found.ID)
}

func TestLookupRingBuffer_LargeCapacity(t *testing.T) {
	rb := collector.NewLookupRingBuffer[*testRecord, string](1000)

	for i := 0; i < 1500; i++ {
		rb.Add(&testRecord{ID: fmt.Sprintf("%d", i)})
	}

	assert.Equal(t, uint64(1000), rb.Size())
	_, exists := rb.Lookup("499")
	assert.False(t, exists)
	_, exists = rb.Lookup("500")
	assert.True(t, exists)
}
