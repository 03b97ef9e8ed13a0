package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Message string `json:"message"`
}

func newTestEvent(t testing.TB, msg string) Event {
	t.Helper()
	data, err := json.Marshal(testEvent{Message: msg})
	require.NoError(t, err)
	return Event{EventType: "TestEvent", EventData: data}
}

func TestAppendAndLoadEvents(t *testing.T) {
	ctx := context.Background()
	log := NewLog()

	require.NoError(t, log.AppendEvents(ctx, "book-1", "book", 0, []Event{newTestEvent(t, "first")}))
	require.NoError(t, log.AppendEvents(ctx, "book-1", "book", 1, []Event{newTestEvent(t, "second"), newTestEvent(t, "third")}))
	require.NoError(t, log.AppendEvents(ctx, "book-2", "book", 0, []Event{newTestEvent(t, "other")}))

	events, err := log.LoadEvents(ctx, "book-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, event := range events {
		assert.Equal(t, i+1, event.Version)
		assert.Equal(t, "book-1", event.AggregateID)
		assert.Equal(t, "book", event.AggregateType)
		assert.NotEmpty(t, event.ID)
	}
	assert.NotEqual(t, events[0].ID, events[1].ID)

	version, err := log.GetCurrentVersion(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.Equal(t, 4, log.Len())
}

func TestLoadEventsVersionRange(t *testing.T) {
	ctx := context.Background()
	log := NewLog()
	for i := 0; i < 5; i++ {
		require.NoError(t, log.AppendEvents(ctx, "book-1", "book", i, []Event{newTestEvent(t, fmt.Sprintf("event %d", i))}))
	}

	events, err := log.LoadEvents(ctx, "book-1", 2, 4)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, 2, events[0].Version)
	assert.Equal(t, 4, events[2].Version)
}

func TestLoadEventsUnknownAggregate(t *testing.T) {
	_, err := NewLog().LoadEvents(context.Background(), "missing", 0, 0)
	assert.ErrorIs(t, err, ErrAggregateNotFound)
}

func TestAppendEventsConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	log := NewLog()
	require.NoError(t, log.AppendEvents(ctx, "book-1", "book", 0, []Event{newTestEvent(t, "first")}))

	err := log.AppendEvents(ctx, "book-1", "book", 0, []Event{newTestEvent(t, "stale")})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	err = log.AppendEvents(ctx, "book-1", "book", -1, []Event{newTestEvent(t, "negative")})
	assert.ErrorIs(t, err, ErrInvalidVersion)

	assert.Equal(t, 1, log.Len())
}

func TestAppendEventsRejectsUntypedEvents(t *testing.T) {
	ctx := context.Background()
	log := NewLog()
	err := log.AppendEvents(ctx, "book-1", "book", 0, []Event{newTestEvent(t, "ok"), {EventData: json.RawMessage(`{}`)}})
	require.Error(t, err)
	assert.Equal(t, 0, log.Len())
}

func TestConcurrentAppendsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	log := NewLog()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := log.AppendEvents(ctx, "book-1", "book", 0, []Event{newTestEvent(t, fmt.Sprintf("racer %d", i))}); err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successCount, "only one append at version 0 should succeed")
}

func TestStreamEvents(t *testing.T) {
	ctx := context.Background()
	log := NewLog()
	for i := 0; i < 5; i++ {
		require.NoError(t, log.AppendEvents(ctx, fmt.Sprintf("book-%d", i), "book", 0, []Event{newTestEvent(t, "added")}))
	}

	first, err := log.StreamEvents(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(1), first[0].Sequence)
	assert.Equal(t, int64(2), first[1].Sequence)

	rest, err := log.StreamEvents(ctx, first[1].Sequence, 10)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, "book-4", rest[2].AggregateID)

	empty, err := log.StreamEvents(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = log.StreamEvents(ctx, 0, 0)
	assert.Error(t, err)
}

func BenchmarkAppendEvents(b *testing.B) {
	ctx := context.Background()
	log := NewLog()
	event := newTestEvent(b, "bench")

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := log.AppendEvents(ctx, fmt.Sprintf("book-%d", i), "book", 0, []Event{event}); err != nil {
			b.Fatalf("AppendEvents failed: %v", err)
		}
	}
}

func BenchmarkLoadEvents(b *testing.B) {
	ctx := context.Background()
	log := NewLog()
	for i := 0; i < 10; i++ {
		if err := log.AppendEvents(ctx, "book-1", "book", i, []Event{newTestEvent(b, fmt.Sprintf("event %d", i))}); err != nil {
			b.Fatalf("failed to setup events for benchmark: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := log.LoadEvents(ctx, "book-1", 0, 0); err != nil {
			b.Fatalf("LoadEvents failed: %v", err)
		}
	}
}
