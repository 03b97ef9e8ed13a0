// internal/history/log.go
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrAggregateNotFound   = errors.New("aggregate not found")
	ErrInvalidVersion      = errors.New("invalid version number")
)

// Event is a single recorded change to an aggregate.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Sequence      int64           `json:"sequence"`
	AggregateID   string          `json:"aggregateId"`
	AggregateType string          `json:"aggregateType"`
	EventType     string          `json:"eventType"`
	EventData     json.RawMessage `json:"eventData"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Log is an append-only, in-memory event log with per-aggregate versions.
// Nothing is persisted; the log lives as long as the process.
type Log struct {
	mu       sync.RWMutex
	events   []Event
	versions map[string]int
	tracer   trace.Tracer
	now      func() time.Time
}

// NewLog creates an empty event log.
func NewLog() *Log {
	return &Log{
		versions: make(map[string]int),
		tracer:   otel.Tracer("bookshelf/history"),
		now:      time.Now,
	}
}

// AppendEvents atomically appends events with optimistic concurrency control.
// expectedVersion must equal the aggregate's current version (0 for a new aggregate).
func (l *Log) AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	_, span := l.tracer.Start(ctx, "history.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	currentVersion := l.versions[aggregateID]
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	createdAt := l.now().UTC()
	for i, event := range events {
		if event.EventType == "" {
			return fmt.Errorf("event %d: missing event type", i)
		}
	}

	for i, event := range events {
		version := expectedVersion + i + 1
		event.ID = uuid.New()
		event.Sequence = int64(len(l.events) + 1)
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = version
		event.CreatedAt = createdAt
		l.events = append(l.events, event)

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.sequence", event.Sequence),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}
	l.versions[aggregateID] = expectedVersion + len(events)

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// LoadEvents retrieves events for an aggregate with an optional version range.
// A toVersion of 0 means no upper bound.
func (l *Log) LoadEvents(ctx context.Context, aggregateID string, fromVersion, toVersion int) ([]Event, error) {
	_, span := l.tracer.Start(ctx, "history.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.versions[aggregateID]; !ok {
		return nil, ErrAggregateNotFound
	}

	var events []Event
	for _, event := range l.events {
		if event.AggregateID != aggregateID || event.Version < fromVersion {
			continue
		}
		if toVersion > 0 && event.Version > toVersion {
			continue
		}
		events = append(events, event)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// GetCurrentVersion returns the latest version for an aggregate, 0 if it has no events.
func (l *Log) GetCurrentVersion(ctx context.Context, aggregateID string) (int, error) {
	_, span := l.tracer.Start(ctx, "history.get_version",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
		),
	)
	defer span.End()

	l.mu.RLock()
	version := l.versions[aggregateID]
	l.mu.RUnlock()

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

// StreamEvents returns up to batchSize events with a sequence greater than fromSequence,
// across all aggregates, in append order.
func (l *Log) StreamEvents(ctx context.Context, fromSequence int64, batchSize int) ([]Event, error) {
	_, span := l.tracer.Start(ctx, "history.stream",
		trace.WithAttributes(
			attribute.Int64("from.sequence", fromSequence),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if fromSequence < 0 {
		fromSequence = 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	// Sequences are dense and start at 1, so the slice index is fromSequence.
	if fromSequence >= int64(len(l.events)) {
		span.SetAttributes(attribute.Int("events.streamed", 0))
		return []Event{}, nil
	}
	end := fromSequence + int64(batchSize)
	if end > int64(len(l.events)) {
		end = int64(len(l.events))
	}
	events := make([]Event, end-fromSequence)
	copy(events, l.events[fromSequence:end])

	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events, nil
}

// Len reports the total number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
