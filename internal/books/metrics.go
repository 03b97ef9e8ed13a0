// internal/books/metrics.go
package books

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "bookshelf/books"

type metrics struct {
	operations metric.Int64Counter
	stored     metric.Int64UpDownCounter
}

func newMetrics(provider metric.MeterProvider) (*metrics, error) {
	meter := provider.Meter(meterName)

	operations, err := meter.Int64Counter("bookshelf.books.operations",
		metric.WithDescription("Book operations by operation and outcome status"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operations counter: %w", err)
	}

	stored, err := meter.Int64UpDownCounter("bookshelf.books.stored",
		metric.WithDescription("Number of books currently held in the store"),
		metric.WithUnit("{book}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stored counter: %w", err)
	}

	return &metrics{operations: operations, stored: stored}, nil
}

func (m *metrics) recordOperation(ctx context.Context, op, status string) {
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("status", status),
	))
}

func (m *metrics) addStored(ctx context.Context, delta int64) {
	m.stored.Add(ctx, delta)
}
