// internal/books/implementation.go
package books

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bookshelf/internal/history"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	idLength = 16

	defaultChangesLimit = 100
	maxChangesLimit     = 1000
)

const (
	opAdd     = "add"
	opList    = "list"
	opGet     = "get"
	opUpdate  = "update"
	opDelete  = "delete"
	opHistory = "history"
	opChanges = "changes"
)

// service implements the Service interface.
type service struct {
	// mu serialises whole operations so validate, lookup and mutate happen
	// as one step from the caller's point of view.
	mu     sync.RWMutex
	store  Store
	events *history.Log

	newID             func() (string, error)
	now               func() time.Time
	recomputeFinished bool

	tracer         trace.Tracer
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metrics        *metrics
	logger         *slog.Logger
}

// Option configures the service.
type Option func(*service)

// WithClock replaces the time source used for insertedAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithIDGenerator replaces the nanoid-based id generator.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *service) { s.newID = gen }
}

// WithRecomputeFinished makes updates recompute finished from the new
// pageCount and readPage. By default updates leave finished untouched.
func WithRecomputeFinished(on bool) Option {
	return func(s *service) { s.recomputeFinished = on }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) { s.meterProvider = mp }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) { s.tracerProvider = tp }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// NewService creates a new bookshelf service over the given store.
// A nil history log gets a fresh in-memory one.
func NewService(store Store, events *history.Log, opts ...Option) (Service, error) {
	if events == nil {
		events = history.NewLog()
	}
	s := &service{
		store:          store,
		events:         events,
		newID:          newBookID,
		now:            time.Now,
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := newMetrics(s.meterProvider)
	if err != nil {
		return nil, err
	}
	s.metrics = m
	s.tracer = s.tracerProvider.Tracer("bookshelf/books")
	return s, nil
}

func newBookID() (string, error) {
	return gonanoid.New(idLength)
}

// AddBook validates the payload and appends a new book to the store.
func (s *service) AddBook(ctx context.Context, p Payload) (id string, err error) {
	ctx, span := s.tracer.Start(ctx, "books.add")
	defer span.End()
	defer s.finish(ctx, span, opAdd, ErrAddFailed, &err)

	if verr := validatePayload(p); verr != nil {
		return "", verr
	}

	id, err = s.newID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	span.SetAttributes(attribute.String("book.id", id))

	now := s.now().UTC()
	book := Book{
		ID:         id,
		Finished:   p.PageCount == p.ReadPage,
		InsertedAt: now,
		UpdatedAt:  now,
	}
	book.apply(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Append(book)
	if _, _, ok := s.store.Find(id); !ok {
		return "", ErrAddFailed
	}

	s.metrics.addStored(ctx, 1)
	s.recordChange(ctx, id, EventBookAdded, book)
	s.logger.InfoContext(ctx, "book added", "book_id", id, "name", book.Name)
	return id, nil
}

// ListBooks returns the projection of every book matching the filter, in insertion order.
func (s *service) ListBooks(ctx context.Context, f Filter) (listings []Listing, err error) {
	ctx, span := s.tracer.Start(ctx, "books.list")
	defer span.End()
	defer s.finish(ctx, span, opList, ErrListFailed, &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.store.All()
	m := newMatcher(f)
	listings = make([]Listing, 0, len(all))
	for _, book := range all {
		if m.match(book) {
			listings = append(listings, book.listing())
		}
	}

	span.SetAttributes(
		attribute.Int("books.total", len(all)),
		attribute.Int("books.matched", len(listings)),
	)
	return listings, nil
}

// GetBook returns the full record for id.
func (s *service) GetBook(ctx context.Context, id string) (book *Book, err error) {
	ctx, span := s.tracer.Start(ctx, "books.get", trace.WithAttributes(attribute.String("book.id", id)))
	defer span.End()
	defer s.finish(ctx, span, opGet, ErrGetFailed, &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	found, _, ok := s.store.Find(id)
	if !ok {
		return nil, ErrBookNotFound
	}
	return &found, nil
}

// UpdateBook overwrites the mutable fields of an existing book.
func (s *service) UpdateBook(ctx context.Context, id string, p Payload) (err error) {
	ctx, span := s.tracer.Start(ctx, "books.update", trace.WithAttributes(attribute.String("book.id", id)))
	defer span.End()
	defer s.finish(ctx, span, opUpdate, ErrUpdateFailed, &err)

	if verr := validatePayload(p); verr != nil {
		return verr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, index, ok := s.store.Find(id)
	if !ok {
		return ErrIDNotFound
	}

	book.apply(p)
	book.UpdatedAt = s.now().UTC()
	if s.recomputeFinished {
		book.Finished = book.PageCount == book.ReadPage
	}

	if err := s.store.Replace(index, book); err != nil {
		return err
	}

	s.recordChange(ctx, id, EventBookUpdated, book)
	s.logger.InfoContext(ctx, "book updated", "book_id", id)
	return nil
}

// DeleteBook removes a book from the store.
func (s *service) DeleteBook(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "books.delete", trace.WithAttributes(attribute.String("book.id", id)))
	defer span.End()
	defer s.finish(ctx, span, opDelete, ErrDeleteFailed, &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	book, index, ok := s.store.Find(id)
	if !ok {
		return ErrIDNotFound
	}
	if err := s.store.Remove(index); err != nil {
		return err
	}

	s.metrics.addStored(ctx, -1)
	s.recordChange(ctx, id, EventBookRemoved, BookRemovedEvent{ID: book.ID, Name: book.Name})
	s.logger.InfoContext(ctx, "book deleted", "book_id", id)
	return nil
}

// History returns every recorded change for a book, oldest first. Deleted
// books keep their history.
func (s *service) History(ctx context.Context, id string) (events []history.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "books.history", trace.WithAttributes(attribute.String("book.id", id)))
	defer span.End()
	defer s.finish(ctx, span, opHistory, ErrHistoryFailed, &err)

	events, err = s.events.LoadEvents(ctx, id, 0, 0)
	if errors.Is(err, history.ErrAggregateNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Changes streams recorded changes across all books after the given sequence.
func (s *service) Changes(ctx context.Context, after int64, limit int) (events []history.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "books.changes")
	defer span.End()
	defer s.finish(ctx, span, opChanges, ErrHistoryFailed, &err)

	if limit <= 0 {
		limit = defaultChangesLimit
	}
	if limit > maxChangesLimit {
		limit = maxChangesLimit
	}
	return s.events.StreamEvents(ctx, after, limit)
}

// recordChange appends to the change history. Failures are logged only; the
// book operation has already taken effect.
func (s *service) recordChange(ctx context.Context, id, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode book history event", "book_id", id, "event", eventType, "error", err)
		return
	}
	version, err := s.events.GetCurrentVersion(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read book history version", "book_id", id, "error", err)
		return
	}
	event := history.Event{EventType: eventType, EventData: data}
	if err := s.events.AppendEvents(ctx, id, AggregateType, version, []history.Event{event}); err != nil {
		s.logger.WarnContext(ctx, "failed to record book history", "book_id", id, "event", eventType, "error", err)
	}
}

// finish is the fault boundary deferred by every operation. It turns a panic
// into the operation's fault, wraps unclassified errors in that fault, and
// records the outcome on the span and in metrics.
func (s *service) finish(ctx context.Context, span trace.Span, op string, fault error, errp *error) {
	if r := recover(); r != nil {
		s.logger.ErrorContext(ctx, "recovered from panic", "operation", op, "panic", r)
		*errp = fmt.Errorf("%w: panic: %v", fault, r)
	}

	_, status, _ := Classify(*errp)
	if status == StatusError && !errors.Is(*errp, fault) {
		*errp = fmt.Errorf("%w: %w", fault, *errp)
	}

	s.metrics.recordOperation(ctx, op, status)
	span.SetAttributes(attribute.String("outcome.status", status))
	if status == StatusError {
		s.logger.ErrorContext(ctx, "book operation failed", "operation", op, "error", *errp)
		span.RecordError(*errp)
		span.SetStatus(codes.Error, (*errp).Error())
	}
}
