package clients

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"bookshelf/internal/books"
	"bookshelf/internal/config"
	"bookshelf/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T, mutate ...func(*config.Config)) *BooksClient {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	s, err := server.New(cfg, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return NewBooksClient(ts.URL, nil)
}

func payload(name string, pageCount, readPage int) books.Payload {
	return books.Payload{
		Name:      &name,
		Year:      2010,
		Author:    "John Doe",
		Publisher: "Dicoding Indonesia",
		PageCount: pageCount,
		ReadPage:  readPage,
	}
}

func TestBookLifecycle(t *testing.T) {
	ctx := context.Background()
	c := setupClient(t)

	id, err := c.AddBook(ctx, payload("Pride and Prejudice", 400, 400))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	book, err := c.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Pride and Prejudice", book.Name)
	assert.True(t, book.Finished)
	assert.Equal(t, book.InsertedAt, book.UpdatedAt)

	listings, err := c.ListBooks(ctx, books.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []books.Listing{{ID: id, Name: "Pride and Prejudice", Publisher: "Dicoding Indonesia"}}, listings)

	require.NoError(t, c.UpdateBook(ctx, id, payload("Pride and Prejudice", 432, 100)))
	updated, err := c.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 432, updated.PageCount)
	assert.Equal(t, book.InsertedAt, updated.InsertedAt)
	assert.True(t, updated.Finished, "finished keeps its create-time value")

	require.NoError(t, c.DeleteBook(ctx, id))
	_, err = c.GetBook(ctx, id)
	assert.ErrorIs(t, err, books.ErrBookNotFound)
	assert.True(t, IsNotFound(err))

	events, err := c.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, books.EventBookRemoved, events[2].EventType)

	changes, err := c.Changes(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, changes, 2)
}

func TestErrorsSurviveTheWire(t *testing.T) {
	ctx := context.Background()
	c := setupClient(t)

	_, err := c.AddBook(ctx, books.Payload{PageCount: 1})
	assert.ErrorIs(t, err, books.ErrNameRequired)

	_, err = c.AddBook(ctx, payload("Too Far", 1, 2))
	assert.ErrorIs(t, err, books.ErrReadPageExceedsPageCount)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, books.StatusFail, apiErr.Status)

	assert.ErrorIs(t, c.UpdateBook(ctx, "missing", payload("A", 1, 1)), books.ErrIDNotFound)
	assert.ErrorIs(t, c.DeleteBook(ctx, "missing"), books.ErrIDNotFound)

	_, err = c.History(ctx, "missing")
	assert.ErrorIs(t, err, books.ErrBookNotFound)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	c := setupClient(t)

	reading := payload("Belajar Dicoding", 10, 5)
	reading.Reading = true
	_, err := c.AddBook(ctx, reading)
	require.NoError(t, err)
	_, err = c.AddBook(ctx, payload("Les Misérables", 10, 10))
	require.NoError(t, err)

	name := "miserables"
	listings, err := c.ListBooks(ctx, books.Filter{Name: &name})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Les Misérables", listings[0].Name)

	yes := true
	listings, err = c.ListBooks(ctx, books.Filter{Reading: &yes})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Belajar Dicoding", listings[0].Name)
}

func TestConcurrentAddsKeepIDsUnique(t *testing.T) {
	ctx := context.Background()
	c := setupClient(t)

	const n = 25
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]struct{}{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := c.AddBook(ctx, payload(fmt.Sprintf("Concurrent %d", i), 10, 1))
			if err != nil {
				t.Errorf("add %d: %v", i, err)
				return
			}
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, n)
	listings, err := c.ListBooks(ctx, books.Filter{})
	require.NoError(t, err)
	assert.Len(t, listings, n)
}

func TestRateLimitedClient(t *testing.T) {
	ctx := context.Background()
	c := setupClient(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 1
	})

	_, err := c.AddBook(ctx, payload("First", 1, 1))
	require.NoError(t, err)

	_, err = c.AddBook(ctx, payload("Second", 1, 1))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "too many requests", apiErr.Message)
}
