// internal/books/service.go
package books

import (
	"context"

	"bookshelf/internal/history"
)

// Service defines the interface for the bookshelf service.
type Service interface {
	AddBook(ctx context.Context, p Payload) (string, error)
	ListBooks(ctx context.Context, f Filter) ([]Listing, error)
	GetBook(ctx context.Context, id string) (*Book, error)
	UpdateBook(ctx context.Context, id string, p Payload) error
	DeleteBook(ctx context.Context, id string) error
	History(ctx context.Context, id string) ([]history.Event, error)
	Changes(ctx context.Context, after int64, limit int) ([]history.Event, error)
}
