// internal/books/store.go
package books

import (
	"fmt"
	"sync"
)

// Store is the ordered record container. It holds no validation logic.
type Store interface {
	Find(id string) (Book, int, bool)
	Append(book Book)
	Replace(index int, book Book) error
	Remove(index int) error
	All() []Book
	Len() int
}

// MemoryStore keeps books in insertion order in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	books []Book
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{books: make([]Book, 0)}
}

// Find returns the book with the given id and its position. Lookup is a linear scan.
func (s *MemoryStore) Find(id string) (Book, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, book := range s.books {
		if book.ID == id {
			return book, i, true
		}
	}
	return Book{}, -1, false
}

func (s *MemoryStore) Append(book Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = append(s.books, book)
}

func (s *MemoryStore) Replace(index int, book Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.books) {
		return fmt.Errorf("replace: index %d out of range [0,%d)", index, len(s.books))
	}
	s.books[index] = book
	return nil
}

func (s *MemoryStore) Remove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.books) {
		return fmt.Errorf("remove: index %d out of range [0,%d)", index, len(s.books))
	}
	s.books = append(s.books[:index], s.books[index+1:]...)
	return nil
}

// All returns a copy of every book in insertion order.
func (s *MemoryStore) All() []Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Book, len(s.books))
	copy(out, s.books)
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books)
}
