// internal/chaos/store.go
package chaos

import (
	"fmt"

	"bookshelf/internal/books"
)

// Store wraps a books.Store and injects the faults enabled on its Injector.
type Store struct {
	books.Store
	injector *Injector
}

func NewStore(inner books.Store, injector *Injector) *Store {
	return &Store{Store: inner, injector: injector}
}

func (s *Store) Find(id string) (books.Book, int, bool) {
	if s.injector.Fires(FaultPanicFind) {
		panic(fmt.Sprintf("chaos: %s on book %s", FaultPanicFind, id))
	}
	return s.Store.Find(id)
}

func (s *Store) Append(book books.Book) {
	if s.injector.Fires(FaultPanicAppend) {
		panic(fmt.Sprintf("chaos: %s on book %s", FaultPanicAppend, book.ID))
	}
	if s.injector.Fires(FaultDropAppend) {
		return
	}
	s.Store.Append(book)
}
