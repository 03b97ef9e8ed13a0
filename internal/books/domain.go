// internal/books/domain.go
package books

import (
	"time"
)

// Book is a single bookshelf record.
type Book struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Year       int       `json:"year" yaml:"year"`
	Author     string    `json:"author" yaml:"author"`
	Summary    string    `json:"summary" yaml:"summary"`
	Publisher  string    `json:"publisher" yaml:"publisher"`
	PageCount  int       `json:"pageCount" yaml:"pageCount"`
	ReadPage   int       `json:"readPage" yaml:"readPage"`
	Finished   bool      `json:"finished" yaml:"finished"`
	Reading    bool      `json:"reading" yaml:"reading"`
	InsertedAt time.Time `json:"insertedAt" yaml:"insertedAt"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Listing is the reduced view of a book returned when listing.
type Listing struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Publisher string `json:"publisher" yaml:"publisher"`
}

// Payload carries the caller-supplied fields for create and update.
// Name is a pointer so an absent name can be told apart from an empty one.
type Payload struct {
	Name      *string `json:"name" validate:"required"`
	Year      int     `json:"year"`
	Author    string  `json:"author"`
	Summary   string  `json:"summary"`
	Publisher string  `json:"publisher"`
	PageCount int     `json:"pageCount" validate:"gte=0"`
	ReadPage  int     `json:"readPage" validate:"ltefield=PageCount,gte=0"`
	Reading   bool    `json:"reading"`
}

func (b Book) listing() Listing {
	return Listing{ID: b.ID, Name: b.Name, Publisher: b.Publisher}
}

// apply overwrites the mutable fields of b with the payload.
func (b *Book) apply(p Payload) {
	b.Name = *p.Name
	b.Year = p.Year
	b.Author = p.Author
	b.Summary = p.Summary
	b.Publisher = p.Publisher
	b.PageCount = p.PageCount
	b.ReadPage = p.ReadPage
	b.Reading = p.Reading
}

// Event types recorded in the change history.
const (
	AggregateType    = "book"
	EventBookAdded   = "BookAdded"
	EventBookUpdated = "BookUpdated"
	EventBookRemoved = "BookRemoved"
)

// BookRemovedEvent is recorded when a book is deleted.
type BookRemovedEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
