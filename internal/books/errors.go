// internal/books/errors.go
package books

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidPayload           = errors.New("invalid request payload")
	ErrInvalidQuery             = errors.New("invalid query parameter")
	ErrNameRequired             = errors.New("name must be filled")
	ErrReadPageExceedsPageCount = errors.New("readPage cannot exceed pageCount")
	ErrNegativeCount            = errors.New("pageCount and readPage must not be negative")

	ErrBookNotFound = errors.New("book not found")
	ErrIDNotFound   = errors.New("id not found")

	ErrAddFailed     = errors.New("book failed to be added")
	ErrUpdateFailed  = errors.New("book failed to be updated")
	ErrDeleteFailed  = errors.New("book failed to be deleted")
	ErrListFailed    = errors.New("books failed to be listed")
	ErrGetFailed     = errors.New("book failed to be retrieved")
	ErrHistoryFailed = errors.New("history failed to be retrieved")
)

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

var validationErrors = []error{ErrInvalidPayload, ErrInvalidQuery, ErrNameRequired, ErrReadPageExceedsPageCount, ErrNegativeCount}

var notFoundErrors = []error{ErrBookNotFound, ErrIDNotFound}

// Classify maps an operation error onto its result code, status and the
// sentinel whose text is shown to the caller. Anything that is neither a
// validation nor a not-found error is an internal fault.
func Classify(err error) (int, string, error) {
	if err == nil {
		return http.StatusOK, StatusSuccess, nil
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, StatusFail, target
		}
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound, StatusFail, target
		}
	}
	return http.StatusInternalServerError, StatusError, err
}
