// internal/books/validate.go
package books

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Rule precedence when several fields fail at once: a missing name is
// reported first, then readPage over pageCount, then negative counts.
var ruleRank = map[string]int{
	"required": 0,
	"ltefield": 1,
	"gte":      2,
}

var ruleErrors = map[string]error{
	"required": ErrNameRequired,
	"ltefield": ErrReadPageExceedsPageCount,
	"gte":      ErrNegativeCount,
}

func validatePayload(p Payload) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	best := ""
	for _, fe := range fieldErrs {
		rank, ok := ruleRank[fe.Tag()]
		if !ok {
			continue
		}
		if best == "" || rank < ruleRank[best] {
			best = fe.Tag()
		}
	}
	if best == "" {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return ruleErrors[best]
}
