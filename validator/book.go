// Package validator checks API input before it reaches the store.
package validator

import (
	"fmt"
	"time"

	"github.com/zcomx/zco-mx/model"
)

// ValidationError describes a rejected field. It renders as the msg of
// the structural error payload.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// ValidateBook checks the fields of a book being created or updated.
func ValidateBook(book *model.Book) error {
	if book.Name == "" {
		return invalid("name", "must not be blank")
	}
	if book.CreatorID <= 0 {
		return invalid("creator_id", "must identify a creator")
	}

	switch book.BookType {
	case model.BookTypeOneShot:
		if book.Number != 0 {
			return invalid("number", "one-shots are not numbered")
		}
	case model.BookTypeOngoing:
		if book.Number < 1 {
			return invalid("number", "must be 1 or greater")
		}
	case model.BookTypeMiniSeries:
		if book.Number < 1 {
			return invalid("number", "must be 1 or greater")
		}
		if book.OfNumber < book.Number {
			return invalid("of_number", "must be the series length")
		}
	default:
		return invalid("book_type", "must be one-shot, ongoing or mini-series")
	}

	if book.Year != 0 {
		if book.Year < 1970 || book.Year > time.Now().Year()+1 {
			return invalid("publication_year", "out of range")
		}
	}
	return nil
}

// ValidateCreator checks the fields of a creator being created.
func ValidateCreator(creator *model.Creator) error {
	if creator.Name == "" {
		return invalid("name", "must not be blank")
	}
	return nil
}
