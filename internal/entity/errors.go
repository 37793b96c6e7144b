package entity

import (
	"errors"
	"fmt"

	"github.com/roach88/threadkeep/internal/model"
)

// PersistenceError records a durable read or write failure.
type PersistenceError struct {
	Kind model.Kind
	// Op is "load", "put", "delete" or "clear".
	Op string
	// ID is the affected entity, empty for collection-wide operations.
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("persist %s %s %s: %v", e.Kind, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("persist %s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceError reports whether err is a PersistenceError.
// Uses errors.As to handle wrapped errors.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// ErrEmptyID is returned when an entity without an id is written.
var ErrEmptyID = errors.New("entity has no id")
