package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a page lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPage is returned when a page would break the tree shape:
	// a missing locator, an unknown parent, or a depth that is not the
	// parent depth plus one.
	ErrInvalidPage = errors.New("invalid page")
)

// Error wraps every failure coming out of the Store. Op names the store
// operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}
