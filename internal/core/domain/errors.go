package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a lookup for a document id that does not
	// exist in the collection.
	ErrNotFound = errors.New("document not found")

	// ErrPermissionDenied indicates the backend rejected the call
	// for lack of access rights.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidFilter indicates a query used an operator or field the
	// adapters cannot translate.
	ErrInvalidFilter = errors.New("invalid query filter")

	// ErrClosed indicates the backend handle has been closed.
	ErrClosed = errors.New("backend is closed")
)

// StoreError wraps a failure from a collection operation with enough
// context to log and diagnose it.
type StoreError struct {
	Err        error
	Op         string
	Collection string
	Attempts   int
}

func (e *StoreError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s failed for collection %s after %d attempts: %v", e.Op, e.Collection, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed for collection %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op, collection string, attempts int, err error) *StoreError {
	return &StoreError{
		Op:         op,
		Collection: collection,
		Attempts:   attempts,
		Err:        err,
	}
}

// WatchError wraps a realtime subscription failure.
type WatchError struct {
	Err        error
	Collection string
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch failed for collection %s: %v", e.Collection, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

// IsPermissionDenied reports whether err carries an access-denial from
// the backend.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsNotFound reports whether err is a missing-document failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
