package store

import (
	"errors"
	"fmt"
)

// ErrClosed is returned (wrapped in a StorageError) by operations invoked
// after Close.
var ErrClosed = errors.New("store is closed")

// StorageError indicates the underlying persistence is unavailable or
// corrupted. Fatal for the operation that triggered it; the tracker's write
// path suppresses it, read paths propagate it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError indicates bad caller input: an unrecognized primitive
// type, or a token report for a name that was never recorded.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Op, e.Reason)
}

// MigrationError indicates the schema is newer than this build understands
// or a migration step failed. Fatal at startup; never partially applied.
type MigrationError struct {
	FromVersion int
	ToVersion   int
	Err         error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration error (v%d -> v%d): %v", e.FromVersion, e.ToVersion, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
