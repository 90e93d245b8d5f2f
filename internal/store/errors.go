package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is the controlled negative result of a lookup.
var ErrNotFound = errors.New("not found")

// ErrTaskFinalized is returned when the locked transition policy refuses a
// status change on an approved or rejected task.
var ErrTaskFinalized = errors.New("task already finalized")

// InvalidInputError reports a missing or malformed caller-supplied field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps any fault raised by the storage engine, including
// constraint and foreign-key violations.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ForeignKey reports whether the engine rejected the write on referential integrity.
func (e *StorageError) ForeignKey() bool {
	return e.Err != nil && strings.Contains(e.Err.Error(), "FOREIGN KEY constraint failed")
}

// IsInvalidInput reports whether err is (or wraps) an *InvalidInputError.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}

// fault wraps engine errors as *StorageError and passes the store's own
// typed errors through untouched.
func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTaskFinalized), IsInvalidInput(err):
		return err
	case errors.As(err, &se):
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// outcome labels an operation result for observers.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTaskFinalized):
		return "conflict"
	case IsInvalidInput(err):
		return "invalid"
	default:
		return "error"
	}
}
