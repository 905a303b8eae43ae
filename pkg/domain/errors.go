package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when no record exists for a session identifier.
// It is an expected outcome, callers usually react by starting a fresh session.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidIdentifier is returned when an operation receives an empty identifier.
var ErrInvalidIdentifier = errors.New("invalid session identifier")

// Storage failure kinds. A *StorageError matches exactly one of these via errors.Is.
var (
	ErrStorageWrite  = errors.New("storage write failure")
	ErrStorageRead   = errors.New("storage read failure")
	ErrStorageDelete = errors.New("storage delete failure")
)

// Storage operations reported by StorageError.
const (
	OpWrite  = "write"
	OpRead   = "read"
	OpDelete = "delete"
)

// StorageError reports a failure of the underlying medium and the operation that caused it.
type StorageError struct {
	// Op is one of OpWrite, OpRead or OpDelete.
	Op string

	// ID is the session identifier involved, if any.
	ID string

	// Err is the underlying error.
	Err error
}

// NewStorageError wraps err as a medium failure for op.
func NewStorageError(op, id string, err error) *StorageError {
	return &StorageError{Op: op, ID: id, Err: err}
}

func (e *StorageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches the failure kind for the error's operation.
func (e *StorageError) Is(target error) bool {
	switch target {
	case ErrStorageWrite:
		return e.Op == OpWrite
	case ErrStorageRead:
		return e.Op == OpRead
	case ErrStorageDelete:
		return e.Op == OpDelete
	}
	return false
}

// IsStorageFailure reports whether err is a medium failure of any kind.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageWrite) || errors.Is(err, ErrStorageRead) || errors.Is(err, ErrStorageDelete)
}
