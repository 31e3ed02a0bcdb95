// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrSessionNotFound indicates a session checkpoint was not found by the given identifier.
	ErrSessionNotFound = errors.New("session not found")

	// ErrActionNotFound indicates a pending action was not found by the given identifier.
	ErrActionNotFound = errors.New("pending action not found")

	// ErrItemNotFound indicates a work item was not found by the given identifier.
	ErrItemNotFound = errors.New("work item not found")

	// ErrTaskNotFound indicates a task was not found by the given identifier.
	ErrTaskNotFound = errors.New("task not found")

	// ErrDraftNotFound indicates a draft was not found by the given identifier.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrSessionTerminal indicates a write was attempted against a completed or errored session.
	ErrSessionTerminal = errors.New("session is terminal")
)

// StoreError wraps storage errors with the operation and record identifier.
type StoreError struct {
	Op      string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	Key     string // Record identifier if applicable
	Err     error  // Underlying error
	Message string // Additional context message
}

func (e *StoreError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for %s: %s (%v)", e.Op, e.Key, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{
		Op:  op,
		Key: key,
		Err: err,
	}
}

// IsSessionNotFound checks if an error indicates a session was not found.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsActionNotFound checks if an error indicates a pending action was not found.
func IsActionNotFound(err error) bool {
	return errors.Is(err, ErrActionNotFound)
}

// IsItemNotFound checks if an error indicates a work item was not found.
func IsItemNotFound(err error) bool {
	return errors.Is(err, ErrItemNotFound)
}

// IsTaskNotFound checks if an error indicates a task was not found.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsDraftNotFound checks if an error indicates a draft was not found.
func IsDraftNotFound(err error) bool {
	return errors.Is(err, ErrDraftNotFound)
}
