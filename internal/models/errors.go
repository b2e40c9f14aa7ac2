package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("feedback not found")
	// ErrDuplicate is the constraint-violation sub-kind of storage failures.
	ErrDuplicate = errors.New("duplicate feedback record")
	// ErrStatusConflict means the record left the expected status before the write landed.
	ErrStatusConflict = errors.New("feedback status changed concurrently")
)

// ValidationError rejects bad input at the boundary and names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// StorageError wraps failures of the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
