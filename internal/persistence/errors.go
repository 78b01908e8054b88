package persistence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
)

// ValidationError reports caller supplied data that violates a store invariant.
type ValidationError struct {
	FieldErrors map[string]string
	Err         error
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the underlying engine error, if any.
func (v *ValidationError) Unwrap() error {
	if v == nil {
		return nil
	}
	return v.Err
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Add records a field level validation error.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// StorageError wraps a database engine fault such as I/O failure or corruption.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err with the failing operation name.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorKind maps store errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var sErr *StorageError
	if errors.As(err, &sErr) {
		return "storage"
	}
	return "unexpected"
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// IsStorage reports whether err is, or wraps, a StorageError.
func IsStorage(err error) bool {
	var sErr *StorageError
	return errors.As(err, &sErr)
}
