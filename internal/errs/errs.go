package errs

import (
	"errors"
	"fmt"
)

// ValidationError indicates a missing or invalid required field. At the API
// boundary it maps to 400; inside job processing it causes a Failed
// transition rather than an unhandled error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for a field.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError indicates a referenced resource does not exist. Maps to 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NewNotFound builds a NotFoundError.
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// StorageError wraps a failed blob or record store operation. It is not
// recovered; inside job processing it causes Processing to become Failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorage wraps err as a StorageError for the given operation.
func NewStorage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// TransformError indicates the content transform call failed or returned
// unusable output. It is recovered locally via fallback content and never
// fails the job.
type TransformError struct {
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform: %v", e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// NewTransform wraps err as a TransformError.
func NewTransform(err error) error {
	return &TransformError{Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// IsTransform reports whether err is a TransformError.
func IsTransform(err error) bool {
	var t *TransformError
	return errors.As(err, &t)
}
