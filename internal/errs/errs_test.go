package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestPredicates(t *testing.T) {
	v := NewValidation("fileName", "missing required field")
	n := NewNotFound("job", "j1")
	s := NewStorage("put", errors.New("disk full"))
	tr := NewTransform(errors.New("model unavailable"))

	if !IsValidation(v) || IsValidation(n) || IsValidation(tr) {
		t.Fatal("IsValidation misclassifies")
	}
	if !IsNotFound(n) || IsNotFound(v) || IsNotFound(s) {
		t.Fatal("IsNotFound misclassifies")
	}
	if !IsTransform(tr) || IsTransform(s) {
		t.Fatal("IsTransform misclassifies")
	}
}

func TestPredicates_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("process job: %w", NewNotFound("job", "j1"))
	if !IsNotFound(wrapped) {
		t.Fatal("wrapped not found error not detected")
	}
	wrapped = fmt.Errorf("pipeline: %w", NewValidation("fileType", "unsupported"))
	if !IsValidation(wrapped) {
		t.Fatal("wrapped validation error not detected")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	if !errors.Is(NewStorage("get", cause), cause) {
		t.Fatal("StorageError does not unwrap to its cause")
	}
	if !errors.Is(NewTransform(cause), cause) {
		t.Fatal("TransformError does not unwrap to its cause")
	}
}

func TestMessages(t *testing.T) {
	if got := NewValidation("fileSize", "exceeds limit").Error(); got != "invalid fileSize: exceeds limit" {
		t.Fatalf("validation message = %q", got)
	}
	if got := NewNotFound("job", "j1").Error(); got != `job "j1" not found` {
		t.Fatalf("not found message = %q", got)
	}
}
