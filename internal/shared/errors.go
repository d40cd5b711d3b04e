package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks input that breaks a bookkeeping invariant.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a state conflict such as a tree cycle or a protected record.
	ErrConflict = errors.New("conflict")
	// ErrMalformed indicates a request body that could not be decoded at all.
	ErrMalformed = errors.New("malformed request")
	// ErrTransport indicates the remote store could not be reached or answered non-2xx.
	ErrTransport = errors.New("transport failure")
)

// ValidationError enumerates every violated rule for a single operation.
type ValidationError struct {
	Reasons []string
}

// NewValidationError builds a ValidationError from formatted reasons.
func NewValidationError(reasons ...string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Reasons) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(e.Reasons, "; "))
}

// Is allows errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Add appends a reason.
func (e *ValidationError) Add(format string, args ...any) {
	e.Reasons = append(e.Reasons, fmt.Sprintf(format, args...))
}

// Empty reports whether no reason was recorded.
func (e *ValidationError) Empty() bool { return e == nil || len(e.Reasons) == 0 }

// Err returns nil when no reason was recorded so callers can return it directly.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

// NotFoundError reports a missing record by kind and identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is allows errors.Is(err, ErrNotFound).
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports an operation rejected because of current state.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConflict.Error(), e.Reason)
}

// Is allows errors.Is(err, ErrConflict).
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// MalformedError reports a request body that is not valid JSON for the target shape.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformed.Error(), e.Reason)
}

// Is allows errors.Is(err, ErrMalformed).
func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

// TransportError wraps a failed call to the store.
type TransportError struct {
	Op         string
	StatusCode int
	Detail     string
	Reasons    []string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(ErrTransport.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is allows errors.Is(err, ErrTransport).
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }
