// Package errors provides the typed errors shared by the Lineage packages.
//
// Only I/O-class failures abort an ingest; everything else the core finds is
// reported as an issue.Issue. The types here cover the remaining hard failures:
// unreadable sources, undecodable serialized bundles, patch conflicts, unknown
// exporters and bad configuration values.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates an entity, snapshot or blob was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists indicates an entity or snapshot already exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnsupported indicates an unsupported format, encoding or algorithm
	ErrUnsupported = errors.New("unsupported")
	// ErrClosed indicates a read from a source that was already closed
	ErrClosed = errors.New("source closed")
)

// NotFoundError represents a missing entity, snapshot or blob
type NotFoundError struct {
	Resource string // Kind of resource (e.g., "individual", "snapshot")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ConflictError reports an operation that would create a second entity
// with an id that is already taken.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Resource, e.ID)
}

func (e *ConflictError) Unwrap() error {
	return ErrAlreadyExists
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents a failure of the underlying byte source
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "open")
	Path      string // File path, empty for in-memory and stream sources
	Line      int    // Last complete line before the failure, 0 if unknown
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("failed to %s %s after line %d: %v", e.Operation, e.Path, e.Line, e.Err)
	case e.Path != "":
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("failed to %s after line %d: %v", e.Operation, e.Line, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a decoding failure of a serialized artifact
// (bundle JSON, diff JSON, configuration files).
type ParseError struct {
	Format  string // Format being parsed (e.g., "bundle", "diff", "config")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported exporter, encoding or algorithm
type UnsupportedError struct {
	Feature string // Feature that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewConflict creates a ConflictError
func NewConflict(resource, id string) *ConflictError {
	return &ConflictError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError wrapping err
func NewParse(format, path string, err error) *ParseError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: msg,
		Err:     err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
