// Package errors provides custom error types for the civicmap system.
// These errors enable programmatic error checking with errors.Is and errors.As
// and carry the context needed to log a skipped observation or a failed write.
package errors

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is is an alias for the standard library errors.Is.
var Is = errors.Is

// As is an alias for the standard library errors.As.
var As = errors.As

// Common sentinel errors for the civicmap system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrSchemaRepairExhausted indicates model output never validated within the retry budget
	ErrSchemaRepairExhausted = errors.New("schema repair exhausted")

	// ErrMissingAddress indicates an observation cannot be identity-resolved
	ErrMissingAddress = errors.New("missing required address")

	// ErrSourceFetch indicates a source document could not be fetched or processed
	ErrSourceFetch = errors.New("source fetch failed")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrReadOnly indicates an attempt to modify a read-only resource
	ErrReadOnly = errors.New("read only")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// SchemaRepairError is returned when model output still fails schema
// validation after the caller's bounded retries.
type SchemaRepairError struct {
	Source   string // Source document URL
	Attempts int
	Fragment string // Offending JSON fragment, truncated
}

// Error implements the error interface
func (e *SchemaRepairError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("schema repair exhausted for %s after %d attempts: %s", e.Source, e.Attempts, e.Fragment)
	}
	return fmt.Sprintf("schema repair exhausted after %d attempts: %s", e.Attempts, e.Fragment)
}

// Is implements errors.Is support
func (e *SchemaRepairError) Is(target error) bool {
	return target == ErrSchemaRepairExhausted
}

// NewSchemaRepairError creates a new SchemaRepairError
func NewSchemaRepairError(source string, attempts int, fragment string) *SchemaRepairError {
	const maxFragment = 200
	if len(fragment) > maxFragment {
		cut := maxFragment
		for cut > 0 && !utf8.RuneStart(fragment[cut]) {
			cut--
		}
		fragment = fragment[:cut] + "..."
	}
	return &SchemaRepairError{Source: source, Attempts: attempts, Fragment: fragment}
}

// MissingAddressError indicates an observation without an address.
type MissingAddressError struct {
	City          string
	ApplicationID string
}

// Error implements the error interface
func (e *MissingAddressError) Error() string {
	if e.ApplicationID != "" {
		return fmt.Sprintf("observation %s in %s has no address", e.ApplicationID, e.City)
	}
	return fmt.Sprintf("observation in %s has no address", e.City)
}

// Is implements errors.Is support
func (e *MissingAddressError) Is(target error) bool {
	return target == ErrMissingAddress
}

// SourceFetchError wraps a failure to download or process a source document.
type SourceFetchError struct {
	URL string
	Err error
}

// Error implements the error interface
func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetching source %s: %v", e.URL, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SourceFetchError) Is(target error) bool {
	return target == ErrSourceFetch
}

// NewSourceFetchError creates a new SourceFetchError
func NewSourceFetchError(url string, err error) *SourceFetchError {
	return &SourceFetchError{URL: url, Err: err}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", etc.
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// ResourceError represents an error during resource operations
type ResourceError struct {
	Operation string // "create", "update", "replace", "load"
	Resource  string // "entity", "store", "cache"
	ID        string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ResourceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %s", e.Operation, e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("failed to %s %s: %s", e.Operation, e.Resource, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError
func NewResourceError(operation, resource, id string, err error) *ResourceError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ResourceError{
		Operation: operation,
		Resource:  resource,
		ID:        id,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsSchemaRepairExhausted checks if model output never validated
func IsSchemaRepairExhausted(err error) bool {
	return errors.Is(err, ErrSchemaRepairExhausted)
}

// IsMissingAddress checks if an observation was rejected for lacking an address
func IsMissingAddress(err error) bool {
	return errors.Is(err, ErrMissingAddress)
}

// IsSourceFetch checks if an error came from fetching a source document
func IsSourceFetch(err error) bool {
	return errors.Is(err, ErrSourceFetch)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapResource wraps an error as a ResourceError
func WrapResource(operation, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	return NewResourceError(operation, resource, id, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}
