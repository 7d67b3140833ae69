// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the core error taxonomy
var (
	ErrNotFound             = errors.New("resource not found")
	ErrValidationFailed     = errors.New("validation failed")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrStorageFailure       = errors.New("storage failure")
	ErrDeviceUnreachable    = errors.New("device unreachable")
	ErrAuthFailed           = errors.New("authentication failed")
	ErrPushFailed           = errors.New("config push failed")
	ErrAIUnavailable        = errors.New("ai provider unavailable")
)

// NotFoundError identifies a missing entity by kind and id
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not-found error for an entity
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// StorageError wraps a transient storage-layer failure
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return ErrStorageFailure
}

// NewStorageError wraps err as a storage failure for operation op
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// SSHError records an SSH-layer failure with the underlying error class
// preserved so job results can report it verbatim.
type SSHError struct {
	Device string
	Phase  string // connect, auth, exec, push
	Class  string // underlying error type name
	Err    error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s failed on %s: %v", e.Phase, e.Device, e.Err)
}

func (e *SSHError) Unwrap() error {
	switch e.Phase {
	case "auth":
		return ErrAuthFailed
	case "push":
		return ErrPushFailed
	default:
		return ErrDeviceUnreachable
	}
}

// NewSSHError creates an SSH error, capturing the error's dynamic type name
func NewSSHError(device, phase string, err error) *SSHError {
	return &SSHError{
		Device: device,
		Phase:  phase,
		Class:  fmt.Sprintf("%T", err),
		Err:    err,
	}
}
