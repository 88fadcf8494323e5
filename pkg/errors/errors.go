// Package errors provides structured error types for the eftrich application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI commands and pipeline stages
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: configuration and input validation failures, raised
//     before any work is scheduled
//   - RASTER_* / *_MISMATCH: I/O and alignment failures at a running
//     pipeline stage
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidRadius, "radius %g rounds to zero pixels", r)
//	if errors.Is(err, errors.ErrCodeInvalidRadius) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeRasterIO, origErr, "open %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration errors, detected before scheduling
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidRadius  Code = "INVALID_RADIUS"
	ErrCodeRadiusTooLarge Code = "RADIUS_TOO_LARGE"
	ErrCodeInvalidPattern Code = "INVALID_PATTERN"
	ErrCodeInvalidKernel  Code = "INVALID_KERNEL"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"

	// Stage errors, surfaced through the task graph
	ErrCodeRasterIO       Code = "RASTER_IO"
	ErrCodeExtentMismatch Code = "EXTENT_MISMATCH"
	ErrCodeKernelMismatch Code = "KERNEL_MISMATCH"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsConfig reports whether err is a configuration error, i.e. one that is
// raised synchronously before any work is scheduled.
func IsConfig(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidRadius, ErrCodeRadiusTooLarge,
		ErrCodeInvalidPattern, ErrCodeInvalidKernel, ErrCodeInvalidConfig:
		return true
	}
	return false
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
