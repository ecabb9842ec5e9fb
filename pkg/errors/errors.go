// Package errors provides structured error types for poet.
//
// Every failure in the add pipeline surfaces as an [*Error] carrying a
// machine-readable [Code]. Internal layers only return errors; the command
// line entry point is the single place that turns them into a report.
//
// # Error Codes
//
// Codes are grouped by the stage that produces them:
//   - Specifier parsing: UNKNOWN_PACKAGE_FORMAT, INVALID_VERSION_CONSTRAINT
//   - Resolution: INVALID_VERSION_RESOLVED, NO_MATCHING_VERSION, PACKAGE_NOT_FOUND,
//     NETWORK_ERROR, VCS_ERROR
//   - Manifest: MANIFEST_IO, MANIFEST_DESERIALIZE, MANIFEST_SERIALIZE, ADD_CONFLICT
//   - Environment: ENVIRONMENT_STATE
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownPackageFormat, "unknown package format: %q", raw)
//	if errors.Is(err, errors.ErrCodeUnknownPackageFormat) {
//	    // Handle parse error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeManifestIO, origErr, "read %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Specifier errors
	ErrCodeUnknownPackageFormat     Code = "UNKNOWN_PACKAGE_FORMAT"
	ErrCodeInvalidVersionConstraint Code = "INVALID_VERSION_CONSTRAINT"
	ErrCodeInvalidPackage           Code = "INVALID_PACKAGE"

	// Resolution errors
	ErrCodeInvalidVersionResolved Code = "INVALID_VERSION_RESOLVED"
	ErrCodeNoMatchingVersion      Code = "NO_MATCHING_VERSION"
	ErrCodePackageNotFound        Code = "PACKAGE_NOT_FOUND"
	ErrCodeNetwork                Code = "NETWORK_ERROR"
	ErrCodeVCS                    Code = "VCS_ERROR"

	// Manifest errors
	ErrCodeManifestIO          Code = "MANIFEST_IO"
	ErrCodeManifestDeserialize Code = "MANIFEST_DESERIALIZE"
	ErrCodeManifestSerialize   Code = "MANIFEST_SERIALIZE"
	ErrCodeAddConflict         Code = "ADD_CONFLICT"

	// Environment errors
	ErrCodeEnvironmentState Code = "ENVIRONMENT_STATE"

	// Configuration and scaffolding errors
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeUnknownLicense Code = "UNKNOWN_LICENSE"

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

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message followed by the cause, without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Message, UserMessage(e.Cause))
		}
		return e.Message
	}
	return err.Error()
}

// ConflictError reports dependency names that already exist in the target table.
// It is always wrapped in an *Error with [ErrCodeAddConflict].
type ConflictError struct {
	Names []string // Conflicting dependency names, sorted
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("already present: %v", e.Names)
}
