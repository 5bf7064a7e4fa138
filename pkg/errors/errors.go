// Package errors provides structured error types for pairnull.
//
// Every failure the randomization engine and its adapters can report carries
// a machine-readable [Code], so the CLI and the HTTP API can map errors to
// exit messages and status codes without string matching.
//
// # Error Codes
//
//   - INVALID_*: input validation failures raised before any sampling
//   - INSUFFICIENT_VALID_AREA: the raster mask has nothing to sample
//   - CONVERGENCE_FAILURE: the try or time budget ran out
//   - DEGENERATE_DISTANCES: numerical problems found mid-search
//   - NOT_FOUND_*, INTERNAL_*: storage and unexpected failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "set %d has %d points", 1, n)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	err := errors.Wrap(errors.ErrCodeInvalidFormat, origErr, "read %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidCRS    Code = "INVALID_CRS"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidOption Code = "INVALID_OPTION"

	// Sampling and search errors
	ErrCodeInsufficientArea    Code = "INSUFFICIENT_VALID_AREA"
	ErrCodeConvergenceFailure  Code = "CONVERGENCE_FAILURE"
	ErrCodeDegenerateDistances Code = "DEGENERATE_DISTANCES"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
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

// IsInvalidInput reports whether err is any of the input validation codes.
// Reference-system mismatches count as invalid input.
func IsInvalidInput(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidCRS, ErrCodeInvalidFormat, ErrCodeInvalidOption:
		return true
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

// GetCodeOr is like GetCode but returns fallback for uncoded errors.
func GetCodeOr(err error, fallback Code) Code {
	if c := GetCode(err); c != "" {
		return c
	}
	return fallback
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

// ConvergenceError reports an exhausted search budget together with how
// far the search got.
type ConvergenceError struct {
	Tries     int     // Tries performed before giving up
	Deviation float64 // Worst per-category deviation at abort
	Tolerance float64 // Target tolerance
	Reason    string  // "max tries" or "timeout"
}

// Error implements the error interface.
func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: no convergence after %d tries (%s): deviation %.4g > tolerance %.4g",
		ErrCodeConvergenceFailure, e.Tries, e.Reason, e.Deviation, e.Tolerance)
}

// Code returns the error code for this error type.
func (e *ConvergenceError) Code() Code {
	return ErrCodeConvergenceFailure
}

// Unwrap lets Is(err, ErrCodeConvergenceFailure) match a ConvergenceError.
func (e *ConvergenceError) Unwrap() error {
	return &Error{Code: ErrCodeConvergenceFailure, Message: e.Reason}
}
