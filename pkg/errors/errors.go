// Package errors defines common error types for the application.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown = "UNKNOWN_ERROR"

	// Domain error kinds (spec §7).
	CodeMissingUniversalMetadata = "MISSING_UNIVERSAL_METADATA"
	CodeShapeMismatch            = "SHAPE_MISMATCH"
	CodeReplicationViolation     = "REPLICATION_VIOLATION"
	CodeIOFailure                = "IO_FAILURE"
	CodeClassifierAmbiguity      = "CLASSIFIER_AMBIGUITY"

	// Ambient error kinds.
	CodeConfigError  = "CONFIG_ERROR"
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotFound     = "NOT_FOUND"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances, one per error kind from spec §7.
var (
	ErrMissingUniversalMetadata = New(CodeMissingUniversalMetadata, "checkpoint is missing the universal-metadata descriptor")
	ErrShapeMismatch            = New(CodeShapeMismatch, "merged fragments do not reconstruct the manifest shape")
	ErrReplicationViolation     = New(CodeReplicationViolation, "replicated shards disagree across ranks")
	ErrIOFailure                = New(CodeIOFailure, "checkpoint I/O failure")
	ErrClassifierAmbiguity      = New(CodeClassifierAmbiguity, "parameter name matches more than one merge class")
	ErrConfigError              = New(CodeConfigError, "configuration error")
	ErrInvalidInput             = New(CodeInvalidInput, "invalid input")
	ErrNotFound                 = New(CodeNotFound, "resource not found")
)

// IsMissingUniversalMetadata checks if the error is a missing-metadata error.
func IsMissingUniversalMetadata(err error) bool {
	return errors.Is(err, ErrMissingUniversalMetadata)
}

// IsShapeMismatch checks if the error is a shape-mismatch error.
func IsShapeMismatch(err error) bool {
	return errors.Is(err, ErrShapeMismatch)
}

// IsReplicationViolation checks if the error is a replication-violation error.
func IsReplicationViolation(err error) bool {
	return errors.Is(err, ErrReplicationViolation)
}

// IsIOFailure checks if the error is an I/O failure.
func IsIOFailure(err error) bool {
	return errors.Is(err, ErrIOFailure)
}

// IsClassifierAmbiguity checks if the error is a classifier-ambiguity error.
func IsClassifierAmbiguity(err error) bool {
	return errors.Is(err, ErrClassifierAmbiguity)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
