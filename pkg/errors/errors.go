package errors

import (
	"errors"
	"fmt"
)

// Error codes for the progress engine.
const (
	// Domain errors
	ErrCodeChallengeNotFound   = "CHALLENGE_NOT_FOUND"
	ErrCodeAchievementNotFound = "ACHIEVEMENT_NOT_FOUND"

	// Storage errors
	ErrCodeDatabaseError = "DATABASE_ERROR"
	ErrCodeStorageError  = "STORAGE_ERROR"
	ErrCodeSyncFailed    = "SYNC_FAILED"

	// Config errors
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeConfigNotFound = "CONFIG_NOT_FOUND"

	// Validation errors
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
)

// ProgressError represents an error raised by the progress engine.
type ProgressError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProgressError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProgressError) Unwrap() error {
	return e.Err
}

// NewProgressError creates a new ProgressError.
func NewProgressError(code, message string, err error) *ProgressError {
	return &ProgressError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// HasCode reports whether err (or anything it wraps) is a ProgressError with the given code.
func HasCode(err error, code string) bool {
	var pe *ProgressError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// ErrChallengeNotFound returns an error when a challenge ID is not in the catalog.
func ErrChallengeNotFound(challengeID string) *ProgressError {
	return &ProgressError{
		Code:    ErrCodeChallengeNotFound,
		Message: fmt.Sprintf("challenge not found: %s", challengeID),
	}
}

// ErrAchievementNotFound returns an error when an achievement ID is not in the catalog.
func ErrAchievementNotFound(achievementID string) *ProgressError {
	return &ProgressError{
		Code:    ErrCodeAchievementNotFound,
		Message: fmt.Sprintf("achievement not found: %s", achievementID),
	}
}

// ErrDatabaseError wraps remote store errors.
func ErrDatabaseError(operation string, err error) *ProgressError {
	return &ProgressError{
		Code:    ErrCodeDatabaseError,
		Message: fmt.Sprintf("database error during %s", operation),
		Err:     err,
	}
}

// ErrStorageError wraps local key-value store errors.
func ErrStorageError(operation string, err error) *ProgressError {
	return &ProgressError{
		Code:    ErrCodeStorageError,
		Message: fmt.Sprintf("local storage error during %s", operation),
		Err:     err,
	}
}

// ErrSyncFailed wraps a remote mirror write that exhausted its retries.
func ErrSyncFailed(op string, err error) *ProgressError {
	return &ProgressError{
		Code:    ErrCodeSyncFailed,
		Message: fmt.Sprintf("remote sync failed for %s", op),
		Err:     err,
	}
}

// ErrConfigNotFound returns an error when the catalog file cannot be read.
func ErrConfigNotFound(path string, err error) *ProgressError {
	return &ProgressError{
		Code:    ErrCodeConfigNotFound,
		Message: fmt.Sprintf("failed to read catalog file %s", path),
		Err:     err,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(reason string, err error) *ProgressError {
	return &ProgressError{
		Code:    ErrCodeConfigInvalid,
		Message: fmt.Sprintf("invalid configuration: %s", reason),
		Err:     err,
	}
}

// ErrInvalidInput returns an error for a request that could not be decoded.
func ErrInvalidInput(reason string, err error) *ProgressError {
	return &ProgressError{
		Code:    ErrCodeInvalidInput,
		Message: reason,
		Err:     err,
	}
}

// ErrValidationFailed returns a validation error.
func ErrValidationFailed(field, reason string) *ProgressError {
	return &ProgressError{
		Code:    ErrCodeValidationFailed,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
	}
}
