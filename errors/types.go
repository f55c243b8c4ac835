package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Watcher errors
	ErrCodeWatcherInit ErrorCode = "WATCHER_INIT"

	// Build errors
	ErrCodeBuildLaunch       ErrorCode = "BUILD_LAUNCH"
	ErrCodeBuildFailure      ErrorCode = "BUILD_FAILURE"
	ErrCodeBuildTimeout      ErrorCode = "BUILD_TIMEOUT"
	ErrCodeDaemonUnavailable ErrorCode = "DAEMON_UNAVAILABLE"

	// Artifact and load errors
	ErrCodeArtifactMissing ErrorCode = "ARTIFACT_MISSING"
	ErrCodeLoadFailed      ErrorCode = "LOAD_ERROR"
	ErrCodeNoPlugin        ErrorCode = "NO_PLUGIN"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// ReloadError represents a structured error with context
type ReloadError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *ReloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ReloadError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *ReloadError) WithDetail(key string, value interface{}) *ReloadError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *ReloadError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new ReloadError
func New(code ErrorCode, message string) *ReloadError {
	return &ReloadError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a ReloadError
func Wrap(err error, code ErrorCode, message string) *ReloadError {
	return &ReloadError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is reports whether any error in err's chain is a ReloadError with the given code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var reloadErr *ReloadError
		if !stderrors.As(err, &reloadErr) {
			return false
		}
		if reloadErr.Code == code {
			return true
		}
		err = reloadErr.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	var reloadErr *ReloadError
	if stderrors.As(err, &reloadErr) {
		return reloadErr.Code
	}
	return ""
}

// Detail returns a detail value of the outermost ReloadError in err's chain.
func Detail(err error, key string) (interface{}, bool) {
	var reloadErr *ReloadError
	if !stderrors.As(err, &reloadErr) || reloadErr.Details == nil {
		return nil, false
	}
	v, ok := reloadErr.Details[key]
	return v, ok
}
