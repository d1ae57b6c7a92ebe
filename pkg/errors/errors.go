package errors

import (
	"fmt"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeUsage         ErrorCode = "USAGE_ERROR"
	ErrCodeVersion       ErrorCode = "VERSION_REQUEST"
	ErrCodeResource      ErrorCode = "RESOURCE_ACQUISITION_ERROR"
	ErrCodeSignaling     ErrorCode = "SIGNALING_ERROR"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// Process exit codes. ExitUsage follows the flag-parsing convention
// for malformed command lines.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// AppError represents an application error with code and context
type AppError struct {
	Code     ErrorCode
	Message  string
	ExitCode int
	Cause    error
	Context  map[string]interface{}
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, exitCode int) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		ExitCode: exitCode,
		Context:  make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, exitCode int) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		ExitCode: exitCode,
		Cause:    err,
		Context:  make(map[string]interface{}),
	}
}

// NewConfigurationError reports a rejected command line or config file.
func NewConfigurationError(message string) *AppError {
	return NewAppError(ErrCodeConfiguration, message, ExitUsage)
}

// NewUsageError reports an incomplete invocation, such as a missing
// subcommand, after usage text has been shown.
func NewUsageError(message string) *AppError {
	return NewAppError(ErrCodeUsage, message, ExitFailure)
}

// NewVersionRequest reports that the version banner was printed and the
// process should stop successfully.
func NewVersionRequest() *AppError {
	return NewAppError(ErrCodeVersion, "version requested", ExitOK)
}

// NewResourceError reports a failure to acquire a startup resource
// (log sink, capture device, serial port). Always fatal.
func NewResourceError(message string, cause error) *AppError {
	return WrapError(cause, ErrCodeResource, message, ExitFailure)
}

// NewSignalingError reports a fault inside a signaling backend. These are
// never fatal to the process; callers log them and drop the connection.
func NewSignalingError(message string, cause error) *AppError {
	return WrapError(cause, ErrCodeSignaling, message, ExitFailure)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, ExitFailure)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	type unwrapper interface {
		Unwrap() error
	}

	if u, ok := err.(unwrapper); ok {
		return GetAppError(u.Unwrap())
	}

	return nil
}

// ExitCodeOf maps an error to the process exit code it calls for.
// nil maps to ExitOK, unrecognized errors to ExitFailure.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr.ExitCode
	}
	return ExitFailure
}
