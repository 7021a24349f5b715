package core

import (
	"errors"
	"fmt"
)

// Error code constants
const (
	ErrCodeConfigLoadFailed = "CONFIG_LOAD_FAILED"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
	ErrCodeAPIRequestFailed = "API_REQUEST_FAILED"
	ErrCodeUploadFailed     = "UPLOAD_FAILED"
)

// AppError carries an error code, a human-readable message and an optional cause.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap supports errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorf creates a new application error with a formatted message.
func NewAppErrorf(code string, cause error, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// ErrConfigLoadFailed configuration load failure
func ErrConfigLoadFailed(configType string, cause error) *AppError {
	return NewAppErrorf(ErrCodeConfigLoadFailed, cause, "Failed to load %s configuration", configType)
}

// ErrInvalidConfig invalid configuration value
func ErrInvalidConfig(field string, reason string) *AppError {
	return NewAppErrorf(ErrCodeInvalidConfig, nil, "Invalid configuration for %s: %s", field, reason)
}

// ErrAPIRequestFailed wraps a failed call to the remote API.
func ErrAPIRequestFailed(operation string, cause error) *AppError {
	return NewAppErrorf(ErrCodeAPIRequestFailed, cause, "%s failed", operation)
}

// ErrUploadFailed wraps a failed training file upload.
func ErrUploadFailed(path string, cause error) *AppError {
	return NewAppErrorf(ErrCodeUploadFailed, cause, "Failed to upload %s", path)
}

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// APIError is a non-2xx response from the remote API.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
	RequestID  string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.Code != "" {
		return fmt.Sprintf("api error (status %d, code %s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, msg)
}
