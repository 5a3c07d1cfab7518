package errors

import (
	"fmt"
)

// Exit codes used by the command line tools
const (
	CodeOK       = 0
	CodeInternal = 1
	CodeUsage    = 2
	CodeNotFound = 3
)

// AppError represents a standardized application error
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"` // Internal error for logging
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped error to errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NotFound creates a not found error
func NotFound(message string) *AppError {
	return New(CodeNotFound, message, nil)
}

// Usage creates an error for invalid command line input
func Usage(message string, err error) *AppError {
	return New(CodeUsage, message, err)
}

// Internal creates an error for failures unrelated to input
func Internal(err error) *AppError {
	return New(CodeInternal, "internal error", err)
}
