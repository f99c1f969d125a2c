package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors. Every AppError wraps exactly one of these as its kind.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrDependency   = errors.New("dependency failure")
	ErrValidation   = errors.New("validation failed")
)

// Stable error codes surfaced to clients.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeDuplicateJobID        = "DUPLICATE_JOB_ID"
	CodeDuplicateEmployeeCode = "DUPLICATE_EMPLOYEE_CODE"
	CodeWeakCredential        = "WEAK_CREDENTIAL"
	CodeNoRoleSelected        = "NO_ROLE_SELECTED"
	CodeNoRoleAssigned        = "NO_ROLE_ASSIGNED"
	CodeProcessFanoutFailed   = "PROCESS_FANOUT_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeForbidden             = "FORBIDDEN"
	CodeDependency            = "DEPENDENCY_ERROR"
	CodeConfig                = "CONFIG_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func ValidationErrorf(code, format string, args ...any) error {
	return NewAppError(code, fmt.Sprintf(format, args...), ErrValidation)
}

func ConflictErrorf(code, format string, args ...any) error {
	return NewAppError(code, fmt.Sprintf(format, args...), ErrConflict)
}

func NotFoundErrorf(format string, args ...any) error {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), ErrNotFound)
}

func UnauthorizedError(message string) error {
	return NewAppError(CodeUnauthenticated, message, ErrUnauthorized)
}

func ForbiddenError(code, message string) error {
	return NewAppError(code, message, ErrForbidden)
}

// DependencyError marks a failed call to the backing store or identity provider.
func DependencyError(code, message string, cause error) error {
	if cause == nil {
		return NewAppError(code, message, ErrDependency)
	}
	return NewAppError(code, message, fmt.Errorf("%w: %w", ErrDependency, cause))
}

// CodeOf returns the AppError code carried by err, or a generic code.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeDependency
}

// MessageOf returns the human-readable part of err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// HTTPStatus maps an error kind onto a response status. Unknown errors are 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
