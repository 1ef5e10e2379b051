package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an AppError with the failure class it belongs to.
type Kind string

const (
	KindRequest      Kind = "request"
	KindStorageRead  Kind = "storage_read"
	KindStorageWrite Kind = "storage_write"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

// AppError represents a standardized application error
type AppError struct {
	Kind    Kind   `json:"kind"`
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

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(kind Kind, code int, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Request creates a 400 error for malformed input.
func Request(message string, err error) *AppError {
	return New(KindRequest, http.StatusBadRequest, message, err)
}

// StorageRead creates a 500 error for a failed read that is not a miss.
func StorageRead(err error) *AppError {
	return New(KindStorageRead, http.StatusInternalServerError, "storage read failed", err)
}

// StorageWrite creates a 500 error for a failed write.
func StorageWrite(err error) *AppError {
	return New(KindStorageWrite, http.StatusInternalServerError, "storage write failed", err)
}

// Conflict creates a 409 error.
func Conflict(message string, err error) *AppError {
	return New(KindConflict, http.StatusConflict, message, err)
}

// Unauthorized creates a 401 error
func Unauthorized(message string) *AppError {
	return New(KindUnauthorized, http.StatusUnauthorized, message, nil)
}

// Forbidden creates a 403 error
func Forbidden(message string) *AppError {
	return New(KindForbidden, http.StatusForbidden, message, nil)
}

// Internal creates a 500 error
func Internal(err error) *AppError {
	return New(KindInternal, http.StatusInternalServerError, "Internal Server Error", err)
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok && appErr.Code != 0 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
