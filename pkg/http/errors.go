package http

import (
	"fmt"
	"net/http"
)

// AppError is an error that knows which HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the underlying cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func newAppError(code string, status int, format string, a ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, a...), Status: status}
}

// NotFoundErrorf builds a 404 error.
func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return newAppError("ERR_NOT_FOUND", http.StatusNotFound, format, a...)
}

// BadRequestErrorf builds a 400 error.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return newAppError("ERR_BAD_REQUEST", http.StatusBadRequest, format, a...)
}

// InternalErrorf builds a 500 error.
func InternalErrorf(format string, a ...interface{}) *AppError {
	return newAppError("ERR_INTERNAL", http.StatusInternalServerError, format, a...)
}
