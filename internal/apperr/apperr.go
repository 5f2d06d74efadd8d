// Package apperr holds the error kinds shared by the controllers and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrBusy is returned when an operation is already in flight for the same control.
	ErrBusy = errors.New("operation already in progress")
	// ErrValidation is returned when local input blocks a request before it is sent.
	ErrValidation = errors.New("invalid input")
	// ErrCancelled is returned when the user declines a confirmation.
	ErrCancelled = errors.New("cancelled by user")
	// ErrRemote is returned when the image service call did not complete.
	ErrRemote = errors.New("image service call failed")
)

// AppError pairs a user-facing message with the underlying cause.
type AppError struct {
	Kind    error
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation returns a validation error with msg.
func Validation(msg string) *AppError {
	return &AppError{Kind: ErrValidation, Message: msg}
}

// Remote wraps a failed service call.
func Remote(msg string, err error) *AppError {
	return &AppError{Kind: ErrRemote, Message: msg, Err: err}
}

// StatusCode maps an error to the HTTP status the front end answers with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrCancelled):
		return http.StatusOK
	case errors.Is(err, ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
