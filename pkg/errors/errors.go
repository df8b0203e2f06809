// Package errors defines the error taxonomy shared by the backend client,
// the session and the console. Every AppError matches exactly one sentinel
// with errors.Is, which is what callers branch on.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrTooManyRequests = errors.New("too many requests")

	// ErrInvalidCredentials marks a login rejected by the backend with a client error.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTransient marks a failure that says nothing about the validity of
	// the caller's credentials: network errors, timeouts, 5xx, open breaker.
	ErrTransient = errors.New("transient failure")

	// ErrValidation marks a locally detected precondition violation.
	ErrValidation = errors.New("validation failed")

	// ErrSubmission marks a non-2xx response from a create endpoint.
	ErrSubmission = errors.New("submission failed")
)

// kind ties a sentinel to the code and status it is reported with.
type kind struct {
	sentinel error
	code     string
	status   int
}

// kinds is ordered: HTTPStatus reports the first sentinel an error matches.
var kinds = []kind{
	{ErrInvalidCredentials, "INVALID_CREDENTIALS", http.StatusUnauthorized},
	{ErrTransient, "TRANSIENT_FAILURE", http.StatusServiceUnavailable},
	{ErrValidation, "VALIDATION_FAILED", http.StatusBadRequest},
	{ErrSubmission, "SUBMISSION_FAILED", http.StatusBadGateway},
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{ErrConflict, "CONFLICT", http.StatusConflict},
	{ErrTooManyRequests, "TOO_MANY_REQUESTS", http.StatusTooManyRequests},
}

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
		}
	}
	panic(fmt.Sprintf("errors: unregistered sentinel %v", sentinel))
}

func NotFound(message string) *AppError     { return newError(ErrNotFound, message) }
func InvalidInput(message string) *AppError { return newError(ErrInvalidInput, message) }
func Unauthorized(message string) *AppError { return newError(ErrUnauthorized, message) }
func Forbidden(message string) *AppError    { return newError(ErrForbidden, message) }
func Conflict(message string) *AppError     { return newError(ErrConflict, message) }

func TooManyRequests(message string) *AppError { return newError(ErrTooManyRequests, message) }

// InvalidCredentials is a login the backend refused with a 4xx.
func InvalidCredentials(message string) *AppError {
	return newError(ErrInvalidCredentials, message)
}

// ValidationFailure is a precondition the client checked before any I/O.
func ValidationFailure(message string) *AppError {
	return newError(ErrValidation, message)
}

// Transient wraps a network-level or server-side failure. The returned
// error matches both ErrTransient and the wrapped cause.
func Transient(err error) *AppError {
	e := newError(ErrTransient, "the server could not be reached")
	e.Err = fmt.Errorf("%w: %w", ErrTransient, err)
	return e
}

// SubmissionFailure is a rejected create request. The upstream status is
// kept; zero means no response was read and maps to 502.
func SubmissionFailure(status int, message string) *AppError {
	e := newError(ErrSubmission, message)
	if status != 0 {
		e.Status = status
	}
	return e
}

// Internal hides err behind a generic message.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// IsTransient reports whether err is a transient failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Code returns the wire code for err, or INTERNAL_ERROR.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.code
		}
	}
	return "INTERNAL_ERROR"
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}
