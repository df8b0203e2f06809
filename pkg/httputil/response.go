package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/fieldsales/pkg/errors"
	"github.com/utafrali/fieldsales/pkg/logger"
	"github.com/utafrali/fieldsales/pkg/validator"
)

// Response is the JSON envelope returned by every console endpoint.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// RedirectResponse is the body sent alongside a 303 so JSON clients that
// do not follow redirects still learn the target.
type RedirectResponse struct {
	Location string `json:"location"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the standard envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// Redirect answers with 303 See Other and the target in both the Location
// header and the body.
func Redirect(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	WriteJSON(w, http.StatusSeeOther, Response{Data: RedirectResponse{Location: location}})
}

// bareMessages are the client-safe texts for errors that arrive without
// an AppError wrapper.
var bareMessages = map[string]string{
	"NOT_FOUND":         "resource not found",
	"TRANSIENT_FAILURE": "backend temporarily unavailable",
	"INTERNAL_ERROR":    "an internal error occurred",
}

// describe maps err to a status and a body that is safe to show a client.
func describe(err error) (int, ErrorResponse) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_FAILED",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Status, ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	}

	code := apperrors.Code(err)
	msg, ok := bareMessages[code]
	if !ok {
		msg = err.Error()
	}
	return apperrors.HTTPStatus(err), ErrorResponse{Code: code, Message: msg}
}

// WriteError writes the error envelope for err. Failures at or above 500
// are logged with the request-scoped logger, or fallback when the request
// carries none.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	status, body := describe(err)
	body.RequestID = logger.CorrelationIDFromContext(r.Context())

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		level := slog.LevelWarn
		if body.Code == "INTERNAL_ERROR" {
			level = slog.LevelError
		}
		l.Log(r.Context(), level, "request failed",
			slog.String("code", body.Code),
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: &body})
}

// WriteValidationError writes a 400 for a request body that failed to
// decode or validate.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteError(w, r, err, nil)
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{
			Code:      "INVALID_INPUT",
			Message:   err.Error(),
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}
