package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/fieldsales/pkg/errors"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 1 << 20

// StatusError is returned by the circuit breaker client when the backend
// answers with a 5xx status. The body is kept so callers can surface the
// server's message.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, strings.TrimSpace(string(e.Body)))
}

// ErrorMessage extracts a human-readable message from an error response
// body. It understands the shapes the field-sales backend produces:
//
//	{"error": {"code": "...", "message": "..."}}
//	{"error": "..."}
//	{"message": "..."}
//	{"detail": "..."}
//
// It returns "" when no message can be found.
func ErrorMessage(body []byte) string {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	for _, key := range []string{"message", "detail", "error"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var text string
		if json.Unmarshal(raw, &text) == nil && text != "" {
			return text
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		// FastAPI-style validation errors: {"detail": [{"msg": "..."}]}
		var list []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 && list[0].Msg != "" {
			return list[0].Msg
		}
	}
	return ""
}

// errorCode extracts the structured error code, if any.
func errorCode(body []byte) string {
	var downstream struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &downstream) == nil && downstream.Error != nil {
		return downstream.Error.Code
	}
	return ""
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an appropriate AppError. If the body carries a recognizable message
// it is preserved; otherwise the raw body is used.
//
// The caller should only invoke this when resp.StatusCode indicates an error
// (i.e., not 2xx). The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	message := ErrorMessage(bodyBytes)
	if message == "" {
		message = strings.TrimSpace(string(bodyBytes))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return mapDownstreamError(resp.StatusCode, errorCode(bodyBytes), message, serviceName)
}

// mapDownstreamError translates a backend HTTP status code and error code
// into an AppError that preserves the error semantics.
func mapDownstreamError(status int, code, message, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(qualifiedMsg)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		e := apperrors.InvalidInput(qualifiedMsg)
		e.Status = status
		return e
	case status == http.StatusConflict:
		return apperrors.Conflict(qualifiedMsg)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualifiedMsg)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualifiedMsg)
	case status == http.StatusTooManyRequests:
		return apperrors.TooManyRequests(qualifiedMsg)
	case status >= 500:
		return apperrors.Transient(&StatusError{Status: status, Body: []byte(message)})
	default:
		if code == "" {
			code = "UPSTREAM_ERROR"
		}
		return &apperrors.AppError{
			Code:    code,
			Message: qualifiedMsg,
			Status:  status,
		}
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
