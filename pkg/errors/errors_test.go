package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds_AreDistinct(t *testing.T) {
	codes := map[string]bool{}
	sentinels := map[error]bool{}
	for _, k := range kinds {
		assert.False(t, codes[k.code], k.code)
		assert.False(t, sentinels[k.sentinel], k.code)
		codes[k.code] = true
		sentinels[k.sentinel] = true
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err      *AppError
		sentinel error
		code     string
		status   int
	}{
		{NotFound("shop 12"), ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{InvalidInput("bad form"), ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
		{Unauthorized("token expired"), ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
		{Forbidden("agents only"), ErrForbidden, "FORBIDDEN", http.StatusForbidden},
		{Conflict("visit exists"), ErrConflict, "CONFLICT", http.StatusConflict},
		{TooManyRequests("slow down"), ErrTooManyRequests, "TOO_MANY_REQUESTS", http.StatusTooManyRequests},
		{InvalidCredentials("Incorrect phone or password"), ErrInvalidCredentials, "INVALID_CREDENTIALS", http.StatusUnauthorized},
		{ValidationFailure("Please select a shop"), ErrValidation, "VALIDATION_FAILED", http.StatusBadRequest},
		{SubmissionFailure(http.StatusUnprocessableEntity, "shop closed"), ErrSubmission, "SUBMISSION_FAILED", http.StatusUnprocessableEntity},
		{SubmissionFailure(0, "no response"), ErrSubmission, "SUBMISSION_FAILED", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.err.Message, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.status, HTTPStatus(fmt.Errorf("wrapped: %w", tt.err)))
			assert.Equal(t, tt.code, Code(tt.err))
			assert.Contains(t, tt.err.Error(), tt.err.Message)
		})
	}
}

func TestTransient_MatchesSentinelAndCause(t *testing.T) {
	err := Transient(context.DeadlineExceeded)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)

	assert.False(t, IsTransient(InvalidCredentials("no")))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("nil map write")
	err := Internal(cause)
	assert.Equal(t, "an internal error occurred", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL_ERROR", Code(err))
}

func TestAppError_ErrorString(t *testing.T) {
	assert.Equal(t, "FORBIDDEN: agents only: forbidden", Forbidden("agents only").Error())
	assert.Equal(t, "X: y", (&AppError{Code: "X", Message: "y"}).Error())
	assert.Nil(t, (&AppError{}).Unwrap())
}

func TestBareSentinels(t *testing.T) {
	for _, k := range kinds {
		wrapped := fmt.Errorf("context: %w", k.sentinel)
		assert.Equal(t, k.status, HTTPStatus(wrapped), k.code)
		assert.Equal(t, k.code, Code(wrapped))
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("mystery")))
	assert.Equal(t, "INTERNAL_ERROR", Code(errors.New("mystery")))
}

func TestNewError_UnregisteredPanics(t *testing.T) {
	require.Panics(t, func() { newError(errors.New("stray"), "x") })
}
