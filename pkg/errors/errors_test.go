package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewSearchError(CodeNoValidCombination, "nothing scored")
	assert.Equal(t, "NO_VALID_COMBINATION: nothing scored", err.Error())

	err.WithDetails("evaluated 81 candidates")
	assert.Equal(t, "NO_VALID_COMBINATION: nothing scored - evaluated 81 candidates", err.Error())
}

func TestAppErrorSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"configuration", NewConfigurationError("bad"), ErrInvalidConfiguration},
		{"no valid combination", NewSearchError(CodeNoValidCombination, "none"), ErrNoValidCombination},
		{"privacy", NewPrivacyError("leak"), ErrPrivacyViolation},
		{"report not found", NewStorageError(CodeReportNotFound, "gone"), ErrReportNotFound},
		{"out of range", NewValidationError(CodeOutOfRange, "age"), ErrInvalidInputData},
		{"wrapped", fmt.Errorf("outer: %w", NewInternalError("boom")), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Is(tt.err, tt.sentinel))
			assert.False(t, Is(tt.err, ErrSearchCancelled))
		})
	}
}

func TestAppErrorMatchesByTypeAndCode(t *testing.T) {
	err := fmt.Errorf("context: %w", NewSearchError(CodeSearchCancelled, "stopped"))

	assert.True(t, Is(err, NewSearchError(CodeSearchCancelled, "other message")))
	assert.False(t, Is(err, NewValidationError(CodeSearchCancelled, "other type")))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := WrapError(cause, ErrorTypeInternal, CodeInternalError, "export failed")

	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, Is(err, cause))
	assert.Equal(t, 500, err.HTTPStatus)
}

func TestWithContext(t *testing.T) {
	err := NewValidationError(CodeInvalidInput, "bad row").WithContext("line", 4).WithContext("column", "age")
	assert.Equal(t, map[string]interface{}{"line": 4, "column": "age"}, err.Context)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", NewValidationError(CodeMissingField, "x"), 400},
		{"configuration", NewConfigurationError("x"), 400},
		{"privacy", NewPrivacyError("x"), 403},
		{"search", NewSearchError(CodeNoValidCombination, "x"), 422},
		{"report not found", NewStorageError(CodeReportNotFound, "x"), 404},
		{"storage not configured", NewStorageError(CodeStorageNotConfigured, "x"), 503},
		{"storage connection", WrapStorageError(errors.New("refused"), CodeConnectionFailed, "x"), 503},
		{"storage write", NewStorageError(CodeWriteFailed, "x"), 502},
		{"unknown storage code", NewStorageError("CLOSE_FAILED", "x"), 500},
		{"plain error", errors.New("x"), 500},
		{"wrapped", fmt.Errorf("ctx: %w", NewPrivacyError("x")), 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusCode(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewStorageError(CodeConnectionFailed, "x")))
	assert.True(t, IsRetryable(fmt.Errorf("save: %w", WrapStorageError(errors.New("timeout"), CodeWriteFailed, "x"))))
	assert.False(t, IsRetryable(NewStorageError(CodeReportNotFound, "x")))
	assert.False(t, IsRetryable(NewValidationError(CodeWriteFailed, "x")))
	assert.False(t, IsRetryable(errors.New("x")))
}

func TestGetRetryDelay(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, GetRetryDelay(0))
	assert.Equal(t, 100*time.Millisecond, GetRetryDelay(1))
	assert.Equal(t, 400*time.Millisecond, GetRetryDelay(3))
	assert.Equal(t, 30*time.Second, GetRetryDelay(20))
}

func TestWrapStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapStorageError(cause, CodeConnectionFailed, "Failed to connect")

	require.True(t, Is(err, ErrStorageConnectionFailed))
	assert.True(t, Is(err, cause))
	assert.Equal(t, ErrorTypeStorage, err.Type)
}
