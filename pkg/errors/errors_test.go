package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"not found", NewNotFoundError("product missing"), false},
		{"validation", NewValidationError("empty barcode"), false},
		{"internal", NewInternalError("encode failed", nil), false},
		{"external", NewExternalError("upstream 500", nil), true},
		{"timeout", NewTimeoutError("deadline exceeded", nil), true},
		{"rate limit", NewRateLimitError("429", nil), true},
		{"plain error", errors.New("connection reset"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, IsRetryable(tc.err))
		})
	}
}

func TestPredicatesMatchWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("lookup failed: %w", NewNotFoundError("no such barcode"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))

	wrapped = fmt.Errorf("request rejected: %w", NewValidationError("bad quantity"))
	assert.True(t, IsValidation(wrapped))
	assert.True(t, IsRetryable(fmt.Errorf("call failed: %w", NewExternalError("boom", nil))))
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	appErr := NewExternalError("fetch product", cause)

	assert.ErrorIs(t, appErr, cause)
	assert.Contains(t, appErr.Error(), "fetch product")
}
