package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/giamma80/Nutrifit-mobile-sub000/pkg/errors"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2.0,
		MaxTotalTimeout: time.Second,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return apperrors.NewExternalError("upstream 500", nil)
		}
		return nil
	}, apperrors.IsRetryable)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return apperrors.NewNotFoundError("no such product")
	}, apperrors.IsRetryable)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return apperrors.NewTimeoutError("deadline exceeded", nil)
	}, apperrors.IsRetryable)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, fastConfig(), func() error {
		attempts++
		return nil
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 0, attempts)
}
