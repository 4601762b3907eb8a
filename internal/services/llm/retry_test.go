package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
)

func TestIsRateLimitError(t *testing.T) {
	assert.False(t, IsRateLimitError(nil))
	assert.True(t, IsRateLimitError(errors.New("Error 429, Status: RESOURCE_EXHAUSTED")))
	assert.True(t, IsRateLimitError(errors.New(`{"type":"rate_limit_error"}`)))
	assert.True(t, IsRateLimitError(errors.New("quota exceeded")))
	assert.False(t, IsRateLimitError(errors.New("connection reset")))
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: limit. Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))

	assert.Equal(t, 12*time.Second, ExtractRetryDelay(errors.New("retryDelay: 12s")))
	assert.Zero(t, ExtractRetryDelay(errors.New("no hint")))
	assert.Zero(t, ExtractRetryDelay(nil))
}

func TestCalculateBackoff(t *testing.T) {
	c := &RetryConfig{
		InitialBackoff:    4 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2,
	}

	assert.Equal(t, 4*time.Second, c.CalculateBackoff(0, 0))
	assert.Equal(t, 8*time.Second, c.CalculateBackoff(1, 0))
	assert.Equal(t, 10*time.Second, c.CalculateBackoff(2, 0))
	assert.Equal(t, 3*time.Second, c.CalculateBackoff(0, 2*time.Second))
}

func TestNewRetryConfig(t *testing.T) {
	rc := NewRetryConfig(nil)
	assert.Equal(t, DefaultMaxRetries, rc.MaxRetries)

	rc = NewRetryConfig(&common.LLMConfig{MaxRetries: 0, InitialBackoff: "1s", MaxBackoff: "bogus"})
	assert.Equal(t, 0, rc.MaxRetries)
	assert.Equal(t, time.Second, rc.InitialBackoff)
	assert.Equal(t, DefaultMaxBackoff, rc.MaxBackoff)
}

func fastRetry(retries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        retries,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1,
	}
}

func TestRetryDo_SucceedsAfterFailure(t *testing.T) {
	calls := 0
	err := fastRetry(2).Do(context.Background(), arbor.NewLogger(), "Test", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("Error 429")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryDo_ExhaustsRetries(t *testing.T) {
	cause := errors.New("upstream unavailable")
	calls := 0
	err := fastRetry(2).Do(context.Background(), arbor.NewLogger(), "Test", func(ctx context.Context) error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestRetryDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastRetry(5).Do(ctx, arbor.NewLogger(), "Test", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
