package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/domain"
	"bidflow/internal/resilience"
)

func fastConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	calls := 0
	val, err := resilience.DoVal(context.Background(), fastConfig(), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &domain.ProviderError{Provider: "claude", StatusCode: http.StatusServiceUnavailable}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	_, err := resilience.DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, &domain.ProviderError{Provider: "openai", StatusCode: http.StatusTooManyRequests}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoVal_NonTransientStopsImmediately(t *testing.T) {
	calls := 0
	_, err := resilience.DoVal(context.Background(), fastConfig(), func(_ context.Context) (struct{}, error) {
		calls++
		return struct{}{}, &domain.ProviderError{Provider: "claude", StatusCode: http.StatusUnauthorized}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ContextCancelledStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := resilience.DoVal(ctx, fastConfig(), func(_ context.Context) (struct{}, error) {
		calls++
		cancel()
		return struct{}{}, &domain.ProviderError{Provider: "claude", StatusCode: http.StatusBadGateway}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_DelayHintIsCapped(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	cfg.DelayHint = func(error) time.Duration { return time.Hour }

	start := time.Now()
	_, err := resilience.DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, &domain.ProviderError{Provider: "gemini", StatusCode: http.StatusTooManyRequests}
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, resilience.IsTransient(nil))
	assert.True(t, resilience.IsTransient(&domain.ProviderError{StatusCode: 503}))
	assert.True(t, resilience.IsTransient(fmt.Errorf("wrapped: %w", &domain.ProviderError{StatusCode: 429})))
	assert.False(t, resilience.IsTransient(&domain.ProviderError{StatusCode: 400}))
	assert.True(t, resilience.IsTransient(domain.NewTransportError("claude", "m", errors.New("dial tcp: i/o timeout"))))
	assert.True(t, resilience.IsTransient(errors.New("read: connection reset by peer")))
	assert.False(t, resilience.IsTransient(errors.New("invalid api key")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, s := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, resilience.IsTransientHTTPStatus(s), "status %d", s)
	}
	for _, s := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, resilience.IsTransientHTTPStatus(s), "status %d", s)
	}
}
