package provider_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/domain"
	"bidflow/internal/provider"
)

func TestNewRateLimitError(t *testing.T) {
	err := provider.NewRateLimitError("claude", "claude-sonnet-4-20250514", "slow down", 30)

	assert.True(t, err.IsRateLimit())
	assert.True(t, err.Temporary())
	assert.Equal(t, 30*time.Second, err.RetryAfter)
	assert.Contains(t, err.Error(), "claude")
	assert.Contains(t, err.Error(), "429")
}

func TestNewRateLimitError_DefaultRetryAfter(t *testing.T) {
	err := provider.NewRateLimitError("openai", "gpt-4o", "", 0)
	assert.Equal(t, 60*time.Second, err.RetryAfter)
}

func TestRateLimitError_ErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("generate failed: %w", provider.NewRateLimitError("claude", "m", "x", 30))

	var target *domain.ProviderError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "claude", target.Provider)
	assert.Equal(t, 30*time.Second, target.RetryAfter)
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, provider.ParseRetryAfterHeader(""))
	assert.Equal(t, 30, provider.ParseRetryAfterHeader("30"))
	assert.Equal(t, 0, provider.ParseRetryAfterHeader("invalid"))
	assert.Equal(t, 0, provider.ParseRetryAfterHeader("-5"))

	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	secs := provider.ParseRetryAfterHeader(future)
	assert.InDelta(t, 90, secs, 2)
}

func TestStatusError(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "12")

	rl := provider.StatusError("gemini", "gemini-2.0-flash", http.StatusTooManyRequests, header, "quota")
	assert.True(t, rl.IsRateLimit())
	assert.Equal(t, 12*time.Second, rl.RetryAfter)

	bad := provider.StatusError("gemini", "gemini-2.0-flash", http.StatusBadRequest, nil, "bad field")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.False(t, bad.Temporary())
	assert.Contains(t, bad.Error(), "bad field")

	unavailable := provider.StatusError("gemini", "gemini-2.0-flash", http.StatusServiceUnavailable, nil, "")
	assert.True(t, unavailable.Temporary())
}
