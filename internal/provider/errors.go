package provider

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bidflow/internal/domain"
)

// NewRateLimitError builds a 429 ProviderError. If retryAfterSecs is 0 it defaults to 60s.
func NewRateLimitError(provider, model string, message string, retryAfterSecs int) *domain.ProviderError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &domain.ProviderError{
		Provider:   provider,
		Model:      model,
		StatusCode: http.StatusTooManyRequests,
		Message:    message,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value (delta seconds or
// HTTP date) into seconds. Returns 0 if the value is empty or invalid.
func ParseRetryAfterHeader(val string) int {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return max(secs, 0)
	}
	if at, err := http.ParseTime(val); err == nil {
		return max(int(time.Until(at).Seconds()), 0)
	}
	return 0
}

// StatusError converts a non-2xx upstream response into a ProviderError.
func StatusError(provider, model string, status int, header http.Header, body string) *domain.ProviderError {
	msg := truncate(strings.TrimSpace(body), 500)
	if status == http.StatusTooManyRequests {
		var retryAfter int
		if header != nil {
			retryAfter = ParseRetryAfterHeader(header.Get("Retry-After"))
		}
		return NewRateLimitError(provider, model, msg, retryAfter)
	}
	return &domain.ProviderError{
		Provider:   provider,
		Model:      model,
		StatusCode: status,
		Message:    msg,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
