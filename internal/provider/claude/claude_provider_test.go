package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/config"
	"bidflow/internal/domain"
	"bidflow/internal/port"
	"bidflow/internal/provider/claude"
)

func newTestProvider(serverURL string) *claude.Provider {
	return claude.NewProvider(config.ProviderConfig{
		Provider: "claude",
		APIKey:   "test-key",
		BaseURL:  serverURL,
	})
}

func TestProvider_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-sonnet-4-20250514", body["model"])
		assert.Equal(t, float64(4096), body["max_tokens"])
		assert.Equal(t, 0.2, body["temperature"])
		system := body["system"].([]any)
		assert.Contains(t, system[0].(map[string]any)["text"], "estimator")
		assert.Contains(t, system[0].(map[string]any)["text"], "JSON")

		msgs := body["messages"].([]any)
		require.Len(t, msgs, 1)
		content := msgs[0].(map[string]any)["content"].([]any)
		require.Len(t, content, 2)
		img := content[0].(map[string]any)
		assert.Equal(t, "image", img["type"])
		assert.Equal(t, "url", img["source"].(map[string]any)["type"])
		assert.Equal(t, "text", content[1].(map[string]any)["type"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"items": []}`},
			},
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 120, "output_tokens": 8},
		})
	}))
	defer ts.Close()

	temp := 0.2
	resp, err := newTestProvider(ts.URL).Generate(context.Background(), port.GenerateRequest{
		Model:        "claude-sonnet-4-20250514",
		SystemPrompt: "You are a construction estimator.",
		Messages: []port.Message{{Role: "user", Parts: []port.ContentPart{
			{Type: port.PartImage, ImageURL: "https://plans.example.com/sheet-a1.png"},
			{Type: port.PartText, Text: "Take off the studs."},
		}}},
		MaxTokens:      4096,
		Temperature:    &temp,
		ResponseFormat: port.ResponseFormatJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"items": []}`, resp.Content)
	assert.Equal(t, port.FinishStop, resp.FinishReason)
	assert.Equal(t, "claude-sonnet-4-20250514", resp.Model)
	assert.Equal(t, int64(120), resp.Usage.InputTokens)
	assert.Equal(t, int64(8), resp.Usage.OutputTokens)
	assert.NotEmpty(t, resp.Raw)
}

func TestProvider_Generate_Truncated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id": "msg_2", "type": "message", "role": "assistant",
			"content":     []map[string]any{{"type": "text", "text": `{"items": [{"name": "St`}},
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": "max_tokens",
			"usage":       map[string]any{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer ts.Close()

	resp, err := newTestProvider(ts.URL).Generate(context.Background(), port.GenerateRequest{Model: "claude-sonnet-4-20250514", Prompt: "go"})
	require.NoError(t, err)
	assert.Equal(t, port.FinishLength, resp.FinishReason)
}

func TestProvider_Generate_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer ts.Close()

	_, err := newTestProvider(ts.URL).Generate(context.Background(), port.GenerateRequest{Model: "claude-sonnet-4-20250514", Prompt: "go"})
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.IsRateLimit())
	assert.Equal(t, 7*time.Second, pe.RetryAfter)
	assert.Equal(t, "claude", pe.Provider)
}

func TestProvider_Generate_AuthError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer ts.Close()

	_, err := newTestProvider(ts.URL).Generate(context.Background(), port.GenerateRequest{Model: "claude-sonnet-4-20250514", Prompt: "go"})
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.False(t, pe.Temporary())
}

func TestProvider_Name(t *testing.T) {
	assert.Equal(t, "claude", newTestProvider("http://localhost").Name())
}
