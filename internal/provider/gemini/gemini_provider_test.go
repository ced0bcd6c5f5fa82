package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidflow/internal/config"
	"bidflow/internal/domain"
	"bidflow/internal/port"
	"bidflow/internal/provider"
	"bidflow/internal/provider/gemini"
)

func newTestProvider(serverURL string) *gemini.Provider {
	cfg := config.ProviderConfig{
		Provider:    "gemini",
		APIKey:      "test-gemini-key",
		TimeoutSecs: 30,
	}
	return gemini.NewProviderWithEndpoint(cfg, serverURL)
}

func geminiSuccessResponse(text, finish string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
				"finishReason": finish,
			},
		},
		"usageMetadata": map[string]any{"promptTokenCount": 300, "candidatesTokenCount": 40},
		"modelVersion":  "gemini-2.0-flash-001",
	}
}

func TestProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfake"))
			return
		}
		assert.Equal(t, "/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-gemini-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		system := reqBody["systemInstruction"].(map[string]any)
		assert.NotEmpty(t, system["parts"])

		contents := reqBody["contents"].([]any)
		require.Len(t, contents, 1)
		msg := contents[0].(map[string]any)
		assert.Equal(t, "user", msg["role"])

		parts := msg["parts"].([]any)
		require.Len(t, parts, 2)
		inline := parts[0].(map[string]any)["inline_data"].(map[string]any)
		assert.Equal(t, "image/png", inline["mime_type"])
		assert.NotEmpty(t, inline["data"])
		assert.Equal(t, "Count the outlets.", parts[1].(map[string]any)["text"])

		genConfig := reqBody["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", genConfig["responseMimeType"])
		assert.Equal(t, float64(8192), genConfig["maxOutputTokens"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(geminiSuccessResponse(`{"items": []}`, "STOP")) //nolint:errcheck
	}))
	defer server.Close()

	resp, err := newTestProvider(server.URL).Generate(context.Background(), port.GenerateRequest{
		Model:        "gemini-2.0-flash",
		SystemPrompt: "You are an estimator.",
		Messages: []port.Message{{Role: "user", Parts: []port.ContentPart{
			{Type: port.PartImage, ImageURL: server.URL + "/sheet-e1.png"},
			{Type: port.PartText, Text: "Count the outlets."},
		}}},
		ResponseFormat: port.ResponseFormatJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"items": []}`, resp.Content)
	assert.Equal(t, port.FinishStop, resp.FinishReason)
	assert.Equal(t, "gemini-2.0-flash-001", resp.Model)
	assert.Equal(t, int64(300), resp.Usage.InputTokens)
	assert.Equal(t, int64(40), resp.Usage.OutputTokens)
}

func TestProvider_Generate_DataURLAndAssistantTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		_, hasSystem := reqBody["systemInstruction"]
		assert.False(t, hasSystem)

		contents := reqBody["contents"].([]any)
		require.Len(t, contents, 3)
		assert.Equal(t, "model", contents[1].(map[string]any)["role"])
		first := contents[0].(map[string]any)["parts"].([]any)[0].(map[string]any)
		assert.Equal(t, "image/jpeg", first["inline_data"].(map[string]any)["mime_type"])
		assert.Equal(t, "AAAA", first["inline_data"].(map[string]any)["data"])

		genConfig := reqBody["generationConfig"].(map[string]any)
		_, hasMime := genConfig["responseMimeType"]
		assert.False(t, hasMime)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(geminiSuccessResponse("ok", "MAX_TOKENS")) //nolint:errcheck
	}))
	defer server.Close()

	resp, err := newTestProvider(server.URL).Generate(context.Background(), port.GenerateRequest{
		Model: "gemini-2.0-flash",
		Messages: []port.Message{
			{Role: "user", Parts: []port.ContentPart{{Type: port.PartImage, ImageURL: "data:image/jpeg;base64,AAAA"}}},
			{Role: "assistant", Parts: []port.ContentPart{{Type: port.PartText, Text: "noted"}}},
		},
		Prompt: "continue",
	})
	require.NoError(t, err)
	assert.Equal(t, port.FinishLength, resp.FinishReason)
}

func TestProvider_Generate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "15")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Generate(context.Background(), port.GenerateRequest{Model: "gemini-2.0-flash", Prompt: "x"})
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.IsRateLimit())
	assert.Equal(t, 15*time.Second, pe.RetryAfter)
}

func TestProvider_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Generate(context.Background(), port.GenerateRequest{Model: "gemini-2.0-flash", Prompt: "x"})
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	assert.True(t, pe.Temporary())
	assert.Less(t, len(pe.Message), 600)
}

func TestProvider_Generate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	_, err := newTestProvider(server.URL).Generate(context.Background(), port.GenerateRequest{Model: "gemini-2.0-flash", Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestProvider_Generate_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestProvider(url).Generate(context.Background(), port.GenerateRequest{Model: "gemini-2.0-flash", Prompt: "x"})
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, pe.StatusCode)
	assert.True(t, pe.Temporary())
}

func TestNewProvider_RefusesInternalImageHosts(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := gemini.NewProvider(config.ProviderConfig{Provider: "gemini", APIKey: "k", BaseURL: server.URL, TimeoutSecs: 5})
	_, err := p.Generate(context.Background(), port.GenerateRequest{
		Model: "gemini-2.0-flash",
		Messages: []port.Message{
			{Role: "user", Parts: []port.ContentPart{{Type: port.PartImage, ImageURL: server.URL + "/latest/meta-data"}}},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrNonPublicAddress)
	assert.Equal(t, 0, calls)
}
