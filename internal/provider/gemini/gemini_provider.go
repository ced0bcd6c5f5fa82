package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bidflow/internal/config"
	"bidflow/internal/domain"
	"bidflow/internal/port"
	"bidflow/internal/provider"
)

const (
	name             = "gemini"
	apiBaseURL       = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultMaxTokens = 8192
	maxImageBytes    = 20 << 20
)

func init() {
	provider.RegisterProvider(name, func(cfg config.ProviderConfig) (port.ModelProvider, error) {
		return NewProvider(cfg), nil
	})
}

// Provider implements port.ModelProvider using Google's Gemini API.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	// images fetches remote plan sheets for inlining.
	images  *http.Client
}

// NewProvider creates a Gemini backend. cfg.BaseURL overrides the models
// endpoint. Remote images are only fetched from public addresses.
func NewProvider(cfg config.ProviderConfig) *Provider {
	p := NewProviderWithEndpoint(cfg, cfg.BaseURL)
	p.images = provider.PublicHTTPClient(cfg.Timeout())
	return p
}

// NewProviderWithEndpoint creates a backend pointing at a custom models
// endpoint (for testing). Images are fetched without the public address check.
func NewProviderWithEndpoint(cfg config.ProviderConfig, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = apiBaseURL
	}
	client := &http.Client{Timeout: cfg.Timeout()}
	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		images:  client,
	}
}

func (p *Provider) Name() string {
	return name
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens  int      `json:"maxOutputTokens"`
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func (p *Provider) Generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	contents, err := p.buildContents(ctx, req.AllMessages())
	if err != nil {
		return nil, fmt.Errorf("building contents: %w", err)
	}

	body := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	if req.ResponseFormat == port.ResponseFormatJSON {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent", p.baseURL, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("calling gemini API: %w", err)
		}
		return nil, domain.NewTransportError(name, req.Model, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewTransportError(name, req.Model, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, provider.StatusError(name, req.Model, resp.StatusCode, resp.Header, string(respBody))
	}

	return parseResponse(respBody, req.Model)
}

func parseResponse(body []byte, model string) (*port.GenerateResponse, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, &domain.ProviderError{Provider: name, Model: model, Message: "empty response from API: no candidates"}
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		text.WriteString(p.Text)
	}
	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}

	return &port.GenerateResponse{
		Content:      text.String(),
		FinishReason: provider.NormalizeFinishReason(candidate.FinishReason),
		Model:        model,
		Raw:          body,
		Usage: port.Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func (p *Provider) buildContents(ctx context.Context, msgs []port.Message) ([]content, error) {
	out := make([]content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		parts := make([]part, 0, len(m.Parts))
		for _, mp := range m.Parts {
			if mp.Type != port.PartImage {
				parts = append(parts, part{Text: mp.Text})
				continue
			}
			data, err := p.loadImage(ctx, mp.ImageURL)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part{InlineData: data})
		}
		if len(parts) > 0 {
			out = append(out, content{Role: role, Parts: parts})
		}
	}
	return out, nil
}

// loadImage inlines an image. Gemini only accepts inline data or uploaded
// files, so remote URLs are downloaded first.
func (p *Provider) loadImage(ctx context.Context, url string) (*inlineData, error) {
	if mediaType, data, ok := provider.ParseDataURL(url); ok {
		return &inlineData{MimeType: mediaType, Data: data}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating image request: %w", err)
	}
	resp, err := p.images.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image %s: status %d", url, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", url, err)
	}
	if len(raw) > maxImageBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", url, maxImageBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(raw)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(raw)}, nil
}
