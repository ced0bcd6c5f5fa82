package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"bidflow/internal/config"
	"bidflow/internal/domain"
	"bidflow/internal/port"
	"bidflow/internal/provider"
)

const (
	name             = "claude"
	defaultMaxTokens = 8192
)

func init() {
	provider.RegisterProvider(name, func(cfg config.ProviderConfig) (port.ModelProvider, error) {
		return NewProvider(cfg), nil
	})
}

// Provider implements port.ModelProvider using the Anthropic Messages API.
type Provider struct {
	client sdk.Client
}

// NewProvider creates a Claude backend. cfg.BaseURL overrides the API host.
func NewProvider(cfg config.ProviderConfig) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are handled by provider.Resilient
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Provider{client: sdk.NewClient(opts...)}
}

func (p *Provider) Name() string {
	return name
}

func (p *Provider) Generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	system := req.SystemPrompt
	if req.ResponseFormat == port.ResponseFormatJSON {
		// The Messages API has no JSON mode; the hint travels in the system prompt.
		system = strings.TrimSpace(system + "\n\nRespond with a single JSON value and nothing else.")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  toSDKMessages(req.AllMessages()),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, toProviderError(req.Model, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &port.GenerateResponse{
		Content:      text.String(),
		FinishReason: provider.NormalizeFinishReason(string(msg.StopReason)),
		Model:        string(msg.Model),
		Raw:          []byte(msg.RawJSON()),
		Usage: port.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

func toSDKMessages(msgs []port.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch part.Type {
			case port.PartImage:
				blocks = append(blocks, imageBlock(part.ImageURL))
			default:
				blocks = append(blocks, sdk.NewTextBlock(part.Text))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == "assistant" {
			out = append(out, sdk.NewAssistantMessage(blocks...))
		} else {
			out = append(out, sdk.NewUserMessage(blocks...))
		}
	}
	return out
}

func imageBlock(url string) sdk.ContentBlockParamUnion {
	if mediaType, data, ok := provider.ParseDataURL(url); ok {
		return sdk.NewImageBlockBase64(mediaType, data)
	}
	return sdk.NewImageBlock(sdk.URLImageSourceParam{URL: url})
}

func toProviderError(model string, err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		pe := provider.StatusError(name, model, apiErr.StatusCode, nil, apiErr.Error())
		if apiErr.Response != nil {
			pe = provider.StatusError(name, model, apiErr.StatusCode, apiErr.Response.Header, apiErr.Error())
		}
		pe.Err = err
		return pe
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("calling anthropic API: %w", err)
	}
	return domain.NewTransportError(name, model, err)
}
