package openai

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"bidflow/internal/config"
	"bidflow/internal/domain"
	"bidflow/internal/port"
	"bidflow/internal/provider"
)

const (
	name             = "openai"
	defaultMaxTokens = 8192
)

func init() {
	provider.RegisterProvider(name, func(cfg config.ProviderConfig) (port.ModelProvider, error) {
		return NewProvider(cfg), nil
	})
}

// Provider implements port.ModelProvider using the Chat Completions API.
type Provider struct {
	client sdk.Client
}

// NewProvider creates an OpenAI backend. cfg.BaseURL overrides the API host.
func NewProvider(cfg config.ProviderConfig) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
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

	params := sdk.ChatCompletionNewParams{
		Model:               shared.ChatModel(req.Model),
		Messages:            toSDKMessages(req.SystemPrompt, req.AllMessages()),
		MaxCompletionTokens: sdk.Int(int64(maxTokens)),
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if req.ResponseFormat == port.ResponseFormatJSON {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, toProviderError(req.Model, err)
	}
	if len(completion.Choices) == 0 {
		return nil, &domain.ProviderError{Provider: name, Model: req.Model, Message: "response contained no choices"}
	}

	choice := completion.Choices[0]
	return &port.GenerateResponse{
		Content:      choice.Message.Content,
		FinishReason: provider.NormalizeFinishReason(string(choice.FinishReason)),
		Model:        string(completion.Model),
		Raw:          []byte(completion.RawJSON()),
		Usage: port.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}

func toSDKMessages(system string, msgs []port.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if system != "" {
		out = append(out, sdk.SystemMessage(system))
	}
	for _, m := range msgs {
		if m.Role == "assistant" {
			out = append(out, sdk.AssistantMessage(textOf(m)))
			continue
		}
		parts := make([]sdk.ChatCompletionContentPartUnionParam, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch part.Type {
			case port.PartImage:
				parts = append(parts, sdk.ImageContentPart(sdk.ChatCompletionContentPartImageImageURLParam{
					URL: part.ImageURL,
				}))
			default:
				parts = append(parts, sdk.TextContentPart(part.Text))
			}
		}
		if len(parts) > 0 {
			out = append(out, sdk.UserMessage(parts))
		}
	}
	return out
}

func textOf(m port.Message) string {
	var s string
	for _, part := range m.Parts {
		if part.Type == port.PartText {
			s += part.Text
		}
	}
	return s
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
		return fmt.Errorf("calling openai API: %w", err)
	}
	return domain.NewTransportError(name, model, err)
}
