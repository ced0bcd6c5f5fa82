// Package provider adapts LLM vendor APIs to port.ModelProvider and layers
// retries, rate limiting and fallback on top of them.
package provider

import (
	"context"
	"strings"

	"bidflow/internal/port"
)

// NormalizeFinishReason maps vendor stop reasons onto the port.Finish* values.
// Unknown reasons are lower-cased and passed through.
func NormalizeFinishReason(reason string) string {
	r := strings.ToLower(strings.TrimSpace(reason))
	switch r {
	case "stop", "end_turn", "stop_sequence":
		return port.FinishStop
	case "length", "max_tokens":
		return port.FinishLength
	case "content_filter", "safety", "refusal", "recitation", "blocklist", "prohibited_content", "spii":
		return port.FinishContentFilter
	default:
		return r
	}
}

// Bound pins a provider to one model so it can sit in a fallback chain.
type Bound struct {
	inner port.ModelProvider
	model string
}

// Bind returns p with every request's Model replaced by model.
func Bind(p port.ModelProvider, model string) *Bound {
	return &Bound{inner: p, model: model}
}

func (b *Bound) Name() string {
	return b.inner.Name() + "/" + b.model
}

// Model returns the pinned model identifier.
func (b *Bound) Model() string {
	return b.model
}

func (b *Bound) Generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResponse, error) {
	req.Model = b.model
	return b.inner.Generate(ctx, req)
}

// ParseDataURL splits a base64 data URL ("data:image/png;base64,...") into its
// media type and payload.
func ParseDataURL(url string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 || mediaType == "" {
		return "", "", false
	}
	return mediaType, payload, true
}
