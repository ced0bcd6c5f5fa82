package port

import (
	"context"
	"encoding/json"
)

// ContentPartType distinguishes text from image parts in a message.
type ContentPartType string

const (
	PartText  ContentPartType = "text"
	PartImage ContentPartType = "image_url"
)

// ContentPart is one piece of an interleaved text/image message.
type ContentPart struct {
	Type     ContentPartType
	Text     string
	ImageURL string
}

// Message is one chat turn sent to a model.
type Message struct {
	Role  string // "user" or "assistant"
	Parts []ContentPart
}

// ResponseFormat is an optional structured-output hint.
type ResponseFormat string

const (
	ResponseFormatNone ResponseFormat = ""
	ResponseFormatJSON ResponseFormat = "json"
)

// GenerateRequest is a backend-neutral model call.
type GenerateRequest struct {
	Model        string
	SystemPrompt string
	// Prompt is shorthand for a single user text message; it is appended after Messages.
	Prompt         string
	Messages       []Message
	MaxTokens      int
	Temperature    *float64
	ResponseFormat ResponseFormat
}

// AllMessages returns Messages with Prompt appended as a final user turn.
func (r GenerateRequest) AllMessages() []Message {
	msgs := make([]Message, 0, len(r.Messages)+1)
	msgs = append(msgs, r.Messages...)
	if r.Prompt != "" {
		msgs = append(msgs, Message{Role: "user", Parts: []ContentPart{{Type: PartText, Text: r.Prompt}}})
	}
	return msgs
}

// Finish reasons normalised across backends.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)

// Usage reports token counts for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// GenerateResponse is the raw text returned by a backend plus call metadata.
type GenerateResponse struct {
	Content      string
	FinishReason string
	Model        string
	Raw          json.RawMessage
	Usage        Usage
}

// ModelProvider abstracts one LLM backend.
type ModelProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Name() string
}
