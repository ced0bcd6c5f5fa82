// Package invoice extracts structured data from the text of subcontractor
// invoices and bids.
package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"bidflow/internal/config"
	"bidflow/internal/domain"
	"bidflow/internal/jsonrepair"
	"bidflow/internal/port"
)

const (
	defaultMinTextLength = 20
	defaultMaxTokens     = 8192
	defaultMaxTextRunes  = 100_000
	extractTemperature   = 0.1

	// CauseScanned is reported when the document has too little text to extract from.
	CauseScanned = "document may be image-based/scanned; run OCR before extraction"
	// CauseUnparseable is reported when no parse strategy produced a JSON object.
	CauseUnparseable = "model response could not be parsed as invoice data"
)

// Extractor turns document text into ParsedInvoiceData with one model call.
type Extractor struct {
	provider      port.ModelProvider
	model         string
	minTextLength int
	maxTokens     int
	maxTextRunes  int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMinTextLength sets the minimum number of non-space characters required.
func WithMinTextLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minTextLength = n
		}
	}
}

// WithMaxTokens caps the model's output tokens.
func WithMaxTokens(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithMaxTextRunes truncates longer documents before they are sent.
func WithMaxTextRunes(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTextRunes = n
		}
	}
}

// OptionsFromConfig maps invoice settings to extractor options.
func OptionsFromConfig(c config.InvoiceConfig) []Option {
	return []Option{
		WithMinTextLength(c.MinTextLength),
		WithMaxTokens(c.MaxTokens),
		WithMaxTextRunes(c.MaxTextRunes),
	}
}

// NewExtractor creates an Extractor. model may be empty when provider pins its
// own models, as a fallback chain does.
func NewExtractor(provider port.ModelProvider, model string, opts ...Option) *Extractor {
	e := &Extractor{
		provider:      provider,
		model:         model,
		minTextLength: defaultMinTextLength,
		maxTokens:     defaultMaxTokens,
		maxTextRunes:  defaultMaxTextRunes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the model for the invoice schema and parses its answer, trying
// a direct parse, then repair, then brace-matched candidates.
func (e *Extractor) Extract(ctx context.Context, text, fileName string) (*domain.ParsedInvoiceData, error) {
	if n := countNonSpace(text); n < e.minTextLength {
		zap.L().Warn("invoice text too short for extraction",
			zap.String("file", fileName),
			zap.Int("chars", n),
		)
		return nil, &domain.ExtractionError{FileName: fileName, Cause: CauseScanned}
	}

	var warnings []string
	if utf8.RuneCountInString(text) > e.maxTextRunes {
		text = string([]rune(text)[:e.maxTextRunes])
		warnings = append(warnings, fmt.Sprintf("document text was truncated to %d characters before extraction", e.maxTextRunes))
	}

	temp := extractTemperature
	resp, err := e.provider.Generate(ctx, port.GenerateRequest{
		Model:          e.model,
		SystemPrompt:   SystemPrompt(),
		Prompt:         UserPrompt(text, fileName),
		MaxTokens:      e.maxTokens,
		Temperature:    &temp,
		ResponseFormat: port.ResponseFormatJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("extracting %q: %w", fileName, err)
	}

	data, err := Parse(resp.Content, fileName)
	if err != nil {
		zap.L().Warn("invoice response unparseable",
			zap.String("file", fileName),
			zap.String("model", resp.Model),
			zap.Error(err),
		)
		return nil, err
	}

	data.Warnings = append(warnings, data.Warnings...)
	if resp.FinishReason == port.FinishLength {
		data.Warnings = append(data.Warnings, "model output was truncated; some line items may be missing")
	}
	data.ModelUsed = resp.Model
	if data.ModelUsed == "" {
		data.ModelUsed = e.model
	}

	zap.L().Info("invoice extracted",
		zap.String("file", fileName),
		zap.String("model", data.ModelUsed),
		zap.String("strategy", string(data.Strategy)),
		zap.Int("line_items", len(data.LineItems)),
		zap.Bool("total_computed", data.TotalComputed),
	)
	return data, nil
}

// Parse converts a raw model response into ParsedInvoiceData. Failure is an
// *domain.ExtractionError carrying the raw text and every parser error.
func Parse(raw, fileName string) (*domain.ParsedInvoiceData, error) {
	payload, strategy, err := decodePayload(raw)
	if err != nil {
		var ee *domain.ExtractionError
		if errors.As(err, &ee) {
			ee.FileName = fileName
		}
		return nil, err
	}
	data := normalize(payload)
	data.FileName = fileName
	data.Strategy = strategy
	return data, nil
}

// decodePayload runs the direct, repaired and brace-extraction strategies in order.
func decodePayload(raw string) (map[string]any, domain.ParseStrategy, error) {
	var decoded any
	info, err := jsonrepair.Decode(raw, &decoded)
	if payload, ok := asInvoiceObject(decoded); err == nil && ok {
		if info.Repaired {
			return payload, domain.StrategyRepaired, nil
		}
		return payload, domain.StrategyDirect, nil
	}

	ee := &domain.ExtractionError{Cause: CauseUnparseable, Raw: raw}
	var de *jsonrepair.DecodeError
	switch {
	case errors.As(err, &de):
		ee.Repaired = de.Repaired
		ee.DirectErr = de.DirectErr
		ee.RepairErr = de.RepairErr
	case err != nil:
		ee.DirectErr = err
	default:
		ee.DirectErr = fmt.Errorf("response is %s, not a JSON object", jsonKind(decoded))
	}
	if ee.RepairErr == nil {
		ee.RepairErr = errors.New("repair not attempted: response was valid JSON of the wrong shape")
	}

	candidates := jsonrepair.ExtractCandidates(raw)
	for _, c := range candidates {
		var obj map[string]any
		if json.Unmarshal([]byte(c), &obj) == nil && obj != nil {
			return obj, domain.StrategyExtracted, nil
		}
	}
	if len(candidates) == 0 {
		ee.FallbackErr = errors.New("no balanced {...} block found")
	} else {
		ee.FallbackErr = fmt.Errorf("none of %d brace-matched blocks is a JSON object", len(candidates))
	}
	return nil, "", ee
}

// asInvoiceObject accepts an object, or a bare array taken as the line items.
func asInvoiceObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		return map[string]any{"lineItems": t}, true
	default:
		return nil, false
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
