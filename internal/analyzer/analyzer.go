// Package analyzer runs one model over a set of plan sheets and coerces its
// JSON answer into typed items or issues.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
	"go.uber.org/zap"

	"bidflow/internal/domain"
	"bidflow/internal/jsonrepair"
	"bidflow/internal/port"
)

const (
	defaultMaxTokens   = 8192
	defaultTemperature = 0.2
	accurateTempCap    = 0.1
)

// Analyzer invokes a single model for one analysis task.
type Analyzer struct {
	provider    port.ModelProvider
	model       string
	modelID     string
	vendor      string
	temperature *float64
	maxTokens   int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithModelID sets the roster identifier reported on results. Defaults to the model name.
func WithModelID(id string) Option {
	return func(a *Analyzer) { a.modelID = id }
}

// WithVendor sets the provider label reported on results. Defaults to provider.Name().
func WithVendor(vendor string) Option {
	return func(a *Analyzer) { a.vendor = vendor }
}

// WithTemperature overrides the request temperature for this model.
func WithTemperature(t float64) Option {
	return func(a *Analyzer) { a.temperature = &t }
}

// WithMaxTokens sets the default output token limit.
func WithMaxTokens(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// New creates an Analyzer calling model through provider.
func New(provider port.ModelProvider, model string, opts ...Option) *Analyzer {
	a := &Analyzer{
		provider:  provider,
		model:     model,
		modelID:   model,
		vendor:    provider.Name(),
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ModelID returns the identifier reported on results.
func (a *Analyzer) ModelID() string { return a.modelID }

// Vendor returns the provider label reported on results.
func (a *Analyzer) Vendor() string { return a.vendor }

// Model returns the model name sent to the provider.
func (a *Analyzer) Model() string { return a.model }

// Analyze sends the sheets to the model and parses its answer. Provider failures
// are returned as-is (usually a *domain.ProviderError); unusable answers as
// *domain.AnalysisError carrying the raw text.
func (a *Analyzer) Analyze(ctx context.Context, images []domain.PlanImage, opts domain.AnalysisOptions) (*domain.ModelResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: at least one plan image is required", domain.ErrInvalidInput)
	}
	if opts.TaskType == "" {
		opts.TaskType = domain.TaskTakeoff
	}
	if !domain.ValidTaskTypes[opts.TaskType] {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrInvalidInput, opts.TaskType)
	}

	req := port.GenerateRequest{
		Model:          a.model,
		SystemPrompt:   SystemPrompt(opts.TaskType, opts),
		Messages:       BuildMessages(opts.TaskType, images, opts),
		MaxTokens:      a.maxTokens,
		Temperature:    a.requestTemperature(opts),
		ResponseFormat: port.ResponseFormatJSON,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	start := time.Now()
	resp, err := a.provider.Generate(ctx, req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", a.modelID, err)
	}

	result, err := a.parse(opts.TaskType, resp.Content, images[0].PageIndex)
	if err != nil {
		zap.L().Warn("model response unusable",
			zap.String("model", a.modelID),
			zap.String("task_type", string(opts.TaskType)),
			zap.String("finish_reason", resp.FinishReason),
			zap.Error(err),
		)
		return nil, err
	}

	result.ModelID = a.modelID
	result.Provider = a.vendor
	result.Model = a.model
	if resp.Model != "" {
		result.Model = resp.Model
	}
	result.TaskType = opts.TaskType
	result.RawContent = resp.Content
	result.FinishReason = resp.FinishReason
	result.Truncated = resp.FinishReason == port.FinishLength
	result.LatencyMs = latency
	result.Usage = domain.TokenUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}

	zap.L().Debug("model analysis parsed",
		zap.String("model", a.modelID),
		zap.Int("items", len(result.Items)),
		zap.Int("issues", len(result.Issues)),
		zap.Bool("repaired", result.Repaired),
		zap.Int64("latency_ms", latency),
	)
	return result, nil
}

func (a *Analyzer) parse(task domain.TaskType, raw string, defaultPage int) (*domain.ModelResult, error) {
	var decoded any
	info, err := jsonrepair.Decode(raw, &decoded)
	if err != nil {
		ae := &domain.AnalysisError{ModelID: a.modelID, TaskType: task, Raw: raw}
		var de *jsonrepair.DecodeError
		if errors.As(err, &de) {
			ae.Repaired = de.Repaired
			ae.DirectErr = de.DirectErr
			ae.RepairErr = de.RepairErr
		} else {
			ae.DirectErr = err
		}
		return nil, ae
	}

	payload, err := foldPayload(task, decoded)
	if err != nil {
		return nil, a.schemaError(task, raw, info, err)
	}
	folded, err := json.Marshal(payload)
	if err != nil {
		return nil, a.schemaError(task, raw, info, err)
	}
	if err := validatePayload(task, folded); err != nil {
		return nil, a.schemaError(task, raw, info, err)
	}

	canonical, err := jcs.Transform(folded)
	if err != nil {
		return nil, a.schemaError(task, raw, info, fmt.Errorf("canonicalize payload: %w", err))
	}
	sum := sha256.Sum256(canonical)

	overall, hasOverall := jsonrepair.Number(field(payload, "confidence", "overall_confidence", "overallConfidence"))
	c := coercer{modelID: a.modelID, defaultPage: defaultPage, fallbackConf: defaultItemConfidence}
	if hasOverall {
		c.fallbackConf = unitInterval(overall)
	}

	result := &domain.ModelResult{
		Payload:       canonical,
		PayloadDigest: hex.EncodeToString(sum[:]),
		Repaired:      info.Repaired,
	}
	list, _ := payload[listKey(task)].([]any)
	var confs []float64
	if task.ProducesIssues() {
		result.Issues = c.issues(list)
		for _, is := range result.Issues {
			confs = append(confs, is.Confidence)
		}
	} else {
		result.Items = c.items(list)
		for _, it := range result.Items {
			confs = append(confs, it.Confidence)
		}
	}

	switch {
	case hasOverall:
		result.Confidence = unitInterval(overall)
	case len(confs) > 0:
		result.Confidence = mean(confs)
	}
	return result, nil
}

func (a *Analyzer) schemaError(task domain.TaskType, raw string, info *jsonrepair.DecodeInfo, err error) error {
	ae := &domain.AnalysisError{ModelID: a.modelID, TaskType: task, Raw: raw, SchemaErr: err}
	if info != nil && info.Repaired {
		ae.Repaired = info.Text
		ae.DirectErr = info.DirectErr
	}
	return ae
}

func (a *Analyzer) requestTemperature(opts domain.AnalysisOptions) *float64 {
	t := defaultTemperature
	switch {
	case a.temperature != nil:
		t = *a.temperature
	case opts.Temperature > 0:
		t = opts.Temperature
	}
	if opts.PrioritizeAccuracy && t > accurateTempCap {
		t = accurateTempCap
	}
	return &t
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
