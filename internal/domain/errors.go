package domain

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"bidflow/internal/resilience"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRosterTooSmall  = errors.New("consensus roster is smaller than the required minimum")
	ErrUnknownProvider = errors.New("unknown model provider")
)

// ProviderError is an upstream model call failure (network, auth, rate limit).
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		b.WriteString("/")
		b.WriteString(e.Model)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " API error (status %d)", e.StatusCode)
	} else {
		b.WriteString(" call failed")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimit reports whether the upstream rejected the call with HTTP 429.
func (e *ProviderError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Temporary reports whether retrying the same call may succeed.
func (e *ProviderError) Temporary() bool {
	if e.StatusCode == 0 {
		return errors.Is(e.Err, errTransport)
	}
	return resilience.IsTransientHTTPStatus(e.StatusCode)
}

// errTransport marks ProviderErrors raised for network failures without an HTTP status.
var errTransport = errors.New("transport failure")

// NewTransportError wraps a network-level failure as a temporary ProviderError.
func NewTransportError(provider, model string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Model:    model,
		Message:  err.Error(),
		Err:      fmt.Errorf("%w: %w", errTransport, err),
	}
}

// AnalysisError means a model returned content that could not be parsed or validated,
// even after repair. Raw text and both parser errors are always kept.
type AnalysisError struct {
	ModelID   string
	TaskType  TaskType
	Raw       string
	Repaired  string
	DirectErr error
	RepairErr error
	SchemaErr error
}

func (e *AnalysisError) Error() string {
	if e.SchemaErr != nil {
		return fmt.Sprintf("analysis %s (%s): response does not match output schema: %v", e.ModelID, e.TaskType, e.SchemaErr)
	}
	return fmt.Sprintf("analysis %s (%s): unparseable response: direct parse: %v; after repair: %v",
		e.ModelID, e.TaskType, e.DirectErr, e.RepairErr)
}

// ExtractionError means invoice/bid extraction exhausted every parse and repair strategy,
// or the input text was unusable. Cause is safe to show to end users.
type ExtractionError struct {
	FileName    string
	Cause       string
	Raw         string
	Repaired    string
	DirectErr   error
	RepairErr   error
	FallbackErr error
}

func (e *ExtractionError) Error() string {
	if e.DirectErr == nil && e.RepairErr == nil && e.FallbackErr == nil {
		return fmt.Sprintf("extracting %q: %s", e.FileName, e.Cause)
	}
	return fmt.Sprintf("extracting %q: %s: direct parse: %v; after repair: %v; brace extraction: %v",
		e.FileName, e.Cause, e.DirectErr, e.RepairErr, e.FallbackErr)
}

// InsufficientConsensusError means fewer models than required produced usable results.
type InsufficientConsensusError struct {
	Required  int
	Succeeded int
	Invoked   int
	Failures  map[string]string
}

func (e *InsufficientConsensusError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %s", id, e.Failures[id]))
	}
	return fmt.Sprintf("insufficient consensus: %d of %d models succeeded (%d required): %s",
		e.Succeeded, e.Invoked, e.Required, strings.Join(parts, "; "))
}
