package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bidflow/internal/domain"
	"bidflow/internal/port"
	"bidflow/internal/resilience"
)

const defaultAttemptTimeout = 120 * time.Second

// Resilient wraps a backend with a per-attempt timeout, a request rate limit,
// retries on temporary errors and a single retry without the structured
// response hint when the backend rejects it.
type Resilient struct {
	inner   port.ModelProvider
	timeout time.Duration
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// ResilientOption configures a Resilient provider.
type ResilientOption func(*Resilient)

// WithAttemptTimeout bounds each individual call.
func WithAttemptTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRequestsPerMinute limits call starts. Zero disables limiting.
func WithRequestsPerMinute(rpm int) ResilientOption {
	return func(r *Resilient) {
		if rpm > 0 {
			r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
		}
	}
}

// WithMaxAttempts sets the total number of attempts including the first.
func WithMaxAttempts(n int) ResilientOption {
	return func(r *Resilient) {
		if n > 0 {
			r.retry.MaxAttempts = n
		}
	}
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) ResilientOption {
	return func(r *Resilient) {
		r.retry = cfg
	}
}

// NewResilient wraps inner. Defaults: 120s per attempt, 3 attempts, no rate limit.
func NewResilient(inner port.ModelProvider, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		inner:   inner,
		timeout: defaultAttemptTimeout,
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resilient) Name() string {
	return r.inner.Name()
}

func (r *Resilient) Generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResponse, error) {
	resp, err := r.generate(ctx, req)
	if err == nil || req.ResponseFormat == port.ResponseFormatNone || !hintRejected(err) {
		return resp, err
	}
	zap.L().Warn("structured response hint rejected, retrying without it",
		zap.String("provider", r.inner.Name()),
		zap.String("model", req.Model),
		zap.Error(err),
	)
	req.ResponseFormat = port.ResponseFormatNone
	return r.generate(ctx, req)
}

func (r *Resilient) generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResponse, error) {
	cfg := r.retry
	cfg.DelayHint = retryAfter
	cfg.OnRetry = resilience.RetryLogger(r.inner.Name(), "generate "+req.Model)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*port.GenerateResponse, error) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for %s rate limit: %w", r.inner.Name(), err)
			}
		}
		timeout := r.timeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = min(timeout, time.Until(deadline))
		}
		// An attempt already in flight finishes even if the caller goes away.
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		resp, err := r.inner.Generate(attemptCtx, req)
		if err != nil && attemptCtx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", err, context.DeadlineExceeded)
		}
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			var pe *domain.ProviderError
			if !errors.As(err, &pe) {
				err = domain.NewTransportError(r.inner.Name(), req.Model, fmt.Errorf("call timed out after %s: %w", timeout, err))
			}
		}
		return resp, err
	})
}

func hintRejected(err error) bool {
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func retryAfter(err error) time.Duration {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}
