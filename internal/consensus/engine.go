// Package consensus runs several models over the same plan sheets and merges
// their answers into one result with agreement scores and disagreements.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bidflow/internal/domain"
)

// ModelAnalyzer is one roster member. *analyzer.Analyzer implements it.
type ModelAnalyzer interface {
	Analyze(ctx context.Context, images []domain.PlanImage, opts domain.AnalysisOptions) (*domain.ModelResult, error)
	ModelID() string
	Vendor() string
	Model() string
}

// Engine fans an analysis out to every roster member and merges the results.
type Engine struct {
	members []ModelAnalyzer
	cfg     Config
	now     func() time.Time
}

// NewEngine validates the roster. Member ids must be distinct.
func NewEngine(members []ModelAnalyzer, cfg Config) (*Engine, error) {
	if cfg.MinRoster <= 0 {
		cfg.MinRoster = DefaultConfig().MinRoster
	}
	if cfg.MinSuccessful <= 0 {
		cfg.MinSuccessful = DefaultConfig().MinSuccessful
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultConfig().ModelTimeout
	}
	if len(members) < cfg.MinRoster {
		return nil, fmt.Errorf("%w: have %d models, need %d", domain.ErrRosterTooSmall, len(members), cfg.MinRoster)
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if seen[m.ModelID()] {
			return nil, fmt.Errorf("%w: duplicate roster id %q", domain.ErrInvalidInput, m.ModelID())
		}
		seen[m.ModelID()] = true
	}
	return &Engine{members: members, cfg: cfg, now: time.Now}, nil
}

// Roster returns the member ids in roster order.
func (e *Engine) Roster() []string {
	ids := make([]string, len(e.members))
	for i, m := range e.members {
		ids[i] = m.ModelID()
	}
	return ids
}

// outcome is the tagged result of one member's call.
type outcome struct {
	member  ModelAnalyzer
	result  *domain.ModelResult
	err     error
	status  domain.AnalysisStatus
	latency int64
}

// AnalyzeWithConsensus runs every member concurrently and merges the
// successful results. Member calls are detached from ctx cancellation and
// bounded by the per-model timeout. Fewer than MinSuccessful usable results
// is an *domain.InsufficientConsensusError.
func (e *Engine) AnalyzeWithConsensus(ctx context.Context, images []domain.PlanImage, opts domain.AnalysisOptions) (*domain.ConsensusResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: at least one plan image is required", domain.ErrInvalidInput)
	}
	if opts.TaskType == "" {
		opts.TaskType = domain.TaskTakeoff
	}
	if !domain.ValidTaskTypes[opts.TaskType] {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrInvalidInput, opts.TaskType)
	}

	start := e.now()
	outcomes := e.fanOut(ctx, images, opts)

	var succeeded []int
	failures := make(map[string]string)
	for i, o := range outcomes {
		if o.status == domain.StatusSuccess {
			succeeded = append(succeeded, i)
			continue
		}
		failures[o.member.ModelID()] = fmt.Sprintf("%s: %v", o.status, o.err)
	}
	if len(succeeded) < e.cfg.MinSuccessful {
		return nil, &domain.InsufficientConsensusError{
			Required:  e.cfg.MinSuccessful,
			Succeeded: len(succeeded),
			Invoked:   len(outcomes),
			Failures:  failures,
		}
	}

	result := e.merge(opts.TaskType, outcomes)
	result.ID = uuid.New()
	result.TaskType = opts.TaskType
	result.ModelsInvoked = len(outcomes)
	result.ModelsSucceeded = len(succeeded)
	result.CreatedAt = start.UTC()
	result.DurationMs = e.now().Sub(start).Milliseconds()

	zap.L().Info("consensus round complete",
		zap.String("id", result.ID.String()),
		zap.String("task_type", string(opts.TaskType)),
		zap.Int("models_succeeded", result.ModelsSucceeded),
		zap.Int("models_invoked", result.ModelsInvoked),
		zap.Int("disagreements", len(result.Disagreements)),
		zap.Float64("confidence", result.Confidence),
	)
	return result, nil
}

func (e *Engine) fanOut(ctx context.Context, images []domain.PlanImage, opts domain.AnalysisOptions) []outcome {
	outcomes := make([]outcome, len(e.members))
	detached := context.WithoutCancel(ctx)

	// No errgroup context: one member failing must not cancel its siblings.
	var g errgroup.Group
	limit := e.cfg.MaxParallel
	if limit <= 0 {
		limit = len(e.members)
	}
	g.SetLimit(limit)

	for i, m := range e.members {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(detached, e.cfg.ModelTimeout)
			defer cancel()

			began := time.Now()
			res, err := m.Analyze(callCtx, images, opts)
			o := outcome{member: m, result: res, err: err, latency: time.Since(began).Milliseconds()}
			switch {
			case err == nil && res != nil:
				o.status = domain.StatusSuccess
			case err == nil:
				o.err = errors.New("no result returned")
				o.status = domain.StatusFailed
			case errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded:
				o.status = domain.StatusTimeout
			default:
				o.status = domain.StatusFailed
			}
			outcomes[i] = o

			if o.status == domain.StatusSuccess {
				zap.L().Info("consensus member succeeded",
					zap.String("model", m.ModelID()),
					zap.Int("items", len(res.Items)+len(res.Issues)),
					zap.Bool("repaired", res.Repaired),
					zap.Int64("latency_ms", o.latency),
				)
			} else {
				zap.L().Warn("consensus member excluded",
					zap.String("model", m.ModelID()),
					zap.String("status", string(o.status)),
					zap.Int64("latency_ms", o.latency),
					zap.Error(o.err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
