package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidflow/internal/config"
	"bidflow/internal/csvexport"
	"bidflow/internal/domain"
	"bidflow/internal/port"
	"bidflow/internal/provider"
	"bidflow/internal/xlsxexport"
)

// ConsensusRunner runs one multi-model consensus round. *consensus.Engine satisfies it.
type ConsensusRunner interface {
	AnalyzeWithConsensus(ctx context.Context, images []domain.PlanImage, opts domain.AnalysisOptions) (*domain.ConsensusResult, error)
}

// ImageInput references a plan sheet either by URL or by key in the plans bucket.
type ImageInput struct {
	URL       string
	S3Key     string
	PageIndex int
	Label     string
}

// AnalyzeInput is the DTO for a consensus analysis request.
type AnalyzeInput struct {
	TaskType    domain.TaskType
	Images      []ImageInput
	Annotations []domain.Annotation
	Options     domain.AnalysisOptions
}

// ExportOutput is a generated file ready to stream.
type ExportOutput struct {
	FileName    string
	ContentType string
	Data        []byte
}

// AnalysisService defines the consensus analysis contract.
type AnalysisService interface {
	Analyze(ctx context.Context, input AnalyzeInput) (*domain.ConsensusResult, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.ConsensusResult, error)
	List(ctx context.Context, offset, limit int) ([]domain.AnalysisRun, int, error)
	Export(ctx context.Context, id uuid.UUID) (*ExportOutput, error)
	ExportToStorage(ctx context.Context, id uuid.UUID) (string, error)
}

type analysisService struct {
	engine  ConsensusRunner
	repo    port.AnalysisRepository
	storage port.ObjectStorage
	cfg     *config.S3Config
}

// NewAnalysisService creates a new AnalysisService implementation.
// storage may be nil, in which case s3 image keys and storage exports are rejected.
func NewAnalysisService(
	engine ConsensusRunner,
	repo port.AnalysisRepository,
	storage port.ObjectStorage,
	cfg *config.S3Config,
) AnalysisService {
	return &analysisService{
		engine:  engine,
		repo:    repo,
		storage: storage,
		cfg:     cfg,
	}
}

func (s *analysisService) Analyze(ctx context.Context, input AnalyzeInput) (*domain.ConsensusResult, error) {
	if len(input.Images) == 0 {
		return nil, fmt.Errorf("%w: at least one plan image is required", domain.ErrInvalidInput)
	}

	images, err := s.resolveImages(ctx, input.Images)
	if err != nil {
		return nil, err
	}

	opts := input.Options
	if input.TaskType != "" {
		opts.TaskType = input.TaskType
	}
	if len(input.Annotations) > 0 {
		opts.Annotations = input.Annotations
	}

	result, err := s.engine.AnalyzeWithConsensus(ctx, images, opts)
	if err != nil {
		return nil, err
	}

	// The models have already been paid for; store the round even if the caller went away.
	if err := s.persist(context.WithoutCancel(ctx), result, len(images)); err != nil {
		zap.L().Error("failed to persist analysis run",
			zap.String("analysis_id", result.ID.String()),
			zap.Error(err),
		)
	}
	return result, nil
}

func (s *analysisService) resolveImages(ctx context.Context, inputs []ImageInput) ([]domain.PlanImage, error) {
	images := make([]domain.PlanImage, 0, len(inputs))
	for i, in := range inputs {
		img := domain.PlanImage{PageIndex: in.PageIndex, Label: in.Label}
		switch {
		case in.URL != "" && in.S3Key != "":
			return nil, fmt.Errorf("%w: image %d: give either url or s3_key, not both", domain.ErrInvalidInput, i)
		case in.URL != "":
			if err := checkImageURL(in.URL); err != nil {
				return nil, fmt.Errorf("%w: image %d: %v", domain.ErrInvalidInput, i, err)
			}
			img.URL = in.URL
		case in.S3Key != "":
			if s.storage == nil {
				return nil, fmt.Errorf("%w: image %d: object storage is not configured", domain.ErrInvalidInput, i)
			}
			u, err := s.storage.PresignGet(ctx, s.cfg.Bucket, in.S3Key, s.presignExpiry())
			if err != nil {
				return nil, fmt.Errorf("presigning image %d: %w", i, err)
			}
			img.URL = u
		default:
			return nil, fmt.Errorf("%w: image %d: url or s3_key is required", domain.ErrInvalidInput, i)
		}
		images = append(images, img)
	}
	return images, nil
}

// checkImageURL accepts base64 data URLs and http(s) URLs whose host is not
// localhost or a non-public IP literal.
func checkImageURL(raw string) error {
	if strings.HasPrefix(raw, "data:image/") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return fmt.Errorf("url must be http(s) or a data:image URL")
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("url host %s is not reachable from the model backends", host)
	}
	if addr, err := netip.ParseAddr(host); err == nil && !provider.IsPublicAddr(addr) {
		return fmt.Errorf("url host %s is not a public address", host)
	}
	return nil
}

func (s *analysisService) presignExpiry() time.Duration {
	if s.cfg == nil || s.cfg.PresignExpiry <= 0 {
		return time.Hour
	}
	return time.Duration(s.cfg.PresignExpiry) * time.Second
}

func (s *analysisService) persist(ctx context.Context, result *domain.ConsensusResult, imageCount int) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding analysis result: %w", err)
	}
	count := len(result.Items)
	if result.TaskType == domain.TaskQuality {
		count = len(result.Issues)
	}
	run := &domain.AnalysisRun{
		ID:              result.ID,
		TaskType:        result.TaskType,
		ImageCount:      imageCount,
		ModelsInvoked:   result.ModelsInvoked,
		ModelsSucceeded: result.ModelsSucceeded,
		ItemCount:       count,
		Disagreements:   len(result.Disagreements),
		Confidence:      result.Confidence,
		Result:          raw,
		CreatedAt:       result.CreatedAt,
	}
	return s.repo.Create(ctx, run)
}

func (s *analysisService) Get(ctx context.Context, id uuid.UUID) (*domain.ConsensusResult, error) {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var result domain.ConsensusResult
	if err := json.Unmarshal(run.Result, &result); err != nil {
		return nil, fmt.Errorf("decoding stored analysis %s: %w", id, err)
	}
	return &result, nil
}

func (s *analysisService) List(ctx context.Context, offset, limit int) ([]domain.AnalysisRun, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *analysisService) Export(ctx context.Context, id uuid.UUID) (*ExportOutput, error) {
	result, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := xlsxexport.Write(&buf, result); err != nil {
		return nil, fmt.Errorf("exporting analysis %s: %w", id, err)
	}
	return &ExportOutput{
		FileName:    csvexport.BuildFilename(string(result.TaskType)+"_"+shortID(id), ".xlsx"),
		ContentType: xlsxexport.ContentType,
		Data:        buf.Bytes(),
	}, nil
}

func (s *analysisService) ExportToStorage(ctx context.Context, id uuid.UUID) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("%w: object storage is not configured", domain.ErrInvalidInput)
	}
	out, err := s.Export(ctx, id)
	if err != nil {
		return "", err
	}

	key := s.cfg.ExportPrefix + id.String() + ".xlsx"
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:             s.cfg.Bucket,
		Key:                key,
		Body:               bytes.NewReader(out.Data),
		ContentType:        out.ContentType,
		ContentDisposition: fmt.Sprintf(`attachment; filename="%s"`, out.FileName),
	}); err != nil {
		return "", fmt.Errorf("uploading export: %w", err)
	}

	link, err := s.storage.PresignGet(ctx, s.cfg.Bucket, key, s.presignExpiry())
	if err != nil {
		// the object is useless without a link
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), s.cfg.Bucket, key); delErr != nil {
			zap.L().Warn("failed to delete unlinked export", zap.String("key", key), zap.Error(delErr))
		}
		return "", fmt.Errorf("presigning export: %w", err)
	}
	zap.L().Info("analysis export uploaded",
		zap.String("analysis_id", id.String()),
		zap.String("key", key),
	)
	return link, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
