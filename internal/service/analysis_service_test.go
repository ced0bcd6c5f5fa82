package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bidflow/internal/config"
	"bidflow/internal/domain"
	"bidflow/internal/port"
	"bidflow/internal/service"
	"bidflow/mocks"
)

func testS3Config() *config.S3Config {
	return &config.S3Config{
		Region:        "us-east-1",
		Bucket:        "plans",
		PresignExpiry: 3600,
		ExportPrefix:  "exports/",
	}
}

func ptr(v float64) *float64 { return &v }

func consensusResult() *domain.ConsensusResult {
	return &domain.ConsensusResult{
		ID:       uuid.New(),
		TaskType: domain.TaskTakeoff,
		Items: []domain.ConsensusItem{{
			ExtractedItem: domain.ExtractedItem{ID: "c1", Name: "2x4 studs", Category: "framing", Quantity: ptr(120), Unit: domain.UnitEA, Confidence: 0.9},
			ClusterID:     "c1", ConsensusCount: 3, Sources: []string{"claude-sonnet", "gpt-4o", "gemini-flash"},
		}},
		Disagreements:   []domain.Disagreement{},
		ModelsInvoked:   5,
		ModelsSucceeded: 3,
		Confidence:      0.86,
		Recommendations: []string{"No manual review flagged; all items were reported consistently."},
		CreatedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type analysisFixture struct {
	engine  *mocks.MockConsensusRunner
	repo    *mocks.MockAnalysisRepo
	storage *mocks.MockObjectStorage
	svc     service.AnalysisService
}

func newAnalysisFixture() *analysisFixture {
	f := &analysisFixture{
		engine:  new(mocks.MockConsensusRunner),
		repo:    new(mocks.MockAnalysisRepo),
		storage: new(mocks.MockObjectStorage),
	}
	f.svc = service.NewAnalysisService(f.engine, f.repo, f.storage, testS3Config())
	return f
}

func TestAnalysisService_Analyze_ResolvesImagesAndPersists(t *testing.T) {
	f := newAnalysisFixture()
	result := consensusResult()

	f.storage.On("PresignGet", mock.Anything, "plans", "jobs/42/a1.png", time.Hour).
		Return("https://plans.s3.amazonaws.com/jobs/42/a1.png?X-Amz-Signature=abc", nil)

	wantImages := []domain.PlanImage{
		{URL: "https://plans.s3.amazonaws.com/jobs/42/a1.png?X-Amz-Signature=abc", PageIndex: 0, Label: "A1"},
		{URL: "https://cdn.example.com/a2.png", PageIndex: 1},
	}
	f.engine.On("AnalyzeWithConsensus", mock.Anything, wantImages, mock.MatchedBy(func(o domain.AnalysisOptions) bool {
		return o.TaskType == domain.TaskTakeoff && len(o.Annotations) == 1 && o.PrioritizeAccuracy
	})).Return(result, nil)

	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(run *domain.AnalysisRun) bool {
		var stored domain.ConsensusResult
		return run.ID == result.ID &&
			run.ImageCount == 2 &&
			run.ItemCount == 1 &&
			run.ModelsSucceeded == 3 &&
			json.Unmarshal(run.Result, &stored) == nil &&
			stored.ID == result.ID
	})).Return(nil)

	got, err := f.svc.Analyze(context.Background(), service.AnalyzeInput{
		TaskType: domain.TaskTakeoff,
		Images: []service.ImageInput{
			{S3Key: "jobs/42/a1.png", PageIndex: 0, Label: "A1"},
			{URL: "https://cdn.example.com/a2.png", PageIndex: 1},
		},
		Annotations: []domain.Annotation{{PageIndex: 0, Label: "Unit 2B"}},
		Options:     domain.AnalysisOptions{PrioritizeAccuracy: true},
	})

	require.NoError(t, err)
	assert.Equal(t, result, got)
	f.engine.AssertExpectations(t)
	f.repo.AssertExpectations(t)
	f.storage.AssertExpectations(t)
}

func TestAnalysisService_Analyze_PersistsAfterCallerCancels(t *testing.T) {
	f := newAnalysisFixture()
	result := consensusResult()

	ctx, cancel := context.WithCancel(context.Background())
	f.engine.On("AnalyzeWithConsensus", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(result, nil)
	f.repo.On("Create", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).
		Return(nil)

	_, err := f.svc.Analyze(ctx, service.AnalyzeInput{
		TaskType: domain.TaskTakeoff,
		Images:   []service.ImageInput{{URL: "https://cdn.example.com/a1.png"}},
	})

	require.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestAnalysisService_Analyze_PersistFailureKeepsResult(t *testing.T) {
	f := newAnalysisFixture()
	result := consensusResult()

	f.engine.On("AnalyzeWithConsensus", mock.Anything, mock.Anything, mock.Anything).Return(result, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	got, err := f.svc.Analyze(context.Background(), service.AnalyzeInput{
		TaskType: domain.TaskTakeoff,
		Images:   []service.ImageInput{{URL: "https://cdn.example.com/a1.png"}},
	})

	require.NoError(t, err)
	assert.Equal(t, result.ID, got.ID)
}

func TestAnalysisService_Analyze_InvalidImages(t *testing.T) {
	tests := []struct {
		name   string
		images []service.ImageInput
	}{
		{"no images", nil},
		{"url and key", []service.ImageInput{{URL: "https://cdn.example.com/a.png", S3Key: "a.png"}}},
		{"neither", []service.ImageInput{{PageIndex: 0}}},
		{"unsupported scheme", []service.ImageInput{{URL: "ftp://files.example.com/a.png"}}},
		{"relative url", []service.ImageInput{{URL: "/plans/a.png"}}},
		{"metadata address", []service.ImageInput{{URL: "http://169.254.169.254/latest/meta-data/"}}},
		{"loopback literal", []service.ImageInput{{URL: "http://127.0.0.1:8080/a.png"}}},
		{"private literal", []service.ImageInput{{URL: "https://10.0.4.12/a.png"}}},
		{"localhost", []service.ImageInput{{URL: "http://localhost/a.png"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture()
			_, err := f.svc.Analyze(context.Background(), service.AnalyzeInput{
				TaskType: domain.TaskTakeoff,
				Images:   tt.images,
			})
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			f.engine.AssertNotCalled(t, "AnalyzeWithConsensus", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAnalysisService_Analyze_DataURLAccepted(t *testing.T) {
	f := newAnalysisFixture()
	f.engine.On("AnalyzeWithConsensus", mock.Anything, mock.Anything, mock.Anything).Return(consensusResult(), nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Analyze(context.Background(), service.AnalyzeInput{
		TaskType: domain.TaskQuality,
		Images:   []service.ImageInput{{URL: "data:image/png;base64,iVBORw0KGgo="}},
	})
	require.NoError(t, err)
}

func TestAnalysisService_Analyze_S3KeyWithoutStorage(t *testing.T) {
	engine := new(mocks.MockConsensusRunner)
	svc := service.NewAnalysisService(engine, new(mocks.MockAnalysisRepo), nil, testS3Config())

	_, err := svc.Analyze(context.Background(), service.AnalyzeInput{
		TaskType: domain.TaskTakeoff,
		Images:   []service.ImageInput{{S3Key: "jobs/42/a1.png"}},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	engine.AssertNotCalled(t, "AnalyzeWithConsensus", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalysisService_Analyze_EngineErrorNotPersisted(t *testing.T) {
	f := newAnalysisFixture()
	engineErr := &domain.InsufficientConsensusError{Required: 2, Succeeded: 1, Invoked: 5}
	f.engine.On("AnalyzeWithConsensus", mock.Anything, mock.Anything, mock.Anything).Return(nil, engineErr)

	_, err := f.svc.Analyze(context.Background(), service.AnalyzeInput{
		TaskType: domain.TaskTakeoff,
		Images:   []service.ImageInput{{URL: "https://cdn.example.com/a1.png"}},
	})

	var ice *domain.InsufficientConsensusError
	require.ErrorAs(t, err, &ice)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func storedRun(t *testing.T, result *domain.ConsensusResult) *domain.AnalysisRun {
	t.Helper()
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	return &domain.AnalysisRun{ID: result.ID, TaskType: result.TaskType, Result: raw, CreatedAt: result.CreatedAt}
}

func TestAnalysisService_Get(t *testing.T) {
	f := newAnalysisFixture()
	result := consensusResult()
	f.repo.On("GetByID", mock.Anything, result.ID).Return(storedRun(t, result), nil)

	got, err := f.svc.Get(context.Background(), result.ID)

	require.NoError(t, err)
	assert.Equal(t, result.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "2x4 studs", got.Items[0].Name)
	assert.Equal(t, 120.0, *got.Items[0].Quantity)
}

func TestAnalysisService_Get_NotFound(t *testing.T) {
	f := newAnalysisFixture()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrNotFound)

	_, err := f.svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnalysisService_Export(t *testing.T) {
	f := newAnalysisFixture()
	result := consensusResult()
	f.repo.On("GetByID", mock.Anything, result.ID).Return(storedRun(t, result), nil)

	out, err := f.svc.Export(context.Background(), result.ID)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.FileName, "takeoff_"+result.ID.String()[:8]+"_"))
	assert.True(t, strings.HasSuffix(out.FileName, ".xlsx"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", out.ContentType)
	// xlsx is a zip container
	assert.Equal(t, "PK", string(out.Data[:2]))
}

func TestAnalysisService_ExportToStorage(t *testing.T) {
	f := newAnalysisFixture()
	result := consensusResult()
	key := "exports/" + result.ID.String() + ".xlsx"

	f.repo.On("GetByID", mock.Anything, result.ID).Return(storedRun(t, result), nil)
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "plans" &&
			in.Key == key &&
			strings.HasPrefix(in.ContentDisposition, `attachment; filename="takeoff_`)
	})).Return(&port.UploadOutput{Location: "s3://plans/" + key}, nil)
	f.storage.On("PresignGet", mock.Anything, "plans", key, time.Hour).Return("https://signed/export", nil)

	link, err := f.svc.ExportToStorage(context.Background(), result.ID)

	require.NoError(t, err)
	assert.Equal(t, "https://signed/export", link)
	f.storage.AssertExpectations(t)
}

func TestAnalysisService_ExportToStorage_UploadFails(t *testing.T) {
	f := newAnalysisFixture()
	result := consensusResult()

	f.repo.On("GetByID", mock.Anything, result.ID).Return(storedRun(t, result), nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	_, err := f.svc.ExportToStorage(context.Background(), result.ID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploading export")
	f.storage.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalysisService_ExportToStorage_PresignFailsDeletesObject(t *testing.T) {
	f := newAnalysisFixture()
	result := consensusResult()
	key := "exports/" + result.ID.String() + ".xlsx"

	f.repo.On("GetByID", mock.Anything, result.ID).Return(storedRun(t, result), nil)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.storage.On("PresignGet", mock.Anything, "plans", key, time.Hour).Return("", errors.New("expired credentials"))
	f.storage.On("Delete", mock.Anything, "plans", key).Return(nil)

	_, err := f.svc.ExportToStorage(context.Background(), result.ID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "presigning export")
	f.storage.AssertExpectations(t)
}
