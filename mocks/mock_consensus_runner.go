package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bidflow/internal/domain"
)

// MockConsensusRunner is a mock implementation of service.ConsensusRunner.
type MockConsensusRunner struct {
	mock.Mock
}

func (m *MockConsensusRunner) AnalyzeWithConsensus(ctx context.Context, images []domain.PlanImage, opts domain.AnalysisOptions) (*domain.ConsensusResult, error) {
	args := m.Called(ctx, images, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConsensusResult), args.Error(1)
}
