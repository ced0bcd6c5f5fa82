package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bidflow/internal/port"
)

// MockModelProvider is a mock implementation of port.ModelProvider.
// Name returns ProviderName without recording a call.
type MockModelProvider struct {
	mock.Mock
	ProviderName string
}

// NewMockModelProvider returns a mock reporting name from Name().
func NewMockModelProvider(name string) *MockModelProvider {
	return &MockModelProvider{ProviderName: name}
}

func (m *MockModelProvider) Generate(ctx context.Context, req port.GenerateRequest) (*port.GenerateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.GenerateResponse), args.Error(1)
}

func (m *MockModelProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}
