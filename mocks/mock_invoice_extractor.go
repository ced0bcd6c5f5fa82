package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bidflow/internal/domain"
)

// MockInvoiceExtractor is a mock implementation of service.InvoiceExtractor.
type MockInvoiceExtractor struct {
	mock.Mock
}

func (m *MockInvoiceExtractor) Extract(ctx context.Context, text, fileName string) (*domain.ParsedInvoiceData, error) {
	args := m.Called(ctx, text, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParsedInvoiceData), args.Error(1)
}
