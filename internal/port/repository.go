package port

import (
	"context"

	"github.com/google/uuid"

	"bidflow/internal/domain"
)

// AnalysisRepository persists consensus rounds.
type AnalysisRepository interface {
	Create(ctx context.Context, run *domain.AnalysisRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AnalysisRun, error)
	List(ctx context.Context, offset, limit int) ([]domain.AnalysisRun, int, error)
}

// InvoiceRepository persists invoice/bid extractions.
type InvoiceRepository interface {
	Create(ctx context.Context, rec *domain.InvoiceExtraction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceExtraction, error)
	List(ctx context.Context, offset, limit int) ([]domain.InvoiceExtraction, int, error)
}
