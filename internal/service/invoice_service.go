package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bidflow/internal/csvexport"
	"bidflow/internal/domain"
	"bidflow/internal/port"
)

// InvoiceExtractor turns document text into structured invoice data. *invoice.Extractor satisfies it.
type InvoiceExtractor interface {
	Extract(ctx context.Context, text, fileName string) (*domain.ParsedInvoiceData, error)
}

// ExtractInput is the DTO for an invoice/bid extraction request.
type ExtractInput struct {
	Text     string
	FileName string
}

// InvoiceRecord is a stored extraction with its parsed data.
type InvoiceRecord struct {
	ID        uuid.UUID                 `json:"id"`
	CreatedAt time.Time                 `json:"created_at"`
	Data      *domain.ParsedInvoiceData `json:"data"`
}

// InvoiceService defines the invoice/bid extraction contract.
type InvoiceService interface {
	Extract(ctx context.Context, input ExtractInput) (*InvoiceRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*InvoiceRecord, error)
	List(ctx context.Context, offset, limit int) ([]domain.InvoiceExtraction, int, error)
	// ExportCSV writes the extraction as CSV to w and returns the suggested file name.
	ExportCSV(ctx context.Context, id uuid.UUID, w io.Writer) (string, error)
}

type invoiceService struct {
	extractor InvoiceExtractor
	repo      port.InvoiceRepository
}

// NewInvoiceService creates a new InvoiceService implementation.
func NewInvoiceService(extractor InvoiceExtractor, repo port.InvoiceRepository) InvoiceService {
	return &invoiceService{
		extractor: extractor,
		repo:      repo,
	}
}

func (s *invoiceService) Extract(ctx context.Context, input ExtractInput) (*InvoiceRecord, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: document text is required", domain.ErrInvalidInput)
	}

	data, err := s.extractor.Extract(ctx, input.Text, input.FileName)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding extraction: %w", err)
	}
	rec := &domain.InvoiceExtraction{
		ID:            uuid.New(),
		FileName:      input.FileName,
		CompanyName:   data.Company.Name,
		Total:         data.Total,
		LineItemCount: len(data.LineItems),
		Strategy:      data.Strategy,
		Data:          raw,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.Create(context.WithoutCancel(ctx), rec); err != nil {
		zap.L().Error("failed to persist invoice extraction",
			zap.String("file_name", input.FileName),
			zap.Error(err),
		)
	}

	return &InvoiceRecord{ID: rec.ID, CreatedAt: rec.CreatedAt, Data: data}, nil
}

func (s *invoiceService) Get(ctx context.Context, id uuid.UUID) (*InvoiceRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var data domain.ParsedInvoiceData
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		return nil, fmt.Errorf("decoding stored extraction %s: %w", id, err)
	}
	return &InvoiceRecord{ID: rec.ID, CreatedAt: rec.CreatedAt, Data: &data}, nil
}

func (s *invoiceService) List(ctx context.Context, offset, limit int) ([]domain.InvoiceExtraction, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *invoiceService) ExportCSV(ctx context.Context, id uuid.UUID, w io.Writer) (string, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if _, err := w.Write(csvexport.BOM); err != nil {
		return "", fmt.Errorf("writing csv: %w", err)
	}
	cw := csvexport.NewWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}
	if err := cw.WriteInvoice(rec.Data); err != nil {
		return "", fmt.Errorf("writing csv rows: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}

	name := rec.Data.Company.Name
	if name == "" {
		name = strings.TrimSuffix(rec.Data.FileName, ".pdf")
	}
	return csvexport.BuildFilename(name, ".csv"), nil
}
