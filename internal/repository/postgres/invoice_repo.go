package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bidflow/internal/domain"
	"bidflow/internal/port"
)

type invoiceRepo struct {
	db *sqlx.DB
}

// NewInvoiceRepo creates a new PostgreSQL-backed InvoiceRepository.
func NewInvoiceRepo(db *sqlx.DB) port.InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) Create(ctx context.Context, rec *domain.InvoiceExtraction) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO invoice_extractions (
		id, file_name, company_name, total, line_item_count, strategy, data, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.FileName, rec.CompanyName, rec.Total, rec.LineItemCount,
		rec.Strategy, rec.Data, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("invoiceRepo.Create: %w", err)
	}
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceExtraction, error) {
	var rec domain.InvoiceExtraction
	err := r.db.GetContext(ctx, &rec, "SELECT * FROM invoice_extractions WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invoice extraction %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("invoiceRepo.GetByID: %w", err)
	}
	return &rec, nil
}

func (r *invoiceRepo) List(ctx context.Context, offset, limit int) ([]domain.InvoiceExtraction, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM invoice_extractions"); err != nil {
		return nil, 0, fmt.Errorf("invoiceRepo.List count: %w", err)
	}

	var recs []domain.InvoiceExtraction
	err := r.db.SelectContext(ctx, &recs,
		`SELECT id, file_name, company_name, total, line_item_count, strategy, created_at
		FROM invoice_extractions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("invoiceRepo.List: %w", err)
	}
	return recs, total, nil
}
