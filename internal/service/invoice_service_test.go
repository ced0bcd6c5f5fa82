package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bidflow/internal/domain"
	"bidflow/internal/service"
	"bidflow/mocks"
)

const bidText = `ACME FRAMING LLC
Bid #B-1042 for Maple St Duplex
Wall framing 1200 SF @ 3.50 = 4,200.00
Total: 4,200.00`

func parsedBid() *domain.ParsedInvoiceData {
	return &domain.ParsedInvoiceData{
		Company:       domain.CompanyInfo{Name: "Acme Framing LLC"},
		JobReference:  "Maple St Duplex",
		InvoiceNumber: "B-1042",
		LineItems: []domain.ParsedLineItem{
			{Description: "Wall framing", Quantity: ptr(1200), Unit: domain.UnitSF, UnitPrice: ptr(3.5), Amount: 4200},
		},
		Subtotal:  4200,
		Total:     4200,
		FileName:  "acme.pdf",
		ModelUsed: "claude-sonnet-4-20250514",
		Strategy:  domain.StrategyDirect,
	}
}

func TestInvoiceService_Extract_Persists(t *testing.T) {
	extractor := new(mocks.MockInvoiceExtractor)
	repo := new(mocks.MockInvoiceRepo)
	svc := service.NewInvoiceService(extractor, repo)

	extractor.On("Extract", mock.Anything, bidText, "acme.pdf").Return(parsedBid(), nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(rec *domain.InvoiceExtraction) bool {
		return rec.ID != uuid.Nil &&
			rec.FileName == "acme.pdf" &&
			rec.CompanyName == "Acme Framing LLC" &&
			rec.Total == 4200 &&
			rec.LineItemCount == 1 &&
			rec.Strategy == domain.StrategyDirect &&
			json.Valid(rec.Data)
	})).Return(nil)

	got, err := svc.Extract(context.Background(), service.ExtractInput{Text: bidText, FileName: "acme.pdf"})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, "B-1042", got.Data.InvoiceNumber)
	extractor.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestInvoiceService_Extract_EmptyText(t *testing.T) {
	extractor := new(mocks.MockInvoiceExtractor)
	svc := service.NewInvoiceService(extractor, new(mocks.MockInvoiceRepo))

	_, err := svc.Extract(context.Background(), service.ExtractInput{Text: "  \n ", FileName: "blank.pdf"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoiceService_Extract_ExtractionErrorPassesThrough(t *testing.T) {
	extractor := new(mocks.MockInvoiceExtractor)
	repo := new(mocks.MockInvoiceRepo)
	svc := service.NewInvoiceService(extractor, repo)

	extractErr := &domain.ExtractionError{FileName: "scan.pdf", Cause: "document may be image-based/scanned; run OCR before extraction"}
	extractor.On("Extract", mock.Anything, "x", "scan.pdf").Return(nil, extractErr)

	_, err := svc.Extract(context.Background(), service.ExtractInput{Text: "x", FileName: "scan.pdf"})

	var ee *domain.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "scan.pdf", ee.FileName)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInvoiceService_Extract_PersistFailureKeepsResult(t *testing.T) {
	extractor := new(mocks.MockInvoiceExtractor)
	repo := new(mocks.MockInvoiceRepo)
	svc := service.NewInvoiceService(extractor, repo)

	extractor.On("Extract", mock.Anything, bidText, "acme.pdf").Return(parsedBid(), nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	got, err := svc.Extract(context.Background(), service.ExtractInput{Text: bidText, FileName: "acme.pdf"})

	require.NoError(t, err)
	assert.Equal(t, 4200.0, got.Data.Total)
}

func storedExtraction(t *testing.T, data *domain.ParsedInvoiceData) *domain.InvoiceExtraction {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &domain.InvoiceExtraction{
		ID:        uuid.New(),
		FileName:  data.FileName,
		Data:      raw,
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInvoiceService_Get(t *testing.T) {
	repo := new(mocks.MockInvoiceRepo)
	svc := service.NewInvoiceService(new(mocks.MockInvoiceExtractor), repo)

	rec := storedExtraction(t, parsedBid())
	repo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

	got, err := svc.Get(context.Background(), rec.ID)

	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.CreatedAt, got.CreatedAt)
	assert.Equal(t, "Acme Framing LLC", got.Data.Company.Name)
	require.Len(t, got.Data.LineItems, 1)
	assert.Equal(t, 3.5, *got.Data.LineItems[0].UnitPrice)
}

func TestInvoiceService_Get_NotFound(t *testing.T) {
	repo := new(mocks.MockInvoiceRepo)
	svc := service.NewInvoiceService(new(mocks.MockInvoiceExtractor), repo)

	id := uuid.New()
	repo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrNotFound)

	_, err := svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvoiceService_ExportCSV(t *testing.T) {
	repo := new(mocks.MockInvoiceRepo)
	svc := service.NewInvoiceService(new(mocks.MockInvoiceExtractor), repo)

	rec := storedExtraction(t, parsedBid())
	repo.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)

	var buf bytes.Buffer
	name, err := svc.ExportCSV(context.Background(), rec.ID, &buf)

	require.NoError(t, err)
	today := time.Now().Format("2006-01-02")
	assert.Equal(t, "Acme_Framing_LLC_"+today+".csv", name)

	body := buf.String()
	require.True(t, strings.HasPrefix(body, "\xEF\xBB\xBF"))
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(body, "\xEF\xBB\xBF"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "File Name", rows[0][0])
	assert.Equal(t, "Wall framing", rows[1][7])
	assert.Equal(t, "4200.00", rows[1][11])
}

func TestInvoiceService_List(t *testing.T) {
	repo := new(mocks.MockInvoiceRepo)
	svc := service.NewInvoiceService(new(mocks.MockInvoiceExtractor), repo)

	recs := []domain.InvoiceExtraction{{ID: uuid.New(), CompanyName: "Acme Framing LLC"}}
	repo.On("List", mock.Anything, 0, 20).Return(recs, 1, nil)

	got, total, err := svc.List(context.Background(), 0, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, recs, got)
}
