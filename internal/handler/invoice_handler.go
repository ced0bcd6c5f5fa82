package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"bidflow/internal/service"
)

// InvoiceHandler handles invoice/bid extraction endpoints.
type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// Extract handles POST /api/v1/invoices/extract
// @Summary Extract an invoice or bid
// @Description Turns document text into structured line items and totals
// @Tags invoices
// @Accept json
// @Produce json
// @Param request body ExtractInvoiceRequest true "Document text"
// @Success 201 {object} Response{data=service.InvoiceRecord} "Extracted invoice"
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Failure 422 {object} ErrorResponseBody "Document unusable or model output unparseable"
// @Failure 502 {object} ErrorResponseBody "Provider error"
// @Failure 503 {object} ErrorResponseBody "Providers rate limited"
// @Router /invoices/extract [post]
func (h *InvoiceHandler) Extract(c *gin.Context) {
	var req ExtractInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	rec, err := h.invoiceService.Extract(c.Request.Context(), service.ExtractInput{
		Text:     req.Text,
		FileName: req.FileName,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, rec)
}

// Get handles GET /api/v1/invoices/:id
// @Summary Get an extracted invoice
// @Tags invoices
// @Produce json
// @Param id path string true "Extraction ID (UUID)"
// @Success 200 {object} Response{data=service.InvoiceRecord}
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Not found"
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rec, err := h.invoiceService.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, rec)
}

// List handles GET /api/v1/invoices
// @Summary List extracted invoices
// @Tags invoices
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.InvoiceExtraction,meta=PagMeta}
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	recs, total, err := h.invoiceService.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, recs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Export handles GET /api/v1/invoices/:id/export
// @Summary Export an extracted invoice as CSV
// @Tags invoices
// @Produce text/csv
// @Param id path string true "Extraction ID (UUID)"
// @Success 200 {file} file "CSV with one row per line item"
// @Failure 404 {object} ErrorResponseBody "Not found"
// @Router /invoices/{id}/export [get]
func (h *InvoiceHandler) Export(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	// Buffer so a failure can still produce a JSON error instead of a partial file.
	var buf bytes.Buffer
	name, err := h.invoiceService.ExportCSV(c.Request.Context(), id, &buf)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
