// Package csvexport writes extracted invoices and bids as spreadsheet-friendly CSV.
package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bidflow/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row. Document-level columns repeat on every line-item row.
var columns = []string{
	"File Name",
	"Company",
	"Invoice Number",
	"Invoice Date",
	"Due Date",
	"Job Reference",
	"Line",
	"Description",
	"Quantity",
	"Unit",
	"Unit Price",
	"Amount",
	"Amount Derived",
	"Cost Code",
	"Category",
	"Subtotal",
	"Tax",
	"Total",
	"Total Computed",
	"Strategy",
	"Model",
}

// Writer wraps csv.Writer for exporting extractions as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteInvoice writes one row per line item. An invoice without line items
// still gets a single row carrying its document-level columns.
func (w *Writer) WriteInvoice(data *domain.ParsedInvoiceData) error {
	if len(data.LineItems) == 0 {
		return w.csv.Write(invoiceRow(data))
	}
	for i := range data.LineItems {
		row := invoiceRow(data)
		lineToRow(row, i+1, &data.LineItems[i])
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func invoiceRow(data *domain.ParsedInvoiceData) []string {
	row := make([]string, len(columns))
	row[0] = data.FileName
	row[1] = data.Company.Name
	row[2] = data.InvoiceNumber
	row[3] = data.InvoiceDate
	row[4] = data.DueDate
	row[5] = data.JobReference
	row[15] = formatMoney(data.Subtotal)
	row[16] = formatMoney(data.Tax)
	row[17] = formatMoney(data.Total)
	row[18] = formatBool(data.TotalComputed)
	row[19] = string(data.Strategy)
	row[20] = data.ModelUsed
	return row
}

func lineToRow(row []string, n int, li *domain.ParsedLineItem) {
	row[6] = strconv.Itoa(n)
	row[7] = li.Description
	row[8] = formatOptional(li.Quantity, formatQuantity)
	row[9] = string(li.Unit)
	row[10] = formatOptional(li.UnitPrice, formatMoney)
	row[11] = formatMoney(li.Amount)
	row[12] = formatBool(li.AmountDerived)
	row[13] = li.CostCode
	row[14] = li.Category
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64, format func(float64) string) string {
	if v == nil {
		return ""
	}
	return format(*v)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_name}_{YYYY-MM-DD}{ext}. An empty name becomes "export".
func BuildFilename(name, ext string) string {
	sanitized := SanitizeFilename(name)
	if sanitized == "" {
		sanitized = "export"
	}
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s%s", sanitized, date, ext)
}
