// Package xlsxexport renders a consensus round as an Excel workbook for estimators.
package xlsxexport

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"bidflow/internal/domain"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	SheetSummary       = "Summary"
	SheetItems         = "Items"
	SheetIssues        = "Issues"
	SheetDisagreements = "Disagreements"
	SheetModels        = "Models"
)

var (
	itemHeader = []any{
		"Cluster", "Name", "Description", "Category", "Subcategory", "Quantity", "Unit",
		"Unit Cost", "Amount", "Cost Code", "Location", "Page", "Confidence", "Models", "Sources", "Disputed",
	}
	issueHeader = []any{
		"Cluster", "Title", "Description", "Category", "Severity", "Location", "Page",
		"Confidence", "Models", "Sources", "Suggestion", "Disputed",
	}
	disagreementHeader = []any{"Cluster", "Item", "Field", "Kind", "Spread", "Values"}
	modelHeader        = []any{
		"Model ID", "Provider", "Model", "Status", "Items", "Confidence", "Agreement Rate",
		"Repaired", "Latency (ms)", "Error",
	}
)

// Write renders result as an xlsx workbook to w.
func Write(w io.Writer, result *domain.ConsensusResult) error {
	f, err := Build(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Build assembles the workbook: a summary sheet, merged items (and issues for
// quality rounds), field disagreements and per-model participation.
func Build(result *domain.ConsensusResult) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	b := &builder{f: f, bold: bold}
	b.summary(result)
	b.table(SheetItems, itemHeader, itemRows(result.Items))
	if len(result.Issues) > 0 {
		b.table(SheetIssues, issueHeader, issueRows(result.Issues))
	}
	b.table(SheetDisagreements, disagreementHeader, disagreementRows(result.Disagreements))
	b.table(SheetModels, modelHeader, modelRows(result.ModelAgreements))
	if b.err != nil {
		f.Close()
		return nil, b.err
	}
	return f, nil
}

// builder keeps the first error so sheet writers can be chained.
type builder struct {
	f    *excelize.File
	bold int
	err  error
}

func (b *builder) summary(result *domain.ConsensusResult) {
	rows := [][]any{
		{"Analysis ID", result.ID.String()},
		{"Task", string(result.TaskType)},
		{"Created At", result.CreatedAt.UTC().Format(time.RFC3339)},
		{"Models Invoked", result.ModelsInvoked},
		{"Models Succeeded", result.ModelsSucceeded},
		{"Confidence", result.Confidence},
		{"Items", len(result.Items)},
		{"Disagreements", len(result.Disagreements)},
		{"Duration (ms)", result.DurationMs},
		{},
		{"Recommendations"},
	}
	for _, rec := range result.Recommendations {
		rows = append(rows, []any{"", rec})
	}
	for i, row := range rows {
		b.setRow(SheetSummary, i+1, row)
	}
	if b.err == nil {
		b.err = b.f.SetColStyle(SheetSummary, "A", b.bold)
	}
	if b.err == nil {
		b.err = b.f.SetColWidth(SheetSummary, "A", "A", 20)
	}
}

func (b *builder) table(sheet string, header []any, rows [][]any) {
	if b.err != nil {
		return
	}
	if _, err := b.f.NewSheet(sheet); err != nil {
		b.err = fmt.Errorf("adding sheet %s: %w", sheet, err)
		return
	}
	b.setRow(sheet, 1, header)
	for i, row := range rows {
		b.setRow(sheet, i+2, row)
	}
	if b.err != nil {
		return
	}
	if err := b.f.SetRowStyle(sheet, 1, 1, b.bold); err != nil {
		b.err = fmt.Errorf("styling %s header: %w", sheet, err)
		return
	}
	if err := b.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		b.err = fmt.Errorf("freezing %s header: %w", sheet, err)
	}
}

func (b *builder) setRow(sheet string, n int, row []any) {
	if b.err != nil || len(row) == 0 {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		b.err = err
		return
	}
	if err := b.f.SetSheetRow(sheet, cell, &row); err != nil {
		b.err = fmt.Errorf("writing %s row %d: %w", sheet, n, err)
	}
}

func itemRows(items []domain.ConsensusItem) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{
			it.ClusterID, it.Name, it.Description, it.Category, it.Subcategory,
			optional(it.Quantity), string(it.Unit), optional(it.UnitCost), optional(it.Amount),
			optionalString(it.CostCode), it.Location, it.BoundingBox.PageIndex + 1,
			it.Confidence, it.ConsensusCount, strings.Join(it.Sources, ", "), yesNo(it.HasDisagreement),
		})
	}
	return rows
}

func issueRows(issues []domain.ConsensusIssue) [][]any {
	rows := make([][]any, 0, len(issues))
	for _, is := range issues {
		rows = append(rows, []any{
			is.ClusterID, is.Title, is.Description, is.Category, string(is.Severity), is.Location,
			is.BoundingBox.PageIndex + 1, is.Confidence, is.ConsensusCount,
			strings.Join(is.Sources, ", "), is.Suggestion, yesNo(is.HasDisagreement),
		})
	}
	return rows
}

func disagreementRows(ds []domain.Disagreement) [][]any {
	rows := make([][]any, 0, len(ds))
	for _, d := range ds {
		values := make([]string, 0, len(d.Values))
		for _, v := range d.Values {
			values = append(values, fmt.Sprintf("%s=%v", v.ModelID, v.Value))
		}
		var spread any = ""
		if d.Kind == domain.DisagreementNumeric {
			spread = d.Spread
		}
		rows = append(rows, []any{d.ClusterID, d.ItemName, d.Field, string(d.Kind), spread, strings.Join(values, "; ")})
	}
	return rows
}

func modelRows(ms []domain.ModelAgreement) [][]any {
	rows := make([][]any, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, []any{
			m.ModelID, m.Provider, m.Model, string(m.Status), m.ItemCount, m.Confidence,
			m.AgreementRate, yesNo(m.Repaired), m.LatencyMs, m.Error,
		})
	}
	return rows
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func optionalString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
