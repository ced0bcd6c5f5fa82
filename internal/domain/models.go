package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BoundingBox locates an item on a plan page. Coordinates are normalized to [0,1].
type BoundingBox struct {
	PageIndex int     `json:"page_index"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	// Estimated is set when the model gave no box and the whole page was assumed.
	Estimated bool `json:"estimated,omitempty"`
}

// WholePage returns the estimated box covering an entire page.
func WholePage(page int) BoundingBox {
	return BoundingBox{PageIndex: page, X: 0, Y: 0, Width: 1, Height: 1, Estimated: true}
}

// Area returns width*height.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// ExtractedItem is one detected construction element or invoice line item.
type ExtractedItem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory,omitempty"`
	Quantity    *float64    `json:"quantity"`
	Unit        Unit        `json:"unit,omitempty"`
	UnitCost    *float64    `json:"unit_cost,omitempty"`
	Amount      *float64    `json:"amount,omitempty"`
	Location    string      `json:"location,omitempty"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
	CostCode    *string     `json:"cost_code,omitempty"`
}

// AnalysisIssue is a detected plan-quality problem.
type AnalysisIssue struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category"`
	Severity    Severity    `json:"severity"`
	Location    string      `json:"location,omitempty"`
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
	Suggestion  string      `json:"suggestion,omitempty"`
}

// PlanImage is a fetchable plan sheet image.
type PlanImage struct {
	URL       string `json:"url"`
	PageIndex int    `json:"page_index"`
	Label     string `json:"label,omitempty"`
}

// Annotation is a user mark on a plan sheet passed to the models as context.
type Annotation struct {
	PageIndex   int          `json:"page_index"`
	Label       string       `json:"label"`
	Note        string       `json:"note,omitempty"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
}

// AnalysisOptions configures a single-model or consensus analysis.
type AnalysisOptions struct {
	TaskType           TaskType     `json:"task_type"`
	MaxTokens          int          `json:"max_tokens,omitempty"`
	Temperature        float64      `json:"temperature,omitempty"`
	PrioritizeAccuracy bool         `json:"prioritize_accuracy"`
	IncludeConsensus   bool         `json:"include_consensus"`
	Annotations        []Annotation `json:"annotations,omitempty"`
}

// TokenUsage tracks tokens consumed by one model call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// ModelResult is the typed output of one model invocation. It is not persisted on its own.
type ModelResult struct {
	ModelID       string          `json:"model_id"`
	Provider      string          `json:"provider"`
	Model         string          `json:"model"`
	TaskType      TaskType        `json:"task_type"`
	Items         []ExtractedItem `json:"items,omitempty"`
	Issues        []AnalysisIssue `json:"issues,omitempty"`
	Confidence    float64         `json:"confidence"`
	RawContent    string          `json:"raw_content,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	PayloadDigest string          `json:"payload_digest,omitempty"`
	Repaired      bool            `json:"repaired"`
	FinishReason  string          `json:"finish_reason,omitempty"`
	Truncated     bool            `json:"truncated,omitempty"`
	LatencyMs     int64           `json:"latency_ms"`
	Usage         TokenUsage      `json:"usage"`
}

// ConsensusItem is a merged item with its cross-model support.
type ConsensusItem struct {
	ExtractedItem
	ClusterID       string   `json:"cluster_id"`
	ConsensusCount  int      `json:"consensus_count"`
	Sources         []string `json:"sources"`
	HasDisagreement bool     `json:"has_disagreement"`
}

// ConsensusIssue is a merged quality issue with its cross-model support.
type ConsensusIssue struct {
	AnalysisIssue
	ClusterID       string   `json:"cluster_id"`
	ConsensusCount  int      `json:"consensus_count"`
	Sources         []string `json:"sources"`
	HasDisagreement bool     `json:"has_disagreement"`
}

// DisagreementValue is one model's value for a contested field.
type DisagreementValue struct {
	ModelID    string  `json:"model_id"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Disagreement records models reporting different values for the same logical item.
type Disagreement struct {
	ClusterID string              `json:"cluster_id"`
	ItemName  string              `json:"item_name"`
	Field     string              `json:"field"`
	Kind      DisagreementKind    `json:"kind"`
	Spread    float64             `json:"spread,omitempty"`
	Values    []DisagreementValue `json:"values"`
}

// ModelAgreement summarises one roster member's participation in a round.
type ModelAgreement struct {
	ModelID       string         `json:"model_id"`
	Provider      string         `json:"provider"`
	Model         string         `json:"model"`
	Participated  bool           `json:"participated"`
	Status        AnalysisStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
	ItemCount     int            `json:"item_count"`
	Confidence    float64        `json:"confidence"`
	AgreementRate float64        `json:"agreement_rate"`
	Repaired      bool           `json:"repaired"`
	LatencyMs     int64          `json:"latency_ms"`
}

// ConsensusResult is the merged output of a consensus round.
type ConsensusResult struct {
	ID              uuid.UUID        `json:"id"`
	TaskType        TaskType         `json:"task_type"`
	Items           []ConsensusItem  `json:"items"`
	Issues          []ConsensusIssue `json:"issues,omitempty"`
	Disagreements   []Disagreement   `json:"disagreements"`
	ModelAgreements []ModelAgreement `json:"model_agreements"`
	ModelsInvoked   int              `json:"models_invoked"`
	ModelsSucceeded int              `json:"models_succeeded"`
	Confidence      float64          `json:"confidence"`
	Recommendations []string         `json:"recommendations"`
	CreatedAt       time.Time        `json:"created_at"`
	DurationMs      int64            `json:"duration_ms"`
}

// CompanyInfo identifies the subcontractor or vendor that issued a bid or invoice.
type CompanyInfo struct {
	Name          string `json:"name"`
	Address       string `json:"address,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`
	ContactName   string `json:"contact_name,omitempty"`
}

// ParsedLineItem is one invoice or bid line.
type ParsedLineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Unit        Unit     `json:"unit,omitempty"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	Amount      float64  `json:"amount"`
	CostCode    string   `json:"cost_code,omitempty"`
	Category    string   `json:"category,omitempty"`
	// AmountDerived is set when amount was computed as quantity*unit_price.
	AmountDerived bool `json:"amount_derived,omitempty"`
}

// ParsedInvoiceData is the structured result of invoice/bid text extraction.
type ParsedInvoiceData struct {
	Company       CompanyInfo      `json:"company"`
	JobReference  string           `json:"job_reference,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	InvoiceDate   string           `json:"invoice_date,omitempty"`
	DueDate       string           `json:"due_date,omitempty"`
	LineItems     []ParsedLineItem `json:"line_items"`
	Subtotal      float64          `json:"subtotal"`
	Tax           float64          `json:"tax"`
	Total         float64          `json:"total"`
	// TotalComputed is set when total was not supplied by the model and was summed from line items.
	TotalComputed bool          `json:"total_computed"`
	Timeline      string        `json:"timeline,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	PaymentTerms  string        `json:"payment_terms,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	FileName      string        `json:"file_name,omitempty"`
	ModelUsed     string        `json:"model_used,omitempty"`
	Strategy      ParseStrategy `json:"strategy"`
}

// AnalysisRun is the persisted record of a consensus round.
type AnalysisRun struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	TaskType        TaskType        `db:"task_type" json:"task_type"`
	ImageCount      int             `db:"image_count" json:"image_count"`
	ModelsInvoked   int             `db:"models_invoked" json:"models_invoked"`
	ModelsSucceeded int             `db:"models_succeeded" json:"models_succeeded"`
	ItemCount       int             `db:"item_count" json:"item_count"`
	Disagreements   int             `db:"disagreement_count" json:"disagreement_count"`
	Confidence      float64         `db:"confidence" json:"confidence"`
	Result          json.RawMessage `db:"result" json:"result"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// InvoiceExtraction is the persisted record of an invoice/bid extraction.
type InvoiceExtraction struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	FileName      string          `db:"file_name" json:"file_name"`
	CompanyName   string          `db:"company_name" json:"company_name"`
	Total         float64         `db:"total" json:"total"`
	LineItemCount int             `db:"line_item_count" json:"line_item_count"`
	Strategy      ParseStrategy   `db:"strategy" json:"strategy"`
	Data          json.RawMessage `db:"data" json:"data"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
