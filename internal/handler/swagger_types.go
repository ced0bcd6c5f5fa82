package handler

import (
	"bidflow/internal/domain"
)

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// ImageRef points at one plan sheet: a fetchable URL or a key in the plans bucket.
type ImageRef struct {
	URL       string `json:"url" example:"https://cdn.example.com/jobs/42/A1.png"`
	S3Key     string `json:"s3_key" example:"jobs/42/A1.png"`
	PageIndex int    `json:"page_index" binding:"min=0" example:"0"`
	Label     string `json:"label" example:"A1 - Floor Plan"`
}

// AnalyzeRequest represents the consensus analysis request body.
type AnalyzeRequest struct {
	TaskType           domain.TaskType     `json:"task_type" binding:"required,oneof=takeoff quality bid_analysis" example:"takeoff"`
	Images             []ImageRef          `json:"images" binding:"required,min=1,max=20,dive"`
	Annotations        []domain.Annotation `json:"annotations"`
	PrioritizeAccuracy bool                `json:"prioritize_accuracy" example:"true"`
	IncludeConsensus   bool                `json:"include_consensus" example:"true"`
	MaxTokens          int                 `json:"max_tokens" binding:"omitempty,min=256,max=32768" example:"8192"`
}

// ExtractInvoiceRequest represents the invoice/bid extraction request body.
type ExtractInvoiceRequest struct {
	Text     string `json:"text" binding:"required" example:"ACME FRAMING LLC\nBid #B-1042\nWall framing 1200 SF @ 3.50 = 4,200.00\nTotal: 4,200.00"`
	FileName string `json:"file_name" example:"acme-bid.pdf"`
}

// RepairJSONRequest represents the JSON repair request body.
type RepairJSONRequest struct {
	Text string `json:"text" binding:"required" example:"{\"total\": 100 \"lineItems\": []"`
}

// --- Response Types ---

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"database not reachable"`
}

// RepairJSONResponse is the result of repairing model output.
type RepairJSONResponse struct {
	Repaired string `json:"repaired" example:"{\"total\": 100 ,\"lineItems\": []}"`
	Valid    bool   `json:"valid" example:"true"`
	Changed  bool   `json:"changed" example:"true"`
}

// ExportLinkResponse carries a presigned download link for a stored export.
type ExportLinkResponse struct {
	URL string `json:"url" example:"https://bidflow-plans.s3.amazonaws.com/exports/...?X-Amz-Signature=..."`
}

// --- Generic Response Wrappers ---

// Response wraps a successful response with data.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}
