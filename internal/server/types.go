package server

import (
	"github.com/rezonia/invoice-hub/internal/ingest"
	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/report"
)

// ProcessResponse is returned by the single-document process endpoints.
type ProcessResponse struct {
	Success          bool                 `json:"success"`
	Duplicate        bool                 `json:"duplicate"`
	Message          string               `json:"message,omitempty"`
	InvoiceID        int64                `json:"invoice_id,omitempty"`
	ExtractionMethod string               `json:"extraction_method,omitempty"`
	AIUsed           bool                 `json:"ai_used"`
	Data             *model.InvoiceRecord `json:"data,omitempty"`
}

// BatchResponse aggregates per-item outcomes of a batch upload.
type BatchResponse struct {
	Success   bool                  `json:"success"`
	Total     int                   `json:"total"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Results   []ingest.BatchOutcome `json:"results"`
}

// ListResponse carries a page of invoices.
type ListResponse struct {
	Success  bool                  `json:"success"`
	Count    int                   `json:"count"`
	Invoices []model.InvoiceRecord `json:"invoices"`
}

// InvoiceResponse carries one invoice.
type InvoiceResponse struct {
	Success bool                 `json:"success"`
	Invoice *model.InvoiceRecord `json:"invoice"`
}

// StatusUpdateRequest is the PUT body for a status change.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// AnalyticsResponse carries a tenant's summary snapshot.
type AnalyticsResponse struct {
	Success   bool              `json:"success"`
	Analytics *report.Analytics `json:"analytics"`
}

// MessageResponse is the generic confirmation payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
