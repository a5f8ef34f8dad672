// Package extract turns invoice documents into structured field data.
package extract

import (
	"context"

	"github.com/rezonia/invoice-hub/internal/model"
)

// Extraction methods reported alongside results.
const (
	MethodVision   = "llm_vision"
	MethodFallback = "fallback"
)

// Document is a single invoice file handed to an engine.
type Document struct {
	Data     []byte
	Filename string
	MimeType string
	// Hint carries optional caller context, e.g. "utility bill".
	Hint string
}

// Extraction is the structured result of reading one document.
type Extraction struct {
	Vendor    string           `json:"vendor"`
	Date      string           `json:"date"`
	Total     string           `json:"total"`
	Number    string           `json:"invoice_number"`
	Tax       string           `json:"tax"`
	Subtotal  string           `json:"subtotal"`
	Summary   string           `json:"summary"`
	LineItems []model.LineItem `json:"line_items"`

	// Method records how the fields were produced; AIUsed is false when
	// the engine fell back to placeholder values.
	Method string `json:"-"`
	AIUsed bool   `json:"-"`
}

// Engine reads invoice fields out of a document. Implementations must honor
// ctx cancellation and return *model.ExtractionError on failure.
type Engine interface {
	Extract(ctx context.Context, doc Document) (*Extraction, error)
}

// Apply copies the extracted fields onto a record.
func (e *Extraction) Apply(rec *model.InvoiceRecord) {
	rec.Vendor = e.Vendor
	rec.Date = e.Date
	rec.Total = e.Total
	rec.Number = e.Number
	rec.Tax = e.Tax
	rec.Subtotal = e.Subtotal
	rec.Summary = e.Summary
	if e.LineItems != nil {
		rec.LineItems = e.LineItems
	} else {
		rec.LineItems = []model.LineItem{}
	}
}
