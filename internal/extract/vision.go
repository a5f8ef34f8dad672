package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rezonia/invoice-hub/internal/model"
)

// VisionEngine extracts invoice fields by sending the document image to a
// multimodal model. It satisfies Engine.
type VisionEngine struct {
	client *Client
	model  string
}

// NewVisionEngine wraps a client as an extraction engine. An empty model
// uses the client default.
func NewVisionEngine(client *Client, model string) *VisionEngine {
	return &VisionEngine{client: client, model: model}
}

func (e *VisionEngine) Extract(ctx context.Context, doc Document) (*Extraction, error) {
	prompt := userPromptInvoiceReader
	if doc.Hint != "" {
		prompt = fmt.Sprintf("%s\n\nAdditional context from the uploader: %s", prompt, doc.Hint)
	}

	resp, err := e.client.ChatWithImage(ctx, e.model, systemPromptInvoiceReader, prompt, doc.Data, doc.MimeType)
	if err != nil {
		return nil, model.NewExtractionError(MethodVision, "model request failed", err)
	}

	ext, err := parseExtraction(resp)
	if err != nil {
		return nil, err
	}
	ext.Method = MethodVision
	ext.AIUsed = true
	return ext, nil
}

func parseExtraction(response string) (*Extraction, error) {
	raw := ExtractJSON(response)

	var ext Extraction
	if err := json.Unmarshal([]byte(raw), &ext); err != nil {
		return nil, model.NewExtractionError(MethodVision, "model returned unparseable JSON", err)
	}
	if ext.LineItems == nil {
		ext.LineItems = []model.LineItem{}
	}
	return &ext, nil
}

// FallbackEngine produces placeholder extractions without calling any model.
// It keeps the service usable when no API key is configured (demo mode).
type FallbackEngine struct{}

func (FallbackEngine) Extract(_ context.Context, doc Document) (*Extraction, error) {
	return &Extraction{
		Vendor:    "Unknown Vendor",
		Summary:   fmt.Sprintf("Uploaded file %s (automatic extraction unavailable)", doc.Filename),
		LineItems: []model.LineItem{},
		Method:    MethodFallback,
		AIUsed:    false,
	}, nil
}
