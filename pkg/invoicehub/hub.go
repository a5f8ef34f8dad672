// Package invoicehub provides a public API for embedding the invoice
// service in other Go programs.
//
// It wraps the storage, ingestion, and reporting layers behind one handle:
//
//	hub, err := invoicehub.Open(invoicehub.Options{DBPath: "invoices.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer hub.Close()
//
//	res, err := hub.Ingest(ctx, data, "invoice.pdf", "alice")
package invoicehub

import (
	"context"
	"log/slog"

	"github.com/rezonia/invoice-hub/internal/extract"
	"github.com/rezonia/invoice-hub/internal/ingest"
	"github.com/rezonia/invoice-hub/internal/lifecycle"
	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/report"
	"github.com/rezonia/invoice-hub/internal/store"
)

// Re-export core types for the public API
type (
	InvoiceRecord = model.InvoiceRecord
	LineItem      = model.LineItem
	Status        = model.Status
	UploadType    = model.UploadType

	IngestResult = ingest.Result
	BatchFile    = ingest.BatchFile
	BatchOutcome = ingest.BatchOutcome
	Filter       = store.Filter
	Analytics    = report.Analytics
)

// Re-export statuses
const (
	StatusPending  = model.StatusPending
	StatusApproved = model.StatusApproved
	StatusRejected = model.StatusRejected
	StatusPaid     = model.StatusPaid
	StatusArchived = model.StatusArchived
)

// Re-export upload types and the anonymous tenant sentinel
const (
	UploadSingle    = model.UploadSingle
	UploadBatch     = model.UploadBatch
	TenantAnonymous = model.TenantAnonymous
)

// Re-export error types
type (
	ValidationError  = model.ValidationError
	ExtractionError  = model.ExtractionError
	PersistenceError = model.PersistenceError
)

// Options configures a Hub.
type Options struct {
	// DBPath is the SQLite database path; ":memory:" for ephemeral use.
	DBPath string
	// APIKey enables model-backed extraction. Empty means placeholder
	// extraction (demo mode).
	APIKey string
	// LLMBaseURL overrides the OpenAI-compatible endpoint.
	LLMBaseURL string
	// LLMModel overrides the vision model.
	LLMModel string
	// Engine overrides extraction entirely; when set the LLM fields are
	// ignored. Useful for tests and custom extractors.
	Engine extract.Engine
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Hub is one handle over the whole invoice core.
type Hub struct {
	store       *store.Store
	gateway     *ingest.Gateway
	coordinator *ingest.Coordinator
	lifecycle   *lifecycle.Manager
	aggregator  *report.Aggregator
}

// Open builds a Hub from the given options.
func Open(opts Options) (*Hub, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	path := opts.DBPath
	if path == "" {
		path = "invoices.db"
	}
	st, err := store.Open(path, log)
	if err != nil {
		return nil, err
	}

	engine := opts.Engine
	if engine == nil {
		if opts.APIKey != "" {
			var clientOpts []extract.ClientOption
			if opts.LLMBaseURL != "" {
				clientOpts = append(clientOpts, extract.WithBaseURL(opts.LLMBaseURL))
			}
			client := extract.NewClient(opts.APIKey, clientOpts...)
			engine = extract.NewVisionEngine(client, opts.LLMModel)
		} else {
			engine = extract.FallbackEngine{}
		}
	}

	return &Hub{
		store:       st,
		gateway:     ingest.NewGateway(st, engine, log),
		coordinator: ingest.NewCoordinator(st, engine, log),
		lifecycle:   lifecycle.NewManager(st, log),
		aggregator:  report.NewAggregator(st),
	}, nil
}

// Close releases the underlying database.
func (h *Hub) Close() error {
	return h.store.Close()
}

// Ingest processes one document and persists the extracted record.
func (h *Hub) Ingest(ctx context.Context, data []byte, filename, tenant string) (*IngestResult, error) {
	return h.gateway.Ingest(ctx, ingest.Request{
		Data:     data,
		Filename: filename,
		Tenant:   tenant,
		Save:     true,
	})
}

// Preview runs extraction without persisting anything.
func (h *Hub) Preview(ctx context.Context, data []byte, filename, tenant string) (*IngestResult, error) {
	return h.gateway.Ingest(ctx, ingest.Request{
		Data:     data,
		Filename: filename,
		Tenant:   tenant,
	})
}

// IngestBatch processes many documents with per-item isolation.
func (h *Hub) IngestBatch(ctx context.Context, files []BatchFile, tenant string) ([]BatchOutcome, error) {
	return h.coordinator.IngestBatch(ctx, files, tenant)
}

// Get returns a record by id, or (nil, nil) when absent.
func (h *Hub) Get(ctx context.Context, id int64) (*InvoiceRecord, error) {
	return h.store.Get(ctx, id)
}

// List returns records matching the filter, newest first.
func (h *Hub) List(ctx context.Context, f Filter) ([]InvoiceRecord, error) {
	return h.store.List(ctx, f)
}

// Search matches vendor names and invoice numbers.
func (h *Hub) Search(ctx context.Context, term, tenant string) ([]InvoiceRecord, error) {
	return h.store.Search(ctx, term, tenant)
}

// UpdateStatus applies a status change scoped to tenant.
func (h *Hub) UpdateStatus(ctx context.Context, id int64, tenant string, status Status) (bool, error) {
	return h.lifecycle.Apply(ctx, id, tenant, status)
}

// Delete removes a record by id.
func (h *Hub) Delete(ctx context.Context, id int64) (bool, error) {
	return h.store.Delete(ctx, id)
}

// Clear removes all records, or all of one upload type.
func (h *Hub) Clear(ctx context.Context, uploadType UploadType) (int64, error) {
	return h.store.Clear(ctx, uploadType)
}

// Analytics computes the summary snapshot for a tenant ("" for all).
func (h *Hub) Analytics(ctx context.Context, tenant string) (*Analytics, error) {
	return h.aggregator.Summarize(ctx, tenant)
}

// Export serializes records into json, csv, or xlsx.
func (h *Hub) Export(records []InvoiceRecord, format string) (data []byte, contentType, filename string, err error) {
	return report.Export(records, format)
}
