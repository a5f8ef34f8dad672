package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rezonia/invoice-hub/internal/extract"
	"github.com/rezonia/invoice-hub/internal/fingerprint"
	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/store"
)

// BatchFile is one member of a multi-file upload.
type BatchFile struct {
	Data     []byte
	Filename string
}

// BatchOutcome reports the fate of one batch member. Outcomes come back in
// input order. A failed save still carries the extracted Record (with a zero
// id) so the caller can show the data; the batch as a whole still succeeds.
type BatchOutcome struct {
	Filename  string               `json:"filename"`
	Success   bool                 `json:"success"`
	Record    *model.InvoiceRecord `json:"data,omitempty"`
	Saved     bool                 `json:"saved"`
	Duplicate bool                 `json:"duplicate,omitempty"`
	Method    string               `json:"extraction_method,omitempty"`
	AIUsed    bool                 `json:"ai_used"`
	Error     string               `json:"error,omitempty"`
}

// Coordinator runs multi-file uploads. Items are processed sequentially and
// in isolation: one bad document never aborts its siblings.
//
// Batch members are fingerprinted by FILENAME, not content (the bytes are
// gone by save time in the original flow this preserves). The fingerprint is
// checked against already-stored records only, so two identical documents in
// the same batch are not caught against each other unless they share a name.
type Coordinator struct {
	store  *store.Store
	engine extract.Engine
	log    *slog.Logger
}

func NewCoordinator(st *store.Store, engine extract.Engine, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: st, engine: engine, log: log}
}

// IngestBatch validates every filename up front and rejects the whole batch
// on the first bad extension, before any item is processed. After that gate,
// each item succeeds or fails on its own.
func (c *Coordinator) IngestBatch(ctx context.Context, files []BatchFile, tenant string) ([]BatchOutcome, error) {
	if len(files) == 0 {
		return nil, model.NewValidationError("files", "", "empty", "no files provided")
	}
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Filename))
		if !allowedExtensions[ext] {
			return nil, model.NewValidationError("filename", f.Filename, "extension",
				"unsupported file type in batch: "+f.Filename)
		}
	}

	if tenant == "" {
		tenant = model.TenantAnonymous
	}

	outcomes := make([]BatchOutcome, 0, len(files))
	for _, f := range files {
		outcomes = append(outcomes, c.processOne(ctx, f, tenant))
	}
	return outcomes, nil
}

func (c *Coordinator) processOne(ctx context.Context, f BatchFile, tenant string) BatchOutcome {
	out := BatchOutcome{Filename: f.Filename}

	if err := Validate(f.Data, f.Filename); err != nil {
		out.Error = err.Error()
		return out
	}

	fp := fingerprint.SumFilename(f.Filename)
	if id, ok, err := c.store.FingerprintExists(ctx, fp); err != nil {
		out.Error = "duplicate lookup failed"
		c.log.Warn("batch duplicate lookup failed", "filename", f.Filename, "error", err)
		return out
	} else if ok {
		existing, err := c.store.Get(ctx, id)
		if err != nil {
			out.Error = "duplicate lookup failed"
			return out
		}
		out.Success = true
		out.Duplicate = true
		out.Record = existing
		return out
	}

	doc := extract.Document{
		Data:     f.Data,
		Filename: f.Filename,
		MimeType: MimeType(f.Filename),
	}
	ext, err := c.engine.Extract(ctx, doc)
	if err != nil {
		c.log.Warn("batch extraction failed", "filename", f.Filename, "error", err)
		out.Error = err.Error()
		return out
	}
	out.Success = true
	out.Method = ext.Method
	out.AIUsed = ext.AIUsed

	rec := &model.InvoiceRecord{
		Tenant:      tenant,
		UploadType:  model.UploadBatch,
		Fingerprint: fp,
	}
	ext.Apply(rec)
	out.Record = rec

	if _, err := c.store.Create(ctx, rec); err != nil {
		// Partial result: extracted data survives, id stays zero.
		c.log.Warn("batch item save failed", "filename", f.Filename, "error", err)
		return out
	}
	out.Saved = true
	return out
}
