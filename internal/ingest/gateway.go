// Package ingest is the entry point for invoice documents. It owns upload
// validation, content dedup, and the handoff to extraction and storage.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/rezonia/invoice-hub/internal/extract"
	"github.com/rezonia/invoice-hub/internal/fingerprint"
	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/store"
)

// MaxUploadSize is the upper bound on a single document.
const MaxUploadSize = 10 << 20 // 10 MiB

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".pdf":  true,
}

// AllowedExtensions returns the accepted file extensions, sorted, without
// leading dots. Used for error messages and CLI help.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(exts)
	return exts
}

// Request is a single document to ingest.
type Request struct {
	Data     []byte
	Filename string
	Tenant   string
	// Save false runs extraction without persisting; used for previews.
	Save bool
	// UploadType tags the stored record; empty means single.
	UploadType model.UploadType
	Hint       string
}

// Result reports what happened to one ingested document.
type Result struct {
	Record    *model.InvoiceRecord
	Duplicate bool
	Saved     bool
	Method    string
	AIUsed    bool
}

// Gateway validates, dedups, extracts, and stores single uploads.
type Gateway struct {
	store  *store.Store
	engine extract.Engine
	log    *slog.Logger
}

func NewGateway(st *store.Store, engine extract.Engine, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{store: st, engine: engine, log: log}
}

// Ingest processes one uploaded document. A document whose fingerprint is
// already stored short-circuits to the existing record with Duplicate set;
// no second record is created and the engine is not called.
func (g *Gateway) Ingest(ctx context.Context, req Request) (*Result, error) {
	if err := Validate(req.Data, req.Filename); err != nil {
		return nil, err
	}

	tenant := req.Tenant
	if tenant == "" {
		tenant = model.TenantAnonymous
	}
	uploadType := req.UploadType
	if uploadType == "" {
		uploadType = model.UploadSingle
	}

	fp := fingerprint.Sum(req.Data)
	if id, ok, err := g.store.FingerprintExists(ctx, fp); err != nil {
		return nil, err
	} else if ok {
		existing, err := g.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		g.log.Info("duplicate upload", "filename", req.Filename, "invoice_id", id)
		return &Result{Record: existing, Duplicate: true}, nil
	}

	doc := extract.Document{
		Data:     req.Data,
		Filename: req.Filename,
		MimeType: MimeType(req.Filename),
		Hint:     req.Hint,
	}
	ext, err := g.engine.Extract(ctx, doc)
	if err != nil {
		// Extraction failure is terminal for the document: no record.
		g.log.Warn("extraction failed", "filename", req.Filename, "error", err)
		return nil, err
	}

	rec := &model.InvoiceRecord{
		Tenant:      tenant,
		UploadType:  uploadType,
		Fingerprint: fp,
	}
	ext.Apply(rec)

	res := &Result{Record: rec, Method: ext.Method, AIUsed: ext.AIUsed}
	if !req.Save {
		return res, nil
	}

	if _, err := g.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	res.Saved = true
	return res, nil
}

// Validate checks a document against the upload rules: a non-empty payload,
// an allowed extension, the size cap, and for PDFs a structural check.
func Validate(data []byte, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return model.NewValidationError("filename", filename, "extension",
			fmt.Sprintf("unsupported file type, allowed: %s", strings.Join(AllowedExtensions(), ", ")))
	}
	if len(data) == 0 {
		return model.NewValidationError("file", filename, "empty", "file is empty")
	}
	if len(data) > MaxUploadSize {
		return model.NewValidationError("file", filename, "size",
			fmt.Sprintf("file exceeds %d MiB limit", MaxUploadSize>>20))
	}
	if ext == ".pdf" {
		if err := api.Validate(bytes.NewReader(data), nil); err != nil {
			return model.NewValidationError("file", filename, "pdf", "file is not a valid PDF")
		}
	}
	return nil
}

// MimeType maps a filename extension to its media type.
func MimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tiff":
		return "image/tiff"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
