package ingest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-hub/internal/extract"
	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/store"
)

// stubEngine returns a canned extraction, or an error, and counts calls.
type stubEngine struct {
	result *extract.Extraction
	err    error
	calls  int
}

func (s *stubEngine) Extract(_ context.Context, _ extract.Document) (*extract.Extraction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	res := *s.result
	return &res, nil
}

func knownExtraction() *extract.Extraction {
	return &extract.Extraction{
		Vendor:    "Acme Corp",
		Date:      "2026-08-01",
		Total:     "$99.00",
		Number:    "A-7",
		Summary:   "Widgets",
		LineItems: []model.LineItem{},
		Method:    extract.MethodVision,
		AIUsed:    true,
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestGateway_Ingest(t *testing.T) {
	st := newTestStore(t)
	engine := &stubEngine{result: knownExtraction()}
	g := NewGateway(st, engine, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	res, err := g.Ingest(ctx, Request{
		Data:     []byte("fake image bytes"),
		Filename: "invoice.png",
		Tenant:   "alice",
		Save:     true,
	})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.True(t, res.Saved)
	assert.Equal(t, extract.MethodVision, res.Method)
	assert.True(t, res.AIUsed)
	require.NotNil(t, res.Record)
	assert.Positive(t, res.Record.ID)
	assert.Equal(t, "Acme Corp", res.Record.Vendor)
	assert.Equal(t, "alice", res.Record.Tenant)
	assert.Equal(t, model.UploadSingle, res.Record.UploadType)
	assert.NotEmpty(t, res.Record.Fingerprint)
}

func TestGateway_IngestDuplicate(t *testing.T) {
	st := newTestStore(t)
	engine := &stubEngine{result: knownExtraction()}
	g := NewGateway(st, engine, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	data := []byte("same bytes both times")
	first, err := g.Ingest(ctx, Request{Data: data, Filename: "a.png", Tenant: "alice", Save: true})
	require.NoError(t, err)

	second, err := g.Ingest(ctx, Request{Data: data, Filename: "renamed.png", Tenant: "alice", Save: true})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Saved)
	require.NotNil(t, second.Record)
	assert.Equal(t, first.Record.ID, second.Record.ID)

	// Engine ran once; the duplicate short-circuited before extraction.
	assert.Equal(t, 1, engine.calls)

	records, err := st.List(ctx, store.Filter{Tenant: "alice"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGateway_IngestUploadType(t *testing.T) {
	st := newTestStore(t)
	g := NewGateway(st, &stubEngine{result: knownExtraction()}, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	res, err := g.Ingest(ctx, Request{
		Data:       []byte("tagged as batch"),
		Filename:   "tagged.png",
		Tenant:     "alice",
		Save:       true,
		UploadType: model.UploadBatch,
	})
	require.NoError(t, err)
	assert.Equal(t, model.UploadBatch, res.Record.UploadType)

	stored, err := st.Get(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UploadBatch, stored.UploadType)

	// Unset falls back to single.
	res, err = g.Ingest(ctx, Request{
		Data:     []byte("untagged"),
		Filename: "untagged.png",
		Tenant:   "alice",
		Save:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.UploadSingle, res.Record.UploadType)
}

func TestGateway_IngestNoSave(t *testing.T) {
	st := newTestStore(t)
	g := NewGateway(st, &stubEngine{result: knownExtraction()}, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	res, err := g.Ingest(ctx, Request{Data: []byte("preview"), Filename: "p.png", Tenant: "alice"})
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Equal(t, "Acme Corp", res.Record.Vendor)
	assert.Zero(t, res.Record.ID)

	records, err := st.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGateway_IngestExtractionFailure(t *testing.T) {
	st := newTestStore(t)
	engineErr := model.NewExtractionError(extract.MethodVision, "model request failed", errors.New("timeout"))
	g := NewGateway(st, &stubEngine{err: engineErr}, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	_, err := g.Ingest(ctx, Request{Data: []byte("x"), Filename: "x.png", Tenant: "alice", Save: true})
	var eerr *model.ExtractionError
	require.ErrorAs(t, err, &eerr)

	records, err := st.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGateway_IngestValidation(t *testing.T) {
	st := newTestStore(t)
	engine := &stubEngine{result: knownExtraction()}
	g := NewGateway(st, engine, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	tests := []struct {
		name     string
		data     []byte
		filename string
	}{
		{"unsupported extension", []byte("data"), "notes.txt"},
		{"no extension", []byte("data"), "README"},
		{"empty file", nil, "empty.png"},
		{"over size limit", bytes.Repeat([]byte("a"), MaxUploadSize+1), "big.png"},
		{"corrupt pdf", []byte("not a pdf at all"), "fake.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Ingest(ctx, Request{Data: tt.data, Filename: tt.filename, Tenant: "alice", Save: true})
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}

	assert.Zero(t, engine.calls)
}

func TestGateway_AnonymousTenant(t *testing.T) {
	st := newTestStore(t)
	g := NewGateway(st, &stubEngine{result: knownExtraction()}, slog.New(slog.DiscardHandler))

	res, err := g.Ingest(context.Background(), Request{Data: []byte("x"), Filename: "x.png", Save: true})
	require.NoError(t, err)
	assert.Equal(t, model.TenantAnonymous, res.Record.Tenant)
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "image/png", MimeType("scan.PNG"))
	assert.Equal(t, "image/jpeg", MimeType("photo.jpg"))
	assert.Equal(t, "application/pdf", MimeType("doc.pdf"))
	assert.Equal(t, "application/octet-stream", MimeType("mystery.bin"))
}
