package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(":memory:", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// No API key: the fallback engine keeps tests off the network.
	return NewServer(&Config{Address: ":0"}, st, slog.New(slog.DiscardHandler))
}

type uploadFile struct {
	field    string
	filename string
	content  []byte
}

func multipartRequest(t *testing.T, method, url string, files []uploadFile, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func uploadOne(t *testing.T, srv *Server, filename string, content []byte, tenant string) ProcessResponse {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/v2/process",
		[]uploadFile{{"file", filename, content}},
		map[string]string{"save": "true"},
	)
	if tenant != "" {
		req.Header.Set("X-User-ID", tenant)
	}
	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ProcessResponse
	decode(t, rec, &resp)
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/api/health", "/api/v2/health"} {
		rec := do(srv, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		decode(t, rec, &body)
		assert.Equal(t, "healthy", body["status"])
	}
}

func TestProcess(t *testing.T) {
	srv := newTestServer(t)

	resp := uploadOne(t, srv, "invoice.png", []byte("image bytes"), "alice")
	assert.True(t, resp.Success)
	assert.False(t, resp.Duplicate)
	assert.Positive(t, resp.InvoiceID)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "alice", resp.Data.Tenant)
	assert.Equal(t, "Unknown Vendor", resp.Data.Vendor)
}

func TestProcess_Duplicate(t *testing.T) {
	srv := newTestServer(t)

	first := uploadOne(t, srv, "a.png", []byte("same content"), "alice")
	second := uploadOne(t, srv, "b.png", []byte("same content"), "alice")

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	assert.NotEmpty(t, second.Message)
}

func TestProcess_NoSaveByDefault(t *testing.T) {
	srv := newTestServer(t)

	req := multipartRequest(t, http.MethodPost, "/api/v2/process",
		[]uploadFile{{"file", "preview.png", []byte("data")}}, nil)
	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessResponse
	decode(t, rec, &resp)
	assert.Zero(t, resp.InvoiceID)

	list := do(srv, httptest.NewRequest(http.MethodGet, "/api/v2/invoices", nil))
	var lr ListResponse
	decode(t, list, &lr)
	assert.Zero(t, lr.Count)
}

func TestProcess_UploadTypeOverride(t *testing.T) {
	srv := newTestServer(t)

	req := multipartRequest(t, http.MethodPost, "/api/v2/process",
		[]uploadFile{{"file", "reupload.png", []byte("image bytes")}},
		map[string]string{"save": "true", "upload_type": "batch"},
	)
	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ProcessResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Data)
	assert.Equal(t, model.UploadBatch, resp.Data.UploadType)

	get := do(srv, httptest.NewRequest(http.MethodGet, "/api/v2/invoices/"+itoa(resp.InvoiceID), nil))
	require.Equal(t, http.StatusOK, get.Code)
	var ir InvoiceResponse
	decode(t, get, &ir)
	assert.Equal(t, model.UploadBatch, ir.Invoice.UploadType)
}

func TestProcess_Errors(t *testing.T) {
	srv := newTestServer(t)

	t.Run("no file", func(t *testing.T) {
		rec := do(srv, multipartRequest(t, http.MethodPost, "/api/v2/process", nil, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad extension", func(t *testing.T) {
		rec := do(srv, multipartRequest(t, http.MethodPost, "/api/v2/process",
			[]uploadFile{{"file", "notes.txt", []byte("text")}}, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLegacyProcessRoute(t *testing.T) {
	srv := newTestServer(t)

	req := multipartRequest(t, http.MethodPost, "/api/process",
		[]uploadFile{{"file", "legacy.png", []byte("data")}}, nil)
	rec := do(srv, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBatch(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, multipartRequest(t, http.MethodPost, "/api/v2/batch",
		[]uploadFile{
			{"files", "one.png", []byte("first")},
			{"files", "two.jpg", []byte("second")},
		}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp BatchResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Zero(t, resp.Failed)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "one.png", resp.Results[0].Filename)
}

func TestBatch_FailFast(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, multipartRequest(t, http.MethodPost, "/api/v2/batch",
		[]uploadFile{
			{"files", "good.png", []byte("ok")},
			{"files", "bad.exe", []byte("no")},
		}, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Contains(t, body, "allowed")

	list := do(srv, httptest.NewRequest(http.MethodGet, "/api/v2/invoices", nil))
	var lr ListResponse
	decode(t, list, &lr)
	assert.Zero(t, lr.Count)
}

func TestListAndSearch(t *testing.T) {
	srv := newTestServer(t)

	uploadOne(t, srv, "a.png", []byte("aaa"), "alice")
	uploadOne(t, srv, "b.png", []byte("bbb"), "alice")
	uploadOne(t, srv, "c.png", []byte("ccc"), "bob")

	t.Run("tenant scoped list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/invoices", nil)
		req.Header.Set("X-User-ID", "alice")
		var resp ListResponse
		decode(t, do(srv, req), &resp)
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("pagination", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/invoices?limit=1&offset=1", nil)
		req.Header.Set("X-User-ID", "alice")
		var resp ListResponse
		decode(t, do(srv, req), &resp)
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("search", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/invoices?search=Unknown", nil)
		req.Header.Set("X-User-ID", "alice")
		var resp ListResponse
		decode(t, do(srv, req), &resp)
		assert.Equal(t, 2, resp.Count)
	})
}

func TestGetInvoice(t *testing.T) {
	srv := newTestServer(t)
	created := uploadOne(t, srv, "a.png", []byte("aaa"), "alice")

	t.Run("found", func(t *testing.T) {
		rec := do(srv, httptest.NewRequest(http.MethodGet,
			"/api/v2/invoices/"+itoa(created.InvoiceID), nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp InvoiceResponse
		decode(t, rec, &resp)
		assert.Equal(t, created.InvoiceID, resp.Invoice.ID)
	})

	t.Run("not found", func(t *testing.T) {
		rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v2/invoices/9999", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v2/invoices/abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateStatus(t *testing.T) {
	srv := newTestServer(t)
	created := uploadOne(t, srv, "a.png", []byte("aaa"), "alice")
	url := "/api/v2/invoices/" + itoa(created.InvoiceID) + "/status"

	t.Run("applies", func(t *testing.T) {
		req := jsonRequest(http.MethodPut, url, `{"status": "approved"}`)
		req.Header.Set("X-User-ID", "alice")
		rec := do(srv, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		get := do(srv, httptest.NewRequest(http.MethodGet, "/api/v2/invoices/"+itoa(created.InvoiceID), nil))
		var resp InvoiceResponse
		decode(t, get, &resp)
		assert.Equal(t, "approved", string(resp.Invoice.Status))
	})

	t.Run("invalid status", func(t *testing.T) {
		req := jsonRequest(http.MethodPut, url, `{"status": "shredded"}`)
		req.Header.Set("X-User-ID", "alice")
		rec := do(srv, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]any
		decode(t, rec, &body)
		assert.Contains(t, body, "valid_statuses")
	})

	t.Run("missing status", func(t *testing.T) {
		req := jsonRequest(http.MethodPut, url, `{}`)
		rec := do(srv, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("foreign tenant", func(t *testing.T) {
		req := jsonRequest(http.MethodPut, url, `{"status": "paid"}`)
		req.Header.Set("X-User-ID", "mallory")
		rec := do(srv, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDeleteInvoice(t *testing.T) {
	srv := newTestServer(t)
	created := uploadOne(t, srv, "a.png", []byte("aaa"), "alice")
	url := "/api/v2/invoices/" + itoa(created.InvoiceID)

	rec := do(srv, httptest.NewRequest(http.MethodDelete, url, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, httptest.NewRequest(http.MethodDelete, url, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalytics(t *testing.T) {
	srv := newTestServer(t)
	uploadOne(t, srv, "a.png", []byte("aaa"), "alice")
	uploadOne(t, srv, "b.png", []byte("bbb"), "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v2/analytics", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyticsResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(2), resp.Analytics.Total)
	assert.Equal(t, int64(2), resp.Analytics.Pending)
}

func TestExport(t *testing.T) {
	srv := newTestServer(t)

	t.Run("empty csv has only the header", func(t *testing.T) {
		rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v2/export?format=csv", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "invoices_empty.csv")

		body, _ := io.ReadAll(rec.Body)
		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		require.Len(t, lines, 1)
		assert.True(t, strings.HasPrefix(lines[0], "id,invoice_number,vendor"))
	})

	t.Run("json export", func(t *testing.T) {
		uploadOne(t, srv, "a.png", []byte("aaa"), "alice")

		req := httptest.NewRequest(http.MethodGet, "/api/v2/export?format=json", nil)
		req.Header.Set("X-User-ID", "alice")
		rec := do(srv, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var records []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		assert.Len(t, records, 1)
	})

	t.Run("unknown format", func(t *testing.T) {
		rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v2/export?format=docx", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExportAnalytics(t *testing.T) {
	srv := newTestServer(t)
	uploadOne(t, srv, "a.png", []byte("aaa"), "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v2/export/analytics?format=csv", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := do(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "total,1")
}

func TestResetDatabase(t *testing.T) {
	srv := newTestServer(t)
	uploadOne(t, srv, "a.png", []byte("aaa"), "alice")

	rec := do(srv, httptest.NewRequest(http.MethodPost, "/api/v2/reset-database", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	list := do(srv, httptest.NewRequest(http.MethodGet, "/api/v2/invoices", nil))
	var lr ListResponse
	decode(t, list, &lr)
	assert.Zero(t, lr.Count)
}

func jsonRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
