// Package server exposes the invoice service over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/invoice-hub/internal/extract"
	"github.com/rezonia/invoice-hub/internal/ingest"
	"github.com/rezonia/invoice-hub/internal/lifecycle"
	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/report"
	"github.com/rezonia/invoice-hub/internal/store"
)

// Config holds server configuration
type Config struct {
	Address      string
	APIKey       string
	LLMBaseURL   string
	LLMModel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// exportScanLimit bounds how many records one export pulls from the store.
const exportScanLimit = 1000

// Server represents the HTTP API server
type Server struct {
	config      *Config
	router      *gin.Engine
	store       *store.Store
	gateway     *ingest.Gateway
	coordinator *ingest.Coordinator
	lifecycle   *lifecycle.Manager
	aggregator  *report.Aggregator
	log         *slog.Logger
}

// NewServer creates a new API server wired to the given store.
func NewServer(config *Config, st *store.Store, log *slog.Logger) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	// Without an API key the service runs in demo mode: uploads are accepted
	// and stored with placeholder fields instead of model extractions.
	var engine extract.Engine
	if config.APIKey != "" {
		var clientOpts []extract.ClientOption
		if config.LLMBaseURL != "" {
			clientOpts = append(clientOpts, extract.WithBaseURL(config.LLMBaseURL))
		}
		client := extract.NewClient(config.APIKey, clientOpts...)
		engine = extract.NewVisionEngine(client, config.LLMModel)
	} else {
		log.Warn("no API key configured, running with placeholder extraction")
		engine = extract.FallbackEngine{}
	}

	s := &Server{
		config:      config,
		router:      router,
		store:       st,
		gateway:     ingest.NewGateway(st, engine, log),
		coordinator: ingest.NewCoordinator(st, engine, log),
		lifecycle:   lifecycle.NewManager(st, log),
		aggregator:  report.NewAggregator(st),
		log:         log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health checks, current and legacy paths
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/api/health", s.handleHealth)
	s.router.GET("/api/v2/health", s.handleHealth)

	v2 := s.router.Group("/api/v2")
	{
		v2.POST("/process", s.handleProcess)
		v2.POST("/batch", s.handleBatch)

		v2.GET("/invoices", s.handleList)
		v2.GET("/invoices/:id", s.handleGet)
		v2.PUT("/invoices/:id/status", s.handleUpdateStatus)
		v2.DELETE("/invoices/:id", s.handleDelete)

		v2.GET("/analytics", s.handleAnalytics)
		v2.GET("/export", s.handleExport)
		v2.GET("/export/analytics", s.handleExportAnalytics)

		v2.POST("/reset-database", s.handleReset)
	}

	// Legacy v1 endpoint, kept for backward compatibility
	s.router.POST("/api/process", s.handleProcess)
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "invoice-hub",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"features": gin.H{
			"database":            true,
			"batch_processing":    true,
			"analytics":           true,
			"export":              true,
			"duplicate_detection": true,
		},
		"extraction_configured": s.config.APIKey != "",
	})
}

// tenant resolves the caller's identity: X-User-ID header first, then an
// explicit user_id form value, then the anonymous sentinel.
func (s *Server) tenant(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	if id := c.PostForm("user_id"); id != "" {
		return id
	}
	return model.TenantAnonymous
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, ingest.MaxUploadSize+1))
}

func (s *Server) handleProcess(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty filename"})
		return
	}

	data, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	res, err := s.gateway.Ingest(ctx, ingest.Request{
		Data:       data,
		Filename:   fh.Filename,
		Tenant:     s.tenant(c),
		Save:       c.DefaultPostForm("save", "false") == "true",
		UploadType: model.UploadType(c.DefaultPostForm("upload_type", "single")),
		Hint:       c.PostForm("hint"),
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	resp := ProcessResponse{
		Success:          true,
		Duplicate:        res.Duplicate,
		ExtractionMethod: res.Method,
		AIUsed:           res.AIUsed,
		Data:             res.Record,
	}
	if res.Duplicate {
		resp.Message = "this invoice has already been processed"
	}
	if res.Record != nil {
		resp.InvoiceID = res.Record.ID
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	fileHeaders := form.File["files"]
	files := make([]ingest.BatchFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		data, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file: " + fh.Filename})
			return
		}
		files = append(files, ingest.BatchFile{Data: data, Filename: fh.Filename})
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Minute)
	defer cancel()

	outcomes, err := s.coordinator.IngestBatch(ctx, files, s.tenant(c))
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   verr.Message,
				"allowed": ingest.AllowedExtensions(),
			})
			return
		}
		s.renderError(c, err)
		return
	}

	resp := BatchResponse{Success: true, Total: len(outcomes), Results: outcomes}
	for _, out := range outcomes {
		if out.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleList(c *gin.Context) {
	tenant := s.tenant(c)

	if search := c.Query("search"); search != "" {
		records, err := s.store.Search(c.Request.Context(), search, tenant)
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, ListResponse{Success: true, Count: len(records), Invoices: records})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := s.store.List(c.Request.Context(), store.Filter{
		Tenant:     tenant,
		Status:     model.Status(c.Query("status")),
		UploadType: model.UploadType(c.Query("upload_type")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Success: true, Count: len(records), Invoices: records})
}

func (s *Server) handleGet(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}

	rec, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, InvoiceResponse{Success: true, Invoice: rec})
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}

	applied, err := s.lifecycle.Apply(c.Request.Context(), id, s.tenant(c), model.Status(req.Status))
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":          "invalid status",
				"valid_statuses": model.Statuses,
			})
			return
		}
		s.renderError(c, err)
		return
	}
	if !applied {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "invoice status updated to " + req.Status})
}

func (s *Server) handleDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}

	removed, err := s.store.Delete(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "invoice not found"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "invoice deleted successfully"})
}

func (s *Server) handleAnalytics(c *gin.Context) {
	analytics, err := s.aggregator.Summarize(c.Request.Context(), s.tenant(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, AnalyticsResponse{Success: true, Analytics: analytics})
}

func (s *Server) handleExport(c *gin.Context) {
	records, err := s.store.List(c.Request.Context(), store.Filter{
		Tenant:     s.tenant(c),
		Status:     model.Status(c.Query("status")),
		UploadType: model.UploadType(c.Query("upload_type")),
		Limit:      exportScanLimit,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	data, contentType, filename, err := report.Export(records, c.DefaultQuery("format", "json"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) handleExportAnalytics(c *gin.Context) {
	analytics, err := s.aggregator.Summarize(c.Request.Context(), s.tenant(c))
	if err != nil {
		s.renderError(c, err)
		return
	}

	data, contentType, filename, err := report.ExportAnalytics(analytics, c.DefaultQuery("format", "json"))
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) handleReset(c *gin.Context) {
	uploadType := model.UploadType(c.Query("upload_type"))

	n, err := s.store.Clear(c.Request.Context(), uploadType)
	if err != nil {
		s.renderError(c, err)
		return
	}

	msg := "all invoices cleared successfully"
	if uploadType != "" {
		msg = strconv.FormatInt(n, 10) + " " + string(uploadType) + " invoices cleared successfully"
	}
	s.log.Info("database reset", "upload_type", uploadType, "removed", n)
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msg})
}

// renderError maps domain errors onto HTTP statuses: caller mistakes are
// 400, extraction failures 422, everything else 500.
func (s *Server) renderError(c *gin.Context, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Message})
		return
	}
	var eerr *model.ExtractionError
	if errors.As(err, &eerr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": eerr.Error()})
		return
	}
	s.log.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
}
