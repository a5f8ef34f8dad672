package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-hub/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for invoice ingestion and review.

The API provides endpoints for:
  - POST /api/v2/process              - Ingest a single invoice
  - POST /api/v2/batch                - Ingest multiple invoices
  - GET  /api/v2/invoices             - List or search invoices
  - GET  /api/v2/invoices/:id         - Get invoice details
  - PUT  /api/v2/invoices/:id/status  - Update invoice status
  - DELETE /api/v2/invoices/:id       - Delete an invoice
  - GET  /api/v2/analytics            - Summary statistics
  - GET  /api/v2/export               - Download invoices (json, csv, xlsx)
  - GET  /health                      - Health check

Examples:
  # Start server on default port
  invoice-hub serve

  # Start on custom port with API key
  invoice-hub serve --address :8080 --api-key <key>

  # Start in debug mode
  invoice-hub serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := newLogger()

	st, err := openStore(log)
	if err != nil {
		return err
	}
	defer st.Close()

	config := &server.Config{
		Address:      serverAddr,
		APIKey:       apiKey,
		LLMBaseURL:   llmBaseURL,
		LLMModel:     llmModel,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
	}

	srv := server.NewServer(config, st, log)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		st.Close()
		os.Exit(0)
	}()

	log.Info("starting server", "address", serverAddr, "db", dbPath,
		"extraction_configured", apiKey != "")
	return srv.Run()
}
