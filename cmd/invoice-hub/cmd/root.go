package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-hub/internal/extract"
	"github.com/rezonia/invoice-hub/internal/logging"
	"github.com/rezonia/invoice-hub/internal/store"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	apiKey       string
	llmBaseURL   string
	llmModel     string
	dbPath       string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "invoice-hub",
	Short: "Ingest, review, and export invoices",
	Long: `Invoice Hub ingests invoice documents (images and PDFs), extracts their
data with a vision model, and stores the results for review and export.

Examples:
  # Ingest a single invoice into the local database
  invoice-hub ingest invoice.pdf

  # Ingest a directory as a batch
  invoice-hub ingest scans/ --batch

  # Start the HTTP API
  invoice-hub serve --address :8080

  # Export everything as CSV
  invoice-hub export --format csv -o invoices.csv`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for LLM provider (env: LLM_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&llmBaseURL, "llm-base-url", "", "LLM API base URL (env: LLM_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&llmModel, "llm-model", "", "LLM model for vision extraction (env: LLM_MODEL)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (env: INVOICE_DB, default invoices.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; env: LOG_LEVEL)")

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if apiKey == "" {
		apiKey = os.Getenv("LLM_API_KEY")
	}
	if llmBaseURL == "" {
		llmBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if llmModel == "" {
		llmModel = os.Getenv("LLM_MODEL")
	}
	if dbPath == "" {
		dbPath = os.Getenv("INVOICE_DB")
	}
	if dbPath == "" {
		dbPath = "invoices.db"
	}
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
	}
}

func newLogger() *slog.Logger {
	return logging.New("invoice-hub", logLevel)
}

func openStore(log *slog.Logger) (*store.Store, error) {
	st, err := store.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	return st, nil
}

// newEngine builds the extraction engine from the configured credentials; it
// degrades to placeholder extraction when no API key is set.
func newEngine(log *slog.Logger) extract.Engine {
	if apiKey == "" {
		log.Warn("no API key configured, using placeholder extraction")
		return extract.FallbackEngine{}
	}
	var clientOpts []extract.ClientOption
	if llmBaseURL != "" {
		clientOpts = append(clientOpts, extract.WithBaseURL(llmBaseURL))
	}
	client := extract.NewClient(apiKey, clientOpts...)
	return extract.NewVisionEngine(client, llmModel)
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
