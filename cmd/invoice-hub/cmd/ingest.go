package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-hub/internal/extract"
	"github.com/rezonia/invoice-hub/internal/ingest"
	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/store"
)

var (
	ingestTenant  string
	ingestSave    bool
	ingestAsBatch bool
	ingestTimeout time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest invoice files into the database",
	Long: `Ingest one or more invoice files, extract their data, and store the
records. Accepts images (png, jpg, jpeg, gif, bmp, tiff) and PDFs.

Single mode fingerprints each file's content and skips documents that were
already ingested. Batch mode mirrors the batch upload API: items are
processed independently and fingerprinted by filename.

Examples:
  invoice-hub ingest invoice.pdf
  invoice-hub ingest scans/*.png --tenant alice
  invoice-hub ingest scans/ --batch
  invoice-hub ingest invoice.pdf --save=false -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestTenant, "tenant", model.TenantAnonymous, "Owner of the created records")
	ingestCmd.Flags().BoolVar(&ingestSave, "save", true, "Persist extracted records (single mode)")
	ingestCmd.Flags().BoolVar(&ingestAsBatch, "batch", false, "Process as one batch instead of individually")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 2*time.Minute, "Extraction timeout per file")
}

// ingestResult is the CLI-facing outcome for one file.
type ingestResult struct {
	File      string               `json:"file"`
	InvoiceID int64                `json:"invoice_id,omitempty"`
	Duplicate bool                 `json:"duplicate,omitempty"`
	Saved     bool                 `json:"saved"`
	Method    string               `json:"extraction_method,omitempty"`
	Record    *model.InvoiceRecord `json:"record,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to ingest")
	}
	printVerbose("Found %d files to ingest\n", len(files))

	log := newLogger()
	st, err := openStore(log)
	if err != nil {
		return err
	}
	defer st.Close()

	engine := newEngine(log)

	var results []ingestResult
	if ingestAsBatch {
		results, err = runIngestBatch(st, engine, files, log)
	} else {
		results, err = runIngestSingle(st, engine, files, log)
	}
	if err != nil {
		return err
	}

	return outputIngestResults(results)
}

func runIngestSingle(st *store.Store, engine extract.Engine, files []string, log *slog.Logger) ([]ingestResult, error) {
	gateway := ingest.NewGateway(st, engine, log)

	results := make([]ingestResult, 0, len(files))
	for _, file := range files {
		printVerbose("Ingesting: %s\n", file)
		res := ingestResult{File: file}

		data, err := os.ReadFile(file)
		if err != nil {
			res.Error = fmt.Sprintf("failed to read file: %v", err)
			results = append(results, res)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		out, err := gateway.Ingest(ctx, ingest.Request{
			Data:     data,
			Filename: filepath.Base(file),
			Tenant:   ingestTenant,
			Save:     ingestSave,
		})
		cancel()
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		res.Duplicate = out.Duplicate
		res.Saved = out.Saved
		res.Method = out.Method
		res.Record = out.Record
		if out.Record != nil {
			res.InvoiceID = out.Record.ID
		}
		results = append(results, res)
	}
	return results, nil
}

func runIngestBatch(st *store.Store, engine extract.Engine, files []string, log *slog.Logger) ([]ingestResult, error) {
	coordinator := ingest.NewCoordinator(st, engine, log)

	batch := make([]ingest.BatchFile, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		batch = append(batch, ingest.BatchFile{Data: data, Filename: filepath.Base(file)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout*time.Duration(len(files)))
	defer cancel()

	outcomes, err := coordinator.IngestBatch(ctx, batch, ingestTenant)
	if err != nil {
		return nil, err
	}

	results := make([]ingestResult, 0, len(outcomes))
	for i, out := range outcomes {
		res := ingestResult{
			File:      files[i],
			Duplicate: out.Duplicate,
			Saved:     out.Saved,
			Method:    out.Method,
			Record:    out.Record,
			Error:     out.Error,
		}
		if out.Record != nil {
			res.InvoiceID = out.Record.ID
		}
		results = append(results, res)
	}
	return results, nil
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}

		if len(matches) == 0 {
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", arg)
			}

			if info.IsDir() {
				err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					if !info.IsDir() && isSupportedFile(path) {
						files = append(files, path)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
			} else {
				files = append(files, arg)
			}
		} else {
			for _, match := range matches {
				info, err := os.Stat(match)
				if err != nil {
					continue
				}
				if !info.IsDir() && isSupportedFile(match) {
					files = append(files, match)
				}
			}
		}
	}

	return files, nil
}

func isSupportedFile(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, allowed := range ingest.AllowedExtensions() {
		if ext == allowed {
			return true
		}
	}
	return false
}

func outputIngestResults(results []ingestResult) error {
	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	case "table":
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tID\tVENDOR\tTOTAL\tSTATUS\tNOTE")
		fmt.Fprintln(tw, "----\t--\t------\t-----\t------\t----")
		for _, r := range results {
			note := ""
			switch {
			case r.Error != "":
				note = "ERROR: " + r.Error
			case r.Duplicate:
				note = "duplicate"
			case !r.Saved:
				note = "not saved"
			}
			vendor, total, status := "", "", ""
			if r.Record != nil {
				vendor, total, status = r.Record.Vendor, r.Record.Total, string(r.Record.Status)
			}
			id := ""
			if r.InvoiceID != 0 {
				id = fmt.Sprintf("%d", r.InvoiceID)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.File, id, vendor, total, status, note)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}
