package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/report"
	"github.com/rezonia/invoice-hub/internal/store"
)

var (
	exportFormat     string
	exportStatus     string
	exportUploadType string
	exportTenant     string
	exportOutput     string
	exportLimit      int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored invoices to a file",
	Long: `Export stored invoices as json, csv, or xlsx.

An empty result set still produces a well-formed file (for csv, just the
header row).

Examples:
  invoice-hub export --format csv -o invoices.csv
  invoice-hub export --format xlsx --status approved -o approved.xlsx
  invoice-hub export --tenant alice`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", report.FormatJSON, "Export format (json, csv, xlsx)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "Filter by status")
	exportCmd.Flags().StringVar(&exportUploadType, "upload-type", "", "Filter by upload type (single, batch)")
	exportCmd.Flags().StringVar(&exportTenant, "tenant", "", "Filter by owner (default: all)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: the export's own filename)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "Maximum records to export")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := newLogger()
	st, err := openStore(log)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := st.List(ctx, store.Filter{
		Tenant:     exportTenant,
		Status:     model.Status(exportStatus),
		UploadType: model.UploadType(exportUploadType),
		Limit:      exportLimit,
	})
	if err != nil {
		return err
	}

	data, _, filename, err := report.Export(records, exportFormat)
	if err != nil {
		return err
	}

	out := exportOutput
	if out == "" {
		out = filename
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Printf("Exported %d invoices to %s\n", len(records), out)
	return nil
}
