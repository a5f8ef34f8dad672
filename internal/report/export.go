package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rezonia/invoice-hub/internal/model"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var csvHeader = []string{
	"id", "invoice_number", "vendor", "date", "total",
	"subtotal", "tax", "summary", "status", "created_at",
}

// Export serializes a record set into the requested format, returning the
// payload, its content type, and a download filename. An empty record set is
// not an error: it produces a well-formed header-only artifact.
func Export(records []model.InvoiceRecord, format string) ([]byte, string, string, error) {
	switch format {
	case FormatJSON:
		data, err := exportJSON(records)
		return data, "application/json", exportFilename(records, FormatJSON), err
	case FormatCSV:
		data, err := exportCSV(records)
		return data, "text/csv", exportFilename(records, FormatCSV), err
	case FormatXLSX:
		data, err := exportXLSX(records)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			exportFilename(records, FormatXLSX), err
	default:
		return nil, "", "", model.NewValidationError("format", format, "enum",
			"supported formats: json, csv, xlsx")
	}
}

func exportFilename(records []model.InvoiceRecord, format string) string {
	if len(records) == 0 {
		return "invoices_empty." + format
	}
	return fmt.Sprintf("invoices_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
}

func exportJSON(records []model.InvoiceRecord) ([]byte, error) {
	if records == nil {
		records = []model.InvoiceRecord{}
	}
	return json.MarshalIndent(records, "", "  ")
}

func exportCSV(records []model.InvoiceRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Number, rec.Vendor, rec.Date, rec.Total,
			rec.Subtotal, rec.Tax, rec.Summary, string(rec.Status),
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportXLSX(records []model.InvoiceRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Invoices"
	f.SetSheetName("Sheet1", sheet)

	header := make([]interface{}, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, rec := range records {
		row := []interface{}{
			rec.ID, rec.Number, rec.Vendor, rec.Date, rec.Total,
			rec.Subtotal, rec.Tax, rec.Summary, string(rec.Status),
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportAnalytics serializes an analytics snapshot as json or csv.
func ExportAnalytics(a *Analytics, format string) ([]byte, string, string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(a, "", "  ")
		return data, "application/json", "analytics.json", err
	case FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		rows := [][]string{
			{"metric", "value"},
			{"total", strconv.FormatInt(a.Total, 10)},
			{"pending", strconv.FormatInt(a.Pending, 10)},
			{"approved", strconv.FormatInt(a.Approved, 10)},
			{"monthly", strconv.FormatInt(a.Monthly, 10)},
			{"total_amount_usd", a.TotalAmountUSD},
		}
		for _, row := range rows {
			if err := w.Write(row); err != nil {
				return nil, "", "", err
			}
		}
		w.Flush()
		return buf.Bytes(), "text/csv", "analytics.csv", w.Error()
	default:
		return nil, "", "", model.NewValidationError("format", format, "enum",
			"supported formats: json, csv")
	}
}
