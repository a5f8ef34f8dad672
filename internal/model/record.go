package model

import (
	"strings"
	"time"
)

// Status is the review state of a stored invoice record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
	StatusArchived Status = "archived"
)

// Statuses lists every valid status, in lifecycle order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusPaid, StatusArchived}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid, StatusArchived:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// StatusList renders the valid statuses as a comma-separated string for
// error messages and help text.
func StatusList() string {
	var b strings.Builder
	for i, s := range Statuses {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(s))
	}
	return b.String()
}

// UploadType tags how a record entered the system. Immutable after creation.
type UploadType string

const (
	UploadSingle UploadType = "single"
	UploadBatch  UploadType = "batch"
)

// TenantAnonymous is the sentinel owner used when no identity is supplied.
const TenantAnonymous = "anonymous"

// LineItem is one row of an invoice's item table. All values are kept as
// display strings; numeric normalization is the extraction engine's job.
type LineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

// InvoiceRecord is the persisted unit: one ingested document's extracted
// data plus its review lifecycle state.
type InvoiceRecord struct {
	ID          int64      `json:"id"`
	Tenant      string     `json:"user_id"`
	Vendor      string     `json:"vendor"`
	Date        string     `json:"date"`
	Total       string     `json:"total"`
	Number      string     `json:"invoice_number"`
	Tax         string     `json:"tax"`
	Subtotal    string     `json:"subtotal"`
	Summary     string     `json:"summary"`
	LineItems   []LineItem `json:"line_items"`
	Status      Status     `json:"status"`
	UploadType  UploadType `json:"upload_type"`
	Fingerprint string     `json:"file_hash"`
	CreatedAt   time.Time  `json:"created_at"`
}
