// Package store owns the persisted invoice records.
//
// Backed by SQLite via database/sql; use ":memory:" for an ephemeral store
// (tests, demos). Duplicate fingerprints are deliberately NOT rejected here:
// the dedup invariant is enforced at the ingestion boundary, which must call
// FingerprintExists before creating a record.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rezonia/invoice-hub/internal/model"
)

// DefaultListLimit caps unbounded list queries.
const DefaultListLimit = 50

// timeLayout is a fixed-width RFC 3339 variant. created_at is TEXT, so
// ordering and range bounds compare lexicographically; RFC3339Nano trims
// trailing fractional zeros and would mis-order rows within one second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Filter narrows List results. Zero-value fields are ignored.
type Filter struct {
	Tenant     string
	Status     model.Status
	UploadType model.UploadType
	Limit      int
	Offset     int
}

// Store is the single shared mutable resource of the system. Writes are
// serialized with a mutex so concurrent readers never observe a partially
// written record.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *slog.Logger
}

// Open creates a store at the given SQLite path and migrates the schema.
// Use ":memory:" for an in-memory database.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases alive across calls.
	db.SetMaxOpenConns(1)

	if log == nil {
		log = slog.Default()
	}

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL DEFAULT 'anonymous',
		vendor TEXT,
		date TEXT,
		total TEXT,
		invoice_number TEXT,
		tax TEXT,
		subtotal TEXT,
		summary TEXT,
		line_items TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'pending',
		upload_type TEXT NOT NULL DEFAULT 'single',
		file_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_user ON invoices(user_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);
	CREATE INDEX IF NOT EXISTS idx_invoices_file_hash ON invoices(file_hash);
	CREATE INDEX IF NOT EXISTS idx_invoices_created_at ON invoices(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create persists a new record and returns its assigned id. The record's
// CreatedAt and Status are assigned here if unset.
func (s *Store) Create(ctx context.Context, rec *model.InvoiceRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Status == "" {
		rec.Status = model.StatusPending
	}
	if rec.Tenant == "" {
		rec.Tenant = model.TenantAnonymous
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	items := rec.LineItems
	if items == nil {
		items = []model.LineItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return 0, model.NewPersistenceError("create", "failed to encode line items", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices
		(user_id, vendor, date, total, invoice_number, tax, subtotal, summary,
		 line_items, status, upload_type, file_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Tenant, rec.Vendor, rec.Date, rec.Total, rec.Number, rec.Tax,
		rec.Subtotal, rec.Summary, string(itemsJSON), string(rec.Status),
		string(rec.UploadType), rec.Fingerprint,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, model.NewPersistenceError("create", "insert failed", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, model.NewPersistenceError("create", "failed to read assigned id", err)
	}
	rec.ID = id
	return id, nil
}

// Get returns the record with the given id, or (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, id int64) (*model.InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectColumns+` FROM invoices WHERE id = ?`, id)
	rec, err := s.scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns records matching the filter, newest-created-first.
func (s *Store) List(ctx context.Context, f Filter) ([]model.InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectColumns + ` FROM invoices WHERE 1=1`
	var args []any
	if f.Tenant != "" {
		query += ` AND user_id = ?`
		args = append(args, f.Tenant)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.UploadType != "" {
		query += ` AND upload_type = ?`
		args = append(args, string(f.UploadType))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	return s.queryRecords(ctx, query, args...)
}

// Search returns records whose vendor or invoice number contains term,
// optionally scoped to one tenant.
func (s *Store) Search(ctx context.Context, term, tenant string) ([]model.InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectColumns + ` FROM invoices
		WHERE (vendor LIKE ? ESCAPE '\' OR invoice_number LIKE ? ESCAPE '\')`
	pattern := "%" + escapeLike(term) + "%"
	args := []any{pattern, pattern}
	if tenant != "" {
		query += ` AND user_id = ?`
		args = append(args, tenant)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return s.queryRecords(ctx, query, args...)
}

// UpdateStatus sets the status of a record, scoped by tenant. Returns false
// when no row matched (unknown id or foreign tenant) — a no-op, not an error.
// An invalid status is rejected before any mutation.
func (s *Store) UpdateStatus(ctx context.Context, id int64, tenant string, status model.Status) (bool, error) {
	if !status.Valid() {
		return false, model.NewValidationError("status", string(status), "enum", "not a valid invoice status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE invoices SET status = ? WHERE id = ?`
	args := []any{string(status), id}
	if tenant != "" {
		query += ` AND user_id = ?`
		args = append(args, tenant)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, model.NewPersistenceError("update-status", "update failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.NewPersistenceError("update-status", "failed to read affected rows", err)
	}
	return n > 0, nil
}

// Delete removes a record by id. Returns false when the id was absent.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return false, model.NewPersistenceError("delete", "delete failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, model.NewPersistenceError("delete", "failed to read affected rows", err)
	}
	return n > 0, nil
}

// Clear removes all records, or all records of one upload type when given.
// Returns the number of rows removed. Used by demo/reset flows.
func (s *Store) Clear(ctx context.Context, uploadType model.UploadType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `DELETE FROM invoices`
	var args []any
	if uploadType != "" {
		query += ` WHERE upload_type = ?`
		args = append(args, string(uploadType))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, model.NewPersistenceError("clear", "delete failed", err)
	}
	return res.RowsAffected()
}

// FingerprintExists reports whether a record with the given fingerprint is
// stored, and if so returns its id.
func (s *Store) FingerprintExists(ctx context.Context, fp string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM invoices WHERE file_hash = ? ORDER BY id ASC LIMIT 1`, fp,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, model.NewPersistenceError("fingerprint-exists", "lookup failed", err)
	}
	return id, true, nil
}

// CountByStatus returns the number of records per status for a tenant
// (all tenants when tenant is empty).
func (s *Store) CountByStatus(ctx context.Context, tenant string) (map[model.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT status, COUNT(*) FROM invoices`
	var args []any
	if tenant != "" {
		query += ` WHERE user_id = ?`
		args = append(args, tenant)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.NewPersistenceError("count-by-status", "query failed", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, model.NewPersistenceError("count-by-status", "scan failed", err)
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

// CountSince returns the number of records for a tenant created at or after
// the given instant (all tenants when tenant is empty).
func (s *Store) CountSince(ctx context.Context, tenant string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT COUNT(*) FROM invoices WHERE created_at >= ?`
	args := []any{since.UTC().Format(timeLayout)}
	if tenant != "" {
		query += ` AND user_id = ?`
		args = append(args, tenant)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, model.NewPersistenceError("count-since", "query failed", err)
	}
	return n, nil
}

const selectColumns = `SELECT id, user_id, vendor, date, total, invoice_number,
	tax, subtotal, summary, line_items, status, upload_type, file_hash, created_at`

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]model.InvoiceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.NewPersistenceError("query", "query failed", err)
	}
	defer rows.Close()

	records := make([]model.InvoiceRecord, 0)
	for rows.Next() {
		rec, err := s.scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *Store) scanRecord(scan func(dest ...any) error) (*model.InvoiceRecord, error) {
	var (
		rec       model.InvoiceRecord
		status    string
		upType    string
		itemsJSON string
		createdAt string
	)

	err := scan(
		&rec.ID, &rec.Tenant, &rec.Vendor, &rec.Date, &rec.Total, &rec.Number,
		&rec.Tax, &rec.Subtotal, &rec.Summary, &itemsJSON, &status, &upType,
		&rec.Fingerprint, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, model.NewPersistenceError("scan", "failed to scan record", err)
	}

	rec.Status = model.Status(status)
	rec.UploadType = model.UploadType(upType)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.LineItems = s.decodeLineItems(rec.ID, itemsJSON)
	return &rec, nil
}

// decodeLineItems degrades a malformed stored payload to an empty slice
// instead of failing the read. Deliberate robustness choice carried over from
// the original system; the degrade is logged so bad rows stay visible.
func (s *Store) decodeLineItems(id int64, raw string) []model.LineItem {
	if raw == "" {
		return []model.LineItem{}
	}
	var items []model.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.log.Warn("malformed line items payload, degrading to empty",
			"invoice_id", id, "error", err)
		return []model.LineItem{}
	}
	if items == nil {
		return []model.LineItem{}
	}
	return items
}

func escapeLike(s string) string {
	r := strings.NewReplacer("%", `\%`, "_", `\_`)
	return r.Replace(s)
}
