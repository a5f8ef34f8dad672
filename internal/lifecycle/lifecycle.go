// Package lifecycle applies invoice status transitions.
//
// Any status may move to any other valid status; the guard is on the value
// itself, not the transition edge. Review workflows that want stricter edges
// can layer them on top.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/store"
)

// Manager validates and applies status changes, tenant-scoped.
type Manager struct {
	store *store.Store
	log   *slog.Logger
}

func NewManager(st *store.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: st, log: log}
}

// Apply sets the status of an invoice owned by tenant. It returns false when
// the id does not exist or belongs to another tenant; that is a no-op, not
// an error. An invalid status is rejected before any mutation is attempted.
func (m *Manager) Apply(ctx context.Context, id int64, tenant string, status model.Status) (bool, error) {
	if !status.Valid() {
		return false, model.NewValidationError("status", string(status), "enum",
			"valid statuses: "+model.StatusList())
	}

	applied, err := m.store.UpdateStatus(ctx, id, tenant, status)
	if err != nil {
		return false, err
	}
	if applied {
		m.log.Info("status updated", "invoice_id", id, "status", status)
	}
	return applied, nil
}
