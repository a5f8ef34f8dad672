// Package report computes summary statistics over stored invoices and
// serializes record sets into download formats.
package report

import (
	"context"
	"time"

	"github.com/rezonia/invoice-hub/internal/amounts"
	"github.com/rezonia/invoice-hub/internal/model"
	"github.com/rezonia/invoice-hub/internal/store"
)

// summaryScanLimit bounds how many records feed the amount sum.
const summaryScanLimit = 1000

// Analytics is the summary snapshot for one tenant (or all tenants).
type Analytics struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	// Monthly counts records created since the start of the current month.
	Monthly int64 `json:"monthly"`
	// TotalAmountUSD sums parseable record totals, converted to USD with
	// approximate rates. AmountsCounted says how many records contributed.
	TotalAmountUSD string `json:"total_amount_usd"`
	AmountsCounted int    `json:"amounts_counted"`
}

// Aggregator computes analytics snapshots from the store.
type Aggregator struct {
	store *store.Store
	now   func() time.Time
}

func NewAggregator(st *store.Store) *Aggregator {
	return &Aggregator{store: st, now: time.Now}
}

// Summarize builds the analytics snapshot scoped by tenant; an empty tenant
// aggregates across all tenants.
func (a *Aggregator) Summarize(ctx context.Context, tenant string) (*Analytics, error) {
	counts, err := a.store.CountByStatus(ctx, tenant)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	now := a.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthly, err := a.store.CountSince(ctx, tenant, monthStart)
	if err != nil {
		return nil, err
	}

	records, err := a.store.List(ctx, store.Filter{Tenant: tenant, Limit: summaryScanLimit})
	if err != nil {
		return nil, err
	}
	totals := make([]string, 0, len(records))
	for _, rec := range records {
		totals = append(totals, rec.Total)
	}
	sum, counted := amounts.SumUSD(totals)

	return &Analytics{
		Total:          total,
		Pending:        counts[model.StatusPending],
		Approved:       counts[model.StatusApproved],
		Monthly:        monthly,
		TotalAmountUSD: sum.StringFixed(2),
		AmountsCounted: counted,
	}, nil
}
