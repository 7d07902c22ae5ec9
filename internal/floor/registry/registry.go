// Package registry tracks physical tables and which open invoice each owns.
//
// The registry is a read cache over two backend listings joined by table id.
// It prefers stale-but-available over empty: a failed refresh keeps the
// previous snapshot. Occupancy (and only occupancy) may be mutated
// optimistically after a confirmed local action; money never is.
package registry

import (
	"context"
	"sync"
	"time"

	"mycafe/internal/core/apperror"
	"mycafe/internal/core/types"
	"mycafe/internal/domain"
	"mycafe/pkg/logger"
)

// API is the slice of the backend client the registry needs.
type API interface {
	ListTables(ctx context.Context) ([]domain.Table, error)
	ListOpenInvoices(ctx context.Context) ([]domain.InvoiceSummary, error)
}

// Registry holds the table snapshot. Safe for concurrent use.
type Registry struct {
	api API
	log *logger.Logger

	mu          sync.RWMutex
	tables      []domain.Table
	index       map[types.ID]int
	generation  uint64
	lastRefresh time.Time
}

// New creates an empty registry.
func New(api API, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Default()
	}
	return &Registry{
		api:   api,
		log:   log.WithComponent("table-registry"),
		index: make(map[types.ID]int),
	}
}

// Refresh fetches the table list and the open-invoice set, joins them by
// table id, and republishes the snapshot. If either fetch fails the
// previous snapshot is retained and a SyncError is returned.
func (r *Registry) Refresh(ctx context.Context) ([]domain.Table, error) {
	tables, err := r.api.ListTables(ctx)
	if err != nil {
		return r.Snapshot(), apperror.NewSync("list tables", err)
	}
	open, err := r.api.ListOpenInvoices(ctx)
	if err != nil {
		return r.Snapshot(), apperror.NewSync("list open invoices", err)
	}

	// Join: table id -> open invoice id. Later entries win so the
	// most-recently-polled association survives a duplicate.
	byTable := make(map[types.ID]types.ID, len(open))
	for _, inv := range open {
		if inv.TableID.IsZero() {
			continue
		}
		byTable[inv.TableID] = inv.ID
	}

	joined := make([]domain.Table, len(tables))
	index := make(map[types.ID]int, len(tables))
	seen := make(map[types.ID]types.ID) // invoice id -> table id
	for i, t := range tables {
		t.Occupied = false
		t.OpenInvoiceID = ""
		if invID, ok := byTable[t.ID]; ok {
			// The backend guarantees at most one open invoice per
			// table; defend against observing the reverse anyway.
			if prevTable, dup := seen[invID]; dup {
				r.log.Warnw("inconsistent snapshot: invoice on two tables",
					"invoice_id", invID,
					"table_a", prevTable,
					"table_b", t.ID,
				)
				if j, ok := index[prevTable]; ok {
					joined[j].Occupied = false
					joined[j].OpenInvoiceID = ""
				}
			}
			seen[invID] = t.ID
			t.Occupied = true
			t.OpenInvoiceID = invID
		}
		joined[i] = t
		index[t.ID] = i
	}

	r.mu.Lock()
	r.tables = joined
	r.index = index
	r.generation++
	r.lastRefresh = time.Now()
	r.mu.Unlock()

	return r.Snapshot(), nil
}

// Snapshot returns a copy of the current table list.
func (r *Registry) Snapshot() []domain.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Table, len(r.tables))
	copy(out, r.tables)
	return out
}

// Get returns one table by id.
func (r *Registry) Get(tableID types.ID) (domain.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[tableID]
	if !ok {
		return domain.Table{}, false
	}
	return r.tables[i], true
}

// Generation identifies the current snapshot. Callers capture it before an
// external call and pass it to MarkOccupied/MarkEmpty so an optimistic
// mutation never overwrites a refresh that landed in between.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// LastRefresh returns when the snapshot was last rebuilt from the backend.
func (r *Registry) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRefresh
}

// MarkOccupied optimistically marks a table as owning an invoice. Applied
// only while the snapshot generation still equals asOf; reports whether the
// mark was applied. Skipping is harmless: a newer refresh is authoritative.
func (r *Registry) MarkOccupied(tableID, invoiceID types.ID, asOf uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != asOf {
		r.log.Debugw("optimistic mark skipped, snapshot moved on",
			"table_id", tableID, "as_of", asOf, "generation", r.generation)
		return false
	}
	i, ok := r.index[tableID]
	if !ok {
		return false
	}
	r.tables[i].Occupied = true
	r.tables[i].OpenInvoiceID = invoiceID
	return true
}

// MarkEmpty optimistically clears a table. Same generation guard as
// MarkOccupied.
func (r *Registry) MarkEmpty(tableID types.ID, asOf uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != asOf {
		r.log.Debugw("optimistic mark skipped, snapshot moved on",
			"table_id", tableID, "as_of", asOf, "generation", r.generation)
		return false
	}
	i, ok := r.index[tableID]
	if !ok {
		return false
	}
	r.tables[i].Occupied = false
	r.tables[i].OpenInvoiceID = ""
	return true
}
