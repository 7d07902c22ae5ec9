// Package invoicestore caches per-invoice financial snapshots and routes
// every line-item mutation through the backend.
//
// Failure semantics: a failed mutation leaves the cached snapshot untouched.
// Nothing here is applied speculatively; a successful mutation invalidates
// the cache and reloads the authoritative snapshot. Mis-predicting money is
// not a self-correcting glitch the way occupancy is, so the store is
// strictly pessimistic.
package invoicestore

import (
	"context"
	"sync"

	"mycafe/internal/core/apperror"
	"mycafe/internal/core/types"
	"mycafe/internal/domain"
	"mycafe/pkg/logger"
)

// API is the slice of the backend client the store needs.
type API interface {
	GetInvoice(ctx context.Context, invoiceID types.ID) (*domain.Invoice, error)
	AddLineItem(ctx context.Context, invoiceID, productID types.ID, quantity int) (*domain.LineItem, error)
	UpdateLineItem(ctx context.Context, lineID types.ID, quantity int) (*domain.LineItem, error)
	RemoveLineItem(ctx context.Context, lineID types.ID) error
	ApplyDiscount(ctx context.Context, invoiceID types.ID, amount types.Money) error
}

// Store caches invoice snapshots by id. Safe for concurrent use; mutating
// calls for the same invoice are serialized — a second one fails fast with
// an OPERATION_IN_FLIGHT conflict while the first is still running.
// Different invoices mutate concurrently.
type Store struct {
	api API
	log *logger.Logger

	mu    sync.Mutex
	cache map[types.ID]*domain.Invoice
	busy  map[types.ID]bool
}

// New creates an empty store.
func New(api API, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Default()
	}
	return &Store{
		api:   api,
		log:   log.WithComponent("invoice-store"),
		cache: make(map[types.ID]*domain.Invoice),
		busy:  make(map[types.ID]bool),
	}
}

// Load fetches the invoice header plus line items and caches the snapshot.
func (s *Store) Load(ctx context.Context, invoiceID types.ID) (*domain.Invoice, error) {
	inv, err := s.api.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[invoiceID] = inv.Clone()
	s.mu.Unlock()
	return inv, nil
}

// Get returns the cached snapshot, if any. The copy is the caller's.
func (s *Store) Get(invoiceID types.ID) (*domain.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.cache[invoiceID]
	if !ok {
		return nil, false
	}
	return inv.Clone(), true
}

// CachedIDs lists the invoices currently held in the cache, for the
// polling loop to re-fetch.
func (s *Store) CachedIDs() []types.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]types.ID, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	return ids
}

// Invalidate drops the cached snapshot for an invoice.
func (s *Store) Invalidate(invoiceID types.ID) {
	s.mu.Lock()
	delete(s.cache, invoiceID)
	s.mu.Unlock()
}

// begin claims the per-invoice mutation slot.
func (s *Store) begin(invoiceID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[invoiceID] {
		return apperror.NewBusy(invoiceID.String())
	}
	s.busy[invoiceID] = true
	return nil
}

func (s *Store) end(invoiceID types.ID) {
	s.mu.Lock()
	delete(s.busy, invoiceID)
	s.mu.Unlock()
}

// reload invalidates and re-fetches after a successful mutation so the
// cache never holds a snapshot the server has moved past.
func (s *Store) reload(ctx context.Context, invoiceID types.ID) (*domain.Invoice, error) {
	s.Invalidate(invoiceID)
	inv, err := s.Load(ctx, invoiceID)
	if err != nil {
		// The mutation itself succeeded; the next poll tick will
		// repopulate the cache.
		s.log.Warnw("reload after mutation failed", "invoice_id", invoiceID, "error", err)
		return nil, err
	}
	return inv, nil
}

// AddLineItem appends a line to the invoice, then reloads the snapshot.
func (s *Store) AddLineItem(ctx context.Context, invoiceID, productID types.ID, quantity int) (*domain.Invoice, error) {
	if quantity < 1 {
		return nil, apperror.NewValidation("quantity must be at least 1").
			WithDetail("quantity", quantity)
	}
	if productID.IsZero() {
		return nil, apperror.NewValidation("product is required")
	}
	if err := s.begin(invoiceID); err != nil {
		return nil, err
	}
	defer s.end(invoiceID)

	if _, err := s.api.AddLineItem(ctx, invoiceID, productID, quantity); err != nil {
		return nil, err
	}
	return s.reload(ctx, invoiceID)
}

// UpdateLineItemQuantity changes a line's quantity. Any quantity below 1 is
// defined to be equivalent to removing the line.
func (s *Store) UpdateLineItemQuantity(ctx context.Context, invoiceID, lineID types.ID, quantity int) (*domain.Invoice, error) {
	if quantity < 1 {
		return s.RemoveLineItem(ctx, invoiceID, lineID)
	}
	if err := s.begin(invoiceID); err != nil {
		return nil, err
	}
	defer s.end(invoiceID)

	if _, err := s.api.UpdateLineItem(ctx, lineID, quantity); err != nil {
		return nil, err
	}
	return s.reload(ctx, invoiceID)
}

// RemoveLineItem deletes a line, then reloads the snapshot.
func (s *Store) RemoveLineItem(ctx context.Context, invoiceID, lineID types.ID) (*domain.Invoice, error) {
	if err := s.begin(invoiceID); err != nil {
		return nil, err
	}
	defer s.end(invoiceID)

	if err := s.api.RemoveLineItem(ctx, lineID); err != nil {
		return nil, err
	}
	return s.reload(ctx, invoiceID)
}

// ApplyDiscount sets the invoice discount. Zero is a valid "reset" call.
// Negative input is rejected locally; there is no client-side upper bound —
// the backend is authoritative.
func (s *Store) ApplyDiscount(ctx context.Context, invoiceID types.ID, amount types.Money) (*domain.Invoice, error) {
	if amount.IsNegative() {
		return nil, apperror.NewValidation("discount cannot be negative").
			WithDetail("amount", amount.String())
	}
	if err := s.begin(invoiceID); err != nil {
		return nil, err
	}
	defer s.end(invoiceID)

	if err := s.api.ApplyDiscount(ctx, invoiceID, amount); err != nil {
		return nil, err
	}
	return s.reload(ctx, invoiceID)
}
