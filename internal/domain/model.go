// Package domain defines the entities the floor core caches and orchestrates.
// All canonical state is owned by the backend; these structs are read-model
// snapshots plus the request/response shapes of the REST interface.
package domain

import (
	"time"

	"mycafe/internal/core/types"
)

// InvoiceStatus is the lifecycle state of an invoice.
// CLOSED is terminal: no further mutation is permitted.
type InvoiceStatus string

const (
	InvoiceOpen   InvoiceStatus = "OPEN"
	InvoiceClosed InvoiceStatus = "CLOSED"
)

// PaymentMethod enumerates how a payment was settled.
// OnAccount reduces the remaining balance without counting toward
// cash-register income; the backend owns that policy, the core only
// labels the method.
type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "CASH"
	PaymentCard      PaymentMethod = "CARD"
	PaymentOnAccount PaymentMethod = "ON_ACCOUNT"
)

// Table is a physical table as published by the registry.
// Occupied is derived: an open invoice exists whose TableID equals ID.
type Table struct {
	ID            types.ID `json:"id"`
	Number        string   `json:"table_number"`
	Capacity      int      `json:"capacity"`
	Billiard      bool     `json:"is_billiard,omitempty"`
	Occupied      bool     `json:"is_occupied"`
	OpenInvoiceID types.ID `json:"current_invoice_id,omitempty"`
}

// Product is a sellable catalog entry. The price here is the current list
// price; billed lines keep their own snapshot.
type Product struct {
	ID    types.ID    `json:"id"`
	Name  string      `json:"name"`
	Price types.Money `json:"price"`
}

// LineItem is one ordered position on an invoice. UnitPrice is a snapshot
// taken when the item was billed and never changes afterwards.
type LineItem struct {
	ID        types.ID    `json:"id"`
	ProductID types.ID    `json:"product_id"`
	Name      string      `json:"product_name_snapshot"`
	Quantity  int         `json:"quantity"`
	UnitPrice types.Money `json:"unit_price_snapshot"`
	LineTotal types.Money `json:"line_total"`
}

// Invoice is the financial snapshot of one open (or closed) invoice.
// Every amount is computed server-side and treated as an opaque fact here:
// reformatted for display, compared for guards, never recomputed.
type Invoice struct {
	ID              types.ID      `json:"id"`
	TableID         types.ID      `json:"table_id"`
	Status          InvoiceStatus `json:"status"`
	Lines           []LineItem    `json:"lines"`
	TotalAmount     types.Money   `json:"total_amount"`
	DiscountAmount  types.Money   `json:"discount_amount"`
	PaidAmount      types.Money   `json:"paid_amount"`
	RemainingAmount types.Money   `json:"remaining_amount"`
	CreatedAt       time.Time     `json:"opened_at"`
}

// IsOpen reports whether the invoice still accepts mutations.
func (i *Invoice) IsOpen() bool { return i.Status == InvoiceOpen }

// Closable reports whether the invoice may transition to CLOSED.
// Only a fully paid invoice closes; the backend enforces this too.
func (i *Invoice) Closable() bool {
	return i.IsOpen() && i.RemainingAmount.IsZero()
}

// Elapsed returns how long the invoice has been open, for display.
func (i *Invoice) Elapsed(now time.Time) time.Duration {
	if i.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(i.CreatedAt)
}

// Clone returns a deep copy so cached snapshots never leak shared slices.
func (i *Invoice) Clone() *Invoice {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Lines = make([]LineItem, len(i.Lines))
	copy(cp.Lines, i.Lines)
	return &cp
}

// InvoiceSummary is the lightweight shape returned by the open-invoice
// listing used for the registry join.
type InvoiceSummary struct {
	ID          types.ID    `json:"id"`
	TableID     types.ID    `json:"table_id"`
	TotalAmount types.Money `json:"total_amount"`
	OpenedAt    time.Time   `json:"opened_at"`
}

// Customer is a debtor account, created on demand during debt conversion.
type Customer struct {
	ID       types.ID `json:"id"`
	FullName string   `json:"full_name"`
	Phone    string   `json:"phone,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

// DebtRecord is one "Hesaba Yaz" entry. Creating it does not close the
// invoice; the matching ON_ACCOUNT payment reduces the remaining balance.
type DebtRecord struct {
	ID          types.ID    `json:"id"`
	CustomerID  types.ID    `json:"customer_id"`
	InvoiceID   types.ID    `json:"invoice_id"`
	Amount      types.Money `json:"amount"`
	Description string      `json:"description,omitempty"`
}

// Payment is the acknowledgement returned by the payment endpoint.
type Payment struct {
	ID            types.ID      `json:"transaction_id"`
	InvoiceID     types.ID      `json:"invoice_id"`
	Method        PaymentMethod `json:"payment_method"`
	Amount        types.Money   `json:"amount"`
	InvoiceClosed bool          `json:"invoice_closed"`
	TableFreed    bool          `json:"table_freed"`
}
