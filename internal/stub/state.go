// Package stub is an in-memory development backend for the floor core.
//
// The production system keeps this state in a database behind a FastAPI
// service; the stub reproduces the observable contract — table occupancy,
// invoice totals, atomic transfer, debt bounds — behind the same REST
// paths so the core and its end-to-end tests have a real HTTP counterpart.
// State lives under one mutex: every handler is a critical section, which
// is exactly the atomicity the transfer endpoint promises.
package stub

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mycafe/internal/core/apperror"
)

type table struct {
	ID       int64
	Number   string
	Capacity int
	Billiard bool
}

type product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

type line struct {
	ID        int64
	InvoiceID int64
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l line) total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type invoice struct {
	ID       int64
	TableID  int64
	Status   string // OPEN, CLOSED
	Discount decimal.Decimal
	Paid     decimal.Decimal
	OpenedAt time.Time
}

type customer struct {
	ID       int64
	FullName string
	Phone    string
	Notes    string
}

type debtRecord struct {
	ID          int64
	CustomerID  int64
	InvoiceID   int64
	Amount      decimal.Decimal
	Description string
}

type payment struct {
	ID        int64
	InvoiceID int64
	Method    string
	Amount    decimal.Decimal
}

// state is the whole backend world.
type state struct {
	mu sync.Mutex

	nextID    int64
	tables    map[int64]*table
	tableSeq  []int64
	products  map[int64]*product
	prodSeq   []int64
	invoices  map[int64]*invoice
	lines     map[int64]*line
	customers map[int64]*customer
	custSeq   []int64
	debts     map[int64]*debtRecord
	payments  map[int64]*payment

	// cashIncome tracks register income. ON_ACCOUNT payments reduce the
	// invoice balance but never land here.
	cashIncome decimal.Decimal
}

func newState() *state {
	return &state{
		nextID:    1,
		tables:    make(map[int64]*table),
		products:  make(map[int64]*product),
		invoices:  make(map[int64]*invoice),
		lines:     make(map[int64]*line),
		customers: make(map[int64]*customer),
		debts:     make(map[int64]*debtRecord),
		payments:  make(map[int64]*payment),
	}
}

func (s *state) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// seed populates a small floor: regular tables, a billiard table, and a
// product list with fixed prices.
func (s *state) seed(tableCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 1; i <= tableCount; i++ {
		t := &table{ID: s.id(), Number: itoa(i), Capacity: 4}
		s.tables[t.ID] = t
		s.tableSeq = append(s.tableSeq, t.ID)
	}
	b := &table{ID: s.id(), Number: "B1", Capacity: 4, Billiard: true}
	s.tables[b.ID] = b
	s.tableSeq = append(s.tableSeq, b.ID)

	for _, p := range []struct {
		name  string
		price string
	}{
		{"Çay", "15.00"},
		{"Türk Kahvesi", "45.00"},
		{"Tost", "85.00"},
		{"Ayran", "25.00"},
		{"Limonata", "40.00"},
	} {
		prod := &product{ID: s.id(), Name: p.name, Price: decimal.RequireFromString(p.price)}
		s.products[prod.ID] = prod
		s.prodSeq = append(s.prodSeq, prod.ID)
	}
}

func itoa(n int) string {
	// small positive numbers only
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// --- Derived views (callers hold s.mu) ---

// openInvoiceFor returns the open invoice on a table, if any.
func (s *state) openInvoiceFor(tableID int64) *invoice {
	for _, inv := range s.invoices {
		if inv.TableID == tableID && inv.Status == "OPEN" {
			return inv
		}
	}
	return nil
}

func (s *state) invoiceLines(invoiceID int64) []*line {
	var out []*line
	for _, l := range s.lines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	// Stable order by id (insertion order).
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ID > out[j].ID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func (s *state) invoiceTotal(invoiceID int64) decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.invoiceLines(invoiceID) {
		total = total.Add(l.total())
	}
	return total
}

func (s *state) invoiceRemaining(inv *invoice) decimal.Decimal {
	remaining := s.invoiceTotal(inv.ID).Sub(inv.Discount).Sub(inv.Paid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// recordPayment applies a payment after validation.
func (s *state) recordPayment(inv *invoice, method string, amount decimal.Decimal) (*payment, error) {
	remaining := s.invoiceRemaining(inv)
	if amount.GreaterThan(remaining) {
		return nil, apperror.NewBusinessRule("payment exceeds the remaining balance").
			WithDetail("amount", amount.String()).
			WithDetail("remaining", remaining.String())
	}
	inv.Paid = inv.Paid.Add(amount)
	p := &payment{ID: s.id(), InvoiceID: inv.ID, Method: method, Amount: amount}
	s.payments[p.ID] = p
	if method != "ON_ACCOUNT" {
		s.cashIncome = s.cashIncome.Add(amount)
	}
	return p, nil
}
