// Package debt converts part or all of an invoice's remaining balance into
// a customer debt ("Hesaba Yaz") without closing the invoice.
//
// The conversion is two external writes forming one logical unit: a debt
// record plus an ON_ACCOUNT payment. When the second write fails after the
// first committed, the workflow reports a partial failure — its own
// category, distinct from success and from clean failure — carrying the
// created debt record id so the operator can reconcile manually.
package debt

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mycafe/internal/core/apperror"
	"mycafe/internal/core/types"
	"mycafe/internal/domain"
	"mycafe/pkg/logger"
)

// API is the slice of the backend client the workflow needs.
type API interface {
	CreateCustomer(ctx context.Context, fullName, phone, notes string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateDebt(ctx context.Context, customerID, invoiceID types.ID, amount types.Money, description string) (*domain.DebtRecord, error)
	ProcessPayment(ctx context.Context, invoiceID types.ID, method domain.PaymentMethod, amount types.Money, customerID types.ID, description string) (*domain.Payment, error)
}

// Invoices is the snapshot cache the workflow validates against and
// refreshes on completion.
type Invoices interface {
	Get(invoiceID types.ID) (*domain.Invoice, bool)
	Load(ctx context.Context, invoiceID types.ID) (*domain.Invoice, error)
	Invalidate(invoiceID types.ID)
}

// Refresher forces an out-of-band poll.
type Refresher interface {
	TriggerNow()
}

// NewCustomer carries the data for creating a customer inline.
type NewCustomer struct {
	FullName string
	Phone    string
	Notes    string
}

// Request describes one debt conversion.
type Request struct {
	InvoiceID types.ID

	// CustomerID selects an existing customer. When zero, NewCustomer
	// must carry at least a full name and phone.
	CustomerID  types.ID
	NewCustomer *NewCustomer

	Amount      types.Money
	Description string
}

// Outcome reports what the workflow committed.
type Outcome struct {
	CustomerID      types.ID
	CustomerCreated bool
	Debt            *domain.DebtRecord
	Payment         *domain.Payment

	// Invoice is the reloaded snapshot after full success, nil otherwise.
	Invoice *domain.Invoice

	// Customers is the refreshed customer list after full success.
	Customers []domain.Customer
}

// Workflow executes debt conversions.
type Workflow struct {
	api       API
	invoices  Invoices
	refresher Refresher
	log       *logger.Logger
	tracer    trace.Tracer
}

// New creates a debt conversion workflow.
func New(api API, invoices Invoices, refresher Refresher, log *logger.Logger) *Workflow {
	if log == nil {
		log = logger.Default()
	}
	return &Workflow{
		api:       api,
		invoices:  invoices,
		refresher: refresher,
		log:       log.WithComponent("debt-workflow"),
		tracer:    otel.Tracer("mycafe/floor/debt"),
	}
}

// Convert runs the conversion. Steps are sequential and never silently
// continue past a failure:
//
//  1. resolve the customer (create one when none is selected)
//  2. validate 0 < amount <= remaining (advisory; the server re-checks)
//  3. create the debt record
//  4. record the matching ON_ACCOUNT payment
//  5. reload the invoice and the customer list
//
// A failure in step 4 after step 3 committed returns a PARTIAL_FAILURE
// error together with the partial Outcome.
func (w *Workflow) Convert(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := w.tracer.Start(ctx, "debt.convert",
		trace.WithAttributes(attribute.String("invoice_id", req.InvoiceID.String())))
	defer span.End()

	out, err := w.convert(ctx, req)
	if err != nil {
		span.SetAttributes(attribute.Bool("partial", apperror.IsPartialFailure(err)))
	}
	return out, err
}

func (w *Workflow) convert(ctx context.Context, req Request) (*Outcome, error) {
	if req.InvoiceID.IsZero() {
		return nil, apperror.NewValidation("invoice is required")
	}

	// Step 1: resolve the customer.
	out := &Outcome{}
	customerID, created, err := w.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}
	out.CustomerID = customerID
	out.CustomerCreated = created

	// Step 2: bound the amount against the cached snapshot. Advisory
	// only — the authoritative bound check happens server-side and a
	// rejection there surfaces as a mutation error below.
	if err := w.validateAmount(ctx, req.InvoiceID, req.Amount); err != nil {
		return out, err
	}

	// Step 3: create the debt record.
	debtRec, err := w.api.CreateDebt(ctx, customerID, req.InvoiceID, req.Amount, req.Description)
	if err != nil {
		return out, err
	}
	out.Debt = debtRec

	// Step 4: record the matching ON_ACCOUNT payment. If this fails the
	// debt record already exists without a payment: report a partial
	// failure so the operator reconciles manually instead of reading
	// either "success" or "failed".
	payment, err := w.api.ProcessPayment(ctx, req.InvoiceID, domain.PaymentOnAccount, req.Amount, customerID, req.Description)
	if err != nil {
		w.invoices.Invalidate(req.InvoiceID)
		w.refresher.TriggerNow()
		w.log.Errorw("debt recorded but payment failed, reconcile manually",
			"invoice_id", req.InvoiceID,
			"debt_record_id", debtRec.ID,
			"amount", req.Amount,
			"error", err,
		)
		return out, apperror.NewPartialFailure("debt record creation", "payment recording", err).
			WithDetail("debt_record_id", debtRec.ID.String()).
			WithDetail("invoice_id", req.InvoiceID.String()).
			WithDetail("amount", req.Amount.String())
	}
	out.Payment = payment

	// Step 5: refresh everything the conversion touched.
	w.invoices.Invalidate(req.InvoiceID)
	if inv, err := w.invoices.Load(ctx, req.InvoiceID); err == nil {
		out.Invoice = inv
	}
	if customers, err := w.api.ListCustomers(ctx); err == nil {
		out.Customers = customers
	}
	w.refresher.TriggerNow()

	w.log.Infow("debt conversion completed",
		"invoice_id", req.InvoiceID,
		"customer_id", customerID,
		"debt_record_id", debtRec.ID,
		"amount", req.Amount,
	)
	return out, nil
}

// resolveCustomer picks the selected customer or creates one from the
// inline data. Reports whether a customer was created.
func (w *Workflow) resolveCustomer(ctx context.Context, req Request) (types.ID, bool, error) {
	if !req.CustomerID.IsZero() {
		return req.CustomerID, false, nil
	}
	nc := req.NewCustomer
	if nc == nil || strings.TrimSpace(nc.FullName) == "" || strings.TrimSpace(nc.Phone) == "" {
		return "", false, apperror.NewMissingCustomerInfo()
	}
	customer, err := w.api.CreateCustomer(ctx, strings.TrimSpace(nc.FullName), strings.TrimSpace(nc.Phone), strings.TrimSpace(nc.Notes))
	if err != nil {
		return "", false, err
	}
	return customer.ID, true, nil
}

// validateAmount enforces 0 < amount <= remaining at submission time.
func (w *Workflow) validateAmount(ctx context.Context, invoiceID types.ID, amount types.Money) error {
	if !amount.IsPositive() {
		return apperror.NewValidation("debt amount must be positive").
			WithDetail("amount", amount.String())
	}
	inv, ok := w.invoices.Get(invoiceID)
	if !ok {
		loaded, err := w.invoices.Load(ctx, invoiceID)
		if err != nil {
			return err
		}
		inv = loaded
	}
	if !inv.IsOpen() {
		return apperror.NewValidation("invoice is not open").
			WithDetail("status", string(inv.Status))
	}
	if amount.GreaterThan(inv.RemainingAmount) {
		return apperror.NewValidation("debt amount exceeds the remaining balance").
			WithDetail("amount", amount.String()).
			WithDetail("remaining", inv.RemainingAmount.String())
	}
	return nil
}
