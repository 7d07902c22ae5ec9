package debt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mycafe/internal/core/apperror"
	"mycafe/internal/core/types"
	"mycafe/internal/domain"
)

// mockAPI records the calls the workflow issues.
type mockAPI struct {
	calls []string

	createCustomerErr error
	createDebtErr     error
	paymentErr        error

	customers []domain.Customer
}

func (m *mockAPI) CreateCustomer(ctx context.Context, fullName, phone, notes string) (*domain.Customer, error) {
	m.calls = append(m.calls, "create_customer")
	if m.createCustomerErr != nil {
		return nil, m.createCustomerErr
	}
	return &domain.Customer{ID: "77", FullName: fullName, Phone: phone, Notes: notes}, nil
}

func (m *mockAPI) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	m.calls = append(m.calls, "list_customers")
	return m.customers, nil
}

func (m *mockAPI) CreateDebt(ctx context.Context, customerID, invoiceID types.ID, amount types.Money, description string) (*domain.DebtRecord, error) {
	m.calls = append(m.calls, "create_debt")
	if m.createDebtErr != nil {
		return nil, m.createDebtErr
	}
	return &domain.DebtRecord{ID: "91", CustomerID: customerID, InvoiceID: invoiceID, Amount: amount, Description: description}, nil
}

func (m *mockAPI) ProcessPayment(ctx context.Context, invoiceID types.ID, method domain.PaymentMethod, amount types.Money, customerID types.ID, description string) (*domain.Payment, error) {
	m.calls = append(m.calls, "process_payment")
	if m.paymentErr != nil {
		return nil, m.paymentErr
	}
	return &domain.Payment{ID: "301", InvoiceID: invoiceID, Method: method, Amount: amount}, nil
}

// mockInvoices is a minimal snapshot cache double.
type mockInvoices struct {
	invoice     *domain.Invoice
	loadErr     error
	invalidated []types.ID
	loads       int
}

func (m *mockInvoices) Get(invoiceID types.ID) (*domain.Invoice, bool) {
	if m.invoice == nil || m.invoice.ID != invoiceID {
		return nil, false
	}
	return m.invoice.Clone(), true
}

func (m *mockInvoices) Load(ctx context.Context, invoiceID types.ID) (*domain.Invoice, error) {
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.invoice == nil || m.invoice.ID != invoiceID {
		return nil, apperror.NewNotFound("invoice", invoiceID)
	}
	return m.invoice.Clone(), nil
}

func (m *mockInvoices) Invalidate(invoiceID types.ID) {
	m.invalidated = append(m.invalidated, invoiceID)
}

type mockRefresher struct{ triggers int }

func (m *mockRefresher) TriggerNow() { m.triggers++ }

func invoiceWithRemaining(id types.ID, remaining string) *domain.Invoice {
	return &domain.Invoice{
		ID:              id,
		TableID:         "1",
		Status:          domain.InvoiceOpen,
		TotalAmount:     types.MustMoney("150.00"),
		PaidAmount:      types.MustMoney("150.00").Sub(types.MustMoney(remaining)),
		RemainingAmount: types.MustMoney(remaining),
	}
}

func newWorkflow(api *mockAPI, inv Invoices) (*Workflow, *mockRefresher) {
	r := &mockRefresher{}
	return New(api, inv, r, nil), r
}

func TestConvertWithExistingCustomer(t *testing.T) {
	api := &mockAPI{customers: []domain.Customer{{ID: "1", FullName: "Ahmet Yılmaz"}}}
	invoices := &mockInvoices{invoice: invoiceWithRemaining("9", "120.00")}
	w, refresher := newWorkflow(api, invoices)

	out, err := w.Convert(context.Background(), Request{
		InvoiceID:   "9",
		CustomerID:  "1",
		Amount:      types.MustMoney("120.00"),
		Description: "aylık hesap",
	})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, types.ID("1"), out.CustomerID)
	assert.False(t, out.CustomerCreated)
	require.NotNil(t, out.Debt)
	assert.Equal(t, types.ID("91"), out.Debt.ID)
	require.NotNil(t, out.Payment)
	assert.Equal(t, domain.PaymentOnAccount, out.Payment.Method)
	assert.NotNil(t, out.Invoice)
	assert.Len(t, out.Customers, 1)

	assert.Equal(t, []string{"create_debt", "process_payment", "list_customers"}, api.calls)
	assert.Equal(t, 1, refresher.triggers)
	assert.Contains(t, invoices.invalidated, types.ID("9"))
}

func TestConvertCreatesCustomerInline(t *testing.T) {
	api := &mockAPI{}
	invoices := &mockInvoices{invoice: invoiceWithRemaining("9", "120.00")}
	w, _ := newWorkflow(api, invoices)

	out, err := w.Convert(context.Background(), Request{
		InvoiceID:   "9",
		NewCustomer: &NewCustomer{FullName: "  Mehmet Kaya  ", Phone: "0555 111 22 33"},
		Amount:      types.MustMoney("50.00"),
	})
	require.NoError(t, err)
	assert.True(t, out.CustomerCreated)
	assert.Equal(t, types.ID("77"), out.CustomerID)
	assert.Equal(t, "create_customer", api.calls[0])
}

func TestConvertMissingCustomerInfo(t *testing.T) {
	api := &mockAPI{}
	invoices := &mockInvoices{invoice: invoiceWithRemaining("9", "120.00")}
	w, _ := newWorkflow(api, invoices)

	for name, req := range map[string]Request{
		"no customer at all": {InvoiceID: "9", Amount: types.MustMoney("10")},
		"name only":          {InvoiceID: "9", Amount: types.MustMoney("10"), NewCustomer: &NewCustomer{FullName: "Ali"}},
		"phone only":         {InvoiceID: "9", Amount: types.MustMoney("10"), NewCustomer: &NewCustomer{Phone: "0555"}},
		"blank name":         {InvoiceID: "9", Amount: types.MustMoney("10"), NewCustomer: &NewCustomer{FullName: "   ", Phone: "0555"}},
	} {
		_, err := w.Convert(context.Background(), req)
		assert.True(t, apperror.IsCode(err, apperror.CodeMissingCustomerInfo), "%s: err = %v", name, err)
	}
	assert.Empty(t, api.calls, "rejections must not reach the network")
}

func TestConvertAmountBounds(t *testing.T) {
	api := &mockAPI{}
	invoices := &mockInvoices{invoice: invoiceWithRemaining("9", "50.00")}
	w, _ := newWorkflow(api, invoices)

	// Exactly the remaining balance is allowed.
	_, err := w.Convert(context.Background(), Request{
		InvoiceID: "9", CustomerID: "1", Amount: types.MustMoney("50.00"),
	})
	require.NoError(t, err)

	// One kuruş over is rejected locally.
	_, err = w.Convert(context.Background(), Request{
		InvoiceID: "9", CustomerID: "1", Amount: types.MustMoney("50.01"),
	})
	require.True(t, apperror.IsValidation(err), "err = %v", err)

	// Zero and negative are rejected.
	for _, amount := range []string{"0", "-5"} {
		_, err = w.Convert(context.Background(), Request{
			InvoiceID: "9", CustomerID: "1", Amount: types.MustMoney(amount),
		})
		assert.True(t, apperror.IsValidation(err), "amount %s: err = %v", amount, err)
	}
}

func TestConvertClosedInvoiceRejected(t *testing.T) {
	inv := invoiceWithRemaining("9", "50.00")
	inv.Status = domain.InvoiceClosed
	w, _ := newWorkflow(&mockAPI{}, &mockInvoices{invoice: inv})

	_, err := w.Convert(context.Background(), Request{
		InvoiceID: "9", CustomerID: "1", Amount: types.MustMoney("10.00"),
	})
	assert.True(t, apperror.IsValidation(err), "err = %v", err)
}

func TestConvertLoadsUncachedInvoice(t *testing.T) {
	invoices := &mockInvoices{invoice: invoiceWithRemaining("9", "120.00")}
	// Simulate a cache miss by wrapping Get to always miss.
	api := &mockAPI{}
	w, _ := newWorkflow(api, &uncached{invoices})

	_, err := w.Convert(context.Background(), Request{
		InvoiceID: "9", CustomerID: "1", Amount: types.MustMoney("10.00"),
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, invoices.loads, 1)
}

// uncached forces every Get to miss so Convert must Load.
type uncached struct{ *mockInvoices }

func (u *uncached) Get(invoiceID types.ID) (*domain.Invoice, bool) { return nil, false }

func TestConvertDebtCreationFailureIsClean(t *testing.T) {
	api := &mockAPI{createDebtErr: apperror.NewMutation("rejected", errors.New("status 422"))}
	invoices := &mockInvoices{invoice: invoiceWithRemaining("9", "120.00")}
	w, refresher := newWorkflow(api, invoices)

	out, err := w.Convert(context.Background(), Request{
		InvoiceID: "9", CustomerID: "1", Amount: types.MustMoney("50.00"),
	})
	require.Error(t, err)
	assert.False(t, apperror.IsPartialFailure(err), "nothing committed, failure must be clean")
	require.NotNil(t, out)
	assert.Nil(t, out.Debt)
	assert.Nil(t, out.Payment)
	assert.Equal(t, 0, refresher.triggers)
}

func TestConvertPaymentFailureIsPartial(t *testing.T) {
	api := &mockAPI{paymentErr: apperror.NewTimeout("POST /payments/process", errors.New("deadline"))}
	invoices := &mockInvoices{invoice: invoiceWithRemaining("9", "120.00")}
	w, refresher := newWorkflow(api, invoices)

	out, err := w.Convert(context.Background(), Request{
		InvoiceID: "9", CustomerID: "1", Amount: types.MustMoney("50.00"),
	})
	require.Error(t, err)
	require.True(t, apperror.IsPartialFailure(err), "err = %v", err)

	// The partial outcome names what committed, for reconciliation.
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "91", appErr.Details["debt_record_id"])
	require.NotNil(t, out)
	require.NotNil(t, out.Debt)
	assert.Nil(t, out.Payment)
	assert.Nil(t, out.Invoice)

	// The cached snapshot is stale now; it must be dropped and a
	// refresh forced rather than trusted.
	assert.Contains(t, invoices.invalidated, types.ID("9"))
	assert.Equal(t, 1, refresher.triggers)
}

func TestConvertRequiresInvoice(t *testing.T) {
	w, _ := newWorkflow(&mockAPI{}, &mockInvoices{})
	_, err := w.Convert(context.Background(), Request{CustomerID: "1", Amount: types.MustMoney("10")})
	assert.True(t, apperror.IsValidation(err), "err = %v", err)
}
