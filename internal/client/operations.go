package client

import (
	"context"
	"fmt"
	"net/http"

	"mycafe/internal/core/types"
	"mycafe/internal/domain"
)

// --- Registry reads ---

// ListTables fetches the current table list.
func (c *Client) ListTables(ctx context.Context) ([]domain.Table, error) {
	var tables []domain.Table
	if err := c.do(ctx, http.MethodGet, "/tables", nil, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// GetTable fetches one table.
func (c *Client) GetTable(ctx context.Context, tableID types.ID) (*domain.Table, error) {
	var table domain.Table
	if err := c.do(ctx, http.MethodGet, "/tables/"+tableID.String(), nil, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

// ListOpenInvoices fetches summaries of every open invoice.
func (c *Client) ListOpenInvoices(ctx context.Context) ([]domain.InvoiceSummary, error) {
	var invoices []domain.InvoiceSummary
	if err := c.do(ctx, http.MethodGet, "/invoices/open", nil, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListProducts fetches the sellable catalog for the item editor.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// --- Invoice reads and mutations ---

// GetInvoice fetches the invoice header plus line items.
func (c *Client) GetInvoice(ctx context.Context, invoiceID types.ID) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := c.do(ctx, http.MethodGet, "/invoices/"+invoiceID.String(), nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

type openInvoiceRequest struct {
	TableID types.ID `json:"table_id"`
}

type openInvoiceResponse struct {
	InvoiceID types.ID `json:"invoice_id"`
}

// OpenInvoice creates an empty invoice on a table and returns its id.
func (c *Client) OpenInvoice(ctx context.Context, tableID types.ID) (types.ID, error) {
	var resp openInvoiceResponse
	if err := c.do(ctx, http.MethodPost, "/invoices", openInvoiceRequest{TableID: tableID}, &resp); err != nil {
		return "", err
	}
	return resp.InvoiceID, nil
}

// CloseInvoice closes a fully paid invoice. The transition is terminal.
func (c *Client) CloseInvoice(ctx context.Context, invoiceID types.ID) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := c.do(ctx, http.MethodPost, "/invoices/"+invoiceID.String()+"/close", nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

type addLineItemRequest struct {
	ProductID types.ID `json:"product_id"`
	Quantity  int      `json:"quantity"`
}

// AddLineItem appends a line to an open invoice.
func (c *Client) AddLineItem(ctx context.Context, invoiceID, productID types.ID, quantity int) (*domain.LineItem, error) {
	var line domain.LineItem
	path := "/invoices/" + invoiceID.String() + "/items"
	if err := c.do(ctx, http.MethodPost, path, addLineItemRequest{ProductID: productID, Quantity: quantity}, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

type updateLineItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateLineItem changes a line's quantity.
func (c *Client) UpdateLineItem(ctx context.Context, lineID types.ID, quantity int) (*domain.LineItem, error) {
	var line domain.LineItem
	if err := c.do(ctx, http.MethodPatch, "/invoices/items/"+lineID.String(), updateLineItemRequest{Quantity: quantity}, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

// RemoveLineItem deletes a line from an open invoice.
func (c *Client) RemoveLineItem(ctx context.Context, lineID types.ID) error {
	return c.do(ctx, http.MethodDelete, "/invoices/items/"+lineID.String(), nil, nil)
}

type discountRequest struct {
	DiscountAmount types.Money `json:"discount_amount"`
}

// ApplyDiscount sets the invoice discount. Zero resets it.
func (c *Client) ApplyDiscount(ctx context.Context, invoiceID types.ID, amount types.Money) error {
	return c.do(ctx, http.MethodPost, "/invoices/"+invoiceID.String()+"/discount", discountRequest{DiscountAmount: amount}, nil)
}

// --- Payments ---

type paymentRequest struct {
	InvoiceID     types.ID             `json:"invoice_id"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Amount        types.Money          `json:"amount"`
	CustomerID    types.ID             `json:"customer_id,omitempty"`
	Description   string               `json:"description,omitempty"`
}

// ProcessPayment records a payment against an open invoice.
func (c *Client) ProcessPayment(ctx context.Context, invoiceID types.ID, method domain.PaymentMethod, amount types.Money, customerID types.ID, description string) (*domain.Payment, error) {
	var payment domain.Payment
	req := paymentRequest{
		InvoiceID:     invoiceID,
		PaymentMethod: method,
		Amount:        amount,
		CustomerID:    customerID,
		Description:   description,
	}
	if err := c.do(ctx, http.MethodPost, "/payments/process", req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// --- Transfer ---

type transferRequest struct {
	SourceTableID types.ID `json:"source_table_id"`
	TargetTableID types.ID `json:"target_table_id"`
}

type transferResponse struct {
	InvoiceID types.ID `json:"invoice_id"`
}

// TransferInvoice moves the open invoice on source to target.
// The backend performs the move atomically and is the final authority.
func (c *Client) TransferInvoice(ctx context.Context, sourceTableID, targetTableID types.ID) (types.ID, error) {
	var resp transferResponse
	req := transferRequest{SourceTableID: sourceTableID, TargetTableID: targetTableID}
	if err := c.do(ctx, http.MethodPost, "/invoices/transfer", req, &resp); err != nil {
		return "", err
	}
	return resp.InvoiceID, nil
}

// --- Customers and debts ---

type createCustomerRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// CreateCustomer registers a new customer.
func (c *Client) CreateCustomer(ctx context.Context, fullName, phone, notes string) (*domain.Customer, error) {
	var customer domain.Customer
	req := createCustomerRequest{FullName: fullName, Phone: phone, Notes: notes}
	if err := c.do(ctx, http.MethodPost, "/customers/", req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// ListCustomers fetches all customers.
func (c *Client) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var customers []domain.Customer
	if err := c.do(ctx, http.MethodGet, "/customers/", nil, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

type createDebtRequest struct {
	CustomerID  types.ID    `json:"customer_id"`
	InvoiceID   types.ID    `json:"invoice_id"`
	Amount      types.Money `json:"amount"`
	Description string      `json:"description,omitempty"`
}

// CreateDebt records a debt against a customer for part of an invoice.
func (c *Client) CreateDebt(ctx context.Context, customerID, invoiceID types.ID, amount types.Money, description string) (*domain.DebtRecord, error) {
	var debt domain.DebtRecord
	req := createDebtRequest{CustomerID: customerID, InvoiceID: invoiceID, Amount: amount, Description: description}
	if err := c.do(ctx, http.MethodPost, "/customers/debt", req, &debt); err != nil {
		return nil, err
	}
	return &debt, nil
}

// --- Auth (development stub) ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login authenticates against the backend and returns a bearer token.
// Session management beyond carrying the token is out of the core's scope.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("login: empty access token")
	}
	return &resp, nil
}
