package stub

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"mycafe/internal/core/apperror"
	"mycafe/internal/core/types"
)

// handlers serves the REST API over the in-memory state.
type handlers struct {
	state *state
	auth  *authService
}

func (h *handlers) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func (h *handlers) bind(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.fail(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

func parseID(id types.ID) (int64, bool) {
	n, err := strconv.ParseInt(id.String(), 10, 64)
	return n, err == nil
}

func pathID(c *gin.Context, name string) (int64, bool) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	return n, err == nil
}

// --- DTO rendering (callers hold state.mu) ---

func (h *handlers) tableDTO(t *table) gin.H {
	dto := gin.H{
		"id":           t.ID,
		"table_number": t.Number,
		"capacity":     t.Capacity,
		"is_billiard":  t.Billiard,
		"is_occupied":  false,
	}
	if inv := h.state.openInvoiceFor(t.ID); inv != nil {
		dto["is_occupied"] = true
		dto["current_invoice_id"] = inv.ID
	}
	return dto
}

func lineDTO(l *line) gin.H {
	return gin.H{
		"id":                    l.ID,
		"product_id":            l.ProductID,
		"product_name_snapshot": l.Name,
		"quantity":              l.Quantity,
		"unit_price_snapshot":   l.UnitPrice,
		"line_total":            l.total(),
	}
}

func (h *handlers) invoiceDTO(inv *invoice) gin.H {
	total := h.state.invoiceTotal(inv.ID)
	lines := h.state.invoiceLines(inv.ID)
	lineDTOs := make([]gin.H, len(lines))
	for i, l := range lines {
		lineDTOs[i] = lineDTO(l)
	}
	return gin.H{
		"id":               inv.ID,
		"table_id":         inv.TableID,
		"status":           inv.Status,
		"lines":            lineDTOs,
		"total_amount":     total,
		"discount_amount":  inv.Discount,
		"paid_amount":      inv.Paid,
		"remaining_amount": h.state.invoiceRemaining(inv),
		"opened_at":        inv.OpenedAt.UTC().Format(time.RFC3339),
	}
}

func customerDTO(cust *customer) gin.H {
	return gin.H{
		"id":        cust.ID,
		"full_name": cust.FullName,
		"phone":     cust.Phone,
		"notes":     cust.Notes,
	}
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	token, err := h.auth.login(req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// --- Tables ---

func (h *handlers) listTables(c *gin.Context) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	out := make([]gin.H, 0, len(h.state.tableSeq))
	for _, id := range h.state.tableSeq {
		out = append(out, h.tableDTO(h.state.tables[id]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getTable(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.fail(c, apperror.NewValidation("invalid table id"))
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	t, ok := h.state.tables[id]
	if !ok {
		h.fail(c, apperror.NewNotFound("table", id))
		return
	}
	c.JSON(http.StatusOK, h.tableDTO(t))
}

type createTableRequest struct {
	TableName string `json:"table_name"`
	Capacity  int    `json:"capacity"`
}

func (h *handlers) createTable(c *gin.Context) {
	var req createTableRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Capacity <= 0 {
		req.Capacity = 4
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	t := &table{ID: h.state.id(), Number: itoa(len(h.state.tableSeq) + 1), Capacity: req.Capacity}
	h.state.tables[t.ID] = t
	h.state.tableSeq = append(h.state.tableSeq, t.ID)
	c.JSON(http.StatusCreated, h.tableDTO(t))
}

func (h *handlers) deleteTable(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.fail(c, apperror.NewValidation("invalid table id"))
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if _, ok := h.state.tables[id]; !ok {
		h.fail(c, apperror.NewNotFound("table", id))
		return
	}
	if h.state.openInvoiceFor(id) != nil {
		h.fail(c, apperror.NewBusinessRule("cannot delete a table with an open invoice"))
		return
	}
	delete(h.state.tables, id)
	for i, tid := range h.state.tableSeq {
		if tid == id {
			h.state.tableSeq = append(h.state.tableSeq[:i], h.state.tableSeq[i+1:]...)
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// --- Products ---

func (h *handlers) listProducts(c *gin.Context) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	out := make([]gin.H, 0, len(h.state.prodSeq))
	for _, id := range h.state.prodSeq {
		p := h.state.products[id]
		out = append(out, gin.H{"id": p.ID, "name": p.Name, "price": p.Price})
	}
	c.JSON(http.StatusOK, out)
}

// --- Invoices ---

type openInvoiceRequest struct {
	TableID types.ID `json:"table_id"`
}

func (h *handlers) openInvoice(c *gin.Context) {
	var req openInvoiceRequest
	if !h.bind(c, &req) {
		return
	}
	tableID, ok := parseID(req.TableID)
	if !ok {
		h.fail(c, apperror.NewValidation("invalid table id"))
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if _, ok := h.state.tables[tableID]; !ok {
		h.fail(c, apperror.NewNotFound("table", tableID))
		return
	}
	if h.state.openInvoiceFor(tableID) != nil {
		h.fail(c, apperror.NewBusinessRule("table already has an open invoice"))
		return
	}
	inv := &invoice{
		ID:       h.state.id(),
		TableID:  tableID,
		Status:   "OPEN",
		Discount: decimal.Zero,
		Paid:     decimal.Zero,
		OpenedAt: time.Now(),
	}
	h.state.invoices[inv.ID] = inv
	c.JSON(http.StatusCreated, gin.H{"invoice_id": inv.ID})
}

func (h *handlers) listOpenInvoices(c *gin.Context) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	out := make([]gin.H, 0)
	for _, inv := range h.state.invoices {
		if inv.Status != "OPEN" {
			continue
		}
		out = append(out, gin.H{
			"id":           inv.ID,
			"table_id":     inv.TableID,
			"total_amount": h.state.invoiceTotal(inv.ID),
			"opened_at":    inv.OpenedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) getInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.fail(c, apperror.NewValidation("invalid invoice id"))
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	inv, ok := h.state.invoices[id]
	if !ok {
		h.fail(c, apperror.NewNotFound("invoice", id))
		return
	}
	c.JSON(http.StatusOK, h.invoiceDTO(inv))
}

func (h *handlers) closeInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.fail(c, apperror.NewValidation("invalid invoice id"))
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	inv, ok := h.state.invoices[id]
	if !ok {
		h.fail(c, apperror.NewNotFound("invoice", id))
		return
	}
	if inv.Status != "OPEN" {
		h.fail(c, apperror.NewBusinessRule("invoice is already closed"))
		return
	}
	if !h.state.invoiceRemaining(inv).IsZero() {
		h.fail(c, apperror.NewBusinessRule("invoice has an outstanding balance"))
		return
	}
	inv.Status = "CLOSED"
	c.JSON(http.StatusOK, h.invoiceDTO(inv))
}

// mutableInvoice fetches an invoice that still accepts mutations.
func (h *handlers) mutableInvoice(c *gin.Context, id int64) (*invoice, bool) {
	inv, ok := h.state.invoices[id]
	if !ok {
		h.fail(c, apperror.NewNotFound("invoice", id))
		return nil, false
	}
	if inv.Status != "OPEN" {
		h.fail(c, apperror.NewBusinessRule("invoice is closed"))
		return nil, false
	}
	return inv, true
}

type addLineRequest struct {
	ProductID types.ID `json:"product_id"`
	Quantity  int      `json:"quantity"`
}

func (h *handlers) addLine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.fail(c, apperror.NewValidation("invalid invoice id"))
		return
	}
	var req addLineRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Quantity < 1 {
		h.fail(c, apperror.NewValidation("quantity must be at least 1"))
		return
	}
	productID, ok := parseID(req.ProductID)
	if !ok {
		h.fail(c, apperror.NewValidation("invalid product id"))
		return
	}

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	inv, ok := h.mutableInvoice(c, id)
	if !ok {
		return
	}
	prod, ok := h.state.products[productID]
	if !ok {
		h.fail(c, apperror.NewNotFound("product", productID))
		return
	}
	l := &line{
		ID:        h.state.id(),
		InvoiceID: inv.ID,
		ProductID: prod.ID,
		Name:      prod.Name,
		Quantity:  req.Quantity,
		UnitPrice: prod.Price, // price snapshot, immutable once billed
	}
	h.state.lines[l.ID] = l
	c.JSON(http.StatusCreated, lineDTO(l))
}

type updateLineRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handlers) updateLine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.fail(c, apperror.NewValidation("invalid line id"))
		return
	}
	var req updateLineRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Quantity < 1 {
		h.fail(c, apperror.NewValidation("quantity must be at least 1"))
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	l, ok := h.state.lines[id]
	if !ok {
		h.fail(c, apperror.NewNotFound("line item", id))
		return
	}
	if _, ok := h.mutableInvoice(c, l.InvoiceID); !ok {
		return
	}
	l.Quantity = req.Quantity
	c.JSON(http.StatusOK, lineDTO(l))
}

func (h *handlers) removeLine(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.fail(c, apperror.NewValidation("invalid line id"))
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	l, ok := h.state.lines[id]
	if !ok {
		h.fail(c, apperror.NewNotFound("line item", id))
		return
	}
	if _, ok := h.mutableInvoice(c, l.InvoiceID); !ok {
		return
	}
	delete(h.state.lines, id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type discountRequest struct {
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

func (h *handlers) applyDiscount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		h.fail(c, apperror.NewValidation("invalid invoice id"))
		return
	}
	var req discountRequest
	if !h.bind(c, &req) {
		return
	}
	if req.DiscountAmount.IsNegative() {
		h.fail(c, apperror.NewValidation("discount cannot be negative"))
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	inv, ok := h.mutableInvoice(c, id)
	if !ok {
		return
	}
	if req.DiscountAmount.GreaterThan(h.state.invoiceTotal(inv.ID)) {
		h.fail(c, apperror.NewBusinessRule("discount exceeds the invoice total"))
		return
	}
	inv.Discount = req.DiscountAmount
	c.JSON(http.StatusOK, h.invoiceDTO(inv))
}

// --- Transfer ---

type transferRequest struct {
	SourceTableID types.ID `json:"source_table_id"`
	TargetTableID types.ID `json:"target_table_id"`
}

// transfer moves the open invoice between tables. The whole check-and-move
// runs under the state lock, which is the atomicity the endpoint promises.
func (h *handlers) transfer(c *gin.Context) {
	var req transferRequest
	if !h.bind(c, &req) {
		return
	}
	sourceID, ok := parseID(req.SourceTableID)
	if !ok {
		h.fail(c, apperror.NewValidation("invalid source table id"))
		return
	}
	targetID, ok := parseID(req.TargetTableID)
	if !ok {
		h.fail(c, apperror.NewValidation("invalid target table id"))
		return
	}
	if sourceID == targetID {
		h.fail(c, apperror.NewValidation("source and target table are the same"))
		return
	}

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if _, ok := h.state.tables[targetID]; !ok {
		h.fail(c, apperror.NewNotFound("table", targetID))
		return
	}
	inv := h.state.openInvoiceFor(sourceID)
	if inv == nil {
		h.fail(c, apperror.NewBusinessRule("source table has no open invoice"))
		return
	}
	if h.state.openInvoiceFor(targetID) != nil {
		h.fail(c, apperror.NewBusinessRule("target table already has an open invoice"))
		return
	}
	inv.TableID = targetID
	c.JSON(http.StatusOK, gin.H{"success": true, "invoice_id": inv.ID})
}

// --- Payments ---

type paymentRequest struct {
	InvoiceID     types.ID        `json:"invoice_id"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerID    types.ID        `json:"customer_id"`
	Description   string          `json:"description"`
}

func (h *handlers) processPayment(c *gin.Context) {
	var req paymentRequest
	if !h.bind(c, &req) {
		return
	}
	invoiceID, ok := parseID(req.InvoiceID)
	if !ok {
		h.fail(c, apperror.NewValidation("invalid invoice id"))
		return
	}
	if !req.Amount.IsPositive() {
		h.fail(c, apperror.NewValidation("payment amount must be positive"))
		return
	}
	switch req.PaymentMethod {
	case "CASH", "CARD", "ON_ACCOUNT":
	default:
		h.fail(c, apperror.NewValidation("unknown payment method"))
		return
	}

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	inv, ok := h.mutableInvoice(c, invoiceID)
	if !ok {
		return
	}
	if req.PaymentMethod == "ON_ACCOUNT" {
		customerID, ok := parseID(req.CustomerID)
		if !ok {
			h.fail(c, apperror.NewBusinessRule("on-account payment requires a customer"))
			return
		}
		if _, ok := h.state.customers[customerID]; !ok {
			h.fail(c, apperror.NewNotFound("customer", customerID))
			return
		}
	}
	p, err := h.state.recordPayment(inv, req.PaymentMethod, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}

	// A settled cash/card balance closes the invoice and frees the
	// table; an on-account conversion leaves the invoice open.
	closed := false
	if req.PaymentMethod != "ON_ACCOUNT" && h.state.invoiceRemaining(inv).IsZero() {
		inv.Status = "CLOSED"
		closed = true
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction_id": p.ID,
		"invoice_id":     inv.ID,
		"payment_method": p.Method,
		"amount":         p.Amount,
		"invoice_closed": closed,
		"table_freed":    closed,
	})
}

// --- Customers and debts ---

type createCustomerRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
	Notes    string `json:"notes"`
}

func (h *handlers) createCustomer(c *gin.Context) {
	var req createCustomerRequest
	if !h.bind(c, &req) {
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	cust := &customer{ID: h.state.id(), FullName: req.FullName, Phone: req.Phone, Notes: req.Notes}
	h.state.customers[cust.ID] = cust
	h.state.custSeq = append(h.state.custSeq, cust.ID)
	c.JSON(http.StatusCreated, customerDTO(cust))
}

func (h *handlers) listCustomers(c *gin.Context) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	out := make([]gin.H, 0, len(h.state.custSeq))
	for _, id := range h.state.custSeq {
		out = append(out, customerDTO(h.state.customers[id]))
	}
	c.JSON(http.StatusOK, out)
}

type createDebtRequest struct {
	CustomerID  types.ID        `json:"customer_id"`
	InvoiceID   types.ID        `json:"invoice_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *handlers) createDebt(c *gin.Context) {
	var req createDebtRequest
	if !h.bind(c, &req) {
		return
	}
	customerID, ok := parseID(req.CustomerID)
	if !ok {
		h.fail(c, apperror.NewValidation("invalid customer id"))
		return
	}
	invoiceID, ok := parseID(req.InvoiceID)
	if !ok {
		h.fail(c, apperror.NewValidation("invalid invoice id"))
		return
	}
	if !req.Amount.IsPositive() {
		h.fail(c, apperror.NewValidation("debt amount must be positive"))
		return
	}

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if _, ok := h.state.customers[customerID]; !ok {
		h.fail(c, apperror.NewNotFound("customer", customerID))
		return
	}
	inv, ok := h.mutableInvoice(c, invoiceID)
	if !ok {
		return
	}
	if req.Amount.GreaterThan(h.state.invoiceRemaining(inv)) {
		h.fail(c, apperror.NewBusinessRule("debt amount exceeds the remaining balance").
			WithDetail("remaining", h.state.invoiceRemaining(inv).String()))
		return
	}
	d := &debtRecord{
		ID:          h.state.id(),
		CustomerID:  customerID,
		InvoiceID:   invoiceID,
		Amount:      req.Amount,
		Description: req.Description,
	}
	h.state.debts[d.ID] = d
	c.JSON(http.StatusCreated, gin.H{
		"id":          d.ID,
		"customer_id": d.CustomerID,
		"invoice_id":  d.InvoiceID,
		"amount":      d.Amount,
		"description": d.Description,
	})
}

// --- Health ---

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
