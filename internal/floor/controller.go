// Package floor is the composition root of the synchronization core: one
// backend session driving a table registry, an invoice snapshot store, a
// polling loop, the transfer coordinator, and the debt conversion workflow.
package floor

import (
	"context"
	"sync"
	"time"

	"mycafe/internal/client"
	"mycafe/internal/core/types"
	"mycafe/internal/domain"
	"mycafe/internal/floor/debt"
	"mycafe/internal/floor/invoicestore"
	"mycafe/internal/floor/poll"
	"mycafe/internal/floor/registry"
	"mycafe/internal/floor/transfer"
	"mycafe/pkg/logger"
)

// DefaultPollInterval matches the refresh cadence of the table view.
const DefaultPollInterval = 10 * time.Second

// Config holds controller configuration.
type Config struct {
	Client       *client.Client
	Logger       *logger.Logger
	PollInterval time.Duration
}

// Controller owns the lifecycle of the floor core for one view.
// Build it, Start it, and Stop it on teardown; polling timers are
// cancelled deterministically and late results are discarded.
type Controller struct {
	log       *logger.Logger
	api       *client.Client
	tables    *registry.Registry
	invoices  *invoicestore.Store
	scheduler *poll.Scheduler
	transfers *transfer.Coordinator
	debts     *debt.Workflow

	mu            sync.Mutex
	lastOccupancy map[types.ID]types.ID // table id -> open invoice id
}

// NewController wires the core components around one backend client.
func NewController(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	c := &Controller{
		log:           log.WithComponent("floor-controller"),
		api:           cfg.Client,
		lastOccupancy: make(map[types.ID]types.ID),
	}
	c.tables = registry.New(cfg.Client, log)
	c.invoices = invoicestore.New(cfg.Client, log)
	c.scheduler = poll.New(interval, c.refresh, log)
	c.transfers = transfer.New(cfg.Client, c.tables, c.scheduler, log)
	c.debts = debt.New(cfg.Client, c.invoices, c.scheduler, log)
	return c
}

// Start begins polling. The first refresh runs immediately.
func (c *Controller) Start(ctx context.Context) {
	c.scheduler.Start(ctx)
}

// Stop tears the polling loop down and waits for an in-flight refresh.
func (c *Controller) Stop() {
	c.scheduler.Stop()
}

// SetVisible gates polling on view visibility; becoming visible again
// refreshes immediately.
func (c *Controller) SetVisible(visible bool) {
	c.scheduler.SetVisible(visible)
}

// Refresh forces an out-of-band poll after a local mutation.
func (c *Controller) Refresh() {
	c.scheduler.TriggerNow()
}

// Tables returns the current registry snapshot.
func (c *Controller) Tables() []domain.Table {
	return c.tables.Snapshot()
}

// Registry exposes the table registry.
func (c *Controller) Registry() *registry.Registry { return c.tables }

// Invoices exposes the invoice snapshot store.
func (c *Controller) Invoices() *invoicestore.Store { return c.invoices }

// Transfer moves the open invoice from source to target.
func (c *Controller) Transfer(ctx context.Context, sourceTableID, targetTableID types.ID) transfer.Result {
	return c.transfers.Transfer(ctx, sourceTableID, targetTableID)
}

// ConvertDebt converts remaining balance into a customer debt.
func (c *Controller) ConvertDebt(ctx context.Context, req debt.Request) (*debt.Outcome, error) {
	return c.debts.Convert(ctx, req)
}

// OpenTable opens an empty invoice on a table, marks it occupied, and
// loads the fresh snapshot.
func (c *Controller) OpenTable(ctx context.Context, tableID types.ID) (*domain.Invoice, error) {
	asOf := c.tables.Generation()
	invoiceID, err := c.api.OpenInvoice(ctx, tableID)
	if err != nil {
		return nil, err
	}
	c.tables.MarkOccupied(tableID, invoiceID, asOf)
	c.scheduler.TriggerNow()
	return c.invoices.Load(ctx, invoiceID)
}

// CloseInvoice closes a fully paid invoice and frees its table.
func (c *Controller) CloseInvoice(ctx context.Context, invoiceID types.ID) (*domain.Invoice, error) {
	asOf := c.tables.Generation()
	inv, err := c.api.CloseInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.TableID.IsZero() {
		c.tables.MarkEmpty(inv.TableID, asOf)
	}
	c.invoices.Invalidate(invoiceID)
	c.scheduler.TriggerNow()
	return inv, nil
}

// refresh is the poll tick: rebuild the registry snapshot, re-fetch the
// cached invoice snapshots, and log occupancy transitions.
func (c *Controller) refresh(ctx context.Context) {
	snapshot, err := c.tables.Refresh(ctx)
	if err != nil {
		// Stale-but-available: the previous snapshot stays in place
		// and the next tick retries.
		c.log.Warnw("registry refresh failed, serving stale snapshot", "error", err)
		return
	}
	c.logTransitions(snapshot)

	for _, id := range c.invoices.CachedIDs() {
		inv, err := c.invoices.Load(ctx, id)
		if err != nil {
			c.log.Warnw("invoice refresh failed", "invoice_id", id, "error", err)
			continue
		}
		if !inv.IsOpen() {
			// Closed elsewhere; stop tracking it.
			c.invoices.Invalidate(id)
		}
	}
}

func (c *Controller) logTransitions(snapshot []domain.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := make(map[types.ID]types.ID, len(snapshot))
	for _, t := range snapshot {
		current[t.ID] = t.OpenInvoiceID
		prev, known := c.lastOccupancy[t.ID]
		if !known || prev == t.OpenInvoiceID {
			continue
		}
		switch {
		case prev.IsZero():
			c.log.Infow("table occupied", "table_id", t.ID, "table_number", t.Number, "invoice_id", t.OpenInvoiceID)
		case t.OpenInvoiceID.IsZero():
			c.log.Infow("table freed", "table_id", t.ID, "table_number", t.Number, "invoice_id", prev)
		default:
			c.log.Infow("table invoice changed", "table_id", t.ID, "table_number", t.Number, "from", prev, "to", t.OpenInvoiceID)
		}
	}
	c.lastOccupancy = current
}
