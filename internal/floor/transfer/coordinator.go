// Package transfer moves an open invoice between tables as one perceived-
// atomic operation.
//
// The coordinator runs a two-tier check: a cheap local veto against the
// cached registry (fast feedback, most rejections are avoidable) followed
// by the authoritative backend call. The local check is explicitly not the
// authority — the target can become occupied between the local check and
// the server's own check, and only the server decides.
package transfer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mycafe/internal/core/apperror"
	"mycafe/internal/core/types"
	"mycafe/internal/domain"
	"mycafe/pkg/logger"
)

// State is the phase a transfer attempt ended in.
type State string

const (
	StateIdle       State = "IDLE"
	StateValidating State = "VALIDATING"
	StateRejected   State = "REJECTED"
	StateRequested  State = "REQUESTED"
	StateConfirmed  State = "CONFIRMED"
	StateFailed     State = "FAILED"
)

// Reason explains a local rejection.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonSourceEmpty    Reason = "SOURCE_EMPTY"
	ReasonTargetOccupied Reason = "TARGET_OCCUPIED"
	ReasonSameTable      Reason = "SAME_TABLE"
	ReasonUnknownTable   Reason = "UNKNOWN_TABLE"
)

// API is the slice of the backend client the coordinator needs.
type API interface {
	TransferInvoice(ctx context.Context, sourceTableID, targetTableID types.ID) (types.ID, error)
}

// Tables is the registry view the coordinator validates against and
// optimistically updates on confirmation.
type Tables interface {
	Get(tableID types.ID) (domain.Table, bool)
	Generation() uint64
	MarkOccupied(tableID, invoiceID types.ID, asOf uint64) bool
	MarkEmpty(tableID types.ID, asOf uint64) bool
}

// Refresher forces an out-of-band poll.
type Refresher interface {
	TriggerNow()
}

// Result is the terminal state of one transfer attempt.
type Result struct {
	State     State
	Reason    Reason
	InvoiceID types.ID
	Err       error
}

// Coordinator executes table transfers.
type Coordinator struct {
	api       API
	tables    Tables
	refresher Refresher
	log       *logger.Logger
	tracer    trace.Tracer
}

// New creates a transfer coordinator.
func New(api API, tables Tables, refresher Refresher, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Default()
	}
	return &Coordinator{
		api:       api,
		tables:    tables,
		refresher: refresher,
		log:       log.WithComponent("transfer-coordinator"),
		tracer:    otel.Tracer("mycafe/floor/transfer"),
	}
}

// Transfer moves the open invoice on source to target.
//
// State machine per attempt:
//
//	IDLE -> VALIDATING -> (REJECTED | REQUESTED) -> (CONFIRMED | FAILED)
//
// REJECTED issues zero network calls. FAILED applies no optimistic marks,
// surfaces the server error verbatim, and triggers a refresh so the view
// reflects the true state immediately instead of waiting for the next poll.
func (c *Coordinator) Transfer(ctx context.Context, sourceTableID, targetTableID types.ID) Result {
	ctx, span := c.tracer.Start(ctx, "transfer.attempt",
		trace.WithAttributes(
			attribute.String("source_table_id", sourceTableID.String()),
			attribute.String("target_table_id", targetTableID.String()),
		))
	defer span.End()

	res := c.transfer(ctx, sourceTableID, targetTableID)
	span.SetAttributes(
		attribute.String("outcome", string(res.State)),
		attribute.String("reason", string(res.Reason)),
	)
	return res
}

func (c *Coordinator) transfer(ctx context.Context, sourceTableID, targetTableID types.ID) Result {
	if reason := c.validate(sourceTableID, targetTableID); reason != ReasonNone {
		c.log.Infow("transfer rejected locally",
			"source_table_id", sourceTableID,
			"target_table_id", targetTableID,
			"reason", reason,
		)
		return Result{
			State:  StateRejected,
			Reason: reason,
			Err:    rejectionError(reason),
		}
	}

	source, _ := c.tables.Get(sourceTableID)
	invoiceID := source.OpenInvoiceID

	// Capture the snapshot generation before the call: if a poll lands
	// while the request is in flight, the optimistic marks below are
	// skipped rather than overwriting the fresher state.
	asOf := c.tables.Generation()

	movedID, err := c.api.TransferInvoice(ctx, sourceTableID, targetTableID)
	if err != nil {
		// The race the local check cannot prevent: the target became
		// occupied between our check and the server's.
		c.log.Warnw("transfer rejected by server",
			"source_table_id", sourceTableID,
			"target_table_id", targetTableID,
			"error", err,
		)
		c.refresher.TriggerNow()
		return Result{State: StateFailed, Err: err}
	}
	if movedID.IsZero() {
		movedID = invoiceID
	}

	c.tables.MarkEmpty(sourceTableID, asOf)
	c.tables.MarkOccupied(targetTableID, movedID, asOf)
	c.refresher.TriggerNow()

	c.log.Infow("transfer confirmed",
		"source_table_id", sourceTableID,
		"target_table_id", targetTableID,
		"invoice_id", movedID,
	)
	return Result{State: StateConfirmed, InvoiceID: movedID}
}

// validate runs the local pre-check against the cached registry.
func (c *Coordinator) validate(sourceTableID, targetTableID types.ID) Reason {
	if sourceTableID == targetTableID {
		return ReasonSameTable
	}
	source, ok := c.tables.Get(sourceTableID)
	if !ok {
		return ReasonUnknownTable
	}
	target, ok := c.tables.Get(targetTableID)
	if !ok {
		return ReasonUnknownTable
	}
	if !source.Occupied || source.OpenInvoiceID.IsZero() {
		return ReasonSourceEmpty
	}
	if target.Occupied {
		return ReasonTargetOccupied
	}
	return ReasonNone
}

func rejectionError(reason Reason) error {
	switch reason {
	case ReasonSourceEmpty:
		return apperror.NewValidation("source table has no open invoice to move").
			WithDetail("reason", string(reason))
	case ReasonTargetOccupied:
		return apperror.NewValidation("target table already has an open invoice").
			WithDetail("reason", string(reason))
	case ReasonSameTable:
		return apperror.NewValidation("source and target table are the same").
			WithDetail("reason", string(reason))
	default:
		return apperror.NewValidation("unknown table").
			WithDetail("reason", string(reason))
	}
}
