// Package worker drives the outbox from AMQP messages.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GMosna/ContabilApp/internal/amqp"
	"github.com/GMosna/ContabilApp/internal/state"
)

// Processor replays the outbox. *services.OutboxProcessor implements it.
type Processor interface {
	Trigger(ctx context.Context, id int64) error
	ProcessBatch(ctx context.Context) int
	Stats(ctx context.Context) (state.OutboxStats, error)
}

// OutboxWorker reacts to outbox announcements and recovers items whose
// message was lost.
type OutboxWorker struct {
	processor Processor
	batchSize int
}

func NewOutboxWorker(processor Processor, batchSize int) *OutboxWorker {
	return &OutboxWorker{
		processor: processor,
		batchSize: batchSize,
	}
}

// HandleOutboxMessage processes a single outbox announcement from AMQP
func (w *OutboxWorker) HandleOutboxMessage(ctx context.Context, msg *amqp.OutboxMessage) error {
	slog.InfoContext(ctx, "Processing outbox message",
		"outbox_id", msg.OutboxID,
		"operation", msg.Operation,
		"transaction_id", msg.TransactionID)

	if err := w.processor.Trigger(ctx, msg.OutboxID); err != nil {
		return fmt.Errorf("trigger outbox item %d: %w", msg.OutboxID, err)
	}
	return nil
}

// ProcessPending replays whatever is waiting. This is the backup path when
// AMQP messages are lost or the broker is down.
func (w *OutboxWorker) ProcessPending(ctx context.Context) error {
	n := w.processor.ProcessBatch(ctx)
	if n > 0 {
		slog.InfoContext(ctx, "Replayed pending outbox items", "count", n)
	}
	return nil
}

// StartupCheck drains the outbox left behind while the worker was down.
func (w *OutboxWorker) StartupCheck(ctx context.Context) error {
	stats, err := w.processor.Stats(ctx)
	if err != nil {
		return fmt.Errorf("outbox stats on startup: %w", err)
	}
	if stats.Pending == 0 {
		slog.InfoContext(ctx, "No pending outbox items found on startup",
			"failed", stats.Failed)
		return nil
	}

	slog.InfoContext(ctx, "Found pending outbox items on startup, processing...",
		"count", stats.Pending)

	// Up to five batches, like a larger first batch.
	total := 0
	for range 5 {
		n := w.processor.ProcessBatch(ctx)
		total += n
		if n == 0 {
			break
		}
	}

	slog.InfoContext(ctx, "Startup outbox check completed",
		"pending", stats.Pending,
		"replayed", total)
	return nil
}
