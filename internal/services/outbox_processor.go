package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GMosna/ContabilApp/internal/api"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/sheets"
	"github.com/GMosna/ContabilApp/internal/state"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to replay per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum attempts before an item is marked as failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to clean up done items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old done items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultOutboxProcessorConfig returns sensible defaults
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// Replayer sends queued changes to the backend. *FinanceService implements it.
type Replayer interface {
	Replay(ctx context.Context, item state.OutboxItem) (core.Transaction, error)
	Refresh(ctx context.Context) error
	CategoryName(ctx context.Context, id core.CategoryID) string
	AccountLabel(tx core.Transaction) string
}

// OutboxProcessor replays queued transaction changes in insertion order and
// exports the confirmed ones.
type OutboxProcessor struct {
	outbox   state.Outbox
	replayer Replayer
	exporter sheets.TransactionExporter
	config   OutboxProcessorConfig

	// batchMu keeps the poll loop and message triggers from replaying concurrently.
	batchMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOutboxProcessor(
	outbox state.Outbox,
	replayer Replayer,
	exporter sheets.TransactionExporter,
	config OutboxProcessorConfig,
) *OutboxProcessor {
	return &OutboxProcessor{
		outbox:   outbox,
		replayer: replayer,
		exporter: exporter,
		config:   config,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("outbox processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Items left processing by a crash go back in line
	if err := p.outbox.ResetStaleProcessing(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale processing items", "error", err)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Outbox processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Outbox processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *OutboxProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *OutboxProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupDone(ctx)
		}
	}
}

// Trigger replays the outbox because item id was announced. Earlier items
// go first, so the whole batch is processed rather than id alone.
func (p *OutboxProcessor) Trigger(ctx context.Context, id int64) error {
	item, err := p.outbox.Get(ctx, id)
	if errors.Is(err, state.ErrNotFound) {
		slog.DebugContext(ctx, "Announced outbox item no longer exists", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get outbox item %d: %w", id, err)
	}
	if item.Status == state.StatusDone {
		return nil
	}
	p.ProcessBatch(ctx)
	return nil
}

// ProcessBatch replays one batch of pending items and reports how many
// reached the backend.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	items, err := p.outbox.DequeueBatch(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue outbox batch", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing outbox batch", "count", len(items))

	done := 0
	for i := range items {
		select {
		case <-p.stopCh:
			return done
		case <-ctx.Done():
			return done
		default:
		}

		// Remapping may have changed the item since the batch was read
		item, err := p.outbox.Get(ctx, items[i].ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to reload outbox item", "id", items[i].ID, "error", err)
			continue
		}
		if item.Status != state.StatusPending {
			continue
		}

		if err := p.outbox.MarkProcessing(ctx, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark item as processing",
				"id", item.ID, "error", err)
			continue
		}

		tx, replayErr := p.replayer.Replay(ctx, item)
		if replayErr == nil {
			p.handleSuccess(ctx, item, tx)
			done++
			continue
		}
		if retryLater(replayErr) {
			p.release(ctx, item, replayErr)
			// Later items depend on this one; keep the order.
			break
		}
		p.handleFailure(ctx, item, replayErr)
	}

	if done > 0 {
		if err := p.replayer.Refresh(ctx); err != nil {
			slog.WarnContext(ctx, "Refresh after outbox replay failed", "error", err)
		}
	}
	return done
}

// retryLater reports errors that say nothing about the item itself.
func retryLater(err error) bool {
	return errors.Is(err, api.ErrUnavailable) ||
		errors.Is(err, api.ErrUnauthorized) ||
		errors.Is(err, state.ErrNoSession) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (p *OutboxProcessor) handleSuccess(ctx context.Context, item state.OutboxItem, tx core.Transaction) {
	if err := p.outbox.MarkDone(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark outbox item done",
			"id", item.ID, "error", err)
	}

	slog.InfoContext(ctx, "Replayed queued transaction change",
		"id", item.ID,
		"operation", item.Operation,
		"transaction_id", tx.ID)

	if item.Operation == state.OpCreate || item.Operation == state.OpUpdate {
		p.export(ctx, tx)
	}
}

// export appends the confirmed transaction to the spreadsheet. The replay
// already succeeded, so failures are only logged.
func (p *OutboxProcessor) export(ctx context.Context, tx core.Transaction) {
	if p.exporter == nil {
		return
	}
	row := sheets.NewRow(tx, p.replayer.CategoryName(ctx, tx.Category), p.replayer.AccountLabel(tx))
	ref, err := p.exporter.Export(ctx, row)
	if err != nil {
		slog.WarnContext(ctx, "Failed to export transaction",
			"transaction_id", tx.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "Exported transaction", "transaction_id", tx.ID, "sheets_ref", ref)
}

func (p *OutboxProcessor) release(ctx context.Context, item state.OutboxItem, cause error) {
	slog.InfoContext(ctx, "Backend not ready, outbox item released",
		"id", item.ID, "error", cause)
	if err := p.outbox.Release(ctx, item.ID, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to release outbox item",
			"id", item.ID, "error", err)
	}
}

// handleFailure records a rejected replay, giving up after MaxRetries.
func (p *OutboxProcessor) handleFailure(ctx context.Context, item state.OutboxItem, processErr error) {
	slog.WarnContext(ctx, "Outbox replay failed",
		"id", item.ID,
		"operation", item.Operation,
		"attempt", item.Attempts+1,
		"error", processErr)

	reason := processErr.Error()
	if be, ok := api.AsBusiness(processErr); ok {
		reason = be.Message
	}

	if item.Attempts+1 >= p.config.MaxRetries {
		if err := p.outbox.MarkFailed(ctx, item.ID, reason); err != nil {
			slog.ErrorContext(ctx, "Failed to mark outbox item as failed",
				"id", item.ID, "error", err)
		}
		slog.ErrorContext(ctx, "Outbox item failed permanently after max retries",
			"id", item.ID,
			"transaction_id", item.TransactionID,
			"attempts", item.Attempts+1)
		return
	}

	if err := p.outbox.IncrementAttempt(ctx, item.ID, reason); err != nil {
		slog.ErrorContext(ctx, "Failed to increment outbox attempt",
			"id", item.ID, "error", err)
	}
}

func (p *OutboxProcessor) cleanupDone(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	n, err := p.outbox.CleanupDone(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup done outbox items", "error", err)
		return
	}
	if n > 0 {
		slog.DebugContext(ctx, "Cleaned up done outbox items", "count", n)
	}
}

// Stats returns current outbox statistics
func (p *OutboxProcessor) Stats(ctx context.Context) (state.OutboxStats, error) {
	return p.outbox.Stats(ctx)
}

// RetryFailed puts every failed item back in line
func (p *OutboxProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.outbox.RetryFailed(ctx)
}
