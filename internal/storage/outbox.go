package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/state"
)

const outboxColumns = `id, operation, transaction_id, transaction_json, status, attempts, last_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutboxItem(row rowScanner) (state.OutboxItem, error) {
	var (
		it                   state.OutboxItem
		op, txID, payload    string
		status               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&it.ID, &op, &txID, &payload, &status, &it.Attempts, &it.LastError, &createdAt, &updatedAt); err != nil {
		return state.OutboxItem{}, err
	}
	it.Operation = state.Operation(op)
	it.TransactionID = core.TransactionID(txID)
	it.Status = state.Status(status)
	it.CreatedAt = time.UnixMilli(createdAt)
	it.UpdatedAt = time.UnixMilli(updatedAt)
	if it.Operation != state.OpClearAll {
		if err := json.Unmarshal([]byte(payload), &it.Transaction); err != nil {
			return state.OutboxItem{}, fmt.Errorf("decode outbox item %d: %w", it.ID, err)
		}
	}
	return it, nil
}

func (r *SQLiteRepository) queryOutbox(ctx context.Context, query string, args ...any) ([]state.OutboxItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []state.OutboxItem
	for rows.Next() {
		it, err := scanOutboxItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, item state.OutboxItem) (int64, error) {
	if !item.Operation.Valid() {
		return 0, fmt.Errorf("enqueue: unknown operation %q", item.Operation)
	}
	payload := []byte("{}")
	if item.Operation != state.OpClearAll {
		var err error
		if payload, err = json.Marshal(item.Transaction); err != nil {
			return 0, fmt.Errorf("encode outbox transaction: %w", err)
		}
	}
	now := r.stamp()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox (operation, transaction_id, transaction_json, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, '', ?, ?)`,
		string(item.Operation), item.TransactionID.String(), string(payload), now, now)
	if err != nil {
		return 0, fmt.Errorf("enqueue outbox item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("outbox item id: %w", err)
	}

	slog.InfoContext(ctx, "Mutation queued",
		"outbox_id", id,
		"operation", item.Operation,
		"transaction_id", item.TransactionID.String())
	return id, nil
}

func (r *SQLiteRepository) DequeueBatch(ctx context.Context, limit int) ([]state.OutboxItem, error) {
	if limit <= 0 {
		limit = -1
	}
	items, err := r.queryOutbox(ctx,
		`SELECT `+outboxColumns+` FROM outbox WHERE status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue outbox batch: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (state.OutboxItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+outboxColumns+` FROM outbox WHERE id = ?`, id)
	it, err := scanOutboxItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return state.OutboxItem{}, fmt.Errorf("outbox item %d: %w", id, state.ErrNotFound)
	}
	if err != nil {
		return state.OutboxItem{}, fmt.Errorf("get outbox item %d: %w", id, err)
	}
	return it, nil
}

func (r *SQLiteRepository) Pending(ctx context.Context) ([]state.OutboxItem, error) {
	items, err := r.queryOutbox(ctx,
		`SELECT `+outboxColumns+` FROM outbox WHERE status IN ('pending', 'processing') ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox items: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) exec(ctx context.Context, id int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("outbox item %d: %w", id, state.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) MarkProcessing(ctx context.Context, id int64) error {
	if err := r.exec(ctx, id, `UPDATE outbox SET status = 'processing', updated_at = ? WHERE id = ?`, r.stamp(), id); err != nil {
		return fmt.Errorf("mark outbox item processing: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkDone(ctx context.Context, id int64) error {
	if err := r.exec(ctx, id, `UPDATE outbox SET status = 'done', last_error = '', updated_at = ? WHERE id = ?`, r.stamp(), id); err != nil {
		return fmt.Errorf("mark outbox item done: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	err := r.exec(ctx, id,
		`UPDATE outbox SET status = 'failed', attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		reason, r.stamp(), id)
	if err != nil {
		return fmt.Errorf("mark outbox item failed: %w", err)
	}
	slog.WarnContext(ctx, "Outbox item marked as failed", "outbox_id", id, "error", reason)
	return nil
}

func (r *SQLiteRepository) IncrementAttempt(ctx context.Context, id int64, reason string) error {
	err := r.exec(ctx, id,
		`UPDATE outbox SET status = 'pending', attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		reason, r.stamp(), id)
	if err != nil {
		return fmt.Errorf("increment outbox attempt: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Release(ctx context.Context, id int64, reason string) error {
	err := r.exec(ctx, id,
		`UPDATE outbox SET status = 'pending', last_error = ?, updated_at = ? WHERE id = ?`,
		reason, r.stamp(), id)
	if err != nil {
		return fmt.Errorf("release outbox item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) RemapTransaction(ctx context.Context, from, to core.TransactionID) error {
	items, err := r.queryOutbox(ctx,
		`SELECT `+outboxColumns+` FROM outbox WHERE transaction_id = ? AND status != 'done'`, from.String())
	if err != nil {
		return fmt.Errorf("find outbox items of %s: %w", from, err)
	}
	for _, it := range items {
		it.Transaction.ID = to
		payload, err := json.Marshal(it.Transaction)
		if err != nil {
			return fmt.Errorf("encode outbox transaction: %w", err)
		}
		_, err = r.db.ExecContext(ctx,
			`UPDATE outbox SET transaction_id = ?, transaction_json = ?, updated_at = ? WHERE id = ?`,
			to.String(), string(payload), r.stamp(), it.ID)
		if err != nil {
			return fmt.Errorf("remap outbox item %d: %w", it.ID, err)
		}
	}
	return nil
}

// ResetStaleProcessing returns items left in processing by a crashed run.
func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, `UPDATE outbox SET status = 'pending', updated_at = ? WHERE status = 'processing'`, r.stamp())
	if err != nil {
		return fmt.Errorf("reset stale processing: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.InfoContext(ctx, "Reset stale outbox items", "count", n)
	}
	return nil
}

func (r *SQLiteRepository) Stats(ctx context.Context) (state.OutboxStats, error) {
	var st state.OutboxStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM outbox`).Scan(&st.Pending, &st.Processing, &st.Done, &st.Failed)
	if err != nil {
		return state.OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}
	return st, nil
}

func (r *SQLiteRepository) RetryFailed(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'pending', attempts = 0, updated_at = ? WHERE status = 'failed'`, r.stamp())
	if err != nil {
		return 0, fmt.Errorf("retry failed outbox items: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) CleanupDone(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE status = 'done' AND updated_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cleanup done outbox items: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n > 0 {
		slog.InfoContext(ctx, "Cleaned up outbox items", "count", n)
	}
	return n, err
}
