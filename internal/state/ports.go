package state

import (
	"context"
	"errors"
	"time"

	"github.com/GMosna/ContabilApp/internal/core"
)

var (
	// ErrNoSession is returned when nobody is logged in.
	ErrNoSession = errors.New("no session")

	// ErrNotFound is returned for a missing snapshot or outbox item.
	ErrNotFound = errors.New("not found")
)

// Operation is the kind of mutation held in the outbox.
type Operation string

const (
	OpCreate   Operation = "create"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpClearAll Operation = "clear_all"
)

func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete, OpClearAll:
		return true
	}
	return false
}

// Status of an outbox item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// OutboxItem is a transaction mutation accepted while the backend was
// unreachable. Transaction is the new state for create and update, and the
// removed transaction for delete.
type OutboxItem struct {
	ID            int64
	Operation     Operation
	TransactionID core.TransactionID
	Transaction   core.Transaction
	Status        Status
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OutboxStats counts outbox items by status.
type OutboxStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Done       int64 `json:"done"`
	Failed     int64 `json:"failed"`
}

// Total is the number of items not yet done.
func (s OutboxStats) Total() int64 { return s.Pending + s.Processing + s.Failed }

// Snapshot is a copy of the application data at a given version.
type Snapshot struct {
	Version      int64                  `json:"version"`
	Accounts     []core.Account         `json:"accounts"`
	Transactions []core.Transaction     `json:"transactions"`
	Categories   []core.Category        `json:"categories"`
	Types        []core.TransactionType `json:"transactionTypes"`
	SavedAt      time.Time              `json:"savedAt"`
}

// SessionStore keeps the logged-in session across restarts.
type SessionStore interface {
	LoadSession(ctx context.Context) (core.Session, error)
	SaveSession(ctx context.Context, s core.Session) error
	ClearSession(ctx context.Context) error
}

// SnapshotStore caches the last confirmed data for offline reads.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s Snapshot) error
	LoadSnapshot(ctx context.Context) (Snapshot, error)
}

// Outbox queues mutations until the backend accepts them. Items are handed
// out in insertion order.
type Outbox interface {
	Enqueue(ctx context.Context, item OutboxItem) (int64, error)
	DequeueBatch(ctx context.Context, limit int) ([]OutboxItem, error)
	Get(ctx context.Context, id int64) (OutboxItem, error)
	Pending(ctx context.Context) ([]OutboxItem, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	// IncrementAttempt records a failed attempt and puts the item back in line.
	IncrementAttempt(ctx context.Context, id int64, reason string) error
	// Release puts an item back in line without counting an attempt.
	Release(ctx context.Context, id int64, reason string) error
	// RemapTransaction points not-yet-done items at the id the backend
	// assigned to a transaction created offline.
	RemapTransaction(ctx context.Context, from, to core.TransactionID) error
	ResetStaleProcessing(ctx context.Context) error
	Stats(ctx context.Context) (OutboxStats, error)
	RetryFailed(ctx context.Context) (int64, error)
	CleanupDone(ctx context.Context, before time.Time) (int64, error)
}

// Persistence is everything the application keeps outside process memory.
type Persistence interface {
	SessionStore
	SnapshotStore
	Outbox
	Close() error
}
