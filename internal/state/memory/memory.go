// Package memory keeps sessions, snapshots and the outbox in process memory.
// Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/state"
)

type Store struct {
	mu       sync.Mutex
	session  *core.Session
	snapshot *state.Snapshot
	outbox   []state.OutboxItem
	nextID   int64
	now      func() time.Time
}

var _ state.Persistence = (*Store)(nil)

func New() *Store {
	return &Store{now: time.Now}
}

func (s *Store) Close() error { return nil }

func (s *Store) LoadSession(_ context.Context) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return core.Session{}, state.ErrNoSession
	}
	return *s.session, nil
}

func (s *Store) SaveSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &sess
	return nil
}

func (s *Store) ClearSession(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.snapshot = nil
	return nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap state.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.SavedAt.IsZero() {
		snap.SavedAt = s.now()
	}
	snap.Accounts = slices.Clone(snap.Accounts)
	snap.Transactions = slices.Clone(snap.Transactions)
	snap.Categories = slices.Clone(snap.Categories)
	snap.Types = slices.Clone(snap.Types)
	s.snapshot = &snap
	return nil
}

func (s *Store) LoadSnapshot(_ context.Context) (state.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return state.Snapshot{}, state.ErrNotFound
	}
	snap := *s.snapshot
	snap.Accounts = slices.Clone(snap.Accounts)
	snap.Transactions = slices.Clone(snap.Transactions)
	snap.Categories = slices.Clone(snap.Categories)
	snap.Types = slices.Clone(snap.Types)
	return snap, nil
}

func (s *Store) Enqueue(_ context.Context, item state.OutboxItem) (int64, error) {
	if !item.Operation.Valid() {
		return 0, fmt.Errorf("enqueue: unknown operation %q", item.Operation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.now()
	item.ID = s.nextID
	item.Status = state.StatusPending
	item.Attempts = 0
	item.LastError = ""
	item.CreatedAt = now
	item.UpdatedAt = now
	s.outbox = append(s.outbox, item)
	return item.ID, nil
}

func (s *Store) DequeueBatch(_ context.Context, limit int) ([]state.OutboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []state.OutboxItem
	for _, it := range s.outbox {
		if limit > 0 && len(out) >= limit {
			break
		}
		if it.Status == state.StatusPending {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id int64) (state.OutboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return state.OutboxItem{}, fmt.Errorf("outbox item %d: %w", id, state.ErrNotFound)
	}
	return s.outbox[i], nil
}

func (s *Store) Pending(_ context.Context) ([]state.OutboxItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []state.OutboxItem
	for _, it := range s.outbox {
		if it.Status == state.StatusPending || it.Status == state.StatusProcessing {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Store) MarkProcessing(_ context.Context, id int64) error {
	return s.update(id, func(it *state.OutboxItem) {
		it.Status = state.StatusProcessing
	})
}

func (s *Store) MarkDone(_ context.Context, id int64) error {
	return s.update(id, func(it *state.OutboxItem) {
		it.Status = state.StatusDone
		it.LastError = ""
	})
}

func (s *Store) MarkFailed(_ context.Context, id int64, reason string) error {
	return s.update(id, func(it *state.OutboxItem) {
		it.Status = state.StatusFailed
		it.Attempts++
		it.LastError = reason
	})
}

func (s *Store) IncrementAttempt(_ context.Context, id int64, reason string) error {
	return s.update(id, func(it *state.OutboxItem) {
		it.Status = state.StatusPending
		it.Attempts++
		it.LastError = reason
	})
}

func (s *Store) Release(_ context.Context, id int64, reason string) error {
	return s.update(id, func(it *state.OutboxItem) {
		it.Status = state.StatusPending
		it.LastError = reason
	})
}

func (s *Store) RemapTransaction(_ context.Context, from, to core.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		it := &s.outbox[i]
		if it.TransactionID == from && it.Status != state.StatusDone {
			it.TransactionID = to
			it.Transaction.ID = to
			it.UpdatedAt = s.now()
		}
	}
	return nil
}

func (s *Store) ResetStaleProcessing(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].Status == state.StatusProcessing {
			s.outbox[i].Status = state.StatusPending
		}
	}
	return nil
}

func (s *Store) Stats(_ context.Context) (state.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st state.OutboxStats
	for _, it := range s.outbox {
		switch it.Status {
		case state.StatusPending:
			st.Pending++
		case state.StatusProcessing:
			st.Processing++
		case state.StatusDone:
			st.Done++
		case state.StatusFailed:
			st.Failed++
		}
	}
	return st, nil
}

func (s *Store) RetryFailed(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.outbox {
		if s.outbox[i].Status == state.StatusFailed {
			s.outbox[i].Status = state.StatusPending
			s.outbox[i].Attempts = 0
			n++
		}
	}
	return n, nil
}

func (s *Store) CleanupDone(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.outbox[:0]
	var n int64
	for _, it := range s.outbox {
		if it.Status == state.StatusDone && it.UpdatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, it)
	}
	s.outbox = kept
	return n, nil
}

func (s *Store) index(id int64) int {
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) update(id int64, fn func(*state.OutboxItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("outbox item %d: %w", id, state.ErrNotFound)
	}
	fn(&s.outbox[i])
	s.outbox[i].UpdatedAt = s.now()
	return nil
}
