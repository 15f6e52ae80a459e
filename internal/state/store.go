// Package state holds the application state shared by the HTTP handlers and
// the outbox processor, and the ports used to persist it.
package state

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/GMosna/ContabilApp/internal/core"
)

// Store is the in-process application state. Every change replaces the data
// under a lock and bumps the version; loads that started before a newer
// change are rejected by Replace.
type Store struct {
	mu         sync.RWMutex
	version    int64
	session    *core.Session
	accounts   []core.Account
	txs        []core.Transaction
	categories []core.Category
	types      []core.TransactionType
	loadedAt   time.Time
	listeners  []func(version int64)
}

func NewStore() *Store {
	return &Store{}
}

// Version returns the current version. Callers capture it before fetching
// and hand it to Replace.
func (s *Store) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Subscribe registers fn to be called after every change.
func (s *Store) Subscribe(fn func(version int64)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify(version int64) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(version)
	}
}

// Replace installs freshly loaded accounts and transactions. It returns false
// and changes nothing when the store moved past since.
func (s *Store) Replace(since int64, accounts []core.Account, txs []core.Transaction) bool {
	return s.replace(since, func() {
		s.accounts = slices.Clone(accounts)
		s.txs = slices.Clone(txs)
	})
}

// ReplaceAll is Replace for a full load: categories and transaction types are
// installed with the accounts and transactions, or not at all.
func (s *Store) ReplaceAll(since int64, accounts []core.Account, txs []core.Transaction, categories []core.Category, types []core.TransactionType) bool {
	return s.replace(since, func() {
		s.accounts = slices.Clone(accounts)
		s.txs = slices.Clone(txs)
		s.categories = slices.Clone(categories)
		s.types = slices.Clone(types)
	})
}

func (s *Store) replace(since int64, set func()) bool {
	s.mu.Lock()
	if s.version != since {
		s.mu.Unlock()
		return false
	}
	set()
	s.loadedAt = time.Now()
	s.version++
	v := s.version
	s.mu.Unlock()

	s.notify(v)
	return true
}

// Mutate applies fn to the current data and installs the result. It is used
// for local changes that must win over loads already in flight.
func (s *Store) Mutate(fn func(accounts []core.Account, txs []core.Transaction) ([]core.Account, []core.Transaction)) int64 {
	s.mu.Lock()
	accounts, txs := fn(slices.Clone(s.accounts), slices.Clone(s.txs))
	s.accounts = accounts
	s.txs = txs
	s.version++
	v := s.version
	s.mu.Unlock()

	s.notify(v)
	return v
}

// Invalidate bumps the version so that loads in flight are discarded.
func (s *Store) Invalidate() int64 {
	return s.Mutate(func(a []core.Account, t []core.Transaction) ([]core.Account, []core.Transaction) {
		return a, t
	})
}

// Restore installs a persisted snapshot when the store holds no data yet.
func (s *Store) Restore(snap Snapshot) bool {
	s.mu.Lock()
	if s.accounts != nil || s.txs != nil {
		s.mu.Unlock()
		return false
	}
	s.accounts = slices.Clone(snap.Accounts)
	s.txs = slices.Clone(snap.Transactions)
	s.categories = slices.Clone(snap.Categories)
	s.types = slices.Clone(snap.Types)
	s.loadedAt = snap.SavedAt
	s.version++
	v := s.version
	s.mu.Unlock()

	s.notify(v)
	return true
}

// Snapshot returns a copy of the data.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Version:      s.version,
		Accounts:     slices.Clone(s.accounts),
		Transactions: slices.Clone(s.txs),
		Categories:   slices.Clone(s.categories),
		Types:        slices.Clone(s.types),
		SavedAt:      s.loadedAt,
	}
}

// Loaded reports whether accounts and transactions were ever installed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loadedAt.IsZero() || s.accounts != nil
}

// SetSession logs a user in.
func (s *Store) SetSession(sess core.Session) {
	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()
}

// Session returns the current session or ErrNoSession.
func (s *Store) Session() (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil || s.session.Token == "" {
		return core.Session{}, ErrNoSession
	}
	return *s.session, nil
}

// LoggedIn reports whether a session is present.
func (s *Store) LoggedIn() bool {
	_, err := s.Session()
	return err == nil
}

// Reset drops the session and all user data.
func (s *Store) Reset() {
	s.mu.Lock()
	s.session = nil
	s.accounts = nil
	s.txs = nil
	s.categories = nil
	s.types = nil
	s.loadedAt = time.Time{}
	s.version++
	v := s.version
	s.mu.Unlock()

	s.notify(v)
}

// Token implements the backend client's token source. It returns an empty
// token when nobody is logged in.
func (s *Store) Token(context.Context) (string, error) {
	sess, err := s.Session()
	if err != nil {
		return "", nil
	}
	return sess.Token, nil
}
