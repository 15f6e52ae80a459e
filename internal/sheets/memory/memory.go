package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/GMosna/ContabilApp/internal/sheets"
)

// Store keeps exported rows in memory.
type Store struct {
	mu   sync.Mutex
	rows []sheets.Row
}

var (
	_ sheets.TransactionExporter = (*Store)(nil)
	_ sheets.ExportReader        = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// Export stores the row and returns a synthetic row reference.
func (s *Store) Export(_ context.Context, row sheets.Row) (string, error) {
	if row.Date.IsZero() || row.Description == "" {
		return "", errors.New("incomplete row")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) ListExported(_ context.Context, year int, month int) ([]sheets.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sheets.Row
	for _, r := range s.rows {
		if r.Date.Year() == year && int(r.Date.Month()) == month {
			out = append(out, r)
		}
	}
	return out, nil
}

// Rows returns every exported row.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows)
}
