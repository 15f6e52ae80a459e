// Package backend builds the local infrastructure selected by configuration:
// where state is persisted, where confirmed transactions are exported and
// how queued changes are announced.
package backend

import (
	"context"

	"github.com/GMosna/ContabilApp/internal/amqp"
	"github.com/GMosna/ContabilApp/internal/services"
	"github.com/GMosna/ContabilApp/internal/sheets"
	"github.com/GMosna/ContabilApp/internal/state"
)

// Exporter writes and reads back exported transactions.
type Exporter interface {
	sheets.TransactionExporter
	sheets.ExportReader
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the built components and a cleanup function
type BackendResult struct {
	Persistence state.Persistence
	Exporter    Exporter
	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the AMQP client as an outbox publisher, or nil.
func (r *BackendResult) Publisher() services.Publisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// AMQP, optional for every backend type
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export, optional; an in-memory exporter is used without it
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// BackendType selects where state is persisted.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
