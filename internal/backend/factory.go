package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/GMosna/ContabilApp/internal/amqp"
	gsheet "github.com/GMosna/ContabilApp/internal/sheets/google"
	sheetsmem "github.com/GMosna/ContabilApp/internal/sheets/memory"
	"github.com/GMosna/ContabilApp/internal/state"
	statemem "github.com/GMosna/ContabilApp/internal/state/memory"
	"github.com/GMosna/ContabilApp/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	persistence, err := f.createPersistence(config)
	if err != nil {
		return nil, err
	}

	exporter, err := f.createExporter(ctx, config)
	if err != nil {
		_ = persistence.Close()
		return nil, err
	}

	result := &BackendResult{
		Persistence: persistence,
		Exporter:    exporter,
		AMQP:        f.createAMQP(config),
	}
	result.Cleanup = func() error {
		var errs []error
		if result.AMQP != nil {
			errs = append(errs, result.AMQP.Close())
		}
		errs = append(errs, persistence.Close())
		return errors.Join(errs...)
	}
	return result, nil
}

func (f *DefaultFactory) createPersistence(config Config) (state.Persistence, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite persistence", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory persistence, nothing survives a restart")
		return statemem.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createExporter(ctx context.Context, config Config) (Exporter, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.Info("Google Sheets export disabled, keeping exported rows in memory")
		return sheetsmem.New(), nil
	}

	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets export", "sheet", config.GoogleSheetName)
	return cli, nil
}

// createAMQP connects to the broker when configured. A broker that cannot be
// reached only disables announcements; the outbox is still polled.
func (f *DefaultFactory) createAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without announcements", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
