// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/contabil, cmd/contabil-worker and cmd/contabilctl.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/GMosna/ContabilApp/internal/api"
	"github.com/GMosna/ContabilApp/internal/backend"
	"github.com/GMosna/ContabilApp/internal/cache"
	"github.com/GMosna/ContabilApp/internal/config"
	"github.com/GMosna/ContabilApp/internal/log"
	"github.com/GMosna/ContabilApp/internal/services"
	"github.com/GMosna/ContabilApp/internal/state"
)

// SetupLogger initializes structured logging with default settings.
// Returns the configured logger and sets it as the default logger.
func SetupLogger() *log.Logger {
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)
	return logger
}

// ConfigureLogger replaces the default logger with one honoring LOG_LEVEL
// and LOG_FORMAT.
func ConfigureLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// App is everything a command needs to serve or replay the user's data.
type App struct {
	Config  *config.Config
	Backend *backend.BackendResult
	Store   *state.Store
	API     *api.Client
	Finance *services.FinanceService
	Outbox  *services.OutboxProcessor
	Caches  *cache.Manager
}

// BuildApp opens the configured persistence, export and broker, and wires
// the backend client, the shared store and the services on top of them. The
// persisted session and snapshot are loaded into the store.
func BuildApp(ctx context.Context, logger *log.Logger, cfg *config.Config) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	store := state.NewStore()
	client := api.New(cfg.BackendURL, SessionTokens(store, res.Persistence), api.WithTimeout(cfg.BackendTimeout))

	finance := services.NewFinanceService(client, store, res.Persistence, services.Options{
		Offline:   cfg.OfflineMode,
		Publisher: res.Publisher(),
	})

	pcfg := services.DefaultOutboxProcessorConfig()
	pcfg.PollInterval = cfg.SyncInterval
	pcfg.BatchSize = cfg.SyncBatchSize
	pcfg.MaxRetries = cfg.SyncMaxRetries
	outbox := services.NewOutboxProcessor(res.Persistence, finance, res.Exporter, pcfg)

	caches := cache.NewManager()
	for _, c := range finance.Caches() {
		caches.Register(c)
	}

	if err := finance.Restore(ctx); err != nil {
		logger.Warn("Failed to restore persisted state, starting empty", "error", err)
	}

	logger.Info("Application wired",
		"backend_url", client.BaseURL(),
		"data_backend", bcfg.Type.String(),
		"offline_mode", cfg.OfflineMode,
		"sheets_export", cfg.SheetsEnabled(),
		"amqp", res.AMQP != nil)

	return &App{
		Config:  cfg,
		Backend: res,
		Store:   store,
		API:     client,
		Finance: finance,
		Outbox:  outbox,
		Caches:  caches,
	}, nil
}

// MustBuildApp is BuildApp for commands: it exits the process on failure.
func MustBuildApp(ctx context.Context, logger *log.Logger, cfg *config.Config) *App {
	app, err := BuildApp(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err, "data_backend", cfg.DataBackend)
		os.Exit(1)
	}
	return app
}

// Close stops the cache cleanup and releases the backend resources.
func (a *App) Close() error {
	a.Caches.Stop()
	if a.Backend.Cleanup == nil {
		return nil
	}
	return a.Backend.Cleanup()
}

// SessionTokens reads the bearer token from the store, falling back to the
// persisted session so a worker picks up a login made by the server.
func SessionTokens(store *state.Store, sessions state.SessionStore) api.TokenSource {
	return api.TokenFunc(func(ctx context.Context) (string, error) {
		if token, _ := store.Token(ctx); token != "" {
			return token, nil
		}
		sess, err := sessions.LoadSession(ctx)
		if errors.Is(err, state.ErrNoSession) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		store.SetSession(sess)
		return sess.Token, nil
	})
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
