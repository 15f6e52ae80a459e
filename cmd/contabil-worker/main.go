package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GMosna/ContabilApp/internal/cli"
	"github.com/GMosna/ContabilApp/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.ConfigureLogger(cfg)

	logger.Info("Starting contabil-worker")

	if cfg.DataBackend != "sqlite" {
		logger.Error("contabil-worker needs the sqlite backend to share the outbox with the server",
			"data_backend", cfg.DataBackend)
		os.Exit(1)
	}

	app := cli.MustBuildApp(context.Background(), logger, cfg)
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outboxWorker := worker.NewOutboxWorker(app.Outbox, cfg.SyncBatchSize)

	// On startup, replay whatever was queued while the worker was down
	logger.Info("Performing startup outbox check...")
	if err := outboxWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup outbox check", "error", err)
	}

	if amqpClient := app.Backend.AMQP; amqpClient != nil {
		go func() {
			if err := amqpClient.ConsumeOutbox(ctx, outboxWorker.HandleOutboxMessage); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", "error", err)
				}
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on the periodic outbox poll")
	}

	// Periodic poll for items whose message was lost
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := outboxWorker.ProcessPending(ctx); err != nil {
					logger.Error("Periodic outbox poll failed", "error", err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-pollDone:
		logger.Info("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
