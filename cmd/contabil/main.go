package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/GMosna/ContabilApp/internal/cli"
	apphttp "github.com/GMosna/ContabilApp/internal/http"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.ConfigureLogger(cfg)

	logger.Info("Starting contabil server")

	app := cli.MustBuildApp(context.Background(), logger, cfg)
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", "error", err)
		}
	}()
	app.Caches.StartCleanup(5 * time.Minute)

	srv := apphttp.NewServer(app.Finance, app.Outbox, apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins,
		Logger:             logger,
		Subscribe:          app.Store.Subscribe,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if app.Outbox.IsRunning() {
			if err := app.Outbox.Stop(ctx); err != nil {
				logger.Error("Outbox processor shutdown error", "error", err)
			}
		}
	})

	// With a broker, contabil-worker owns the replay; otherwise it runs here.
	if cfg.OfflineMode && !cfg.AMQPEnabled() {
		if err := app.Outbox.Start(ctx); err != nil {
			logger.Error("Failed to start outbox processor", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Listening",
		"port", cfg.Port,
		"backend_url", cfg.BackendURL,
		"data_backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
