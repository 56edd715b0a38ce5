// Package main provides the entry point for the mixdown API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/mixdown-api/internal/config"
	"github.com/maauso/mixdown-api/internal/job"
	"github.com/maauso/mixdown-api/internal/media"
	"github.com/maauso/mixdown-api/internal/mix"
	"github.com/maauso/mixdown-api/internal/server"
	"github.com/maauso/mixdown-api/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting mixdown API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("data_dir", cfg.DataDir),
		slog.Duration("sweep_interval", cfg.SweepInterval),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Initialize storage
	var store storage.Storage
	var local *storage.LocalStorage
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.DataDir, s3Cfg)
		if err != nil {
			return fmt.Errorf("create S3 storage: %w", err)
		}
		store = s3Store
		local = s3Store.LocalStorage
		logger.Info("S3 artifact delivery configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
	} else {
		localStore, err := storage.NewLocalStorage(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("create local storage: %w", err)
		}
		store = localStore
		local = localStore
		logger.Info("local storage configured",
			slog.String("data_dir", cfg.DataDir),
		)
	}

	// Initialize media processor and merge orchestrator
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)
	registry := mix.NewRegistry()
	orch := mix.NewOrchestrator(processor, registry, local.TempDir(), local.OutputDir(), logger)

	// Initialize job repository and merge service
	repo := job.NewMemoryRepository()
	svc := job.NewMergeService(repo, orch, store, logger)

	// Start the retention sweeper in the background
	sweepCfg := storage.SweepConfig{
		Interval:        cfg.SweepInterval,
		InitialDelay:    cfg.SweepInitialDelay,
		UploadRetention: cfg.UploadRetention,
		TempRetention:   cfg.TempRetention,
		OutputRetention: cfg.OutputRetention,
	}
	sweeper := storage.NewSweeper(local, registry, sweepCfg, logger)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweeper.Run(sweepCtx)

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(svc, orch, processor, store, logger,
		server.WithMaxUploadBytes(cfg.MaxUploadMB<<20),
	)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Allow for long transcodes and uploads
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	stopSweep()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
