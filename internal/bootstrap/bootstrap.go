// Package bootstrap provides dependency initialization for the mixdown API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/mixdown-api/internal/config"
	"github.com/maauso/mixdown-api/internal/job"
	"github.com/maauso/mixdown-api/internal/media"
	"github.com/maauso/mixdown-api/internal/mix"
	"github.com/maauso/mixdown-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Service      *job.MergeService
	Orchestrator *mix.Orchestrator
	Processor    media.Processor
	Store        storage.Storage
	Sweeper      *storage.Sweeper
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, local, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)

	// Live-job ledgers are visible to the sweeper so it never deletes a
	// file a running job still owns.
	registry := mix.NewRegistry()
	orch := mix.NewOrchestrator(processor, registry, local.TempDir(), local.OutputDir(), logger)

	repo := job.NewMemoryRepository()
	svc := job.NewMergeService(repo, orch, store, logger)

	sweepCfg := storage.SweepConfig{
		Interval:        cfg.SweepInterval,
		InitialDelay:    cfg.SweepInitialDelay,
		UploadRetention: cfg.UploadRetention,
		TempRetention:   cfg.TempRetention,
		OutputRetention: cfg.OutputRetention,
	}
	sweeper := storage.NewSweeper(local, registry, sweepCfg, logger)

	return &Dependencies{
		Service:      svc,
		Orchestrator: orch,
		Processor:    processor,
		Store:        store,
		Sweeper:      sweeper,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, *storage.LocalStorage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.DataDir, s3Cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 artifact delivery configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, s3Store.LocalStorage, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("data_dir", cfg.DataDir),
	)
	return localStore, localStore, nil
}
