package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Tracker reports whether a path is currently owned by a live job ledger.
// Tracked paths are excluded from sweeps.
type Tracker interface {
	Tracks(path string) bool
}

// SweepConfig holds the retention windows and scheduling of the sweeper.
// Uploaded sources, temp previews and finished outputs age out independently.
type SweepConfig struct {
	// Interval between sweeps.
	Interval time.Duration
	// InitialDelay before the first sweep after startup.
	InitialDelay time.Duration
	// UploadRetention is how long ingested source files are kept.
	UploadRetention time.Duration
	// TempRetention is how long temp and preview files are kept.
	TempRetention time.Duration
	// OutputRetention is how long finished artifacts are kept.
	OutputRetention time.Duration
}

// DefaultSweepConfig mirrors the retention policy of the hosted service:
// uploads 7 days, temp 1 day, output 14 days, swept daily.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{
		Interval:        24 * time.Hour,
		InitialDelay:    10 * time.Minute,
		UploadRetention: 7 * 24 * time.Hour,
		TempRetention:   24 * time.Hour,
		OutputRetention: 14 * 24 * time.Hour,
	}
}

// Sweeper periodically deletes aged files from the storage directories. It
// shares no mutable state with the pipeline beyond the Tracker check, which
// prevents it from deleting files a running job still owns.
type Sweeper struct {
	store   *LocalStorage
	tracker Tracker
	cfg     SweepConfig
	logger  *slog.Logger
}

// NewSweeper creates a Sweeper over the given storage. tracker may be nil,
// in which case no exclusion is applied.
func NewSweeper(store *LocalStorage, tracker Tracker, cfg SweepConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, tracker: tracker, cfg: cfg, logger: logger}
}

// Run blocks, sweeping on the configured schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.cfg.InitialDelay):
	}
	s.SweepOnce(time.Now())

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.SweepOnce(now)
		}
	}
}

// SweepOnce deletes files older than their directory's retention window.
func (s *Sweeper) SweepOnce(now time.Time) {
	s.logger.Info("starting retention sweep")
	s.sweepDir(s.store.UploadDir(), now, s.cfg.UploadRetention)
	s.sweepDir(s.store.TempDir(), now, s.cfg.TempRetention)
	s.sweepDir(s.store.OutputDir(), now, s.cfg.OutputRetention)
}

func (s *Sweeper) sweepDir(dir string, now time.Time, retention time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Error("failed to read directory",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("failed to stat file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		if now.Sub(info.ModTime()) <= retention {
			continue
		}
		if s.tracker != nil && s.tracker.Tracks(path) {
			continue
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove aged file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.Info("removed aged file", slog.String("path", path))
	}
}
