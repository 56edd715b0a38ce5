package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maauso/mixdown-api/internal/mix"
	"github.com/maauso/mixdown-api/internal/segment"
)

// Merger runs the merge pipeline for a snapshot of segments. Implemented by
// mix.Orchestrator.
type Merger interface {
	Merge(ctx context.Context, segments []segment.Segment, format segment.Format, rep mix.Reporter) (string, error)
}

// ArtifactStore is the subset of the storage layer the service needs to
// deliver finished artifacts.
type ArtifactStore interface {
	OutputDir() string
	UploadToS3(ctx context.Context, key string, data io.Reader) (string, error)
}

// MergeService bridges the job repository and the merge pipeline: it creates
// jobs from merge requests, runs them, and mirrors pipeline events into the
// persisted job so polling clients observe the same state machine.
type MergeService struct {
	repo   Repository
	merger Merger
	store  ArtifactStore
	logger *slog.Logger
}

// NewMergeService creates a new MergeService. store may be nil when artifact
// upload is not configured.
func NewMergeService(repo Repository, merger Merger, store ArtifactStore, logger *slog.Logger) *MergeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MergeService{
		repo:   repo,
		merger: merger,
		store:  store,
		logger: logger,
	}
}

// CreateJob creates a job owning a snapshot of the segments and persists it.
func (s *MergeService) CreateJob(ctx context.Context, segments []segment.Segment, format segment.Format, pushToS3 bool) (*Job, error) {
	j := New(segments, format)
	j.PushToS3 = pushToS3

	s.logger.Info("creating merge job",
		slog.String("job_id", j.ID),
		slog.Int("segments", len(segments)),
		slog.String("format", string(format)),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *MergeService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ProcessExistingJob runs the pipeline for a previously created job. Pipeline
// events are mirrored into the repository; extra, when non-nil, additionally
// receives every event (e.g. a WebSocket session pushing live progress).
func (s *MergeService) ProcessExistingJob(ctx context.Context, jobID string, extra mix.Reporter) (*Job, error) {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	rep := mix.Reporter(&repoReporter{ctx: ctx, repo: s.repo, job: j, logger: s.logger})
	if extra != nil {
		rep = mix.MultiReporter{rep, extra}
	}

	artifact, err := s.merger.Merge(ctx, j.Segments, j.Format, rep)
	if err != nil {
		return j, err
	}

	if j.PushToS3 {
		if url, upErr := s.uploadArtifact(ctx, artifact); upErr != nil {
			// Delivery is best effort; the local artifact remains valid.
			s.logger.Warn("artifact upload failed",
				slog.String("job_id", j.ID),
				slog.String("artifact", artifact),
				slog.String("error", upErr.Error()),
			)
		} else {
			j.SetArtifactURL(url)
			if err := s.repo.Save(ctx, j); err != nil {
				s.logger.Error("failed to save job", slog.String("job_id", j.ID), slog.String("error", err.Error()))
			}
		}
	}

	return j, nil
}

// uploadArtifact pushes a finished merge output to S3.
func (s *MergeService) uploadArtifact(ctx context.Context, artifact string) (string, error) {
	if s.store == nil {
		return "", errors.New("no artifact store configured")
	}
	f, err := os.Open(filepath.Join(s.store.OutputDir(), artifact)) // #nosec G304 - artifact name is generated internally
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.store.UploadToS3(ctx, artifact, f)
}

// repoReporter mirrors pipeline events into the persisted job.
type repoReporter struct {
	ctx    context.Context
	repo   Repository
	job    *Job
	logger *slog.Logger
}

// phaseStatus maps a pipeline phase to the job status it implies.
func phaseStatus(p mix.Phase) (Status, bool) {
	switch p {
	case mix.PhaseValidating:
		return StatusValidating, true
	case mix.PhaseMaterializing:
		return StatusMaterializing, true
	case mix.PhaseBuildingManifest:
		return StatusBuildingManifest, true
	case mix.PhaseTranscoding:
		return StatusTranscoding, true
	default:
		return "", false
	}
}

func (r *repoReporter) Phase(p mix.Phase) {
	status, ok := phaseStatus(p)
	if !ok {
		return
	}
	if err := r.job.TransitionTo(status); err != nil {
		r.logger.Error("invalid job transition",
			slog.String("job_id", r.job.ID),
			slog.String("to", string(status)),
		)
		return
	}
	r.save()
}

func (r *repoReporter) Status(string) {}

func (r *repoReporter) Progress(percent int) {
	r.job.UpdateProgress(percent)
	r.save()
}

func (r *repoReporter) Completed(artifact string) {
	if err := r.job.Complete(artifact); err != nil {
		r.logger.Error("invalid job transition",
			slog.String("job_id", r.job.ID),
			slog.String("to", string(StatusCompleted)),
		)
		return
	}
	r.save()
}

func (r *repoReporter) Failed(cause error) {
	if err := r.job.Fail(cause.Error()); err != nil {
		r.logger.Error("invalid job transition",
			slog.String("job_id", r.job.ID),
			slog.String("to", string(StatusFailed)),
		)
		return
	}
	r.save()
}

func (r *repoReporter) save() {
	if err := r.repo.Save(r.ctx, r.job); err != nil {
		r.logger.Error("failed to save job",
			slog.String("job_id", r.job.ID),
			slog.String("error", err.Error()),
		)
	}
}
