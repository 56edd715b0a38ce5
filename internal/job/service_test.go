package job

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/maauso/mixdown-api/internal/mix"
	"github.com/maauso/mixdown-api/internal/segment"
)

// fakeMerger drives the reporter the way the real pipeline does and then
// returns a scripted outcome.
type fakeMerger struct {
	artifact string
	err      error
	calls    int
}

func (f *fakeMerger) Merge(ctx context.Context, segments []segment.Segment, format segment.Format, rep mix.Reporter) (string, error) {
	f.calls++
	rep.Phase(mix.PhaseValidating)
	rep.Phase(mix.PhaseMaterializing)
	rep.Progress(45)
	rep.Phase(mix.PhaseBuildingManifest)
	rep.Phase(mix.PhaseTranscoding)
	rep.Progress(95)
	if f.err != nil {
		rep.Failed(f.err)
		return "", f.err
	}
	rep.Progress(100)
	rep.Completed(f.artifact)
	return f.artifact, nil
}

// fakeStore records S3 uploads against a real output directory.
type fakeStore struct {
	outDir    string
	uploaded  []string
	uploadErr error
}

func (f *fakeStore) OutputDir() string { return f.outDir }

func (f *fakeStore) UploadToS3(ctx context.Context, key string, data io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	if _, err := io.ReadAll(data); err != nil {
		return "", err
	}
	f.uploaded = append(f.uploaded, key)
	return "https://bucket.s3.eu-west-1.amazonaws.com/" + key, nil
}

func TestMergeService_CreateJob(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewMergeService(repo, &fakeMerger{}, nil, nil)

	j, err := svc.CreateJob(context.Background(), testSegments(), segment.FormatMP3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != StatusIdle {
		t.Errorf("expected status IDLE, got %s", j.Status)
	}

	stored, err := repo.FindByID(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("expected job to be persisted: %v", err)
	}
	if stored.Format != segment.FormatMP3 {
		t.Errorf("expected format mp3, got %s", stored.Format)
	}
}

func TestMergeService_ProcessExistingJob(t *testing.T) {
	repo := NewMemoryRepository()
	merger := &fakeMerger{artifact: "merged_out.mp3"}
	svc := NewMergeService(repo, merger, nil, nil)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, testSegments(), segment.FormatMP3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.ProcessExistingJob(ctx, j.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merger.calls != 1 {
		t.Errorf("expected one merge run, got %d", merger.calls)
	}

	stored, _ := repo.FindByID(ctx, j.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("expected status COMPLETED, got %s", stored.Status)
	}
	if stored.ArtifactName != "merged_out.mp3" {
		t.Errorf("unexpected artifact name: %s", stored.ArtifactName)
	}
	if stored.Progress != 100 {
		t.Errorf("expected progress 100, got %d", stored.Progress)
	}
}

func TestMergeService_ProcessExistingJobFailure(t *testing.T) {
	repo := NewMemoryRepository()
	cause := errors.New("transcode failed: encoder crashed")
	svc := NewMergeService(repo, &fakeMerger{err: cause}, nil, nil)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, testSegments(), segment.FormatWAV, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.ProcessExistingJob(ctx, j.ID, nil); !errors.Is(err, cause) {
		t.Fatalf("expected merge error to propagate, got %v", err)
	}

	stored, _ := repo.FindByID(ctx, j.ID)
	if stored.Status != StatusFailed {
		t.Errorf("expected status FAILED, got %s", stored.Status)
	}
	if stored.Error == "" {
		t.Error("expected failure cause to be recorded")
	}
}

func TestMergeService_ProcessExistingJobNotFound(t *testing.T) {
	svc := NewMergeService(NewMemoryRepository(), &fakeMerger{}, nil, nil)

	if _, err := svc.ProcessExistingJob(context.Background(), "missing", nil); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMergeService_ExtraReporterReceivesEvents(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewMergeService(repo, &fakeMerger{artifact: "merged_out.wav"}, nil, nil)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, testSegments(), segment.FormatWAV, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	extra := &captureReporter{}
	if _, err := svc.ProcessExistingJob(ctx, j.ID, extra); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if extra.completed != "merged_out.wav" {
		t.Errorf("expected extra reporter to receive completion, got %q", extra.completed)
	}
	if len(extra.progress) == 0 {
		t.Error("expected extra reporter to receive progress events")
	}
}

func TestMergeService_PushToS3(t *testing.T) {
	repo := NewMemoryRepository()
	outDir := t.TempDir()
	store := &fakeStore{outDir: outDir}
	svc := NewMergeService(repo, &fakeMerger{artifact: "merged_out.mp3"}, store, nil)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(outDir, "merged_out.mp3"), []byte("audio"), 0600); err != nil {
		t.Fatalf("failed to seed artifact: %v", err)
	}

	j, err := svc.CreateJob(ctx, testSegments(), segment.FormatMP3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.ProcessExistingJob(ctx, j.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.uploaded) != 1 || store.uploaded[0] != "merged_out.mp3" {
		t.Errorf("expected artifact upload, got %v", store.uploaded)
	}
	stored, _ := repo.FindByID(ctx, j.ID)
	if stored.ArtifactURL == "" {
		t.Error("expected artifact URL to be recorded")
	}
}

func TestMergeService_PushToS3UploadFailureIsNonFatal(t *testing.T) {
	repo := NewMemoryRepository()
	store := &fakeStore{outDir: t.TempDir(), uploadErr: errors.New("bucket unreachable")}
	svc := NewMergeService(repo, &fakeMerger{artifact: "merged_out.mp3"}, store, nil)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, testSegments(), segment.FormatMP3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Delivery is best effort: the job still completes locally.
	if _, err := svc.ProcessExistingJob(ctx, j.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := repo.FindByID(ctx, j.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("expected status COMPLETED, got %s", stored.Status)
	}
	if stored.ArtifactURL != "" {
		t.Errorf("expected no artifact URL, got %q", stored.ArtifactURL)
	}
}

// captureReporter records the terminal event and progress pushes.
type captureReporter struct {
	mix.NopReporter
	progress  []int
	completed string
}

func (c *captureReporter) Progress(p int)     { c.progress = append(c.progress, p) }
func (c *captureReporter) Completed(a string) { c.completed = a }
