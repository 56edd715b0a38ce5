// Package job provides the MergeJob aggregate for tracking audio merge
// requests: a snapshot of the submitted segment list, a state machine aligned
// with the pipeline phases, and a progress value suitable for polling.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/mixdown-api/internal/job/id"
	"github.com/maauso/mixdown-api/internal/segment"
)

// Status represents the current state of a merge job. States mirror the
// pipeline phases so polling clients see the same machine the pipeline runs.
type Status string

const (
	// StatusIdle indicates the job was created but processing has not started.
	StatusIdle Status = "IDLE"
	// StatusValidating indicates the segment list is being checked.
	StatusValidating Status = "VALIDATING"
	// StatusMaterializing indicates per-segment temp files are being produced.
	StatusMaterializing Status = "MATERIALIZING"
	// StatusBuildingManifest indicates the concat manifest is being written.
	StatusBuildingManifest Status = "BUILDING_MANIFEST"
	// StatusTranscoding indicates the external concat/encode step is running.
	StatusTranscoding Status = "TRANSCODING"
	// StatusCompleted indicates the job finished and the artifact is final.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job aborted; all temp files are cleaned up.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed. Any
// non-terminal state may fail.
var validTransitions = map[Status][]Status{
	StatusIdle:             {StatusValidating, StatusFailed},
	StatusValidating:       {StatusMaterializing, StatusFailed},
	StatusMaterializing:    {StatusBuildingManifest, StatusFailed},
	StatusBuildingManifest: {StatusTranscoding, StatusFailed},
	StatusTranscoding:      {StatusCompleted, StatusFailed},
	StatusCompleted:        {},
	StatusFailed:           {},
}

func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one merge invocation. It owns a snapshot copy of the
// submitted segment list: client-side edits after submission never affect an
// in-flight job.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Segments is the snapshot of the segment list taken at submission.
	Segments []segment.Segment
	// Format is the target output format.
	Format segment.Format
	// Progress is the percentage of completion (0-100), monotonic.
	Progress int
	// Error contains the failure cause if the job failed.
	Error string
	// ArtifactName is the output file name once completed.
	ArtifactName string
	// ArtifactURL is the S3 URL if the artifact was pushed to S3.
	ArtifactURL string
	// PushToS3 indicates whether to upload the finished artifact to S3.
	PushToS3 bool
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a Job in IDLE state owning a snapshot of the given segments.
func New(segments []segment.Segment, format segment.Format) *Job {
	now := time.Now()
	snapshot := make([]segment.Segment, len(segments))
	copy(snapshot, segments)
	return &Job{
		ID:        id.Generate(),
		Status:    StatusIdle,
		Segments:  snapshot,
		Format:    format,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusValidating:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Complete transitions the job to COMPLETED with the given artifact name.
func (j *Job) Complete(artifact string) error {
	j.mu.Lock()
	j.ArtifactName = artifact
	j.Progress = 100
	j.mu.Unlock()
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress sets the progress percentage. Values below the current
// progress are ignored so the observable sequence is non-decreasing.
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress < j.Progress {
		return
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// SetArtifactURL records the S3 URL of the uploaded artifact.
func (j *Job) SetArtifactURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ArtifactURL = url
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	segments := make([]segment.Segment, len(j.Segments))
	copy(segments, j.Segments)

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		Segments:     segments,
		Format:       j.Format,
		Progress:     j.Progress,
		Error:        j.Error,
		ArtifactName: j.ArtifactName,
		ArtifactURL:  j.ArtifactURL,
		PushToS3:     j.PushToS3,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
