// Package server provides the HTTP surface of the mixdown API: multipart
// ingest, REST merge jobs, artifact retrieval, and the WebSocket session that
// carries segment-list commands and live merge/preview progress.
package server

import "github.com/maauso/mixdown-api/internal/segment"

// MergeRequest is the HTTP request body for creating a merge job.
type MergeRequest struct {
	// Segments is the ordered list to merge; order defines final audio order.
	Segments []segment.Segment `json:"segments" validate:"required,min=1"`
	// Format is the target output format.
	Format string `json:"format" validate:"required,oneof=mp3 wav m4a"`
	// PushToS3 indicates whether to upload the finished artifact to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a merge job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for polling job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job state.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains the failure cause if the job failed.
	Error string `json:"error,omitempty"`
	// ArtifactName is the output file name once completed.
	ArtifactName string `json:"artifact_name,omitempty"`
	// DownloadPath is the local retrieval path once completed.
	DownloadPath string `json:"download_path,omitempty"`
	// ArtifactURL is the S3 URL if the artifact was pushed to S3.
	ArtifactURL string `json:"artifact_url,omitempty"`
}

// UploadResult describes the outcome of ingesting one uploaded file.
type UploadResult struct {
	// OriginalName is the client-side file name.
	OriginalName string `json:"original_name"`
	// Segment is the full-range file segment built from the probe, on success.
	Segment *segment.Segment `json:"segment,omitempty"`
	// Channels is the probed channel count.
	Channels int `json:"channels,omitempty"`
	// SampleRate is the probed sample rate in Hz.
	SampleRate int `json:"sample_rate,omitempty"`
	// Error is the per-file failure cause; the file contributes no segment.
	Error string `json:"error,omitempty"`
}

// UploadResponse is the HTTP response for a multipart ingest.
type UploadResponse struct {
	Files []UploadResult `json:"files"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
