// Package storage provides the on-disk layout for uploaded sources, pipeline
// temp files and finished outputs, an optional S3 delivery wrapper, and the
// retention sweeper that ages files out of each directory independently.
package storage

import (
	"context"
	"io"
)

// Storage defines the file storage surface consumed by the HTTP layer and
// the merge service.
type Storage interface {
	// UploadDir returns the directory holding ingested source files.
	UploadDir() string

	// TempDir returns the directory holding pipeline temp files and previews.
	TempDir() string

	// OutputDir returns the directory holding finished merge artifacts.
	OutputDir() string

	// SaveUpload writes an ingested file under a collision-free name derived
	// from originalName and returns its absolute path.
	SaveUpload(ctx context.Context, originalName string, data io.Reader) (path string, err error)

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
