package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// LocalStorage implements Storage on local disk. It owns three sibling
// directories with independent retention lifetimes: uploads/, temp/ and
// output/.
type LocalStorage struct {
	uploadDir string
	tempDir   string
	outputDir string
}

// NewLocalStorage creates a LocalStorage rooted at baseDir, creating the
// uploads/temp/output directories if needed. If baseDir is empty, a
// directory under os.TempDir() is used.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "mixdown")
	}

	s := &LocalStorage{
		uploadDir: filepath.Join(baseDir, "uploads"),
		tempDir:   filepath.Join(baseDir, "temp"),
		outputDir: filepath.Join(baseDir, "output"),
	}
	for _, dir := range []string{s.uploadDir, s.tempDir, s.outputDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// UploadDir returns the ingested-sources directory.
func (s *LocalStorage) UploadDir() string { return s.uploadDir }

// TempDir returns the pipeline temp directory.
func (s *LocalStorage) TempDir() string { return s.tempDir }

// OutputDir returns the finished-artifacts directory.
func (s *LocalStorage) OutputDir() string { return s.outputDir }

// SaveUpload writes an ingested file to the uploads directory. The original
// name is kept for readability but prefixed with a UUID to avoid collisions;
// any path components in it are discarded.
func (s *LocalStorage) SaveUpload(ctx context.Context, originalName string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	name := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(originalName))
	path := filepath.Join(s.uploadDir, name)

	f, err := os.Create(path) // #nosec G304 - name is sanitized above
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}

	return path, nil
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// Verify interface implementation at compile time.
var _ Storage = (*LocalStorage)(nil)
