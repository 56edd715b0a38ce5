package mix

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/maauso/mixdown-api/internal/media"
	"github.com/maauso/mixdown-api/internal/segment"
	"github.com/maauso/mixdown-api/internal/wav"
)

// Materializer converts one segment descriptor into a standalone temporary
// audio file: silence is synthesized locally, file trims are delegated to the
// external transcoding capability.
type Materializer struct {
	proc media.Processor
}

// NewMaterializer creates a Materializer backed by the given processor.
func NewMaterializer(proc media.Processor) *Materializer {
	return &Materializer{proc: proc}
}

// Materialize writes the segment to a unique temp file in workDir and returns
// its path. The path is registered with the ledger before any bytes are
// written, so a partial write is still cleaned up. It does not retry.
func (m *Materializer) Materialize(ctx context.Context, seg segment.Segment, workDir string, ledger *Ledger) (string, error) {
	path := filepath.Join(workDir, fmt.Sprintf("segment_%s.wav", uuid.NewString()))
	ledger.Register(path)

	switch seg.Kind {
	case segment.KindSilence:
		if err := wav.WriteSilence(path, seg.TrimMs()); err != nil {
			return "", err
		}
	case segment.KindFile:
		if err := m.proc.Trim(ctx, seg.SourceRef, path, seg.StartMs, seg.EndMs); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %q", segment.ErrInvalidKind, seg.Kind)
	}

	return path, nil
}
