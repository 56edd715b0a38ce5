// Package segment provides the Segment data model and the ordered SegmentList
// that defines the final audio order of a merge. The list is mutated by
// index-based commands coming from the client session; the pipeline only ever
// reads snapshot copies of it.
package segment

import (
	"errors"
	"fmt"
)

// Kind identifies the source of a segment.
type Kind string

const (
	// KindFile is a trimmed sub-range of an uploaded audio file.
	KindFile Kind = "file"
	// KindSilence is synthesized digital silence.
	KindSilence Kind = "silence"
)

// SilenceRef is the sentinel SourceRef for silence segments. It is a label,
// never a path; dispatch is always on Kind.
const SilenceRef = "Silence"

// Format is the target container/codec of a merge.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatM4A Format = "m4a"
)

// IsValid returns true if the format is one of the recognized values.
func (f Format) IsValid() bool {
	return f == FormatMP3 || f == FormatWAV || f == FormatM4A
}

// Static errors for segment validation.
var (
	// ErrInvalidRange is returned when the trim window violates
	// 0 <= start < end <= duration.
	ErrInvalidRange = errors.New("invalid trim range")
	// ErrInvalidKind is returned for an unrecognized source kind.
	ErrInvalidKind = errors.New("invalid segment kind")
	// ErrMissingSource is returned when a file segment has no source path.
	ErrMissingSource = errors.New("file segment requires a source path")
)

// Segment is one ordered unit of audio contributing to the merged output:
// either a trimmed region of an uploaded file or synthetic silence.
type Segment struct {
	// Kind is the source variant (file or silence).
	Kind Kind `json:"kind"`
	// SourceRef is the absolute path of the ingested file for file segments,
	// or the SilenceRef sentinel for silence segments.
	SourceRef string `json:"source_ref"`
	// StartMs is the trim window start in milliseconds.
	StartMs int64 `json:"start_ms"`
	// EndMs is the trim window end in milliseconds.
	EndMs int64 `json:"end_ms"`
	// DurationMs is the full duration of the underlying source.
	DurationMs int64 `json:"duration_ms"`
}

// NewFile constructs a file segment covering the whole probed duration.
func NewFile(path string, durationMs int64) Segment {
	return Segment{
		Kind:       KindFile,
		SourceRef:  path,
		StartMs:    0,
		EndMs:      durationMs,
		DurationMs: durationMs,
	}
}

// NewSilence constructs a silence segment of the requested duration.
func NewSilence(durationMs int64) Segment {
	return Segment{
		Kind:       KindSilence,
		SourceRef:  SilenceRef,
		StartMs:    0,
		EndMs:      durationMs,
		DurationMs: durationMs,
	}
}

// TrimMs returns the length of the trim window in milliseconds.
func (s Segment) TrimMs() int64 {
	return s.EndMs - s.StartMs
}

// Validate checks the segment invariant before materialization.
// Violations are rejected, never clamped.
func (s Segment) Validate() error {
	switch s.Kind {
	case KindFile:
		if s.SourceRef == "" || s.SourceRef == SilenceRef {
			return ErrMissingSource
		}
	case KindSilence:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, s.Kind)
	}
	if s.StartMs < 0 || s.StartMs >= s.EndMs || s.EndMs > s.DurationMs {
		return fmt.Errorf("%w: start=%dms end=%dms duration=%dms",
			ErrInvalidRange, s.StartMs, s.EndMs, s.DurationMs)
	}
	return nil
}
