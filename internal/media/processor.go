// Package media wraps the external ffmpeg/ffprobe capability behind the
// Processor port: probe stream info at ingest, trim a sub-range of a source
// file, and concatenate materialized files into one encoded output with
// fractional progress reporting.
package media

import "context"

// Info is the probed stream information of an ingested audio file.
type Info struct {
	// DurationMs is the total duration in milliseconds.
	DurationMs int64
	// Channels is the audio channel count.
	Channels int
	// SampleRate is the sample rate in Hz.
	SampleRate int
}

// EncodeOpts selects the output encoding of a concat operation.
type EncodeOpts struct {
	// Format is the target container extension (mp3, wav, m4a).
	Format string
	// TotalDurationMs is the expected output duration, used to turn the
	// encoder's time position into fractional progress.
	TotalDurationMs int64
	// OnProgress, if non-nil, receives fractional completion in [0,100]
	// for the concat phase alone.
	OnProgress func(percent float64)
}

// Prober reports stream information for a media file. It is called exactly
// once per newly ingested file; merge time trusts the probed duration.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// Processor is the external trim/concat capability consumed by the pipeline.
type Processor interface {
	Prober

	// Trim decodes src, cuts [startMs, endMs) and writes a standalone audio
	// file to dst.
	Trim(ctx context.Context, src, dst string, startMs, endMs int64) error

	// Concat concatenates the files listed in the manifest (ffmpeg concat
	// demuxer format) into dst, encoded per opts.
	Concat(ctx context.Context, manifestPath, dst string, opts EncodeOpts) error
}
