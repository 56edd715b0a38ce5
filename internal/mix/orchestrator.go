// Package mix implements the segment-to-output processing pipeline: ordered
// segment materialization, concat manifest construction, the transcode step
// with progress mapping, and the temp-resource ledger that guarantees cleanup
// on every outcome.
package mix

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maauso/mixdown-api/internal/media"
	"github.com/maauso/mixdown-api/internal/segment"
	"github.com/maauso/mixdown-api/internal/wav"
)

// Orchestrator drives a merge job through its phases:
// Validating -> MaterializingSegments -> BuildingManifest -> Transcoding ->
// Completed | Failed. Each invocation is an independent unit of work with its
// own ledger and progress stream; concurrent jobs share nothing mutable.
type Orchestrator struct {
	proc     media.Processor
	mat      *Materializer
	registry *Registry
	tempDir  string
	outDir   string
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator writing temp files to tempDir and
// finished artifacts to outDir. registry may be nil when no retention sweeper
// runs alongside the pipeline.
func NewOrchestrator(proc media.Processor, registry *Registry, tempDir, outDir string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		proc:     proc,
		mat:      NewMaterializer(proc),
		registry: registry,
		tempDir:  tempDir,
		outDir:   outDir,
		logger:   logger,
	}
}

// Merge materializes the segments in list order, concatenates them into one
// output file of the requested format, and returns the artifact name. All
// events, including exactly one terminal event, are pushed to rep. By the
// time a failure is observable, no job-owned temp file remains on disk.
func (o *Orchestrator) Merge(ctx context.Context, segments []segment.Segment, format segment.Format, rep Reporter) (string, error) {
	g := newGuard(rep)

	ledger := NewLedger(o.logger)
	o.trackLedger(ledger)
	defer o.untrackLedger(ledger)
	// Safety net for panics and early returns; ReleaseAll is idempotent.
	defer ledger.ReleaseAll()

	g.Phase(PhaseValidating)
	if err := validate(segments, format); err != nil {
		return "", o.fail(g, ledger, err)
	}

	g.Phase(PhaseMaterializing)
	g.Status(fmt.Sprintf("merging %d segments", len(segments)))
	paths := make([]string, 0, len(segments))
	for i, seg := range segments {
		p, err := o.mat.Materialize(ctx, seg, o.tempDir, ledger)
		if err != nil {
			return "", o.fail(g, ledger, &MaterializeError{Index: i, Cause: err})
		}
		paths = append(paths, p)
		// The 0-90 band is proportional to segment count, not duration:
		// per-segment cost is unknown before materialization.
		g.Progress(int((i + 1) * 90 / len(segments)))
		g.Status(fmt.Sprintf("processing... %d%%", (i+1)*90/len(segments)))
	}

	g.Phase(PhaseBuildingManifest)
	manifest, err := o.writeManifest(paths, ledger)
	if err != nil {
		return "", o.fail(g, ledger, &MaterializeError{Index: -1, Cause: err})
	}

	g.Phase(PhaseTranscoding)
	g.Status(fmt.Sprintf("exporting as %s", format))
	// The uuid fragment keeps concurrent jobs finishing in the same second
	// from racing on one output path.
	artifact := fmt.Sprintf("merged_%s_%s.%s", time.Now().UTC().Format("2006-01-02T15-04-05"), uuid.NewString()[:8], format)
	outPath := filepath.Join(o.outDir, artifact)

	total := int64(0)
	for _, seg := range segments {
		total += seg.TrimMs()
	}
	err = o.proc.Concat(ctx, manifest, outPath, media.EncodeOpts{
		Format:          string(format),
		TotalDurationMs: total,
		OnProgress: func(p float64) {
			// The transcode phase occupies 90-99; 100 is reserved for
			// confirmed completion so a client never sees 100% before the
			// output is durably finalized.
			g.Progress(min99(90 + int(math.Floor(p/10))))
			g.Status(fmt.Sprintf("exporting... %d%%", min99(90+int(math.Floor(p/10)))))
		},
	})
	if err != nil {
		// The transcoder may have written a partial artifact.
		if rmErr := os.Remove(outPath); rmErr != nil && !os.IsNotExist(rmErr) {
			o.logger.Warn("failed to remove partial output",
				slog.String("path", outPath),
				slog.String("error", rmErr.Error()),
			)
		}
		return "", o.fail(g, ledger, &TranscodeError{Cause: err})
	}

	ledger.ReleaseAll()
	g.Progress(100)
	g.Status("processing complete")
	g.Completed(artifact)
	o.logger.Info("merge completed",
		slog.String("artifact", artifact),
		slog.Int("segments", len(segments)),
		slog.Int64("duration_ms", total),
	)
	return artifact, nil
}

// Preview materializes a single segment into a temporary playable file and
// returns its name. On success the file intentionally survives the job: it is
// the artifact, served until the retention sweep removes it. On failure the
// ledger removes it before the terminal event.
func (o *Orchestrator) Preview(ctx context.Context, seg segment.Segment, clientID string, rep Reporter) (string, error) {
	g := newGuard(rep)

	ledger := NewLedger(o.logger)
	o.trackLedger(ledger)
	defer o.untrackLedger(ledger)

	g.Status("preparing preview...")
	if err := seg.Validate(); err != nil {
		verr := &ValidationError{Index: -1, Cause: err}
		g.Failed(verr)
		return "", verr
	}

	if clientID == "" {
		clientID = "anon"
	}
	name := fmt.Sprintf("preview_%s_%s.wav", clientID, uuid.NewString())
	path := filepath.Join(o.tempDir, name)
	ledger.Register(path)

	switch seg.Kind {
	case segment.KindSilence:
		if err := wav.WriteSilence(path, seg.TrimMs()); err != nil {
			return "", o.fail(g, ledger, &MaterializeError{Index: -1, Cause: err})
		}
	default:
		if err := o.proc.Trim(ctx, seg.SourceRef, path, seg.StartMs, seg.EndMs); err != nil {
			return "", o.fail(g, ledger, &MaterializeError{Index: -1, Cause: err})
		}
	}

	g.Status("preview ready")
	g.Completed(name)
	return name, nil
}

// fail is the single failure path: full ledger cleanup strictly before the
// terminal event becomes observable.
func (o *Orchestrator) fail(g *guard, ledger *Ledger, err error) error {
	ledger.ReleaseAll()
	g.Failed(err)
	o.logger.Error("job failed", slog.String("error", err.Error()))
	return err
}

// validate rejects the whole job before any work starts.
func validate(segments []segment.Segment, format segment.Format) error {
	if len(segments) == 0 {
		return &ValidationError{Index: -1, Cause: ErrEmptyList}
	}
	if !format.IsValid() {
		return &ValidationError{Index: -1, Cause: fmt.Errorf("unknown format %q", format)}
	}
	for i, seg := range segments {
		if err := seg.Validate(); err != nil {
			return &ValidationError{Index: i, Cause: err}
		}
	}
	return nil
}

// writeManifest writes the concat demuxer file list, in segment order, and
// registers it with the ledger. Single quotes in paths are escaped per the
// demuxer's quoting rule.
func (o *Orchestrator) writeManifest(paths []string, ledger *Ledger) (string, error) {
	manifest := filepath.Join(o.tempDir, fmt.Sprintf("merged_list_%s.txt", uuid.NewString()))
	ledger.Register(manifest)

	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolve path %s: %w", p, err)
		}
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}

	if err := os.WriteFile(manifest, []byte(b.String()), 0600); err != nil {
		return "", fmt.Errorf("write concat manifest: %w", err)
	}
	return manifest, nil
}

func (o *Orchestrator) trackLedger(l *Ledger) {
	if o.registry != nil {
		o.registry.Add(l)
	}
}

func (o *Orchestrator) untrackLedger(l *Ledger) {
	if o.registry != nil {
		o.registry.Remove(l)
	}
}

func min99(p int) int {
	if p > 99 {
		return 99
	}
	return p
}
