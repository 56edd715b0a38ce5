package mix

import "sync"

// Phase identifies a pipeline stage of a merge job.
type Phase string

const (
	PhaseValidating       Phase = "validating"
	PhaseMaterializing    Phase = "materializing"
	PhaseBuildingManifest Phase = "building_manifest"
	PhaseTranscoding      Phase = "transcoding"
)

// Reporter is the push contract between the pipeline and an observer.
// A job emits zero or more Phase/Status/Progress events followed by exactly
// one terminal event: Completed(artifact) or Failed(cause). Progress values
// are integers in [0,100] and monotonically non-decreasing.
type Reporter interface {
	// Phase signals entry into a pipeline stage.
	Phase(p Phase)
	// Status pushes a human-readable status line.
	Status(message string)
	// Progress pushes overall completion in [0,100].
	Progress(percent int)
	// Completed is the success terminal event carrying the artifact reference.
	Completed(artifact string)
	// Failed is the failure terminal event.
	Failed(cause error)
}

// NopReporter discards all events. Embed it to implement a partial Reporter.
type NopReporter struct{}

func (NopReporter) Phase(Phase)      {}
func (NopReporter) Status(string)    {}
func (NopReporter) Progress(int)     {}
func (NopReporter) Completed(string) {}
func (NopReporter) Failed(error)     {}

// guard wraps a Reporter and enforces the contract: progress is clamped to
// [0,100] and never decreases, and nothing is forwarded after the first
// terminal event.
type guard struct {
	mu    sync.Mutex
	inner Reporter
	last  int
	done  bool
}

func newGuard(inner Reporter) *guard {
	if inner == nil {
		inner = NopReporter{}
	}
	return &guard{inner: inner}
}

func (g *guard) Phase(p Phase) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.inner.Phase(p)
}

func (g *guard) Status(message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.inner.Status(message)
}

func (g *guard) Progress(percent int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent < g.last {
		return
	}
	g.last = percent
	g.inner.Progress(percent)
}

func (g *guard) Completed(artifact string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	g.inner.Completed(artifact)
}

func (g *guard) Failed(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	g.inner.Failed(cause)
}

// MultiReporter fans events out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) Phase(p Phase) {
	for _, r := range m {
		r.Phase(p)
	}
}

func (m MultiReporter) Status(message string) {
	for _, r := range m {
		r.Status(message)
	}
}

func (m MultiReporter) Progress(percent int) {
	for _, r := range m {
		r.Progress(percent)
	}
}

func (m MultiReporter) Completed(artifact string) {
	for _, r := range m {
		r.Completed(artifact)
	}
}

func (m MultiReporter) Failed(cause error) {
	for _, r := range m {
		r.Failed(cause)
	}
}
