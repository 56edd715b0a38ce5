package mix

import (
	"log/slog"
	"os"
	"sync"
)

// Ledger tracks every temporary file created during one merge or preview job
// so that all of them can be removed regardless of outcome. Each job owns its
// own Ledger; there is no cross-job state.
type Ledger struct {
	mu       sync.Mutex
	paths    []string
	released bool
	logger   *slog.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{logger: logger}
}

// Register records a temporary path for later cleanup. An unregistered temp
// file is a leak, so callers register paths before writing to them.
func (l *Ledger) Register(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
	l.released = false
}

// Tracked returns the currently registered paths.
func (l *Ledger) Tracked() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.paths))
	copy(out, l.paths)
	return out
}

// ReleaseAll deletes every registered path, best effort. Deletion failures
// are logged, never raised: a cleanup warning must not mask the job's own
// outcome. Safe to call multiple times; repeated calls are no-ops.
func (l *Ledger) ReleaseAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	for _, p := range l.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			l.logger.Warn("failed to remove temp file",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}
	}
	l.paths = nil
	l.released = true
}

// Registry is the set of ledgers belonging to live jobs. The retention
// sweeper consults it so it never deletes a file a running job still owns.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[*Ledger]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[*Ledger]struct{})}
}

// Add registers a live ledger.
func (r *Registry) Add(l *Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[l] = struct{}{}
}

// Remove drops a ledger once its job reached a terminal state.
func (r *Registry) Remove(l *Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ledgers, l)
}

// Tracks reports whether any live ledger currently owns path.
func (r *Registry) Tracks(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for l := range r.ledgers {
		for _, p := range l.Tracked() {
			if p == path {
				return true
			}
		}
	}
	return false
}
