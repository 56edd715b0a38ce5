package mix

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLedger_ReleaseAll(t *testing.T) {
	dir := t.TempDir()
	l := NewLedger(nil)

	a := writeTemp(t, dir, "a.wav")
	b := writeTemp(t, dir, "b.wav")
	l.Register(a)
	l.Register(b)

	if got := len(l.Tracked()); got != 2 {
		t.Fatalf("expected 2 tracked paths, got %d", got)
	}

	l.ReleaseAll()

	for _, p := range []string{a, b} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", p)
		}
	}
	if got := len(l.Tracked()); got != 0 {
		t.Errorf("expected no tracked paths after release, got %d", got)
	}
}

func TestLedger_ReleaseAllIdempotent(t *testing.T) {
	dir := t.TempDir()
	l := NewLedger(nil)
	l.Register(writeTemp(t, dir, "a.wav"))

	l.ReleaseAll()
	// Second call must be a no-op, not an error or a second delete attempt.
	l.ReleaseAll()
	l.ReleaseAll()
}

func TestLedger_ReleaseAllToleratesMissingFiles(t *testing.T) {
	l := NewLedger(nil)
	l.Register(filepath.Join(t.TempDir(), "never-written.wav"))

	// Registered-but-unwritten paths are normal after an early failure.
	l.ReleaseAll()
}

func TestRegistry_Tracks(t *testing.T) {
	r := NewRegistry()
	l := NewLedger(nil)
	l.Register("/data/temp/segment_abc.wav")

	if r.Tracks("/data/temp/segment_abc.wav") {
		t.Error("expected no tracking before the ledger is added")
	}

	r.Add(l)
	if !r.Tracks("/data/temp/segment_abc.wav") {
		t.Error("expected path of a live ledger to be tracked")
	}
	if r.Tracks("/data/temp/other.wav") {
		t.Error("expected unrelated path to be untracked")
	}

	r.Remove(l)
	if r.Tracks("/data/temp/segment_abc.wav") {
		t.Error("expected no tracking after the ledger is removed")
	}
}
