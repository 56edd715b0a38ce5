package segment

import (
	"errors"
	"fmt"
	"sync"
)

// TrimEdge selects which end of the trim window SetTrim adjusts.
type TrimEdge string

const (
	// EdgeStart adjusts StartMs.
	EdgeStart TrimEdge = "start"
	// EdgeEnd adjusts EndMs.
	EdgeEnd TrimEdge = "end"
)

// Static errors for list operations.
var (
	// ErrIndexOutOfRange is returned when an index is outside [0, len).
	ErrIndexOutOfRange = errors.New("segment index out of range")
	// ErrInvalidEdge is returned for an unrecognized trim edge.
	ErrInvalidEdge = errors.New("invalid trim edge")
)

// List is an order-significant sequence of segments. Duplicates of the same
// file source are legal. All operations are safe for concurrent use; the
// pipeline only ever sees Snapshot copies.
type List struct {
	mu       sync.RWMutex
	segments []Segment
}

// NewList creates an empty segment list.
func NewList() *List {
	return &List{}
}

// Len returns the number of segments.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.segments)
}

// Append adds a segment at the end of the list.
func (l *List) Append(s Segment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.segments = append(l.segments, s)
}

// InsertSilence appends a silence segment of the given duration.
func (l *List) InsertSilence(durationMs int64) (Segment, error) {
	s := NewSilence(durationMs)
	if err := s.Validate(); err != nil {
		return Segment{}, err
	}
	l.Append(s)
	return s, nil
}

// Get returns the segment at index i.
func (l *List) Get(i int) (Segment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if err := l.checkIndex(i); err != nil {
		return Segment{}, err
	}
	return l.segments[i], nil
}

// MoveUp swaps segment i with its predecessor. Moving the first segment up
// is a defined no-op, not an error, since clients invoke it unconditionally.
func (l *List) MoveUp(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkIndex(i); err != nil {
		return err
	}
	if i == 0 {
		return nil
	}
	l.segments[i-1], l.segments[i] = l.segments[i], l.segments[i-1]
	return nil
}

// MoveDown swaps segment i with its successor. Moving the last segment down
// is a defined no-op.
func (l *List) MoveDown(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkIndex(i); err != nil {
		return err
	}
	if i == len(l.segments)-1 {
		return nil
	}
	l.segments[i], l.segments[i+1] = l.segments[i+1], l.segments[i]
	return nil
}

// MoveTo relocates the segment at oldIndex to newIndex, preserving the
// relative order of all other segments.
func (l *List) MoveTo(oldIndex, newIndex int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkIndex(oldIndex); err != nil {
		return err
	}
	if err := l.checkIndex(newIndex); err != nil {
		return err
	}
	if oldIndex == newIndex {
		return nil
	}
	s := l.segments[oldIndex]
	l.segments = append(l.segments[:oldIndex], l.segments[oldIndex+1:]...)
	l.segments = append(l.segments[:newIndex], append([]Segment{s}, l.segments[newIndex:]...)...)
	return nil
}

// Delete removes the segment at index i.
func (l *List) Delete(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkIndex(i); err != nil {
		return err
	}
	l.segments = append(l.segments[:i], l.segments[i+1:]...)
	return nil
}

// Clear removes all segments.
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.segments = nil
}

// SetTrim adjusts one edge of the trim window of segment i. The resulting
// window must still satisfy the segment invariant; violations are rejected
// and the segment is left unchanged.
func (l *List) SetTrim(i int, edge TrimEdge, ms int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkIndex(i); err != nil {
		return err
	}
	updated := l.segments[i]
	switch edge {
	case EdgeStart:
		updated.StartMs = ms
	case EdgeEnd:
		updated.EndMs = ms
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEdge, edge)
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	l.segments[i] = updated
	return nil
}

// Snapshot returns a copy of the current segments. The copy is owned by the
// caller; later list mutations never affect it.
func (l *List) Snapshot() []Segment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Segment, len(l.segments))
	copy(out, l.segments)
	return out
}

// checkIndex must be called with the lock held.
func (l *List) checkIndex(i int) error {
	if i < 0 || i >= len(l.segments) {
		return fmt.Errorf("%w: index=%d len=%d", ErrIndexOutOfRange, i, len(l.segments))
	}
	return nil
}
