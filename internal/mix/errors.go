package mix

import (
	"errors"
	"fmt"
)

// ErrEmptyList is returned when a merge is requested with no segments.
var ErrEmptyList = errors.New("segment list is empty")

// ValidationError rejects a whole job before any work starts. No cleanup is
// needed when it is raised.
type ValidationError struct {
	// Index is the offending segment position, or -1 for list-level problems.
	Index int
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("validation failed: %v", e.Cause)
	}
	return fmt.Sprintf("validation failed at segment %d: %v", e.Index, e.Cause)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// MaterializeError aborts the job when a single segment cannot be turned
// into a temp file. It triggers full ledger cleanup.
type MaterializeError struct {
	// Index is the position of the failed segment in the list.
	Index int
	Cause error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("materialize segment %d: %v", e.Index, e.Cause)
}

func (e *MaterializeError) Unwrap() error {
	return e.Cause
}

// TranscodeError aborts the job when the external concat/encode step fails.
// It triggers full ledger cleanup.
type TranscodeError struct {
	Cause error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode failed: %v", e.Cause)
}

func (e *TranscodeError) Unwrap() error {
	return e.Cause
}
