package merge

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrHeapFull is returned by Insert when the heap already holds its
	// configured number of runs.
	ErrHeapFull = errors.New("heap is at capacity")

	// ErrBadCapacity is returned for heap capacities below 1. The
	// user-facing k >= 2 constraint is enforced by config validation
	// before any file is opened.
	ErrBadCapacity = errors.New("invalid heap capacity")

	// ErrCorruptIndex is returned when a run-length index entry does
	// not describe whole records.
	ErrCorruptIndex = errors.New("corrupt run-length index")
)

// MergeError provides structured error information for merge operations.
type MergeError struct {
	Op    string // operation that failed, e.g. "open", "drain block"
	Path  string // file involved, if any
	Level int    // merge level, 0 = terminal
	Cause error
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s (level %d): %v", e.Op, e.Path, e.Level, e.Cause)
	}
	return fmt.Sprintf("%s (level %d): %v", e.Op, e.Level, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *MergeError) Unwrap() error {
	return e.Cause
}

// opError wraps cause with merge context.
func opError(op, path string, level int, cause error) error {
	return &MergeError{Op: op, Path: path, Level: level, Cause: cause}
}
