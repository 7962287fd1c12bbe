package ingest

import (
	"errors"
	"fmt"
)

// errFileTooLarge marks files skipped because they exceed the size bound.
var errFileTooLarge = errors.New("file exceeds maximum size")

// ParseError records a contained, per-file parsing failure. Failures never
// abort a batch; the aggregator collects them alongside whatever entries the
// file still yielded.
type ParseError struct {
	File string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// FileResult is the outcome of parsing one file: zero or more normalized
// entries plus an optional contained error. A failed parse still carries at
// least one fallback entry, preserving the signal "something happened here,
// details unavailable".
type FileResult struct {
	File    string
	Entries []LogEntry
	Err     *ParseError
}

// Failed reports whether parsing this file hit a contained error.
func (r FileResult) Failed() bool {
	return r.Err != nil
}
