package catalog

import "errors"

// ErrNotFound is returned when an operation references an id that isn't
// in the catalog.
var ErrNotFound = errors.New("catalog: entry not found")

// ErrConflict is returned when a requested transition would violate the
// lifecycle state machine, typically because the entry is no longer in the
// state the caller expects (a concurrent transition raced it) or because
// invariant 5 (at most one IN_PROGRESS entry) would be violated.
var ErrConflict = errors.New("catalog: invalid state transition")

// ErrGone is returned by Enqueue when the target entry is a GONE tombstone.
var ErrGone = errors.New("catalog: entry is gone")
