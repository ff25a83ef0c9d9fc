// Package recovery runs once at daemon startup, before the Scanner and
// before the Worker is allowed to claim work. It reconciles every catalog
// entry left in QUEUED or IN_PROGRESS by a prior, possibly unclean shutdown:
// entries whose source file vanished are marked GONE, entries whose source
// mutated mid-flight are reset to PENDING, and entries with a workdir output
// waiting to be verified are either salvaged into DONE or discarded back to
// PENDING.
//
// Running Recovery twice is a no-op after the first pass: every entry it
// touches leaves QUEUED/IN_PROGRESS for a terminal or PENDING state.
package recovery
