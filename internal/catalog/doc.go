// Package catalog is the durable, single-writer record of every media file
// the daemon has ever observed: its probed metadata, its lifecycle state,
// and the bookkeeping (pre_hash, workdir_path, attempts) needed to recover
// cleanly from a crash mid-encode.
//
// The Store is backed by an embedded SQLite database opened with WAL mode
// and a single connection, so the database itself enforces the one-writer
// discipline the lifecycle state machine depends on. All mutation goes
// through the narrow operation set in store_ops.go; callers never issue SQL
// directly against media_entries.
//
// On Open, a corrupt database or one at an incompatible schema version is
// discarded and recreated empty rather than failing startup: the Scanner
// repopulates it from the filesystem on the next pass.
package catalog
